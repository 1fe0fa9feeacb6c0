package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"ledgerengine/core"
)

// readRequestBytes slurps the request body a consensus hook expects,
// either from --json or, if unset, standard input.
func readRequestBytes(cmd *cobra.Command) ([]byte, error) {
	if raw, _ := cmd.Flags().GetString("json"); raw != "" {
		return []byte(raw), nil
	}
	return io.ReadAll(cmd.InOrStdin())
}

func runConsensusHook(cmd *cobra.Command, hook func(ctx context.Context, tx core.TxHandle, raw []byte) ([]byte, error)) error {
	raw, err := readRequestBytes(cmd)
	if err != nil {
		return err
	}
	resp, err := worker.Submit(cmd.Context(), func(ctx context.Context, backend core.Backend, resolve func(core.TransactionID) (core.TxHandle, error)) (any, error) {
		return hook(ctx, nil, raw)
	})
	if err != nil {
		return err
	}
	cmd.OutOrStdout().Write(resp.([]byte))
	cmd.OutOrStdout().Write([]byte("\n"))
	return nil
}

var initChainCmd = &cobra.Command{
	Use:   "init-chain",
	Short: "seed epoch 0 as current at genesis (request JSON from --json or stdin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsensusHook(cmd, consensusDrv.InitChain)
	},
}

var blockBeginCmd = &cobra.Command{
	Use:   "block-begin",
	Short: "tally a block's proposer and, if signalled, open the next epoch",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsensusHook(cmd, consensusDrv.BlockBegin)
	},
}

var blockEndCmd = &cobra.Command{
	Use:   "block-end",
	Short: "book a block's fees and, if signalled, mark an epoch paid",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConsensusHook(cmd, consensusDrv.BlockEnd)
	},
}

var consensusCmd = &cobra.Command{
	Use:   "consensus",
	Short: "drive C3's epoch lifecycle through the consensus boundary hooks",
}

func init() {
	for _, c := range []*cobra.Command{initChainCmd, blockBeginCmd, blockEndCmd} {
		c.Flags().String("json", "", "inline request JSON (defaults to reading stdin)")
	}
	consensusCmd.AddCommand(initChainCmd, blockBeginCmd, blockEndCmd)
}
