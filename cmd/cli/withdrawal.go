package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ledgerengine/core"
)

func withdrawHandle(cmd *cobra.Command, args []string) error {
	identityID, err := parseIdentifier(args[0])
	if err != nil {
		return err
	}
	amount, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[1], err)
	}
	fee, _ := cmd.Flags().GetUint64("fee")

	result, err := worker.Submit(cmd.Context(), func(ctx context.Context, backend core.Backend, resolve func(core.TransactionID) (core.TxHandle, error)) (any, error) {
		return planner.LowerWithdrawal(ctx, backend, nil, core.WithdrawalIntent{
			IdentityID: identityID,
			Amount:     core.Credits(amount),
			Fee:        core.Credits(fee),
		})
	})
	if err != nil {
		return err
	}
	ops := result.([]core.AtomicTreeOp)
	fmt.Fprintf(cmd.OutOrStdout(), "withdrawal enqueued for identity %s (%d ops)\n", identityID.Hex(), len(ops))
	return nil
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <identity-id-hex> <amount>",
	Short: "enqueue a credit withdrawal for an identity",
	Args:  cobra.ExactArgs(2),
	RunE:  withdrawHandle,
}

func init() {
	withdrawCmd.Flags().Uint64("fee", 0, "processing fee charged against the withdrawal")
}
