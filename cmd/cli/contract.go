package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ledgerengine/core"
)

// applyContractHandle loads a contract fixture (the same YAML shape
// genesis bootstrap uses) and lowers/applies it through the worker.
func applyContractHandle(cmd *cobra.Command, args []string) error {
	doc, err := core.LoadGenesisFile(args[0])
	if err != nil {
		return err
	}
	if len(doc.Contracts) == 0 {
		return fmt.Errorf("apply-contract: fixture %q declares no contracts", args[0])
	}

	result, err := worker.Submit(cmd.Context(), func(ctx context.Context, backend core.Backend, resolve func(core.TransactionID) (core.TxHandle, error)) (any, error) {
		results, err := core.ApplyGenesis(ctx, planner, backend, nil, doc)
		if err != nil {
			return nil, err
		}
		return results, nil
	})
	if err != nil {
		return err
	}

	for _, r := range result.([]core.ApplyContractResult) {
		fmt.Fprintf(cmd.OutOrStdout(), "contract %s applied (inserted=%t)\n", r.ContractID.Hex(), r.Inserted)
	}
	return nil
}

var applyContractCmd = &cobra.Command{
	Use:   "apply-contract <fixture.yaml>",
	Short: "register or update a data contract from a YAML fixture",
	Args:  cobra.ExactArgs(1),
	RunE:  applyContractHandle,
}
