package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ledgerengine/core"
)

func queryHandle(cmd *cobra.Command, args []string) error {
	path := strings.Split(args[0], "/")
	limit, _ := cmd.Flags().GetInt("limit")

	result, err := worker.Submit(cmd.Context(), func(ctx context.Context, backend core.Backend, resolve func(core.TransactionID) (core.TxHandle, error)) (any, error) {
		results, skipped, err := backend.Query(ctx, core.PathQuery{Path: path, Limit: limit}, nil)
		if err != nil {
			return nil, err
		}
		return struct {
			Results []core.QueryResult
			Skipped int
		}{results, skipped}, nil
	})
	if err != nil {
		return err
	}
	out := result.(struct {
		Results []core.QueryResult
		Skipped int
	})
	for _, r := range out.Results {
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> kind=%d bytes=%s\n", hex.EncodeToString(r.Key), r.Element.Kind, hex.EncodeToString(r.Element.ItemBytes))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d result(s), %d skipped\n", len(out.Results), out.Skipped)
	return nil
}

var queryCmd = &cobra.Command{
	Use:   "query <slash-separated-path>",
	Short: "run a path query against the backend and print matching elements",
	Args:  cobra.ExactArgs(1),
	RunE:  queryHandle,
}

func init() {
	queryCmd.Flags().Int("limit", 0, "maximum number of results (0 = unlimited)")
}
