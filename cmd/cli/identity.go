package cli

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"ledgerengine/core"
)

func insertIdentityHandle(cmd *cobra.Command, args []string) error {
	identityID, err := parseIdentifier(args[0])
	if err != nil {
		return err
	}
	body := args[1]

	keyHex, _ := cmd.Flags().GetString("key")
	var keys []core.IdentityPublicKey
	if keyHex != "" {
		raw, err := hex.DecodeString(keyHex)
		if err != nil {
			return fmt.Errorf("invalid --key hex: %w", err)
		}
		keys = append(keys, core.IdentityPublicKey{
			KeyID:         0,
			PublicKey:     raw,
			Purpose:       core.KeyPurposeAuthentication,
			SecurityLevel: core.KeySecurityMaster,
		})
	}

	_, err = worker.Submit(cmd.Context(), func(ctx context.Context, backend core.Backend, resolve func(core.TransactionID) (core.TxHandle, error)) (any, error) {
		return planner.LowerInsertIdentity(ctx, backend, nil, core.InsertIdentityIntent{
			IdentityID: identityID,
			Body:       []byte(body),
			PublicKeys: keys,
		})
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "identity %s inserted with %d key(s)\n", identityID.Hex(), len(keys))
	return nil
}

var insertIdentityCmd = &cobra.Command{
	Use:   "insert-identity <identity-id-hex> <body>",
	Short: "register a new identity and its public keys",
	Args:  cobra.ExactArgs(2),
	RunE:  insertIdentityHandle,
}

func init() {
	insertIdentityCmd.Flags().String("key", "", "hex-encoded authentication public key")
}
