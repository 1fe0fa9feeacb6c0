package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ledgerengine/core"
)

func parseIdentifier(s string) (core.Identifier, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return core.Identifier{}, fmt.Errorf("invalid hex identifier %q: %w", s, err)
	}
	return core.IdentifierFromBytes(b)
}

func parseProps(pairs []string) map[string]string {
	props := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, found := strings.Cut(p, "=")
		if !found {
			continue
		}
		props[k] = v
	}
	return props
}

// demoDocumentType is the fixed schema the upsert/delete CLI commands
// operate against when no contract-specific schema is supplied: one
// scalar "value" property covered by a unique index.
// Real callers drive LowerUpsertDocument/LowerDeleteDocument directly
// with the schema resolved from the target contract.
func demoDocumentType(name string, indexProps []string) (core.DocumentTypeSchema, []core.IndexDefinition) {
	schema := core.DocumentTypeSchema{
		Name:       name,
		Properties: map[string]core.PropertySchema{},
		Required:   map[string]bool{},
	}
	var indices []core.IndexDefinition
	if len(indexProps) > 0 {
		schema.Properties["value"] = core.PropertySchema{Kind: core.PropertyScalar, MaxLength: 63}
		indices = append(indices, core.IndexDefinition{Name: "by_value", Properties: indexProps, Unique: true})
	}
	return schema, indices
}

func upsertDocumentHandle(cmd *cobra.Command, args []string) error {
	contractID, err := parseIdentifier(args[0])
	if err != nil {
		return err
	}
	docType := args[1]
	docID, err := parseIdentifier(args[2])
	if err != nil {
		return err
	}
	body := args[3]

	props, _ := cmd.Flags().GetStringArray("prop")
	override, _ := cmd.Flags().GetBool("override")
	schema, indices := demoDocumentType(docType, []string{"value"})

	result, err := worker.Submit(cmd.Context(), func(ctx context.Context, backend core.Backend, resolve func(core.TransactionID) (core.TxHandle, error)) (any, error) {
		return planner.LowerUpsertDocument(ctx, backend, nil, core.UpsertDocumentIntent{
			Body:         []byte(body),
			DocumentType: schema,
			Indices:      indices,
			ContractID:   contractID,
			Metadata: core.DocumentTransitionMetadata{
				DocumentID:      docID,
				CreatedAtMillis: time.Now().UnixMilli(),
				UpdatedAtMillis: time.Now().UnixMilli(),
			},
			OverrideDocument: override,
			DocumentProps:    parseProps(props),
		})
	})
	if err != nil {
		return err
	}
	ops := result.([]core.AtomicTreeOp)
	fmt.Fprintf(cmd.OutOrStdout(), "document %s upserted (%d ops)\n", docID.Hex(), len(ops))
	return nil
}

func deleteDocumentHandle(cmd *cobra.Command, args []string) error {
	contractID, err := parseIdentifier(args[0])
	if err != nil {
		return err
	}
	docType := args[1]
	docID, err := parseIdentifier(args[2])
	if err != nil {
		return err
	}

	props, _ := cmd.Flags().GetStringArray("prop")
	schema, indices := demoDocumentType(docType, []string{"value"})

	_, err = worker.Submit(cmd.Context(), func(ctx context.Context, backend core.Backend, resolve func(core.TransactionID) (core.TxHandle, error)) (any, error) {
		return planner.LowerDeleteDocument(ctx, backend, nil, contractID, schema, indices, docID, parseProps(props), core.DocumentTransitionMetadata{DocumentID: docID})
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "document %s deleted\n", docID.Hex())
	return nil
}

var upsertDocumentCmd = &cobra.Command{
	Use:   "upsert-document <contract-id-hex> <doc-type> <doc-id-hex> <body>",
	Short: "insert or update a document and its secondary indices",
	Args:  cobra.ExactArgs(4),
	RunE:  upsertDocumentHandle,
}

var deleteDocumentCmd = &cobra.Command{
	Use:   "delete-document <contract-id-hex> <doc-type> <doc-id-hex>",
	Short: "delete a document and its secondary indices",
	Args:  cobra.ExactArgs(3),
	RunE:  deleteDocumentHandle,
}

func init() {
	upsertDocumentCmd.Flags().StringArray("prop", nil, "key=value document property (repeatable)")
	upsertDocumentCmd.Flags().Bool("override", false, "treat this as updating a prior document, removing its stale index entries")
	deleteDocumentCmd.Flags().StringArray("prop", nil, "key=value document property the prior index entries were keyed on (repeatable)")
}
