package core

import (
	"bytes"
	"context"
	"strconv"

	"github.com/sirupsen/logrus"
)

// DocumentTransitionMetadata carries the system components drawn from
// the state transition rather than the document body (§4.4 UpsertDocument).
type DocumentTransitionMetadata struct {
	DocumentID      Identifier
	OwnerID         Identifier
	CreatedAtMillis int64
	UpdatedAtMillis int64
}

// UpsertDocumentIntent is the caller-supplied input to the UpsertDocument
// lowering.
type UpsertDocumentIntent struct {
	Body             []byte
	DocumentType     DocumentTypeSchema
	Indices          []IndexDefinition
	ContractID       Identifier
	Metadata         DocumentTransitionMetadata
	OverrideDocument bool
	Flags            StorageFlags
	DocumentProps    map[string]string // decoded body property values keyed by property name

	// PriorDocumentProps/PriorMetadata, when OverrideDocument is set, are
	// the previous document's decoded properties/metadata — needed to
	// recompute its old index keys for deletion. Optional: see
	// decodePriorDocumentForIndexing's fallback.
	PriorDocumentProps map[string]string
	PriorMetadata      DocumentTransitionMetadata
}

func documentTypePath(contractID Identifier, documentType string) []string {
	return []string{contractsRoot, string(contractID.Bytes()), documentType}
}

func documentsPath(contractID Identifier, documentType string) []string {
	return append(documentTypePath(contractID, documentType), "0")
}

func indexPath(contractID Identifier, documentType string, indexName string) []string {
	return append(documentTypePath(contractID, documentType), indexName)
}

// indexKeyComponents resolves the ordered tuple of index key components
// for a document, drawing system properties from metadata and the rest
// from the decoded body (§4.4).
func indexKeyComponents(idx IndexDefinition, props map[string]string, meta DocumentTransitionMetadata) []byte {
	var buf bytes.Buffer
	for _, name := range idx.Properties {
		switch name {
		case systemPropertyOwnerID:
			buf.Write(meta.OwnerID.Bytes())
		case systemPropertyCreatedAt:
			buf.WriteString(strconv.FormatInt(meta.CreatedAtMillis, 10))
		case systemPropertyUpdatedAt:
			buf.WriteString(strconv.FormatInt(meta.UpdatedAtMillis, 10))
		default:
			buf.WriteString(props[name])
		}
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// LowerUpsertDocument implements §4.4's UpsertDocument ordering:
// secondary-index deletes (only when overriding a prior document),
// then secondary-index inserts, then the primary write.
func (p *Planner) LowerUpsertDocument(ctx context.Context, backend Backend, tx TxHandle, intent UpsertDocumentIntent) ([]AtomicTreeOp, error) {
	var deleteOps, insertOps []AtomicTreeOp

	if intent.OverrideDocument {
		priorEl, err := backend.Get(ctx, documentsPath(intent.ContractID, intent.DocumentType.Name), intent.Metadata.DocumentID.Bytes(), tx)
		if err == nil {
			priorProps, priorMeta := decodePriorDocumentForIndexing(priorEl, intent)
			for _, idx := range intent.Indices {
				deleteOps = append(deleteOps, AtomicTreeOp{
					Path: indexPath(intent.ContractID, intent.DocumentType.Name, idx.Name),
					Key:  indexKeyComponents(idx, priorProps, priorMeta),
					Kind: OpDelete,
				})
			}
		}
	}

	for _, idx := range intent.Indices {
		key := indexKeyComponents(idx, intent.DocumentProps, intent.Metadata)
		kind := OpInsert
		if idx.Unique {
			kind = OpInsertIfAbsent
		}
		insertOps = append(insertOps, AtomicTreeOp{
			Path:    indexPath(intent.ContractID, intent.DocumentType.Name, idx.Name),
			Key:     key,
			Element: NewReferenceElement(append(documentsPath(intent.ContractID, intent.DocumentType.Name), string(intent.Metadata.DocumentID.Bytes()))),
			Kind:    kind,
			Cost:    CostEstimate{BaseOps: map[BaseOp]uint64{BaseOpSeek: 1, BaseOpWriteByte: uint64(len(key))}},
		})
	}

	primaryOp := AtomicTreeOp{
		Path:    documentsPath(intent.ContractID, intent.DocumentType.Name),
		Key:     intent.Metadata.DocumentID.Bytes(),
		Element: NewItemElement(intent.Body, intent.Flags),
		Kind:    OpUpdate,
		Cost:    CostEstimate{BytesAdded: uint32(len(intent.Body)), BaseOps: map[BaseOp]uint64{BaseOpWriteByte: uint64(len(intent.Body))}},
	}

	// Ordering per §4.4: secondary-index deletes, then secondary-index
	// inserts, then the primary write — so a unique-index probe never
	// sees a ghost entry from earlier in the same batch.
	for _, op := range deleteOps {
		if _, err := op.Apply(applyContext{ctx: ctx, backend: backend, tx: tx}); err != nil {
			return nil, err
		}
	}
	for i, op := range insertOps {
		inserted, err := op.Apply(applyContext{ctx: ctx, backend: backend, tx: tx})
		if err != nil {
			return nil, err
		}
		if op.Kind == OpInsertIfAbsent && !inserted {
			return nil, ErrDuplicateUniqueIndex(intent.Metadata.DocumentID, intent.Indices[i].Properties)
		}
	}
	if _, err := primaryOp.Apply(applyContext{ctx: ctx, backend: backend, tx: tx}); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"document_id":   intent.Metadata.DocumentID,
		"document_type": intent.DocumentType.Name,
		"override":      intent.OverrideDocument,
	}).Debug("upserted document")

	ops := append(append(append([]AtomicTreeOp{}, deleteOps...), insertOps...), primaryOp)
	return ops, nil
}

// decodePriorDocumentForIndexing recovers the property values the prior
// document's index entries were keyed on. Decoding priorEl's bytes
// against the document type's schema is C6's job, out of scope here
// (§1); a real caller supplies the prior document's own decoded
// properties through intent.PriorDocumentProps when OverrideDocument is
// set and a schema decoder is available. Absent one, this falls back to
// the incoming document's own properties, which is exact whenever the
// overridden fields are not themselves index components.
func decodePriorDocumentForIndexing(priorEl Element, intent UpsertDocumentIntent) (map[string]string, DocumentTransitionMetadata) {
	if intent.PriorDocumentProps != nil {
		return intent.PriorDocumentProps, intent.PriorMetadata
	}
	return intent.DocumentProps, intent.Metadata
}

// LowerDeleteDocument implements §4.4's DeleteDocument: symmetric to
// Upsert, emitting index-entry deletions then the primary deletion. If
// the document does not exist, returns NotFound and emits no ops.
func (p *Planner) LowerDeleteDocument(ctx context.Context, backend Backend, tx TxHandle, contractID Identifier, documentType DocumentTypeSchema, indices []IndexDefinition, documentID Identifier, props map[string]string, meta DocumentTransitionMetadata) ([]AtomicTreeOp, error) {
	if _, err := backend.Get(ctx, documentsPath(contractID, documentType.Name), documentID.Bytes(), tx); err != nil {
		return nil, ErrNotFound("document")
	}

	var ops []AtomicTreeOp
	for _, idx := range indices {
		ops = append(ops, AtomicTreeOp{
			Path: indexPath(contractID, documentType.Name, idx.Name),
			Key:  indexKeyComponents(idx, props, meta),
			Kind: OpDelete,
		})
	}
	ops = append(ops, AtomicTreeOp{
		Path: documentsPath(contractID, documentType.Name),
		Key:  documentID.Bytes(),
		Kind: OpDelete,
	})

	if err := ApplyBatch(ctx, backend, tx, ops); err != nil {
		return nil, err
	}
	return ops, nil
}
