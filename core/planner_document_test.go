package core

import (
	"context"
	"testing"
)

func testContractID(t *testing.T) Identifier {
	t.Helper()
	id, err := DeriveContractID([]byte("a test contract"))
	if err != nil {
		t.Fatalf("DeriveContractID: %v", err)
	}
	return id
}

func TestLowerUpsertDocumentPrimaryAndSecondaryWrites(t *testing.T) {
	ctx := context.Background()
	backend := NewInMemoryBackend()
	planner := NewPlanner(nil)
	contractID := testContractID(t)

	dt := baseDocType("note")
	idx := IndexDefinition{Name: "byA", Properties: []string{"a"}, Unique: true}
	var docID Identifier
	docID[0] = 1

	intent := UpsertDocumentIntent{
		Body:         []byte("doc body"),
		DocumentType: dt,
		Indices:      []IndexDefinition{idx},
		ContractID:   contractID,
		Metadata:     DocumentTransitionMetadata{DocumentID: docID},
		DocumentProps: map[string]string{"a": "value-1"},
	}

	if _, err := planner.LowerUpsertDocument(ctx, backend, nil, intent); err != nil {
		t.Fatalf("LowerUpsertDocument: %v", err)
	}

	stored, err := backend.Get(ctx, documentsPath(contractID, "note"), docID.Bytes(), nil)
	if err != nil {
		t.Fatalf("primary write missing: %v", err)
	}
	if string(stored.ItemBytes) != "doc body" {
		t.Fatalf("primary write body = %q, want %q", stored.ItemBytes, "doc body")
	}

	key := indexKeyComponents(idx, intent.DocumentProps, intent.Metadata)
	if _, err := backend.Get(ctx, indexPath(contractID, "note", "byA"), key, nil); err != nil {
		t.Fatalf("secondary index entry missing: %v", err)
	}
}

func TestLowerUpsertDocumentDuplicateUniqueIndex(t *testing.T) {
	ctx := context.Background()
	backend := NewInMemoryBackend()
	planner := NewPlanner(nil)
	contractID := testContractID(t)

	dt := baseDocType("note")
	idx := IndexDefinition{Name: "byA", Properties: []string{"a"}, Unique: true}

	var docX, docY Identifier
	docX[0], docY[0] = 1, 2

	intentX := UpsertDocumentIntent{
		Body: []byte("x"), DocumentType: dt, Indices: []IndexDefinition{idx}, ContractID: contractID,
		Metadata: DocumentTransitionMetadata{DocumentID: docX}, DocumentProps: map[string]string{"a": "same-value"},
	}
	if _, err := planner.LowerUpsertDocument(ctx, backend, nil, intentX); err != nil {
		t.Fatalf("LowerUpsertDocument(X): %v", err)
	}

	intentY := intentX
	intentY.Metadata = DocumentTransitionMetadata{DocumentID: docY}
	_, err := planner.LowerUpsertDocument(ctx, backend, nil, intentY)
	if err == nil {
		t.Fatal("expected DuplicateUniqueIndex")
	}
	ce, ok := err.(*ConsensusError)
	if !ok || ce.Code != "DuplicateUniqueIndex" {
		t.Fatalf("expected DuplicateUniqueIndex, got %v", err)
	}
}

func TestLowerDeleteDocumentNotFound(t *testing.T) {
	ctx := context.Background()
	backend := NewInMemoryBackend()
	planner := NewPlanner(nil)
	contractID := testContractID(t)
	dt := baseDocType("note")
	var docID Identifier
	docID[0] = 9

	_, err := planner.LowerDeleteDocument(ctx, backend, nil, contractID, dt, nil, docID, nil, DocumentTransitionMetadata{})
	if err == nil {
		t.Fatal("expected NotFound for missing document")
	}
}

func TestLowerDeleteDocumentRemovesIndexAndPrimary(t *testing.T) {
	ctx := context.Background()
	backend := NewInMemoryBackend()
	planner := NewPlanner(nil)
	contractID := testContractID(t)
	dt := baseDocType("note")
	idx := IndexDefinition{Name: "byA", Properties: []string{"a"}, Unique: true}
	var docID Identifier
	docID[0] = 3

	upsert := UpsertDocumentIntent{
		Body: []byte("z"), DocumentType: dt, Indices: []IndexDefinition{idx}, ContractID: contractID,
		Metadata: DocumentTransitionMetadata{DocumentID: docID}, DocumentProps: map[string]string{"a": "v"},
	}
	if _, err := planner.LowerUpsertDocument(ctx, backend, nil, upsert); err != nil {
		t.Fatalf("LowerUpsertDocument: %v", err)
	}

	if _, err := planner.LowerDeleteDocument(ctx, backend, nil, contractID, dt, []IndexDefinition{idx}, docID, upsert.DocumentProps, upsert.Metadata); err != nil {
		t.Fatalf("LowerDeleteDocument: %v", err)
	}

	if _, err := backend.Get(ctx, documentsPath(contractID, "note"), docID.Bytes(), nil); err == nil {
		t.Fatal("expected primary document to be deleted")
	}
	key := indexKeyComponents(idx, upsert.DocumentProps, upsert.Metadata)
	if _, err := backend.Get(ctx, indexPath(contractID, "note", "byA"), key, nil); err == nil {
		t.Fatal("expected index entry to be deleted")
	}
}
