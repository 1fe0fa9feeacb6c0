package core

import (
	"context"
	"testing"
)

func TestLowerApplyContractInsertThenUpdate(t *testing.T) {
	ctx := context.Background()
	backend := NewInMemoryBackend()
	planner := NewPlanner(nil)

	body := []byte(`{"documentTypes":{"note":{}}}`)
	intent := ApplyContractIntent{
		Body: body,
		DocumentTypes: []ContractDocumentType{
			{Schema: baseDocType("note")},
		},
	}

	result, err := planner.LowerApplyContract(ctx, backend, nil, intent, 1)
	if err != nil {
		t.Fatalf("LowerApplyContract: %v", err)
	}
	if !result.Inserted {
		t.Fatal("expected first ApplyContract to be an insert")
	}

	result2, err := planner.LowerApplyContract(ctx, backend, nil, intent, 1)
	if err != nil {
		t.Fatalf("LowerApplyContract (second): %v", err)
	}
	if result2.ContractID != result.ContractID {
		t.Fatalf("expected deterministic contract id, got %v vs %v", result2.ContractID, result.ContractID)
	}
	if result2.Inserted {
		t.Fatal("expected second ApplyContract on identical body to be an update, not an insert")
	}
}

func TestLowerApplyContractRejectsInvalidIndices(t *testing.T) {
	ctx := context.Background()
	backend := NewInMemoryBackend()
	planner := NewPlanner(nil)

	dt := baseDocType("note")
	intent := ApplyContractIntent{
		Body: []byte("contract body"),
		DocumentTypes: []ContractDocumentType{
			{Schema: dt, Indices: []IndexDefinition{{Name: "byID", Properties: []string{systemPropertyID}}}},
		},
	}
	if _, err := planner.LowerApplyContract(ctx, backend, nil, intent, 1); err == nil {
		t.Fatal("expected index validation to reject an index on $id")
	}
}
