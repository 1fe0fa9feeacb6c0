package core

import "testing"

func baseDocType(name string) DocumentTypeSchema {
	return DocumentTypeSchema{
		Name: name,
		Properties: map[string]PropertySchema{
			"a": {Kind: PropertyScalar, MaxLength: 10},
			"b": {Kind: PropertyScalar, MaxLength: 10},
		},
		Required: map[string]bool{},
	}
}

func TestValidateSingleIndexCompoundMissingRequired(t *testing.T) {
	dt := baseDocType("note")
	dt.Required["a"] = true
	idx := IndexDefinition{Name: "byAB", Properties: []string{"a", "b"}, Unique: true}

	result := ValidateDocumentTypeIndices(dt, []IndexDefinition{idx})
	if result.IsValid() {
		t.Fatal("expected InvalidCompoundIndex error")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly one error, got %v", result.Errors)
	}
	ce := result.Errors[0].(*ConsensusError)
	if ce.Code != "InvalidCompoundIndex" {
		t.Fatalf("expected InvalidCompoundIndex, got %s", ce.Code)
	}
}

func TestValidateTooManyUniqueIndices(t *testing.T) {
	dt := baseDocType("note")
	dt.Properties["c"] = PropertySchema{Kind: PropertyScalar, MaxLength: 5}
	dt.Properties["d"] = PropertySchema{Kind: PropertyScalar, MaxLength: 5}
	indices := []IndexDefinition{
		{Name: "i1", Properties: []string{"a"}, Unique: true},
		{Name: "i2", Properties: []string{"b"}, Unique: true},
		{Name: "i3", Properties: []string{"c"}, Unique: true},
		{Name: "i4", Properties: []string{"d"}, Unique: true},
	}
	result := ValidateDocumentTypeIndices(dt, indices)
	found := false
	for _, err := range result.Errors {
		if ce, ok := err.(*ConsensusError); ok && ce.Code == "TooManyUniqueIndices" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected TooManyUniqueIndices, got %v", result.Errors)
	}
}

func TestValidateArrayMaxItemsBoundaries(t *testing.T) {
	okDt := baseDocType("doc")
	okDt.Properties["arr"] = PropertySchema{Kind: PropertyScalarArray, MaxItems: 1024}
	idxOK := IndexDefinition{Name: "byArr", Properties: []string{"arr"}}
	if res := ValidateDocumentTypeIndices(okDt, []IndexDefinition{idxOK}); !res.IsValid() {
		t.Fatalf("maxItems=1024 should be accepted, got %v", res.Errors)
	}

	tooBig := baseDocType("doc")
	tooBig.Properties["arr"] = PropertySchema{Kind: PropertyScalarArray, MaxItems: 1025}
	if res := ValidateDocumentTypeIndices(tooBig, []IndexDefinition{idxOK}); res.IsValid() {
		t.Fatal("maxItems=1025 should be rejected")
	}

	byteArrTooBig := baseDocType("doc")
	byteArrTooBig.Properties["arr"] = PropertySchema{Kind: PropertyByteArray, MaxItems: 256}
	if res := ValidateDocumentTypeIndices(byteArrTooBig, []IndexDefinition{idxOK}); res.IsValid() {
		t.Fatal("byte array maxItems=256 should be rejected (limit is 255)")
	}
}

func TestValidateIndexOnSystemID(t *testing.T) {
	dt := baseDocType("doc")
	idx := IndexDefinition{Name: "byID", Properties: []string{systemPropertyID}}
	result := ValidateDocumentTypeIndices(dt, []IndexDefinition{idx})
	if result.IsValid() {
		t.Fatal("expected IndexOnSystemID error")
	}
}

func TestValidateUndefinedIndexPropertyShortCircuits(t *testing.T) {
	dt := baseDocType("doc")
	idx := IndexDefinition{Name: "byGhost", Properties: []string{"ghost"}}
	result := ValidateDocumentTypeIndices(dt, []IndexDefinition{idx})
	if len(result.Errors) != 1 {
		t.Fatalf("expected exactly one UndefinedIndexProperty error, got %v", result.Errors)
	}
	ce := result.Errors[0].(*ConsensusError)
	if ce.Code != "UndefinedIndexProperty" {
		t.Fatalf("expected UndefinedIndexProperty, got %s", ce.Code)
	}
}

func TestValidateDuplicateIndexDefinition(t *testing.T) {
	dt := baseDocType("doc")
	indices := []IndexDefinition{
		{Name: "i1", Properties: []string{"a"}},
		{Name: "i2", Properties: []string{"a"}},
	}
	result := ValidateDocumentTypeIndices(dt, indices)
	if result.IsValid() {
		t.Fatal("expected DuplicateIndex error for repeated property tuple")
	}
}
