package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestApplyGenesisFromYAML(t *testing.T) {
	ctx := context.Background()
	backend := NewInMemoryBackend()
	planner := NewPlanner(nil)

	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.yaml")
	contents := `
contracts:
  - body: "note-taking contract"
    document_types:
      - name: note
        properties:
          a:
            kind: scalar
            max_length: 10
        indices:
          - name: byA
            properties: ["a"]
            unique: true
`
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	doc, err := LoadGenesisFile(path)
	if err != nil {
		t.Fatalf("LoadGenesisFile: %v", err)
	}
	if len(doc.Contracts) != 1 {
		t.Fatalf("expected 1 contract, got %d", len(doc.Contracts))
	}

	results, err := ApplyGenesis(ctx, planner, backend, nil, doc)
	if err != nil {
		t.Fatalf("ApplyGenesis: %v", err)
	}
	if len(results) != 1 || !results[0].Inserted {
		t.Fatalf("expected one inserted contract, got %v", results)
	}

	if _, err := backend.Get(ctx, []string{contractsRoot}, results[0].ContractID.Bytes(), nil); err != nil {
		t.Fatalf("contract body missing after genesis apply: %v", err)
	}
}

func TestApplyGenesisUnknownPropertyKind(t *testing.T) {
	ctx := context.Background()
	backend := NewInMemoryBackend()
	planner := NewPlanner(nil)

	doc := GenesisDocument{Contracts: []GenesisContract{{
		Body: "x",
		DocumentTypes: []genesisDocumentType{{
			Name:       "note",
			Properties: map[string]genesisProperty{"a": {Kind: "bogus"}},
		}},
	}}}
	if _, err := ApplyGenesis(ctx, planner, backend, nil, doc); err == nil {
		t.Fatal("expected an error for an unknown property kind")
	}
}
