package core

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// genesisProperty is the YAML-facing shape of a document-type property
// declaration, matching the subset PropertySchema cares about.
type genesisProperty struct {
	Kind      string `yaml:"kind"`
	MaxLength int    `yaml:"max_length,omitempty"`
	MaxItems  int    `yaml:"max_items,omitempty"`
	Required  bool   `yaml:"required,omitempty"`
}

var genesisPropertyKinds = map[string]PropertyKind{
	"scalar":            PropertyScalar,
	"object":            PropertyObject,
	"byte_array":        PropertyByteArray,
	"scalar_array":      PropertyScalarArray,
	"non_uniform_array": PropertyNonUniformArray,
}

// genesisIndex is the YAML-facing shape of an index declaration.
type genesisIndex struct {
	Name       string   `yaml:"name"`
	Properties []string `yaml:"properties"`
	Unique     bool     `yaml:"unique,omitempty"`
}

// genesisDocumentType is one document type within a genesis contract
// fixture.
type genesisDocumentType struct {
	Name       string                     `yaml:"name"`
	Properties map[string]genesisProperty `yaml:"properties"`
	Indices    []genesisIndex             `yaml:"indices"`
}

// GenesisContract describes one data contract to register at bootstrap,
// in the YAML shape LoadGenesisFile parses (used by the apply-contract
// command and by test fixtures alike).
type GenesisContract struct {
	Body          string                `yaml:"body"`
	DocumentTypes []genesisDocumentType `yaml:"document_types"`
}

// GenesisDocument is the top-level shape of a genesis fixture file: a
// list of contracts to apply in order, mirroring the teacher's
// nodes-list YAML shape for test-network bootstrap.
type GenesisDocument struct {
	Contracts []GenesisContract `yaml:"contracts"`
	// FeeMultiplier is epoch 0's fee_multiplier, priced against every
	// genesis contract write. Defaults to 1 when unset, matching
	// cmd/config's fees.default_multiplier.
	FeeMultiplier uint64 `yaml:"fee_multiplier,omitempty"`
}

// LoadGenesisFile reads and parses a genesis fixture from path.
func LoadGenesisFile(path string) (GenesisDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return GenesisDocument{}, fmt.Errorf("read genesis file: %w", err)
	}
	var doc GenesisDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return GenesisDocument{}, fmt.Errorf("parse genesis file: %w", err)
	}
	return doc, nil
}

// toContractDocumentTypes converts the YAML fixture shape into the
// planner's ContractDocumentType, so the fixture and the planner never
// need two copies of the index-validation constants.
func (d GenesisContract) toContractDocumentTypes() ([]ContractDocumentType, error) {
	out := make([]ContractDocumentType, 0, len(d.DocumentTypes))
	for _, dt := range d.DocumentTypes {
		schema := DocumentTypeSchema{
			Name:       dt.Name,
			Properties: make(map[string]PropertySchema, len(dt.Properties)),
			Required:   make(map[string]bool, len(dt.Properties)),
		}
		for name, prop := range dt.Properties {
			kind, ok := genesisPropertyKinds[prop.Kind]
			if !ok {
				return nil, fmt.Errorf("document type %q: unknown property kind %q for %q", dt.Name, prop.Kind, name)
			}
			schema.Properties[name] = PropertySchema{Kind: kind, MaxLength: prop.MaxLength, MaxItems: prop.MaxItems}
			if prop.Required {
				schema.Required[name] = true
			}
		}

		indices := make([]IndexDefinition, 0, len(dt.Indices))
		for _, idx := range dt.Indices {
			indices = append(indices, IndexDefinition{Name: idx.Name, Properties: idx.Properties, Unique: idx.Unique})
		}

		out = append(out, ContractDocumentType{Schema: schema, Indices: indices})
	}
	return out, nil
}

// ApplyGenesis lowers and applies every contract in doc, in file order,
// through planner. It is the bootstrap path a host process calls once
// before accepting any other intent, giving C4 a concrete entry point
// for the fixture contracts `spec.md` assumes already exist.
func ApplyGenesis(ctx context.Context, planner *Planner, backend Backend, tx TxHandle, doc GenesisDocument) ([]ApplyContractResult, error) {
	multiplier := doc.FeeMultiplier
	if multiplier == 0 {
		multiplier = 1
	}

	results := make([]ApplyContractResult, 0, len(doc.Contracts))
	for i, contract := range doc.Contracts {
		docTypes, err := contract.toContractDocumentTypes()
		if err != nil {
			return results, fmt.Errorf("genesis contract %d: %w", i, err)
		}
		result, err := planner.LowerApplyContract(ctx, backend, tx, ApplyContractIntent{
			Body:          []byte(contract.Body),
			DocumentTypes: docTypes,
			Flags:         NewSingleEpochFlags(0),
		}, multiplier)
		if err != nil {
			return results, fmt.Errorf("genesis contract %d: %w", i, err)
		}
		results = append(results, result)
	}
	return results, nil
}
