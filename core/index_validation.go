package core

import (
	"fmt"
	"sort"
	"strings"
)

const (
	maxUniqueIndicesPerDocumentType = 3
	maxIndexedStringLength          = 63
	maxByteArrayIndexItems          = 255
	maxScalarArrayIndexItems        = 1024
)

// system index properties, per §4.4.
const (
	systemPropertyID        = "$id"
	systemPropertyOwnerID   = "$ownerId"
	systemPropertyCreatedAt = "$createdAt"
	systemPropertyUpdatedAt = "$updatedAt"
)

var systemIndexProperties = map[string]bool{
	systemPropertyOwnerID:   true,
	systemPropertyCreatedAt: true,
	systemPropertyUpdatedAt: true,
}

// PropertyKind classifies a schema-defined document property for the
// purposes of index validation (§4.4).
type PropertyKind uint8

const (
	PropertyScalar PropertyKind = iota
	PropertyObject
	PropertyByteArray
	PropertyScalarArray
	PropertyNonUniformArray
)

// PropertySchema is the subset of a document type's JSON-Schema-like
// property definition the index validator needs.
type PropertySchema struct {
	Kind      PropertyKind
	MaxLength int // for string-typed scalars
	MaxItems  int // for array-typed properties; 0 means undeclared
}

// DocumentTypeSchema is the subset of a data contract's document type
// definition the index validator and planner consult.
type DocumentTypeSchema struct {
	Name       string
	Properties map[string]PropertySchema
	Required   map[string]bool
}

// IndexDefinition is one index declared on a document type: an ordered
// list of property names (compound indices list more than one) plus
// whether the index enforces uniqueness.
type IndexDefinition struct {
	Name       string
	Properties []string
	Unique     bool
}

func (d IndexDefinition) fingerprint() string {
	return strings.Join(d.Properties, "\x00")
}

// ContractDocumentType bundles one document type's schema with the
// indices declared against it, the unit ValidateContractIndices and the
// ApplyContract lowering both operate over.
type ContractDocumentType struct {
	Schema  DocumentTypeSchema
	Indices []IndexDefinition
}

// ValidateContractIndices enforces every structural constraint of §4.4
// across all document types of a contract, accumulating violations into
// a ValidationResult rather than stopping at the first one — matching
// §9's "generator-like validation accumulation" note, except where the
// source itself short-circuits (an undefined index property aborts
// further per-index checks for that type, since nothing else about the
// index can be checked without it).
func ValidateContractIndices(docTypes []ContractDocumentType) ValidationResult[struct{}] {
	var result ValidationResult[struct{}]
	for _, dt := range docTypes {
		result = result.Merge(validateDocumentTypeIndices(dt.Schema, dt.Indices...))
	}
	return result
}

func validateDocumentTypeIndices(dt DocumentTypeSchema, indices ...IndexDefinition) ValidationResult[struct{}] {
	var result ValidationResult[struct{}]

	uniqueCount := 0
	seenFingerprints := make(map[string]bool)
	seenNames := make(map[string]bool)

	for _, idx := range indices {
		if seenNames[idx.Name] {
			result.Errors = append(result.Errors, ErrDuplicateIndex(dt.Name, idx.Name))
		}
		seenNames[idx.Name] = true

		fp := idx.fingerprint()
		if seenFingerprints[fp] {
			result.Errors = append(result.Errors, ErrDuplicateIndex(dt.Name, idx.Name))
		}
		seenFingerprints[fp] = true

		if idx.Unique {
			uniqueCount++
		}

		single := validateSingleIndex(dt, idx)
		result = result.Merge(single)
		if hasUndefinedIndexProperty(single) {
			break
		}
	}

	if uniqueCount > maxUniqueIndicesPerDocumentType {
		result.Errors = append(result.Errors, ErrTooManyUniqueIndices(dt.Name, uniqueCount, maxUniqueIndicesPerDocumentType))
	}

	return result
}

func validateSingleIndex(dt DocumentTypeSchema, idx IndexDefinition) ValidationResult[struct{}] {
	var result ValidationResult[struct{}]

	requiredCount := 0
	for _, prop := range idx.Properties {
		if prop == systemPropertyID {
			result.Errors = append(result.Errors, ErrIndexOnSystemID(dt.Name))
			continue
		}

		schema, defined := dt.Properties[prop]
		if !defined && !systemIndexProperties[prop] {
			result.Errors = append(result.Errors, ErrUndefinedIndexProperty(dt.Name, prop))
			// Short-circuit the remaining checks: nothing else about the
			// index can be validated without this property's schema (§9).
			return result
		}
		if defined {
			result = result.Merge(validateIndexedProperty(dt.Name, prop, schema))
		}
		if dt.Required[prop] {
			requiredCount++
		}
	}

	if requiredCount != 0 && requiredCount != len(idx.Properties) {
		result.Errors = append(result.Errors, ErrInvalidCompoundIndex(dt.Name, idx.Name))
	}

	return result
}

func hasUndefinedIndexProperty(r ValidationResult[struct{}]) bool {
	for _, err := range r.Errors {
		if ce, ok := err.(*ConsensusError); ok && ce.Code == "UndefinedIndexProperty" {
			return true
		}
	}
	return false
}

func validateIndexedProperty(docType, prop string, schema PropertySchema) ValidationResult[struct{}] {
	var result ValidationResult[struct{}]

	switch schema.Kind {
	case PropertyObject:
		result.Errors = append(result.Errors, ErrIndexedObjectProperty(docType, prop))
	case PropertyNonUniformArray:
		result.Errors = append(result.Errors, ErrInvalidIndexedPropertyConstraint(fmt.Sprintf("%s.items", prop), 0, 0))
	case PropertyByteArray:
		if schema.MaxItems == 0 {
			result.Errors = append(result.Errors, ErrInvalidIndexedPropertyConstraint(fmt.Sprintf("%s.maxItems", prop), 0, maxByteArrayIndexItems))
		} else if schema.MaxItems > maxByteArrayIndexItems {
			result.Errors = append(result.Errors, ErrInvalidIndexedPropertyConstraint(fmt.Sprintf("%s.maxItems", prop), schema.MaxItems, maxByteArrayIndexItems))
		}
	case PropertyScalarArray:
		if schema.MaxItems == 0 {
			result.Errors = append(result.Errors, ErrInvalidIndexedPropertyConstraint(fmt.Sprintf("%s.maxItems", prop), 0, maxScalarArrayIndexItems))
		} else if schema.MaxItems > maxScalarArrayIndexItems {
			result.Errors = append(result.Errors, ErrInvalidIndexedPropertyConstraint(fmt.Sprintf("%s.maxItems", prop), schema.MaxItems, maxScalarArrayIndexItems))
		}
	case PropertyScalar:
		if schema.MaxLength > maxIndexedStringLength {
			result.Errors = append(result.Errors, ErrInvalidIndexedPropertyConstraint(fmt.Sprintf("%s.maxLength", prop), schema.MaxLength, maxIndexedStringLength))
		}
	}

	return result
}

// ValidateDocumentTypeIndices is the exported, per-type entry point used
// by ApplyContract's planning step (one call per document type, indices
// supplied from the contract body being registered).
func ValidateDocumentTypeIndices(dt DocumentTypeSchema, indices []IndexDefinition) ValidationResult[struct{}] {
	return validateDocumentTypeIndices(dt, indices...)
}

// sortedIndexNames is a small helper used by planner_contract.go to make
// index-scaffold creation order deterministic.
func sortedIndexNames(indices []IndexDefinition) []string {
	names := make([]string, 0, len(indices))
	for _, idx := range indices {
		names = append(names, idx.Name)
	}
	sort.Strings(names)
	return names
}
