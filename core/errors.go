package core

import "fmt"

// ErrorCategory groups caller-visible failures the way §7 of the
// specification taxonomy does: Basic, State, Fee, Storage, NonConsensus.
type ErrorCategory uint8

const (
	CategoryBasic ErrorCategory = iota
	CategoryState
	CategoryFee
	CategoryStorage
	CategoryNonConsensus
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryBasic:
		return "Basic"
	case CategoryState:
		return "State"
	case CategoryFee:
		return "Fee"
	case CategoryStorage:
		return "Storage"
	case CategoryNonConsensus:
		return "NonConsensus"
	default:
		return "Unknown"
	}
}

// ConsensusError is a single tagged error value plus a human-readable
// message (§7 "User-visible behaviour"). Fields carries whatever
// structured context a specific code needs (document id, duplicating
// properties, the field that overflowed, ...).
type ConsensusError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Fields   map[string]any
}

func (e *ConsensusError) Error() string {
	return fmt.Sprintf("%s/%s: %s", e.Category, e.Code, e.Message)
}

func newConsensusError(cat ErrorCategory, code, msg string, fields map[string]any) *ConsensusError {
	return &ConsensusError{Category: cat, Code: code, Message: msg, Fields: fields}
}

// --- C1 storage-flag codec errors -----------------------------------------

func ErrWrongSize(context string, got int) *ConsensusError {
	return newConsensusError(CategoryBasic, "WrongSize",
		fmt.Sprintf("%s: wrong buffer size (%d bytes)", context, got), nil)
}

func ErrUnknownTag(tag byte) *ConsensusError {
	return newConsensusError(CategoryBasic, "UnknownTag",
		fmt.Sprintf("unknown storage flags tag %d", tag), map[string]any{"tag": tag})
}

func ErrVarintTruncated() *ConsensusError {
	return newConsensusError(CategoryBasic, "VarintTruncated", "varint truncated", nil)
}

func ErrTrailingBytes(n int) *ConsensusError {
	return newConsensusError(CategoryBasic, "TrailingBytes",
		fmt.Sprintf("%d trailing bytes after decoding", n), map[string]any{"trailing": n})
}

// --- C2 fee algebra errors --------------------------------------------------

func ErrOverflow(field string) *ConsensusError {
	return newConsensusError(CategoryFee, "Overflow",
		fmt.Sprintf("overflow accumulating %s", field), map[string]any{"field": field})
}

// --- C3 epoch pool errors ---------------------------------------------------

func ErrCorruptedItemLength(field string) *ConsensusError {
	return newConsensusError(CategoryFee, "CorruptedItemLength",
		fmt.Sprintf("%s item has an invalid length", field), map[string]any{"field": field})
}

func ErrCorruptedNotItem(field string) *ConsensusError {
	return newConsensusError(CategoryFee, "CorruptedNotItem",
		fmt.Sprintf("%s is not an Item element", field), map[string]any{"field": field})
}

// --- C4 planner / index-validation errors -----------------------------------

func ErrDuplicateUniqueIndex(documentID Identifier, props []string) *ConsensusError {
	return newConsensusError(CategoryState, "DuplicateUniqueIndex",
		fmt.Sprintf("document %s duplicates a unique index", documentID.Hex()),
		map[string]any{"document_id": documentID, "duplicating_properties": props})
}

func ErrNotFound(what string) *ConsensusError {
	return newConsensusError(CategoryState, "NotFound", fmt.Sprintf("%s not found", what), nil)
}

func ErrUndefinedIndexProperty(docType, prop string) *ConsensusError {
	return newConsensusError(CategoryBasic, "UndefinedIndexProperty",
		fmt.Sprintf("index property %q is not defined on document type %q", prop, docType),
		map[string]any{"document_type": docType, "property": prop})
}

func ErrInvalidCompoundIndex(docType, indexName string) *ConsensusError {
	return newConsensusError(CategoryBasic, "InvalidCompoundIndex",
		fmt.Sprintf("compound index %q on %q must be wholly-required or wholly-optional", indexName, docType),
		map[string]any{"document_type": docType, "index_definition": indexName})
}

func ErrDuplicateIndex(docType, indexName string) *ConsensusError {
	return newConsensusError(CategoryBasic, "DuplicateIndex",
		fmt.Sprintf("index %q duplicates an existing index on %q", indexName, docType),
		map[string]any{"document_type": docType, "index_name": indexName})
}

func ErrInvalidIndexedPropertyConstraint(field string, got, max int) *ConsensusError {
	return newConsensusError(CategoryBasic, "InvalidIndexedPropertyConstraint",
		fmt.Sprintf("%s constraint %d exceeds maximum %d", field, got, max),
		map[string]any{"field": field, "value": got, "max": max})
}

func ErrTooManyUniqueIndices(docType string, count, max int) *ConsensusError {
	return newConsensusError(CategoryBasic, "TooManyUniqueIndices",
		fmt.Sprintf("document type %q declares %d unique indices, maximum is %d", docType, count, max),
		map[string]any{"document_type": docType, "count": count, "max": max})
}

func ErrIndexOnSystemID(docType string) *ConsensusError {
	return newConsensusError(CategoryBasic, "IndexOnSystemID",
		fmt.Sprintf("document type %q indexes the system property $id", docType),
		map[string]any{"document_type": docType})
}

func ErrIndexedObjectProperty(docType, prop string) *ConsensusError {
	return newConsensusError(CategoryBasic, "InvalidIndexedPropertyConstraint",
		fmt.Sprintf("indexed property %q on %q is of object type", prop, docType),
		map[string]any{"document_type": docType, "property": prop})
}

// --- C5 transaction multiplexer errors --------------------------------------

var (
	ErrUnknownTransaction = newConsensusError(CategoryNonConsensus, "UnknownTransaction", "unknown transaction id", nil)
	ErrWorkerClosed       = newConsensusError(CategoryNonConsensus, "WorkerClosed", "worker is closed", nil)
	ErrWorkerFailed       = newConsensusError(CategoryNonConsensus, "WorkerFailed", "worker panicked and was terminated", nil)
	ErrAlreadyFinalized   = newConsensusError(CategoryNonConsensus, "AlreadyFinalized", "transaction already committed, rolled back or aborted", nil)
)

// --- C6 / storage-backend errors -------------------------------------------

func ErrGroveDB(msg string) *ConsensusError {
	return newConsensusError(CategoryStorage, "GroveDB", msg, nil)
}

func ErrCorruptedElementFlags(msg string) *ConsensusError {
	return newConsensusError(CategoryStorage, "CorruptedElementFlags", msg, nil)
}
