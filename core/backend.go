package core

import "context"

// ElementKind tags the variant carried by an Element, per §6.
type ElementKind uint8

const (
	ElementKindItem ElementKind = iota
	ElementKindTree
	ElementKindReference
)

// Element is the tagged value stored at a backend path/key pair: a raw
// byte Item, a Tree marking an internal subtree root, or a Reference
// pointing at another path. Item and Tree may carry C1 storage flags;
// Reference never does.
type Element struct {
	Kind          ElementKind
	ItemBytes     []byte
	ReferencePath []string
	Flags         StorageFlags
	HasFlags      bool
}

// NewItemElement builds an Item element carrying the given flags.
func NewItemElement(value []byte, flags StorageFlags) Element {
	return Element{Kind: ElementKindItem, ItemBytes: value, Flags: flags, HasFlags: true}
}

// NewTreeElement builds an empty Tree (subtree root marker) element.
func NewTreeElement(flags StorageFlags) Element {
	return Element{Kind: ElementKindTree, Flags: flags, HasFlags: true}
}

// NewReferenceElement builds a Reference element pointing at path.
func NewReferenceElement(path []string) Element {
	return Element{Kind: ElementKindReference, ReferencePath: path}
}

// IndexQueryTriple is one (property, operator, value) clause of a
// PathQuery, per §9's "eager list of triples" redesign note.
type IndexQueryTriple struct {
	Property string
	Operator string
	Value    any
}

// PathQuery describes a read against the backend: the subtree path to
// search, an ordered list of index-clause triples, and an optional
// result-count limit.
type PathQuery struct {
	Path    []string
	Clauses []IndexQueryTriple
	Limit   int
}

// QueryResult is one matched element together with the key it was found
// under.
type QueryResult struct {
	Key     []byte
	Element Element
}

// TxHandle is the opaque transaction token backend operations accept; a
// nil handle means "no transaction" (direct, uncommitted reads per the
// concurrency model of §5).
type TxHandle interface {
	txMarker()
}

// Backend is the narrow contract C4/C5 issue operations against, per
// §6. The core never implements this itself — callers supply a real
// authenticated tree or, in tests, backend_memory.go's InMemoryBackend.
type Backend interface {
	Insert(ctx context.Context, path []string, key []byte, element Element, tx TxHandle) error
	InsertIfNotExists(ctx context.Context, path []string, key []byte, element Element, tx TxHandle) (inserted bool, err error)
	Get(ctx context.Context, path []string, key []byte, tx TxHandle) (Element, error)
	Delete(ctx context.Context, path []string, key []byte, tx TxHandle) error

	PutAux(ctx context.Context, key []byte, value []byte, tx TxHandle) error
	GetAux(ctx context.Context, key []byte, tx TxHandle) ([]byte, error)
	DeleteAux(ctx context.Context, key []byte, tx TxHandle) error

	Query(ctx context.Context, q PathQuery, tx TxHandle) (results []QueryResult, skipped int, err error)
	ProveQuery(ctx context.Context, q PathQuery, tx TxHandle) ([]byte, error)
	ProveQueryMany(ctx context.Context, qs []PathQuery, tx TxHandle) ([]byte, error)

	RootHash(ctx context.Context, tx TxHandle) ([]byte, error)

	StartTransaction(ctx context.Context) (TxHandle, error)
	CommitTransaction(ctx context.Context, tx TxHandle) error
	RollbackTransaction(ctx context.Context, tx TxHandle) error
	Flush(ctx context.Context) error
}
