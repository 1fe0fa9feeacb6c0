package core

import "context"

// OpKind is the mutation kind an AtomicTreeOp performs, per §3.
type OpKind uint8

const (
	OpInsert OpKind = iota
	OpInsertIfAbsent
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "insert"
	case OpInsertIfAbsent:
		return "insert-if-absent"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// CostEstimate annotates an AtomicTreeOp with what C2's fee algebra will
// charge for it: estimated bytes added/removed and estimated
// seek/hash work, expressed as base-op occurrence counts (§4.2).
type CostEstimate struct {
	BytesAdded   uint32
	BytesRemoved uint32
	// RemovedFlags is populated only when BytesRemoved > 0 and carries the
	// flags of the element being removed, so FromTreeOps can attribute the
	// refund to the right owner/epoch.
	RemovedFlags StorageFlags
	BaseOps      map[BaseOp]uint64
}

// AtomicTreeOp is one ordered mutation the backend will perform, per §3.
// A planner lowering always produces a slice of these; ordering within
// the slice is significant and is the planner's responsibility to get
// right, never the backend's.
type AtomicTreeOp struct {
	Path     []string
	Key      []byte
	Element  Element
	Kind     OpKind
	Cost     CostEstimate
	Flags    StorageFlags
	HasFlags bool
}

// Apply issues op against backend under tx, per the OpKind it carries.
// OpInsertIfAbsent surfaces its "already present" outcome as a bool so
// callers (the duplicate-unique-index check in particular) can react
// without treating it as an error.
func (op AtomicTreeOp) Apply(ctx applyContext) (inserted bool, err error) {
	switch op.Kind {
	case OpInsert, OpUpdate:
		return true, op.backend(ctx).Insert(ctx.ctx, op.Path, op.Key, op.Element, ctx.tx)
	case OpInsertIfAbsent:
		return op.backend(ctx).InsertIfNotExists(ctx.ctx, op.Path, op.Key, op.Element, ctx.tx)
	case OpDelete:
		return true, op.backend(ctx).Delete(ctx.ctx, op.Path, op.Key, ctx.tx)
	default:
		return false, ErrGroveDB("unknown op kind")
	}
}

func (op AtomicTreeOp) backend(ctx applyContext) Backend { return ctx.backend }

// applyContext bundles what AtomicTreeOp.Apply needs without forcing
// every call site to repeat (context.Context, Backend, TxHandle).
type applyContext struct {
	ctx     context.Context
	backend Backend
	tx      TxHandle
}

// ApplyBatch runs ops against backend in order under tx, stopping at the
// first error. On a DuplicateUniqueIndex-triggering InsertIfNotExists
// failure the caller (the planner) is expected to translate the "not
// inserted" outcome into that error itself, since only the planner knows
// which op corresponds to which unique index.
func ApplyBatch(ctx context.Context, backend Backend, tx TxHandle, ops []AtomicTreeOp) error {
	for _, op := range ops {
		if _, err := op.Apply(applyContext{ctx: ctx, backend: backend, tx: tx}); err != nil {
			return err
		}
	}
	return nil
}
