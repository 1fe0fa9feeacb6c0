package core

import "github.com/holiman/uint256"

// BaseOp is a closed enumeration of primitive costed actions the planner
// may charge for. Each has a constant per-occurrence credit cost; see
// baseOpCost.
type BaseOp uint8

const (
	BaseOpHash BaseOp = iota
	BaseOpCompare
	BaseOpRead
	BaseOpWriteByte
	BaseOpSeek
)

// baseOpCost is the constant credit cost of a single occurrence of op.
// Values are nominal — the specification fixes the algebra, not the
// pricing table, so these are the core's own defaults and may be
// overridden by callers that build a FeeResult via FromTreeOps instead.
var baseOpCost = map[BaseOp]uint64{
	BaseOpHash:      240,
	BaseOpCompare:   4,
	BaseOpRead:      1,
	BaseOpWriteByte: 1,
	BaseOpSeek:      15,
}

// FeeResult is the additive fee-result algebra of §3/§4.2: storage and
// processing credits consumed by an operation, plus the refundable bytes
// it freed, attributed to the owning identity and epoch that originally
// paid for them.
type FeeResult struct {
	StorageFee                 uint64
	ProcessingFee               uint64
	RemovedBytesFromIdentities map[Identifier]map[EpochIndex]uint32
	RemovedBytesFromSystem     uint32
}

// ZeroFeeResult returns the additive identity.
func ZeroFeeResult() FeeResult {
	return FeeResult{}
}

func addU64(field string, a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow(field)
	}
	return sum, nil
}

func addU32(field string, a, b uint32) (uint32, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow(field)
	}
	return sum, nil
}

// Add returns f + other per the componentwise, overflow-hard-error
// algebra of §4.2. Neither f nor other is mutated.
func (f FeeResult) Add(other FeeResult) (FeeResult, error) {
	storageFee, err := addU64("storage_fee", f.StorageFee, other.StorageFee)
	if err != nil {
		return FeeResult{}, err
	}
	processingFee, err := addU64("processing_fee", f.ProcessingFee, other.ProcessingFee)
	if err != nil {
		return FeeResult{}, err
	}
	removedFromSystem, err := addU32("removed_bytes_from_system", f.RemovedBytesFromSystem, other.RemovedBytesFromSystem)
	if err != nil {
		return FeeResult{}, err
	}

	merged := make(map[Identifier]map[EpochIndex]uint32, len(f.RemovedBytesFromIdentities))
	for owner, epochs := range f.RemovedBytesFromIdentities {
		inner := make(map[EpochIndex]uint32, len(epochs))
		for epoch, n := range epochs {
			inner[epoch] = n
		}
		merged[owner] = inner
	}
	for owner, epochs := range other.RemovedBytesFromIdentities {
		inner, ok := merged[owner]
		if !ok {
			inner = make(map[EpochIndex]uint32, len(epochs))
			merged[owner] = inner
		}
		for epoch, n := range epochs {
			combined, err := addU32("removed_bytes_from_identities", inner[epoch], n)
			if err != nil {
				return FeeResult{}, err
			}
			inner[epoch] = combined
		}
	}

	return FeeResult{
		StorageFee:                 storageFee,
		ProcessingFee:              processingFee,
		RemovedBytesFromIdentities: merged,
		RemovedBytesFromSystem:     removedFromSystem,
	}, nil
}

// FromBaseOps computes Σ cost(op) × count for the given occurrence counts,
// using uint256 to detect overflow of the intermediate product before it
// is narrowed back to a credit total; rejects overflow with Overflow.
func FromBaseOps(counts map[BaseOp]uint64) (FeeResult, error) {
	total := new(uint256.Int)
	for op, count := range counts {
		cost, ok := baseOpCost[op]
		if !ok {
			continue
		}
		product := new(uint256.Int).Mul(uint256.NewInt(cost), uint256.NewInt(count))
		var overflowed bool
		total, overflowed = total.AddOverflow(total, product)
		if overflowed || !total.IsUint64() {
			return FeeResult{}, ErrOverflow("processing_fee")
		}
	}
	return FeeResult{ProcessingFee: total.Uint64()}, nil
}

// RemovedBytes describes bytes a single atomic tree op freed, annotated
// with the flags that were attached to the removed element so the
// refund can be attributed correctly.
type RemovedBytes struct {
	Bytes uint32
	Flags StorageFlags
}

// TreeOpCost is what an AtomicTreeOp's cost estimate contributes to
// FromTreeOps: processing work, bytes added (charged against the
// operation's own epoch), and bytes removed (refunded per their own
// flags' attribution).
type TreeOpCost struct {
	ProcessingEstimate uint64
	BytesAdded         uint32
	BytesRemoved       []RemovedBytes
}

// PerByteStorageCredit is the number of credits charged per byte added,
// before the epoch's fee multiplier is applied.
const PerByteStorageCredit = 1

// FromTreeOps implements §4.2's from_tree_ops: it sums processing
// estimates, prices added bytes at perByteCredit × multiplier, and
// partitions removed bytes by the owner recorded in their storage flags.
func FromTreeOps(costs []TreeOpCost, multiplier uint64, perByteCredit uint64) (FeeResult, error) {
	result := ZeroFeeResult()
	for _, cost := range costs {
		storagePrice := new(uint256.Int).Mul(
			new(uint256.Int).Mul(uint256.NewInt(uint64(cost.BytesAdded)), uint256.NewInt(perByteCredit)),
			uint256.NewInt(multiplier),
		)
		if !storagePrice.IsUint64() {
			return FeeResult{}, ErrOverflow("storage_fee")
		}

		delta := FeeResult{
			ProcessingFee: cost.ProcessingEstimate,
			StorageFee:    storagePrice.Uint64(),
		}
		for _, removed := range cost.BytesRemoved {
			if removed.Flags.HasOwner() {
				perIdentity := map[Identifier]map[EpochIndex]uint32{
					removed.Flags.OwnerID: {removed.Flags.BaseEpoch: removed.Bytes},
				}
				var err error
				delta, err = delta.Add(FeeResult{RemovedBytesFromIdentities: perIdentity})
				if err != nil {
					return FeeResult{}, err
				}
			} else {
				sum, err := addU32("removed_bytes_from_system", delta.RemovedBytesFromSystem, removed.Bytes)
				if err != nil {
					return FeeResult{}, err
				}
				delta.RemovedBytesFromSystem = sum
			}
		}

		var err error
		result, err = result.Add(delta)
		if err != nil {
			return FeeResult{}, err
		}
	}
	return result, nil
}

// treeOpCost converts one AtomicTreeOp's attached CostEstimate into the
// TreeOpCost shape FromTreeOps consumes, pricing its base-op occurrence
// counts through FromBaseOps.
func treeOpCost(op AtomicTreeOp) (TreeOpCost, error) {
	processing, err := FromBaseOps(op.Cost.BaseOps)
	if err != nil {
		return TreeOpCost{}, err
	}
	cost := TreeOpCost{
		ProcessingEstimate: processing.ProcessingFee,
		BytesAdded:         op.Cost.BytesAdded,
	}
	if op.Cost.BytesRemoved > 0 {
		cost.BytesRemoved = []RemovedBytes{{Bytes: op.Cost.BytesRemoved, Flags: op.Cost.RemovedFlags}}
	}
	return cost, nil
}

// FeeResultForOps prices a lowered op batch through FromTreeOps: this is
// the call site §2's data flow describes as "C4 consumes the produced
// cost records through C2". LowerApplyContract calls this on its own
// output before returning; the other Lower* planner methods return
// their op batch without pricing it. multiplier is the
// issuing epoch's fee_multiplier (§4.3); perByteCredit is the
// configured per-byte storage credit (§4.2, config-tunable via
// Planner.perByteCredit).
func FeeResultForOps(ops []AtomicTreeOp, multiplier uint64, perByteCredit uint64) (FeeResult, error) {
	costs := make([]TreeOpCost, len(ops))
	for i, op := range ops {
		cost, err := treeOpCost(op)
		if err != nil {
			return FeeResult{}, err
		}
		costs[i] = cost
	}
	return FromTreeOps(costs, multiplier, perByteCredit)
}
