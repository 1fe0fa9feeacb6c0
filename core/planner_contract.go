package core

import (
	"context"

	"github.com/sirupsen/logrus"
)

const contractsRoot = "contracts"

// ApplyContractIntent is the caller-supplied input to the ApplyContract
// lowering, per §4.4.
type ApplyContractIntent struct {
	Body          []byte
	ContractID    *Identifier // nil recovers the id from Body
	DocumentTypes []ContractDocumentType
	Flags         StorageFlags
}

// ApplyContractResult carries the lowered batch, the fee charged for it
// and the contract id the planner resolved (useful when the caller did
// not supply one).
type ApplyContractResult struct {
	ContractID Identifier
	Ops        []AtomicTreeOp
	Fee        FeeResult
	Inserted   bool // false means this updated an existing contract
}

// Planner lowers C4 intents into ordered AtomicTreeOp batches. It holds
// no state of its own beyond an optional probe cache, the fee-pricing
// constant and an optional external validator; every lowering method
// takes the backend and transaction explicitly so a single Planner can
// serve many concurrent callers through C5's worker.
type Planner struct {
	cache         *ContractCache
	perByteCredit uint64
	validator     Validator
	log           *logrus.Entry
}

// NewPlanner builds a Planner priced at the default per-byte storage
// credit, with no external validator wired in (§1: a validator
// implementation is explicitly out of scope; nil skips step (1) of
// §4.4 entirely rather than failing). cache may be nil, in which case
// every probe goes straight to the backend.
func NewPlanner(cache *ContractCache) *Planner {
	return &Planner{cache: cache, perByteCredit: PerByteStorageCredit, log: logrus.WithField("component", "planner")}
}

// NewPlannerWithFees builds a Planner priced at perByteCredit instead of
// the default, for callers wiring a config-supplied value.
func NewPlannerWithFees(cache *ContractCache, perByteCredit uint64) *Planner {
	p := NewPlanner(cache)
	p.perByteCredit = perByteCredit
	return p
}

// NewPlannerWithValidator builds a Planner that consults validator
// before lowering any intent (§4.4 step (1), §2's "C6 validates the raw
// input → C4 lowers it").
func NewPlannerWithValidator(cache *ContractCache, validator Validator) *Planner {
	p := NewPlanner(cache)
	p.validator = validator
	return p
}

// LowerApplyContract implements §4.4's ApplyContract: validates the raw
// body via C6 (step (1), when a validator is wired), resolves the
// contract id, determines insert vs update by probing the contract
// cache then the contracts subtree, and emits the contract-body write
// followed by one insert-if-absent index-root scaffold per document
// type and, within it, one insert-if-absent scaffold per index in
// sorted name order, so index-tree creation order is deterministic
// regardless of map iteration order upstream. If an intermediate
// subtree (the contracts root itself) does not exist yet, it is
// created first. multiplier is the issuing epoch's fee_multiplier,
// used to price the batch through C2 before returning.
func (p *Planner) LowerApplyContract(ctx context.Context, backend Backend, tx TxHandle, intent ApplyContractIntent, multiplier uint64) (ApplyContractResult, error) {
	if p.validator != nil {
		if validation := p.validator.ValidateContract(intent.Body); !validation.IsValid() {
			return ApplyContractResult{}, validation.Errors[0]
		}
	}

	var contractID Identifier
	if intent.ContractID != nil {
		contractID = *intent.ContractID
	} else {
		derived, err := DeriveContractID(intent.Body)
		if err != nil {
			return ApplyContractResult{}, err
		}
		contractID = derived
	}

	if validation := ValidateContractIndices(intent.DocumentTypes); !validation.IsValid() {
		return ApplyContractResult{}, validation.Errors[0]
	}

	inserted := true
	if p.cache != nil {
		if _, hit := p.cache.GetContract(contractID); hit {
			inserted = false
		}
	}
	if inserted {
		if _, err := backend.Get(ctx, []string{contractsRoot}, contractID.Bytes(), tx); err == nil {
			inserted = false
		}
	}

	var ops []AtomicTreeOp
	ops = append(ops, AtomicTreeOp{
		Path:    []string{},
		Key:     []byte(contractsRoot),
		Element: NewTreeElement(intent.Flags),
		Kind:    OpInsertIfAbsent,
		Cost:    CostEstimate{BaseOps: map[BaseOp]uint64{BaseOpSeek: 1}},
	})
	ops = append(ops, AtomicTreeOp{
		Path:    []string{contractsRoot},
		Key:     contractID.Bytes(),
		Element: NewItemElement(intent.Body, intent.Flags),
		Kind:    OpUpdate,
		Cost:    CostEstimate{BytesAdded: uint32(len(intent.Body)), BaseOps: map[BaseOp]uint64{BaseOpWriteByte: uint64(len(intent.Body)), BaseOpHash: 1}},
	})

	for _, dt := range intent.DocumentTypes {
		ops = append(ops, AtomicTreeOp{
			Path:    []string{contractsRoot, string(contractID.Bytes())},
			Key:     []byte(dt.Schema.Name),
			Element: NewTreeElement(intent.Flags),
			Kind:    OpInsertIfAbsent,
			Cost:    CostEstimate{BaseOps: map[BaseOp]uint64{BaseOpSeek: 1}},
		})

		docTypePath := documentTypePath(contractID, dt.Schema.Name)
		for _, name := range sortedIndexNames(dt.Indices) {
			ops = append(ops, AtomicTreeOp{
				Path:    docTypePath,
				Key:     []byte(name),
				Element: NewTreeElement(intent.Flags),
				Kind:    OpInsertIfAbsent,
				Cost:    CostEstimate{BaseOps: map[BaseOp]uint64{BaseOpSeek: 1}},
			})
		}
	}

	if err := ApplyBatch(ctx, backend, tx, ops); err != nil {
		return ApplyContractResult{}, err
	}

	fee, err := FeeResultForOps(ops, multiplier, p.perByteCredit)
	if err != nil {
		return ApplyContractResult{}, err
	}

	if p.cache != nil {
		p.cache.PutContract(contractID, intent.Body)
		for _, dt := range intent.DocumentTypes {
			p.cache.PutSchema(contractID, dt.Schema.Name, dt.Schema)
		}
	}
	p.log.WithFields(logrus.Fields{"contract_id": contractID, "inserted": inserted}).Info("applied contract")

	return ApplyContractResult{ContractID: contractID, Ops: ops, Fee: fee, Inserted: inserted}, nil
}
