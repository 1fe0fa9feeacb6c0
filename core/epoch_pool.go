package core

import (
	"context"
	"encoding/binary"

	"github.com/sirupsen/logrus"
)

// Fixed keys within one epoch's subtree, per §4.3.
var (
	epochKeyStartTime        = []byte("st")
	epochKeyStartBlockHeight = []byte("sh")
	epochKeyProcessingFee    = []byte("pf")
	epochKeyStorageFee       = []byte("sf")
	epochKeyFeeMultiplier    = []byte("fm")
	epochKeyProposers        = "proposers"
)

const feePoolsRoot = "fee_pools"

// EpochKey returns the big-endian 2-byte subtree key for index, per §4.3
// and §9 (the specification resolves the source's big/little-endian
// inconsistency in favour of big-endian so range queries over the
// fee-pools subtree sort numerically).
func EpochKey(index EpochIndex) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(index))
	return b[:]
}

func epochPath(index EpochIndex) []string {
	return []string{feePoolsRoot, string(EpochKey(index))}
}

// EpochPool is the read/write contract over one epoch's on-tree
// accounting record (§3, §4.3). It does not own a transaction; every
// method takes the caller's handle so epoch lifecycle calls can
// participate in a larger batch issued by the operation planner or the
// consensus driver hooks.
type EpochPool struct {
	backend Backend
	log     *logrus.Entry
}

// NewEpochPool wires an EpochPool against backend.
func NewEpochPool(backend Backend) *EpochPool {
	return &EpochPool{backend: backend, log: logrus.WithField("component", "epoch_pool")}
}

func putU64Item(ctx context.Context, b Backend, path []string, key []byte, v uint64, tx TxHandle) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return b.Insert(ctx, path, key, NewItemElement(buf, NewSingleEpochFlags(0)), tx)
}

func getU64Item(ctx context.Context, b Backend, path []string, key []byte, field string, tx TxHandle) (uint64, error) {
	el, err := b.Get(ctx, path, key, tx)
	if err != nil {
		return 0, ErrNotFound(field)
	}
	if el.Kind != ElementKindItem {
		return 0, ErrCorruptedNotItem(field)
	}
	if len(el.ItemBytes) != 8 {
		return 0, ErrCorruptedItemLength(field)
	}
	return binary.BigEndian.Uint64(el.ItemBytes), nil
}

// InitEmpty creates the epoch subtree with storage_fee = 0, the only
// field defined in the empty state (§4.3 lifecycle table).
func (p *EpochPool) InitEmpty(ctx context.Context, index EpochIndex, tx TxHandle) error {
	path := epochPath(index)
	if err := p.backend.Insert(ctx, []string{feePoolsRoot}, EpochKey(index), NewTreeElement(NewSingleEpochFlags(0)), tx); err != nil {
		return err
	}
	if err := putU64Item(ctx, p.backend, path, epochKeyStorageFee, 0, tx); err != nil {
		return err
	}
	p.log.WithField("epoch", index).Debug("initialised empty epoch")
	return nil
}

// InitCurrent transitions an empty epoch to current: §4.3 requires
// start_block_height, start_time, processing_fee = 0, fee_multiplier
// and an empty proposers subtree to all be written together.
func (p *EpochPool) InitCurrent(ctx context.Context, index EpochIndex, startTimeMillis int64, startHeight BlockHeight, feeMultiplier uint64, tx TxHandle) error {
	path := epochPath(index)
	if err := putU64Item(ctx, p.backend, path, epochKeyStartBlockHeight, uint64(startHeight), tx); err != nil {
		return err
	}
	if err := putU64Item(ctx, p.backend, path, epochKeyStartTime, uint64(startTimeMillis), tx); err != nil {
		return err
	}
	if err := putU64Item(ctx, p.backend, path, epochKeyProcessingFee, 0, tx); err != nil {
		return err
	}
	if err := putU64Item(ctx, p.backend, path, epochKeyFeeMultiplier, feeMultiplier, tx); err != nil {
		return err
	}
	if err := p.backend.Insert(ctx, path, []byte(epochKeyProposers), NewTreeElement(NewSingleEpochFlags(index)), tx); err != nil {
		return err
	}
	p.log.WithFields(logrus.Fields{"epoch": index, "fee_multiplier": feeMultiplier}).Info("epoch entered current state")
	return nil
}

// MarkPaid transitions a current epoch to paid: deletes the proposers
// subtree and both fee fields, retaining the record as a tombstone of
// its own index (§4.3).
func (p *EpochPool) MarkPaid(ctx context.Context, index EpochIndex, tx TxHandle) error {
	path := epochPath(index)
	if err := p.backend.Delete(ctx, path, []byte(epochKeyProposers), tx); err != nil {
		return err
	}
	if err := p.backend.Delete(ctx, path, epochKeyStorageFee, tx); err != nil {
		return err
	}
	if err := p.backend.Delete(ctx, path, epochKeyProcessingFee, tx); err != nil {
		return err
	}
	p.log.WithField("epoch", index).Info("epoch marked paid")
	return nil
}

// GetStorageFee is defined while the epoch is empty or current (§4.3
// invariant); once paid, reads return NotFound.
func (p *EpochPool) GetStorageFee(ctx context.Context, index EpochIndex, tx TxHandle) (uint64, error) {
	return getU64Item(ctx, p.backend, epochPath(index), epochKeyStorageFee, "storage_fee", tx)
}

// GetProcessingFee is defined only while the epoch is current.
func (p *EpochPool) GetProcessingFee(ctx context.Context, index EpochIndex, tx TxHandle) (uint64, error) {
	return getU64Item(ctx, p.backend, epochPath(index), epochKeyProcessingFee, "processing_fee", tx)
}

// GetFeeMultiplier is defined once the epoch is current; MarkPaid does
// not delete it, so it stays readable in the paid state.
func (p *EpochPool) GetFeeMultiplier(ctx context.Context, index EpochIndex, tx TxHandle) (uint64, error) {
	return getU64Item(ctx, p.backend, epochPath(index), epochKeyFeeMultiplier, "fee_multiplier", tx)
}

// GetStartTime is defined only while the epoch is current (§4.3
// invariant; it survives into the paid/tombstone state per scenario 5 of
// §8 since MarkPaid does not delete it).
func (p *EpochPool) GetStartTime(ctx context.Context, index EpochIndex, tx TxHandle) (int64, error) {
	v, err := getU64Item(ctx, p.backend, epochPath(index), epochKeyStartTime, "start_time", tx)
	return int64(v), err
}

// GetStartBlockHeight mirrors GetStartTime's availability.
func (p *EpochPool) GetStartBlockHeight(ctx context.Context, index EpochIndex, tx TxHandle) (BlockHeight, error) {
	v, err := getU64Item(ctx, p.backend, epochPath(index), epochKeyStartBlockHeight, "start_block_height", tx)
	return BlockHeight(v), err
}

// AddProposerBlock increments a proposer's tallied block count within the
// current epoch's proposers subtree.
func (p *EpochPool) AddProposerBlock(ctx context.Context, index EpochIndex, proposer Identifier, tx TxHandle) error {
	path := append(append([]string{}, epochPath(index)...), epochKeyProposers)
	count, err := getU64Item(ctx, p.backend, path, proposer.Bytes(), "proposer_block_count", tx)
	if err != nil {
		count = 0
	}
	return putU64Item(ctx, p.backend, path, proposer.Bytes(), count+1, tx)
}

// AddStorageFee adds amount to the current epoch's accumulated
// storage_fee (§3/§4.3: "accumulated storage fee ... for the epoch").
// Like AddProposerBlock, this is a read-increment-write over the
// existing field; it is only meaningful while the epoch is current.
func (p *EpochPool) AddStorageFee(ctx context.Context, index EpochIndex, amount uint64, tx TxHandle) error {
	path := epochPath(index)
	current, err := getU64Item(ctx, p.backend, path, epochKeyStorageFee, "storage_fee", tx)
	if err != nil {
		return err
	}
	next, err := addU64("storage_fee", current, amount)
	if err != nil {
		return err
	}
	return putU64Item(ctx, p.backend, path, epochKeyStorageFee, next, tx)
}

// AddProcessingFee adds amount to the current epoch's accumulated
// processing_fee, mirroring AddStorageFee.
func (p *EpochPool) AddProcessingFee(ctx context.Context, index EpochIndex, amount uint64, tx TxHandle) error {
	path := epochPath(index)
	current, err := getU64Item(ctx, p.backend, path, epochKeyProcessingFee, "processing_fee", tx)
	if err != nil {
		return err
	}
	next, err := addU64("processing_fee", current, amount)
	if err != nil {
		return err
	}
	return putU64Item(ctx, p.backend, path, epochKeyProcessingFee, next, tx)
}
