package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ConsensusDriver binds the three consensus-boundary hooks to C3's epoch
// lifecycle transitions. It is intentionally thin: the host runtime decides
// when chain genesis happens and when a block begins or ends, and merely
// calls through here with a serialised request, getting a serialised
// response back.
type ConsensusDriver struct {
	mu    sync.Mutex
	pool  *EpochPool
	epoch EpochIndex
}

// NewConsensusDriver wires a driver over an already-constructed epoch pool.
func NewConsensusDriver(pool *EpochPool) *ConsensusDriver {
	return &ConsensusDriver{pool: pool}
}

// InitChainRequest carries genesis parameters for the first epoch.
type InitChainRequest struct {
	GenesisTimeMillis int64       `json:"genesis_time_millis"`
	GenesisHeight     BlockHeight `json:"genesis_height"`
	FeeMultiplier     uint64      `json:"fee_multiplier"`
}

// InitChainResponse reports the epoch the chain started in.
type InitChainResponse struct {
	Epoch EpochIndex `json:"epoch"`
}

// InitChain seeds epoch 0 as the current epoch. Called exactly once, at
// genesis, before any block is processed.
func (d *ConsensusDriver) InitChain(ctx context.Context, tx TxHandle, raw []byte) ([]byte, error) {
	var req InitChainRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("init_chain: decode request: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.pool.InitEmpty(ctx, 0, tx); err != nil {
		return nil, err
	}
	if err := d.pool.InitCurrent(ctx, 0, req.GenesisTimeMillis, req.GenesisHeight, req.FeeMultiplier, tx); err != nil {
		return nil, err
	}
	d.epoch = 0
	return json.Marshal(InitChainResponse{Epoch: d.epoch})
}

// BlockBeginRequest carries the height and time of the block about to run.
type BlockBeginRequest struct {
	Height            BlockHeight `json:"height"`
	TimeMillis        int64       `json:"time_millis"`
	Proposer          Identifier  `json:"proposer"`
	EpochAdvanced     bool        `json:"epoch_advanced"`
	NextFeeMultiplier uint64      `json:"next_fee_multiplier,omitempty"`
}

// BlockBeginResponse reports the epoch the block executes against.
type BlockBeginResponse struct {
	Epoch EpochIndex `json:"epoch"`
}

// BlockBegin tallies the block's proposer against the current epoch and, if
// the host signals an epoch boundary was crossed, opens the next epoch as
// current before the block's transactions are executed against it.
func (d *ConsensusDriver) BlockBegin(ctx context.Context, tx TxHandle, raw []byte) ([]byte, error) {
	var req BlockBeginRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("block_begin: decode request: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if req.EpochAdvanced {
		next := d.epoch + 1
		if err := d.pool.InitEmpty(ctx, next, tx); err != nil {
			return nil, err
		}
		if err := d.pool.InitCurrent(ctx, next, req.TimeMillis, req.Height, req.NextFeeMultiplier, tx); err != nil {
			return nil, err
		}
		d.epoch = next
	}
	if err := d.pool.AddProposerBlock(ctx, d.epoch, req.Proposer, tx); err != nil {
		return nil, err
	}
	return json.Marshal(BlockBeginResponse{Epoch: d.epoch})
}

// BlockEndRequest carries the fees collected while executing the block.
type BlockEndRequest struct {
	Height     BlockHeight `json:"height"`
	StorageFee uint64      `json:"storage_fee"`
	Processing uint64      `json:"processing_fee"`
	MarkAsPaid bool        `json:"mark_as_paid"`
	PaidEpoch  EpochIndex  `json:"paid_epoch,omitempty"`
}

// BlockEndResponse echoes the epoch the collected fees were booked against.
type BlockEndResponse struct {
	Epoch EpochIndex `json:"epoch"`
}

// BlockEnd books the block's collected fees into the current epoch pool and,
// when the host signals the epoch's distribution window has closed, flips a
// prior epoch to paid.
func (d *ConsensusDriver) BlockEnd(ctx context.Context, tx TxHandle, raw []byte) ([]byte, error) {
	var req BlockEndRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("block_end: decode request: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if req.StorageFee > 0 {
		if err := d.pool.AddStorageFee(ctx, d.epoch, req.StorageFee, tx); err != nil {
			return nil, err
		}
	}
	if req.Processing > 0 {
		if err := d.pool.AddProcessingFee(ctx, d.epoch, req.Processing, tx); err != nil {
			return nil, err
		}
	}
	if req.MarkAsPaid {
		if err := d.pool.MarkPaid(ctx, req.PaidEpoch, tx); err != nil {
			return nil, err
		}
	}
	return json.Marshal(BlockEndResponse{Epoch: d.epoch})
}

// CurrentEpoch reports the epoch index most recently opened by InitChain or
// BlockBegin.
func (d *ConsensusDriver) CurrentEpoch() EpochIndex {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.epoch
}
