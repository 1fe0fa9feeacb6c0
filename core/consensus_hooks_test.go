package core

import (
	"context"
	"encoding/json"
	"testing"
)

func TestConsensusDriverLifecycle(t *testing.T) {
	ctx := context.Background()
	backend := NewInMemoryBackend()
	pool := NewEpochPool(backend)
	driver := NewConsensusDriver(pool)

	initReq, _ := json.Marshal(InitChainRequest{GenesisTimeMillis: 1000, GenesisHeight: 1, FeeMultiplier: 1})
	initRaw, err := driver.InitChain(ctx, nil, initReq)
	if err != nil {
		t.Fatalf("InitChain: %v", err)
	}
	var initResp InitChainResponse
	if err := json.Unmarshal(initRaw, &initResp); err != nil {
		t.Fatalf("decode InitChainResponse: %v", err)
	}
	if initResp.Epoch != 0 {
		t.Fatalf("expected genesis epoch 0, got %d", initResp.Epoch)
	}

	var proposer Identifier
	proposer[0] = 7
	beginReq, _ := json.Marshal(BlockBeginRequest{Height: 2, TimeMillis: 2000, Proposer: proposer})
	if _, err := driver.BlockBegin(ctx, nil, beginReq); err != nil {
		t.Fatalf("BlockBegin: %v", err)
	}

	beginReq2, _ := json.Marshal(BlockBeginRequest{
		Height: 3, TimeMillis: 3000, Proposer: proposer,
		EpochAdvanced: true, NextFeeMultiplier: 2,
	})
	raw, err := driver.BlockBegin(ctx, nil, beginReq2)
	if err != nil {
		t.Fatalf("BlockBegin (advance): %v", err)
	}
	var beginResp BlockBeginResponse
	if err := json.Unmarshal(raw, &beginResp); err != nil {
		t.Fatalf("decode BlockBeginResponse: %v", err)
	}
	if beginResp.Epoch != 1 {
		t.Fatalf("expected epoch to advance to 1, got %d", beginResp.Epoch)
	}
	if driver.CurrentEpoch() != 1 {
		t.Fatalf("CurrentEpoch = %d, want 1", driver.CurrentEpoch())
	}

	endReq, _ := json.Marshal(BlockEndRequest{Height: 3, StorageFee: 40, Processing: 8})
	if _, err := driver.BlockEnd(ctx, nil, endReq); err != nil {
		t.Fatalf("BlockEnd: %v", err)
	}
	storageFee, err := pool.GetStorageFee(ctx, 1, nil)
	if err != nil {
		t.Fatalf("GetStorageFee: %v", err)
	}
	if storageFee != 40 {
		t.Fatalf("GetStorageFee = %d, want 40", storageFee)
	}
	processingFee, err := pool.GetProcessingFee(ctx, 1, nil)
	if err != nil {
		t.Fatalf("GetProcessingFee: %v", err)
	}
	if processingFee != 8 {
		t.Fatalf("GetProcessingFee = %d, want 8", processingFee)
	}

	endReq2, _ := json.Marshal(BlockEndRequest{Height: 4, MarkAsPaid: true, PaidEpoch: 0})
	if _, err := driver.BlockEnd(ctx, nil, endReq2); err != nil {
		t.Fatalf("BlockEnd (mark paid): %v", err)
	}
}
