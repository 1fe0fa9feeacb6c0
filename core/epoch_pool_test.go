package core

import (
	"context"
	"testing"
)

func TestEpochPoolLifecycle(t *testing.T) {
	ctx := context.Background()
	backend := NewInMemoryBackend()
	pool := NewEpochPool(backend)

	if err := pool.InitEmpty(ctx, 42, nil); err != nil {
		t.Fatalf("InitEmpty: %v", err)
	}
	fee, err := pool.GetStorageFee(ctx, 42, nil)
	if err != nil {
		t.Fatalf("GetStorageFee (empty): %v", err)
	}
	if fee != 0 {
		t.Fatalf("GetStorageFee (empty) = %d, want 0", fee)
	}

	const startTime int64 = 1_700_000_000_000
	if err := pool.InitCurrent(ctx, 42, startTime, 1000, 3, nil); err != nil {
		t.Fatalf("InitCurrent: %v", err)
	}
	multiplier, err := pool.GetFeeMultiplier(ctx, 42, nil)
	if err != nil {
		t.Fatalf("GetFeeMultiplier: %v", err)
	}
	if multiplier != 3 {
		t.Fatalf("GetFeeMultiplier = %d, want 3", multiplier)
	}
	gotStart, err := pool.GetStartTime(ctx, 42, nil)
	if err != nil {
		t.Fatalf("GetStartTime: %v", err)
	}
	if gotStart != startTime {
		t.Fatalf("GetStartTime = %d, want %d", gotStart, startTime)
	}

	if err := pool.MarkPaid(ctx, 42, nil); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if _, err := pool.GetStorageFee(ctx, 42, nil); err == nil {
		t.Fatal("GetStorageFee after MarkPaid should be NotFound")
	}
	gotStart, err = pool.GetStartTime(ctx, 42, nil)
	if err != nil {
		t.Fatalf("GetStartTime after MarkPaid: %v", err)
	}
	if gotStart != startTime {
		t.Fatalf("GetStartTime after MarkPaid = %d, want %d (still present)", gotStart, startTime)
	}
}

func TestEpochKeyBigEndianOrdering(t *testing.T) {
	low := EpochKey(1)
	high := EpochKey(256)
	if !(string(low) < string(high)) {
		t.Fatalf("expected EpochKey(1) < EpochKey(256) under byte-lexicographic order, got %x vs %x", low, high)
	}
}

func TestEpochPoolAccumulatesFees(t *testing.T) {
	ctx := context.Background()
	backend := NewInMemoryBackend()
	pool := NewEpochPool(backend)

	if err := pool.InitEmpty(ctx, 7, nil); err != nil {
		t.Fatalf("InitEmpty: %v", err)
	}
	if err := pool.InitCurrent(ctx, 7, 0, 0, 1, nil); err != nil {
		t.Fatalf("InitCurrent: %v", err)
	}

	if err := pool.AddStorageFee(ctx, 7, 10, nil); err != nil {
		t.Fatalf("AddStorageFee: %v", err)
	}
	if err := pool.AddStorageFee(ctx, 7, 5, nil); err != nil {
		t.Fatalf("AddStorageFee (second): %v", err)
	}
	storageFee, err := pool.GetStorageFee(ctx, 7, nil)
	if err != nil {
		t.Fatalf("GetStorageFee: %v", err)
	}
	if storageFee != 15 {
		t.Fatalf("GetStorageFee = %d, want 15", storageFee)
	}

	if err := pool.AddProcessingFee(ctx, 7, 2, nil); err != nil {
		t.Fatalf("AddProcessingFee: %v", err)
	}
	if err := pool.AddProcessingFee(ctx, 7, 3, nil); err != nil {
		t.Fatalf("AddProcessingFee (second): %v", err)
	}
	processingFee, err := pool.GetProcessingFee(ctx, 7, nil)
	if err != nil {
		t.Fatalf("GetProcessingFee: %v", err)
	}
	if processingFee != 5 {
		t.Fatalf("GetProcessingFee = %d, want 5", processingFee)
	}
}

func TestEpochPoolProposerTally(t *testing.T) {
	ctx := context.Background()
	backend := NewInMemoryBackend()
	pool := NewEpochPool(backend)
	var proposer Identifier
	proposer[0] = 0x07

	if err := pool.InitEmpty(ctx, 1, nil); err != nil {
		t.Fatalf("InitEmpty: %v", err)
	}
	if err := pool.InitCurrent(ctx, 1, 0, 0, 1, nil); err != nil {
		t.Fatalf("InitCurrent: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := pool.AddProposerBlock(ctx, 1, proposer, nil); err != nil {
			t.Fatalf("AddProposerBlock: %v", err)
		}
	}
	path := append(append([]string{}, epochPath(1)...), epochKeyProposers)
	count, err := getU64Item(ctx, backend, path, proposer.Bytes(), "proposer_block_count", nil)
	if err != nil {
		t.Fatalf("getU64Item: %v", err)
	}
	if count != 3 {
		t.Fatalf("proposer block count = %d, want 3", count)
	}
}
