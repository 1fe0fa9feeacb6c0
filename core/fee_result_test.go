package core

import (
	"math"
	"testing"
)

func TestFeeResultAddCommutativeAssociative(t *testing.T) {
	var ownerA, ownerB Identifier
	ownerA[0] = 0xAA
	ownerB[0] = 0xBB

	a := FeeResult{
		StorageFee:    10,
		ProcessingFee: 20,
		RemovedBytesFromIdentities: map[Identifier]map[EpochIndex]uint32{
			ownerA: {1: 5},
		},
		RemovedBytesFromSystem: 3,
	}
	b := FeeResult{
		StorageFee:    7,
		ProcessingFee: 1,
		RemovedBytesFromIdentities: map[Identifier]map[EpochIndex]uint32{
			ownerA: {1: 2, 2: 9},
			ownerB: {1: 4},
		},
		RemovedBytesFromSystem: 1,
	}
	c := ZeroFeeResult()
	c.StorageFee = 100

	ab, err := a.Add(b)
	if err != nil {
		t.Fatalf("a.Add(b): %v", err)
	}
	ba, err := b.Add(a)
	if err != nil {
		t.Fatalf("b.Add(a): %v", err)
	}
	if ab.StorageFee != ba.StorageFee || ab.ProcessingFee != ba.ProcessingFee || ab.RemovedBytesFromSystem != ba.RemovedBytesFromSystem {
		t.Fatalf("addition not commutative: %+v vs %+v", ab, ba)
	}
	if ab.RemovedBytesFromIdentities[ownerA][1] != 7 || ab.RemovedBytesFromIdentities[ownerA][2] != 9 {
		t.Fatalf("per-identity inner map did not combine by epoch key union: %+v", ab.RemovedBytesFromIdentities[ownerA])
	}

	abc1, err := mustAdd(t, a, b)
	abc1, err = abc1.Add(c)
	if err != nil {
		t.Fatalf("(a+b)+c: %v", err)
	}
	bc, err := b.Add(c)
	if err != nil {
		t.Fatalf("b+c: %v", err)
	}
	abc2, err := a.Add(bc)
	if err != nil {
		t.Fatalf("a+(b+c): %v", err)
	}
	if abc1.StorageFee != abc2.StorageFee || abc1.ProcessingFee != abc2.ProcessingFee {
		t.Fatalf("addition not associative: %+v vs %+v", abc1, abc2)
	}

	zeroed, err := a.Add(ZeroFeeResult())
	if err != nil {
		t.Fatalf("a + zero: %v", err)
	}
	if zeroed.StorageFee != a.StorageFee || zeroed.ProcessingFee != a.ProcessingFee {
		t.Fatalf("a + zero != a: %+v vs %+v", zeroed, a)
	}
}

func mustAdd(t *testing.T, a, b FeeResult) (FeeResult, error) {
	t.Helper()
	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("%+v + %+v: %v", a, b, err)
	}
	return sum, nil
}

func TestFeeResultOverflow(t *testing.T) {
	a := FeeResult{StorageFee: math.MaxUint64 - 5}
	b := FeeResult{StorageFee: 10}
	_, err := a.Add(b)
	if err == nil {
		t.Fatal("expected overflow error")
	}
	ce, ok := err.(*ConsensusError)
	if !ok || ce.Code != "Overflow" || ce.Fields["field"] != "storage_fee" {
		t.Fatalf("expected Overflow(storage_fee), got %v", err)
	}
}

func TestFeeResultRemovedBytesFromIdentitiesOverflow(t *testing.T) {
	var owner Identifier
	a := FeeResult{RemovedBytesFromIdentities: map[Identifier]map[EpochIndex]uint32{
		owner: {1: math.MaxUint32},
	}}
	b := FeeResult{RemovedBytesFromIdentities: map[Identifier]map[EpochIndex]uint32{
		owner: {1: 1},
	}}
	_, err := a.Add(b)
	if err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestFromBaseOps(t *testing.T) {
	result, err := FromBaseOps(map[BaseOp]uint64{
		BaseOpHash:    2,
		BaseOpCompare: 10,
	})
	if err != nil {
		t.Fatalf("FromBaseOps: %v", err)
	}
	want := baseOpCost[BaseOpHash]*2 + baseOpCost[BaseOpCompare]*10
	if result.ProcessingFee != want {
		t.Fatalf("ProcessingFee = %d, want %d", result.ProcessingFee, want)
	}
}

func TestFromTreeOpsStorageAndRefunds(t *testing.T) {
	var owner Identifier
	owner[0] = 0x01
	costs := []TreeOpCost{
		{
			ProcessingEstimate: 5,
			BytesAdded:         100,
			BytesRemoved: []RemovedBytes{
				{Bytes: 30, Flags: NewSingleEpochOwnedFlags(2, owner)},
				{Bytes: 10, Flags: NewSingleEpochFlags(2)},
			},
		},
	}
	result, err := FromTreeOps(costs, 3, PerByteStorageCredit)
	if err != nil {
		t.Fatalf("FromTreeOps: %v", err)
	}
	if result.ProcessingFee != 5 {
		t.Fatalf("ProcessingFee = %d, want 5", result.ProcessingFee)
	}
	if result.StorageFee != 300 {
		t.Fatalf("StorageFee = %d, want 300", result.StorageFee)
	}
	if result.RemovedBytesFromIdentities[owner][2] != 30 {
		t.Fatalf("RemovedBytesFromIdentities[owner][2] = %d, want 30", result.RemovedBytesFromIdentities[owner][2])
	}
	if result.RemovedBytesFromSystem != 10 {
		t.Fatalf("RemovedBytesFromSystem = %d, want 10", result.RemovedBytesFromSystem)
	}
}

func TestFeeResultForOps(t *testing.T) {
	ops := []AtomicTreeOp{
		{Cost: CostEstimate{BytesAdded: 10, BaseOps: map[BaseOp]uint64{BaseOpWriteByte: 10, BaseOpHash: 1}}},
		{Cost: CostEstimate{BaseOps: map[BaseOp]uint64{BaseOpSeek: 1}}},
	}
	result, err := FeeResultForOps(ops, 2, PerByteStorageCredit)
	if err != nil {
		t.Fatalf("FeeResultForOps: %v", err)
	}
	if result.StorageFee != 20 {
		t.Fatalf("StorageFee = %d, want 20", result.StorageFee)
	}
	wantProcessing := baseOpCost[BaseOpWriteByte]*10 + baseOpCost[BaseOpHash] + baseOpCost[BaseOpSeek]
	if result.ProcessingFee != wantProcessing {
		t.Fatalf("ProcessingFee = %d, want %d", result.ProcessingFee, wantProcessing)
	}
}
