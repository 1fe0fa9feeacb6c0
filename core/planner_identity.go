package core

import (
	"context"
	"encoding/binary"

	"github.com/sirupsen/logrus"
)

const (
	identitiesRoot     = "identities"
	identityKeysLeaf   = "keys"
	withdrawalQueueKey = "withdrawal_queue"
	withdrawalCounter  = "counter"
)

// KeyPurpose mirrors the original identity key record's purpose field
// (§C.3): which operation a key is authorised for.
type KeyPurpose uint8

const (
	KeyPurposeAuthentication KeyPurpose = iota
	KeyPurposeEncryption
	KeyPurposeDecryption
	KeyPurposeTransfer
)

// KeySecurityLevel mirrors the original identity key record's security
// level field (§C.3): how sensitive the key's authorised operations are.
type KeySecurityLevel uint8

const (
	KeySecurityMaster KeySecurityLevel = iota
	KeySecurityCritical
	KeySecurityHigh
	KeySecurityMedium
)

// IdentityPublicKey is one key-tree leaf written by InsertIdentity,
// carrying the purpose/security-level fields supplemented from
// original_source/ (§C.3) alongside the raw key bytes.
type IdentityPublicKey struct {
	KeyID         KeyID
	PublicKey     []byte
	Purpose       KeyPurpose
	SecurityLevel KeySecurityLevel
}

func (k IdentityPublicKey) encode() []byte {
	buf := make([]byte, 2+len(k.PublicKey))
	buf[0] = byte(k.Purpose)
	buf[1] = byte(k.SecurityLevel)
	copy(buf[2:], k.PublicKey)
	return buf
}

// InsertIdentityIntent is the caller-supplied input to the InsertIdentity
// lowering.
type InsertIdentityIntent struct {
	IdentityID Identifier
	Body       []byte
	PublicKeys []IdentityPublicKey
	Flags      StorageFlags
}

func keyIDBytes(id KeyID) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(id))
	return b[:]
}

// LowerInsertIdentity implements §4.4's InsertIdentity: writes the
// identity record, then one key-tree leaf per public key keyed by
// big-endian key id. Key storage flags mirror the identity's.
func (p *Planner) LowerInsertIdentity(ctx context.Context, backend Backend, tx TxHandle, intent InsertIdentityIntent) ([]AtomicTreeOp, error) {
	ops := []AtomicTreeOp{{
		Path:    []string{identitiesRoot},
		Key:     intent.IdentityID.Bytes(),
		Element: NewItemElement(intent.Body, intent.Flags),
		Kind:    OpInsert,
		Cost:    CostEstimate{BytesAdded: uint32(len(intent.Body)), BaseOps: map[BaseOp]uint64{BaseOpWriteByte: uint64(len(intent.Body))}},
	}}

	keysPath := []string{identitiesRoot, string(intent.IdentityID.Bytes()), identityKeysLeaf}
	for _, key := range intent.PublicKeys {
		encoded := key.encode()
		ops = append(ops, AtomicTreeOp{
			Path:    keysPath,
			Key:     keyIDBytes(key.KeyID),
			Element: NewItemElement(encoded, intent.Flags),
			Kind:    OpInsert,
			Cost:    CostEstimate{BytesAdded: uint32(len(encoded)), BaseOps: map[BaseOp]uint64{BaseOpWriteByte: uint64(len(encoded))}},
		})
	}

	if err := ApplyBatch(ctx, backend, tx, ops); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"identity_id": intent.IdentityID, "key_count": len(intent.PublicKeys)}).Info("inserted identity")
	return ops, nil
}

// WithdrawalIntent is the caller-supplied input to the withdrawal
// side-effect lowering, supplemented from original_source/ (§C.2).
type WithdrawalIntent struct {
	IdentityID Identifier
	Amount     Credits
	Fee        Credits
	Flags      StorageFlags
}

// WithdrawalRecord is the serialised asset-unlock record enqueued in the
// withdrawal queue subtree.
type WithdrawalRecord struct {
	Index      uint64
	IdentityID Identifier
	Amount     Credits
	Fee        Credits
}

func (r WithdrawalRecord) encode() []byte {
	buf := make([]byte, 8+32+8+8)
	binary.BigEndian.PutUint64(buf[0:8], r.Index)
	copy(buf[8:40], r.IdentityID.Bytes())
	binary.BigEndian.PutUint64(buf[40:48], uint64(r.Amount))
	binary.BigEndian.PutUint64(buf[48:56], uint64(r.Fee))
	return buf
}

// LowerWithdrawal implements the withdrawal-transition side effect of
// §4.4/§C.2: reads the current withdrawal counter and constructs and
// enqueues the asset-unlock record at counter+1. The identity-balance
// reduction itself is the caller's own op against backend state this
// core does not model (§1); LowerWithdrawal's cost estimate accounts
// for it but does not emit a write for it.
func (p *Planner) LowerWithdrawal(ctx context.Context, backend Backend, tx TxHandle, intent WithdrawalIntent) ([]AtomicTreeOp, error) {
	counterBytes, err := backend.GetAux(ctx, []byte(withdrawalCounter), tx)
	var counter uint64
	if err == nil && len(counterBytes) == 8 {
		counter = binary.BigEndian.Uint64(counterBytes)
	}
	next := counter + 1

	record := WithdrawalRecord{Index: next, IdentityID: intent.IdentityID, Amount: intent.Amount, Fee: intent.Fee}
	recordBytes := record.encode()

	var nextBytes [8]byte
	binary.BigEndian.PutUint64(nextBytes[:], next)
	if err := backend.PutAux(ctx, []byte(withdrawalCounter), nextBytes[:], tx); err != nil {
		return nil, err
	}

	// Balance representation itself is outside this core's scope (§1
	// treats identity balance as backend state the caller manages); the
	// balance-reduction write is the caller's own op, not this planner's,
	// so only the enqueue is emitted here. Its cost estimate folds in the
	// balance-reduction's write-byte count so the fee charged for a
	// withdrawal still reflects both halves of the side effect.
	var indexKey [8]byte
	binary.BigEndian.PutUint64(indexKey[:], next)
	ops := []AtomicTreeOp{
		{
			Path:    []string{withdrawalQueueKey},
			Key:     indexKey[:],
			Element: NewItemElement(recordBytes, intent.Flags),
			Kind:    OpInsert,
			Cost:    CostEstimate{BytesAdded: uint32(len(recordBytes)), BaseOps: map[BaseOp]uint64{BaseOpWriteByte: 8}},
		},
	}

	if err := ApplyBatch(ctx, backend, tx, ops); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"identity_id": intent.IdentityID, "withdrawal_index": next}).Info("enqueued withdrawal")
	return ops, nil
}
