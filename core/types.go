package core

import (
	"encoding/hex"
	"fmt"
)

// Identifier is the 32-byte content-addressed id used for contracts,
// documents, identities and owners throughout the core. It has value
// semantics: copying an Identifier copies the whole 32 bytes.
type Identifier [32]byte

// Hex renders the identifier as a lower-case hex string.
func (id Identifier) Hex() string { return hex.EncodeToString(id[:]) }

// Bytes returns the identifier's raw bytes.
func (id Identifier) Bytes() []byte { return id[:] }

func (id Identifier) String() string { return id.Hex() }

// IsZero reports whether the identifier is the all-zero value.
func (id Identifier) IsZero() bool { return id == Identifier{} }

// IdentifierFromBytes copies b into a new Identifier, erroring if the
// length does not match.
func IdentifierFromBytes(b []byte) (Identifier, error) {
	var id Identifier
	if len(b) != len(id) {
		return id, fmt.Errorf("identifier: expected %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// EpochIndex identifies a contiguous range of blocks sharing one fee
// multiplier. It is the unit of storage-refund attribution (§3, §4.3).
type EpochIndex uint16

// KeyID identifies a public key within an identity's key subtree.
type KeyID uint16

// BlockHeight is the chain height at which an epoch started.
type BlockHeight uint64

// Credits are the unit of account for both storage and processing fees.
type Credits uint64
