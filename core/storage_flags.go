package core

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/multiformats/go-varint"
)

// storageFlagsTag is the first byte of every serialised StorageFlags value.
type storageFlagsTag byte

const (
	tagSingleEpoch storageFlagsTag = iota
	tagMultiEpoch
	tagSingleEpochOwned
	tagMultiEpochOwned
)

// StorageFlags is the per-element lifetime metadata persisted alongside
// every value in the backend: which epoch first paid for the element's
// bytes, which later epochs added more bytes on top of it, and who (if
// anyone) owns the refundable portion.
//
// Zero value is SingleEpoch(base_epoch=0) with no owner and no later-epoch
// additions; use the constructors below rather than the struct literal so
// the tag stays consistent with which fields are populated.
type StorageFlags struct {
	BaseEpoch  EpochIndex
	EpochBytes map[EpochIndex]uint32
	OwnerID    Identifier
	owned      bool
}

// NewSingleEpochFlags builds an unowned flag value attributing all bytes to
// baseEpoch.
func NewSingleEpochFlags(baseEpoch EpochIndex) StorageFlags {
	return StorageFlags{BaseEpoch: baseEpoch}
}

// NewMultiEpochFlags builds an unowned flag value with later-epoch byte
// additions. epochBytes must be non-empty; an empty map has no MultiEpoch
// representation and must use NewSingleEpochFlags instead.
func NewMultiEpochFlags(baseEpoch EpochIndex, epochBytes map[EpochIndex]uint32) StorageFlags {
	return StorageFlags{BaseEpoch: baseEpoch, EpochBytes: cloneEpochBytes(epochBytes)}
}

// NewSingleEpochOwnedFlags builds an owned flag value with no later-epoch
// additions.
func NewSingleEpochOwnedFlags(baseEpoch EpochIndex, owner Identifier) StorageFlags {
	return StorageFlags{BaseEpoch: baseEpoch, OwnerID: owner, owned: true}
}

// NewMultiEpochOwnedFlags builds an owned flag value with later-epoch byte
// additions. epochBytes must be non-empty.
func NewMultiEpochOwnedFlags(baseEpoch EpochIndex, owner Identifier, epochBytes map[EpochIndex]uint32) StorageFlags {
	return StorageFlags{
		BaseEpoch:  baseEpoch,
		EpochBytes: cloneEpochBytes(epochBytes),
		OwnerID:    owner,
		owned:      true,
	}
}

func cloneEpochBytes(m map[EpochIndex]uint32) map[EpochIndex]uint32 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[EpochIndex]uint32, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// HasOwner reports whether this value carries an owner_id (tag 2 or 3).
func (f StorageFlags) HasOwner() bool { return f.owned }

// IsMultiEpoch reports whether this value carries later-epoch additions
// (tag 1 or 3).
func (f StorageFlags) IsMultiEpoch() bool { return len(f.EpochBytes) > 0 }

func (f StorageFlags) tag() storageFlagsTag {
	switch {
	case f.owned && f.IsMultiEpoch():
		return tagMultiEpochOwned
	case f.owned:
		return tagSingleEpochOwned
	case f.IsMultiEpoch():
		return tagMultiEpoch
	default:
		return tagSingleEpoch
	}
}

// sortedEpochs returns the epoch_bytes keys in ascending order, the
// canonical emission order required by §4.1.
func (f StorageFlags) sortedEpochs() []EpochIndex {
	keys := make([]EpochIndex, 0, len(f.EpochBytes))
	for k := range f.EpochBytes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Serialize encodes the flags per the big-endian tagged layout of §4.1.
// Later-epoch entries are always emitted in ascending epoch order
// regardless of map iteration order, so Serialize is a canonicalising
// function: two StorageFlags values with the same logical content but
// differently-ordered insertion always serialise identically.
func (f StorageFlags) Serialize() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(f.tag()))
	if f.owned {
		buf.Write(f.OwnerID[:])
	}
	var baseEpochBytes [2]byte
	binary.BigEndian.PutUint16(baseEpochBytes[:], uint16(f.BaseEpoch))
	buf.Write(baseEpochBytes[:])
	if f.IsMultiEpoch() {
		for _, epoch := range f.sortedEpochs() {
			var epochBytes [2]byte
			binary.BigEndian.PutUint16(epochBytes[:], uint16(epoch))
			buf.Write(epochBytes[:])
			var varintBuf [varint.MaxLenUvarint63]byte
			n := varint.PutUvarint(varintBuf[:], uint64(f.EpochBytes[epoch]))
			buf.Write(varintBuf[:n])
		}
	}
	return buf.Bytes()
}

// Equal reports bit-exact equality per §4.1: two flag values are equal iff
// their serialisations are equal.
func (f StorageFlags) Equal(other StorageFlags) bool {
	return bytes.Equal(f.Serialize(), other.Serialize())
}

// DeserializeStorageFlags decodes b per the tagged layout of §4.1. It
// returns ErrUnknownTag, ErrWrongSize, ErrVarintTruncated or
// ErrTrailingBytes on malformed input; all are fatal to the element per
// §4.1 "Errors".
func DeserializeStorageFlags(b []byte) (StorageFlags, error) {
	if len(b) == 0 {
		return StorageFlags{}, ErrWrongSize("storage flags", 0)
	}
	tag := storageFlagsTag(b[0])
	if tag > tagMultiEpochOwned {
		return StorageFlags{}, ErrUnknownTag(b[0])
	}
	rest := b[1:]

	var owner Identifier
	owned := tag == tagSingleEpochOwned || tag == tagMultiEpochOwned
	if owned {
		if len(rest) < 32 {
			return StorageFlags{}, ErrWrongSize("storage flags owner_id", len(b))
		}
		copy(owner[:], rest[:32])
		rest = rest[32:]
	}

	multi := tag == tagMultiEpoch || tag == tagMultiEpochOwned
	if !multi {
		if len(rest) < 2 {
			return StorageFlags{}, ErrWrongSize("storage flags base_epoch", len(b))
		}
		if len(rest) > 2 {
			return StorageFlags{}, ErrTrailingBytes(len(rest) - 2)
		}
		baseEpoch := EpochIndex(binary.BigEndian.Uint16(rest))
		if owned {
			return NewSingleEpochOwnedFlags(baseEpoch, owner), nil
		}
		return NewSingleEpochFlags(baseEpoch), nil
	}

	if len(rest) < 2 {
		return StorageFlags{}, ErrWrongSize("storage flags base_epoch", len(b))
	}
	baseEpoch := EpochIndex(binary.BigEndian.Uint16(rest[:2]))
	rest = rest[2:]

	epochBytes := make(map[EpochIndex]uint32)
	r := bytes.NewReader(rest)
	for r.Len() > 0 {
		if r.Len() < 2 {
			return StorageFlags{}, ErrVarintTruncated()
		}
		var epochBuf [2]byte
		if _, err := r.Read(epochBuf[:]); err != nil {
			return StorageFlags{}, ErrVarintTruncated()
		}
		epoch := EpochIndex(binary.BigEndian.Uint16(epochBuf[:]))

		n, err := varint.ReadUvarint(r)
		if err != nil {
			return StorageFlags{}, ErrVarintTruncated()
		}
		epochBytes[epoch] = uint32(n)
	}
	if len(epochBytes) == 0 {
		// Structurally a MultiEpoch tag requires at least one entry; an
		// empty map has no representation under this tag.
		return StorageFlags{}, ErrWrongSize("storage flags epoch_bytes", len(b))
	}

	if owned {
		return NewMultiEpochOwnedFlags(baseEpoch, owner, epochBytes), nil
	}
	return NewMultiEpochFlags(baseEpoch, epochBytes), nil
}
