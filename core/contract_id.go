package core

import (
	cid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// DeriveContractID computes the deterministic contract id for a
// serialised contract body (§4.4 "Recover or verify the contract id: a
// deterministic function of the serialised body when not supplied").
// It is grounded on the teacher's storage gateway, which pins blobs
// under a CIDv1(raw, sha2-256) computed the same way
// (core/storage.go's Pin); here the same content-addressing scheme
// gives contract ids instead of blob handles.
func DeriveContractID(body []byte) (Identifier, error) {
	sum, err := mh.Sum(body, mh.SHA2_256, -1)
	if err != nil {
		return Identifier{}, err
	}
	c := cid.NewCidV1(cid.Raw, sum)
	digest := c.Hash()
	// The digest carries a multihash header (code + length varint)
	// ahead of the 32-byte sha2-256 payload; take the trailing 32 bytes
	// as this core's fixed-width Identifier.
	if len(digest) < 32 {
		return Identifier{}, ErrWrongSize("contract id digest", len(digest))
	}
	return IdentifierFromBytes(digest[len(digest)-32:])
}
