// Package offer implements the structural validation and canonical
// hashing of an offer text. Both operations are pure and
// deterministic: IsValid has no side effects and Digest is a pure
// function of the input bytes.
package offer

import (
	"encoding/hex"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/zeebo/blake3"
)

const (
	// Prefix is the required human-readable part plus bech32 separator.
	Prefix = "offer1"

	// MinLength and MaxLength bound the total length of a valid offer,
	// strictly: MinLength < len(s) < MaxLength.
	MinLength = 6
	MaxLength = 80_000

	// Bech32Charset is the canonical lowercase bech32 data alphabet.
	// It deliberately excludes '1', 'b', 'i', 'o' to avoid visual
	// ambiguity; those never appear in a valid offer body.
	Bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"
)

// IsValid reports whether s has the shape of an offer: it begins with
// the literal "offer1", its total length is strictly between 6 and
// 80,000 characters, and every character following the "offer1" prefix
// lies in the bech32 data alphabet. The kernel never parses the body;
// this predicate is the only gate between network input and the local
// mesh or the broadcast path.
func IsValid(s string) bool {
	if len(s) <= MinLength || len(s) >= MaxLength {
		return false
	}
	if !strings.HasPrefix(s, Prefix) {
		return false
	}
	for _, r := range s[len(Prefix):] {
		if strings.IndexRune(Bech32Charset, r) < 0 {
			return false
		}
	}
	return true
}

// Digest is the 32-byte BLAKE3 hash of an offer's UTF-8 bytes. It
// doubles as the gossip message-id and as the key for local
// de-duplication: equal offer texts always produce equal digests.
type Digest [32]byte

// Compute returns the Digest of s.
func Compute(s string) Digest {
	return Digest(blake3.Sum256([]byte(s)))
}

// String renders the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// CID renders the digest as a raw-codec CIDv1 using a BLAKE3 multihash.
// This gives operators a standard, content-addressed identifier for an
// offer (loggable, diffable across nodes) without the kernel storing
// or indexing the offer itself.
func (d Digest) CID() (cid.Cid, error) {
	mh, err := multihash.Encode(d[:], multihash.BLAKE3)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}
