// Package crypto implements the Crypto external collaborator the
// consensus core consumes only as an opaque hash/verify provider: event
// canonicalization hashing and signature verification, plus a cache for
// the latter since it sits on the hot path of every incoming event.
package crypto

import (
	"golang.org/x/crypto/sha3"

	"github.com/continuity-consensus/core/dag"
)

// Hash returns the Keccak-256 digest of a canonicalized event's byte
// representation as an EventHash.
func Hash(canonicalized ...[]byte) dag.EventHash {
	d := sha3.NewLegacyKeccak256()
	for _, b := range canonicalized {
		d.Write(b)
	}
	var out dag.EventHash
	d.Sum(out[:0])
	return out
}
