package elector

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/continuity-consensus/core/dag"
)

// ErrSizeExceedsPool is returned when the requested elector set size is
// larger than the candidate pool.
var ErrSizeExceedsPool = errors.New("elector: requested size exceeds candidate pool")

// Candidate is a node eligible to be selected into an elector set.
type Candidate struct {
	ID string
}

// Selector derives the elector set for a block height from the prior
// block's hash, shuffling a static candidate pool deterministically so
// every honest node computes the same set without coordination. Results
// are cached per (height, prior hash) pair, mirroring the teacher's
// per-epoch committee cache.
type Selector struct {
	mu    sync.RWMutex
	pool  []Candidate
	cache map[selectKey][]string
}

// selectKey identifies one cached selection.
type selectKey struct {
	height    uint64
	priorHash dag.EventHash
}

// NewSelector returns a Selector over the given candidate pool. The pool
// order does not matter; candidates are always addressed by ID.
func NewSelector(pool []Candidate) *Selector {
	cp := make([]Candidate, len(pool))
	copy(cp, pool)
	sort.Slice(cp, func(i, j int) bool { return cp[i].ID < cp[j].ID })
	return &Selector{pool: cp, cache: make(map[selectKey][]string)}
}

// Select returns the IDs of the `size` electors standing for height,
// derived from priorHash. The result is deterministic and cached.
func (s *Selector) Select(height uint64, priorHash dag.EventHash, size int) ([]string, error) {
	if len(s.pool) == 0 {
		return nil, ErrZeroPool
	}
	if size <= 0 || size > len(s.pool) {
		return nil, fmt.Errorf("%w: %d", ErrSizeExceedsPool, size)
	}

	key := selectKey{height: height, priorHash: priorHash}
	s.mu.RLock()
	if cached, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return cached[:size], nil
	}
	s.mu.RUnlock()

	seed := seedFor(height, priorHash)
	order, err := shuffle(len(s.pool), seed)
	if err != nil {
		return nil, err
	}

	electors := make([]string, len(s.pool))
	for i, idx := range order {
		electors[i] = s.pool[idx].ID
	}

	s.mu.Lock()
	s.cache[key] = electors
	s.mu.Unlock()

	return electors[:size], nil
}

// seedFor derives a shuffle seed from the block height and the prior
// block's hash, the ledger's analogue of the teacher's RANDAO-mix seed.
func seedFor(height uint64, priorHash dag.EventHash) [32]byte {
	var buf [40]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(height >> (8 * (7 - i)))
	}
	copy(buf[8:], priorHash[:])
	return sha256.Sum256(buf[:])
}
