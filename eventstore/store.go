// Package eventstore implements the EventStore external collaborator
// (spec.md §6): persistence, indexing, and retrieval of events. The
// consensus core never imports this package directly; it only consumes
// the Snapshot a store hands back.
package eventstore

import (
	"errors"
	"sync"

	"github.com/continuity-consensus/core/dag"
)

// ErrNotFound is returned when a requested event hash is unknown to the
// store.
var ErrNotFound = errors.New("eventstore: event not found")

// node wraps a stored event with the bookkeeping a store needs beyond
// what the core's Snapshot cares about: whether it has already been
// swept into a committed block, and its depth along its creator's chain.
type node struct {
	event     *dag.Event
	consensus bool
	depth     int
}

// Store is a concurrent-safe in-memory EventStore. It holds every event
// a node has learned of (from its own activity or from gossip) and
// tracks, per creator, the consensus boundary below which events are
// excluded from LoadRecentHistory.
type Store struct {
	mu       sync.RWMutex
	nodes    map[dag.EventHash]*node
	children map[dag.EventHash][]dag.EventHash // tree-children, for depth assignment
	heads    map[string]dag.EventHash          // creator -> deepest known event
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		nodes:    make(map[dag.EventHash]*node),
		children: make(map[dag.EventHash][]dag.EventHash),
		heads:    make(map[string]dag.EventHash),
	}
}

// Add inserts an event into the store. Safe to call more than once for
// the same hash (idempotent). Events whose tree parent is not yet known
// are treated as depth 1.
func (s *Store) Add(e *dag.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[e.Hash]; exists {
		return
	}

	depth := 1
	if e.HasTreeParent() {
		if parent, ok := s.nodes[e.TreeHash]; ok {
			depth = parent.depth + 1
		}
		s.children[e.TreeHash] = append(s.children[e.TreeHash], e.Hash)
	}
	s.nodes[e.Hash] = &node{event: e, depth: depth}

	if head, ok := s.heads[e.Creator]; !ok || s.nodes[head].depth < depth {
		s.heads[e.Creator] = e.Hash
	}
}

// MarkConsensus excludes the given hashes from future LoadRecentHistory
// snapshots — the Committer has swept them into a block.
func (s *Store) MarkConsensus(hashes []dag.EventHash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range hashes {
		if n, ok := s.nodes[h]; ok {
			n.consensus = true
		}
	}
}

// LoadRecentHistory returns a Snapshot of every non-consensus merge event
// currently known, with _parents links resolved to events also present
// in the snapshot (spec.md §6).
func (s *Store) LoadRecentHistory() *dag.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := dag.NewSnapshot()
	for _, n := range s.nodes {
		if n.consensus || !n.event.IsMerge() {
			continue
		}
		snap.Add(n.event)
	}
	return snap
}

// LoadAncestors realizes the events named by hashes, used by the
// Committer to pull in regular events referenced only by parentHash
// (spec.md §6).
func (s *Store) LoadAncestors(hashes []dag.EventHash) ([]*dag.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*dag.Event, 0, len(hashes))
	for _, h := range hashes {
		n, ok := s.nodes[h]
		if !ok {
			return nil, ErrNotFound
		}
		out = append(out, n.event)
	}
	return out, nil
}

// Heads returns the deepest known event's generation per creator, the
// local gossip advertisement (spec.md §6 "creatorHeads").
func (s *Store) Heads() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(s.heads))
	for creator, h := range s.heads {
		out[creator] = s.nodes[h].depth
	}
	return out
}

// HeadHash returns creator's deepest known event hash, if any is known.
func (s *Store) HeadHash(creator string) (dag.EventHash, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.heads[creator]
	return h, ok
}

// AllHeadHashes returns every creator's deepest known event hash, the
// branch tips a local merge event would tie together.
func (s *Store) AllHeadHashes() map[string]dag.EventHash {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]dag.EventHash, len(s.heads))
	for creator, h := range s.heads {
		out[creator] = h
	}
	return out
}

// Has reports whether h is already known to the store.
func (s *Store) Has(h dag.EventHash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[h]
	return ok
}

// Len returns the number of events currently held, consensus or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}
