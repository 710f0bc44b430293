// Package dag defines the event DAG data model consumed by the consensus
// core: events, their hashes, and the recent-history snapshot a node hands
// to a decision attempt.
package dag

import (
	"bytes"
	"sort"
)

// EventHash is an opaque content-addressed identifier for an event.
// Comparisons and ordering are done over the raw bytes.
type EventHash [32]byte

// Less reports whether h sorts lexicographically before other, the
// ordering the core uses for every outward-visible hash list.
func (h EventHash) Less(other EventHash) bool {
	return bytes.Compare(h[:], other[:]) < 0
}

// IsZero reports whether h is the zero hash (used to mark "no value").
func (h EventHash) IsZero() bool {
	return h == EventHash{}
}

// SortHashes sorts hashes lexicographically in place and returns them,
// the ordering spec.md requires for deterministic Decision output.
func SortHashes(hashes []EventHash) []EventHash {
	sort.Slice(hashes, func(i, j int) bool { return hashes[i].Less(hashes[j]) })
	return hashes
}

// EventType distinguishes a regular operation-carrying event from a merge
// event or a configuration event. Only merge events are consulted by the
// consensus core; regular and configuration events appear solely as
// ancestors in ParentHash.
type EventType int

const (
	// Regular carries a user operation and is never itself inspected by
	// the core; it is pulled in wholesale by the Committer.
	Regular EventType = iota
	// Merge combines the heads of other branches; the only event type the
	// core's algorithms walk.
	Merge
	// Configuration carries ledger configuration changes. Treated like a
	// regular event by the core.
	Configuration
)

// Event is a node in the DAG: a signed, content-addressed record created by
// one elector (or, for regular events, any node) and disseminated by
// gossip. The core treats events as immutable facts; it never mutates
// Hash, Creator, Type, TreeHash, or ParentHash.
type Event struct {
	// Hash is this event's content-addressed identifier.
	Hash EventHash
	// Creator identifies the event's author.
	Creator string
	// Type is Regular, Merge, or Configuration.
	Type EventType
	// TreeHash is the creator's immediately prior merge event on its own
	// branch. Zero for a creator's first (genesis) event. For merge
	// events, TreeHash must be a member of ParentHash.
	TreeHash EventHash
	// ParentHash is the unordered set of ancestor event hashes, including
	// TreeHash for merge events.
	ParentHash []EventHash
}

// IsMerge reports whether e is a merge event.
func (e *Event) IsMerge() bool { return e.Type == Merge }

// HasTreeParent reports whether e has a non-zero TreeHash.
func (e *Event) HasTreeParent() bool { return !e.TreeHash.IsZero() }
