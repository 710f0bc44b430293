package dag

// Snapshot is a finite, parent-closed set of non-consensus merge events:
// the recent-history view a single decide() invocation operates on. It is
// returned by EventStore.LoadRecentHistory and is exclusively owned by the
// worker invoking Decide for the duration of the call (spec.md §5).
type Snapshot struct {
	events  map[EventHash]*Event
	parents map[EventHash][]EventHash // resolved merge-event ancestors present in the snapshot
}

// NewSnapshot returns an empty, mutable Snapshot. Callers populate it with
// Add before handing it to the consensus core.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		events:  make(map[EventHash]*Event),
		parents: make(map[EventHash][]EventHash),
	}
}

// Add inserts an event into the snapshot and drops any memoized _parents
// link for it. The link (the subset of ParentHash that both names a merge
// event and is itself present in the snapshot) is computed lazily by
// Parents, so Add may be called in any order before the first Parents
// call.
func (s *Snapshot) Add(e *Event) {
	s.events[e.Hash] = e
	delete(s.parents, e.Hash) // invalidate memoized parents, recomputed on demand
}

// Event returns the event with the given hash, or nil if absent.
func (s *Snapshot) Event(h EventHash) *Event {
	return s.events[h]
}

// Has reports whether h is present in the snapshot.
func (s *Snapshot) Has(h EventHash) bool {
	_, ok := s.events[h]
	return ok
}

// Len returns the number of events in the snapshot.
func (s *Snapshot) Len() int { return len(s.events) }

// Events returns all events in the snapshot in unspecified order.
func (s *Snapshot) Events() []*Event {
	out := make([]*Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	return out
}

// Parents returns the resolved merge-event ancestors of h present in this
// snapshot (its "_parents" per spec.md §3), computing and memoizing them
// on first use.
func (s *Snapshot) Parents(h EventHash) []EventHash {
	if p, ok := s.parents[h]; ok {
		return p
	}
	e, ok := s.events[h]
	if !ok {
		return nil
	}
	var resolved []EventHash
	for _, ph := range e.ParentHash {
		if parent, ok := s.events[ph]; ok && parent.IsMerge() {
			resolved = append(resolved, ph)
		}
	}
	s.parents[h] = resolved
	return resolved
}
