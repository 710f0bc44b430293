package consensus

import "github.com/continuity-consensus/core/dag"

// commit performs Committer (spec.md §4.4): given the decided Y-set, it
// pairs each Y with its elector's X and derives the committed event
// hashes (the ancestor closure of every paired X, plus the regular
// events swept in through those ancestors' parentHash) and the
// consensus-proof hashes (the endorsements of each X: the flattened
// descendants-in-path from X to its paired Y). If threshold is 1 the
// proof is the sentinel set {X}.
func commit(s *scratch, finalYs YSet, xByElector map[string]dag.EventHash, threshold int) (committed, proof []dag.EventHash) {
	committedSet := make(map[dag.EventHash]bool)
	proofSet := make(map[dag.EventHash]bool)

	for _, y := range finalYs {
		ye := s.snap.Event(y)
		if ye == nil {
			continue
		}
		x, ok := xByElector[ye.Creator]
		if !ok {
			continue
		}

		for h := range buildAncestryMap(s, x) {
			committedSet[h] = true
		}

		if threshold <= 1 {
			proofSet[x] = true
			continue
		}
		if dm, ok := s.xDescendants[ye.Creator]; ok {
			for _, h := range flattenDescendants(x, dm) {
				proofSet[h] = true
			}
		}
	}

	for h := range copyHashSet(committedSet) {
		e := s.snap.Event(h)
		if e == nil {
			continue
		}
		for _, ph := range e.ParentHash {
			committedSet[ph] = true
		}
	}

	return dag.SortHashes(hashSetToSlice(committedSet)), dag.SortHashes(hashSetToSlice(proofSet))
}

func copyHashSet(m map[dag.EventHash]bool) map[dag.EventHash]bool {
	out := make(map[dag.EventHash]bool, len(m))
	for h := range m {
		out[h] = true
	}
	return out
}

func hashSetToSlice(m map[dag.EventHash]bool) []dag.EventHash {
	out := make([]dag.EventHash, 0, len(m))
	for h := range m {
		out = append(out, h)
	}
	return out
}
