package consensus

import "github.com/continuity-consensus/core/dag"

// buildAncestryMap returns the closed ancestry of e (every event hash
// reachable backward through resolved merge-event parents, e included),
// memoizing the result on s so repeated queries for the same event are
// free (spec.md §4.5 "buildAncestryMap").
func buildAncestryMap(s *scratch, e dag.EventHash) map[dag.EventHash]bool {
	if m, ok := s.ancestry[e]; ok {
		return m
	}
	seen := map[dag.EventHash]bool{e: true}
	queue := []dag.EventHash{e}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, p := range s.snap.Parents(curr) {
			if !seen[p] {
				seen[p] = true
				queue = append(queue, p)
			}
		}
	}
	s.ancestry[e] = seen
	return seen
}

// findDescendantsInPath seeds dm with every edge on any path from x
// (exclusive) to y (inclusive), traversing backward from y through
// resolved parents and halting at ancestryOfX (spec.md §4.5). It is
// idempotent: calling it again with a later y only adds new edges, since
// already-expanded events are skipped via dm.visited.
func findDescendantsInPath(s *scratch, x, y dag.EventHash, dm *descendantMap, ancestryOfX map[dag.EventHash]bool) {
	queue := []dag.EventHash{y}
	localSeen := map[dag.EventHash]bool{}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		if localSeen[curr] {
			continue
		}
		localSeen[curr] = true
		if curr == x || ancestryOfX[curr] {
			continue
		}
		if dm.visited[curr] {
			continue
		}
		dm.visited[curr] = true
		for _, p := range s.snap.Parents(curr) {
			if p == x {
				dm.add(x, curr)
				continue
			}
			if ancestryOfX[p] {
				continue
			}
			dm.add(p, curr)
			queue = append(queue, p)
		}
	}
}

// flattenDescendants forward-walks from x using dm, returning the
// deduplicated set of events reached (spec.md §4.5).
func flattenDescendants(x dag.EventHash, dm *descendantMap) []dag.EventHash {
	seen := map[dag.EventHash]bool{}
	var out []dag.EventHash
	queue := []dag.EventHash{x}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, next := range dm.edges[curr] {
			if seen[next] {
				continue
			}
			seen[next] = true
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	return out
}

// hasSufficientEndorsements counts distinct elector creators observed
// forward-walking from x through dm, including creator(x) itself, and
// reports whether that count has reached s (spec.md §4.5).
func hasSufficientEndorsements(s *scratch, x dag.EventHash, dm *descendantMap, electorSet map[string]bool, threshold int) bool {
	creators := map[string]bool{}
	if xe := s.snap.Event(x); xe != nil && electorSet[xe.Creator] {
		creators[xe.Creator] = true
	}
	for _, h := range flattenDescendants(x, dm) {
		e := s.snap.Event(h)
		if e == nil || !e.IsMerge() || !electorSet[e.Creator] {
			continue
		}
		creators[e.Creator] = true
	}
	return len(creators) >= threshold
}

// findDiversePedigreeMergeEvent finds the earliest branch-native
// descendant of x (walking treeChildren) whose descendants-in-path carry
// merge events from a supermajority of electors. If threshold is 1, x
// itself qualifies (spec.md §4.5).
func findDiversePedigreeMergeEvent(s *scratch, x dag.EventHash, electorSet map[string]bool, threshold int) (dag.EventHash, bool) {
	if threshold <= 1 {
		return x, true
	}
	ancestryOfX := buildAncestryMap(s, x)
	dm := newDescendantMap()
	curr := x
	for {
		children := s.treeChildren[curr]
		if len(children) != 1 {
			return dag.EventHash{}, false
		}
		child := children[0]
		findDescendantsInPath(s, x, child, dm, ancestryOfX)
		if hasSufficientEndorsements(s, x, dm, electorSet, threshold) {
			return child, true
		}
		curr = child
	}
}
