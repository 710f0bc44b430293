package consensus

import (
	"fmt"

	"github.com/continuity-consensus/core/dag"
)

// buildBranches performs BranchBuilder (spec.md §4.1): for every merge
// event authored by an elector it resolves _treeParent/_treeChildren and
// assigns _generation, and returns each elector's branch tails (the
// earliest merge events on that elector's branch present in the
// snapshot). A correct elector has exactly one tail; an elector with more
// than one tail, or any event with more than one tree child, is byzantine
// and is reported back but not excluded from the scratch graph, since its
// events still contribute as ancestors to other branches.
func buildBranches(s *scratch, electorSet map[string]bool) (tails map[string][]dag.EventHash, byzantine []*ByzantineElector, err error) {
	tails = make(map[string][]dag.EventHash)

	for _, e := range s.snap.Events() {
		if !e.IsMerge() || !electorSet[e.Creator] {
			continue
		}
		if !e.HasTreeParent() {
			tails[e.Creator] = append(tails[e.Creator], e.Hash)
			continue
		}
		found := false
		for _, ph := range e.ParentHash {
			if ph == e.TreeHash {
				found = true
				break
			}
		}
		if !found {
			return nil, nil, fmt.Errorf("%w: event %x has treeHash not in parentHash", ErrMalformedHistory, e.Hash[:8])
		}
		if parent := s.snap.Event(e.TreeHash); parent != nil {
			s.treeParent[e.Hash] = e.TreeHash
			s.treeChildren[e.TreeHash] = append(s.treeChildren[e.TreeHash], e.Hash)
		} else {
			// Tree parent not present in this snapshot: already
			// consensus, or outside the loaded history window.
			tails[e.Creator] = append(tails[e.Creator], e.Hash)
		}
	}

	for creator, ts := range tails {
		if len(ts) > 1 {
			s.byzantineTail[creator] = true
			byzantine = append(byzantine, &ByzantineElector{Elector: creator, Reason: "multiple branch tails"})
		}
	}
	for parent, children := range s.treeChildren {
		if len(children) > 1 {
			if pe := s.snap.Event(parent); pe != nil && electorSet[pe.Creator] {
				if !s.byzantineTail[pe.Creator] {
					s.byzantineTail[pe.Creator] = true
					byzantine = append(byzantine, &ByzantineElector{Elector: pe.Creator, Reason: "multiple tree children"})
				}
			}
		}
	}

	for creator, ts := range tails {
		for _, tail := range ts {
			assignGenerations(s, creator, tail)
		}
	}

	return tails, byzantine, nil
}

// assignGenerations runs a forward BFS along _treeChildren from tail,
// assigning generation 1 to tail and parent-generation+1 to each
// descendant (spec.md §4.1).
func assignGenerations(s *scratch, creator string, tail dag.EventHash) {
	s.generation[tail] = 1
	queue := []dag.EventHash{tail}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, child := range s.treeChildren[curr] {
			s.generation[child] = s.generation[curr] + 1
			queue = append(queue, child)
		}
	}
}
