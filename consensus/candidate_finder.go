package consensus

import "github.com/continuity-consensus/core/dag"

// findCandidates performs CandidateFinder (spec.md §4.2): for each
// correct-tailed elector it assigns X (the branch tail, per the spec's
// resolved open question — see DESIGN.md) and then walks that branch's
// tree children forward to find Y, the earliest branch-native descendant
// whose descendants-in-path from X carry a supermajority of electors. It
// reports NoConsensus (ok=false) as soon as fewer than threshold electors
// have usable tails, Xs, or Ys.
func findCandidates(s *scratch, tails map[string][]dag.EventHash, electorSet map[string]bool, threshold int) (xByElector, yByElector map[string]dag.EventHash, ok bool) {
	xByElector = make(map[string]dag.EventHash)
	yByElector = make(map[string]dag.EventHash)

	usableTails := 0
	for creator, ts := range tails {
		if s.byzantineTail[creator] || len(ts) != 1 {
			continue
		}
		usableTails++
	}
	if usableTails < threshold {
		return nil, nil, false
	}

	for creator, ts := range tails {
		if s.byzantineTail[creator] || len(ts) != 1 {
			continue
		}
		x := ts[0]
		xByElector[creator] = x

		ancestryOfX := buildAncestryMap(s, x)
		dm := newDescendantMap()
		s.xDescendants[creator] = dm

		if hasSufficientEndorsements(s, x, dm, electorSet, threshold) {
			// threshold == 1: the tail's own creator already forms a
			// supermajority, so Y is X itself (spec.md §8 "electors.len()=1").
			yByElector[creator] = x
			continue
		}

		curr := x
		for {
			children := s.treeChildren[curr]
			if len(children) == 0 {
				break // branch exhausted, no Y this round
			}
			if len(children) > 1 {
				break // byzantine fork discovered past the tail; no Y from this branch
			}
			child := children[0]
			findDescendantsInPath(s, x, child, dm, ancestryOfX)
			if hasSufficientEndorsements(s, x, dm, electorSet, threshold) {
				yByElector[creator] = child
				break
			}
			curr = child
		}
	}

	if len(xByElector) < threshold || len(yByElector) < threshold {
		return nil, nil, false
	}
	return xByElector, yByElector, true
}
