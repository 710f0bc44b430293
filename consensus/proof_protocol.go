package consensus

import "github.com/continuity-consensus/core/dag"

// runProofProtocol performs ProofProtocol (spec.md §4.3): starting from
// each elector's Y, it walks every Y-branch forward through the shared
// tally table until a confirm point fires, returning the final Y-set. It
// returns ok=false if every branch exhausts without a decision.
func runProofProtocol(s *scratch, yByElector map[string]dag.EventHash, electorSet map[string]bool, threshold int) (YSet, bool) {
	if threshold <= 1 {
		// A single elector's own Y already is the whole supermajority: the
		// generic tally below only bumps a count on a *change* of support,
		// which never happens here since there is nothing else to converge
		// with (spec.md §8 "electors.len()=1: trivial").
		var ys []dag.EventHash
		for _, y := range yByElector {
			ys = append(ys, y)
		}
		return NewYSet(ys...), len(ys) > 0
	}

	tally := make(map[string]*tallyEntry)

	branchNodes := make(map[dag.EventHash]bool)
	for _, y := range yByElector {
		walkBranch(s, y, branchNodes)
	}

	initYs(s, yByElector)

	inDegree := make(map[dag.EventHash]int)
	adj := make(map[dag.EventHash][]dag.EventHash)
	for h := range branchNodes {
		for _, p := range s.snap.Parents(h) {
			if branchNodes[p] {
				inDegree[h]++
				adj[p] = append(adj[p], h)
			}
		}
	}

	isY := make(map[dag.EventHash]bool, len(yByElector))
	for _, y := range yByElector {
		isY[y] = true
	}

	processed := make(map[dag.EventHash]bool, len(branchNodes))
	var frontier []dag.EventHash
	for h := range branchNodes {
		if inDegree[h] == 0 {
			frontier = append(frontier, h)
		}
	}

	for len(frontier) > 0 {
		dag.SortHashes(frontier)
		curr := frontier[0]
		frontier = frontier[1:]
		if processed[curr] {
			continue
		}
		processed[curr] = true

		if !isY[curr] {
			if result, done := stepEvent(s, curr, yByElector, electorSet, threshold, tally); done {
				return result, true
			}
		}

		for _, next := range adj[curr] {
			inDegree[next]--
			if inDegree[next] == 0 {
				frontier = append(frontier, next)
			}
		}
	}

	return nil, false
}

// walkBranch collects every branch-native event reachable forward from y
// through a single, non-forking chain of tree children, stopping at a
// byzantine fork or the branch's end.
func walkBranch(s *scratch, y dag.EventHash, into map[dag.EventHash]bool) {
	curr := y
	for {
		if into[curr] {
			return
		}
		into[curr] = true
		children := s.treeChildren[curr]
		if len(children) != 1 {
			return
		}
		curr = children[0]
	}
}

// initYs assigns the starting _supporting/_votes/_y state to every Y
// (spec.md §4.3 "Initialization").
func initYs(s *scratch, yByElector map[string]dag.EventHash) {
	for _, y := range yByElector {
		ancestryOfY := buildAncestryMap(s, y)
		var members []dag.EventHash
		votes := make(map[string]Vote, len(yByElector))
		for otherCreator, otherY := range yByElector {
			if ancestryOfY[otherY] {
				members = append(members, otherY)
				votes[otherCreator] = Vote{Kind: VoteResolved, Event: otherY}
			}
		}
		s.supporting[y] = NewYSet(members...)
		s.votes[y] = votes
		s.branchY[y] = y
	}
}

// stepEvent performs the per-event step of ProofProtocol (spec.md §4.3
// steps 1-6) for a non-Y branch event. It returns (decidedSet, true) the
// moment a confirm point fires.
func stepEvent(s *scratch, e dag.EventHash, yByElector map[string]dag.EventHash, electorSet map[string]bool, threshold int, tally map[string]*tallyEntry) (YSet, bool) {
	event := s.snap.Event(e)
	parent := s.treeParent[e]

	// _y is constant along a branch; set it early so self-referencing
	// votes recorded below (an event can vote for itself before its own
	// publish step runs) resolve to the same value a later read would.
	s.branchY[e] = s.branchY[parent]

	// 1. Collect votes: inherit from the tree parent, then fold in newly
	// reachable voting events along each elector's Y-path.
	newVotes := make(map[string]Vote, len(yByElector))
	for creator, v := range s.votes[parent] {
		newVotes[creator] = v
	}
	ancestryOfE := buildAncestryMap(s, e)
	for creator2, y2 := range yByElector {
		if !ancestryOfE[y2] {
			continue
		}
		dm2, ok := s.yDescendants[creator2]
		if !ok {
			dm2 = newDescendantMap()
			s.yDescendants[creator2] = dm2
		}
		ancestryOfY2 := buildAncestryMap(s, y2)
		findDescendantsInPath(s, y2, e, dm2, ancestryOfY2)

		y2gen := s.generation[y2]
		for _, h := range append(flattenDescendants(y2, dm2), y2) {
			ev := s.snap.Event(h)
			if ev == nil || !ev.IsMerge() || !electorSet[ev.Creator] {
				continue
			}
			gen := s.generation[h]
			if gen < y2gen {
				continue
			}
			existing, had := newVotes[ev.Creator]
			switch {
			case !had || existing.Kind == VoteUnresolved:
				newVotes[ev.Creator] = Vote{Kind: VoteResolved, Event: h}
			case existing.Kind == VoteResolved:
				existingGen := s.generation[existing.Event]
				switch {
				case gen > existingGen:
					newVotes[ev.Creator] = Vote{Kind: VoteResolved, Event: h}
				case gen == existingGen && existing.Event != h:
					newVotes[ev.Creator] = Vote{Kind: VoteByzantine}
					s.voteByzantine[ev.Creator] = true
				}
			}
		}
	}
	s.votes[e] = newVotes

	// 2/3. Tally and choose next support.
	parentPreCommit, parentHasPreCommit := s.preCommit[parent]
	var nextSet YSet
	if parentHasPreCommit {
		var longest YSet
		for _, v := range newVotes {
			if v.Kind != VoteResolved {
				continue
			}
			if pc, ok := s.preCommit[v.Event]; ok {
				set := s.supporting[pc]
				if len(set) > len(longest) {
					longest = set
				}
			}
		}
		nextSet = longest
	} else {
		var ys []dag.EventHash
		for _, v := range newVotes {
			if v.Kind != VoteResolved {
				continue
			}
			ys = append(ys, s.branchY[v.Event])
		}
		nextSet = NewYSet(ys...)
	}
	entry, ok := tally[nextSet.Signature()]
	if !ok {
		entry = &tallyEntry{set: nextSet}
		tally[nextSet.Signature()] = entry
	}

	// 4. Count change.
	prevSet := s.supporting[parent]
	if !prevSet.Equal(nextSet) {
		entry.count++
	}

	// 5. Precommit logic.
	if parentHasPreCommit {
		if !s.supporting[parentPreCommit].Equal(nextSet) {
			if cp, ok := s.confirmPoint[parentPreCommit]; ok {
				delete(s.toConfirm, cp)
			}
		} else {
			s.preCommit[e] = parentPreCommit
		}
	}

	if pc, isConfirmPoint := s.toConfirm[e]; isConfirmPoint {
		if s.supporting[pc].Equal(nextSet) && entry.count >= threshold {
			return s.supporting[pc], true
		}
	}

	if _, stillHasPreCommit := s.preCommit[e]; !stillHasPreCommit && entry.count >= threshold {
		s.preCommit[e] = e
		if cp, found := findDiversePedigreeMergeEvent(s, e, electorSet, threshold); found {
			s.confirmPoint[e] = cp
			s.toConfirm[cp] = e
		}
	}

	// 6. Publish.
	s.supporting[e] = nextSet
	newVotes[event.Creator] = Vote{Kind: VoteResolved, Event: e}

	return nil, false
}
