// Package consensus implements the decision algorithm for a Byzantine
// fault-tolerant consensus core over an event DAG: branch resolution,
// candidate proof-event selection, the voting/precommit protocol, and
// derivation of the committed event set from a reached decision.
package consensus

import "github.com/continuity-consensus/core/dag"

// Decision is the outcome of a reached consensus round: the full set of
// event hashes to include in the next block, and the consensus-proof
// hashes that justify it.
type Decision struct {
	// EventHashes are every committed event, sorted lexicographically by
	// hash (spec.md §8 invariant 1).
	EventHashes []dag.EventHash
	// ConsensusProofHashes are the endorsements of each paired X, sorted
	// lexicographically by hash.
	ConsensusProofHashes []dag.EventHash
}

// TwoThirdsMajority returns the supermajority threshold for n electors:
// n itself when n ≤ 3, otherwise 2·⌊n/3⌋ + 1.
func TwoThirdsMajority(n int) int {
	if n <= 3 {
		return n
	}
	return 2*(n/3) + 1
}

// Decide runs a single consensus attempt over history for the given
// elector set at blockHeight (spec.md §2). It returns (nil, byzantine,
// nil) when no decision is possible this round — the caller should run
// gossip and retry later, which is not an error. A non-nil error means
// history violated a structural invariant and must not be retried
// unchanged (spec.md §7).
func Decide(history *dag.Snapshot, electors []string, blockHeight uint64) (*Decision, []*ByzantineElector, error) {
	electorSet := make(map[string]bool, len(electors))
	for _, e := range electors {
		electorSet[e] = true
	}
	threshold := TwoThirdsMajority(len(electors))

	s := newScratch(history)

	tails, byzantine, err := buildBranches(s, electorSet)
	if err != nil {
		return nil, nil, err
	}

	xByElector, yByElector, ok := findCandidates(s, tails, electorSet, threshold)
	if !ok {
		return nil, withVoteByzantine(s, byzantine), nil
	}

	finalYs, ok := runProofProtocol(s, yByElector, electorSet, threshold)
	if !ok {
		return nil, withVoteByzantine(s, byzantine), nil
	}

	committed, proof := commit(s, finalYs, xByElector, threshold)

	return &Decision{
		EventHashes:          committed,
		ConsensusProofHashes: proof,
	}, withVoteByzantine(s, byzantine), nil
}

func withVoteByzantine(s *scratch, byzantine []*ByzantineElector) []*ByzantineElector {
	reported := make(map[string]bool, len(byzantine))
	for _, b := range byzantine {
		reported[b.Elector] = true
	}
	for elector := range s.voteByzantine {
		if !reported[elector] {
			byzantine = append(byzantine, &ByzantineElector{Elector: elector, Reason: "two same-generation voting events"})
		}
	}
	return byzantine
}
