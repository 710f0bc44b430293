package consensus

import (
	"reflect"
	"testing"

	"github.com/continuity-consensus/core/dag"
)

func TestTwoThirdsMajorityBoundary(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 3: 3, 4: 3, 7: 5, 10: 7, 13: 9}
	for n, want := range cases {
		if got := TwoThirdsMajority(n); got != want {
			t.Errorf("TwoThirdsMajority(%d) = %d, want %d", n, got, want)
		}
	}
}

// S1 — trivial single elector (spec.md §8).
func TestDecideSingleElectorTrivial(t *testing.T) {
	snap := newTestSnapshot(
		merge("a1", "A", ""),
		merge("a2", "A", "a1", "a1"),
		merge("a3", "A", "a2", "a2"),
	)

	decision, byzantine, err := Decide(snap, []string{"A"}, 1)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if len(byzantine) != 0 {
		t.Fatalf("unexpected byzantine reports: %v", byzantine)
	}
	if decision == nil {
		t.Fatal("Decide() = nil, want a reached decision")
	}
	if !reflect.DeepEqual(decision.EventHashes, []dag.EventHash{h("a1")}) {
		t.Errorf("EventHashes = %x, want [a1]", decision.EventHashes)
	}
	if !reflect.DeepEqual(decision.ConsensusProofHashes, []dag.EventHash{h("a1")}) {
		t.Errorf("ConsensusProofHashes = %x, want [a1]", decision.ConsensusProofHashes)
	}
}

// S5 — insufficient history: three of four electors have tails, none
// reaches enough endorsements for an X/Y (spec.md §8).
func TestDecideInsufficientHistoryReturnsNoConsensus(t *testing.T) {
	snap := newTestSnapshot(
		merge("a1", "A", ""),
		merge("b1", "B", ""),
		merge("c1", "C", ""),
	)

	decision, byzantine, err := Decide(snap, []string{"A", "B", "C", "D"}, 1)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision != nil {
		t.Fatalf("Decide() = %+v, want nil (NoConsensus)", decision)
	}
	if len(byzantine) != 0 {
		t.Fatalf("unexpected byzantine reports: %v", byzantine)
	}
}

// A lone byzantine elector with two tails must not prevent the core from
// reporting it, even though it does not by itself change the outcome of
// an otherwise-insufficient round.
func TestDecideReportsByzantineMultipleTails(t *testing.T) {
	snap := newTestSnapshot(
		merge("d1", "D", ""),
		merge("d1b", "D", ""),
	)

	decision, byzantine, err := Decide(snap, []string{"A", "B", "C", "D"}, 1)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision != nil {
		t.Fatalf("Decide() = %+v, want nil (NoConsensus)", decision)
	}
	if len(byzantine) != 1 || byzantine[0].Elector != "D" {
		t.Fatalf("byzantine reports = %v, want one report for D", byzantine)
	}
}

// S2 — a clean three-elector round: every elector's own X/Y resolves
// from a supermajority of the others' merge events, and the branches
// converge to a single decided Y-set once every branch tip has voted
// (spec.md §8).
//
// Layout per elector (A/B/C symmetric): a tail, a helper event citing
// all three tails directly, that elector's Y citing all three helpers,
// a vote event citing all three Ys, and one more tree-chain hop per
// elector (two of which are "helper" events citing the third elector's
// vote event directly) so a diverse-pedigree confirm point exists.
func TestDecideCleanThreeElectorRound(t *testing.T) {
	snap := newTestSnapshot(
		merge("a1", "A", ""),
		merge("b1", "B", ""),
		merge("c1", "C", ""),

		merge("aH", "A", "a1", "a1", "b1", "c1"),
		merge("bH", "B", "b1", "b1", "a1", "c1"),
		merge("cH", "C", "c1", "c1", "a1", "b1"),

		merge("aY", "A", "aH", "aH", "bH", "cH"),
		merge("bY", "B", "bH", "bH", "aH", "cH"),
		merge("cY", "C", "cH", "cH", "aH", "bH"),

		merge("aV", "A", "aY", "aY", "bY", "cY"),
		merge("bV", "B", "bY", "bY", "aY", "cY"),
		merge("cV", "C", "cY", "cY", "aY", "bY"),

		merge("aH2", "A", "aV", "aV", "cV"),
		merge("bH2", "B", "bV", "bV", "cV"),
		merge("cW", "C", "cV", "cV", "aH2", "bH2"),
	)

	decision, byzantine, err := Decide(snap, []string{"A", "B", "C"}, 1)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if len(byzantine) != 0 {
		t.Fatalf("unexpected byzantine reports: %v", byzantine)
	}
	if decision == nil {
		t.Fatal("Decide() = nil, want a reached decision")
	}
	wantEvents := []dag.EventHash{h("a1"), h("b1"), h("c1")}
	if !reflect.DeepEqual(decision.EventHashes, wantEvents) {
		t.Errorf("EventHashes = %x, want %x", decision.EventHashes, wantEvents)
	}
	wantProof := []dag.EventHash{h("aH"), h("aY"), h("bH"), h("bY"), h("cH"), h("cY")}
	if !reflect.DeepEqual(decision.ConsensusProofHashes, wantProof) {
		t.Errorf("ConsensusProofHashes = %x, want %x", decision.ConsensusProofHashes, wantProof)
	}
}

// S3 — the same clean round, with a fourth elector D whose fork (two
// branch tails) gets it excluded from X/Y selection entirely. The
// remaining three honest electors still meet the four-elector
// threshold and reach the identical decision (spec.md §8).
func TestDecideByzantineForkStillDecidesWithHonestMajority(t *testing.T) {
	snap := newTestSnapshot(
		merge("a1", "A", ""),
		merge("b1", "B", ""),
		merge("c1", "C", ""),
		merge("d1", "D", ""),
		merge("d1b", "D", ""),

		merge("aH", "A", "a1", "a1", "b1", "c1"),
		merge("bH", "B", "b1", "b1", "a1", "c1"),
		merge("cH", "C", "c1", "c1", "a1", "b1"),

		merge("aY", "A", "aH", "aH", "bH", "cH"),
		merge("bY", "B", "bH", "bH", "aH", "cH"),
		merge("cY", "C", "cH", "cH", "aH", "bH"),

		merge("aV", "A", "aY", "aY", "bY", "cY"),
		merge("bV", "B", "bY", "bY", "aY", "cY"),
		merge("cV", "C", "cY", "cY", "aY", "bY"),

		merge("aH2", "A", "aV", "aV", "cV"),
		merge("bH2", "B", "bV", "bV", "cV"),
		merge("cW", "C", "cV", "cV", "aH2", "bH2"),
	)

	decision, byzantine, err := Decide(snap, []string{"A", "B", "C", "D"}, 1)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if len(byzantine) != 1 || byzantine[0].Elector != "D" {
		t.Fatalf("byzantine reports = %v, want one report for D", byzantine)
	}
	if decision == nil {
		t.Fatal("Decide() = nil, want a reached decision despite D's fork")
	}
	wantEvents := []dag.EventHash{h("a1"), h("b1"), h("c1")}
	if !reflect.DeepEqual(decision.EventHashes, wantEvents) {
		t.Errorf("EventHashes = %x, want %x", decision.EventHashes, wantEvents)
	}
	wantProof := []dag.EventHash{h("aH"), h("aY"), h("bH"), h("bY"), h("cH"), h("cY")}
	if !reflect.DeepEqual(decision.ConsensusProofHashes, wantProof) {
		t.Errorf("ConsensusProofHashes = %x, want %x", decision.ConsensusProofHashes, wantProof)
	}
}

func TestDecideRejectsMalformedHistory(t *testing.T) {
	bad := &dag.Event{
		Hash:     h("bad"),
		Creator:  "A",
		Type:     dag.Merge,
		TreeHash: h("missing"),
	}
	snap := newTestSnapshot(merge("a1", "A", ""), bad)

	_, _, err := Decide(snap, []string{"A"}, 1)
	if err == nil {
		t.Fatal("Decide() error = nil, want ErrMalformedHistory")
	}
}
