package eventstore

import (
	"testing"

	"github.com/continuity-consensus/core/dag"
)

func hash(label byte) dag.EventHash {
	var h dag.EventHash
	h[0] = label
	return h
}

func TestAddIsIdempotent(t *testing.T) {
	s := New()
	e := &dag.Event{Hash: hash(1), Creator: "A", Type: dag.Merge}
	s.Add(e)
	s.Add(e)
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestHeadsTracksDeepestPerCreator(t *testing.T) {
	s := New()
	gen1 := &dag.Event{Hash: hash(1), Creator: "A", Type: dag.Merge}
	gen2 := &dag.Event{Hash: hash(2), Creator: "A", Type: dag.Merge, TreeHash: hash(1), ParentHash: []dag.EventHash{hash(1)}}
	s.Add(gen1)
	s.Add(gen2)

	heads := s.Heads()
	if heads["A"] != 2 {
		t.Fatalf("Heads()[A] = %d, want 2", heads["A"])
	}
}

func TestLoadRecentHistoryExcludesConsensusAndRegular(t *testing.T) {
	s := New()
	merge := &dag.Event{Hash: hash(1), Creator: "A", Type: dag.Merge}
	regular := &dag.Event{Hash: hash(2), Creator: "A", Type: dag.Regular}
	consensus := &dag.Event{Hash: hash(3), Creator: "B", Type: dag.Merge}
	s.Add(merge)
	s.Add(regular)
	s.Add(consensus)
	s.MarkConsensus([]dag.EventHash{hash(3)})

	snap := s.LoadRecentHistory()
	if !snap.Has(hash(1)) {
		t.Fatal("expected merge event in recent history")
	}
	if snap.Has(hash(2)) {
		t.Fatal("regular event should not appear in recent history")
	}
	if snap.Has(hash(3)) {
		t.Fatal("consensus-marked event should be excluded")
	}
}

func TestHeadHashAndAllHeadHashes(t *testing.T) {
	s := New()
	if _, ok := s.HeadHash("A"); ok {
		t.Fatal("expected no head hash for unknown creator")
	}

	gen1 := &dag.Event{Hash: hash(1), Creator: "A", Type: dag.Merge}
	gen2 := &dag.Event{Hash: hash(2), Creator: "A", Type: dag.Merge, TreeHash: hash(1), ParentHash: []dag.EventHash{hash(1)}}
	other := &dag.Event{Hash: hash(3), Creator: "B", Type: dag.Merge}
	s.Add(gen1)
	s.Add(gen2)
	s.Add(other)

	h, ok := s.HeadHash("A")
	if !ok || h != hash(2) {
		t.Fatalf("HeadHash(A) = %x, %v; want %x, true", h, ok, hash(2))
	}

	all := s.AllHeadHashes()
	if len(all) != 2 || all["A"] != hash(2) || all["B"] != hash(3) {
		t.Fatalf("AllHeadHashes() = %v, want A->%x B->%x", all, hash(2), hash(3))
	}
}

func TestLoadAncestorsErrorsOnUnknown(t *testing.T) {
	s := New()
	s.Add(&dag.Event{Hash: hash(1), Creator: "A", Type: dag.Regular})

	if _, err := s.LoadAncestors([]dag.EventHash{hash(1)}); err != nil {
		t.Fatalf("LoadAncestors() error = %v", err)
	}
	if _, err := s.LoadAncestors([]dag.EventHash{hash(2)}); err == nil {
		t.Fatal("expected error for unknown ancestor")
	}
}
