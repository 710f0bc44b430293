package consensus

import "testing"

// Diamond: x <- m1 <- y, x <- m2 <- y (y has two parents m1, m2, both
// descending from x).

func TestBuildAncestryMapLinear(t *testing.T) {
	snap := newTestSnapshot(
		merge("a1", "A", ""),
		merge("a2", "A", "a1", "a1"),
		merge("a3", "A", "a2", "a2"),
	)
	s := newScratch(snap)
	anc := buildAncestryMap(s, h("a3"))
	for _, label := range []string{"a1", "a2", "a3"} {
		if !anc[h(label)] {
			t.Fatalf("ancestry of a3 missing %s", label)
		}
	}
	if len(anc) != 3 {
		t.Fatalf("ancestry of a3 = %d events, want 3", len(anc))
	}
}

func TestFindDescendantsInPathAndFlatten(t *testing.T) {
	snap := newTestSnapshot(
		merge("x", "A", ""),
		merge("m1", "B", "", "x"),
		merge("m2", "C", "", "x"),
		merge("y", "D", "", "m1", "m2"),
	)
	s := newScratch(snap)
	ancestryOfX := buildAncestryMap(s, h("x"))
	dm := newDescendantMap()
	findDescendantsInPath(s, h("x"), h("y"), dm, ancestryOfX)

	reached := flattenDescendants(h("x"), dm)
	want := map[string]bool{"m1": true, "m2": true, "y": true}
	if len(reached) != len(want) {
		t.Fatalf("flattenDescendants(x) = %v, want m1,m2,y", reached)
	}
	for _, r := range reached {
		found := false
		for label := range want {
			if r == h(label) {
				found = true
			}
		}
		if !found {
			t.Fatalf("unexpected descendant %x in path from x to y", r)
		}
	}
}

func TestHasSufficientEndorsements(t *testing.T) {
	snap := newTestSnapshot(
		merge("x", "A", ""),
		merge("m1", "B", "", "x"),
		merge("m2", "C", "", "x"),
		merge("y", "D", "", "m1", "m2"),
	)
	s := newScratch(snap)
	electorSet := map[string]bool{"A": true, "B": true, "C": true, "D": true}
	ancestryOfX := buildAncestryMap(s, h("x"))
	dm := newDescendantMap()

	if hasSufficientEndorsements(s, h("x"), dm, electorSet, 3) {
		t.Fatal("expected insufficient endorsements before extending path (only creator(x) observed)")
	}

	findDescendantsInPath(s, h("x"), h("y"), dm, ancestryOfX)
	if !hasSufficientEndorsements(s, h("x"), dm, electorSet, 3) {
		t.Fatal("expected A,B,C,D endorsement (4 >= 3) after extending to y")
	}
}
