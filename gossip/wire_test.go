package gossip

import (
	"testing"

	"github.com/continuity-consensus/core/dag"
)

func hh(label byte) dag.EventHash {
	var h dag.EventHash
	h[0] = label
	return h
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ex := &Exchange{
		EventHash: hh(1),
		Heads:     Heads{"A": 3, "B": 7},
		Truncated: true,
		History: []*dag.Event{
			{
				Hash:       hh(2),
				Creator:    "A",
				Type:       dag.Merge,
				TreeHash:   hh(1),
				ParentHash: []dag.EventHash{hh(1), hh(3)},
			},
			{
				Hash:    hh(3),
				Creator: "B",
				Type:    dag.Regular,
			},
		},
	}

	encoded := Encode(ex)
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if decoded.EventHash != ex.EventHash {
		t.Fatalf("EventHash mismatch: got %v want %v", decoded.EventHash, ex.EventHash)
	}
	if decoded.Truncated != ex.Truncated {
		t.Fatal("Truncated mismatch")
	}
	if len(decoded.Heads) != len(ex.Heads) || decoded.Heads["A"] != 3 || decoded.Heads["B"] != 7 {
		t.Fatalf("Heads mismatch: got %v", decoded.Heads)
	}
	if len(decoded.History) != 2 {
		t.Fatalf("History len = %d, want 2", len(decoded.History))
	}
	if decoded.History[0].Hash != hh(2) || decoded.History[0].Creator != "A" ||
		decoded.History[0].Type != dag.Merge || decoded.History[0].TreeHash != hh(1) ||
		len(decoded.History[0].ParentHash) != 2 {
		t.Fatalf("History[0] mismatch: got %+v", decoded.History[0])
	}
	if decoded.History[1].Hash != hh(3) || decoded.History[1].Type != dag.Regular {
		t.Fatalf("History[1] mismatch: got %+v", decoded.History[1])
	}
}

func TestEncodeDecodeEmptyExchange(t *testing.T) {
	ex := &Exchange{EventHash: hh(9), Heads: Heads{}}
	decoded, err := Decode(Encode(ex))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(decoded.Heads) != 0 || len(decoded.History) != 0 || decoded.Truncated {
		t.Fatalf("expected empty exchange, got %+v", decoded)
	}
}

func TestDecodeTruncatedInputFails(t *testing.T) {
	ex := &Exchange{EventHash: hh(1), Heads: Heads{"A": 1}}
	encoded := Encode(ex)

	for cut := 0; cut < len(encoded); cut++ {
		if _, err := Decode(encoded[:cut]); err == nil {
			t.Fatalf("Decode() of truncated input at %d bytes did not error", cut)
		}
	}
}
