package consensus

import "errors"

// ErrMalformedHistory is returned when the history snapshot violates a
// structural invariant (spec.md §7): a merge event whose TreeHash is not a
// member of its own ParentHash. Cycles are not detected and do not produce
// this error. It is fatal for the snapshot — callers must not retry decide
// with the same history.
var ErrMalformedHistory = errors.New("consensus: malformed history")

// ByzantineElector describes an elector whose behavior was detected to
// violate the single-branch invariant (multiple tree children, or two
// same-generation voting events). It is not fatal to the decision: the
// elector's vote is marked byzantine and its branch excluded from X/Y
// selection, but it is reported to the caller for telemetry (spec.md §7).
type ByzantineElector struct {
	Elector string
	Reason  string
}

func (b *ByzantineElector) Error() string {
	return "consensus: byzantine elector " + b.Elector + ": " + b.Reason
}
