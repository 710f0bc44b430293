package consensus

import "github.com/continuity-consensus/core/dag"

// VoteKind tags the three states an elector's vote can be in at a given
// event, replacing the source's sentinel-false-for-byzantine convention
// (spec.md §9 "Replacing sentinel false for byzantine vote").
type VoteKind int

const (
	// VoteUnresolved means the branch has not yet reached this elector's
	// first voting event.
	VoteUnresolved VoteKind = iota
	// VoteResolved means Event names the most recent voting event
	// observed from this elector.
	VoteResolved
	// VoteByzantine means two same-generation voting events were observed
	// from this elector; its vote is permanently excluded from tallies.
	VoteByzantine
)

// Vote is the tagged variant for an elector's vote at a point in the
// traversal: Voting(EventIndex) | Byzantine | Unresolved.
type Vote struct {
	Kind  VoteKind
	Event dag.EventHash
}

// YSet is a Y-support set: a sorted, deduplicated list of Y event hashes.
// Equality and union are linear scans over the sorted slice, and a YSet's
// canonical Signature is used to key the tally table (spec.md §9
// "Replacing pervasive deduplication on arrays").
type YSet []dag.EventHash

// NewYSet returns hashes as a canonical (sorted, deduped) YSet.
func NewYSet(hashes ...dag.EventHash) YSet {
	seen := make(map[dag.EventHash]bool, len(hashes))
	out := make(YSet, 0, len(hashes))
	for _, h := range hashes {
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	dag.SortHashes(out)
	return out
}

// Union returns the canonical union of a and b.
func (a YSet) Union(b YSet) YSet {
	return NewYSet(append(append(YSet{}, a...), b...)...)
}

// Equal reports whether a and b contain the same hashes.
func (a YSet) Equal(b YSet) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Signature returns a's canonical map key.
func (a YSet) Signature() string {
	buf := make([]byte, 0, len(a)*32)
	for _, h := range a {
		buf = append(buf, h[:]...)
	}
	return string(buf)
}

// tallyEntry is the {set, count} pair spec.md §4.3 step 2 describes.
type tallyEntry struct {
	set   YSet
	count int
}

// descendantMap is the sparse ancestorHash -> [immediate descendants]
// structure built by findDescendantsInPath and walked by flattenDescendants
// (spec.md §4.5). It is the language-neutral re-expression of the source's
// ad-hoc per-event descendant maps (spec.md §9 "Replacing pointer-and-back-
// reference graph").
type descendantMap struct {
	edges   map[dag.EventHash][]dag.EventHash
	visited map[dag.EventHash]bool // backward-traversal frontier already expanded, for idempotent re-calls
}

func newDescendantMap() *descendantMap {
	return &descendantMap{
		edges:   make(map[dag.EventHash][]dag.EventHash),
		visited: make(map[dag.EventHash]bool),
	}
}

func (d *descendantMap) add(ancestor, descendant dag.EventHash) {
	for _, existing := range d.edges[ancestor] {
		if existing == descendant {
			return
		}
	}
	d.edges[ancestor] = append(d.edges[ancestor], descendant)
}

// scratch holds every piece of derived state the algorithm attaches to
// events during a single decide() call (spec.md §3 "Derived per-event
// state"). It is created at the start of decide and discarded at the end
// (spec.md §9 "Replacing dynamic property augmentation"); nothing here is
// ever persisted.
type scratch struct {
	snap *dag.Snapshot

	// BranchBuilder output.
	treeParent    map[dag.EventHash]dag.EventHash
	treeChildren  map[dag.EventHash][]dag.EventHash
	generation    map[dag.EventHash]int
	byzantineTail map[string]bool // elector -> multiple tails or tree-children fork detected
	voteByzantine map[string]bool // elector -> two same-generation voting events observed

	// CandidateFinder output.
	xDescendants map[string]*descendantMap // per elector, descendants-in-path from its X

	// ProofProtocol per-event state.
	supporting   map[dag.EventHash]YSet
	votes        map[dag.EventHash]map[string]Vote
	preCommit    map[dag.EventHash]dag.EventHash
	confirmPoint map[dag.EventHash]dag.EventHash // precommit event -> confirm point event
	toConfirm    map[dag.EventHash]dag.EventHash // confirm point event -> precommit event
	branchY      map[dag.EventHash]dag.EventHash // _y propagated along the branch
	yDescendants map[string]*descendantMap       // elector -> accumulated descendants-in-path from that elector's Y

	// Shared ancestry memoization (buildAncestryMap, spec.md §4.5).
	ancestry map[dag.EventHash]map[dag.EventHash]bool
}

func newScratch(snap *dag.Snapshot) *scratch {
	return &scratch{
		snap:          snap,
		treeParent:    make(map[dag.EventHash]dag.EventHash),
		treeChildren:  make(map[dag.EventHash][]dag.EventHash),
		generation:    make(map[dag.EventHash]int),
		byzantineTail: make(map[string]bool),
		voteByzantine: make(map[string]bool),
		xDescendants:  make(map[string]*descendantMap),
		supporting:    make(map[dag.EventHash]YSet),
		votes:         make(map[dag.EventHash]map[string]Vote),
		preCommit:     make(map[dag.EventHash]dag.EventHash),
		confirmPoint:  make(map[dag.EventHash]dag.EventHash),
		toConfirm:     make(map[dag.EventHash]dag.EventHash),
		branchY:       make(map[dag.EventHash]dag.EventHash),
		yDescendants:  make(map[string]*descendantMap),
		ancestry:      make(map[dag.EventHash]map[dag.EventHash]bool),
	}
}
