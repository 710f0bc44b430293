// Package gossip implements the GossipClient/GossipServer external
// collaborators (spec.md §6): the anti-entropy exchange that lets nodes
// converge on a common event history. The consensus core never imports
// this package; it only requires that gossip eventually converges when a
// supermajority of electors is honest and reachable.
package gossip

import (
	"context"

	"github.com/continuity-consensus/core/dag"
)

// Heads is a per-creator latest-known generation, the "creatorHeads"
// field of an anti-entropy exchange (spec.md §6).
type Heads map[string]int

// Exchange is the message shape gossip peers exchange: an advertised
// head event hash, the sender's per-creator heads, the events the
// responder believes the requester lacks, and whether the response was
// truncated by a size or count limit.
type Exchange struct {
	EventHash dag.EventHash
	Heads     Heads
	History   []*dag.Event
	Truncated bool
}

// Client is the outbound half of anti-entropy: asking a peer for
// whatever it has that this node's Heads do not reflect.
type Client interface {
	Pull(ctx context.Context, peer string, heads Heads) (*Exchange, error)
}

// Server is the inbound half: answering a peer's Heads with the subset
// of locally known events the peer is missing.
type Server interface {
	Serve(ctx context.Context, requester Heads) (*Exchange, error)
}

// var _ assertions are intentionally omitted. In this package, Client is
// implemented by Hub and TCPClient, and Server by the value ServerFor
// returns.
