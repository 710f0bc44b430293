package gossip

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/continuity-consensus/core/dag"
)

// ErrUnknownPeer is returned when Hub.Pull targets a peer id that was
// never registered.
var ErrUnknownPeer = errors.New("gossip: unknown peer")

// Store is the subset of eventstore.Store a Hub peer needs: enough to
// answer an anti-entropy request and to learn from one.
type Store interface {
	Add(e *dag.Event)
	Heads() map[string]int
	LoadRecentHistory() *dag.Snapshot
}

// Hub is an in-process peer registry standing in for a real transport.
// It lets every node in a single process reach every other node by id,
// which is all anti-entropy needs: the wire codec in wire.go is what a
// real network transport would carry between processes.
type Hub struct {
	mu    sync.RWMutex
	peers map[string]Store
}

// NewHub returns an empty peer registry.
func NewHub() *Hub {
	return &Hub{peers: make(map[string]Store)}
}

// Register attaches a peer's store to the hub under id, replacing any
// prior registration.
func (h *Hub) Register(id string, store Store) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[id] = store
}

// Unregister removes a peer, e.g. on graceful shutdown.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, id)
}

// Pull implements Client by looking up peer in the hub and serving the
// request against its store directly, bypassing any wire encoding.
func (h *Hub) Pull(ctx context.Context, peer string, heads Heads) (*Exchange, error) {
	h.mu.RLock()
	store, ok := h.peers[peer]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, peer)
	}
	return serve(store, heads)
}

// ServerFor returns a Server bound to a single peer's store, suitable
// for handing to a real transport's request handler.
func ServerFor(store Store) Server {
	return serverFunc(func(ctx context.Context, requester Heads) (*Exchange, error) {
		return serve(store, requester)
	})
}

type serverFunc func(ctx context.Context, requester Heads) (*Exchange, error)

func (f serverFunc) Serve(ctx context.Context, requester Heads) (*Exchange, error) {
	return f(ctx, requester)
}

// maxExchangeEvents bounds a single anti-entropy response so one laggy
// peer can't force an unbounded reply.
const maxExchangeEvents = 1024

// serve computes the events in store that requester's heads do not yet
// reflect: every recent-history event of a creator that is missing from
// requester, or whose head depth in store exceeds the requester's
// recorded depth for that creator. Events are not filtered by their own
// depth, so all of such a creator's recent events are sent.
func serve(store Store, requester Heads) (*Exchange, error) {
	snap := store.LoadRecentHistory()
	heads := store.Heads()

	missing := make([]*dag.Event, 0)
	truncated := false
	for _, e := range snap.Events() {
		known, ok := requester[e.Creator]
		if ok && heads[e.Creator] <= known {
			continue
		}
		if len(missing) >= maxExchangeEvents {
			truncated = true
			break
		}
		missing = append(missing, e)
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].Hash.Less(missing[j].Hash) })

	var head dag.EventHash
	if len(missing) > 0 {
		head = missing[len(missing)-1].Hash
	}

	return &Exchange{
		EventHash: head,
		Heads:     heads,
		History:   missing,
		Truncated: truncated,
	}, nil
}
