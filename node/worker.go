package node

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/continuity-consensus/core/consensus"
	"github.com/continuity-consensus/core/crypto"
	"github.com/continuity-consensus/core/dag"
	"github.com/continuity-consensus/core/elector"
	"github.com/continuity-consensus/core/eventstore"
	"github.com/continuity-consensus/core/gossip"
	"github.com/continuity-consensus/core/log"
	"github.com/continuity-consensus/core/metrics"
)

// ErrWorkerRunning is returned by Start when the worker loop is already
// active.
var ErrWorkerRunning = errors.New("worker: already running")

// Block is a committed decision persisted at a given height: the event
// hashes a Decision named, in the order decide returned them, chained to
// its predecessor by hash.
type Block struct {
	Height               uint64
	PriorHash            dag.EventHash
	Hash                 dag.EventHash
	EventHashes          []dag.EventHash
	ConsensusProofHashes []dag.EventHash
	DecidedAt            time.Time
}

// WorkerMetrics groups the counters and histograms a Worker reports
// through its registry, mirroring the teacher's per-subsystem metric
// grouping convention.
type WorkerMetrics struct {
	DecisionRounds *metrics.Counter
	Decisions      *metrics.Counter
	NoConsensus    *metrics.Counter
	ByzantineVotes *metrics.Counter
	GossipPulls    *metrics.Counter
	GossipFailures *metrics.Counter
	DecideLatency  *metrics.Histogram
}

func newWorkerMetrics(r *metrics.Registry) *WorkerMetrics {
	return &WorkerMetrics{
		DecisionRounds: r.Counter("worker.decision_rounds"),
		Decisions:      r.Counter("worker.decisions"),
		NoConsensus:    r.Counter("worker.no_consensus"),
		ByzantineVotes: r.Counter("worker.byzantine_electors"),
		GossipPulls:    r.Counter("worker.gossip_pulls"),
		GossipFailures: r.Counter("worker.gossip_failures"),
		DecideLatency:  r.Histogram("worker.decide_latency_ms"),
	}
}

// Worker runs the per-node consensus loop (spec.md §5): it drains peer
// events through gossip into the EventStore, creates and merges local
// events, invokes consensus.Decide once new merge events are available,
// and assembles and persists the resulting blocks. A node must run at
// most one Worker, and the Worker serializes its own calls to Decide.
type Worker struct {
	config   Config
	store    *eventstore.Store
	client   gossip.Client
	selector *elector.Selector
	bus      *EventBus
	logger   *log.Logger
	wmetrics *WorkerMetrics

	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey

	// eventRate tracks the rate at which events are admitted into the
	// store, whether pulled from a peer or authored locally.
	eventRate *metrics.Meter

	mu       sync.Mutex
	peers    []string
	height   uint64
	lastHash dag.EventHash
	blocks   []*Block

	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewWorker creates a Worker wired to the given collaborators. priv may
// be nil for a node that only observes gossip and never authors events.
func NewWorker(config Config, store *eventstore.Store, client gossip.Client, selector *elector.Selector, bus *EventBus, registry *metrics.Registry, priv ed25519.PrivateKey) *Worker {
	w := &Worker{
		config:   config,
		store:    store,
		client:   client,
		selector: selector,
		bus:      bus,
		logger:   log.Default().Module("worker"),
		wmetrics:  newWorkerMetrics(registry),
		privKey:   priv,
		eventRate: metrics.NewMeter(),
	}
	if len(priv) == ed25519.PrivateKeySize {
		w.pubKey = priv.Public().(ed25519.PublicKey)
	}
	return w
}

// Name implements Service.
func (w *Worker) Name() string { return "worker" }

// AddPeer registers a gossip peer this worker pulls anti-entropy
// exchanges from. Safe to call before or after Start.
func (w *Worker) AddPeer(peer string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range w.peers {
		if p == peer {
			return
		}
	}
	w.peers = append(w.peers, peer)
}

// Start implements Service: launches the drain/merge/decide/commit loop
// on its own goroutine, ticking at config.GossipIntervalMillis.
func (w *Worker) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrWorkerRunning
	}
	w.running = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	stop, done := w.stop, w.done
	w.mu.Unlock()

	go w.loop(stop, done)
	return nil
}

// Stop implements Service: signals the loop to exit and waits for it to
// finish its current iteration.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	stop, done := w.stop, w.done
	w.mu.Unlock()

	close(stop)
	<-done
	return nil
}

func (w *Worker) loop(stop, done chan struct{}) {
	defer close(done)

	interval := time.Duration(w.config.GossipIntervalMillis) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce performs a single iteration of the worker loop: drain peer
// events, optionally author a local event, and attempt a decision. It is
// exported so callers and tests can drive the loop deterministically
// instead of waiting on the gossip-interval ticker.
func (w *Worker) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w.drainPeers(ctx)

	if w.config.ElectorID != "" {
		if err := w.createLocalEvent(); err != nil {
			w.logger.Warn("create local event failed", "err", err)
		}
	}

	w.attemptDecision()
}

// drainPeers pulls an anti-entropy exchange from every known peer and
// writes the events learned from each into the store (spec.md §5 step a).
func (w *Worker) drainPeers(ctx context.Context) {
	w.mu.Lock()
	peers := make([]string, len(w.peers))
	copy(peers, w.peers)
	w.mu.Unlock()

	if w.client == nil || len(peers) == 0 {
		return
	}

	heads := gossip.Heads(w.store.Heads())

	for _, peer := range peers {
		w.wmetrics.GossipPulls.Inc()
		ex, err := w.client.Pull(ctx, peer, heads)
		if err != nil {
			w.wmetrics.GossipFailures.Inc()
			w.logger.Debug("gossip pull failed", "peer", peer, "err", err)
			continue
		}
		for _, e := range ex.History {
			w.store.Add(e)
		}
		if len(ex.History) > 0 {
			w.eventRate.Mark(int64(len(ex.History)))
		}
	}
}

// createLocalEvent authors a merge event tying this node's own tree head
// together with the deepest known head of every other creator, signs it,
// and admits it to the store (spec.md §5 step b). The first event a node
// ever authors has no tree parent and, absent any other known creator, no
// parents at all, but is still a merge event: an elector's own chain is
// built entirely of merge events.
func (w *Worker) createLocalEvent() error {
	ownHash, hasOwn := w.store.HeadHash(w.config.ElectorID)
	heads := w.store.AllHeadHashes()

	var treeHash dag.EventHash
	parents := make([]dag.EventHash, 0, len(heads))
	if hasOwn {
		treeHash = ownHash
		parents = append(parents, ownHash)
	}
	for creator, h := range heads {
		if creator == w.config.ElectorID {
			continue
		}
		parents = append(parents, h)
	}
	dag.SortHashes(parents)

	// An elector's own authored events are always merge events, per the
	// data model: regular events carry user operations from non-elector
	// sources and are pulled in only as parentHash ancestors.
	const eventType = dag.Merge

	canonical := canonicalizeEvent(w.config.ElectorID, eventType, treeHash, parents)
	hash := crypto.Hash(canonical)

	if len(w.privKey) == ed25519.PrivateKeySize {
		sig := crypto.Sign(w.privKey, hash[:])
		if !crypto.Verify(hash[:], sig, w.pubKey) {
			return fmt.Errorf("worker: authored event failed self-verification")
		}
	}

	event := &dag.Event{
		Hash:       hash,
		Creator:    w.config.ElectorID,
		Type:       eventType,
		TreeHash:   treeHash,
		ParentHash: parents,
	}
	w.store.Add(event)
	w.eventRate.Mark(1)
	w.bus.PublishAsync(EventLocalEventCreated, event)
	return nil
}

// canonicalizeEvent produces the deterministic byte representation an
// event's hash and signature are computed over.
func canonicalizeEvent(creator string, typ dag.EventType, treeHash dag.EventHash, parents []dag.EventHash) []byte {
	buf := make([]byte, 0, len(creator)+1+32+len(parents)*32)
	buf = append(buf, []byte(creator)...)
	buf = append(buf, byte(typ))
	buf = append(buf, treeHash[:]...)
	for _, p := range parents {
		buf = append(buf, p[:]...)
	}
	return buf
}

// attemptDecision invokes consensus.Decide over the current recent
// history and, if a decision was reached, commits it (spec.md §5 steps
// c-d).
func (w *Worker) attemptDecision() {
	w.mu.Lock()
	height := w.height
	priorHash := w.lastHash
	w.mu.Unlock()

	electors, err := w.selector.Select(height, priorHash, w.config.ElectorSetSize)
	if err != nil {
		w.logger.Warn("elector selection failed", "height", height, "err", err)
		return
	}

	history := w.store.LoadRecentHistory()
	if history.Len() == 0 {
		return
	}

	w.wmetrics.DecisionRounds.Inc()
	timer := metrics.NewTimer(w.wmetrics.DecideLatency)
	decision, byzantine, err := consensus.Decide(history, electors, height)
	timer.Stop()

	for _, b := range byzantine {
		w.wmetrics.ByzantineVotes.Inc()
		w.bus.PublishAsync(EventByzantineElector, b)
		w.logger.Warn("byzantine elector detected", "elector", b.Elector, "reason", b.Reason)
	}

	if err != nil {
		w.logger.Error("decide failed on malformed history", "err", err)
		return
	}
	if decision == nil {
		w.wmetrics.NoConsensus.Inc()
		return
	}

	w.commit(decision, height)
}

// commit persists a reached Decision as the next Block, retracts its
// events from the store's recent-history cache, and publishes
// notifications on the event bus (spec.md §5 step d).
func (w *Worker) commit(decision *consensus.Decision, height uint64) {
	w.store.MarkConsensus(decision.EventHashes)

	w.mu.Lock()
	block := &Block{
		Height:               height,
		PriorHash:            w.lastHash,
		EventHashes:          decision.EventHashes,
		ConsensusProofHashes: decision.ConsensusProofHashes,
		DecidedAt:            time.Now(),
	}
	block.Hash = crypto.Hash(blockCanonical(block))
	w.lastHash = block.Hash
	w.height = height + 1
	w.blocks = append(w.blocks, block)
	w.mu.Unlock()

	w.wmetrics.Decisions.Inc()
	w.bus.PublishAsync(EventNewDecision, block)
	w.bus.PublishAsync(EventCommittedHead, block.Hash)
	w.logger.Info("decision committed", "height", height, "events", len(decision.EventHashes))
}

// blockCanonical produces the deterministic byte representation a
// block's hash is computed over.
func blockCanonical(b *Block) []byte {
	buf := make([]byte, 0, 8+32+len(b.EventHashes)*32)
	var heightBuf [8]byte
	for i := 0; i < 8; i++ {
		heightBuf[i] = byte(b.Height >> (8 * (7 - i)))
	}
	buf = append(buf, heightBuf[:]...)
	buf = append(buf, b.PriorHash[:]...)
	for _, h := range b.EventHashes {
		buf = append(buf, h[:]...)
	}
	return buf
}

// Height returns the next block height the worker will attempt to
// decide.
func (w *Worker) Height() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.height
}

// Blocks returns a copy of every block committed so far, in commit
// order.
func (w *Worker) Blocks() []*Block {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Block, len(w.blocks))
	copy(out, w.blocks)
	return out
}

// LatestBlock returns the most recently committed block, or nil if none
// has been committed yet.
func (w *Worker) LatestBlock() *Block {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.blocks) == 0 {
		return nil
	}
	return w.blocks[len(w.blocks)-1]
}

// Store returns the worker's event store, for wiring into a gossip
// server that answers peer pulls against this node's own history.
func (w *Worker) Store() *eventstore.Store {
	return w.store
}

// PeerCount returns the number of gossip peers currently registered.
func (w *Worker) PeerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.peers)
}

// EventRate returns the 1-minute event admission rate, in events per
// second, covering both peer-pulled and locally authored events.
func (w *Worker) EventRate() float64 {
	return w.eventRate.Rate1()
}

// Running reports whether the worker loop is currently active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Check implements SubsystemChecker so a Worker can be registered with a
// HealthChecker.
func (w *Worker) Check() *SubsystemHealth {
	w.mu.Lock()
	running := w.running
	height := w.height
	blockCount := len(w.blocks)
	w.mu.Unlock()

	status := StatusHealthy
	if !running {
		status = StatusUnhealthy
	}
	return &SubsystemHealth{
		Status:  status,
		Message: fmt.Sprintf("height=%d committed=%d", height, blockCount),
	}
}
