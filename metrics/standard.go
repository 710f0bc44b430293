package metrics

// Pre-defined metrics for a ledger node. All metrics live in DefaultRegistry
// so they are globally accessible without passing a registry around.

var (
	// ---- Consensus metrics ----

	// BlockHeight tracks the latest committed block height.
	BlockHeight = DefaultRegistry.Gauge("consensus.block_height")
	// DecisionTime records how long a single Decide call took, in milliseconds.
	DecisionTime = DefaultRegistry.Histogram("consensus.decide_ms")
	// BlocksCommitted counts blocks successfully committed by the worker loop.
	BlocksCommitted = DefaultRegistry.Counter("consensus.blocks_committed")
	// ByzantineElectorsDetected counts electors flagged as Byzantine by Decide.
	ByzantineElectorsDetected = DefaultRegistry.Counter("consensus.byzantine_electors")

	// ---- Event store metrics ----

	// EventsStored tracks the number of events currently held by the store.
	EventsStored = DefaultRegistry.Gauge("eventstore.events")
	// EventsAdded counts events admitted into the store.
	EventsAdded = DefaultRegistry.Counter("eventstore.added")
	// EventsDropped counts events rejected by the store (duplicates, unknown parents).
	EventsDropped = DefaultRegistry.Counter("eventstore.dropped")

	// ---- Gossip metrics ----

	// PeersConnected tracks the current number of configured gossip peers.
	PeersConnected = DefaultRegistry.Gauge("gossip.peers")
	// ExchangesSent counts anti-entropy pulls initiated by this node.
	ExchangesSent = DefaultRegistry.Counter("gossip.exchanges_sent")
	// ExchangesReceived counts anti-entropy pulls served to peers.
	ExchangesReceived = DefaultRegistry.Counter("gossip.exchanges_received")

	// ---- RPC metrics ----

	// RPCRequests counts incoming JSON-RPC requests.
	RPCRequests = DefaultRegistry.Counter("rpc.requests")
	// RPCErrors counts JSON-RPC requests that returned an error.
	RPCErrors = DefaultRegistry.Counter("rpc.errors")
	// RPCLatency records JSON-RPC request latency in milliseconds.
	RPCLatency = DefaultRegistry.Histogram("rpc.latency_ms")

	// ---- Elector selection metrics ----

	// ElectorSetRotations counts completed elector-set selections.
	ElectorSetRotations = DefaultRegistry.Counter("elector.rotations")
)
