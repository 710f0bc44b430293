package node

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	ledgercrypto "github.com/continuity-consensus/core/crypto"
	"github.com/continuity-consensus/core/elector"
	"github.com/continuity-consensus/core/eventstore"
	"github.com/continuity-consensus/core/gossip"
	"github.com/continuity-consensus/core/log"
	"github.com/continuity-consensus/core/metrics"
)

// Node is the top-level ledger node that wires the event store, gossip
// transport, elector selection, and consensus worker loop into a single
// running process and manages their lifecycle. The worker is managed by a
// priority-ordered LifecycleManager; the gossip and RPC network endpoints
// are managed by a dependency-aware ServiceRegistry, since RPC status
// reporting has a genuine start-order dependency on the gossip transport.
type Node struct {
	config Config

	store       *eventstore.Store
	tcpServer   *gossip.TCPServer
	selector    *elector.Selector
	worker      *Worker
	bus         *EventBus
	health      *HealthChecker
	lifecycle   *LifecycleManager
	netServices *ServiceRegistry
	rpc         *RPCHandler
	rpcServer   *http.Server
	registry    *metrics.Registry
	exporter    *metrics.PrometheusExporter
	sysstats    *metrics.SystemMetrics
	collector   *metrics.MetricsCollector
	reporter    *metrics.MetricsReporter
	recovery    *RecoveryPolicy
	logger      *log.Logger

	mu        sync.Mutex
	running   bool
	statsStop chan struct{}
	statsDone chan struct{}
	superStop chan struct{}
	superDone chan struct{}
}

// logReportBackend adapts a Node's logger into a metrics.ReportBackend so
// periodic reporter snapshots land in the regular log stream rather than
// requiring a separate export sink.
type logReportBackend struct {
	logger *log.Logger
}

func (b logReportBackend) Report(values map[string]float64) error {
	args := make([]any, 0, len(values)*2)
	for name, v := range values {
		args = append(args, name, v)
	}
	b.logger.Info("metrics snapshot", args...)
	return nil
}

// New creates a new Node with the given configuration and elector
// candidate pool. It initializes all subsystems but does not start any
// network services; call Start for that.
func New(config *Config, pool []elector.Candidate) (*Node, error) {
	if config == nil {
		c := DefaultConfig()
		config = &c
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := config.InitDataDir(); err != nil {
		return nil, fmt.Errorf("init data dir: %w", err)
	}

	n := &Node{
		config:      *config,
		store:       eventstore.New(),
		selector:    elector.NewSelector(pool),
		bus:         NewEventBus(64),
		health:      NewHealthChecker(),
		lifecycle:   NewLifecycleManager(DefaultLifecycleConfig()),
		netServices: NewServiceRegistry(0),
		registry:    metrics.NewRegistry(),
		logger:      log.Default().Module("node"),
	}

	promCfg := metrics.DefaultPrometheusConfig()
	promCfg.Namespace = config.Name
	promCfg.EnableRuntime = config.Metrics
	n.exporter = metrics.NewPrometheusExporter(n.registry, promCfg)

	priv, err := n.loadOrCreateKey()
	if err != nil {
		return nil, fmt.Errorf("load elector key: %w", err)
	}

	n.worker = NewWorker(n.config, n.store, &gossip.TCPClient{}, n.selector, n.bus, n.registry, priv)
	n.health.RegisterSubsystem("worker", n.worker)
	if err := n.lifecycle.Register(n.worker, 10); err != nil {
		return nil, fmt.Errorf("register worker: %w", err)
	}

	if err := n.registerNetServices(); err != nil {
		return nil, fmt.Errorf("register network services: %w", err)
	}

	n.recovery = NewRecoveryPolicy()
	n.recovery.Register("worker", DefaultRecoveryConfig())

	n.sysstats = metrics.NewSystemMetrics()
	n.sysstats.SetPeerCountFunc(n.worker.PeerCount)
	n.sysstats.SetBlockHeightFunc(n.worker.Height)
	n.sysstats.SetSyncProgressFunc(func() float64 {
		// No peer-comparison protocol exists to measure true lag; treat
		// "has committed at least one block" as a coarse caught-up signal.
		if n.worker.Height() > 0 {
			return 1.0
		}
		return 0.0
	})

	n.collector = metrics.NewMetricsCollector(metrics.CollectorConfig{EnableHistograms: true})
	n.reporter = metrics.NewMetricsReporter(10 * time.Second)
	n.reporter.RegisterBackend("log", logReportBackend{logger: n.logger})

	n.rpc = NewRPCHandler(DefaultRPCHandlerConfig())
	n.registerStatusMethods()

	return n, nil
}

// loadOrCreateKey loads this node's elector signing key from its
// keystore directory, generating and persisting a new one on first run.
// Returns a nil key when ElectorID is empty (an observer-only node).
func (n *Node) loadOrCreateKey() (ed25519.PrivateKey, error) {
	if n.config.ElectorID == "" {
		return nil, nil
	}

	path := filepath.Join(n.config.DataDir, "keystore", n.config.ElectorID+".key")
	if data, err := os.ReadFile(path); err == nil {
		if len(data) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("keystore: corrupt key file %s", path)
		}
		return ed25519.PrivateKey(data), nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("keystore: read %s: %w", path, err)
	}

	_, priv, err := ledgercrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, priv, 0600); err != nil {
		return nil, fmt.Errorf("keystore: write %s: %w", path, err)
	}
	return priv, nil
}

// AddPeer registers a gossip peer (a dialable "host:port" address) for
// the worker's anti-entropy loop.
func (n *Node) AddPeer(peer string) {
	n.worker.AddPeer(peer)
}

// Start starts all node subsystems: the gossip TCP server, the RPC
// status endpoint, and the worker loop.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.running {
		return errors.New("node already running")
	}

	n.logger.Info("starting ledger node", "name", n.config.Name, "elector", n.config.ElectorID)

	if errs := n.netServices.Start(); len(errs) > 0 {
		return fmt.Errorf("start network services: %v", errs)
	}

	if errs := n.lifecycle.StartAll(); len(errs) > 0 {
		return fmt.Errorf("start subsystems: %v", errs)
	}

	n.reporter.Start()
	n.statsStop = make(chan struct{})
	n.statsDone = make(chan struct{})
	go n.publishStatsLoop(n.statsStop, n.statsDone)

	n.superStop = make(chan struct{})
	n.superDone = make(chan struct{})
	go n.superviseWorkerLoop(n.superStop, n.superDone)

	n.running = true
	n.logger.Info("node started")
	return nil
}

// publishStatsLoop periodically feeds live worker/system metrics into the
// collector and reporter so the reporter's log backend has fresh values to
// snapshot on its own ticker.
func (n *Node) publishStatsLoop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n.publishStatsOnce()
		}
	}
}

// superviseWorkerLoop watches the worker's Running state and attempts an
// auto-restart with exponential backoff if it ever exits on its own
// (the LifecycleManager only starts it once and does not retry).
func (n *Node) superviseWorkerLoop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n.superviseWorkerOnce()
		}
	}
}

func (n *Node) superviseWorkerOnce() {
	if n.worker.Running() {
		return
	}

	backoff, err := n.recovery.RecordFailure("worker", errors.New("worker loop exited"))
	if err != nil {
		n.logger.Error("worker recovery exhausted", "err", err)
		return
	}

	n.logger.Warn("worker stopped unexpectedly, restarting", "backoff", backoff)
	time.Sleep(backoff)

	if err := n.worker.Start(); err != nil {
		n.logger.Error("worker restart failed", "err", err)
		return
	}
	n.recovery.RecordSuccess("worker")
}

func (n *Node) publishStatsOnce() {
	n.sysstats.Collect()

	height := float64(n.worker.Height())
	peers := float64(n.worker.PeerCount())
	rate := n.worker.EventRate()
	cpu := float64(n.sysstats.CPUUsage().LocalTime)

	n.reporter.RecordMetric("block_height", height)
	n.reporter.RecordMetric("peer_count", peers)
	n.reporter.RecordMetric("event_rate", rate)
	n.reporter.RecordMetric("cpu_local_time", cpu)

	tags := map[string]string{"elector": n.config.ElectorID}
	n.collector.Record("block_height", height, tags)
	n.collector.Record("peer_count", peers, tags)
	n.collector.RecordHistogram("event_rate", rate)
}

// Stop gracefully shuts down all subsystems in reverse start order.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running {
		return nil
	}

	n.logger.Info("stopping ledger node")

	if n.superStop != nil {
		close(n.superStop)
		<-n.superDone
		n.superStop = nil
	}
	if n.statsStop != nil {
		close(n.statsStop)
		<-n.statsDone
		n.statsStop = nil
	}
	n.reporter.Stop()

	if errs := n.lifecycle.StopAll(); len(errs) > 0 {
		n.logger.Warn("errors stopping subsystems", "errs", errs)
	}

	if errs := n.netServices.Stop(); len(errs) > 0 {
		n.logger.Warn("errors stopping network services", "errs", errs)
	}

	n.running = false
	n.logger.Info("node stopped")
	return nil
}

// Running reports whether the node is currently running.
func (n *Node) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// Config returns the node's configuration.
func (n *Node) Config() *Config {
	return &n.config
}

// Worker returns the node's consensus worker loop.
func (n *Node) Worker() *Worker {
	return n.worker
}

// Store returns the node's event store.
func (n *Node) Store() *eventstore.Store {
	return n.store
}

// Bus returns the node's event bus.
func (n *Node) Bus() *EventBus {
	return n.bus
}

// Health returns the node's health checker.
func (n *Node) Health() *HealthChecker {
	return n.health
}

// Metrics returns the node's metrics registry.
func (n *Node) Metrics() *metrics.Registry {
	return n.registry
}

// registerStatusMethods wires the status/ops JSON-RPC methods onto the
// node's RPCHandler.
func (n *Node) registerStatusMethods() {
	n.rpc.Use(LoggingMiddleware())

	n.rpc.RegisterMethod("status_health", func(ctx *RPCContext) *RPCResponse {
		return &RPCResponse{JSONRPC: "2.0", ID: ctx.Request.ID, Result: n.health.CheckAll()}
	})
	n.rpc.RegisterMethod("status_height", func(ctx *RPCContext) *RPCResponse {
		return &RPCResponse{JSONRPC: "2.0", ID: ctx.Request.ID, Result: n.worker.Height()}
	})
	n.rpc.RegisterMethod("status_latestBlock", func(ctx *RPCContext) *RPCResponse {
		return &RPCResponse{JSONRPC: "2.0", ID: ctx.Request.ID, Result: n.worker.LatestBlock()}
	})
	n.rpc.RegisterMethod("status_metrics", func(ctx *RPCContext) *RPCResponse {
		return &RPCResponse{JSONRPC: "2.0", ID: ctx.Request.ID, Result: n.registry.Snapshot()}
	})
	n.rpc.RegisterMethod("status_system", func(ctx *RPCContext) *RPCResponse {
		n.sysstats.Collect()
		result := map[string]any{
			"goroutines":   n.sysstats.GoRoutineCount(),
			"memory":       n.sysstats.MemoryUsage(),
			"cpu":          n.sysstats.CPUUsage(),
			"uptimeSec":    n.sysstats.UptimeSeconds(),
			"peerCount":    n.sysstats.PeerCount(),
			"blockHeight":  n.sysstats.BlockHeight(),
			"syncProgress": n.sysstats.ChainSyncProgress(),
			"eventRate":    n.worker.EventRate(),
		}
		return &RPCResponse{JSONRPC: "2.0", ID: ctx.Request.ID, Result: result}
	})
	n.rpc.RegisterMethod("status_metricsHistory", func(ctx *RPCContext) *RPCResponse {
		result := map[string]any{
			"latest":           n.collector.Summary(),
			"eventRateP50":     n.collector.HistogramPercentile("event_rate", 50),
			"eventRateP99":     n.collector.HistogramPercentile("event_rate", 99),
			"reportedSnapshot": n.reporter.Snapshot(),
			"reporterRunning":  n.reporter.Running(),
			"collectedEntries": n.collector.MetricCount(),
		}
		return &RPCResponse{JSONRPC: "2.0", ID: ctx.Request.ID, Result: result}
	})
}
