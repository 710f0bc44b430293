// Command ledgernode is the main entry point for a continuity-consensus
// ledger node.
//
// Usage:
//
//	ledgernode [flags]
//
// Flags:
//
//	--datadir      Data directory path (default: ~/.ledgernode)
//	--elector      Elector identity this node authors events as (default: observer-only)
//	--port         Gossip listening port (default: 7946)
//	--http.port    Status/ops HTTP-RPC port (default: 8645)
//	--peers        Comma-separated list of gossip peer addresses to dial
//	--poolsize     Elector pool size (default: 21)
//	--setsize      Elector set size drawn per block height (default: 7)
//	--maxpeers     Max gossip peers (default: 50)
//	--verbosity    Log level 0-5 (default: 3)
//	--metrics      Enable metrics collection (default: false)
//	--config       Path to a TOML-like config file; explicit flags override it
//	--version      Print version and exit
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/continuity-consensus/core/elector"
	"github.com/continuity-consensus/core/node"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	parsed, exit, code := parseFlags(args)
	if exit {
		return code
	}
	cfg, peers := parsed.cfg, parsed.peers

	if parsed.configPath != "" {
		data, err := os.ReadFile(parsed.configPath)
		if err != nil {
			log.Printf("Failed to read config file %s: %v", parsed.configPath, err)
			return 1
		}
		nc, err := node.LoadConfig(data)
		if err != nil {
			log.Printf("Failed to parse config file %s: %v", parsed.configPath, err)
			return 1
		}
		fileCfg := nc.ToConfig()
		// Flags explicitly passed on the command line take priority over
		// the config file; everything else falls back to the file's value.
		for name := range parsed.explicit {
			switch name {
			case "datadir":
				fileCfg.DataDir = cfg.DataDir
			case "elector":
				fileCfg.ElectorID = cfg.ElectorID
			case "port":
				fileCfg.GossipPort = cfg.GossipPort
			case "http.port":
				fileCfg.RPCPort = cfg.RPCPort
			case "poolsize":
				fileCfg.ElectorPoolSize = cfg.ElectorPoolSize
			case "setsize":
				fileCfg.ElectorSetSize = cfg.ElectorSetSize
			case "maxpeers":
				fileCfg.MaxPeers = cfg.MaxPeers
			case "verbosity":
				fileCfg.Verbosity = cfg.Verbosity
			case "metrics":
				fileCfg.Metrics = cfg.Metrics
			}
		}
		cfg = fileCfg
	}

	cfg.LogLevel = node.VerbosityToLogLevel(cfg.Verbosity)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	// Startup banner showing resolved configuration.
	log.Printf("ledgernode %s starting", version)
	log.Printf("  datadir:     %s", cfg.DataDir)
	log.Printf("  elector:     %s", electorLabel(cfg.ElectorID))
	log.Printf("  gossip port: %d", cfg.GossipPort)
	log.Printf("  http port:   %d", cfg.RPCPort)
	log.Printf("  pool size:   %d", cfg.ElectorPoolSize)
	log.Printf("  set size:    %d", cfg.ElectorSetSize)
	log.Printf("  max peers:   %d", cfg.MaxPeers)
	log.Printf("  verbosity:   %d (%s)", cfg.Verbosity, cfg.LogLevel)
	log.Printf("  metrics:     %v", cfg.Metrics)

	if err := cfg.Validate(); err != nil {
		log.Printf("Invalid configuration: %v", err)
		return 1
	}

	if err := cfg.InitDataDir(); err != nil {
		log.Printf("Failed to initialize datadir: %v", err)
		return 1
	}
	log.Printf("Data directory initialized: %s", cfg.DataDir)

	pool := electorPool(cfg)

	n, err := node.New(&cfg, pool)
	if err != nil {
		log.Printf("Failed to create node: %v", err)
		return 1
	}

	for _, p := range peers {
		n.AddPeer(p)
	}

	if err := n.Start(); err != nil {
		log.Printf("Failed to start node: %v", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Printf("Received signal %v, shutting down...", sig)

	if err := n.Stop(); err != nil {
		log.Printf("Error during shutdown: %v", err)
		return 1
	}

	log.Println("Shutdown complete")
	return 0
}

func electorLabel(id string) string {
	if id == "" {
		return "(observer)"
	}
	return id
}

// electorPool synthesizes a placeholder candidate pool of cfg.ElectorPoolSize
// entries, ensuring this node's own ElectorID is a member when set. Real
// deployments are expected to load the pool from a configuration service;
// this CLI has no such source of truth.
func electorPool(cfg node.Config) []elector.Candidate {
	pool := make([]elector.Candidate, 0, cfg.ElectorPoolSize)
	if cfg.ElectorID != "" {
		pool = append(pool, elector.Candidate{ID: cfg.ElectorID})
	}
	for i := 0; len(pool) < cfg.ElectorPoolSize; i++ {
		id := fmt.Sprintf("elector-%d", i)
		if id == cfg.ElectorID {
			continue
		}
		pool = append(pool, elector.Candidate{ID: id})
	}
	return pool
}

// parsedFlags holds the result of a successful parseFlags call.
type parsedFlags struct {
	cfg        node.Config
	peers      []string
	configPath string
	// explicit holds the name of every flag the caller passed explicitly,
	// as opposed to one left at its Config default. Used to let an
	// explicit flag override a loaded --config file.
	explicit map[string]bool
}

// parseFlags parses CLI arguments into a Config and peer address list.
// Returns whether the caller should exit immediately, and the exit code.
func parseFlags(args []string) (parsedFlags, bool, int) {
	cfg := node.DefaultConfig()
	var peersFlag, configPath string
	fs := newFlagSet(&cfg, &peersFlag, &configPath)

	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return parsedFlags{}, true, 2
	}

	if *showVersion {
		fmt.Printf("ledgernode %s (commit %s)\n", version, commit)
		return parsedFlags{}, true, 0
	}

	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	var peers []string
	for _, p := range strings.Split(peersFlag, ",") {
		if p = strings.TrimSpace(p); p != "" {
			peers = append(peers, p)
		}
	}

	return parsedFlags{cfg: cfg, peers: peers, configPath: configPath, explicit: explicit}, false, 0
}

// newFlagSet creates a flag.FlagSet that binds all CLI flags to the given
// Config. The FlagSet uses ContinueOnError so callers control the error
// handling behavior.
func newFlagSet(cfg *node.Config, peers, configPath *string) *flagSet {
	fs := newCustomFlagSet("ledgernode")
	fs.StringVar(&cfg.DataDir, "datadir", cfg.DataDir, "data directory path")
	fs.StringVar(&cfg.ElectorID, "elector", cfg.ElectorID, "elector identity this node authors events as")
	fs.IntVar(&cfg.GossipPort, "port", cfg.GossipPort, "gossip listening port")
	fs.IntVar(&cfg.RPCPort, "http.port", cfg.RPCPort, "status/ops HTTP-RPC server port")
	fs.StringVar(peers, "peers", "", "comma-separated gossip peer addresses to dial")
	fs.IntVar(&cfg.ElectorPoolSize, "poolsize", cfg.ElectorPoolSize, "elector pool size")
	fs.IntVar(&cfg.ElectorSetSize, "setsize", cfg.ElectorSetSize, "elector set size drawn per block height")
	fs.IntVar(&cfg.MaxPeers, "maxpeers", cfg.MaxPeers, "maximum number of gossip peers")
	fs.IntVar(&cfg.Verbosity, "verbosity", cfg.Verbosity, "log level 0-5 (0=silent, 5=trace)")
	fs.BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "enable metrics collection")
	fs.StringVar(configPath, "config", "", "path to a TOML-like config file")
	return fs
}
