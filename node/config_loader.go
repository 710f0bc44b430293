package node

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// NodeConfig holds the full configuration for a ledger node, parsed from
// a TOML-like configuration file. It is separate from Config to support
// richer structured configuration with nested sections.
type NodeConfig struct {
	DataDir   string
	ElectorID string

	Gossip    GossipSectionConfig
	RPC       RPCConfig
	Consensus ConsensusConfig
	Log       LogConfig
}

// GossipSectionConfig holds anti-entropy transport configuration.
type GossipSectionConfig struct {
	Port           int
	MaxPeers       int
	BootstrapPeers []string
}

// RPCConfig holds status/ops endpoint configuration.
type RPCConfig struct {
	Enabled bool
	Host    string
	Port    int
	APIs    []string
}

// ConsensusConfig holds elector selection and decision-loop
// configuration.
type ConsensusConfig struct {
	ElectorPoolSize      int
	ElectorSetSize       int
	GossipIntervalMillis int
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// DefaultNodeConfig returns a NodeConfig with sensible defaults.
func DefaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		DataDir: defaultDataDir(),
		Gossip: GossipSectionConfig{
			Port:           7946,
			MaxPeers:       50,
			BootstrapPeers: nil,
		},
		RPC: RPCConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8645,
			APIs:    []string{"status", "decisions"},
		},
		Consensus: ConsensusConfig{
			ElectorPoolSize:      21,
			ElectorSetSize:       7,
			GossipIntervalMillis: 500,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ValidateNodeConfig checks the configuration for correctness.
func (nc *NodeConfig) ValidateNodeConfig() error {
	if nc.DataDir == "" {
		return errors.New("config: datadir must not be empty")
	}

	// Gossip validation.
	if nc.Gossip.Port < 0 || nc.Gossip.Port > 65535 {
		return fmt.Errorf("config: invalid gossip port: %d", nc.Gossip.Port)
	}
	if nc.Gossip.MaxPeers < 0 {
		return fmt.Errorf("config: invalid max_peers: %d", nc.Gossip.MaxPeers)
	}

	// RPC validation.
	if nc.RPC.Port < 0 || nc.RPC.Port > 65535 {
		return fmt.Errorf("config: invalid rpc port: %d", nc.RPC.Port)
	}
	if nc.RPC.Enabled && nc.RPC.Host == "" {
		return errors.New("config: rpc host must not be empty when rpc is enabled")
	}

	// Consensus validation.
	if nc.Consensus.ElectorPoolSize <= 0 {
		return fmt.Errorf("config: invalid elector_pool_size: %d", nc.Consensus.ElectorPoolSize)
	}
	if nc.Consensus.ElectorSetSize <= 0 || nc.Consensus.ElectorSetSize > nc.Consensus.ElectorPoolSize {
		return fmt.Errorf("config: invalid elector_set_size: %d (pool %d)", nc.Consensus.ElectorSetSize, nc.Consensus.ElectorPoolSize)
	}
	if nc.Consensus.GossipIntervalMillis <= 0 {
		return fmt.Errorf("config: gossip_interval_millis must be greater than 0")
	}

	// Log validation.
	switch nc.Log.Level {
	case "debug", "info", "warn", "error", "trace":
	default:
		return fmt.Errorf("config: unknown log level %q", nc.Log.Level)
	}
	switch nc.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", nc.Log.Format)
	}

	return nil
}

// LoadConfig parses a TOML-like configuration from raw bytes into a NodeConfig.
// The parser handles key = value pairs and [section] headers. It supports
// string values (quoted or unquoted), integers, booleans, and arrays.
func LoadConfig(data []byte) (*NodeConfig, error) {
	cfg := DefaultNodeConfig()
	section := ""

	lines := strings.Split(string(data), "\n")
	for lineNum, raw := range lines {
		line := strings.TrimSpace(raw)

		// Skip empty lines and comments.
		if line == "" || line[0] == '#' {
			continue
		}

		// Section header.
		if line[0] == '[' {
			end := strings.Index(line, "]")
			if end < 0 {
				return nil, fmt.Errorf("line %d: unclosed section header", lineNum+1)
			}
			section = strings.TrimSpace(line[1:end])
			continue
		}

		// Key = value pair.
		eqIdx := strings.Index(line, "=")
		if eqIdx < 0 {
			return nil, fmt.Errorf("line %d: expected key = value", lineNum+1)
		}
		key := strings.TrimSpace(line[:eqIdx])
		val := strings.TrimSpace(line[eqIdx+1:])

		if err := applyConfigValue(cfg, section, key, val, lineNum+1); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// applyConfigValue sets a single configuration field based on section, key, value.
func applyConfigValue(cfg *NodeConfig, section, key, val string, lineNum int) error {
	switch section {
	case "":
		return applyTopLevel(cfg, key, val, lineNum)
	case "gossip":
		return applyGossip(cfg, key, val, lineNum)
	case "rpc":
		return applyRPC(cfg, key, val, lineNum)
	case "consensus":
		return applyConsensus(cfg, key, val, lineNum)
	case "log":
		return applyLog(cfg, key, val, lineNum)
	default:
		return fmt.Errorf("line %d: unknown section [%s]", lineNum, section)
	}
}

func applyTopLevel(cfg *NodeConfig, key, val string, lineNum int) error {
	switch key {
	case "datadir":
		cfg.DataDir = unquote(val)
	case "elector_id":
		cfg.ElectorID = unquote(val)
	default:
		return fmt.Errorf("line %d: unknown key %q in top-level", lineNum, key)
	}
	return nil
}

func applyGossip(cfg *NodeConfig, key, val string, lineNum int) error {
	switch key {
	case "port":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("line %d: invalid gossip port: %w", lineNum, err)
		}
		cfg.Gossip.Port = n
	case "max_peers":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("line %d: invalid max_peers: %w", lineNum, err)
		}
		cfg.Gossip.MaxPeers = n
	case "bootstrap_peers":
		cfg.Gossip.BootstrapPeers = parseStringArray(val)
	default:
		return fmt.Errorf("line %d: unknown key %q in [gossip]", lineNum, key)
	}
	return nil
}

func applyRPC(cfg *NodeConfig, key, val string, lineNum int) error {
	switch key {
	case "enabled":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("line %d: invalid rpc enabled: %w", lineNum, err)
		}
		cfg.RPC.Enabled = b
	case "host":
		cfg.RPC.Host = unquote(val)
	case "port":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("line %d: invalid rpc port: %w", lineNum, err)
		}
		cfg.RPC.Port = n
	case "apis":
		cfg.RPC.APIs = parseStringArray(val)
	default:
		return fmt.Errorf("line %d: unknown key %q in [rpc]", lineNum, key)
	}
	return nil
}

func applyConsensus(cfg *NodeConfig, key, val string, lineNum int) error {
	switch key {
	case "elector_pool_size":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("line %d: invalid elector_pool_size: %w", lineNum, err)
		}
		cfg.Consensus.ElectorPoolSize = n
	case "elector_set_size":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("line %d: invalid elector_set_size: %w", lineNum, err)
		}
		cfg.Consensus.ElectorSetSize = n
	case "gossip_interval_millis":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("line %d: invalid gossip_interval_millis: %w", lineNum, err)
		}
		cfg.Consensus.GossipIntervalMillis = n
	default:
		return fmt.Errorf("line %d: unknown key %q in [consensus]", lineNum, key)
	}
	return nil
}

func applyLog(cfg *NodeConfig, key, val string, lineNum int) error {
	switch key {
	case "level":
		cfg.Log.Level = unquote(val)
	case "format":
		cfg.Log.Format = unquote(val)
	default:
		return fmt.Errorf("line %d: unknown key %q in [log]", lineNum, key)
	}
	return nil
}

// unquote strips surrounding double quotes from a string value.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// parseStringArray parses a TOML-like array: ["a", "b", "c"].
func parseStringArray(s string) []string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		// Single value without brackets.
		v := unquote(strings.TrimSpace(s))
		if v == "" {
			return nil
		}
		return []string{v}
	}

	inner := s[1 : len(s)-1]
	if strings.TrimSpace(inner) == "" {
		return nil
	}

	parts := strings.Split(inner, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		v := unquote(strings.TrimSpace(p))
		if v != "" {
			result = append(result, v)
		}
	}
	return result
}

// ToConfig converts a validated NodeConfig into the flat Config a Node
// is constructed with.
func (nc *NodeConfig) ToConfig() Config {
	cfg := DefaultConfig()
	cfg.DataDir = nc.DataDir
	cfg.ElectorID = nc.ElectorID
	cfg.GossipPort = nc.Gossip.Port
	cfg.MaxPeers = nc.Gossip.MaxPeers
	cfg.RPCPort = nc.RPC.Port
	cfg.ElectorPoolSize = nc.Consensus.ElectorPoolSize
	cfg.ElectorSetSize = nc.Consensus.ElectorSetSize
	cfg.GossipIntervalMillis = nc.Consensus.GossipIntervalMillis
	cfg.LogLevel = nc.Log.Level
	return cfg
}

// MergeNodeConfig merges an override config onto a base config.
// Non-zero/non-empty values from override take priority over base.
func MergeNodeConfig(base, override *NodeConfig) *NodeConfig {
	result := *base

	if override.DataDir != "" {
		result.DataDir = override.DataDir
	}
	if override.ElectorID != "" {
		result.ElectorID = override.ElectorID
	}

	// Gossip
	if override.Gossip.Port != 0 {
		result.Gossip.Port = override.Gossip.Port
	}
	if override.Gossip.MaxPeers != 0 {
		result.Gossip.MaxPeers = override.Gossip.MaxPeers
	}
	if len(override.Gossip.BootstrapPeers) > 0 {
		result.Gossip.BootstrapPeers = override.Gossip.BootstrapPeers
	}

	// RPC: Enabled is always merged since it's meaningful as true or false.
	// We merge it only if the override has any RPC field set.
	if override.RPC.Host != "" || override.RPC.Port != 0 || len(override.RPC.APIs) > 0 {
		result.RPC.Enabled = override.RPC.Enabled
	}
	if override.RPC.Host != "" {
		result.RPC.Host = override.RPC.Host
	}
	if override.RPC.Port != 0 {
		result.RPC.Port = override.RPC.Port
	}
	if len(override.RPC.APIs) > 0 {
		result.RPC.APIs = override.RPC.APIs
	}

	// Consensus
	if override.Consensus.ElectorPoolSize != 0 {
		result.Consensus.ElectorPoolSize = override.Consensus.ElectorPoolSize
	}
	if override.Consensus.ElectorSetSize != 0 {
		result.Consensus.ElectorSetSize = override.Consensus.ElectorSetSize
	}
	if override.Consensus.GossipIntervalMillis != 0 {
		result.Consensus.GossipIntervalMillis = override.Consensus.GossipIntervalMillis
	}

	// Log
	if override.Log.Level != "" {
		result.Log.Level = override.Log.Level
	}
	if override.Log.Format != "" {
		result.Log.Format = override.Log.Format
	}

	return &result
}
