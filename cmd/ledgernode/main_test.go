package main

import (
	"testing"
)

func TestParseFlagsDefaults(t *testing.T) {
	parsed, exit, code := parseFlags(nil)
	if exit {
		t.Fatalf("unexpected exit, code %d", code)
	}
	if len(parsed.peers) != 0 {
		t.Errorf("expected no peers, got %v", parsed.peers)
	}
	if parsed.cfg.GossipPort != 7946 {
		t.Errorf("GossipPort = %d, want 7946", parsed.cfg.GossipPort)
	}
	if parsed.cfg.RPCPort != 8645 {
		t.Errorf("RPCPort = %d, want 8645", parsed.cfg.RPCPort)
	}
	if parsed.configPath != "" {
		t.Errorf("expected no config path, got %q", parsed.configPath)
	}
	if len(parsed.explicit) != 0 {
		t.Errorf("expected no explicit flags, got %v", parsed.explicit)
	}
}

func TestParseFlagsOverrides(t *testing.T) {
	parsed, exit, code := parseFlags([]string{
		"--elector", "alice",
		"--port", "9001",
		"--peers", "10.0.0.1:7946, 10.0.0.2:7946",
		"--poolsize", "5",
		"--setsize", "3",
	})
	if exit {
		t.Fatalf("unexpected exit, code %d", code)
	}
	cfg, peers := parsed.cfg, parsed.peers
	if cfg.ElectorID != "alice" {
		t.Errorf("ElectorID = %q, want alice", cfg.ElectorID)
	}
	if cfg.GossipPort != 9001 {
		t.Errorf("GossipPort = %d, want 9001", cfg.GossipPort)
	}
	if len(peers) != 2 || peers[0] != "10.0.0.1:7946" || peers[1] != "10.0.0.2:7946" {
		t.Errorf("peers = %v, want two trimmed addresses", peers)
	}
	if cfg.ElectorPoolSize != 5 || cfg.ElectorSetSize != 3 {
		t.Errorf("pool/set size = %d/%d, want 5/3", cfg.ElectorPoolSize, cfg.ElectorSetSize)
	}
	for _, name := range []string{"elector", "port", "peers", "poolsize", "setsize"} {
		if !parsed.explicit[name] {
			t.Errorf("expected %q to be marked explicit", name)
		}
	}
	if parsed.explicit["metrics"] {
		t.Error("did not expect metrics to be marked explicit")
	}
}

func TestParseFlagsVersion(t *testing.T) {
	_, exit, code := parseFlags([]string{"--version"})
	if !exit || code != 0 {
		t.Errorf("expected immediate exit 0, got exit=%v code=%d", exit, code)
	}
}

func TestParseFlagsConfigPath(t *testing.T) {
	parsed, exit, code := parseFlags([]string{"--config", "/tmp/ledgernode.conf"})
	if exit {
		t.Fatalf("unexpected exit, code %d", code)
	}
	if parsed.configPath != "/tmp/ledgernode.conf" {
		t.Errorf("configPath = %q, want /tmp/ledgernode.conf", parsed.configPath)
	}
	if !parsed.explicit["config"] {
		t.Error("expected config to be marked explicit")
	}
}

func TestElectorPoolIncludesSelf(t *testing.T) {
	parsed, _, _ := parseFlags([]string{"--elector", "alice", "--poolsize", "3"})
	pool := electorPool(parsed.cfg)
	if len(pool) != 3 {
		t.Fatalf("expected pool size 3, got %d", len(pool))
	}
	found := false
	for _, c := range pool {
		if c.ID == "alice" {
			found = true
		}
	}
	if !found {
		t.Error("expected elector's own ID to be a pool member")
	}
}
