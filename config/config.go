// Package config loads the YAML-backed configuration every cmd/router
// collaborator is constructed from: mints, edges/pools to seed the edge
// registry with, hot-mint set, and the router/pruner/pathcache tunables.
//
// The teacher's own config subpackage (cmd/client/config) was not present
// in the retrieval pack's file list, only referenced by import from
// cmd/client/main.go; this package is rebuilt following the same call
// shape (config.LoadConfig(path)) using gopkg.in/yaml.v3, the library the
// teacher's go.mod already depends on for this purpose.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gagliardetto/solana-go"

	"github.com/solroute/swap-router-go/pathcache"
	"github.com/solroute/swap-router-go/pruner"
	"github.com/solroute/swap-router-go/router"
)

// PoolConfig seeds one constant-product pool at start-up, identified by
// the venue edge ID it will be looked up by.
type PoolConfig struct {
	VenueID        string `yaml:"venue_id"`
	VenueEdgeID    string `yaml:"venue_edge_id"`
	InputMint      string `yaml:"input_mint"`
	OutputMint     string `yaml:"output_mint"`
	AccountsNeeded int    `yaml:"accounts_needed"`
	ReserveIn      uint64 `yaml:"reserve_in"`
	ReserveOut     uint64 `yaml:"reserve_out"`
	FeeBps         uint64 `yaml:"fee_bps"`
}

// RouterConfig mirrors router.Config with YAML-friendly duration strings.
type RouterConfig struct {
	MaxPathLength      int      `yaml:"max_path_length"`
	RetainPathCount    int      `yaml:"retain_path_count"`
	OverquoteRatio     float64  `yaml:"overquote_ratio"`
	PathCacheValidity  string   `yaml:"path_cache_validity"`
	MaxEdgePerPair     int      `yaml:"max_edge_per_pair"`
	MaxEdgePerColdPair int      `yaml:"max_edge_per_cold_pair"`
	PathWarmingAmounts []uint64 `yaml:"path_warming_amounts"`
	AvoidColdMints     bool     `yaml:"avoid_cold_mints"`
}

// PathCacheConfig mirrors pathcache.Config with a YAML-friendly duration.
type PathCacheConfig struct {
	MaxAge string `yaml:"max_age"`
}

// Config is the top-level configuration document loaded from YAML.
type Config struct {
	StateStreamURL string            `yaml:"state_stream_url"`
	ListenAddr     string             `yaml:"listen_addr"`
	Mints          []string           `yaml:"mints"`
	HotMints       []string           `yaml:"hot_mints"`
	Pools          []PoolConfig       `yaml:"pools"`
	Router         RouterConfig       `yaml:"router"`
	PathCache      PathCacheConfig    `yaml:"path_cache"`
	SweepInterval  string             `yaml:"sweep_interval"`
	RefreshInterval string            `yaml:"refresh_interval"`
	// ExecutorProgramID is the on-chain program the assembler's composed
	// swap instruction targets. No default is assumed; it must name a
	// real deployed executor for the target cluster.
	ExecutorProgramID string `yaml:"executor_program_id"`
}

// LoadConfig reads and parses the YAML document at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.StateStreamURL == "" {
		return fmt.Errorf("config: state_stream_url is required")
	}
	if len(c.Mints) == 0 {
		return fmt.Errorf("config: mints must be non-empty")
	}
	if c.ExecutorProgramID == "" {
		return fmt.Errorf("config: executor_program_id is required")
	}
	return nil
}

// ExecutorProgramKey parses the configured executor program address.
func (c *Config) ExecutorProgramKey() (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(c.ExecutorProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("config: invalid executor_program_id: %w", err)
	}
	return pk, nil
}

// MintPubkeys parses every configured mint address.
func (c *Config) MintPubkeys() ([]solana.PublicKey, error) {
	out := make([]solana.PublicKey, 0, len(c.Mints))
	for _, s := range c.Mints {
		pk, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("config: invalid mint %q: %w", s, err)
		}
		out = append(out, pk)
	}
	return out, nil
}

// HotMintSet parses the configured hot-mint list into the
// map[mint.Mint]struct{} shape pruner.New and router.New expect.
func (c *Config) HotMintSet() (map[solana.PublicKey]struct{}, error) {
	out := make(map[solana.PublicKey]struct{}, len(c.HotMints))
	for _, s := range c.HotMints {
		pk, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("config: invalid hot mint %q: %w", s, err)
		}
		out[pk] = struct{}{}
	}
	return out, nil
}

// ToRouterConfig converts the YAML duration string into a router.Config.
func (c *Config) ToRouterConfig() (router.Config, error) {
	d, err := time.ParseDuration(orDefault(c.Router.PathCacheValidity, "30s"))
	if err != nil {
		return router.Config{}, fmt.Errorf("config: router.path_cache_validity: %w", err)
	}
	return router.Config{
		MaxPathLength:      c.Router.MaxPathLength,
		RetainPathCount:    c.Router.RetainPathCount,
		OverquoteRatio:     c.Router.OverquoteRatio,
		PathCacheValidity:  d,
		MaxEdgePerPair:     c.Router.MaxEdgePerPair,
		MaxEdgePerColdPair: c.Router.MaxEdgePerColdPair,
		PathWarmingAmounts: c.Router.PathWarmingAmounts,
		AvoidColdMints:     c.Router.AvoidColdMints,
	}, nil
}

// ToPrunerConfig converts the router section's edge-fanout tunables into a
// pruner.Config; pruner and router share the same max-edge-per-pair shape
// by design, so no separate YAML section is needed for it.
func (c *Config) ToPrunerConfig() pruner.Config {
	return pruner.Config{
		MaxEdgePerPair:     c.Router.MaxEdgePerPair,
		MaxEdgePerColdPair: c.Router.MaxEdgePerColdPair,
		PathWarmingAmounts: c.Router.PathWarmingAmounts,
	}
}

// ToPathCacheConfig converts the YAML duration string into a
// pathcache.Config.
func (c *Config) ToPathCacheConfig() (pathcache.Config, error) {
	d, err := time.ParseDuration(orDefault(c.PathCache.MaxAge, "2m"))
	if err != nil {
		return pathcache.Config{}, fmt.Errorf("config: path_cache.max_age: %w", err)
	}
	return pathcache.Config{MaxAge: d}, nil
}

// SweepEvery and RefreshEvery return the parsed background-maintenance
// intervals cmd/router's ticker goroutines run on.
func (c *Config) SweepEvery() (time.Duration, error) {
	return time.ParseDuration(orDefault(c.SweepInterval, "10s"))
}

func (c *Config) RefreshEvery() (time.Duration, error) {
	return time.ParseDuration(orDefault(c.RefreshInterval, "5s"))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
