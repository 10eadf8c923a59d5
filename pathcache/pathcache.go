// Package pathcache amortises PathSearch across quote requests close
// enough to recently served ones.
//
// Grounded on protocols/tokenpoolregistry/system.go's single sync.Mutex
// guarding a whole map (short critical sections: one insert, one sweep),
// and the Config+validate() constructor idiom used throughout the teacher
// (e.g. patcher.StatePatcherConfig) for MaxAge.
package pathcache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/solroute/swap-router-go/edge"
	"github.com/solroute/swap-router-go/mint"
)

// minSweepInterval bounds eviction sweeps to at most one per second.
const minSweepInterval = 1 * time.Second

// Mode mirrors pathsearch.Mode without importing that package, since the
// cache only needs the two-valued tag for keying, never the search logic.
type Mode int

const (
	ExactIn Mode = iota
	ExactOut
)

// Config holds the cache's single tunable.
type Config struct {
	MaxAge time.Duration
}

func (c Config) validate() error {
	if c.MaxAge <= 0 {
		return fmt.Errorf("pathcache: MaxAge must be positive")
	}
	return nil
}

// groupKey identifies one (from, to, mode, accounts_bucket) bucket; entries
// within a group are kept sorted by AmountBucket to support the
// nearest-above/nearest-below lookup.
type groupKey struct {
	from, to       mint.Index
	mode           Mode
	accountsBucket uint64
}

// Entry is one cached discovery result for a specific (from, to) pair at a
// specific amount/accounts bucket.
type Entry struct {
	AmountBucket uint64
	CreatedAt    time.Time
	InAmount     float64
	Paths        [][]edge.Handle
}

// Cache is the binned path-discovery cache. Safe for concurrent use; all
// operations take the single whole-map lock, matching the short-critical-
// section discipline spec §5 requires.
type Cache struct {
	cfg Config

	mu        sync.Mutex
	groups    map[groupKey][]Entry
	lastSweep time.Time
}

// New constructs an empty Cache.
func New(cfg Config) (*Cache, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Cache{cfg: cfg, groups: make(map[groupKey][]Entry)}, nil
}

// AmountBucket rounds an exact input amount to the u64 bucket key per
// spec §3 ("amount_bucket is the exact input amount, rounded to u64").
func AmountBucket(amount float64) uint64 {
	if amount < 0 {
		return 0
	}
	return uint64(amount + 0.5)
}

// AccountsBucket computes the cache's accounts_bucket (divisor 5). It is not
// shared with PathSearch, whose dominance buckets use divisor 8 and are
// computed separately by pathsearch.
func AccountsBucket(maxAccounts int) uint64 {
	if maxAccounts < 0 {
		return 0
	}
	return uint64(maxAccounts) / 5
}

// Insert records one (from, to) result for a key, overwriting any existing
// entry with the same AmountBucket.
func (c *Cache) Insert(from, to mint.Index, mode Mode, accountsBucket uint64, entry Entry) {
	key := groupKey{from: from, to: to, mode: mode, accountsBucket: accountsBucket}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.groups[key]
	for i, existing := range entries {
		if existing.AmountBucket == entry.AmountBucket {
			entries[i] = entry
			c.groups[key] = entries
			return
		}
	}
	entries = append(entries, entry)
	sort.Slice(entries, func(i, j int) bool { return entries[i].AmountBucket < entries[j].AmountBucket })
	c.groups[key] = entries
}

// Lookup returns up to two candidate entries for a key: the entry with the
// largest AmountBucket <= amountBucket, and the entry with the smallest
// AmountBucket > amountBucket. Either may be absent.
func (c *Cache) Lookup(from, to mint.Index, mode Mode, amountBucket, accountsBucket uint64) (lower, upper *Entry) {
	key := groupKey{from: from, to: to, mode: mode, accountsBucket: accountsBucket}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.groups[key]
	for i := range entries {
		e := entries[i]
		if e.AmountBucket <= amountBucket {
			cp := e
			lower = &cp
		} else {
			cp := e
			upper = &cp
			break
		}
	}
	return lower, upper
}

// Sweep discards entries older than Config.MaxAge, rate-limited to at most
// one pass per second; calls within that window are no-ops.
func (c *Cache) Sweep(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) < minSweepInterval {
		return
	}
	c.lastSweep = now

	for key, entries := range c.groups {
		kept := entries[:0]
		for _, e := range entries {
			if now.Sub(e.CreatedAt) < c.cfg.MaxAge {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(c.groups, key)
		} else {
			c.groups[key] = kept
		}
	}
}

// Invalidate removes every entry for (from, to, accounts_bucket) across
// both modes, used when a cached path fails re-quote.
func (c *Cache) Invalidate(from, to mint.Index, accountsBucket uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.groups, groupKey{from: from, to: to, mode: ExactIn, accountsBucket: accountsBucket})
	delete(c.groups, groupKey{from: from, to: to, mode: ExactOut, accountsBucket: accountsBucket})
}
