// Package chainstate defines the read-only collaborator contracts the
// routing core consumes (account snapshots, USD prices, token decimals) and
// a minimal in-memory reference implementation. The production ingestion
// pipeline — streaming source plus snapshot reconciliation — is an external
// collaborator and out of scope; this package only owns the store the core
// reads from and applying discrete account-update events to it.
package chainstate

import (
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// ErrAccountNotFound is returned by Store.Account when the pubkey is unknown.
var ErrAccountNotFound = errors.New("chainstate: account not found")

// Account is a point-in-time snapshot of one on-chain account.
type Account struct {
	Slot         uint64
	WriteVersion uint64
	Owner        solana.PublicKey
	Lamports     uint64
	Data         []byte
}

// Store is the read-only account-snapshot contract SwapAssembler and venue
// adapters consume. Reads are live: the router hands the same Store to every
// Prepare call and takes no snapshot at search entry, so an account applied
// in the middle of a request is visible to the re-quotes that follow it.
type Store interface {
	Account(pubkey solana.PublicKey) (Account, error)
}

// PriceCache resolves a mint's USD price. Consumed read-only by Edge price
// sampling (update_price_samples).
type PriceCache interface {
	PriceUI(m solana.PublicKey) (float64, bool)
}

// TokenCache resolves a mint's decimal count. Consumed read-only by Edge
// price sampling and SwapAssembler.
type TokenCache interface {
	Decimals(m solana.PublicKey) (uint8, bool)
}

// MemStore is a concurrency-safe, in-memory Store backed by a map. It is the
// reference implementation used by tests and the accountfeed consumer; a
// production deployment may back Store with a different snapshot source
// without the routing core noticing.
type MemStore struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]Account
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{accounts: make(map[solana.PublicKey]Account)}
}

// Account implements Store.
func (s *MemStore) Account(pubkey solana.PublicKey) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[pubkey]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

// Apply writes or overwrites an account snapshot. Updates that arrive with a
// lower slot than the currently stored one are ignored in place, since
// account-update events are applied in arrival order but may race a
// reconnect replaying recent history.
func (s *MemStore) Apply(pubkey solana.PublicKey, acc Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.accounts[pubkey]; ok {
		if acc.Slot < existing.Slot {
			return
		}
		if acc.Slot == existing.Slot && acc.WriteVersion < existing.WriteVersion {
			return
		}
	}
	s.accounts[pubkey] = acc
}

// MemPriceCache is a simple in-memory PriceCache for tests and wiring demos.
type MemPriceCache struct {
	mu     sync.RWMutex
	prices map[solana.PublicKey]float64
}

// NewMemPriceCache creates an empty in-memory price cache.
func NewMemPriceCache() *MemPriceCache {
	return &MemPriceCache{prices: make(map[solana.PublicKey]float64)}
}

// Set stores the USD price for a mint.
func (c *MemPriceCache) Set(m solana.PublicKey, priceUSD float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[m] = priceUSD
}

// PriceUI implements PriceCache.
func (c *MemPriceCache) PriceUI(m solana.PublicKey) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[m]
	return p, ok
}

// MemTokenCache is a simple in-memory TokenCache for tests and wiring demos.
type MemTokenCache struct {
	mu       sync.RWMutex
	decimals map[solana.PublicKey]uint8
}

// NewMemTokenCache creates an empty in-memory token cache.
func NewMemTokenCache() *MemTokenCache {
	return &MemTokenCache{decimals: make(map[solana.PublicKey]uint8)}
}

// Set stores the decimal count for a mint.
func (c *MemTokenCache) Set(m solana.PublicKey, decimals uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decimals[m] = decimals
}

// Decimals implements TokenCache.
func (c *MemTokenCache) Decimals(m solana.PublicKey) (uint8, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.decimals[m]
	return d, ok
}
