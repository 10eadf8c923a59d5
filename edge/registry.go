package edge

import (
	"fmt"
	"sync"

	"github.com/solroute/swap-router-go/mint"
	"github.com/solroute/swap-router-go/venue"
)

// dedupKey identifies an edge uniquely within a Registry: a venue may expose
// the same venue_edge_id in both swap directions, so input_mint must be part
// of the key.
type dedupKey struct {
	venueID     venue.ID
	venueEdgeID venue.EdgeID
	inputMint   mint.Mint
}

// Registry is the arena-of-edges: edges are appended once at load time and
// addressed thereafter by dense Handle, never by pointer. Get, Len and All
// take no lock, so every Add must finish before readers start.
type Registry struct {
	edges  []*Edge
	byKey  map[dedupKey]Handle
	mu     sync.Mutex // guards Add's dedup and Lookup; see Add's doc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[dedupKey]Handle)}
}

// Add constructs and appends one edge, returning its Handle. Returns the
// existing Handle without mutation if an edge with the same (venue_id,
// venue_edge_id, input_mint) key is already registered — registry load is
// expected to run single-threaded at startup, but Add itself is safe for
// concurrent callers racing to register the same edge.
func (r *Registry) Add(e Edge) (Handle, error) {
	if err := e.validate(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := dedupKey{venueID: e.VenueID, venueEdgeID: e.VenueEdgeID, inputMint: e.InputMint}
	if h, exists := r.byKey[key]; exists {
		return h, nil
	}

	e.state.valid = true
	h := Handle(len(r.edges))
	r.edges = append(r.edges, &e)
	r.byKey[key] = h
	return h, nil
}

// Get returns the edge at h. Panics on an out-of-range handle, since a
// Handle only ever originates from this same Registry's Add.
func (r *Registry) Get(h Handle) *Edge {
	if int(h) < 0 || int(h) >= len(r.edges) {
		panic(fmt.Sprintf("edge: handle %d out of range [0,%d)", h, len(r.edges)))
	}
	return r.edges[h]
}

// Lookup returns the Handle for a (venue_id, venue_edge_id, input_mint)
// triple, if registered.
func (r *Registry) Lookup(venueID venue.ID, venueEdgeID venue.EdgeID, inputMint mint.Mint) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byKey[dedupKey{venueID: venueID, venueEdgeID: venueEdgeID, inputMint: inputMint}]
	return h, ok
}

// Len returns the number of registered edges.
func (r *Registry) Len() int {
	return len(r.edges)
}

// All returns a defensive copy of every registered edge pointer, indexed by
// Handle.
func (r *Registry) All() []*Edge {
	out := make([]*Edge, len(r.edges))
	copy(out, r.edges)
	return out
}
