// Package mint assigns dense, process-lifetime indices to token mints.
package mint

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Mint is an opaque 32-byte token identifier.
type Mint = solana.PublicKey

// Index is a small non-negative dense index assigned to a Mint at startup.
type Index int32

// Graph assigns dense indices to the set of mints known at startup. The
// mapping is immutable after Build returns: readers never take a lock.
type Graph struct {
	mints       []Mint
	mintToIndex map[Mint]Index
}

// Build constructs a Graph from the deduplicated set of mints observed
// across the edge set. The input order determines index assignment.
func Build(mints []Mint) *Graph {
	mintToIndex := make(map[Mint]Index, len(mints))
	ordered := make([]Mint, 0, len(mints))
	for _, m := range mints {
		if _, exists := mintToIndex[m]; exists {
			continue
		}
		mintToIndex[m] = Index(len(ordered))
		ordered = append(ordered, m)
	}
	return &Graph{mints: ordered, mintToIndex: mintToIndex}
}

// Len returns the number of distinct mints in the graph.
func (g *Graph) Len() int {
	return len(g.mints)
}

// IndexOf returns the dense index for a mint, or false if it is unknown.
func (g *Graph) IndexOf(m Mint) (Index, bool) {
	idx, ok := g.mintToIndex[m]
	return idx, ok
}

// MintAt returns the mint assigned to a dense index.
func (g *Graph) MintAt(idx Index) (Mint, error) {
	if idx < 0 || int(idx) >= len(g.mints) {
		return Mint{}, fmt.Errorf("mint: index %d out of range [0,%d)", idx, len(g.mints))
	}
	return g.mints[idx], nil
}

// Mints returns a defensive copy of the dense mint array, ordered by Index.
func (g *Graph) Mints() []Mint {
	out := make([]Mint, len(g.mints))
	copy(out, g.mints)
	return out
}
