package generator

import (
	"math/rand"

	"github.com/AlephTX/aleph-tx/threecol/graph"
	"github.com/AlephTX/aleph-tx/threecol/shm"
)

// Colorer produces random 3-colorings of a graph and reports the edges
// whose endpoints ended up with the same color.
type Colorer struct {
	g      *graph.Graph
	rng    *rand.Rand
	colors []uint8 // 0 = not yet colored, 1..3 otherwise
}

// NewColorer returns a Colorer for g seeded with seed.
func NewColorer(g *graph.Graph, seed int64) *Colorer {
	return &Colorer{
		g:      g,
		rng:    rand.New(rand.NewSource(seed)),
		colors: make([]uint8, g.Vertices()),
	}
}

// Generate colors every vertex at random and appends the conflicting
// edges to dst[:0] as a record. It returns false if the record would not
// fit a ring slot; such a candidate is simply dropped.
func (c *Colorer) Generate(dst []byte) ([]byte, bool) {
	clear(c.colors)
	dst = dst[:0]

	for _, e := range c.g.Edges {
		u, v := e.Endpoints()
		if c.colors[u] == 0 {
			c.colors[u] = uint8(c.rng.Intn(3) + 1)
		}
		if c.colors[v] == 0 {
			c.colors[v] = uint8(c.rng.Intn(3) + 1)
		}
		if c.colors[u] != c.colors[v] {
			continue
		}

		need := graph.EdgeLen(e)
		if len(dst) > 0 {
			need++
		}
		if len(dst)+need > shm.MaxRecord {
			return dst[:0], false
		}
		if len(dst) > 0 {
			dst = append(dst, ' ')
		}
		dst = graph.AppendEdge(dst, e)
	}
	return dst, true
}

// Color returns the color assigned to dense vertex i by the last
// Generate call.
func (c *Colorer) Color(i int) uint8 { return c.colors[i] }
