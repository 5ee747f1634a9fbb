package types

import (
	"fmt"
	"math"
)

/*
EdgeKey is an always positive number that stores an edge's vertices as indices in a way that can be compared
An edge between vertices [4] and [0] will always be stored as [0,4], in the ascending order of the index values
*/
type EdgeKey uint64

func NewEdgeKey(verts [2]int) (packed EdgeKey) {
	var (
		limit = math.MaxUint32
	)
	for _, vert := range verts {
		if vert < 0 || vert > limit {
			panic(fmt.Errorf("unable to pack two ints into a uint64, have %d and %d as inputs",
				verts[0], verts[1]))
		}
	}
	var i1, i2 int
	if verts[0] <= verts[1] {
		i1, i2 = verts[0], verts[1]
	} else {
		i1, i2 = verts[1], verts[0]
	}
	packed = EdgeKey(i1 + i2<<32)
	return
}

func (ek EdgeKey) GetVertices() (verts [2]int) {
	verts[1] = int(ek >> 32)
	verts[0] = int(ek & math.MaxUint32)
	return
}

// EdgeSet records undirected edges once, in insertion order.
type EdgeSet struct {
	index map[EdgeKey]int
	Edges [][2]int
}

func NewEdgeSet() *EdgeSet {
	return &EdgeSet{index: make(map[EdgeKey]int)}
}

// Add inserts the edge unless it is already present, returning its position
// and whether it was new. Degenerate edges (both ends equal) are rejected.
func (es *EdgeSet) Add(verts [2]int) (pos int, added bool) {
	if verts[0] == verts[1] {
		return -1, false
	}
	key := NewEdgeKey(verts)
	if p, ok := es.index[key]; ok {
		return p, false
	}
	pos = len(es.Edges)
	es.index[key] = pos
	es.Edges = append(es.Edges, verts)
	return pos, true
}

func (es *EdgeSet) Has(verts [2]int) (ok bool) {
	_, ok = es.index[NewEdgeKey(verts)]
	return
}

func (es *EdgeSet) Len() int { return len(es.Edges) }
