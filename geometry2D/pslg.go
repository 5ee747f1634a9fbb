package geometry2D

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/notargets/meshrefine/types"
)

// DefaultTolerance is the coordinate distance under which two vertices are
// the same vertex.
const DefaultTolerance = 1.e-3

const (
	BoundaryMarker   = 1
	ConstraintMarker = 0
)

// Polyline is an ordered list of coordinates tagged with a shape id. Closed
// polylines repeat their first coordinate at the end.
type Polyline struct {
	ShapeID int
	Points  []Point
}

func (pl Polyline) IsClosed(tol float64) bool {
	n := len(pl.Points)
	return n >= 4 && pl.Points[0].Dist2(pl.Points[n-1]) <= tol*tol
}

// AreaSeed is a maximum area constraint for the region enclosing the point.
type AreaSeed struct {
	Point
	MaxArea float64
}

// PSLG is the planar straight line graph handed to the triangulation engine.
// Segments reference Nodes by 0-based index.
type PSLG struct {
	Nodes    []Node
	Segments []Segment
	Holes    []Point
	Seeds    []AreaSeed
}

// PSLGInput is the raw GIS description of the domain. Boundary holds every
// closed boundary shape, OuterID designates the outer one. Lines and Holes
// may be nil.
type PSLGInput struct {
	Nodes     []Node
	Boundary  []Polyline
	OuterID   int
	Lines     []Polyline
	Holes     []Point
	Seeds     []AreaSeed
	Tolerance float64
}

// AssemblePSLG merges nodes, boundary, constraint lines, holes and area seeds
// into one PSLG. Coincident nodes are merged, polyline vertices are snapped
// to their node, and each segment is emitted once.
func AssemblePSLG(in PSLGInput) (p *PSLG, err error) {
	var (
		tol = in.Tolerance
	)
	if tol <= 0 {
		tol = DefaultTolerance
	}
	if len(in.Nodes) == 0 {
		return nil, &types.TopologyError{Source: types.TopologyNodes, ShapeID: in.OuterID, Index: -1, Reason: "no nodes"}
	}
	var outerFound bool
	for _, b := range in.Boundary {
		if !b.IsClosed(tol) {
			return nil, &types.TopologyError{ShapeID: b.ShapeID, Index: len(b.Points) - 1,
				Reason: "boundary polyline is not closed"}
		}
		if b.ShapeID == in.OuterID {
			if outerFound {
				return nil, &types.TopologyError{ShapeID: b.ShapeID, Index: -1,
					Reason: "outer boundary shape id appears more than once"}
			}
			outerFound = true
		}
	}
	if !outerFound {
		return nil, &types.TopologyError{ShapeID: in.OuterID, Index: -1, Reason: "outer boundary not found"}
	}
	for i, s := range in.Seeds {
		if !(s.MaxArea > 0) {
			return nil, &types.ConfigurationError{Index: i,
				Reason: fmt.Sprintf("area seed (%g, %g) has non-positive area %g", s.X, s.Y, s.MaxArea)}
		}
	}

	p = &PSLG{}
	tree := dedupeNodes(in.Nodes, tol, p)

	edges := types.NewEdgeSet()
	markers := make([]int, 0)
	addShape := func(pl Polyline, marker int, src types.TopologySource) error {
		prev := -1
		for i, pt := range pl.Points {
			id, ok := snap(tree, pt, tol)
			if !ok {
				return &types.TopologyError{Source: src, ShapeID: pl.ShapeID, Index: i,
					Reason: fmt.Sprintf("vertex (%g, %g) does not match any node", pt.X, pt.Y)}
			}
			if prev >= 0 {
				if _, added := edges.Add([2]int{prev, id}); added {
					markers = append(markers, marker)
				}
			}
			prev = id
		}
		return nil
	}
	// Outer boundary first so its segments lead the segment list
	for _, b := range in.Boundary {
		if b.ShapeID == in.OuterID {
			if err = addShape(b, BoundaryMarker, types.TopologyBoundary); err != nil {
				return nil, err
			}
		}
	}
	for _, b := range in.Boundary {
		if b.ShapeID != in.OuterID {
			if err = addShape(b, BoundaryMarker, types.TopologyBoundary); err != nil {
				return nil, err
			}
		}
	}
	for _, l := range in.Lines {
		if len(l.Points) < 2 {
			return nil, &types.TopologyError{Source: types.TopologyLine, ShapeID: l.ShapeID, Index: -1,
				Reason: "constraint line needs at least two vertices"}
		}
		if err = addShape(l, ConstraintMarker, types.TopologyLine); err != nil {
			return nil, err
		}
	}
	p.Segments = make([]Segment, edges.Len())
	for i, e := range edges.Edges {
		p.Segments[i] = Segment{V: e, Marker: markers[i]}
	}
	p.Holes = append([]Point(nil), in.Holes...)
	p.Seeds = append([]AreaSeed(nil), in.Seeds...)
	return
}

// dedupeNodes appends the first of every group of coincident nodes to p and
// returns a kd-tree over the kept nodes. Later nodes within tol of a kept node
// are folded into it.
func dedupeNodes(nodes []Node, tol float64, p *PSLG) *kdtree.Tree {
	all := make(sites, len(nodes))
	for i, nd := range nodes {
		all[i] = site{Point: nd.Point, ID: i}
	}
	full := kdtree.New(append(sites(nil), all...), false)
	keepAs := make([]int, len(nodes))
	for i := range keepAs {
		keepAs[i] = -1
	}
	kept := make(sites, 0, len(nodes))
	for i, nd := range nodes {
		if keepAs[i] >= 0 {
			continue
		}
		id := len(p.Nodes)
		keepAs[i] = id
		p.Nodes = append(p.Nodes, nd)
		kept = append(kept, site{Point: nd.Point, ID: id})
		keep := kdtree.NewDistKeeper(tol * tol)
		full.NearestSet(keep, site{Point: nd.Point, ID: -1})
		for _, cd := range keep.Heap {
			if cd.Comparable == nil {
				continue
			}
			if j := cd.Comparable.(site).ID; j > i && keepAs[j] < 0 {
				keepAs[j] = id
			}
		}
	}
	return kdtree.New(kept, false)
}

func snap(tree *kdtree.Tree, pt Point, tol float64) (id int, ok bool) {
	if tree == nil || tree.Root == nil {
		return -1, false
	}
	c, d := tree.Nearest(site{Point: pt, ID: -1})
	if c == nil || d > tol*tol {
		return -1, false
	}
	return c.(site).ID, true
}
