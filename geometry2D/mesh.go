package geometry2D

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

type Point struct {
	X, Y float64
}

func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

func (p Point) Dist2(q Point) float64 {
	dx, dy := p.X-q.X, p.Y-q.Y
	return dx*dx + dy*dy
}

func cross(a, b Point) float64 { return a.X*b.Y - a.Y*b.X }

// Node is an input vertex. Size is the optional target element size carried
// by GIS node files; it is not used by the triangulation engine.
type Node struct {
	Point
	Z       float64
	Size    float64
	HasZ    bool
	HasSize bool
}

// Element is a triangle as three 0-based node indices.
type Element struct {
	V0, V1, V2 int
}

func (e Element) Vertices() [3]int { return [3]int{e.V0, e.V1, e.V2} }

// Segment is a constrained edge between two 0-based node indices.
type Segment struct {
	V      [2]int
	Marker int
}

// Mesh is a triangular mesh with 0-based connectivity. Segments and Holes are
// the constraints the mesh was built against and are carried between engine
// passes; a TIN read from disk has neither.
type Mesh struct {
	X, Y, Z  []float64
	Elements []Element
	Segments []Segment
	Holes    []Point
}

func NewMesh(nNodes, nElements int) *Mesh {
	return &Mesh{
		X:        make([]float64, nNodes),
		Y:        make([]float64, nNodes),
		Z:        make([]float64, nNodes),
		Elements: make([]Element, nElements),
	}
}

func (m *Mesh) NumNodes() int    { return len(m.X) }
func (m *Mesh) NumElements() int { return len(m.Elements) }

func (m *Mesh) Node(i int) Point { return Point{m.X[i], m.Y[i]} }

// SignedArea is positive for counter-clockwise elements.
func (m *Mesh) SignedArea(k int) float64 {
	el := m.Elements[k]
	a, b, c := m.Node(el.V0), m.Node(el.V1), m.Node(el.V2)
	return 0.5 * cross(b.Sub(a), c.Sub(a))
}

func (m *Mesh) Area(k int) float64 { return math.Abs(m.SignedArea(k)) }

// Centroid is the arithmetic mean of the element's three vertices.
func (m *Mesh) Centroid(k int) (c Point) {
	el := m.Elements[k]
	c.X = (m.X[el.V0] + m.X[el.V1] + m.X[el.V2]) / 3.
	c.Y = (m.Y[el.V0] + m.Y[el.V1] + m.Y[el.V2]) / 3.
	return
}

func (m *Mesh) Centroids() (c []Point) {
	c = make([]Point, m.NumElements())
	for k := range c {
		c[k] = m.Centroid(k)
	}
	return
}

func (m *Mesh) Areas() (a []float64) {
	a = make([]float64, m.NumElements())
	for k := range a {
		a[k] = m.Area(k)
	}
	return
}

// Validate checks that all connectivity indices are in range and that no
// element is degenerate.
func (m *Mesh) Validate() error {
	n := m.NumNodes()
	if len(m.Y) != n || len(m.Z) != n {
		return fmt.Errorf("coordinate arrays differ in length: x=%d y=%d z=%d", n, len(m.Y), len(m.Z))
	}
	for k, el := range m.Elements {
		for _, v := range el.Vertices() {
			if v < 0 || v >= n {
				return fmt.Errorf("element %d references node %d, outside [0,%d)", k+1, v, n)
			}
		}
		if m.SignedArea(k) == 0 {
			return fmt.Errorf("element %d is degenerate", k+1)
		}
	}
	for i, s := range m.Segments {
		if s.V[0] < 0 || s.V[0] >= n || s.V[1] < 0 || s.V[1] >= n {
			return fmt.Errorf("segment %d references a node outside [0,%d)", i+1, n)
		}
	}
	return nil
}

type MeshStats struct {
	Nodes, Elements           int
	MinArea, MaxArea, SumArea float64
}

func (m *Mesh) Stats() (st MeshStats) {
	st.Nodes, st.Elements = m.NumNodes(), m.NumElements()
	if st.Elements == 0 {
		return
	}
	areas := m.Areas()
	st.MinArea = floats.Min(areas)
	st.MaxArea = floats.Max(areas)
	st.SumArea = floats.Sum(areas)
	return
}
