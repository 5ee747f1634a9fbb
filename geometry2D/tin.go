package geometry2D

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/notargets/meshrefine/types"
	"github.com/notargets/meshrefine/utils"
)

// OutsideHull selects what happens to a query point that no TIN triangle
// contains.
type OutsideHull uint8

const (
	// NearestTriangle evaluates the surface at the closest point of the
	// nearest TIN triangle.
	NearestTriangle OutsideHull = iota
	// FailOutside reports an InterpolationDomainError.
	FailOutside
)

var OutsideHullNames = map[string]OutsideHull{
	"nearest": NearestTriangle,
	"fail":    FailOutside,
}

func NewOutsideHull(label string) (oh OutsideHull, err error) {
	var ok bool
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return NearestTriangle, nil
	}
	if oh, ok = OutsideHullNames[label]; !ok {
		err = fmt.Errorf("unknown outside hull policy %q, use one of nearest, fail", label)
	}
	return
}

func (oh OutsideHull) String() string {
	switch oh {
	case NearestTriangle:
		return "nearest"
	case FailOutside:
		return "fail"
	}
	return fmt.Sprintf("OutsideHull(%d)", uint8(oh))
}

const (
	baryEps          = 1.e-10
	nearestCandidate = 8
)

// TIN is a piecewise linear surface over a triangulation, with a uniform grid
// of triangle bounding boxes for point location and a kd-tree over triangle
// centroids for the outside-hull fallback.
type TIN struct {
	Mesh       *Mesh
	xmin, ymin float64
	dx, dy     float64
	nx, ny     int
	cells      [][]int32
	centroids  *kdtree.Tree
	reach      float64 // largest centroid to vertex distance
}

func NewTIN(m *Mesh) (tin *TIN, err error) {
	if m == nil || m.NumElements() == 0 {
		return nil, fmt.Errorf("TIN has no triangles")
	}
	if err = m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid TIN: %w", err)
	}
	var (
		K                      = m.NumElements()
		xmin, xmax, ymin, ymax = bounds(m)
		n                      = int(math.Ceil(math.Sqrt(float64(K))))
	)
	tin = &TIN{
		Mesh: m,
		xmin: xmin, ymin: ymin,
		nx: n, ny: n,
	}
	tin.dx = (xmax - xmin) / float64(n)
	tin.dy = (ymax - ymin) / float64(n)
	if tin.dx <= 0 {
		tin.dx = 1
	}
	if tin.dy <= 0 {
		tin.dy = 1
	}
	tin.cells = make([][]int32, n*n)
	cents := make(sites, K)
	for k, el := range m.Elements {
		var (
			bxmin = math.Min(m.X[el.V0], math.Min(m.X[el.V1], m.X[el.V2]))
			bxmax = math.Max(m.X[el.V0], math.Max(m.X[el.V1], m.X[el.V2]))
			bymin = math.Min(m.Y[el.V0], math.Min(m.Y[el.V1], m.Y[el.V2]))
			bymax = math.Max(m.Y[el.V0], math.Max(m.Y[el.V1], m.Y[el.V2]))
		)
		i0, i1 := tin.col(bxmin), tin.col(bxmax)
		j0, j1 := tin.row(bymin), tin.row(bymax)
		for j := j0; j <= j1; j++ {
			for i := i0; i <= i1; i++ {
				c := j*tin.nx + i
				tin.cells[c] = append(tin.cells[c], int32(k))
			}
		}
		cents[k] = site{Point: m.Centroid(k), ID: k}
		for _, v := range el.Vertices() {
			tin.reach = math.Max(tin.reach, math.Sqrt(cents[k].Dist2(m.Node(v))))
		}
	}
	tin.centroids = kdtree.New(cents, false)
	return
}

func bounds(m *Mesh) (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	// Only nodes used by elements count toward the surface extent
	for _, el := range m.Elements {
		for _, v := range el.Vertices() {
			xmin, xmax = math.Min(xmin, m.X[v]), math.Max(xmax, m.X[v])
			ymin, ymax = math.Min(ymin, m.Y[v]), math.Max(ymax, m.Y[v])
		}
	}
	return
}

func (tin *TIN) col(x float64) int { return clampIndex(int((x-tin.xmin)/tin.dx), tin.nx) }
func (tin *TIN) row(y float64) int { return clampIndex(int((y-tin.ymin)/tin.dy), tin.ny) }

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Barycentric returns the weights of p with respect to TIN triangle k. ok is
// false for a degenerate triangle.
func (tin *TIN) Barycentric(k int, p Point) (w [3]float64, ok bool) {
	var (
		el = tin.Mesh.Elements[k]
		a  = tin.Mesh.Node(el.V0)
		v0 = tin.Mesh.Node(el.V1).Sub(a)
		v1 = tin.Mesh.Node(el.V2).Sub(a)
		v2 = p.Sub(a)
	)
	denom := cross(v0, v1)
	if math.Abs(denom) < 1.e-300 {
		return
	}
	w[1] = cross(v2, v1) / denom
	w[2] = cross(v0, v2) / denom
	w[0] = 1. - w[1] - w[2]
	return w, true
}

// Locate finds the lowest numbered TIN triangle containing p.
func (tin *TIN) Locate(p Point) (k int, w [3]float64, found bool) {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return -1, w, false
	}
	if p.X < tin.xmin-baryEps || p.Y < tin.ymin-baryEps ||
		p.X > tin.xmin+tin.dx*float64(tin.nx)+baryEps || p.Y > tin.ymin+tin.dy*float64(tin.ny)+baryEps {
		return -1, w, false
	}
	for _, kk := range tin.cells[tin.row(p.Y)*tin.nx+tin.col(p.X)] {
		var ok bool
		if w, ok = tin.Barycentric(int(kk), p); !ok {
			continue
		}
		if w[0] >= -baryEps && w[1] >= -baryEps && w[2] >= -baryEps {
			return int(kk), w, true
		}
	}
	return -1, w, false
}

func (tin *TIN) value(k int, w [3]float64) float64 {
	el := tin.Mesh.Elements[k]
	return w[0]*tin.Mesh.Z[el.V0] + w[1]*tin.Mesh.Z[el.V1] + w[2]*tin.Mesh.Z[el.V2]
}

// Interpolate evaluates the surface at p. Outside the TIN the surface is
// evaluated at the closest point of the nearest triangle and inside is false.
func (tin *TIN) Interpolate(p Point) (z float64, inside bool) {
	if k, w, found := tin.Locate(p); found {
		return tin.value(k, w), true
	}
	k, q := tin.nearestTriangle(p)
	if k < 0 {
		return math.NaN(), false
	}
	w, _ := tin.Barycentric(k, q)
	for i := range w {
		w[i] = math.Max(0, math.Min(1, w[i]))
	}
	sum := w[0] + w[1] + w[2]
	for i := range w {
		w[i] /= sum
	}
	return tin.value(k, w), false
}

// nearestTriangle returns the triangle whose closest point to p is nearest.
// The triangles with the nearest centroids give an upper bound on that
// distance; every triangle within the bound has its centroid within the bound
// plus reach, so those are all checked. Ties go to the lower index.
func (tin *TIN) nearestTriangle(p Point) (best int, closest Point) {
	var (
		bestD = math.Inf(1)
	)
	best = -1
	check := func(cands []site) {
		for _, c := range cands {
			el := tin.Mesh.Elements[c.ID]
			q := closestOnTriangle(p, tin.Mesh.Node(el.V0), tin.Mesh.Node(el.V1), tin.Mesh.Node(el.V2))
			d := q.Dist2(p)
			if d < bestD || (d == bestD && c.ID < best) {
				best, bestD, closest = c.ID, d, q
			}
		}
	}
	check(nearestSites(tin.centroids, p, nearestCandidate))
	if best < 0 {
		return
	}
	r := math.Sqrt(bestD) + tin.reach
	check(sitesWithin(tin.centroids, p, r*r))
	return
}

// closestOnTriangle returns the point of triangle abc closest to p.
func closestOnTriangle(p, a, b, c Point) Point {
	dot := func(u, v Point) float64 { return u.X*v.X + u.Y*v.Y }
	lerp := func(u, v Point, t float64) Point { return Point{u.X + t*(v.X-u.X), u.Y + t*(v.Y-u.Y)} }
	ab, ac, ap := b.Sub(a), c.Sub(a), p.Sub(a)
	d1, d2 := dot(ab, ap), dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}
	bp := p.Sub(b)
	d3, d4 := dot(ab, bp), dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return lerp(a, b, d1/(d1-d3))
	}
	cp := p.Sub(c)
	d5, d6 := dot(ab, cp), dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return lerp(a, c, d2/(d2-d6))
	}
	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		return lerp(b, c, (d4-d3)/((d4-d3)+(d5-d6)))
	}
	denom := 1. / (va + vb + vc)
	v, w := vb*denom, vc*denom
	return Point{a.X + ab.X*v + ac.X*w, a.Y + ab.Y*v + ac.Y*w}
}

// InterpolateCentroids evaluates the TIN at the centroid of every element of
// m, one partition of elements per CPU. outside counts the centroids resolved
// through the fallback. With FailOutside the reported element is the lowest
// numbered one outside the hull.
func (tin *TIN) InterpolateCentroids(m *Mesh, policy OutsideHull) (z []float64, outside int, err error) {
	var (
		K        = m.NumElements()
		pm       = utils.NewPartitionMap(utils.DefaultParallelDegree(K), K)
		outCount = make([]int, pm.ParallelDegree)
	)
	z = make([]float64, K)
	errs := pm.Run(func(np, kMin, kMax int) error {
		for k := kMin; k < kMax; k++ {
			c := m.Centroid(k)
			var inside bool
			if z[k], inside = tin.Interpolate(c); !inside {
				if policy == FailOutside || math.IsNaN(z[k]) {
					return &types.InterpolationDomainError{Element: k, X: c.X, Y: c.Y}
				}
				outCount[np]++
			}
		}
		return nil
	})
	for _, n := range outCount {
		outside += n
	}
	if err = utils.FirstError(errs); err != nil {
		return nil, outside, err
	}
	return
}
