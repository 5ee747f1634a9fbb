// Package trianglefake is a small deterministic stand-in for the Triangle
// executable. Tests re-execute their own binary with EnvHelper set and hand
// control to Main, which reads and writes the same files Triangle would.
//
// The initial pass fans the outer boundary loop from its centroid and splits
// every triangle into four until the regional area limit holds. The refine
// pass splits every triangle into four while any triangle exceeds its .area
// limit. Neither honors quality bounds; only the file contract matters.
package trianglefake

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/notargets/meshrefine/geometry2D"
	"github.com/notargets/meshrefine/readfiles"
	"github.com/notargets/meshrefine/types"
)

const (
	// EnvHelper makes a test binary behave as the engine.
	EnvHelper = "MESHREFINE_TRIANGLEFAKE"
	// EnvFail makes the engine print to stderr and exit with this code.
	EnvFail = "MESHREFINE_TRIANGLEFAKE_FAIL"
)

type switches struct {
	poly, refine, area bool
}

func parseSwitches(s string) (sw switches) {
	for _, c := range strings.TrimPrefix(s, "-") {
		switch c {
		case 'p':
			sw.poly = true
		case 'r':
			sw.refine = true
		case 'a':
			sw.area = true
		}
	}
	return
}

// Main runs the engine with Triangle style arguments and returns the exit
// code.
func Main(args []string) int {
	if code := os.Getenv(EnvFail); code != "" {
		fmt.Fprintf(os.Stderr, "Error:  triangulation failed on request\n")
		if c, err := strconv.Atoi(code); err == nil && c != 0 {
			return c
		}
		return 1
	}
	if err := run(args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error:  %v\n", err)
		return 1
	}
	return 0
}

func run(args []string, stdout io.Writer) (err error) {
	var (
		sw    switches
		input string
	)
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			sw = parseSwitches(a)
		} else {
			input = a
		}
	}
	if input == "" {
		return fmt.Errorf("no input file")
	}
	base, out := outputNames(input)
	var m *geometry2D.Mesh
	if sw.refine {
		m, err = refinePass(base, sw)
	} else {
		if !sw.poly {
			return fmt.Errorf("only .poly input is supported")
		}
		m, err = initialPass(base, sw)
	}
	if err != nil {
		return
	}
	fmt.Fprintf(stdout, "Writing %s.node.\nWriting %s.ele.\nWriting %s.poly.\n", out, out, out)
	return readfiles.WriteTriangleMesh(out, m)
}

// outputNames strips a known extension and increments the iteration number
// the way Triangle names its output: mesh.poly gives mesh.1, mesh.1 gives
// mesh.2.
func outputNames(input string) (base, out string) {
	base = input
	for _, ext := range []string{".poly", ".node", ".ele"} {
		base = strings.TrimSuffix(base, ext)
	}
	if i := strings.LastIndexByte(base, '.'); i >= 0 {
		if n, err := strconv.Atoi(base[i+1:]); err == nil {
			return base, base[:i+1] + strconv.Itoa(n+1)
		}
	}
	return base, base + ".1"
}

func initialPass(base string, sw switches) (m *geometry2D.Mesh, err error) {
	var (
		file *os.File
		pf   *readfiles.PolyFile
	)
	if file, err = os.Open(base + ".poly"); err != nil {
		return
	}
	pf, err = readfiles.ReadPoly(file, file.Name(), -1)
	file.Close()
	if err != nil {
		return
	}
	loop, err := boundaryLoop(pf.Segments)
	if err != nil {
		return
	}
	m = &geometry2D.Mesh{X: pf.X, Y: pf.Y, Z: pf.Z, Holes: pf.Holes}
	// Centroid of the loop, then a fan around it
	var cx, cy, cz float64
	for _, v := range loop {
		cx += m.X[v]
		cy += m.Y[v]
		cz += m.Z[v]
	}
	n := float64(len(loop))
	c := len(m.X)
	m.X, m.Y, m.Z = append(m.X, cx/n), append(m.Y, cy/n), append(m.Z, cz/n)
	for i := range loop {
		m.Elements = append(m.Elements, geometry2D.Element{V0: c, V1: loop[i], V2: loop[(i+1)%len(loop)]})
	}
	if m.SignedArea(0) < 0 {
		for k, el := range m.Elements {
			m.Elements[k] = geometry2D.Element{V0: el.V0, V1: el.V2, V2: el.V1}
		}
	}
	limit := math.Inf(1)
	if sw.area {
		for _, r := range pf.Regions {
			if r.MaxArea > 0 {
				limit = math.Min(limit, r.MaxArea)
			}
		}
	}
	limits := make([]float64, len(m.Elements))
	for k := range limits {
		limits[k] = limit
	}
	splitUntil(m, limits)
	m.Segments = hullSegments(m)
	return
}

// refinePass ignores the input segments, splitting preserves the hull.
func refinePass(base string, sw switches) (m *geometry2D.Mesh, err error) {
	var (
		file  *os.File
		areas []readfiles.ElementArea
	)
	if m, err = readfiles.ReadTriangleMesh(base); err != nil {
		return
	}
	limits := make([]float64, m.NumElements())
	for k := range limits {
		limits[k] = math.Inf(1)
	}
	if sw.area {
		if file, err = os.Open(base + ".area"); err != nil {
			return
		}
		areas, err = readfiles.ReadArea(file, file.Name())
		file.Close()
		if err != nil {
			return
		}
		if len(areas) != m.NumElements() {
			return nil, fmt.Errorf("%s.area has %d entries for %d triangles", base, len(areas), m.NumElements())
		}
		for i, a := range areas {
			if a.MaxArea > 0 {
				limits[i] = a.MaxArea
			}
		}
	}
	splitUntil(m, limits)
	m.Segments = hullSegments(m)
	return
}

// boundaryLoop orders the marked segments of the first boundary shape into a
// vertex loop.
func boundaryLoop(segs []geometry2D.Segment) (loop []int, err error) {
	next := make(map[int][]int)
	start := -1
	for _, s := range segs {
		if s.Marker != geometry2D.BoundaryMarker {
			continue
		}
		if start < 0 {
			start = s.V[0]
		}
		next[s.V[0]] = append(next[s.V[0]], s.V[1])
		next[s.V[1]] = append(next[s.V[1]], s.V[0])
	}
	if start < 0 {
		return nil, errors.New("no boundary segments")
	}
	prev, cur := -1, start
	for {
		loop = append(loop, cur)
		nb := next[cur]
		if len(nb) != 2 {
			return nil, fmt.Errorf("boundary vertex %d has %d boundary neighbors", cur+1, len(nb))
		}
		nxt := nb[0]
		if nxt == prev {
			nxt = nb[1]
		}
		prev, cur = cur, nxt
		if cur == start {
			return
		}
		if len(loop) > len(segs) {
			return nil, errors.New("boundary does not close")
		}
	}
}

// splitUntil splits every triangle into four while any triangle exceeds its
// limit. Children inherit the limit of their parent.
func splitUntil(m *geometry2D.Mesh, limits []float64) {
	for {
		over := false
		for k := range m.Elements {
			if m.Area(k) > limits[k] {
				over = true
				break
			}
		}
		if !over {
			return
		}
		limits = splitAll(m, limits)
	}
}

func splitAll(m *geometry2D.Mesh, limits []float64) (childLimits []float64) {
	var (
		es  = types.NewEdgeSet()
		nv  = m.NumNodes()
		els = make([]geometry2D.Element, 0, 4*m.NumElements())
	)
	mid := func(a, b int) int {
		pos, added := es.Add([2]int{a, b})
		if added {
			m.X = append(m.X, 0.5*(m.X[a]+m.X[b]))
			m.Y = append(m.Y, 0.5*(m.Y[a]+m.Y[b]))
			m.Z = append(m.Z, 0.5*(m.Z[a]+m.Z[b]))
		}
		return nv + pos
	}
	childLimits = make([]float64, 0, 4*len(limits))
	for k, el := range m.Elements {
		a, b, c := el.V0, el.V1, el.V2
		ab, bc, ca := mid(a, b), mid(b, c), mid(c, a)
		els = append(els,
			geometry2D.Element{V0: a, V1: ab, V2: ca},
			geometry2D.Element{V0: ab, V1: b, V2: bc},
			geometry2D.Element{V0: ca, V1: bc, V2: c},
			geometry2D.Element{V0: ab, V1: bc, V2: ca})
		childLimits = append(childLimits, limits[k], limits[k], limits[k], limits[k])
	}
	m.Elements = els
	return
}

// hullSegments returns the edges used by exactly one triangle.
func hullSegments(m *geometry2D.Mesh) (segs []geometry2D.Segment) {
	var (
		es    = types.NewEdgeSet()
		count []int
	)
	for _, el := range m.Elements {
		v := el.Vertices()
		for i := 0; i < 3; i++ {
			pos, added := es.Add([2]int{v[i], v[(i+1)%3]})
			if added {
				count = append(count, 0)
			}
			count[pos]++
		}
	}
	for pos, e := range es.Edges {
		if count[pos] == 1 {
			segs = append(segs, geometry2D.Segment{V: e, Marker: geometry2D.BoundaryMarker})
		}
	}
	return
}
