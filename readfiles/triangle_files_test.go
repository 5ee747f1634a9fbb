package readfiles

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/meshrefine/geometry2D"
)

func TestWriteReadPoly(t *testing.T) {
	p := &geometry2D.PSLG{
		Nodes: []geometry2D.Node{
			{Point: geometry2D.Point{X: 0, Y: 0}, Z: -1.5},
			{Point: geometry2D.Point{X: 10, Y: 0}, Z: 2},
			{Point: geometry2D.Point{X: 10, Y: 10}},
			{Point: geometry2D.Point{X: 0, Y: 10}, Z: 0.25},
		},
		Segments: []geometry2D.Segment{
			{V: [2]int{0, 1}, Marker: 1}, {V: [2]int{1, 2}, Marker: 1},
			{V: [2]int{2, 3}, Marker: 1}, {V: [2]int{3, 0}, Marker: 1},
			{V: [2]int{0, 2}},
		},
		Holes: []geometry2D.Point{{X: 7, Y: 3}},
		Seeds: []geometry2D.AreaSeed{{Point: geometry2D.Point{X: 5, Y: 5}, MaxArea: 4}},
	}
	var buf bytes.Buffer
	require.NoError(t, WritePoly(&buf, p))
	assert.True(t, strings.Contains(buf.String(), "4 2 1 0\n1 0 0 -1.5\n"))

	pf, err := ReadPoly(&buf, "test.poly", -1)
	require.NoError(t, err)
	assert.Equal(t, 1, pf.Base)
	assert.True(t, pf.HasZ)
	assert.Equal(t, []float64{0, 10, 10, 0}, pf.X)
	assert.Equal(t, []float64{-1.5, 2, 0, 0.25}, pf.Z)
	assert.Equal(t, p.Segments, pf.Segments)
	assert.Equal(t, p.Holes, pf.Holes)
	assert.Equal(t, p.Seeds, pf.Regions)
}

func TestReadPolyWithoutVertices(t *testing.T) {
	in := `0 2 1 0
# segments
2 1
1 0 1 1
2 1 2 0
0
`
	pf, err := ReadPoly(strings.NewReader(in), "mesh.1.poly", 0)
	require.NoError(t, err)
	assert.Empty(t, pf.X)
	assert.Equal(t, []geometry2D.Segment{{V: [2]int{0, 1}, Marker: 1}, {V: [2]int{1, 2}}}, pf.Segments)
	assert.Empty(t, pf.Holes)
	assert.Empty(t, pf.Regions)
}

func TestReadNodeEle(t *testing.T) {
	node := `# Triangle output, zero based
4 2 1 1
0 0 0 3 1
1 1 0 4 1
2 1 1 5 0   # interior
3 0 1 6 1
`
	ele := `2 3 0
0 0 1 2
1 0 2 3
`
	X, Y, Z, base, err := ReadNode(strings.NewReader(node), "a.node")
	require.NoError(t, err)
	assert.Equal(t, 0, base)
	assert.Equal(t, []float64{0, 1, 1, 0}, X)
	assert.Equal(t, []float64{0, 0, 1, 1}, Y)
	assert.Equal(t, []float64{3, 4, 5, 6}, Z)

	els, err := ReadEle(strings.NewReader(ele), "a.ele", base)
	require.NoError(t, err)
	assert.Equal(t, []geometry2D.Element{{V0: 0, V1: 1, V2: 2}, {V0: 0, V1: 2, V2: 3}}, els)

	// Second order triangles keep their corners
	ele6 := "1 6 0\n1 1 2 3 4 5 6\n"
	els, err = ReadEle(strings.NewReader(ele6), "b.ele", 1)
	require.NoError(t, err)
	assert.Equal(t, geometry2D.Element{V0: 0, V1: 1, V2: 2}, els[0])
}

func TestReadTriangleErrors(t *testing.T) {
	_, _, _, _, err := ReadNode(strings.NewReader("3 2 0 0\n1 0 0\n2 1 0\n"), "short.node")
	assert.Equal(t, io.ErrUnexpectedEOF, errors.Cause(err))

	_, _, _, _, err = ReadNode(strings.NewReader("1 3 0 0\n1 0 0 0\n"), "3d.node")
	assert.Error(t, err)

	_, _, _, _, err = ReadNode(strings.NewReader("2 2 0 0\n1 0 0\n3 1 0\n"), "gap.node")
	assert.Error(t, err)

	_, err = ReadEle(strings.NewReader("1 4 0\n1 1 2 3 4\n"), "quad.ele", 1)
	assert.Error(t, err)
}

func TestAreaRoundTrip(t *testing.T) {
	areas := []ElementArea{{1, 0.5}, {2, 12.25}, {3, 1.e-3}}
	var buf bytes.Buffer
	require.NoError(t, WriteArea(&buf, areas))
	assert.Equal(t, "3\n1 0.5\n2 12.25\n3 0.001\n", buf.String())
	got, err := ReadArea(&buf, "mesh.1.area")
	require.NoError(t, err)
	assert.Equal(t, areas, got)
}

func TestTriangleMeshRoundTrip(t *testing.T) {
	m := geometry2D.NewGridMesh(0, 0, 3, 2, 3, 2, func(x, y float64) float64 { return x*y - 0.1 })
	m.Segments = []geometry2D.Segment{{V: [2]int{0, 1}, Marker: 1}, {V: [2]int{1, 2}, Marker: 1}}
	m.Holes = []geometry2D.Point{{X: 2.5, Y: 1.5}}

	base := filepath.Join(t.TempDir(), "mesh.1")
	require.NoError(t, WriteTriangleMesh(base, m))
	got, err := ReadTriangleMesh(base)
	require.NoError(t, err)
	assert.Equal(t, m.X, got.X)
	assert.Equal(t, m.Y, got.Y)
	assert.Equal(t, m.Z, got.Z)
	assert.Equal(t, m.Elements, got.Elements)
	assert.Equal(t, m.Segments, got.Segments)
	assert.Equal(t, m.Holes, got.Holes)

	// The .poly companion is optional
	require.NoError(t, os.Remove(base+".poly"))
	got, err = ReadTriangleMesh(base)
	require.NoError(t, err)
	assert.Empty(t, got.Segments)

	_, err = ReadTriangleMesh(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
