package readfiles

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/meshrefine/geometry2D"
)

func TestReadSU2(t *testing.T) {
	m, tags, err := ReadSU2(bytes.NewReader(su2Input), "square.su2")
	require.NoError(t, err)
	assert.Equal(t, 22, m.NumElements())
	assert.Equal(t, 18, m.NumNodes())
	assert.Equal(t, []string{"periodic-left", "periodic-right", "top", "bottom"}, tags)
	require.Len(t, m.Segments, 12)
	assert.Equal(t, geometry2D.Segment{V: [2]int{3, 11}, Marker: 1}, m.Segments[0])
	assert.Equal(t, geometry2D.Segment{V: [2]int{6, 1}, Marker: 4}, m.Segments[11])
	assert.Equal(t, geometry2D.Element{V0: 5, V1: 6, V2: 13}, m.Elements[0])
	assert.Equal(t, -10., m.X[0])
	assert.InDelta(t, 200, m.Stats().SumArea, 1e-9)
}

func TestReadSU2Errors(t *testing.T) {
	testCases := []struct {
		name, input, msg string
	}{
		{"3d", "NDIME= 3\n", "only 2 dimensional"},
		{"keyword", "NDIME= 2\nNPOIN= 3\n", "expected NELEM="},
		{"quad", "NDIME= 2\nNELEM= 1\n9 0 1 2 3 0\n", "not a triangle"},
		{"range", "NDIME= 2\nNELEM= 1\n5 0 1 7 0\nNPOIN= 3\n0 0\n1 0\n0 1\nNMARK= 0\n", "outside"},
		{"marker", "NDIME= 2\nNELEM= 1\n5 0 1 2 0\nNPOIN= 3\n0 0\n1 0\n0 1\nNMARK= 1\nMARKER_TAG= wall\nMARKER_ELEMS= 1\n5 0 1\n", "line elements"},
		{"short", "NDIME= 2\nNELEM= 2\n5 0 1 2 0\n", "unexpected EOF"},
	}
	for _, tc := range testCases {
		_, _, err := ReadSU2(strings.NewReader(tc.input), tc.name)
		require.Error(t, err, tc.name)
		assert.Contains(t, err.Error(), tc.msg, tc.name)
	}
}

func TestWriteSU2RoundTrip(t *testing.T) {
	m := geometry2D.NewGridMesh(0, 0, 2, 1, 2, 1, func(x, y float64) float64 { return x + y })
	m.Segments = []geometry2D.Segment{
		{V: [2]int{0, 1}, Marker: 1},
		{V: [2]int{1, 4}, Marker: 0},
		{V: [2]int{2, 5}, Marker: 1},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteMesh(&buf, m, FormatSU2, ""))
	assert.Contains(t, buf.String(), "MARKER_TAG= constraint\nMARKER_ELEMS= 1\n3 1 4\n")

	got, tags, err := ReadSU2(&buf, "grid.su2")
	require.NoError(t, err)
	assert.Equal(t, []string{"constraint", "boundary_1"}, tags)
	assert.Equal(t, m.X, got.X)
	assert.Equal(t, m.Y, got.Y)
	assert.Equal(t, m.Elements, got.Elements)
	assert.Equal(t, make([]float64, m.NumNodes()), got.Z)
	require.Len(t, got.Segments, 3)
	assert.Equal(t, geometry2D.Segment{V: [2]int{1, 4}, Marker: 1}, got.Segments[0])
	assert.Equal(t, geometry2D.Segment{V: [2]int{2, 5}, Marker: 2}, got.Segments[2])
}

var (
	su2Input = []byte(` %Example input file in SU2 format, output from gmsh
% Comments can appear outside of data areas
NDIME= 2
% Comments can appear outside of data areas
NELEM= 22
5 5 6 13 0
5 9 10 12 1
5 12 5 13 2
5 9 12 13 3
5 13 6 14 4
5 12 10 15 5
5 8 9 13 6
5 4 5 12 7
5 1 7 14 8
5 6 1 14 9
5 3 11 15 10
5 10 3 15 11
5 8 13 16 12
5 4 12 17 13
5 13 14 16 14
5 12 15 17 15
5 7 2 16 16
5 11 0 17 17
5 2 8 16 18
5 0 4 17 19
5 14 7 16 20
5 15 11 17 21
% Comments can appear outside of data areas
NPOIN= 18
-10 0 0
10 0 1
10 10 2
-10 10 3
-5.000000000004944 0 4
-1.231725832440134e-11 0 5
4.99999999999384 0 6
10 4.999999999992398 7
5.000000000004944 10 8
1.231725832440134e-11 10 9
-4.99999999999384 10 10
-10 5 11
-2.500000000008632 4.330127018915808 12
2.50000000000863 5.669872981084192 13
6.712741669205853 3.668411415814691 14
-6.712741669205681 6.331588584184096 15
7.100939331384343 7.110089675963254 16
-7.100939331382065 2.889910324036197 17
NMARK= 4
% Comments can appear outside of data areas
MARKER_TAG= periodic-left
% Comments can appear outside of data areas
MARKER_ELEMS= 2
3 3 11
3 11 0
% Comments can appear outside of data areas
MARKER_TAG= periodic-right
MARKER_ELEMS= 2
3 1 7
3 7 2
% Comments can appear outside of data areas
MARKER_TAG= top
MARKER_ELEMS= 4
3 2 8
3 8 9
3 9 10
3 10 3
MARKER_TAG= bottom
% Comments can appear outside of data areas
MARKER_ELEMS= 4
3 0 4
3 4 5
3 5 6
3 6 1
% Comments can appear outside of data areas
`)
)
