package readfiles

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/meshrefine/geometry2D"
	"github.com/notargets/meshrefine/types"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadNodes(t *testing.T) {
	path := writeTemp(t, "nodes.csv", "# x,y,z,size\n0,0\n1, 2, -3.5\n\n4,5,6,0.5\n")
	nodes, err := ReadNodes(path)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.False(t, nodes[0].HasZ)
	assert.Equal(t, geometry2D.Node{Point: geometry2D.Point{X: 1, Y: 2}, Z: -3.5, HasZ: true}, nodes[1])
	assert.True(t, nodes[2].HasSize)
	assert.Equal(t, 0.5, nodes[2].Size)
}

func TestReadPolylines(t *testing.T) {
	path := writeTemp(t, "boundary.csv", "1,0,0\n1,1,0\n1,1,1\n1,0,0\n2,5,5\n2,6,6\n1,9,9\n1,8,8\n")
	lines, err := ReadPolylines(path)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, 1, lines[0].ShapeID)
	assert.Len(t, lines[0].Points, 4)
	assert.Equal(t, 2, lines[1].ShapeID)
	// Non-consecutive rows of one id are separate shapes
	assert.Equal(t, 1, lines[2].ShapeID)

	lines, err = ReadPolylines("None")
	assert.NoError(t, err)
	assert.Nil(t, lines)

	_, err = ReadPolylines(writeTemp(t, "bad.csv", "1.5,0,0\n"))
	var ce *types.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 0, ce.Index)
}

func TestReadOptionalInputs(t *testing.T) {
	holes, err := ReadHoles(writeTemp(t, "holes.csv", "3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, []geometry2D.Point{{X: 3, Y: 4}}, holes)
	holes, err = ReadHoles("none")
	assert.NoError(t, err)
	assert.Empty(t, holes)

	seeds, err := ReadAreaSeeds(writeTemp(t, "areas.csv", "5,5,4\n1,1,0.25\n"))
	require.NoError(t, err)
	assert.Equal(t, geometry2D.AreaSeed{Point: geometry2D.Point{X: 1, Y: 1}, MaxArea: 0.25}, seeds[1])
	seeds, err = ReadAreaSeeds(" NONE ")
	assert.NoError(t, err)
	assert.Empty(t, seeds)
}

func TestReadTransferTable(t *testing.T) {
	elev, areas, err := ReadTransferTable(writeTemp(t, "function.csv", "0,10\n5,2\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5}, elev)
	assert.Equal(t, []float64{10, 2}, areas)

	testCases := []struct {
		name, content string
		row           int
	}{
		{"extra column", "0,10\n5,2,1\n", 1},
		{"not a number", "0,ten\n", 0},
		{"one column", "0\n", 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ReadTransferTable(writeTemp(t, "f.csv", tc.content))
			var ce *types.ConfigurationError
			require.True(t, errors.As(err, &ce), "%v", err)
			assert.Equal(t, tc.row, ce.Index)
		})
	}

	_, _, err = ReadTransferTable(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
