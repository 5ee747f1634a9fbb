package readfiles

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/meshrefine/geometry2D"
)

var adcircGrid = `Shinnecock # two elements
2 4
1 0.0 0.0 -3.5
2 1.0 0.0 -2
3 1.0 1.0 1.25
4 0.0 1.0 0
1 3 1 2 3
2 3 1 3 4
0 ! open boundary segments follow and are ignored
`

func TestParseAdcirc(t *testing.T) {
	m, err := ParseAdcirc(strings.NewReader(adcircGrid), "fort.14")
	require.NoError(t, err)
	assert.Equal(t, 4, m.NumNodes())
	assert.Equal(t, 2, m.NumElements())
	assert.Equal(t, []float64{-3.5, -2, 1.25, 0}, m.Z)
	assert.Equal(t, geometry2D.Element{V0: 0, V1: 2, V2: 3}, m.Elements[1])
}

func TestParseAdcircErrors(t *testing.T) {
	testCases := []struct {
		name, in string
	}{
		{"empty", ""},
		{"missing counts", "title\n"},
		{"node out of sequence", "t\n0 2\n1 0 0 0\n3 1 0 0\n"},
		{"short node", "t\n0 1\n1 0 0\n"},
		{"quad element", "t\n1 4\n1 0 0 0\n2 1 0 0\n3 1 1 0\n4 0 1 0\n1 4 1 2 3 4\n"},
		{"bad connectivity", "t\n1 3\n1 0 0 0\n2 1 0 0\n3 1 1 0\n1 3 1 2 9\n"},
		{"truncated", "t\n2 3\n1 0 0 0\n2 1 0 0\n3 1 1 0\n1 3 1 2 3\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseAdcirc(strings.NewReader(tc.in), tc.name)
			assert.Error(t, err)
		})
	}
}

func TestAdcircRoundTrip(t *testing.T) {
	m := geometry2D.NewGridMesh(-1, -1, 1, 1, 4, 3, func(x, y float64) float64 { return x/3 + y*y })
	var buf bytes.Buffer
	require.NoError(t, WriteAdcirc(&buf, m, ""))
	assert.True(t, strings.HasPrefix(buf.String(), "ADCIRC\n24 20\n"))

	got, err := ParseAdcirc(&buf, "grid")
	require.NoError(t, err)
	assert.Equal(t, m.X, got.X)
	assert.Equal(t, m.Y, got.Y)
	assert.Equal(t, m.Z, got.Z)
	assert.Equal(t, m.Elements, got.Elements)

	path := filepath.Join(t.TempDir(), "out.grd")
	require.NoError(t, WriteMeshFile(path, m, FormatAdcirc, "refined"))
	got, err = ReadAdcirc(path)
	require.NoError(t, err)
	assert.Equal(t, m.Elements, got.Elements)

	// No temporary files are left next to the output
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
