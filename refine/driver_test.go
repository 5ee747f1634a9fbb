package refine

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/meshrefine/geometry2D"
	"github.com/notargets/meshrefine/readfiles"
	"github.com/notargets/meshrefine/transfer"
	"github.com/notargets/meshrefine/triangle"
	"github.com/notargets/meshrefine/triangle/trianglefake"
	"github.com/notargets/meshrefine/types"
)

func TestMain(m *testing.M) {
	if os.Getenv(trianglefake.EnvHelper) != "" {
		os.Exit(trianglefake.Main(os.Args[1:]))
	}
	os.Exit(m.Run())
}

func fakeEngine(t *testing.T, env ...string) *triangle.Engine {
	t.Helper()
	e, err := triangle.NewEngine("", os.Args[0], nil)
	require.NoError(t, err)
	e.Env = append([]string{trianglefake.EnvHelper + "=1"}, env...)
	return e
}

// squareInputs is the 10 by 10 square with one area seed of 4 over a TIN
// covering [-1,11]x[-1,11].
func squareInputs(t *testing.T, zf func(x, y float64) float64, elevations, areas []float64) *Inputs {
	t.Helper()
	sq := geometry2D.SquarePolyline(7, 0, 0, 10, 10)
	nodes := make([]geometry2D.Node, 4)
	for i, p := range sq.Points[:4] {
		nodes[i] = geometry2D.Node{Point: p}
	}
	tf, err := transfer.New("", elevations, areas)
	require.NoError(t, err)
	return &Inputs{
		Nodes:    nodes,
		Boundary: []geometry2D.Polyline{sq},
		OuterID:  FirstShape,
		Seeds:    []geometry2D.AreaSeed{{Point: geometry2D.Point{X: 5, Y: 5}, MaxArea: 4}},
		TIN:      geometry2D.NewGridMesh(-1, -1, 11, 11, 6, 6, zf),
		Transfer: tf,
	}
}

func flat(x, y float64) float64 { return 0 }

// recorder wraps a Mesher and keeps what it was given and returned.
type recorder struct {
	Mesher
	initial *geometry2D.Mesh
	areas   []readfiles.ElementArea
}

func (r *recorder) BuildInitial(ctx context.Context, dir string, p *geometry2D.PSLG) (m *geometry2D.Mesh, err error) {
	m, err = r.Mesher.BuildInitial(ctx, dir, p)
	r.initial = m
	return
}

func (r *recorder) Refine(ctx context.Context, dir string, m *geometry2D.Mesh,
	areas []readfiles.ElementArea) (*geometry2D.Mesh, error) {
	r.areas = areas
	return r.Mesher.Refine(ctx, dir, m, areas)
}

func TestRunSquare(t *testing.T) {
	var (
		workDir = t.TempDir()
		outPath = filepath.Join(t.TempDir(), "square.grd")
		rec     = &recorder{Mesher: fakeEngine(t)}
	)
	d := &Driver{Engine: rec, WorkDir: workDir}
	pl, err := d.RunInputs(context.Background(), squareInputs(t, flat, []float64{0, 10}, []float64{1, 1}),
		Output{Path: outPath, Format: readfiles.FormatAdcirc, WKT: true, NodeWKT: true})
	require.NoError(t, err)
	assert.Equal(t, Done, pl.Stage)

	m, err := readfiles.ReadAdcirc(outPath)
	require.NoError(t, err)
	var total float64
	for k := range m.Elements {
		a := math.Abs(planar.Area(readfiles.ElementPolygon(m, k)))
		assert.LessOrEqual(t, a, 1.+1.e-12)
		total += a
	}
	// The refined mesh covers the whole square
	assert.InDelta(t, 100., total, 1.e-9)
	assert.GreaterOrEqual(t, m.NumElements(), rec.initial.NumElements())
	for k := range rec.initial.Elements {
		assert.LessOrEqual(t, rec.initial.Area(k), 4.)
	}

	initialWKT, finalWKT, nodesWKT := Output{Path: outPath}.WKTPaths()
	for _, f := range []string{initialWKT, finalWKT, nodesWKT} {
		assert.FileExists(t, f)
	}

	// The run directory is gone
	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunMapsCentroidElevations(t *testing.T) {
	var (
		rec = &recorder{Mesher: fakeEngine(t)}
		in  = squareInputs(t, func(x, y float64) float64 { return x }, []float64{0, 5}, []float64{10, 2})
	)
	d := &Driver{Engine: rec, WorkDir: t.TempDir(), KeepIntermediates: true}
	pl, err := d.RunInputs(context.Background(), in,
		Output{Path: filepath.Join(t.TempDir(), "out.vtk"), Format: readfiles.FormatVTK})
	require.NoError(t, err)

	require.Len(t, rec.areas, rec.initial.NumElements())
	for k, c := range rec.initial.Centroids() {
		assert.Equal(t, k+1, rec.areas[k].ID)
		assert.InDelta(t, c.X, pl.Elevations[k], 1.e-9)
		assert.InDelta(t, in.Transfer.Area(c.X), rec.areas[k].MaxArea, 1.e-9)
	}
	// Intermediates are kept on request
	for _, f := range []string{"initial/mesh.poly", "initial/mesh.1.ele", "refine/mesh.1.area", "refine/mesh.2.node"} {
		assert.FileExists(t, filepath.Join(pl.Dir, f))
	}
}

func TestRunSingleSeedMatchesMany(t *testing.T) {
	run := func(seeds []geometry2D.AreaSeed) int {
		in := squareInputs(t, flat, []float64{0}, []float64{50})
		in.Seeds = seeds
		rec := &recorder{Mesher: fakeEngine(t)}
		d := &Driver{Engine: rec, WorkDir: t.TempDir()}
		_, err := d.RunInputs(context.Background(), in,
			Output{Path: filepath.Join(t.TempDir(), "out.grd")})
		require.NoError(t, err)
		return rec.initial.NumElements()
	}
	one := run([]geometry2D.AreaSeed{{Point: geometry2D.Point{X: 5, Y: 5}, MaxArea: 4}})
	many := run([]geometry2D.AreaSeed{
		{Point: geometry2D.Point{X: 5, Y: 5}, MaxArea: 4},
		{Point: geometry2D.Point{X: 2, Y: 2}, MaxArea: 4},
	})
	assert.Equal(t, many, one)
}

func TestRunEngineFailureKeepsRunDir(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.grd")
	d := &Driver{Engine: fakeEngine(t, trianglefake.EnvFail+"=2"), WorkDir: t.TempDir()}
	pl, err := d.RunInputs(context.Background(), squareInputs(t, flat, []float64{0}, []float64{1}),
		Output{Path: outPath})
	require.Error(t, err)
	assert.Equal(t, Failed, pl.Stage)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, InitialTriangulation, se.Stage)
	assert.Equal(t, pl.Dir, se.Dir)
	assert.DirExists(t, se.Dir)
	assert.FileExists(t, filepath.Join(se.Dir, "initial", "mesh.poly"))
	assert.Contains(t, err.Error(), "InitialTriangulation")

	var ef *types.EngineFailure
	require.True(t, errors.As(err, &ef))
	assert.Equal(t, 2, ef.ExitCode)
	assert.NoFileExists(t, outPath)
}

func TestRunOutsideHullPolicy(t *testing.T) {
	in := squareInputs(t, flat, []float64{0}, []float64{1})
	// A TIN over the left half of the square only
	in.TIN = geometry2D.NewGridMesh(0, 0, 5, 10, 2, 2, flat)
	in.Paths.TIN = "half.grd"

	d := &Driver{Engine: fakeEngine(t), WorkDir: t.TempDir(), Policy: geometry2D.FailOutside}
	_, err := d.RunInputs(context.Background(), in, Output{Path: filepath.Join(t.TempDir(), "out.grd")})
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, Interpolating, se.Stage)
	assert.Equal(t, "half.grd", se.Path)
	var de *types.InterpolationDomainError
	assert.True(t, errors.As(err, &de))

	d.Policy = geometry2D.NearestTriangle
	pl, err := d.RunInputs(context.Background(), in, Output{Path: filepath.Join(t.TempDir(), "out.grd")})
	require.NoError(t, err)
	assert.Greater(t, pl.Outside, 0)
}

func TestRunTopologyError(t *testing.T) {
	in := squareInputs(t, flat, []float64{0}, []float64{1})
	in.Boundary[0].Points = in.Boundary[0].Points[:4]
	in.Paths.Boundary = "boundary.csv"
	d := &Driver{Engine: fakeEngine(t), WorkDir: t.TempDir()}
	pl, err := d.RunInputs(context.Background(), in, Output{Path: filepath.Join(t.TempDir(), "out.grd")})
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, Assembling, se.Stage)
	assert.Equal(t, "boundary.csv", se.Path)
	var te *types.TopologyError
	assert.True(t, errors.As(err, &te))
	assert.Nil(t, pl.Initial)
}

func TestRunTopologyErrorNamesInputFile(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(in *Inputs)
		path   string
	}{
		{"dangling line vertex", func(in *Inputs) {
			in.Lines = []geometry2D.Polyline{{ShapeID: 4, Points: []geometry2D.Point{{X: 0, Y: 0}, {X: 6, Y: 6}}}}
		}, "lines.csv"},
		{"no nodes", func(in *Inputs) { in.Nodes = nil }, "nodes.csv"},
		{"open boundary", func(in *Inputs) {
			in.Boundary[0].Points = in.Boundary[0].Points[:4]
		}, "boundary.csv"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := squareInputs(t, flat, []float64{0}, []float64{1})
			in.Paths = InputPaths{Nodes: "nodes.csv", Boundary: "boundary.csv", Lines: "lines.csv"}
			tc.modify(in)
			d := &Driver{Engine: fakeEngine(t), WorkDir: t.TempDir()}
			_, err := d.RunInputs(context.Background(), in, Output{Path: filepath.Join(t.TempDir(), "out.grd")})
			var se *StageError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, Assembling, se.Stage)
			assert.Equal(t, tc.path, se.Path)
			assert.Contains(t, err.Error(), tc.path)
		})
	}
}

func TestRunCompanionFailureWritesNoMesh(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "square.grd")
	_, finalWKT, _ := Output{Path: outPath}.WKTPaths()
	// A directory in the way makes the rename of the companion file fail
	require.NoError(t, os.Mkdir(finalWKT, 0o755))

	d := &Driver{Engine: fakeEngine(t), WorkDir: t.TempDir()}
	pl, err := d.RunInputs(context.Background(), squareInputs(t, flat, []float64{0}, []float64{1}),
		Output{Path: outPath, Format: readfiles.FormatAdcirc, WKT: true})
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, Finalizing, se.Stage)
	assert.Equal(t, finalWKT, se.Path)
	assert.Equal(t, Failed, pl.Stage)
	assert.NoFileExists(t, outPath)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &Driver{Engine: fakeEngine(t), WorkDir: t.TempDir()}
	_, err := d.RunInputs(ctx, squareInputs(t, flat, []float64{0}, []float64{1}),
		Output{Path: filepath.Join(t.TempDir(), "out.grd")})
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, Assembling, se.Stage)
	assert.True(t, errors.Is(err, context.Canceled))
}

func writeInputFiles(t *testing.T, function string) (paths InputPaths) {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}
	paths.Nodes = write("nodes.csv", "0,0,0\n10,0,0\n10,10,0\n0,10,0\n")
	paths.Boundary = write("boundary.csv", "0,0,0\n0,10,0\n0,10,10\n0,0,10\n0,0,0\n")
	paths.Lines = "none"
	paths.Holes = "none"
	paths.Areas = write("areas.csv", "5,5,4\n")
	paths.Function = write("function.csv", function)
	var tin strings.Builder
	require.NoError(t, readfiles.WriteAdcirc(&tin, geometry2D.NewGridMesh(-1, -1, 11, 11, 4, 4, flat), "tin"))
	paths.TIN = write("tin.grd", tin.String())
	return
}

func TestRunFromFiles(t *testing.T) {
	paths := writeInputFiles(t, "0,1.0\n10,1.0\n")
	outPath := filepath.Join(t.TempDir(), "mesh.csv")
	d := &Driver{Engine: fakeEngine(t), WorkDir: t.TempDir()}
	pl, err := d.Run(context.Background(), paths, 0, Output{Path: outPath, Format: readfiles.FormatWKT})
	require.NoError(t, err)
	assert.Equal(t, Done, pl.Stage)
	b, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "WKT,element\n"))
	assert.Equal(t, pl.Refined.NumElements()+1, strings.Count(string(b), "\n"))
}

func TestRunRejectsNonMonotonicFunction(t *testing.T) {
	paths := writeInputFiles(t, "0,10\n5,2\n4,1\n")
	d := &Driver{Engine: fakeEngine(t), WorkDir: t.TempDir()}
	_, err := d.Run(context.Background(), paths, 0, Output{Path: filepath.Join(t.TempDir(), "out.grd")})
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, Assembling, se.Stage)
	assert.Equal(t, paths.Function, se.Path)
	var ce *types.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 2, ce.Index)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "MappingAreas", MappingAreas.String())
	assert.Equal(t, "Stage(42)", Stage(42).String())
	assert.True(t, Failed.Terminal())
	assert.Equal(t, Refining, MappingAreas.next())
	assert.Equal(t, Done, Done.next())
}
