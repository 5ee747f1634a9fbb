// Package refine runs the adaptive refinement pipeline: assemble the PSLG,
// build an initial mesh, sample the terrain at element centroids, map the
// elevations to area limits and refine under those limits.
package refine

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/notargets/meshrefine/geometry2D"
	"github.com/notargets/meshrefine/readfiles"
	"github.com/notargets/meshrefine/types"
)

// FirstShape as an outer boundary id selects the first boundary shape.
const FirstShape = -1

// Mesher is the external triangulation engine. Each call owns dir.
type Mesher interface {
	BuildInitial(ctx context.Context, dir string, p *geometry2D.PSLG) (*geometry2D.Mesh, error)
	Refine(ctx context.Context, dir string, m *geometry2D.Mesh, areas []readfiles.ElementArea) (*geometry2D.Mesh, error)
}

// Output describes the files written by the Finalizing stage.
type Output struct {
	Path   string
	Format readfiles.MeshFormat
	Title  string
	// WKT adds <base>_initialWKT.csv and <base>_finalWKT.csv next to Path.
	WKT bool
	// NodeWKT adds <base>_nodesWKT.csv with the final nodes and elevations.
	NodeWKT bool
}

// WKTPaths returns the companion WKT file names derived from Path.
func (o Output) WKTPaths() (initial, final, nodes string) {
	base := strings.TrimSuffix(o.Path, filepath.Ext(o.Path))
	return base + "_initialWKT.csv", base + "_finalWKT.csv", base + "_nodesWKT.csv"
}

// Pipeline carries the state of one run between stages.
type Pipeline struct {
	RunID      string
	Dir        string
	Stage      Stage
	PSLG       *geometry2D.PSLG
	Initial    *geometry2D.Mesh
	Elevations []float64
	Outside    int
	Areas      []readfiles.ElementArea
	Refined    *geometry2D.Mesh
}

// Driver runs pipelines. Runs with the same WorkDir do not collide, each gets
// its own run directory beneath it.
type Driver struct {
	Engine            Mesher
	WorkDir           string
	Policy            geometry2D.OutsideHull
	Tolerance         float64
	KeepIntermediates bool
	Log               *zap.Logger
}

func (d *Driver) log() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

// Run loads the input files and runs the pipeline on them. Reading the
// inputs is part of the Assembling stage.
func (d *Driver) Run(ctx context.Context, paths InputPaths, outerID int, out Output) (pl *Pipeline, err error) {
	in, path, err := LoadInputs(paths, outerID)
	if err != nil {
		d.log().Error("unable to load inputs", zap.String("path", path), zap.Error(err))
		return &Pipeline{Stage: Failed}, &StageError{Stage: Assembling, Path: path, Err: err}
	}
	return d.RunInputs(ctx, in, out)
}

// RunInputs runs every stage on in-memory inputs. On success the refined
// mesh has been written to out and the run directory removed, unless
// KeepIntermediates is set. On failure the returned error is a *StageError
// and the run directory is left in place.
func (d *Driver) RunInputs(ctx context.Context, in *Inputs, out Output) (pl *Pipeline, err error) {
	var (
		start = time.Now()
		path  string
	)
	pl = &Pipeline{RunID: uuid.New().String(), Stage: Assembling}
	log := d.log().With(zap.String("run", pl.RunID))

	workDir := d.WorkDir
	if workDir == "" {
		workDir = "."
	}
	pl.Dir = filepath.Join(workDir, "meshrefine-"+pl.RunID)
	if err = os.MkdirAll(pl.Dir, 0o755); err != nil {
		pl.Stage = Failed
		return pl, &StageError{Stage: Assembling, Err: errors.Wrap(err, "creating run directory")}
	}
	log.Info("run started", zap.String("dir", pl.Dir))

	stages := []func(context.Context, *Pipeline, *Inputs, Output, *zap.Logger) (string, error){
		d.assemble,
		d.buildInitial,
		d.interpolate,
		d.mapAreas,
		d.refine,
		d.finalize,
	}
	for _, stage := range stages {
		log.Info("stage started", zap.Stringer("stage", pl.Stage))
		if err = ctx.Err(); err == nil {
			path, err = stage(ctx, pl, in, out, log)
		}
		if err != nil {
			failed := pl.Stage
			pl.Stage = Failed
			log.Error("stage failed", zap.Stringer("stage", failed), zap.String("path", path),
				zap.String("dir", pl.Dir), zap.Error(err))
			return pl, &StageError{Stage: failed, Path: path, Dir: pl.Dir, Err: err}
		}
		pl.Stage = pl.Stage.next()
	}
	if !d.KeepIntermediates {
		if err = os.RemoveAll(pl.Dir); err != nil {
			log.Warn("unable to remove run directory", zap.String("dir", pl.Dir), zap.Error(err))
			err = nil
		}
	}
	log.Info("run finished", zap.Stringer("stage", pl.Stage), zap.String("output", out.Path),
		zap.Duration("elapsed", time.Since(start)))
	return
}

func (d *Driver) assemble(_ context.Context, pl *Pipeline, in *Inputs, _ Output, log *zap.Logger) (path string, err error) {
	outerID := in.OuterID
	if outerID == FirstShape && len(in.Boundary) > 0 {
		outerID = in.Boundary[0].ShapeID
	}
	pl.PSLG, err = geometry2D.AssemblePSLG(geometry2D.PSLGInput{
		Nodes:     in.Nodes,
		Boundary:  in.Boundary,
		OuterID:   outerID,
		Lines:     in.Lines,
		Holes:     in.Holes,
		Seeds:     in.Seeds,
		Tolerance: d.Tolerance,
	})
	if err != nil {
		var (
			ce *types.ConfigurationError
			te *types.TopologyError
		)
		switch {
		case errors.As(err, &ce):
			return in.Paths.Areas, err
		case errors.As(err, &te) && te.Source == types.TopologyLine:
			return in.Paths.Lines, err
		case errors.As(err, &te) && te.Source == types.TopologyNodes:
			return in.Paths.Nodes, err
		}
		return in.Paths.Boundary, err
	}
	log.Info("PSLG assembled",
		zap.Int("nodes", len(pl.PSLG.Nodes)),
		zap.Int("segments", len(pl.PSLG.Segments)),
		zap.Int("holes", len(pl.PSLG.Holes)),
		zap.Int("seeds", len(pl.PSLG.Seeds)))
	return
}

func (d *Driver) buildInitial(ctx context.Context, pl *Pipeline, _ *Inputs, _ Output, log *zap.Logger) (path string, err error) {
	dir := filepath.Join(pl.Dir, "initial")
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	if pl.Initial, err = d.Engine.BuildInitial(ctx, dir, pl.PSLG); err != nil {
		return
	}
	logStats(log, "initial mesh", pl.Initial)
	return
}

func (d *Driver) interpolate(_ context.Context, pl *Pipeline, in *Inputs, _ Output, log *zap.Logger) (path string, err error) {
	tin, err := geometry2D.NewTIN(in.TIN)
	if err != nil {
		return in.Paths.TIN, err
	}
	if pl.Elevations, pl.Outside, err = tin.InterpolateCentroids(pl.Initial, d.Policy); err != nil {
		return in.Paths.TIN, err
	}
	if pl.Outside > 0 {
		log.Warn("centroids outside the TIN resolved by the nearest triangle",
			zap.Int("count", pl.Outside), zap.Int("elements", pl.Initial.NumElements()))
	}
	return
}

func (d *Driver) mapAreas(_ context.Context, pl *Pipeline, in *Inputs, _ Output, log *zap.Logger) (path string, err error) {
	limits := in.Transfer.Map(pl.Elevations)
	pl.Areas = make([]readfiles.ElementArea, len(limits))
	for k, a := range limits {
		pl.Areas[k] = readfiles.ElementArea{ID: k + 1, MaxArea: a}
	}
	log.Debug("area limits mapped", zap.Int("elements", len(pl.Areas)))
	return
}

func (d *Driver) refine(ctx context.Context, pl *Pipeline, _ *Inputs, _ Output, log *zap.Logger) (path string, err error) {
	dir := filepath.Join(pl.Dir, "refine")
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	if pl.Refined, err = d.Engine.Refine(ctx, dir, pl.Initial, pl.Areas); err != nil {
		return
	}
	logStats(log, "refined mesh", pl.Refined)
	return
}

// finalize writes the requested outputs. Every file goes through a temporary
// sibling, and the mesh itself is written last, so a failed run never leaves
// a mesh at out.Path.
func (d *Driver) finalize(_ context.Context, pl *Pipeline, _ *Inputs, out Output, log *zap.Logger) (path string, err error) {
	var (
		written []string
	)
	if out.Path == "" {
		return "", errors.New("no output path")
	}
	initialWKT, finalWKT, nodesWKT := out.WKTPaths()
	if out.WKT {
		if err = writeWKT(initialWKT, pl.Initial, readfiles.WriteWKT); err != nil {
			return initialWKT, err
		}
		if err = writeWKT(finalWKT, pl.Refined, readfiles.WriteWKT); err != nil {
			return finalWKT, err
		}
		written = append(written, initialWKT, finalWKT)
	}
	if out.NodeWKT {
		if err = writeWKT(nodesWKT, pl.Refined, readfiles.WriteNodeWKT); err != nil {
			return nodesWKT, err
		}
		written = append(written, nodesWKT)
	}
	if err = readfiles.WriteMeshFile(out.Path, pl.Refined, out.Format, out.Title); err != nil {
		return out.Path, err
	}
	written = append(written, out.Path)
	log.Info("mesh written", zap.Strings("files", written), zap.Stringer("format", out.Format))
	return
}

func writeWKT(path string, m *geometry2D.Mesh, write func(io.Writer, *geometry2D.Mesh) error) error {
	return readfiles.WriteFileAtomic(path, func(w io.Writer) error { return write(w, m) })
}

func logStats(log *zap.Logger, msg string, m *geometry2D.Mesh) {
	st := m.Stats()
	log.Info(msg,
		zap.Int("nodes", st.Nodes),
		zap.Int("elements", st.Elements),
		zap.Float64("minArea", st.MinArea),
		zap.Float64("maxArea", st.MaxArea),
		zap.Float64("totalArea", st.SumArea))
}
