package triangle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/notargets/meshrefine/geometry2D"
	"github.com/notargets/meshrefine/readfiles"
	"github.com/notargets/meshrefine/types"
)

const (
	// DefaultInitialSwitches reads a .poly, builds a conforming constrained
	// Delaunay mesh with a minimum angle bound and regional area limits.
	DefaultInitialSwitches = "-pDqa"
	// DefaultRefineSwitches refines a previous mesh, keeping its segments,
	// under per-triangle limits read from the .area file.
	DefaultRefineSwitches = "-rpDqa"
)

const (
	initialBase = "mesh"
	refineBase  = "mesh.1"
	refinedBase = "mesh.2"
)

// BinaryName returns the engine executable name for an operating system and
// pointer width: triangle_32 or triangle_64, with .exe on Windows.
func BinaryName(goos string, ptrBits int) (name string, err error) {
	if ptrBits != 32 && ptrBits != 64 {
		return "", &types.PlatformError{GOOS: goos, PtrBits: ptrBits, Reason: "unsupported pointer width"}
	}
	name = fmt.Sprintf("triangle_%d", ptrBits)
	switch goos {
	case "linux", "darwin", "freebsd", "netbsd", "openbsd", "dragonfly", "solaris", "illumos", "aix":
	case "windows":
		name += ".exe"
	default:
		return "", &types.PlatformError{GOOS: goos, PtrBits: ptrBits, Reason: "unsupported operating system"}
	}
	return
}

// SelectBinary returns the absolute path of the engine executable in dir for
// the given platform. A missing binary is a PlatformError; there is no
// fallback to another variant.
func SelectBinary(dir, goos string, ptrBits int) (path string, err error) {
	var (
		name string
		fi   os.FileInfo
	)
	if name, err = BinaryName(goos, ptrBits); err != nil {
		return
	}
	if path, err = filepath.Abs(filepath.Join(dir, name)); err != nil {
		return "", errors.Wrapf(err, "resolving %s", name)
	}
	if fi, err = os.Stat(path); err != nil {
		return "", &types.PlatformError{GOOS: goos, PtrBits: ptrBits, Path: path, Reason: "engine binary not found"}
	}
	if fi.IsDir() {
		return "", &types.PlatformError{GOOS: goos, PtrBits: ptrBits, Path: path, Reason: "engine binary is a directory"}
	}
	return
}

// Engine drives the external Triangle executable. Every call works in the
// directory it is given; concurrent calls need distinct directories.
type Engine struct {
	Binary          string
	InitialSwitches string
	RefineSwitches  string
	Env             []string // Added to the inherited environment
	Log             *zap.Logger
}

// NewEngine uses binary when it is set and otherwise selects the variant in
// binaryDir matching the host.
func NewEngine(binaryDir, binary string, log *zap.Logger) (e *Engine, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	e = &Engine{
		InitialSwitches: DefaultInitialSwitches,
		RefineSwitches:  DefaultRefineSwitches,
		Log:             log,
	}
	if binary != "" {
		if e.Binary, err = filepath.Abs(binary); err != nil {
			return nil, errors.Wrapf(err, "resolving %s", binary)
		}
		if _, err = os.Stat(e.Binary); err != nil {
			return nil, &types.PlatformError{GOOS: runtime.GOOS, PtrBits: bits.UintSize, Path: e.Binary,
				Reason: "engine binary not found"}
		}
		return
	}
	if e.Binary, err = SelectBinary(binaryDir, runtime.GOOS, bits.UintSize); err != nil {
		return nil, err
	}
	return
}

// BuildInitial writes the PSLG to dir/mesh.poly, runs the initial pass and
// reads back dir/mesh.1.
func (e *Engine) BuildInitial(ctx context.Context, dir string, p *geometry2D.PSLG) (m *geometry2D.Mesh, err error) {
	if err = checkSwitches(e.InitialSwitches, "p"); err != nil {
		return
	}
	polyFile := filepath.Join(dir, initialBase+".poly")
	if err = readfiles.WriteFile(polyFile, func(w io.Writer) error { return readfiles.WritePoly(w, p) }); err != nil {
		return
	}
	if err = e.run(ctx, dir, e.InitialSwitches, initialBase+".poly"); err != nil {
		return
	}
	return readfiles.ReadTriangleMesh(filepath.Join(dir, refineBase))
}

// Refine writes the mesh and its per-element area limits as dir/mesh.1,
// runs the refine pass and reads back dir/mesh.2. areas needs exactly one
// entry per element, matched on the 1-based element id.
func (e *Engine) Refine(ctx context.Context, dir string, m *geometry2D.Mesh,
	areas []readfiles.ElementArea) (refined *geometry2D.Mesh, err error) {
	var (
		ordered []readfiles.ElementArea
		base    = filepath.Join(dir, refineBase)
	)
	if err = checkSwitches(e.RefineSwitches, "ra"); err != nil {
		return
	}
	if ordered, err = MatchConstraints(m.NumElements(), areas); err != nil {
		return
	}
	if err = readfiles.WriteTriangleMesh(base, m); err != nil {
		return
	}
	if err = readfiles.WriteFile(base+".area", func(w io.Writer) error { return readfiles.WriteArea(w, ordered) }); err != nil {
		return
	}
	if err = e.run(ctx, dir, e.RefineSwitches, refineBase); err != nil {
		return
	}
	return readfiles.ReadTriangleMesh(filepath.Join(dir, refinedBase))
}

// MatchConstraints orders the constraints by element id, failing unless
// there is exactly one finite positive limit for each of the nElements
// elements.
func MatchConstraints(nElements int, areas []readfiles.ElementArea) (ordered []readfiles.ElementArea, err error) {
	if len(areas) != nElements {
		return nil, &types.ConstraintCountError{Elements: nElements, Constraints: len(areas)}
	}
	ordered = make([]readfiles.ElementArea, nElements)
	for i, a := range areas {
		if a.ID < 1 || a.ID > nElements {
			return nil, &types.ConstraintCountError{Elements: nElements, Constraints: len(areas),
				Reason: fmt.Sprintf("element id %d is outside [1,%d]", a.ID, nElements)}
		}
		if ordered[a.ID-1].ID != 0 {
			return nil, &types.ConstraintCountError{Elements: nElements, Constraints: len(areas),
				Reason: fmt.Sprintf("element id %d appears more than once", a.ID)}
		}
		if !(a.MaxArea > 0) || math.IsInf(a.MaxArea, 0) {
			return nil, &types.ConfigurationError{Index: i,
				Reason: fmt.Sprintf("area limit %g for element %d must be positive and finite", a.MaxArea, a.ID)}
		}
		ordered[a.ID-1] = a
	}
	return
}

func checkSwitches(switches, need string) error {
	if !strings.HasPrefix(switches, "-") {
		return &types.ConfigurationError{Index: -1, Reason: fmt.Sprintf("engine switches %q must start with '-'", switches)}
	}
	for _, c := range need {
		if !strings.ContainsRune(switches, c) {
			return &types.ConfigurationError{Index: -1,
				Reason: fmt.Sprintf("engine switches %q must include %q", switches, c)}
		}
	}
	return nil
}

func (e *Engine) log() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

// run executes the engine in dir and blocks until it exits. Any exit status
// other than zero is an EngineFailure.
func (e *Engine) run(ctx context.Context, dir, switches, input string) (err error) {
	var (
		stdout, stderr bytes.Buffer
		args           = []string{switches, input}
		log            = e.log().With(zap.String("binary", e.Binary), zap.Strings("args", args), zap.String("dir", dir))
		start          = time.Now()
	)
	cmd := exec.CommandContext(ctx, e.Binary, args...)
	cmd.Dir = dir
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	log.Debug("starting triangulation engine")
	err = cmd.Run()
	log.Debug("triangulation engine output",
		zap.String("stdout", stdout.String()), zap.String("stderr", stderr.String()))
	if err != nil {
		ef := &types.EngineFailure{Binary: e.Binary, Args: args, ExitCode: -1, Stderr: stderr.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			ef.ExitCode = exitErr.ExitCode()
		}
		return ef
	}
	log.Info("triangulation engine finished", zap.Duration("elapsed", time.Since(start)))
	return nil
}
