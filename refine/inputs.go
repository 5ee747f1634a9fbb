package refine

import (
	"github.com/notargets/meshrefine/geometry2D"
	"github.com/notargets/meshrefine/readfiles"
	"github.com/notargets/meshrefine/transfer"
)

// InputPaths names the files of one run. Lines and Holes may be "none".
type InputPaths struct {
	Nodes    string
	Boundary string
	Lines    string
	Holes    string
	Areas    string
	Function string
	TIN      string
}

// Inputs is everything a run needs, already in memory.
type Inputs struct {
	Nodes    []geometry2D.Node
	Boundary []geometry2D.Polyline
	OuterID  int
	Lines    []geometry2D.Polyline
	Holes    []geometry2D.Point
	Seeds    []geometry2D.AreaSeed
	TIN      *geometry2D.Mesh
	Transfer *transfer.Function
	// Paths labels errors; it is empty for inputs built in memory.
	Paths InputPaths
}

// LoadInputs reads every input file. On failure path names the file that
// could not be used.
func LoadInputs(paths InputPaths, outerID int) (in *Inputs, path string, err error) {
	var (
		elevations, areas []float64
	)
	in = &Inputs{OuterID: outerID, Paths: paths}
	if in.Nodes, err = readfiles.ReadNodes(paths.Nodes); err != nil {
		return nil, paths.Nodes, err
	}
	if in.Boundary, err = readfiles.ReadPolylines(paths.Boundary); err != nil {
		return nil, paths.Boundary, err
	}
	if in.Lines, err = readfiles.ReadPolylines(paths.Lines); err != nil {
		return nil, paths.Lines, err
	}
	if in.Holes, err = readfiles.ReadHoles(paths.Holes); err != nil {
		return nil, paths.Holes, err
	}
	if in.Seeds, err = readfiles.ReadAreaSeeds(paths.Areas); err != nil {
		return nil, paths.Areas, err
	}
	if elevations, areas, err = readfiles.ReadTransferTable(paths.Function); err != nil {
		return nil, paths.Function, err
	}
	if in.Transfer, err = transfer.New(paths.Function, elevations, areas); err != nil {
		return nil, paths.Function, err
	}
	if in.TIN, err = readfiles.ReadAdcirc(paths.TIN); err != nil {
		return nil, paths.TIN, err
	}
	return in, "", nil
}
