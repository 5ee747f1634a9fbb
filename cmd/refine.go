/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/notargets/meshrefine/InputParameters"
	"github.com/notargets/meshrefine/geometry2D"
	"github.com/notargets/meshrefine/logger"
	"github.com/notargets/meshrefine/readfiles"
	"github.com/notargets/meshrefine/refine"
	"github.com/notargets/meshrefine/triangle"
)

const envPrefix = "MESHREFINE"

type RefineRun struct {
	Paths      refine.InputPaths
	OutputFile string
	ParamsFile string
	ProfileDir string
	Params     *InputParameters.RefineParameters
}

// RefineCmd represents the refine command
var RefineCmd = &cobra.Command{
	Use:   "refine",
	Short: "Build an initial mesh and refine it from a terrain TIN",
	Long: `
Runs the full pipeline: assemble the PSLG, build the initial mesh, interpolate
the TIN at element centroids, map elevations to area limits and refine.

Lines and holes may be given as "none". Every parameter file key can also be
set with a MESHREFINE_ environment variable, e.g. MESHREFINE_ENGINE_BINARYDIR.

meshrefine refine -n nodes.csv -b boundary.csv -l none -H none -a areas.csv -f function.csv -t tin.grd -o mesh.grd`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			rr *RefineRun
		)
		if rr, err = processInput(cmd.Flags()); err != nil {
			return
		}
		if rr.ProfileDir != "" {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(rr.ProfileDir), profile.Quiet).Stop()
		}
		return RunRefine(cmd.Context(), rr)
	},
}

var overlayKeys = []struct {
	key, flag string
}{
	{"title", "title"},
	{"tolerance", "tolerance"},
	{"outer", "outer"},
	{"outsidehull", "outsideHull"},
	{"workdir", "workDir"},
	{"keepintermediates", "keep"},
	{"engine.binarydir", "engineDir"},
	{"engine.binary", "engine"},
	{"output.format", "format"},
	{"output.wkt", "wkt"},
	{"output.nodewkt", "nodeWKT"},
	{"logging.level", "logLevel"},
	{"logging.file", "logFile"},
}

// processInput reads the parameter file and overlays environment variables
// and flags, in increasing precedence.
func processInput(flags *pflag.FlagSet) (rr *RefineRun, err error) {
	var (
		data []byte
	)
	rr = &RefineRun{Params: InputParameters.NewRefineParameters()}
	get := func(name string) string { s, _ := flags.GetString(name); return s }
	rr.Paths = refine.InputPaths{
		Nodes:    get("nodes"),
		Boundary: get("boundary"),
		Lines:    get("lines"),
		Holes:    get("holes"),
		Areas:    get("areas"),
		Function: get("function"),
		TIN:      get("tin"),
	}
	rr.OutputFile, rr.ParamsFile, rr.ProfileDir = get("output"), get("inputParametersFile"), get("profile")

	var missing []string
	for _, f := range []string{"nodes", "boundary", "areas", "function", "tin", "output"} {
		if get(f) == "" {
			missing = append(missing, "--"+f)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("must supply %s", strings.Join(missing, ", "))
	}

	if rr.ParamsFile != "" {
		if rr.ParamsFile, err = homedir.Expand(rr.ParamsFile); err != nil {
			return
		}
		if data, err = ioutil.ReadFile(rr.ParamsFile); err != nil {
			return nil, errors.Wrap(err, "reading input parameters")
		}
		if err = rr.Params.Parse(data); err != nil {
			return nil, errors.Wrapf(err, "parsing %s", rr.ParamsFile)
		}
	}
	if err = overlay(rr.Params, flags); err != nil {
		return
	}
	if err = rr.Params.ExpandPaths(); err != nil {
		return
	}
	for _, p := range []*string{&rr.Paths.Nodes, &rr.Paths.Boundary, &rr.Paths.Lines, &rr.Paths.Holes,
		&rr.Paths.Areas, &rr.Paths.Function, &rr.Paths.TIN, &rr.OutputFile, &rr.ProfileDir} {
		if *p, err = homedir.Expand(*p); err != nil {
			return
		}
	}
	return
}

// overlay applies MESHREFINE_* environment variables and explicitly set flags
// on top of the parameters.
func overlay(rp *InputParameters.RefineParameters, flags *pflag.FlagSet) (err error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	outer := refine.FirstShape
	if rp.OuterBoundaryID != nil {
		outer = *rp.OuterBoundaryID
	}
	v.SetDefault("title", rp.Title)
	v.SetDefault("tolerance", rp.Tolerance)
	v.SetDefault("outer", outer)
	v.SetDefault("outsidehull", rp.OutsideHull)
	v.SetDefault("workdir", rp.WorkDir)
	v.SetDefault("keepintermediates", rp.KeepIntermediates)
	v.SetDefault("engine.binarydir", rp.Engine.BinaryDir)
	v.SetDefault("engine.binary", rp.Engine.Binary)
	v.SetDefault("output.format", rp.Output.Format)
	v.SetDefault("output.wkt", rp.Output.WKT)
	v.SetDefault("output.nodewkt", rp.Output.NodeWKT)
	v.SetDefault("logging.level", rp.Logging.Level)
	v.SetDefault("logging.file", rp.Logging.File)
	for _, ok := range overlayKeys {
		// Unchanged flags must not mask the parameter file
		if f := flags.Lookup(ok.flag); f != nil && f.Changed {
			if err = v.BindPFlag(ok.key, f); err != nil {
				return
			}
		}
	}

	rp.Title = v.GetString("title")
	rp.Tolerance = v.GetFloat64("tolerance")
	if outer = v.GetInt("outer"); outer != refine.FirstShape {
		rp.OuterBoundaryID = &outer
	} else {
		rp.OuterBoundaryID = nil
	}
	rp.OutsideHull = v.GetString("outsidehull")
	rp.WorkDir = v.GetString("workdir")
	rp.KeepIntermediates = v.GetBool("keepintermediates")
	rp.Engine.BinaryDir = v.GetString("engine.binarydir")
	rp.Engine.Binary = v.GetString("engine.binary")
	rp.Output.Format = v.GetString("output.format")
	rp.Output.WKT = v.GetBool("output.wkt")
	rp.Output.NodeWKT = v.GetBool("output.nodewkt")
	rp.Logging.Level = v.GetString("logging.level")
	rp.Logging.File = v.GetString("logging.file")
	return
}

func RunRefine(ctx context.Context, rr *RefineRun) (err error) {
	var (
		rp     = rr.Params
		log    *zap.Logger
		engine *triangle.Engine
		policy geometry2D.OutsideHull
		format readfiles.MeshFormat
	)
	if ctx == nil {
		ctx = context.Background()
	}
	if log, err = logger.New(rp.Logging.Level, rp.Logging.File); err != nil {
		return
	}
	defer log.Sync()
	if rp.Logging.Level == "debug" {
		rp.Print(os.Stderr)
	}
	if policy, err = geometry2D.NewOutsideHull(rp.OutsideHull); err != nil {
		return
	}
	if format, err = readfiles.NewMeshFormat(rp.Output.Format, rr.OutputFile); err != nil {
		return
	}
	if engine, err = triangle.NewEngine(rp.Engine.BinaryDir, rp.Engine.Binary, log.Named("triangle")); err != nil {
		return
	}
	if rp.Engine.InitialSwitches != "" {
		engine.InitialSwitches = rp.Engine.InitialSwitches
	}
	if rp.Engine.RefineSwitches != "" {
		engine.RefineSwitches = rp.Engine.RefineSwitches
	}
	outer := refine.FirstShape
	if rp.OuterBoundaryID != nil {
		outer = *rp.OuterBoundaryID
	}
	d := &refine.Driver{
		Engine:            engine,
		WorkDir:           rp.WorkDir,
		Policy:            policy,
		Tolerance:         rp.Tolerance,
		KeepIntermediates: rp.KeepIntermediates,
		Log:               log,
	}
	_, err = d.Run(ctx, rr.Paths, outer, refine.Output{
		Path:    rr.OutputFile,
		Format:  format,
		Title:   rp.Title,
		WKT:     rp.Output.WKT,
		NodeWKT: rp.Output.NodeWKT,
	})
	return
}

func init() {
	rootCmd.AddCommand(RefineCmd)
	addRefineFlags(RefineCmd.Flags())
}

func addRefineFlags(f *pflag.FlagSet) {
	f.StringP("nodes", "n", "", "Nodes csv: x,y[,z[,size]]")
	f.StringP("boundary", "b", "", "Boundary csv: shapeid,x,y, closed shapes")
	f.StringP("lines", "l", readfiles.NoneSentinel, "Constraint lines csv: shapeid,x,y, or none")
	f.StringP("holes", "H", readfiles.NoneSentinel, "Holes csv: x,y, or none")
	f.StringP("areas", "a", "", "Area seeds csv: x,y,area")
	f.StringP("function", "f", "", "Transfer function csv: elevation,area, strictly increasing in elevation")
	f.StringP("tin", "t", "", "Terrain TIN in ADCIRC (.grd) format")
	f.StringP("output", "o", "", "Output mesh file")
	f.StringP("inputParametersFile", "I", "", "YAML file for run parameters like:\n\t- Tolerance\n\t- OutsideHull\n\t- Engine")
	f.String("profile", "", "Write a CPU profile to this directory")
	f.String("title", "", "Mesh title")
	f.Float64("tolerance", 0, "Distance under which polyline vertices match a node")
	f.Int("outer", refine.FirstShape, "Shape id of the outer boundary, -1 selects the first shape")
	f.String("outsideHull", "", "Centroids outside the TIN: nearest or fail")
	f.String("workDir", "", "Directory for per-run intermediate files")
	f.Bool("keep", false, "Keep intermediate files after a successful run")
	f.String("engineDir", "", "Directory holding triangle_32 and triangle_64")
	f.String("engine", "", "Explicit path to the Triangle executable")
	f.String("format", "", "Output format: adcirc, wkt, vtk or su2 (default from the output extension)")
	f.Bool("wkt", false, "Also write initial and final WKT csv files")
	f.Bool("nodeWKT", false, "Also write a WKT csv of the final nodes")
	f.String("logLevel", "", "debug, info, warn or error")
	f.String("logFile", "", "Also log to this rotating file")
}
