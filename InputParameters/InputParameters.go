package InputParameters

import (
	"fmt"
	"io"

	"github.com/ghodss/yaml"
	"github.com/mitchellh/go-homedir"
)

// EngineParameters locate and configure the external triangulation engine
type EngineParameters struct {
	BinaryDir       string `json:"BinaryDir"`       // Directory holding triangle_32/triangle_64
	Binary          string `json:"Binary"`          // Explicit engine path, overrides BinaryDir
	InitialSwitches string `json:"InitialSwitches"` // Default -pDqa
	RefineSwitches  string `json:"RefineSwitches"`  // Default -rpDqa
}

type OutputParameters struct {
	Format  string `json:"Format"` // adcirc, wkt or vtk; empty infers from the output extension
	WKT     bool   `json:"WKT"`    // Also write initial and final element WKT csv files
	NodeWKT bool   `json:"NodeWKT"`
}

type LoggingParameters struct {
	Level string `json:"Level"`
	File  string `json:"File"`
}

// Parameters obtained from the YAML input file
type RefineParameters struct {
	Title             string            `json:"Title"`
	Tolerance         float64           `json:"Tolerance"`       // Node matching distance
	OuterBoundaryID   *int              `json:"OuterBoundaryID"` // Unset selects the first boundary shape
	OutsideHull       string            `json:"OutsideHull"`     // nearest or fail
	WorkDir           string            `json:"WorkDir"`
	KeepIntermediates bool              `json:"KeepIntermediates"`
	Engine            EngineParameters  `json:"Engine"`
	Output            OutputParameters  `json:"Output"`
	Logging           LoggingParameters `json:"Logging"`
}

func NewRefineParameters() *RefineParameters {
	return &RefineParameters{
		Title:       "meshrefine",
		Tolerance:   1.e-3,
		OutsideHull: "nearest",
		WorkDir:     ".",
		Engine: EngineParameters{
			BinaryDir:       "./triangle/bin",
			InitialSwitches: "-pDqa",
			RefineSwitches:  "-rpDqa",
		},
		Logging: LoggingParameters{Level: "info"},
	}
}

// Parse overlays the YAML document on the receiver, so unset keys keep their
// current values.
func (rp *RefineParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, rp)
}

// ExpandPaths resolves a leading ~ in every path parameter.
func (rp *RefineParameters) ExpandPaths() (err error) {
	for _, p := range []*string{&rp.WorkDir, &rp.Engine.BinaryDir, &rp.Engine.Binary, &rp.Logging.File} {
		if *p, err = homedir.Expand(*p); err != nil {
			return
		}
	}
	return
}

func (rp *RefineParameters) Print(w io.Writer) {
	outer := "first shape"
	if rp.OuterBoundaryID != nil {
		outer = fmt.Sprintf("%d", *rp.OuterBoundaryID)
	}
	fmt.Fprintf(w, "\"%s\"\t\t= Title\n", rp.Title)
	fmt.Fprintf(w, "%8.5g\t\t= Tolerance\n", rp.Tolerance)
	fmt.Fprintf(w, "[%s]\t\t= Outer Boundary ID\n", outer)
	fmt.Fprintf(w, "[%s]\t\t= Outside Hull Policy\n", rp.OutsideHull)
	fmt.Fprintf(w, "[%s]\t\t\t= Work Directory\n", rp.WorkDir)
	fmt.Fprintf(w, "[%v]\t\t\t= Keep Intermediates\n", rp.KeepIntermediates)
	fmt.Fprintf(w, "[%s %s]\t= Engine Switches\n", rp.Engine.InitialSwitches, rp.Engine.RefineSwitches)
	if rp.Engine.Binary != "" {
		fmt.Fprintf(w, "[%s]\t= Engine Binary\n", rp.Engine.Binary)
	} else {
		fmt.Fprintf(w, "[%s]\t= Engine Directory\n", rp.Engine.BinaryDir)
	}
	fmt.Fprintf(w, "[%s] WKT=%v NodeWKT=%v\t= Output\n", rp.Output.Format, rp.Output.WKT, rp.Output.NodeWKT)
}
