// Package transfer maps terrain elevations to maximum element areas through
// a piecewise linear lookup table.
package transfer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"

	"github.com/notargets/meshrefine/types"
)

// Function is a transfer table of (elevation, area) pairs, strictly
// increasing in elevation. Elevations outside the table take the area of the
// nearest end point.
type Function struct {
	Elevations []float64
	Areas      []float64
	pl         *interp.PiecewiseLinear
}

// New validates the table and fits the interpolant. path is only used to
// label errors.
func New(path string, elevations, areas []float64) (f *Function, err error) {
	if len(elevations) != len(areas) {
		return nil, &types.ConfigurationError{Path: path, Index: -1,
			Reason: fmt.Sprintf("%d elevations but %d areas", len(elevations), len(areas))}
	}
	if len(elevations) == 0 {
		return nil, &types.ConfigurationError{Path: path, Index: -1, Reason: "transfer function table is empty"}
	}
	for i := range elevations {
		if math.IsNaN(elevations[i]) || math.IsInf(elevations[i], 0) {
			return nil, &types.ConfigurationError{Path: path, Index: i, Reason: "elevation is not finite"}
		}
		if !(areas[i] > 0) || math.IsInf(areas[i], 0) {
			return nil, &types.ConfigurationError{Path: path, Index: i,
				Reason: fmt.Sprintf("area %g must be positive and finite", areas[i])}
		}
		if i > 0 && !(elevations[i] > elevations[i-1]) {
			return nil, &types.ConfigurationError{Path: path, Index: i,
				Reason: fmt.Sprintf("elevation %g does not increase on %g", elevations[i], elevations[i-1])}
		}
	}
	f = &Function{
		Elevations: append([]float64(nil), elevations...),
		Areas:      append([]float64(nil), areas...),
	}
	if len(elevations) > 1 {
		f.pl = &interp.PiecewiseLinear{}
		if err = f.pl.Fit(f.Elevations, f.Areas); err != nil {
			return nil, &types.ConfigurationError{Path: path, Index: -1, Reason: err.Error()}
		}
	}
	return
}

// Area returns the maximum element area for elevation z.
func (f *Function) Area(z float64) float64 {
	var (
		n = len(f.Elevations)
	)
	switch {
	case math.IsNaN(z):
		return math.NaN()
	case n == 1 || z <= f.Elevations[0]:
		return f.Areas[0]
	case z >= f.Elevations[n-1]:
		return f.Areas[n-1]
	}
	return f.pl.Predict(z)
}

// Map converts one elevation per element into one area per element.
func (f *Function) Map(z []float64) (areas []float64) {
	areas = make([]float64, len(z))
	for i, zz := range z {
		areas[i] = f.Area(zz)
	}
	return
}
