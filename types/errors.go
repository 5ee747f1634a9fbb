package types

import (
	"fmt"
	"strings"
)

// TopologySource names the input a TopologyError comes from.
type TopologySource uint8

const (
	TopologyBoundary TopologySource = iota
	TopologyLine
	TopologyNodes
)

// TopologyError reports an unusable boundary or constraint polyline: an open
// boundary, a missing outer boundary, or a vertex that does not match any node.
type TopologyError struct {
	Source  TopologySource
	ShapeID int
	Index   int // Vertex index within the shape, -1 when not tied to one vertex
	Reason  string
}

func (e *TopologyError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("topology error in shape %d: %s", e.ShapeID, e.Reason)
	}
	return fmt.Sprintf("topology error in shape %d, vertex %d: %s", e.ShapeID, e.Index, e.Reason)
}

// PlatformError reports that no triangulation engine binary exists for the
// host operating system and pointer width.
type PlatformError struct {
	GOOS    string
	PtrBits int
	Path    string
	Reason  string
}

func (e *PlatformError) Error() string {
	msg := fmt.Sprintf("no triangulation engine for %s/%d-bit: %s", e.GOOS, e.PtrBits, e.Reason)
	if e.Path != "" {
		msg += " [" + e.Path + "]"
	}
	return msg
}

// EngineFailure reports a triangulation engine process that did not exit
// cleanly. ExitCode is -1 when the process could not be started.
type EngineFailure struct {
	Binary   string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *EngineFailure) Error() string {
	msg := fmt.Sprintf("triangulation engine %s %s exited with code %d",
		e.Binary, strings.Join(e.Args, " "), e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\n" + s
	}
	return msg
}

func (e *EngineFailure) Unwrap() error { return e.Err }

// ConstraintCountError reports area constraints that do not line up one to
// one with the elements of the mesh being refined.
type ConstraintCountError struct {
	Elements    int
	Constraints int
	Reason      string
}

func (e *ConstraintCountError) Error() string {
	msg := fmt.Sprintf("%d area constraints for %d elements", e.Constraints, e.Elements)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// InterpolationDomainError reports a query point outside the TIN when the
// outside-hull fallback is disabled.
type InterpolationDomainError struct {
	Element int
	X, Y    float64
}

func (e *InterpolationDomainError) Error() string {
	return fmt.Sprintf("element %d centroid (%g, %g) lies outside the TIN", e.Element+1, e.X, e.Y)
}

// ConfigurationError reports invalid user-supplied tables and parameters.
type ConfigurationError struct {
	Path   string
	Index  int // Row index, -1 when not tied to a row
	Reason string
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Path != "" {
		b.WriteString(" in " + e.Path)
	}
	if e.Index >= 0 {
		fmt.Fprintf(&b, " at row %d", e.Index+1)
	}
	b.WriteString(": " + e.Reason)
	return b.String()
}
