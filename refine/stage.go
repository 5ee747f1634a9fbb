package refine

import (
	"fmt"
)

// Stage is a state of the refinement state machine. A run moves through the
// stages in declaration order and stops at Done or Failed.
type Stage uint8

const (
	Assembling Stage = iota
	InitialTriangulation
	Interpolating
	MappingAreas
	Refining
	Finalizing
	Done
	Failed
)

var stageNames = [...]string{
	"Assembling",
	"InitialTriangulation",
	"Interpolating",
	"MappingAreas",
	"Refining",
	"Finalizing",
	"Done",
	"Failed",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", s)
}

func (s Stage) Terminal() bool { return s == Done || s == Failed }

// next returns the stage following s in a successful run.
func (s Stage) next() Stage {
	if s.Terminal() {
		return s
	}
	return s + 1
}

// StageError reports the stage a run failed in, the input file tied to the
// failure when there is one, and the run directory left on disk.
type StageError struct {
	Stage Stage
	Path  string
	Dir   string
	Err   error
}

func (e *StageError) Error() string {
	msg := "stage " + e.Stage.String() + " failed"
	if e.Path != "" {
		msg += " on " + e.Path
	}
	if e.Dir != "" {
		msg += " (intermediate files kept in " + e.Dir + ")"
	}
	return msg + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }
