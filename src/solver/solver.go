package solver

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
)

type Status int

const (
	Optimal Status = iota
	Feasible
	Unbounded
	NoSolution
	SolvingException
)

func (s Status) Succeeded() bool {
	return s == Optimal || s == Feasible
}

func (s Status) String() string {
	switch s {
	case Optimal:
		return "Optimal"
	case Feasible:
		return "Feasible"
	case Unbounded:
		return "Unbounded"
	case NoSolution:
		return "NoSolution"
	case SolvingException:
		return "SolvingException"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

type ErrorKind int

const (
	EnvironmentLost ErrorKind = iota
	ModelingException
	SolvingFailure
	Terminated
	ModelInfeasible
	ModelInfeasibleOrUnbounded
	ModelUnbounded
)

func (k ErrorKind) String() string {
	switch k {
	case EnvironmentLost:
		return "EnvironmentLost"
	case ModelingException:
		return "ModelingException"
	case SolvingFailure:
		return "SolvingException"
	case Terminated:
		return "Terminated"
	case ModelInfeasible:
		return "ModelInfeasible"
	case ModelInfeasibleOrUnbounded:
		return "ModelInfeasibleOrUnbounded"
	case ModelUnbounded:
		return "ModelUnbounded"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Legitimate reports whether the kind is a property of the model rather than
// a fault of the solving machinery.
func (k ErrorKind) Legitimate() bool {
	return k == ModelInfeasible || k == ModelInfeasibleOrUnbounded || k == ModelUnbounded
}

type Phase int

const (
	PhaseInit Phase = iota
	PhaseDump
	PhaseConfigure
	PhaseSolve
	PhaseAnalyzeStatus
	PhaseAnalyzeSolution
)

func (p Phase) String() string {
	return [...]string{"init", "dump", "configure", "solve", "analyze status", "analyze solution"}[p]
}

// Error is the only error type returned by Run.
type Error struct {
	Kind  ErrorKind
	Phase Phase
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v during %v", e.Kind, e.Phase)
	}
	return fmt.Sprintf("%v during %v: %v", e.Kind, e.Phase, e.Err)
}

func (e *Error) Cause() error {
	return e.Err
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of the first *Error found in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func failureKind(s Status) ErrorKind {
	switch s {
	case Unbounded:
		return ModelUnbounded
	case NoSolution:
		return ModelInfeasible
	}
	return SolvingFailure
}

type Output struct {
	Status    Status
	Objective float64
	// Solution holds one value per column, ordered by column index.
	Solution  []float64
	Time      time.Duration
	BestBound float64
	Gap       float64
	// Duals holds one value per row when dual values were requested.
	Duals []float64
	// Pool holds alternative solutions, best first.
	Pool [][]float64
}

const gapEpsilon = 1e-10

// Gap is the relative distance between the objective and the best bound of
// an integer model. It is zero for continuous models and when the bound
// meets the objective.
func Gap(objective, bestBound float64, integer bool) float64 {
	if !integer || objective == bestBound {
		return 0
	}
	return (math.Abs(objective-bestBound) + gapEpsilon) / (math.Abs(objective) + gapEpsilon)
}
