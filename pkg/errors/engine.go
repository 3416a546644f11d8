package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	// ErrPlanningUnavailable means the planner could not obtain a plan.
	ErrPlanningUnavailable = stderrors.New("planning unavailable")
	// ErrRoundLimitExceeded means a scene round kept requesting tools past its bound.
	ErrRoundLimitExceeded = stderrors.New("round limit exceeded")
	ErrMissingProvider    = stderrors.New("missing provider")
	ErrMissingRegistry    = stderrors.New("missing registry")
	ErrMissingDispatcher  = stderrors.New("missing dispatcher")
	ErrMissingCache       = stderrors.New("missing cache")
	ErrNoInvocationTarget = stderrors.New("function has no invocation target")
)

/*
ToolExecutionFailed wraps the cause of a single failed tool call, together
with the tool name and the identity of the target it was sent to.
*/
type ToolExecutionFailed struct {
	Tool   string
	Target string
	Err    error
}

func (e *ToolExecutionFailed) Error() string {
	return fmt.Sprintf("tool %s failed on %s: %v", e.Tool, e.Target, e.Err)
}

func (e *ToolExecutionFailed) Unwrap() error {
	return e.Err
}

/*
DuplicateRegistration is returned when a name is registered twice in a
registry that does not allow overwrites.
*/
type DuplicateRegistration struct {
	Kind string
	Name string
}

func (e *DuplicateRegistration) Error() string {
	return fmt.Sprintf("duplicate %s registration: %s", e.Kind, e.Name)
}

// Is, As and New re-export the standard library helpers so callers only
// need to import this package.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func New(text string) error { return stderrors.New(text) }
