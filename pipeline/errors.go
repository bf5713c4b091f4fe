package pipeline

import "errors"

var (
	// ErrStageBusy is returned when an operation needs a stage to be idle
	// (e.g. changing its variant) while a run of that stage is active.
	ErrStageBusy = errors.New("stage has an active run")

	// ErrUnknownStage is returned for stage values or ids outside DP..TP.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrDependencyNotSatisfied reports that a stage's dependency is not complete.
	// RunStage itself treats this as a silent no-op; callers that want a reason
	// (e.g. the CLI) can use CheckRunnable.
	ErrDependencyNotSatisfied = errors.New("stage dependency not complete")

	// ErrRunSuperseded is returned by Wait when the awaited run was cancelled by
	// Reset instead of completing.
	ErrRunSuperseded = errors.New("run superseded by reset")
)

func IsStageBusy(err error) bool              { return errors.Is(err, ErrStageBusy) }
func IsDependencyNotSatisfied(err error) bool { return errors.Is(err, ErrDependencyNotSatisfied) }
func IsRunSuperseded(err error) bool          { return errors.Is(err, ErrRunSuperseded) }
