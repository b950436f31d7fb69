package executor

import "fmt"

// ExitUnknown is returned when a job finished without an observable exit
// code (killed process, cancelled batch job).
const ExitUnknown = -1

// StateError reports scope misuse on an executor instance: calling a method
// outside an active scope, or entering a scope twice. Always a programming
// error on the caller's side.
type StateError struct {
	Op     string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("executor %s: %s", e.Op, e.Reason)
}

// CommandError reports a shelled-out command that exited nonzero or failed
// to start. Stderr carries whatever the command wrote before dying.
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("command %s failed: %s", e.Command, e.Stderr)
	}
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// TimeoutError reports that the configured deadline elapsed before the
// process or batch job reached a terminal state. The underlying process has
// been killed (local) or a cancel request issued (batch) before this error
// is returned.
type TimeoutError struct {
	// Kind is "process" or "job".
	Kind string
	// ID is the PID or the scheduler job handle.
	ID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s timeout expired", e.Kind, e.ID)
}
