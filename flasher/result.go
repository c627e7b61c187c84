package flasher

import "fmt"

// Stage names the step of a run that failed.
type Stage int

const (
	StageNone Stage = iota
	StageUsage
	StageValidate
	StageDiscover
	StageNotFound
	StageOpen
	StageFlash
	StageExecute
	StageRelease
)

var stageNames = [...]string{
	StageNone:     "none",
	StageUsage:    "usage",
	StageValidate: "validate",
	StageDiscover: "discover",
	StageNotFound: "not found",
	StageOpen:     "open",
	StageFlash:    "flash",
	StageExecute:  "execute",
	StageRelease:  "release",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Result is the outcome of one run. A zero Result is success.
type Result struct {
	Stage Stage
	Err   error
}

func fail(stage Stage, err error) Result {
	return Result{Stage: stage, Err: err}
}

// OK reports a fully successful run.
func (r Result) OK() bool { return r.Err == nil }

// ExitCode maps the result to a process exit status.
func (r Result) ExitCode() int {
	if r.OK() {
		return 0
	}
	return 1
}

// Message is the single line shown to the user for a failed run.
func (r Result) Message() string {
	switch {
	case r.OK():
		return ""
	case r.Stage == StageUsage:
		return "Missing firmware name argument"
	case r.Stage == StageNotFound:
		return "NXT not found. Is it properly plugged in via USB?"
	}
	return fmt.Sprintf("Error: %s: %v", r.Stage, r.Err)
}
