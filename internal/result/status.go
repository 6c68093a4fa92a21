package result

import "fmt"

// Status is the outcome of a single channel or board measurement. The set is
// closed and ordered by severity: a higher value is never better.
type Status int

const (
	StatusOK Status = iota
	StatusWarning
	StatusError
	StatusNotRun
)

var statusNames = map[Status]string{
	StatusOK:      "OK",
	StatusWarning: "WARNING",
	StatusError:   "ERROR",
	StatusNotRun:  "NOT_RUN",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParseStatus converts the persisted symbolic name back to a Status.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return StatusNotRun, fmt.Errorf("unknown status %q", name)
}

// WorseThan reports whether s is more severe than other.
func (s Status) WorseThan(other Status) bool {
	return s > other
}

// Code is the logical execution outcome of one whole procedure invocation,
// kept separate from the board/channel measurement statuses.
type Code int

const (
	CodeOK Code = iota
	CodeResolutionFailed
	CodeExecutionFailed
	CodeCanceled
)

var codeNames = map[Code]string{
	CodeOK:               "ok",
	CodeResolutionFailed: "resolution_failed",
	CodeExecutionFailed:  "execution_failed",
	CodeCanceled:         "canceled",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// ParseCode converts the persisted symbolic name back to a Code.
func ParseCode(name string) (Code, error) {
	for c, n := range codeNames {
		if n == name {
			return c, nil
		}
	}
	return CodeExecutionFailed, fmt.Errorf("unknown execution code %q", name)
}
