// Package guard implements the safety checks that stand between a sync run
// and mass data loss. Every check fails closed: when a check cannot
// determine that proceeding is safe, it vetoes.
package guard

import "fmt"

// CheckStatus represents the outcome of a safety check.
type CheckStatus int

const (
	// StatusPass means the check passed.
	StatusPass CheckStatus = iota
	// StatusWarn means a non-blocking concern was found.
	StatusWarn
	// StatusFail means the check vetoes the operation it protects.
	StatusFail
)

// String returns a human-readable status.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult holds the outcome of a single check.
type CheckResult struct {
	Name       string
	Status     CheckStatus
	Message    string
	Suggestion string
}

// Passed reports whether the check did not veto.
func (r CheckResult) Passed() bool {
	return r.Status != StatusFail
}

// Summary formats the result for console output.
func (r CheckResult) Summary() string {
	s := fmt.Sprintf("[%s] %s: %s", r.Status, r.Name, r.Message)
	if r.Suggestion != "" && r.Status != StatusPass {
		s += fmt.Sprintf(" (%s)", r.Suggestion)
	}
	return s
}

// Checker is a named safety check.
type Checker interface {
	Name() string
	Check() CheckResult
}

// RunAll executes checks in order and returns all results plus whether
// every one of them passed.
func RunAll(checkers []Checker) ([]CheckResult, bool) {
	results := make([]CheckResult, 0, len(checkers))
	ok := true
	for _, c := range checkers {
		r := c.Check()
		results = append(results, r)
		if !r.Passed() {
			ok = false
		}
	}
	return results, ok
}
