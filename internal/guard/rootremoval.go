package guard

import (
	"fmt"
	"sort"
	"strings"
)

// RootRemoval compares the root labels recorded in the local state against
// the labels currently configured and returns the labels that disappeared.
// A vanished label means every document under it is about to be deleted
// from the store, which is far more often a config mistake than an intent.
func RootRemoval(stateLabels, configLabels map[string]bool) []string {
	var removed []string
	for label := range stateLabels {
		if !configLabels[label] {
			removed = append(removed, label)
		}
	}
	sort.Strings(removed)
	return removed
}

// RootRemovalChecker wraps RootRemoval as a named check for the deletion
// pass. AllowRemoval downgrades a detected removal to a warning, which is
// how an operator deliberately retires a root.
type RootRemovalChecker struct {
	StateLabels  map[string]bool
	ConfigLabels map[string]bool
	AllowRemoval bool
}

// Name implements Checker.
func (c *RootRemovalChecker) Name() string {
	return "root removal"
}

// Check implements Checker.
func (c *RootRemovalChecker) Check() CheckResult {
	result := CheckResult{Name: c.Name(), Status: StatusPass}

	removed := RootRemoval(c.StateLabels, c.ConfigLabels)
	if len(removed) == 0 {
		result.Message = "all known roots are still configured"
		return result
	}

	joined := strings.Join(removed, ", ")
	if c.AllowRemoval {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("roots removed with override: %s", joined)
		return result
	}
	result.Status = StatusFail
	result.Message = fmt.Sprintf("roots present in state but missing from config: %s", joined)
	result.Suggestion = "restore the root, or re-run with root removal explicitly allowed"
	return result
}
