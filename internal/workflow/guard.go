// Package workflow holds the ticket lifecycle rules: the status graph, the
// role permission table, ticket numbering and audit snapshots.
// Everything here is pure; callers supply the current ticket and the clock.
package workflow

import "errors"

// GuardResult represents the outcome of a rule evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return errors.New(r.Reason)
}

func allow() GuardResult {
	return GuardResult{Allowed: true}
}

func deny(reason string) GuardResult {
	return GuardResult{Allowed: false, Reason: reason}
}
