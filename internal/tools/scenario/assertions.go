package scenario

import (
	"fmt"
	"log"
)

// AssertionMode controls how failed expectations are reported.
type AssertionMode int

const (
	// AssertionStrict stops the scenario at the first failed expectation.
	AssertionStrict AssertionMode = iota
	// AssertionLogOnly logs failed expectations and keeps going.
	AssertionLogOnly
)

// Assertions reports expectation failures according to Mode.
type Assertions struct {
	Mode   AssertionMode
	Logger *log.Logger
	// Failures counts expectations that failed in log-only mode.
	Failures int
}

// Failf reports a failed expectation. It returns an error in strict mode and
// nil after logging in log-only mode.
func (a *Assertions) Failf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	if a.Mode == AssertionStrict {
		return err
	}
	a.Failures++
	if a.Logger != nil {
		a.Logger.Printf("expectation failed: %v", err)
	}
	return nil
}
