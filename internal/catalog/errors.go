package catalog

import "fmt"

// UnexpectedStateError is returned when a crawler reports a state outside
// READY, RUNNING and STOPPING while being polled.
type UnexpectedStateError struct {
	Name  string
	State State
}

func (e *UnexpectedStateError) Error() string {
	return fmt.Sprintf("catalog: crawler %s in unexpected state %q", e.Name, e.State)
}

// StartRetriesExhaustedError is returned when every start request hit a
// running crawler.
type StartRetriesExhaustedError struct {
	Name     string
	Attempts int
}

func (e *StartRetriesExhaustedError) Error() string {
	return fmt.Sprintf("catalog: crawler %s still running after %d start attempts", e.Name, e.Attempts)
}
