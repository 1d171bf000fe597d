package model

import "fmt"

// ScanState is the lifecycle state of a tracking record.
//
//	Unscanned -> Scanned
//
// Scanned is terminal. There is no transition back and no deletion path.
type ScanState string

const (
	StateUnscanned ScanState = "unscanned"
	StateScanned   ScanState = "scanned"
)

// validTransitions maps a state to the states it may move to.
var validTransitions = map[ScanState]map[ScanState]bool{
	StateUnscanned: {StateScanned: true},
	StateScanned:   {},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to ScanState) bool {
	return validTransitions[from][to]
}

// ValidateTransition returns an error for a disallowed transition.
func ValidateTransition(from, to ScanState) error {
	if _, ok := validTransitions[from]; !ok {
		return fmt.Errorf("unknown scan state %q", from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("transition %s -> %s is not allowed", from, to)
	}
	return nil
}
