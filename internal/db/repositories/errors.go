package repositories

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist
	ErrNotFound = errors.New("record not found")
	// ErrRunAlreadyTerminal is returned when a run has already left the running state
	ErrRunAlreadyTerminal = errors.New("reconciliation run already terminal")
)
