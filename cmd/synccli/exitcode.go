package main

import (
	"errors"

	"github.com/R3E-Network/syncengine/internal/syncerr"
)

// Exit codes (spec.md §6): 0 success, 1 validation error, 2 operational
// error, 3 cancelled, 4 timed out.
const (
	exitOK          = 0
	exitValidation  = 1
	exitOperational = 2
	exitCancelled   = 3
	exitTimedOut    = 4
)

// exitCodeFor maps an error returned from a subcommand to the process exit
// code it should produce. nil maps to exitOK.
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}

	switch syncerr.CodeOf(err) {
	case syncerr.ErrCodeValidation:
		return exitValidation
	case syncerr.ErrCodeCancelled:
		return exitCancelled
	case syncerr.ErrCodeDeadlineExceeded:
		return exitTimedOut
	case syncerr.ErrCodeTransientIO, syncerr.ErrCodePermanentIO, syncerr.ErrCodeAuth,
		syncerr.ErrCodeEntityProcessing, syncerr.ErrCodeDestination,
		syncerr.ErrCodeStateStore, syncerr.ErrCodeCursorPersistence:
		return exitOperational
	}

	var deadline interface{ Timeout() bool }
	if errors.As(err, &deadline) && deadline.Timeout() {
		return exitTimedOut
	}

	return exitOperational
}
