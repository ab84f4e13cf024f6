package engine

import "errors"

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine closed")

	// ErrIOFailure wraps a failed durability log append. The mutation was
	// not applied.
	ErrIOFailure = errors.New("durability log append failed")

	// ErrDegraded is returned alongside ErrIOFailure while the engine is
	// degraded by repeated or permanent log failures.
	ErrDegraded = errors.New("engine degraded")

	// ErrOverloaded is returned when a query is refused by admission
	// control.
	ErrOverloaded = errors.New("query refused by admission control")

	// ErrApplyFailed reports a logged mutation that could not be applied.
	// The in-memory state no longer matches the log; restart to recover.
	ErrApplyFailed = errors.New("apply of logged mutation failed")
)
