package entities

import "errors"

var (
	// ErrRateLimited signals the remaining API quota is exhausted; the
	// current pass should be skipped, not retried.
	ErrRateLimited = errors.New("rate limited")
	// ErrNotFound signals the repository, pull request or comment vanished
	// upstream. Usually an expected state transition, sometimes a
	// credentials/permissions problem on write paths.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized signals an authentication or credential failure, fatal
	// for the current reconciliation cycle.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrDisabled signals the monitored project is disabled.
	ErrDisabled = errors.New("project disabled")
)
