package domain

import "errors"

// Domain-level error taxonomy. Transport and malformed-frame errors live with
// the session and codec layers; everything the coordinator can reject is here.
var (
	ErrProtocolViolation     = errors.New("protocol violation")
	ErrConcurrencyConflict   = errors.New("peer already connected")
	ErrNotFound              = errors.New("run not found")
	ErrIncompatibleVersion   = errors.New("incompatible server version")
	ErrCannotDeleteActive    = errors.New("cannot delete the active run")
	ErrSummarizerUnavailable = errors.New("summarizer unavailable")
)
