package game

import "errors"

var (
	// ErrTransientFetch marks a puzzle or search source that was unreachable or returned
	// a payload that failed validation. Callers recover by staying in loading.
	ErrTransientFetch = errors.New("transient fetch failure")

	ErrAlreadyGuessed   = errors.New("already guessed")
	ErrInvalidCandidate = errors.New("candidate has no id or title")
	ErrGameOver         = errors.New("game finished")
	ErrNotReady         = errors.New("puzzle not loaded")
	ErrMalformedPuzzle  = errors.New("malformed puzzle")
	ErrUnknownKind      = errors.New("unknown kind")
)
