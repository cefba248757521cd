package core

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired indicates no valid Spotify credential is available.
	ErrAuthRequired = errors.New("not authenticated with Spotify")

	// ErrAlreadyActive indicates a start request for a context that is
	// already being managed.
	ErrAlreadyActive = errors.New("shuffle session already active for this context")

	// ErrNoCandidates indicates the selector found no records for a context.
	ErrNoCandidates = errors.New("no candidate tracks for context")

	// ErrNoPlayback indicates no resolvable current playback context.
	ErrNoPlayback = errors.New("nothing is currently playing")

	// ErrNoActiveDevice indicates no Spotify device is available to receive
	// playback commands.
	ErrNoActiveDevice = errors.New("no active Spotify device")
)

// ContextUnavailableError indicates the tracks of a context cannot be
// enumerated, most commonly because it is an upstream-generated playlist
// whose contents the API refuses to list.
type ContextUnavailableError struct {
	ContextID string
	Reason    string
	Err       error
}

func (e *ContextUnavailableError) Error() string {
	return fmt.Sprintf("context %s unavailable: %s", e.ContextID, e.Reason)
}

func (e *ContextUnavailableError) Unwrap() error {
	return e.Err
}

// StoreError wraps a failure of the local play-count store. A failed
// increment must never be assumed to have happened.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
