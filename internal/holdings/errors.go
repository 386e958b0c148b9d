package holdings

import "errors"

var (
	// ErrLocalRead wraps failures reading the durable store.
	ErrLocalRead = errors.New("failed to read local holdings")
	// ErrRemoteFetch wraps failures fetching from the remote source.
	ErrRemoteFetch = errors.New("failed to fetch remote holdings")
	// ErrPersist wraps failures writing to the durable store.
	ErrPersist = errors.New("failed to persist holdings")
)
