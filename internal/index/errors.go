package index

import "fmt"

// ErrIndexUnavailable means the index database couldn't be opened or
// initialized. It is fatal for a sync run.
type ErrIndexUnavailable struct {
	path string
	err  error
}

func (e *ErrIndexUnavailable) Error() string {
	return fmt.Sprintf("index unavailable: %s: %v", e.path, e.err)
}

func (e *ErrIndexUnavailable) Unwrap() error {
	return e.err
}
