package ops

import "fmt"

type ErrNotDirectory struct {
	path string
}

func (e *ErrNotDirectory) Error() string {
	return fmt.Sprintf("not a readable directory: %s", e.path)
}

type ErrBadPattern struct {
	pattern string
}

func (e *ErrBadPattern) Error() string {
	return fmt.Sprintf("invalid exclude pattern: '%s'", e.pattern)
}
