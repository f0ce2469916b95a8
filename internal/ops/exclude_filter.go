package ops

import (
	"context"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Drops files from the stream whose relative path matches one of the
// doublestar patterns. A pattern without a '/' also matches against the
// file's base name, so "*.tmp" excludes temp files at any depth.

func NewExcludeFilter(ctx context.Context, in <-chan *LocalFile, patterns []string) <-chan *LocalFile {
	out := make(chan *LocalFile, 10)
	filter := excludeFilter{
		ctx:      ctx,
		in:       in,
		out:      out,
		patterns: patterns,
	}
	go filter.run()

	return out
}

// ValidatePatterns reports the first pattern doublestar can't parse.
func ValidatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return &ErrBadPattern{pattern: pattern}
		}
	}
	return nil
}

type excludeFilter struct {
	ctx      context.Context
	in       <-chan *LocalFile
	out      chan<- *LocalFile
	patterns []string
}

func (filter *excludeFilter) run() {
	defer close(filter.out)

	for {
		// check the channels
		select {
		case <-filter.ctx.Done():
			return
		case file, ok := <-filter.in:
			if !ok {
				return
			}
			if filter.excluded(file.RelPath) {
				continue
			}
			select {
			case <-filter.ctx.Done():
				return
			case filter.out <- file:
			}
		}
	}
}

func (filter *excludeFilter) excluded(rpath string) bool {
	for _, pattern := range filter.patterns {
		if ok, _ := doublestar.Match(pattern, rpath); ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, _ := doublestar.Match(pattern, path.Base(rpath)); ok {
				return true
			}
		}
	}
	return false
}
