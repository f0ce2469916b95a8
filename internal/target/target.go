// Package target reads the multi-target file that lets one invocation
// sync several trees:
//
//	targets:
//	  - label: photos
//	    path: ~/Pictures
//	    bucket: my-backups
//	    prefix: photos
//	    delete: true
//	    excludes: ["*.tmp", "cache/**"]
package target

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

type ErrNoSuchTarget struct {
	label string
}

func (e *ErrNoSuchTarget) Error() string {
	return fmt.Sprintf("no such target: %s", e.label)
}

type ErrInvalidTarget struct {
	msg string
}

func (e *ErrInvalidTarget) Error() string {
	return e.msg
}

type Target struct {
	Label    string
	Path     string
	Bucket   string
	Prefix   string
	Delete   bool
	Excludes []string
}

type File struct {
	Targets []Target
}

func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	file, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// Parse decodes and validates a target file. Paths starting with '~' are
// expanded to the user's home directory.
func Parse(r io.Reader) (*File, error) {
	var file File

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, &ErrInvalidTarget{msg: "no targets defined"}
		}
		return nil, err
	}

	if len(file.Targets) == 0 {
		return nil, &ErrInvalidTarget{msg: "no targets defined"}
	}

	labels := make(map[string]bool)
	for i := range file.Targets {
		t := &file.Targets[i]

		if t.Label == "" {
			return nil, &ErrInvalidTarget{msg: fmt.Sprintf("target %d: missing label", i+1)}
		}
		if labels[t.Label] {
			return nil, &ErrInvalidTarget{msg: fmt.Sprintf("target %s: duplicate label", t.Label)}
		}
		labels[t.Label] = true

		if t.Path == "" {
			return nil, &ErrInvalidTarget{msg: fmt.Sprintf("target %s: missing path", t.Label)}
		}
		if t.Bucket == "" {
			return nil, &ErrInvalidTarget{msg: fmt.Sprintf("target %s: missing bucket", t.Label)}
		}

		path, err := expandHome(t.Path)
		if err != nil {
			return nil, err
		}
		t.Path = path
	}

	return &file, nil
}

// Select returns every target, or just the one with the given label.
func (f *File) Select(label string) ([]Target, error) {
	if label == "" {
		return f.Targets, nil
	}
	for _, t := range f.Targets {
		if t.Label == label {
			return []Target{t}, nil
		}
	}
	return nil, &ErrNoSuchTarget{label: label}
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
