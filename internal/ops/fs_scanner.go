package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NewFsScanner walks the tree under root and emits every regular file.
// Files and directories whose name starts with '.' are skipped; hidden
// directories are not descended into. Files that vanish or can't be
// stat'ed mid-walk are dropped.
func NewFsScanner(ctx context.Context, root string) <-chan *LocalFile {
	out := make(chan *LocalFile, 10)
	fs := fsScanner{
		ctx:  ctx,
		out:  out,
		root: root,
	}
	go func() {
		defer close(fs.out)
		fs.run(fs.root)
	}()

	return out
}

type fsScanner struct {
	ctx  context.Context
	out  chan<- *LocalFile
	root string
}

// run returns false once the context is done.
func (fs *fsScanner) run(dir string) bool {
	// read the directory contents
	entries, err := os.ReadDir(dir)
	if err != nil {
		return true
	}

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		fpath := filepath.Join(dir, entry.Name())

		if entry.Type().IsRegular() {
			file, ok := fs.stat(fpath, entry)
			if !ok {
				continue
			}

			select {
			case <-fs.ctx.Done():
				return false
			case fs.out <- file:
			}

		} else if entry.IsDir() {
			if !fs.run(fpath) {
				return false
			}
		}
	}

	return true
}

func (fs *fsScanner) stat(fpath string, entry os.DirEntry) (*LocalFile, bool) {
	info, err := entry.Info()
	if err != nil {
		return nil, false
	}

	id, err := fileID(fpath, info)
	if err != nil {
		return nil, false
	}

	rpath, err := filepath.Rel(fs.root, fpath)
	if err != nil {
		return nil, false
	}

	return &LocalFile{
		RelPath: norm.NFC.String(filepath.ToSlash(rpath)),
		AbsPath: fpath,
		ID:      id,
		Size:    info.Size(),
		ModTime: info.ModTime().UnixNano(),
	}, true
}
