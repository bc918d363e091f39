package filewalker

import (
	"fmt"
	"os"
	"path/filepath"

	"gaia-strings/internal/parser"
	"gaia-strings/internal/report"

	"github.com/spf13/afero"
)

// DirReadError reports a directory whose entries could not be listed.
type DirReadError struct {
	Path string
	Err  error
}

func (e *DirReadError) Error() string {
	return fmt.Sprintf("read directory %s: %v", e.Path, e.Err)
}

func (e *DirReadError) Unwrap() error { return e.Err }

// Walker traverses directories and collects the files a parser handles.
type Walker struct {
	fs       afero.Fs
	parser   parser.Parser
	reporter report.Reporter
}

// NewWalker creates a Walker collecting files accepted by p.
func NewWalker(fs afero.Fs, p parser.Parser, reporter report.Reporter) *Walker {
	if reporter == nil {
		reporter = report.Nop{}
	}
	return &Walker{fs: fs, parser: p, reporter: reporter}
}

// Walk returns every file under root accepted by the walker's parser,
// depth-first, in directory listing order. Unreadable directories are
// reported and contribute nothing; traversal carries on in their siblings.
// Symlinks to directories are not followed.
func (w *Walker) Walk(root string) []string {
	return w.walk(root, nil)
}

func (w *Walker) walk(dir string, found []string) []string {
	infos, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		derr := &DirReadError{Path: dir, Err: err}
		report.Warn(w.reporter, derr, "Error reading directory", "path", dir)
		return found
	}

	for _, info := range infos {
		name := info.Name()
		path := filepath.Join(dir, name)

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := w.fs.Stat(path)
			if err != nil {
				report.Warn(w.reporter, err, "Error resolving symlink", "path", path)
				continue
			}
			if target.IsDir() {
				report.Debug(w.reporter, "Skipping symlinked directory", "path", path)
				continue
			}
			info = target
		}

		switch {
		case info.IsDir():
			found = w.walk(path, found)
		case info.Mode().IsRegular() && w.parser.CanParse(name):
			found = append(found, path)
		}
	}

	return found
}
