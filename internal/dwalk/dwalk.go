// dwalk enumerates the regular files below a scan root, one at a time.
package dwalk

import (
	"errors"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jdefrancesco/dups/internal/dfs"
	"github.com/jdefrancesco/dups/internal/dlog"

	"github.com/spf13/afero"
)

// ErrRootNotDir is reported when the root is a file or a symbolic link.
// Links are never followed, so such a root yields nothing.
var ErrRootNotDir = errors.New("scan root is not a directory")

// errStopWalk unwinds afero.Walk when the consumer stops ranging.
var errStopWalk = errors.New("walk stopped by consumer")

// Entry is a regular file found by the walker.
type Entry struct {
	Path string
	Size int64
}

// Options filter what the walker yields. The zero value yields every
// regular file.
type Options struct {
	// Skip dot files and dot directories (the root itself is never skipped).
	SkipHidden bool
	// Skip zero-length files.
	SkipEmpty bool
	// File name prefixes to ignore.
	IgnorePrefixes []string
	// Size limits in bytes. Zero disables a limit.
	MinFileSize uint64
	MaxFileSize uint64
	// Exact paths never yielded, such as the tool's own log and reports.
	ExcludePaths []string
}

// DWalk walks one root directory. Its sequence can be consumed once.
type DWalk struct {
	fs       afero.Fs
	rootDir  string
	opts     Options
	diag     *dfs.Diagnostics
	consumed bool
}

// NewDWalker returns a walker over rootDir. Unreadable directories and
// entries are reported to diag and skipped.
func NewDWalker(fs afero.Fs, rootDir string, opts Options, diag *dfs.Diagnostics) *DWalk {
	if diag == nil {
		diag = &dfs.Diagnostics{}
	}
	return &DWalk{
		fs:      fs,
		rootDir: rootDir,
		opts:    opts,
		diag:    diag,
	}
}

// Files returns the lazy sequence of regular files below the root, in
// lexical order of directory entries. Symbolic links are never followed.
// Ranging over the sequence a second time yields nothing.
func (d *DWalk) Files() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		if d.consumed {
			dlog.Dlogger.Warnf("Walker for %s already consumed", d.rootDir)
			return
		}
		d.consumed = true

		err := afero.Walk(d.fs, d.rootDir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				// Never fatal: note it and keep going with the siblings.
				d.diag.Warn(&dfs.WalkError{Path: path, Err: err})
				return nil
			}

			if path == d.rootDir && !info.IsDir() {
				d.diag.Warn(&dfs.WalkError{Path: path, Err: ErrRootNotDir})
				return nil
			}

			if info.IsDir() {
				if path != d.rootDir && d.opts.SkipHidden && isHidden(info.Name()) {
					dlog.Dlogger.Debugf("Skipping hidden directory: %s", path)
					return filepath.SkipDir
				}
				return nil
			}

			entry, ok := d.accept(path, info)
			if !ok {
				return nil
			}
			if !yield(entry) {
				return errStopWalk
			}
			return nil
		})

		if err != nil && !errors.Is(err, errStopWalk) {
			d.diag.Warn(&dfs.WalkError{Path: d.rootDir, Err: err})
		}
	}
}

// accept applies the file filters.
func (d *DWalk) accept(path string, info os.FileInfo) (Entry, bool) {
	name := info.Name()

	if info.Mode()&os.ModeSymlink != 0 {
		dlog.Dlogger.Debugf("Skipping symbolic link: %s", path)
		return Entry{}, false
	}

	// Skip non-regular files (sockets, pipes, device files, etc.)
	if !info.Mode().IsRegular() {
		dlog.Dlogger.Debugf("Skipping non-regular file: %s (mode: %s)", path, info.Mode())
		return Entry{}, false
	}

	if d.opts.SkipHidden && isHidden(name) {
		dlog.Dlogger.Debugf("Skipping hidden entry: %s", path)
		return Entry{}, false
	}

	for _, prefix := range d.opts.IgnorePrefixes {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			dlog.Dlogger.Debugf("Skipping %s (ignored prefix %q)", path, prefix)
			return Entry{}, false
		}
	}

	if slices.Contains(d.opts.ExcludePaths, filepath.Clean(path)) {
		dlog.Dlogger.Debugf("Skipping excluded path: %s", path)
		return Entry{}, false
	}

	size := info.Size()
	fileSize := uint64(max(size, 0)) // #nosec G115
	if d.opts.SkipEmpty && size == 0 {
		dlog.Dlogger.Debugf("Skipping empty file: %s", path)
		return Entry{}, false
	}
	if d.opts.MinFileSize > 0 && fileSize < d.opts.MinFileSize {
		dlog.Dlogger.Debugf("File %s smaller than minimum. Skipping", path)
		return Entry{}, false
	}
	if d.opts.MaxFileSize > 0 && fileSize > d.opts.MaxFileSize {
		dlog.Dlogger.Infof("File %s larger than maximum. Skipping", path)
		return Entry{}, false
	}

	return Entry{Path: path, Size: size}, true
}

func isHidden(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".") && name != ".."
}
