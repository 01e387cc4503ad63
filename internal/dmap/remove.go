package dmap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jdefrancesco/dups/internal/dfs"
	"github.com/jdefrancesco/dups/internal/dlog"

	"github.com/spf13/afero"
)

// ErrLastCopy is returned when a deletion would leave a group without any
// copy on disk.
var ErrLastCopy = errors.New("refusing to delete every copy of a file")

// MovedFile records a redundant copy moved out of its directory.
type MovedFile struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RemoveRedundant applies the deletion policy to every group: the first
// member still on disk (normally the original) is kept and all other
// members are removed. Failures are reported to diag and do not stop the
// remaining deletions. It returns the paths actually removed.
func RemoveRedundant(fs afero.Fs, groups []Group, diag *dfs.Diagnostics) []string {
	if diag == nil {
		diag = &dfs.Diagnostics{}
	}

	var removed []string
	forEachRedundant(fs, groups, diag, func(f *dfs.Dfile) {
		if removeFile(fs, f.FileName(), diag) {
			removed = append(removed, f.FileName())
		}
	})
	return removed
}

// MoveRedundant is RemoveRedundant with the copies moved into target
// instead of deleted. target is created when missing.
func MoveRedundant(fs afero.Fs, groups []Group, target string, diag *dfs.Diagnostics) []MovedFile {
	if diag == nil {
		diag = &dfs.Diagnostics{}
	}
	if !prepareTarget(fs, target, diag) {
		return nil
	}

	var moved []MovedFile
	forEachRedundant(fs, groups, diag, func(f *dfs.Dfile) {
		if m, ok := moveFile(fs, f.FileName(), target, diag); ok {
			moved = append(moved, m)
		}
	})
	return moved
}

// RemoveSelected deletes the members of g whose paths are in selected. A
// selection covering every member still on disk is refused with
// ErrLastCopy before anything is removed.
func RemoveSelected(fs afero.Fs, g Group, selected map[string]bool, diag *dfs.Diagnostics) ([]string, error) {
	if diag == nil {
		diag = &dfs.Diagnostics{}
	}
	if err := keepsACopy(fs, g, selected); err != nil {
		return nil, err
	}

	var removed []string
	for _, f := range g.Files {
		if !selected[f.FileName()] {
			continue
		}
		if removeFile(fs, f.FileName(), diag) {
			removed = append(removed, f.FileName())
		}
	}
	return removed, nil
}

// MoveSelected moves the members of g whose paths are in selected into
// target, keeping their base names. The same last-copy rule as
// RemoveSelected applies. A name already taken in target is a
// *dfs.MoveError and the file stays where it is.
func MoveSelected(fs afero.Fs, g Group, selected map[string]bool, target string, diag *dfs.Diagnostics) ([]MovedFile, error) {
	if diag == nil {
		diag = &dfs.Diagnostics{}
	}
	if err := keepsACopy(fs, g, selected); err != nil {
		return nil, err
	}
	if !prepareTarget(fs, target, diag) {
		return nil, nil
	}

	var moved []MovedFile
	for _, f := range g.Files {
		if !selected[f.FileName()] {
			continue
		}
		if m, ok := moveFile(fs, f.FileName(), target, diag); ok {
			moved = append(moved, m)
		}
	}
	return moved, nil
}

// forEachRedundant calls act for every member of every group except the
// first one still on disk.
func forEachRedundant(fs afero.Fs, groups []Group, diag *dfs.Diagnostics, act func(*dfs.Dfile)) {
	for _, g := range groups {
		survivor := firstPresent(fs, g)
		if survivor < 0 {
			dlog.Dlogger.Warnf("No copy of %s left on disk, nothing to do", g.Hash.Short())
			continue
		}
		if survivor > 0 {
			diag.Warn(&dfs.DeleteError{
				Path: g.Original().FileName(),
				Err:  fmt.Errorf("original vanished, keeping %s instead", g.Files[survivor].FileName()),
			})
		}

		for i, f := range g.Files {
			if i != survivor {
				act(f)
			}
		}
	}
}

func keepsACopy(fs afero.Fs, g Group, selected map[string]bool) error {
	for _, f := range g.Files {
		if selected[f.FileName()] {
			continue
		}
		if exists, _ := afero.Exists(fs, f.FileName()); exists {
			return nil
		}
	}
	return fmt.Errorf("group %s: %w", g.Hash.Short(), ErrLastCopy)
}

func firstPresent(fs afero.Fs, g Group) int {
	for i, f := range g.Files {
		if exists, _ := afero.Exists(fs, f.FileName()); exists {
			return i
		}
	}
	return -1
}

func removeFile(fs afero.Fs, path string, diag *dfs.Diagnostics) bool {
	if err := fs.Remove(path); err != nil {
		diag.Warn(&dfs.DeleteError{Path: path, Err: err})
		return false
	}
	dlog.Dlogger.Infof("Deleted duplicate file: %s", path)
	return true
}

func prepareTarget(fs afero.Fs, target string, diag *dfs.Diagnostics) bool {
	if target == "" {
		diag.Warn(&dfs.MoveError{Path: target, Target: target, Err: errors.New("no target directory given")})
		return false
	}
	if err := fs.MkdirAll(target, 0o755); err != nil {
		diag.Warn(&dfs.MoveError{Path: target, Target: target, Err: err})
		return false
	}
	return true
}

// moveFile renames path into target. Renames across filesystems fail and
// are reported like any other failure.
func moveFile(fs afero.Fs, path, target string, diag *dfs.Diagnostics) (MovedFile, bool) {
	dst := filepath.Join(target, filepath.Base(path))
	if exists, _ := afero.Exists(fs, dst); exists {
		diag.Warn(&dfs.MoveError{Path: path, Target: dst, Err: os.ErrExist})
		return MovedFile{}, false
	}
	if err := fs.Rename(path, dst); err != nil {
		diag.Warn(&dfs.MoveError{Path: path, Target: dst, Err: err})
		return MovedFile{}, false
	}
	dlog.Dlogger.Infof("Moved duplicate file %s to %s", path, dst)
	return MovedFile{From: path, To: dst}, true
}
