package dfs

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/jdefrancesco/dups/internal/dlog"

	"github.com/spf13/afero"
)

// Dfile describes a hashed file. We only keep the few properties that
// allow us to detect a duplicate. A Dfile never changes once created.
type Dfile struct {
	fileName string
	fileSize int64
	fileHash Digest
	modTime  time.Time
}

// NewDfile hashes the file at fName and returns its record. Any failure to
// open or read the file is returned as a *ReadError.
func NewDfile(fs afero.Fs, fName string, fSize int64, algo HashAlgorithm) (*Dfile, error) {

	if fName == "" {
		return nil, &ReadError{Path: fName, Err: errors.New("file name needs to be specified")}
	}

	fullFileName, err := filepath.Abs(fName)
	if err != nil {
		return nil, &ReadError{Path: fName, Err: err}
	}

	d := &Dfile{
		fileName: fullFileName,
		fileSize: fSize,
	}

	if err := d.hashFile(fs, algo); err != nil {
		return nil, &ReadError{Path: fullFileName, Err: err}
	}

	return d, nil
}

// FileName returns the absolute path of the file.
func (d *Dfile) FileName() string { return d.fileName }

// BaseName returns the base filename only instead of the full pathname.
func (d *Dfile) BaseName() string { return filepath.Base(d.fileName) }

// FileSize returns the size seen when the file was visited.
func (d *Dfile) FileSize() int64 { return d.fileSize }

// Hash returns the content fingerprint.
func (d *Dfile) Hash() Digest { return d.fileHash }

// ModTime returns the modification time read when the file was hashed.
func (d *Dfile) ModTime() time.Time { return d.modTime }

// HashString returns the fingerprint as hex for display purposes.
func (d *Dfile) HashString() string { return d.fileHash.String() }

// We hash files in quick succession, so buffers are re-used instead of
// allocating one per file.
var bufPool = sync.Pool{
	New: func() any {
		var arr [1 << 20]byte
		return &arr
	},
}

func (d *Dfile) hashFile(fs afero.Fs, algo HashAlgorithm) error {
	h, err := newHasher(algo)
	if err != nil {
		return err
	}

	bufPtr := bufPool.Get().(*[1 << 20]byte)
	defer bufPool.Put(bufPtr)

	f, err := fs.Open(d.fileName)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			dlog.Dlogger.Debugf("Error closing %s: %v", d.fileName, err)
		}
	}()

	if info, err := f.Stat(); err == nil {
		d.modTime = info.ModTime()
	}

	if _, err := io.CopyBuffer(h, f, bufPtr[:]); err != nil {
		return fmt.Errorf("hash contents: %w", err)
	}

	copy(d.fileHash[:], h.Sum(nil))
	return nil
}
