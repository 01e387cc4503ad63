// Implement our primary data structure Dmap.
//
// Dmap is a hash map with roughly the following simple structure:
//
//	{ Digest --> [original, copy1, copy2, ...] }
//
// The full-content digest of a file is the key; the value is the list of
// files with that content in the order the walker visited them. The first
// entry of each list is the original, everything after it is redundant.
package dmap

import (
	"time"

	"github.com/jdefrancesco/dups/internal/dfs"
	"github.com/jdefrancesco/dups/internal/dlog"

	"github.com/spf13/afero"
)

// Options control how the Dmap fingerprints files.
type Options struct {
	HashAlgorithm dfs.HashAlgorithm
	// Prefilter defers hashing until the walk is over, then only hashes files
	// whose size and leading bytes are shared with another file.
	Prefilter bool
}

// Group is a set of files with identical content, in walk order.
type Group struct {
	Hash  dfs.Digest
	Files []*dfs.Dfile
}

// Original returns the first-visited member, the copy that is kept.
func (g Group) Original() *dfs.Dfile { return g.Files[0] }

// Redundant returns every member but the original.
func (g Group) Redundant() []*dfs.Dfile { return g.Files[1:] }

// Size returns the size of one member.
func (g Group) Size() int64 { return g.Files[0].FileSize() }

// Wasted returns the bytes held by the redundant copies.
func (g Group) Wasted() uint64 {
	return uint64(max(g.Size(), 0)) * uint64(len(g.Files)-1) // #nosec G115
}

// ScanResult is everything one run found.
type ScanResult struct {
	Root          string
	HashAlgorithm dfs.HashAlgorithm
	Groups        []Group
	// FilesSeen counts walker entries, FilesHashed the ones fingerprinted.
	FilesSeen   int
	FilesHashed int
	Warnings    []error
	// Records holds every hashed file, duplicate or not, in hash order.
	Records []*dfs.Dfile
	// Removed lists files deleted by the deletion policy, Moved the ones
	// moved aside instead.
	Removed  []string
	Moved    []MovedFile
	Started  time.Time
	Finished time.Time
}

// DuplicateCount returns the number of redundant copies across all groups.
func (r *ScanResult) DuplicateCount() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Files) - 1
	}
	return n
}

// Wasted returns the bytes held by redundant copies across all groups.
func (r *ScanResult) Wasted() uint64 {
	var total uint64
	for _, g := range r.Groups {
		total += g.Wasted()
	}
	return total
}

type pendingFile struct {
	path string
	size int64
}

// Dmap structure holds our file duplication data. It has a single writer:
// the scan loop calling Add.
type Dmap struct {
	fs   afero.Fs
	opts Options
	diag *dfs.Diagnostics

	filesMap map[dfs.Digest][]*dfs.Dfile
	// Digests in first-seen order, so results follow walk order.
	order   []dfs.Digest
	records []*dfs.Dfile

	// Prefilter mode only: entries waiting for Result.
	pending   []pendingFile
	sizeCache *DFileSizeCache

	fileCount int
}

// NewDmap returns a new Dmap reading files through fs. Read failures are
// reported to diag.
func NewDmap(fs afero.Fs, opts Options, diag *dfs.Diagnostics) *Dmap {
	if opts.HashAlgorithm == "" {
		opts.HashAlgorithm = dfs.HashSHA256
	}
	if diag == nil {
		diag = &dfs.Diagnostics{}
	}
	return &Dmap{
		fs:        fs,
		opts:      opts,
		diag:      diag,
		filesMap:  make(map[dfs.Digest][]*dfs.Dfile),
		sizeCache: NewDFileSizeCache(),
	}
}

// Add takes a walked file and, unless prefiltering, hashes it and adds it to
// the map. An unreadable file becomes a warning and joins no group.
func (d *Dmap) Add(path string, size int64) {
	d.fileCount++

	if d.opts.Prefilter {
		d.pending = append(d.pending, pendingFile{path: path, size: size})
		d.sizeCache.Add(size)
		return
	}

	d.hashAndInsert(path, size)
}

func (d *Dmap) hashAndInsert(path string, size int64) {
	dfile, err := dfs.NewDfile(d.fs, path, size, d.opts.HashAlgorithm)
	if err != nil {
		d.diag.Warn(err)
		return
	}
	d.insert(dfile)
}

func (d *Dmap) insert(dfile *dfs.Dfile) {
	h := dfile.Hash()
	if _, seen := d.filesMap[h]; !seen {
		d.order = append(d.order, h)
	}
	d.filesMap[h] = append(d.filesMap[h], dfile)
	d.records = append(d.records, dfile)
}

// flushPending runs the prefilter: same size first, then same leading
// bytes, then the full digest. Each stage only drops files that provably
// differ from every other candidate.
func (d *Dmap) flushPending() {
	if len(d.pending) == 0 {
		return
	}

	var sized []pendingFile
	for _, p := range d.pending {
		if d.sizeCache.Count(p.size) > 1 {
			sized = append(sized, p)
		}
	}
	dlog.Dlogger.Debugf("Prefilter: %d of %d files share a size", len(sized), len(d.pending))

	type prefixKey struct {
		size  int64
		quick uint64
	}
	quick := make([]uint64, len(sized))
	readable := make([]bool, len(sized))
	counts := make(map[prefixKey]int)
	for i, p := range sized {
		q, err := dfs.QuickDigest(d.fs, p.path)
		if err != nil {
			d.diag.Warn(err)
			continue
		}
		quick[i], readable[i] = q, true
		counts[prefixKey{p.size, q}]++
	}

	hashed := 0
	for i, p := range sized {
		if !readable[i] || counts[prefixKey{p.size, quick[i]}] < 2 {
			continue
		}
		d.hashAndInsert(p.path, p.size)
		hashed++
	}
	dlog.Dlogger.Debugf("Prefilter: %d files needed a full hash", hashed)

	d.pending = nil
}

// Result finishes the scan and returns the groups with at least two
// members, ordered by when their original was visited.
func (d *Dmap) Result() *ScanResult {
	d.flushPending()

	res := &ScanResult{
		HashAlgorithm: d.opts.HashAlgorithm,
		FilesSeen:     d.fileCount,
		FilesHashed:   len(d.records),
		Warnings:      d.diag.Warnings(),
		Records:       d.Records(),
	}
	for _, h := range d.order {
		files := d.filesMap[h]
		// Only report files that have at least one other duplicate.
		if len(files) < 2 {
			continue
		}
		res.Groups = append(res.Groups, Group{
			Hash:  h,
			Files: append([]*dfs.Dfile(nil), files...),
		})
	}
	return res
}

// Records returns every hashed file in the order it was hashed.
func (d *Dmap) Records() []*dfs.Dfile {
	return append([]*dfs.Dfile(nil), d.records...)
}

// MapSize returns number of distinct fingerprints in the map.
func (d *Dmap) MapSize() int {
	return len(d.filesMap)
}

// FileCount returns the number of files handed to Add.
func (d *Dmap) FileCount() int {
	return d.fileCount
}

// Get returns the files stored under hash in walk order.
func (d *Dmap) Get(hash dfs.Digest) []*dfs.Dfile {
	return append([]*dfs.Dfile(nil), d.filesMap[hash]...)
}
