// Package dscan drives one scan: walk the tree, group the files, and
// apply the deletion policy.
package dscan

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/jdefrancesco/dups/internal/config"
	"github.com/jdefrancesco/dups/internal/dfs"
	"github.com/jdefrancesco/dups/internal/dlog"
	"github.com/jdefrancesco/dups/internal/dmap"
	"github.com/jdefrancesco/dups/internal/dwalk"

	"github.com/spf13/afero"
)

// Options are per-run knobs that do not belong in the config file.
type Options struct {
	// OnFile, if set, is called after each walked file is handed to the map.
	OnFile func(n int, path string)
	// SkipDelete suppresses the deletion policy even when the config asks
	// for it. The interactive review deletes on its own.
	SkipDelete bool
}

// Run validates cfg, then scans its directory through fs. A config problem
// is returned as *config.ConfigError before anything is walked. Everything
// else is fail-soft and ends up in the result's Warnings.
func Run(fs afero.Fs, cfg *config.Config, opts Options) (*dmap.ScanResult, error) {
	if err := cfg.Validate(fs); err != nil {
		return nil, err
	}
	root, err := cfg.Root(fs)
	if err != nil {
		return nil, err
	}
	walkOpts, err := walkOptions(cfg)
	if err != nil {
		return nil, err
	}
	walkOpts.ExcludePaths = outputPaths(fs, cfg, root)

	started := time.Now()
	dlog.Dlogger.Infof("Scanning %s (algorithm %s, prefilter %v)", root, cfg.Algorithm(), cfg.Prefilter)

	diag := &dfs.Diagnostics{}
	walker := dwalk.NewDWalker(fs, root, walkOpts, diag)
	dMap := dmap.NewDmap(fs, dmap.Options{
		HashAlgorithm: cfg.Algorithm(),
		Prefilter:     cfg.Prefilter,
	}, diag)

	n := 0
	for entry := range walker.Files() {
		dMap.Add(entry.Path, entry.Size)
		n++
		if opts.OnFile != nil {
			opts.OnFile(n, entry.Path)
		}
	}

	res := dMap.Result()
	res.Root = root

	if cfg.DeleteDuplicates && !opts.SkipDelete {
		if cfg.MoveDirectory != "" {
			target, _ := filepath.Abs(cfg.MoveDirectory)
			res.Moved = dmap.MoveRedundant(fs, res.Groups, target, diag)
			dlog.Dlogger.Infof("Moved %d redundant files to %s", len(res.Moved), target)
		} else {
			res.Removed = dmap.RemoveRedundant(fs, res.Groups, diag)
			dlog.Dlogger.Infof("Removed %d redundant files", len(res.Removed))
		}
		res.Warnings = diag.Warnings()
	}

	res.Started = started
	res.Finished = time.Now()

	dlog.Dlogger.Infof("Scan of %s done: %d files, %d groups, %d warnings in %s",
		root, res.FilesSeen, len(res.Groups), len(res.Warnings), res.Finished.Sub(started))
	return res, nil
}

func walkOptions(cfg *config.Config) (dwalk.Options, error) {
	minSize, err := cfg.MinSize()
	if err != nil {
		return dwalk.Options{}, err
	}
	maxSize, err := cfg.MaxSize()
	if err != nil {
		return dwalk.Options{}, err
	}
	return dwalk.Options{
		SkipHidden:     cfg.SkipHidden,
		SkipEmpty:      cfg.SkipEmpty,
		IgnorePrefixes: cfg.IgnoreList,
		MinFileSize:    minSize,
		MaxFileSize:    maxSize,
	}, nil
}

// outputPaths lists the files this run writes (log, report, temp file) as
// they will appear under root, so a scan of a directory holding them never
// groups its own output.
func outputPaths(fs afero.Fs, cfg *config.Config, root string) []string {
	scanDir, err := filepath.Abs(cfg.ScanDirectory)
	if err != nil {
		return nil
	}
	scanDir = filepath.Clean(scanDir)

	var out []string
	for _, p := range []string{cfg.LogFile, cfg.ReportFile, cfg.TempFile} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if p == cfg.ReportFile {
			if info, err := fs.Stat(abs); err == nil && info.IsDir() {
				abs = filepath.Join(abs, dmap.DefaultReportName)
			}
		}
		// Paths spelled through a linked scan directory are rebased onto
		// the resolved root the walker actually reports.
		if rel, err := filepath.Rel(scanDir, abs); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			abs = filepath.Join(root, rel)
		}
		out = append(out, filepath.Clean(abs))
	}
	return out
}
