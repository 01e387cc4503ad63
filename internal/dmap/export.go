package dmap

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jdefrancesco/dups/internal/dfs"
	"github.com/jdefrancesco/dups/internal/dlog"
	"github.com/jdefrancesco/dups/pkg/utils"

	"github.com/h2non/filetype"
	"github.com/spf13/afero"
)

// filetype only needs the first few hundred bytes.
const kindHeaderSize = 261

type exportFile struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Original bool   `json:"original"`
}

type exportGroup struct {
	Hash           string       `json:"hash"`
	DuplicateCount int          `json:"duplicate_count"`
	Size           int64        `json:"size"`
	Kind           string       `json:"kind,omitempty"`
	Files          []exportFile `json:"files"`
}

type exportSummary struct {
	Root          string        `json:"root"`
	HashAlgorithm string        `json:"hash_algorithm"`
	FilesSeen     int           `json:"files_seen"`
	FilesHashed   int           `json:"files_hashed"`
	GroupCount    int           `json:"group_count"`
	Groups        []exportGroup `json:"groups"`
	Removed       []string      `json:"removed"`
	Moved         []MovedFile   `json:"moved"`
	Warnings      []string      `json:"warnings"`
}

// DefaultReportName is used when the report path names a directory.
const DefaultReportName = "dups_report.txt"

// WriteReport writes res to path and returns where it went. The extension
// picks the format: .json, .csv, anything else gets the plain text report.
// fs is only used to sniff file kinds.
func WriteReport(fs afero.Fs, path string, res *ScanResult) (string, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		dlog.Dlogger.Warnf("Report path %s is a directory, writing %s inside it", path, DefaultReportName)
		path = filepath.Join(path, DefaultReportName)
	}
	return path, writeReport(fs, path, res)
}

func writeReport(fs afero.Fs, path string, res *ScanResult) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return WriteJSON(fs, path, res)
	case ".csv":
		return WriteCSV(path, res)
	default:
		return WriteText(fs, path, res)
	}
}

// WriteJSON writes duplicate groups, removed files and warnings to a JSON file.
func WriteJSON(fs afero.Fs, path string, res *ScanResult) error {
	summary := collectExportSummary(fs, res)
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	return writeOutput(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteCSV writes one row per duplicate file.
func WriteCSV(path string, res *ScanResult) error {
	return writeOutput(path, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write([]string{"hash", "duplicate_count", "path", "size_bytes", "original"}); err != nil {
			return fmt.Errorf("write CSV header: %w", err)
		}

		for _, g := range res.Groups {
			count := strconv.Itoa(len(g.Files))
			for i, f := range g.Files {
				row := []string{g.Hash.String(), count, f.FileName(), strconv.FormatInt(f.FileSize(), 10), strconv.FormatBool(i == 0)}
				if err := writer.Write(row); err != nil {
					return fmt.Errorf("write CSV row: %w", err)
				}
			}
		}

		writer.Flush()
		if err := writer.Error(); err != nil {
			return fmt.Errorf("flush CSV writer: %w", err)
		}
		return nil
	})
}

// WriteText writes the human readable report.
func WriteText(fs afero.Fs, path string, res *ScanResult) error {
	return writeOutput(path, func(w io.Writer) error {
		return RenderText(w, fs, res)
	})
}

// RenderText renders the human readable report to w.
func RenderText(w io.Writer, fs afero.Fs, res *ScanResult) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Duplicate file report\n")
	fmt.Fprintf(&b, "Generated:  %s\n", reportTime(res).Format(time.RFC3339))
	fmt.Fprintf(&b, "Root:       %s\n", res.Root)
	if vol, err := dfs.VolumeInfo(res.Root); err == nil {
		fmt.Fprintf(&b, "Volume:     %s\n", volumeLine(vol))
	}
	fmt.Fprintf(&b, "Algorithm:  %s\n", res.HashAlgorithm)
	fmt.Fprintf(&b, "Files:      %d seen, %d hashed\n", res.FilesSeen, res.FilesHashed)
	fmt.Fprintf(&b, "Duplicates: %d redundant copies in %d groups, %s reclaimable\n",
		res.DuplicateCount(), len(res.Groups), utils.DisplaySize(res.Wasted()))

	if len(res.Groups) == 0 {
		b.WriteString("\nNo duplicates found.\n")
	}

	for i, g := range res.Groups {
		fmt.Fprintf(&b, "\n[%d] %s  %d files x %s", i+1, g.Hash, len(g.Files), utils.DisplaySize(uint64(max(g.Size(), 0)))) // #nosec G115
		if kind := fileKind(fs, g.Original().FileName()); kind != "" {
			fmt.Fprintf(&b, "  %s", kind)
		}
		b.WriteString("\n")
		for j, f := range g.Files {
			marker := "[redundant]"
			if j == 0 {
				marker = "[original] "
			}
			fmt.Fprintf(&b, "    %s %s\n", marker, f.FileName())
		}
	}

	if len(res.Removed) > 0 {
		fmt.Fprintf(&b, "\nRemoved (%d):\n", len(res.Removed))
		for _, p := range res.Removed {
			fmt.Fprintf(&b, "    %s\n", p)
		}
	}

	if len(res.Moved) > 0 {
		fmt.Fprintf(&b, "\nMoved (%d):\n", len(res.Moved))
		for _, m := range res.Moved {
			fmt.Fprintf(&b, "    %s -> %s\n", m.From, m.To)
		}
	}

	if len(res.Warnings) > 0 {
		fmt.Fprintf(&b, "\nWarnings (%d):\n", len(res.Warnings))
		for _, err := range res.Warnings {
			fmt.Fprintf(&b, "    %s\n", err)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// volumeLine renders vol for the report header.
func volumeLine(vol dfs.Volume) string {
	kind := vol.Type
	if vol.Device != "" {
		kind = vol.Device + ", " + kind
	}
	return fmt.Sprintf("%s (%s) %s free of %s, %.1f%% used",
		vol.MountPoint, kind, utils.DisplaySize(vol.Avail), utils.DisplaySize(vol.Total), vol.UsePercent())
}

type tempRecord struct {
	Name         string  `json:"name"`
	Hash         string  `json:"hash"`
	Size         int64   `json:"size"`
	// Seconds since the Unix epoch.
	ModifiedTime float64 `json:"modified_time"`
}

// WriteRecords dumps every hashed file as
// {path: {name, hash, size, modified_time}}.
func WriteRecords(path string, records []*dfs.Dfile) error {
	out := make(map[string]tempRecord, len(records))
	for _, r := range records {
		out[r.FileName()] = tempRecord{
			Name:         r.BaseName(),
			Hash:         r.HashString(),
			Size:         r.FileSize(),
			ModifiedTime: float64(r.ModTime().UnixNano()) / float64(time.Second),
		}
	}

	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	return writeOutput(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// collectExportSummary flattens res into the JSON layout.
func collectExportSummary(fs afero.Fs, res *ScanResult) exportSummary {
	if res == nil {
		return exportSummary{}
	}

	groups := make([]exportGroup, 0, len(res.Groups))
	for _, g := range res.Groups {
		item := exportGroup{
			Hash:           g.Hash.String(),
			DuplicateCount: len(g.Files),
			Size:           g.Size(),
			Kind:           fileKind(fs, g.Original().FileName()),
			Files:          make([]exportFile, 0, len(g.Files)),
		}
		for i, f := range g.Files {
			item.Files = append(item.Files, exportFile{
				Path:     f.FileName(),
				Size:     f.FileSize(),
				Original: i == 0,
			})
		}
		groups = append(groups, item)
	}

	warnings := make([]string, 0, len(res.Warnings))
	for _, err := range res.Warnings {
		warnings = append(warnings, err.Error())
	}

	return exportSummary{
		Root:          res.Root,
		HashAlgorithm: string(res.HashAlgorithm),
		FilesSeen:     res.FilesSeen,
		FilesHashed:   res.FilesHashed,
		GroupCount:    len(groups),
		Groups:        groups,
		Removed:       append([]string{}, res.Removed...),
		Moved:         append([]MovedFile{}, res.Moved...),
		Warnings:      warnings,
	}
}

// fileKind returns the MIME type sniffed from the file header, or "" when
// unknown or unreadable.
func fileKind(fs afero.Fs, path string) string {
	if fs == nil {
		return ""
	}
	f, err := fs.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	head := make([]byte, kindHeaderSize)
	n, _ := io.ReadFull(f, head)
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}

func reportTime(res *ScanResult) time.Time {
	if !res.Finished.IsZero() {
		return res.Finished
	}
	return time.Now()
}

func writeOutput(path string, write func(io.Writer) error) error {
	file, err := secureOutputFile(path)
	if err != nil {
		return err
	}

	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func secureOutputFile(path string) (*os.File, error) {
	if path == "" {
		return nil, errors.New("output path is empty")
	}

	clean := filepath.Clean(path)
	abs, err := filepath.Abs(clean)
	if err != nil {
		return nil, fmt.Errorf("resolve output path %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err == nil {
		if info.IsDir() {
			return nil, fmt.Errorf("output path %s is a directory", abs)
		}
	}

	dirPath := filepath.Dir(abs)
	base := filepath.Base(abs)

	return openFileSecure(abs, dirPath, base)
}
