package dmap

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jdefrancesco/dups/internal/dfs"

	"github.com/spf13/afero"
)

// pngHeader is enough for filetype to call it image/png.
var pngHeader = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"

func sampleResult(t *testing.T) (afero.Fs, *ScanResult) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, [][2]string{
		{"/d/a.txt", "hello"},
		{"/d/b.txt", "hello"},
		{"/d/c.txt", "world"},
		{"/d/p1.png", pngHeader},
		{"/d/p2.png", pngHeader},
	})
	_, res := scanPaths(t, fsys, Options{}, "/d/a.txt", "/d/b.txt", "/d/c.txt", "/d/p1.png", "/d/p2.png")
	res.Root = "/d"
	res.Finished = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	res.Removed = []string{"/d/b.txt"}
	res.Moved = []MovedFile{{From: "/d/p2.png", To: "/aside/p2.png"}}
	res.Warnings = append(res.Warnings, &dfs.ReadError{Path: "/d/locked", Err: os.ErrPermission})
	return fsys, res
}

func TestRenderText(t *testing.T) {
	fsys, res := sampleResult(t)

	var buf bytes.Buffer
	if err := RenderText(&buf, fsys, res); err != nil {
		t.Fatalf("RenderText: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Root:       /d",
		"Algorithm:  sha256",
		"2 redundant copies in 2 groups",
		"[original]  /d/a.txt",
		"[redundant] /d/b.txt",
		"[original]  /d/p1.png",
		"image/png",
		"Removed (1):",
		"Moved (1):",
		"/d/p2.png -> /aside/p2.png",
		"Warnings (1):",
		"/d/locked",
		"2024-05-01T12:00:00Z",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "/d/c.txt") {
		t.Errorf("non-duplicate c.txt must not appear in the report:\n%s", out)
	}
}

func TestRenderTextNoDuplicates(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderText(&buf, afero.NewMemMapFs(), &ScanResult{Root: "/empty"}); err != nil {
		t.Fatalf("RenderText: %v", err)
	}
	if !strings.Contains(buf.String(), "No duplicates found.") {
		t.Errorf("unexpected report:\n%s", buf.String())
	}
}

func TestWriteReportFormats(t *testing.T) {
	fsys, res := sampleResult(t)
	dir := t.TempDir()

	// JSON
	jsonPath := filepath.Join(dir, "report.json")
	if _, err := WriteReport(fsys, jsonPath, res); err != nil {
		t.Fatalf("WriteReport json: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var summary exportSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if summary.GroupCount != 2 || len(summary.Groups) != 2 {
		t.Fatalf("group_count = %d", summary.GroupCount)
	}
	first := summary.Groups[0]
	if first.DuplicateCount != 2 || !first.Files[0].Original || first.Files[1].Original {
		t.Errorf("unexpected first group: %+v", first)
	}
	if summary.Groups[1].Kind != "image/png" {
		t.Errorf("kind = %q, want image/png", summary.Groups[1].Kind)
	}
	if len(summary.Warnings) != 1 || len(summary.Removed) != 1 {
		t.Errorf("warnings = %v removed = %v", summary.Warnings, summary.Removed)
	}
	if len(summary.Moved) != 1 || summary.Moved[0].To != "/aside/p2.png" {
		t.Errorf("moved = %v", summary.Moved)
	}

	// CSV
	csvPath := filepath.Join(dir, "report.csv")
	if _, err := WriteReport(fsys, csvPath, res); err != nil {
		t.Fatalf("WriteReport csv: %v", err)
	}
	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected header + 4 rows, got %d", len(rows))
	}
	if rows[1][2] != "/d/a.txt" || rows[1][4] != "true" || rows[2][4] != "false" {
		t.Errorf("unexpected rows: %v", rows[1:3])
	}

	// Text
	txtPath := filepath.Join(dir, "report.txt")
	if _, err := WriteReport(fsys, txtPath, res); err != nil {
		t.Fatalf("WriteReport text: %v", err)
	}
	info, err := os.Stat(txtPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("text report is empty")
	}
}

func TestWriteReportIntoDirectory(t *testing.T) {
	fsys, res := sampleResult(t)
	dir := t.TempDir()

	written, err := WriteReport(fsys, dir, res)
	if err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if written != filepath.Join(dir, DefaultReportName) {
		t.Errorf("written to %s", written)
	}
	if _, err := os.Stat(written); err != nil {
		t.Errorf("report not created: %v", err)
	}
}

func TestWriteReportOverwrites(t *testing.T) {
	fsys, res := sampleResult(t)
	path := filepath.Join(t.TempDir(), "r.txt")
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), 100000), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteReport(fsys, path, res); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	data, _ := os.ReadFile(path)
	if bytes.Contains(data, []byte("xxxx")) {
		t.Error("old content survived; report must truncate")
	}
}

func TestWriteRecords(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFiles(t, fsys, [][2]string{{"/d/a", "hello"}, {"/d/b", "other"}})
	mtime := time.Unix(1700000000, 500000000)
	if err := fsys.Chtimes("/d/a", mtime, mtime); err != nil {
		t.Fatal(err)
	}
	dm, _ := scanPaths(t, fsys, Options{}, "/d/a", "/d/b")

	path := filepath.Join(t.TempDir(), "temp.json")
	if err := WriteRecords(path, dm.Records()); err != nil {
		t.Fatalf("WriteRecords: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]tempRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	rec, ok := got["/d/a"]
	if !ok || rec.Name != "a" || rec.Size != 5 ||
		rec.Hash != "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824" {
		t.Errorf("unexpected record for /d/a: %+v", rec)
	}
	if rec.ModifiedTime != 1700000000.5 {
		t.Errorf("modified_time = %v, want 1700000000.5", rec.ModifiedTime)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 records, got %d", len(got))
	}
}

func TestVolumeLine(t *testing.T) {
	vol := dfs.Volume{
		MountPoint: "/srv",
		Device:     "/dev/sdb1",
		Type:       "ext4",
		Total:      4 * 1024 * 1024 * 1024,
		Avail:      1024 * 1024 * 1024,
	}
	want := "/srv (/dev/sdb1, ext4) 1.00 GiB free of 4.00 GiB, 75.0% used"
	if got := volumeLine(vol); got != want {
		t.Errorf("volumeLine = %q, want %q", got, want)
	}

	vol.Device = ""
	if got := volumeLine(vol); !strings.HasPrefix(got, "/srv (ext4) ") {
		t.Errorf("volumeLine without device = %q", got)
	}
}

func TestSecureOutputFileRejects(t *testing.T) {
	if _, err := secureOutputFile(""); err == nil {
		t.Error("empty path should be rejected")
	}
	missing := filepath.Join(t.TempDir(), "no", "such", "dir", "r.txt")
	if _, err := secureOutputFile(missing); err == nil {
		t.Error("missing parent directory should fail")
	}
}

func TestLeveledList(t *testing.T) {
	_, res := sampleResult(t)
	list := leveledList(res)
	// Two headers plus two members each.
	if len(list) != 6 {
		t.Fatalf("leveled list has %d items, want 6", len(list))
	}
	if list[0].Level != 0 || list[1].Level != 1 || list[3].Level != 0 {
		t.Errorf("unexpected levels: %+v", list)
	}
	if !strings.Contains(list[1].Text, "/d/a.txt") || !strings.Contains(list[1].Text, "original") {
		t.Errorf("first member should be the original: %q", list[1].Text)
	}
}
