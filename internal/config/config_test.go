package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/jdefrancesco/dups/internal/dfs"

	"github.com/spf13/afero"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"scan_directory": "/data",
		"report_file": "report.json",
		"temp_file": "temp.json",
		"delete_duplicates": true,
		"ignore_list": ["tmp_", "~"],
		"skip_hidden": true,
		"min_file_size": "1K",
		"max_file_size": "2GiB",
		"hash_algorithm": "blake3",
		"prefilter": true,
		"move_directory": "/dups"
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ScanDirectory != "/data" || cfg.ReportFile != "report.json" || cfg.TempFile != "temp.json" {
		t.Errorf("paths not decoded: %+v", cfg)
	}
	if !cfg.DeleteDuplicates || !cfg.SkipHidden || cfg.SkipEmpty || !cfg.Prefilter {
		t.Errorf("flags not decoded: %+v", cfg)
	}
	if !slices.Equal(cfg.IgnoreList, []string{"tmp_", "~"}) {
		t.Errorf("ignore_list = %v", cfg.IgnoreList)
	}
	if cfg.MoveDirectory != "/dups" {
		t.Errorf("move_directory = %q", cfg.MoveDirectory)
	}
	if cfg.Algorithm() != dfs.HashBLAKE3 {
		t.Errorf("algorithm = %s", cfg.Algorithm())
	}
	if n, err := cfg.MinSize(); err != nil || n != 1024 {
		t.Errorf("MinSize = %d, %v", n, err)
	}
	if n, err := cfg.MaxSize(); err != nil || n != 2<<30 {
		t.Errorf("MaxSize = %d, %v", n, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"scan_directory": "."}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogFile != "dups.log" || cfg.LogLevel != "info" {
		t.Errorf("log defaults: %q %q", cfg.LogFile, cfg.LogLevel)
	}
	if cfg.HashAlgorithm != "sha256" || cfg.DeleteDuplicates || cfg.Prefilter {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.IgnoreList) != 0 {
		t.Errorf("ignore_list = %v", cfg.IgnoreList)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DUPS_SCAN_DIRECTORY", "/from/env")
	t.Setenv("DUPS_DELETE_DUPLICATES", "true")

	cfg, err := Load(writeConfig(t, `{"scan_directory": "/from/file"}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ScanDirectory != "/from/env" || !cfg.DeleteDuplicates {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	for name, path := range map[string]string{
		"missing":   filepath.Join(t.TempDir(), "nope.json"),
		"malformed": writeConfig(t, `{"scan_directory": `),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(path)
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := fsys.MkdirAll("/data/sub", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fsys, "/data/file", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"ok", Config{ScanDirectory: "/data"}, ""},
		{"ok with limits", Config{ScanDirectory: "/data", MinFileSize: "1", MaxFileSize: "1M", HashAlgorithm: "BLAKE3"}, ""},
		{"empty root", Config{ScanDirectory: "  "}, "scan_directory"},
		{"missing root", Config{ScanDirectory: "/nope"}, "scan_directory"},
		{"root is a file", Config{ScanDirectory: "/data/file"}, "scan_directory"},
		{"unknown hash", Config{ScanDirectory: "/data", HashAlgorithm: "md5"}, "hash_algorithm"},
		{"bad min", Config{ScanDirectory: "/data", MinFileSize: "x"}, "min_file_size"},
		{"bad max", Config{ScanDirectory: "/data", MaxFileSize: "-1K"}, "max_file_size"},
		{"min above max", Config{ScanDirectory: "/data", MinFileSize: "2M", MaxFileSize: "1M"}, "min_file_size"},
		{"same outputs", Config{ScanDirectory: "/data", ReportFile: "out", TempFile: "out"}, "temp_file"},
		{"move outside root", Config{ScanDirectory: "/data/sub", MoveDirectory: "/data/dups"}, ""},
		{"move inside root", Config{ScanDirectory: "/data", MoveDirectory: "/data/sub/dups"}, "move_directory"},
		{"move is root", Config{ScanDirectory: "/data", MoveDirectory: "/data/"}, "move_directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(fsys)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("field = %q, want %q", cerr.Field, tt.field)
			}
		})
	}
}

func TestValidateMissingRootWraps(t *testing.T) {
	err := (&Config{ScanDirectory: "/nope"}).Validate(afero.NewMemMapFs())
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist in chain, got %v", err)
	}
}

func TestRoot(t *testing.T) {
	cfg := Config{ScanDirectory: "/data/../data/sub/"}
	root, err := cfg.Root(afero.NewMemMapFs())
	if err != nil {
		t.Fatal(err)
	}
	if root != filepath.FromSlash("/data/sub") {
		t.Errorf("root = %s", root)
	}
}

func TestRootResolvesSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatal(err)
	}
	// A relative link through a second link.
	if err := os.Symlink("real", filepath.Join(dir, "hop")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(filepath.Join(dir, "hop"), filepath.Join(dir, "link")); err != nil {
		t.Fatal(err)
	}

	cfg := Config{ScanDirectory: filepath.Join(dir, "link")}
	fsys := afero.NewOsFs()
	if err := cfg.Validate(fsys); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	root, err := cfg.Root(fsys)
	if err != nil {
		t.Fatal(err)
	}
	if root != target {
		t.Errorf("root = %s, want %s", root, target)
	}
}

func TestRootSymlinkLoop(t *testing.T) {
	dir := t.TempDir()
	loop := filepath.Join(dir, "loop")
	if err := os.Symlink("loop", loop); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := (&Config{ScanDirectory: loop}).Root(afero.NewOsFs())
	var cerr *ConfigError
	if !errors.As(err, &cerr) || cerr.Field != "scan_directory" {
		t.Fatalf("expected scan_directory ConfigError, got %v", err)
	}
}
