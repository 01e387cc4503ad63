package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/jdefrancesco/dups/internal/dfs"
	"github.com/jdefrancesco/dups/internal/dlog"
	"github.com/jdefrancesco/dups/pkg/utils"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// DefaultConfigFile is read when no --config flag is given.
const DefaultConfigFile = "config.json"

// EnvPrefix prefixes environment overrides, e.g. DUPS_SCAN_DIRECTORY.
const EnvPrefix = "DUPS"

type Config struct {
	// Root of the tree to scan. Required.
	ScanDirectory string `mapstructure:"scan_directory"`
	// Human readable report destination. Empty disables the report.
	ReportFile string `mapstructure:"report_file"`
	// Intermediate results (every hashed record). Empty disables it.
	TempFile string `mapstructure:"temp_file"`
	// Remove redundant copies after grouping.
	DeleteDuplicates bool `mapstructure:"delete_duplicates"`
	// With delete_duplicates, move redundant copies here instead of
	// deleting them. Also the target of the review UI's move action.
	MoveDirectory string `mapstructure:"move_directory"`
	LogFile       string `mapstructure:"log_file"`
	LogLevel      string `mapstructure:"log_level"`
	// File name prefixes that are never scanned.
	IgnoreList []string `mapstructure:"ignore_list"`
	// SkipHidden controls whether hidden dotfiles and directories are skipped.
	SkipHidden bool `mapstructure:"skip_hidden"`
	// Skip over empty files.
	SkipEmpty bool `mapstructure:"skip_empty"`
	// File size limits as human sizes ("10K", "2GiB"). Empty means no limit.
	MinFileSize string `mapstructure:"min_file_size"`
	MaxFileSize string `mapstructure:"max_file_size"`
	// HashAlgorithm selects which digest is used when hashing file contents.
	HashAlgorithm string `mapstructure:"hash_algorithm"`
	// Prefilter screens candidates by size and prefix before full hashing.
	Prefilter bool `mapstructure:"prefilter"`
}

// ConfigError is fatal: it is returned before any file is walked or hashed.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func setDefaults(v *viper.Viper) {
	v.SetDefault("scan_directory", "")
	v.SetDefault("report_file", "")
	v.SetDefault("temp_file", "")
	v.SetDefault("delete_duplicates", false)
	v.SetDefault("move_directory", "")
	v.SetDefault("log_file", "dups.log")
	v.SetDefault("log_level", "info")
	v.SetDefault("ignore_list", []string{})
	v.SetDefault("skip_hidden", false)
	v.SetDefault("skip_empty", false)
	v.SetDefault("min_file_size", "")
	v.SetDefault("max_file_size", "")
	v.SetDefault("hash_algorithm", string(dfs.HashSHA256))
	v.SetDefault("prefilter", false)
}

// Load reads the JSON config at path. A missing or malformed file is a
// *ConfigError. Environment variables DUPS_<KEY> override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Field: "config file", Err: fmt.Errorf("read %s: %w", path, err)}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Field: "config file", Err: fmt.Errorf("decode %s: %w", path, err)}
	}

	return &cfg, nil
}

// Validate checks the config against fsys. It only stats the scan root;
// nothing is opened or read.
func (c *Config) Validate(fsys afero.Fs) error {
	if strings.TrimSpace(c.ScanDirectory) == "" {
		return &ConfigError{Field: "scan_directory", Err: errors.New("must be set")}
	}

	info, err := fsys.Stat(c.ScanDirectory)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ConfigError{Field: "scan_directory", Err: fmt.Errorf("%s does not exist: %w", c.ScanDirectory, err)}
		}
		return &ConfigError{Field: "scan_directory", Err: err}
	}
	if !info.IsDir() {
		return &ConfigError{Field: "scan_directory", Err: fmt.Errorf("%s is not a directory", c.ScanDirectory)}
	}

	if _, err := dfs.ParseHashAlgorithm(c.HashAlgorithm); err != nil {
		return &ConfigError{Field: "hash_algorithm", Err: err}
	}

	minSize, err := c.MinSize()
	if err != nil {
		return err
	}
	maxSize, err := c.MaxSize()
	if err != nil {
		return err
	}
	if maxSize > 0 && minSize >= maxSize {
		return &ConfigError{Field: "min_file_size", Err: fmt.Errorf("%s is not below max_file_size %s", c.MinFileSize, c.MaxFileSize)}
	}

	if c.ReportFile != "" && c.ReportFile == c.TempFile {
		return &ConfigError{Field: "temp_file", Err: errors.New("must differ from report_file")}
	}

	if c.MoveDirectory != "" {
		root, err := c.Root(fsys)
		if err != nil {
			return err
		}
		target, err := filepath.Abs(c.MoveDirectory)
		if err != nil {
			return &ConfigError{Field: "move_directory", Err: err}
		}
		if within(target, root) {
			return &ConfigError{Field: "move_directory", Err: fmt.Errorf("%s is inside scan_directory", c.MoveDirectory)}
		}
	}

	return nil
}

// Root returns the cleaned absolute scan directory. A scan directory that
// is itself a symbolic link is resolved, since the walker never follows
// links.
func (c *Config) Root(fsys afero.Fs) (string, error) {
	abs, err := filepath.Abs(c.ScanDirectory)
	if err != nil {
		return "", &ConfigError{Field: "scan_directory", Err: err}
	}
	root, err := resolveLinks(fsys, filepath.Clean(abs))
	if err != nil {
		return "", &ConfigError{Field: "scan_directory", Err: err}
	}
	return root, nil
}

const maxLinkHops = 40

// resolveLinks follows path while it names a symbolic link. File systems
// without link support return path unchanged.
func resolveLinks(fsys afero.Fs, path string) (string, error) {
	lstater, ok := fsys.(afero.Lstater)
	if !ok {
		return path, nil
	}
	reader, ok := fsys.(afero.LinkReader)
	if !ok {
		return path, nil
	}

	for range maxLinkHops {
		info, lstatCalled, err := lstater.LstatIfPossible(path)
		if err != nil {
			return "", err
		}
		if !lstatCalled || info.Mode()&fs.ModeSymlink == 0 {
			return path, nil
		}
		target, err := reader.ReadlinkIfPossible(path)
		if err != nil {
			return "", err
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		dlog.Dlogger.Infof("Scan directory %s is a symbolic link to %s", path, target)
		path = filepath.Clean(target)
	}
	return "", fmt.Errorf("%s: too many levels of symbolic links", path)
}

// within reports whether path is dir or below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Algorithm returns the parsed hash algorithm.
func (c *Config) Algorithm() dfs.HashAlgorithm {
	algo, err := dfs.ParseHashAlgorithm(c.HashAlgorithm)
	if err != nil {
		return dfs.HashSHA256
	}
	return algo
}

// MinSize returns min_file_size in bytes, 0 when unset.
func (c *Config) MinSize() (uint64, error) { return parseLimit("min_file_size", c.MinFileSize) }

// MaxSize returns max_file_size in bytes, 0 when unset.
func (c *Config) MaxSize() (uint64, error) { return parseLimit("max_file_size", c.MaxFileSize) }

func parseLimit(field, raw string) (uint64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	n, err := utils.ParseSize(raw)
	if err != nil {
		return 0, &ConfigError{Field: field, Err: err}
	}
	return n, nil
}
