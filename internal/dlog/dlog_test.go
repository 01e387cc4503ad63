package dlog

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

// Test initialization of the global logger (Dlogger)
func TestGlobalLoggerInitialization(t *testing.T) {
	t.Setenv(logLevelEnvVar, "debug")

	logPath := filepath.Join(t.TempDir(), "test.log")
	if err := InitializeDlogger(logPath); err != nil {
		t.Fatalf("InitializeDlogger returned error: %v", err)
	}

	if Dlogger == nil {
		t.Fatal("Dlogger is not initialized")
	}

	if Dlogger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("Expected log level to be Debug, got %v", Dlogger.GetLevel())
	}

	// Log to a buffer instead of the file.
	var buf bytes.Buffer
	Dlogger.Out = &buf
	Dlogger.Debug("Test message")

	if !bytes.Contains(buf.Bytes(), []byte("Test message")) {
		t.Errorf("Expected log message not found in buffer")
	}
}

func TestInitializeDloggerBadPath(t *testing.T) {
	before := Dlogger
	err := InitializeDlogger(filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	if err == nil {
		t.Fatal("expected error for log file in missing directory")
	}
	if Dlogger != before {
		t.Fatal("Dlogger should be left untouched when the log file cannot be opened")
	}
}

func TestSetLevel(t *testing.T) {
	t.Setenv(logLevelEnvVar, "")

	logPath := filepath.Join(t.TempDir(), "test.log")
	if err := InitializeDlogger(logPath); err != nil {
		t.Fatalf("InitializeDlogger returned error: %v", err)
	}

	if err := SetLevel("error"); err != nil {
		t.Fatalf("SetLevel returned error: %v", err)
	}

	if Dlogger.GetLevel() != logrus.ErrorLevel {
		t.Fatalf("Expected log level to be Error, got %v", Dlogger.GetLevel())
	}

	if err := SetLevel("invalid"); err == nil {
		t.Fatalf("SetLevel should fail for invalid level")
	}

	if Dlogger.GetLevel() != logrus.ErrorLevel {
		t.Fatalf("Log level should remain Error after invalid SetLevel attempt, got %v", Dlogger.GetLevel())
	}
}

func TestSetLevelEnvOverride(t *testing.T) {
	t.Setenv(logLevelEnvVar, "warn")

	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel returned error: %v", err)
	}
	if Dlogger.GetLevel() != logrus.WarnLevel {
		t.Fatalf("environment level should win, got %v", Dlogger.GetLevel())
	}
}
