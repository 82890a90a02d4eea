package corelog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWithoutFilePathLogsToStderrOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Stderr: &buf})
	logger.Info("hello", "key", "value")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("stderr output missing log line: %q", buf.String())
	}
}

func TestNewWithFilePathWritesBothSinks(t *testing.T) {
	var buf bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "rekall.log")
	logger := New(Options{FilePath: logPath, Stderr: &buf})
	logger.Info("enrichment batch complete", "rows", 12)

	if !strings.Contains(buf.String(), "enrichment batch complete") {
		t.Errorf("stderr output missing log line: %q", buf.String())
	}
	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "enrichment batch complete") {
		t.Errorf("log file missing log line: %q", raw)
	}
}
