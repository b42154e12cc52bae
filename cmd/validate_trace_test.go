package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTraceFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestValidateTraceFileReportsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := writeTraceFile(t, dir, "trace.csv", "1,0,0,10,1,0,1,1,1,1,100\ngarbage\n2,0,1,10,1,0,1,1,1,1,100\n")

	if err := validateTraceFile(path); err != nil {
		t.Fatalf("validateTraceFile: %v", err)
	}
}

func TestValidateTraceFileReportsFatalZeroValSize(t *testing.T) {
	dir := t.TempDir()
	path := writeTraceFile(t, dir, "trace.csv", "1,0,0,10,1,0,1,1,1,0\n")

	if err := validateTraceFile(path); err == nil {
		t.Fatal("expected error for fatal valSize = 0 record")
	}
}

func TestValidateTraceFileMissingFileErrors(t *testing.T) {
	if err := validateTraceFile(filepath.Join(t.TempDir(), "does-not-exist.csv")); err == nil {
		t.Fatal("expected error for missing trace file")
	}
}
