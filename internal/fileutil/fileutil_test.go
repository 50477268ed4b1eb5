package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"reelsmith/internal/fileutil"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp4")
	dst := filepath.Join(dir, "publish", "dst.mp4")
	payload := []byte("not really media but enough bytes to copy")
	if err := os.WriteFile(src, payload, 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		t.Fatalf("CopyFileVerified failed: %v", err)
	}
	copied, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if string(copied) != string(payload) {
		t.Fatal("copied payload does not match source")
	}
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := fileutil.CopyFileVerified(filepath.Join(dir, "missing"), filepath.Join(dir, "out"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, make([]byte, 1234), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := fileutil.FileSize(path); got != 1234 {
		t.Fatalf("FileSize = %d, want 1234", got)
	}
	if got := fileutil.FileSize(filepath.Join(dir, "missing")); got != 0 {
		t.Fatalf("FileSize for missing = %d, want 0", got)
	}
}
