package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes content to path, creating parent directories as needed.
func WriteFile(t testing.TB, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteSizedFile writes a file of exactly size bytes at path. The content
// cycles through all byte values so sniffers classify it as binary.
func WriteSizedFile(t testing.TB, path string, size int64) {
	t.Helper()

	content := make([]byte, size)
	for i := range content {
		content[i] = byte(i % 256)
	}
	WriteFile(t, path, content)
}
