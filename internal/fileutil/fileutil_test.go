package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"vignette/internal/fileutil"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dst := filepath.Join(dir, "dst.png")
	payload := []byte("not really a png")
	if err := os.WriteFile(src, payload, 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}

	if err := fileutil.CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("copied content mismatch: %q", data)
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := fileutil.CopyFile(filepath.Join(dir, "missing"), filepath.Join(dir, "out")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestFreeSpace(t *testing.T) {
	free, err := fileutil.FreeSpace(t.TempDir())
	if err != nil {
		t.Fatalf("FreeSpace failed: %v", err)
	}
	if free == 0 {
		t.Fatal("expected non-zero free space in temp dir")
	}
}

func TestCheckFreeSpaceRejectsHugeMinimum(t *testing.T) {
	const exabyte = 1 << 60
	if err := fileutil.CheckFreeSpace(t.TempDir(), exabyte); err == nil {
		t.Fatal("expected insufficient-space error")
	}
}
