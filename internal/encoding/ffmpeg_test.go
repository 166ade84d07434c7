package encoding_test

import (
	"testing"

	"vignette/internal/encoding"
	"vignette/internal/testsupport"
)

func TestFFmpegAvailable(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	path, ok := encoding.FFmpegAvailable(cfg.FFmpegBinary())
	if !ok || path == "" {
		t.Fatalf("expected stubbed ffmpeg on PATH, got %q, %v", path, ok)
	}

	if _, ok := encoding.FFmpegAvailable("definitely-not-a-binary"); ok {
		t.Fatal("expected missing binary to report unavailable")
	}
}

func TestParseFormatAndExt(t *testing.T) {
	if encoding.ParseFormat("video") != encoding.FormatVideo {
		t.Fatal("expected video format")
	}
	if encoding.ParseFormat("anything-else") != encoding.FormatGIF {
		t.Fatal("expected gif default")
	}
	if encoding.Ext(encoding.FormatGIF) != ".gif" || encoding.Ext(encoding.FormatVideo) != ".mp4" {
		t.Fatal("unexpected artifact extensions")
	}
}
