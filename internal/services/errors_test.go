package services_test

import (
	"errors"
	"strings"
	"testing"

	"vignette/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("exit status 1")
	err := services.Wrap(services.ErrExternalTool, "encoder", "encode", "ffmpeg failed", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatal("expected wrapped error to match ErrExternalTool")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped error to retain the cause")
	}
	if !strings.Contains(err.Error(), "encoder: encode: ffmpeg failed") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "render", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatal("expected nil marker to default to ErrTransient")
	}
}

func TestFatalClassification(t *testing.T) {
	cases := []struct {
		marker error
		fatal  bool
	}{
		{services.ErrConfiguration, true},
		{services.ErrValidation, true},
		{services.ErrExternalTool, false},
		{services.ErrTimeout, false},
		{services.ErrTransient, false},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "digest", "flush", "", nil)
		if got := services.Fatal(err); got != tc.fatal {
			t.Errorf("Fatal(%v) = %v, want %v", tc.marker, got, tc.fatal)
		}
	}
}
