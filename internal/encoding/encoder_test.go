package encoding

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"vignette/internal/config"
	"vignette/internal/logging"
)

type ffmpegCall struct {
	args []string
}

func (c ffmpegCall) flag(name string) string {
	for i, arg := range c.args {
		if arg == name && i+1 < len(c.args) {
			return c.args[i+1]
		}
	}
	return ""
}

// filterFPS extracts the fps value from the -vf / -filter_complex expression.
func (c ffmpegCall) filterFPS(t *testing.T) int {
	t.Helper()
	filter := c.flag("-vf")
	if filter == "" {
		filter = c.flag("-filter_complex")
	}
	for _, part := range strings.Split(filter, ",") {
		if strings.HasPrefix(part, "fps=") {
			fps, err := strconv.Atoi(strings.TrimPrefix(part, "fps="))
			if err != nil {
				t.Fatalf("parse fps from filter %q: %v", filter, err)
			}
			return fps
		}
	}
	t.Fatalf("no fps in filter %q", filter)
	return 0
}

func (c ffmpegCall) filterWidth(t *testing.T) int {
	t.Helper()
	filter := c.flag("-vf")
	if filter == "" {
		filter = c.flag("-filter_complex")
	}
	idx := strings.Index(filter, "scale=")
	if idx < 0 {
		t.Fatalf("no scale in filter %q", filter)
	}
	rest := filter[idx+len("scale="):]
	end := strings.IndexByte(rest, ':')
	width, err := strconv.Atoi(rest[:end])
	if err != nil {
		t.Fatalf("parse width from filter %q: %v", filter, err)
	}
	return width
}

// stubFFmpeg records calls and writes outputs with the scripted sizes.
func stubFFmpeg(t *testing.T, sizes []int64) *[]ffmpegCall {
	t.Helper()
	calls := &[]ffmpegCall{}
	oldRun := runFFmpeg
	oldWait := cleanupWait
	runFFmpeg = func(_ context.Context, _ string, args []string) ([]byte, error) {
		idx := len(*calls)
		*calls = append(*calls, ffmpegCall{args: args})
		if idx >= len(sizes) {
			t.Fatalf("unexpected extra ffmpeg invocation %d", idx)
		}
		out := args[len(args)-1]
		return nil, os.WriteFile(out, make([]byte, sizes[idx]), 0o644)
	}
	cleanupWait = func() {}
	t.Cleanup(func() {
		runFFmpeg = oldRun
		cleanupWait = oldWait
	})
	return calls
}

func newTestEncoder(t *testing.T) (*Encoder, string, string) {
	t.Helper()
	cfg := config.Default()
	base := t.TempDir()
	frameDir := filepath.Join(base, "frames")
	if err := os.MkdirAll(frameDir, 0o755); err != nil {
		t.Fatalf("mkdir frames: %v", err)
	}
	outPath := filepath.Join(base, "digest.gif")
	return New(&cfg, logging.NewNop()), frameDir, outPath
}

func TestEncodeWithinBudgetSinglePass(t *testing.T) {
	encoder, frameDir, outPath := newTestEncoder(t)
	calls := stubFFmpeg(t, []int64{1024})

	got, err := encoder.Encode(context.Background(), frameDir, 126, 18, outPath, FormatGIF, 8<<20)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if got != outPath {
		t.Fatalf("returned path = %q, want %q", got, outPath)
	}
	if len(*calls) != 1 {
		t.Fatalf("ffmpeg invocations = %d, want 1", len(*calls))
	}
	if _, err := os.Stat(frameDir); !os.IsNotExist(err) {
		t.Fatal("frame directory not cleaned up")
	}
}

func TestOversizedOutputTriggersExactlyOneDowngrade(t *testing.T) {
	encoder, frameDir, outPath := newTestEncoder(t)
	// 9 MiB nominal against an 8 MiB budget, then a still-oversized second
	// pass: the second attempt is returned regardless.
	calls := stubFFmpeg(t, []int64{9 << 20, 9 << 20})

	got, err := encoder.Encode(context.Background(), frameDir, 126, 18, outPath, FormatGIF, 8<<20)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if got != outPath {
		t.Fatalf("returned path = %q, want second attempt at %q", got, outPath)
	}
	if len(*calls) != 2 {
		t.Fatalf("ffmpeg invocations = %d, want exactly 2", len(*calls))
	}

	nominal, reduced := (*calls)[0], (*calls)[1]
	if reduced.filterFPS(t) >= nominal.filterFPS(t) {
		t.Fatalf("downgrade fps %d not strictly below nominal %d", reduced.filterFPS(t), nominal.filterFPS(t))
	}
	if reduced.filterWidth(t) >= nominal.filterWidth(t) {
		t.Fatalf("downgrade width %d not strictly below nominal %d", reduced.filterWidth(t), nominal.filterWidth(t))
	}
}

func TestVideoDowngradeLowersBitrate(t *testing.T) {
	encoder, frameDir, _ := newTestEncoder(t)
	outPath := filepath.Join(filepath.Dir(frameDir), "digest.mp4")
	calls := stubFFmpeg(t, []int64{9 << 20, 1 << 20})

	if _, err := encoder.Encode(context.Background(), frameDir, 540, 18, outPath, FormatVideo, 8<<20); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	nominalRate, _ := strconv.ParseInt((*calls)[0].flag("-b:v"), 10, 64)
	reducedRate, _ := strconv.ParseInt((*calls)[1].flag("-b:v"), 10, 64)
	if reducedRate >= nominalRate {
		t.Fatalf("downgrade bitrate %d not strictly below nominal %d", reducedRate, nominalRate)
	}
}

func TestEncoderErrorCleansUpAndReturnsNoArtifact(t *testing.T) {
	encoder, frameDir, outPath := newTestEncoder(t)
	oldRun := runFFmpeg
	oldWait := cleanupWait
	runFFmpeg = func(context.Context, string, []string) ([]byte, error) {
		return []byte("boom"), errors.New("exit status 1")
	}
	cleanupWait = func() {}
	t.Cleanup(func() {
		runFFmpeg = oldRun
		cleanupWait = oldWait
	})

	got, err := encoder.Encode(context.Background(), frameDir, 10, 18, outPath, FormatGIF, 8<<20)
	if err == nil {
		t.Fatal("expected encoder error")
	}
	if got != "" {
		t.Fatalf("expected empty path on error, got %q", got)
	}
	if _, err := os.Stat(frameDir); !os.IsNotExist(err) {
		t.Fatal("frame directory not cleaned up after failure")
	}
}

func TestVideoBitrateFormula(t *testing.T) {
	cases := []struct {
		targetBytes int64
		duration    float64
		want        int64
	}{
		// 8 MiB over 16 seconds: within the 500kbps..8Mbps band.
		{8 << 20, 16, int64(float64(8<<20) * 8 / 16)},
		// Very long digest clamps to the floor.
		{8 << 20, 10_000, minVideoBitrate},
		// Very short digest clamps to the ceiling.
		{8 << 20, 0.5, maxVideoBitrate},
	}
	for _, tc := range cases {
		if got := videoBitrate(tc.targetBytes, tc.duration); got != tc.want {
			t.Errorf("videoBitrate(%d, %v) = %d, want %d", tc.targetBytes, tc.duration, got, tc.want)
		}
	}
}

func TestParseFormatAndExt(t *testing.T) {
	if ParseFormat("video") != FormatVideo || ParseFormat("gif") != FormatGIF || ParseFormat("") != FormatGIF {
		t.Fatal("ParseFormat mapping incorrect")
	}
	if Ext(FormatVideo) != ".mp4" || Ext(FormatGIF) != ".gif" {
		t.Fatal("Ext mapping incorrect")
	}
}
