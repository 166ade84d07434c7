package encoding

import (
	"fmt"
	"os/exec"
	"path/filepath"
)

// FFmpegAvailable reports whether the ffmpeg binary can be resolved from PATH.
func FFmpegAvailable(binary string) (string, bool) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return binary, false
	}
	return path, true
}

func ffmpegArgs(frameDir string, inputFPS int, outPath string, format Format, p profile) []string {
	input := filepath.Join(frameDir, "frame_%05d.png")
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-framerate", fmt.Sprintf("%d", inputFPS),
		"-i", input,
	}

	switch format {
	case FormatGIF:
		filter := fmt.Sprintf(
			"fps=%d,scale=%d:-1:flags=lanczos,split[a][b];[a]palettegen=max_colors=%d[p];[b][p]paletteuse=dither=bayer",
			p.fps, p.width, p.paletteColors,
		)
		args = append(args, "-filter_complex", filter, "-loop", "0")
	default:
		filter := fmt.Sprintf("fps=%d,scale=%d:-2:flags=lanczos", p.fps, p.width)
		args = append(args,
			"-vf", filter,
			"-c:v", "libx264",
			"-b:v", fmt.Sprintf("%d", p.bitrate),
			"-pix_fmt", "yuv420p",
			"-movflags", "+faststart",
		)
	}

	return append(args, outPath)
}

// Ext returns the file extension for a format.
func Ext(format Format) string {
	if format == FormatVideo {
		return ".mp4"
	}
	return ".gif"
}

// ParseFormat maps a config string to a Format, defaulting to GIF.
func ParseFormat(value string) Format {
	if value == string(FormatVideo) {
		return FormatVideo
	}
	return FormatGIF
}
