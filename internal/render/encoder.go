package render

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Timelapse policy: sparse source frames are read at a low input rate
// and encoded at a standard playback rate with a browser-compatible
// codec and pixel format. Policy constants, not derived values.
const (
	framePattern = "img-%04d.jpg"
	inputFPS     = "2"
	outputFPS    = "30"
)

// FFmpegEncoder assembles ordered frames into an mp4 by invoking ffmpeg
// as an external tool.
type FFmpegEncoder struct {
	path string
}

// NewFFmpegEncoder builds an encoder using the given ffmpeg binary path.
func NewFFmpegEncoder(path string) *FFmpegEncoder {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegEncoder{path: path}
}

// Encode renders framesDir/img-%04d.jpg into outputPath. The context
// bounds the external process.
func (e *FFmpegEncoder) Encode(ctx context.Context, framesDir, outputPath string) error {
	args := []string{
		"-y",
		"-framerate", inputFPS,
		"-i", filepath.Join(framesDir, framePattern),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", outputFPS,
		outputPath,
	}

	cmd := exec.CommandContext(ctx, e.path, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg encode: %w: %s", err, lastLine(out))
	}
	return nil
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
