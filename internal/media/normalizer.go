// Package media wraps the external media conversion utility.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// Normalizer converts arbitrary container/codec media into mono 16 kHz audio
// suitable for transcription.
type Normalizer interface {
	Normalize(ctx context.Context, src, dst string) error
}

// FFmpegNormalizer shells out to ffmpeg. The binary path is configurable so
// deployments can pin a specific build.
type FFmpegNormalizer struct {
	binary string
}

// NewFFmpegNormalizer creates a normalizer using the given ffmpeg binary.
// An empty path falls back to "ffmpeg" on PATH.
func NewFFmpegNormalizer(binary string) *FFmpegNormalizer {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegNormalizer{binary: binary}
}

// Normalize converts src into single-channel 16 kHz audio at dst, overwriting
// any previous output. ffmpeg's stderr tail is folded into the error since
// that is where it explains conversion failures.
func (n *FFmpegNormalizer) Normalize(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, n.binary,
		"-i", src,
		"-ac", "1",
		"-ar", "16000",
		"-y",
		dst,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Debug().Str("src", src).Str("dst", dst).Msg("Normalizing media")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg conversion failed: %w: %s", err, stderrTail(stderr.String()))
	}
	return nil
}

// stderrTail keeps the last few stderr lines; ffmpeg front-loads banner noise.
func stderrTail(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) > 4 {
		lines = lines[len(lines)-4:]
	}
	return strings.Join(lines, " | ")
}
