// SPDX-License-Identifier: MIT

// Package archive moves cold frames into H.265 segments, enforces the
// storage budget and serves frames back from either tier.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	encodeTimeout  = 300 * time.Second
	extractTimeout = 10 * time.Second
)

// SegmentEncoder turns an ordered frame directory into one video file.
type SegmentEncoder interface {
	EncodeSegment(ctx context.Context, frameDir, outPath string, intervalSeconds int) error
}

// FrameExtractor pulls a single frame out of a segment as WebP bytes.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, segmentPath string, offsetMS int64) ([]byte, error)
}

// FFmpeg implements both sides of the segment lifecycle by shelling out.
type FFmpeg struct {
	Bin    string
	CRF    int
	Preset string
}

// NewFFmpeg builds the adapter ("ffmpeg" when bin is empty).
func NewFFmpeg(bin string, crf int, preset string) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpeg{Bin: bin, CRF: crf, Preset: preset}
}

// EncodeSegment encodes frameDir/frame_0000.webp.. into an H.265 file at
// outPath. One input frame per capture interval, so playback runs at the
// original capture rate. On failure the partial output is removed; a
// half-written segment must never be referenced.
func (f *FFmpeg) EncodeSegment(ctx context.Context, frameDir, outPath string, intervalSeconds int) error {
	cctx, cancel := context.WithTimeout(ctx, encodeTimeout)
	defer cancel()

	args := []string{
		"-y",
		"-framerate", fmt.Sprintf("1/%d", intervalSeconds),
		"-i", filepath.Join(frameDir, "frame_%04d.webp"),
		"-c:v", "libx265",
		"-crf", fmt.Sprintf("%d", f.CRF),
		"-preset", f.Preset,
		"-tag:v", "hvc1",
		"-pix_fmt", "yuv420p",
		outPath,
	}
	cmd := exec.CommandContext(cctx, f.Bin, args...) // #nosec G204
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(outPath)
		return fmt.Errorf("ffmpeg encode: %w: %s", err, lastLine(stderr.String()))
	}

	info, err := os.Stat(outPath)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(outPath)
		return fmt.Errorf("ffmpeg encode produced no output: %s", outPath)
	}
	return nil
}

// ExtractFrame seeks to the frame's offset and decodes exactly one frame as
// WebP onto stdout.
func (f *FFmpeg) ExtractFrame(ctx context.Context, segmentPath string, offsetMS int64) ([]byte, error) {
	cctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	args := []string{
		"-ss", fmt.Sprintf("%.3f", float64(offsetMS)/1000.0),
		"-i", segmentPath,
		"-frames:v", "1",
		"-c:v", "libwebp",
		"-quality", "80",
		"-f", "image2pipe",
		"-",
	}
	cmd := exec.CommandContext(cctx, f.Bin, args...) // #nosec G204
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg extract: %w: %s", err, lastLine(stderr.String()))
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg extract produced no frame at %dms in %s", offsetMS, segmentPath)
	}
	return out.Bytes(), nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	out := lines[len(lines)-1]
	if len(out) > 200 {
		out = out[:200]
	}
	return out
}
