// SPDX-License-Identifier: MIT
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/renameio/v2"
	"golang.org/x/image/webp"
)

const encodeTimeout = 15 * time.Second

// FrameEncoder writes a single frame to disk and returns its byte size.
type FrameEncoder interface {
	Encode(ctx context.Context, img image.Image, path string, quality int) (int64, error)
}

// FFmpegWebPEncoder encodes stills to WebP by piping PNG through ffmpeg.
// The file lands atomically via a rename.
type FFmpegWebPEncoder struct {
	Bin string
}

// NewFFmpegWebPEncoder returns an encoder using the given ffmpeg binary
// ("ffmpeg" when empty).
func NewFFmpegWebPEncoder(bin string) *FFmpegWebPEncoder {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpegWebPEncoder{Bin: bin}
}

// Encode writes img as WebP at the given quality.
func (e *FFmpegWebPEncoder) Encode(ctx context.Context, img image.Image, path string, quality int) (int64, error) {
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return 0, fmt.Errorf("encode png intermediate: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, encodeTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, e.Bin, // #nosec G204
		"-hide_banner", "-loglevel", "error",
		"-f", "png_pipe", "-i", "-",
		"-frames:v", "1",
		"-c:v", "libwebp", "-quality", strconv.Itoa(quality),
		"-f", "image2pipe", "-",
	)
	cmd.Stdin = &pngBuf
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffmpeg webp encode: %w: %s", err, truncate(stderr.String(), 200))
	}
	if out.Len() == 0 {
		return 0, fmt.Errorf("ffmpeg webp encode: empty output")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return 0, err
	}
	if err := renameio.WriteFile(path, out.Bytes(), 0o640); err != nil {
		return 0, fmt.Errorf("write frame: %w", err)
	}
	return int64(out.Len()), nil
}

// PNGEncoder writes stills with the standard library, used when
// storage.format is "png".
type PNGEncoder struct{}

// Encode writes img as PNG; quality is ignored.
func (PNGEncoder) Encode(_ context.Context, img image.Image, path string, _ int) (int64, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return 0, fmt.Errorf("encode png: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return 0, err
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0o640); err != nil {
		return 0, fmt.Errorf("write frame: %w", err)
	}
	return int64(buf.Len()), nil
}

// Decode reads a PNG or WebP image from path.
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	switch filepath.Ext(path) {
	case ".webp":
		return webp.Decode(f)
	default:
		img, _, err := image.Decode(f)
		return img, err
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
