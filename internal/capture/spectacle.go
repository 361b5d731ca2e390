// SPDX-License-Identifier: MIT
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"

	"github.com/screendiary/screendiary/internal/imaging"
	xlog "github.com/screendiary/screendiary/internal/log"
)

const screenshotTimeout = 10 * time.Second

// Spectacle captures the full desktop by shelling out to the configured
// screenshot tool in background mode.
type Spectacle struct {
	Tool string
	log  zerolog.Logger
}

// NewSpectacle returns a Screenshotter for the given tool binary.
func NewSpectacle(tool string) *Spectacle {
	if tool == "" {
		tool = "spectacle"
	}
	return &Spectacle{Tool: tool, log: xlog.WithComponent("screenshot")}
}

// Capture grabs a full-screen frame. It returns (nil, nil) when the user has
// the screenshot GUI open, to avoid contending with interactive use, and
// validates the output file for non-zero size before decoding.
func (s *Spectacle) Capture(ctx context.Context) (image.Image, error) {
	if s.guiRunning(ctx) {
		s.log.Debug().Str("event", "capture.skipped_gui").Msg("screenshot GUI open, skipping tick")
		return nil, nil
	}

	tmp, err := os.CreateTemp("", "screendiary_*.png")
	if err != nil {
		return nil, fmt.Errorf("screenshot temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	cctx, cancel := context.WithTimeout(ctx, screenshotTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, s.Tool, // #nosec G204
		"--background", "--nonotify", "--fullscreen", "--output", tmpPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", s.Tool, err, truncate(stderr.String(), 200))
	}

	info, err := os.Stat(tmpPath)
	if err != nil || info.Size() == 0 {
		// The tool occasionally produces empty files when contended.
		return nil, fmt.Errorf("screenshot output empty: %s", tmpPath)
	}

	img, err := imaging.Decode(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

// guiRunning detects a user-owned interactive instance of the tool.
func (s *Spectacle) guiRunning(ctx context.Context) bool {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := exec.CommandContext(cctx, "pgrep", "-x", s.Tool).Run() // #nosec G204
	return err == nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
