// SPDX-License-Identifier: MIT

// Package capture drives the periodic screenshot loop and the adapters it
// needs: full-screen capture, display topology, active-window identity and
// browser-domain resolution.
package capture

import (
	"context"
	"image"

	"github.com/screendiary/screendiary/internal/store"
)

// Screenshotter captures the full desktop. A nil image with nil error means
// the capture was deliberately skipped (e.g. the screenshot GUI is open).
type Screenshotter interface {
	Capture(ctx context.Context) (image.Image, error)
}

// TopologyDetector enumerates connected monitors ordered by x origin and
// reindexed 0..n-1.
type TopologyDetector interface {
	Monitors(ctx context.Context) ([]store.Monitor, error)
}

// WindowInfo is the active window identity reported by the compositor.
type WindowInfo struct {
	Caption       string `json:"caption"`
	ResourceClass string `json:"resourceClass"`
	ResourceName  string `json:"resourceName"`
	DesktopFile   string `json:"desktopFileName"`
	PID           int    `json:"pid"`
}

// WindowProber reads the active window. Returns nil without error when no
// window is focused or detection failed within its time budget.
type WindowProber interface {
	ActiveWindow(ctx context.Context) (*WindowInfo, error)
}

// DomainResolver maps a browser app class to the host of its most recently
// visited URL. Failures yield "".
type DomainResolver interface {
	IsBrowser(appClass string) bool
	Domain(appClass string) string
}
