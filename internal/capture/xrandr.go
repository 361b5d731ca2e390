// SPDX-License-Identifier: MIT
package capture

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/screendiary/screendiary/internal/store"
)

var xrandrLine = regexp.MustCompile(`^(\S+)\s+connected\s+(?:primary\s+)?(\d+)x(\d+)\+(\d+)\+(\d+)`)

// Xrandr detects the display topology from `xrandr --query`.
type Xrandr struct {
	Bin string
}

// NewXrandr returns a TopologyDetector using the given binary ("xrandr" when
// empty).
func NewXrandr(bin string) *Xrandr {
	if bin == "" {
		bin = "xrandr"
	}
	return &Xrandr{Bin: bin}
}

// Monitors parses the connected outputs, ordered left to right and
// reindexed 0..n-1.
func (x *Xrandr) Monitors(ctx context.Context) ([]store.Monitor, error) {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cctx, x.Bin, "--query") // #nosec G204
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("xrandr: %w: %s", err, truncate(stderr.String(), 200))
	}
	return ParseXrandr(out.String()), nil
}

// ParseXrandr extracts monitors from raw xrandr --query output.
func ParseXrandr(output string) []store.Monitor {
	var monitors []store.Monitor
	for _, line := range bytes.Split([]byte(output), []byte("\n")) {
		m := xrandrLine.FindSubmatch(line)
		if m == nil {
			continue
		}
		w, _ := strconv.Atoi(string(m[2]))
		h, _ := strconv.Atoi(string(m[3]))
		x, _ := strconv.Atoi(string(m[4]))
		y, _ := strconv.Atoi(string(m[5]))
		monitors = append(monitors, store.Monitor{
			Name:   string(m[1]),
			Width:  w,
			Height: h,
			X:      x,
			Y:      y,
		})
	}
	sort.SliceStable(monitors, func(i, j int) bool { return monitors[i].X < monitors[j].X })
	for i := range monitors {
		monitors[i].Index = i
	}
	return monitors
}

// TopologyChanged reports whether any count, name or geometry differs.
func TopologyChanged(old, next []store.Monitor) bool {
	if len(old) != len(next) {
		return true
	}
	for i := range old {
		a, b := old[i], next[i]
		if a.Name != b.Name || a.Width != b.Width || a.Height != b.Height ||
			a.X != b.X || a.Y != b.Y {
			return true
		}
	}
	return false
}
