// SPDX-License-Identifier: MIT
package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	xlog "github.com/screendiary/screendiary/internal/log"
)

// The probe loads a throwaway KWin script that prints the active window as a
// uniquely prefixed JSON line, then fishes that line out of the user journal.
const kwinScriptTemplate = `(function() {
    var w = workspace.activeWindow;
    if (w) {
        print("%s" + JSON.stringify({
            caption: w.caption || "",
            resourceClass: w.resourceClass || "",
            resourceName: w.resourceName || "",
            desktopFileName: w.desktopFileName || "",
            pid: w.pid || 0
        }));
    } else {
        print("%snull");
    }
})();`

const (
	kwinService   = "org.kde.KWin"
	kwinPath      = dbus.ObjectPath("/Scripting")
	kwinIface     = "org.kde.kwin.Scripting"
	probeTimeout  = 2 * time.Second
	journalWindow = "-3s"
)

// KWinProber reads the active window via KWin scripting over the session bus.
type KWinProber struct {
	conn          *dbus.Conn
	journalctlBin string
	log           zerolog.Logger
}

// NewKWinProber connects to the session bus lazily on first probe.
func NewKWinProber() *KWinProber {
	return &KWinProber{journalctlBin: "journalctl", log: xlog.WithComponent("window")}
}

func (p *KWinProber) bus() (*dbus.Conn, error) {
	if p.conn != nil {
		return p.conn, nil
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("session bus: %w", err)
	}
	p.conn = conn
	return conn, nil
}

// ActiveWindow probes KWin. It must succeed or give up within 2 s and never
// leaks the loaded script: stop/unload always run once loading succeeded.
func (p *KWinProber) ActiveWindow(ctx context.Context) (*WindowInfo, error) {
	cctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	conn, err := p.bus()
	if err != nil {
		p.log.Debug().Err(err).Str("event", "window.bus_unavailable").Msg("no session bus")
		return nil, nil
	}

	prefix := "SCREENDIARY_WINDOW:" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12] + ":"
	script := fmt.Sprintf(kwinScriptTemplate, prefix, prefix)

	tmp, err := os.CreateTemp("", "sd_kwin_*.js")
	if err != nil {
		return nil, fmt.Errorf("kwin script temp file: %w", err)
	}
	scriptPath := tmp.Name()
	defer func() { _ = os.Remove(scriptPath) }()
	if _, err := tmp.WriteString(script); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("write kwin script: %w", err)
	}
	_ = tmp.Close()

	var scriptID int32
	obj := conn.Object(kwinService, kwinPath)
	if err := obj.CallWithContext(cctx, kwinIface+".loadScript", 0, scriptPath).Store(&scriptID); err != nil {
		p.log.Debug().Err(err).Str("event", "window.load_failed").Msg("kwin loadScript failed")
		return nil, nil
	}
	defer p.unload(scriptID)

	scriptObj := conn.Object(kwinService, dbus.ObjectPath(fmt.Sprintf("/Scripting/Script%d", scriptID)))
	if err := scriptObj.CallWithContext(cctx, "org.kde.kwin.Script.run", 0).Err; err != nil {
		p.log.Debug().Err(err).Str("event", "window.run_failed").Msg("kwin script run failed")
		return nil, nil
	}

	// Give KWin a moment to flush the print into the journal.
	select {
	case <-time.After(50 * time.Millisecond):
	case <-cctx.Done():
		return nil, nil
	}

	line, ok := p.journalLine(cctx, prefix)
	if !ok {
		return nil, nil
	}

	payload := strings.TrimSpace(line[strings.Index(line, prefix)+len(prefix):])
	if payload == "null" {
		return nil, nil
	}
	var info WindowInfo
	if err := json.Unmarshal([]byte(payload), &info); err != nil {
		p.log.Debug().Str("event", "window.parse_failed").Str("payload", truncate(payload, 200)).Msg("bad kwin payload")
		return nil, nil
	}
	return &info, nil
}

// journalLine greps the user journal for the prefixed line, first in the
// kwin_wayland unit, then anywhere as a fallback.
func (p *KWinProber) journalLine(ctx context.Context, prefix string) (string, bool) {
	args := [][]string{
		{"--user", "-u", "plasma-kwin_wayland.service", "--since", journalWindow, "--no-pager", "-o", "cat", "--grep", prefix},
		{"--user", "--since", journalWindow, "--no-pager", "-o", "cat", "--grep", prefix},
	}
	for _, a := range args {
		cmd := exec.CommandContext(ctx, p.journalctlBin, a...) // #nosec G204
		var out bytes.Buffer
		cmd.Stdout = &out
		if err := cmd.Run(); err != nil {
			continue
		}
		for _, line := range strings.Split(out.String(), "\n") {
			if strings.Contains(line, prefix) {
				return line, true
			}
		}
	}
	return "", false
}

// unload stops and unloads a script by id, best-effort with its own timeout
// so shutdown of the probe cannot hang.
func (p *KWinProber) unload(scriptID int32) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	scriptObj := p.conn.Object(kwinService, dbus.ObjectPath(fmt.Sprintf("/Scripting/Script%d", scriptID)))
	_ = scriptObj.CallWithContext(ctx, "org.kde.kwin.Script.stop", 0).Err
	obj := p.conn.Object(kwinService, kwinPath)
	_ = obj.CallWithContext(ctx, kwinIface+".unloadScript", 0, strconv.Itoa(int(scriptID))).Err
}
