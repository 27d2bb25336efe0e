// Package statusbar renders the single-line footer: connection state,
// lead snapshot health, and scroll position.
package statusbar

import (
	"fmt"
	"strings"
	"time"

	"github.com/maniya81/whatsapp-crm-extension/internal/ui/styles"
)

// Status is the data the bar renders. The app assembles it per frame.
type Status struct {
	Org           string
	BridgeUp      bool
	Leads         int
	Orphans       int
	SnapshotAge   time.Duration
	SnapshotStale bool
	ScrollPercent float64
	FilterActive  bool
	CacheHitRate  float64
	MountedRows   int
	Debug         bool
}

// Render produces the footer line, truncation left to the caller.
func Render(s Status) string {
	parts := make([]string, 0, 6)

	if s.BridgeUp {
		parts = append(parts, styles.StatusBarStyle.Render("host ✓"))
	} else {
		parts = append(parts, styles.StatusErrStyle.Render("host ✗"))
	}

	if s.Org != "" {
		parts = append(parts, styles.StatusBarStyle.Render("org "+s.Org))
	}

	leads := fmt.Sprintf("%d leads", s.Leads)
	if s.Orphans > 0 {
		leads += fmt.Sprintf(" (%d orphaned)", s.Orphans)
	}
	parts = append(parts, styles.StatusBarStyle.Render(leads))

	if s.SnapshotStale {
		parts = append(parts, styles.StatusStaleStyle.Render("stale "+shortAge(s.SnapshotAge)))
	} else if s.SnapshotAge > 0 {
		parts = append(parts, styles.StatusBarStyle.Render("synced "+shortAge(s.SnapshotAge)+" ago"))
	}

	if s.FilterActive {
		parts = append(parts, styles.StatusBarStyle.Render(fmt.Sprintf("%3.0f%%", s.ScrollPercent*100)))
	}

	if s.Debug {
		parts = append(parts, styles.StatusBarStyle.Render(
			fmt.Sprintf("rows=%d cache=%.0f%%", s.MountedRows, s.CacheHitRate)))
	}

	return strings.Join(parts, styles.StatusBarStyle.Render(" │ "))
}

func shortAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}
