package chatlist

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/maniya81/whatsapp-crm-extension/internal/engine"
	"github.com/maniya81/whatsapp-crm-extension/internal/ui/styles"
)

// bucketSource adapts a bucket to the virtual list.
type bucketSource struct {
	bucket *engine.Bucket
	now    func() time.Time
}

func newBucketSource(bucket *engine.Bucket) bucketSource {
	return bucketSource{bucket: bucket, now: time.Now}
}

func (s bucketSource) Len() int {
	if s.bucket == nil {
		return 0
	}
	return s.bucket.Len()
}

func (s bucketSource) RowID(i int) string {
	return s.bucket.Entries[i].ID
}

func (s bucketSource) RenderRow(i, width int, selected bool) string {
	return renderEntry(s.bucket.Entries[i], width, selected, s.now())
}

// renderEntry synthesizes one row: pin marker and name on the left,
// relative time and unread badge on the right, padded to width.
// Placeholder leads render dimmed with a ghost marker since there is no
// live chat behind them.
func renderEntry(e engine.Entry, width int, selected bool, now time.Time) string {
	if width <= 0 {
		return ""
	}

	var right string
	if ts := relTime(e.LastActivity(), now); ts != "" {
		right = styles.RowTimeStyle.Render(ts)
	}
	if n := e.Unread(); n > 0 {
		badge := styles.RowBadgeStyle.Render(strconv.Itoa(n))
		if right != "" {
			right += " "
		}
		right += badge
	}

	var left string
	name := e.DisplayName()
	switch {
	case e.IsPlaceholder():
		left = styles.RowGhostStyle.Render(runewidth.Truncate(name, maxNameWidth(width, right), "…") + " ⊘")
	case e.Pinned():
		left = styles.PinMarkerStyle.Render("📌 ") +
			styles.RowNameStyle.Render(runewidth.Truncate(name, maxNameWidth(width, right)-3, "…"))
	default:
		left = styles.RowNameStyle.Render(runewidth.Truncate(name, maxNameWidth(width, right), "…"))
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	line := left + strings.Repeat(" ", gap) + right

	if selected {
		return styles.RowSelectedStyle.Render(line)
	}
	return styles.RowStyle.Render(line)
}

// maxNameWidth leaves room for the right-hand column plus one gap cell.
func maxNameWidth(width int, right string) int {
	w := width - lipgloss.Width(right) - 1
	if w < 4 {
		w = 4
	}
	return w
}

// relTime compresses an activity timestamp into a short age marker.
func relTime(t time.Time, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return strconv.Itoa(int(d.Minutes())) + "m"
	case d < 24*time.Hour:
		return strconv.Itoa(int(d.Hours())) + "h"
	default:
		return strconv.Itoa(int(d.Hours()/24)) + "d"
	}
}
