// Package filterbar renders the bucket tabs and drives filter selection.
package filterbar

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/maniya81/whatsapp-crm-extension/internal/engine"
	"github.com/maniya81/whatsapp-crm-extension/internal/keys"
	"github.com/maniya81/whatsapp-crm-extension/internal/ui/styles"
)

// nativeTab is the pseudo-tab for the host's own list (no filter).
const nativeTab = "native"

// FilterSelectedMsg is emitted when the user lands on a tab. An empty
// slug means no filter: the native list owns the region again.
type FilterSelectedMsg struct {
	Slug string
}

// Model renders the tab row. Selection state lives in the engine; the
// bar only reads it.
type Model struct {
	state *engine.EngineState
	keys  keys.KeyMap
	width int
}

// New creates a filter bar over the engine state.
func New(state *engine.EngineState) Model {
	return Model{state: state, keys: keys.DefaultKeyMap()}
}

// SetSize updates the bar width.
func (m Model) SetSize(width int) Model {
	m.width = width
	return m
}

// Update cycles tabs on filter navigation keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.NextFilter):
		return m, m.selectCmd(m.step(1))
	case key.Matches(keyMsg, m.keys.PrevFilter):
		return m, m.selectCmd(m.step(-1))
	case key.Matches(keyMsg, m.keys.ClearFilter):
		if !m.state.Filter().None() {
			return m, m.selectCmd("")
		}
	}
	return m, nil
}

func (m Model) selectCmd(slug string) tea.Cmd {
	return func() tea.Msg {
		return FilterSelectedMsg{Slug: slug}
	}
}

// step returns the slug dir tabs away from the active one. The tab ring
// is native followed by the bucket order.
func (m Model) step(dir int) string {
	tabs := m.state.Tabs()
	if tabs == nil {
		return ""
	}
	ring := make([]string, 0, len(tabs)+1)
	ring = append(ring, nativeTab)
	for _, tab := range tabs {
		ring = append(ring, tab.Slug)
	}

	current := 0
	if active := m.state.Filter().Active; active != "" {
		for i, slug := range ring {
			if slug == active {
				current = i
				break
			}
		}
	}

	next := (current + dir + len(ring)) % len(ring)
	if ring[next] == nativeTab {
		return ""
	}
	return ring[next]
}

// View renders one line of tabs with live bucket counts.
func (m Model) View() string {
	active := m.state.Filter().Active

	var sb strings.Builder
	if active == "" {
		sb.WriteString(styles.TabActiveStyle.Render("Native"))
	} else {
		sb.WriteString(styles.TabStyle.Render("Native"))
	}

	for _, tab := range m.state.Tabs() {
		label := tab.Name + " " + styles.TabCountStyle.Render(strconv.Itoa(tab.Size))
		if tab.Slug == active {
			sb.WriteString(styles.TabActiveStyle.Render(label))
		} else {
			sb.WriteString(styles.TabStyle.Render(label))
		}
	}
	return sb.String()
}
