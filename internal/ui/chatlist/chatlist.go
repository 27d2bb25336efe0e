package chatlist

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/maniya81/whatsapp-crm-extension/internal/engine"
	"github.com/maniya81/whatsapp-crm-extension/internal/keys"
	"github.com/maniya81/whatsapp-crm-extension/internal/ui/styles"
)

// OpenConversationMsg is emitted when the user activates a row. The app
// forwards live rows to the host bridge; placeholder rows only toast.
type OpenConversationMsg struct {
	ConversationID string
	Placeholder    bool
}

// Model is the virtualized chat list for one bucket.
type Model struct {
	state *engine.EngineState
	keys  keys.KeyMap
	list  *VirtualList

	slug   string
	width  int
	height int
}

// New creates a chat list bound to the engine state.
func New(state *engine.EngineState) Model {
	return Model{
		state: state,
		keys:  keys.DefaultKeyMap(),
		list:  NewVirtualList(newBucketSource(nil)),
	}
}

// SetSize updates the component dimensions.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
	return m
}

// ShowBucket switches the list to another bucket slug.
func (m Model) ShowBucket(slug string) Model {
	m.slug = slug
	m.refreshSource()
	m.list.GotoTop()
	return m
}

// Slug returns the bucket currently displayed.
func (m Model) Slug() string { return m.slug }

// Mounted returns the number of synthesized rows, for the debug status.
func (m Model) Mounted() int { return m.list.MountedRows() }

// Metrics returns the row cache counters.
func (m Model) Metrics() CacheMetrics { return m.list.Metrics() }

// HandleRender applies a render invalidation. Row events re-synthesize
// one row; window and full events re-bind the source, keeping cached
// renders for rows whose content did not change.
func (m Model) HandleRender(ev engine.RenderEvent) Model {
	switch ev.Kind {
	case engine.RenderRow:
		m.list.InvalidateRow(ev.ConversationID)
	case engine.RenderWindow:
		if ev.ConversationID != "" {
			m.list.InvalidateRow(ev.ConversationID)
		}
		m.refreshSource()
	case engine.RenderFull:
		m.refreshSource()
	}
	return m
}

// refreshSource re-binds the list to a detached copy of the current
// bucket, taken under the state mutex so the repair path never mutates a
// slice the renderer is reading. The render cache survives the swap
// because rows are keyed by conversation id.
func (m *Model) refreshSource() {
	m.list.SetSource(newBucketSource(m.state.BucketCopy(m.slug)))
}

// Update handles navigation and row activation.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Up):
		m.list.CursorUp(1)
	case key.Matches(keyMsg, m.keys.Down):
		m.list.CursorDown(1)
	case key.Matches(keyMsg, m.keys.HalfPageUp):
		m.list.HalfPageUp()
	case key.Matches(keyMsg, m.keys.HalfPageDown):
		m.list.HalfPageDown()
	case key.Matches(keyMsg, m.keys.PageUp):
		m.list.PageUp()
	case key.Matches(keyMsg, m.keys.PageDown):
		m.list.PageDown()
	case key.Matches(keyMsg, m.keys.Top):
		m.list.GotoTop()
	case key.Matches(keyMsg, m.keys.Bottom):
		m.list.GotoBottom()
	case key.Matches(keyMsg, m.keys.Open):
		return m, m.openSelected()
	}
	return m, nil
}

func (m Model) openSelected() tea.Cmd {
	id := m.list.SelectedID()
	if id == "" {
		return nil
	}
	placeholder := false
	if b := m.state.BucketCopy(m.slug); b != nil {
		if at := b.IndexOf(id); at >= 0 {
			placeholder = b.Entries[at].IsPlaceholder()
		}
	}
	return func() tea.Msg {
		return OpenConversationMsg{ConversationID: id, Placeholder: placeholder}
	}
}

// SelectedID exposes the selected conversation id.
func (m Model) SelectedID() string { return m.list.SelectedID() }

// ScrollPercent exposes the scroll position for the status bar.
func (m Model) ScrollPercent() float64 { return m.list.ScrollPercent() }

// View renders the visible window.
func (m Model) View() string {
	if m.list.Total() == 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			styles.StatusBarStyle.Render("no conversations in this bucket"))
	}
	return m.list.Render()
}
