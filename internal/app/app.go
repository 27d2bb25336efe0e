// Package app contains the root application model.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/maniya81/whatsapp-crm-extension/internal/config"
	"github.com/maniya81/whatsapp-crm-extension/internal/crm"
	"github.com/maniya81/whatsapp-crm-extension/internal/engine"
	"github.com/maniya81/whatsapp-crm-extension/internal/host"
	hostbridge "github.com/maniya81/whatsapp-crm-extension/internal/host/bridge"
	"github.com/maniya81/whatsapp-crm-extension/internal/infrastructure/sqlite"
	"github.com/maniya81/whatsapp-crm-extension/internal/keys"
	"github.com/maniya81/whatsapp-crm-extension/internal/log"
	"github.com/maniya81/whatsapp-crm-extension/internal/phone"
	"github.com/maniya81/whatsapp-crm-extension/internal/pubsub"
	"github.com/maniya81/whatsapp-crm-extension/internal/takeover"
	"github.com/maniya81/whatsapp-crm-extension/internal/ui/chatlist"
	"github.com/maniya81/whatsapp-crm-extension/internal/ui/filterbar"
	"github.com/maniya81/whatsapp-crm-extension/internal/ui/logoverlay"
	"github.com/maniya81/whatsapp-crm-extension/internal/ui/statusbar"
	"github.com/maniya81/whatsapp-crm-extension/internal/ui/styles"
	"github.com/maniya81/whatsapp-crm-extension/internal/ui/toaster"
	"github.com/maniya81/whatsapp-crm-extension/internal/watcher"
)

// ConfigChangedMsg is emitted when the watched config file changes on disk.
type ConfigChangedMsg struct{}

// showToastMsg is the internal message commands return to surface a
// transient notice.
type showToastMsg struct {
	message string
	style   toaster.Style
}

// bridgeSurface adapts the host bridge to the takeover Surface: claiming
// the list region is an outbound command to the extension.
type bridgeSurface struct {
	bridge *hostbridge.Bridge
}

func (s bridgeSurface) Claim() error   { return s.bridge.ClaimList(context.Background()) }
func (s bridgeSurface) Release() error { return s.bridge.ReleaseList(context.Background()) }
func (s bridgeSurface) Alive() bool    { return s.bridge.Connected() }

// Model is the root application state.
type Model struct {
	cfg        config.Config
	configPath string
	reload     func() (config.Config, error)

	client   *crm.Client
	repo     *sqlite.LeadRepository
	registry *host.Registry
	bridge   *hostbridge.Bridge
	state    *engine.EngineState
	sched    *engine.Scheduler
	takeover *takeover.Controller
	loader   *swappableLoader

	chatlist   chatlist.Model
	filterbar  filterbar.Model
	toaster    toaster.Model
	logOverlay logoverlay.Model
	keys       keys.KeyMap

	width    int
	height   int
	showHelp bool

	debugMode      bool
	renderListener *pubsub.ContinuousListener[engine.RenderEvent]
	logListener    *log.LogListener
	watcherHandle  *watcher.Watcher
	watcherCh      <-chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWithConfig assembles the engine around a CRM client and an optional
// warm lead cache, starts the host bridge listener, and returns the root
// model. reload re-reads the config file; nil disables live reload.
func NewWithConfig(
	cfg config.Config,
	configPath string,
	client *crm.Client,
	repo *sqlite.LeadRepository,
	reload func() (config.Config, error),
	debugMode bool,
) (Model, error) {
	ctx, cancel := context.WithCancel(context.Background())

	registry := host.NewRegistry()
	bridge := hostbridge.New(hostbridge.Config{
		ListenAddr: cfg.Bridge.ListenAddr,
		Token:      cfg.Bridge.Token,
	}, registry)
	if err := bridge.Start(); err != nil {
		cancel()
		registry.Close()
		return Model{}, err
	}

	state := engine.NewEngineState()
	if repo != nil {
		if snap, err := repo.Load(); err == nil {
			state.SetSnapshot(snap)
			state.ReplaceBuckets(engine.Build(registry.List(), snap))
			log.Info(log.CatDB, "warm lead cache loaded",
				"leads", len(snap.Leads), "fetchedAt", snap.FetchedAt)
		} else if !errors.Is(err, sqlite.ErrNoSnapshot) {
			log.ErrorErr(log.CatDB, "warm lead cache unreadable", err)
		}
	}

	render := pubsub.NewBroker[engine.RenderEvent]()
	loader := newSwappableLoader(crm.NewLeadStore(client, cfg.API.WindowDays))
	persist := func(snap *crm.Snapshot) {
		if repo == nil {
			return
		}
		if err := repo.Save(snap); err != nil {
			log.ErrorErr(log.CatDB, "persisting lead snapshot", err)
		}
	}

	sched := engine.NewScheduler(state, loader, registry, render,
		cfg.FastInterval(), cfg.SlowInterval(), persist)
	ctrl := takeover.New(bridgeSurface{bridge: bridge})

	// Host churn first resyncs the data, then lets the takeover
	// controller fight for the surface on its own goroutine; HandleChurn
	// sleeps between reclaim attempts.
	onReset := func() {
		sched.Resync()
		go func() {
			if err := ctrl.HandleChurn(); err != nil {
				log.ErrorErr(log.CatTakeover, "takeover recovery failed", err)
			}
		}()
	}
	reactivity := engine.NewReactivityBridge(state, registry, render, onReset)

	go reactivity.Run(ctx)
	go sched.Run(ctx)

	m := Model{
		cfg:            cfg,
		configPath:     configPath,
		reload:         reload,
		client:         client,
		repo:           repo,
		registry:       registry,
		bridge:         bridge,
		state:          state,
		sched:          sched,
		takeover:       ctrl,
		loader:         loader,
		chatlist:       chatlist.New(state),
		filterbar:      filterbar.New(state),
		toaster:        toaster.New(),
		logOverlay:     logoverlay.New(),
		keys:           keys.DefaultKeyMap(),
		debugMode:      debugMode,
		renderListener: pubsub.NewContinuousListener(ctx, render),
		ctx:            ctx,
		cancel:         cancel,
	}

	if debugMode {
		m.logListener = log.NewListener(ctx)
	}

	if configPath != "" {
		if w, err := watcher.New(watcher.DefaultConfig(configPath)); err == nil {
			if ch, err := w.Start(); err == nil {
				m.watcherHandle = w
				m.watcherCh = ch
			} else {
				_ = w.Stop()
			}
		}
		// The app works fine without live reload; watcher failures are
		// not fatal.
	}

	return m, nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.renderListener.Listen()}
	if m.watcherCh != nil {
		cmds = append(cmds, m.watchConfigCmd())
	}
	if m.logListener != nil {
		cmds = append(cmds, m.logListener.Listen())
	}
	return tea.Batch(cmds...)
}

// watchConfigCmd waits for the next config change notification.
func (m Model) watchConfigCmd() tea.Cmd {
	ctx, ch := m.ctx, m.watcherCh
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			return ConfigChangedMsg{}
		}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chatlist = m.chatlist.SetSize(msg.Width, max(msg.Height-2, 0))
		m.filterbar = m.filterbar.SetSize(msg.Width)
		m.logOverlay.SetSize(msg.Width, msg.Height)
		return m, nil

	case log.LogEvent:
		if m.logListener == nil {
			return m, nil
		}
		m.logOverlay.Append(msg.Payload)
		return m, m.logListener.Listen()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case filterbar.FilterSelectedMsg:
		return m.applyFilter(msg.Slug)

	case chatlist.OpenConversationMsg:
		return m.openConversation(msg)

	case pubsub.Event[engine.RenderEvent]:
		m.chatlist = m.chatlist.HandleRender(msg.Payload)
		return m, m.renderListener.Listen()

	case ConfigChangedMsg:
		return m.handleConfigChanged()

	case showToastMsg:
		m.toaster = m.toaster.Show(msg.message, msg.style)
		return m, toaster.ScheduleDismiss(3*time.Second, m.toaster.ID())

	case toaster.DismissMsg:
		if msg.ID == m.toaster.ID() {
			m.toaster = m.toaster.Hide()
		}
		return m, nil

	case logoverlay.CloseMsg:
		m.logOverlay.Hide()
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.debugMode && msg.String() == "ctrl+x" {
		m.logOverlay.Toggle()
		return m, nil
	}
	if m.logOverlay.Visible() {
		var cmd tea.Cmd
		m.logOverlay, cmd = m.logOverlay.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.sched.Resync()
		m.toaster = m.toaster.Show("refreshing leads", toaster.StyleInfo)
		return m, toaster.ScheduleDismiss(3*time.Second, m.toaster.ID())

	case key.Matches(msg, m.keys.NewLead):
		return m, m.createLeadCmd()
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.filterbar, cmd = m.filterbar.Update(msg)
	cmds = append(cmds, cmd)

	if !m.state.Filter().None() {
		m.chatlist, cmd = m.chatlist.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// applyFilter switches the active bucket. An empty slug, or re-selecting
// the active one, hands the list region back to the host.
func (m Model) applyFilter(slug string) (tea.Model, tea.Cmd) {
	if slug == "" || slug == m.state.Filter().Active {
		m.state.ClearFilter()
		if err := m.takeover.Deactivate(); err != nil {
			log.ErrorErr(log.CatTakeover, "releasing list region", err)
		}
		return m, nil
	}

	m.state.ToggleFilter(slug)
	m.chatlist = m.chatlist.ShowBucket(slug)

	// A failed claim is not fatal: the engine's list still renders in
	// the TUI, only the host keeps its native region.
	if err := m.takeover.Activate(); err != nil {
		log.Warn(log.CatTakeover, "claim failed, host keeps native list", "error", err.Error())
		m.toaster = m.toaster.Show("host did not hand over the list", toaster.StyleWarn)
		return m, toaster.ScheduleDismiss(3*time.Second, m.toaster.ID())
	}
	return m, nil
}

func (m Model) openConversation(msg chatlist.OpenConversationMsg) (tea.Model, tea.Cmd) {
	if msg.Placeholder {
		m.toaster = m.toaster.Show("lead has no active conversation yet", toaster.StyleInfo)
		return m, toaster.ScheduleDismiss(3*time.Second, m.toaster.ID())
	}

	bridge, ctx := m.bridge, m.ctx
	return m, func() tea.Msg {
		if err := bridge.FocusConversation(ctx, msg.ConversationID); err != nil {
			return showToastMsg{"opening chat: " + err.Error(), toaster.StyleError}
		}
		return nil
	}
}

// createLeadCmd quick-captures the selected conversation as a CRM lead.
func (m Model) createLeadCmd() tea.Cmd {
	id := m.chatlist.SelectedID()
	if id == "" || m.state.Filter().None() {
		return nil
	}
	conv, ok := m.registry.Lookup(id)
	if !ok {
		return nil
	}
	if _, joined := m.state.Snapshot().Resolve(id); joined {
		return func() tea.Msg {
			return showToastMsg{"already a lead", toaster.StyleInfo}
		}
	}

	input := crm.NewLeadInput{
		Name:     conv.Name(),
		Mobile:   phone.ChatIDToPhone(id),
		WAChatID: id,
	}
	client, sched, parent := m.client, m.sched, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, 10*time.Second)
		defer cancel()
		lead, err := client.CreateLead(ctx, input)
		if err != nil {
			return showToastMsg{"creating lead: " + err.Error(), toaster.StyleError}
		}
		sched.Resync()
		log.Info(log.CatCRM, "lead captured", "id", lead.ID, "conversation", id)
		return showToastMsg{"lead created for " + input.Name, toaster.StyleSuccess}
	}
}

// handleConfigChanged re-reads the config file. An API change swaps the
// lead store and forces a resync; cadence changes need a restart.
func (m Model) handleConfigChanged() (tea.Model, tea.Cmd) {
	if m.reload == nil {
		return m, m.watchConfigCmd()
	}

	newCfg, err := m.reload()
	if err != nil {
		log.ErrorErr(log.CatConfig, "reloading config", err)
		m.toaster = m.toaster.Show("config reload failed: "+err.Error(), toaster.StyleError)
		return m, tea.Batch(
			m.watchConfigCmd(),
			toaster.ScheduleDismiss(3*time.Second, m.toaster.ID()),
		)
	}

	apiChanged := newCfg.API != m.cfg.API
	m.cfg = newCfg
	if apiChanged {
		log.Info(log.CatConfig, "api settings changed",
			"org", newCfg.API.OrgID, "windowDays", newCfg.API.WindowDays)
		m.client = crm.NewClient(newCfg.API.BaseURL, newCfg.API.OrgID, nil)
		m.loader.Swap(crm.NewLeadStore(m.client, newCfg.API.WindowDays))
		m.sched.Resync()
		m.toaster = m.toaster.Show("config reloaded, resyncing leads", toaster.StyleInfo)
		return m, tea.Batch(
			m.watchConfigCmd(),
			toaster.ScheduleDismiss(3*time.Second, m.toaster.ID()),
		)
	}
	return m, m.watchConfigCmd()
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	bodyHeight := max(m.height-2, 0)
	var body string
	switch {
	case m.showHelp:
		body = m.helpView(bodyHeight)
	case m.state.Filter().None():
		body = lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center,
			styles.StatusBarStyle.Render("native list active, press tab to filter by bucket"))
	default:
		body = m.chatlist.View()
	}

	view := m.filterbar.View() + "\n" + body
	if m.cfg.UI.ShowStatusBar {
		view += "\n" + statusbar.Render(m.status())
	}

	if m.toaster.Visible() {
		view = m.toaster.Overlay(view, m.width, m.height)
	}
	if m.debugMode && m.logOverlay.Visible() {
		view = m.logOverlay.Overlay(view)
	}
	return view
}

func (m Model) helpView(height int) string {
	bindings := []key.Binding{
		m.keys.Up, m.keys.Down, m.keys.HalfPageUp, m.keys.HalfPageDown,
		m.keys.Top, m.keys.Bottom,
		m.keys.NextFilter, m.keys.PrevFilter, m.keys.ClearFilter,
		m.keys.Open, m.keys.NewLead, m.keys.Refresh,
		m.keys.Help, m.keys.Quit,
	}
	var sb []byte
	for _, b := range bindings {
		h := b.Help()
		sb = append(sb, (h.Key + "  " + h.Desc + "\n")...)
	}
	text := wordwrap.String(string(sb), max(m.width-4, 20))
	return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, text)
}

func (m Model) status() statusbar.Status {
	s := statusbar.Status{
		Org:          m.cfg.API.OrgID,
		BridgeUp:     m.bridge.Connected(),
		FilterActive: !m.state.Filter().None(),
		Debug:        m.debugMode,
	}
	if snap := m.state.Snapshot(); snap != nil {
		s.Leads = len(snap.Leads)
		s.Orphans = snap.Orphans
		s.SnapshotAge = time.Since(snap.FetchedAt)
		s.SnapshotStale = snap.Partial || s.SnapshotAge > 2*m.cfg.SlowInterval()
	}
	if s.FilterActive {
		s.ScrollPercent = m.chatlist.ScrollPercent()
	}
	if m.debugMode {
		s.MountedRows = m.chatlist.Mounted()
		s.CacheHitRate = m.chatlist.Metrics().HitRate()
	}
	return s
}

// Close releases resources held by the application.
func (m *Model) Close() error {
	m.cancel()

	if m.watcherHandle != nil {
		if err := m.watcherHandle.Stop(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.bridge.Close(ctx); err != nil {
		return err
	}
	m.registry.Close()
	return nil
}
