// Package takeover decides who owns the chat-list region: the host
// mirror (native) or the engine's virtualized list (extension). The
// transition is an explicit state machine so recovery from host churn
// can be tested against synthetic events.
package takeover

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maniya81/whatsapp-crm-extension/internal/log"
)

// State is the current owner of the list region.
type State string

const (
	// NativeControl shows the host's own list.
	NativeControl State = "native"
	// ExtensionControl shows the engine's virtualized list.
	ExtensionControl State = "extension"
)

// ErrGaveUp is returned when recovery exhausted its budget and the
// controller fell back to native control.
var ErrGaveUp = errors.New("takeover recovery gave up")

// Surface abstracts the list region being claimed. The UI implements it
// over the real layout; tests use a scriptable fake.
type Surface interface {
	// Claim takes over the region, hiding the native list.
	Claim() error
	// Release restores the native list.
	Release() error
	// Alive reports whether a previous claim is still intact. Host
	// churn can invalidate a claim at any time.
	Alive() bool
}

const (
	defaultMaxRetries  = 3
	defaultRetryDelay  = 100 * time.Millisecond
	defaultGiveUpAfter = 10 * time.Second
)

// Controller guards the state machine. All transitions go through it;
// there are no ad hoc flags.
type Controller struct {
	mu      sync.Mutex
	state   State
	surface Surface

	maxRetries  int
	retryDelay  time.Duration
	giveUpAfter time.Duration

	// impairedSince is the first failed recovery attempt of the current
	// outage, zero while healthy.
	impairedSince time.Time
}

// Option tunes recovery behavior.
type Option func(*Controller)

// WithRetries sets the per-churn reclaim attempt budget.
func WithRetries(n int) Option {
	return func(c *Controller) { c.maxRetries = n }
}

// WithRetryDelay sets the pause between reclaim attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Controller) { c.retryDelay = d }
}

// WithGiveUpAfter sets how long an outage may last before the controller
// stops retrying and falls back to native control.
func WithGiveUpAfter(d time.Duration) Option {
	return func(c *Controller) { c.giveUpAfter = d }
}

// New creates a controller in NativeControl.
func New(surface Surface, opts ...Option) *Controller {
	c := &Controller{
		state:       NativeControl,
		surface:     surface,
		maxRetries:  defaultMaxRetries,
		retryDelay:  defaultRetryDelay,
		giveUpAfter: defaultGiveUpAfter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current owner.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Activate transitions to ExtensionControl. A no-op when already active.
func (c *Controller) Activate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ExtensionControl {
		return nil
	}
	if err := c.surface.Claim(); err != nil {
		return fmt.Errorf("claiming list region: %w", err)
	}
	c.state = ExtensionControl
	c.impairedSince = time.Time{}
	log.Info(log.CatTakeover, "list region claimed")
	return nil
}

// Deactivate transitions back to NativeControl, releasing any claim.
// A no-op when already native.
func (c *Controller) Deactivate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == NativeControl {
		return nil
	}
	err := c.surface.Release()
	c.state = NativeControl
	c.impairedSince = time.Time{}
	if err != nil {
		return fmt.Errorf("releasing list region: %w", err)
	}
	log.Info(log.CatTakeover, "list region released")
	return nil
}

// HandleChurn is called when the host may have torn the claimed region
// down (reset events, layout rebuilds). While active it verifies the
// claim and re-runs the takeover with bounded retries. An outage that
// outlives the give-up window falls back to native control and returns
// ErrGaveUp; the overlay degrades, the host keeps working.
func (c *Controller) HandleChurn() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ExtensionControl {
		return nil
	}
	if c.surface.Alive() {
		c.impairedSince = time.Time{}
		return nil
	}

	if c.impairedSince.IsZero() {
		c.impairedSince = time.Now()
	}

	log.Warn(log.CatTakeover, "claim lost, attempting recovery")
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.surface.Claim(); err == nil {
			c.impairedSince = time.Time{}
			log.Info(log.CatTakeover, "claim recovered", "attempt", attempt)
			return nil
		}
		if attempt < c.maxRetries {
			time.Sleep(c.retryDelay)
		}
	}

	if time.Since(c.impairedSince) < c.giveUpAfter {
		// Budget left: stay in ExtensionControl and let the next churn
		// event retry.
		log.Warn(log.CatTakeover, "recovery attempts exhausted, will retry on next churn")
		return nil
	}

	_ = c.surface.Release()
	c.state = NativeControl
	c.impairedSince = time.Time{}
	log.Error(log.CatTakeover, "recovery gave up, falling back to native list")
	return ErrGaveUp
}
