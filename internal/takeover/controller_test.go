package takeover

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSurface scripts claim outcomes and records calls.
type fakeSurface struct {
	claims   int
	releases int
	failNext int // number of upcoming claims that fail
	alive    bool
	claimErr error
}

func (f *fakeSurface) Claim() error {
	f.claims++
	if f.failNext > 0 {
		f.failNext--
		if f.claimErr != nil {
			return f.claimErr
		}
		return errors.New("region unavailable")
	}
	f.alive = true
	return nil
}

func (f *fakeSurface) Release() error {
	f.releases++
	f.alive = false
	return nil
}

func (f *fakeSurface) Alive() bool { return f.alive }

func TestController_ActivateDeactivate(t *testing.T) {
	s := &fakeSurface{}
	c := New(s)

	require.Equal(t, NativeControl, c.State())
	require.NoError(t, c.Activate())
	assert.Equal(t, ExtensionControl, c.State())
	assert.Equal(t, 1, s.claims)

	require.NoError(t, c.Deactivate())
	assert.Equal(t, NativeControl, c.State())
	assert.Equal(t, 1, s.releases)
}

func TestController_DoubleToggleLeavesNoResidualClaim(t *testing.T) {
	s := &fakeSurface{}
	c := New(s)

	// Toggle on, toggle off: exactly one claim, one release, native state.
	require.NoError(t, c.Activate())
	require.NoError(t, c.Deactivate())

	assert.Equal(t, NativeControl, c.State())
	assert.Equal(t, s.claims, s.releases)
	assert.False(t, s.alive, "no residual claim on the surface")
}

func TestController_ActivateIsIdempotent(t *testing.T) {
	s := &fakeSurface{}
	c := New(s)

	require.NoError(t, c.Activate())
	require.NoError(t, c.Activate())
	assert.Equal(t, 1, s.claims)

	require.NoError(t, c.Deactivate())
	require.NoError(t, c.Deactivate())
	assert.Equal(t, 1, s.releases)
}

func TestController_ActivateFailureStaysNative(t *testing.T) {
	s := &fakeSurface{failNext: 1}
	c := New(s)

	err := c.Activate()
	require.Error(t, err)
	assert.Equal(t, NativeControl, c.State())
}

func TestController_ChurnRecoversClaim(t *testing.T) {
	s := &fakeSurface{}
	c := New(s, WithRetryDelay(time.Millisecond))
	require.NoError(t, c.Activate())

	// Host tears the region down.
	s.alive = true
	s.alive = false

	require.NoError(t, c.HandleChurn())
	assert.Equal(t, ExtensionControl, c.State())
	assert.True(t, s.alive)
	assert.Equal(t, 2, s.claims, "initial claim plus one recovery claim")
}

func TestController_ChurnRetriesBounded(t *testing.T) {
	s := &fakeSurface{}
	c := New(s, WithRetries(3), WithRetryDelay(time.Millisecond), WithGiveUpAfter(time.Hour))
	require.NoError(t, c.Activate())

	s.alive = false
	s.failNext = 2 // first two recovery attempts fail, third succeeds

	require.NoError(t, c.HandleChurn())
	assert.Equal(t, ExtensionControl, c.State())
	assert.Equal(t, 4, s.claims)
}

func TestController_GivesUpAfterTimeout(t *testing.T) {
	s := &fakeSurface{}
	c := New(s, WithRetries(2), WithRetryDelay(time.Millisecond), WithGiveUpAfter(time.Millisecond))
	require.NoError(t, c.Activate())

	s.alive = false
	s.failNext = 100 // everything fails

	// First churn starts the outage clock; attempts fail but budget remains.
	err := c.HandleChurn()
	if err == nil {
		// Outage now older than the give-up window; the next churn must
		// abandon rather than loop forever.
		time.Sleep(5 * time.Millisecond)
		err = c.HandleChurn()
	}

	assert.ErrorIs(t, err, ErrGaveUp)
	assert.Equal(t, NativeControl, c.State())
	assert.Equal(t, 1, s.releases, "give-up releases the surface once")
}

func TestController_ChurnNoopWhileNative(t *testing.T) {
	s := &fakeSurface{}
	c := New(s)

	require.NoError(t, c.HandleChurn())
	assert.Equal(t, 0, s.claims)
}

func TestController_ChurnNoopWhileAlive(t *testing.T) {
	s := &fakeSurface{}
	c := New(s)
	require.NoError(t, c.Activate())

	require.NoError(t, c.HandleChurn())
	assert.Equal(t, 1, s.claims, "healthy claim is left alone")
}
