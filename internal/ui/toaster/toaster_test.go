package toaster

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShowAndHide(t *testing.T) {
	m := New()
	assert.False(t, m.Visible())
	assert.Equal(t, "", m.View())

	m = m.Show("lead created", StyleSuccess)
	assert.True(t, m.Visible())
	assert.Contains(t, m.View(), "lead created")
	assert.Contains(t, m.View(), "✅")

	m = m.Hide()
	assert.False(t, m.Visible())
	assert.Equal(t, "", m.View())
}

// A dismiss timer from an earlier toast must not be able to hide a
// newer one: ids change per Show.
func TestShowAssignsFreshID(t *testing.T) {
	m := New().Show("first", StyleInfo)
	first := m.ID()
	assert.NotEmpty(t, first)

	m = m.Show("second", StyleInfo)
	assert.NotEqual(t, first, m.ID())
}

func TestStyleMarkers(t *testing.T) {
	tests := []struct {
		style  Style
		marker string
	}{
		{StyleSuccess, "✅"},
		{StyleError, "❌"},
		{StyleInfo, "ℹ️"},
		{StyleWarn, "⚠️"},
	}
	for _, tt := range tests {
		m := New().Show("msg", tt.style)
		assert.Contains(t, m.View(), tt.marker)
	}
}

func TestOverlayPlacesToast(t *testing.T) {
	bg := strings.TrimSuffix(strings.Repeat("background line\n", 10), "\n")
	m := New().Show("note", StyleInfo)

	out := m.Overlay(bg, 40, 10)
	assert.Contains(t, out, "note")
	assert.NotEqual(t, bg, out)

	// Hidden toast leaves the background untouched.
	assert.Equal(t, bg, m.Hide().Overlay(bg, 40, 10))
}
