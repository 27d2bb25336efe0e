package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain digits", "919876543210", "919876543210"},
		{"leading plus", "+91 98765 43210", "919876543210"},
		{"dashes and parens", "(91) 98765-43210", "919876543210"},
		{"leading zeros stripped", "0091 98765 43210", "919876543210"},
		{"letters dropped", "call 98765", "98765"},
		{"empty", "", ""},
		{"plus only", "+", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestSuffix(t *testing.T) {
	assert.Equal(t, "9876543210", Suffix("+91 98765 43210"))
	assert.Equal(t, "98765", Suffix("98765"))
	assert.Equal(t, "", Suffix(""))
}

func TestChatIDToPhone(t *testing.T) {
	assert.Equal(t, "919876543210", ChatIDToPhone("919876543210@c.us"))
	assert.Equal(t, "919876543210", ChatIDToPhone("919876543210"))
	assert.Equal(t, "", ChatIDToPhone("status@broadcast"))
}

func TestPhoneToChatID(t *testing.T) {
	assert.Equal(t, "919876543210@c.us", PhoneToChatID("+91 98765 43210"))
	assert.Equal(t, "", PhoneToChatID("no digits"))
}

func TestIndex_ExactMatch(t *testing.T) {
	ix := NewIndex[string]()
	ix.Put("+91 98765 43210", "lead-1")

	got, ok := ix.Get("919876543210")
	require.True(t, ok)
	assert.Equal(t, "lead-1", got)
}

func TestIndex_SuffixFallback(t *testing.T) {
	ix := NewIndex[string]()
	// Stored without country code, queried with one.
	ix.Put("98765 43210", "lead-1")

	got, ok := ix.Get("+91 98765 43210")
	require.True(t, ok)
	assert.Equal(t, "lead-1", got)
}

func TestIndex_ExactWinsOverSuffix(t *testing.T) {
	ix := NewIndex[string]()
	ix.Put("19876543210", "us-lead")
	ix.Put("919876543210", "in-lead")

	got, ok := ix.Get("919876543210")
	require.True(t, ok)
	assert.Equal(t, "in-lead", got)
}

func TestIndex_SuffixCollisionFirstWins(t *testing.T) {
	// Two different country codes, same last 10 digits. The fallback is
	// documented to return the first inserted record.
	ix := NewIndex[string]()
	ix.Put("19876543210", "first")
	ix.Put("449876543210", "second")

	got, ok := ix.Get("9876543210")
	require.True(t, ok)
	assert.Equal(t, "first", got)
}

func TestIndex_MissAndEmpty(t *testing.T) {
	ix := NewIndex[string]()
	ix.Put("", "ignored")

	_, ok := ix.Get("12345")
	assert.False(t, ok)
	assert.Equal(t, 0, ix.Len())
}
