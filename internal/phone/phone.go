// Package phone normalizes and indexes phone numbers so CRM leads can be
// joined against host conversation ids regardless of formatting or
// country-code inconsistencies.
package phone

import "strings"

// suffixLen is the number of trailing digits compared when no exact
// normalized match exists. Ten digits absorbs inconsistent country-code
// usage between the CRM and the host.
const suffixLen = 10

// Normalize strips everything but digits and a leading "+", then strips
// leading zeros. The "+" itself is dropped from the result so "+91 98765"
// and "91-98765" normalize identically.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			continue
		}
	}
	return strings.TrimLeft(b.String(), "0")
}

// Suffix returns the last 10 digits of the normalized form, or the whole
// normalized number when shorter.
func Suffix(raw string) string {
	n := Normalize(raw)
	if len(n) <= suffixLen {
		return n
	}
	return n[len(n)-suffixLen:]
}

// ChatIDToPhone extracts the phone portion of a host conversation id such
// as "919876543210@c.us". Returns "" if the id carries no digits.
func ChatIDToPhone(chatID string) string {
	at := strings.IndexByte(chatID, '@')
	if at >= 0 {
		chatID = chatID[:at]
	}
	return Normalize(chatID)
}

// PhoneToChatID synthesizes a host conversation id from a phone number.
// Returns "" when the phone has no digits.
func PhoneToChatID(raw string) string {
	n := Normalize(raw)
	if n == "" {
		return ""
	}
	return n + "@c.us"
}

// Index maps normalized phone numbers to values of type V. Lookup tries an
// exact normalized match first and falls back to a last-10-digit suffix
// scan. The fallback is linear over insertion order and returns the first
// record whose suffix matches; when multiple entries share a suffix the
// winner is whichever was inserted first. That tie is a known ambiguity,
// not a guarantee.
type Index[V any] struct {
	exact map[string]V
	order []string
}

// NewIndex creates an empty phone index.
func NewIndex[V any]() *Index[V] {
	return &Index[V]{exact: make(map[string]V)}
}

// Put inserts a value keyed by the normalized form of raw.
// Numbers that normalize to "" are ignored.
func (ix *Index[V]) Put(raw string, v V) {
	n := Normalize(raw)
	if n == "" {
		return
	}
	if _, exists := ix.exact[n]; !exists {
		ix.order = append(ix.order, n)
	}
	ix.exact[n] = v
}

// Get looks up a raw phone number. Exact normalized match wins; otherwise
// the first entry (in insertion order) sharing the last 10 digits is
// returned.
func (ix *Index[V]) Get(raw string) (V, bool) {
	var zero V
	n := Normalize(raw)
	if n == "" {
		return zero, false
	}
	if v, ok := ix.exact[n]; ok {
		return v, true
	}

	want := n
	if len(want) > suffixLen {
		want = want[len(want)-suffixLen:]
	}
	for _, key := range ix.order {
		have := key
		if len(have) > suffixLen {
			have = have[len(have)-suffixLen:]
		}
		if have == want {
			return ix.exact[key], true
		}
	}
	return zero, false
}

// Len returns the number of indexed entries.
func (ix *Index[V]) Len() int {
	return len(ix.order)
}
