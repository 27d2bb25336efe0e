// Package crm provides the REST client and lead ingestion layer for the
// CRM API. Leads are fetched in pages, joined against host conversations
// by chat id or normalized phone, and exposed as immutable snapshots.
package crm

import (
	"strings"
	"time"
)

// MaxPageSize is the server-side ceiling on leads per page. Requests must
// never exceed it; the server truncates or rejects larger values.
const MaxPageSize = 500

// Stage is a CRM pipeline stage. Order 0 marks the default inbox stage,
// which gets no bucket of its own.
type Stage struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
	Slug  string `json:"-"`
}

// IsDefault reports whether this is the CRM's catch-all stage.
func (s Stage) IsDefault() bool {
	return s.Order == 0
}

// SlugifyStage derives a stable bucket slug from a stage name:
// lowercased, runs of non-alphanumerics collapsed to single dashes.
func SlugifyStage(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// Lead is the wire representation of a CRM lead as returned by the API.
type Lead struct {
	ID       string   `json:"id"`
	Stage    string   `json:"stage"`
	WAChatID string   `json:"wa_chat_id,omitempty"`
	Business Business `json:"business"`
}

// Business carries the contact details attached to a lead.
type Business struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
}

// LeadsPage is one page of the paginated leads listing.
type LeadsPage struct {
	Items      []Lead `json:"items"`
	TotalPages int    `json:"total_pages"`
}

// LeadRecord is the engine-facing, immutable projection of a lead after
// join-key resolution. Records are replaced wholesale on every refresh;
// nothing mutates them in place.
type LeadRecord struct {
	ID             string
	StageSlug      string
	DisplayName    string
	Phone          string // normalized, "" when the lead carries no usable number
	ConversationID string // resolved join key, "" for orphaned leads
}

// Orphaned reports whether the lead could not be joined to any
// conversation: no stored chat id and no resolvable phone.
func (r LeadRecord) Orphaned() bool {
	return r.ConversationID == ""
}

// NewLeadInput is the payload for creating a lead (quick capture).
type NewLeadInput struct {
	Name     string `json:"name"`
	Mobile   string `json:"mobile"`
	Stage    string `json:"stage,omitempty"`
	WAChatID string `json:"wa_chat_id,omitempty"`
}

// UpdateLeadInput is the payload for moving a lead between stages.
type UpdateLeadInput struct {
	Stage string `json:"stage"`
}

// sinceWindow formats the rolling time-window lower bound for lead queries.
func sinceWindow(now time.Time, days int) string {
	return now.AddDate(0, 0, -days).UTC().Format(time.RFC3339)
}
