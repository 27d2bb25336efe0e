package crm

import (
	"context"
	"fmt"
	"time"

	"github.com/maniya81/whatsapp-crm-extension/internal/cachemanager"
	"github.com/maniya81/whatsapp-crm-extension/internal/log"
	"github.com/maniya81/whatsapp-crm-extension/internal/phone"
)

const (
	// stageCacheTTL bounds how stale the pipeline stage list may get.
	// Stages change rarely; leads refresh far more often.
	stageCacheTTL = 10 * time.Minute

	// defaultWindowDays is the rolling lead-fetch window.
	defaultWindowDays = 60

	// maxLeadPages is a hard stop against a server that keeps reporting
	// more pages than it serves.
	maxLeadPages = 200
)

// Snapshot is one immutable view of the CRM lead universe. Every refresh
// produces a fresh snapshot; consumers never see in-place mutation.
type Snapshot struct {
	Leads            []LeadRecord
	ByConversationID map[string]*LeadRecord
	Phones           *phone.Index[*LeadRecord]
	Stages           []Stage
	Orphans          int
	FetchedAt        time.Time
	Partial          bool
}

// Resolve finds the lead joined to a host conversation id, trying the
// direct chat-id join first and falling back to the phone index.
func (s *Snapshot) Resolve(conversationID string) (*LeadRecord, bool) {
	if s == nil {
		return nil, false
	}
	if rec, ok := s.ByConversationID[conversationID]; ok {
		return rec, true
	}
	p := phone.ChatIDToPhone(conversationID)
	if p == "" {
		return nil, false
	}
	return s.Phones.Get(p)
}

// LeadStore fetches leads page by page and builds join indexes over them.
// The stage list sits behind a read-through cache so repeated refreshes
// inside the TTL cost no extra round trips.
type LeadStore struct {
	client     *Client
	stageCache *cachemanager.ReadThroughCache[string, []Stage, struct{}]
	windowDays int
	pageSize   int
}

// NewLeadStore wires a LeadStore over a CRM client. windowDays <= 0 uses
// the default rolling window.
func NewLeadStore(client *Client, windowDays int) *LeadStore {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	stageCache := cachemanager.NewReadThroughCache(
		cachemanager.NewInMemoryCacheManager[string, []Stage](
			"crm-stages", cachemanager.DefaultExpiration, cachemanager.DefaultCleanupInterval),
		func(ctx context.Context, _ struct{}) ([]Stage, error) {
			return client.Stages(ctx)
		},
		false,
	)
	return &LeadStore{
		client:     client,
		stageCache: stageCache,
		windowDays: windowDays,
		pageSize:   MaxPageSize,
	}
}

// Stages returns the pipeline stages, served from cache within the TTL.
func (ls *LeadStore) Stages(ctx context.Context) ([]Stage, error) {
	return ls.stageCache.Get(ctx, "stages:"+ls.client.OrgID(), struct{}{}, stageCacheTTL)
}

// LoadAll fetches every lead page inside the rolling window and returns a
// snapshot with join indexes built. On a mid-pagination error the pages
// fetched so far are still indexed and returned, marked Partial, alongside
// the error. Pagination stops at TotalPages, on an empty page, or at the
// page cap.
func (ls *LeadStore) LoadAll(ctx context.Context) (*Snapshot, error) {
	stages, err := ls.Stages(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading stages: %w", err)
	}

	var (
		leads    []Lead
		fetchErr error
	)
	totalPages := 1
	for page := 1; page <= totalPages && page <= maxLeadPages; page++ {
		resp, err := ls.client.LeadsPage(ctx, page, ls.pageSize, ls.windowDays)
		if err != nil {
			fetchErr = fmt.Errorf("loading leads: %w", err)
			break
		}
		if len(resp.Items) == 0 {
			break
		}
		leads = append(leads, resp.Items...)
		if resp.TotalPages > totalPages {
			totalPages = resp.TotalPages
		}
	}

	snap := ls.buildSnapshot(stages, leads)
	snap.Partial = fetchErr != nil
	if fetchErr != nil {
		log.Warn(log.CatCRM, "partial lead snapshot",
			"leads", len(snap.Leads), "error", fetchErr.Error())
		return snap, fetchErr
	}

	log.Info(log.CatCRM, "lead snapshot loaded",
		"leads", len(snap.Leads), "orphans", snap.Orphans, "stages", len(stages))
	return snap, nil
}

// buildSnapshot resolves join keys and builds the lookup indexes. The
// stored chat id wins over a phone-derived one; a lead with neither is an
// orphan and appears in Leads but in no index.
func (ls *LeadStore) buildSnapshot(stages []Stage, leads []Lead) *Snapshot {
	records := make([]LeadRecord, 0, len(leads))
	for _, lead := range leads {
		rec := LeadRecord{
			ID:          lead.ID,
			StageSlug:   SlugifyStage(lead.Stage),
			DisplayName: lead.Business.Name,
			Phone:       phone.Normalize(lead.Business.Mobile),
		}
		switch {
		case lead.WAChatID != "":
			rec.ConversationID = lead.WAChatID
		case rec.Phone != "":
			rec.ConversationID = phone.PhoneToChatID(rec.Phone)
		}
		records = append(records, rec)
	}
	return SnapshotFromRecords(stages, records, time.Now())
}

// SnapshotFromRecords builds a snapshot's lookup indexes over resolved
// lead records. Used on the fresh-fetch path and when rehydrating the
// warm cache at startup.
func SnapshotFromRecords(stages []Stage, records []LeadRecord, fetchedAt time.Time) *Snapshot {
	snap := &Snapshot{
		Leads:            records,
		ByConversationID: make(map[string]*LeadRecord, len(records)),
		Phones:           phone.NewIndex[*LeadRecord](),
		Stages:           stages,
		FetchedAt:        fetchedAt,
	}

	// Index after the slice is final so pointers stay stable. When two
	// leads resolve to the same conversation id the first wins (fetch
	// order is deterministic) and the loser counts as an orphan.
	for i := range snap.Leads {
		rec := &snap.Leads[i]
		if rec.ConversationID == "" {
			snap.Orphans++
			continue
		}
		if _, dup := snap.ByConversationID[rec.ConversationID]; dup {
			snap.Orphans++
			continue
		}
		snap.ByConversationID[rec.ConversationID] = rec
		if rec.Phone != "" {
			snap.Phones.Put(rec.Phone, rec)
		}
	}

	return snap
}
