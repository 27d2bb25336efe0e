package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maniya81/whatsapp-crm-extension/internal/crm"
)

func newTestRepo(t *testing.T) *LeadRepository {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewLeadRepository(db)
}

func sampleSnapshot(fetchedAt time.Time) *crm.Snapshot {
	stages := []crm.Stage{
		{Name: "New", Order: 0, Slug: "new"},
		{Name: "Interested", Order: 1, Slug: "interested"},
	}
	records := []crm.LeadRecord{
		{ID: "l1", StageSlug: "interested", DisplayName: "Acme",
			Phone: "919876543210", ConversationID: "919876543210@c.us"},
		{ID: "l2", StageSlug: "interested", DisplayName: "NoContact"},
	}
	return crm.SnapshotFromRecords(stages, records, fetchedAt)
}

func TestLeadRepository_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	fetchedAt := time.Now().Truncate(time.Second)

	require.NoError(t, repo.Save(sampleSnapshot(fetchedAt)))

	loaded, err := repo.Load()
	require.NoError(t, err)

	assert.Len(t, loaded.Leads, 2)
	assert.Equal(t, 1, loaded.Orphans)
	assert.Equal(t, fetchedAt.Unix(), loaded.FetchedAt.Unix())
	require.Len(t, loaded.Stages, 2)
	assert.Equal(t, "interested", loaded.Stages[1].Slug)

	rec, ok := loaded.Resolve("919876543210@c.us")
	require.True(t, ok)
	assert.Equal(t, "l1", rec.ID)
}

func TestLeadRepository_LoadEmpty(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Load()
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestLeadRepository_SaveReplacesWholesale(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.Save(sampleSnapshot(time.Now())))

	second := crm.SnapshotFromRecords(
		[]crm.Stage{{Name: "Won", Order: 1, Slug: "won"}},
		[]crm.LeadRecord{{ID: "l9", StageSlug: "won", DisplayName: "Only",
			Phone: "15550001111", ConversationID: "15550001111@c.us"}},
		time.Now(),
	)
	require.NoError(t, repo.Save(second))

	loaded, err := repo.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Leads, 1)
	assert.Equal(t, "l9", loaded.Leads[0].ID)
	require.Len(t, loaded.Stages, 1)
	assert.Equal(t, "won", loaded.Stages[0].Slug)
}

func TestLeadRepository_SkipsPartialSnapshots(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.Save(sampleSnapshot(time.Now())))

	partial := crm.SnapshotFromRecords(nil, nil, time.Now())
	partial.Partial = true
	require.NoError(t, repo.Save(partial))

	loaded, err := repo.Load()
	require.NoError(t, err)
	assert.Len(t, loaded.Leads, 2, "partial save must not clobber the last complete snapshot")
}
