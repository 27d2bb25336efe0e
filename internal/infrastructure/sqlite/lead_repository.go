package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/maniya81/whatsapp-crm-extension/internal/crm"
)

// ErrNoSnapshot is returned by Load when the cache has never been written.
var ErrNoSnapshot = errors.New("no cached snapshot")

// leadColumns is the list of columns to select for lead queries.
const leadColumns = `id, stage_slug, display_name, phone, conversation_id`

// LeadRepository stores the most recent complete lead snapshot.
type LeadRepository struct {
	db *sql.DB
}

// NewLeadRepository creates a new LeadRepository instance.
func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// scanLead scans a row into a LeadModel.
func scanLead(scanner interface{ Scan(...any) error }) (LeadModel, error) {
	var model LeadModel
	err := scanner.Scan(
		&model.ID, &model.StageSlug, &model.DisplayName,
		&model.Phone, &model.ConversationID,
	)
	return model, err
}

// Save replaces the cached snapshot wholesale inside one transaction.
// Partial snapshots are never persisted; the last complete one stays.
func (r *LeadRepository) Save(snap *crm.Snapshot) error {
	if snap.Partial {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM leads`); err != nil {
		return fmt.Errorf("failed to clear leads: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM stages`); err != nil {
		return fmt.Errorf("failed to clear stages: %w", err)
	}

	insertLead, err := tx.Prepare(
		`INSERT INTO leads (` + leadColumns + `) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare lead insert: %w", err)
	}
	defer func() { _ = insertLead.Close() }()

	for _, rec := range snap.Leads {
		m := toLeadModel(rec)
		if _, err := insertLead.Exec(
			m.ID, m.StageSlug, m.DisplayName, m.Phone, m.ConversationID,
		); err != nil {
			return fmt.Errorf("failed to insert lead %s: %w", m.ID, err)
		}
	}

	for _, st := range snap.Stages {
		m := toStageModel(st)
		if _, err := tx.Exec(
			`INSERT INTO stages (slug, name, ord) VALUES (?, ?, ?)`,
			m.Slug, m.Name, m.Ord,
		); err != nil {
			return fmt.Errorf("failed to insert stage %s: %w", m.Slug, err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO snapshot_meta (id, fetched_at) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET fetched_at = excluded.fetched_at`,
		snap.FetchedAt.Unix(),
	); err != nil {
		return fmt.Errorf("failed to update snapshot meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot save: %w", err)
	}
	return nil
}

// Load rehydrates the cached snapshot with its join indexes rebuilt.
// Returns ErrNoSnapshot when nothing has been saved yet.
func (r *LeadRepository) Load() (*crm.Snapshot, error) {
	var fetchedAt int64
	err := r.db.QueryRow(`SELECT fetched_at FROM snapshot_meta WHERE id = 1`).Scan(&fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot meta: %w", err)
	}

	rows, err := r.db.Query(`SELECT slug, name, ord FROM stages ORDER BY ord`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stages []crm.Stage
	for rows.Next() {
		var m StageModel
		if err := rows.Scan(&m.Slug, &m.Name, &m.Ord); err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		stages = append(stages, m.toStage())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stages: %w", err)
	}

	leadRows, err := r.db.Query(`SELECT ` + leadColumns + ` FROM leads ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer func() { _ = leadRows.Close() }()

	var records []crm.LeadRecord
	for leadRows.Next() {
		m, err := scanLead(leadRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		records = append(records, m.toLeadRecord())
	}
	if err := leadRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leads: %w", err)
	}

	return crm.SnapshotFromRecords(stages, records, time.Unix(fetchedAt, 0)), nil
}
