package sqlite

import (
	"github.com/maniya81/whatsapp-crm-extension/internal/crm"
)

// LeadModel represents the database row for the leads table. Fields map
// directly to SQL columns.
type LeadModel struct {
	ID             string
	StageSlug      string
	DisplayName    string
	Phone          string
	ConversationID string
}

// toLeadModel converts a resolved lead record to its database row.
func toLeadModel(r crm.LeadRecord) LeadModel {
	return LeadModel{
		ID:             r.ID,
		StageSlug:      r.StageSlug,
		DisplayName:    r.DisplayName,
		Phone:          r.Phone,
		ConversationID: r.ConversationID,
	}
}

// toLeadRecord converts a database row back to the engine-facing record.
func (m LeadModel) toLeadRecord() crm.LeadRecord {
	return crm.LeadRecord{
		ID:             m.ID,
		StageSlug:      m.StageSlug,
		DisplayName:    m.DisplayName,
		Phone:          m.Phone,
		ConversationID: m.ConversationID,
	}
}

// StageModel represents the database row for the stages table.
type StageModel struct {
	Slug string
	Name string
	Ord  int
}

func toStageModel(s crm.Stage) StageModel {
	return StageModel{Slug: s.Slug, Name: s.Name, Ord: s.Order}
}

func (m StageModel) toStage() crm.Stage {
	return crm.Stage{Name: m.Name, Order: m.Ord, Slug: m.Slug}
}
