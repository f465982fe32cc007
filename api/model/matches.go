package model

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kassa-labs/recon/model"
)

type CommitMatch struct {
	SourceKind string   `json:"source_kind"`
	SourceID   string   `json:"source_id"`
	ItemKind   string   `json:"item_kind"`
	ItemIDs    []string `json:"item_ids"`
	Confidence float64  `json:"confidence"`
	MatchType  string   `json:"match_type"`
	MatchedBy  string   `json:"matched_by"`
}

type AutoMatch struct {
	Candidates []model.MatchCandidate `json:"candidates"`
	MatchedBy  string                 `json:"matched_by"`
}

type RunAutoMatch struct {
	MatchedBy string `json:"matched_by"`
}

type ReverseMatch struct {
	By string `json:"by"`
}

// ValidateCommitMatch checks the request shape. Pairing and count rules are
// enforced by the engine.
func (m *CommitMatch) ValidateCommitMatch() error {
	return validation.ValidateStruct(m,
		validation.Field(&m.SourceKind, validation.Required),
		validation.Field(&m.SourceID, validation.Required),
		validation.Field(&m.ItemKind, validation.Required),
		validation.Field(&m.ItemIDs, validation.Required),
		validation.Field(&m.MatchType, validation.Required),
		validation.Field(&m.Confidence, validation.Min(0.0), validation.Max(100.0)),
	)
}

func (m *CommitMatch) ToCommitRequest(tenantID string) model.CommitRequest {
	return model.CommitRequest{
		TenantID:   tenantID,
		SourceKind: model.RecordKind(m.SourceKind),
		SourceID:   m.SourceID,
		ItemKind:   model.RecordKind(m.ItemKind),
		ItemIDs:    m.ItemIDs,
		Confidence: m.Confidence,
		MatchType:  model.MatchType(m.MatchType),
		MatchedBy:  m.MatchedBy,
	}
}

func (a *AutoMatch) ValidateAutoMatch() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Candidates, validation.NotNil),
	)
}
