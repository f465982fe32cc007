package model

import "time"

// RecordKind names the store a match participant lives in.
type RecordKind string

const (
	RecordLedgerItem      RecordKind = "ledger_item"
	RecordBankTransaction RecordKind = "bank_transaction"
	RecordProviderReport  RecordKind = "provider_report"

	// KindMatch is used by NotFoundError for missing matches. It is not a participant kind.
	KindMatch RecordKind = "match"
)

func (k RecordKind) Valid() bool {
	switch k {
	case RecordLedgerItem, RecordBankTransaction, RecordProviderReport:
		return true
	}
	return false
}

// MatchType labels how the matched items relate to the source record.
type MatchType string

const (
	MatchTypeSingle       MatchType = "single"
	MatchTypeCombination  MatchType = "combination"
	MatchTypeProviderBulk MatchType = "provider_bulk"
)

func (t MatchType) Valid() bool {
	switch t {
	case MatchTypeSingle, MatchTypeCombination, MatchTypeProviderBulk:
		return true
	}
	return false
}

// Classification is the outcome of the auto-match policy for one candidate.
type Classification string

const (
	AutoMatchable  Classification = "auto_matchable"
	ReviewRequired Classification = "review_required"
	NotProposed    Classification = "not_proposed"
)

// Scores holds the sub-scores a confidence was computed from.
type Scores struct {
	AmountAccuracy   float64 `json:"amount_accuracy"`
	DateProximity    float64 `json:"date_proximity"`
	DescriptionMatch float64 `json:"description_match"`
	FinalScore       float64 `json:"final_score"`
}

// MatchCandidate is a proposed correspondence. It is never persisted.
type MatchCandidate struct {
	SourceID         string         `json:"source_id"`
	SourceKind       RecordKind     `json:"source_kind"`
	MatchedItemIDs   []string       `json:"matched_item_ids"`
	MatchedKind      RecordKind     `json:"matched_kind"`
	Confidence       float64        `json:"confidence"`
	MatchType        MatchType      `json:"match_type"`
	Reasons          []string       `json:"reasons"`
	AmountDifference Amount         `json:"amount_difference"`
	DaysDifference   int            `json:"days_difference"`
	Scores           Scores         `json:"scores"`
	Classification   Classification `json:"classification,omitempty"`
}

// Match is a committed reconciliation. A voided match keeps its row for the audit trail.
type Match struct {
	ID             int64      `json:"-"`
	MatchID        string     `json:"match_id"`
	TenantID       string     `json:"tenant_id"`
	SourceRecordID string     `json:"source_record_id"`
	SourceKind     RecordKind `json:"source_kind"`
	MatchedItemIDs []string   `json:"matched_item_ids"`
	MatchedKind    RecordKind `json:"matched_kind"`
	MatchType      MatchType  `json:"match_type"`
	Confidence     float64    `json:"confidence"`
	MatchedAt      time.Time  `json:"matched_at"`
	MatchedBy      string     `json:"matched_by"`
	VoidedAt       *time.Time `json:"voided_at,omitempty"`
	VoidedBy       string     `json:"voided_by,omitempty"`
}

// Active reports whether the match still holds its participants.
func (m *Match) Active() bool {
	return m.VoidedAt == nil
}

// CommitRequest asks the executor to persist a match.
type CommitRequest struct {
	TenantID   string     `json:"tenant_id"`
	SourceKind RecordKind `json:"source_kind"`
	SourceID   string     `json:"source_id"`
	ItemKind   RecordKind `json:"item_kind"`
	ItemIDs    []string   `json:"item_ids"`
	Confidence float64    `json:"confidence"`
	MatchType  MatchType  `json:"match_type"`
	MatchedBy  string     `json:"matched_by"`
}

// CommitPlan is a validated commit request together with the amount tolerance
// the store re-checks the participants against.
type CommitPlan struct {
	Match     *Match
	Tolerance Amount
}

// BulkDetection describes a bank credit recognised as a provider batch payout.
type BulkDetection struct {
	Provider                Provider  `json:"provider"`
	ReportIDs               []string  `json:"report_ids"`
	TotalNet                Amount    `json:"total_net"`
	Difference              Amount    `json:"difference"`
	Confidence              float64   `json:"confidence"`
	DetectedFromDescription bool      `json:"detected_from_description"`
	PeriodStart             time.Time `json:"period_start"`
	PeriodEnd               time.Time `json:"period_end"`
}

// BankSuggestion is the result of the bank matching pass for one bank transaction.
type BankSuggestion struct {
	Transaction   BankTransaction  `json:"transaction"`
	Candidates    []MatchCandidate `json:"candidates"`
	BulkDetection *BulkDetection   `json:"bulk_detection,omitempty"`
	State         string           `json:"state"`
}

// CandidateError records why a single candidate of an auto-match batch was not committed.
type CandidateError struct {
	SourceID string   `json:"source_id"`
	ItemIDs  []string `json:"item_ids"`
	Reason   string   `json:"reason"`
	Side     Side     `json:"side,omitempty"`
	Message  string   `json:"message"`
}

// AutoMatchResult reports the committed matches and the per-candidate failures of a batch.
type AutoMatchResult struct {
	MatchedPairs []Match          `json:"matched_pairs"`
	Errors       []CandidateError `json:"errors"`
}
