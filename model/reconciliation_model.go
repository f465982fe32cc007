package model

import "time"

// LedgerKind classifies a ledger item by the business operation that produced it.
type LedgerKind string

const (
	LedgerKindSale               LedgerKind = "sale"
	LedgerKindExpense            LedgerKind = "expense"
	LedgerKindCashMovement       LedgerKind = "cash_movement"
	LedgerKindOwnerTransaction   LedgerKind = "owner_transaction"
	LedgerKindProviderSettlement LedgerKind = "provider_settlement"
)

// Valid reports whether k is one of the known ledger kinds.
func (k LedgerKind) Valid() bool {
	switch k {
	case LedgerKindSale, LedgerKindExpense, LedgerKindCashMovement, LedgerKindOwnerTransaction, LedgerKindProviderSettlement:
		return true
	}
	return false
}

// Provider is a card payment provider that settles sales in batches.
type Provider string

const (
	ProviderTwint Provider = "twint"
	ProviderSumUp Provider = "sumup"
)

// Providers lists every supported provider in a stable order.
var Providers = []Provider{ProviderTwint, ProviderSumUp}

func (p Provider) Valid() bool {
	return p == ProviderTwint || p == ProviderSumUp
}

// LedgerItem is an internal bookkeeping entry. Sales carry their payment method
// and the provider fee breakdown.
type LedgerItem struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	Date          time.Time  `json:"date"`
	Amount        Amount     `json:"amount"`
	Description   string     `json:"description"`
	Kind          LedgerKind `json:"kind"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	ProviderFee   Amount     `json:"provider_fee"`
	NetAmount     Amount     `json:"net_amount"`
	Matched       bool       `json:"matched"`
	CreatedAt     time.Time  `json:"created_at"`
}

// BankTransaction is one line of an imported bank statement.
// Positive amounts are credits, negative amounts are debits.
type BankTransaction struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Date        time.Time `json:"date"`
	Amount      Amount    `json:"amount"`
	Description string    `json:"description"`
	Reference   string    `json:"reference,omitempty"`
	Matched     bool      `json:"matched"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProviderSettlementReport is a single captured transaction as reported by a provider.
// NetAmount is taken from the report as given.
type ProviderSettlementReport struct {
	ID                    string     `json:"id"`
	TenantID              string     `json:"tenant_id"`
	Provider              Provider   `json:"provider"`
	TransactionDate       time.Time  `json:"transaction_date"`
	SettlementDate        *time.Time `json:"settlement_date,omitempty"`
	GrossAmount           Amount     `json:"gross_amount"`
	Fees                  Amount     `json:"fees"`
	NetAmount             Amount     `json:"net_amount"`
	// NetReported marks NetAmount as given by the provider, zero included.
	NetReported           bool       `json:"-"`
	Description           string     `json:"description,omitempty"`
	ProviderTransactionID string     `json:"provider_transaction_id,omitempty"`
	Matched               bool       `json:"matched"`
	CreatedAt             time.Time  `json:"created_at"`
}

// ProviderSummary aggregates the reconciliation state of one provider for a tenant.
type ProviderSummary struct {
	Provider          Provider `json:"provider"`
	UnmatchedReports  int      `json:"unmatched_reports"`
	MatchedReports    int      `json:"matched_reports"`
	UnmatchedNet      Amount   `json:"unmatched_net"`
	MatchedNet        Amount   `json:"matched_net"`
	UnmatchedSales    int      `json:"unmatched_sales"`
	AutoMatchable     int      `json:"auto_matchable"`
	ReviewRequired    int      `json:"review_required"`
	LastTransactionAt *time.Time `json:"last_transaction_at,omitempty"`
}

// AmountAgainst returns the report amount compared with a counterpart record:
// the gross amount against a sale, the net amount against a bank payout.
func (r ProviderSettlementReport) AmountAgainst(counterpart RecordKind) Amount {
	if counterpart == RecordLedgerItem {
		return r.GrossAmount
	}
	return r.NetAmount
}
