package database

import (
	"fmt"

	"github.com/kassa-labs/recon/model"
)

// participantTable returns the table holding records of the given kind.
func participantTable(kind model.RecordKind) (string, error) {
	switch kind {
	case model.RecordLedgerItem:
		return "recon.ledger_items", nil
	case model.RecordBankTransaction:
		return "recon.bank_transactions", nil
	case model.RecordProviderReport:
		return "recon.provider_reports", nil
	}
	return "", fmt.Errorf("unknown record kind %q", kind)
}

// amountColumn returns the column a participant of kind is compared on when
// matched against a counterpart. Provider reports count gross against sales
// and net against bank payouts.
func amountColumn(kind, counterpart model.RecordKind) string {
	if kind != model.RecordProviderReport {
		return "amount"
	}
	if counterpart == model.RecordLedgerItem {
		return "gross_amount"
	}
	return "net_amount"
}
