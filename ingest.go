package recon

import (
	"context"

	"github.com/kassa-labs/recon/model"
	"github.com/sirupsen/logrus"
)

// RecordLedgerItem stores a ledger item produced by the point of sale or a
// cash flow. Sales without a net amount are stored with the amount net of the fee.
func (r *Recon) RecordLedgerItem(ctx context.Context, item *model.LedgerItem) (*model.LedgerItem, error) {
	ctx, span := tracer.Start(ctx, "RecordLedgerItem")
	defer span.End()

	if err := validateLedgerItem(item); err != nil {
		return nil, err
	}
	if item.Kind == model.LedgerKindSale && item.NetAmount == 0 {
		item.NetAmount = item.Amount - item.ProviderFee
	}
	item.Matched = false
	item.CreatedAt = r.now().UTC()

	if err := r.datasource.RecordLedgerItem(ctx, item); err != nil {
		return nil, logAndRecordError(span, "failed to record ledger item: ", err)
	}
	logrus.WithFields(logrus.Fields{"tenant": item.TenantID, "ledger_item": item.ID, "kind": item.Kind}).Debug("ledger item recorded")
	return item, nil
}

// RecordBankTransaction stores an imported bank statement line.
func (r *Recon) RecordBankTransaction(ctx context.Context, txn *model.BankTransaction) (*model.BankTransaction, error) {
	ctx, span := tracer.Start(ctx, "RecordBankTransaction")
	defer span.End()

	if err := validateBankTransaction(txn); err != nil {
		return nil, err
	}
	txn.Matched = false
	txn.CreatedAt = r.now().UTC()

	if err := r.datasource.RecordBankTransaction(ctx, txn); err != nil {
		return nil, logAndRecordError(span, "failed to record bank transaction: ", err)
	}
	logrus.WithFields(logrus.Fields{"tenant": txn.TenantID, "bank_transaction": txn.ID}).Debug("bank transaction recorded")
	return txn, nil
}

// RecordProviderReport stores one line of a provider settlement report.
// The net amount is kept as reported, zero included; it is only derived from
// gross and fees when the report omits it.
func (r *Recon) RecordProviderReport(ctx context.Context, report *model.ProviderSettlementReport) (*model.ProviderSettlementReport, error) {
	ctx, span := tracer.Start(ctx, "RecordProviderReport")
	defer span.End()

	if err := validateProviderReport(report); err != nil {
		return nil, err
	}
	if !report.NetReported && report.NetAmount == 0 {
		report.NetAmount = report.GrossAmount - report.Fees
	}
	report.Matched = false
	report.CreatedAt = r.now().UTC()

	if err := r.datasource.RecordProviderReport(ctx, report); err != nil {
		return nil, logAndRecordError(span, "failed to record provider report: ", err)
	}
	logrus.WithFields(logrus.Fields{"tenant": report.TenantID, "report": report.ID, "provider": report.Provider}).Debug("provider report recorded")
	return report, nil
}

// GetProviderReport returns a stored provider report with its current match state.
func (r *Recon) GetProviderReport(ctx context.Context, tenantID, id string) (*model.ProviderSettlementReport, error) {
	ctx, span := tracer.Start(ctx, "GetProviderReport")
	defer span.End()

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	if !idPattern.MatchString(id) {
		return nil, model.NewValidationError("provider_report_id", "malformed id")
	}
	report, err := r.datasource.GetProviderReport(ctx, tenantID, id)
	if err != nil {
		return nil, r.storeError(span, "load provider report", err)
	}
	return report, nil
}
