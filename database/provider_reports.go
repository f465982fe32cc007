package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kassa-labs/recon/internal/apierror"
	"github.com/kassa-labs/recon/model"
	"github.com/wacul/ptr"
	"go.opentelemetry.io/otel"
)

const providerReportColumns = `id, tenant_id, provider, transaction_date, settlement_date, gross_amount, fees, net_amount, description, provider_transaction_id, matched, created_at`

// RecordProviderReport inserts a provider settlement report line.
func (d Datasource) RecordProviderReport(ctx context.Context, report *model.ProviderSettlementReport) error {
	ctx, span := otel.Tracer("ProviderReports").Start(ctx, "Saving provider report to db")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO recon.provider_reports (`+providerReportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, report.ID, report.TenantID, string(report.Provider), report.TransactionDate, report.SettlementDate,
		int64(report.GrossAmount), int64(report.Fees), int64(report.NetAmount), report.Description,
		report.ProviderTransactionID, report.Matched, report.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return insertError(err, "provider report", report.ID)
	}
	return nil
}

func (d Datasource) GetProviderReport(ctx context.Context, tenantID, id string) (*model.ProviderSettlementReport, error) {
	ctx, span := otel.Tracer("ProviderReports").Start(ctx, "Fetching provider report from db")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+providerReportColumns+`
		FROM recon.provider_reports
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	report, err := scanProviderReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: model.RecordProviderReport, ID: id}
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch provider report", err)
	}
	return report, nil
}

func (d Datasource) GetUnmatchedProviderReports(ctx context.Context, tenantID string) ([]model.ProviderSettlementReport, error) {
	ctx, span := otel.Tracer("ProviderReports").Start(ctx, "Fetching unmatched provider reports")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+providerReportColumns+`
		FROM recon.provider_reports
		WHERE tenant_id = $1 AND matched = FALSE
		ORDER BY transaction_date, id
	`, tenantID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch unmatched provider reports", err)
	}
	defer rows.Close()

	var reports []model.ProviderSettlementReport
	for rows.Next() {
		report, err := scanProviderReport(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan provider report", err)
		}
		reports = append(reports, *report)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over provider reports", err)
	}
	return reports, nil
}

// GetProviderReportStats aggregates the reports of a tenant per provider.
func (d Datasource) GetProviderReportStats(ctx context.Context, tenantID string) ([]model.ProviderSummary, error) {
	ctx, span := otel.Tracer("ProviderReports").Start(ctx, "Aggregating provider reports")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT provider,
			COUNT(*) FILTER (WHERE matched = FALSE),
			COUNT(*) FILTER (WHERE matched = TRUE),
			COALESCE(SUM(net_amount) FILTER (WHERE matched = FALSE), 0),
			COALESCE(SUM(net_amount) FILTER (WHERE matched = TRUE), 0),
			MAX(transaction_date)
		FROM recon.provider_reports
		WHERE tenant_id = $1
		GROUP BY provider
		ORDER BY provider
	`, tenantID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to aggregate provider reports", err)
	}
	defer rows.Close()

	var stats []model.ProviderSummary
	for rows.Next() {
		var s model.ProviderSummary
		var provider string
		var unmatchedNet, matchedNet int64
		var last sql.NullTime
		if err := rows.Scan(&provider, &s.UnmatchedReports, &s.MatchedReports, &unmatchedNet, &matchedNet, &last); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan provider stats", err)
		}
		s.Provider = model.Provider(provider)
		s.UnmatchedNet, s.MatchedNet = model.Amount(unmatchedNet), model.Amount(matchedNet)
		if last.Valid {
			s.LastTransactionAt = ptr.Time(last.Time)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over provider stats", err)
	}
	return stats, nil
}

func scanProviderReport(row rowScanner) (*model.ProviderSettlementReport, error) {
	var r model.ProviderSettlementReport
	var provider string
	var gross, fees, net int64
	var settlement sql.NullTime
	err := row.Scan(&r.ID, &r.TenantID, &provider, &r.TransactionDate, &settlement, &gross, &fees, &net,
		&r.Description, &r.ProviderTransactionID, &r.Matched, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Provider = model.Provider(provider)
	r.GrossAmount, r.Fees, r.NetAmount = model.Amount(gross), model.Amount(fees), model.Amount(net)
	if settlement.Valid {
		r.SettlementDate = ptr.Time(settlement.Time)
	}
	return &r, nil
}
