package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kassa-labs/recon/internal/apierror"
	"github.com/kassa-labs/recon/model"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
)

const ledgerItemColumns = `id, tenant_id, date, amount, description, kind, payment_method, provider_fee, net_amount, matched, created_at`

// RecordLedgerItem inserts a ledger item produced by an upstream business operation.
func (d Datasource) RecordLedgerItem(ctx context.Context, item *model.LedgerItem) error {
	ctx, span := otel.Tracer("LedgerItems").Start(ctx, "Saving ledger item to db")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO recon.ledger_items (`+ledgerItemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, item.ID, item.TenantID, item.Date, int64(item.Amount), item.Description, string(item.Kind),
		item.PaymentMethod, int64(item.ProviderFee), int64(item.NetAmount), item.Matched, item.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return insertError(err, "ledger item", item.ID)
	}
	return nil
}

// GetLedgerItem retrieves a ledger item of a tenant.
func (d Datasource) GetLedgerItem(ctx context.Context, tenantID, id string) (*model.LedgerItem, error) {
	ctx, span := otel.Tracer("LedgerItems").Start(ctx, "Fetching ledger item from db")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+ledgerItemColumns+`
		FROM recon.ledger_items
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	item, err := scanLedgerItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: model.RecordLedgerItem, ID: id}
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch ledger item", err)
	}
	return item, nil
}

// GetUnmatchedLedgerItems retrieves the unmatched ledger items of a tenant, oldest first.
func (d Datasource) GetUnmatchedLedgerItems(ctx context.Context, tenantID string) ([]model.LedgerItem, error) {
	ctx, span := otel.Tracer("LedgerItems").Start(ctx, "Fetching unmatched ledger items")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+ledgerItemColumns+`
		FROM recon.ledger_items
		WHERE tenant_id = $1 AND matched = FALSE
		ORDER BY date, id
	`, tenantID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch unmatched ledger items", err)
	}
	return collectLedgerItems(rows)
}

// GetUnmatchedSales retrieves the unmatched sales of a tenant, oldest first.
func (d Datasource) GetUnmatchedSales(ctx context.Context, tenantID string) ([]model.LedgerItem, error) {
	ctx, span := otel.Tracer("LedgerItems").Start(ctx, "Fetching unmatched sales")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+ledgerItemColumns+`
		FROM recon.ledger_items
		WHERE tenant_id = $1 AND matched = FALSE AND kind = $2
		ORDER BY date, id
	`, tenantID, string(model.LedgerKindSale))
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch unmatched sales", err)
	}
	return collectLedgerItems(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLedgerItem(row rowScanner) (*model.LedgerItem, error) {
	var item model.LedgerItem
	var amount, fee, net int64
	var kind string
	err := row.Scan(&item.ID, &item.TenantID, &item.Date, &amount, &item.Description, &kind,
		&item.PaymentMethod, &fee, &net, &item.Matched, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	item.Amount, item.ProviderFee, item.NetAmount = model.Amount(amount), model.Amount(fee), model.Amount(net)
	item.Kind = model.LedgerKind(kind)
	return &item, nil
}

func collectLedgerItems(rows *sql.Rows) ([]model.LedgerItem, error) {
	defer rows.Close()

	var items []model.LedgerItem
	for rows.Next() {
		item, err := scanLedgerItem(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan ledger item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over ledger items", err)
	}
	return items, nil
}

// insertError maps PostgreSQL insert failures onto API errors.
func insertError(err error, what, id string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("%s with ID '%s' already exists", what, id), err)
	}
	return apierror.NewAPIError(apierror.ErrInternalServer, fmt.Sprintf("Failed to save %s", what), err)
}
