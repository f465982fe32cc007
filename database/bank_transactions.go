package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kassa-labs/recon/internal/apierror"
	"github.com/kassa-labs/recon/model"
	"go.opentelemetry.io/otel"
)

const bankTransactionColumns = `id, tenant_id, date, amount, description, reference, matched, created_at`

// RecordBankTransaction inserts an imported bank statement line.
func (d Datasource) RecordBankTransaction(ctx context.Context, txn *model.BankTransaction) error {
	ctx, span := otel.Tracer("BankTransactions").Start(ctx, "Saving bank transaction to db")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO recon.bank_transactions (`+bankTransactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, txn.ID, txn.TenantID, txn.Date, int64(txn.Amount), txn.Description, txn.Reference, txn.Matched, txn.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return insertError(err, "bank transaction", txn.ID)
	}
	return nil
}

func (d Datasource) GetBankTransaction(ctx context.Context, tenantID, id string) (*model.BankTransaction, error) {
	ctx, span := otel.Tracer("BankTransactions").Start(ctx, "Fetching bank transaction from db")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+bankTransactionColumns+`
		FROM recon.bank_transactions
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	txn, err := scanBankTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: model.RecordBankTransaction, ID: id}
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch bank transaction", err)
	}
	return txn, nil
}

func (d Datasource) GetUnmatchedBankTransactions(ctx context.Context, tenantID string) ([]model.BankTransaction, error) {
	ctx, span := otel.Tracer("BankTransactions").Start(ctx, "Fetching unmatched bank transactions")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+bankTransactionColumns+`
		FROM recon.bank_transactions
		WHERE tenant_id = $1 AND matched = FALSE
		ORDER BY date, id
	`, tenantID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch unmatched bank transactions", err)
	}
	defer rows.Close()

	var txns []model.BankTransaction
	for rows.Next() {
		txn, err := scanBankTransaction(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan bank transaction", err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over bank transactions", err)
	}
	return txns, nil
}

func scanBankTransaction(row rowScanner) (*model.BankTransaction, error) {
	var txn model.BankTransaction
	var amount int64
	err := row.Scan(&txn.ID, &txn.TenantID, &txn.Date, &amount, &txn.Description, &txn.Reference, &txn.Matched, &txn.CreatedAt)
	if err != nil {
		return nil, err
	}
	txn.Amount = model.Amount(amount)
	return &txn, nil
}
