/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kassa-labs/recon/internal/apierror"
	"github.com/kassa-labs/recon/model"
	"github.com/lib/pq"
	"github.com/wacul/ptr"
	"go.opentelemetry.io/otel"
)

const matchColumns = `id, match_id, tenant_id, source_record_id, source_kind, matched_item_ids, matched_kind, match_type, confidence, matched_at, matched_by, voided_at, voided_by`

// CommitMatch locks every participant, claims the source and the items with
// conditional updates, re-checks the amounts and writes the match, all in one
// transaction. Any conflict rolls the whole transaction back so no participant
// is left half matched. A deadlock or serialization failure comes back as a
// retry conflict.
func (d Datasource) CommitMatch(ctx context.Context, plan model.CommitPlan) error {
	ctx, span := otel.Tracer("Matches").Start(ctx, "Committing match")
	defer span.End()

	m := plan.Match
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := lockParticipants(ctx, tx, m); err != nil {
		span.RecordError(err)
		return retryable(err, m)
	}

	sourceAmount, err := claimSource(ctx, tx, m)
	if err != nil {
		span.RecordError(err)
		return retryable(err, m)
	}

	itemAmounts, err := claimItems(ctx, tx, m)
	if err != nil {
		span.RecordError(err)
		return retryable(err, m)
	}

	sum := model.Sum(itemAmounts...)
	if (sum - sourceAmount).Abs() > plan.Tolerance {
		return model.NewAmountDrift(model.SideItem, sourceAmount, sum, m.MatchedItemIDs...)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO recon.matches (match_id, tenant_id, source_record_id, source_kind, matched_item_ids, matched_kind, match_type, confidence, matched_at, matched_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, m.MatchID, m.TenantID, m.SourceRecordID, string(m.SourceKind), pq.Array(m.MatchedItemIDs),
		string(m.MatchedKind), string(m.MatchType), m.Confidence, m.MatchedAt, m.MatchedBy).Scan(&m.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return model.NewAlreadyMatched(model.SideSource, m.SourceRecordID)
		}
		return retryable(apierror.NewAPIError(apierror.ErrInternalServer, "Failed to save match", err), m)
	}

	if err := tx.Commit(); err != nil {
		return retryable(apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit match", err), m)
	}
	return nil
}

// lockParticipants takes the row locks of the source and the items up front,
// table by table in name order and by id within a table, so two commits over
// overlapping records wait on each other instead of deadlocking.
func lockParticipants(ctx context.Context, tx *sql.Tx, m *model.Match) error {
	sourceTable, err := participantTable(m.SourceKind)
	if err != nil {
		return model.NewValidationError("source_kind", err.Error())
	}
	itemTable, err := participantTable(m.MatchedKind)
	if err != nil {
		return model.NewValidationError("item_kind", err.Error())
	}

	ids := map[string][]string{sourceTable: {m.SourceRecordID}}
	ids[itemTable] = append(ids[itemTable], m.MatchedItemIDs...)
	tables := make([]string, 0, len(ids))
	for table := range ids {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		rows, err := tx.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE tenant_id = $1 AND id = ANY($2) ORDER BY id FOR UPDATE`, table),
			m.TenantID, pq.Array(ids[table]))
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock participants", err)
		}
		for rows.Next() {
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock participants", err)
		}
	}
	return nil
}

// retryable turns the deadlock and serialization failures Postgres aborts a
// transaction with into a retry conflict. Other errors pass through.
func retryable(err error, m *model.Match) error {
	cause := err
	var apiErr apierror.APIError
	if errors.As(err, &apiErr) {
		if inner, ok := apiErr.Details.(error); ok {
			cause = inner
		}
	}
	var pqErr *pq.Error
	if !errors.As(cause, &pqErr) {
		return err
	}
	switch pqErr.Code.Name() {
	case "deadlock_detected", "serialization_failure":
		return model.NewRetry(model.SideSource, append([]string{m.SourceRecordID}, m.MatchedItemIDs...)...)
	}
	return err
}

func claimSource(ctx context.Context, tx *sql.Tx, m *model.Match) (model.Amount, error) {
	table, err := participantTable(m.SourceKind)
	if err != nil {
		return 0, model.NewValidationError("source_kind", err.Error())
	}

	var amount int64
	query := fmt.Sprintf(`UPDATE %s SET matched = TRUE WHERE tenant_id = $1 AND id = $2 AND matched = FALSE RETURNING %s`,
		table, amountColumn(m.SourceKind, m.MatchedKind))
	err = tx.QueryRowContext(ctx, query, m.TenantID, m.SourceRecordID).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE tenant_id = $1 AND id = $2)`, table),
			m.TenantID, m.SourceRecordID).Scan(&exists)
		if err != nil {
			return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to look up source record", err)
		}
		if !exists {
			return 0, &model.NotFoundError{Kind: m.SourceKind, ID: m.SourceRecordID}
		}
		return 0, model.NewAlreadyMatched(model.SideSource, m.SourceRecordID)
	}
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to claim source record", err)
	}
	return model.Amount(amount), nil
}

func claimItems(ctx context.Context, tx *sql.Tx, m *model.Match) ([]model.Amount, error) {
	table, err := participantTable(m.MatchedKind)
	if err != nil {
		return nil, model.NewValidationError("item_kind", err.Error())
	}

	query := fmt.Sprintf(`UPDATE %s SET matched = TRUE WHERE tenant_id = $1 AND id = ANY($2) AND matched = FALSE RETURNING id, %s`,
		table, amountColumn(m.MatchedKind, m.SourceKind))
	rows, err := tx.QueryContext(ctx, query, m.TenantID, pq.Array(m.MatchedItemIDs))
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to claim matched items", err)
	}
	defer rows.Close()

	claimed := make(map[string]bool, len(m.MatchedItemIDs))
	amounts := make([]model.Amount, 0, len(m.MatchedItemIDs))
	for rows.Next() {
		var id string
		var amount int64
		if err := rows.Scan(&id, &amount); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan claimed item", err)
		}
		claimed[id] = true
		amounts = append(amounts, model.Amount(amount))
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while claiming items", err)
	}

	var missing []string
	for _, id := range m.MatchedItemIDs {
		if !claimed[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return amounts, nil
	}
	return nil, missingItemsError(ctx, tx, table, m.TenantID, m.MatchedKind, missing)
}

// missingItemsError tells apart items that do not exist from items another match holds.
func missingItemsError(ctx context.Context, tx *sql.Tx, table, tenantID string, kind model.RecordKind, missing []string) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE tenant_id = $1 AND id = ANY($2)`, table),
		tenantID, pq.Array(missing))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to look up matched items", err)
	}
	defer rows.Close()

	existing := make(map[string]bool, len(missing))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan matched item", err)
		}
		existing[id] = true
	}
	for _, id := range missing {
		if !existing[id] {
			return &model.NotFoundError{Kind: kind, ID: id}
		}
	}
	return model.NewAlreadyMatched(model.SideItem, missing...)
}

// ReverseMatch voids an active match and releases its participants.
func (d Datasource) ReverseMatch(ctx context.Context, tenantID, matchID, voidedBy string, voidedAt time.Time) (*model.Match, error) {
	ctx, span := otel.Tracer("Matches").Start(ctx, "Reversing match")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx, `
		UPDATE recon.matches SET voided_at = $3, voided_by = $4
		WHERE tenant_id = $1 AND match_id = $2 AND voided_at IS NULL
		RETURNING `+matchColumns, tenantID, matchID, voidedAt, voidedBy)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		err = tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM recon.matches WHERE tenant_id = $1 AND match_id = $2)`,
			tenantID, matchID).Scan(&exists)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to look up match", err)
		}
		if !exists {
			return nil, &model.NotFoundError{Kind: model.KindMatch, ID: matchID}
		}
		return nil, &model.ConflictError{Reason: model.ReasonAlreadyVoided, Side: model.SideSource, RecordIDs: []string{matchID}}
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to void match", err)
	}

	if err := release(ctx, tx, m); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit reversal", err)
	}
	return m, nil
}

func release(ctx context.Context, tx *sql.Tx, m *model.Match) error {
	sourceTable, err := participantTable(m.SourceKind)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Corrupt match source kind", err)
	}
	itemTable, err := participantTable(m.MatchedKind)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Corrupt match item kind", err)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET matched = FALSE WHERE tenant_id = $1 AND id = $2`, sourceTable),
		m.TenantID, m.SourceRecordID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to release source record", err)
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET matched = FALSE WHERE tenant_id = $1 AND id = ANY($2)`, itemTable),
		m.TenantID, pq.Array(m.MatchedItemIDs))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to release matched items", err)
	}
	return nil
}

// GetMatch retrieves a match, voided or not.
func (d Datasource) GetMatch(ctx context.Context, tenantID, matchID string) (*model.Match, error) {
	ctx, span := otel.Tracer("Matches").Start(ctx, "Fetching match from db")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+matchColumns+`
		FROM recon.matches
		WHERE tenant_id = $1 AND match_id = $2
	`, tenantID, matchID)
	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Kind: model.KindMatch, ID: matchID}
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to fetch match", err)
	}
	return m, nil
}

// ListMatches retrieves matches of a tenant, newest first.
func (d Datasource) ListMatches(ctx context.Context, tenantID string, includeVoided bool, limit, offset int) ([]model.Match, error) {
	ctx, span := otel.Tracer("Matches").Start(ctx, "Listing matches")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+matchColumns+`
		FROM recon.matches
		WHERE tenant_id = $1 AND ($2 OR voided_at IS NULL)
		ORDER BY matched_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, tenantID, includeVoided, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list matches", err)
	}
	defer rows.Close()

	matches := []model.Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan match", err)
		}
		matches = append(matches, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over matches", err)
	}
	return matches, nil
}

func scanMatch(row rowScanner) (*model.Match, error) {
	var m model.Match
	var sourceKind, matchedKind, matchType string
	var voidedAt sql.NullTime
	err := row.Scan(&m.ID, &m.MatchID, &m.TenantID, &m.SourceRecordID, &sourceKind, pq.Array(&m.MatchedItemIDs),
		&matchedKind, &matchType, &m.Confidence, &m.MatchedAt, &m.MatchedBy, &voidedAt, &m.VoidedBy)
	if err != nil {
		return nil, err
	}
	m.SourceKind, m.MatchedKind = model.RecordKind(sourceKind), model.RecordKind(matchedKind)
	m.MatchType = model.MatchType(matchType)
	if voidedAt.Valid {
		m.VoidedAt = ptr.Time(voidedAt.Time)
	}
	return &m, nil
}
