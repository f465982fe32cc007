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

package recon

import (
	"context"

	"github.com/kassa-labs/recon/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMatchedBy = "system"
	defaultPageSize  = 50
	maxPageSize      = 500
)

// CommitMatch validates a commit request and persists it as a match.
// The store flips the matched flag of every participant with a conditional
// write and re-checks the amounts, so a candidate computed from a stale pool
// fails with a ConflictError naming the side that changed.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - req model.CommitRequest: The source, the items and how they were matched.
//
// Returns:
// - *model.Match: The persisted match.
// - error: A ValidationError, NotFoundError or ConflictError, or a wrapped store error.
func (r *Recon) CommitMatch(ctx context.Context, req model.CommitRequest) (*model.Match, error) {
	ctx, span := tracer.Start(ctx, "CommitMatch")
	defer span.End()

	if err := validateCommitRequest(&req, r.config.MaxCombinationItems, r.config.MaxBulkItems); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if req.SourceKind == model.RecordLedgerItem {
		if err := r.requireSale(ctx, req.TenantID, req.SourceID); err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	match := r.newMatch(req)
	span.SetAttributes(attribute.String("recon.match_id", match.MatchID), attribute.String("recon.tenant_id", match.TenantID))

	plan := model.CommitPlan{Match: match, Tolerance: r.tolerance(req.MatchType)}
	if err := r.datasource.CommitMatch(ctx, plan); err != nil {
		return nil, r.storeError(span, "commit match", err)
	}

	logrus.WithFields(logrus.Fields{
		"tenant":     match.TenantID,
		"source":     match.SourceRecordID,
		"match_id":   match.MatchID,
		"match_type": match.MatchType,
		"items":      len(match.MatchedItemIDs),
	}).Info("match committed")
	return match, nil
}

func (r *Recon) newMatch(req model.CommitRequest) *model.Match {
	by := req.MatchedBy
	if by == "" {
		by = defaultMatchedBy
	}
	return &model.Match{
		MatchID:        model.GenerateUUIDWithSuffix("match"),
		TenantID:       req.TenantID,
		SourceRecordID: req.SourceID,
		SourceKind:     req.SourceKind,
		MatchedItemIDs: append([]string(nil), req.ItemIDs...),
		MatchedKind:    req.ItemKind,
		MatchType:      req.MatchType,
		Confidence:     req.Confidence,
		MatchedAt:      r.now().UTC(),
		MatchedBy:      by,
	}
}

// requireSale rejects ledger sources other than sales. Only sales settle through a provider.
func (r *Recon) requireSale(ctx context.Context, tenantID, id string) error {
	item, err := r.datasource.GetLedgerItem(ctx, tenantID, id)
	if err != nil {
		if isCandidateError(err) {
			return err
		}
		return errors.Wrap(err, "load ledger source")
	}
	if item.Kind != model.LedgerKindSale {
		return model.NewValidationError("source_id", "ledger item "+id+" is a "+string(item.Kind)+", only sales can be matched with provider reports")
	}
	return nil
}

// ReverseMatch voids an active match and releases all of its participants,
// so they show up in the next suggestion run again.
func (r *Recon) ReverseMatch(ctx context.Context, tenantID, matchID, by string) (*model.Match, error) {
	ctx, span := tracer.Start(ctx, "ReverseMatch")
	defer span.End()

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	if !idPattern.MatchString(matchID) {
		return nil, model.NewValidationError("match_id", "malformed id")
	}
	if by == "" {
		by = defaultMatchedBy
	}

	match, err := r.datasource.ReverseMatch(ctx, tenantID, matchID, by, r.now().UTC())
	if err != nil {
		return nil, r.storeError(span, "reverse match", err)
	}

	logrus.WithFields(logrus.Fields{
		"tenant":   tenantID,
		"source":   match.SourceRecordID,
		"match_id": matchID,
	}).Info("match reversed")
	return match, nil
}

// GetMatch returns a match, voided or not.
func (r *Recon) GetMatch(ctx context.Context, tenantID, matchID string) (*model.Match, error) {
	ctx, span := tracer.Start(ctx, "GetMatch")
	defer span.End()

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	match, err := r.datasource.GetMatch(ctx, tenantID, matchID)
	if err != nil {
		return nil, r.storeError(span, "get match", err)
	}
	return match, nil
}

// ListMatches returns the matches of a tenant, newest first.
func (r *Recon) ListMatches(ctx context.Context, tenantID string, includeVoided bool, limit, offset int) ([]model.Match, error) {
	ctx, span := tracer.Start(ctx, "ListMatches")
	defer span.End()

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	matches, err := r.datasource.ListMatches(ctx, tenantID, includeVoided, limit, offset)
	if err != nil {
		return nil, r.storeError(span, "list matches", err)
	}
	return matches, nil
}

// isCandidateError reports whether err is an expected outcome of a single
// commit rather than a failure of the store.
func isCandidateError(err error) bool {
	return model.IsConflict(err, "") || model.IsValidation(err) || model.IsNotFound(err)
}

// storeError passes typed outcomes through and wraps everything else.
func (r *Recon) storeError(span trace.Span, op string, err error) error {
	span.RecordError(err)
	if isCandidateError(err) {
		logrus.WithError(err).Warn(op)
		return err
	}
	logrus.WithError(err).Error(op)
	return errors.Wrap(err, op)
}
