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
	"errors"
	"time"

	redlock "github.com/kassa-labs/recon/internal/lock"
	"github.com/kassa-labs/recon/matching"
	"github.com/kassa-labs/recon/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	autoMatchLockTTL  = 5 * time.Minute
	autoMatchLockWait = 10 * time.Second

	EventAutoMatchFailed = "automatch.failed"

	reasonBelowThreshold = "below_threshold"
	reasonAmbiguous      = "ambiguous"
	reasonValidation     = "validation"
	reasonNotFound       = "not_found"
)

// AutoMatch commits the candidates that clear the tenant's auto threshold.
//
// Candidates are committed one after the other. A candidate that is below the
// threshold, ambiguous, stale or malformed is reported in the result's errors
// and the batch continues. Only a failure of the store stops the batch; the
// matches committed so far are returned together with the error.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - tenantID string: The tenant the candidates belong to.
// - candidates []model.MatchCandidate: The candidates to commit, usually from a suggestion pass.
// - matchedBy string: Recorded on every committed match.
//
// Returns:
// - *model.AutoMatchResult: The committed matches and the per-candidate errors.
// - error: A ValidationError for a malformed tenant, or the store failure that stopped the batch.
func (r *Recon) AutoMatch(ctx context.Context, tenantID string, candidates []model.MatchCandidate, matchedBy string) (*model.AutoMatchResult, error) {
	ctx, span := tracer.Start(ctx, "AutoMatch")
	defer span.End()

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}

	policy := r.policyFor(tenantID)
	classified := policy.Apply(candidates)
	result := &model.AutoMatchResult{MatchedPairs: []model.Match{}, Errors: []model.CandidateError{}}

	for i, c := range candidates {
		if reason, msg := rejection(policy, c, classified[i]); reason != "" {
			result.Errors = append(result.Errors, model.CandidateError{
				SourceID: c.SourceID,
				ItemIDs:  c.MatchedItemIDs,
				Reason:   reason,
				Message:  msg,
			})
			continue
		}

		match, err := r.commitCandidate(ctx, tenantID, policy, c, matchedBy)
		if err != nil {
			if isCandidateError(err) {
				result.Errors = append(result.Errors, candidateError(c, err))
				continue
			}
			span.RecordError(err)
			r.notify(EventAutoMatchFailed, tenantID, err)
			return result, err
		}
		result.MatchedPairs = append(result.MatchedPairs, *match)
	}

	span.SetAttributes(attribute.Int("recon.matched", len(result.MatchedPairs)), attribute.Int("recon.errors", len(result.Errors)))
	logrus.WithFields(logrus.Fields{
		"tenant":     tenantID,
		"candidates": len(candidates),
		"matched":    len(result.MatchedPairs),
		"errors":     len(result.Errors),
	}).Info("auto-match finished")
	return result, nil
}

// rejection explains why a candidate may not be committed without review.
func rejection(policy matching.Policy, given, classified model.MatchCandidate) (string, string) {
	if given.Confidence < policy.AutoThreshold {
		return reasonBelowThreshold, "confidence is below the auto-match threshold"
	}
	if given.Classification != "" && given.Classification != model.AutoMatchable {
		return reasonAmbiguous, "candidate was classified " + string(given.Classification)
	}
	if classified.Classification != model.AutoMatchable {
		return reasonAmbiguous, "another candidate scores within the ambiguity margin"
	}
	return "", ""
}

// commitCandidate drives one candidate through its session and commits it.
func (r *Recon) commitCandidate(ctx context.Context, tenantID string, policy matching.Policy, c model.MatchCandidate, matchedBy string) (*model.Match, error) {
	session, err := matching.Collect(c.SourceID).Score([]model.MatchCandidate{c})
	if err != nil {
		return nil, err
	}
	if session, err = session.Classify(policy); err != nil {
		return nil, err
	}

	match, err := r.CommitMatch(ctx, model.CommitRequest{
		TenantID:   tenantID,
		SourceKind: c.SourceKind,
		SourceID:   c.SourceID,
		ItemKind:   c.MatchedKind,
		ItemIDs:    c.MatchedItemIDs,
		Confidence: c.Confidence,
		MatchType:  c.MatchType,
		MatchedBy:  matchedBy,
	})
	if err != nil {
		return nil, err
	}
	if _, err := session.Commit(match, false); err != nil {
		return nil, err
	}
	return match, nil
}

func candidateError(c model.MatchCandidate, err error) model.CandidateError {
	ce := model.CandidateError{SourceID: c.SourceID, ItemIDs: c.MatchedItemIDs, Message: err.Error()}
	var conflict *model.ConflictError
	switch {
	case errors.As(err, &conflict):
		ce.Reason = string(conflict.Reason)
		ce.Side = conflict.Side
	case model.IsNotFound(err):
		ce.Reason = reasonNotFound
	default:
		ce.Reason = reasonValidation
	}
	return ce
}

// RunProviderAutoMatch runs the provider pass and commits its auto-matchable
// candidates. With Redis configured, runs of the same tenant are serialized.
func (r *Recon) RunProviderAutoMatch(ctx context.Context, tenantID, matchedBy string) (*model.AutoMatchResult, error) {
	ctx, span := tracer.Start(ctx, "RunProviderAutoMatch")
	defer span.End()

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	unlock, err := r.lockTenant(ctx, tenantID)
	if err != nil {
		return nil, logAndRecordError(span, "failed to acquire auto-match lock: ", err)
	}
	defer unlock()

	candidates, err := r.SuggestProviderMatches(ctx, tenantID)
	if err != nil {
		r.notify(EventAutoMatchFailed, tenantID, err)
		return nil, err
	}
	return r.AutoMatch(ctx, tenantID, autoMatchable(candidates), matchedBy)
}

// RunBankAutoMatch runs the bank pass over every unmatched bank transaction of
// the tenant and commits the auto-matchable candidates of each one. Suggestions
// are computed one transaction at a time, so an item claimed for an earlier
// transaction is never offered to a later one. A transaction that went stale
// meanwhile is reported in the errors; a store failure stops the run and the
// matches committed so far are returned with it.
func (r *Recon) RunBankAutoMatch(ctx context.Context, tenantID, matchedBy string) (*model.AutoMatchResult, error) {
	ctx, span := tracer.Start(ctx, "RunBankAutoMatch")
	defer span.End()

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	unlock, err := r.lockTenant(ctx, tenantID)
	if err != nil {
		return nil, logAndRecordError(span, "failed to acquire auto-match lock: ", err)
	}
	defer unlock()

	txns, err := r.datasource.GetUnmatchedBankTransactions(ctx, tenantID)
	if err != nil {
		r.notify(EventAutoMatchFailed, tenantID, err)
		return nil, logAndRecordError(span, "failed to load bank transactions: ", err)
	}

	result := &model.AutoMatchResult{MatchedPairs: []model.Match{}, Errors: []model.CandidateError{}}
	for _, txn := range txns {
		suggestion, err := r.SuggestBankMatches(ctx, tenantID, txn.ID)
		if err != nil {
			if isCandidateError(err) {
				result.Errors = append(result.Errors, candidateError(model.MatchCandidate{SourceID: txn.ID}, err))
				continue
			}
			span.RecordError(err)
			r.notify(EventAutoMatchFailed, tenantID, err)
			return result, err
		}
		auto := autoMatchable(suggestion.Candidates)
		if len(auto) == 0 {
			continue
		}

		batch, err := r.AutoMatch(ctx, tenantID, auto, matchedBy)
		if batch != nil {
			result.MatchedPairs = append(result.MatchedPairs, batch.MatchedPairs...)
			result.Errors = append(result.Errors, batch.Errors...)
		}
		if err != nil {
			return result, err
		}
	}

	span.SetAttributes(attribute.Int("recon.transactions", len(txns)), attribute.Int("recon.matched", len(result.MatchedPairs)))
	logrus.WithFields(logrus.Fields{
		"tenant":       tenantID,
		"transactions": len(txns),
		"matched":      len(result.MatchedPairs),
	}).Info("bank auto-match finished")
	return result, nil
}

// lockTenant serializes auto-match runs of a tenant when Redis is configured.
// The returned func releases the lock.
func (r *Recon) lockTenant(ctx context.Context, tenantID string) (func(), error) {
	if r.redis == nil {
		return func() {}, nil
	}
	locker := redlock.NewLocker(r.redis, redlock.TenantKey(tenantID), model.GenerateUUIDWithSuffix("loc"))
	if err := locker.WaitLock(ctx, autoMatchLockTTL, autoMatchLockWait); err != nil {
		return nil, err
	}
	return func() {
		if err := locker.Unlock(context.Background()); err != nil {
			logrus.WithError(err).WithField("tenant", tenantID).Warn("failed to release auto-match lock")
		}
	}, nil
}

func autoMatchable(candidates []model.MatchCandidate) []model.MatchCandidate {
	auto := make([]model.MatchCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Classification == model.AutoMatchable {
			auto = append(auto, c)
		}
	}
	return auto
}
