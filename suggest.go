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
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kassa-labs/recon/matching"
	"github.com/kassa-labs/recon/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// combinationBonus is added to the confidence of a combination whose sum is exact.
const combinationBonus = 5

// SuggestProviderMatches pairs unmatched sales with unmatched provider reports.
//
// Every compatible pair above the review threshold is scored and classified
// together, so near ties on the same sale or the same report are demoted before
// the greedy one-to-one assignment picks the best pairs.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - tenantID string: The tenant whose records are matched.
//
// Returns:
// - []model.MatchCandidate: The assigned candidates, best first. Empty when nothing qualifies.
// - error: A ValidationError for a malformed tenant, or a wrapped store error.
func (r *Recon) SuggestProviderMatches(ctx context.Context, tenantID string) ([]model.MatchCandidate, error) {
	ctx, span := tracer.Start(ctx, "SuggestProviderMatches")
	defer span.End()

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	sales, err := r.datasource.GetUnmatchedSales(ctx, tenantID)
	if err != nil {
		return nil, logAndRecordError(span, "failed to load unmatched sales: ", errors.Wrap(err, "load unmatched sales"))
	}
	reports, err := r.datasource.GetUnmatchedProviderReports(ctx, tenantID)
	if err != nil {
		return nil, logAndRecordError(span, "failed to load provider reports: ", errors.Wrap(err, "load provider reports"))
	}

	assigned := r.providerCandidates(tenantID, sales, reports)

	span.SetAttributes(attribute.Int("recon.candidates", len(assigned)))
	logrus.WithFields(logrus.Fields{
		"tenant":     tenantID,
		"sales":      len(sales),
		"reports":    len(reports),
		"candidates": len(assigned),
	}).Debug("provider pass finished")
	return assigned, nil
}

func (r *Recon) providerCandidates(tenantID string, sales []model.LedgerItem, reports []model.ProviderSettlementReport) []model.MatchCandidate {
	policy := r.policyFor(tenantID)
	return assignOneToOne(policy.Apply(r.providerPairs(sales, reports, policy.ReviewThreshold)))
}

func (r *Recon) providerPairs(sales []model.LedgerItem, reports []model.ProviderSettlementReport, review float64) []model.MatchCandidate {
	scorer := r.scorer()
	var pairs []model.MatchCandidate
	for _, sale := range sales {
		provider, ok := matching.ProviderFromPaymentMethod(sale.PaymentMethod)
		if !ok {
			continue
		}
		source := matching.Record{
			ID:          sale.ID,
			Date:        sale.Date,
			Amount:      sale.Amount,
			Description: strings.TrimSpace(sale.PaymentMethod + " " + sale.Description),
		}
		for _, report := range reports {
			if report.Provider != provider {
				continue
			}
			amount := report.AmountAgainst(model.RecordLedgerItem)
			sc := scorer.Score(source, matching.Record{
				ID:          report.ID,
				Date:        report.TransactionDate,
				Amount:      amount,
				Description: strings.TrimSpace(string(report.Provider) + " " + report.Description),
			})
			if sc.FinalScore < review {
				continue
			}
			days := model.DaysBetween(sale.Date, report.TransactionDate)
			pairs = append(pairs, model.MatchCandidate{
				SourceID:         sale.ID,
				SourceKind:       model.RecordLedgerItem,
				MatchedItemIDs:   []string{report.ID},
				MatchedKind:      model.RecordProviderReport,
				Confidence:       sc.FinalScore,
				MatchType:        model.MatchTypeSingle,
				Reasons:          []string{providerName(provider) + " payment", amountReason(amount - sale.Amount), dateReason(days)},
				AmountDifference: amount - sale.Amount,
				DaysDifference:   days,
				Scores:           sc,
			})
		}
	}
	return pairs
}

// assignOneToOne keeps the best pair for every sale and report: highest
// confidence first, then smaller amount difference, then ids.
func assignOneToOne(pairs []model.MatchCandidate) []model.MatchCandidate {
	ordered := make([]model.MatchCandidate, len(pairs))
	copy(ordered, pairs)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.AmountDifference.Abs() != b.AmountDifference.Abs() {
			return a.AmountDifference.Abs() < b.AmountDifference.Abs()
		}
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		return model.IDKey(a.MatchedItemIDs) < model.IDKey(b.MatchedItemIDs)
	})

	usedSources := make(map[string]bool)
	usedItems := make(map[string]bool)
	assigned := make([]model.MatchCandidate, 0)
	for _, c := range ordered {
		if usedSources[c.SourceID] || anyUsed(usedItems, c.MatchedItemIDs) {
			continue
		}
		usedSources[c.SourceID] = true
		for _, id := range c.MatchedItemIDs {
			usedItems[id] = true
		}
		assigned = append(assigned, c)
	}
	return assigned
}

func anyUsed(used map[string]bool, ids []string) bool {
	for _, id := range ids {
		if used[id] {
			return true
		}
	}
	return false
}

// SuggestBankMatches proposes ledger items, ledger item combinations and
// provider batch payouts for one bank transaction.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - tenantID string: The tenant owning the transaction.
// - bankTxnID string: The bank transaction to match.
//
// Returns:
// - *model.BankSuggestion: The ranked candidates, the bulk detection if any, and the session state.
// - error: NotFoundError for an unknown transaction, an AlreadyMatched conflict
//   when the transaction is already reconciled, or a wrapped store error.
func (r *Recon) SuggestBankMatches(ctx context.Context, tenantID, bankTxnID string) (*model.BankSuggestion, error) {
	ctx, span := tracer.Start(ctx, "SuggestBankMatches")
	defer span.End()

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	if !idPattern.MatchString(bankTxnID) {
		return nil, model.NewValidationError("bank_transaction_id", "malformed id")
	}

	txn, err := r.datasource.GetBankTransaction(ctx, tenantID, bankTxnID)
	if err != nil {
		return nil, r.storeError(span, "load bank transaction", err)
	}
	if txn.Matched {
		return nil, model.NewAlreadyMatched(model.SideSource, txn.ID)
	}
	items, err := r.datasource.GetUnmatchedLedgerItems(ctx, tenantID)
	if err != nil {
		return nil, logAndRecordError(span, "failed to load ledger items: ", errors.Wrap(err, "load unmatched ledger items"))
	}
	reports, err := r.datasource.GetUnmatchedProviderReports(ctx, tenantID)
	if err != nil {
		return nil, logAndRecordError(span, "failed to load provider reports: ", errors.Wrap(err, "load provider reports"))
	}

	session := matching.Collect(txn.ID)
	candidates := r.singleLedgerCandidates(txn, items)
	candidates = append(candidates, r.combinationCandidates(txn, items)...)
	bulk := r.detectBulk(txn, reports)
	if bulk != nil {
		candidates = append(candidates, r.bulkCandidate(txn, bulk, reports))
	}

	policy := r.policyFor(tenantID)
	if session, err = session.Score(policy.Proposed(candidates)); err != nil {
		return nil, err
	}
	if session, err = session.Classify(policy); err != nil {
		return nil, err
	}

	top := session.Candidates
	if len(top) > r.config.TopCandidates {
		top = top[:r.config.TopCandidates]
	}
	if top == nil {
		top = []model.MatchCandidate{}
	}

	span.SetAttributes(attribute.Int("recon.candidates", len(top)), attribute.String("recon.state", string(session.State)))
	logrus.WithFields(logrus.Fields{
		"tenant":     tenantID,
		"source":     txn.ID,
		"candidates": len(top),
		"bulk":       bulk != nil,
		"state":      session.State,
	}).Debug("bank pass finished")

	return &model.BankSuggestion{
		Transaction:   *txn,
		Candidates:    top,
		BulkDetection: bulk,
		State:         string(session.State),
	}, nil
}

func bankRecord(txn *model.BankTransaction) matching.Record {
	return matching.Record{ID: txn.ID, Date: txn.Date, Amount: txn.Amount, Description: txn.Description}
}

func (r *Recon) singleLedgerCandidates(txn *model.BankTransaction, items []model.LedgerItem) []model.MatchCandidate {
	scorer := r.scorer()
	source := bankRecord(txn)
	kind, kindDetected := matching.DetectLedgerKind(txn.Description)

	var out []model.MatchCandidate
	for _, item := range items {
		if item.Amount.Sign() != txn.Amount.Sign() {
			continue
		}
		sc := scorer.Score(source, matching.Record{ID: item.ID, Date: item.Date, Amount: item.Amount, Description: item.Description})
		days := model.DaysBetween(txn.Date, item.Date)
		reasons := []string{amountReason(item.Amount - txn.Amount), dateReason(days)}
		if kindDetected && item.Kind == kind {
			reasons = append(reasons, "Description suggests "+strings.ReplaceAll(string(kind), "_", " "))
		}
		out = append(out, model.MatchCandidate{
			SourceID:         txn.ID,
			SourceKind:       model.RecordBankTransaction,
			MatchedItemIDs:   []string{item.ID},
			MatchedKind:      model.RecordLedgerItem,
			Confidence:       sc.FinalScore,
			MatchType:        model.MatchTypeSingle,
			Reasons:          reasons,
			AmountDifference: item.Amount - txn.Amount,
			DaysDifference:   days,
			Scores:           sc,
		})
	}
	return out
}

// combinationCandidates scores every combination of at least two same-kind
// ledger items as one record: the sum, the date closest to the bank date and
// the joined descriptions.
func (r *Recon) combinationCandidates(txn *model.BankTransaction, items []model.LedgerItem) []model.MatchCandidate {
	byID := make(map[string]model.LedgerItem, len(items))
	pool := make([]matching.Entry, 0, len(items))
	for _, item := range items {
		byID[item.ID] = item
		pool = append(pool, matching.Entry{ID: item.ID, Group: string(item.Kind), Amount: item.Amount, Date: item.Date})
	}

	combos := matching.FindCombinations(txn.Amount, txn.Date, pool, matching.CombinationOptions{
		MaxItems:  r.config.MaxCombinationItems,
		Tolerance: r.tolerance(model.MatchTypeCombination),
		PoolCap:   r.config.CombinationPoolCap,
		Limit:     r.config.TopCandidates,
	})

	scorer := r.scorer()
	source := bankRecord(txn)
	var out []model.MatchCandidate
	for _, combo := range combos {
		if len(combo.Items) < 2 {
			continue
		}
		closest, furthest := dateRange(txn.Date, combo.Items)
		descriptions := make([]string, 0, len(combo.Items))
		for _, e := range combo.Items {
			if d := strings.TrimSpace(byID[e.ID].Description); d != "" {
				descriptions = append(descriptions, d)
			}
		}
		sc := scorer.Score(source, matching.Record{
			ID:          model.IDKey(combo.IDs()),
			Date:        closest,
			Amount:      combo.Sum,
			Description: strings.Join(descriptions, " "),
		})

		confidence := sc.FinalScore
		if combo.SumDiff == 0 {
			confidence += combinationBonus
		}
		if confidence > 100 {
			confidence = 100
		}
		days := model.DaysBetween(txn.Date, furthest)
		out = append(out, model.MatchCandidate{
			SourceID:       txn.ID,
			SourceKind:     model.RecordBankTransaction,
			MatchedItemIDs: combo.IDs(),
			MatchedKind:    model.RecordLedgerItem,
			Confidence:     confidence,
			MatchType:      model.MatchTypeCombination,
			Reasons: []string{
				fmt.Sprintf("Combination of %d items", len(combo.Items)),
				sumReason(combo.SumDiff),
				dateReason(days),
			},
			AmountDifference: combo.Sum - txn.Amount,
			DaysDifference:   days,
			Scores:           sc,
		})
	}
	return out
}

// dateRange returns the entry dates closest to and furthest from target.
func dateRange(target time.Time, entries []matching.Entry) (closest, furthest time.Time) {
	best, worst := -1, -1
	for _, e := range entries {
		d := model.DaysBetween(target, e.Date)
		if best < 0 || d < best {
			best, closest = d, e.Date
		}
		if d > worst {
			worst, furthest = d, e.Date
		}
	}
	return closest, furthest
}
