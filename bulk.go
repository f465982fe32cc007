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
)

const (
	bulkBaseDetected = 60
	bulkBaseGuessed  = 45
)

// DetectBulkSettlement checks whether a bank credit is the batch payout of
// several provider reports. It returns nil when no batch is recognised.
func (r *Recon) DetectBulkSettlement(ctx context.Context, tenantID, bankTxnID string) (*model.BulkDetection, error) {
	ctx, span := tracer.Start(ctx, "DetectBulkSettlement")
	defer span.End()

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	txn, err := r.datasource.GetBankTransaction(ctx, tenantID, bankTxnID)
	if err != nil {
		return nil, r.storeError(span, "load bank transaction", err)
	}
	reports, err := r.datasource.GetUnmatchedProviderReports(ctx, tenantID)
	if err != nil {
		return nil, logAndRecordError(span, "failed to load provider reports: ", errors.Wrap(err, "load provider reports"))
	}
	return r.detectBulk(txn, reports), nil
}

// detectBulk only considers the provider named in the bank description, and
// every provider when none is named. Across providers the highest confidence
// wins, then the smaller difference.
func (r *Recon) detectBulk(txn *model.BankTransaction, reports []model.ProviderSettlementReport) *model.BulkDetection {
	if txn.Amount <= 0 {
		return nil
	}
	providers := model.Providers
	provider, detected := matching.DetectProvider(txn.Description)
	if detected {
		providers = []model.Provider{provider}
	}

	var best *model.BulkDetection
	for _, p := range providers {
		d := r.detectProviderBulk(txn, p, detected, reports)
		if d == nil || d.Confidence < r.config.BulkDetectionThreshold {
			continue
		}
		if best == nil || d.Confidence > best.Confidence ||
			(d.Confidence == best.Confidence && d.Difference.Abs() < best.Difference.Abs()) {
			best = d
		}
	}
	return best
}

func (r *Recon) detectProviderBulk(txn *model.BankTransaction, provider model.Provider, detected bool, reports []model.ProviderSettlementReport) *model.BulkDetection {
	window := bulkWindow(txn.Date, provider, reports, r.config.BulkWindowDays)
	if len(window) == 0 {
		return nil
	}

	pool := make([]matching.Entry, len(window))
	for i, rep := range window {
		pool[i] = matching.Entry{ID: rep.ID, Group: string(provider), Amount: rep.NetAmount, Date: rep.TransactionDate}
	}
	combos := matching.FindCombinations(txn.Amount, txn.Date, pool, matching.CombinationOptions{
		MaxItems:  r.config.MaxBulkItems,
		Tolerance: r.tolerance(model.MatchTypeProviderBulk),
		PoolCap:   r.config.CombinationPoolCap,
	})

	position := make(map[string]int, len(window))
	for i, rep := range window {
		position[rep.ID] = i
	}
	for _, combo := range combos {
		if !contiguous(combo, position) {
			continue
		}
		return newBulkDetection(txn, provider, detected, combo)
	}
	return nil
}

// bulkWindow returns the provider's reports dated from windowDays before the
// bank day up to the day after, ordered by date and id.
func bulkWindow(bankDate time.Time, provider model.Provider, reports []model.ProviderSettlementReport, windowDays int) []model.ProviderSettlementReport {
	day := truncateDay(bankDate)
	from := day.AddDate(0, 0, -windowDays)
	to := day.AddDate(0, 0, 1)

	var window []model.ProviderSettlementReport
	for _, rep := range reports {
		if rep.Provider != provider {
			continue
		}
		d := truncateDay(rep.TransactionDate)
		if d.Before(from) || d.After(to) {
			continue
		}
		window = append(window, rep)
	}
	sort.Slice(window, func(i, j int) bool {
		if !window[i].TransactionDate.Equal(window[j].TransactionDate) {
			return window[i].TransactionDate.Before(window[j].TransactionDate)
		}
		return window[i].ID < window[j].ID
	})
	return window
}

// contiguous reports whether the combined reports form an unbroken run of the window.
func contiguous(combo matching.Combination, position map[string]int) bool {
	lo, hi := -1, -1
	for _, e := range combo.Items {
		p := position[e.ID]
		if lo < 0 || p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	return hi-lo+1 == len(combo.Items)
}

func newBulkDetection(txn *model.BankTransaction, provider model.Provider, detected bool, combo matching.Combination) *model.BulkDetection {
	start, end := combo.Items[0].Date, combo.Items[0].Date
	for _, e := range combo.Items[1:] {
		if e.Date.Before(start) {
			start = e.Date
		}
		if e.Date.After(end) {
			end = e.Date
		}
	}
	ids := combo.IDs()
	sort.Strings(ids)
	return &model.BulkDetection{
		Provider:                provider,
		ReportIDs:               ids,
		TotalNet:                combo.Sum,
		Difference:              combo.Sum - txn.Amount,
		Confidence:              bulkConfidence(detected, combo.SumDiff, len(combo.Items)),
		DetectedFromDescription: detected,
		PeriodStart:             start,
		PeriodEnd:               end,
	}
}

func bulkConfidence(detected bool, diff model.Amount, items int) float64 {
	confidence := float64(bulkBaseGuessed)
	if detected {
		confidence = bulkBaseDetected
	}
	switch diff = diff.Abs(); {
	case diff == 0:
		confidence += 30
	case diff <= 10:
		confidence += 25
	case diff <= 100:
		confidence += 15
	}
	switch {
	case items >= 2 && items <= 5:
		confidence += 10
	case items > 5:
		confidence -= 5
	}
	if confidence > 100 {
		confidence = 100
	}
	return confidence
}

// bulkCandidate scores the batch as one record: the net total, the report date
// closest to the bank day and the provider name joined with the report
// descriptions. The confidence stays the bulk confidence.
func (r *Recon) bulkCandidate(txn *model.BankTransaction, d *model.BulkDetection, reports []model.ProviderSettlementReport) model.MatchCandidate {
	included := make(map[string]bool, len(d.ReportIDs))
	for _, id := range d.ReportIDs {
		included[id] = true
	}
	descriptions := []string{providerName(d.Provider)}
	var closest time.Time
	best := -1
	for _, rep := range reports {
		if !included[rep.ID] {
			continue
		}
		if days := model.DaysBetween(txn.Date, rep.TransactionDate); best < 0 || days < best {
			best, closest = days, rep.TransactionDate
		}
		if desc := strings.TrimSpace(rep.Description); desc != "" {
			descriptions = append(descriptions, desc)
		}
	}
	if best < 0 {
		closest = d.PeriodEnd
	}
	sc := r.scorer().Score(bankRecord(txn), matching.Record{
		ID:          model.IDKey(d.ReportIDs),
		Date:        closest,
		Amount:      d.TotalNet,
		Description: strings.Join(descriptions, " "),
	})

	reasons := []string{
		fmt.Sprintf("%d %s reports", len(d.ReportIDs), providerName(d.Provider)),
		fmt.Sprintf("Net total %s", d.TotalNet),
		sumReason(d.Difference),
	}
	if d.DetectedFromDescription {
		reasons = append([]string{providerName(d.Provider) + " payout recognised"}, reasons...)
	}
	return model.MatchCandidate{
		SourceID:         txn.ID,
		SourceKind:       model.RecordBankTransaction,
		MatchedItemIDs:   append([]string(nil), d.ReportIDs...),
		MatchedKind:      model.RecordProviderReport,
		Confidence:       d.Confidence,
		MatchType:        model.MatchTypeProviderBulk,
		Reasons:          reasons,
		AmountDifference: d.Difference,
		DaysDifference:   model.DaysBetween(txn.Date, d.PeriodStart),
		Scores:           sc,
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
