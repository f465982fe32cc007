package recon

import (
	"context"

	"github.com/kassa-labs/recon/matching"
	"github.com/kassa-labs/recon/model"
	"github.com/pkg/errors"
)

// ProviderSummary returns the reconciliation state of every provider for a
// tenant: report counts and totals from the store, the unmatched sales paid
// through the provider, and how the current provider pass classifies them.
func (r *Recon) ProviderSummary(ctx context.Context, tenantID string) ([]model.ProviderSummary, error) {
	ctx, span := tracer.Start(ctx, "ProviderSummary")
	defer span.End()

	if err := validateTenant(tenantID); err != nil {
		return nil, err
	}
	stats, err := r.datasource.GetProviderReportStats(ctx, tenantID)
	if err != nil {
		return nil, logAndRecordError(span, "failed to load provider stats: ", errors.Wrap(err, "load provider stats"))
	}
	sales, err := r.datasource.GetUnmatchedSales(ctx, tenantID)
	if err != nil {
		return nil, logAndRecordError(span, "failed to load unmatched sales: ", errors.Wrap(err, "load unmatched sales"))
	}
	reports, err := r.datasource.GetUnmatchedProviderReports(ctx, tenantID)
	if err != nil {
		return nil, logAndRecordError(span, "failed to load provider reports: ", errors.Wrap(err, "load provider reports"))
	}

	summaries := make([]model.ProviderSummary, len(model.Providers))
	index := make(map[model.Provider]int, len(model.Providers))
	for i, p := range model.Providers {
		summaries[i] = model.ProviderSummary{Provider: p}
		index[p] = i
	}
	for _, s := range stats {
		if i, ok := index[s.Provider]; ok {
			summaries[i] = s
		}
	}

	for _, sale := range sales {
		if p, ok := matching.ProviderFromPaymentMethod(sale.PaymentMethod); ok {
			summaries[index[p]].UnmatchedSales++
		}
	}

	reportProvider := make(map[string]model.Provider, len(reports))
	for _, rep := range reports {
		reportProvider[rep.ID] = rep.Provider
	}
	for _, c := range r.providerCandidates(tenantID, sales, reports) {
		i := index[reportProvider[c.MatchedItemIDs[0]]]
		switch c.Classification {
		case model.AutoMatchable:
			summaries[i].AutoMatchable++
		case model.ReviewRequired:
			summaries[i].ReviewRequired++
		}
	}
	return summaries, nil
}
