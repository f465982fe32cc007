package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kassa-labs/recon/internal/apierror"
	"github.com/kassa-labs/recon/model"
	"github.com/wacul/ptr"
)

type recordKey struct {
	tenant string
	id     string
}

// MemoryStore is an IDataSource kept in process memory. Commits and reversals
// are serialized under one mutex and follow the same compare-and-set rules as
// the PostgreSQL store.
type MemoryStore struct {
	mu      sync.RWMutex
	ledger  map[recordKey]*model.LedgerItem
	bank    map[recordKey]*model.BankTransaction
	reports map[recordKey]*model.ProviderSettlementReport
	matches map[recordKey]*model.Match
	order   []recordKey
	seq     int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ledger:  make(map[recordKey]*model.LedgerItem),
		bank:    make(map[recordKey]*model.BankTransaction),
		reports: make(map[recordKey]*model.ProviderSettlementReport),
		matches: make(map[recordKey]*model.Match),
	}
}

func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func duplicate(what, id string) error {
	return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("%s with ID '%s' already exists", what, id), nil)
}

func (s *MemoryStore) RecordLedgerItem(_ context.Context, item *model.LedgerItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{item.TenantID, item.ID}
	if _, ok := s.ledger[key]; ok {
		return duplicate("ledger item", item.ID)
	}
	stored := *item
	s.ledger[key] = &stored
	return nil
}

func (s *MemoryStore) GetLedgerItem(_ context.Context, tenantID, id string) (*model.LedgerItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.ledger[recordKey{tenantID, id}]
	if !ok {
		return nil, &model.NotFoundError{Kind: model.RecordLedgerItem, ID: id}
	}
	found := *item
	return &found, nil
}

func (s *MemoryStore) GetUnmatchedLedgerItems(_ context.Context, tenantID string) ([]model.LedgerItem, error) {
	return s.unmatchedLedger(tenantID, func(model.LedgerItem) bool { return true }), nil
}

func (s *MemoryStore) GetUnmatchedSales(_ context.Context, tenantID string) ([]model.LedgerItem, error) {
	return s.unmatchedLedger(tenantID, func(item model.LedgerItem) bool {
		return item.Kind == model.LedgerKindSale
	}), nil
}

func (s *MemoryStore) unmatchedLedger(tenantID string, keep func(model.LedgerItem) bool) []model.LedgerItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []model.LedgerItem
	for key, item := range s.ledger {
		if key.tenant == tenantID && !item.Matched && keep(*item) {
			items = append(items, *item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.Before(items[j].Date)
		}
		return items[i].ID < items[j].ID
	})
	return items
}

func (s *MemoryStore) RecordBankTransaction(_ context.Context, txn *model.BankTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{txn.TenantID, txn.ID}
	if _, ok := s.bank[key]; ok {
		return duplicate("bank transaction", txn.ID)
	}
	stored := *txn
	s.bank[key] = &stored
	return nil
}

func (s *MemoryStore) GetBankTransaction(_ context.Context, tenantID, id string) (*model.BankTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, ok := s.bank[recordKey{tenantID, id}]
	if !ok {
		return nil, &model.NotFoundError{Kind: model.RecordBankTransaction, ID: id}
	}
	found := *txn
	return &found, nil
}

func (s *MemoryStore) GetUnmatchedBankTransactions(_ context.Context, tenantID string) ([]model.BankTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var txns []model.BankTransaction
	for key, txn := range s.bank {
		if key.tenant == tenantID && !txn.Matched {
			txns = append(txns, *txn)
		}
	}
	sort.Slice(txns, func(i, j int) bool {
		if !txns[i].Date.Equal(txns[j].Date) {
			return txns[i].Date.Before(txns[j].Date)
		}
		return txns[i].ID < txns[j].ID
	})
	return txns, nil
}

func (s *MemoryStore) RecordProviderReport(_ context.Context, report *model.ProviderSettlementReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{report.TenantID, report.ID}
	if _, ok := s.reports[key]; ok {
		return duplicate("provider report", report.ID)
	}
	stored := *report
	s.reports[key] = &stored
	return nil
}

func (s *MemoryStore) GetProviderReport(_ context.Context, tenantID, id string) (*model.ProviderSettlementReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[recordKey{tenantID, id}]
	if !ok {
		return nil, &model.NotFoundError{Kind: model.RecordProviderReport, ID: id}
	}
	found := *report
	return &found, nil
}

func (s *MemoryStore) GetUnmatchedProviderReports(_ context.Context, tenantID string) ([]model.ProviderSettlementReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var reports []model.ProviderSettlementReport
	for key, report := range s.reports {
		if key.tenant == tenantID && !report.Matched {
			reports = append(reports, *report)
		}
	}
	sort.Slice(reports, func(i, j int) bool {
		if !reports[i].TransactionDate.Equal(reports[j].TransactionDate) {
			return reports[i].TransactionDate.Before(reports[j].TransactionDate)
		}
		return reports[i].ID < reports[j].ID
	})
	return reports, nil
}

func (s *MemoryStore) GetProviderReportStats(_ context.Context, tenantID string) ([]model.ProviderSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byProvider := make(map[model.Provider]*model.ProviderSummary)
	for key, report := range s.reports {
		if key.tenant != tenantID {
			continue
		}
		stat, ok := byProvider[report.Provider]
		if !ok {
			stat = &model.ProviderSummary{Provider: report.Provider}
			byProvider[report.Provider] = stat
		}
		if report.Matched {
			stat.MatchedReports++
			stat.MatchedNet += report.NetAmount
		} else {
			stat.UnmatchedReports++
			stat.UnmatchedNet += report.NetAmount
		}
		if stat.LastTransactionAt == nil || report.TransactionDate.After(*stat.LastTransactionAt) {
			stat.LastTransactionAt = ptr.Time(report.TransactionDate)
		}
	}
	stats := make([]model.ProviderSummary, 0, len(byProvider))
	for _, stat := range byProvider {
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Provider < stats[j].Provider })
	return stats, nil
}

// matchedFlag returns a pointer to the matched flag of a participant and the
// amount it is compared on, or nil when the record does not exist.
func (s *MemoryStore) matchedFlag(kind, counterpart model.RecordKind, key recordKey) (*bool, model.Amount) {
	switch kind {
	case model.RecordLedgerItem:
		if item, ok := s.ledger[key]; ok {
			return &item.Matched, item.Amount
		}
	case model.RecordBankTransaction:
		if txn, ok := s.bank[key]; ok {
			return &txn.Matched, txn.Amount
		}
	case model.RecordProviderReport:
		if report, ok := s.reports[key]; ok {
			return &report.Matched, report.AmountAgainst(counterpart)
		}
	}
	return nil, 0
}

func (s *MemoryStore) CommitMatch(_ context.Context, plan model.CommitPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := plan.Match
	if _, err := participantTable(m.SourceKind); err != nil {
		return model.NewValidationError("source_kind", err.Error())
	}
	if _, err := participantTable(m.MatchedKind); err != nil {
		return model.NewValidationError("item_kind", err.Error())
	}

	source, sourceAmount := s.matchedFlag(m.SourceKind, m.MatchedKind, recordKey{m.TenantID, m.SourceRecordID})
	if source == nil {
		return &model.NotFoundError{Kind: m.SourceKind, ID: m.SourceRecordID}
	}
	if *source {
		return model.NewAlreadyMatched(model.SideSource, m.SourceRecordID)
	}

	items := make([]*bool, 0, len(m.MatchedItemIDs))
	var missing []string
	var sum model.Amount
	for _, id := range m.MatchedItemIDs {
		flag, amount := s.matchedFlag(m.MatchedKind, m.SourceKind, recordKey{m.TenantID, id})
		if flag == nil {
			return &model.NotFoundError{Kind: m.MatchedKind, ID: id}
		}
		if *flag {
			missing = append(missing, id)
			continue
		}
		items = append(items, flag)
		sum += amount
	}
	if len(missing) > 0 {
		return model.NewAlreadyMatched(model.SideItem, missing...)
	}
	if (sum - sourceAmount).Abs() > plan.Tolerance {
		return model.NewAmountDrift(model.SideItem, sourceAmount, sum, m.MatchedItemIDs...)
	}

	*source = true
	for _, flag := range items {
		*flag = true
	}
	s.seq++
	m.ID = s.seq
	stored := *m
	stored.MatchedItemIDs = append([]string(nil), m.MatchedItemIDs...)
	key := recordKey{m.TenantID, m.MatchID}
	s.matches[key] = &stored
	s.order = append(s.order, key)
	return nil
}

func (s *MemoryStore) ReverseMatch(_ context.Context, tenantID, matchID, voidedBy string, voidedAt time.Time) (*model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[recordKey{tenantID, matchID}]
	if !ok {
		return nil, &model.NotFoundError{Kind: model.KindMatch, ID: matchID}
	}
	if !m.Active() {
		return nil, &model.ConflictError{Reason: model.ReasonAlreadyVoided, Side: model.SideSource, RecordIDs: []string{matchID}}
	}
	m.VoidedAt = ptr.Time(voidedAt)
	m.VoidedBy = voidedBy

	if flag, _ := s.matchedFlag(m.SourceKind, m.MatchedKind, recordKey{tenantID, m.SourceRecordID}); flag != nil {
		*flag = false
	}
	for _, id := range m.MatchedItemIDs {
		if flag, _ := s.matchedFlag(m.MatchedKind, m.SourceKind, recordKey{tenantID, id}); flag != nil {
			*flag = false
		}
	}
	voided := *m
	return &voided, nil
}

func (s *MemoryStore) GetMatch(_ context.Context, tenantID, matchID string) (*model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[recordKey{tenantID, matchID}]
	if !ok {
		return nil, &model.NotFoundError{Kind: model.KindMatch, ID: matchID}
	}
	found := *m
	return &found, nil
}

func (s *MemoryStore) ListMatches(_ context.Context, tenantID string, includeVoided bool, limit, offset int) ([]model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := []model.Match{}
	for i := len(s.order) - 1; i >= 0; i-- {
		key := s.order[i]
		m := s.matches[key]
		if key.tenant != tenantID || (!includeVoided && !m.Active()) {
			continue
		}
		matches = append(matches, *m)
	}
	if offset >= len(matches) {
		return []model.Match{}, nil
	}
	matches = matches[offset:]
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
