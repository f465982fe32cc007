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
package mocks

import (
	"context"
	"time"

	"github.com/kassa-labs/recon/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Ledger item methods

func (m *MockDataSource) RecordLedgerItem(ctx context.Context, item *model.LedgerItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockDataSource) GetLedgerItem(ctx context.Context, tenantID, id string) (*model.LedgerItem, error) {
	args := m.Called(ctx, tenantID, id)
	item, _ := args.Get(0).(*model.LedgerItem)
	return item, args.Error(1)
}

func (m *MockDataSource) GetUnmatchedLedgerItems(ctx context.Context, tenantID string) ([]model.LedgerItem, error) {
	args := m.Called(ctx, tenantID)
	items, _ := args.Get(0).([]model.LedgerItem)
	return items, args.Error(1)
}

func (m *MockDataSource) GetUnmatchedSales(ctx context.Context, tenantID string) ([]model.LedgerItem, error) {
	args := m.Called(ctx, tenantID)
	items, _ := args.Get(0).([]model.LedgerItem)
	return items, args.Error(1)
}

// Bank transaction methods

func (m *MockDataSource) RecordBankTransaction(ctx context.Context, txn *model.BankTransaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockDataSource) GetBankTransaction(ctx context.Context, tenantID, id string) (*model.BankTransaction, error) {
	args := m.Called(ctx, tenantID, id)
	txn, _ := args.Get(0).(*model.BankTransaction)
	return txn, args.Error(1)
}

func (m *MockDataSource) GetUnmatchedBankTransactions(ctx context.Context, tenantID string) ([]model.BankTransaction, error) {
	args := m.Called(ctx, tenantID)
	txns, _ := args.Get(0).([]model.BankTransaction)
	return txns, args.Error(1)
}

// Provider report methods

func (m *MockDataSource) RecordProviderReport(ctx context.Context, report *model.ProviderSettlementReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockDataSource) GetProviderReport(ctx context.Context, tenantID, id string) (*model.ProviderSettlementReport, error) {
	args := m.Called(ctx, tenantID, id)
	report, _ := args.Get(0).(*model.ProviderSettlementReport)
	return report, args.Error(1)
}

func (m *MockDataSource) GetUnmatchedProviderReports(ctx context.Context, tenantID string) ([]model.ProviderSettlementReport, error) {
	args := m.Called(ctx, tenantID)
	reports, _ := args.Get(0).([]model.ProviderSettlementReport)
	return reports, args.Error(1)
}

func (m *MockDataSource) GetProviderReportStats(ctx context.Context, tenantID string) ([]model.ProviderSummary, error) {
	args := m.Called(ctx, tenantID)
	stats, _ := args.Get(0).([]model.ProviderSummary)
	return stats, args.Error(1)
}

// Match methods

func (m *MockDataSource) CommitMatch(ctx context.Context, plan model.CommitPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockDataSource) ReverseMatch(ctx context.Context, tenantID, matchID, voidedBy string, voidedAt time.Time) (*model.Match, error) {
	args := m.Called(ctx, tenantID, matchID, voidedBy, voidedAt)
	match, _ := args.Get(0).(*model.Match)
	return match, args.Error(1)
}

func (m *MockDataSource) GetMatch(ctx context.Context, tenantID, matchID string) (*model.Match, error) {
	args := m.Called(ctx, tenantID, matchID)
	match, _ := args.Get(0).(*model.Match)
	return match, args.Error(1)
}

func (m *MockDataSource) ListMatches(ctx context.Context, tenantID string, includeVoided bool, limit, offset int) ([]model.Match, error) {
	args := m.Called(ctx, tenantID, includeVoided, limit, offset)
	matches, _ := args.Get(0).([]model.Match)
	return matches, args.Error(1)
}
