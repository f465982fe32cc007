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
	"time"

	"github.com/kassa-labs/recon/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
// Every query is scoped by an explicit tenant id.
type IDataSource interface {
	ledgerItem      // Interface for ledger item operations
	bankTransaction // Interface for bank statement operations
	providerReport  // Interface for provider settlement report operations
	matches         // Interface for match commit and reversal
	Ping(ctx context.Context) error
}

// ledgerItem defines methods for handling ledger items.
type ledgerItem interface {
	RecordLedgerItem(ctx context.Context, item *model.LedgerItem) error                             // Records a new ledger item
	GetLedgerItem(ctx context.Context, tenantID, id string) (*model.LedgerItem, error)              // Retrieves a ledger item by ID
	GetUnmatchedLedgerItems(ctx context.Context, tenantID string) ([]model.LedgerItem, error)       // Retrieves the unmatched pool
	GetUnmatchedSales(ctx context.Context, tenantID string) ([]model.LedgerItem, error)             // Retrieves unmatched sales with a payment method
}

// bankTransaction defines methods for handling bank statement lines.
type bankTransaction interface {
	RecordBankTransaction(ctx context.Context, txn *model.BankTransaction) error                      // Records a new bank transaction
	GetBankTransaction(ctx context.Context, tenantID, id string) (*model.BankTransaction, error)       // Retrieves a bank transaction by ID
	GetUnmatchedBankTransactions(ctx context.Context, tenantID string) ([]model.BankTransaction, error) // Retrieves unmatched bank transactions
}

// providerReport defines methods for handling provider settlement reports.
type providerReport interface {
	RecordProviderReport(ctx context.Context, report *model.ProviderSettlementReport) error                   // Records a new provider report
	GetProviderReport(ctx context.Context, tenantID, id string) (*model.ProviderSettlementReport, error)      // Retrieves a provider report by ID
	GetUnmatchedProviderReports(ctx context.Context, tenantID string) ([]model.ProviderSettlementReport, error) // Retrieves unmatched provider reports
	GetProviderReportStats(ctx context.Context, tenantID string) ([]model.ProviderSummary, error)             // Aggregates report counts and totals per provider
}

// matches defines methods for persisting and reversing matches.
type matches interface {
	CommitMatch(ctx context.Context, plan model.CommitPlan) error                                                   // Flips matched on all participants and writes the match
	ReverseMatch(ctx context.Context, tenantID, matchID, voidedBy string, voidedAt time.Time) (*model.Match, error) // Voids the match and releases its participants
	GetMatch(ctx context.Context, tenantID, matchID string) (*model.Match, error)                                   // Retrieves a match by ID
	ListMatches(ctx context.Context, tenantID string, includeVoided bool, limit, offset int) ([]model.Match, error) // Retrieves matches, newest first
}
