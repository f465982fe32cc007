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
	"testing"
	"time"

	"github.com/kassa-labs/recon/config"
	"github.com/kassa-labs/recon/database/mocks"
	"github.com/kassa-labs/recon/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seedCashDeposit(t *testing.T, r *Recon) {
	t.Helper()
	addBankTxn(t, r, "bt_1", "145.00", "Bargeld Einzahlung", day)
	addLedgerItem(t, r, "li_1", "50.00", model.LedgerKindCashMovement, "Bargeld Einzahlung", daysAgo(1))
	addLedgerItem(t, r, "li_2", "45.00", model.LedgerKindCashMovement, "Bargeld Einzahlung", daysAgo(2))
	addLedgerItem(t, r, "li_3", "50.00", model.LedgerKindCashMovement, "Bargeld Einzahlung", daysAgo(1))
}

func combinationRequest(items ...string) model.CommitRequest {
	return model.CommitRequest{
		TenantID:   tenant,
		SourceKind: model.RecordBankTransaction,
		SourceID:   "bt_1",
		ItemKind:   model.RecordLedgerItem,
		ItemIDs:    items,
		Confidence: 99,
		MatchType:  model.MatchTypeCombination,
		MatchedBy:  "anna",
	}
}

func TestCommitMatch_Validation(t *testing.T) {
	r, _, _ := newTestRecon(t)
	valid := combinationRequest("li_1", "li_2")

	tests := []struct {
		name   string
		mutate func(*model.CommitRequest)
		field  string
	}{
		{"empty tenant", func(req *model.CommitRequest) { req.TenantID = "" }, "tenant_id"},
		{"malformed source", func(req *model.CommitRequest) { req.SourceID = "bt/1" }, "source_id"},
		{"no items", func(req *model.CommitRequest) { req.ItemIDs = nil }, "item_ids"},
		{"duplicate items", func(req *model.CommitRequest) { req.ItemIDs = []string{"li_1", "li_1"} }, "item_ids"},
		{"malformed item", func(req *model.CommitRequest) { req.ItemIDs = []string{"li_1", ""} }, "item_ids"},
		{"unknown match type", func(req *model.CommitRequest) { req.MatchType = "fuzzy" }, "match_type"},
		{"confidence above 100", func(req *model.CommitRequest) { req.Confidence = 101 }, "confidence"},
		{"report as source", func(req *model.CommitRequest) { req.SourceKind = model.RecordProviderReport }, "source_kind"},
		{"ledger to ledger", func(req *model.CommitRequest) {
			req.SourceKind = model.RecordLedgerItem
			req.ItemKind = model.RecordLedgerItem
		}, "item_kind"},
		{"bulk against ledger items", func(req *model.CommitRequest) { req.MatchType = model.MatchTypeProviderBulk }, "match_type"},
		{"single with two items", func(req *model.CommitRequest) { req.MatchType = model.MatchTypeSingle }, "item_ids"},
		{"combination of one", func(req *model.CommitRequest) { req.ItemIDs = []string{"li_1"} }, "item_ids"},
		{"combination too large", func(req *model.CommitRequest) {
			req.ItemIDs = []string{"a", "b", "c", "d", "e", "f"}
		}, "item_ids"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			req.ItemIDs = append([]string(nil), valid.ItemIDs...)
			tt.mutate(&req)

			_, err := r.CommitMatch(context.Background(), req)
			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCommitMatch_ValidationDoesNotTouchStore(t *testing.T) {
	ds := new(mocks.MockDataSource)
	r := &Recon{datasource: ds, config: config.DefaultMatchingConfig(), now: func() time.Time { return testNow }}

	_, err := r.CommitMatch(context.Background(), combinationRequest())
	assert.True(t, model.IsValidation(err))
	ds.AssertNotCalled(t, "CommitMatch", mock.Anything, mock.Anything)
}

func TestCommitMatch_Combination(t *testing.T) {
	r, store, _ := newTestRecon(t)
	seedCashDeposit(t, r)
	ctx := context.Background()

	m, err := r.CommitMatch(ctx, combinationRequest("li_1", "li_2", "li_3"))
	require.NoError(t, err)
	assert.Regexp(t, "^match_", m.MatchID)
	assert.Equal(t, "anna", m.MatchedBy)
	assert.Equal(t, testNow, m.MatchedAt)
	assert.True(t, m.Active())

	stored, err := r.GetMatch(ctx, tenant, m.MatchID)
	require.NoError(t, err)
	assert.Equal(t, []string{"li_1", "li_2", "li_3"}, stored.MatchedItemIDs)

	items, err := store.GetUnmatchedLedgerItems(ctx, tenant)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCommitMatch_SecondCommitIsAlreadyMatched(t *testing.T) {
	r, _, _ := newTestRecon(t)
	seedCashDeposit(t, r)
	ctx := context.Background()

	_, err := r.CommitMatch(ctx, combinationRequest("li_1", "li_2", "li_3"))
	require.NoError(t, err)

	_, err = r.CommitMatch(ctx, combinationRequest("li_1", "li_2", "li_3"))
	var conflict *model.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, model.ReasonAlreadyMatched, conflict.Reason)
	assert.Equal(t, model.SideSource, conflict.Side)

	matches, err := r.ListMatches(ctx, tenant, true, 0, 0)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestCommitMatch_AmountDriftNamesItems(t *testing.T) {
	r, _, _ := newTestRecon(t)
	seedCashDeposit(t, r)

	_, err := r.CommitMatch(context.Background(), combinationRequest("li_1", "li_2"))
	var conflict *model.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, model.ReasonAmountDrift, conflict.Reason)
	assert.Equal(t, model.SideItem, conflict.Side)
	assert.Equal(t, model.MustAmount("145.00"), conflict.Expected)
	assert.Equal(t, model.MustAmount("95.00"), conflict.Actual)
}

func TestCommitMatch_SingleWithinTolerance(t *testing.T) {
	r, _, _ := newTestRecon(t)
	addBankTxn(t, r, "bt_1", "100.00", "Einzahlung", day)
	addLedgerItem(t, r, "li_1", "97.50", model.LedgerKindCashMovement, "Einzahlung", day)

	req := combinationRequest("li_1")
	req.MatchType = model.MatchTypeSingle
	_, err := r.CommitMatch(context.Background(), req)
	assert.NoError(t, err)
}

func TestCommitMatch_LedgerSourceMustBeSale(t *testing.T) {
	r, _, _ := newTestRecon(t)
	addLedgerItem(t, r, "li_1", "50.00", model.LedgerKindExpense, "Shampoo", day)
	addReport(t, r, "rep_1", model.ProviderTwint, "50.00", "0.65", day)

	_, err := r.CommitMatch(context.Background(), model.CommitRequest{
		TenantID: tenant, SourceKind: model.RecordLedgerItem, SourceID: "li_1",
		ItemKind: model.RecordProviderReport, ItemIDs: []string{"rep_1"}, MatchType: model.MatchTypeSingle,
	})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "source_id", verr.Field)
}

func TestCommitMatch_OtherTenantIsNotFound(t *testing.T) {
	r, _, _ := newTestRecon(t)
	seedCashDeposit(t, r)

	req := combinationRequest("li_1", "li_2", "li_3")
	req.TenantID = "tenant_b"
	_, err := r.CommitMatch(context.Background(), req)
	assert.True(t, model.IsNotFound(err))
}

func TestCommitMatch_StoreFailureIsWrapped(t *testing.T) {
	ds := new(mocks.MockDataSource)
	r := &Recon{datasource: ds, config: config.DefaultMatchingConfig(), now: func() time.Time { return testNow }}
	storeErr := errors.New("connection refused")
	ds.On("CommitMatch", mock.Anything, mock.AnythingOfType("model.CommitPlan")).Return(storeErr)

	_, err := r.CommitMatch(context.Background(), combinationRequest("li_1", "li_2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.Contains(t, err.Error(), "commit match")
	assert.False(t, isCandidateError(err))
}

func TestCommitMatch_PlanCarriesTolerance(t *testing.T) {
	ds := new(mocks.MockDataSource)
	r := &Recon{datasource: ds, config: config.DefaultMatchingConfig(), now: func() time.Time { return testNow }}
	ds.On("CommitMatch", mock.Anything, mock.MatchedBy(func(plan model.CommitPlan) bool {
		return plan.Tolerance == model.MustAmount("1.00") && plan.Match.MatchedBy == "anna"
	})).Return(nil)

	_, err := r.CommitMatch(context.Background(), combinationRequest("li_1", "li_2"))
	assert.NoError(t, err)
	ds.AssertExpectations(t)
}

func TestReverseMatch(t *testing.T) {
	r, store, _ := newTestRecon(t)
	seedCashDeposit(t, r)
	ctx := context.Background()

	m, err := r.CommitMatch(ctx, combinationRequest("li_1", "li_2", "li_3"))
	require.NoError(t, err)

	voided, err := r.ReverseMatch(ctx, tenant, m.MatchID, "")
	require.NoError(t, err)
	assert.False(t, voided.Active())
	assert.Equal(t, defaultMatchedBy, voided.VoidedBy)

	items, err := store.GetUnmatchedLedgerItems(ctx, tenant)
	require.NoError(t, err)
	assert.Len(t, items, 3)
	txns, err := store.GetUnmatchedBankTransactions(ctx, tenant)
	require.NoError(t, err)
	assert.Len(t, txns, 1)

	_, err = r.ReverseMatch(ctx, tenant, m.MatchID, "anna")
	assert.True(t, model.IsConflict(err, model.ReasonAlreadyVoided))

	_, err = r.ReverseMatch(ctx, tenant, "match_404", "anna")
	assert.True(t, model.IsNotFound(err))
}

func TestListMatches_PageBounds(t *testing.T) {
	ds := new(mocks.MockDataSource)
	r := &Recon{datasource: ds, config: config.DefaultMatchingConfig()}
	ds.On("ListMatches", mock.Anything, tenant, false, maxPageSize, 0).Return([]model.Match{}, nil)

	_, err := r.ListMatches(context.Background(), tenant, false, 10_000, -3)
	assert.NoError(t, err)
	ds.AssertExpectations(t)
}
