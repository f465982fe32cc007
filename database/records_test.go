package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/kassa-labs/recon/internal/apierror"
	"github.com/kassa-labs/recon/model"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestRecordLedgerItem_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	item := &model.LedgerItem{
		ID:            "sale_1",
		TenantID:      "tenant_a",
		Date:          time.Now(),
		Amount:        4200,
		Description:   "Haircut",
		Kind:          model.LedgerKindSale,
		PaymentMethod: "twint",
		CreatedAt:     time.Now(),
	}

	mock.ExpectExec("INSERT INTO recon.ledger_items").
		WithArgs(item.ID, item.TenantID, item.Date, int64(4200), item.Description, "sale", "twint",
			int64(0), int64(0), false, item.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, ds.RecordLedgerItem(context.Background(), item))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordLedgerItem_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("INSERT INTO recon.ledger_items").
		WillReturnError(&pq.Error{Code: "23505"})

	err = ds.RecordLedgerItem(context.Background(), &model.LedgerItem{ID: "sale_1", TenantID: "tenant_a", Kind: model.LedgerKindSale})
	assert.Error(t, err)
	assert.Equal(t, apierror.ErrConflict, err.(apierror.APIError).Code)
}

func TestGetUnmatchedSales(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	now := time.Now()

	mock.ExpectQuery("SELECT id, tenant_id, date, amount").
		WithArgs("tenant_a", "sale").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "date", "amount", "description", "kind",
			"payment_method", "provider_fee", "net_amount", "matched", "created_at"}).
			AddRow("sale_1", "tenant_a", now, int64(4200), "Haircut", "sale", "twint", int64(55), int64(4145), false, now))

	items, err := ds.GetUnmatchedSales(context.Background(), "tenant_a")
	assert.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, model.Amount(4200), items[0].Amount)
	assert.Equal(t, model.Amount(4145), items[0].NetAmount)
	assert.Equal(t, model.LedgerKindSale, items[0].Kind)
}

func TestGetBankTransaction_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT id, tenant_id, date, amount, description, reference").
		WithArgs("tenant_a", "bt_404").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = ds.GetBankTransaction(context.Background(), "tenant_a", "bt_404")
	assert.True(t, model.IsNotFound(err))
}

func TestGetUnmatchedProviderReports_Fail(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT id, tenant_id, provider").
		WillReturnError(fmt.Errorf("boom"))

	_, err = ds.GetUnmatchedProviderReports(context.Background(), "tenant_a")
	assert.Error(t, err)
	assert.Equal(t, apierror.ErrInternalServer, err.(apierror.APIError).Code)
}

func TestGetProviderReportStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	last := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT provider").
		WithArgs("tenant_a").
		WillReturnRows(sqlmock.NewRows([]string{"provider", "unmatched", "matched", "unmatched_net", "matched_net", "last"}).
			AddRow("sumup", 2, 0, int64(9800), int64(0), nil).
			AddRow("twint", 3, 4, int64(15000), int64(20000), last))

	stats, err := ds.GetProviderReportStats(context.Background(), "tenant_a")
	assert.NoError(t, err)
	assert.Len(t, stats, 2)
	assert.Nil(t, stats[0].LastTransactionAt)
	assert.Equal(t, model.ProviderTwint, stats[1].Provider)
	assert.Equal(t, 4, stats[1].MatchedReports)
	assert.Equal(t, model.Amount(15000), stats[1].UnmatchedNet)
	assert.Equal(t, last, *stats[1].LastTransactionAt)
}
