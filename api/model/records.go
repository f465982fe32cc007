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
package model

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kassa-labs/recon/model"
	"github.com/wacul/ptr"
)

const dateOnly = "2006-01-02"

type CreateLedgerItem struct {
	ID            string `json:"id"`
	Date          string `json:"date"`
	Amount        string `json:"amount"`
	Description   string `json:"description"`
	Kind          string `json:"kind"`
	PaymentMethod string `json:"payment_method"`
	ProviderFee   string `json:"provider_fee"`
	NetAmount     string `json:"net_amount"`
}

type CreateBankTransaction struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
}

type CreateProviderReport struct {
	ID                    string `json:"id"`
	Provider              string `json:"provider"`
	TransactionDate       string `json:"transaction_date"`
	SettlementDate        string `json:"settlement_date"`
	GrossAmount           string `json:"gross_amount"`
	Fees                  string `json:"fees"`
	NetAmount             string `json:"net_amount"`
	Description           string `json:"description"`
	ProviderTransactionID string `json:"provider_transaction_id"`
}

// parseDate accepts RFC 3339 timestamps and plain calendar dates.
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateOnly, value)
	if err != nil {
		return time.Time{}, errors.New("must be a date like 2024-03-14 or 2024-03-14T15:28:03+00:00")
	}
	return t, nil
}

func validDate(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, err := parseDate(s)
	return err
}

func validAmount(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := model.ParseAmount(s); err != nil {
		return errors.New("must be a decimal amount like 145.00")
	}
	return nil
}

// optionalAmount parses s, treating an empty string as zero. Callers validate first.
func optionalAmount(s string) model.Amount {
	if s == "" {
		return 0
	}
	a, _ := model.ParseAmount(s)
	return a
}

func (l *CreateLedgerItem) ValidateCreateLedgerItem() error {
	return validation.ValidateStruct(l,
		validation.Field(&l.ID, validation.Required),
		validation.Field(&l.Date, validation.Required, validation.By(validDate)),
		validation.Field(&l.Amount, validation.Required, validation.By(validAmount)),
		validation.Field(&l.Kind, validation.Required, validation.In(
			string(model.LedgerKindSale),
			string(model.LedgerKindExpense),
			string(model.LedgerKindCashMovement),
			string(model.LedgerKindOwnerTransaction),
			string(model.LedgerKindProviderSettlement),
		)),
		validation.Field(&l.ProviderFee, validation.By(validAmount)),
		validation.Field(&l.NetAmount, validation.By(validAmount)),
	)
}

func (l *CreateLedgerItem) ToLedgerItem(tenantID string) *model.LedgerItem {
	date, _ := parseDate(l.Date)
	return &model.LedgerItem{
		ID:            l.ID,
		TenantID:      tenantID,
		Date:          date,
		Amount:        optionalAmount(l.Amount),
		Description:   l.Description,
		Kind:          model.LedgerKind(l.Kind),
		PaymentMethod: l.PaymentMethod,
		ProviderFee:   optionalAmount(l.ProviderFee),
		NetAmount:     optionalAmount(l.NetAmount),
	}
}

func (b *CreateBankTransaction) ValidateCreateBankTransaction() error {
	return validation.ValidateStruct(b,
		validation.Field(&b.ID, validation.Required),
		validation.Field(&b.Date, validation.Required, validation.By(validDate)),
		validation.Field(&b.Amount, validation.Required, validation.By(validAmount)),
	)
}

func (b *CreateBankTransaction) ToBankTransaction(tenantID string) *model.BankTransaction {
	date, _ := parseDate(b.Date)
	return &model.BankTransaction{
		ID:          b.ID,
		TenantID:    tenantID,
		Date:        date,
		Amount:      optionalAmount(b.Amount),
		Description: b.Description,
		Reference:   b.Reference,
	}
}

func (p *CreateProviderReport) ValidateCreateProviderReport() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.ID, validation.Required),
		validation.Field(&p.Provider, validation.Required, validation.In(string(model.ProviderTwint), string(model.ProviderSumUp))),
		validation.Field(&p.TransactionDate, validation.Required, validation.By(validDate)),
		validation.Field(&p.SettlementDate, validation.By(validDate)),
		validation.Field(&p.GrossAmount, validation.Required, validation.By(validAmount)),
		validation.Field(&p.Fees, validation.By(validAmount)),
		validation.Field(&p.NetAmount, validation.By(validAmount)),
	)
}

func (p *CreateProviderReport) ToProviderReport(tenantID string) *model.ProviderSettlementReport {
	txDate, _ := parseDate(p.TransactionDate)
	report := &model.ProviderSettlementReport{
		ID:                    p.ID,
		TenantID:              tenantID,
		Provider:              model.Provider(p.Provider),
		TransactionDate:       txDate,
		GrossAmount:           optionalAmount(p.GrossAmount),
		Fees:                  optionalAmount(p.Fees),
		NetAmount:             optionalAmount(p.NetAmount),
		NetReported:           p.NetAmount != "",
		Description:           p.Description,
		ProviderTransactionID: p.ProviderTransactionID,
	}
	if p.SettlementDate != "" {
		settled, _ := parseDate(p.SettlementDate)
		report.SettlementDate = ptr.Time(settled)
	}
	return report
}
