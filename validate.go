package recon

import (
	"errors"
	"regexp"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kassa-labs/recon/model"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]{1,128}$`)

// pairings lists the legal source → item kinds and the match types each allows.
var pairings = map[model.RecordKind]map[model.RecordKind][]model.MatchType{
	model.RecordLedgerItem: {
		model.RecordProviderReport: {model.MatchTypeSingle},
	},
	model.RecordBankTransaction: {
		model.RecordLedgerItem:     {model.MatchTypeSingle, model.MatchTypeCombination},
		model.RecordProviderReport: {model.MatchTypeSingle, model.MatchTypeCombination, model.MatchTypeProviderBulk},
	},
}

func validateTenant(tenantID string) error {
	if err := validation.Validate(tenantID, validation.Required, validation.Match(idPattern)); err != nil {
		return model.NewValidationError("tenant_id", err.Error())
	}
	return nil
}

func validateCommitRequest(req *model.CommitRequest, maxCombination, maxBulk int) error {
	err := validation.ValidateStruct(req,
		validation.Field(&req.TenantID, validation.Required, validation.Match(idPattern)),
		validation.Field(&req.SourceID, validation.Required, validation.Match(idPattern)),
		validation.Field(&req.SourceKind, validation.Required, validation.In(model.RecordLedgerItem, model.RecordBankTransaction)),
		validation.Field(&req.ItemKind, validation.Required, validation.In(model.RecordLedgerItem, model.RecordProviderReport)),
		validation.Field(&req.ItemIDs, validation.Required, validation.Each(validation.Required, validation.Match(idPattern)), validation.By(uniqueIDs)),
		validation.Field(&req.MatchType, validation.Required, validation.In(model.MatchTypeSingle, model.MatchTypeCombination, model.MatchTypeProviderBulk)),
		validation.Field(&req.Confidence, validation.Min(0.0), validation.Max(100.0)),
	)
	if err != nil {
		return toValidationError(err)
	}

	allowed, ok := pairings[req.SourceKind][req.ItemKind]
	if !ok {
		return model.NewValidationError("item_kind", string(req.SourceKind)+" cannot be matched with "+string(req.ItemKind))
	}
	if !containsType(allowed, req.MatchType) {
		return model.NewValidationError("match_type", string(req.MatchType)+" is not allowed for "+string(req.SourceKind)+" to "+string(req.ItemKind))
	}

	n := len(req.ItemIDs)
	switch req.MatchType {
	case model.MatchTypeSingle:
		if n != 1 {
			return model.NewValidationError("item_ids", "a single match takes exactly one item")
		}
	case model.MatchTypeCombination:
		if n < 2 || n > maxCombination {
			return model.NewValidationError("item_ids", "a combination takes between 2 and the configured maximum of items")
		}
	case model.MatchTypeProviderBulk:
		if n > maxBulk {
			return model.NewValidationError("item_ids", "too many reports for a bulk settlement")
		}
	}
	return nil
}

func uniqueIDs(value interface{}) error {
	ids, _ := value.([]string)
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return errors.New("duplicate id " + id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func containsType(types []model.MatchType, t model.MatchType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// toValidationError reduces ozzo's field map to the first failing field, in name order.
func toValidationError(err error) error {
	var errs validation.Errors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return model.NewValidationError("", err.Error())
	}
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return model.NewValidationError(fields[0], errs[fields[0]].Error())
}

func validateLedgerItem(item *model.LedgerItem) error {
	err := validation.ValidateStruct(item,
		validation.Field(&item.ID, validation.Required, validation.Match(idPattern)),
		validation.Field(&item.TenantID, validation.Required, validation.Match(idPattern)),
		validation.Field(&item.Date, validation.Required),
		validation.Field(&item.Amount, validation.Required),
		validation.Field(&item.Kind, validation.Required, validation.In(model.LedgerKindSale, model.LedgerKindExpense,
			model.LedgerKindCashMovement, model.LedgerKindOwnerTransaction, model.LedgerKindProviderSettlement)),
	)
	if err != nil {
		return toValidationError(err)
	}
	return nil
}

func validateBankTransaction(txn *model.BankTransaction) error {
	err := validation.ValidateStruct(txn,
		validation.Field(&txn.ID, validation.Required, validation.Match(idPattern)),
		validation.Field(&txn.TenantID, validation.Required, validation.Match(idPattern)),
		validation.Field(&txn.Date, validation.Required),
		validation.Field(&txn.Amount, validation.Required),
	)
	if err != nil {
		return toValidationError(err)
	}
	return nil
}

func validateProviderReport(report *model.ProviderSettlementReport) error {
	err := validation.ValidateStruct(report,
		validation.Field(&report.ID, validation.Required, validation.Match(idPattern)),
		validation.Field(&report.TenantID, validation.Required, validation.Match(idPattern)),
		validation.Field(&report.Provider, validation.Required, validation.In(model.ProviderTwint, model.ProviderSumUp)),
		validation.Field(&report.TransactionDate, validation.Required),
		validation.Field(&report.GrossAmount, validation.Required),
		validation.Field(&report.Fees, validation.Min(model.Amount(0))),
	)
	if err != nil {
		return toValidationError(err)
	}
	return nil
}
