package matching

import (
	"strings"
	"testing"

	"github.com/kassa-labs/recon/model"
	"github.com/stretchr/testify/assert"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		description string
		expected    model.Provider
		found       bool
	}{
		{"Gutschrift TWINT AG 12.06.2024", model.ProviderTwint, true},
		{"ACQUIRING SETTLEMENT 4432", model.ProviderTwint, true},
		{"SumUp Payments Ltd payout", model.ProviderSumUp, true},
		{"PAYMENTS LTD DUBLIN", model.ProviderSumUp, true},
		{"Gutschrift TWLNT", model.ProviderTwint, true},
		{"Summup payout", model.ProviderSumUp, true},
		{"Miete Juni", "", false},
		{"print shop", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			provider, ok := DetectProvider(tt.description)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, provider)
		})
	}
}

func TestDetectLedgerKind(t *testing.T) {
	kind, ok := DetectLedgerKind("Bargeld Einzahlung Filiale")
	assert.True(t, ok)
	assert.Equal(t, model.LedgerKindCashMovement, kind)

	kind, ok = DetectLedgerKind("Privat Entnahme Inhaber")
	assert.True(t, ok)
	assert.Equal(t, model.LedgerKindOwnerTransaction, kind)

	_, ok = DetectLedgerKind("Lieferant Rechnung 2024-17")
	assert.False(t, ok)
}

func TestProviderFromPaymentMethod(t *testing.T) {
	p, ok := ProviderFromPaymentMethod(" TWINT ")
	assert.True(t, ok)
	assert.Equal(t, model.ProviderTwint, p)

	p, ok = ProviderFromPaymentMethod("card")
	assert.True(t, ok)
	assert.Equal(t, model.ProviderSumUp, p)

	_, ok = ProviderFromPaymentMethod("cash")
	assert.False(t, ok)
}

func TestMarkerTablesAreLowerCase(t *testing.T) {
	for _, pm := range ProviderMarkers {
		assert.True(t, pm.Provider.Valid())
		for _, m := range pm.Markers {
			assert.Equal(t, m, strings.ToLower(m))
		}
	}
	for _, km := range KindMarkers {
		assert.True(t, km.Kind.Valid())
	}
}
