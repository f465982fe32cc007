package matching

import (
	"strings"

	"github.com/kassa-labs/recon/model"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// ProviderMarker lists the lower-case substrings that identify a provider in
// free text such as a bank statement line. More specific markers come first.
type ProviderMarker struct {
	Provider model.Provider
	Markers  []string
}

// ProviderMarkers is the single table every provider detection goes through.
var ProviderMarkers = []ProviderMarker{
	{Provider: model.ProviderTwint, Markers: []string{"gutschrift twint", "twint", "acquiring"}},
	{Provider: model.ProviderSumUp, Markers: []string{"sumup payments", "sumup", "payments ltd"}},
}

// KindMarker identifies ledger kinds from bank descriptions.
type KindMarker struct {
	Kind    model.LedgerKind
	Markers []string
}

var KindMarkers = []KindMarker{
	{Kind: model.LedgerKindCashMovement, Markers: []string{"cash", "transfer", "abhebung", "einzahlung"}},
	{Kind: model.LedgerKindOwnerTransaction, Markers: []string{"owner", "inhaber", "entnahme", "einlage"}},
}

// paymentMethodProviders maps sale payment methods onto the provider settling them.
var paymentMethodProviders = map[string]model.Provider{
	"twint": model.ProviderTwint,
	"sumup": model.ProviderSumUp,
	"card":  model.ProviderSumUp,
}

const (
	fuzzyMinLength   = 5
	fuzzyMaxDistance = 1
)

// DetectProvider classifies a free text description. It first looks for a
// contained marker, then accepts a description token within edit distance 1 of
// a single-word marker of at least five letters.
func DetectProvider(description string) (model.Provider, bool) {
	text := strings.ToLower(description)
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	for _, pm := range ProviderMarkers {
		for _, marker := range pm.Markers {
			if strings.Contains(text, marker) {
				return pm.Provider, true
			}
		}
	}

	tokens := tokenize(text)
	for _, pm := range ProviderMarkers {
		for _, marker := range pm.Markers {
			if strings.Contains(marker, " ") || len([]rune(marker)) < fuzzyMinLength {
				continue
			}
			for _, tok := range tokens {
				if len([]rune(tok)) < fuzzyMinLength {
					continue
				}
				if levenshtein.DistanceForStrings([]rune(tok), []rune(marker), levenshtein.DefaultOptionsWithSub) <= fuzzyMaxDistance {
					return pm.Provider, true
				}
			}
		}
	}
	return "", false
}

// DetectLedgerKind classifies a bank description as a cash or owner movement.
func DetectLedgerKind(description string) (model.LedgerKind, bool) {
	text := strings.ToLower(description)
	for _, km := range KindMarkers {
		for _, marker := range km.Markers {
			if strings.Contains(text, marker) {
				return km.Kind, true
			}
		}
	}
	return "", false
}

// ProviderFromPaymentMethod returns the provider that settles a sale paid with method.
// Cash and unknown methods have no provider.
func ProviderFromPaymentMethod(method string) (model.Provider, bool) {
	p, ok := paymentMethodProviders[strings.ToLower(strings.TrimSpace(method))]
	return p, ok
}
