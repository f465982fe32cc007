package recon

import (
	"fmt"
	"strings"

	"github.com/kassa-labs/recon/model"
)

// closeAmount is the difference still reported as "very close".
const closeAmount model.Amount = 5

func amountReason(diff model.Amount) string {
	diff = diff.Abs()
	switch {
	case diff == 0:
		return "Exact amount match"
	case diff <= closeAmount:
		return fmt.Sprintf("Amount very close (±%s)", diff)
	case diff <= 100:
		return fmt.Sprintf("Amount similar (±%s)", diff)
	}
	return fmt.Sprintf("Amount differs (±%s)", diff)
}

func dateReason(days int) string {
	switch {
	case days == 0:
		return "Same day"
	case days == 1:
		return "Next day"
	case days <= 7:
		return fmt.Sprintf("Same week (%d days)", days)
	}
	return fmt.Sprintf("Date far apart (%d days)", days)
}

func sumReason(diff model.Amount) string {
	if diff == 0 {
		return "Exact sum"
	}
	return fmt.Sprintf("Sum within ±%s", diff.Abs())
}

func providerName(p model.Provider) string {
	if p == model.ProviderSumUp {
		return "SumUp"
	}
	return strings.ToUpper(string(p))
}
