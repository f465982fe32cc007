package matching

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/kassa-labs/recon/model"
)

// Record is the scoring view of any participant: a ledger item, a bank
// transaction or a provider report, reduced to what the heuristics compare.
type Record struct {
	ID          string
	Date        time.Time
	Amount      model.Amount
	Description string
}

// Weights of the three sub-scores in the final confidence.
type Weights struct {
	Amount      float64 `json:"amount"`
	Date        float64 `json:"date"`
	Description float64 `json:"description"`
}

// DefaultWeights favour the amount: in a cash business description text is
// unreliable, while the amount is the strongest discriminant.
var DefaultWeights = Weights{Amount: 70, Date: 20, Description: 10}

// Scorer computes confidences for pairs of records.
type Scorer struct {
	Weights Weights
}

func NewScorer(w Weights) Scorer {
	return Scorer{Weights: w}
}

// Score rates how likely candidate corresponds to source.
func (s Scorer) Score(source, candidate Record) model.Scores {
	diff := (source.Amount - candidate.Amount).Abs()
	sc := model.Scores{
		AmountAccuracy:   AmountAccuracy(diff),
		DateProximity:    DateProximity(model.DaysBetween(source.Date, candidate.Date)),
		DescriptionMatch: DescriptionMatch(source.Description, candidate.Description),
	}
	sc.FinalScore = s.Final(sc)
	return sc
}

// Final is the weighted mean of the sub-scores. It is not rounded so that it
// always stays between the smallest and the largest sub-score.
func (s Scorer) Final(sc model.Scores) float64 {
	total := s.Weights.Amount + s.Weights.Date + s.Weights.Description
	if total <= 0 {
		return 0
	}
	sum := s.Weights.Amount*sc.AmountAccuracy + s.Weights.Date*sc.DateProximity + s.Weights.Description*sc.DescriptionMatch
	return sum / total
}

// AmountAccuracy maps an absolute amount difference to a 0-100 score.
// Fee and rounding noise keeps a high score, while differences above 5.00 score 0.
func AmountAccuracy(diff model.Amount) float64 {
	d := diff.Abs().Units()
	switch {
	case d < 0.01:
		return 100
	case d <= 0.05:
		return 95
	case d <= 1.0:
		return math.Max(80-d*10, 60)
	case d <= 5.0:
		return math.Max(60-d*5, 30)
	}
	return 0
}

// DateProximity maps a difference in calendar days to a 0-100 score.
// The decay is gentle enough to survive weekend settlement lags.
func DateProximity(days int) float64 {
	if days < 0 {
		days = -days
	}
	switch {
	case days == 0:
		return 100
	case days == 1:
		return 75
	case days <= 7:
		return 50
	}
	return math.Max(0, float64(20-days))
}

const (
	descriptionContained = 90
	descriptionPerToken  = 25
	descriptionTokenCap  = 70
	descriptionFloor     = 10
	minTokenLength       = 4
)

// DescriptionMatch compares two free text descriptions case-insensitively.
func DescriptionMatch(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return descriptionFloor
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return descriptionContained
	}

	common := 0
	seen := tokenSet(b)
	for tok := range tokenSet(a) {
		if _, ok := seen[tok]; ok {
			common++
		}
	}
	if common == 0 {
		return descriptionFloor
	}
	return math.Min(descriptionTokenCap, float64(common*descriptionPerToken))
}

// tokenize splits lower-cased text on anything that is not a letter or a digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenize(s) {
		if len([]rune(tok)) >= minTokenLength {
			set[tok] = struct{}{}
		}
	}
	return set
}
