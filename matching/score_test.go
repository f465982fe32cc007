package matching

import (
	"math"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/kassa-labs/recon/model"
	"github.com/stretchr/testify/assert"
)

func TestAmountAccuracy(t *testing.T) {
	tests := []struct {
		diff     string
		expected float64
	}{
		{"0.00", 100},
		{"0.01", 95},
		{"0.05", 95},
		{"0.50", 75},
		{"1.00", 70},
		{"2.00", 50},
		{"5.00", 35},
		{"5.01", 0},
		{"600.00", 0},
	}

	for _, tt := range tests {
		t.Run(tt.diff, func(t *testing.T) {
			assert.InDelta(t, tt.expected, AmountAccuracy(model.MustAmount(tt.diff)), 1e-9)
		})
	}
}

func TestAmountAccuracyIsMonotonic(t *testing.T) {
	prev := AmountAccuracy(0)
	assert.Equal(t, float64(100), prev)
	for cents := model.Amount(1); cents <= 1000; cents++ {
		cur := AmountAccuracy(cents)
		assert.LessOrEqual(t, cur, prev, "diff %s", cents)
		assert.Equal(t, cur, AmountAccuracy(-cents))
		prev = cur
	}
	assert.Equal(t, float64(0), AmountAccuracy(501))
}

func TestDateProximity(t *testing.T) {
	assert.Equal(t, float64(100), DateProximity(0))
	assert.Equal(t, float64(75), DateProximity(1))
	assert.Equal(t, float64(50), DateProximity(7))
	assert.Equal(t, float64(12), DateProximity(8))
	assert.Equal(t, float64(0), DateProximity(25))

	prev := DateProximity(0)
	for days := 1; days <= 40; days++ {
		cur := DateProximity(days)
		assert.LessOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestDateProximityIsSymmetric(t *testing.T) {
	gofakeit.Seed(7)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		a := gofakeit.DateRange(start, end)
		b := gofakeit.DateRange(start, end)
		assert.Equal(t,
			DateProximity(model.DaysBetween(a, b)),
			DateProximity(model.DaysBetween(b, a)))
	}
}

func TestDescriptionMatch(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"containment", "Gutschrift TWINT Acquiring", "twint", 90},
		{"case insensitive equal", "SumUp", "sumup", 90},
		{"one shared token", "Cash transfer to bank", "Einzahlung transfer", 25},
		{"two shared tokens", "Coffee beans supplier", "Supplier invoice coffee", 50},
		{"capped at 70", "alpha bravo charlie delta x", "y delta charlie bravo alpha", 70},
		{"short tokens ignored", "abc def", "def abc ghi", 10},
		{"no overlap", "rent", "salary", 10},
		{"empty", "", "twint", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DescriptionMatch(tt.a, tt.b))
		})
	}
}

func TestFinalScoreIsConvex(t *testing.T) {
	gofakeit.Seed(11)
	scorer := NewScorer(DefaultWeights)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 500; i++ {
		src := Record{
			Amount:      model.Amount(gofakeit.Number(-100000, 100000)),
			Date:        base.AddDate(0, 0, gofakeit.Number(-30, 30)),
			Description: gofakeit.Sentence(3),
		}
		cand := Record{
			Amount:      model.Amount(gofakeit.Number(-100000, 100000)),
			Date:        base.AddDate(0, 0, gofakeit.Number(-30, 30)),
			Description: gofakeit.Sentence(3),
		}
		sc := scorer.Score(src, cand)
		lo := math.Min(sc.AmountAccuracy, math.Min(sc.DateProximity, sc.DescriptionMatch))
		hi := math.Max(sc.AmountAccuracy, math.Max(sc.DateProximity, sc.DescriptionMatch))
		assert.GreaterOrEqual(t, sc.FinalScore, lo-1e-9)
		assert.LessOrEqual(t, sc.FinalScore, hi+1e-9)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	scorer := NewScorer(DefaultWeights)
	day := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	src := Record{ID: "sale_1", Amount: 5000, Date: day, Description: "twint"}
	cand := Record{ID: "report_1", Amount: 5000, Date: day.Add(3 * time.Hour), Description: "twint"}

	first := scorer.Score(src, cand)
	assert.Equal(t, first, scorer.Score(src, cand))
	assert.Equal(t, float64(99), first.FinalScore)
}

func TestFinalScoreZeroWeights(t *testing.T) {
	scorer := NewScorer(Weights{})
	assert.Equal(t, float64(0), scorer.Final(model.Scores{AmountAccuracy: 100, DateProximity: 100, DescriptionMatch: 100}))
}
