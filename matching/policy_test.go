package matching

import (
	"errors"
	"testing"

	"github.com/kassa-labs/recon/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(source string, confidence float64, items ...string) model.MatchCandidate {
	return model.MatchCandidate{
		SourceID:       source,
		SourceKind:     model.RecordLedgerItem,
		MatchedItemIDs: items,
		MatchedKind:    model.RecordProviderReport,
		Confidence:     confidence,
		MatchType:      model.MatchTypeSingle,
	}
}

func TestPolicyClassify(t *testing.T) {
	p := DefaultPolicy
	assert.Equal(t, model.AutoMatchable, p.Classify(95))
	assert.Equal(t, model.AutoMatchable, p.Classify(99.5))
	assert.Equal(t, model.ReviewRequired, p.Classify(94.99))
	assert.Equal(t, model.ReviewRequired, p.Classify(50))
	assert.Equal(t, model.NotProposed, p.Classify(49.9))
}

func TestPolicyApplyDemotesNearTies(t *testing.T) {
	out := DefaultPolicy.Apply([]model.MatchCandidate{
		candidate("sale_1", 96, "report_1"),
		candidate("sale_1", 94, "report_2"),
	})

	require.Len(t, out, 2)
	assert.Equal(t, model.ReviewRequired, out[0].Classification)
	assert.Equal(t, model.ReviewRequired, out[1].Classification)
}

func TestPolicyApplyKeepsClearWinner(t *testing.T) {
	in := []model.MatchCandidate{
		candidate("sale_1", 99, "report_1"),
		candidate("sale_1", 80, "report_2"),
		candidate("sale_2", 40, "report_3"),
	}
	out := DefaultPolicy.Apply(in)

	assert.Equal(t, model.AutoMatchable, out[0].Classification)
	assert.Equal(t, model.ReviewRequired, out[1].Classification)
	assert.Equal(t, model.NotProposed, out[2].Classification)
	assert.Empty(t, in[0].Classification, "input must not be modified")
}

func TestPolicyApplyContestedItem(t *testing.T) {
	out := DefaultPolicy.Apply([]model.MatchCandidate{
		candidate("sale_1", 99, "report_1"),
		candidate("sale_2", 99, "report_1"),
		candidate("sale_3", 99, "report_9"),
	})

	assert.Equal(t, model.ReviewRequired, out[0].Classification)
	assert.Equal(t, model.ReviewRequired, out[1].Classification)
	assert.Equal(t, model.AutoMatchable, out[2].Classification)
}

func TestPolicyCustomThresholds(t *testing.T) {
	p := Policy{AutoThreshold: 90, ReviewThreshold: 60, AmbiguityMargin: 2}
	out := p.Apply([]model.MatchCandidate{
		candidate("sale_1", 93, "report_1"),
		candidate("sale_1", 90.5, "report_2"),
	})
	assert.Equal(t, model.AutoMatchable, out[0].Classification)
	assert.Equal(t, model.AutoMatchable, p.Classify(90))
	assert.Equal(t, model.NotProposed, p.Classify(55))
	assert.Len(t, p.Proposed([]model.MatchCandidate{candidate("a", 59), candidate("b", 60)}), 1)
}

func TestRankCandidates(t *testing.T) {
	cs := []model.MatchCandidate{
		candidate("bank_1", 80, "a", "b"),
		candidate("bank_1", 90, "c"),
		candidate("bank_1", 80, "d"),
	}
	RankCandidates(cs)
	assert.Equal(t, []string{"c"}, cs[0].MatchedItemIDs)
	assert.Equal(t, []string{"d"}, cs[1].MatchedItemIDs)
	assert.Equal(t, []string{"a", "b"}, cs[2].MatchedItemIDs)
}

func TestSessionTransitions(t *testing.T) {
	s := Collect("sale_1")
	assert.Equal(t, StateCollecting, s.State)

	_, err := s.Classify(DefaultPolicy)
	assert.True(t, errors.Is(err, ErrIllegalTransition))

	scored, err := s.Score([]model.MatchCandidate{
		candidate("sale_1", 70, "report_2"),
		candidate("sale_1", 99, "report_1"),
	})
	require.NoError(t, err)
	assert.Equal(t, StateScored, scored.State)
	top, ok := scored.Top()
	require.True(t, ok)
	assert.Equal(t, []string{"report_1"}, top.MatchedItemIDs)
	assert.Equal(t, StateCollecting, s.State)

	classified, err := scored.Classify(DefaultPolicy)
	require.NoError(t, err)
	assert.Equal(t, StateAutoMatchable, classified.State)

	committed, err := classified.Commit(&model.Match{MatchID: "match_1"}, false)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, committed.State)
	assert.Equal(t, "match_1", committed.Match.MatchID)

	_, err = committed.Score(nil)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestSessionReviewRequiresConfirmation(t *testing.T) {
	scored, err := Collect("sale_1").Score([]model.MatchCandidate{
		candidate("sale_1", 96, "report_1"),
		candidate("sale_1", 94, "report_2"),
	})
	require.NoError(t, err)

	classified, err := scored.Classify(DefaultPolicy)
	require.NoError(t, err)
	assert.Equal(t, StateScored, classified.State)

	_, err = classified.Commit(&model.Match{MatchID: "match_1"}, false)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	committed, err := classified.Commit(&model.Match{MatchID: "match_1"}, true)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, committed.State)
}

func TestSessionWithoutCandidates(t *testing.T) {
	scored, err := Collect("bank_1").Score(nil)
	require.NoError(t, err)
	classified, err := scored.Classify(DefaultPolicy)
	require.NoError(t, err)
	assert.Equal(t, StateScored, classified.State)
	_, ok := classified.Top()
	assert.False(t, ok)
}
