package matching

import (
	"sort"

	"github.com/kassa-labs/recon/model"
)

// Policy decides which candidates may be committed without human review.
type Policy struct {
	AutoThreshold   float64 `json:"auto_threshold"`
	ReviewThreshold float64 `json:"review_threshold"`
	AmbiguityMargin float64 `json:"ambiguity_margin"`
}

// DefaultPolicy auto-matches at 95 and shows candidates from 50 upwards.
var DefaultPolicy = Policy{AutoThreshold: 95, ReviewThreshold: 50, AmbiguityMargin: 5}

// Classify maps a confidence onto a classification, ignoring competing candidates.
func (p Policy) Classify(confidence float64) model.Classification {
	switch {
	case confidence >= p.AutoThreshold:
		return model.AutoMatchable
	case confidence >= p.ReviewThreshold:
		return model.ReviewRequired
	}
	return model.NotProposed
}

// Apply classifies every candidate of a pass and returns a new slice.
//
// A candidate is only auto-matchable when it beats every competing candidate by
// more than the ambiguity margin. Candidates compete when they share the source,
// or when they claim one of the same items.
func (p Policy) Apply(candidates []model.MatchCandidate) []model.MatchCandidate {
	out := make([]model.MatchCandidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].Classification = p.Classify(out[i].Confidence)
	}

	for i := range out {
		if out[i].Classification != model.AutoMatchable {
			continue
		}
		for j := range candidates {
			if i == j || !competing(candidates[i], candidates[j]) {
				continue
			}
			if candidates[i].Confidence-candidates[j].Confidence <= p.AmbiguityMargin {
				out[i].Classification = model.ReviewRequired
				break
			}
		}
	}
	return out
}

// Proposed drops candidates the policy would not show to anyone.
func (p Policy) Proposed(candidates []model.MatchCandidate) []model.MatchCandidate {
	var out []model.MatchCandidate
	for _, c := range candidates {
		if c.Confidence >= p.ReviewThreshold {
			out = append(out, c)
		}
	}
	return out
}

func competing(a, b model.MatchCandidate) bool {
	if a.SourceKind == b.SourceKind && a.SourceID == b.SourceID {
		return true
	}
	if a.MatchedKind != b.MatchedKind {
		return false
	}
	for _, x := range a.MatchedItemIDs {
		for _, y := range b.MatchedItemIDs {
			if x == y {
				return true
			}
		}
	}
	return false
}

// RankCandidates orders candidates by confidence, then by fewer items,
// then by smaller amount difference.
func RankCandidates(cs []model.MatchCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if len(a.MatchedItemIDs) != len(b.MatchedItemIDs) {
			return len(a.MatchedItemIDs) < len(b.MatchedItemIDs)
		}
		if a.AmountDifference.Abs() != b.AmountDifference.Abs() {
			return a.AmountDifference.Abs() < b.AmountDifference.Abs()
		}
		return model.IDKey(a.MatchedItemIDs) < model.IDKey(b.MatchedItemIDs)
	})
}
