package matching

import (
	"errors"
	"fmt"

	"github.com/kassa-labs/recon/model"
)

// State is a step of the reconciliation of one source record.
type State string

const (
	StateCollecting    State = "collecting"
	StateScored        State = "scored"
	StateAutoMatchable State = "auto_matchable"
	StateCommitted     State = "committed"
)

var ErrIllegalTransition = errors.New("illegal reconciliation state transition")

// Session tracks one source record through collecting, scoring, classification
// and commit. Transitions never modify the receiver.
type Session struct {
	State      State
	SourceID   string
	Candidates []model.MatchCandidate
	Match      *model.Match
}

// Collect starts a session for a source record.
func Collect(sourceID string) Session {
	return Session{State: StateCollecting, SourceID: sourceID}
}

// Score attaches ranked candidates. Rescoring is allowed until the session is committed.
func (s Session) Score(candidates []model.MatchCandidate) (Session, error) {
	if s.State == StateCommitted {
		return s, illegal(s.State, StateScored)
	}
	ranked := make([]model.MatchCandidate, len(candidates))
	copy(ranked, candidates)
	RankCandidates(ranked)

	next := Session{State: StateScored, SourceID: s.SourceID, Candidates: ranked}
	return next, nil
}

// Classify applies the policy. The session becomes auto-matchable only when its
// top candidate is; otherwise it stays scored and waits for an operator.
func (s Session) Classify(p Policy) (Session, error) {
	if s.State != StateScored && s.State != StateAutoMatchable {
		return s, illegal(s.State, StateAutoMatchable)
	}
	next := Session{State: StateScored, SourceID: s.SourceID, Candidates: p.Apply(s.Candidates)}
	if top, ok := next.Top(); ok && top.Classification == model.AutoMatchable {
		next.State = StateAutoMatchable
	}
	return next, nil
}

// Commit records the persisted match. A scored session may only be committed
// when an operator confirmed the candidate.
func (s Session) Commit(m *model.Match, confirmed bool) (Session, error) {
	switch {
	case m == nil:
		return s, fmt.Errorf("%w: nil match", ErrIllegalTransition)
	case s.State == StateAutoMatchable:
	case s.State == StateScored && confirmed:
	default:
		return s, illegal(s.State, StateCommitted)
	}
	next := s
	next.State = StateCommitted
	next.Match = m
	return next, nil
}

// Top returns the best ranked candidate.
func (s Session) Top() (model.MatchCandidate, bool) {
	if len(s.Candidates) == 0 {
		return model.MatchCandidate{}, false
	}
	return s.Candidates[0], true
}

func illegal(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}
