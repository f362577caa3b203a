package quiz

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/user"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

var _ core.Logger = nopLogger{}

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *fakeGenerator) Generate(_ context.Context, req GenerateRequest) ([]Question, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	qs := make([]Question, 0, req.Count+1)
	for i := 0; i <= req.Count; i++ { // one more than asked
		qs = append(qs, Question{
			ID:       "gen-" + uuid.New().String(),
			Grade:    req.Grade,
			UnitCode: req.UnitCode,
			Prompt:   "gerada",
			Options:  []string{"certa", "errada"},
			Source:   SourceGenerated,
		})
	}
	return qs, nil
}

type attemptRepo struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (r *attemptRepo) CreateAttempt(_ context.Context, att Attempt) (Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	att.ID = uuid.New().String()
	r.attempts = append(r.attempts, att)
	return att, nil
}

func (r *attemptRepo) DeleteAttempt(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, att := range r.attempts {
		if att.ID == id {
			r.attempts = append(r.attempts[:i], r.attempts[i+1:]...)
			return nil
		}
	}
	return ErrAttemptNotFound
}

func (r *attemptRepo) QueryAttempts(_ context.Context, filter *AttemptFilter, _ []core.DBOrdering) ([]Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make(map[string]bool)
	for _, id := range filter.StudentIDs {
		ids[id] = true
	}
	var atts []Attempt
	for _, att := range r.attempts {
		if len(ids) > 0 && !ids[att.StudentID] {
			continue
		}
		if filter.Passed != nil && att.Passed != *filter.Passed {
			continue
		}
		if filter.UnitCode != "" && att.UnitCode != filter.UnitCode {
			continue
		}
		atts = append(atts, att)
	}
	return atts, nil
}

type xpAwarder struct {
	xp  map[string]int
	err error
}

func (a *xpAwarder) AwardXP(_ context.Context, id string, amount int) (user.User, error) {
	if a.err != nil {
		return user.User{}, a.err
	}
	a.xp[id] += amount
	return user.User{ID: id, Role: user.RoleStudent, XP: a.xp[id]}, nil
}
