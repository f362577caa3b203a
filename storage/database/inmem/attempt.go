package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/quiz"
)

var attemptOrderings = map[string]lessFunc[quiz.Attempt]{
	"unit_code":    func(a, b quiz.Attempt) int { return compareStr(a.UnitCode, b.UnitCode) },
	"correct":      func(a, b quiz.Attempt) int { return compareInt(a.Correct, b.Correct) },
	"xp":           func(a, b quiz.Attempt) int { return compareInt(a.XP, b.XP) },
	"submitted_at": func(a, b quiz.Attempt) int { return compareTime(a.SubmittedAt, b.SubmittedAt) },
}

type attemptRepository struct {
	db *table[quiz.Attempt]
}

func NewAttemptRepository(db *DB) quiz.Repository {
	return &attemptRepository{db: db.attempt}
}

func (repo *attemptRepository) CreateAttempt(_ context.Context, att quiz.Attempt) (quiz.Attempt, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	att.ID = uuid.New().String()
	repo.db.rows[att.ID] = &att
	return att, nil
}

func (repo *attemptRepository) DeleteAttempt(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return quiz.ErrAttemptNotFound
	}
	delete(repo.db.rows, id)
	return nil
}

func (repo *attemptRepository) QueryAttempts(_ context.Context, filter *quiz.AttemptFilter, ordering []core.DBOrdering) ([]quiz.Attempt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	atts := repo.db.all(func(a quiz.Attempt) bool {
		if filter == nil {
			return true
		}
		return (len(filter.StudentIDs) == 0 || contains(filter.StudentIDs, a.StudentID)) &&
			(filter.UnitCode == "" || a.UnitCode == filter.UnitCode) &&
			(filter.Passed == nil || a.Passed == *filter.Passed) &&
			(filter.SubmittedFrom.IsZero() || !a.SubmittedAt.Before(filter.SubmittedFrom)) &&
			(filter.SubmittedTo.IsZero() || !a.SubmittedAt.After(filter.SubmittedTo))
	})
	// newest first by default
	orderBy(atts, ordering, attemptOrderings, func(a, b quiz.Attempt) int {
		return compareTime(b.SubmittedAt, a.SubmittedAt)
	})
	return atts, nil
}
