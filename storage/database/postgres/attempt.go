package pgdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/quiz"
)

var attemptColumns = map[string]string{
	"unit_code":    "unit_code",
	"correct":      "correct",
	"xp":           "xp",
	"submitted_at": "submitted_at",
}

type attemptRow struct {
	ID          string    `db:"id"`
	StudentID   string    `db:"student_id"`
	Grade       int       `db:"grade"`
	UnitCode    string    `db:"unit_code"`
	Total       int       `db:"total"`
	Correct     int       `db:"correct"`
	XP          int       `db:"xp"`
	Passed      bool      `db:"passed"`
	StartedAt   time.Time `db:"started_at"`
	SubmittedAt time.Time `db:"submitted_at"`
}

func (row attemptRow) unboil() quiz.Attempt {
	return quiz.Attempt{
		ID:          row.ID,
		StudentID:   row.StudentID,
		Grade:       row.Grade,
		UnitCode:    row.UnitCode,
		Total:       row.Total,
		Correct:     row.Correct,
		XP:          row.XP,
		Passed:      row.Passed,
		StartedAt:   row.StartedAt.UTC(),
		SubmittedAt: row.SubmittedAt.UTC(),
	}
}

type attemptRepository struct {
	db *sqlx.DB
}

func NewAttemptRepository(db *sqlx.DB) quiz.Repository {
	return &attemptRepository{db: db}
}

func (repo *attemptRepository) CreateAttempt(ctx context.Context, att quiz.Attempt) (quiz.Attempt, error) {
	row := attemptRow{
		ID:          uuid.New().String(),
		StudentID:   att.StudentID,
		Grade:       att.Grade,
		UnitCode:    att.UnitCode,
		Total:       att.Total,
		Correct:     att.Correct,
		XP:          att.XP,
		Passed:      att.Passed,
		StartedAt:   att.StartedAt.UTC(),
		SubmittedAt: att.SubmittedAt.UTC(),
	}
	_, err := repo.db.NamedExecContext(ctx, `INSERT INTO quiz_attempt (
		id, student_id, grade, unit_code, total, correct, xp, passed, started_at, submitted_at
	) VALUES (
		:id, :student_id, :grade, :unit_code, :total, :correct, :xp, :passed, :started_at, :submitted_at
	)`, row)
	if err != nil {
		return quiz.Attempt{}, errors.Wrap(err, "inserting attempt")
	}
	return row.unboil(), nil
}

func (repo *attemptRepository) DeleteAttempt(ctx context.Context, id string) error {
	if !validUUID(id) {
		return quiz.ErrAttemptNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM quiz_attempt WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting attempt")
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return quiz.ErrAttemptNotFound
	}
	return nil
}

func (repo *attemptRepository) QueryAttempts(ctx context.Context, filter *quiz.AttemptFilter, ordering []core.DBOrdering) ([]quiz.Attempt, error) {
	var w where
	if filter != nil {
		if len(filter.StudentIDs) > 0 {
			w.add("student_id::text = ANY(?)", pq.Array(filter.StudentIDs))
		}
		if filter.UnitCode != "" {
			w.add("unit_code = ?", filter.UnitCode)
		}
		if filter.Passed != nil {
			w.add("passed = ?", *filter.Passed)
		}
		if !filter.SubmittedFrom.IsZero() {
			w.add("submitted_at >= ?", filter.SubmittedFrom.UTC())
		}
		if !filter.SubmittedTo.IsZero() {
			w.add("submitted_at <= ?", filter.SubmittedTo.UTC())
		}
	}
	q, args := w.query(repo.db, "SELECT * FROM quiz_attempt", orderClause(ordering, attemptColumns, "submitted_at DESC, id ASC"))

	var rows []attemptRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying attempts")
	}
	atts := make([]quiz.Attempt, 0, len(rows))
	for _, row := range rows {
		atts = append(atts, row.unboil())
	}
	return atts, nil
}
