package pgdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/classroom"
)

var classroomColumns = map[string]string{
	"grade":      "grade",
	"class":      "class",
	"shift":      "shift",
	"created_at": "created_at",
}

type classroomRow struct {
	ID        string      `db:"id"`
	SchoolID  string      `db:"school_id"`
	Grade     int         `db:"grade"`
	Class     string      `db:"class"`
	Shift     string      `db:"shift"`
	TeacherID null.String `db:"teacher_id"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func boilClassroom(cls classroom.Classroom) classroomRow {
	return classroomRow{
		ID:        cls.ID,
		SchoolID:  cls.SchoolID,
		Grade:     cls.Grade,
		Class:     cls.Class,
		Shift:     cls.Shift,
		TeacherID: null.NewString(cls.TeacherID, cls.TeacherID != ""),
		CreatedAt: cls.CreatedAt.UTC(),
		UpdatedAt: cls.UpdatedAt.UTC(),
	}
}

func (row classroomRow) unboil() classroom.Classroom {
	return classroom.Classroom{
		ID:        row.ID,
		SchoolID:  row.SchoolID,
		Grade:     row.Grade,
		Class:     row.Class,
		Shift:     row.Shift,
		TeacherID: row.TeacherID.String,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func trapClassroomErr(err error) error {
	switch code, constraint := pqError(err); {
	case code == codeUniqueViolation:
		return classroom.ErrExists
	case code == codeForeignKeyViolation && constraint == "classroom_school_id_fkey":
		return classroom.ErrSchoolNotFound
	case code == codeForeignKeyViolation:
		return classroom.ErrInvalidTeacher
	}
	return trapNoRowsErr(err, classroom.ErrNotFound)
}

type classroomRepository struct {
	db *sqlx.DB
}

func NewClassroomRepository(db *sqlx.DB) classroom.Repository {
	return &classroomRepository{db: db}
}

func (repo *classroomRepository) namedGet(ctx context.Context, query string, row classroomRow) (classroom.Classroom, error) {
	q, args, err := sqlx.Named(query, row)
	if err != nil {
		return classroom.Classroom{}, errors.Wrap(err, "binding classroom")
	}
	var saved classroomRow
	if err = repo.db.GetContext(ctx, &saved, repo.db.Rebind(q), args...); err != nil {
		return classroom.Classroom{}, trapClassroomErr(err)
	}
	return saved.unboil(), nil
}

func (repo *classroomRepository) CreateClassroom(ctx context.Context, cls classroom.Classroom) (classroom.Classroom, error) {
	cls.ID = uuid.New().String()
	return repo.namedGet(ctx, `INSERT INTO classroom (id, school_id, grade, class, shift, teacher_id, created_at, updated_at)
	VALUES (:id, :school_id, :grade, :class, :shift, :teacher_id, :created_at, :updated_at) RETURNING *`, boilClassroom(cls))
}

func (repo *classroomRepository) QueryClassrooms(ctx context.Context, filter *classroom.QueryFilter, ordering []core.DBOrdering) ([]classroom.Classroom, error) {
	var w where
	if filter != nil {
		if len(filter.SchoolIDs) > 0 {
			w.add("school_id::text = ANY(?)", pq.Array(filter.SchoolIDs))
		}
		if len(filter.TeacherIDs) > 0 {
			w.add("teacher_id::text = ANY(?)", pq.Array(filter.TeacherIDs))
		}
		if filter.Grade != 0 {
			w.add("grade = ?", filter.Grade)
		}
		if filter.Class != "" {
			w.add("class = ?", filter.Class)
		}
		if filter.Shift != "" {
			w.add("shift = ?", filter.Shift)
		}
	}
	q, args := w.query(repo.db, "SELECT * FROM classroom", orderClause(ordering, classroomColumns, "grade ASC, class ASC, shift ASC"))

	var rows []classroomRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}
	classes := make([]classroom.Classroom, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.unboil())
	}
	return classes, nil
}

func (repo *classroomRepository) GetClassroom(ctx context.Context, id string) (classroom.Classroom, error) {
	if !validUUID(id) {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	var row classroomRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM classroom WHERE id = $1", id); err != nil {
		return classroom.Classroom{}, trapNoRowsErr(err, classroom.ErrNotFound)
	}
	return row.unboil(), nil
}

func (repo *classroomRepository) UpdateClassroom(ctx context.Context, cls classroom.Classroom) (classroom.Classroom, error) {
	if !validUUID(cls.ID) {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	return repo.namedGet(ctx, `UPDATE classroom SET
		school_id = :school_id, grade = :grade, class = :class, shift = :shift,
		teacher_id = :teacher_id, updated_at = :updated_at
	WHERE id = :id RETURNING *`, boilClassroom(cls))
}

func (repo *classroomRepository) DeleteClassroom(ctx context.Context, id string) error {
	if !validUUID(id) {
		return classroom.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, "DELETE FROM classroom WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return classroom.ErrNotFound
	}
	return nil
}
