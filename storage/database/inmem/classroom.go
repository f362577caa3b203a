package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/classroom"
)

var classroomOrderings = map[string]lessFunc[classroom.Classroom]{
	"grade":      func(a, b classroom.Classroom) int { return compareInt(a.Grade, b.Grade) },
	"class":      func(a, b classroom.Classroom) int { return compareStr(a.Class, b.Class) },
	"shift":      func(a, b classroom.Classroom) int { return compareStr(a.Shift, b.Shift) },
	"created_at": func(a, b classroom.Classroom) int { return compareTime(a.CreatedAt, b.CreatedAt) },
}

type classroomRepository struct {
	db *table[classroom.Classroom]
}

func NewClassroomRepository(db *DB) classroom.Repository {
	return &classroomRepository{db: db.classroom}
}

func sameClassroom(a, b classroom.Classroom) bool {
	return a.ID != b.ID && a.SchoolID == b.SchoolID && a.Grade == b.Grade && a.Class == b.Class && a.Shift == b.Shift
}

func (repo *classroomRepository) CreateClassroom(_ context.Context, cls classroom.Classroom) (classroom.Classroom, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, c := range repo.db.rows {
		if sameClassroom(*c, cls) {
			return classroom.Classroom{}, classroom.ErrExists
		}
	}
	cls.ID = uuid.New().String()
	repo.db.rows[cls.ID] = &cls
	return cls, nil
}

func (repo *classroomRepository) QueryClassrooms(_ context.Context, filter *classroom.QueryFilter, ordering []core.DBOrdering) ([]classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := repo.db.all(func(c classroom.Classroom) bool {
		if filter == nil {
			return true
		}
		return (len(filter.SchoolIDs) == 0 || contains(filter.SchoolIDs, c.SchoolID)) &&
			(len(filter.TeacherIDs) == 0 || contains(filter.TeacherIDs, c.TeacherID)) &&
			(filter.Grade == 0 || c.Grade == filter.Grade) &&
			(filter.Class == "" || c.Class == filter.Class) &&
			(filter.Shift == "" || c.Shift == filter.Shift)
	})
	orderBy(classes, ordering, classroomOrderings, func(a, b classroom.Classroom) int {
		if c := compareInt(a.Grade, b.Grade); c != 0 {
			return c
		}
		if c := compareStr(a.Class, b.Class); c != 0 {
			return c
		}
		return compareStr(a.Shift, b.Shift)
	})
	return classes, nil
}

func (repo *classroomRepository) GetClassroom(_ context.Context, id string) (classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.rows[id]; ok {
		return *c, nil
	}
	return classroom.Classroom{}, classroom.ErrNotFound
}

func (repo *classroomRepository) UpdateClassroom(_ context.Context, cls classroom.Classroom) (classroom.Classroom, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[cls.ID]; !ok {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	for _, c := range repo.db.rows {
		if sameClassroom(*c, cls) {
			return classroom.Classroom{}, classroom.ErrExists
		}
	}
	repo.db.rows[cls.ID] = &cls
	return cls, nil
}

func (repo *classroomRepository) DeleteClassroom(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return classroom.ErrNotFound
	}
	delete(repo.db.rows, id)
	return nil
}
