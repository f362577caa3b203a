package classroom

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("turma não encontrada")
	ErrExists         = errors.New("esta turma já está cadastrada nesta escola")
	ErrForbidden      = errors.New("você não tem acesso a esta turma")
	ErrInvalidTeacher = errors.New("o professor deve ser um professor ativo da mesma escola")
	ErrSchoolNotFound = errors.New("escola não encontrada")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateClassroom(ctx context.Context, cls Classroom) (Classroom, error)
		// QueryClassrooms applies AND operation on available QueryFilter fields.
		QueryClassrooms(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Classroom, error)
		GetClassroom(ctx context.Context, id string) (Classroom, error)
		UpdateClassroom(ctx context.Context, cls Classroom) (Classroom, error)
		DeleteClassroom(ctx context.Context, id string) error
	}

	// Users is the subset of user.Service used to resolve teachers and rosters.
	Users interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		Query(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
	}

	// Progress counts the curriculum units each student completed.
	Progress interface {
		CompletedUnits(ctx context.Context, studentIDs ...string) (map[string]int, error)
	}

	Service struct {
		repo     Repository
		users    Users
		schools  user.SchoolChecker
		progress Progress
		validate *validator.Validate
	}
)

func NewService(
	repo Repository,
	users Users,
	schools user.SchoolChecker,
	progress Progress,
	validate *validator.Validate,
) *Service {
	return &Service{repo: repo, users: users, schools: schools, progress: progress, validate: validate}
}

func fieldErr(err error, field string) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

func (svc *Service) checkUniqueness(ctx context.Context, cls Classroom) error {
	existing, err := svc.repo.QueryClassrooms(ctx, &QueryFilter{
		SchoolIDs: []string{cls.SchoolID},
		Grade:     cls.Grade,
		Class:     cls.Class,
		Shift:     cls.Shift,
	}, nil)
	if err != nil {
		return errors.Wrap(err, "querying classrooms")
	}
	for _, c := range existing {
		if c.ID != cls.ID {
			return fieldErr(ErrExists, "class")
		}
	}
	return nil
}

func (svc *Service) checkTeacher(ctx context.Context, teacherID, schoolID string) error {
	if teacherID == "" {
		return nil
	}
	teacher, err := svc.users.GetByID(ctx, teacherID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return fieldErr(ErrInvalidTeacher, "teacher_id")
		}
		return err
	}
	if !(teacher.IsTeacher() && teacher.IsActive() && teacher.SchoolID == schoolID) {
		return fieldErr(ErrInvalidTeacher, "teacher_id")
	}
	return nil
}

// canManage reports whether actor may see and edit the classroom.
func canManage(actor user.User, cls Classroom) bool {
	return actor.IsAdmin() || (actor.IsTeacher() && cls.TeacherID == actor.ID)
}

func (svc *Service) Create(ctx context.Context, actor user.User, data NewClassroom) (Classroom, error) {
	if actor.IsTeacher() {
		data.TeacherID = actor.ID
		if data.SchoolID == "" {
			data.SchoolID = actor.SchoolID
		}
	} else if !actor.IsAdmin() {
		return Classroom{}, ErrForbidden
	}
	if err := data.Validate(svc.validate); err != nil {
		return Classroom{}, err
	}

	exists, err := svc.schools.SchoolExists(ctx, data.SchoolID)
	if err != nil {
		return Classroom{}, errors.Wrap(err, "checking school")
	}
	if !exists {
		return Classroom{}, fieldErr(ErrSchoolNotFound, "school_id")
	}

	now := nowFunc().UTC()
	cls := Classroom{
		SchoolID:  data.SchoolID,
		Grade:     data.Grade,
		Class:     data.Class,
		Shift:     data.Shift,
		TeacherID: data.TeacherID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = svc.checkUniqueness(ctx, cls); err != nil {
		return Classroom{}, err
	}
	if err = svc.checkTeacher(ctx, cls.TeacherID, cls.SchoolID); err != nil {
		return Classroom{}, err
	}
	return svc.repo.CreateClassroom(ctx, cls)
}

// Query lists classrooms; teachers only see their own.
func (svc *Service) Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Classroom, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	switch {
	case actor.IsAdmin():
	case actor.IsTeacher():
		filter.TeacherIDs = []string{actor.ID}
	default:
		return nil, ErrForbidden
	}
	return svc.repo.QueryClassrooms(ctx, filter, ordering)
}

func (svc *Service) Get(ctx context.Context, actor user.User, id string) (Classroom, error) {
	cls, err := svc.repo.GetClassroom(ctx, id)
	if err != nil {
		return Classroom{}, err
	}
	if !canManage(actor, cls) {
		return Classroom{}, ErrForbidden
	}
	return cls, nil
}

func (svc *Service) Update(ctx context.Context, actor user.User, id string, data UpdateClassroom) (Classroom, error) {
	cls, err := svc.Get(ctx, actor, id)
	if err != nil {
		return Classroom{}, err
	}
	if actor.IsTeacher() {
		data.TeacherID = cls.TeacherID
	}
	if err = data.Validate(cls, svc.validate); err != nil {
		return Classroom{}, err
	}

	cls.Grade = data.Grade
	cls.Class = data.Class
	cls.Shift = data.Shift
	cls.TeacherID = data.TeacherID
	if err = svc.checkUniqueness(ctx, cls); err != nil {
		return Classroom{}, err
	}
	if err = svc.checkTeacher(ctx, cls.TeacherID, cls.SchoolID); err != nil {
		return Classroom{}, err
	}
	cls.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateClassroom(ctx, cls)
}

func (svc *Service) Delete(ctx context.Context, actor user.User, id string) error {
	if _, err := svc.Get(ctx, actor, id); err != nil {
		return err
	}
	return svc.repo.DeleteClassroom(ctx, id)
}

// Roster lists the classroom's active students by name, with their XP and completed units.
func (svc *Service) Roster(ctx context.Context, actor user.User, id string) (Roster, error) {
	cls, err := svc.Get(ctx, actor, id)
	if err != nil {
		return Roster{}, err
	}

	students, err := svc.users.Query(ctx, &user.QueryFilter{
		Roles:    []string{user.RoleStudent},
		Statuses: []string{user.StatusActive},
		SchoolID: cls.SchoolID,
		Grade:    cls.Grade,
		Class:    cls.Class,
		Shift:    cls.Shift,
	}, nil)
	if err != nil {
		return Roster{}, errors.Wrap(err, "querying students")
	}

	ids := make([]string, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	completed, err := svc.progress.CompletedUnits(ctx, ids...)
	if err != nil {
		return Roster{}, errors.Wrap(err, "counting completed units")
	}

	roster := Roster{Classroom: cls, Students: make([]Student, 0, len(students))}
	for _, s := range students {
		roster.Students = append(roster.Students, Student{
			ID:             s.ID,
			Name:           s.Name,
			Username:       s.Username,
			Avatar:         s.Avatar,
			XP:             s.XP,
			CompletedUnits: completed[s.ID],
		})
		roster.TotalXP += s.XP
	}
	sort.SliceStable(roster.Students, func(i, j int) bool {
		return core.Fold(roster.Students[i].Name) < core.Fold(roster.Students[j].Name)
	})
	return roster, nil
}

// SchoolInUse reports whether any classroom belongs to the school.
func (svc *Service) SchoolInUse(ctx context.Context, schoolID string) (bool, error) {
	classes, err := svc.repo.QueryClassrooms(ctx, &QueryFilter{SchoolIDs: []string{schoolID}}, nil)
	if err != nil {
		return false, err
	}
	return len(classes) > 0, nil
}
