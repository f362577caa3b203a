package user

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/sciencequest/core"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100

	// MaxXPAward caps a single award.
	MaxXPAward = 10000
	// MaxXP is the largest balance a student may hold (postgres integer column).
	MaxXP = math.MaxInt32
)

var (
	// errors
	ErrNotFound         = errors.New("usuário não encontrado")
	ErrEmailExists      = errors.New("já existe um usuário com este e-mail")
	ErrUsernameExists   = errors.New("já existe um usuário com este nome de usuário")
	ErrDuplicateStudent = errors.New("já existe um aluno com este nome nesta turma")
	ErrSchoolNotFound   = errors.New("escola não encontrada")
	ErrNotStudent       = errors.New("apenas alunos podem receber XP")
	ErrNotPending       = errors.New("apenas cadastros de professores pendentes podem ser avaliados")
	ErrInvalidXP        = errors.Errorf("a quantidade de XP deve estar entre 1 e %d", MaxXPAward)
	ErrXPLimit          = errors.New("o aluno atingiu o limite de XP")
	ErrWrongPassword    = errors.New("senha atual incorreta")
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUsernameExists or ErrEmailExists when another user
		// (not in excludedUsers) already uses the username or email.
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// AddXP atomically adds amount to the user's XP.
		// It returns ErrXPLimit, leaving XP unchanged, when the sum would exceed MaxXP.
		AddXP(ctx context.Context, id string, amount int) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) (int, error)
	}

	// SchoolChecker tells whether a school exists.
	SchoolChecker interface {
		SchoolExists(ctx context.Context, id string) (bool, error)
	}

	Service interface {
		RegisterStudent(ctx context.Context, data StudentRegistration) (User, error)
		RegisterTeacher(ctx context.Context, data TeacherRegistration) (User, error)
		Create(ctx context.Context, data NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Get(ctx context.Context, filter GetFilter) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, usr User, data UpdateUser) (User, error)
		UpdateProfile(ctx context.Context, usr User, data UpdateProfile) (User, error)
		SetAvatar(ctx context.Context, usr User, url string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) (int, error)
		Pending(ctx context.Context) ([]User, error)
		Approve(ctx context.Context, id string) (User, error)
		Reject(ctx context.Context, id string) error
		AwardXP(ctx context.Context, id string, amount int) (User, error)
		Leaderboard(ctx context.Context, filter LeaderboardFilter) ([]RankedStudent, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
		SchoolInUse(ctx context.Context, schoolID string) (bool, error)
	}

	service struct {
		repo     Repository
		schools  SchoolChecker
		mailSvc  core.EmailService
		notifier core.Notifier
		validate *validator.Validate
		tokens   tokenGenerator
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	schools SchoolChecker,
	mailSvc core.EmailService,
	notifier core.Notifier,
	validate *validator.Validate,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		repo:     repo,
		schools:  schools,
		mailSvc:  mailSvc,
		notifier: notifier,
		validate: validate,
		tokens:   newTokenGenerator(conf.SecretKey, conf.Server.PasswordResetTimeoutDelta),
		logger:   logger,
	}
}

func (svc *service) checkUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return errors.Wrap(err, "checking username uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) checkSchool(ctx context.Context, schoolID string) error {
	if schoolID == "" || svc.schools == nil {
		return nil
	}
	exists, err := svc.schools.SchoolExists(ctx, schoolID)
	if err != nil {
		return errors.Wrap(err, "checking school")
	}
	if !exists {
		return core.NewValidationError(ErrSchoolNotFound, core.FieldError{Field: "school_id", Error: ErrSchoolNotFound.Error()})
	}
	return nil
}

// checkDuplicateStudent rejects a student whose (name, school, grade, class, shift) matches another student's.
// Names are compared case and accent insensitively.
func (svc *service) checkDuplicateStudent(ctx context.Context, usr User) error {
	classmates, err := svc.repo.QueryUsers(ctx, &QueryFilter{
		Roles:    []string{RoleStudent},
		SchoolID: usr.SchoolID,
		Grade:    usr.Grade,
		Class:    usr.Class,
		Shift:    usr.Shift,
	}, nil)
	if err != nil {
		return errors.Wrap(err, "querying classmates")
	}
	name := core.Fold(usr.Name)
	for _, mate := range classmates {
		if mate.ID != usr.ID && core.Fold(mate.Name) == name {
			return core.NewValidationError(ErrDuplicateStudent, core.FieldError{Field: "name", Error: ErrDuplicateStudent.Error()})
		}
	}
	return nil
}

func (svc *service) create(ctx context.Context, usr User, pwd string) (User, error) {
	now := nowFunc().UTC()
	usr.CreatedAt = now
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, svc.trapExistsErr(err, "creating user")
	}
	return usr, nil
}

// trapExistsErr maps repository uniqueness errors (e.g. unique index violations) to validation errors.
func (svc *service) trapExistsErr(err error, msg string) error {
	switch errors.Cause(err) {
	case ErrUsernameExists:
		return core.NewValidationError(err, core.FieldError{Field: "username", Error: ErrUsernameExists.Error()})
	case ErrEmailExists:
		return core.NewValidationError(err, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	case ErrDuplicateStudent:
		return core.NewValidationError(err, core.FieldError{Field: "name", Error: ErrDuplicateStudent.Error()})
	}
	return errors.Wrap(err, msg)
}

func (svc *service) RegisterStudent(ctx context.Context, data StudentRegistration) (User, error) {
	if err := data.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if err := svc.checkSchool(ctx, data.SchoolID); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, data.Username, data.Email); err != nil {
		return User{}, err
	}

	usr := User{
		Name:     data.Name,
		Username: data.Username,
		Email:    data.Email,
		Role:     RoleStudent,
		Status:   StatusActive,
		SchoolID: data.SchoolID,
		Grade:    data.Grade,
		Class:    data.Class,
		Shift:    data.Shift,
	}
	if err := svc.checkDuplicateStudent(ctx, usr); err != nil {
		return User{}, err
	}
	return svc.create(ctx, usr, data.Password)
}

func (svc *service) RegisterTeacher(ctx context.Context, data TeacherRegistration) (User, error) {
	if err := data.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if err := svc.checkSchool(ctx, data.SchoolID); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, data.Username, data.Email); err != nil {
		return User{}, err
	}

	usr, err := svc.create(ctx, User{
		Name:     data.Name,
		Username: data.Username,
		Email:    data.Email,
		Role:     RoleTeacher,
		Status:   StatusPending,
		SchoolID: data.SchoolID,
	}, data.Password)
	if err != nil {
		return User{}, err
	}

	if svc.notifier != nil {
		msg := fmt.Sprintf("Novo cadastro de professor aguardando aprovação: %s <%s>", usr.Name, usr.Email)
		if err := svc.notifier.NotifyAdmins(ctx, msg); err != nil {
			svc.logger.Error(fmt.Sprintf("notifying admins: %v", err), err, usr)
		}
	}
	return usr, nil
}

func (svc *service) Create(ctx context.Context, data NewUser) (User, error) {
	if err := data.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if err := svc.checkSchool(ctx, data.SchoolID); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, data.Username, data.Email); err != nil {
		return User{}, err
	}

	usr := User{
		Name:     data.Name,
		Username: data.Username,
		Email:    data.Email,
		Role:     data.Role,
		Status:   orDefault(data.Status, StatusActive),
		Verified: data.Role != RoleStudent,
		SchoolID: data.SchoolID,
	}
	if usr.IsStudent() {
		usr.Grade = data.Grade
		usr.Class = data.Class
		usr.Shift = data.Shift
		if err := svc.checkDuplicateStudent(ctx, usr); err != nil {
			return User{}, err
		}
	}
	return svc.create(ctx, usr, data.Password)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) Get(ctx context.Context, filter GetFilter) (User, error) {
	return svc.repo.GetUser(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	if uname == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{uname}})
}

func (svc *service) Update(ctx context.Context, usr User, data UpdateUser) (User, error) {
	if err := data.Validate(usr, svc.validate); err != nil {
		return User{}, err
	}
	if data.SchoolID != usr.SchoolID {
		if err := svc.checkSchool(ctx, data.SchoolID); err != nil {
			return User{}, err
		}
	}
	if err := svc.checkUniqueness(ctx, data.Username, data.Email, usr); err != nil {
		return User{}, err
	}

	usr.Name = data.Name
	usr.Username = data.Username
	usr.Email = data.Email
	usr.Role = data.Role
	usr.Status = data.Status
	usr.SchoolID = data.SchoolID
	if data.Verified != nil {
		usr.Verified = *data.Verified
	}
	if usr.IsStudent() {
		usr.Grade = data.Grade
		usr.Class = data.Class
		usr.Shift = data.Shift
		if err := svc.checkDuplicateStudent(ctx, usr); err != nil {
			return User{}, err
		}
	} else {
		usr.Grade, usr.Class, usr.Shift = 0, "", ""
	}
	if data.Password != "" {
		if err := ValidatePassword(data.Password, usr.Name, usr.Username, usr.Email); err != nil {
			return User{}, err
		}
		if err := usr.SetPassword(data.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = nowFunc().UTC()

	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, svc.trapExistsErr(err, "updating user")
	}
	return usr, nil
}

func (svc *service) UpdateProfile(ctx context.Context, usr User, data UpdateProfile) (User, error) {
	if err := data.Validate(usr, svc.validate); err != nil {
		return User{}, err
	}

	if data.Password != "" {
		if err := usr.CheckPassword(data.CurrentPassword); err != nil {
			return User{}, core.NewValidationError(ErrWrongPassword, core.FieldError{Field: "current_password", Error: ErrWrongPassword.Error()})
		}
		if err := ValidatePassword(data.Password, data.Name, usr.Username, usr.Email); err != nil {
			return User{}, err
		}
		if err := usr.SetPassword(data.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}

	if usr.IsStudent() && core.Fold(data.Name) != core.Fold(usr.Name) {
		renamed := usr
		renamed.Name = data.Name
		if err := svc.checkDuplicateStudent(ctx, renamed); err != nil {
			return User{}, err
		}
	}
	usr.Name = data.Name
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetAvatar(ctx context.Context, usr User, url string) (User, error) {
	usr.Avatar = url
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) (int, error) {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

// SchoolInUse reports whether any account belongs to the school.
func (svc *service) SchoolInUse(ctx context.Context, schoolID string) (bool, error) {
	users, err := svc.repo.QueryUsers(ctx, &QueryFilter{SchoolID: schoolID}, nil)
	if err != nil {
		return false, err
	}
	return len(users) > 0, nil
}

func (svc *service) Pending(ctx context.Context) ([]User, error) {
	return svc.repo.QueryUsers(
		ctx,
		&QueryFilter{Roles: []string{RoleTeacher}, Statuses: []string{StatusPending}},
		[]core.DBOrdering{{Field: "created_at", Ascending: true}},
	)
}

func (svc *service) getPendingTeacher(ctx context.Context, id string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !(usr.IsTeacher() && usr.IsPending()) {
		return User{}, core.NewValidationError(ErrNotPending, core.FieldError{Field: "status", Error: ErrNotPending.Error()})
	}
	return usr, nil
}

func (svc *service) Approve(ctx context.Context, id string) (User, error) {
	usr, err := svc.getPendingTeacher(ctx, id)
	if err != nil {
		return User{}, err
	}

	usr.Status = StatusActive
	usr.Verified = true
	usr.UpdatedAt = nowFunc().UTC()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "approving teacher")
	}

	if usr.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      "Cadastro aprovado",
			TemplateName: "teacher_approved",
			TemplateData: map[string]interface{}{"Name": usr.Name},
		})
	}
	return usr, nil
}

func (svc *service) Reject(ctx context.Context, id string) error {
	usr, err := svc.getPendingTeacher(ctx, id)
	if err != nil {
		return err
	}
	if _, err = svc.repo.DeleteUsersByID(ctx, usr.ID); err != nil {
		return errors.Wrap(err, "rejecting teacher")
	}
	return nil
}

func (svc *service) AwardXP(ctx context.Context, id string, amount int) (User, error) {
	if amount <= 0 || amount > MaxXPAward {
		return User{}, core.NewValidationError(ErrInvalidXP, core.FieldError{Field: "amount", Error: ErrInvalidXP.Error()})
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !usr.IsStudent() {
		return User{}, ErrNotStudent
	}
	xpLimitErr := core.NewValidationError(ErrXPLimit, core.FieldError{Field: "amount", Error: ErrXPLimit.Error()})
	if usr.XP > MaxXP-amount {
		return User{}, xpLimitErr
	}
	// the repository re-checks the limit atomically
	usr, err = svc.repo.AddXP(ctx, usr.ID, amount)
	if errors.Is(err, ErrXPLimit) {
		return User{}, xpLimitErr
	}
	return usr, err
}

// Leaderboard ranks active students by XP (then name). Students with the same XP share a rank.
func (svc *service) Leaderboard(ctx context.Context, filter LeaderboardFilter) ([]RankedStudent, error) {
	filter.Clean()
	students, err := svc.repo.QueryUsers(ctx, &QueryFilter{
		Roles:    []string{RoleStudent},
		Statuses: []string{StatusActive},
		SchoolID: filter.SchoolID,
		Grade:    filter.Grade,
		Class:    filter.Class,
		Shift:    filter.Shift,
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	sort.SliceStable(students, func(i, j int) bool {
		if students[i].XP != students[j].XP {
			return students[i].XP > students[j].XP
		}
		return core.Fold(students[i].Name) < core.Fold(students[j].Name)
	})
	if len(students) > filter.Limit {
		students = students[:filter.Limit]
	}

	board := make([]RankedStudent, 0, len(students))
	for i, s := range students {
		rank := i + 1
		if i > 0 && s.XP == students[i-1].XP {
			rank = board[i-1].Rank
		}
		board = append(board, RankedStudent{
			Rank:     rank,
			ID:       s.ID,
			Name:     s.Name,
			Avatar:   s.Avatar,
			SchoolID: s.SchoolID,
			Grade:    s.Grade,
			Class:    s.Class,
			Shift:    s.Shift,
			XP:       s.XP,
		})
	}
	return board, nil
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return ErrNotFound
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: email})
	if err != nil {
		return err
	}
	if !usr.IsActive() {
		return ErrNotFound
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Redefinição de senha",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": svc.tokens.makeToken(usr),
		},
	})
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	if err := data.Validate(svc.validate); err != nil {
		return err
	}
	invalid := func(err error) error {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalid(errInvalidToken)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalid(errInvalidToken)
		}
		return errors.Wrap(err, "finding user")
	}
	if err = svc.tokens.verifyToken(usr, data.Token); err != nil {
		return invalid(err)
	}
	if err = ValidatePassword(data.Password, usr.Name, usr.Username, usr.Email); err != nil {
		return err
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = nowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}
