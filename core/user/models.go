package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/sciencequest/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Account statuses
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusInactive = "inactive"
)

var (
	AllRoles    = []string{RoleStudent, RoleTeacher, RoleAdmin}
	AllStatuses = []string{StatusPending, StatusActive, StatusInactive}

	rolePriorities = map[string]int{
		RoleAdmin:   30,
		RoleTeacher: 20,
		RoleStudent: 10,
	}

	Roles = []Role{
		{Name: "Aluno", Value: RoleStudent},
		{Name: "Professor", Value: RoleTeacher},
		{Name: "Administrador", Value: RoleAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email,omitempty"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	Verified     bool      `json:"verified"`
	SchoolID     string    `json:"school_id,omitempty"`
	Grade        int       `json:"grade,omitempty"`
	Class        string    `json:"class,omitempty"`
	Shift        string    `json:"shift,omitempty"`
	XP           int       `json:"xp"`
	Avatar       string    `json:"avatar,omitempty"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

func (u *User) IsActive() bool  { return u.Status == StatusActive }
func (u *User) IsPending() bool { return u.Status == StatusPending }

// SameClass reports whether the student belongs to the given school class.
func (u *User) SameClass(schoolID string, grade int, class, shift string) bool {
	return u.SchoolID == schoolID && u.Grade == grade && u.Class == class && u.Shift == shift
}

// StudentRegistration is what a student fills in on the sign-up page.
type StudentRegistration struct {
	Name            string `json:"name" validate:"required,max=120"`
	Username        string `json:"username" validate:"required,min=3,max=40,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	SchoolID        string `json:"school_id" validate:"required"`
	Grade           int    `json:"grade" validate:"required,grade"`
	Class           string `json:"class" validate:"required,classletter"`
	Shift           string `json:"shift" validate:"required,shift"`
}

func (sr *StudentRegistration) Validate(validate *validator.Validate) error {
	sr.Name = core.CleanString(sr.Name)
	sr.Username = core.CleanString(sr.Username, true /* lower */)
	sr.Email = core.CleanString(sr.Email, true /* lower */)
	sr.Class = cleanClass(sr.Class)
	sr.Shift = core.CleanString(sr.Shift, true /* lower */)
	return validate.Struct(sr)
}

// TeacherRegistration is what a teacher fills in on the sign-up page.
// Teacher accounts stay pending until an admin approves them.
type TeacherRegistration struct {
	Name            string `json:"name" validate:"required,max=120"`
	Username        string `json:"username" validate:"omitempty,min=3,max=40,alphanum_"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	SchoolID        string `json:"school_id" validate:"required"`
}

func (tr *TeacherRegistration) Validate(validate *validator.Validate) error {
	tr.Name = core.CleanString(tr.Name)
	tr.Username = core.CleanString(tr.Username, true /* lower */)
	tr.Email = core.CleanString(tr.Email, true /* lower */)
	return validate.Struct(tr)
}

// NewUser contains information needed by an admin to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required,max=120"`
	Username        string `json:"username" validate:"omitempty,min=3,max=40,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"required,allroles"`
	Status          string `json:"status" validate:"omitempty,allstatuses"`
	SchoolID        string `json:"school_id"`
	Grade           int    `json:"grade" validate:"omitempty,grade"`
	Class           string `json:"class" validate:"omitempty,classletter"`
	Shift           string `json:"shift" validate:"omitempty,shift"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	nu.Status = core.CleanString(nu.Status, true /* lower */)
	nu.Class = cleanClass(nu.Class)
	nu.Shift = core.CleanString(nu.Shift, true /* lower */)
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Zero values keep the original data.
type UpdateUser struct {
	Name            string `json:"name" validate:"max=120"`
	Username        string `json:"username" validate:"omitempty,min=3,max=40,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Role            string `json:"role" validate:"omitempty,allroles"`
	Status          string `json:"status" validate:"omitempty,allstatuses"`
	Verified        *bool  `json:"verified"`
	SchoolID        string `json:"school_id"`
	Grade           int    `json:"grade" validate:"omitempty,grade"`
	Class           string `json:"class" validate:"omitempty,classletter"`
	Shift           string `json:"shift" validate:"omitempty,shift"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
	// CurrentPassword is required when users change their own password.
	CurrentPassword string `json:"current_password"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate) error {
	uu.Name = orDefault(core.CleanString(uu.Name), origUsr.Name)
	uu.Username = orDefault(core.CleanString(uu.Username, true /* lower */), origUsr.Username)
	uu.Email = orDefault(core.CleanString(uu.Email, true /* lower */), origUsr.Email)
	uu.Role = orDefault(core.CleanString(uu.Role, true /* lower */), origUsr.Role)
	uu.Status = orDefault(core.CleanString(uu.Status, true /* lower */), origUsr.Status)
	uu.SchoolID = orDefault(core.CleanString(uu.SchoolID), origUsr.SchoolID)
	uu.Class = orDefault(cleanClass(uu.Class), origUsr.Class)
	uu.Shift = orDefault(core.CleanString(uu.Shift, true /* lower */), origUsr.Shift)
	if uu.Grade == 0 {
		uu.Grade = origUsr.Grade
	}
	return validate.Struct(uu)
}

// UpdateProfile is what users may change on their own profile page.
type UpdateProfile struct {
	Name            string `json:"name" validate:"max=120"`
	CurrentPassword string `json:"current_password" validate:"required_with=Password"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (up *UpdateProfile) Validate(origUsr User, validate *validator.Validate) error {
	up.Name = orDefault(core.CleanString(up.Name), origUsr.Name)
	return validate.Struct(up)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search      string
	Roles       []string
	Statuses    []string
	SchoolID    string
	Grade       int
	Class       string
	Shift       string
	CreatedFrom time.Time
	CreatedTo   time.Time
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.Statuses == nil && qf.SchoolID == "" && qf.Grade == 0 &&
		qf.Class == "" && qf.Shift == "" && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Class = cleanClass(qf.Class)
	qf.Shift = core.CleanString(qf.Shift, true /* lower */)
}

// GetFilter selects a single User; the first non-empty field wins.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail []string // [username, email]
}

type LeaderboardFilter struct {
	SchoolID string
	Grade    int
	Class    string
	Shift    string
	Limit    int
}

func (lf *LeaderboardFilter) Clean() {
	lf.Class = cleanClass(lf.Class)
	lf.Shift = core.CleanString(lf.Shift, true /* lower */)
	if lf.Limit <= 0 {
		lf.Limit = defaultLeaderboardLimit
	} else if lf.Limit > maxLeaderboardLimit {
		lf.Limit = maxLeaderboardLimit
	}
}

// RankedStudent is a leaderboard row.
type RankedStudent struct {
	Rank     int    `json:"rank"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	SchoolID string `json:"school_id"`
	Grade    int    `json:"grade"`
	Class    string `json:"class"`
	Shift    string `json:"shift"`
	XP       int    `json:"xp"`
}

func orDefault(val, def string) string {
	if val != "" {
		return val
	}
	return def
}

// cleanClass normalises class letters ("  a " -> "A").
func cleanClass(class string) string {
	return strings.ToUpper(core.CleanString(class))
}
