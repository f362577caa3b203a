package pgdb

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/user"
)

var userColumns = map[string]string{
	"name":       "lower(unaccent(name))",
	"username":   "username",
	"email":      "email",
	"role":       "CASE role WHEN 'admin' THEN 30 WHEN 'teacher' THEN 20 ELSE 10 END",
	"status":     "status",
	"grade":      "grade",
	"xp":         "xp",
	"created_at": "created_at",
	"last_login": "last_login",
}

type userRow struct {
	ID           string      `db:"id"`
	Name         string      `db:"name"`
	Username     null.String `db:"username"`
	Email        null.String `db:"email"`
	Role         string      `db:"role"`
	Status       string      `db:"status"`
	Verified     bool        `db:"verified"`
	SchoolID     null.String `db:"school_id"`
	Grade        null.Int    `db:"grade"`
	Class        null.String `db:"class"`
	Shift        null.String `db:"shift"`
	XP           int         `db:"xp"`
	Avatar       null.String `db:"avatar"`
	PasswordHash null.Bytes  `db:"password_hash"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

func boilUser(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		Role:         usr.Role,
		Status:       usr.Status,
		Verified:     usr.Verified,
		SchoolID:     null.NewString(usr.SchoolID, usr.SchoolID != ""),
		Grade:        null.NewInt(usr.Grade, usr.Grade != 0),
		Class:        null.NewString(usr.Class, usr.Class != ""),
		Shift:        null.NewString(usr.Shift, usr.Shift != ""),
		XP:           usr.XP,
		Avatar:       null.NewString(usr.Avatar, usr.Avatar != ""),
		PasswordHash: null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (row userRow) unboil() user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username.String,
		Email:        row.Email.String,
		Role:         row.Role,
		Status:       row.Status,
		Verified:     row.Verified,
		SchoolID:     row.SchoolID.String,
		Grade:        row.Grade.Int,
		Class:        row.Class.String,
		Shift:        row.Shift.String,
		XP:           row.XP,
		Avatar:       row.Avatar.String,
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
}

func unboilUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.unboil())
	}
	return users
}

// trapUserErr maps unique and foreign key violations to user errors.
func trapUserErr(err error) error {
	code, constraint := pqError(err)
	switch {
	case code == codeUniqueViolation && constraint == "user_username_key":
		return user.ErrUsernameExists
	case code == codeUniqueViolation && constraint == "user_email_key":
		return user.ErrEmailExists
	case code == codeUniqueViolation && constraint == "user_student_name_key":
		return user.ErrDuplicateStudent
	case code == codeForeignKeyViolation:
		return user.ErrSchoolNotFound
	}
	return err
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	username, email = strings.ToLower(username), strings.ToLower(email)
	if username == "" && email == "" {
		return nil
	}
	excluded := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded = append(excluded, usr.ID)
	}

	var found []struct {
		Username null.String `db:"username"`
		Email    null.String `db:"email"`
	}
	err := repo.db.SelectContext(
		ctx, &found,
		`SELECT lower(username) AS username, lower(email) AS email FROM "user"
		WHERE (lower(username) = $1 OR lower(email) = $2) AND NOT (id::text = ANY($3))`,
		null.NewString(username, username != ""), null.NewString(email, email != ""), pq.Array(excluded),
	)
	if err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	for _, f := range found {
		if username != "" && f.Username.String == username {
			return user.ErrUsernameExists
		}
	}
	if len(found) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

const insertUserQuery = `INSERT INTO "user" (
	id, name, username, email, role, status, verified, school_id, grade, class, shift,
	xp, avatar, password_hash, created_at, updated_at, last_login
) VALUES (
	:id, :name, :username, :email, :role, :status, :verified, :school_id, :grade, :class, :shift,
	:xp, :avatar, :password_hash, :created_at, :updated_at, :last_login
) RETURNING *`

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	return repo.namedGet(ctx, insertUserQuery, boilUser(usr))
}

func (repo *userRepository) namedGet(ctx context.Context, query string, row userRow) (user.User, error) {
	q, args, err := sqlx.Named(query, row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "binding user")
	}
	var saved userRow
	if err = repo.db.GetContext(ctx, &saved, repo.db.Rebind(q), args...); err != nil {
		return user.User{}, trapNoRowsErr(trapUserErr(err), user.ErrNotFound)
	}
	return saved.unboil(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var w where
	if filter != nil && !filter.IsEmpty() {
		if filter.Search != "" {
			pattern := likePattern(filter.Search)
			w.add("(unaccent(name) ILIKE unaccent(?) OR username ILIKE ? OR email ILIKE ?)", pattern, pattern, pattern)
		}
		if len(filter.Roles) > 0 {
			w.add("role = ANY(?)", pq.Array(filter.Roles))
		}
		if len(filter.Statuses) > 0 {
			w.add("status = ANY(?)", pq.Array(filter.Statuses))
		}
		if filter.SchoolID != "" {
			if !validUUID(filter.SchoolID) {
				return []user.User{}, nil
			}
			w.add("school_id = ?", filter.SchoolID)
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
		if !filter.CreatedFrom.IsZero() {
			w.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	q, args := w.query(repo.db, `SELECT * FROM "user"`, orderClause(ordering, userColumns, "created_at ASC, id ASC"))
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return unboilUsers(rows), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var w where
	switch {
	case filter.ID != "":
		if !validUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Username != "":
		w.add("lower(username) = ?", strings.ToLower(filter.Username))
	case filter.Email != "":
		w.add("lower(email) = ?", strings.ToLower(filter.Email))
	case len(filter.UsernameOrEmail) > 0:
		unames := make([]string, 0, len(filter.UsernameOrEmail))
		for _, uname := range filter.UsernameOrEmail {
			if uname != "" {
				unames = append(unames, strings.ToLower(uname))
			}
		}
		w.add("(lower(username) = ANY(?) OR lower(email) = ANY(?))", pq.Array(unames), pq.Array(unames))
	default:
		return user.User{}, user.ErrNotFound
	}

	q, args := w.query(repo.db, `SELECT * FROM "user"`, "")
	var row userRow
	if err := repo.db.GetContext(ctx, &row, q+" LIMIT 1", args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return row.unboil(), nil
}

// XP is left out: only AddXP changes it.
const updateUserQuery = `UPDATE "user" SET
	name = :name, username = :username, email = :email, role = :role, status = :status,
	verified = :verified, school_id = :school_id, grade = :grade, class = :class, shift = :shift,
	avatar = :avatar, password_hash = COALESCE(:password_hash, password_hash),
	updated_at = :updated_at, last_login = :last_login
WHERE id = :id RETURNING *`

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !validUUID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	return repo.namedGet(ctx, updateUserQuery, boilUser(usr))
}

func (repo *userRepository) AddXP(ctx context.Context, id string, amount int) (user.User, error) {
	if !validUUID(id) {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	err := repo.db.GetContext(
		ctx, &row,
		`UPDATE "user" SET xp = xp + $1, updated_at = $2 WHERE id = $3 AND xp <= $4 - $1 RETURNING *`,
		amount, time.Now().UTC(), id, user.MaxXP,
	)
	if err == nil {
		return row.unboil(), nil
	}
	if err = trapNoRowsErr(err, user.ErrNotFound); err != user.ErrNotFound {
		return user.User{}, err
	}
	// no row: either unknown user or XP limit reached
	var found bool
	if err = repo.db.GetContext(ctx, &found, `SELECT true FROM "user" WHERE id = $1`, id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return user.User{}, user.ErrXPLimit
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	ids = validUUIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM "user" WHERE id::text = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	return int(n), err
}
