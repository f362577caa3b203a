package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/user"
)

var userOrderings = map[string]lessFunc[user.User]{
	"name":       func(a, b user.User) int { return compareText(a.Name, b.Name) },
	"username":   func(a, b user.User) int { return compareStr(a.Username, b.Username) },
	"email":      func(a, b user.User) int { return compareStr(a.Email, b.Email) },
	"role":       func(a, b user.User) int { return compareInt(user.RolePriority(a.Role), user.RolePriority(b.Role)) },
	"status":     func(a, b user.User) int { return compareStr(a.Status, b.Status) },
	"grade":      func(a, b user.User) int { return compareInt(a.Grade, b.Grade) },
	"xp":         func(a, b user.User) int { return compareInt(a.XP, b.XP) },
	"created_at": func(a, b user.User) int { return compareTime(a.CreatedAt, b.CreatedAt) },
	"last_login": func(a, b user.User) int { return compareTime(a.LastLogin, b.LastLogin) },
}

type userRepository struct {
	db *table[user.User]
}

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.checkUniqueness(username, email, excludedUsers...)
}

// checkUniqueness must be called with the lock held.
func (repo *userRepository) checkUniqueness(username, email string, excludedUsers ...user.User) error {
	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	username, email = strings.ToLower(username), strings.ToLower(email)
	for _, usr := range repo.db.rows {
		if excluded[usr.ID] {
			continue
		}
		if username != "" && strings.ToLower(usr.Username) == username {
			return user.ErrUsernameExists
		}
		if email != "" && strings.ToLower(usr.Email) == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

// checkStudentUniqueness must be called with the lock held.
func (repo *userRepository) checkStudentUniqueness(usr user.User) error {
	if usr.Role != user.RoleStudent {
		return nil
	}
	name := core.Fold(usr.Name)
	for _, mate := range repo.db.rows {
		if mate.ID != usr.ID && mate.Role == user.RoleStudent &&
			mate.SchoolID == usr.SchoolID && mate.Grade == usr.Grade && mate.Class == usr.Class && mate.Shift == usr.Shift &&
			core.Fold(mate.Name) == name {
			return user.ErrDuplicateStudent
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.checkUniqueness(usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}
	if err := repo.checkStudentUniqueness(usr); err != nil {
		return user.User{}, err
	}
	usr.ID = uuid.New().String()
	repo.db.rows[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var keep func(user.User) bool
	if filter != nil && !filter.IsEmpty() {
		keep = func(usr user.User) bool { return matchUser(usr, filter) }
	}
	users := repo.db.all(keep)
	orderBy(users, ordering, userOrderings, func(a, b user.User) int {
		if c := compareTime(a.CreatedAt, b.CreatedAt); c != 0 {
			return c
		}
		return compareStr(a.ID, b.ID)
	})
	return users, nil
}

func matchUser(usr user.User, f *user.QueryFilter) bool {
	if f.Search != "" &&
		!(core.FoldContains(usr.Name, f.Search) || core.FoldContains(usr.Username, f.Search) || core.FoldContains(usr.Email, f.Search)) {
		return false
	}
	if len(f.Roles) > 0 && !contains(f.Roles, usr.Role) {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, usr.Status) {
		return false
	}
	if f.SchoolID != "" && usr.SchoolID != f.SchoolID {
		return false
	}
	if f.Grade != 0 && usr.Grade != f.Grade {
		return false
	}
	if f.Class != "" && usr.Class != f.Class {
		return false
	}
	if f.Shift != "" && usr.Shift != f.Shift {
		return false
	}
	if !f.CreatedFrom.IsZero() && usr.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedTo.IsZero() && usr.CreatedAt.After(f.CreatedTo) {
		return false
	}
	return true
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.rows[filter.ID]; ok {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.rows {
		switch {
		case filter.Username != "":
			if strings.EqualFold(usr.Username, filter.Username) {
				return *usr, nil
			}
		case filter.Email != "":
			if strings.EqualFold(usr.Email, filter.Email) {
				return *usr, nil
			}
		case len(filter.UsernameOrEmail) > 0:
			for _, uname := range filter.UsernameOrEmail {
				if uname != "" && (strings.EqualFold(usr.Username, uname) || strings.EqualFold(usr.Email, uname)) {
					return *usr, nil
				}
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.rows[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUniqueness(usr.Username, usr.Email, usr); err != nil {
		return user.User{}, err
	}
	if err := repo.checkStudentUniqueness(usr); err != nil {
		return user.User{}, err
	}
	if usr.PasswordHash == nil {
		usr.PasswordHash = orig.PasswordHash
	}
	usr.XP = orig.XP // only AddXP changes XP
	repo.db.rows[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) AddXP(_ context.Context, id string, amount int) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.rows[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if usr.XP > user.MaxXP-amount {
		return user.User{}, user.ErrXPLimit
	}
	usr.XP += amount
	return *usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	deleted := 0
	for _, id := range ids {
		if _, ok := repo.db.rows[id]; ok {
			delete(repo.db.rows, id)
			deleted++
		}
	}
	return deleted, nil
}
