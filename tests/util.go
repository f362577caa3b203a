// Package testutil holds fixtures shared by the service and API tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/school"
	"github.com/trezcool/sciencequest/core/user"
)

// Password satisfies the password policy.
const Password = "Fot0ss!ntese"

// NewValidator returns a validator with every custom tag registered.
func NewValidator() *validator.Validate {
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	return validate
}

// CreateUser stores usr as is (no validation) with the given password.
func CreateUser(t testing.TB, repo user.Repository, usr user.User, pwd string, createdAt ...time.Time) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr.CreatedAt = tstamp
	usr.UpdatedAt = tstamp
	if usr.Status == "" {
		usr.Status = user.StatusActive
	}
	if pwd == "" {
		pwd = Password
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// Student returns an active student of the given class.
func Student(name, uname, schoolID string, grade int, class, shift string) user.User {
	return user.User{
		Name:     name,
		Username: uname,
		Role:     user.RoleStudent,
		Status:   user.StatusActive,
		SchoolID: schoolID,
		Grade:    grade,
		Class:    class,
		Shift:    shift,
	}
}

// Teacher returns an active, verified teacher of the school.
func Teacher(name, email, schoolID string) user.User {
	return user.User{
		Name:     name,
		Email:    email,
		Role:     user.RoleTeacher,
		Status:   user.StatusActive,
		Verified: true,
		SchoolID: schoolID,
	}
}

// CreateSchool stores a city and one of its schools.
func CreateSchool(t testing.TB, repo school.Repository, name, cityName, state string) (school.City, school.School) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	city, err := repo.CreateCity(ctx, school.City{Name: cityName, State: state, CreatedAt: now})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	sch, err := repo.CreateSchool(ctx, school.School{Name: name, CityID: city.ID, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return city, sch
}
