package pgdb_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sciencequest/core/classroom"
	"github.com/trezcool/sciencequest/core/quiz"
	"github.com/trezcool/sciencequest/core/school"
	"github.com/trezcool/sciencequest/core/user"
	"github.com/trezcool/sciencequest/storage/database"
	pgdb "github.com/trezcool/sciencequest/storage/database/postgres"
)

// openTestDB connects to SQ_TEST_DATABASE_URL (e.g. postgres://sq:sq@localhost/sq_test?sslmode=disable),
// migrates it and empties every table.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dbURL := os.Getenv("SQ_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("SQ_TEST_DATABASE_URL not set")
	}

	db, err := database.OpenURL(dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db.DB, "up"))
	_, err = db.Exec(`TRUNCATE quiz_attempt, classroom, "user", school, city CASCADE`)
	require.NoError(t, err)
	return db
}

func TestRepositories(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	schools := pgdb.NewSchoolRepository(db)
	users := pgdb.NewUserRepository(db)
	classes := pgdb.NewClassroomRepository(db)
	attempts := pgdb.NewAttemptRepository(db)

	city, err := schools.CreateCity(ctx, school.City{Name: "São Paulo", State: "SP", CreatedAt: now})
	require.NoError(t, err)
	_, err = schools.CreateCity(ctx, school.City{Name: "são paulo", State: "SP", CreatedAt: now})
	assert.Equal(t, school.ErrCityExists, errors.Cause(err))

	sch, err := schools.CreateSchool(ctx, school.School{Name: "EE Monteiro Lobato", CityID: city.ID, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)

	found, err := schools.QuerySchools(ctx, &school.SchoolFilter{Search: "monteiro"}, nil)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	t.Run("users", func(t *testing.T) {
		usr := user.User{
			Name: "Ana Souza", Username: "ana", Role: user.RoleStudent, Status: user.StatusActive,
			SchoolID: sch.ID, Grade: 6, Class: "A", Shift: "matutino",
			PasswordHash: []byte("hash"), CreatedAt: now, UpdatedAt: now,
		}
		usr, err := users.CreateUser(ctx, usr)
		require.NoError(t, err)
		assert.NotEmpty(t, usr.ID)
		assert.Equal(t, 6, usr.Grade)
		assert.True(t, usr.LastLogin.IsZero())

		_, err = users.CreateUser(ctx, user.User{Name: "Outra", Username: "ANA", Role: user.RoleStudent, Status: user.StatusActive, PasswordHash: []byte("x"), CreatedAt: now, UpdatedAt: now})
		assert.Equal(t, user.ErrUsernameExists, errors.Cause(err))
		assert.Equal(t, user.ErrUsernameExists, users.CheckUsernameUniqueness(ctx, "Ana", ""))
		assert.NoError(t, users.CheckUsernameUniqueness(ctx, "ana", "", usr))

		got, err := users.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{"ANA"}})
		require.NoError(t, err)
		assert.Equal(t, usr.ID, got.ID)

		_, err = users.GetUser(ctx, user.GetFilter{ID: "not-a-uuid"})
		assert.Equal(t, user.ErrNotFound, err)

		twin := usr
		twin.Name, twin.Username = "ÁNA SOUZA", "ana2"
		_, err = users.CreateUser(ctx, twin)
		assert.Equal(t, user.ErrDuplicateStudent, errors.Cause(err))
		twin.Class = "B"
		twin, err = users.CreateUser(ctx, twin)
		require.NoError(t, err)
		_, err = users.DeleteUsersByID(ctx, twin.ID)
		require.NoError(t, err)

		got, err = users.AddXP(ctx, usr.ID, 30)
		require.NoError(t, err)
		assert.Equal(t, 30, got.XP)

		_, err = users.AddXP(ctx, usr.ID, user.MaxXP)
		assert.Equal(t, user.ErrXPLimit, err)
		_, err = users.AddXP(ctx, uuid.New().String(), 1)
		assert.Equal(t, user.ErrNotFound, err)

		stale := usr // XP 0
		stale.Name = "Ana S. Souza"
		stale.PasswordHash = nil
		got, err = users.UpdateUser(ctx, stale)
		require.NoError(t, err)
		assert.Equal(t, "Ana S. Souza", got.Name)
		assert.Equal(t, 30, got.XP)
		assert.Equal(t, []byte("hash"), got.PasswordHash)

		list, err := users.QueryUsers(ctx, &user.QueryFilter{Search: "souza", Roles: []string{user.RoleStudent}}, nil)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		n, err := users.DeleteUsersByID(ctx, usr.ID, "bogus")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("classrooms", func(t *testing.T) {
		cls := classroom.Classroom{SchoolID: sch.ID, Grade: 7, Class: "B", Shift: "vespertino", CreatedAt: now, UpdatedAt: now}
		cls, err := classes.CreateClassroom(ctx, cls)
		require.NoError(t, err)
		assert.Equal(t, "", cls.TeacherID)

		_, err = classes.CreateClassroom(ctx, cls)
		assert.Equal(t, classroom.ErrExists, errors.Cause(err))

		list, err := classes.QueryClassrooms(ctx, &classroom.QueryFilter{SchoolIDs: []string{sch.ID}, Grade: 7}, nil)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		require.NoError(t, classes.DeleteClassroom(ctx, cls.ID))
		assert.Equal(t, classroom.ErrNotFound, classes.DeleteClassroom(ctx, cls.ID))
	})

	t.Run("attempts", func(t *testing.T) {
		student, err := users.CreateUser(ctx, user.User{
			Name: "Bia", Username: "bia", Role: user.RoleStudent, Status: user.StatusActive,
			PasswordHash: []byte("x"), CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)

		for i, passed := range []bool{false, true} {
			_, err = attempts.CreateAttempt(ctx, quiz.Attempt{
				StudentID: student.ID, Grade: 6, UnitCode: "6-materia", Total: 5, Correct: 3 + i,
				XP: 30, Passed: passed, StartedAt: now, SubmittedAt: now.Add(time.Duration(i) * time.Minute),
			})
			require.NoError(t, err)
		}

		yes := true
		atts, err := attempts.QueryAttempts(ctx, &quiz.AttemptFilter{StudentIDs: []string{student.ID}, Passed: &yes}, nil)
		require.NoError(t, err)
		require.Len(t, atts, 1)
		assert.Equal(t, 4, atts[0].Correct)

		atts, err = attempts.QueryAttempts(ctx, &quiz.AttemptFilter{StudentIDs: []string{student.ID}}, nil)
		require.NoError(t, err)
		require.Len(t, atts, 2)
		assert.True(t, atts[0].SubmittedAt.After(atts[1].SubmittedAt)) // newest first

		require.NoError(t, attempts.DeleteAttempt(ctx, atts[0].ID))
		assert.Equal(t, quiz.ErrAttemptNotFound, attempts.DeleteAttempt(ctx, atts[0].ID))
		atts, err = attempts.QueryAttempts(ctx, &quiz.AttemptFilter{StudentIDs: []string{student.ID}}, nil)
		require.NoError(t, err)
		assert.Len(t, atts, 1)
	})

	t.Run("school in use", func(t *testing.T) {
		_, err := users.CreateUser(ctx, user.User{
			Name: "Prof", Email: "prof@example.com", Role: user.RoleTeacher, Status: user.StatusActive,
			SchoolID: sch.ID, PasswordHash: []byte("x"), CreatedAt: now, UpdatedAt: now,
		})
		require.NoError(t, err)
		err = schools.DeleteSchool(ctx, sch.ID)
		assert.Error(t, err)
	})
}
