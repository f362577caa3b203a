package quiz

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/curriculum"
	"github.com/trezcool/sciencequest/core/user"
)

func newTestService(t *testing.T) (*Service, *attemptRepo, *xpAwarder) {
	t.Helper()
	conf := core.NewTestConfig()
	catalog, err := curriculum.NewCatalog([]curriculum.Unit{
		{Code: "u1", Grade: 6, Order: 1, QuestionCount: 2},
		{Code: "u2", Grade: 6, Order: 2, QuestionCount: 2},
		{Code: "u7", Grade: 7, Order: 1, QuestionCount: 2},
	})
	require.NoError(t, err)

	bank := testBank(t)
	require.NoError(t, bank.Add(6, "u2",
		Question{ID: "q3", Prompt: "p3", Options: []string{"a", "b", "c"}, Answer: 2},
		Question{ID: "q4", Prompt: "p4", Options: []string{"a", "b", "c"}, Answer: 0},
	))

	repo := new(attemptRepo)
	xp := &xpAwarder{xp: make(map[string]int)}
	svc := NewService(repo, catalog, NewProvider(bank, nil, conf, nopLogger{}), xp, conf)
	return svc, repo, xp
}

func rightAnswers(sess Session) []int {
	answers := make([]int, len(sess.Questions))
	for i, q := range sess.Questions {
		answers[i] = q.Answer
	}
	return answers
}

func TestService_Start(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	student := user.User{ID: "s1", Role: user.RoleStudent, Grade: 6}

	tests := []struct {
		name    string
		usr     user.User
		unit    string
		wantErr error
	}{
		{name: "teacher", usr: user.User{ID: "t1", Role: user.RoleTeacher}, unit: "u1", wantErr: ErrStudentsOnly},
		{name: "unknown unit", usr: student, unit: "nope", wantErr: curriculum.ErrUnitNotFound},
		{name: "other grade", usr: student, unit: "u7", wantErr: ErrWrongGrade},
		{name: "locked unit", usr: student, unit: "u2", wantErr: ErrUnitLocked},
		{name: "first unit", usr: student, unit: "u1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sess, err := svc.Start(ctx, tc.usr, tc.unit, 0)
			if tc.wantErr != nil {
				assert.Equal(t, tc.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, sess.ID)
			assert.Len(t, sess.Questions, 2)
			assert.Equal(t, "s1", sess.StudentID)
			assert.True(t, sess.ExpiresAt.After(sess.StartedAt))
		})
	}
}

func TestService_Start_capacity(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.maxSessions = 2
	ctx := context.Background()
	student := user.User{ID: "s1", Role: user.RoleStudent, Grade: 6}

	first, err := svc.Start(ctx, student, "u1", 0)
	require.NoError(t, err)
	_, err = svc.Start(ctx, student, "u1", 0)
	require.NoError(t, err)

	_, err = svc.Start(ctx, student, "u1", 0)
	assert.Equal(t, ErrTooManySessions, err)

	// open sessions are kept
	_, err = svc.Submit(ctx, student, first.ID, Submission{Answers: rightAnswers(first)})
	require.NoError(t, err)
	_, err = svc.Start(ctx, student, "u1", 0)
	assert.NoError(t, err)
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()
	student := user.User{ID: "s1", Role: user.RoleStudent, Grade: 6, XP: 0}

	t.Run("perfect score unlocks the next unit", func(t *testing.T) {
		svc, repo, xp := newTestService(t)
		sess, err := svc.Start(ctx, student, "u1", 0)
		require.NoError(t, err)

		res, err := svc.Submit(ctx, student, sess.ID, Submission{Answers: rightAnswers(sess)})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Attempt.Correct)
		assert.Equal(t, 2, res.Attempt.Total)
		assert.True(t, res.Attempt.Passed)
		assert.Equal(t, 2*10+20, res.Attempt.XP)
		assert.Equal(t, 40, res.StudentXP)
		assert.Equal(t, 40, xp.xp["s1"])
		assert.Len(t, repo.attempts, 1)
		for _, a := range res.Answers {
			assert.True(t, a.Correct)
		}

		_, err = svc.Submit(ctx, student, sess.ID, Submission{Answers: rightAnswers(sess)})
		assert.Equal(t, ErrSessionNotFound, err, "sessions are single-use")

		_, err = svc.Start(ctx, student, "u2", 0)
		assert.NoError(t, err)

		nodes, err := svc.SkillMap(ctx, student)
		require.NoError(t, err)
		require.Len(t, nodes, 2)
		assert.Equal(t, curriculum.StatusCompleted, nodes[0].Status)
		assert.Equal(t, curriculum.StatusUnlocked, nodes[1].Status)
	})

	t.Run("failed attempt", func(t *testing.T) {
		svc, _, xp := newTestService(t)
		sess, err := svc.Start(ctx, student, "u1", 0)
		require.NoError(t, err)

		answers := rightAnswers(sess)
		answers[0] = (answers[0] + 1) % len(sess.Questions[0].Options)
		res, err := svc.Submit(ctx, student, sess.ID, Submission{Answers: answers})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Attempt.Correct)
		assert.False(t, res.Attempt.Passed)
		assert.Equal(t, 10, res.Attempt.XP)
		assert.Equal(t, 10, xp.xp["s1"])
		assert.False(t, res.Answers[0].Correct)

		_, err = svc.Start(ctx, student, "u2", 0)
		assert.Equal(t, ErrUnitLocked, err)
	})

	t.Run("no correct answer earns no xp", func(t *testing.T) {
		svc, _, xp := newTestService(t)
		sess, err := svc.Start(ctx, student, "u1", 0)
		require.NoError(t, err)

		answers := make([]int, len(sess.Questions))
		for i, q := range sess.Questions {
			answers[i] = (q.Answer + 1) % len(q.Options)
		}
		res, err := svc.Submit(ctx, student, sess.ID, Submission{Answers: answers})
		require.NoError(t, err)
		assert.Zero(t, res.Attempt.XP)
		assert.Zero(t, res.StudentXP)
		_, ok := xp.xp["s1"]
		assert.False(t, ok)
	})

	t.Run("wrong answer count keeps the session", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		sess, err := svc.Start(ctx, student, "u1", 0)
		require.NoError(t, err)

		_, err = svc.Submit(ctx, student, sess.ID, Submission{Answers: []int{0}})
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "answers", verr.Fields[0].Field)

		_, err = svc.Submit(ctx, student, sess.ID, Submission{Answers: rightAnswers(sess)})
		assert.NoError(t, err)
	})

	t.Run("failed xp award rolls the attempt back", func(t *testing.T) {
		svc, repo, xp := newTestService(t)
		sess, err := svc.Start(ctx, student, "u1", 0)
		require.NoError(t, err)

		xp.err = errors.New("db down")
		_, err = svc.Submit(ctx, student, sess.ID, Submission{Answers: rightAnswers(sess)})
		require.Error(t, err)
		assert.Empty(t, repo.attempts)
		assert.Zero(t, xp.xp["s1"])

		// the session is still open, so the student can resubmit
		xp.err = nil
		res, err := svc.Submit(ctx, student, sess.ID, Submission{Answers: rightAnswers(sess)})
		require.NoError(t, err)
		assert.Equal(t, 40, res.StudentXP)
		assert.Len(t, repo.attempts, 1)
	})

	t.Run("another student's session", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		sess, err := svc.Start(ctx, student, "u1", 0)
		require.NoError(t, err)

		other := user.User{ID: "s2", Role: user.RoleStudent, Grade: 6}
		_, err = svc.Submit(ctx, other, sess.ID, Submission{Answers: rightAnswers(sess)})
		assert.Equal(t, ErrSessionNotFound, err)
	})

	t.Run("expired session", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		sess, err := svc.Start(ctx, student, "u1", 0)
		require.NoError(t, err)

		nowFunc = func() time.Time { return sess.ExpiresAt.Add(time.Second) }
		defer func() { nowFunc = time.Now }()
		_, err = svc.Submit(ctx, student, sess.ID, Submission{Answers: rightAnswers(sess)})
		assert.Equal(t, ErrSessionNotFound, err)
	})
}

func TestService_CompletedUnits(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	repo.attempts = []Attempt{
		{StudentID: "s1", UnitCode: "u1", Passed: true},
		{StudentID: "s1", UnitCode: "u1", Passed: true},
		{StudentID: "s1", UnitCode: "u2", Passed: false},
		{StudentID: "s2", UnitCode: "u1", Passed: true},
		{StudentID: "s2", UnitCode: "u2", Passed: true},
	}

	counts, err := svc.CompletedUnits(ctx, "s1", "s2", "s3")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"s1": 1, "s2": 2}, counts)
}

func TestXPFor(t *testing.T) {
	conf := core.QuizConfig{XPPerCorrect: 10, PerfectBonus: 20}
	assert.Equal(t, 0, XPFor(0, 5, conf))
	assert.Equal(t, 40, XPFor(4, 5, conf))
	assert.Equal(t, 70, XPFor(5, 5, conf))
	assert.True(t, Passed(7, 10, 0.7))
	assert.False(t, Passed(6, 10, 0.7))
	assert.False(t, Passed(0, 0, 0.7))
}
