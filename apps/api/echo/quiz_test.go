package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/curriculum"
	"github.com/trezcool/sciencequest/core/quiz"
	testutil "github.com/trezcool/sciencequest/tests"
)

// correctAnswers picks, for each shown question, the option the bank marks as right.
func correctAnswers(t *testing.T, view quiz.SessionView) []int {
	t.Helper()
	bank, err := quiz.LoadBank()
	require.NoError(t, err)

	right := make(map[string]string)
	for _, q := range bank.Questions(6, view.UnitCode) {
		right[q.ID] = q.Options[q.Answer]
	}
	answers := make([]int, 0, len(view.Questions))
	for _, q := range view.Questions {
		want, ok := right[q.ID]
		require.True(t, ok, "question %s not in bank", q.ID)
		idx := -1
		for i, opt := range q.Options {
			if opt == want {
				idx = i
			}
		}
		require.NotEqual(t, -1, idx)
		answers = append(answers, idx)
	}
	return answers
}

func Test_quizApi_curriculum(t *testing.T) {
	env := setup(t)
	studentToken := getToken(t, env.conf, env.student)
	catalog, err := curriculum.LoadCatalog()
	require.NoError(t, err)

	env.run(t, []httpTest{
		{
			name:     "Student grade by default",
			method:   http.MethodGet,
			path:     "/v1/curriculum/units",
			token:    studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, catalog.Units(6)),
		},
		{
			name:     "Any grade",
			method:   http.MethodGet,
			path:     "/v1/curriculum/units?grade=9",
			token:    getToken(t, env.conf, env.teacher),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, catalog.Units(9)),
		},
		{
			name:     "Grade out of range",
			method:   http.MethodGet,
			path:     "/v1/curriculum/units?grade=10",
			token:    studentToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"grade": curriculum.ErrInvalidGrade.Error()}),
		},
		{
			name:     "Staff pick a grade",
			method:   http.MethodGet,
			path:     "/v1/curriculum/units",
			token:    getToken(t, env.conf, env.teacher),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"grade": curriculum.ErrInvalidGrade.Error()}),
		},
		{
			name:     "Skill map is for students",
			method:   http.MethodGet,
			path:     "/v1/skillmap",
			token:    getToken(t, env.conf, env.teacher),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
	})
}

func Test_quizApi_play(t *testing.T) {
	env := setup(t)
	token := getToken(t, env.conf, env.student)

	skillMap := func(t *testing.T) map[string]string {
		rec := env.do(http.MethodGet, "/v1/skillmap", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var units []curriculum.UnitStatus
		decode(t, rec, &units)
		require.Len(t, units, 5)
		statuses := make(map[string]string, len(units))
		for _, u := range units {
			statuses[u.Code] = u.Status
		}
		return statuses
	}

	statuses := skillMap(t)
	assert.Equal(t, curriculum.StatusUnlocked, statuses["6-materia"])
	assert.Equal(t, curriculum.StatusLocked, statuses["6-materiais-sinteticos"])
	assert.Equal(t, curriculum.StatusLocked, statuses["6-terra"])

	env.run(t, []httpTest{
		{
			name:     "Unit required",
			method:   http.MethodPost,
			path:     "/v1/quizzes",
			body:     []byte(`{}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"unit_code":"este campo é obrigatório"}`),
		},
		{
			name:     "Unknown unit",
			method:   http.MethodPost,
			path:     "/v1/quizzes",
			body:     []byte(`{"unit_code":"6-alquimia"}`),
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: curriculum.ErrUnitNotFound.Error()}),
		},
		{
			name:     "Locked unit",
			method:   http.MethodPost,
			path:     "/v1/quizzes",
			body:     []byte(`{"unit_code":"6-celula"}`),
			token:    token,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: quiz.ErrUnitLocked.Error()}),
		},
		{
			name:     "Another grade",
			method:   http.MethodPost,
			path:     "/v1/quizzes",
			body:     []byte(`{"unit_code":"` + mustFirstUnit(t, 7) + `"}`),
			token:    token,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: quiz.ErrWrongGrade.Error()}),
		},
		{
			name:     "Students only",
			method:   http.MethodPost,
			path:     "/v1/quizzes",
			body:     []byte(`{"unit_code":"6-materia"}`),
			token:    getToken(t, env.conf, env.teacher),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
	})

	rec := env.do(http.MethodPost, "/v1/quizzes", token, []byte(`{"unit_code":" 6-materia "}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var view quiz.SessionView
	decode(t, rec, &view)
	require.Len(t, view.Questions, 5)
	assert.Equal(t, "6-materia", view.UnitCode)
	assert.NotContains(t, rec.Body.String(), `"answer"`)
	submitPath := "/v1/quizzes/" + view.ID + "/submit"

	t.Run("Wrong answer count", func(t *testing.T) {
		rec := env.do(http.MethodPost, submitPath, token, []byte(`{"answers":[0,1]}`))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"answers":"o número de respostas deve ser igual ao número de perguntas"}`),
		}, rec)
	})

	t.Run("Someone else's quiz", func(t *testing.T) {
		bruno := testutil.CreateUser(t, env.usrRepo, testutil.Student("Bruno Lima", "bruno", env.school.ID, 6, "A", core.ShiftMorning), "")
		rec := env.do(http.MethodPost, submitPath, getToken(t, env.conf, bruno), marchallObj(t, quiz.Submission{Answers: []int{0, 0, 0, 0, 0}}))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: quiz.ErrSessionNotFound.Error()}),
		}, rec)
	})

	t.Run("Perfect score", func(t *testing.T) {
		rec := env.do(http.MethodPost, submitPath, token, marchallObj(t, quiz.Submission{Answers: correctAnswers(t, view)}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res quiz.Result
		decode(t, rec, &res)
		assert.Equal(t, 5, res.Attempt.Total)
		assert.Equal(t, 5, res.Attempt.Correct)
		assert.True(t, res.Attempt.Passed)
		assert.Equal(t, 5*10+20, res.Attempt.XP)
		assert.Equal(t, 70, res.StudentXP)
		require.Len(t, res.Answers, 5)
		for _, a := range res.Answers {
			assert.True(t, a.Correct)
		}
	})

	t.Run("Sessions are single-use", func(t *testing.T) {
		rec := env.do(http.MethodPost, submitPath, token, marchallObj(t, quiz.Submission{Answers: correctAnswers(t, view)}))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: quiz.ErrSessionNotFound.Error()}),
		}, rec)
	})

	t.Run("Next unit unlocked", func(t *testing.T) {
		statuses := skillMap(t)
		assert.Equal(t, curriculum.StatusCompleted, statuses["6-materia"])
		assert.Equal(t, curriculum.StatusUnlocked, statuses["6-materiais-sinteticos"])
		assert.Equal(t, curriculum.StatusLocked, statuses["6-celula"])

		rec := env.do(http.MethodPost, "/v1/quizzes", token, []byte(`{"unit_code":"6-materiais-sinteticos","size":2}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var next quiz.SessionView
		decode(t, rec, &next)
		assert.Len(t, next.Questions, 2)
	})

	t.Run("Attempts", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/quizzes/attempts", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var atts []quiz.Attempt
		decode(t, rec, &atts)
		require.Len(t, atts, 1)
		assert.Equal(t, env.student.ID, atts[0].StudentID)

		teacherToken := getToken(t, env.conf, env.teacher)
		rec = env.do(http.MethodGet, "/v1/quizzes/attempts", teacherToken)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"student_id":"este campo é obrigatório"}`),
		}, rec)

		rec = env.do(http.MethodGet, "/v1/quizzes/attempts?student_id="+env.student.ID, teacherToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &atts)
		assert.Len(t, atts, 1)

		_, otherSchool := testutil.CreateSchool(t, env.schRepo, "EM Paulo Freire", "Recife", "PE")
		outsider := testutil.CreateUser(t, env.usrRepo, testutil.Teacher("Rui Barbosa", "rui@sq.test", otherSchool.ID), "")
		rec = env.do(http.MethodGet, "/v1/quizzes/attempts?student_id="+env.student.ID, getToken(t, env.conf, outsider))
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(http.MethodGet, "/v1/quizzes/attempts?unit_code=6-terra", getToken(t, env.conf, env.admin))
		require.Equal(t, http.StatusOK, rec.Code)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}, rec)
	})

	t.Run("Roster counts completed units", func(t *testing.T) {
		cls := env.createClassroom(t, env.teacher.ID, 6, "A", core.ShiftMorning)
		rec := env.do(http.MethodGet, "/v1/classrooms/"+cls.ID+"/roster", getToken(t, env.conf, env.teacher))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"completed_units":1`)
	})
}

func mustFirstUnit(t *testing.T, grade int) string {
	t.Helper()
	catalog, err := curriculum.LoadCatalog()
	require.NoError(t, err)
	units := catalog.Units(grade)
	require.NotEmpty(t, units)
	return units[0].Code
}
