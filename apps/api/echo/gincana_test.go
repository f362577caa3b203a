package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/gincana"
	testutil "github.com/trezcool/sciencequest/tests"
)

// gincanaView mirrors the JSON a gincana is rendered as.
type gincanaView struct {
	ID               string         `json:"id"`
	ClassroomID      string         `json:"classroom_id"`
	TeacherID        string         `json:"teacher_id"`
	Teams            []gincana.Team `json:"teams"`
	DurationMinutes  int            `json:"duration_minutes"`
	Status           string         `json:"status"`
	RemainingSeconds int            `json:"remaining_seconds"`
	Winners          []gincana.Team `json:"winners"`
}

func Test_gincanaApi(t *testing.T) {
	env := setup(t)
	token := getToken(t, env.conf, env.teacher)
	cls := env.createClassroom(t, env.teacher.ID, 6, "A", core.ShiftMorning)
	rui := testutil.CreateUser(t, env.usrRepo, testutil.Teacher("Rui Barbosa", "rui@sq.test", env.school.ID), "")

	env.run(t, []httpTest{
		{
			name:     "Staff only",
			method:   http.MethodPost,
			path:     "/v1/gincanas",
			body:     []byte(`{}`),
			token:    getToken(t, env.conf, env.student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "One team",
			method:   http.MethodPost,
			path:     "/v1/gincanas",
			body:     []byte(`{"classroom_id":"` + cls.ID + `","teams":["Prótons"],"duration_minutes":10}`),
			token:    token,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "Same team twice",
			method:   http.MethodPost,
			path:     "/v1/gincanas",
			body:     []byte(`{"classroom_id":"` + cls.ID + `","teams":["Prótons","protons"],"duration_minutes":10}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"teams": gincana.ErrDuplicateTeam.Error()}),
		},
		{
			name:     "Too long",
			method:   http.MethodPost,
			path:     "/v1/gincanas",
			body:     []byte(`{"classroom_id":"` + cls.ID + `","teams":["Prótons","Nêutrons"],"duration_minutes":121}`),
			token:    token,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "Another teacher's classroom",
			method:   http.MethodPost,
			path:     "/v1/gincanas",
			body:     []byte(`{"classroom_id":"` + cls.ID + `","teams":["Prótons","Nêutrons"],"duration_minutes":10}`),
			token:    getToken(t, env.conf, rui),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "você não tem acesso a esta turma"}),
		},
		{
			name:     "Classroom required",
			method:   http.MethodGet,
			path:     "/v1/gincanas",
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"classroom_id":"este campo é obrigatório"}`),
		},
	})

	rec := env.do(http.MethodPost, "/v1/gincanas", token,
		[]byte(`{"classroom_id":"`+cls.ID+`","teams":[" Prótons ","Nêutrons","Elétrons"],"duration_minutes":15}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var game gincanaView
	decode(t, rec, &game)
	assert.Equal(t, cls.ID, game.ClassroomID)
	assert.Equal(t, env.teacher.ID, game.TeacherID)
	assert.Equal(t, gincana.StatusRunning, game.Status)
	assert.Equal(t, 15, game.DurationMinutes)
	assert.InDelta(t, 15*60, game.RemainingSeconds, 5)
	assert.Equal(t, []gincana.Team{{Name: "Prótons"}, {Name: "Nêutrons"}, {Name: "Elétrons"}}, game.Teams)
	assert.Empty(t, game.Winners)

	pointsPath := "/v1/gincanas/" + game.ID + "/points"
	addPoints := func(t *testing.T, team string, points int) gincanaView {
		rec := env.do(http.MethodPost, pointsPath, token, marchallObj(t, gincana.AddPoints{Team: team, Points: points}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var g gincanaView
		decode(t, rec, &g)
		return g
	}

	t.Run("Points", func(t *testing.T) {
		addPoints(t, "protons", 30)
		addPoints(t, "Nêutrons", 10)
		g := addPoints(t, "NEUTRONS", -25) // never below zero
		assert.Equal(t, []gincana.Team{{Name: "Prótons", Score: 30}, {Name: "Nêutrons"}, {Name: "Elétrons"}}, g.Teams)
		g = addPoints(t, "Elétrons", 30)
		assert.Equal(t, 30, g.Teams[2].Score)

		rec := env.do(http.MethodPost, pointsPath, token, []byte(`{"team":"Quarks","points":5}`))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"team": gincana.ErrTeamNotFound.Error()}),
		}, rec)

		rec = env.do(http.MethodPost, pointsPath, getToken(t, env.conf, rui), []byte(`{"team":"Prótons","points":5}`))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: gincana.ErrForbidden.Error()}),
		}, rec)
	})

	t.Run("Retrieve and list", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/v1/gincanas/"+game.ID, getToken(t, env.conf, env.admin))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = env.do(http.MethodGet, "/v1/gincanas?classroom_id="+cls.ID, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var games []gincanaView
		decode(t, rec, &games)
		require.Len(t, games, 1)
		assert.Equal(t, game.ID, games[0].ID)

		rec = env.do(http.MethodGet, "/v1/gincanas/unknown", token)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: gincana.ErrNotFound.Error()}),
		}, rec)
	})

	t.Run("Finish", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/gincanas/"+game.ID+"/finish", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var g gincanaView
		decode(t, rec, &g)
		assert.Equal(t, gincana.StatusFinished, g.Status)
		assert.Equal(t, 0, g.RemainingSeconds)
		// tied teams share the win
		assert.Equal(t, []gincana.Team{{Name: "Prótons", Score: 30}, {Name: "Elétrons", Score: 30}}, g.Winners)

		env.run(t, []httpTest{
			{
				name:     "Points after the end",
				method:   http.MethodPost,
				path:     pointsPath,
				body:     []byte(`{"team":"Prótons","points":5}`),
				token:    token,
				wantCode: http.StatusConflict,
				wantData: marchallObj(t, httpErr{Error: gincana.ErrNotRunning.Error()}),
			},
			{
				name:     "Finish twice",
				method:   http.MethodPost,
				path:     "/v1/gincanas/" + game.ID + "/finish",
				token:    token,
				wantCode: http.StatusConflict,
				wantData: marchallObj(t, httpErr{Error: gincana.ErrNotRunning.Error()}),
			},
		})
	})
}
