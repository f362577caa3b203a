package echoapi_test

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/sciencequest/apps/api/echo"
	"github.com/trezcool/sciencequest/core"
	"github.com/trezcool/sciencequest/core/user"
	avatarsvc "github.com/trezcool/sciencequest/services/avatar"
	emailsvc "github.com/trezcool/sciencequest/services/email"
	testutil "github.com/trezcool/sciencequest/tests"
)

func loginBody(t *testing.T, uname, pwd string) []byte {
	return marchallObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
}

func Test_userApi_login(t *testing.T) {
	env := setup(t)

	pending := testutil.Teacher("Paulo Freire", "paulo@sq.test", env.school.ID)
	pending.Status = user.StatusPending
	pending.Verified = false
	testutil.CreateUser(t, env.usrRepo, pending, "")

	inactive := testutil.Student("Caio Prado", "caio", env.school.ID, 6, "A", core.ShiftMorning)
	inactive.Status = user.StatusInactive
	testutil.CreateUser(t, env.usrRepo, inactive, "")

	tests := []httpTest{
		{
			name:     "Unknown user",
			body:     loginBody(t, "nobody", testutil.Password),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "usuário ou senha inválidos"}),
		},
		{
			name:     "Wrong password",
			body:     loginBody(t, "anasouza", "wrong"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "usuário ou senha inválidos"}),
		},
		{
			name:     "Pending teacher",
			body:     loginBody(t, "paulo@sq.test", testutil.Password),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "cadastro aguardando aprovação de um administrador"}),
		},
		{
			name:     "Deactivated account",
			body:     loginBody(t, "caio", testutil.Password),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "conta desativada"}),
		},
		{
			name:     "Missing fields",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username":"este campo é obrigatório","password":"este campo é obrigatório"}`),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/login"
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, "", tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Username or email, any case", func(t *testing.T) {
		for _, uname := range []string{"AnaSouza", " anasouza ", "marta@SQ.test"} {
			rec := env.do(http.MethodPost, "/v1/users/login", "", loginBody(t, uname, testutil.Password))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp echoapi.LoginResponse
			decode(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)
			require.NotNil(t, resp.User)
			assert.False(t, resp.User.LastLogin.IsZero())

			// the token opens the authed endpoints
			rec = env.do(http.MethodGet, "/v1/users/me", resp.Token)
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func Test_userApi_auth(t *testing.T) {
	env := setup(t)
	studentToken := getToken(t, env.conf, env.student)

	env.run(t, []httpTest{
		{
			name:     "Auth required",
			method:   http.MethodGet,
			path:     "/v1/users",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "Invalid token",
			method:   http.MethodGet,
			path:     "/v1/users/me",
			token:    "not-a-jwt",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "Admin only",
			method:   http.MethodGet,
			path:     "/v1/users",
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
	})

	t.Run("Token refresh", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/users/token-refresh", studentToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp echoapi.LoginResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("Refresh expired", func(t *testing.T) {
		claims := echoapi.GetUserClaims(env.student, env.conf, 0 /* issued in 1970 */)
		token, err := echoapi.GenerateToken(claims, env.conf)
		require.NoError(t, err)

		rec := env.do(http.MethodPost, "/v1/users/token-refresh", token)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "a renovação do token expirou"}),
		}, rec)
	})

	t.Run("Deleted user", func(t *testing.T) {
		_, err := env.usrRepo.DeleteUsersByID(context.Background(), env.student.ID)
		require.NoError(t, err)
		rec := env.do(http.MethodGet, "/v1/users/me", studentToken)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func Test_userApi_register(t *testing.T) {
	env := setup(t)
	adminToken := getToken(t, env.conf, env.admin)

	student := func(name, uname string) []byte {
		return marchallObj(t, user.StudentRegistration{
			Name:            name,
			Username:        uname,
			Password:        testutil.Password,
			PasswordConfirm: testutil.Password,
			SchoolID:        env.school.ID,
			Grade:           6,
			Class:           "a",
			Shift:           "Matutino",
		})
	}

	t.Run("Student", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/users/register/student", "", student("Bruno Lima", "BrunoLima"))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, "brunolima", usr.Username)
		assert.Equal(t, user.RoleStudent, usr.Role)
		assert.Equal(t, user.StatusActive, usr.Status)
		assert.Equal(t, "A", usr.Class)
		assert.Equal(t, core.ShiftMorning, usr.Shift)
		assert.Equal(t, 0, usr.XP)
	})

	env.run(t, []httpTest{
		{
			name:     "Same student twice in a class",
			method:   http.MethodPost,
			path:     "/v1/users/register/student",
			body:     student("ANA  SOUZA", "anasouza2"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": user.ErrDuplicateStudent.Error()}),
		},
		{
			name:     "Username taken",
			method:   http.MethodPost,
			path:     "/v1/users/register/student",
			body:     student("Ana Maria", "AnaSouza"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()}),
		},
	})

	t.Run("Teacher approval", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/users/register/teacher", "", marchallObj(t, user.TeacherRegistration{
			Name:            "Paulo Freire",
			Email:           "Paulo@SQ.test",
			Password:        testutil.Password,
			PasswordConfirm: testutil.Password,
			SchoolID:        env.school.ID,
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var teacher user.User
		decode(t, rec, &teacher)
		assert.Equal(t, user.StatusPending, teacher.Status)
		assert.False(t, teacher.Verified)
		assert.Len(t, env.notifier.Sent(), 1)

		rec = env.do(http.MethodPost, "/v1/users/login", "", loginBody(t, "paulo@sq.test", testutil.Password))
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(http.MethodGet, "/v1/users/pending", adminToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var pending []user.User
		decode(t, rec, &pending)
		require.Len(t, pending, 1)
		assert.Equal(t, teacher.ID, pending[0].ID)

		rec = env.do(http.MethodPost, "/v1/users/"+teacher.ID+"/approve", adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &teacher)
		assert.Equal(t, user.StatusActive, teacher.Status)
		assert.True(t, teacher.Verified)

		msg, ok := emailsvc.LastSentMessage()
		require.True(t, ok)
		assert.Equal(t, "teacher_approved", msg.TemplateName)

		rec = env.do(http.MethodPost, "/v1/users/login", "", loginBody(t, "paulo@sq.test", testutil.Password))
		assert.Equal(t, http.StatusOK, rec.Code)

		env.run(t, []httpTest{
			{
				name:     "Approve twice",
				method:   http.MethodPost,
				path:     "/v1/users/" + teacher.ID + "/approve",
				token:    adminToken,
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"status": user.ErrNotPending.Error()}),
			},
			{
				name:     "Approve unknown",
				method:   http.MethodPost,
				path:     "/v1/users/unknown/approve",
				token:    adminToken,
				wantCode: http.StatusNotFound,
				wantData: marchallObj(t, httpErr{Error: user.ErrNotFound.Error()}),
			},
			{
				name:     "Teachers cannot approve",
				method:   http.MethodPost,
				path:     "/v1/users/" + teacher.ID + "/approve",
				token:    getToken(t, env.conf, env.teacher),
				wantCode: http.StatusForbidden,
				wantData: marchallObj(t, errForbidden),
			},
		})
	})

	t.Run("Reject", func(t *testing.T) {
		pending := testutil.Teacher("Rui Barbosa", "rui@sq.test", env.school.ID)
		pending.Status = user.StatusPending
		pending = testutil.CreateUser(t, env.usrRepo, pending, "")

		rec := env.do(http.MethodPost, "/v1/users/"+pending.ID+"/reject", adminToken)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		_, err := env.usrRepo.GetUser(context.Background(), user.GetFilter{ID: pending.ID})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("Admin creates users", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/v1/users/register", adminToken, marchallObj(t, user.NewUser{
			Name:            "Clara Nunes",
			Username:        "clara",
			Password:        testutil.Password,
			PasswordConfirm: testutil.Password,
			Role:            user.RoleStudent,
			SchoolID:        env.school.ID,
			Grade:           7,
			Class:           "B",
			Shift:           core.ShiftAfternoon,
		}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, 7, usr.Grade)
		assert.Equal(t, user.StatusActive, usr.Status)

		rec = env.do(http.MethodPost, "/v1/users/register", getToken(t, env.conf, env.teacher), []byte(`{}`))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func Test_userApi_query(t *testing.T) {
	env := setup(t)
	adminToken := getToken(t, env.conf, env.admin)

	path := func(ordering string, roles ...string) string {
		v := make(url.Values)
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}
	usernames := func(t *testing.T, p string) []string {
		rec := env.do(http.MethodGet, p, adminToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var users []user.User
		decode(t, rec, &users)
		names := make([]string, 0, len(users))
		for _, u := range users {
			names = append(names, u.Name)
		}
		return names
	}

	testutil.CreateUser(t, env.usrRepo, testutil.Student("Bruno Lima", "bruno", env.school.ID, 6, "A", core.ShiftMorning), "")

	assert.ElementsMatch(t, []string{"Admin", "Marta Rocha", "Ana Souza", "Bruno Lima"}, usernames(t, path("")))
	assert.Equal(t, []string{"Ana Souza", "Bruno Lima"}, usernames(t, path("name", user.RoleStudent)))
	assert.Equal(t, []string{"Bruno Lima", "Ana Souza"}, usernames(t, path("-name", user.RoleStudent)))
	assert.Equal(t, []string{"Marta Rocha"}, usernames(t, path("", user.RoleTeacher)))
	assert.Equal(t, []string{"Ana Souza"}, usernames(t, "/v1/users?search=souza"))

	rec := env.do(http.MethodGet, "/v1/users?created_from=yesterday", adminToken)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"created_from": "data inválida (use RFC 3339)"}),
	}, rec)

	rec = env.do(http.MethodGet, "/v1/users/roles", adminToken)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)}, rec)
}

func Test_userApi_detail(t *testing.T) {
	env := setup(t)
	adminToken := getToken(t, env.conf, env.admin)
	studentToken := getToken(t, env.conf, env.student)
	other := testutil.CreateUser(t, env.usrRepo, testutil.Student("Bruno Lima", "bruno", env.school.ID, 6, "A", core.ShiftMorning), "")

	env.run(t, []httpTest{
		{
			name:     "Someone else",
			method:   http.MethodGet,
			path:     "/v1/users/" + other.ID,
			token:    studentToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
		{
			name:     "Self",
			method:   http.MethodGet,
			path:     "/v1/users/" + env.student.ID,
			token:    studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, env.student),
		},
		{
			name:     "Admin",
			method:   http.MethodGet,
			path:     "/v1/users/" + other.ID,
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, other),
		},
		{
			name:     "Students cannot change their role",
			method:   http.MethodPut,
			path:     "/v1/users/" + env.student.ID,
			body:     []byte(`{"role":"admin"}`),
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "Students cannot delete",
			method:   http.MethodDelete,
			path:     "/v1/users/" + env.student.ID,
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "Admins cannot delete themselves",
			method:   http.MethodDelete,
			path:     "/v1/users/" + env.admin.ID,
			token:    adminToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "Admins cannot bulk delete themselves",
			method:   http.MethodDelete,
			path:     "/v1/users?id=" + other.ID + "&id=" + env.admin.ID,
			token:    adminToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
	})

	t.Run("Own password needs the current one", func(t *testing.T) {
		body := user.UpdateUser{Password: "Gal4xia#Espiral", PasswordConfirm: "Gal4xia#Espiral"}
		rec := env.do(http.MethodPut, "/v1/users/"+env.student.ID, studentToken, marchallObj(t, body))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"current_password": user.ErrWrongPassword.Error()}),
		}, rec)

		body.CurrentPassword = "wrong"
		rec = env.do(http.MethodPut, "/v1/users/"+env.student.ID, studentToken, marchallObj(t, body))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = env.do(http.MethodPost, "/v1/users/login", "", loginBody(t, "anasouza", "Gal4xia#Espiral"))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "password unchanged")

		body.CurrentPassword = testutil.Password
		rec = env.do(http.MethodPut, "/v1/users/"+env.student.ID, studentToken, marchallObj(t, body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rec = env.do(http.MethodPost, "/v1/users/login", "", loginBody(t, "anasouza", "Gal4xia#Espiral"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Admin sets someone else's password", func(t *testing.T) {
		body := marchallObj(t, user.UpdateUser{Password: "Nebul0sa#Roxa", PasswordConfirm: "Nebul0sa#Roxa"})
		rec := env.do(http.MethodPut, "/v1/users/"+other.ID, adminToken, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rec = env.do(http.MethodPost, "/v1/users/login", "", loginBody(t, "bruno", "Nebul0sa#Roxa"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Admin moves a student", func(t *testing.T) {
		rec := env.do(http.MethodPut, "/v1/users/"+other.ID, adminToken, []byte(`{"class":"b","shift":"vespertino"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, "B", usr.Class)
		assert.Equal(t, core.ShiftAfternoon, usr.Shift)
		assert.Equal(t, "bruno", usr.Username)
	})

	t.Run("Admin deletes", func(t *testing.T) {
		rec := env.do(http.MethodDelete, "/v1/users/"+other.ID, adminToken)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = env.do(http.MethodGet, "/v1/users/"+other.ID, adminToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = env.do(http.MethodDelete, "/v1/users?id="+env.student.ID, adminToken)
		require.Equal(t, http.StatusNoContent, rec.Code)
		rec = env.do(http.MethodGet, "/v1/users/me", studentToken)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func Test_userApi_xp(t *testing.T) {
	env := setup(t)
	teacherToken := getToken(t, env.conf, env.teacher)

	_, otherSchool := testutil.CreateSchool(t, env.schRepo, "EM Paulo Freire", "Recife", "PE")
	outsider := testutil.CreateUser(t, env.usrRepo, testutil.Student("Davi Melo", "davi", otherSchool.ID, 6, "A", core.ShiftMorning), "")
	xpPath := func(id string) string { return "/v1/users/" + id + "/xp" }

	env.run(t, []httpTest{
		{
			name:     "Not positive",
			method:   http.MethodPost,
			path:     xpPath(env.student.ID),
			body:     []byte(`{"amount":0}`),
			token:    teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"amount": user.ErrInvalidXP.Error()}),
		},
		{
			name:     "Too much",
			method:   http.MethodPost,
			path:     xpPath(env.student.ID),
			body:     []byte(fmt.Sprintf(`{"amount":%d}`, user.MaxXPAward+1)),
			token:    teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"amount": user.ErrInvalidXP.Error()}),
		},
		{
			name:     "Overflowing amount",
			method:   http.MethodPost,
			path:     xpPath(env.student.ID),
			body:     []byte(`{"amount":9223372036854775807}`),
			token:    teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"amount": user.ErrInvalidXP.Error()}),
		},
		{
			name:     "Another school",
			method:   http.MethodPost,
			path:     xpPath(outsider.ID),
			body:     []byte(`{"amount":10}`),
			token:    teacherToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "Only students earn XP",
			method:   http.MethodPost,
			path:     xpPath(env.teacher.ID),
			body:     []byte(`{"amount":10}`),
			token:    teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: user.ErrNotStudent.Error()}),
		},
		{
			name:     "Students cannot award",
			method:   http.MethodPost,
			path:     xpPath(env.student.ID),
			body:     []byte(`{"amount":10}`),
			token:    getToken(t, env.conf, env.student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
	})

	for _, amount := range []int{30, 15} {
		rec := env.do(http.MethodPost, xpPath(env.student.ID), teacherToken, []byte(fmt.Sprintf(`{"amount":%d}`, amount)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	usr, err := env.usrRepo.GetUser(context.Background(), user.GetFilter{ID: env.student.ID})
	require.NoError(t, err)
	assert.Equal(t, 45, usr.XP)

	t.Run("Leaderboard", func(t *testing.T) {
		bruno := testutil.CreateUser(t, env.usrRepo, testutil.Student("Bruno Lima", "bruno", env.school.ID, 6, "A", core.ShiftMorning), "")
		_, err := env.usrRepo.AddXP(context.Background(), bruno.ID, 60)
		require.NoError(t, err)

		rec := env.do(http.MethodGet, "/v1/leaderboard?school_id="+env.school.ID, getToken(t, env.conf, env.student))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var board []user.RankedStudent
		decode(t, rec, &board)
		require.Len(t, board, 2)
		assert.Equal(t, "Bruno Lima", board[0].Name)
		assert.Equal(t, 1, board[0].Rank)
		assert.Equal(t, "Ana Souza", board[1].Name)
		assert.Equal(t, 2, board[1].Rank)
		assert.Equal(t, 45, board[1].XP)

		rec = env.do(http.MethodGet, "/v1/leaderboard?limit=1", getToken(t, env.conf, env.student))
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &board)
		require.Len(t, board, 1)
		assert.Equal(t, "Bruno Lima", board[0].Name)
	})
}

func Test_userApi_profile(t *testing.T) {
	env := setup(t)
	token := getToken(t, env.conf, env.student)

	t.Run("Rename", func(t *testing.T) {
		rec := env.do(http.MethodPut, "/v1/users/me", token, []byte(`{"name":"  Ana Souza Lima "}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, "Ana Souza Lima", usr.Name)
	})

	t.Run("Wrong current password", func(t *testing.T) {
		rec := env.do(http.MethodPut, "/v1/users/me", token, marchallObj(t, user.UpdateProfile{
			CurrentPassword: "wrong",
			Password:        "Gal4xia#Espiral",
			PasswordConfirm: "Gal4xia#Espiral",
		}))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"current_password": user.ErrWrongPassword.Error()}),
		}, rec)
	})

	t.Run("New password", func(t *testing.T) {
		rec := env.do(http.MethodPut, "/v1/users/me", token, marchallObj(t, user.UpdateProfile{
			CurrentPassword: testutil.Password,
			Password:        "Gal4xia#Espiral",
			PasswordConfirm: "Gal4xia#Espiral",
		}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = env.do(http.MethodPost, "/v1/users/login", "", loginBody(t, "anasouza", "Gal4xia#Espiral"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	upload := func(contentType string, content []byte) *httptest.ResponseRecorder {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Disposition": {`form-data; name="avatar"; filename="avatar"`},
			"Content-Type":        {contentType},
		})
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPut, "/v1/users/me/avatar", &body)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		env.app.ServeHTTP(rec, req)
		return rec
	}

	t.Run("Avatar", func(t *testing.T) {
		img := []byte("\x89PNG\r\n\x1a\nnot really a png")
		rec := upload("image/png", img)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, "/media/avatars/"+env.student.ID+".png", usr.Avatar)

		saved, err := os.ReadFile(filepath.Join(env.conf.Storage.LocalPath, "avatars", env.student.ID+".png"))
		require.NoError(t, err)
		assert.Equal(t, img, saved)

		// served back by the API
		rec = env.do(http.MethodGet, usr.Avatar, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Avatar type", func(t *testing.T) {
		rec := upload("text/plain", []byte("hello"))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusUnsupportedMediaType,
			wantData: marchallObj(t, httpErr{Error: avatarsvc.ErrUnsupported.Error()}),
		}, rec)
	})

	t.Run("Avatar missing", func(t *testing.T) {
		rec := env.do(http.MethodPut, "/v1/users/me/avatar", token, []byte(`{}`))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"avatar": "envie uma imagem no campo avatar"}),
		}, rec)
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	env := setup(t)
	success := marchallObj(t, echoapi.SuccessResponse{
		Success: "Se o e-mail informado pertencer a uma conta ativa, você receberá em instantes " +
			"uma mensagem com as instruções para redefinir sua senha.",
	})

	// unknown addresses get the same answer
	rec := env.do(http.MethodPost, "/v1/users/password-reset", "", []byte(`{"email":"nobody@sq.test"}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: success}, rec)
	_, sent := emailsvc.LastSentMessage()
	assert.False(t, sent)

	rec = env.do(http.MethodPost, "/v1/users/password-reset", "", []byte(`{"email":"MARTA@sq.test"}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: success}, rec)
	msg, sent := emailsvc.LastSentMessage()
	require.True(t, sent)
	assert.Equal(t, "password_reset", msg.TemplateName)
	data, ok := msg.TemplateData.(map[string]interface{})
	require.True(t, ok)

	confirm := marchallObj(t, user.ResetUserPassword{
		UID:             data["UID"].(string),
		Token:           data["Token"].(string),
		Password:        "Gal4xia#Espiral",
		PasswordConfirm: "Gal4xia#Espiral",
	})
	rec = env.do(http.MethodPost, "/v1/users/password-reset-confirm", "", confirm)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Sua senha foi redefinida."}),
	}, rec)

	rec = env.do(http.MethodPost, "/v1/users/login", "", loginBody(t, "marta@sq.test", "Gal4xia#Espiral"))
	assert.Equal(t, http.StatusOK, rec.Code)

	// tokens are single-use
	rec = env.do(http.MethodPost, "/v1/users/password-reset-confirm", "", confirm)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
