package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/skolar/core/user"
	"github.com/trezcool/skolar/tests"
)

func Test_jwtMiddleware(t *testing.T) {
	stack.Reset()
	usr := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)

	wrongSecret, err := GenerateToken(GetUserClaims(usr, stack.Conf, time.Hour), "not-the-secret")
	require.NoError(t, err)
	expired, err := GenerateToken(GetUserClaims(usr, stack.Conf, -time.Minute), stack.Conf.SecretKey)
	require.NoError(t, err)

	wrongAudClaims := GetUserClaims(usr, stack.Conf, time.Hour)
	wrongAudClaims.Audience = []string{"someone-else"}
	wrongAud, err := GenerateToken(wrongAudClaims, stack.Conf.SecretKey)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "no token", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, missingTokenErr)},
		{name: "garbage", path: "/v1/users/me", token: "lol", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, invalidTokenErr)},
		{name: "wrong secret", path: "/v1/users/me", token: wrongSecret, wantCode: http.StatusUnauthorized, wantData: marshallObj(t, invalidTokenErr)},
		{name: "expired", path: "/v1/users/me", token: expired, wantCode: http.StatusUnauthorized, wantData: marshallObj(t, invalidTokenErr)},
		{name: "wrong audience", path: "/v1/users/me", token: wrongAud, wantCode: http.StatusUnauthorized, wantData: marshallObj(t, invalidTokenErr)},
		{name: "valid", path: "/v1/users/me", token: getToken(t, usr), wantCode: http.StatusOK, wantData: marshallObj(t, usr)},
	}
	runHTTPTests(t, tests)
}

func Test_userApi_provisioning(t *testing.T) {
	stack.Reset()

	t.Run("first request creates a student", func(t *testing.T) {
		newcomer := user.User{ID: uuid.New().String(), FirstName: "Bea", LastName: "Kalala", Email: "BEA@test.cd", Role: user.RoleAdmin}
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", getToken(t, newcomer))
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got user.User
		unmarshall(t, rec, &got)
		assert.Equal(t, newcomer.ID, got.ID)
		assert.Equal(t, "bea@test.cd", got.Email)
		assert.Equal(t, "Bea", got.FirstName)
		assert.Equal(t, "Kalala", got.LastName)
		assert.Equal(t, user.RoleStudent, got.Role, "the role never comes from the token")

		stored, err := stack.UserSvc.GetByID(context.Background(), newcomer.ID)
		require.NoError(t, err)
		assert.Equal(t, got.Email, stored.Email)
	})

	t.Run("first name defaults to the email local part", func(t *testing.T) {
		newcomer := user.User{ID: uuid.New().String(), Email: "chris@test.cd"}
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", getToken(t, newcomer))
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got user.User
		unmarshall(t, rec, &got)
		assert.Equal(t, "chris", got.FirstName)
	})

	t.Run("token without email", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", getToken(t, user.User{ID: uuid.New().String()}))
		serve(req, rec)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func Test_userApi_update(t *testing.T) {
	stack.Reset()
	usr := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)
	token := getToken(t, usr)

	t.Run("blank first name", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/me", token, []byte(`{"first_name": "  "}`))
		serve(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		ok, err := jsonBytesEqual(rec.Body.Bytes(), []byte(`{"first_name": "this field cannot be blank"}`))
		require.NoError(t, err)
		assert.True(t, ok, rec.Body.String())
	})

	t.Run("partial update", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/me", token, []byte(`{"last_name": " Mbuyi "}`))
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got user.User
		unmarshall(t, rec, &got)
		assert.Equal(t, "Ann", got.FirstName)
		assert.Equal(t, "Mbuyi", got.LastName)
	})
}

func Test_userApi_setProfileImage(t *testing.T) {
	stack.Reset()
	usr := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)
	token := getToken(t, usr)

	t.Run("no file", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPut, "/v1/users/me/profile-image", token, nil, "", "", nil)
		serve(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		ok, err := jsonBytesEqual(rec.Body.Bytes(), []byte(`{"image": "no file provided"}`))
		require.NoError(t, err)
		assert.True(t, ok, rec.Body.String())
	})

	t.Run("uploaded", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPut, "/v1/users/me/profile-image", token, nil, "image", "me.png", []byte("png"))
		serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got user.User
		unmarshall(t, rec, &got)
		assert.NotEmpty(t, got.ProfileImage)
	})
}

func Test_userApi_retrievePublic(t *testing.T) {
	stack.Reset()
	student := testutil.CreateUser(t, stack.UserRepo, "Ann", "ann@test.cd", user.RoleStudent)
	teacher := testutil.CreateUser(t, stack.UserRepo, "Teach", "teach@test.cd", user.RoleInstructor)
	token := getToken(t, student)

	tests := []httpTest{
		{
			name: "found", path: "/v1/users/" + teacher.ID, token: token, wantCode: http.StatusOK,
			wantData: marshallObj(t, PublicUser{ID: teacher.ID, FirstName: "Teach", Role: user.RoleInstructor}),
		},
		{
			name: "not found", path: "/v1/users/" + uuid.New().String(), token: token, wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: "user not found"}),
		},
	}
	runHTTPTests(t, tests)
}
