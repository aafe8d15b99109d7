package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/The24thDS/karen-backend/internal/apierr"
	"github.com/The24thDS/karen-backend/internal/models"
	"github.com/The24thDS/karen-backend/internal/services"
)

type fakeUsers struct {
	services.UserService
	registered services.RegisterInput
}

func (f *fakeUsers) Create(_ context.Context, in services.RegisterInput) (*models.User, error) {
	f.registered = in
	return &models.User{ID: "u1", Username: in.Username, Email: in.Email}, nil
}

func (f *fakeUsers) Authenticate(_ context.Context, login, password string) (*models.User, error) {
	if login == "alice" && password == "correct horse" {
		return &models.User{ID: "u1", Username: "alice"}, nil
	}
	return nil, apierr.Unauthorized("invalid credentials")
}

type fakeIssuer struct{}

func (fakeIssuer) Issue(user *models.User) (string, error) { return "token-" + user.ID, nil }

func authRouter(users *fakeUsers) *gin.Engine {
	h := NewAuthHandler(users, fakeIssuer{})
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	return r
}

func TestAuthHandler_Register(t *testing.T) {
	users := &fakeUsers{}
	w := do(t, authRouter(users), http.MethodPost, "/auth/register", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "correct horse",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, services.RegisterInput{Username: "alice", Email: "alice@example.com", Password: "correct horse"}, users.registered)
	assert.NotContains(t, w.Body.String(), "correct horse")
}

func TestAuthHandler_Login(t *testing.T) {
	r := authRouter(&fakeUsers{})

	w := do(t, r, http.MethodPost, "/auth/login", map[string]string{"login": "alice", "password": "correct horse"})
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		AccessToken string      `json:"access_token"`
		User        models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "token-u1", body.AccessToken)
	assert.Equal(t, "alice", body.User.Username)

	w = do(t, r, http.MethodPost, "/auth/login", map[string]string{"login": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apierr.CodeUnauthorized, decodeError(t, w).Code)
}
