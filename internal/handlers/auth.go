package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/The24thDS/karen-backend/internal/models"
	"github.com/The24thDS/karen-backend/internal/services"
)

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(user *models.User) (string, error)
}

type AuthHandler struct {
	users  services.UserService
	tokens TokenIssuer
}

func NewAuthHandler(users services.UserService, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bind(c, &req) {
		return
	}
	user, err := h.users.Create(c.Request.Context(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		// Login is either the email or the username.
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if !bind(c, &req) {
		return
	}
	user, err := h.users.Authenticate(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		RespondError(c, err)
		return
	}
	token, err := h.tokens.Issue(user)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"access_token": token, "user": user})
}
