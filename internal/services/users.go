package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/The24thDS/karen-backend/internal/apierr"
	"github.com/The24thDS/karen-backend/internal/logger"
	"github.com/The24thDS/karen-backend/internal/models"
	np "github.com/The24thDS/karen-backend/internal/neopersist"
)

const minPasswordLength = 8

// RegisterInput is the payload of a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type UserService interface {
	Create(ctx context.Context, in RegisterInput) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	// Authenticate accepts either the email or the username as login.
	Authenticate(ctx context.Context, login, password string) (*models.User, error)
}

type userService struct {
	pm    *np.PersistenceManager
	users *np.Repository[models.User]
	log   *logger.Logger
	now   clock
	newID func() string
}

func NewUserService(pm *np.PersistenceManager, log *logger.Logger) (UserService, error) {
	users, err := np.RepositoryFor[models.User](pm)
	if err != nil {
		return nil, err
	}
	return &userService{
		pm:    pm,
		users: users,
		log:   log.With("service", "UserService"),
		now:   time.Now,
		newID: newID,
	}, nil
}

func (s *userService) Create(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case username == "":
		return nil, apierr.Validation("username is required")
	case email == "":
		return nil, apierr.Validation("email is required")
	case len(in.Password) < minPasswordLength:
		return nil, apierr.Validation("password must be at least 8 characters long")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apierr.Validation("email is not valid")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apierr.Internal("could not hash password", err)
	}
	user := &models.User{
		ID:        s.newID(),
		Username:  username,
		Email:     email,
		Password:  string(hash),
		CreatedAt: nowMillis(s.now),
	}
	if _, err := s.pm.CreateEntity(ctx, user); err != nil {
		if errors.Is(err, np.ErrConflict) {
			return nil, apierr.Conflict("an account with this email or username already exists", err)
		}
		return nil, storeErr(err, "user not found")
	}
	s.log.Info("user registered", "user_id", user.ID)
	user.Password = ""
	return user, nil
}

func (s *userService) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "user not found")
	}
	user.Password = ""
	return user, nil
}

func (s *userService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apierr.Validation("login and password are required")
	}
	user, err := s.findForLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apierr.Unauthorized("invalid credentials")
	}
	user.Password = ""
	return user, nil
}

// findForLogin looks the user up by email, then by username. The returned user
// still carries the password hash.
func (s *userService) findForLogin(ctx context.Context, login string) (*models.User, error) {
	for _, prop := range []string{"email", "username"} {
		value := login
		if prop == "email" {
			value = strings.ToLower(login)
		}
		row, err := s.pm.FindOne(ctx, np.By("u", models.LabelUser, map[string]any{prop: value}))
		if errors.Is(err, np.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, storeErr(err, "user not found")
		}
		rec, ok := np.AsRecord(row)
		if !ok {
			return nil, apierr.Internal("unexpected user record", nil)
		}
		var user models.User
		if err := np.Decode(rec, &user); err != nil {
			return nil, apierr.Internal("could not read user", err)
		}
		user.Password, _ = rec["password"].(string)
		return &user, nil
	}
	return nil, nil
}
