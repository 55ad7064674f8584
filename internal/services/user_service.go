package services

import (
	"strings"

	"github.com/pkg/errors"

	"short-drama-service/internal/auth"
	"short-drama-service/internal/models"
	"short-drama-service/internal/repository"
)

const minPasswordLength = 6

type UserService struct {
	store  repository.Store
	tokens *auth.TokenService
}

func NewUserService(store repository.Store, tokens *auth.TokenService) *UserService {
	return &UserService{store: store, tokens: tokens}
}

// Session is returned by Register and Login.
type Session struct {
	User  models.PublicUser `json:"user"`
	Token string            `json:"token"`
}

func (s *UserService) Register(name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, invalid("Name, email and password are required")
	}
	if len(password) < minPasswordLength {
		return nil, invalid("Password must be at least 6 characters")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	user := &models.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.store.CreateUser(user); err != nil {
		return nil, err
	}
	return s.session(user)
}

// Login checks the credentials against the stored hash.
func (s *UserService) Login(email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalid("Email and password are required")
	}

	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.session(user)
}

func (s *UserService) Me(userID string) (*models.PublicUser, error) {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	public := user.Public()
	return &public, nil
}

func (s *UserService) session(user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID, user.Email, user.Name)
	if err != nil {
		return nil, errors.Wrap(err, "issue token")
	}
	return &Session{User: user.Public(), Token: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
