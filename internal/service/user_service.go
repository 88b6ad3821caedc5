package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"timer-tracker/internal/domain"
	"timer-tracker/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = fmt.Errorf("invalid username or password: %w", domain.ErrAuthentication)
	// ErrUserAlreadyExists is returned when attempting to register with an existing username.
	ErrUserAlreadyExists = fmt.Errorf("user already exists: %w", domain.ErrConflict)
)

const minUsernameLength = 3

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type userService struct {
	users repository.UserRepository
	cost  int
}

// NewUserService hashes passwords with the given bcrypt cost; cost <= 0 uses bcrypt.DefaultCost.
func NewUserService(users repository.UserRepository, cost int) UserService {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &userService{
		users: users,
		cost:  cost,
	}
}

func (s *userService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)

	if username == "" || password == "" {
		return nil, domain.NewValidationError("credentials_required", "Username and password are required")
	}
	if len(username) < minUsernameLength {
		return nil, domain.NewValidationError("username_too_short", "Username must be at least 3 characters long")
	}
	if !usernamePattern.MatchString(username) {
		return nil, domain.NewValidationError("username_invalid", "Username can only contain letters, numbers and underscores")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.NewValidationError("credentials_required", "Username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	}
}
