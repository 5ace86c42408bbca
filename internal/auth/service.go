package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	domainerrors "github.com/justestif/go-record-collection/internal/errors"
	"github.com/justestif/go-record-collection/internal/models"
	"github.com/justestif/go-record-collection/internal/store"
	"github.com/justestif/go-record-collection/internal/validation"
)

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Username string `json:"username" validate:"required,alphanum,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is returned after a successful register or login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Service registers and authenticates users.
type Service struct {
	users     store.UserStore
	jwt       *JWT
	validator *validation.Validator
	cost      int
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates an account service issuing tokens with j.
func NewService(users store.UserStore, j *JWT, opts ...Option) *Service {
	s := &Service{
		users:     users,
		jwt:       j,
		validator: validation.New(),
		cost:      bcrypt.DefaultCost,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "auth")
	return s
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	hash, err := HashPassword(req.Password, s.cost)
	if err != nil {
		return nil, domainerrors.Internal("internal error", err)
	}

	user, err := s.users.Create(ctx, models.User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domainerrors.Conflict("email is already registered")
		}
		return nil, domainerrors.Internal("internal error", fmt.Errorf("creating user: %w", err))
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return s.session(user)
}

// Login checks the password for email. An unknown email and a wrong
// password fail the same way.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	req.Email = normalizeEmail(req.Email)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Internal("internal error", fmt.Errorf("finding user: %w", err))
		}
		CheckPassword(dummyHash, req.Password)
		return nil, domainerrors.Unauthorized("invalid credentials")
	}

	if !CheckPassword(user.PasswordHash, req.Password) {
		s.logger.InfoContext(ctx, "login failed", "user_id", user.ID)
		return nil, domainerrors.Unauthorized("invalid credentials")
	}

	return s.session(user)
}

// Me returns the account behind an authenticated request.
func (s *Service) Me(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Unauthorized("account no longer exists")
		}
		return nil, domainerrors.Internal("internal error", fmt.Errorf("finding user: %w", err))
	}
	return user, nil
}

func (s *Service) session(user *models.User) (*Session, error) {
	token, expires, err := s.jwt.Issue(user.ID)
	if err != nil {
		return nil, domainerrors.Internal("internal error", err)
	}
	return &Session{Token: token, ExpiresAt: expires, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
