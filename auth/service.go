package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"legalpulse/validation"
)

var (
	// ErrInvalidCredentials signals wrong email, password or account type.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAdminConflict signals that the configured admin email belongs to a
	// non-admin account.
	ErrAdminConflict = errors.New("auth: admin email is used by a non-admin account")
)

// Service handles authentication business logic.
type Service struct {
	repo       Repository
	tokens     *Tokens
	limiter    Limiter
	bcryptCost int
	logger     *slog.Logger
}

// NewService creates a new authentication service.
func NewService(repo Repository, jwtSecret string) *Service {
	return &Service{
		repo:       repo,
		tokens:     NewTokens(jwtSecret, DefaultTokenTTL),
		bcryptCost: bcrypt.DefaultCost,
		logger:     slog.Default(),
	}
}

func (s *Service) WithTokenTTL(ttl time.Duration) *Service {
	s.tokens.ttl = ttl
	return s
}

func (s *Service) WithLimiter(l Limiter) *Service {
	s.limiter = l
	return s
}

func (s *Service) WithBcryptCost(cost int) *Service {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		s.bcryptCost = cost
	}
	return s
}

func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.logger = logger
	return s
}

// Tokens returns the bearer token issuer used by the HTTP layer.
func (s *Service) Tokens() *Tokens {
	return s.tokens
}

// HashPassword hashes a password with the service's bcrypt cost.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// Signup creates a client account.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (User, error) {
	if err := validation.Struct(req); err != nil {
		return User{}, err
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return User{}, err
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Role:         RoleClient,
	})
	if err != nil {
		return User{}, err
	}

	s.logger.InfoContext(ctx, "account created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// VerifyCredentials checks an email/password pair and the claimed account type.
// Claiming "admin" skips the type comparison; the returned account still carries
// its stored role.
func (s *Service) VerifyCredentials(ctx context.Context, req LoginRequest) (User, error) {
	if err := validation.Struct(req); err != nil {
		return User{}, err
	}
	email := NormalizeEmail(req.Email)

	if s.limiter != nil {
		if err := s.limiter.Check(ctx, email); err != nil {
			return User{}, err
		}
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if req.UserType != RoleAdmin && user.Role != req.UserType {
		return User{}, ErrInvalidCredentials
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, email); err != nil {
			s.logger.WarnContext(ctx, "reset login attempts", "error", err)
		}
	}
	return user, nil
}

// GetUserByID retrieves user information by ID.
func (s *Service) GetUserByID(ctx context.Context, userID string) (User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// EnsureAdmin creates the administrator account when it does not exist yet.
// An existing admin with the same email is left untouched.
func (s *Service) EnsureAdmin(ctx context.Context, admin AdminAccount) (User, error) {
	if err := validation.Struct(admin); err != nil {
		return User{}, err
	}

	existing, err := s.repo.GetUserByEmail(ctx, admin.Email)
	switch {
	case err == nil:
		if existing.Role != RoleAdmin {
			return User{}, ErrAdminConflict
		}
		return existing, nil
	case !errors.Is(err, ErrUserNotFound):
		return User{}, err
	}

	hash, err := s.HashPassword(admin.Password)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Email:        admin.Email,
		Name:         admin.Name,
		PasswordHash: hash,
		Role:         RoleAdmin,
	})
	if err != nil {
		return User{}, err
	}

	s.logger.InfoContext(ctx, "administrator bootstrapped", "user_id", user.ID)
	return user, nil
}
