package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"legalpulse/store"
)

var (
	// ErrUserNotFound signals that the user does not exist.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("auth: email already exists")
)

// Repository handles data access for authentication.
type Repository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
}

// CreateUserParams contains write parameters for creating users.
type CreateUserParams struct {
	Email        string
	Name         string
	PasswordHash string
	Role         Role
}

// StoreRepository implements Repository on the shared record store.
type StoreRepository struct {
	store       *store.Store
	idGenerator func() string
	now         func() time.Time
}

var _ Repository = (*StoreRepository)(nil)

// NewRepository creates a store-backed auth repository.
func NewRepository(st *store.Store) *StoreRepository {
	return &StoreRepository{
		store:       st,
		idGenerator: uuid.NewString,
		now:         time.Now,
	}
}

func (r *StoreRepository) WithIDGenerator(gen func() string) *StoreRepository {
	r.idGenerator = gen
	return r
}

func (r *StoreRepository) WithClock(now func() time.Time) *StoreRepository {
	r.now = now
	return r
}

// CreateUser inserts a new account.
func (r *StoreRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	user := User{
		ID:           r.idGenerator(),
		Name:         strings.TrimSpace(params.Name),
		Email:        NormalizeEmail(params.Email),
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		CreatedAt:    r.now().UTC(),
	}

	err := r.store.Update(ctx, func(tx *store.Tx) error {
		return InsertUser(tx, user)
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address.
func (r *StoreRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var (
		user  User
		found bool
	)
	err := r.store.View(ctx, func(tx *store.Tx) error {
		user, found = tx.UserByEmail(NormalizeEmail(email))
		return nil
	})
	if err != nil {
		return User{}, fmt.Errorf("auth: get user by email: %w", err)
	}
	if !found {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (r *StoreRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	var (
		user  User
		found bool
	)
	err := r.store.View(ctx, func(tx *store.Tx) error {
		user, found = tx.UserByID(userID)
		return nil
	})
	if err != nil {
		return User{}, fmt.Errorf("auth: get user by id: %w", err)
	}
	if !found {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

// InsertUser adds user inside an open unit of work. A taken email yields
// ErrDuplicateEmail.
func InsertUser(tx *store.Tx, user User) error {
	if _, taken := tx.UserByEmail(user.Email); taken {
		return ErrDuplicateEmail
	}
	if err := tx.InsertUser(user); err != nil {
		return fmt.Errorf("auth: create user: %w", err)
	}
	return nil
}

// NormalizeEmail trims and lower-cases an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
