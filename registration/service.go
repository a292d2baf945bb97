package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"legalpulse/auth"
	"legalpulse/store"
	"legalpulse/validation"
)

var (
	// ErrAlreadyRegistered signals a submission while a pending or approved one exists.
	ErrAlreadyRegistered = errors.New("registration: user already has an active registration")
	// ErrNotFound signals an unknown registration id.
	ErrNotFound = errors.New("registration: not found")
)

var tracer = otel.Tracer("legalpulse/registration")

// PasswordHasher hashes the password of auto-provisioned accounts.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

// Service owns the registration lifecycle.
type Service struct {
	store       *store.Store
	hasher      PasswordHasher
	idGenerator func() string
	now         func() time.Time
	policy      Policy
	logger      *slog.Logger
}

func NewService(st *store.Store, hasher PasswordHasher) *Service {
	return &Service{
		store:       st,
		hasher:      hasher,
		idGenerator: uuid.NewString,
		now:         time.Now,
		policy:      PolicyTerminal,
		logger:      slog.Default(),
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithPolicy(p Policy) *Service {
	s.policy = p
	return s
}

func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.logger = logger
	return s
}

// Submit records a pending registration for actor. When actor is nil or is
// neither lsp nor admin, a new lsp account is provisioned from the form first.
// Nothing is persisted unless every check passes.
func (s *Service) Submit(ctx context.Context, actor *store.User, form Form) (SubmitResult, error) {
	ctx, span := tracer.Start(ctx, "registration.Submit")
	defer span.End()

	form = form.Normalize()
	if err := validation.Struct(form); err != nil {
		return SubmitResult{}, err
	}

	provision := actor == nil || (actor.Role != store.RoleLSP && actor.Role != store.RoleAdmin)
	var hash string
	if provision {
		if form.Password == "" {
			return SubmitResult{}, validation.FieldError("password", "is required")
		}
		var err error
		if hash, err = s.hasher.HashPassword(form.Password); err != nil {
			return SubmitResult{}, err
		}
	}
	span.SetAttributes(attribute.Bool("provision", provision))

	var result SubmitResult
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		now := s.now().UTC()

		var owner store.User
		if provision {
			owner = store.User{
				ID:           s.idGenerator(),
				Name:         form.FirstName + " " + form.LastName,
				Email:        auth.NormalizeEmail(form.Email),
				PasswordHash: hash,
				Role:         store.RoleLSP,
				CreatedAt:    now,
			}
			if err := auth.InsertUser(tx, owner); err != nil {
				return err
			}
		} else {
			var ok bool
			if owner, ok = tx.UserByID(actor.ID); !ok {
				return auth.ErrNotAuthenticated
			}
		}

		for _, existing := range tx.RegistrationsForUser(owner.ID) {
			if existing.Status.Active() {
				return ErrAlreadyRegistered
			}
		}

		reg := Registration{
			ID:              "REG-" + s.idGenerator(),
			UserID:          owner.ID,
			FirstName:       form.FirstName,
			LastName:        form.LastName,
			Email:           auth.NormalizeEmail(form.Email),
			Phone:           form.Phone,
			Designation:     form.Designation,
			Experience:      form.Experience,
			Specialization:  form.Specialization,
			Languages:       form.Languages,
			About:           form.About,
			City:            form.City,
			State:           form.State,
			ConsultationFee: form.ConsultationFee,
			Status:          StatusPending,
			CreatedAt:       now,
		}
		if err := tx.InsertRegistration(reg); err != nil {
			return fmt.Errorf("registration: insert: %w", err)
		}

		result = SubmitResult{Registration: reg, User: owner.Public(), Provisioned: provision}
		return nil
	})
	if err != nil {
		return SubmitResult{}, err
	}

	s.logger.InfoContext(ctx, "registration submitted",
		"registration_id", result.Registration.ID,
		"user_id", result.User.ID,
		"provisioned", result.Provisioned,
	)
	return result, nil
}

// UpdateStatus applies an administrator decision to a submission.
func (s *Service) UpdateStatus(ctx context.Context, actor *store.User, id string, to Status) (Registration, error) {
	ctx, span := tracer.Start(ctx, "registration.UpdateStatus")
	defer span.End()

	if err := auth.RequireAdmin(actor); err != nil {
		return Registration{}, err
	}
	if to != StatusApproved && to != StatusRejected {
		return Registration{}, validation.FieldError("status", "must be one of approved, rejected")
	}

	var updated Registration
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		reg, ok := tx.RegistrationByID(id)
		if !ok {
			return ErrNotFound
		}
		current, err := StateOf(reg)
		if err != nil {
			return err
		}
		next, err := Decide(current, to, s.policy)
		if err != nil {
			return err
		}
		updated = next.Registration()
		if next.Status() == current.Status() {
			return nil
		}

		// reinstating a rejected submission must not create a second active one
		if next.Status() == StatusApproved && current.Status() == StatusRejected {
			for _, other := range tx.RegistrationsForUser(reg.UserID) {
				if other.ID != reg.ID && other.Status.Active() {
					return ErrAlreadyRegistered
				}
			}
		}
		return tx.ReplaceRegistration(updated)
	})
	if err != nil {
		return Registration{}, err
	}

	s.logger.InfoContext(ctx, "registration decided",
		"registration_id", id,
		"status", updated.Status,
		"admin_id", actor.ID,
	)
	return updated, nil
}

// ListForUser returns the user's submissions in insertion order.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Registration, error) {
	var out []Registration
	err := s.store.View(ctx, func(tx *store.Tx) error {
		out = tx.RegistrationsForUser(userID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListAll is the administrator view over every submission.
func (s *Service) ListAll(ctx context.Context, actor *store.User, filter ListFilter) ([]Registration, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if filter.Status == "" {
		filter.Status = FilterAll
	}

	var all []Registration
	if err := s.store.View(ctx, func(tx *store.Tx) error {
		all = tx.Registrations()
		return nil
	}); err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]Registration, 0, len(all))
	for _, reg := range all {
		if filter.Status != FilterAll && string(reg.Status) != string(filter.Status) {
			continue
		}
		if query != "" && !matchesQuery(reg, query) {
			continue
		}
		out = append(out, reg)
	}
	return out, nil
}

func matchesQuery(reg Registration, query string) bool {
	for _, field := range []string{reg.FirstName, reg.LastName, reg.Email, reg.Specialization, reg.City, reg.State} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}
