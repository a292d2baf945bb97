package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"legalpulse/auth"
	"legalpulse/registration"
	"legalpulse/store"
	"legalpulse/validation"
)

// World is the state every actor shares: the services under test and the small
// pool of emails actors compete over.
type World struct {
	Store         *store.Store
	Auth          *auth.Service
	Registrations *registration.Service
	Admin         store.User
	Emails        []string
	// Fault reports errors injected by the environment. Actors keep going when
	// it returns true.
	Fault func(error) bool
}

// Expected reports whether err is an outcome the domain produces under
// contention rather than a defect.
func (w *World) Expected(err error) bool {
	var verr *validation.Error
	switch {
	case err == nil,
		errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, registration.ErrAlreadyRegistered),
		errors.Is(err, registration.ErrInvalidTransition),
		errors.Is(err, registration.ErrNotFound),
		errors.As(err, &verr):
		return true
	case w.Fault != nil && w.Fault(err):
		return true
	default:
		return false
	}
}

// Applicant submits anonymous registrations, each provisioning a new lsp
// account, with emails drawn from the shared pool.
func Applicant(ctx context.Context, w *World, rng *rand.Rand, stop <-chan struct{}) error {
	return loop(ctx, stop, rng, 10, func() error {
		form := Form(w.pick(rng))
		_, err := w.Registrations.Submit(ctx, nil, form)
		if !w.Expected(err) {
			return fmt.Errorf("applicant submit: %w", err)
		}
		return nil
	})
}

// Client signs up client accounts that race applicants for the same emails.
func Client(ctx context.Context, w *World, rng *rand.Rand, stop <-chan struct{}) error {
	return loop(ctx, stop, rng, 15, func() error {
		_, err := w.Auth.Signup(ctx, auth.SignupRequest{
			Name:            "Stress Client",
			Email:           w.pick(rng),
			Password:        "client-password",
			ConfirmPassword: "client-password",
		})
		if !w.Expected(err) {
			return fmt.Errorf("client signup: %w", err)
		}
		return nil
	})
}

// Resubmitter submits again as an existing lsp; it only succeeds once the
// previous submission was rejected.
func Resubmitter(ctx context.Context, w *World, rng *rand.Rand, stop <-chan struct{}) error {
	return loop(ctx, stop, rng, 20, func() error {
		user, ok, err := w.randomUser(ctx, rng, store.RoleLSP)
		if err != nil || !ok {
			return w.tolerate("resubmitter pick", err)
		}
		_, err = w.Registrations.Submit(ctx, &user, Form(user.Email))
		if !w.Expected(err) {
			return fmt.Errorf("resubmitter submit: %w", err)
		}
		return nil
	})
}

// Reviewer approves or rejects random submissions as the administrator.
func Reviewer(ctx context.Context, w *World, rng *rand.Rand, stop <-chan struct{}) error {
	return loop(ctx, stop, rng, 10, func() error {
		regs, err := w.Registrations.ListAll(ctx, &w.Admin, registration.ListFilter{Status: registration.FilterAll})
		if err != nil || len(regs) == 0 {
			return w.tolerate("reviewer list", err)
		}
		target := regs[rng.Intn(len(regs))]
		to := registration.StatusApproved
		if rng.Intn(2) == 0 {
			to = registration.StatusRejected
		}
		_, err = w.Registrations.UpdateStatus(ctx, &w.Admin, target.ID, to)
		if !w.Expected(err) {
			return fmt.Errorf("reviewer decide %s: %w", target.ID, err)
		}
		return nil
	})
}

// Editor edits the profile an lsp would be shown after login.
func Editor(ctx context.Context, w *World, rng *rand.Rand, stop <-chan struct{}) error {
	return loop(ctx, stop, rng, 25, func() error {
		user, ok, err := w.randomUser(ctx, rng, store.RoleLSP)
		if err != nil || !ok {
			return w.tolerate("editor pick", err)
		}
		profile, ok, err := w.Registrations.ProfileFor(ctx, user.ID)
		if err != nil || !ok {
			return w.tolerate("editor profile", err)
		}
		city := fmt.Sprintf("City %d", rng.Intn(100))
		_, err = w.Registrations.UpdateProfile(ctx, user.ID, profile.ID, registration.ProfilePatch{City: &city})
		if !w.Expected(err) {
			return fmt.Errorf("editor update %s: %w", profile.ID, err)
		}
		return nil
	})
}

// Form returns a valid submission for email.
func Form(email string) registration.Form {
	return registration.Form{
		FirstName:       "Stress",
		LastName:        "Applicant",
		Email:           email,
		Phone:           "9876543210",
		Designation:     "Advocate",
		Experience:      "7",
		Specialization:  "Corporate Law",
		Languages:       []string{"English", "Hindi"},
		About:           "Handles contract disputes and corporate compliance matters.",
		City:            "Mumbai",
		State:           "Maharashtra",
		ConsultationFee: "1500",
		TermsAccepted:   true,
		Password:        "stress-password",
	}
}

func (w *World) pick(rng *rand.Rand) string {
	return w.Emails[rng.Intn(len(w.Emails))]
}

func (w *World) randomUser(ctx context.Context, rng *rand.Rand, role store.Role) (store.User, bool, error) {
	var matches []store.User
	err := w.Store.View(ctx, func(tx *store.Tx) error {
		for _, u := range tx.Users() {
			if u.Role == role {
				matches = append(matches, u)
			}
		}
		return nil
	})
	if err != nil || len(matches) == 0 {
		return store.User{}, false, err
	}
	return matches[rng.Intn(len(matches))], true, nil
}

func (w *World) tolerate(op string, err error) error {
	if w.Expected(err) {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// loop runs step until stop closes, sleeping a jittered pause of roughly
// pauseMillis between iterations.
func loop(ctx context.Context, stop <-chan struct{}, rng *rand.Rand, pauseMillis int, step func() error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if err := step(); err != nil {
			return err
		}
		time.Sleep(time.Duration(pauseMillis+rng.Intn(pauseMillis*2)) * time.Millisecond)
	}
}
