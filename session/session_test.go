package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"legalpulse/auth"
	"legalpulse/kv"
	"legalpulse/notify"
	"legalpulse/registration"
	"legalpulse/store"
)

type env struct {
	store    *store.Store
	auth     *auth.Service
	regs     *registration.Service
	recorder *notify.Recorder
	admin    store.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	st := store.New(kv.NewMemory())

	authSvc := auth.NewService(auth.NewRepository(st), "test-secret").WithBcryptCost(bcrypt.MinCost)
	admin, err := authSvc.EnsureAdmin(ctx, auth.AdminAccount{Email: "admin@legalpulse.in", Password: "admin-pass", Name: "Admin"})
	if err != nil {
		t.Fatalf("ensure admin: %v", err)
	}

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	seq := 0
	regs := registration.NewService(st, authSvc).
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("gen-%d", seq)
		}).
		WithClock(func() time.Time {
			now = now.Add(time.Second)
			return now
		})

	return &env{store: st, auth: authSvc, regs: regs, recorder: &notify.Recorder{}, admin: admin}
}

func (e *env) session() *Session {
	return New(e.store, e.regs, e.recorder)
}

func form(email string) registration.Form {
	return registration.Form{
		FirstName:       "Priya",
		LastName:        "Patel",
		Email:           email,
		Phone:           "9820012345",
		Designation:     "Senior Advocate",
		Experience:      "15",
		Specialization:  "Family Law",
		Languages:       []string{"English", "Hindi", "Marathi"},
		About:           "Family law practitioner in Mumbai focusing on mediation and custody.",
		City:            "Mumbai",
		State:           "Maharashtra",
		ConsultationFee: "2500",
		TermsAccepted:   true,
		Password:        "priya-pass",
	}
}

func TestAnonymousSubmitLogsInWithPendingProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sess := e.session()

	res, err := sess.Submit(ctx, form("priya@example.com"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Provisioned {
		t.Fatal("expected account to be provisioned")
	}
	if !sess.IsLSP() {
		t.Fatal("expected session to be signed in as lsp")
	}

	if err := sess.FetchProfile(ctx); err != nil {
		t.Fatalf("fetch profile: %v", err)
	}
	profile, ok := sess.LSPProfile()
	if !ok || profile.ID != res.Registration.ID || profile.Status != registration.StatusPending {
		t.Fatalf("expected pending profile %s, got %+v (ok=%v)", res.Registration.ID, profile, ok)
	}

	var users []store.User
	var regs []registration.Registration
	if err := e.store.View(ctx, func(tx *store.Tx) error {
		users = tx.Users()
		regs = tx.Registrations()
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(users) != 2 || len(regs) != 1 {
		t.Fatalf("expected admin plus one lsp and one registration, got %d users %d registrations", len(users), len(regs))
	}

	titles := map[string]bool{}
	for _, n := range e.recorder.All() {
		titles[n.Title] = true
	}
	if !titles["Login successful"] || !titles["Registration submitted"] {
		t.Fatalf("expected login and submit notifications, got %+v", e.recorder.All())
	}
}

func TestApprovedProfilePreferredAfterLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res, err := e.session().Submit(ctx, form("priya@example.com"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.regs.UpdateStatus(ctx, &e.admin, res.Registration.ID, registration.StatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}

	listed, err := e.regs.ListForUser(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].Status != registration.StatusApproved {
		t.Fatalf("expected one approved registration, got %+v", listed)
	}

	user, err := e.auth.VerifyCredentials(ctx, auth.LoginRequest{Email: "priya@example.com", Password: "priya-pass", UserType: auth.RoleLSP})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	sess := e.session()
	if err := sess.Login(ctx, user); err != nil {
		t.Fatalf("login: %v", err)
	}
	profile, ok := sess.LSPProfile()
	if !ok || profile.Status != registration.StatusApproved {
		t.Fatalf("expected approved profile, got %+v (ok=%v)", profile, ok)
	}
}

func TestLoginIgnoresMalformedIdentity(t *testing.T) {
	e := newEnv(t)
	sess := e.session()

	for _, u := range []store.User{
		{},
		{ID: "x", Role: store.RoleClient},
		{ID: "x", Email: "x@example.com", Role: "superuser"},
	} {
		if err := sess.Login(context.Background(), u); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if sess.IsAuthenticated() {
			t.Fatalf("expected %+v to be ignored", u)
		}
	}
	if len(e.recorder.All()) != 0 {
		t.Fatalf("expected no notifications, got %+v", e.recorder.All())
	}
}

func TestLogoutAndRestore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	sess := e.session().WithID("abc")
	if err := sess.Login(ctx, e.admin); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !sess.IsAdmin() {
		t.Fatal("expected admin flag")
	}

	restored := e.session().WithID("abc")
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	u, ok := restored.User()
	if !ok || u.ID != e.admin.ID {
		t.Fatalf("expected restored admin, got %+v (ok=%v)", u, ok)
	}
	if u.PasswordHash != "" {
		t.Fatal("expected persisted session without password hash")
	}

	other := e.session().WithID("other")
	if err := other.Restore(ctx); err != nil {
		t.Fatalf("restore other: %v", err)
	}
	if other.IsAuthenticated() {
		t.Fatal("expected separate session slot to be anonymous")
	}

	if err := sess.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("restore after logout: %v", err)
	}
	if restored.IsAuthenticated() {
		t.Fatal("expected logout to clear persisted session")
	}
	if last, _ := e.recorder.Last(); last.Title != "Logged out" {
		t.Fatalf("expected logout notification, got %+v", last)
	}
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	anon := e.session()
	fee := "3000"
	if _, changed, err := anon.UpdateProfile(ctx, registration.ProfilePatch{ConsultationFee: &fee}); err != nil || changed {
		t.Fatalf("expected anonymous update to be a no-op, got changed=%v err=%v", changed, err)
	}

	sess := e.session()
	res, err := sess.Submit(ctx, form("priya@example.com"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	updated, changed, err := sess.UpdateProfile(ctx, registration.ProfilePatch{ConsultationFee: &fee})
	if err != nil || !changed {
		t.Fatalf("update: changed=%v err=%v", changed, err)
	}
	if updated.ConsultationFee != fee || updated.ID != res.Registration.ID {
		t.Fatalf("expected fee %s on %s, got %+v", fee, res.Registration.ID, updated)
	}
	if cached, _ := sess.LSPProfile(); cached.ConsultationFee != fee {
		t.Fatalf("expected cached profile to be updated, got %+v", cached)
	}

	stored, err := e.regs.ListForUser(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 1 || stored[0].ConsultationFee != fee {
		t.Fatalf("expected persisted update without new registration, got %+v", stored)
	}

	bad := "-1"
	if _, _, err := sess.UpdateProfile(ctx, registration.ProfilePatch{ConsultationFee: &bad}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRejectedSubmissionIsNotAProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	sess := e.session()
	res, err := sess.Submit(ctx, form("priya@example.com"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, ok := sess.LSPProfile(); !ok {
		t.Fatal("expected pending profile after submit")
	}
	if _, err := e.regs.UpdateStatus(ctx, &e.admin, res.Registration.ID, registration.StatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}

	// the cached profile is stale until the update notices the rejection
	city := "Pune"
	if _, changed, err := sess.UpdateProfile(ctx, registration.ProfilePatch{City: &city}); err != nil || changed {
		t.Fatalf("expected no-op on rejected profile, got changed=%v err=%v", changed, err)
	}
	if profile, ok := sess.LSPProfile(); ok {
		t.Fatalf("expected no profile after rejection, got %+v", profile)
	}

	if err := sess.FetchProfile(ctx); err != nil {
		t.Fatalf("fetch profile: %v", err)
	}
	if _, ok := sess.LSPProfile(); ok {
		t.Fatal("expected fetch to find no profile")
	}
	stored, err := e.regs.ListForUser(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 1 || stored[0].City != "Mumbai" {
		t.Fatalf("expected rejected registration untouched, got %+v", stored)
	}
}

func TestClientWithoutRegistrationHasNoProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user, err := e.auth.Signup(ctx, auth.SignupRequest{Name: "Asha", Email: "asha@example.com", Password: "asha-pass", ConfirmPassword: "asha-pass"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	sess := e.session()
	if err := sess.Login(ctx, user); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, ok := sess.LSPProfile(); ok {
		t.Fatal("expected no lsp profile for client")
	}

	_, err = sess.Submit(ctx, form("asha@example.com"))
	if !errors.Is(err, auth.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail when provisioning with a taken email, got %v", err)
	}
	if u, _ := sess.User(); u.ID != user.ID {
		t.Fatal("expected session to stay on the client account")
	}
}
