package registration

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"legalpulse/auth"
	"legalpulse/kv"
	"legalpulse/store"
	"legalpulse/validation"
)

type plainHasher struct{}

func (plainHasher) HashPassword(password string) (string, error) {
	return "hashed:" + password, nil
}

type fixture struct {
	store *store.Store
	svc   *Service
	admin *store.User
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.New(kv.NewMemory())

	f := &fixture{store: st, now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	seq := 0
	f.svc = NewService(st, plainHasher{}).
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}).
		WithClock(func() time.Time {
			f.now = f.now.Add(time.Minute)
			return f.now
		})

	admin := store.User{ID: "admin-1", Name: "Admin", Email: "admin@legalpulse.test", Role: store.RoleAdmin}
	f.insertUser(t, admin)
	f.admin = &admin
	return f
}

func (f *fixture) insertUser(t *testing.T, u store.User) {
	t.Helper()
	if err := f.store.Update(context.Background(), func(tx *store.Tx) error {
		return tx.InsertUser(u)
	}); err != nil {
		t.Fatalf("insert user %s: %v", u.ID, err)
	}
}

func (f *fixture) all(t *testing.T) []Registration {
	t.Helper()
	var regs []Registration
	if err := f.store.View(context.Background(), func(tx *store.Tx) error {
		regs = tx.Registrations()
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	return regs
}

func validForm(email string) Form {
	return Form{
		FirstName:       "Priya",
		LastName:        "Menon",
		Email:           email,
		Phone:           "9876543210",
		Designation:     "Advocate",
		Experience:      "8",
		Specialization:  "Family Law",
		Languages:       []string{"English", "Malayalam"},
		About:           "Practising family law before the Kerala High Court for eight years.",
		City:            "Kochi",
		State:           "Kerala",
		ConsultationFee: "1500",
		TermsAccepted:   true,
		Password:        "supersafe",
	}
}

func TestSubmit_ProvisionsAnonymousApplicant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Submit(ctx, nil, validForm(" Priya@Example.com"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Provisioned {
		t.Fatal("expected a new account to be provisioned")
	}
	if res.User.Role != store.RoleLSP || res.User.Email != "priya@example.com" {
		t.Fatalf("expected lsp account for priya@example.com, got %+v", res.User)
	}
	if res.User.PasswordHash != "" {
		t.Fatal("expected returned account without credential material")
	}
	if res.Registration.Status != StatusPending || res.Registration.UserID != res.User.ID {
		t.Fatalf("expected pending registration owned by %s, got %+v", res.User.ID, res.Registration)
	}
	if !strings.HasPrefix(res.Registration.ID, "REG-") {
		t.Fatalf("expected REG- prefix, got %s", res.Registration.ID)
	}

	err = f.store.View(ctx, func(tx *store.Tx) error {
		u, ok := tx.UserByEmail("priya@example.com")
		if !ok {
			t.Fatal("expected provisioned user to be persisted")
		}
		if u.PasswordHash != "hashed:supersafe" {
			t.Fatalf("expected hashed password, got %q", u.PasswordHash)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestSubmit_ClientActorIsProvisioned(t *testing.T) {
	f := newFixture(t)
	client := store.User{ID: "client-1", Email: "client@example.com", Role: store.RoleClient}
	f.insertUser(t, client)

	res, err := f.svc.Submit(context.Background(), &client, validForm("new-lsp@example.com"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Provisioned || res.User.ID == client.ID {
		t.Fatalf("expected a fresh lsp account, got %+v", res.User)
	}
}

func TestSubmit_ProvisionRequiresPassword(t *testing.T) {
	f := newFixture(t)
	form := validForm("nopass@example.com")
	form.Password = ""

	_, err := f.svc.Submit(context.Background(), nil, form)
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := verr.Fields["password"]; !ok {
		t.Fatalf("expected password error, got %v", verr.Fields)
	}
	if got := f.all(t); len(got) != 0 {
		t.Fatalf("expected nothing persisted, got %d registrations", len(got))
	}
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)
	form := validForm("bad")
	form.About = "too short"
	form.Experience = "-2"
	form.Languages = nil
	form.TermsAccepted = false

	_, err := f.svc.Submit(context.Background(), nil, form)
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"email", "about", "experience", "languages", "termsAccepted"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("expected %s to fail, got %v", field, verr.Fields)
		}
	}
}

func TestSubmit_ValidatesTrimmedValues(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Form)
		field string
	}{
		{name: "padded about", edit: func(f *Form) { f.About = "Short bio" + strings.Repeat(" ", 25) }, field: "about"},
		{name: "padded first name", edit: func(f *Form) { f.FirstName = "  P  " }, field: "firstName"},
		{name: "padded city", edit: func(f *Form) { f.City = " K " }, field: "city"},
		{name: "blank language", edit: func(f *Form) { f.Languages = []string{"  "} }, field: "languages"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			form := validForm("priya@example.com")
			tc.edit(&form)

			_, err := f.svc.Submit(context.Background(), nil, form)
			var verr *validation.Error
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := verr.Fields[tc.field]; !ok {
				t.Fatalf("expected %s to fail, got %v", tc.field, verr.Fields)
			}
			if got := f.all(t); len(got) != 0 {
				t.Fatalf("expected nothing persisted, got %+v", got)
			}
		})
	}
}

func TestSubmit_StoresTrimmedValuesThatStayPatchable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := validForm("priya@example.com")
	form.About = "  " + form.About + "  "
	form.City = " Kochi "
	form.Languages = []string{" English ", " ", "Malayalam"}

	res, err := f.svc.Submit(ctx, nil, form)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	reg := res.Registration
	if reg.About != strings.TrimSpace(form.About) || reg.City != "Kochi" {
		t.Fatalf("expected trimmed values, got about=%q city=%q", reg.About, reg.City)
	}
	if !reflect.DeepEqual(reg.Languages, []string{"English", "Malayalam"}) {
		t.Fatalf("expected blank language dropped, got %q", reg.Languages)
	}

	phone := "9123456780"
	if _, err := f.svc.UpdateProfile(ctx, res.User.ID, reg.ID, ProfilePatch{Phone: &phone}); err != nil {
		t.Fatalf("expected stored registration to accept a phone patch, got %v", err)
	}
	if _, err := f.svc.UpdateProfile(ctx, res.User.ID, reg.ID, ProfilePatch{Languages: []string{" "}}); err == nil {
		t.Fatal("expected blank languages patch to fail")
	}
}

func TestSubmit_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.insertUser(t, store.User{ID: "taken", Email: "taken@example.com", Role: store.RoleClient})

	_, err := f.svc.Submit(context.Background(), nil, validForm("Taken@example.com"))
	if !errors.Is(err, auth.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if got := f.all(t); len(got) != 0 {
		t.Fatalf("expected nothing persisted, got %d registrations", len(got))
	}
}

func TestSubmit_AlreadyRegistered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lsp := store.User{ID: "lsp-1", Email: "lsp@example.com", Role: store.RoleLSP}
	f.insertUser(t, lsp)

	first, err := f.svc.Submit(ctx, &lsp, validForm("lsp@example.com"))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if first.Provisioned {
		t.Fatal("expected lsp actor to submit for itself")
	}
	before := f.all(t)

	_, err = f.svc.Submit(ctx, &lsp, validForm("lsp@example.com"))
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
	if after := f.all(t); !reflect.DeepEqual(before, after) {
		t.Fatalf("expected collection unchanged, got %+v", after)
	}

	// approved also blocks
	if _, err := f.svc.UpdateStatus(ctx, f.admin, first.Registration.ID, StatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.svc.Submit(ctx, &lsp, validForm("lsp@example.com")); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered after approval, got %v", err)
	}
}

func TestSubmit_AllowedAfterRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lsp := store.User{ID: "lsp-1", Email: "lsp@example.com", Role: store.RoleLSP}
	f.insertUser(t, lsp)

	first, err := f.svc.Submit(ctx, &lsp, validForm("lsp@example.com"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.admin, first.Registration.ID, StatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := f.svc.Submit(ctx, &lsp, validForm("lsp@example.com")); err != nil {
		t.Fatalf("expected resubmission after rejection, got %v", err)
	}

	regs, err := f.svc.ListForUser(ctx, lsp.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(regs) != 2 || regs[0].Status != StatusRejected || regs[1].Status != StatusPending {
		t.Fatalf("expected [rejected pending], got %+v", regs)
	}
}

func TestUpdateStatus_ChangesOnlyStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Submit(ctx, nil, validForm("priya@example.com"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, err := f.svc.UpdateStatus(ctx, f.admin, res.Registration.ID, StatusApproved)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	want := res.Registration.Clone()
	want.Status = StatusApproved
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if stored := f.all(t); !reflect.DeepEqual(stored, []Registration{want}) {
		t.Fatalf("expected stored %+v, got %+v", want, stored)
	}
}

func TestUpdateStatus_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Submit(ctx, nil, validForm("priya@example.com"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	lsp := res.User

	if _, err := f.svc.UpdateStatus(ctx, nil, res.Registration.ID, StatusApproved); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, &lsp, res.Registration.ID, StatusApproved); !errors.Is(err, auth.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.admin, "REG-missing", StatusApproved); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var verr *validation.Error
	if _, err := f.svc.UpdateStatus(ctx, f.admin, res.Registration.ID, StatusPending); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for pending target, got %v", err)
	}

	if _, err := f.svc.UpdateStatus(ctx, f.admin, res.Registration.ID, StatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.admin, res.Registration.ID, StatusApproved); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition under terminal policy, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.admin, res.Registration.ID, StatusRejected); err != nil {
		t.Fatalf("expected re-rejecting to be a no-op, got %v", err)
	}
}

func TestUpdateStatus_AllowRedecision(t *testing.T) {
	f := newFixture(t)
	f.svc.WithPolicy(PolicyAllowRedecision)
	ctx := context.Background()
	lsp := store.User{ID: "lsp-1", Email: "lsp@example.com", Role: store.RoleLSP}
	f.insertUser(t, lsp)

	first, err := f.svc.Submit(ctx, &lsp, validForm("lsp@example.com"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.admin, first.Registration.ID, StatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}
	got, err := f.svc.UpdateStatus(ctx, f.admin, first.Registration.ID, StatusApproved)
	if err != nil {
		t.Fatalf("expected redecision to succeed, got %v", err)
	}
	if got.Status != StatusApproved {
		t.Fatalf("expected approved, got %s", got.Status)
	}

	// a newer active submission blocks reinstating an older rejected one
	if _, err := f.svc.UpdateStatus(ctx, f.admin, first.Registration.ID, StatusRejected); err != nil {
		t.Fatalf("reject again: %v", err)
	}
	if _, err := f.svc.Submit(ctx, &lsp, validForm("lsp@example.com")); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.admin, first.Registration.ID, StatusApproved); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestListAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Submit(ctx, nil, validForm("priya@example.com"))
	if err != nil {
		t.Fatalf("submit a: %v", err)
	}
	form := validForm("arjun@example.com")
	form.FirstName, form.LastName, form.City, form.State = "Arjun", "Rao", "Pune", "Maharashtra"
	b, err := f.svc.Submit(ctx, nil, form)
	if err != nil {
		t.Fatalf("submit b: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.admin, b.Registration.ID, StatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}

	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{name: "zero filter lists all", filter: ListFilter{}, want: []string{a.Registration.ID, b.Registration.ID}},
		{name: "pending only", filter: ListFilter{Status: FilterPending}, want: []string{a.Registration.ID}},
		{name: "approved only", filter: ListFilter{Status: FilterApproved}, want: []string{b.Registration.ID}},
		{name: "rejected only", filter: ListFilter{Status: FilterRejected}, want: nil},
		{name: "query matches state", filter: ListFilter{Query: "maharashtra"}, want: []string{b.Registration.ID}},
		{name: "query matches email", filter: ListFilter{Query: "PRIYA@"}, want: []string{a.Registration.ID}},
		{name: "query and status", filter: ListFilter{Query: "kochi", Status: FilterApproved}, want: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.svc.ListAll(ctx, f.admin, tc.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			var ids []string
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			if !reflect.DeepEqual(ids, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, ids)
			}
		})
	}

	if _, err := f.svc.ListAll(ctx, &a.User, ListFilter{}); !errors.Is(err, auth.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for lsp, got %v", err)
	}
}

func TestSelectProfile(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	reg := func(id string, s Status, at time.Time) Registration {
		return Registration{ID: id, Status: s, CreatedAt: at}
	}

	tests := []struct {
		name string
		regs []Registration
		want string
	}{
		{name: "empty", regs: nil, want: ""},
		{name: "approved wins over newer pending", regs: []Registration{
			reg("A", StatusApproved, t0), reg("B", StatusPending, t0.Add(time.Hour)),
		}, want: "A"},
		{name: "most recent pending", regs: []Registration{
			reg("A", StatusPending, t0.Add(time.Hour)), reg("B", StatusPending, t0), reg("C", StatusRejected, t0.Add(2*time.Hour)),
		}, want: "A"},
		{name: "rejected only", regs: []Registration{
			reg("A", StatusRejected, t0), reg("B", StatusRejected, t0.Add(time.Hour)),
		}, want: ""},
		{name: "older pending beats newer rejected", regs: []Registration{
			reg("A", StatusPending, t0), reg("B", StatusRejected, t0.Add(time.Hour)),
		}, want: "A"},
		{name: "tie goes to later entry", regs: []Registration{
			reg("A", StatusPending, t0), reg("B", StatusPending, t0),
		}, want: "B"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SelectProfile(tc.regs)
			if tc.want == "" {
				if ok {
					t.Fatalf("expected no profile, got %s", got.ID)
				}
				return
			}
			if !ok || got.ID != tc.want {
				t.Fatalf("expected %s, got %s (ok=%v)", tc.want, got.ID, ok)
			}
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.Submit(ctx, nil, validForm("priya@example.com"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	city := "Thiruvananthapuram"
	got, err := f.svc.UpdateProfile(ctx, res.User.ID, res.Registration.ID, ProfilePatch{
		City:      &city,
		Languages: []string{"English"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.City != city || !reflect.DeepEqual(got.Languages, []string{"English"}) {
		t.Fatalf("expected patched fields, got %+v", got)
	}
	if got.Status != StatusPending || got.Email != res.Registration.Email || !got.CreatedAt.Equal(res.Registration.CreatedAt) {
		t.Fatalf("expected untouched identity fields, got %+v", got)
	}

	short := "x"
	var verr *validation.Error
	if _, err := f.svc.UpdateProfile(ctx, res.User.ID, res.Registration.ID, ProfilePatch{About: &short}); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.svc.UpdateProfile(ctx, "someone-else", res.Registration.ID, ProfilePatch{City: &city}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign registration, got %v", err)
	}

	stored := f.all(t)
	if len(stored) != 1 || stored[0].City != city || stored[0].About != res.Registration.About {
		t.Fatalf("expected only the valid patch persisted, got %+v", stored)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.admin, res.Registration.ID, StatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}
	other := "Kollam"
	if _, err := f.svc.UpdateProfile(ctx, res.User.ID, res.Registration.ID, ProfilePatch{City: &other}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for rejected registration, got %v", err)
	}
	if stored := f.all(t); stored[0].City != city {
		t.Fatalf("expected rejected registration untouched, got %+v", stored[0])
	}
}
