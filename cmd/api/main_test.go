package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"legalpulse/app"
	"legalpulse/config"
	"legalpulse/directory"
	"legalpulse/notify"
)

const (
	adminEmail    = "admin@legalpulse.in"
	adminPassword = "admin-password"
)

func newTestServer(t *testing.T) (http.Handler, *notify.Recorder) {
	t.Helper()
	cfg := config.Config{
		Store: config.StoreConfig{Driver: config.DriverMemory},
		Auth: config.AuthConfig{
			JWTSecret:     "test-secret",
			TokenTTL:      time.Hour,
			AdminEmail:    adminEmail,
			AdminPassword: adminPassword,
			AdminName:     "Admin",
			BcryptCost:    4,
			MaxAttempts:   5,
			AttemptWindow: time.Minute,
		},
		Directory: config.DirectoryConfig{CacheTTL: time.Minute},
	}
	recorder := &notify.Recorder{}
	a, err := app.Open(context.Background(), cfg, nil, recorder)
	if err != nil {
		t.Fatalf("open app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return NewServer(a, nil).Routes(), recorder
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func registrationBody(email string) map[string]any {
	return map[string]any{
		"firstName":       "Neha",
		"lastName":        "Joshi",
		"email":           email,
		"phone":           "9811122233",
		"designation":     "Advocate",
		"experience":      "6",
		"specialization":  "Consumer Law",
		"languages":       []string{"English", "Hindi"},
		"about":           "Consumer disputes and e-commerce grievances before district forums.",
		"city":            "Jaipur",
		"state":           "Rajasthan",
		"consultationFee": "1200",
		"termsAccepted":   true,
		"password":        "neha-password",
	}
}

func login(t *testing.T, h http.Handler, email, password, userType string) sessionResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": password, "userType": userType,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", email, rec.Code, rec.Body.String())
	}
	return decode[sessionResponse](t, rec)
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)
	if rec := do(t, h, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/lsps?specialization=Family+Law", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	payload := decode[listResponse[directory.Record]](t, rec)
	if payload.Total != 1 || payload.Items[0].Name != "Priya Patel" {
		t.Fatalf("expected only Priya Patel, got %+v", payload.Items)
	}

	rec = do(t, h, http.MethodGet, "/api/lsps?state=Maharashtra&verified=true&sort=rating-high", "", nil)
	payload = decode[listResponse[directory.Record]](t, rec)
	for _, r := range payload.Items {
		if r.Location.State != "Maharashtra" || !r.Verified {
			t.Fatalf("unexpected record %+v", r)
		}
	}

	if rec := do(t, h, http.MethodGet, "/api/lsps?sort=cheapest", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort, got %d", rec.Code)
	}
}

func TestHandleLSP(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/lsps/2", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[directory.Record](t, rec); got.Name != "Priya Patel" {
		t.Fatalf("expected Priya Patel, got %s", got.Name)
	}

	if rec := do(t, h, http.MethodGet, "/api/lsps/99", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/lsps/abc", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestFacetsAndSuggest(t *testing.T) {
	h, _ := newTestServer(t)

	facets := decode[directory.Facets](t, do(t, h, http.MethodGet, "/api/lsps/facets", "", nil))
	if len(facets.States) == 0 || len(facets.Specializations) == 0 {
		t.Fatalf("expected populated facets, got %+v", facets)
	}

	sugg := decode[directory.Suggestions](t, do(t, h, http.MethodGet, "/api/lsps/suggest?q=priya", "", nil))
	if len(sugg.Names) != 1 || sugg.Names[0].ID != 2 {
		t.Fatalf("expected Priya Patel suggestion, got %+v", sugg.Names)
	}
}

func TestSignupAndDuplicate(t *testing.T) {
	h, recorder := newTestServer(t)
	body := map[string]string{"name": "Asha", "email": "a@b.com", "password": "asha-password", "confirmPassword": "asha-password"}

	rec := do(t, h, http.MethodPost, "/api/auth/signup", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[sessionResponse](t, rec)
	if resp.Token == "" || resp.User == nil || resp.User.UserType != "client" {
		t.Fatalf("unexpected signup response: %+v", resp)
	}

	rec = do(t, h, http.MethodPost, "/api/auth/signup", "", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if last, _ := recorder.Last(); last.Severity != notify.SeverityDestructive {
		t.Fatalf("expected destructive notification, got %+v", last)
	}
}

func TestSignupValidation(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/api/auth/signup", "", map[string]string{"name": "A", "email": "nope", "password": "x", "confirmPassword": "y"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	resp := decode[errorResponse](t, rec)
	if _, ok := resp.Fields["email"]; !ok {
		t.Fatalf("expected email field error, got %+v", resp.Fields)
	}

	if rec := do(t, h, http.MethodPost, "/api/auth/signup", "", `{"name":`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", rec.Code)
	}
}

func TestLoginRejectsWrongType(t *testing.T) {
	h, _ := newTestServer(t)
	do(t, h, http.MethodPost, "/api/auth/signup", "", map[string]string{"name": "Asha", "email": "a@b.com", "password": "asha-password", "confirmPassword": "asha-password"})

	rec := do(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@b.com", "password": "asha-password", "userType": "lsp"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	login(t, h, "a@b.com", "asha-password", "client")
}

func TestRegistrationFlow(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/registrations", "", registrationBody("neha@example.com"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	submitted := decode[sessionResponse](t, rec)
	if submitted.Token == "" || submitted.User == nil || submitted.User.UserType != "lsp" {
		t.Fatalf("expected token for provisioned lsp, got %+v", submitted)
	}

	me := decode[sessionResponse](t, do(t, h, http.MethodGet, "/api/me", submitted.Token, nil))
	if me.LSPProfile == nil || me.LSPProfile.Status != "pending" {
		t.Fatalf("expected pending profile, got %+v", me.LSPProfile)
	}
	regID := me.LSPProfile.ID

	if rec := do(t, h, http.MethodPost, "/api/registrations", submitted.Token, registrationBody("neha@example.com")); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second active registration, got %d", rec.Code)
	}

	if rec := do(t, h, http.MethodGet, "/api/admin/registrations", submitted.Token, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for lsp on admin route, got %d", rec.Code)
	}

	admin := login(t, h, adminEmail, adminPassword, "admin")
	list := decode[listResponse[registrationResponse]](t, do(t, h, http.MethodGet, "/api/admin/registrations?status=pending&q=jaipur", admin.Token, nil))
	if list.Total != 1 || list.Items[0].ID != regID {
		t.Fatalf("expected the pending registration, got %+v", list)
	}

	rec = do(t, h, http.MethodPatch, "/api/admin/registrations/"+regID, admin.Token, map[string]string{"status": "approved"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodPatch, "/api/admin/registrations/"+regID, admin.Token, map[string]string{"status": "rejected"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for re-decision, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPatch, "/api/admin/registrations/REG-missing", admin.Token, map[string]string{"status": "approved"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	relogin := login(t, h, "neha@example.com", "neha-password", "lsp")
	if relogin.LSPProfile == nil || relogin.LSPProfile.Status != "approved" {
		t.Fatalf("expected approved profile after login, got %+v", relogin.LSPProfile)
	}

	mine := decode[listResponse[registrationResponse]](t, do(t, h, http.MethodGet, "/api/registrations/mine", relogin.Token, nil))
	if mine.Total != 1 || mine.Items[0].Status != "approved" {
		t.Fatalf("expected one approved registration, got %+v", mine)
	}
}

func TestUpdateProfile(t *testing.T) {
	h, _ := newTestServer(t)
	submitted := decode[sessionResponse](t, do(t, h, http.MethodPost, "/api/registrations", "", registrationBody("neha@example.com")))

	rec := do(t, h, http.MethodPatch, "/api/me/profile", submitted.Token, map[string]string{"city": "Udaipur"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[sessionResponse](t, rec)
	if resp.Updated == nil || !*resp.Updated || resp.LSPProfile.City != "Udaipur" {
		t.Fatalf("expected updated profile, got %+v", resp)
	}

	rec = do(t, h, http.MethodPatch, "/api/me/profile", submitted.Token, map[string]string{"about": "short"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodPatch, "/api/me/profile", submitted.Token, map[string]string{"email": "other@example.com"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-editable field, got %d", rec.Code)
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	h, _ := newTestServer(t)
	admin := login(t, h, adminEmail, adminPassword, "admin")

	if rec := do(t, h, http.MethodPost, "/api/auth/logout", admin.Token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/me", admin.Token, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h, _ := newTestServer(t)
	for _, path := range []string{"/api/me", "/api/registrations/mine", "/api/admin/registrations"} {
		if rec := do(t, h, http.MethodGet, path, "", nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
	}
	if rec := do(t, h, http.MethodGet, "/api/me", "garbage", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", rec.Code)
	}
}

func TestClassify(t *testing.T) {
	status, msg := classify(context.Canceled)
	if status != http.StatusInternalServerError || strings.Contains(msg, "canceled") {
		t.Fatalf("expected hidden 500, got %d %q", status, msg)
	}
}
