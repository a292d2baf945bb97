package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"legalpulse/auth"
	"legalpulse/directory"
	"legalpulse/notify"
	"legalpulse/registration"
	"legalpulse/session"
	"legalpulse/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortKey, err := directory.ParseSortKey(q.Get("sort"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	verified, _ := strconv.ParseBool(q.Get("verified"))

	records, err := s.directory.Search(r.Context(), directory.Criteria{
		Search:          q.Get("search"),
		Specializations: q["specialization"],
		States:          q["state"],
		Languages:       q["language"],
		VerifiedOnly:    verified,
		Sort:            sortKey,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[directory.Record]{Items: records, Total: len(records)})
}

func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	facets, err := s.directory.Facets(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, facets)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.directory.Suggest(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (s *Server) handleLSP(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid provider id"})
		return
	}
	record, err := s.directory.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.authService.Signup(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.notifier.Notify(r.Context(), "Account created", "Welcome to LegalPulse, "+user.Name+".", notify.SeverityDefault)
	s.startSession(w, r, user, http.StatusCreated)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.authService.VerifyCredentials(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.startSession(w, r, user, http.StatusOK)
}

// startSession signs user into a fresh server-side session and returns its token.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, user store.User, status int) {
	sid := uuid.NewString()
	sess := s.app.NewSession(sid)
	if err := sess.Login(r.Context(), user); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSessionToken(w, r, sess, sid, status)
}

func (s *Server) writeSessionToken(w http.ResponseWriter, r *http.Request, sess *session.Session, sid string, status int) {
	user, _ := sess.User()
	token, err := s.authService.Tokens().Issue(user, sid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, newSessionResponse(sess, token))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r.Context()).Logout(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := sess.FetchProfile(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess, ""))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch registration.ProfilePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	sess := sessionFrom(r.Context())
	_, changed, err := sess.UpdateProfile(r.Context(), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := newSessionResponse(sess, "")
	resp.Updated = &changed
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMyRegistrations(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxKeyUserID).(string)
	regs, err := s.registrations.ListForUser(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRegistrationList(regs))
}

// handleSubmitRegistration accepts anonymous submissions. A submission that
// provisions an account signs the session into it and returns a fresh token.
func (s *Server) handleSubmitRegistration(w http.ResponseWriter, r *http.Request) {
	var form registration.Form
	if !decodeJSON(w, r, &form) {
		return
	}

	sess := sessionFrom(r.Context())
	sid, _ := r.Context().Value(ctxKeySessionID).(string)
	if sess == nil {
		sid = uuid.NewString()
		sess = s.app.NewSession(sid)
	}

	res, err := sess.Submit(r.Context(), form)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.requestLogger(r).InfoContext(r.Context(), "registration accepted", "registration_id", res.Registration.ID)

	// the session switched to the provisioned account, so the caller needs a
	// token naming it
	if res.Provisioned {
		s.writeSessionToken(w, r, sess, sid, http.StatusCreated)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(sess, ""))
}

func (s *Server) handleAdminRegistrations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := registration.ParseStatusFilter(q.Get("status"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	regs, err := s.registrations.ListAll(r.Context(), sessionFrom(r.Context()).Actor(), registration.ListFilter{
		Query:  q.Get("q"),
		Status: status,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRegistrationList(regs))
}

func (s *Server) handleAdminDecision(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status registration.Status `json:"status"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	reg, err := s.registrations.UpdateStatus(r.Context(), sessionFrom(r.Context()).Actor(), mux.Vars(r)["id"], body.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.notifier.Notify(r.Context(), "Registration "+string(reg.Status), reg.FirstName+" "+reg.LastName+" has been "+string(reg.Status)+".", notify.SeverityDefault)
	writeJSON(w, http.StatusOK, newRegistrationResponse(reg))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + strings.TrimPrefix(err.Error(), "json: ")})
		return false
	}
	return true
}
