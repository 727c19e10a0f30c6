package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinic-scheduling/internal/identity"
	"github.com/clinicdesk/clinic-scheduling/internal/scheduling"
)

type fakeVerifier struct {
	claims *identity.Claims
	err    error
}

func (f *fakeVerifier) VerifyToken(token string) (*identity.Claims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

func claimsFor(userID uuid.UUID, role identity.Role) *identity.Claims {
	return &identity.Claims{
		Email: "user@example.com",
		Role:  string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: userID.String(),
		},
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})

	rec := httptest.NewRecorder()
	RequestIDMiddleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	// caller-provided ids pass through
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	RequestIDMiddleware(next).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "req-123", seen)
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	verifier := &fakeVerifier{claims: claimsFor(userID, identity.RolePatient)}

	var principal Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ = GetPrincipal(r.Context())
	})
	handler := AuthMiddleware(verifier)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, principal.UserID)
	assert.Equal(t, identity.RolePatient, principal.Role)
}

func TestAuthMiddlewareRejects(t *testing.T) {
	verifier := &fakeVerifier{claims: claimsFor(uuid.New(), identity.RolePatient)}
	handler := AuthMiddleware(verifier)(okHandler())

	// missing header
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// wrong scheme
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// verifier failure
	bad := AuthMiddleware(&fakeVerifier{err: identity.ErrInvalidToken})(okHandler())
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer expired")
	rec = httptest.NewRecorder()
	bad.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "invalid_token", body.Error)
}

func TestRequireRole(t *testing.T) {
	userID := uuid.New()

	serve := func(role identity.Role, allowed ...identity.Role) *httptest.ResponseRecorder {
		verifier := &fakeVerifier{claims: claimsFor(userID, role)}
		handler := AuthMiddleware(verifier)(RequireRole(allowed...)(okHandler()))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, serve(identity.RoleAdmin, identity.RoleAdmin).Code)
	assert.Equal(t, http.StatusOK, serve(identity.RoleDoctor, identity.RoleDoctor, identity.RoleAdmin).Code)
	assert.Equal(t, http.StatusForbidden, serve(identity.RolePatient, identity.RoleAdmin).Code)

	// RequireRole without AuthMiddleware in front rejects outright
	rec := httptest.NewRecorder()
	RequireRole(identity.RoleAdmin)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSchedulingErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{scheduling.ErrSlotNotFound, http.StatusNotFound, "slot_not_found"},
		{scheduling.ErrVisitNotFound, http.StatusNotFound, "visit_not_found"},
		{scheduling.ErrInvalidInterval, http.StatusBadRequest, "invalid_interval"},
		{scheduling.ErrSlotInPast, http.StatusUnprocessableEntity, "slot_in_past"},
		{scheduling.ErrSlotOverlap, http.StatusConflict, "slot_overlap"},
		{scheduling.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
		{scheduling.ErrSlotBeingBooked, http.StatusConflict, "slot_being_booked"},
		{scheduling.ErrDoctorBusy, http.StatusConflict, "practitioner_busy"},
		{&scheduling.InvalidTransitionError{From: scheduling.VisitCompleted, To: scheduling.VisitCancelled},
			http.StatusConflict, "invalid_status_transition"},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handleSchedulingError(rec, tc.err)

		assert.Equal(t, tc.status, rec.Code, tc.err.Error())

		var body ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, tc.code, body.Error, tc.err.Error())
	}
}

func TestTransitionErrorNamesBothStatuses(t *testing.T) {
	rec := httptest.NewRecorder()
	handleSchedulingError(rec, &scheduling.InvalidTransitionError{
		From: scheduling.VisitPending,
		To:   scheduling.VisitCompleted,
	})

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body.Details, "pending")
	assert.Contains(t, body.Details, "completed")
}
