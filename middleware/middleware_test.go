package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"yardtrack/models"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func issue(t *testing.T, m *JWTManager, role string) string {
	t.Helper()
	tok, err := m.Issue(&models.AppUser{ID: "u-1", Name: "Meera", Role: role})
	require.NoError(t, err)
	return tok.AccessToken
}

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	tok, err := m.Issue(&models.AppUser{ID: "u-1", Name: "Meera", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), tok.ExpiresIn)

	actor, err := m.ParseAccess(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.Actor{ID: "u-1", Name: "Meera", Role: models.RoleAdmin}, actor)

	_, err = NewJWTManager("other", time.Hour).ParseAccess(tok.AccessToken)
	assert.Error(t, err)
}

func TestJWTExpiry(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	issued := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }
	tok := issue(t, m, models.RoleOperator)

	m.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err := m.ParseAccess(tok)
	assert.Error(t, err)
}

func TestJWTRejectsUnknownRole(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	_, err := m.ParseAccess(issue(t, m, "guest"))
	assert.Error(t, err)
}

func TestAuthenticateAndRequireRole(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	r := chi.NewRouter()
	r.Use(Authenticate(m))
	r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
		a, ok := ActorFrom(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(a.Name))
	})
	r.With(RequireRole(models.RoleAdmin)).Get("/admin", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	do := func(path, auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if auth != "" {
			req.Header.Set(HeaderAuthorization, auth)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, do("/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do("/me", "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do("/me", BearerPrefix+"garbage").Code)

	rec := do("/me", BearerPrefix+issue(t, m, models.RoleOperator))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Meera", rec.Body.String())

	assert.Equal(t, http.StatusForbidden, do("/admin", BearerPrefix+issue(t, m, models.RoleOperator)).Code)
	assert.Equal(t, http.StatusNoContent, do("/admin", BearerPrefix+issue(t, m, models.RoleAdmin)).Code)
}

func TestRequestLoggerRecordsStatusAndActor(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewJWTManager("secret", time.Hour)

	r := chi.NewRouter()
	r.Use(RequestLogger(zap.New(core)))
	r.Use(Authenticate(m))
	r.Post("/trucks", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/trucks", nil)
	req.Header.Set(HeaderAuthorization, BearerPrefix+issue(t, m, models.RoleOperator))
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/trucks", fields["path"])
	assert.Equal(t, int64(http.StatusCreated), fields["status"])
	assert.Equal(t, "u-1", fields["actor_id"])
}
