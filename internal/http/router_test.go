package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servus-backend/internal/apperr"
	"servus-backend/internal/auth"
	"servus-backend/internal/config"
	"servus-backend/internal/handlers"
	"servus-backend/internal/health"
	"servus-backend/internal/middleware"
	"servus-backend/internal/models"
)

type activeUsers map[uuid.UUID]*models.User

func (s activeUsers) ActiveUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, apperr.Unauthorized("user not found")
}

type downDB struct{}

func (downDB) Ping(context.Context) error { return errors.New("connection refused") }

type testServer struct {
	router http.Handler
	jwt    *auth.JWTManager
	users  activeUsers
}

func newTestServer(t *testing.T, uploadDir string) *testServer {
	cfg := &config.Config{}
	cfg.JWT.Secret = "router-secret"
	cfg.JWT.ExpirationHours = 1
	cfg.JWT.Issuer = "servus-test"
	cfg.JWT.Audience = "servus-clients"

	jwt := auth.NewJWTManager(cfg)
	users := activeUsers{}
	h := Handlers{
		Auth:     handlers.NewAuthHandler(nil),
		Customer: handlers.NewCustomerHandler(nil, nil),
		Feedback: handlers.NewFeedbackHandler(nil),
		Health:   handlers.NewHealthHandler(health.NewHealthChecker(downDB{}, nil, "")),
	}
	opts := Options{
		UploadDir:    uploadDir,
		UploadPrefix: "/uploads",
		LoginLimiter: middleware.NewIPRateLimiter("login", 0.001, 1),
		GuestLimiter: middleware.NewIPRateLimiter("guest", 0.001, 1),
	}
	return &testServer{
		router: NewRouter(h, middleware.NewAuthMiddleware(jwt, users), opts),
		jwt:    jwt,
		users:  users,
	}
}

func (s *testServer) tokenFor(t *testing.T, role models.Role) string {
	t.Helper()
	u := &models.User{ID: uuid.New(), FullName: "Router " + string(role), Role: role}
	u.IsActive = true
	s.users[u.ID] = u
	tok, err := s.jwt.GenerateToken(u)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.RemoteAddr = "203.0.113.9:5000"
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, "")

	paths := []struct{ method, path string }{
		{"GET", "/dashboard/summary"},
		{"GET", "/jobs/admin"},
		{"POST", "/jobs"},
		{"GET", "/auth/me"},
		{"GET", "/notifications/failed"},
		{"GET", "/technicians/job-performance"},
		{"GET", "/ws/jobs"},
	}
	for _, p := range paths {
		rec := s.do(p.method, p.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t, "")

	tests := []struct {
		name   string
		role   models.Role
		method string
		path   string
	}{
		{"technician cannot read dashboard", models.RoleTechnician, "GET", "/dashboard/job-trends"},
		{"customer cannot list jobs", models.RoleCustomer, "GET", "/jobs/admin"},
		{"dispatcher cannot see the outbox", models.RoleDispatcher, "GET", "/notifications/failed"},
		{"dispatcher cannot use technician self service", models.RoleDispatcher, "POST", "/technicians/location"},
		{"technician cannot create invoices", models.RoleTechnician, "POST", "/invoices"},
		{"staff cannot submit customer feedback", models.RoleOwner, "POST", "/feedback"},
		{"technician cannot open the live feed", models.RoleTechnician, "GET", "/ws/jobs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, s.tokenFor(t, tt.role), "")
			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
	}
}

func TestPublicRatingsRouteSkipsAuth(t *testing.T) {
	s := newTestServer(t, "")

	// reaches the handler, which rejects the id itself
	rec := s.do("GET", "/technicians/not-a-uuid/ratings", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id"`)
}

func TestLoginIsRateLimited(t *testing.T) {
	s := newTestServer(t, "")

	first := s.do("POST", "/auth/login", "", "{")
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := s.do("POST", "/auth/login", "", "{")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestHealthRoutes(t *testing.T) {
	s := newTestServer(t, "")

	assert.Equal(t, http.StatusOK, s.do("GET", "/health", "", "").Code)

	ready := s.do("GET", "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, ready.Code)
	assert.Contains(t, ready.Body.String(), health.StatusUnhealthy)
}

func TestUploadsServedFromLocalStorage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "job-photos"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job-photos", "a.txt"), []byte("photo bytes"), 0o644))

	s := newTestServer(t, dir)
	rec := s.do("GET", "/uploads/job-photos/a.txt", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "photo bytes", rec.Body.String())
}
