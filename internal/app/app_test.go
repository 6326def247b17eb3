package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-request-backend/internal/config"
	"event-request-backend/internal/domain"
)

const directoryYAML = `
users:
  - id: stakeholder-1
    role: stakeholder
    authority: 30
    organization_types: [LGU]
    municipality_id: gainza
  - id: c1
    role: coordinator
    authority: 70
    organization_types: [LGU]
    coverage_areas:
      - id: area-1
        units: [{id: gainza, kind: municipality}]
`

func newMemoryApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "directory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(directoryYAML), 0o600))

	cfg, err := config.Parse([]byte(`
server: {http_port: 8080}
storage: {requests: memory, directory_file: ` + path + `}
jwt: {secret: "0123456789abcdef0123456789abcdef"}
`))
	require.NoError(t, err)

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestNew_MemoryStack(t *testing.T) {
	a := newMemoryApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.Start(ctx)

	req, err := a.Engine.CreateRequest(ctx, "stakeholder-1", domain.EventDraft{
		Title:     "Blood drive",
		StartDate: time.Date(2026, 11, 14, 8, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 11, 14, 12, 0, 0, 0, time.UTC),
	}, domain.LocationRefs{}, "")
	require.NoError(t, err)
	require.Len(t, req.ValidCoordinators, 1)

	res, err := a.Engine.Claim(ctx, req.ID, "c1")
	require.NoError(t, err)
	assert.True(t, res.Claimed())

	// in-app notifications arrive through the async queue
	assert.Eventually(t, func() bool {
		notes, _, err := a.NotificationS.GetNotifications(ctx, "stakeholder-1", 1, 20)
		return err == nil && len(notes) > 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.NotPanics(t, a.Jobs().RunAll)
}

func TestRouter_ServesMetrics(t *testing.T) {
	a := newMemoryApp(t)
	router := a.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event_requests_actions_fallback_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNew_BadDirectoryFile(t *testing.T) {
	cfg, err := config.Parse([]byte(`
server: {http_port: 8080}
storage: {requests: memory, directory_file: /nonexistent/directory.yaml}
jwt: {secret: "0123456789abcdef0123456789abcdef"}
`))
	require.NoError(t, err)

	_, err = New(context.Background(), cfg)
	assert.ErrorContains(t, err, "directory file")
}
