package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cohost/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHeartbeatLister struct {
	heartbeats []models.WorkerHeartbeat
	err        error
}

func (f *fakeHeartbeatLister) ListHeartbeats(_ context.Context) ([]models.WorkerHeartbeat, error) {
	return f.heartbeats, f.err
}

func newTestContext(method, target string, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func TestHealthHandler(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/health", "")

	require.NoError(t, HealthHandler("1.0.0")(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.0.0", resp.Version)
	assert.WithinDuration(t, time.Now().UTC(), resp.Timestamp, 5*time.Second)
}

func TestDetailedHealthHandler(t *testing.T) {
	t.Run("healthy workers", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectPing()

		lister := &fakeHeartbeatLister{heartbeats: []models.WorkerHeartbeat{
			{WorkerName: "send_worker", Status: models.WorkerStatusRunning, LastHeartbeat: time.Now()},
			{WorkerName: "sync_worker", Status: models.WorkerStatusRunning, LastHeartbeat: time.Now()},
		}}

		c, rec := newTestContext(http.MethodGet, "/health/detailed", "")
		require.NoError(t, DetailedHealthHandler(db, lister)(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp models.DetailedHealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.OK)
		assert.Len(t, resp.Workers, 2)
		assert.False(t, resp.Workers["send_worker"].Stale)
	})

	t.Run("stale running worker flips ok to false", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectPing()

		lister := &fakeHeartbeatLister{heartbeats: []models.WorkerHeartbeat{
			{WorkerName: "send_worker", Status: models.WorkerStatusRunning, LastHeartbeat: time.Now().Add(-time.Hour)},
		}}

		c, rec := newTestContext(http.MethodGet, "/health/detailed", "")
		require.NoError(t, DetailedHealthHandler(db, lister)(c))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp models.DetailedHealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.OK)
		assert.True(t, resp.Workers["send_worker"].Stale)
	})

	t.Run("stale stopped worker is reported but not unhealthy", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectPing()

		lister := &fakeHeartbeatLister{heartbeats: []models.WorkerHeartbeat{
			{WorkerName: "sync_worker", Status: models.WorkerStatusStopped, LastHeartbeat: time.Now().Add(-time.Hour)},
		}}

		c, rec := newTestContext(http.MethodGet, "/health/detailed", "")
		require.NoError(t, DetailedHealthHandler(db, lister)(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("nil database", func(t *testing.T) {
		c, rec := newTestContext(http.MethodGet, "/health/detailed", "")
		require.NoError(t, DetailedHealthHandler(nil, &fakeHeartbeatLister{})(c))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
