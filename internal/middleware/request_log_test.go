package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dealdesk/dealdesk-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestRequestLogger_HandlesErrors(t *testing.T) {
	buf := captureLog(t)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/missing", nil), rec)

	err := RequestLogger()(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not here")
	})(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, float64(404), line["status"])
	assert.NotContains(t, line, "workspace_id")
}

func TestRequestLogger_IncludesActor(t *testing.T) {
	buf := captureLog(t)
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/deals", nil), httptest.NewRecorder())
	actor := &domain.ActorContext{UserID: uuid.New(), WorkspaceID: 9, Role: domain.RoleMember}

	err := RequestLogger()(func(c echo.Context) error {
		WithActor(c, actor)
		return c.NoContent(http.StatusOK)
	})(c)

	require.NoError(t, err)
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, float64(9), line["workspace_id"])
	assert.Equal(t, actor.UserID.String(), line["user_id"])
}
