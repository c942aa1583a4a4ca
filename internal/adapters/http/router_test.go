package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Classroom/internal/adapters/signal"
	"github.com/dkeye/Classroom/internal/app/orch"
	"github.com/dkeye/Classroom/internal/config"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close() {}

func newTestRouter(t *testing.T) (*gin.Engine, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	o := (&orch.Orchestrator{GraceWindow: time.Hour}).Bind()
	t.Cleanup(o.Shutdown)
	cfg := &config.Config{Mode: "test", Secret: "test-secret", InternalToken: "s3cret"}
	ctrl := signal.NewSignalWSController(o, signal.DefaultOptions())
	return SetupRouter(context.Background(), cfg, o, ctrl, prometheus.NewRegistry()), o
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDeactivateRoom(t *testing.T) {
	r, o := newTestRouter(t)
	o.Registry.BindSignal("c1", nopConn{}, nil)
	o.AnnouncePresence("c1", "R1", "u1", "", domain.RoleStudent)

	tests := []struct {
		name   string
		path   string
		auth   string
		status int
	}{
		{"missing token", "/api/rooms/R1/deactivate", "", http.StatusUnauthorized},
		{"wrong token", "/api/rooms/R1/deactivate", "Bearer nope", http.StatusUnauthorized},
		{"room id too long", "/api/rooms/" + strings.Repeat("r", domain.MaxRoomIDLen+1) + "/deactivate", "Bearer s3cret", http.StatusBadRequest},
		{"ok", "/api/rooms/R1/deactivate", "Bearer s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	assert.Equal(t, 0, o.Registry.Count())
}

func TestDeactivateRoomResponse(t *testing.T) {
	r, o := newTestRouter(t)
	for _, u := range []domain.UserID{"u1", "u2"} {
		conn := core.ConnID("c-" + string(u))
		o.Registry.BindSignal(conn, nopConn{}, nil)
		o.AnnouncePresence(conn, "R7", u, "", domain.RoleStudent)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/rooms/R7/deactivate", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		RoomID string `json:"roomId"`
		Purged int    `json:"purged"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "R7", body.RoomID)
	assert.Equal(t, 2, body.Purged)
}

func TestInternalAuthOpenWithoutToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/hook", InternalAuth(""), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/hook", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
