package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"runwar/internal/config"
	"runwar/internal/geo"
	"runwar/internal/store"
)

func testMux() *http.ServeMux {
	cfg := config.Defaults()
	idx := geo.New(cfg.Resolution, cfg.TargetRadiusMeters)
	return BuildRoutes(store.AttachDB(nil), idx, nil, nil, cfg, NewViewportCache(nil, 0))
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:51234"
	require.Equal(t, "10.1.2.3", getClientIP(r))

	r.Header.Set("x-real-ip", "203.0.113.9")
	require.Equal(t, "203.0.113.9", getClientIP(r))

	r.Header.Set("x-forwarded-for", "198.51.100.7, 10.0.0.1")
	require.Equal(t, "198.51.100.7", getClientIP(r))
}

func TestSubmitRejectsBadRequests(t *testing.T) {
	mux := testMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader("{not json")))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid_json")

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(`{"userId":"nope"}`)))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid_user_id")
}

func TestTilesRequiresBounds(t *testing.T) {
	mux := testMux()
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tiles?minLat=-25.5", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "missing_bounds")
}

func TestOverlayValidatesCoordinates(t *testing.T) {
	mux := testMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tiles/overlay?lat=abc&lng=-49.28", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)

	// 可玩区域之外直接拒绝
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tiles/overlay?lat=-23.55&lng=-46.63", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "outside_game_area")
}

func TestCapsRequiresUserID(t *testing.T) {
	mux := testMux()
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/caps?userId=not-a-uuid", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid_user_id")
}

func TestStatsRejectsBadIDs(t *testing.T) {
	mux := testMux()

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats?userId=nope", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid_user_id")

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats?teamId=nope", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid_team_id")
}
