// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"runwar/internal/budget"
	"runwar/internal/config"
	"runwar/internal/geo"
	"runwar/internal/logger"
	"runwar/internal/run"
	"runwar/internal/store"
	"runwar/internal/territory"
)

// 提交请求体：轨迹点内嵌时间戳，摄入层拆分为坐标与时间戳两个序列
type submitRequest struct {
	UserID string        `json:"userId"`
	TeamID string        `json:"teamId,omitempty"`
	Origin string        `json:"origin"`
	Mode   string        `json:"mode"`
	Points []submitPoint `json:"points"`
}

type submitPoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// 视口响应中的单格状态
type tileView struct {
	TileID        string      `json:"tileId"`
	OwnerKind     string      `json:"ownerKind,omitempty"`
	OwnerID       string      `json:"ownerId,omitempty"`
	Shield        int         `json:"shield"`
	InDispute     bool        `json:"inDispute"`
	InCooldown    bool        `json:"inCooldown"`
	CooldownUntil *time.Time  `json:"cooldownUntil,omitempty"`
	Boundary      []geo.Point `json:"boundary"`
}

// 解析提交端 IP：优先常见反向代理头，兜底 RemoteAddr
func getClientIP(r *http.Request) string {
	h := r.Header
	if x := h.Get("x-forwarded-for"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	if x := h.Get("cf-connecting-ip"); x != "" {
		return x
	}
	if x := h.Get("x-real-ip"); x != "" {
		return x
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryFloat(r *http.Request, name string) (float64, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 /api 前缀
func BuildRoutes(
	st *store.Store,
	idx *geo.Index,
	orch *run.Orchestrator,
	caps *budget.Service,
	cfg config.Game,
	cache *ViewportCache,
) *http.ServeMux {
	apiMux := http.NewServeMux()

	apiMux.HandleFunc("/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id")
			return
		}
		actor := territory.Actor{UserID: userID}
		if req.TeamID != "" {
			teamID, err := uuid.Parse(req.TeamID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_team_id")
				return
			}
			actor.TeamID = &teamID
		}
		mode := run.Mode(req.Mode)
		if mode == "" {
			mode = run.ModeCompetitive
		}
		origin := run.Origin(req.Origin)
		if origin == "" {
			origin = run.OriginWeb
		}
		points := make([]run.Point, len(req.Points))
		timestamps := make([]time.Time, len(req.Points))
		for i, p := range req.Points {
			points[i] = run.Point{Lat: p.Lat, Lng: p.Lng}
			timestamps[i] = p.Timestamp
		}
		result, err := orch.Submit(r.Context(), run.Submission{
			Actor:      actor,
			Points:     points,
			Timestamps: timestamps,
			Origin:     origin,
			Mode:       mode,
			RemoteIP:   getClientIP(r),
		})
		if err != nil {
			logger.L().Error("submit_error", "user", req.UserID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	apiMux.HandleFunc("/tiles", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		minLat, ok1 := queryFloat(r, "minLat")
		minLng, ok2 := queryFloat(r, "minLng")
		maxLat, ok3 := queryFloat(r, "maxLat")
		maxLng, ok4 := queryFloat(r, "maxLng")
		if !ok1 || !ok2 || !ok3 || !ok4 {
			writeError(w, http.StatusBadRequest, "missing_bounds")
			return
		}
		bboxKey := fmt.Sprintf("%.5f:%.5f:%.5f:%.5f:%d", minLat, minLng, maxLat, maxLng, idx.Resolution())
		if payload, ok := cache.Get(ctx, bboxKey); ok {
			w.Header().Set("content-type", "application/json; charset=utf-8")
			w.Header().Set("cache-control", "no-store")
			_, _ = w.Write([]byte(payload))
			return
		}
		tiles, err := st.Tiles().InBounds(ctx, minLat, minLng, maxLat, maxLng)
		if err != nil {
			logger.L().Error("tiles_query_error", "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		now := time.Now()
		views := make([]tileView, 0, len(tiles))
		for _, t := range tiles {
			v := tileView{
				TileID:     t.ID,
				OwnerKind:  string(t.OwnerKind),
				Shield:     t.Shield,
				InDispute:  t.IsInDispute(cfg.DisputeThreshold),
				InCooldown: t.IsInCooldown(now),
				Boundary:   idx.Boundary(t.ID),
			}
			if t.OwnerID != uuid.Nil {
				v.OwnerID = t.OwnerID.String()
			}
			if t.CooldownUntil != nil {
				v.CooldownUntil = t.CooldownUntil
			}
			views = append(views, v)
		}
		body, _ := json.Marshal(map[string]any{"tiles": views})
		cache.Set(ctx, bboxKey, string(body))
		w.Header().Set("content-type", "application/json; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write(body)
	})

	apiMux.HandleFunc("/tiles/overlay", func(w http.ResponseWriter, r *http.Request) {
		lat, ok1 := queryFloat(r, "lat")
		lng, ok2 := queryFloat(r, "lng")
		if !ok1 || !ok2 {
			writeError(w, http.StatusBadRequest, "missing_coordinates")
			return
		}
		if !cfg.GameArea.Contains(lat, lng) {
			writeError(w, http.StatusBadRequest, "outside_game_area")
			return
		}
		overlay := idx.TileOverlay(lat, lng)
		resp := map[string]any{"overlay": overlay}
		if t, err := st.Tiles().Find(r.Context(), overlay.TileID); err == nil && t != nil {
			resp["tile"] = tileView{
				TileID:        t.ID,
				OwnerKind:     string(t.OwnerKind),
				OwnerID:       ownerIDString(t),
				Shield:        t.Shield,
				InDispute:     t.IsInDispute(cfg.DisputeThreshold),
				InCooldown:    t.IsInCooldown(time.Now()),
				CooldownUntil: t.CooldownUntil,
			}
		}
		writeJSON(w, http.StatusOK, resp)
	})

	apiMux.HandleFunc("/caps", func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.URL.Query().Get("userId"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user_id")
			return
		}
		actor := territory.Actor{UserID: userID}
		if s := r.URL.Query().Get("teamId"); s != "" {
			teamID, err := uuid.Parse(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_team_id")
				return
			}
			actor.TeamID = &teamID
		}
		c, err := caps.Check(r.Context(), actor)
		if err != nil {
			logger.L().Error("caps_query_error", "user", userID.String(), "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"caps":                 c,
			"userActionsRemaining": caps.UserRemaining(c),
			"teamActionsRemaining": caps.TeamRemaining(c),
		})
	})

	apiMux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s := r.URL.Query().Get("userId"); s != "" {
			userID, err := uuid.Parse(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_user_id")
				return
			}
			sum, err := st.Stats().UserSummary(ctx, userID)
			if err != nil {
				logger.L().Error("stats_query_error", "user", s, "err", err)
				writeError(w, http.StatusInternalServerError, "internal_error")
				return
			}
			writeJSON(w, http.StatusOK, sum)
			return
		}
		if s := r.URL.Query().Get("teamId"); s != "" {
			teamID, err := uuid.Parse(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_team_id")
				return
			}
			sum, err := st.Stats().TeamSummary(ctx, teamID)
			if err != nil {
				logger.L().Error("stats_query_error", "team", s, "err", err)
				writeError(w, http.StatusInternalServerError, "internal_error")
				return
			}
			writeJSON(w, http.StatusOK, sum)
			return
		}
		// 无查询主体时返回全局汇总，今日以计日时区零点为界
		loc := time.FixedZone("game", cfg.DayBoundaryUTCOffsetHours*3600)
		local := time.Now().In(loc)
		since := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		totals, err := st.Stats().Totals(ctx, since)
		if err != nil {
			logger.L().Error("stats_query_error", "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		writeJSON(w, http.StatusOK, totals)
	})

	return apiMux
}

func ownerIDString(t *territory.Tile) string {
	if t.OwnerID == uuid.Nil {
		return ""
	}
	return t.OwnerID.String()
}
