// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"runwar/internal/api"
	"runwar/internal/budget"
	"runwar/internal/config"
	"runwar/internal/fraud"
	"runwar/internal/geo"
	"runwar/internal/logger"
	"runwar/internal/loop"
	"runwar/internal/metrics"
	"runwar/internal/middleware"
	"runwar/internal/migrate"
	"runwar/internal/notify"
	"runwar/internal/run"
	"runwar/internal/store"
	"runwar/internal/territory"
	"runwar/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok")
	apiBase := os.Getenv("API_BASE")
	if apiBase == "" {
		apiBase = "/api"
	}
	l.Debug("config_api_base", "base", apiBase)

	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	l.Info("db_open_ok")
	if err := db.Ping(); err != nil {
		l.Error("db_ping_error", "err", err)
	} else {
		l.Info("db_ping_ok")
	}
	st := store.AttachDB(db)
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		if err := rc.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}

	cfg := config.LoadOrDefaults()
	if err := cfg.Validate(); err != nil {
		l.Error("game_config_invalid", "err", err)
		os.Exit(1)
	}
	idx := geo.New(cfg.Resolution, cfg.TargetRadiusMeters)
	l.Info("grid_ready", "resolution", idx.Resolution())

	detector := fraud.New(cfg.MaxSpeedKmh, cfg.MaxSpeedDurationSeconds)
	validator := loop.New(idx, detector, cfg)
	engine := territory.NewEngine(cfg, idx, st.Tiles(), st.Actions(), st.Stats(), notify.NewLogSink())
	caps := budget.New(st.Actions(), cfg)

	// IP 来源合理性检查：mmdb 缺失或阈值为 0 时整体关闭
	origin := fraud.NewOriginChecker(os.Getenv("GEOIP_MMDB_PATH"), cfg.OriginMismatchKm)
	if origin == nil {
		l.Info("origin_check_disabled")
	} else {
		defer origin.Close()
		l.Info("origin_check_ready")
	}

	cache := api.NewViewportCache(rc, cfg.ViewportCacheTTLSeconds)
	orch := run.NewOrchestrator(validator, engine, caps, st.Runs(), st.Telemetry(), origin, cache)

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(st, idx, orch, caps, cfg, cache)
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())

	// 盾值衰减后台任务：进程内定时扫描，间隔可配
	go func() {
		interval := 60
		if s := os.Getenv("DECAY_SWEEP_INTERVAL_MINUTES"); s != "" {
			if n, e := strconv.Atoi(s); e == nil && n > 0 {
				interval = n
			}
		}
		ticker := time.NewTicker(time.Duration(interval) * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			n, err := engine.DecaySweep(context.Background())
			if err != nil {
				l.Error("decay_sweep_error", "err", err)
				continue
			}
			metrics.DecayedTilesTotal.Add(float64(n))
			if n > 0 {
				cache.InvalidateViewport(context.Background())
			}
		}
	}()

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler}
	l.Info("listening", "addr", addr)
	if err := s.ListenAndServe(); err != nil {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
}
