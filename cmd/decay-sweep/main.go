// decay-sweep：盾值衰减的一次性批处理入口
// 背景：除进程内定时任务外，保留给外部调度器（cron / k8s CronJob）调用的形态
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"runwar/internal/config"
	"runwar/internal/geo"
	"runwar/internal/logger"
	"runwar/internal/migrate"
	"runwar/internal/notify"
	"runwar/internal/store"
	"runwar/internal/territory"
	"runwar/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()

	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	st := store.AttachDB(db)

	cfg := config.LoadOrDefaults()
	idx := geo.New(cfg.Resolution, cfg.TargetRadiusMeters)
	engine := territory.NewEngine(cfg, idx, st.Tiles(), st.Actions(), st.Stats(), notify.NewLogSink())

	n, err := engine.DecaySweep(context.Background())
	if err != nil {
		l.Error("decay_sweep_error", "err", err)
		os.Exit(1)
	}
	l.Info("decay_sweep_finished", "decayed", n)
}
