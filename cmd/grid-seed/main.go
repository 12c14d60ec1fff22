// grid-seed：预生成可玩区域内的全部中立格子
// 背景：视口查询只返回库内存在的格子；预灌一遍让前端首屏就能画出完整网格。
// 约束：只插入不存在的行，可重复执行
package main

import (
	"os"

	"github.com/joho/godotenv"

	"runwar/internal/config"
	"runwar/internal/geo"
	"runwar/internal/logger"
	"runwar/internal/migrate"
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

	cfg := config.LoadOrDefaults()
	idx := geo.New(cfg.Resolution, cfg.TargetRadiusMeters)
	b := cfg.GameArea
	ids := idx.TilesInBounds(b.MinLat, b.MinLng, b.MaxLat, b.MaxLng)
	l.Info("grid_seed_begin", "resolution", idx.Resolution(), "tiles", len(ids))

	inserted := 0
	for _, id := range ids {
		center := idx.Center(id)
		res, err := db.Exec(`INSERT INTO tiles(id, center_lat, center_lng) VALUES($1,$2,$3)
            ON CONFLICT (id) DO NOTHING`, id, center.Lat, center.Lng)
		if err != nil {
			l.Error("grid_seed_insert_error", "tile", id, "err", err)
			os.Exit(1)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	l.Info("grid_seed_done", "tiles", len(ids), "inserted", inserted)
}
