package migrate

import (
	"database/sql"

	"runwar/internal/logger"
)

// 背景：首次运行自动建表建索引，保障引擎落库与计数查询可用
// 约束：全部 IF NOT EXISTS，可重复执行；只建最小必需结构，报表类索引由运维按需追加
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tiles (
            id TEXT PRIMARY KEY,
            center_lat DOUBLE PRECISION NOT NULL,
            center_lng DOUBLE PRECISION NOT NULL,
            owner_kind TEXT NOT NULL DEFAULT '',
            owner_id UUID,
            shield INT NOT NULL DEFAULT 0,
            cooldown_until TIMESTAMPTZ,
            guardian_id UUID,
            guardian_contribution INT NOT NULL DEFAULT 0,
            last_defense_at TIMESTAMPTZ,
            last_action_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_tiles_center ON tiles(center_lat, center_lng)`,
		`CREATE INDEX IF NOT EXISTS idx_tiles_last_defense ON tiles(last_defense_at) WHERE owner_kind <> ''`,
		`CREATE TABLE IF NOT EXISTS territory_actions (
            id UUID PRIMARY KEY,
            run_id UUID,
            user_id UUID NOT NULL,
            team_id UUID,
            tile_id TEXT NOT NULL,
            action_type TEXT NOT NULL,
            shield_before INT NOT NULL,
            shield_after INT NOT NULL,
            owner_changed BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_actions_user_created ON territory_actions(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_team_created ON territory_actions(team_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_tile_created ON territory_actions(tile_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS runs (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL,
            team_id UUID,
            origin TEXT NOT NULL,
            mode TEXT NOT NULL,
            status TEXT NOT NULL,
            distance_meters DOUBLE PRECISION NOT NULL,
            duration_seconds INT NOT NULL,
            start_time TIMESTAMPTZ,
            end_time TIMESTAMPTZ,
            min_lat DOUBLE PRECISION, min_lng DOUBLE PRECISION,
            max_lat DOUBLE PRECISION, max_lng DOUBLE PRECISION,
            is_loop_valid BOOLEAN NOT NULL DEFAULT FALSE,
            closing_meters DOUBLE PRECISION NOT NULL DEFAULT 0,
            target_tile TEXT,
            action_type TEXT,
            fraud_flags TEXT[] NOT NULL DEFAULT '{}',
            quality_flags TEXT[] NOT NULL DEFAULT '{}',
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_runs_user_created ON runs(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS user_stats (
            user_id UUID PRIMARY KEY,
            conquests INT NOT NULL DEFAULT 0,
            runs BIGINT NOT NULL DEFAULT 0,
            distance_meters DOUBLE PRECISION NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS team_stats (
            team_id UUID PRIMARY KEY,
            tiles INT NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS run_telemetry_events (
            id BIGSERIAL PRIMARY KEY,
            run_id UUID NOT NULL,
            user_id UUID NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            payload JSONB NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_telemetry_created ON run_telemetry_events(created_at)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
