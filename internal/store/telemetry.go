package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"runwar/internal/logger"
	"runwar/internal/run"
)

// TelemetryStore：遥测事件落库，整条事件序列化进 JSONB 列
// 背景：下游报表直接消费 payload，字段契约由 run.TelemetryEvent 定义
type TelemetryStore struct {
	db *sql.DB
}

// Record：落地一条遥测事件并镜像到结构化日志
func (s *TelemetryStore) Record(ctx context.Context, ev run.TelemetryEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO run_telemetry_events(run_id, user_id, created_at, payload)
        VALUES($1,$2,$3,$4)`,
		ev.RunID, ev.UserID, ev.CreatedAt, payload)
	if err != nil {
		return err
	}
	logger.L().Info("run_telemetry",
		"run", ev.RunID.String(),
		"user", ev.UserID.String(),
		"status", ev.Status,
		"loop_valid", ev.IsLoopValid,
		"distance_m", ev.LoopDistanceMeters,
		"action_type", ev.ActionType,
		"action_success", ev.ActionSuccess,
		"owner_changed", ev.OwnerChanged,
	)
	return nil
}
