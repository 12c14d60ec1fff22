package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"runwar/internal/logger"
	"runwar/internal/run"
)

// RunStore：跑步记录仓储
type RunStore struct {
	db *sql.DB
}

// Save：写入一条跑步记录并同步累计统计
func (s *RunStore) Save(ctx context.Context, r *run.Record) error {
	var teamID uuid.NullUUID
	if r.TeamID != nil {
		teamID = uuid.NullUUID{UUID: *r.TeamID, Valid: true}
	}
	var target, actionType sql.NullString
	if r.TargetTile != "" {
		target = sql.NullString{String: r.TargetTile, Valid: true}
	}
	if r.ActionType != "" {
		actionType = sql.NullString{String: string(r.ActionType), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs
        (id, user_id, team_id, origin, mode, status,
         distance_meters, duration_seconds, start_time, end_time,
         min_lat, min_lng, max_lat, max_lng,
         is_loop_valid, closing_meters, target_tile, action_type,
         fraud_flags, quality_flags, created_at)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		r.ID, r.UserID, teamID, string(r.Origin), string(r.Mode), string(r.Status),
		r.DistanceMeters, r.DurationSeconds, r.StartTime, r.EndTime,
		r.MinLat, r.MinLng, r.MaxLat, r.MaxLng,
		r.IsLoopValid, r.ClosingMeters, target, actionType,
		pq.Array(r.FraudFlags), pq.Array(r.QualityFlags), r.CreatedAt,
	)
	if err != nil {
		return err
	}
	// 统计为旁路，失败只记日志
	stats := &StatsStore{db: s.db}
	if err := stats.RunRecorded(ctx, r.UserID, r.DistanceMeters); err != nil {
		logger.L().Warn("run_stats_error", "run", r.ID.String(), "err", err)
	}
	return nil
}
