package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"runwar/internal/territory"
)

// ActionStore：行动日志仓储。只追加不更新；计数与守护者评选均为聚合查询
type ActionStore struct {
	db *sql.DB
}

// Append：追加一条行动记录
func (s *ActionStore) Append(ctx context.Context, rec territory.ActionRecord) error {
	var runID, teamID uuid.NullUUID
	if rec.RunID != nil {
		runID = uuid.NullUUID{UUID: *rec.RunID, Valid: true}
	}
	if rec.TeamID != nil {
		teamID = uuid.NullUUID{UUID: *rec.TeamID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO territory_actions
        (id, run_id, user_id, team_id, tile_id, action_type, shield_before, shield_after, owner_changed, created_at)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rec.ID, runID, rec.UserID, teamID, rec.TileID, string(rec.Type),
		rec.ShieldBefore, rec.ShieldAfter, rec.OwnerChanged, rec.CreatedAt,
	)
	return err
}

// CountByUserSince：用户自某时刻起的行动数；额度检查即对日志的纯计数
func (s *ActionStore) CountByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM territory_actions WHERE user_id=$1 AND created_at >= $2`,
		userID, since).Scan(&n)
	return n, err
}

// CountByTeamSince：战队自某时刻起的行动数
func (s *ActionStore) CountByTeamSince(ctx context.Context, teamID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM territory_actions WHERE team_id=$1 AND created_at >= $2`,
		teamID, since).Scan(&n)
	return n, err
}

// TopContributor：窗口期内对格子进攻+防守次数最高的用户
// 约束：无记录时返回 (uuid.Nil, 0, nil)，调用方据此保持守护者不变
func (s *ActionStore) TopContributor(ctx context.Context, tileID string, since time.Time) (uuid.UUID, int, error) {
	var userID uuid.UUID
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT user_id, COUNT(*) AS cnt FROM territory_actions
        WHERE tile_id=$1 AND created_at >= $2 AND action_type IN ('attack','defense')
        GROUP BY user_id ORDER BY cnt DESC, user_id LIMIT 1`,
		tileID, since).Scan(&userID, &n)
	if err == sql.ErrNoRows {
		return uuid.Nil, 0, nil
	}
	if err != nil {
		return uuid.Nil, 0, err
	}
	return userID, n, nil
}
