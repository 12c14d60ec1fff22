package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// StatsStore：用户与战队累计统计。行动成功后增量更新，失败不回滚行动
type StatsStore struct {
	db *sql.DB
}

// UserConquestDelta：用户占领计数增量（可为负，格子被夺走时回减）
func (s *StatsStore) UserConquestDelta(ctx context.Context, userID uuid.UUID, delta int) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO user_stats(user_id, conquests) VALUES($1, GREATEST($2, 0))
        ON CONFLICT (user_id) DO UPDATE SET conquests = GREATEST(user_stats.conquests + $2, 0)`,
		userID, delta)
	return err
}

// TeamTileDelta：战队持格数增量
func (s *StatsStore) TeamTileDelta(ctx context.Context, teamID uuid.UUID, delta int) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO team_stats(team_id, tiles) VALUES($1, GREATEST($2, 0))
        ON CONFLICT (team_id) DO UPDATE SET tiles = GREATEST(team_stats.tiles + $2, 0)`,
		teamID, delta)
	return err
}

// RunRecorded：跑步落库后累加用户的总场次与总里程
func (s *StatsStore) RunRecorded(ctx context.Context, userID uuid.UUID, distanceMeters float64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO user_stats(user_id, runs, distance_meters) VALUES($1, 1, $2)
        ON CONFLICT (user_id) DO UPDATE SET
            runs = user_stats.runs + 1,
            distance_meters = user_stats.distance_meters + $2`,
		userID, distanceMeters)
	return err
}

// UserSummary：单用户的累计统计
type UserSummary struct {
	UserID         uuid.UUID `json:"userId"`
	Conquests      int       `json:"conquests"`
	Runs           int64     `json:"runs"`
	DistanceMeters float64   `json:"distanceMeters"`
	TilesHeld      int       `json:"tilesHeld"`
}

// UserSummary：汇总用户统计与当前持格数
func (s *StatsStore) UserSummary(ctx context.Context, userID uuid.UUID) (UserSummary, error) {
	out := UserSummary{UserID: userID}
	err := s.db.QueryRowContext(ctx,
		`SELECT conquests, runs, distance_meters FROM user_stats WHERE user_id=$1`,
		userID).Scan(&out.Conquests, &out.Runs, &out.DistanceMeters)
	if err != nil && err != sql.ErrNoRows {
		return out, err
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tiles WHERE owner_kind='solo' AND owner_id=$1`,
		userID).Scan(&out.TilesHeld)
	return out, err
}

// TeamSummary：单战队的累计统计
type TeamSummary struct {
	TeamID    uuid.UUID `json:"teamId"`
	TilesHeld int       `json:"tilesHeld"`
}

func (s *StatsStore) TeamSummary(ctx context.Context, teamID uuid.UUID) (TeamSummary, error) {
	out := TeamSummary{TeamID: teamID}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tiles WHERE owner_kind='team' AND owner_id=$1`,
		teamID).Scan(&out.TilesHeld)
	return out, err
}

// Totals：全局汇总；since 为计日时区下的当日零点
type Totals struct {
	TotalRuns      int64 `json:"totalRuns"`
	RunsToday      int64 `json:"runsToday"`
	ActionsToday   int64 `json:"actionsToday"`
	TransfersToday int64 `json:"transfersToday"`
	ClaimedTiles   int64 `json:"claimedTiles"`
}

func (s *StatsStore) Totals(ctx context.Context, since time.Time) (Totals, error) {
	var t Totals
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&t.TotalRuns); err != nil {
		return t, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE created_at >= $1`, since).Scan(&t.RunsToday); err != nil {
		return t, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM territory_actions WHERE created_at >= $1`, since).Scan(&t.ActionsToday); err != nil {
		return t, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM territory_actions WHERE owner_changed AND created_at >= $1`, since).Scan(&t.TransfersToday); err != nil {
		return t, err
	}
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tiles WHERE owner_kind <> ''`).Scan(&t.ClaimedTiles)
	return t, err
}
