package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"runwar/internal/logger"
	"runwar/internal/territory"
)

// TileStore：格子仓储的 PostgreSQL 实现
type TileStore struct {
	db *sql.DB
}

const tileColumns = `id, center_lat, center_lng, owner_kind, owner_id, shield,
    cooldown_until, guardian_id, guardian_contribution, last_defense_at, last_action_at, created_at`

// scanTile：统一扫描一行格子；可空列经 Null 类型中转
func scanTile(row interface{ Scan(...any) error }) (*territory.Tile, error) {
	var t territory.Tile
	var ownerID, guardianID uuid.NullUUID
	var cooldown, lastDefense, lastAction sql.NullTime
	err := row.Scan(
		&t.ID, &t.CenterLat, &t.CenterLng, &t.OwnerKind, &ownerID, &t.Shield,
		&cooldown, &guardianID, &t.GuardianContribution, &lastDefense, &lastAction, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if ownerID.Valid {
		t.OwnerID = ownerID.UUID
	}
	if guardianID.Valid {
		g := guardianID.UUID
		t.GuardianID = &g
	}
	if cooldown.Valid {
		c := cooldown.Time
		t.CooldownUntil = &c
	}
	if lastDefense.Valid {
		d := lastDefense.Time
		t.LastDefenseAt = &d
	}
	if lastAction.Valid {
		a := lastAction.Time
		t.LastActionAt = &a
	}
	return &t, nil
}

// Find：按 id 查格子；未命中返回 (nil, nil)
func (s *TileStore) Find(ctx context.Context, id string) (*territory.Tile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tileColumns+` FROM tiles WHERE id=$1`, id)
	t, err := scanTile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Save：整行 upsert
// 背景：格子字段全部由状态机在锁内计算完成，落库只做覆盖写
func (s *TileStore) Save(ctx context.Context, t *territory.Tile) error {
	var ownerID, guardianID uuid.NullUUID
	if t.OwnerID != uuid.Nil {
		ownerID = uuid.NullUUID{UUID: t.OwnerID, Valid: true}
	}
	if t.GuardianID != nil {
		guardianID = uuid.NullUUID{UUID: *t.GuardianID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO tiles(`+tileColumns+`)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (id) DO UPDATE SET
            owner_kind=EXCLUDED.owner_kind, owner_id=EXCLUDED.owner_id, shield=EXCLUDED.shield,
            cooldown_until=EXCLUDED.cooldown_until, guardian_id=EXCLUDED.guardian_id,
            guardian_contribution=EXCLUDED.guardian_contribution,
            last_defense_at=EXCLUDED.last_defense_at, last_action_at=EXCLUDED.last_action_at`,
		t.ID, t.CenterLat, t.CenterLng, string(t.OwnerKind), ownerID, t.Shield,
		nullTime(t.CooldownUntil), guardianID, t.GuardianContribution,
		nullTime(t.LastDefenseAt), nullTime(t.LastActionAt), t.CreatedAt,
	)
	if err != nil {
		logger.L().Error("tile_save_error", "tile", t.ID, "err", err)
	}
	return err
}

// DecayCandidates：有主、最近防守早于阈值（或从未防守且创建早于阈值）的格子
func (s *TileStore) DecayCandidates(ctx context.Context, lastDefenseBefore time.Time) ([]*territory.Tile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tileColumns+` FROM tiles
        WHERE owner_kind <> ''
          AND COALESCE(last_defense_at, created_at) < $1`, lastDefenseBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTiles(rows)
}

// InBounds：视口查询，按中心点落在包围盒内取格子
func (s *TileStore) InBounds(ctx context.Context, minLat, minLng, maxLat, maxLng float64) ([]*territory.Tile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tileColumns+` FROM tiles
        WHERE center_lat BETWEEN $1 AND $3 AND center_lng BETWEEN $2 AND $4`,
		minLat, minLng, maxLat, maxLng)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTiles(rows)
}

func collectTiles(rows *sql.Rows) ([]*territory.Tile, error) {
	var out []*territory.Tile
	for rows.Next() {
		t, err := scanTile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
