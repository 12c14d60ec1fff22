// 包 territory：领地归属状态机。格子的占领/进攻/防守规则、盾值与冷却、
// 守护者与归属统计都在这里收口；格子只会被本包修改。
package territory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OwnerKind：归属方类型；空串表示中立
type OwnerKind string

const (
	OwnerNone OwnerKind = ""
	OwnerSolo OwnerKind = "solo"
	OwnerTeam OwnerKind = "team"
)

// ActionType：领地行动类型
type ActionType string

const (
	ActionConquest ActionType = "conquest"
	ActionAttack   ActionType = "attack"
	ActionDefense  ActionType = "defense"
)

// Actor：行动发起者；TeamID 非空时归属记在战队名下
type Actor struct {
	UserID uuid.UUID
	TeamID *uuid.UUID
}

// Tile：六边形格子的归属状态
// 约束：id 即网格格子 id，中心/边界可由 id 推导；盾值恒在 [0,MaxShield]
type Tile struct {
	ID                   string
	CenterLat            float64
	CenterLng            float64
	OwnerKind            OwnerKind
	OwnerID              uuid.UUID
	Shield               int
	CooldownUntil        *time.Time
	GuardianID           *uuid.UUID
	GuardianContribution int
	LastDefenseAt        *time.Time
	LastActionAt         *time.Time
	CreatedAt            time.Time
}

// IsNeutral：从未被占领或不属于任何人
func (t *Tile) IsNeutral() bool { return t.OwnerKind == OwnerNone }

// IsInCooldown：处于易主后的保护期内
func (t *Tile) IsInCooldown(now time.Time) bool {
	return t.CooldownUntil != nil && now.Before(*t.CooldownUntil)
}

// IsInDispute：有主且盾值低于争夺阈值
func (t *Tile) IsInDispute(threshold int) bool {
	return t.OwnerKind != OwnerNone && t.Shield < threshold
}

// ownedBy：行动者本人或其战队是否为当前归属方
func (t *Tile) ownedBy(actor Actor) bool {
	switch t.OwnerKind {
	case OwnerSolo:
		return t.OwnerID == actor.UserID
	case OwnerTeam:
		return actor.TeamID != nil && t.OwnerID == *actor.TeamID
	}
	return false
}

// ActionRecord：追加式行动日志条目；落库后不再更新
type ActionRecord struct {
	ID           uuid.UUID
	RunID        *uuid.UUID
	UserID       uuid.UUID
	TeamID       *uuid.UUID
	TileID       string
	Type         ActionType
	ShieldBefore int
	ShieldAfter  int
	OwnerChanged bool
	CreatedAt    time.Time
}

// ActionResult：一次行动的结果快照
type ActionResult struct {
	Success bool       `json:"success"`
	Reason  string     `json:"reason,omitempty"`
	Type    ActionType `json:"actionType,omitempty"`
	TileID  string     `json:"tileId"`

	PreviousOwnerKind OwnerKind `json:"previousOwnerKind,omitempty"`
	PreviousOwnerID   uuid.UUID `json:"previousOwnerId,omitempty"`
	NewOwnerKind      OwnerKind `json:"newOwnerKind,omitempty"`
	NewOwnerID        uuid.UUID `json:"newOwnerId,omitempty"`
	OwnerChanged      bool      `json:"ownerChanged"`

	ShieldBefore  int        `json:"shieldBefore"`
	ShieldAfter   int        `json:"shieldAfter"`
	InDispute     bool       `json:"inDispute"`
	CooldownUntil *time.Time `json:"cooldownUntil,omitempty"`
}

// TileStore：格子仓储；Find 未命中返回 (nil, nil)
type TileStore interface {
	Find(ctx context.Context, id string) (*Tile, error)
	Save(ctx context.Context, t *Tile) error
	// DecayCandidates：有主、且最近一次防守早于给定时刻的格子
	DecayCandidates(ctx context.Context, lastDefenseBefore time.Time) ([]*Tile, error)
}

// ActionLog：追加式行动日志仓储
type ActionLog interface {
	Append(ctx context.Context, rec ActionRecord) error
	CountByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	CountByTeamSince(ctx context.Context, teamID uuid.UUID, since time.Time) (int, error)
	// TopContributor：窗口期内进攻+防守次数最高的用户；无记录时返回零值 id
	TopContributor(ctx context.Context, tileID string, since time.Time) (uuid.UUID, int, error)
}

// OwnerStats：归属方累计统计（用户占领数、战队持格数）
// 约束：统计失败不回滚行动本身，只记日志
type OwnerStats interface {
	UserConquestDelta(ctx context.Context, userID uuid.UUID, delta int) error
	TeamTileDelta(ctx context.Context, teamID uuid.UUID, delta int) error
}

// Notifier：归属变更与进入争夺的通知出口；投递机制由外部实现
type Notifier interface {
	OwnershipChanged(ctx context.Context, t *Tile)
	EnteredDispute(ctx context.Context, t *Tile)
}
