// 包 run：跑步提交编排。串起上限检查、回环校验、领地结算与遥测上报，
// 并组装一次提交的完整结果。
package run

import (
	"context"
	"time"

	"github.com/google/uuid"

	"runwar/internal/territory"
)

// Origin：轨迹来源
type Origin string

const (
	OriginWeb    Origin = "web"
	OriginImport Origin = "import"
	OriginIOS    Origin = "ios"
)

// Mode：竞技模式产生领地行动；训练模式只记录轨迹
type Mode string

const (
	ModeCompetitive Mode = "competitive"
	ModeTraining    Mode = "training"
)

// Status：跑步记录状态；带作弊标记的记录进入 flagged 供审计
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFlagged   Status = "flagged"
)

// Submission：一次提交的入参；坐标与时间戳由摄入层（GPX 解析或 Web 录制）提供
type Submission struct {
	Actor      territory.Actor
	Points     []Point
	Timestamps []time.Time
	Origin     Origin
	Mode       Mode
	// 提交端 IP，用于来源合理性检查；可为空
	RemoteIP string
}

// Point：提交层坐标（与 geo.Point 同构，避免摄入方依赖 geo 包）
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Record：跑步记录；创建后除状态外不再变更
type Record struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	TeamID          *uuid.UUID
	Origin          Origin
	Mode            Mode
	Status          Status
	DistanceMeters  float64
	DurationSeconds int
	StartTime       time.Time
	EndTime         time.Time
	MinLat          float64
	MinLng          float64
	MaxLat          float64
	MaxLng          float64
	IsLoopValid     bool
	ClosingMeters   float64
	TargetTile      string
	ActionType      territory.ActionType
	FraudFlags      []string
	QualityFlags    []string
	CreatedAt       time.Time
}

// RecordStore：跑步记录仓储
type RecordStore interface {
	Save(ctx context.Context, r *Record) error
}

// TelemetryEvent：每次提交一条的扁平遥测记录
// 约束：对外契约字段，改名即破坏下游报表
type TelemetryEvent struct {
	RunID     uuid.UUID `json:"runId"`
	UserID    uuid.UUID `json:"userId"`
	Origin    string    `json:"origin"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`

	IsLoopValid         bool    `json:"isLoopValid"`
	LoopDistanceMeters  float64 `json:"loopDistanceMeters"`
	LoopDurationSeconds int     `json:"loopDurationSeconds"`
	ClosureMeters       float64 `json:"closureMeters"`
	CoveragePct         float64 `json:"coveragePct"`

	PrimaryTileID     string   `json:"primaryTileId,omitempty"`
	TilesCoveredCount int      `json:"tilesCoveredCount"`
	TilesCovered      []string `json:"tilesCovered"`

	ActionTileID  string     `json:"actionTileId,omitempty"`
	ActionType    string     `json:"actionType,omitempty"`
	ActionSuccess bool       `json:"actionSuccess"`
	ActionReason  string     `json:"actionReason,omitempty"`
	OwnerChanged  bool       `json:"ownerChanged"`
	ShieldBefore  *int       `json:"shieldBefore,omitempty"`
	ShieldAfter   *int       `json:"shieldAfter,omitempty"`
	CooldownUntil *time.Time `json:"cooldownUntil,omitempty"`

	ActionsToday         int  `json:"actionsToday"`
	TeamActionsToday     *int `json:"teamActionsToday,omitempty"`
	UserCapReached       bool `json:"userCapReached"`
	TeamCapReached       bool `json:"teamCapReached"`
	UserActionsRemaining int  `json:"userActionsRemaining"`
	TeamActionsRemaining *int `json:"teamActionsRemaining,omitempty"`

	FraudFlags       []string `json:"fraudFlags"`
	QualityFlags     []string `json:"qualityFlags"`
	RejectionReasons []string `json:"rejectionReasons"`
}

// TelemetrySink：遥测落地出口；失败不阻断提交主流程
type TelemetrySink interface {
	Record(ctx context.Context, ev TelemetryEvent) error
}

// ViewportInvalidator：地图视口缓存失效钩子；任何归属变动后调用
type ViewportInvalidator interface {
	InvalidateViewport(ctx context.Context)
}
