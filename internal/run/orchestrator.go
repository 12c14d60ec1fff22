package run

import (
	"context"
	"time"

	"github.com/google/uuid"

	"runwar/internal/budget"
	"runwar/internal/fraud"
	"runwar/internal/geo"
	"runwar/internal/logger"
	"runwar/internal/loop"
	"runwar/internal/metrics"
	"runwar/internal/territory"
)

// Result：一次提交的汇总结果
type Result struct {
	Run        Record                  `json:"run"`
	Validation loop.Result             `json:"validation"`
	Action     *territory.ActionResult `json:"action,omitempty"`
	Caps       budget.Caps             `json:"caps"`

	UserActionsRemaining int  `json:"userActionsRemaining"`
	TeamActionsRemaining *int `json:"teamActionsRemaining,omitempty"`

	// 领地行动被跳过的原因（上限已满、训练模式等）；行动本身的拒绝走 Action.Reason
	SkipReasons []string `json:"skipReasons,omitempty"`
}

// Orchestrator：提交流水线
// 约束：校验纯函数在前，结算在后；遥测与缓存失效为旁路，失败不影响主结果
type Orchestrator struct {
	validator  *loop.Validator
	engine     *territory.Engine
	caps       *budget.Service
	runs       RecordStore
	telemetry  TelemetrySink
	origin     *fraud.OriginChecker
	invalidate ViewportInvalidator

	now func() time.Time
}

func NewOrchestrator(
	validator *loop.Validator,
	engine *territory.Engine,
	caps *budget.Service,
	runs RecordStore,
	telemetry TelemetrySink,
	origin *fraud.OriginChecker,
	invalidate ViewportInvalidator,
) *Orchestrator {
	return &Orchestrator{
		validator:  validator,
		engine:     engine,
		caps:       caps,
		runs:       runs,
		telemetry:  telemetry,
		origin:     origin,
		invalidate: invalidate,
		now:        time.Now,
	}
}

// Submit：处理一次跑步提交
// 流程：上限检查 → 回环校验 → （竞技且有效且额度允许时）领地结算 → 落库 → 遥测
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (Result, error) {
	start := o.now()
	metrics.RunsSubmittedTotal.Inc()

	capsCheck, err := o.caps.Check(ctx, sub.Actor)
	if err != nil {
		return Result{}, err
	}

	points := make([]geo.Point, len(sub.Points))
	for i, p := range sub.Points {
		points[i] = geo.Point{Lat: p.Lat, Lng: p.Lng}
	}
	validation := o.validator.Validate(points, sub.Timestamps)

	for _, reason := range validation.FailureReasons {
		metrics.LoopRejectionsTotal.WithLabelValues(reason).Inc()
	}
	for _, flag := range validation.FraudFlags {
		metrics.FraudFlagsTotal.WithLabelValues(flagKind(flag)).Inc()
	}
	if validation.IsValid {
		metrics.ValidLoopsTotal.Inc()
	}

	quality := fraud.QualityIssues(points, sub.Timestamps)
	if o.origin != nil && sub.RemoteIP != "" && len(points) > 0 {
		if f := o.origin.Check(sub.RemoteIP, points[0]); f != "" {
			quality = append(quality, f)
		}
	}

	rec := o.buildRecord(sub, points, validation, quality)

	var action *territory.ActionResult
	var skips []string
	if sub.Mode != ModeCompetitive {
		skips = append(skips, "training_mode")
	} else if validation.IsValid && validation.PrimaryTile != "" {
		if capsCheck.UserCapReached || capsCheck.TeamCapReached {
			skips = append(skips, "daily_cap_reached")
			metrics.CapSkipsTotal.Inc()
			logger.L().Info("action_skipped_cap",
				"user", sub.Actor.UserID.String(),
				"actions_today", capsCheck.ActionsToday,
			)
		} else {
			res, err := o.engine.ApplyAction(ctx, validation.PrimaryTile, sub.Actor, &rec.ID)
			if err != nil {
				return Result{}, err
			}
			action = &res
			if res.Success {
				rec.TargetTile = res.TileID
				rec.ActionType = res.Type
				metrics.ActionsTotal.WithLabelValues(string(res.Type)).Inc()
				if res.OwnerChanged {
					metrics.OwnershipTransfersTotal.Inc()
				}
				if o.invalidate != nil {
					o.invalidate.InvalidateViewport(ctx)
				}
			}
		}
	}

	if err := o.runs.Save(ctx, rec); err != nil {
		return Result{}, err
	}

	result := Result{
		Run:                  *rec,
		Validation:           validation,
		Action:               action,
		Caps:                 capsCheck,
		UserActionsRemaining: o.caps.UserRemaining(capsCheck),
		TeamActionsRemaining: o.caps.TeamRemaining(capsCheck),
		SkipReasons:          skips,
	}

	o.emitTelemetry(ctx, rec, validation, action, result, quality)
	metrics.SubmitDurationMs.Observe(float64(o.now().Sub(start).Milliseconds()))
	return result, nil
}

// buildRecord：组装跑步记录
func (o *Orchestrator) buildRecord(sub Submission, points []geo.Point, v loop.Result, quality []string) *Record {
	minLat, minLng, maxLat, maxLng := loop.BoundingBox(points)
	status := StatusCompleted
	if len(v.FraudFlags) > 0 {
		status = StatusFlagged
	}
	var startTime, endTime time.Time
	if len(sub.Timestamps) > 0 {
		startTime = sub.Timestamps[0]
		endTime = sub.Timestamps[len(sub.Timestamps)-1]
	}
	return &Record{
		ID:              uuid.New(),
		UserID:          sub.Actor.UserID,
		TeamID:          sub.Actor.TeamID,
		Origin:          sub.Origin,
		Mode:            sub.Mode,
		Status:          status,
		DistanceMeters:  v.DistanceMeters,
		DurationSeconds: v.DurationSeconds,
		StartTime:       startTime,
		EndTime:         endTime,
		MinLat:          minLat,
		MinLng:          minLng,
		MaxLat:          maxLat,
		MaxLng:          maxLng,
		IsLoopValid:     v.IsValid,
		ClosingMeters:   v.ClosingMeters,
		FraudFlags:      v.FraudFlags,
		QualityFlags:    quality,
		CreatedAt:       o.now(),
	}
}

// emitTelemetry：组装并落地扁平遥测记录；同时镜像到结构化日志
func (o *Orchestrator) emitTelemetry(ctx context.Context, rec *Record, v loop.Result, action *territory.ActionResult, result Result, quality []string) {
	ev := TelemetryEvent{
		RunID:     rec.ID,
		UserID:    rec.UserID,
		Origin:    string(rec.Origin),
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt,

		IsLoopValid:         v.IsValid,
		LoopDistanceMeters:  v.DistanceMeters,
		LoopDurationSeconds: v.DurationSeconds,
		ClosureMeters:       v.ClosingMeters,
		CoveragePct:         v.PrimaryCoverage,

		PrimaryTileID:     v.PrimaryTile,
		TilesCoveredCount: len(v.TilesCovered),
		TilesCovered:      v.TilesCovered,

		ActionsToday:         result.Caps.ActionsToday,
		TeamActionsToday:     result.Caps.TeamActionsToday,
		UserCapReached:       result.Caps.UserCapReached,
		TeamCapReached:       result.Caps.TeamCapReached,
		UserActionsRemaining: result.UserActionsRemaining,
		TeamActionsRemaining: result.TeamActionsRemaining,

		FraudFlags:       v.FraudFlags,
		QualityFlags:     quality,
		RejectionReasons: v.FailureReasons,
	}
	if action != nil {
		ev.ActionTileID = action.TileID
		ev.ActionType = string(action.Type)
		ev.ActionSuccess = action.Success
		ev.ActionReason = action.Reason
		ev.OwnerChanged = action.OwnerChanged
		before, after := action.ShieldBefore, action.ShieldAfter
		ev.ShieldBefore = &before
		ev.ShieldAfter = &after
		ev.CooldownUntil = action.CooldownUntil
	}
	if err := o.telemetry.Record(ctx, ev); err != nil {
		logger.L().Warn("telemetry_record_error", "run", rec.ID.String(), "err", err)
	}
}

// flagKind：作弊标记归并为稳定的指标标签（去掉数值后缀，控制基数）
func flagKind(flag string) string {
	switch {
	case len(flag) >= 10 && flag[:10] == "high_speed":
		return "high_speed_sustained"
	case len(flag) >= 8 && flag[:8] == "teleport":
		return "teleport_detected"
	default:
		return flag
	}
}
