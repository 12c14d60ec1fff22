package territory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"runwar/internal/config"
	"runwar/internal/geo"
	"runwar/internal/logger"
)

// Engine：领地状态机
// 背景：校验-结算-落库必须对同一格子原子执行，盾值算术不允许交错；
// 以格子为粒度互斥，不同格子互不阻塞。
type Engine struct {
	cfg    config.Game
	idx    *geo.Index
	tiles  TileStore
	log    ActionLog
	stats  OwnerStats
	notify Notifier

	// 每格子一把锁；格子总量受可玩区域约束，不做淘汰
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// 可注入时钟，便于冷却与衰减的测试
	now func() time.Time
}

func NewEngine(cfg config.Game, idx *geo.Index, tiles TileStore, log ActionLog, stats OwnerStats, notify Notifier) *Engine {
	return &Engine{
		cfg:    cfg,
		idx:    idx,
		tiles:  tiles,
		log:    log,
		stats:  stats,
		notify: notify,
		locks:  make(map[string]*sync.Mutex),
		now:    time.Now,
	}
}

// lockTile：取出或创建该格子的互斥锁
func (e *Engine) lockTile(id string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// DetermineActionType：按当前归属与行动者关系推导行动类型
func (e *Engine) DetermineActionType(t *Tile, actor Actor) ActionType {
	switch {
	case t.IsNeutral():
		return ActionConquest
	case t.ownedBy(actor):
		return ActionDefense
	default:
		return ActionAttack
	}
}

// validateAction：规则校验；返回空串表示合法
func (e *Engine) validateAction(t *Tile, actor Actor, at ActionType, now time.Time) string {
	switch at {
	case ActionConquest:
		if !t.IsNeutral() {
			return "tile_already_owned"
		}
	case ActionAttack:
		switch {
		case t.IsNeutral():
			return "cannot_attack_neutral"
		case t.ownedBy(actor):
			return "cannot_attack_own_tile"
		case t.IsInCooldown(now) && t.Shield <= e.cfg.TransferShield:
			return "tile_in_cooldown"
		}
	case ActionDefense:
		if !t.ownedBy(actor) {
			return "cannot_defend_rival_tile"
		}
	}
	return ""
}

// failure：不修改格子的失败结果快照
func failure(reason string, t *Tile, disputeThreshold int) ActionResult {
	return ActionResult{
		Success:           false,
		Reason:            reason,
		TileID:            t.ID,
		PreviousOwnerKind: t.OwnerKind,
		PreviousOwnerID:   t.OwnerID,
		NewOwnerKind:      t.OwnerKind,
		NewOwnerID:        t.OwnerID,
		ShieldBefore:      t.Shield,
		ShieldAfter:       t.Shield,
		InDispute:         t.IsInDispute(disputeThreshold),
		CooldownUntil:     t.CooldownUntil,
	}
}

// ApplyAction：对格子执行一次领地行动
// 约束：同一格子的校验到落库串行执行；返回 error 仅限仓储故障，规则拒绝走 Reason
func (e *Engine) ApplyAction(ctx context.Context, tileID string, actor Actor, runID *uuid.UUID) (ActionResult, error) {
	l := e.lockTile(tileID)
	l.Lock()
	defer l.Unlock()

	now := e.now()

	t, err := e.tiles.Find(ctx, tileID)
	if err != nil {
		return ActionResult{}, err
	}
	if t == nil {
		// 格子按需创建：中心由 id 推导，初始中立、零盾
		center := e.idx.Center(tileID)
		t = &Tile{ID: tileID, CenterLat: center.Lat, CenterLng: center.Lng, CreatedAt: now}
	}

	actionType := e.DetermineActionType(t, actor)
	if reason := e.validateAction(t, actor, actionType, now); reason != "" {
		logger.L().Debug("action_rejected", "tile", tileID, "type", string(actionType), "reason", reason)
		return failure(reason, t, e.cfg.DisputeThreshold), nil
	}

	shieldBefore := t.Shield
	prevKind, prevID := t.OwnerKind, t.OwnerID
	ownerChanged := false
	shieldAfter := t.Shield

	switch actionType {
	case ActionConquest:
		shieldAfter = e.cfg.ConquestInitialShield
		t.OwnerKind, t.OwnerID = resolveOwner(actor)
		t.CooldownUntil = nil
		ownerChanged = true

	case ActionAttack:
		projected := t.Shield - e.cfg.AttackDamage
		inCooldown := t.IsInCooldown(now)
		switch {
		case !inCooldown && projected <= 0:
			t.OwnerKind, t.OwnerID = resolveOwner(actor)
			shieldAfter = e.cfg.TransferShield
			cd := now.Add(time.Duration(e.cfg.CooldownHours) * time.Hour)
			t.CooldownUntil = &cd
			ownerChanged = true
		case inCooldown && projected <= 0:
			// 冷却期内不易主，盾值封底在转移盾位，防止借冷却清盾直接占领
			shieldAfter = e.cfg.TransferShield
		default:
			shieldAfter = projected
		}

	case ActionDefense:
		shieldAfter = t.Shield + e.cfg.DefenseHeal
		if shieldAfter > e.cfg.MaxShield {
			shieldAfter = e.cfg.MaxShield
		}
		t.LastDefenseAt = &now
	}

	if shieldAfter < 0 {
		shieldAfter = 0
	}
	if shieldAfter > e.cfg.MaxShield {
		shieldAfter = e.cfg.MaxShield
	}
	t.Shield = shieldAfter
	t.LastActionAt = &now

	if ownerChanged {
		e.applyOwnershipStats(ctx, prevKind, prevID, t.OwnerKind, t.OwnerID, actor)
		guardian := actor.UserID
		t.GuardianID = &guardian
		t.GuardianContribution = 1
	} else if actionType != ActionConquest {
		e.refreshGuardian(ctx, t, now)
	}

	if err := e.tiles.Save(ctx, t); err != nil {
		return ActionResult{}, err
	}
	rec := ActionRecord{
		ID:           uuid.New(),
		RunID:        runID,
		UserID:       actor.UserID,
		TeamID:       actor.TeamID,
		TileID:       t.ID,
		Type:         actionType,
		ShieldBefore: shieldBefore,
		ShieldAfter:  shieldAfter,
		OwnerChanged: ownerChanged,
		CreatedAt:    now,
	}
	if err := e.log.Append(ctx, rec); err != nil {
		return ActionResult{}, err
	}

	inDispute := t.IsInDispute(e.cfg.DisputeThreshold)
	if ownerChanged {
		e.notify.OwnershipChanged(ctx, t)
	} else if inDispute && shieldBefore >= e.cfg.DisputeThreshold {
		// 只在跨过阈值的那次行动发通知，避免每次攻击都打扰归属方
		e.notify.EnteredDispute(ctx, t)
	}

	logger.L().Info("action_applied",
		"tile", t.ID,
		"type", string(actionType),
		"user", actor.UserID.String(),
		"shield_before", shieldBefore,
		"shield_after", shieldAfter,
		"owner_changed", ownerChanged,
	)

	return ActionResult{
		Success:           true,
		Type:              actionType,
		TileID:            t.ID,
		PreviousOwnerKind: prevKind,
		PreviousOwnerID:   prevID,
		NewOwnerKind:      t.OwnerKind,
		NewOwnerID:        t.OwnerID,
		OwnerChanged:      ownerChanged,
		ShieldBefore:      shieldBefore,
		ShieldAfter:       shieldAfter,
		InDispute:         inDispute,
		CooldownUntil:     t.CooldownUntil,
	}, nil
}

// resolveOwner：有战队记战队，否则记个人
func resolveOwner(actor Actor) (OwnerKind, uuid.UUID) {
	if actor.TeamID != nil {
		return OwnerTeam, *actor.TeamID
	}
	return OwnerSolo, actor.UserID
}

// applyOwnershipStats：易主时的统计增减
// 约束：统计属于锦上添花，失败只记日志不中断行动
func (e *Engine) applyOwnershipStats(ctx context.Context, prevKind OwnerKind, prevID uuid.UUID, newKind OwnerKind, newID uuid.UUID, actor Actor) {
	switch prevKind {
	case OwnerSolo:
		if err := e.stats.UserConquestDelta(ctx, prevID, -1); err != nil {
			logger.L().Warn("stats_user_dec_error", "user", prevID.String(), "err", err)
		}
	case OwnerTeam:
		if err := e.stats.TeamTileDelta(ctx, prevID, -1); err != nil {
			logger.L().Warn("stats_team_dec_error", "team", prevID.String(), "err", err)
		}
	}
	if newKind == OwnerTeam {
		if err := e.stats.TeamTileDelta(ctx, newID, 1); err != nil {
			logger.L().Warn("stats_team_inc_error", "team", newID.String(), "err", err)
		}
	}
	if err := e.stats.UserConquestDelta(ctx, actor.UserID, 1); err != nil {
		logger.L().Warn("stats_user_inc_error", "user", actor.UserID.String(), "err", err)
	}
}

// refreshGuardian：按近 7 天贡献最高者刷新守护者
func (e *Engine) refreshGuardian(ctx context.Context, t *Tile, now time.Time) {
	weekStart := now.Add(-7 * 24 * time.Hour)
	top, contribution, err := e.log.TopContributor(ctx, t.ID, weekStart)
	if err != nil {
		logger.L().Warn("guardian_query_error", "tile", t.ID, "err", err)
		return
	}
	if top == uuid.Nil {
		return
	}
	if t.GuardianID == nil || *t.GuardianID != top || t.GuardianContribution != contribution {
		t.GuardianID = &top
		t.GuardianContribution = contribution
	}
}
