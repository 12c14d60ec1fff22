package territory

import (
	"context"
	"time"

	"runwar/internal/logger"
)

// DecaySweep：对疏于防守的格子做一次盾值衰减
// 背景：原为定时任务，这里实现为幂等批处理，任意调度频率下正确；
// 每次调用每格子至多扣一档，衰减不把盾值降到下限以下。
// 约束：逐格子加锁结算；单格子失败跳过不中断整批。
func (e *Engine) DecaySweep(ctx context.Context) (int, error) {
	now := e.now()
	threshold := now.Add(-time.Duration(e.cfg.DecayStartDays) * 24 * time.Hour)
	candidates, err := e.tiles.DecayCandidates(ctx, threshold)
	if err != nil {
		return 0, err
	}

	decayed := 0
	for _, c := range candidates {
		l := e.lockTile(c.ID)
		l.Lock()
		// 候选集可能已过期，锁内重读当前状态
		t, err := e.tiles.Find(ctx, c.ID)
		if err != nil || t == nil {
			l.Unlock()
			continue
		}
		if t.IsNeutral() || t.Shield <= e.cfg.DecayMinimum {
			l.Unlock()
			continue
		}
		if t.LastDefenseAt != nil && !t.LastDefenseAt.Before(threshold) {
			l.Unlock()
			continue
		}

		before := t.Shield
		after := t.Shield - e.cfg.DecayPerDay
		if after < e.cfg.DecayMinimum {
			after = e.cfg.DecayMinimum
		}
		t.Shield = after
		if err := e.tiles.Save(ctx, t); err != nil {
			logger.L().Warn("decay_save_error", "tile", t.ID, "err", err)
			l.Unlock()
			continue
		}
		decayed++
		if after < e.cfg.DisputeThreshold && before >= e.cfg.DisputeThreshold {
			e.notify.EnteredDispute(ctx, t)
		}
		logger.L().Debug("decay_applied", "tile", t.ID, "shield_before", before, "shield_after", after)
		l.Unlock()
	}

	logger.L().Info("decay_sweep_done", "candidates", len(candidates), "decayed", decayed)
	return decayed, nil
}
