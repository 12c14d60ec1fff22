// 包 budget：每日行动预算。计数是对行动日志的纯查询，按固定参考时区的
// 当日零点划界——没有存储的计数器，也就没有跨日重置的竞态。
package budget

import (
	"context"
	"time"

	"runwar/internal/config"
	"runwar/internal/territory"
)

// Caps：一次上限检查的快照
type Caps struct {
	ActionsToday     int  `json:"actionsToday"`
	TeamActionsToday *int `json:"teamActionsToday,omitempty"`
	UserCapReached   bool `json:"userCapReached"`
	TeamCapReached   bool `json:"teamCapReached"`
}

// Service：上限检查服务；只读，可并发调用
type Service struct {
	log territory.ActionLog
	cfg config.Game
	loc *time.Location

	now func() time.Time
}

func New(log territory.ActionLog, cfg config.Game) *Service {
	return &Service{
		log: log,
		cfg: cfg,
		loc: time.FixedZone("game", cfg.DayBoundaryUTCOffsetHours*3600),
		now: time.Now,
	}
}

// StartOfDay：参考时区下给定时刻的当日零点
func (s *Service) StartOfDay(at time.Time) time.Time {
	local := at.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
}

// Check：行动者（及其战队）当日计数与是否达限
func (s *Service) Check(ctx context.Context, actor territory.Actor) (Caps, error) {
	since := s.StartOfDay(s.now())
	userCount, err := s.log.CountByUserSince(ctx, actor.UserID, since)
	if err != nil {
		return Caps{}, err
	}
	c := Caps{
		ActionsToday:   userCount,
		UserCapReached: userCount >= s.cfg.UserDailyActionCap,
	}
	if actor.TeamID != nil {
		teamCount, err := s.log.CountByTeamSince(ctx, *actor.TeamID, since)
		if err != nil {
			return Caps{}, err
		}
		c.TeamActionsToday = &teamCount
		c.TeamCapReached = teamCount >= s.cfg.TeamDailyActionCap
	}
	return c, nil
}

// UserRemaining：用户今日剩余行动数
func (s *Service) UserRemaining(c Caps) int {
	r := s.cfg.UserDailyActionCap - c.ActionsToday
	if r < 0 {
		return 0
	}
	return r
}

// TeamRemaining：战队今日剩余行动数；无战队返回 nil
func (s *Service) TeamRemaining(c Caps) *int {
	if c.TeamActionsToday == nil {
		return nil
	}
	r := s.cfg.TeamDailyActionCap - *c.TeamActionsToday
	if r < 0 {
		r = 0
	}
	return &r
}
