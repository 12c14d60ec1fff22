package budget

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"runwar/internal/config"
	"runwar/internal/territory"
)

// 固定条目的内存行动日志
type stubLog struct {
	entries []territory.ActionRecord
}

func (l *stubLog) Append(ctx context.Context, rec territory.ActionRecord) error {
	l.entries = append(l.entries, rec)
	return nil
}

func (l *stubLog) CountByUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	n := 0
	for _, r := range l.entries {
		if r.UserID == userID && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (l *stubLog) CountByTeamSince(ctx context.Context, teamID uuid.UUID, since time.Time) (int, error) {
	n := 0
	for _, r := range l.entries {
		if r.TeamID != nil && *r.TeamID == teamID && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (l *stubLog) TopContributor(ctx context.Context, tileID string, since time.Time) (uuid.UUID, int, error) {
	return uuid.Nil, 0, nil
}

func newService(log *stubLog, at time.Time) *Service {
	s := New(log, config.Defaults())
	s.now = func() time.Time { return at }
	return s
}

func TestStartOfDayUsesGameTimezone(t *testing.T) {
	s := newService(&stubLog{}, time.Time{})
	// UTC−3 下 2026-08-28 02:59Z 仍属 08-27
	at := time.Date(2026, 8, 28, 2, 59, 0, 0, time.UTC)
	start := s.StartOfDay(at)
	require.Equal(t, time.Date(2026, 8, 27, 3, 0, 0, 0, time.UTC), start.UTC())

	// 03:00Z 起进入 08-28
	at = time.Date(2026, 8, 28, 3, 0, 0, 0, time.UTC)
	start = s.StartOfDay(at)
	require.Equal(t, time.Date(2026, 8, 28, 3, 0, 0, 0, time.UTC), start.UTC())
}

func TestCheckCountsTodayOnly(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	log := &stubLog{entries: []territory.ActionRecord{
		{UserID: userID, CreatedAt: now.Add(-time.Hour)},
		{UserID: userID, CreatedAt: now.Add(-2 * time.Hour)},
		// 昨天的行动不计入
		{UserID: userID, CreatedAt: now.Add(-24 * time.Hour)},
		// 他人的行动不计入
		{UserID: uuid.New(), CreatedAt: now.Add(-time.Hour)},
	}}
	s := newService(log, now)

	c, err := s.Check(context.Background(), territory.Actor{UserID: userID})
	require.NoError(t, err)
	require.Equal(t, 2, c.ActionsToday)
	require.False(t, c.UserCapReached)
	require.Nil(t, c.TeamActionsToday)
	require.False(t, c.TeamCapReached)
	require.Equal(t, 1, s.UserRemaining(c))
	require.Nil(t, s.TeamRemaining(c))
}

func TestUserCapReached(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	log := &stubLog{}
	for i := 0; i < 3; i++ {
		log.entries = append(log.entries, territory.ActionRecord{UserID: userID, CreatedAt: now.Add(-time.Minute)})
	}
	s := newService(log, now)

	c, err := s.Check(context.Background(), territory.Actor{UserID: userID})
	require.NoError(t, err)
	require.Equal(t, 3, c.ActionsToday)
	require.True(t, c.UserCapReached)
	require.Zero(t, s.UserRemaining(c))
}

func TestTeamCap(t *testing.T) {
	teamID := uuid.New()
	userID := uuid.New()
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)
	log := &stubLog{}
	// 全队 60 次行动由不同成员贡献
	for i := 0; i < 60; i++ {
		log.entries = append(log.entries, territory.ActionRecord{
			UserID:    uuid.New(),
			TeamID:    &teamID,
			CreatedAt: now.Add(-time.Minute),
		})
	}
	s := newService(log, now)

	c, err := s.Check(context.Background(), territory.Actor{UserID: userID, TeamID: &teamID})
	require.NoError(t, err)
	require.Zero(t, c.ActionsToday)
	require.False(t, c.UserCapReached)
	require.NotNil(t, c.TeamActionsToday)
	require.Equal(t, 60, *c.TeamActionsToday)
	require.True(t, c.TeamCapReached)
	require.Equal(t, 3, s.UserRemaining(c))
	require.NotNil(t, s.TeamRemaining(c))
	require.Zero(t, *s.TeamRemaining(c))
}

func TestCountsResetAtDayBoundary(t *testing.T) {
	userID := uuid.New()
	// 08-28 02:00Z：本地 08-27 晚 23:00，三次行动用满当日
	late := time.Date(2026, 8, 28, 2, 0, 0, 0, time.UTC)
	log := &stubLog{}
	for i := 0; i < 3; i++ {
		log.entries = append(log.entries, territory.ActionRecord{UserID: userID, CreatedAt: late})
	}

	s := newService(log, late)
	c, err := s.Check(context.Background(), territory.Actor{UserID: userID})
	require.NoError(t, err)
	require.True(t, c.UserCapReached)

	// 本地零点（03:00Z）之后计数归零
	s = newService(log, time.Date(2026, 8, 28, 3, 1, 0, 0, time.UTC))
	c, err = s.Check(context.Background(), territory.Actor{UserID: userID})
	require.NoError(t, err)
	require.Zero(t, c.ActionsToday)
	require.False(t, c.UserCapReached)
}
