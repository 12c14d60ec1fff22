// 包 notify：归属变更/进入争夺的通知出口实现
// 背景：推送投递（APNs、站内信）由外部系统负责；本包提供日志落地的默认实现，
// 保证引擎在无外部投递链路时也可运行。
package notify

import (
	"context"

	"runwar/internal/logger"
	"runwar/internal/territory"
)

// LogSink：把通知写入结构化日志的默认实现
type LogSink struct{}

func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) OwnershipChanged(ctx context.Context, t *territory.Tile) {
	logger.L().Info("notify_ownership_changed",
		"tile", t.ID,
		"owner_kind", string(t.OwnerKind),
		"owner_id", t.OwnerID.String(),
		"shield", t.Shield,
	)
}

func (s *LogSink) EnteredDispute(ctx context.Context, t *territory.Tile) {
	logger.L().Info("notify_entered_dispute",
		"tile", t.ID,
		"owner_kind", string(t.OwnerKind),
		"owner_id", t.OwnerID.String(),
		"shield", t.Shield,
	)
}
