// 包 store：PostgreSQL 数据访问层。格子、行动日志、跑步记录、统计与遥测
// 各自一个子仓储，共享同一连接池。
package store

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// Store：数据库访问入口，持有连接池并派生各子仓储
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Open：使用 DSN 打开数据库连接并配置连接池参数
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// 子仓储：与引擎各接口一一对应
func (s *Store) Tiles() *TileStore         { return &TileStore{db: s.db} }
func (s *Store) Actions() *ActionStore     { return &ActionStore{db: s.db} }
func (s *Store) Stats() *StatsStore        { return &StatsStore{db: s.db} }
func (s *Store) Runs() *RunStore           { return &RunStore{db: s.db} }
func (s *Store) Telemetry() *TelemetryStore { return &TelemetryStore{db: s.db} }
