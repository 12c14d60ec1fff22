// 包 config：游戏数值配置（盾值、冷却、每日上限、回环与反作弊阈值、可玩区域）
// 背景：引擎的所有数值阈值集中注入，不在业务代码里硬编码；基础设施连接参数仍走环境变量
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Bounds：可玩区域的经纬度包围盒
type Bounds struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLng float64 `yaml:"min_lng"`
	MaxLng float64 `yaml:"max_lng"`
}

// Contains：点是否落在可玩区域内
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Game：引擎全量数值配置
// 约束：零值不可用，必须经 Defaults 或 Load 构造；各字段含义见字段名对应的规则模块
type Game struct {
	// 回环校验
	MinLoopDistanceMeters  float64 `yaml:"min_loop_distance_meters"`
	MinLoopDurationSeconds int     `yaml:"min_loop_duration_seconds"`
	MaxClosingMeters       float64 `yaml:"max_closing_meters"`
	MinTileCoverage        float64 `yaml:"min_tile_coverage"`

	// 盾与归属
	ConquestInitialShield int `yaml:"conquest_initial_shield"`
	AttackDamage          int `yaml:"attack_damage"`
	DefenseHeal           int `yaml:"defense_heal"`
	MaxShield             int `yaml:"max_shield"`
	TransferShield        int `yaml:"transfer_shield"`
	CooldownHours         int `yaml:"cooldown_hours"`
	DisputeThreshold      int `yaml:"dispute_threshold"`

	// 衰减
	DecayStartDays int `yaml:"decay_start_days"`
	DecayPerDay    int `yaml:"decay_per_day"`
	DecayMinimum   int `yaml:"decay_minimum"`

	// 每日行动上限
	UserDailyActionCap int `yaml:"user_daily_action_cap"`
	TeamDailyActionCap int `yaml:"team_daily_action_cap"`
	// 计日时区偏移（小时）：每日计数以该偏移下的本地零点为界
	DayBoundaryUTCOffsetHours int `yaml:"day_boundary_utc_offset_hours"`

	// 反作弊
	MaxSpeedKmh             float64 `yaml:"max_speed_kmh"`
	MaxSpeedDurationSeconds int     `yaml:"max_speed_duration_seconds"`
	// IP 来源合理性检查的告警距离（公里）；0 表示关闭
	OriginMismatchKm float64 `yaml:"origin_mismatch_km"`

	// 六边形网格：Resolution<0 时按目标半径自动选择
	Resolution         int     `yaml:"resolution"`
	TargetRadiusMeters float64 `yaml:"target_radius_meters"`

	// 可玩区域（默认库里提巴城区）
	GameArea Bounds `yaml:"game_area"`

	// 地图视口缓存 TTL（秒）；0 关闭缓存
	ViewportCacheTTLSeconds int `yaml:"viewport_cache_ttl_seconds"`
}

// Defaults：线上默认数值
// 背景：与规则文档一致的权威默认；yaml 缺失字段时逐项回填
func Defaults() Game {
	return Game{
		MinLoopDistanceMeters:  1200,
		MinLoopDurationSeconds: 420,
		MaxClosingMeters:       40,
		MinTileCoverage:        0.6,

		ConquestInitialShield: 100,
		AttackDamage:          35,
		DefenseHeal:           20,
		MaxShield:             100,
		TransferShield:        65,
		CooldownHours:         18,
		DisputeThreshold:      70,

		DecayStartDays: 10,
		DecayPerDay:    10,
		DecayMinimum:   30,

		UserDailyActionCap:        3,
		TeamDailyActionCap:        60,
		DayBoundaryUTCOffsetHours: -3,

		MaxSpeedKmh:             25,
		MaxSpeedDurationSeconds: 30,
		OriginMismatchKm:        0,

		Resolution:         -1,
		TargetRadiusMeters: 250,

		GameArea: Bounds{MinLat: -25.65, MaxLat: -25.35, MinLng: -49.40, MaxLng: -49.15},

		ViewportCacheTTLSeconds: 15,
	}
}

// Load：读取 yaml 并在 Defaults 之上覆盖
// 约束：文件不存在返回 os.ErrNotExist 语义的原始错误，由调用方决定是否回退默认值
func Load(path string) (Game, error) {
	g := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return g, err
	}
	if err := yaml.Unmarshal(raw, &g); err != nil {
		return g, fmt.Errorf("game config %s: %w", path, err)
	}
	if err := g.Validate(); err != nil {
		return g, err
	}
	return g, nil
}

// LoadOrDefaults：按环境变量 GAME_CONFIG_PATH 读取；未配置或文件缺失时使用默认值
func LoadOrDefaults() Game {
	path := os.Getenv("GAME_CONFIG_PATH")
	if path == "" {
		path = "configs/game.yaml"
	}
	g, err := Load(path)
	if err != nil {
		return Defaults()
	}
	return g
}

// Validate：拒绝会破坏状态机不变量的配置组合
func (g Game) Validate() error {
	if g.MaxShield <= 0 {
		return fmt.Errorf("max_shield must be positive, got %d", g.MaxShield)
	}
	if g.TransferShield < 0 || g.TransferShield > g.MaxShield {
		return fmt.Errorf("transfer_shield %d outside [0,%d]", g.TransferShield, g.MaxShield)
	}
	if g.ConquestInitialShield < 0 || g.ConquestInitialShield > g.MaxShield {
		return fmt.Errorf("conquest_initial_shield %d outside [0,%d]", g.ConquestInitialShield, g.MaxShield)
	}
	if g.AttackDamage <= 0 {
		return fmt.Errorf("attack_damage must be positive, got %d", g.AttackDamage)
	}
	if g.DecayMinimum < 0 || g.DecayMinimum > g.MaxShield {
		return fmt.Errorf("decay_minimum %d outside [0,%d]", g.DecayMinimum, g.MaxShield)
	}
	if g.MinTileCoverage < 0 || g.MinTileCoverage > 1 {
		return fmt.Errorf("min_tile_coverage %v outside [0,1]", g.MinTileCoverage)
	}
	return nil
}
