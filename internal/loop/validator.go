// 包 loop：回环校验。判定一条轨迹是否构成可发起领地行动的有效闭环，
// 并选出主格子（路线距离占比最高者）。纯函数，无副作用，可被试算调用。
package loop

import (
	"time"

	"runwar/internal/config"
	"runwar/internal/fraud"
	"runwar/internal/geo"
)

// Result：一次校验的不可变结果
type Result struct {
	IsValid bool `json:"isLoopValid"`
	// 全部未通过原因；逐项检查不短路，允许多原因并存
	FailureReasons []string `json:"failureReasons"`

	DistanceMeters  float64 `json:"distanceMeters"`
	DurationSeconds int     `json:"durationSeconds"`
	ClosingMeters   float64 `json:"closingMeters"`

	TilesCovered    []string `json:"tilesCovered"`
	PrimaryTile     string   `json:"primaryTile,omitempty"`
	PrimaryCoverage float64  `json:"primaryCoverage"`

	FraudFlags []string `json:"fraudFlags"`
}

// Validator：组合网格索引与反作弊检查的回环校验器
type Validator struct {
	idx *geo.Index
	det *fraud.Detector
	cfg config.Game
}

func New(idx *geo.Index, det *fraud.Detector, cfg config.Game) *Validator {
	return &Validator{idx: idx, det: det, cfg: cfg}
}

// invalid：入参层面即不可校验时的短路结果
func invalid(reason string) Result {
	return Result{IsValid: false, FailureReasons: []string{reason}, TilesCovered: []string{}, FraudFlags: []string{}}
}

// Validate：执行全部回环检查
// 约束：除入参错误外所有检查均执行完毕再汇总，调用方可一次性看到全部原因
func (v *Validator) Validate(points []geo.Point, timestamps []time.Time) Result {
	if len(points) < 2 {
		return invalid("not_enough_points")
	}
	if len(points) != len(timestamps) {
		return invalid("mismatched_coordinates_timestamps")
	}

	total := 0.0
	for i := 0; i < len(points)-1; i++ {
		total += geo.HaversineMeters(points[i], points[i+1])
	}
	duration := int(timestamps[len(timestamps)-1].Sub(timestamps[0]).Seconds())
	closing := geo.HaversineMeters(points[0], points[len(points)-1])

	coverage := v.idx.RouteCoverage(points)
	tiles := make([]string, 0, len(coverage))
	for id := range coverage {
		tiles = append(tiles, id)
	}
	primary, primaryFrac := v.idx.PrimaryTile(coverage)

	fraudFlags := v.det.Detect(points, timestamps)

	var reasons []string
	if total < v.cfg.MinLoopDistanceMeters {
		reasons = append(reasons, "distance_too_short")
	}
	if duration < v.cfg.MinLoopDurationSeconds {
		reasons = append(reasons, "duration_too_short")
	}
	if closing > v.cfg.MaxClosingMeters {
		reasons = append(reasons, "loop_not_closed")
	}
	if primaryFrac < v.cfg.MinTileCoverage {
		reasons = append(reasons, "insufficient_tile_coverage")
	}
	if len(fraudFlags) > 0 {
		reasons = append(reasons, "fraud_detected")
	}
	if primary != "" {
		center := v.idx.Center(primary)
		if !v.cfg.GameArea.Contains(center.Lat, center.Lng) {
			reasons = append(reasons, "outside_game_area")
		}
	}

	return Result{
		IsValid:         len(reasons) == 0,
		FailureReasons:  reasons,
		DistanceMeters:  total,
		DurationSeconds: duration,
		ClosingMeters:   closing,
		TilesCovered:    tiles,
		PrimaryTile:     primary,
		PrimaryCoverage: primaryFrac,
		FraudFlags:      fraudFlags,
	}
}

// BoundingBox：轨迹包围盒（跑步记录落库用）
func BoundingBox(points []geo.Point) (minLat, minLng, maxLat, maxLng float64) {
	if len(points) == 0 {
		return 0, 0, 0, 0
	}
	minLat, maxLat = points[0].Lat, points[0].Lat
	minLng, maxLng = points[0].Lng, points[0].Lng
	for _, p := range points[1:] {
		if p.Lat < minLat { minLat = p.Lat }
		if p.Lat > maxLat { maxLat = p.Lat }
		if p.Lng < minLng { minLng = p.Lng }
		if p.Lng > maxLng { maxLng = p.Lng }
	}
	return
}
