// 包 fraud：GPS 轨迹反作弊启发式。三项独立检查全部执行并汇总标记：
// 持续高速、瞬移、点密度异常；另有不阻断有效性的质量检查。
package fraud

import (
	"fmt"
	"time"

	"runwar/internal/geo"
)

// Detector：反作弊检查器；无内部状态，可并发使用
type Detector struct {
	maxSpeedMps        float64
	maxSpeedDurSeconds int64
}

// 瞬移与密度检查的固定阈值：与移动设备 GPS 的物理极限相关，不随运营数值调整
const (
	teleportThresholdMeters = 500.0
	teleportMaxSeconds      = 2
	maxPointsPerSecond      = 5.0
	sparseMinDuration       = 300
	sparsePointsPerSecond   = 0.05
)

// New：按运营配置构建检查器
// 参数：maxSpeedKmh 为判定高速的阈值（跑步场景默认 25 km/h）；maxSpeedDurationSeconds 为容忍的累计高速时长
func New(maxSpeedKmh float64, maxSpeedDurationSeconds int) *Detector {
	return &Detector{
		maxSpeedMps:        maxSpeedKmh * 1000.0 / 3600.0,
		maxSpeedDurSeconds: int64(maxSpeedDurationSeconds),
	}
}

// Detect：执行全部作弊检查并返回标记列表；空列表表示未发现作弊信号
func (d *Detector) Detect(points []geo.Point, timestamps []time.Time) []string {
	var flags []string
	if f := d.detectSustainedSpeed(points, timestamps); f != "" {
		flags = append(flags, f)
	}
	if f := detectTeleport(points, timestamps); f != "" {
		flags = append(flags, f)
	}
	if f := detectDensityAnomaly(points, timestamps); f != "" {
		flags = append(flags, f)
	}
	return flags
}

// detectSustainedSpeed：累计连续高速时长，低于阈值即清零
// 背景：载具或 GPS 伪造表现为长时间高于人力速度；偶发的单段尖峰（信号漂移）不计
func (d *Detector) detectSustainedSpeed(points []geo.Point, timestamps []time.Time) string {
	if len(points) < 2 {
		return ""
	}
	var highSpeedSeconds int64
	for i := 0; i < len(points)-1; i++ {
		dur := int64(timestamps[i+1].Sub(timestamps[i]).Seconds())
		if dur <= 0 {
			continue
		}
		dist := geo.HaversineMeters(points[i], points[i+1])
		speed := dist / float64(dur)
		if speed > d.maxSpeedMps {
			highSpeedSeconds += dur
			if highSpeedSeconds >= d.maxSpeedDurSeconds {
				return fmt.Sprintf("high_speed_sustained_%.1fkmh", speed*3600/1000)
			}
		} else {
			highSpeedSeconds = 0
		}
	}
	return ""
}

// detectTeleport：时间近而位移远的相邻点对
func detectTeleport(points []geo.Point, timestamps []time.Time) string {
	if len(points) < 2 {
		return ""
	}
	for i := 0; i < len(points)-1; i++ {
		dur := int64(timestamps[i+1].Sub(timestamps[i]).Seconds())
		dist := geo.HaversineMeters(points[i], points[i+1])
		if dur <= teleportMaxSeconds && dist > teleportThresholdMeters {
			return fmt.Sprintf("teleport_detected_%dm", int(dist))
		}
	}
	return ""
}

// detectDensityAnomaly：整条轨迹的点频异常
// 背景：注入的假数据往往点频过高；插值伪造的数据则点频过低
func detectDensityAnomaly(points []geo.Point, timestamps []time.Time) string {
	if len(timestamps) < 2 {
		return ""
	}
	total := int64(timestamps[len(timestamps)-1].Sub(timestamps[0]).Seconds())
	if total < 1 {
		total = 1
	}
	pps := float64(len(points)) / float64(total)
	if pps > maxPointsPerSecond {
		return "unrealistic_point_density"
	}
	if total > sparseMinDuration && pps < sparsePointsPerSecond {
		return "sparse_data_points"
	}
	return ""
}

// QualityIssues：数据质量问题（训练模式可接受，不计作弊、不影响有效性）
// 约束：时间戳空洞只报首个
func QualityIssues(points []geo.Point, timestamps []time.Time) []string {
	var issues []string
	if len(points) > 0 {
		stationary := 0
		for i := 0; i < len(points)-1; i++ {
			if geo.HaversineMeters(points[i], points[i+1]) < 1.0 {
				stationary++
			}
		}
		if float64(stationary)/float64(len(points)) > 0.3 {
			issues = append(issues, "high_stationary_ratio")
		}
	}
	for i := 0; i < len(timestamps)-1; i++ {
		gap := int64(timestamps[i+1].Sub(timestamps[i]).Seconds())
		if gap > 60 {
			issues = append(issues, fmt.Sprintf("timestamp_gap_%ds", gap))
			break
		}
	}
	return issues
}
