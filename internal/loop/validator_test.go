package loop

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"runwar/internal/config"
	"runwar/internal/fraud"
	"runwar/internal/geo"
)

const metersPerDegreeLat = 111195.0

func newValidator() (*Validator, *geo.Index, config.Game) {
	cfg := config.Defaults()
	idx := geo.New(cfg.Resolution, cfg.TargetRadiusMeters)
	det := fraud.New(cfg.MaxSpeedKmh, cfg.MaxSpeedDurationSeconds)
	return New(idx, det, cfg), idx, cfg
}

// circleLoop：绕给定中心的闭合圆形轨迹；半径足够小可整圈落在一个格子内
func circleLoop(center geo.Point, radiusMeters float64, n, stepSeconds int) ([]geo.Point, []time.Time) {
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	points := make([]geo.Point, n)
	timestamps := make([]time.Time, n)
	latScale := metersPerDegreeLat
	lngScale := metersPerDegreeLat * math.Cos(center.Lat*math.Pi/180)
	for i := 0; i < n; i++ {
		angle := 2 * math.Pi * float64(i) / float64(n-1)
		points[i] = geo.Point{
			Lat: center.Lat + radiusMeters*math.Sin(angle)/latScale,
			Lng: center.Lng + radiusMeters*math.Cos(angle)/lngScale,
		}
		timestamps[i] = base.Add(time.Duration(i*stepSeconds) * time.Second)
	}
	return points, timestamps
}

func TestValidLoop(t *testing.T) {
	v, idx, _ := newValidator()
	center := idx.Center(idx.TileID(-25.45, -49.28))
	// 半径 210m：周长约 1319m，超过 1200m 门槛；整圈在一个格子内
	points, timestamps := circleLoop(center, 210, 64, 10)

	res := v.Validate(points, timestamps)
	require.Empty(t, res.FailureReasons)
	require.True(t, res.IsValid)
	require.Greater(t, res.DistanceMeters, 1200.0)
	require.GreaterOrEqual(t, res.DurationSeconds, 420)
	require.Less(t, res.ClosingMeters, 1.0)
	require.Equal(t, idx.TileID(center.Lat, center.Lng), res.PrimaryTile)
	require.InDelta(t, 1.0, res.PrimaryCoverage, 1e-9)
	require.Empty(t, res.FraudFlags)
}

func TestLoopTooShort(t *testing.T) {
	v, idx, _ := newValidator()
	center := idx.Center(idx.TileID(-25.45, -49.28))
	// 半径 100m：周长约 628m
	points, timestamps := circleLoop(center, 100, 64, 10)

	res := v.Validate(points, timestamps)
	require.False(t, res.IsValid)
	require.Contains(t, res.FailureReasons, "distance_too_short")
	require.NotContains(t, res.FailureReasons, "loop_not_closed")
}

func TestLoopNotClosed(t *testing.T) {
	v, _, _ := newValidator()
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	// 2km 直线，起终点差 2km
	var points []geo.Point
	var timestamps []time.Time
	for i := 0; i <= 100; i++ {
		points = append(points, geo.Point{Lat: -25.45 + 2000*float64(i)/100/metersPerDegreeLat, Lng: -49.28})
		timestamps = append(timestamps, base.Add(time.Duration(i*8)*time.Second))
	}
	res := v.Validate(points, timestamps)
	require.False(t, res.IsValid)
	require.Contains(t, res.FailureReasons, "loop_not_closed")
}

func TestDurationTooShort(t *testing.T) {
	v, idx, _ := newValidator()
	center := idx.Center(idx.TileID(-25.45, -49.28))
	// 间隔 5 秒：总时长 315 秒，低于 420 秒门槛
	points, timestamps := circleLoop(center, 210, 64, 5)

	res := v.Validate(points, timestamps)
	require.False(t, res.IsValid)
	require.Contains(t, res.FailureReasons, "duration_too_short")
}

func TestOutsideGameArea(t *testing.T) {
	v, idx, _ := newValidator()
	// 圣保罗，在可玩区域之外
	center := idx.Center(idx.TileID(-23.55, -46.63))
	points, timestamps := circleLoop(center, 210, 64, 10)

	res := v.Validate(points, timestamps)
	require.False(t, res.IsValid)
	require.Equal(t, []string{"outside_game_area"}, res.FailureReasons)
}

func TestFraudFlaggedLoopRejected(t *testing.T) {
	v, idx, _ := newValidator()
	center := idx.Center(idx.TileID(-25.45, -49.28))
	points, timestamps := circleLoop(center, 210, 64, 10)
	// 1 秒内瞬移 600m
	points[30].Lat += 600 / metersPerDegreeLat
	timestamps[30] = timestamps[29].Add(time.Second)

	res := v.Validate(points, timestamps)
	require.False(t, res.IsValid)
	require.Contains(t, res.FailureReasons, "fraud_detected")
	require.NotEmpty(t, res.FraudFlags)
}

func TestInputErrors(t *testing.T) {
	v, _, _ := newValidator()

	res := v.Validate(nil, nil)
	require.Equal(t, []string{"not_enough_points"}, res.FailureReasons)

	points := []geo.Point{{Lat: -25.45, Lng: -49.28}, {Lat: -25.451, Lng: -49.28}}
	res = v.Validate(points, []time.Time{time.Now()})
	require.Equal(t, []string{"mismatched_coordinates_timestamps"}, res.FailureReasons)
}

func TestBoundingBox(t *testing.T) {
	points := []geo.Point{
		{Lat: -25.46, Lng: -49.30},
		{Lat: -25.44, Lng: -49.26},
		{Lat: -25.45, Lng: -49.28},
	}
	minLat, minLng, maxLat, maxLng := BoundingBox(points)
	require.Equal(t, -25.46, minLat)
	require.Equal(t, -49.30, minLng)
	require.Equal(t, -25.44, maxLat)
	require.Equal(t, -49.26, maxLng)

	minLat, minLng, maxLat, maxLng = BoundingBox(nil)
	require.Zero(t, minLat)
	require.Zero(t, maxLng)
}
