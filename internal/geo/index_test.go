package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testLat = -25.45
	testLng = -49.28
)

func TestNewResolutionSelection(t *testing.T) {
	// 目标半径 250m：分辨率 8 的半边长约 230.7m，距离目标最近
	require.Equal(t, 8, New(-1, 250).Resolution())
	// 显式分辨率直接生效
	require.Equal(t, 5, New(5, 0).Resolution())
	require.Equal(t, 0, New(0, 0).Resolution())
}

func TestTileIDStableAndCenterRoundtrip(t *testing.T) {
	idx := New(8, 0)
	id := idx.TileID(testLat, testLng)
	require.NotEmpty(t, id)
	require.Equal(t, id, idx.TileID(testLat, testLng))

	center := idx.Center(id)
	require.Equal(t, id, idx.TileID(center.Lat, center.Lng))

	boundary := idx.Boundary(id)
	require.Len(t, boundary, 6)
}

func TestNeighbors(t *testing.T) {
	idx := New(8, 0)
	id := idx.TileID(testLat, testLng)
	neighbors := idx.Neighbors(id)
	require.Len(t, neighbors, 6)
	for _, n := range neighbors {
		require.NotEqual(t, id, n)
		require.True(t, idx.AreAdjacent(id, n))
	}
	require.Equal(t, 0, idx.GridDistance(id, id))
}

func TestHaversineMeters(t *testing.T) {
	a := Point{Lat: testLat, Lng: testLng}
	b := Point{Lat: testLat + 0.01, Lng: testLng}
	d := HaversineMeters(a, b)
	// 0.01 纬度差约 1112m
	require.InDelta(t, 1111.95, d, 1.0)
	require.Equal(t, d, HaversineMeters(b, a))
	require.Zero(t, HaversineMeters(a, a))
}

func TestRouteCoverageSingleTile(t *testing.T) {
	idx := New(8, 0)
	center := idx.Center(idx.TileID(testLat, testLng))
	// 全程落在格子中心附近，占比应为 1
	points := []Point{
		{Lat: center.Lat - 0.0005, Lng: center.Lng},
		{Lat: center.Lat, Lng: center.Lng},
		{Lat: center.Lat + 0.0005, Lng: center.Lng},
	}
	coverage := idx.RouteCoverage(points)
	require.Len(t, coverage, 1)
	primary, frac := idx.PrimaryTile(coverage)
	require.Equal(t, idx.TileID(center.Lat, center.Lng), primary)
	require.InDelta(t, 1.0, frac, 1e-9)
}

func TestRouteCoverageSumsToOne(t *testing.T) {
	idx := New(8, 0)
	// 向北 2km 的直线，跨越多个格子
	var points []Point
	for i := 0; i <= 50; i++ {
		points = append(points, Point{Lat: testLat + 0.02*float64(i)/50, Lng: testLng})
	}
	coverage := idx.RouteCoverage(points)
	require.Greater(t, len(coverage), 1)
	sum := 0.0
	for _, f := range coverage {
		sum += f
	}
	require.InDelta(t, 1.0, sum, 1e-9)
}

func TestRouteCoverageDegenerate(t *testing.T) {
	idx := New(8, 0)
	require.Empty(t, idx.RouteCoverage(nil))
	require.Empty(t, idx.RouteCoverage([]Point{{Lat: testLat, Lng: testLng}}))

	primary, frac := idx.PrimaryTile(map[string]float64{})
	require.Empty(t, primary)
	require.Zero(t, frac)
}

func TestTilesInBounds(t *testing.T) {
	idx := New(8, 0)
	ids := idx.TilesInBounds(testLat-0.01, testLng-0.01, testLat+0.01, testLng+0.01)
	require.NotEmpty(t, ids)
	require.Contains(t, ids, idx.TileID(testLat, testLng))
	for _, id := range ids {
		c := idx.Center(id)
		// 中心应落在包围盒附近（PolygonToCells 按格子中心归属）
		require.Less(t, math.Abs(c.Lat-testLat), 0.02)
		require.Less(t, math.Abs(c.Lng-testLng), 0.02)
	}
}

func TestConnectedClusters(t *testing.T) {
	idx := New(8, 0)
	a := idx.TileID(testLat, testLng)
	b := idx.Neighbors(a)[0]
	far := idx.TileID(testLat+0.1, testLng+0.1)

	clusters := idx.ConnectedClusters([]string{a, b, far})
	require.Len(t, clusters, 2)
	sizes := []int{len(clusters[0]), len(clusters[1])}
	require.ElementsMatch(t, []int{2, 1}, sizes)

	require.Empty(t, idx.ConnectedClusters(nil))
}
