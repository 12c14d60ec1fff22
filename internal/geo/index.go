// 包 geo：六边形网格索引。封装 H3：坐标到格子、中心与边界、邻接与环距、
// 路线覆盖归因、区域枚举与连通聚类；附带大圆距离计算。
// 约束：格子 id 为 H3 字符串地址；非法 id 属于上游编程错误，直接 panic 不做恢复。
package geo

import (
	"fmt"
	"math"

	h3 "github.com/uber/h3-go/v4"
)

// Point：WGS84 经纬度点
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Index：固定分辨率的网格索引；无内部状态，可并发使用
type Index struct {
	res int
}

// 分辨率 0 的近似六边形边长（米）与相邻分辨率的边长比例（√7）
const (
	baseEdgeLengthMeters = 1_107_712.591
	edgeLengthRatio      = 2.6457513110645907 // sqrt(7)
)

// New：构建网格索引
// 背景：分辨率可显式指定；传负值时按目标格子半径在 0..15 中选择边长最接近的分辨率
func New(resolution int, targetRadiusMeters float64) *Index {
	if resolution >= 0 && resolution <= 15 {
		return &Index{res: resolution}
	}
	best, bestDiff := 8, math.MaxFloat64
	for r := 0; r <= 15; r++ {
		edge := baseEdgeLengthMeters / math.Pow(edgeLengthRatio, float64(r))
		diff := math.Abs(edge/2 - targetRadiusMeters)
		if diff < bestDiff {
			best, bestDiff = r, diff
		}
	}
	return &Index{res: best}
}

// Resolution：当前网格分辨率
func (ix *Index) Resolution() int { return ix.res }

// TileID：坐标到格子 id；同一坐标恒定返回同一 id
func (ix *Index) TileID(lat, lng float64) string {
	c, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), ix.res)
	if err != nil {
		panic(fmt.Sprintf("geo: latlng(%v,%v)@%d: %v", lat, lng, ix.res, err))
	}
	return c.String()
}

// cell：解析格子 id；非法 id 为编程错误
func cell(id string) h3.Cell {
	c := h3.Cell(h3.IndexFromString(id))
	if !c.IsValid() {
		panic("geo: invalid tile id " + id)
	}
	return c
}

// Center：格子中心点
func (ix *Index) Center(id string) Point {
	ll, err := h3.CellToLatLng(cell(id))
	if err != nil {
		panic("geo: center of " + id + ": " + err.Error())
	}
	return Point{Lat: ll.Lat, Lng: ll.Lng}
}

// Boundary：格子边界顶点（开环，六个顶点；不重复首点）
func (ix *Index) Boundary(id string) []Point {
	b, err := h3.CellToBoundary(cell(id))
	if err != nil {
		panic("geo: boundary of " + id + ": " + err.Error())
	}
	out := make([]Point, 0, len(b))
	for _, ll := range b {
		out = append(out, Point{Lat: ll.Lat, Lng: ll.Lng})
	}
	return out
}

// Neighbors：一环邻居，不含自身
func (ix *Index) Neighbors(id string) []string {
	c := cell(id)
	ring, err := h3.GridDisk(c, 1)
	if err != nil {
		panic("geo: neighbors of " + id + ": " + err.Error())
	}
	out := make([]string, 0, len(ring)-1)
	for _, n := range ring {
		if n != c {
			out = append(out, n.String())
		}
	}
	return out
}

// GridDistance：两格子间的环步数
func (ix *Index) GridDistance(a, b string) int {
	d, err := h3.GridDistance(cell(a), cell(b))
	if err != nil {
		panic("geo: grid distance " + a + ".." + b + ": " + err.Error())
	}
	return d
}

// AreAdjacent：是否相邻（环距恰为 1）
func (ix *Index) AreAdjacent(a, b string) bool {
	return ix.GridDistance(a, b) == 1
}

// HaversineMeters：大圆距离（米），地球半径 6,371,000 m
func HaversineMeters(p1, p2 Point) float64 {
	const earthRadius = 6371000.0
	lat1 := p1.Lat * math.Pi / 180
	lat2 := p2.Lat * math.Pi / 180
	dLat := (p2.Lat - p1.Lat) * math.Pi / 180
	dLng := (p2.Lng - p1.Lng) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadius * c
}

// RouteCoverage：逐段把路线长度归因到段中点所在格子，按总长归一化
// 约束：不足两点或总长为零返回空表；各占比之和为 1（浮点误差内）
func (ix *Index) RouteCoverage(points []Point) map[string]float64 {
	if len(points) < 2 {
		return map[string]float64{}
	}
	meters := make(map[string]float64)
	total := 0.0
	for i := 0; i < len(points)-1; i++ {
		p1, p2 := points[i], points[i+1]
		seg := HaversineMeters(p1, p2)
		if seg < 1e-9 { continue }
		total += seg
		mid := Point{Lat: (p1.Lat + p2.Lat) / 2, Lng: (p1.Lng + p2.Lng) / 2}
		meters[ix.TileID(mid.Lat, mid.Lng)] += seg
	}
	if total <= 0 {
		return map[string]float64{}
	}
	out := make(map[string]float64, len(meters))
	for id, m := range meters {
		out[id] = m / total
	}
	return out
}

// PrimaryTile：覆盖占比最大的格子及其占比
// 约束：并列时取哪一个取决于 map 遍历顺序，调用方不得依赖稳定赢家
func (ix *Index) PrimaryTile(coverage map[string]float64) (string, float64) {
	best, bestFrac := "", 0.0
	for id, frac := range coverage {
		if frac > bestFrac {
			best, bestFrac = id, frac
		}
	}
	return best, bestFrac
}

// TilesInBounds：枚举覆盖包围盒的全部格子
func (ix *Index) TilesInBounds(minLat, minLng, maxLat, maxLng float64) []string {
	loop := h3.GeoLoop{
		h3.NewLatLng(minLat, minLng),
		h3.NewLatLng(maxLat, minLng),
		h3.NewLatLng(maxLat, maxLng),
		h3.NewLatLng(minLat, maxLng),
	}
	cells, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: loop}, ix.res)
	if err != nil {
		panic(fmt.Sprintf("geo: polygon fill @%d: %v", ix.res, err))
	}
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		out = append(out, c.String())
	}
	return out
}

// ConnectedClusters：把输入格子集按邻接关系划分为连通分量
// 约束：分量间顺序与分量内顺序均不保证；分量内为自任意种子起的发现序
func (ix *Index) ConnectedClusters(ids []string) [][]string {
	remaining := make(map[string]bool, len(ids))
	for _, id := range ids {
		remaining[id] = true
	}
	var clusters [][]string
	for len(remaining) > 0 {
		var seed string
		for id := range remaining {
			seed = id
			break
		}
		var cluster []string
		queue := []string{seed}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if !remaining[cur] { continue }
			delete(remaining, cur)
			cluster = append(cluster, cur)
			for _, n := range ix.Neighbors(cur) {
				if remaining[n] {
					queue = append(queue, n)
				}
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}

// Overlay：格子 id 与边界（地图叠加层用）
type Overlay struct {
	TileID   string  `json:"tileId"`
	Boundary []Point `json:"boundary"`
}

// TileOverlay：解析坐标所在格子并返回叠加层
func (ix *Index) TileOverlay(lat, lng float64) Overlay {
	id := ix.TileID(lat, lng)
	return Overlay{TileID: id, Boundary: ix.Boundary(id)}
}
