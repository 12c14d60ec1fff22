// 包 fraud：提交者 IP 与轨迹起点的合理性对照
// 背景：GPS 伪造常伴随提交 IP 与轨迹地理位置的大幅错位；IP 定位精度有限，
// 该信号只作为质量告警参与人工审计，绝不作为拒绝依据。
package fraud

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"runwar/internal/geo"
)

// OriginChecker：基于 GeoIP 城市库的来源检查；库文件缺失时整体禁用
type OriginChecker struct {
	reader     *geoip2.Reader
	mismatchKm float64
}

// NewOriginChecker：打开 mmdb 城市库
// 约束：mismatchKm<=0 或打开失败返回 nil（调用方按禁用处理），不视为启动错误
func NewOriginChecker(mmdbPath string, mismatchKm float64) *OriginChecker {
	if mmdbPath == "" || mismatchKm <= 0 {
		return nil
	}
	r, err := geoip2.Open(mmdbPath)
	if err != nil {
		return nil
	}
	return &OriginChecker{reader: r, mismatchKm: mismatchKm}
}

// Close：释放 mmdb 句柄
func (c *OriginChecker) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Check：IP 定位点与轨迹起点的距离超过阈值时返回告警标记，否则返回空串
// 约束：私网地址、定位缺失（经纬皆零）一律放行
func (c *OriginChecker) Check(remoteIP string, start geo.Point) string {
	if c == nil || c.reader == nil {
		return ""
	}
	ip := net.ParseIP(remoteIP)
	if ip == nil || ip.IsPrivate() || ip.IsLoopback() {
		return ""
	}
	rec, err := c.reader.City(ip)
	if err != nil {
		return ""
	}
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
		return ""
	}
	km := geo.HaversineMeters(start, geo.Point{Lat: rec.Location.Latitude, Lng: rec.Location.Longitude}) / 1000.0
	if km > c.mismatchKm {
		return fmt.Sprintf("ip_origin_mismatch_%dkm", int(km))
	}
	return ""
}
