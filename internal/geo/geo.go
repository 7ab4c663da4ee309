// 包 geo：球面距离与 geohash 编码，供去重判定与日志标注复用
package geo

import "math"

// EarthRadiusMeters：地球平均半径（米）
const EarthRadiusMeters = 6371000.0

// ProximityMeters：两点被视为同一地点的距离阈值（米）
const ProximityMeters = 30.0

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// Distance：球面距离（Haversine），返回米
// 约束：纯函数，对称；越界经纬度仍返回数学结果，由调用方负责校验
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	sLat := math.Sin(dLat / 2)
	sLon := math.Sin(dLon / 2)
	a := sLat*sLat + math.Cos(radians(lat1))*math.Cos(radians(lat2))*sLon*sLon
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// Within：距离严格小于阈值时返回 true
func Within(lat1, lon1, lat2, lon2, threshold float64) bool {
	return Distance(lat1, lon1, lat2, lon2) < threshold
}
