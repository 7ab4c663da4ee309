package geo

// 文档注释：轻量 geohash 编码（base32）
// 背景：仅用于日志与接口返回的位置标签，精度 7 字符约 150m。
// 约束：不参与去重判定；precision<=0 时返回空串。
var base32 = []byte("0123456789bcdefghjkmnpqrstuvwxyz")

func Geohash(lat, lon float64, precision int) string {
	if precision <= 0 {
		return ""
	}
	latLo, latHi := -90.0, 90.0
	lonLo, lonHi := -180.0, 180.0
	bit, ch := 0, 0
	even := true
	out := make([]byte, 0, precision)
	for len(out) < precision {
		if even {
			mid := (lonLo + lonHi) / 2
			if lon >= mid {
				ch |= 16 >> bit
				lonLo = mid
			} else {
				lonHi = mid
			}
		} else {
			mid := (latLo + latHi) / 2
			if lat >= mid {
				ch |= 16 >> bit
				latLo = mid
			} else {
				latHi = mid
			}
		}
		even = !even
		if bit < 4 {
			bit++
			continue
		}
		out = append(out, base32[ch])
		bit, ch = 0, 0
	}
	return string(out)
}
