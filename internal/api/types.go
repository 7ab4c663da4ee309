package api

import (
	"region-sync/internal/geo"
	"region-sync/internal/region"
	"region-sync/internal/store"
)

// geohashPrecision：对外返回的 geohash 精度（约 153m×153m）
const geohashPrecision = 7

// submitRequest：提交请求体；经纬度为指针以区分缺失与 0
type submitRequest struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	OwnerID   int32    `json:"owner_id"`
}

// 文档注释：区域对外序列化模型
// 约束：Index 仅对已持久化记录有效；待持久化区域不返回索引
type regionView struct {
	Index     *int64  `json:"idx,omitempty"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
	User      int32   `json:"user"`
	Geohash   string  `json:"geohash"`
}

func viewOf(r region.Region) regionView {
	return regionView{
		Name:      r.Name,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Timestamp: r.Timestamp,
		User:      r.OwnerID,
		Geohash:   geo.Geohash(r.Latitude, r.Longitude, geohashPrecision),
	}
}

func viewOfRecord(rec store.Record) regionView {
	v := viewOf(rec.Region)
	idx := rec.Index
	v.Index = &idx
	return v
}

type submitResponse struct {
	Submission string      `json:"submission"`
	Outcome    string      `json:"outcome"`
	Region     *regionView `json:"region,omitempty"`
	Match      *regionView `json:"match,omitempty"`
	Source     string      `json:"source,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
