// 包 store：持久存储访问层，regions 集合按写入时分配的递增索引组织
package store

import (
	"context"
	"errors"
	"fmt"
	"region-sync/internal/region"
	"strconv"
)

var (
	ErrNotFound        = errors.New("region record not found")
	ErrMalformedRecord = errors.New("malformed region record")
)

// Record：持久化后的区域，Index 在写入时分配且严格递增（自 0 起）
type Record struct {
	Index int64 `json:"idx"`
	region.Region
}

// Durable：远端存在性查询与持久化写入的统一契约
type Durable interface {
	FetchAll(ctx context.Context) ([]region.Region, error)
	Persist(ctx context.Context, r region.Region) (int64, error)
}

// Admin：运维工具使用的附加操作
type Admin interface {
	Durable
	List(ctx context.Context, limit int) ([]Record, error)
	Get(ctx context.Context, idx int64) (Record, error)
	Delete(ctx context.Context, idx int64) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

// 字段名与文档数据库中的对象字段一致
const (
	fieldName      = "name"
	fieldLatitude  = "latitude"
	fieldLongitude = "longitude"
	fieldTimestamp = "timestamp"
	fieldUser      = "user"
)

func encodeFields(r region.Region) []any {
	return []any{
		fieldName, r.Name,
		fieldLatitude, strconv.FormatFloat(r.Latitude, 'g', -1, 64),
		fieldLongitude, strconv.FormatFloat(r.Longitude, 'g', -1, 64),
		fieldTimestamp, strconv.FormatInt(r.Timestamp, 10),
		fieldUser, strconv.FormatInt(int64(r.OwnerID), 10),
	}
}

// decodeFields：任一字段缺失或无法解析时返回 ErrMalformedRecord
func decodeFields(idx int64, m map[string]string) (Record, error) {
	rec := Record{Index: idx}
	bad := func(field string, err error) (Record, error) {
		if err != nil {
			return Record{}, fmt.Errorf("%w: idx=%d field=%s: %w", ErrMalformedRecord, idx, field, err)
		}
		return Record{}, fmt.Errorf("%w: idx=%d field=%s missing", ErrMalformedRecord, idx, field)
	}
	name, ok := m[fieldName]
	if !ok || name == "" {
		return bad(fieldName, nil)
	}
	rec.Name = name
	var err error
	if rec.Latitude, err = parseFloat(m, fieldLatitude); err != nil {
		return bad(fieldLatitude, err)
	}
	if rec.Longitude, err = parseFloat(m, fieldLongitude); err != nil {
		return bad(fieldLongitude, err)
	}
	s, ok := m[fieldTimestamp]
	if !ok {
		return bad(fieldTimestamp, nil)
	}
	if rec.Timestamp, err = strconv.ParseInt(s, 10, 64); err != nil {
		return bad(fieldTimestamp, err)
	}
	s, ok = m[fieldUser]
	if !ok {
		return bad(fieldUser, nil)
	}
	u, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return bad(fieldUser, err)
	}
	rec.OwnerID = int32(u)
	return rec, nil
}

func parseFloat(m map[string]string, field string) (float64, error) {
	s, ok := m[field]
	if !ok {
		return 0, errors.New("missing")
	}
	return strconv.ParseFloat(s, 64)
}

func regionsOf(recs []Record) []region.Region {
	out := make([]region.Region, len(recs))
	for i, r := range recs {
		out[i] = r.Region
	}
	return out
}
