// 包 region：区域值类型与校验，去重管线内各模块共享
package region

import (
	"errors"
	"fmt"
	"time"
)

// Region：一个具名地理点，创建后不再修改
// 约束：Timestamp 为单调时钟纳秒；OwnerID 非负
type Region struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
	OwnerID   int32   `json:"user"`
}

var (
	ErrEmptyName      = errors.New("region name is empty")
	ErrLatitudeRange  = errors.New("latitude out of range [-90, 90]")
	ErrLongitudeRange = errors.New("longitude out of range [-180, 180]")
	ErrNegativeOwner  = errors.New("owner id is negative")
)

// Validate：校验名称与经纬度范围
func Validate(name string, lat, lon float64, owner int32) error {
	if name == "" {
		return ErrEmptyName
	}
	// NaN 不满足任何比较，需要单独拒绝
	if !(lat >= -90 && lat <= 90) {
		return fmt.Errorf("%w: %v", ErrLatitudeRange, lat)
	}
	if !(lon >= -180 && lon <= 180) {
		return fmt.Errorf("%w: %v", ErrLongitudeRange, lon)
	}
	if owner < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeOwner, owner)
	}
	return nil
}

// Equal：按五个字段比较
func (r Region) Equal(o Region) bool {
	return r.Name == o.Name &&
		r.Latitude == o.Latitude &&
		r.Longitude == o.Longitude &&
		r.Timestamp == o.Timestamp &&
		r.OwnerID == o.OwnerID
}

// SameName：名称严格相等（区分大小写）
func (r Region) SameName(name string) bool { return r.Name == name }

func (r Region) String() string {
	return fmt.Sprintf("%s (%.6f, %.6f) user=%d ts=%d", r.Name, r.Latitude, r.Longitude, r.OwnerID, r.Timestamp)
}

// 进程启动时记录一次墙钟与单调读数，之后的时间戳只随单调时钟前进
var (
	epoch     = time.Now()
	epochNano = epoch.UnixNano()
)

// Now：单调时钟纳秒时间戳
// 约束：同一进程内不回退；跨进程可近似比较（以启动时墙钟为基准）
func Now() int64 { return epochNano + int64(time.Since(epoch)) }
