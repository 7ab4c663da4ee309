// 包 geocode：逆地理编码，为未提供名称的候选区域按坐标生成名称
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"region-sync/internal/logger"
	"region-sync/internal/metrics"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingKey = errors.New("geocode: missing amap key")
	ErrNoAddress  = errors.New("geocode: no address for location")
)

// DefaultBaseURL：高德 Web 服务逆地理编码接口
const DefaultBaseURL = "https://restapi.amap.com/v3/geocode/regeo"

// Resolver：按坐标解析一个可读地址名称
type Resolver interface {
	Resolve(ctx context.Context, lat, lon float64) (string, error)
}

// 文档注释：高德逆地理编码响应结构
// 背景：仅解析 formatted_address 与地址组件中的省/市/区，用于生成区域名称。
// 约束：高德对空字段返回 []，因此字符串字段以 RawMessage 接收后再判定。
type regeoResponse struct {
	Status    string `json:"status"`
	Info      string `json:"info"`
	Infocode  string `json:"infocode"`
	Regeocode struct {
		FormattedAddress json.RawMessage `json:"formatted_address"`
		AddressComponent struct {
			Province json.RawMessage `json:"province"`
			City     json.RawMessage `json:"city"`
			District json.RawMessage `json:"district"`
		} `json:"addressComponent"`
	} `json:"regeocode"`
}

// rawString：字符串字段返回其值，数组或空值返回空串
func rawString(m json.RawMessage) string {
	var s string
	if len(m) == 0 || json.Unmarshal(m, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func (r *regeoResponse) name() string {
	if s := rawString(r.Regeocode.FormattedAddress); s != "" {
		return s
	}
	ac := r.Regeocode.AddressComponent
	return rawString(ac.Province) + rawString(ac.City) + rawString(ac.District)
}

// AMap：高德逆地理编码客户端
type AMap struct {
	Key     string
	BaseURL string
	Client  *http.Client
}

// NewAMap：client 为空时使用 4s 超时的默认客户端
func NewAMap(key string, client *http.Client) *AMap {
	if client == nil {
		client = &http.Client{Timeout: 4 * time.Second}
	}
	return &AMap{Key: key, BaseURL: DefaultBaseURL, Client: client}
}

// formatLocation：高德要求 经度,纬度 且小数不超过 6 位
func formatLocation(lat, lon float64) string {
	return strconv.FormatFloat(lon, 'f', 6, 64) + "," + strconv.FormatFloat(lat, 'f', 6, 64)
}

// Resolve：查询坐标对应的地址名称
// 返回：status!="1" 时返回附带 infocode 的错误；无可用地址时返回 ErrNoAddress
func (a *AMap) Resolve(ctx context.Context, lat, lon float64) (string, error) {
	if a.Key == "" {
		return "", ErrMissingKey
	}
	q := url.Values{}
	q.Set("key", a.Key)
	q.Set("location", formatLocation(lat, lon))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	l := logger.Component("geocode")
	t0 := time.Now()
	metrics.GeocodeRequestsTotal.Inc()
	resp, err := a.Client.Do(req)
	if err != nil {
		l.Error("geocode_http_error", "err", err)
		metrics.GeocodeFailTotal.Inc()
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.GeocodeFailTotal.Inc()
		return "", fmt.Errorf("geocode: http status %d", resp.StatusCode)
	}
	var r regeoResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		l.Error("geocode_decode_error", "err", err)
		metrics.GeocodeFailTotal.Inc()
		return "", err
	}
	dur := time.Since(t0).Milliseconds()
	metrics.GeocodeDurationMs.Observe(float64(dur))
	l.Debug("geocode_resp", "lat", lat, "lon", lon, "status", r.Status, "infocode", r.Infocode, "duration_ms", dur)
	if r.Status != "1" {
		metrics.GeocodeFailTotal.Inc()
		return "", fmt.Errorf("geocode: amap error infocode=%s info=%s", r.Infocode, r.Info)
	}
	name := r.name()
	if name == "" {
		metrics.GeocodeFailTotal.Inc()
		return "", ErrNoAddress
	}
	return name, nil
}
