package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionsync_submissions_total",
		Help: "Candidate submissions by outcome",
	}, []string{"outcome"})
	RemoteQueryDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "regionsync_remote_query_duration_ms",
		Help:    "Remote existence query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	})
	RemoteQueryFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionsync_remote_query_fail_total",
		Help: "Remote existence query failures by reason",
	}, []string{"reason"})
	PendingRegions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "regionsync_pending_regions",
		Help: "Regions accepted but not yet persisted",
	})
	DrainBatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionsync_drain_batches_total",
		Help: "Total drain batches run by the persistence worker",
	})
	DrainBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "regionsync_drain_batch_size",
		Help:    "Regions per drain batch",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	})
	PersistWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionsync_persist_writes_total",
		Help: "Durable store writes by status",
	}, []string{"status"})
	WorkerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "regionsync_worker_state",
		Help: "Persistence worker state (0 stopped, 1 idle, 2 draining)",
	})
	GeocodeRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionsync_geocode_requests_total",
		Help: "Total reverse geocode requests",
	})
	GeocodeFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "regionsync_geocode_fail_total",
		Help: "Total reverse geocode failures",
	})
	GeocodeDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "regionsync_geocode_duration_ms",
		Help:    "Reverse geocode call duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regionsync_http_requests_total",
		Help: "HTTP API requests by route and status",
	}, []string{"route", "status"})
)

func init() {
	prometheus.MustRegister(SubmissionsTotal)
	prometheus.MustRegister(RemoteQueryDurationMs)
	prometheus.MustRegister(RemoteQueryFailTotal)
	prometheus.MustRegister(PendingRegions)
	prometheus.MustRegister(DrainBatchesTotal)
	prometheus.MustRegister(DrainBatchSize)
	prometheus.MustRegister(PersistWritesTotal)
	prometheus.MustRegister(WorkerState)
	prometheus.MustRegister(GeocodeRequestsTotal)
	prometheus.MustRegister(GeocodeFailTotal)
	prometheus.MustRegister(GeocodeDurationMs)
	prometheus.MustRegister(HTTPRequestsTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
