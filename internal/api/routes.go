// 包 api：集中注册 HTTP API 路由，主入口挂载到 API_BASE 前缀
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"region-sync/internal/dedup"
	"region-sync/internal/geocode"
	"region-sync/internal/logger"
	"region-sync/internal/metrics"
	"region-sync/internal/pipeline"
	"region-sync/internal/remote"
	"region-sync/internal/store"
	"region-sync/internal/worker"
	"strconv"
	"time"
)

// maxBodyBytes：提交请求体上限
const maxBodyBytes = 1 << 16

// Core：路由依赖的门面操作
type Core interface {
	Submit(ctx context.Context, name string, lat, lon float64, ownerID int32) pipeline.Submission
	StartPersistenceWorker(ctx context.Context) error
	StopPersistenceWorker(ctx context.Context) error
	PendingLen() int
	WorkerState() worker.State
}

// Lister：列出已持久化记录
type Lister interface {
	List(ctx context.Context, limit int) ([]store.Record, error)
}

// Deps：路由依赖；Geocoder/Replay 可为空
type Deps struct {
	Core     Core
	Records  Lister
	Geocoder geocode.Resolver
	Replay   *ReplayGuard
	// AdminToken：工作协程控制接口要求 x-admin-token 与之相等；为空时控制接口一律拒绝
	AdminToken string
	// WorkerCtx：经 HTTP 启动的工作协程使用的上下文，为空时使用 Background
	WorkerCtx context.Context
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// counted：按路由统计状态码
func counted(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &codeWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
	}
}

type codeWriter struct {
	http.ResponseWriter
	status int
}

func (w *codeWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// BuildRoutes：构建 API 路由，独立 ServeMux 便于挂载
func BuildRoutes(d Deps) *http.ServeMux {
	if d.WorkerCtx == nil {
		d.WorkerCtx = context.Background()
	}
	h := &handlers{d: d}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /regions", counted("submit", h.submit))
	mux.HandleFunc("GET /regions", counted("list", h.list))
	mux.HandleFunc("GET /regions/pending", counted("pending", h.pending))
	mux.HandleFunc("GET /worker", counted("worker_state", h.workerState))
	mux.HandleFunc("POST /worker/start", counted("worker_start", h.admin(h.workerStart)))
	mux.HandleFunc("POST /worker/stop", counted("worker_stop", h.admin(h.workerStop)))
	return mux
}

type handlers struct {
	d Deps
}

func (h *handlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Component("api")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil || len(body) > maxBodyBytes {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request body too large or unreadable"})
		return
	}
	var req submitRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json: " + err.Error()})
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "latitude and longitude are required"})
		return
	}
	seen, err := h.d.Replay.Seen(ctx, body)
	if err != nil {
		l.Debug("replay_guard_error", "err", err)
	}
	if seen {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "identical submission seen recently"})
		return
	}
	lat, lon := *req.Latitude, *req.Longitude
	if req.Name == "" {
		name, err := h.resolveName(ctx, lat, lon)
		if err != nil {
			l.Info("geocode_name_unavailable", "lat", lat, "lon", lon, "err", err)
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "name missing and could not be resolved: " + err.Error()})
			return
		}
		req.Name = name
	}
	sub := h.d.Core.Submit(ctx, req.Name, lat, lon, req.OwnerID)
	l.Debug("submit_handled", "submission", sub.ID, "ip", clientIP(r), "outcome", sub.Decision.Outcome.String())
	resp := submitResponse{Submission: sub.ID, Outcome: sub.Decision.Outcome.String()}
	if sub.Err != nil {
		resp.Error = sub.Err.Error()
		writeJSON(w, statusOfError(sub.Err), resp)
		return
	}
	if err := h.d.Replay.Remember(ctx, body); err != nil {
		l.Debug("replay_guard_error", "err", err)
	}
	switch sub.Decision.Outcome {
	case dedup.Accepted:
		v := viewOf(sub.Decision.Region)
		resp.Region = &v
		writeJSON(w, http.StatusCreated, resp)
	default:
		if m := sub.Decision.Match; m != nil {
			v := viewOf(*m)
			resp.Match = &v
		}
		resp.Source = sub.Decision.Source
		writeJSON(w, http.StatusConflict, resp)
	}
}

func (h *handlers) resolveName(ctx context.Context, lat, lon float64) (string, error) {
	if h.d.Geocoder == nil {
		return "", errors.New("geocoder not configured")
	}
	return h.d.Geocoder.Resolve(ctx, lat, lon)
}

// statusOfError：校验失败 400，远端查询失败或超时 503，其余 500
func statusOfError(err error) int {
	switch {
	case errors.Is(err, dedup.ErrInvalidCandidate):
		return http.StatusBadRequest
	case errors.Is(err, remote.ErrRemoteQueryFailed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}
	recs, err := h.d.Records.List(r.Context(), limit)
	if err != nil {
		logger.Component("api").Error("list_regions_error", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	out := make([]regionView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, viewOfRecord(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"regions": out, "count": len(out)})
}

func (h *handlers) pending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"pending": h.d.Core.PendingLen()})
}

func (h *handlers) workerState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"state": h.d.Core.WorkerState().String(), "pending": h.d.Core.PendingLen()})
}

// admin：校验 x-admin-token
func (h *handlers) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t := r.Header.Get("x-admin-token")
		if t == "" || t != h.d.AdminToken {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
			return
		}
		next(w, r)
	}
}

func (h *handlers) workerStart(w http.ResponseWriter, r *http.Request) {
	err := h.d.Core.StartPersistenceWorker(h.d.WorkerCtx)
	if errors.Is(err, worker.ErrWorkerRunning) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"state": h.d.Core.WorkerState().String()})
}

func (h *handlers) workerStop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := h.d.Core.StopPersistenceWorker(ctx); err != nil {
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": h.d.Core.WorkerState().String(), "pending": h.d.Core.PendingLen()})
}
