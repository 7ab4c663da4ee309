// 包 pipeline：对外门面，组装远端查询、去重插入器、待持久化集合与持久化工作协程
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"region-sync/internal/dedup"
	"region-sync/internal/logger"
	"region-sync/internal/pending"
	"region-sync/internal/remote"
	"region-sync/internal/store"
	"region-sync/internal/worker"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config：门面参数；零值即默认配置
type Config struct {
	// RemoteTimeout：远端存在性查询的等待上限，<=0 使用 remote.DefaultTimeout
	RemoteTimeout time.Duration
	// ProximityMeters：距离阈值，<=0 使用 30m
	ProximityMeters float64
	// AutoStart：首次接受候选时自动启动持久化工作协程
	AutoStart bool
	// OnBatch：每个批次结束后的回调，可为空
	OnBatch func(worker.BatchReport)
}

// Submission：一次提交的最终结果；ID 用于日志关联
type Submission struct {
	ID       string
	Decision dedup.Decision
	Err      error
}

// Pipeline：去重同步门面
// 约束：持有同一个 pending.Store 的只有一个插入器与一个监管者，保证至多一个活动工作协程
type Pipeline struct {
	durable  store.Durable
	pending  *pending.Store
	inserter *dedup.Inserter
	sup      *worker.Supervisor
	cfg      Config

	// workerCtx：自动启动的工作协程使用，与单次请求的生命周期无关
	workerCtx    context.Context
	cancelWorker context.CancelFunc

	// held：显式停止后置位，关闭自动启动；仅 StartPersistenceWorker 清除
	mu   sync.Mutex
	held bool
}

func New(durable store.Durable, cfg Config) *Pipeline {
	p := pending.New()
	q := remote.New(durable, cfg.RemoteTimeout)
	in := dedup.New(q, p, dedup.WithThreshold(cfg.ProximityMeters))
	sup := worker.NewSupervisor(p, durable)
	sup.OnBatch = cfg.OnBatch
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		durable:      durable,
		pending:      p,
		inserter:     in,
		sup:          sup,
		cfg:          cfg,
		workerCtx:    ctx,
		cancelWorker: cancel,
	}
}

// SubmitCandidate：异步提交候选区域，通道恰好交付一个 Submission 后关闭
func (p *Pipeline) SubmitCandidate(ctx context.Context, name string, lat, lon float64, ownerID int32) <-chan Submission {
	out := make(chan Submission, 1)
	go func() {
		defer close(out)
		out <- p.Submit(ctx, name, lat, lon, ownerID)
	}()
	return out
}

// Submit：同步提交；拒绝不视为错误，Err 仅在校验失败或远端查询失败时非空
func (p *Pipeline) Submit(ctx context.Context, name string, lat, lon float64, ownerID int32) Submission {
	id := uuid.NewString()
	l := logger.Component("pipeline").With("submission", id)
	l.Debug("submission_received", "name", name, "lat", lat, "lon", lon, "user", ownerID)
	d, err := p.inserter.TryInsert(ctx, dedup.Candidate{Name: name, Latitude: lat, Longitude: lon, OwnerID: ownerID})
	sub := Submission{ID: id, Decision: d, Err: err}
	if err != nil {
		l.Info("submission_failed", "name", name, "err", err)
		return sub
	}
	l.Info("submission_done", "name", name, "outcome", d.Outcome.String())
	if d.Outcome == dedup.Accepted && p.cfg.AutoStart {
		p.ensureWorker(l)
	}
	return sub
}

func (p *Pipeline) ensureWorker(l *slog.Logger) {
	// 持锁完成判定与启动，与 StopPersistenceWorker 互斥
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.held || p.sup.Running() {
		return
	}
	err := p.sup.Start(p.workerCtx)
	if err == nil {
		l.Info("worker_autostarted")
		return
	}
	// 并发提交同时触发自动启动，只有一个会成功
	if !errors.Is(err, worker.ErrWorkerRunning) {
		l.Info("worker_autostart_failed", "err", err)
	}
}

// StartPersistenceWorker：显式启动；已有活动工作协程时返回 worker.ErrWorkerRunning
// 约束：ctx 结束等同于停止请求
// 约束：启动成功后恢复自动启动
func (p *Pipeline) StartPersistenceWorker(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.sup.Start(ctx); err != nil {
		return err
	}
	p.held = false
	return nil
}

// StopPersistenceWorker：请求停止并等待当前批次完成
// 约束：停止后不再自动启动，直到再次显式启动
func (p *Pipeline) StopPersistenceWorker(ctx context.Context) error {
	p.mu.Lock()
	p.held = true
	p.mu.Unlock()
	return p.sup.Stop(ctx)
}

func (p *Pipeline) PendingLen() int { return p.pending.Len() }

func (p *Pipeline) WorkerState() worker.State { return p.sup.State() }

func (p *Pipeline) Threshold() float64 { return p.inserter.Threshold() }

// Close：停止工作协程，未持久化的区域留在内存中丢弃
func (p *Pipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	p.held = true
	p.mu.Unlock()
	p.cancelWorker()
	err := p.sup.Stop(ctx)
	if n := p.pending.Len(); n > 0 {
		logger.Component("pipeline").Warn("pipeline_closed_with_pending", "pending", n)
	}
	return err
}
