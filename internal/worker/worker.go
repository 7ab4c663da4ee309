// 包 worker：持久化工作协程，阻塞等待待持久化集合非空后整批排空写入持久存储
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"region-sync/internal/logger"
	"region-sync/internal/metrics"
	"region-sync/internal/pending"
	"region-sync/internal/region"
	"sync"
	"time"
)

var (
	// ErrPersistWriteFailed：单条区域写入失败，不重试也不回队
	ErrPersistWriteFailed = errors.New("persist write failed")
	// ErrWorkerRunning：同一集合上已有活动的工作协程
	ErrWorkerRunning = errors.New("persistence worker already running")
)

// State：工作协程状态
type State int32

const (
	Stopped State = iota
	Idle
	Draining
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Draining:
		return "draining"
	}
	return "stopped"
}

// Persister：单条写入持久存储，返回写入时分配的索引
type Persister interface {
	Persist(ctx context.Context, r region.Region) (int64, error)
}

// WriteFailure：批内单条写入失败
type WriteFailure struct {
	Region region.Region
	Err    error
}

// BatchReport：一次排空批次的结果
type BatchReport struct {
	Drained   int
	Persisted int
	Failures  []WriteFailure
	Duration  time.Duration
}

// Worker：单个工作协程的一次生命周期；停止后不可复用
type Worker struct {
	store   *pending.Store
	sink    Persister
	onBatch func(BatchReport)
	log     *slog.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

func newWorker(store *pending.Store, sink Persister, onBatch func(BatchReport)) *Worker {
	return &Worker{store: store, sink: sink, onBatch: onBatch, log: logger.Component("worker"), done: make(chan struct{})}
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	metrics.WorkerState.Set(float64(s))
}

func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Done：循环退出后关闭
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	w.mu.Lock()
	w.cancel = cancel
	w.state = Idle
	w.mu.Unlock()
	metrics.WorkerState.Set(float64(Idle))
	go w.loop(ctx)
}

// requestStop：在下一个唤醒点生效，不打断进行中的批次
func (w *Worker) requestStop() {
	w.mu.Lock()
	c := w.cancel
	w.mu.Unlock()
	if c != nil {
		c()
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)
	defer w.setState(Stopped)
	w.log.Info("worker_started")
	// 写入使用脱离取消的上下文，停止请求不会中断批次
	writeCtx := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			w.log.Info("worker_stopped")
			return
		}
		w.setState(Idle)
		if err := w.store.WaitUntilNonEmpty(ctx); err != nil {
			w.log.Info("worker_stopped", "reason", "wait_interrupted", "err", err)
			return
		}
		if ctx.Err() != nil {
			w.log.Info("worker_stopped")
			return
		}
		w.setState(Draining)
		rep := w.drainOnce(writeCtx)
		if w.onBatch != nil {
			w.onBatch(rep)
		}
	}
}

// drainOnce：锁内排空，锁外逐条按顺序写入；单条失败记录后继续
// 约束：批次结束后才 Settle，写入期间取出的区域仍参与待持久化判定
func (w *Worker) drainOnce(ctx context.Context) BatchReport {
	t0 := time.Now()
	batch := w.store.DrainAll()
	rep := BatchReport{Drained: len(batch)}
	var written []region.Region
	defer func() { w.store.Settle(written) }()
	if len(batch) == 0 {
		return rep
	}
	metrics.DrainBatchesTotal.Inc()
	metrics.DrainBatchSize.Observe(float64(len(batch)))
	for _, r := range batch {
		idx, err := w.sink.Persist(ctx, r)
		if err != nil {
			metrics.PersistWritesTotal.WithLabelValues("fail").Inc()
			f := WriteFailure{Region: r, Err: fmt.Errorf("%w: %s: %w", ErrPersistWriteFailed, r.Name, err)}
			rep.Failures = append(rep.Failures, f)
			w.log.Error("persist_write_failed", "name", r.Name, "err", err)
			continue
		}
		metrics.PersistWritesTotal.WithLabelValues("ok").Inc()
		rep.Persisted++
		written = append(written, r)
		w.log.Debug("persist_write_ok", "name", r.Name, "idx", idx)
	}
	rep.Duration = time.Since(t0)
	w.log.Info("drain_done", "drained", rep.Drained, "persisted", rep.Persisted, "failed", len(rep.Failures), "duration_ms", rep.Duration.Milliseconds())
	return rep
}
