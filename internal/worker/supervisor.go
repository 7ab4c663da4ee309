package worker

import (
	"context"
	"region-sync/internal/pending"
	"sync"
)

// 文档注释：工作协程监管者
// 背景：以显式状态判定存活，保证同一待持久化集合上最多一个活动工作协程。
// 约束：Start 在已有活动协程时返回 ErrWorkerRunning；停止后可重新 Start 一个新协程。
type Supervisor struct {
	store   *pending.Store
	sink    Persister
	OnBatch func(BatchReport)

	mu     sync.Mutex
	active *Worker
}

func NewSupervisor(store *pending.Store, sink Persister) *Supervisor {
	return &Supervisor{store: store, sink: sink}
}

// Start：启动新的工作协程；ctx 结束等同于停止请求
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.State() != Stopped {
		return ErrWorkerRunning
	}
	w := newWorker(s.store, s.sink, s.OnBatch)
	w.start(ctx)
	s.active = w
	return nil
}

// Stop：请求停止并等待循环退出或 ctx 结束；无活动协程时直接返回
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	w := s.active
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	w.requestStop()
	select {
	case <-w.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State：当前（或最近一个）工作协程的状态
func (s *Supervisor) State() State {
	s.mu.Lock()
	w := s.active
	s.mu.Unlock()
	if w == nil {
		return Stopped
	}
	return w.State()
}

func (s *Supervisor) Running() bool { return s.State() != Stopped }
