// 包 remote：远端存在性查询，异步读取已持久化区域全集并限定最长等待
package remote

import (
	"context"
	"errors"
	"fmt"
	"region-sync/internal/logger"
	"region-sync/internal/metrics"
	"region-sync/internal/region"
	"time"
)

var (
	// ErrRemoteQueryFailed：远端读取未完成（网络、数据格式等）
	ErrRemoteQueryFailed = errors.New("remote query failed")
	// ErrRemoteQueryTimeout：超出等待上限，errors.Is 同时满足 ErrRemoteQueryFailed
	ErrRemoteQueryTimeout = fmt.Errorf("%w: timeout", ErrRemoteQueryFailed)
)

const (
	DefaultTimeout = 5 * time.Second
	MinTimeout     = time.Second
	MaxTimeout     = 30 * time.Second
)

// Fetcher：读取已持久化区域全集的外部协作方
type Fetcher interface {
	FetchAll(ctx context.Context) ([]region.Region, error)
}

// FetcherFunc：函数适配器
type FetcherFunc func(ctx context.Context) ([]region.Region, error)

func (f FetcherFunc) FetchAll(ctx context.Context) ([]region.Region, error) { return f(ctx) }

// Result：一次查询的唯一结果，Err 非空时 Regions 无意义
type Result struct {
	Regions []region.Region
	Err     error
}

// Query：带超时的异步查询器，不做重试
type Query struct {
	src     Fetcher
	timeout time.Duration
}

// New：timeout<=0 时使用 DefaultTimeout
func New(src Fetcher, timeout time.Duration) *Query {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Query{src: src, timeout: timeout}
}

// ClampTimeout：将配置的超时限定在 [MinTimeout, MaxTimeout]
func ClampTimeout(d time.Duration) time.Duration {
	if d < MinTimeout {
		return MinTimeout
	}
	if d > MaxTimeout {
		return MaxTimeout
	}
	return d
}

func (q *Query) Timeout() time.Duration { return q.timeout }

// Fetch：立即返回结果通道；通道恰好交付一个 Result 后关闭
// 约束：Fetcher 忽略 ctx 时仍在超时后以 ErrRemoteQueryTimeout 结束
func (q *Query) Fetch(ctx context.Context) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		out <- q.run(ctx)
	}()
	return out
}

func (q *Query) run(parent context.Context) Result {
	ctx, cancel := context.WithTimeout(parent, q.timeout)
	defer cancel()
	t0 := time.Now()
	inner := make(chan Result, 1)
	go func() {
		rs, err := q.src.FetchAll(ctx)
		inner <- Result{Regions: rs, Err: err}
	}()
	var res Result
	select {
	case res = <-inner:
		if res.Err != nil {
			res = Result{Err: classify(ctx, res.Err)}
		}
	case <-ctx.Done():
		res = Result{Err: classify(ctx, ctx.Err())}
	}
	metrics.RemoteQueryDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	if res.Err != nil {
		reason := "error"
		if errors.Is(res.Err, ErrRemoteQueryTimeout) {
			reason = "timeout"
		}
		metrics.RemoteQueryFailTotal.WithLabelValues(reason).Inc()
		logger.L().Warn("remote_query_"+reason, "err", res.Err, "timeout", q.timeout)
		return res
	}
	logger.L().Debug("remote_query_ok", "regions", len(res.Regions), "duration_ms", time.Since(t0).Milliseconds())
	return res
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrRemoteQueryTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrRemoteQueryFailed, err)
}
