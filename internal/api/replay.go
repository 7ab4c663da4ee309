package api

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// 文档注释：重放保护（Redis 位图布隆过滤器）
// 背景：客户端超时重试会在短时间内重复提交完全相同的请求体；已有确定结果的请求体再次出现时直接返回 429，不再发起远端查询。
// 约束：按时间窗分桶，键为 <prefix>:<窗口序号>，TTL 为两个窗口；误判仅导致一次多余的 429。
type ReplayGuard struct {
	rc     *redis.Client
	prefix string
	window time.Duration
	m      uint32
	k      int
}

// NewReplayGuard：rc 为空时返回 nil，调用方视为关闭
func NewReplayGuard(rc *redis.Client, window time.Duration) *ReplayGuard {
	if rc == nil {
		return nil
	}
	if window <= 0 {
		window = 10 * time.Second
	}
	return &ReplayGuard{rc: rc, prefix: "regions:replay", window: window, m: 1 << 20, k: 4}
}

// bloomPositions：FNV64a 结合索引扰动生成 k 个位置
func bloomPositions(data []byte, m uint32, k int) []int64 {
	pos := make([]int64, k)
	for i := 0; i < k; i++ {
		h := fnv.New64a()
		h.Write([]byte{byte(i)})
		h.Write(data)
		pos[i] = int64(uint32(h.Sum64() % uint64(m)))
	}
	return pos
}

func (g *ReplayGuard) key(now time.Time) string {
	return g.prefix + ":" + strconv.FormatInt(now.UnixNano()/int64(g.window), 10)
}

// Seen：当前时间窗内是否已记录过该请求体；只读，不写位图
// 异常：Redis 交互错误时返回 false 与 error，不阻断提交
func (g *ReplayGuard) Seen(ctx context.Context, body []byte) (bool, error) {
	if g == nil {
		return false, nil
	}
	key := g.key(time.Now())
	pos := bloomPositions(body, g.m, g.k)
	cmds := make([]*redis.IntCmd, len(pos))
	_, err := g.rc.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, off := range pos {
			cmds[i] = p.GetBit(ctx, key, off)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	for _, c := range cmds {
		if c.Val() == 0 {
			return false, nil
		}
	}
	return true, nil
}

// Remember：记录已得到确定结果（接受或拒绝）的请求体
// 约束：失败结果不记录，相同请求体可立即重试
func (g *ReplayGuard) Remember(ctx context.Context, body []byte) error {
	if g == nil {
		return nil
	}
	key := g.key(time.Now())
	_, err := g.rc.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, off := range bloomPositions(body, g.m, g.k) {
			p.SetBit(ctx, key, off, 1)
		}
		p.Expire(ctx, key, 2*g.window)
		return nil
	})
	return err
}
