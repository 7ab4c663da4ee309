package store

import (
	"context"
	"errors"
	"fmt"
	"region-sync/internal/logger"
	"region-sync/internal/region"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix：regions 根集合键前缀
const DefaultRedisPrefix = "regions"

// 文档注释：Redis 树形键值存储
// 背景：以 <prefix>:<idx> 哈希保存单个区域，<prefix>:seq 计数器分配索引，<prefix>:index 有序集合按索引排序用于全量读取。
// 约束：索引 = INCR 结果 - 1，自 0 起严格递增；全量读取时任一条目格式错误则整体失败。
type Redis struct {
	rc     *redis.Client
	prefix string
}

func NewRedis(rc *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{rc: rc, prefix: prefix}
}

func (s *Redis) entryKey(idx int64) string { return s.prefix + ":" + strconv.FormatInt(idx, 10) }
func (s *Redis) seqKey() string            { return s.prefix + ":seq" }
func (s *Redis) indexKey() string          { return s.prefix + ":index" }

func (s *Redis) Persist(ctx context.Context, r region.Region) (int64, error) {
	n, err := s.rc.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return 0, err
	}
	idx := n - 1
	_, err = s.rc.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.entryKey(idx), encodeFields(r)...)
		p.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(idx), Member: strconv.FormatInt(idx, 10)})
		return nil
	})
	if err != nil {
		return 0, err
	}
	logger.L().Debug("redis_region_persisted", "idx", idx, "name", r.Name)
	return idx, nil
}

func (s *Redis) FetchAll(ctx context.Context) ([]region.Region, error) {
	recs, err := s.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	return regionsOf(recs), nil
}

// List：按索引升序读取，limit<=0 表示全部
// 约束：索引存在而哈希已被删除的条目跳过
func (s *Redis) List(ctx context.Context, limit int) ([]Record, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	members, err := s.rc.ZRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}
	idxs := make([]int64, len(members))
	for i, m := range members {
		v, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: index member %q", ErrMalformedRecord, m)
		}
		idxs[i] = v
	}
	cmds := make([]*redis.MapStringStringCmd, len(idxs))
	_, err = s.rc.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, idx := range idxs {
			cmds[i] = p.HGetAll(ctx, s.entryKey(idx))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(idxs))
	for i, c := range cmds {
		m := c.Val()
		if len(m) == 0 {
			continue
		}
		rec, err := decodeFields(idxs[i], m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	logger.L().Debug("redis_regions_listed", "count", len(out))
	return out, nil
}

func (s *Redis) Get(ctx context.Context, idx int64) (Record, error) {
	m, err := s.rc.HGetAll(ctx, s.entryKey(idx)).Result()
	if err != nil {
		return Record{}, err
	}
	if len(m) == 0 {
		return Record{}, ErrNotFound
	}
	return decodeFields(idx, m)
}

func (s *Redis) Delete(ctx context.Context, idx int64) error {
	var del *redis.IntCmd
	_, err := s.rc.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, s.entryKey(idx))
		p.ZRem(ctx, s.indexKey(), strconv.FormatInt(idx, 10))
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Redis) Count(ctx context.Context) (int64, error) {
	n, err := s.rc.ZCard(ctx, s.indexKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *Redis) Close() error { return s.rc.Close() }
