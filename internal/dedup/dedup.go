// 包 dedup：去重插入器，先对远端快照、再在锁内对待持久化集合做名称与距离两轮判定
package dedup

import (
	"context"
	"errors"
	"fmt"
	"region-sync/internal/geo"
	"region-sync/internal/logger"
	"region-sync/internal/metrics"
	"region-sync/internal/pending"
	"region-sync/internal/region"
	"region-sync/internal/remote"
)

// ErrInvalidCandidate：候选区域未通过校验
var ErrInvalidCandidate = errors.New("invalid candidate")

// Outcome：一次提交的判定结果
type Outcome int

const (
	Failed Outcome = iota
	Accepted
	RejectedDuplicateName
	RejectedTooClose
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case RejectedDuplicateName:
		return "rejected_duplicate_name"
	case RejectedTooClose:
		return "rejected_too_close"
	}
	return "failed"
}

// Candidate：待判定的提交
type Candidate struct {
	Name      string
	Latitude  float64
	Longitude float64
	OwnerID   int32
}

// Decision：判定结果；仅 Accepted 时 Region 有效
type Decision struct {
	Outcome Outcome
	Region  region.Region
	// Match：触发拒绝的既有区域
	Match *region.Region
	// Source：触发拒绝的集合，remote、pending 或 in_flight（已取出正在写入）
	Source string
}

// Querier：远端存在性查询的最小契约
type Querier interface {
	Fetch(ctx context.Context) <-chan remote.Result
}

// Inserter：去重插入器
// 约束：远端判定不持锁；锁内仅做内存比较与追加
type Inserter struct {
	remote    Querier
	pending   *pending.Store
	threshold float64
	now       func() int64
}

type Option func(*Inserter)

// WithThreshold：覆盖距离阈值（米），非正值忽略
func WithThreshold(m float64) Option {
	return func(in *Inserter) {
		if m > 0 {
			in.threshold = m
		}
	}
}

// WithClock：覆盖时间戳来源
func WithClock(now func() int64) Option {
	return func(in *Inserter) { in.now = now }
}

func New(q Querier, p *pending.Store, opts ...Option) *Inserter {
	in := &Inserter{remote: q, pending: p, threshold: geo.ProximityMeters, now: region.Now}
	for _, o := range opts {
		o(in)
	}
	return in
}

func (in *Inserter) Threshold() float64 { return in.threshold }

// TryInsert：执行两轮判定，通过后写入待持久化集合
// 返回：Failed 时 error 非空；拒绝不视为错误
func (in *Inserter) TryInsert(ctx context.Context, c Candidate) (Decision, error) {
	l := logger.Component("dedup")
	if err := region.Validate(c.Name, c.Latitude, c.Longitude, c.OwnerID); err != nil {
		return in.record(Decision{Outcome: Failed}), fmt.Errorf("%w: %w", ErrInvalidCandidate, err)
	}

	// Mark 先于远端读取登记，读取期间完成的写入在锁内补查
	mark := in.pending.Mark()
	defer in.pending.Release(mark)

	var res remote.Result
	select {
	case res = <-in.remote.Fetch(ctx):
	case <-ctx.Done():
		res = remote.Result{Err: fmt.Errorf("%w: %w", remote.ErrRemoteQueryFailed, ctx.Err())}
	}
	if res.Err != nil {
		l.Info("candidate_remote_failed", "name", c.Name, "err", res.Err)
		return in.record(Decision{Outcome: Failed}), res.Err
	}

	if d, rejected := in.check(c, res.Regions, "remote"); rejected {
		l.Debug("candidate_rejected", "name", c.Name, "outcome", d.Outcome.String(), "source", d.Source)
		return in.record(d), nil
	}

	var d Decision
	err := in.pending.WithLock(func(p *pending.Locked) error {
		if rd, rejected := in.check(c, p.Regions(), "pending"); rejected {
			d = rd
			return nil
		}
		if rd, rejected := in.check(c, p.InFlight(), "in_flight"); rejected {
			d = rd
			return nil
		}
		if rd, rejected := in.check(c, p.SettledSince(mark), "remote"); rejected {
			d = rd
			return nil
		}
		r := region.Region{
			Name:      c.Name,
			Latitude:  c.Latitude,
			Longitude: c.Longitude,
			Timestamp: in.now(),
			OwnerID:   c.OwnerID,
		}
		p.Append(r)
		d = Decision{Outcome: Accepted, Region: r}
		return nil
	})
	if err != nil {
		return in.record(Decision{Outcome: Failed}), err
	}
	if d.Outcome == Accepted {
		l.Info("region_accepted", "name", c.Name, "lat", c.Latitude, "lon", c.Longitude, "user", c.OwnerID, "geohash", geo.Geohash(c.Latitude, c.Longitude, 7))
	} else {
		l.Debug("candidate_rejected", "name", c.Name, "outcome", d.Outcome.String(), "source", d.Source)
	}
	return in.record(d), nil
}

// check：名称判定优先于距离判定
func (in *Inserter) check(c Candidate, rs []region.Region, source string) (Decision, bool) {
	for i := range rs {
		if rs[i].SameName(c.Name) {
			m := rs[i]
			return Decision{Outcome: RejectedDuplicateName, Match: &m, Source: source}, true
		}
	}
	for i := range rs {
		if geo.Within(rs[i].Latitude, rs[i].Longitude, c.Latitude, c.Longitude, in.threshold) {
			m := rs[i]
			return Decision{Outcome: RejectedTooClose, Match: &m, Source: source}, true
		}
	}
	return Decision{}, false
}

func (in *Inserter) record(d Decision) Decision {
	metrics.SubmissionsTotal.WithLabelValues(d.Outcome.String()).Inc()
	return d
}
