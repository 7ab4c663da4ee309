// 包 pending：待持久化区域集合，互斥锁与唤醒通道组成的监视器
package pending

import (
	"context"
	"errors"
	"region-sync/internal/metrics"
	"region-sync/internal/region"
	"sync"
)

// ErrInterruptedWait：等待非空期间上下文结束
var ErrInterruptedWait = errors.New("pending: wait interrupted")

// Store：已接受但尚未持久化的区域序列
// 约束：单把互斥锁保护 items；wake 容量为 1，追加时在持锁状态下写入，信号不会丢失
// 约束：取出后、写入完成前的区域保留在 inflight 中；写入完成后仍对持有更早 Mark 的判定可见
type Store struct {
	mu       sync.Mutex
	items    []region.Region
	inflight []region.Region
	wake     chan struct{}

	gen     uint64
	settled []settledBatch
	readers map[uint64]int
}

type settledBatch struct {
	gen     uint64
	regions []region.Region
}

// Mark：远端快照读取前登记的代次；必须以 Release 归还
type Mark struct {
	gen uint64
}

func New() *Store {
	return &Store{wake: make(chan struct{}, 1), readers: make(map[uint64]int)}
}

// Locked：持锁期间的访问视图，仅在 WithLock 回调内有效
type Locked struct {
	s *Store
}

func (l *Locked) IsEmpty() bool { return len(l.s.items) == 0 }
func (l *Locked) Len() int      { return len(l.s.items) }

// Regions：返回当前序列的拷贝
func (l *Locked) Regions() []region.Region {
	out := make([]region.Region, len(l.s.items))
	copy(out, l.s.items)
	return out
}

// InFlight：已取出、正在写入的区域拷贝
func (l *Locked) InFlight() []region.Region {
	out := make([]region.Region, len(l.s.inflight))
	copy(out, l.s.inflight)
	return out
}

// SettledSince：m 登记之后才写入完成的区域，这些区域可能不在 m 之后读取的远端快照中
func (l *Locked) SettledSince(m Mark) []region.Region {
	var out []region.Region
	for _, b := range l.s.settled {
		if b.gen > m.gen {
			out = append(out, b.regions...)
		}
	}
	return out
}

// Append：追加并在持锁状态下发出唤醒信号
func (l *Locked) Append(r region.Region) {
	l.s.items = append(l.s.items, r)
	metrics.PendingRegions.Set(float64(len(l.s.items)))
	select {
	case l.s.wake <- struct{}{}:
	default:
	}
}

// WithLock：在互斥锁内执行 fn；任意退出路径（含 panic）均释放锁
func (s *Store) WithLock(fn func(l *Locked) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Locked{s: s})
}

// Len：锁外调用方读取的长度快照
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// DrainAll：原子地取出全部元素并清空序列；取出的元素转入 inflight 直到 Settle
func (s *Store) DrainAll() []region.Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.items
	s.items = nil
	s.inflight = append(s.inflight, out...)
	metrics.PendingRegions.Set(0)
	return out
}

// Settle：批次写入结束后清空 inflight；persisted 为写入成功的区域
// 约束：仍有更早登记的 Mark 时保留 persisted，直到这些 Mark 全部归还
func (s *Store) Settle(persisted []region.Region) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = nil
	s.gen++
	if len(s.readers) > 0 && len(persisted) > 0 {
		s.settled = append(s.settled, settledBatch{gen: s.gen, regions: persisted})
	}
	s.prune()
}

// Mark：登记当前代次；之后完成的写入经 SettledSince 可见
func (s *Store) Mark() Mark {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readers[s.gen]++
	return Mark{gen: s.gen}
}

func (s *Store) Release(m Mark) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readers[m.gen] <= 1 {
		delete(s.readers, m.gen)
	} else {
		s.readers[m.gen]--
	}
	s.prune()
}

// prune：丢弃所有未归还 Mark 都已能在远端快照中看到的批次；调用方持锁
func (s *Store) prune() {
	if len(s.readers) == 0 {
		s.settled = nil
		return
	}
	oldest := ^uint64(0)
	for g := range s.readers {
		if g < oldest {
			oldest = g
		}
	}
	i := 0
	for i < len(s.settled) && s.settled[i].gen <= oldest {
		i++
	}
	s.settled = s.settled[i:]
}

// WaitUntilNonEmpty：阻塞直到序列非空；返回时不持有锁
// 约束：每次等待前在锁内复查长度，先于等待发出的信号同样生效；ctx 结束返回 ErrInterruptedWait
func (s *Store) WaitUntilNonEmpty(ctx context.Context) error {
	for {
		if s.Len() > 0 {
			return nil
		}
		select {
		case <-s.wake:
		case <-ctx.Done():
			return errors.Join(ErrInterruptedWait, ctx.Err())
		}
	}
}
