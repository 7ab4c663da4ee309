package worker

import (
	"context"
	"errors"
	"fmt"
	"region-sync/internal/pending"
	"region-sync/internal/region"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink 记录写入顺序，可按名称注入失败或阻塞
type recordingSink struct {
	mu     sync.Mutex
	writes []region.Region
	failOn map[string]bool
	gate   chan struct{}
	next   int64
}

func (s *recordingSink) Persist(ctx context.Context, r region.Region) (int64, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn[r.Name] {
		return 0, errors.New("disk full")
	}
	s.writes = append(s.writes, r)
	idx := s.next
	s.next++
	return idx, nil
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.writes))
	for i, r := range s.writes {
		out[i] = r.Name
	}
	return out
}

func appendRegion(p *pending.Store, name string) {
	_ = p.WithLock(func(l *pending.Locked) error {
		l.Append(region.Region{Name: name, Timestamp: region.Now()})
		return nil
	})
}

func stopSupervisor(t *testing.T, s *Supervisor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, Stopped, s.State())
}

func TestWorker_IdleMakesNoWrites(t *testing.T) {
	p := pending.New()
	sink := &recordingSink{}
	s := NewSupervisor(p, sink)
	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sink.names())
	assert.Equal(t, Idle, s.State())
	assert.True(t, s.Running())
	stopSupervisor(t, s)
}

// D
func TestWorker_DrainsPendingInOrder(t *testing.T) {
	p := pending.New()
	appendRegion(p, "Times Square")
	sink := &recordingSink{}
	s := NewSupervisor(p, sink)
	batches := make(chan BatchReport, 4)
	s.OnBatch = func(r BatchReport) { batches <- r }
	require.NoError(t, s.Start(context.Background()))

	appendRegion(p, "Central Park")
	assert.Eventually(t, func() bool { return len(sink.names()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Times Square", "Central Park"}, sink.names())
	assert.Equal(t, 0, p.Len())

	total := 0
	for total < 2 {
		select {
		case r := <-batches:
			total += r.Persisted
			assert.Empty(t, r.Failures)
		case <-time.After(2 * time.Second):
			t.Fatal("missing batch report")
		}
	}
	stopSupervisor(t, s)
}

func TestWorker_WriteFailureContinuesBatch(t *testing.T) {
	p := pending.New()
	appendRegion(p, "a")
	appendRegion(p, "bad")
	appendRegion(p, "c")
	sink := &recordingSink{failOn: map[string]bool{"bad": true}}
	s := NewSupervisor(p, sink)
	batches := make(chan BatchReport, 1)
	s.OnBatch = func(r BatchReport) { batches <- r }
	require.NoError(t, s.Start(context.Background()))

	var rep BatchReport
	select {
	case rep = <-batches:
	case <-time.After(2 * time.Second):
		t.Fatal("no batch")
	}
	assert.Equal(t, 3, rep.Drained)
	assert.Equal(t, 2, rep.Persisted)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, "bad", rep.Failures[0].Region.Name)
	assert.ErrorIs(t, rep.Failures[0].Err, ErrPersistWriteFailed)
	assert.Equal(t, []string{"a", "c"}, sink.names())
	// 失败的区域不回队
	assert.Equal(t, 0, p.Len())
	stopSupervisor(t, s)
}

func TestSupervisor_SecondStartRejected(t *testing.T) {
	s := NewSupervisor(pending.New(), &recordingSink{})
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrWorkerRunning)
	stopSupervisor(t, s)

	// 停止后可启动新协程
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Running())
	stopSupervisor(t, s)
}

func TestSupervisor_StopWithoutStart(t *testing.T) {
	s := NewSupervisor(pending.New(), &recordingSink{})
	assert.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, Stopped, s.State())
}

func TestWorker_StopDoesNotPreemptBatch(t *testing.T) {
	p := pending.New()
	gate := make(chan struct{})
	sink := &recordingSink{gate: gate}
	s := NewSupervisor(p, sink)
	appendRegion(p, "a")
	appendRegion(p, "b")
	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return s.State() == Draining }, 2*time.Second, time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(context.Background()) }()
	select {
	case <-stopped:
		t.Fatal("stop returned while batch in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(gate)
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after batch")
	}
	assert.Equal(t, []string{"a", "b"}, sink.names())
	assert.Equal(t, Stopped, s.State())
}

func TestWorker_ParentContextCancelStops(t *testing.T) {
	s := NewSupervisor(pending.New(), &recordingSink{})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()
	assert.Eventually(t, func() bool { return s.State() == Stopped }, 2*time.Second, 5*time.Millisecond)
}

// 并发追加期间持续排空：每个区域恰好写入一次
func TestWorker_ConcurrentAppendsPersistedExactlyOnce(t *testing.T) {
	p := pending.New()
	sink := &recordingSink{}
	s := NewSupervisor(p, sink)
	require.NoError(t, s.Start(context.Background()))

	const writers, per = 8, 100
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				appendRegion(p, fmt.Sprintf("%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()
	assert.Eventually(t, func() bool { return len(sink.names()) == writers*per }, 5*time.Second, 5*time.Millisecond)
	stopSupervisor(t, s)

	seen := map[string]int{}
	for _, n := range sink.names() {
		seen[n]++
	}
	assert.Len(t, seen, writers*per)
	for n, c := range seen {
		assert.Equal(t, 1, c, n)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "draining", Draining.String())
	assert.Equal(t, "stopped", Stopped.String())
}
