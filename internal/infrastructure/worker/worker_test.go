package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

var testNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type mockSweeper struct {
	listDueFunc func(ctx context.Context, now time.Time, limit int) ([]*entity.EscalationPath, error)
	processFunc func(ctx context.Context, pathID int64, now time.Time) (*entity.EscalationPath, error)

	mu        sync.Mutex
	processed []int64
}

func (m *mockSweeper) ListDueEscalations(ctx context.Context, now time.Time, limit int) ([]*entity.EscalationPath, error) {
	return m.listDueFunc(ctx, now, limit)
}

func (m *mockSweeper) ProcessEscalationTimeout(ctx context.Context, pathID int64, now time.Time) (*entity.EscalationPath, error) {
	m.mu.Lock()
	m.processed = append(m.processed, pathID)
	m.mu.Unlock()
	return m.processFunc(ctx, pathID, now)
}

func TestEscalationTimeoutWorker_RunOnce(t *testing.T) {
	var gotLimit int
	var gotNow time.Time
	sweeper := &mockSweeper{
		listDueFunc: func(_ context.Context, now time.Time, limit int) ([]*entity.EscalationPath, error) {
			gotNow, gotLimit = now, limit
			return []*entity.EscalationPath{
				{ID: 1, ApprovalRecordID: 10, Level: entity.EscalationLevelManager},
				{ID: 2, ApprovalRecordID: 11, Level: entity.EscalationLevelDirector},
				{ID: 3, ApprovalRecordID: 12, Level: entity.EscalationLevelBoard},
			}, nil
		},
		processFunc: func(_ context.Context, pathID int64, _ time.Time) (*entity.EscalationPath, error) {
			if pathID == 2 {
				return nil, errors.New("database is locked")
			}
			return &entity.EscalationPath{ID: pathID + 100, Level: entity.EscalationLevelBoard}, nil
		},
	}

	w := NewEscalationTimeoutWorker(sweeper, time.Minute, 25, zap.NewNop())
	w.now = func() time.Time { return testNow }

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 25, gotLimit)
	assert.True(t, gotNow.Equal(testNow))
	assert.Equal(t, []int64{1, 2, 3}, sweeper.processed)
}

func TestEscalationTimeoutWorker_RunOnce_ListError(t *testing.T) {
	boom := errors.New("boom")
	sweeper := &mockSweeper{
		listDueFunc: func(context.Context, time.Time, int) ([]*entity.EscalationPath, error) {
			return nil, boom
		},
	}

	w := NewEscalationTimeoutWorker(sweeper, time.Minute, 0, zap.NewNop())
	assert.Equal(t, 50, w.batchSize)

	_, err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, sweeper.processed)
}

func TestEscalationTimeoutWorker_StartStop(t *testing.T) {
	var sweeps atomic.Int32
	sweeper := &mockSweeper{
		listDueFunc: func(context.Context, time.Time, int) ([]*entity.EscalationPath, error) {
			sweeps.Add(1)
			return nil, nil
		},
	}

	w := NewEscalationTimeoutWorker(sweeper, 10*time.Millisecond, 10, zap.NewNop())
	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))

	assert.Eventually(t, func() bool { return sweeps.Load() >= 2 }, time.Second, 5*time.Millisecond)
	w.Stop()
	w.Stop()

	after := sweeps.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, sweeps.Load())
}

type mockDispatcher struct {
	mu      sync.Mutex
	batches []int
	results []int
	err     error
}

func (m *mockDispatcher) DispatchPending(_ context.Context, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, limit)
	if m.err != nil {
		return 0, m.err
	}
	if len(m.results) == 0 {
		return 0, nil
	}
	n := m.results[0]
	m.results = m.results[1:]
	return n, nil
}

func TestNotificationDispatchWorker_DrainsFullBatches(t *testing.T) {
	d := &mockDispatcher{results: []int{5, 5, 2}}
	w := NewNotificationDispatchWorker(d, time.Minute, 5, zap.NewNop())

	w.drain(context.Background())
	assert.Equal(t, []int{5, 5, 5}, d.batches)
}

func TestNotificationDispatchWorker_StopsOnError(t *testing.T) {
	d := &mockDispatcher{err: errors.New("outbox unavailable")}
	w := NewNotificationDispatchWorker(d, time.Minute, 0, zap.NewNop())

	w.drain(context.Background())
	assert.Equal(t, []int{100}, d.batches)
}

type fakeWorker struct {
	name     string
	startErr error
	log      *[]string
}

func (f *fakeWorker) Start(context.Context) error {
	*f.log = append(*f.log, "start:"+f.name)
	return f.startErr
}

func (f *fakeWorker) Stop() { *f.log = append(*f.log, "stop:"+f.name) }

func (f *fakeWorker) Name() string { return f.name }

func TestManager_StartAllStopAll(t *testing.T) {
	var log []string
	m := NewManager(zap.NewNop())
	m.Register(&fakeWorker{name: "a", log: &log})
	m.Register(&fakeWorker{name: "b", log: &log})
	assert.Equal(t, 2, m.Count())

	require.NoError(t, m.StartAll(context.Background()))
	m.StopAll()
	assert.Equal(t, []string{"start:a", "start:b", "stop:b", "stop:a"}, log)
}

func TestManager_StartAll_RollsBackOnFailure(t *testing.T) {
	var log []string
	m := NewManager(zap.NewNop())
	m.Register(&fakeWorker{name: "a", log: &log})
	m.Register(&fakeWorker{name: "b", log: &log, startErr: errors.New("bad interval")})
	m.Register(&fakeWorker{name: "c", log: &log})

	err := m.StartAll(context.Background())
	assert.ErrorContains(t, err, "bad interval")
	assert.Equal(t, []string{"start:a", "start:b", "stop:a"}, log)
}

func TestManager_StopAllOnlyStopsRunning(t *testing.T) {
	var log []string
	m := NewManager(zap.NewNop())
	m.Register(&fakeWorker{name: "a", log: &log})

	m.StopAll()
	assert.Empty(t, log)

	require.NoError(t, m.StartAll(context.Background()))
	require.NoError(t, m.StartAll(context.Background()))
	m.StopAll()
	m.StopAll()
	assert.Equal(t, []string{"start:a", "stop:a"}, log)
}
