package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistkit/scout/pkg/config"
)

type fakeRetentionStore struct {
	mu       sync.Mutex
	urlRuns  int
	taskRuns int
	partRuns int
	taskAge  time.Duration
	err      error
}

func (f *fakeRetentionStore) DeleteExpiredURLs(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urlRuns++
	return 2, f.err
}

func (f *fakeRetentionStore) DeleteOldTasks(_ context.Context, age time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskRuns++
	f.taskAge = age
	return 1, f.err
}

func (f *fakeRetentionStore) DeleteStalePartialFindings(context.Context, time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partRuns++
	return 0, f.err
}

func (f *fakeRetentionStore) runs() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.urlRuns, f.taskRuns, f.partRuns
}

type fakePruner struct {
	mu     sync.Mutex
	pruned int
	idle   time.Duration
}

func (f *fakePruner) PruneInactive(idle time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruned++
	f.idle = idle
	return 3
}

func testRetentionConfig() *config.RetentionConfig {
	return &config.RetentionConfig{
		Interval:          config.Duration(20 * time.Millisecond),
		TaskAge:           config.Duration(7 * 24 * time.Hour),
		PartialFindingAge: config.Duration(24 * time.Hour),
	}
}

func TestService_RunsAllPassesOnStart(t *testing.T) {
	st := &fakeRetentionStore{}
	pruner := &fakePruner{}
	svc := NewService(testRetentionConfig(), st, pruner, time.Hour)

	svc.Start(context.Background())
	defer svc.Stop()

	require.Eventually(t, func() bool {
		urls, tasks, parts := st.runs()
		return urls >= 1 && tasks >= 1 && parts >= 1
	}, time.Second, 5*time.Millisecond)

	pruner.mu.Lock()
	defer pruner.mu.Unlock()
	assert.GreaterOrEqual(t, pruner.pruned, 1)
	assert.Equal(t, time.Hour, pruner.idle)

	st.mu.Lock()
	defer st.mu.Unlock()
	assert.Equal(t, 7*24*time.Hour, st.taskAge)
}

func TestService_TicksRepeatedly(t *testing.T) {
	st := &fakeRetentionStore{}
	svc := NewService(testRetentionConfig(), st, nil, 0)

	svc.Start(context.Background())
	defer svc.Stop()

	require.Eventually(t, func() bool {
		urls, _, _ := st.runs()
		return urls >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestService_StoreErrorsDoNotStopLoop(t *testing.T) {
	st := &fakeRetentionStore{err: errors.New("db locked")}
	svc := NewService(testRetentionConfig(), st, nil, 0)

	svc.Start(context.Background())
	defer svc.Stop()

	require.Eventually(t, func() bool {
		urls, tasks, _ := st.runs()
		return urls >= 2 && tasks >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestService_StopWaitsAndIsIdempotent(t *testing.T) {
	st := &fakeRetentionStore{}
	svc := NewService(testRetentionConfig(), st, nil, 0)

	svc.Start(context.Background())
	svc.Stop()

	urls, _, _ := st.runs()
	time.Sleep(50 * time.Millisecond)
	urlsAfter, _, _ := st.runs()
	assert.Equal(t, urls, urlsAfter)
}

func TestService_StopBeforeStart(t *testing.T) {
	svc := NewService(testRetentionConfig(), &fakeRetentionStore{}, nil, 0)
	assert.NotPanics(t, svc.Stop)
}
