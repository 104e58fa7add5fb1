package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/errsink/errsink/internal/store"
	"github.com/errsink/errsink/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type retentionStore struct {
	store.Store

	settings models.Settings
	cleaned  int64
	evicted  int64

	cleanupDays int
	evictMax    int
	cleanupErr  error
}

func (m *retentionStore) LoadSettings(_ context.Context) (models.Settings, error) {
	return m.settings, nil
}

func (m *retentionStore) CleanupOlderThan(_ context.Context, days int) (int64, error) {
	m.cleanupDays = days
	return m.cleaned, m.cleanupErr
}

func (m *retentionStore) EvictOverLimit(_ context.Context, maxEntries int) (int64, error) {
	m.evictMax = maxEntries
	return m.evicted, nil
}

type retentionCache struct {
	deleted []string
}

func (m *retentionCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	return nil
}
func (m *retentionCache) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, nil
}
func (m *retentionCache) Delete(_ context.Context, _ string) error { return nil }
func (m *retentionCache) DeletePrefix(_ context.Context, prefix string) error {
	m.deleted = append(m.deleted, prefix)
	return nil
}
func (m *retentionCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}
func (m *retentionCache) Ping(_ context.Context) error { return nil }
func (m *retentionCache) Close() error                 { return nil }

func TestRunOnceAgesAndEvicts(t *testing.T) {
	ms := &retentionStore{
		settings: models.Settings{AutoCleanupDays: 14, MaxLogEntries: 800},
		cleaned:  5,
		evicted:  2,
	}
	mc := &retentionCache{}

	job := NewJob(ms, mc, "", nil)
	require.NoError(t, job.RunOnce(context.Background()))

	assert.Equal(t, 14, ms.cleanupDays)
	assert.Equal(t, 800, ms.evictMax)
	assert.NotEmpty(t, mc.deleted, "removals must invalidate cached stats")
}

func TestRunOnceSkipsAgeCleanupWhenDisabled(t *testing.T) {
	ms := &retentionStore{
		settings: models.Settings{AutoCleanupDays: 0, MaxLogEntries: 800},
	}
	mc := &retentionCache{}

	job := NewJob(ms, mc, "", nil)
	require.NoError(t, job.RunOnce(context.Background()))

	assert.Zero(t, ms.cleanupDays, "zero cleanup days disables age-based deletion")
	assert.Equal(t, 800, ms.evictMax)
}

func TestRunOnceKeepsCacheWhenNothingRemoved(t *testing.T) {
	ms := &retentionStore{
		settings: models.Settings{AutoCleanupDays: 30, MaxLogEntries: 1000},
	}
	mc := &retentionCache{}

	job := NewJob(ms, mc, "", nil)
	require.NoError(t, job.RunOnce(context.Background()))

	assert.Empty(t, mc.deleted)
}

func TestRunOncePropagatesCleanupError(t *testing.T) {
	ms := &retentionStore{
		settings:   models.Settings{AutoCleanupDays: 30, MaxLogEntries: 1000},
		cleanupErr: errors.New("db gone"),
	}

	job := NewJob(ms, &retentionCache{}, "", nil)
	assert.Error(t, job.RunOnce(context.Background()))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	job := NewJob(&retentionStore{}, &retentionCache{}, "not a schedule", nil)
	assert.Error(t, job.Start())
}
