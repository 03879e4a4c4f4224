package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "infostore/internal/domain/models/infostore"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockingJob stays in Run until release is closed.
type blockingJob struct {
	mu      sync.Mutex
	runs    int
	started chan struct{}
	release chan struct{}
}

func (j *blockingJob) Schedule() string { return "@every 1h" }

func (j *blockingJob) Run() {
	j.mu.Lock()
	j.runs++
	j.mu.Unlock()
	j.started <- struct{}{}
	<-j.release
}

func TestTaskExecutor_SkipsOverlappingRuns(t *testing.T) {
	job := &blockingJob{started: make(chan struct{}, 1), release: make(chan struct{})}
	executor := NewTaskExecutor([]CronJob{job}, discard())

	done := make(chan struct{})
	go func() {
		executor.runOnce(job)
		close(done)
	}()
	<-job.started

	executor.runOnce(job) // returns at once, the first run still holds the job
	close(job.release)
	<-done

	job.mu.Lock()
	assert.Equal(t, 1, job.runs)
	job.mu.Unlock()

	// After the first run finished the job may run again.
	job.release = make(chan struct{})
	close(job.release)
	executor.runOnce(job)
	<-job.started
	assert.Equal(t, 2, job.runs)
}

type badSchedule struct{}

func (badSchedule) Schedule() string { return "not a schedule" }
func (badSchedule) Run()             {}

func TestTaskExecutor_StartRejectsBadSchedule(t *testing.T) {
	executor := NewTaskExecutor([]CronJob{badSchedule{}}, discard())
	assert.Error(t, executor.Start())
}

// sweepRecorder is a ReservationRepository that only sweeps.
type sweepRecorder struct {
	cutoff  time.Time
	removed int64
	err     error
}

func (r *sweepRecorder) Reserve(ctx context.Context, contextID, folderID int64, filename string, excludeID int64) (*models.Reservation, bool, error) {
	return nil, false, errors.New("not used")
}

func (r *sweepRecorder) Release(ctx context.Context, res *models.Reservation) {}

func (r *sweepRecorder) SweepExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.cutoff = cutoff
	return r.removed, r.err
}

func TestReservationSweeper_Sweep(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := &sweepRecorder{removed: 3}
	sweeper := NewReservationSweeper(repo, "@every 5m", 15*time.Minute, discard())
	sweeper.now = func() time.Time { return now }

	n, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, now.Add(-15*time.Minute), repo.cutoff)
	assert.Equal(t, "@every 5m", sweeper.Schedule())
}

func TestReservationSweeper_RunSwallowsErrors(t *testing.T) {
	repo := &sweepRecorder{err: errors.New("database is down")}
	sweeper := NewReservationSweeper(repo, "@every 5m", time.Minute, discard())

	assert.NotPanics(t, sweeper.Run)
	assert.False(t, repo.cutoff.IsZero())

	_, err := sweeper.Sweep(context.Background())
	assert.Error(t, err)
}
