package jobs

import (
	"log/slog"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
)

type Job interface {
	Run()
}

type CronJob interface {
	Schedule() string
	Job
}

// TaskExecutor runs cron jobs, never letting two runs of the same job
// overlap.
type TaskExecutor struct {
	cron    *cron.Cron
	jobs    []CronJob
	running mapset.Set[CronJob]
	mu      sync.Mutex
	logger  *slog.Logger
}

func NewTaskExecutor(jobs []CronJob, logger *slog.Logger) *TaskExecutor {
	return &TaskExecutor{
		cron:    cron.New(),
		jobs:    jobs,
		running: mapset.NewThreadUnsafeSet[CronJob](),
		logger:  logger,
	}
}

// Start schedules every job and starts the cron loop in its own goroutine.
func (t *TaskExecutor) Start() error {
	for _, job := range t.jobs {
		if err := t.cron.AddFunc(job.Schedule(), func() { t.runOnce(job) }); err != nil {
			t.logger.Error("failed to add task to cron", "schedule", job.Schedule(), "error", err)
			return err
		}
	}
	t.cron.Start()
	return nil
}

// runOnce runs job unless a previous run is still going.
func (t *TaskExecutor) runOnce(job CronJob) {
	t.mu.Lock()
	if t.running.Contains(job) {
		t.mu.Unlock()
		t.logger.Warn("task is still running, skipping this tick", "schedule", job.Schedule())
		return
	}
	t.running.Add(job)
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.running.Remove(job)
	}()

	job.Run()
}

func (t *TaskExecutor) Stop() {
	t.logger.Info("stopping all tasks")
	t.cron.Stop()
}
