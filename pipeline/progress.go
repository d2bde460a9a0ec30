package pipeline

import (
	"log/slog"
	"time"

	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/status"
)

// Progress bands of the five stages.
const (
	extractStart = 0
	parseStart   = 20
	embedStart   = 40
	rankStart    = 80
	persistStart = 95
	fullProgress = 100
)

// BandProgress maps done of total items onto the band [start, end].
// The result saturates at both ends, so total <= 0 or done > total yield end.
func BandProgress(start, end, done, total int) int {
	if total <= 0 || done >= total {
		return end
	}
	if done <= 0 {
		return start
	}
	return start + (end-start)*done/total
}

// tracker publishes one job's status. It is owned by the goroutine running the
// job and never lets the reported progress go backwards.
type tracker struct {
	store  *status.Store
	job    *core.Job
	now    func() time.Time
	logger *slog.Logger
}

func newTracker(store *status.Store, job *core.Job, now func() time.Time, logger *slog.Logger) *tracker {
	return &tracker{store: store, job: job, now: now, logger: logger}
}

func (t *tracker) publish(state core.JobState, progress int, message string, result *core.ResultPayload) {
	if t.job.State.IsTerminal() {
		return
	}
	if progress < t.job.Progress {
		progress = t.job.Progress
	}
	if progress > fullProgress {
		progress = fullProgress
	}
	t.job.State = state
	t.job.Progress = progress
	t.job.Message = message
	t.job.UpdatedAt = t.now()
	if !t.store.Set(t.job.ID, state, progress, message, result) {
		t.logger.Debug("status write ignored", "state", state, "progress", progress)
	}
}

// step reports processing at progress.
func (t *tracker) step(progress int, message string) {
	t.publish(core.JobStateProcessing, progress, message, nil)
}

// band reports processing at done of total items within [start, end].
func (t *tracker) band(start, end, done, total int, message string) {
	t.step(BandProgress(start, end, done, total), message)
}

// fail moves the job to failed, keeping the last reported progress.
func (t *tracker) fail(message string) {
	t.publish(core.JobStateFailed, t.job.Progress, message, nil)
}

func (t *tracker) complete(message string, result *core.ResultPayload) {
	t.publish(core.JobStateCompleted, fullProgress, message, result)
}
