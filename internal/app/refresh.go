package app

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
)

// refreshTimer owns the periodic refresh job. At most one job exists, and it is
// bound to the location key it was armed for. Only the loop goroutine touches it.
type refreshTimer struct {
	scheduler *gocron.Scheduler
	interval  time.Duration
	job       *gocron.Job
	key       string
}

func newRefreshTimer(interval time.Duration) *refreshTimer {
	s := gocron.NewScheduler(time.UTC)
	s.StartAsync()
	return &refreshTimer{scheduler: s, interval: interval}
}

// arm schedules fire every interval for key. Re-arming the same key keeps the
// existing job; a different key replaces it.
func (t *refreshTimer) arm(key string, fire func()) error {
	if t.job != nil && t.key == key {
		return nil
	}
	t.disarm()

	job, err := t.scheduler.Every(t.interval).WaitForSchedule().Do(fire)
	if err != nil {
		return fmt.Errorf("scheduling refresh for %s: %w", key, err)
	}
	t.job = job
	t.key = key
	return nil
}

func (t *refreshTimer) disarm() {
	if t.job == nil {
		return
	}
	t.scheduler.RemoveByReference(t.job)
	t.job = nil
	t.key = ""
}

// armedFor returns the key of the active job, or "" when none is armed.
func (t *refreshTimer) armedFor() string { return t.key }

func (t *refreshTimer) stop() {
	t.disarm()
	t.scheduler.Stop()
}
