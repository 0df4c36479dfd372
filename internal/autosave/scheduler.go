package autosave

import "time"

// CancelFunc stops a scheduled call. Calling it after the call ran is a no-op.
type CancelFunc func()

// Scheduler runs fn once after d unless cancelled first.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) CancelFunc
}

// TimerScheduler is the time.AfterFunc-backed Scheduler.
type TimerScheduler struct{}

// Schedule implements Scheduler.
func (TimerScheduler) Schedule(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
