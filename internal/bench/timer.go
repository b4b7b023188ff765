package bench

import (
	"fmt"
	"time"
)

// Timer measures one stage execution.
type Timer struct {
	start    time.Time
	stage    Stage
	duration time.Duration
	rec      *Recorder
}

// Stop stops the timer, records the duration and returns it.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	t.rec.Observe(t.stage, t.duration)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Stage returns the timed stage.
func (t *Timer) Stage() Stage {
	return t.stage
}

func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.stage, t.duration)
}
