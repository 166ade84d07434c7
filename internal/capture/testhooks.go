package capture

import "time"

// Pacing hooks, overridden in tests to avoid real-time sleeps.
var (
	clockNow   = time.Now
	sleepUntil = func(due time.Time) {
		if remaining := time.Until(due); remaining > 0 {
			time.Sleep(remaining)
		}
	}
)
