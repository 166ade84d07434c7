package digest

import "time"

// clockNow is a test hook for debounce arithmetic.
var clockNow = time.Now
