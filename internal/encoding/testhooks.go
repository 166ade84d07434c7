package encoding

import (
	"context"
	"os/exec"
	"time"
)

// Hooks overridden in tests to stub the external encoder and cleanup timing.
var (
	runFFmpeg = func(ctx context.Context, binary string, args []string) ([]byte, error) {
		cmd := exec.CommandContext(ctx, binary, args...)
		return cmd.CombinedOutput()
	}
	cleanupWait = func() { time.Sleep(500 * time.Millisecond) }
)
