package daemon_test

import (
	"context"
	"testing"

	"vignette/internal/capture"
	"vignette/internal/daemon"
	"vignette/internal/digest"
	"vignette/internal/encoding"
	"vignette/internal/ingest"
	"vignette/internal/logging"
	"vignette/internal/policy"
	"vignette/internal/review"
	"vignette/internal/testsupport"
)

const tenants = `
[[tenant]]
id = "studio-a"
policy = "grouped"

[[tenant.channel]]
name = "team"
kind = "discord"
target = "https://example.test/hook"
`

func newDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithTenantsFile(tenants))
	store := testsupport.MustOpenStore(t, cfg)
	source := review.NewFileTenantSource(cfg.Paths.TenantsFile)
	logger := logging.NewNop()

	orch := digest.New(cfg, store, source, review.NewDirStore(cfg.Paths.ReviewDir), nil,
		capture.New(cfg, logger), encoding.New(cfg, logger), nil, logger)
	watcher := ingest.New(cfg, policy.NewEngine(store, source, nil, logger), logger)

	d, err := daemon.New(cfg, store, orch, watcher, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newDaemon(t)
	defer d.Close()

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail while running")
	}
	d.Stop()

	// Restart after stop is allowed.
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	d.Stop()
}

func TestDaemonRequiresDependencies(t *testing.T) {
	if _, err := daemon.New(nil, nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
