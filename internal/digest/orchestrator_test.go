package digest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vignette/internal/capture"
	"vignette/internal/config"
	"vignette/internal/delivery"
	"vignette/internal/encoding"
	"vignette/internal/logging"
	"vignette/internal/policy"
	"vignette/internal/queue"
	"vignette/internal/render"
	"vignette/internal/review"
	"vignette/internal/testsupport"
)

const groupedTenants = `
[[tenant]]
id = "studio-a"
policy = "grouped"

[[tenant.channel]]
name = "team"
kind = "discord"
target = "https://example.test/hook"
`

type recordedDelivery struct {
	tenantID  string
	kind      review.ChannelKind
	projectID string
	msg       delivery.Message
}

type fakeDeliverer struct {
	mu         sync.Mutex
	deliveries []recordedDelivery
	onDeliver  func()
}

func (f *fakeDeliverer) DeliverDigest(_ context.Context, tenant *review.TenantDigestConfig, kind review.ChannelKind, projectID string, msg delivery.Message) {
	if f.onDeliver != nil {
		f.onDeliver()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, recordedDelivery{tenantID: tenant.TenantID, kind: kind, projectID: projectID, msg: msg})
}

func (f *fakeDeliverer) LinkBase() string { return "https://review.example.test" }

func (f *fakeDeliverer) all() []recordedDelivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedDelivery, len(f.deliveries))
	copy(out, f.deliveries)
	return out
}

func enqueueComment(t *testing.T, store *queue.Store, tenantID, projectID, author, content string, ts *float64, createdAt time.Time) {
	t.Helper()
	payload, err := json.Marshal(policy.CommentPayload{AuthorName: author, Content: content, Timestamp: ts})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	event := &policy.Event{
		Version:   1,
		Type:      policy.EventCommentCreate,
		TenantID:  tenantID,
		ProjectID: projectID,
		AssetID:   "asset-1",
		CreatedAt: createdAt,
		Payload:   payload,
	}
	encoded, err := event.Encode()
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}
	if _, err := store.Enqueue(context.Background(), &queue.Item{
		TenantID:    tenantID,
		Kind:        review.ChannelDiscord,
		EventType:   event.Type,
		PayloadJSON: encoded,
		CreatedAt:   createdAt,
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
}

func fixedClock(t *testing.T, now time.Time) {
	t.Helper()
	prev := clockNow
	clockNow = func() time.Time { return now }
	t.Cleanup(func() { clockNow = prev })
}

func newOrchestrator(t *testing.T, cfg *config.Config, store *queue.Store, deliverer Deliverer, sessions *render.Manager) *Orchestrator {
	t.Helper()
	return New(
		cfg,
		store,
		review.NewFileTenantSource(cfg.Paths.TenantsFile),
		review.NewDirStore(cfg.Paths.ReviewDir),
		sessions,
		capture.New(cfg, logging.NewNop()),
		encoding.New(cfg, logging.NewNop()),
		deliverer,
		logging.NewNop(),
	)
}

func tenantConfig(t *testing.T, cfg *config.Config, tenantID string) *review.TenantDigestConfig {
	t.Helper()
	tenant, err := review.NewFileTenantSource(cfg.Paths.TenantsFile).TenantConfig(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("tenant config: %v", err)
	}
	return tenant
}

func TestFlushDeliversAggregatedMessageAndDrainsQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTenantsFile(groupedTenants))
	store := testsupport.MustOpenStore(t, cfg)
	deliverer := &fakeDeliverer{}
	orch := newOrchestrator(t, cfg, store, deliverer, nil)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(t, now)
	enqueueComment(t, store, "studio-a", "alpha", "mira", "tighten the silhouette", nil, now.Add(-10*time.Minute))
	enqueueComment(t, store, "studio-a", "alpha", "joss", "approved from my side", nil, now.Add(-9*time.Minute))

	if err := orch.FlushTenant(context.Background(), tenantConfig(t, cfg, "studio-a"), false); err != nil {
		t.Fatalf("FlushTenant: %v", err)
	}

	deliveries := deliverer.all()
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 digest delivery, got %d", len(deliveries))
	}
	got := deliveries[0]
	if got.kind != review.ChannelDiscord || got.projectID != "alpha" {
		t.Fatalf("unexpected delivery: %+v", got)
	}
	if !strings.Contains(got.msg.Body, "mira: tighten the silhouette") || !strings.Contains(got.msg.Body, "joss: approved from my side") {
		t.Fatalf("expected both comments in digest body:\n%s", got.msg.Body)
	}
	if got.msg.ArtifactPath != "" || len(got.msg.StillPaths) != 0 {
		t.Fatalf("expected text-only digest without review assets, got %+v", got.msg)
	}

	items, err := store.ListAll(context.Background(), "studio-a", review.ChannelDiscord)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected drained queue, got %d items", len(items))
	}
}

func TestFlushHonorsDebounceWindow(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTenantsFile(groupedTenants))
	store := testsupport.MustOpenStore(t, cfg)
	deliverer := &fakeDeliverer{}
	orch := newOrchestrator(t, cfg, store, deliverer, nil)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(t, now)
	// Newest activity 2 minutes ago with the default 5-minute window.
	enqueueComment(t, store, "studio-a", "alpha", "mira", "still iterating", nil, now.Add(-2*time.Minute))

	tenant := tenantConfig(t, cfg, "studio-a")
	if err := orch.FlushTenant(context.Background(), tenant, false); err != nil {
		t.Fatalf("FlushTenant: %v", err)
	}
	if len(deliverer.all()) != 0 {
		t.Fatal("expected no delivery while inside the debounce window")
	}
	items, err := store.ListAll(context.Background(), "studio-a", review.ChannelDiscord)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected queue untouched, got %d items", len(items))
	}

	// A forced flush bypasses the window.
	if err := orch.FlushTenant(context.Background(), tenant, true); err != nil {
		t.Fatalf("forced FlushTenant: %v", err)
	}
	if len(deliverer.all()) != 1 {
		t.Fatal("expected forced flush to deliver")
	}
}

func TestFlushSkipsWhenTenantLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTenantsFile(groupedTenants))
	store := testsupport.MustOpenStore(t, cfg)
	deliverer := &fakeDeliverer{}
	orch := newOrchestrator(t, cfg, store, deliverer, nil)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(t, now)
	enqueueComment(t, store, "studio-a", "alpha", "mira", "note", nil, now.Add(-10*time.Minute))

	if !orch.Locks().TryAcquire("studio-a") {
		t.Fatal("setup: lock acquire failed")
	}
	defer orch.Locks().Release("studio-a")

	if err := orch.FlushTenant(context.Background(), tenantConfig(t, cfg, "studio-a"), true); err != nil {
		t.Fatalf("expected locked tenant to skip without error, got %v", err)
	}
	if len(deliverer.all()) != 0 {
		t.Fatal("expected no delivery while tenant is locked")
	}
}

func TestConcurrentFlushesNeverOverlap(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTenantsFile(groupedTenants))
	store := testsupport.MustOpenStore(t, cfg)

	var mu sync.Mutex
	var active, maxActive int
	deliverer := &fakeDeliverer{}
	deliverer.onDeliver = func() {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	}
	orch := newOrchestrator(t, cfg, store, deliverer, nil)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(t, now)

	tenant := tenantConfig(t, cfg, "studio-a")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		enqueueComment(t, store, "studio-a", "alpha", "mira", "note", nil, now.Add(-10*time.Minute))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := orch.FlushTenant(context.Background(), tenant, true); err != nil {
				t.Errorf("FlushTenant: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxActive > 1 {
		t.Fatalf("expected flushes for one tenant to serialize, saw %d concurrent", maxActive)
	}
}

type stubSession struct {
	mu       sync.Mutex
	captures []string
}

func (s *stubSession) LoadAsset(context.Context, review.AssetKind, string) error { return nil }
func (s *stubSession) ApplyState(context.Context, *float64, *review.CameraPose) error {
	return nil
}
func (s *stubSession) SetOverlay(context.Context, string, string, string, float64) error {
	return nil
}
func (s *stubSession) DrawAnnotation(context.Context, []review.Shape, float64) error { return nil }
func (s *stubSession) ClearOverlay(context.Context) error                            { return nil }
func (s *stubSession) Capture(_ context.Context, outPath string) error {
	s.mu.Lock()
	s.captures = append(s.captures, outPath)
	s.mu.Unlock()
	return os.WriteFile(outPath, []byte("png"), 0o644)
}
func (s *stubSession) Close() error { return nil }

type stubOpener struct {
	session *stubSession
}

func (o *stubOpener) Open(context.Context, int, int) (render.Session, error) {
	return o.session, nil
}

func writeAssetDescriptor(t *testing.T, cfg *config.Config, assetID string, kind review.AssetKind, comments int) {
	t.Helper()
	desc := map[string]any{
		"asset": review.AssetRef{ID: assetID, Kind: kind, FilePath: "/assets/" + assetID, TenantID: "studio-a", ProjectID: "alpha"},
	}
	var list []review.CommentEvent
	for i := 0; i < comments; i++ {
		list = append(list, review.CommentEvent{
			ID:         assetID + "-c" + string(rune('0'+i)),
			AuthorName: "mira",
			Content:    "frame note",
		})
	}
	desc["comments"] = list
	data, err := json.Marshal(desc)
	if err != nil {
		t.Fatalf("marshal descriptor: %v", err)
	}
	if err := os.MkdirAll(cfg.Paths.ReviewDir, 0o755); err != nil {
		t.Fatalf("mkdir review dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Paths.ReviewDir, assetID+".json"), data, 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
}

func TestFlushFallsBackToStillsWithoutTimestampedComments(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTenantsFile(groupedTenants))
	store := testsupport.MustOpenStore(t, cfg)
	// Six untimestamped comments on the subject asset: more than the still cap.
	writeAssetDescriptor(t, cfg, "asset-1", review.AssetImageSet, 6)

	session := &stubSession{}
	sessions := render.NewManager(cfg, &stubOpener{session: session}, logging.NewNop())
	deliverer := &fakeDeliverer{}
	orch := newOrchestrator(t, cfg, store, deliverer, sessions)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(t, now)
	enqueueComment(t, store, "studio-a", "alpha", "mira", "camera feels off", nil, now.Add(-10*time.Minute))

	if err := orch.FlushTenant(context.Background(), tenantConfig(t, cfg, "studio-a"), false); err != nil {
		t.Fatalf("FlushTenant: %v", err)
	}

	deliveries := deliverer.all()
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(deliveries))
	}
	msg := deliveries[0].msg
	if msg.ArtifactPath != "" {
		t.Fatalf("expected no artifact without timestamped comments, got %q", msg.ArtifactPath)
	}
	if len(msg.StillPaths) != cfg.Digest.MaxFallbackStills {
		t.Fatalf("expected stills capped at %d, got %d", cfg.Digest.MaxFallbackStills, len(msg.StillPaths))
	}
	for _, still := range msg.StillPaths {
		if _, err := os.Stat(still); err != nil {
			t.Fatalf("expected still on disk: %v", err)
		}
	}
}
