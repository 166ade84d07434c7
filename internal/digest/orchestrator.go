package digest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"vignette/internal/capture"
	"vignette/internal/config"
	"vignette/internal/delivery"
	"vignette/internal/encoding"
	"vignette/internal/logging"
	"vignette/internal/policy"
	"vignette/internal/queue"
	"vignette/internal/render"
	"vignette/internal/review"
	"vignette/internal/timeline"
)

// Deliverer is the router surface the orchestrator needs.
type Deliverer interface {
	DeliverDigest(ctx context.Context, tenant *review.TenantDigestConfig, kind review.ChannelKind, projectID string, msg delivery.Message)
	LinkBase() string
}

// Orchestrator drives digest flushes: it sweeps tenants with queued items,
// generates at most one visual artifact per flush, composes the aggregated
// message, and drains the flushed items.
type Orchestrator struct {
	cfg      *config.Config
	store    *queue.Store
	tenants  review.TenantSource
	assets   review.Store
	sessions *render.Manager
	capturer *capture.Capturer
	encoder  *encoding.Encoder
	router   Deliverer
	locks    *LockSet
	logger   *slog.Logger
}

// New builds an orchestrator over the given collaborators.
func New(
	cfg *config.Config,
	store *queue.Store,
	tenants review.TenantSource,
	assets review.Store,
	sessions *render.Manager,
	capturer *capture.Capturer,
	encoder *encoding.Encoder,
	router Deliverer,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		tenants:  tenants,
		assets:   assets,
		sessions: sessions,
		capturer: capturer,
		encoder:  encoder,
		router:   router,
		locks:    NewLockSet(),
		logger:   logger.With(logging.String(logging.FieldComponent, "digest")),
	}
}

// Locks exposes the flush lock set, used by manual flush commands to share
// mutual exclusion with the tickers.
func (o *Orchestrator) Locks() *LockSet {
	return o.locks
}

// Run drives the two flush schedules until the context is canceled: a
// debounce check for grouped tenants and an unconditional hourly pass for
// hourly tenants.
func (o *Orchestrator) Run(ctx context.Context) error {
	debounce := time.NewTicker(time.Duration(o.cfg.Digest.DebounceCheckInterval) * time.Second)
	defer debounce.Stop()
	hourly := time.NewTicker(time.Duration(o.cfg.Digest.HourlyInterval) * time.Second)
	defer hourly.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-debounce.C:
			o.RunTick(ctx, false)
		case <-hourly.C:
			o.RunTick(ctx, true)
		}
	}
}

// RunTick sweeps every tenant with queued items. Forced ticks bypass the
// debounce window, but only for hourly tenants; per-tenant failures are
// logged and isolated.
func (o *Orchestrator) RunTick(ctx context.Context, forced bool) {
	tenantIDs, err := o.store.PendingTenants(ctx)
	if err != nil {
		o.logger.Error("pending tenant sweep failed", logging.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		tenant, err := o.tenants.TenantConfig(ctx, tenantID)
		if err != nil {
			o.logger.Warn("skipping tenant without configuration",
				logging.String(logging.FieldTenant, tenantID),
				logging.Error(err))
			continue
		}
		force := forced && (tenant.HourlyEnabled || tenant.Policy == review.PolicyHourly)
		if err := o.FlushTenant(ctx, tenant, force); err != nil {
			o.logger.Error("tenant flush failed",
				logging.String(logging.FieldTenant, tenantID),
				logging.Error(err))
		}
	}
}

// FlushTenant runs one digest flush for the tenant. A concurrent flush of
// the same tenant is skipped without error; the debounce window applies
// unless forced.
func (o *Orchestrator) FlushTenant(ctx context.Context, tenant *review.TenantDigestConfig, forced bool) error {
	if !o.locks.TryAcquire(tenant.TenantID) {
		o.logger.Debug("flush already in progress, skipping",
			logging.String(logging.FieldTenant, tenant.TenantID))
		return nil
	}
	defer o.locks.Release(tenant.TenantID)

	kinds := []review.ChannelKind{review.ChannelDiscord, review.ChannelEmail}
	if !forced {
		silent, err := o.debounceSatisfied(ctx, tenant, kinds)
		if err != nil {
			return err
		}
		if !silent {
			return nil
		}
	}

	runID := uuid.NewString()
	logger := o.logger.With(logging.String(logging.FieldRunID, runID), logging.String(logging.FieldTenant, tenant.TenantID))

	// Collect the queued events per kind; the artifact and subject project
	// are shared by both channel kinds.
	perKind := make(map[review.ChannelKind][]queue.Item, len(kinds))
	var allEvents []*policy.Event
	for _, kind := range kinds {
		items, err := o.store.ListAll(ctx, tenant.TenantID, kind)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			continue
		}
		perKind[kind] = items
		if len(allEvents) == 0 {
			allEvents = decodeItems(items, logger)
		}
	}
	if len(perKind) == 0 {
		return nil
	}

	projectID := primaryProject(allEvents)
	artifact, stills := o.generateVisuals(ctx, tenant, projectID, runID, logger)

	for kind, items := range perKind {
		events := decodeItems(items, logger)
		msg := delivery.ComposeDigest(tenant.TenantID, events, o.router.LinkBase())
		msg.ArtifactPath = artifact
		if artifact == "" {
			msg.StillPaths = stills
		}
		o.router.DeliverDigest(ctx, tenant, kind, projectID, msg)

		// At-most-once: drain after the send attempt regardless of outcome.
		ids := make([]int64, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ID)
		}
		if err := o.store.DeleteByIDs(ctx, ids); err != nil {
			return err
		}
		attrs := []logging.Attr{
			logging.String(logging.FieldChannel, string(kind)),
			logging.Int("events", len(items)),
		}
		if artifact != "" {
			attrs = append(attrs, logging.String("artifact", filepath.Base(artifact)))
		} else if len(stills) > 0 {
			attrs = append(attrs, logging.Int("stills", len(stills)))
		}
		logger.Info("digest flushed", logging.Args(attrs...)...)
	}
	return nil
}

// debounceSatisfied reports whether the tenant has been silent for longer
// than its debounce window.
func (o *Orchestrator) debounceSatisfied(ctx context.Context, tenant *review.TenantDigestConfig, kinds []review.ChannelKind) (bool, error) {
	var newest time.Time
	for _, kind := range kinds {
		item, err := o.store.PeekNewest(ctx, tenant.TenantID, kind)
		if err != nil {
			return false, err
		}
		if item != nil && item.CreatedAt.After(newest) {
			newest = item.CreatedAt
		}
	}
	if newest.IsZero() {
		return false, nil
	}
	return clockNow().Sub(newest) > tenant.DebounceWindow(), nil
}

func decodeItems(items []queue.Item, logger *slog.Logger) []*policy.Event {
	events := make([]*policy.Event, 0, len(items))
	for _, item := range items {
		event, err := policy.DecodeEvent([]byte(item.PayloadJSON))
		if err != nil {
			logger.Warn("dropping undecodable queue item",
				logging.Int("item", int(item.ID)),
				logging.Error(err))
			continue
		}
		events = append(events, event)
	}
	return events
}

// primaryProject picks the project with the most timestamp-bearing comment
// events; ties resolve to the lexicographically smallest id.
func primaryProject(events []*policy.Event) string {
	counts := make(map[string]int)
	for _, event := range events {
		if event.ProjectID == "" {
			continue
		}
		if _, seen := counts[event.ProjectID]; !seen {
			counts[event.ProjectID] = 0
		}
		if event.Type == policy.EventCommentCreate && event.Comment().Timestamp != nil {
			counts[event.ProjectID]++
		}
	}
	projects := make([]string, 0, len(counts))
	for project := range counts {
		projects = append(projects, project)
	}
	sort.Strings(projects)

	best := ""
	bestCount := -1
	for _, project := range projects {
		if counts[project] > bestCount {
			best = project
			bestCount = counts[project]
		}
	}
	return best
}

// generateVisuals produces at most one encoded artifact for the digest, or
// up to the configured number of still screenshots when no artifact can be
// generated. Never both. All failures degrade to a text-only digest.
func (o *Orchestrator) generateVisuals(ctx context.Context, tenant *review.TenantDigestConfig, projectID, runID string, logger *slog.Logger) (string, []string) {
	if projectID == "" || o.sessions == nil {
		return "", nil
	}

	subject := o.selectSubject(ctx, projectID, logger)
	if subject == nil {
		return "", nil
	}
	logger = logger.With(logging.String(logging.FieldProject, projectID), logging.String(logging.FieldAsset, subject.ID))

	comments, err := o.assets.AssetComments(ctx, subject.ID)
	if err != nil {
		logger.Warn("comment lookup failed, text-only digest", logging.Error(err))
		return "", nil
	}

	session, release, err := o.sessions.Acquire(ctx)
	if err != nil {
		logger.Warn("render session unavailable, text-only digest", logging.Error(err))
		return "", nil
	}
	defer release()

	if err := session.LoadAsset(ctx, subject.Kind, subject.FilePath); err != nil {
		logger.Warn("asset load failed, text-only digest", logging.Error(err))
		return "", nil
	}

	if artifact := o.generateArtifact(ctx, session, comments, runID, logger); artifact != "" {
		return artifact, nil
	}
	return "", o.captureStills(ctx, session, comments, runID, logger)
}

// selectSubject picks the digest subject asset: ThreeD first, then Video,
// then the first image set.
func (o *Orchestrator) selectSubject(ctx context.Context, projectID string, logger *slog.Logger) *review.AssetRef {
	assets, err := o.assets.ProjectAssets(ctx, projectID)
	if err != nil {
		logger.Warn("asset lookup failed, text-only digest",
			logging.String(logging.FieldProject, projectID),
			logging.Error(err))
		return nil
	}
	for _, kind := range []review.AssetKind{review.AssetThreeD, review.AssetVideo, review.AssetImageSet} {
		for i := range assets {
			if assets[i].Kind == kind {
				return &assets[i]
			}
		}
	}
	return nil
}

func (o *Orchestrator) generateArtifact(ctx context.Context, session render.Session, comments []review.CommentEvent, runID string, logger *slog.Logger) string {
	frames := timeline.Build(comments, timeline.Config{
		FPS:          o.cfg.Timeline.FPS,
		TransitionMS: o.cfg.Timeline.TransitionMS,
		PauseMS:      o.cfg.Timeline.PauseMS,
	})
	if len(frames) == 0 {
		return ""
	}

	result, err := o.capturer.Run(ctx, session, frames)
	if err != nil {
		logger.Warn("frame capture failed, falling back to stills", logging.Error(err))
		return ""
	}

	format := encoding.ParseFormat(o.cfg.Encoder.Format)
	budget := o.cfg.Encoder.GIFBudgetBytes
	if format == encoding.FormatVideo {
		budget = o.cfg.Encoder.VideoBudgetBytes
	}
	outPath := filepath.Join(o.cfg.Paths.ArtifactDir, "digest-"+runID+encoding.Ext(format))
	artifact, err := o.encoder.Encode(ctx, result.FrameDir, result.FrameCount, o.cfg.Timeline.FPS, outPath, format, budget)
	if err != nil {
		logger.Warn("encode failed, falling back to stills", logging.Error(err))
		return ""
	}
	return artifact
}

// captureStills shoots one full-size screenshot per comment state, up to the
// configured cap.
func (o *Orchestrator) captureStills(ctx context.Context, session render.Session, comments []review.CommentEvent, runID string, logger *slog.Logger) []string {
	max := o.cfg.Digest.MaxFallbackStills
	if max <= 0 {
		return nil
	}
	if len(comments) > max {
		comments = comments[:max]
	}

	var stills []string
	for i, comment := range comments {
		if err := session.ApplyState(ctx, comment.Timestamp, comment.Camera); err != nil {
			logger.Warn("still state apply failed", logging.Error(err))
			continue
		}
		if len(comment.Annotation) > 0 {
			if err := session.DrawAnnotation(ctx, comment.Annotation, 1); err != nil {
				logger.Warn("still annotation failed", logging.Error(err))
			}
		}
		path := filepath.Join(o.cfg.Paths.ArtifactDir, fmt.Sprintf("still-%s-%d.png", runID, i))
		if err := session.Capture(ctx, path); err != nil {
			logger.Warn("still capture failed", logging.Error(err))
			continue
		}
		stills = append(stills, path)
		_ = session.ClearOverlay(ctx)
	}
	return stills
}
