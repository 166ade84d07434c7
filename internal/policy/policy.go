package policy

import (
	"context"
	"errors"
	"log/slog"

	"vignette/internal/logging"
	"vignette/internal/queue"
	"vignette/internal/review"
	"vignette/internal/services"
)

var (
	errMissingTenant = errors.New("event missing tenant id")
	errMissingType   = errors.New("event missing type")
)

// Decision is the outcome of evaluating one event against one channel's
// timing policy.
type Decision int

const (
	// Drop discards the event for this channel with no record.
	Drop Decision = iota
	// Deliver sends the event immediately through the router.
	Deliver
	// Enqueue stores the event for a later digest flush.
	Enqueue
)

func (d Decision) String() string {
	switch d {
	case Deliver:
		return "deliver"
	case Enqueue:
		return "enqueue"
	default:
		return "drop"
	}
}

// majorEvents are delivered immediately under the major policy and dropped
// otherwise; hybrid adds mentions to the immediate set.
var majorEvents = map[string]bool{
	EventStatusChange:  true,
	EventVersionUpload: true,
	EventProjectCreate: true,
}

// Decide maps a timing policy and event type to a decision. Stateless; tenant
// configuration is read-only input.
func Decide(policy review.TimingPolicy, eventType string) Decision {
	switch policy {
	case review.PolicyRealtime:
		return Deliver
	case review.PolicyMajor:
		if majorEvents[eventType] {
			return Deliver
		}
		return Drop
	case review.PolicyHybrid:
		if majorEvents[eventType] || eventType == EventMention {
			return Deliver
		}
		return Enqueue
	default:
		return Enqueue
	}
}

// Deliverer sends a single event immediately on the channel bindings whose
// policy chose immediate delivery. The delivery router implements this and
// applies role and project matching within the given bindings.
type Deliverer interface {
	DeliverNow(ctx context.Context, tenant *review.TenantDigestConfig, bindings []review.ChannelBinding, event *Event) error
}

// Engine evaluates incoming events against every channel binding of the
// owning tenant. Bindings decide independently, so one event can be sent
// immediately on a realtime channel and queued for a grouped one.
type Engine struct {
	store     *queue.Store
	tenants   review.TenantSource
	deliverer Deliverer
	logger    *slog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(store *queue.Store, tenants review.TenantSource, deliverer Deliverer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		store:     store,
		tenants:   tenants,
		deliverer: deliverer,
		logger:    logger.With(logging.String(logging.FieldComponent, "policy")),
	}
}

// HandleEvent routes one event. Unknown tenants drop the event with a log
// line; delivery failures are swallowed by the router. Queue failures are
// returned so the caller can leave the source file in the spool.
func (e *Engine) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return services.Wrap(services.ErrValidation, "policy", "handle", "nil event", nil)
	}

	tenant, err := e.tenants.TenantConfig(ctx, event.TenantID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			e.logger.Warn("event for unconfigured tenant dropped",
				logging.String(logging.FieldTenant, event.TenantID),
				logging.String(logging.FieldEventType, event.Type))
			return nil
		}
		return err
	}

	var deliverBindings []review.ChannelBinding
	enqueued := make(map[review.ChannelKind]bool, 2)
	for _, binding := range tenant.Bindings {
		decision := Decide(binding.EffectivePolicy(tenant.Policy), event.Type)
		e.logger.Debug("policy decision",
			logging.String(logging.FieldTenant, tenant.TenantID),
			logging.String(logging.FieldChannel, binding.Name),
			logging.String(logging.FieldEventType, event.Type),
			logging.String("decision", decision.String()))

		switch decision {
		case Deliver:
			deliverBindings = append(deliverBindings, binding)
		case Enqueue:
			if enqueued[binding.Kind] {
				continue
			}
			enqueued[binding.Kind] = true
			payload, err := event.Encode()
			if err != nil {
				return services.Wrap(services.ErrValidation, "policy", "encode", "encode event payload", err)
			}
			if _, err := e.store.Enqueue(ctx, &queue.Item{
				TenantID:    tenant.TenantID,
				Kind:        binding.Kind,
				EventType:   event.Type,
				PayloadJSON: payload,
				CreatedAt:   event.CreatedAt,
			}); err != nil {
				return err
			}
		}
	}

	if len(deliverBindings) > 0 && e.deliverer != nil {
		if err := e.deliverer.DeliverNow(ctx, tenant, deliverBindings, event); err != nil {
			e.logger.Error("immediate delivery failed",
				logging.String(logging.FieldTenant, tenant.TenantID),
				logging.String(logging.FieldEventType, event.Type),
				logging.String(logging.FieldErrorHint, "event was delivered to no realtime channel"),
				logging.Error(err))
		}
	}
	return nil
}
