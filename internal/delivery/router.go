package delivery

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"vignette/internal/config"
	"vignette/internal/logging"
	"vignette/internal/policy"
	"vignette/internal/review"
)

// Sender delivers one composed message to a channel target.
type Sender interface {
	Send(ctx context.Context, target string, msg Message) error
}

// Router resolves a tenant's channel bindings for an event or digest and
// dispatches to the kind-specific sender. Transport failures never propagate
// past the router.
type Router struct {
	senders  map[review.ChannelKind]Sender
	linkBase string
	logger   *slog.Logger
}

// NewRouter builds a router over explicit senders. Used directly by tests;
// production wiring goes through NewRouterFromConfig.
func NewRouter(senders map[review.ChannelKind]Sender, linkBase string, logger *slog.Logger) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Router{
		senders:  senders,
		linkBase: linkBase,
		logger:   logger.With(logging.String(logging.FieldComponent, "delivery")),
	}
}

// NewRouterFromConfig wires the webhook sender and, when enabled, the SES
// email sender. An email setup failure disables the channel with a log line
// rather than failing daemon startup.
func NewRouterFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	senders := map[review.ChannelKind]Sender{
		review.ChannelDiscord: NewWebhookSender(time.Duration(cfg.Delivery.RequestTimeout) * time.Second),
	}
	if cfg.Delivery.EmailEnabled {
		email, err := NewSESSender(ctx, cfg.Delivery.EmailRegion, cfg.Delivery.EmailFrom)
		if err != nil {
			logger.Error("email channel disabled",
				logging.String(logging.FieldComponent, "delivery"),
				logging.Error(err))
		} else {
			senders[review.ChannelEmail] = email
		}
	}
	return NewRouter(senders, cfg.Delivery.LinkBaseURL, logger)
}

// LinkBase returns the configured collaborator link base URL.
func (r *Router) LinkBase() string {
	return r.linkBase
}

// ResolveChannels selects the bindings a message reaches. Project-pinned
// bindings win outright for their project; otherwise global bindings plus
// role-filtered bindings whose roles intersect the project's roles or the
// event mentions; otherwise the default binding; otherwise none.
func ResolveChannels(bindings []review.ChannelBinding, projectID string, roles, mentions []string) []review.ChannelBinding {
	var pinned, matched, defaults []review.ChannelBinding
	for _, binding := range bindings {
		if binding.Default {
			defaults = append(defaults, binding)
		}
		switch {
		case binding.ProjectID != "":
			if binding.ProjectID == projectID {
				pinned = append(pinned, binding)
			}
		case len(binding.Roles) == 0:
			matched = append(matched, binding)
		case rolesIntersect(binding.Roles, roles) || rolesIntersect(binding.Roles, mentions):
			matched = append(matched, binding)
		}
	}
	if len(pinned) > 0 {
		return pinned
	}
	if len(matched) > 0 {
		return matched
	}
	if len(defaults) > 0 {
		return defaults[:1]
	}
	return nil
}

func rolesIntersect(roles, mentions []string) bool {
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		for _, mention := range mentions {
			if role == strings.ToLower(strings.TrimSpace(mention)) {
				return true
			}
		}
	}
	return false
}

// DeliverNow sends one event immediately on the bindings the policy engine
// selected, after role and project resolution within that set.
func (r *Router) DeliverNow(ctx context.Context, tenant *review.TenantDigestConfig, bindings []review.ChannelBinding, event *policy.Event) error {
	msg := ComposeEvent(event, r.linkBase)
	for _, binding := range ResolveChannels(bindings, event.ProjectID, tenant.RolesForProject(event.ProjectID), event.Mentions) {
		r.Send(ctx, tenant.TenantID, binding, msg)
	}
	return nil
}

// DeliverDigest sends a flush's composed message on every binding of the
// given kind that resolves for the digest's primary project.
func (r *Router) DeliverDigest(ctx context.Context, tenant *review.TenantDigestConfig, kind review.ChannelKind, projectID string, msg Message) {
	var kindBindings []review.ChannelBinding
	for _, binding := range tenant.Bindings {
		if binding.Kind == kind {
			kindBindings = append(kindBindings, binding)
		}
	}
	resolved := ResolveChannels(kindBindings, projectID, tenant.RolesForProject(projectID), nil)
	if len(resolved) == 0 {
		r.logger.Debug("no channel resolved for digest",
			logging.String(logging.FieldTenant, tenant.TenantID),
			logging.String(logging.FieldChannel, string(kind)))
		return
	}
	for _, binding := range resolved {
		r.Send(ctx, tenant.TenantID, binding, msg)
	}
}

// Send dispatches one message. Failures are logged with the tenant and
// channel and swallowed so a flaky transport never fails a flush.
func (r *Router) Send(ctx context.Context, tenantID string, binding review.ChannelBinding, msg Message) {
	sender, ok := r.senders[binding.Kind]
	if !ok {
		r.logger.Warn("no sender for channel kind",
			logging.String(logging.FieldTenant, tenantID),
			logging.String(logging.FieldChannel, binding.Name),
			logging.String("kind", string(binding.Kind)))
		return
	}
	if err := sender.Send(ctx, binding.Target, msg); err != nil {
		r.logger.Error("delivery failed",
			logging.String(logging.FieldTenant, tenantID),
			logging.String(logging.FieldChannel, binding.Name),
			logging.String("kind", string(binding.Kind)),
			logging.Error(err))
	}
}
