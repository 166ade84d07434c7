package review

import (
	"strings"
	"time"
)

// AssetKind classifies a reviewable asset.
type AssetKind string

const (
	AssetVideo    AssetKind = "video"
	AssetThreeD   AssetKind = "3d"
	AssetImageSet AssetKind = "imageset"
)

// ParseAssetKind normalizes a stored kind string, defaulting to imageset.
func ParseAssetKind(value string) AssetKind {
	switch AssetKind(strings.ToLower(strings.TrimSpace(value))) {
	case AssetVideo:
		return AssetVideo
	case AssetThreeD:
		return AssetThreeD
	default:
		return AssetImageSet
	}
}

// AssetRef identifies one reviewable asset. Immutable once resolved for a
// digest run; owned by the external project store.
type AssetRef struct {
	ID        string    `json:"id"`
	Kind      AssetKind `json:"kind"`
	FilePath  string    `json:"file_path"`
	TenantID  string    `json:"tenant_id"`
	ProjectID string    `json:"project_id"`
}

// CameraPose describes a 3D viewport state. All fields are interpolable
// scalars.
type CameraPose struct {
	OrbitTheta  float64 `json:"orbit_theta"`
	OrbitPhi    float64 `json:"orbit_phi"`
	OrbitRadius float64 `json:"orbit_radius"`
	TargetX     float64 `json:"target_x"`
	TargetY     float64 `json:"target_y"`
	TargetZ     float64 `json:"target_z"`
	FOV         float64 `json:"fov"`
}

// Point is a 2D annotation coordinate in normalized viewport space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Shape is a single drawn annotation element.
type Shape struct {
	Kind      string  `json:"kind"`
	Points    []Point `json:"points"`
	Color     string  `json:"color"`
	Thickness float64 `json:"thickness"`
}

// CommentEvent is one review comment as produced by the collaborator layer.
// A nil Timestamp excludes the comment from replay-video eligibility but not
// from text-digest inclusion.
type CommentEvent struct {
	ID               string      `json:"id"`
	TenantID         string      `json:"tenant_id"`
	ProjectID        string      `json:"project_id"`
	AssetID          string      `json:"asset_id"`
	Timestamp        *float64    `json:"timestamp,omitempty"`
	Camera           *CameraPose `json:"camera,omitempty"`
	Annotation       []Shape     `json:"annotation,omitempty"`
	AuthorName       string      `json:"author_name"`
	AuthorAvatarPath string      `json:"author_avatar_path,omitempty"`
	Content          string      `json:"content"`
	CreatedAt        time.Time   `json:"created_at"`
}

// HasTimestamp reports whether the comment is eligible for the replay timeline.
func (c CommentEvent) HasTimestamp() bool {
	return c.Timestamp != nil
}

// TimingPolicy selects when events for a channel are delivered.
type TimingPolicy string

const (
	PolicyRealtime TimingPolicy = "realtime"
	PolicyMajor    TimingPolicy = "major"
	PolicyHybrid   TimingPolicy = "hybrid"
	PolicyGrouped  TimingPolicy = "grouped"
	PolicyHourly   TimingPolicy = "hourly"
)

// ParseTimingPolicy normalizes a policy string, defaulting to grouped.
func ParseTimingPolicy(value string) TimingPolicy {
	switch TimingPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case PolicyRealtime:
		return PolicyRealtime
	case PolicyMajor:
		return PolicyMajor
	case PolicyHybrid:
		return PolicyHybrid
	case PolicyHourly:
		return PolicyHourly
	default:
		return PolicyGrouped
	}
}

// ChannelKind identifies the transport of a channel binding.
type ChannelKind string

const (
	ChannelDiscord ChannelKind = "discord"
	ChannelEmail   ChannelKind = "email"
)

// ChannelBinding connects a tenant to one delivery target. An empty Roles
// slice makes the channel global. A non-empty ProjectID pins the channel to a
// single project and overrides role matching for that project's events. Policy
// overrides the tenant-level timing policy when set.
type ChannelBinding struct {
	Name      string       `toml:"name" json:"name"`
	Kind      ChannelKind  `toml:"kind" json:"kind"`
	Target    string       `toml:"target" json:"target"`
	Roles     []string     `toml:"roles" json:"roles,omitempty"`
	ProjectID string       `toml:"project" json:"project_id,omitempty"`
	Policy    TimingPolicy `toml:"policy" json:"policy,omitempty"`
	Default   bool         `toml:"default" json:"default,omitempty"`
}

// EffectivePolicy resolves the binding's timing policy against the tenant's.
func (b ChannelBinding) EffectivePolicy(tenant TimingPolicy) TimingPolicy {
	if strings.TrimSpace(string(b.Policy)) == "" {
		return tenant
	}
	return ParseTimingPolicy(string(b.Policy))
}

// ProjectRoleSet names the review roles attached to one project's team.
// Role-filtered channel bindings match against these in addition to event
// @mentions.
type ProjectRoleSet struct {
	ProjectID string   `toml:"project"`
	Roles     []string `toml:"roles"`
}

// TenantDigestConfig is the read-only per-tenant batching configuration.
type TenantDigestConfig struct {
	TenantID              string           `toml:"id"`
	Policy                TimingPolicy     `toml:"policy"`
	DebounceWindowSeconds int              `toml:"debounce_window_seconds"`
	HourlyEnabled         bool             `toml:"hourly"`
	ProjectRoles          []ProjectRoleSet `toml:"project_roles"`
	Bindings              []ChannelBinding `toml:"channel"`
}

// RolesForProject returns the roles configured for projectID, nil when none.
func (c *TenantDigestConfig) RolesForProject(projectID string) []string {
	if c == nil || projectID == "" {
		return nil
	}
	for _, set := range c.ProjectRoles {
		if set.ProjectID == projectID {
			return set.Roles
		}
	}
	return nil
}

// DebounceWindow returns the configured silence period as a duration.
func (c *TenantDigestConfig) DebounceWindow() time.Duration {
	if c == nil || c.DebounceWindowSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.DebounceWindowSeconds) * time.Second
}
