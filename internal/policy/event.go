package policy

import (
	"encoding/json"
	"strings"
	"time"
)

// Event types accepted from collaborators. Unknown types still flow through
// the engine so new producers degrade to grouped delivery instead of being
// lost.
const (
	EventCommentCreate = "comment_create"
	EventStatusChange  = "status_change"
	EventVersionUpload = "version_upload"
	EventProjectCreate = "project_create"
	EventMention       = "mention"
)

const payloadVersion = 1

// Event is the envelope collaborators drop into the spool. Payload carries a
// per-type body; decoding is defensive so a truncated or future-versioned
// payload still yields a usable event.
type Event struct {
	Version   int             `json:"version"`
	Type      string          `json:"type"`
	TenantID  string          `json:"tenant_id"`
	ProjectID string          `json:"project_id,omitempty"`
	AssetID   string          `json:"asset_id,omitempty"`
	Mentions  []string        `json:"mentions,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// CommentPayload carries a comment_create or mention event body.
type CommentPayload struct {
	CommentID  string   `json:"comment_id"`
	AuthorName string   `json:"author_name"`
	Content    string   `json:"content"`
	Timestamp  *float64 `json:"timestamp,omitempty"`
}

// StatusChangePayload carries a status_change event body.
type StatusChangePayload struct {
	AssetName  string `json:"asset_name"`
	AuthorName string `json:"author_name"`
	OldStatus  string `json:"old_status"`
	NewStatus  string `json:"new_status"`
}

// VersionUploadPayload carries a version_upload event body.
type VersionUploadPayload struct {
	AssetName   string `json:"asset_name"`
	AuthorName  string `json:"author_name"`
	VersionName string `json:"version_name"`
}

// ProjectCreatePayload carries a project_create event body.
type ProjectCreatePayload struct {
	ProjectName string `json:"project_name"`
	AuthorName  string `json:"author_name"`
}

// DecodeEvent parses an envelope, applying defaults for missing fields. Only
// a missing tenant id or type is fatal; everything else degrades.
func DecodeEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	event.Type = strings.ToLower(strings.TrimSpace(event.Type))
	event.TenantID = strings.TrimSpace(event.TenantID)
	if event.TenantID == "" {
		return nil, errMissingTenant
	}
	if event.Type == "" {
		return nil, errMissingType
	}
	if event.Version == 0 {
		event.Version = payloadVersion
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if len(event.Payload) == 0 {
		event.Payload = json.RawMessage("{}")
	}
	return &event, nil
}

// Encode serializes the envelope for queue storage.
func (e *Event) Encode() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Comment decodes the payload as a comment body. Missing fields default to
// empty values rather than failing.
func (e *Event) Comment() CommentPayload {
	var payload CommentPayload
	_ = json.Unmarshal(e.Payload, &payload)
	return payload
}

// StatusChange decodes the payload as a status_change body.
func (e *Event) StatusChange() StatusChangePayload {
	var payload StatusChangePayload
	_ = json.Unmarshal(e.Payload, &payload)
	return payload
}

// VersionUpload decodes the payload as a version_upload body.
func (e *Event) VersionUpload() VersionUploadPayload {
	var payload VersionUploadPayload
	_ = json.Unmarshal(e.Payload, &payload)
	return payload
}

// ProjectCreate decodes the payload as a project_create body.
func (e *Event) ProjectCreate() ProjectCreatePayload {
	var payload ProjectCreatePayload
	_ = json.Unmarshal(e.Payload, &payload)
	return payload
}
