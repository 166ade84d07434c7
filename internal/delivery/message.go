package delivery

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vignette/internal/policy"
)

// Message is one composed notification ready for a channel sender. At most
// one of ArtifactPath or StillPaths is populated.
type Message struct {
	Subject      string
	Body         string
	Author       string
	Fields       []Field
	ArtifactPath string
	StillPaths   []string
}

// Field is one name/value pair rendered in the chat embed.
type Field struct {
	Name  string
	Value string
}

// Attachments returns the file paths to attach, artifact first.
func (m Message) Attachments() []string {
	if strings.TrimSpace(m.ArtifactPath) != "" {
		return []string{m.ArtifactPath}
	}
	return m.StillPaths
}

// HTML renders the message body as a minimal HTML document for email.
func (m Message) HTML() string {
	var builder strings.Builder
	builder.WriteString("<html><body>")
	builder.WriteString("<h3>")
	builder.WriteString(html.EscapeString(m.Subject))
	builder.WriteString("</h3>")
	for _, line := range strings.Split(m.Body, "\n") {
		builder.WriteString("<p>")
		builder.WriteString(html.EscapeString(line))
		builder.WriteString("</p>")
	}
	builder.WriteString("</body></html>")
	return builder.String()
}

var titleCaser = cases.Title(language.English)

// EventTitle renders an event type as a human heading, e.g. "status_change"
// becomes "Status Change".
func EventTitle(eventType string) string {
	return titleCaser.String(strings.ReplaceAll(strings.TrimSpace(eventType), "_", " "))
}

// ViewLink builds the collaborator-facing link for a project or asset.
func ViewLink(baseURL, projectID, assetID string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" || projectID == "" {
		return ""
	}
	if assetID == "" {
		return fmt.Sprintf("%s/projects/%s", base, projectID)
	}
	return fmt.Sprintf("%s/projects/%s/assets/%s", base, projectID, assetID)
}

// ComposeEvent renders a single event for immediate delivery.
func ComposeEvent(event *policy.Event, linkBase string) Message {
	var body strings.Builder
	var author string
	switch event.Type {
	case policy.EventCommentCreate, policy.EventMention:
		comment := event.Comment()
		author = comment.AuthorName
		body.WriteString(eventLine(comment.AuthorName, comment.Content, ViewLink(linkBase, event.ProjectID, event.AssetID)))
	case policy.EventStatusChange:
		change := event.StatusChange()
		author = change.AuthorName
		body.WriteString(eventLine(change.AuthorName,
			fmt.Sprintf("%s: %s → %s", change.AssetName, change.OldStatus, change.NewStatus),
			ViewLink(linkBase, event.ProjectID, event.AssetID)))
	case policy.EventVersionUpload:
		upload := event.VersionUpload()
		author = upload.AuthorName
		body.WriteString(eventLine(upload.AuthorName,
			fmt.Sprintf("%s uploaded as %s", upload.AssetName, upload.VersionName),
			ViewLink(linkBase, event.ProjectID, event.AssetID)))
	case policy.EventProjectCreate:
		created := event.ProjectCreate()
		author = created.AuthorName
		body.WriteString(eventLine(created.AuthorName,
			fmt.Sprintf("created project %s", created.ProjectName),
			ViewLink(linkBase, event.ProjectID, "")))
	default:
		body.WriteString(eventLine("", event.Type, ViewLink(linkBase, event.ProjectID, event.AssetID)))
	}

	var fields []Field
	if event.ProjectID != "" {
		fields = append(fields, Field{Name: "Project", Value: event.ProjectID})
	}
	if event.AssetID != "" {
		fields = append(fields, Field{Name: "Asset", Value: event.AssetID})
	}
	return Message{
		Subject: EventTitle(event.Type),
		Body:    body.String(),
		Author:  strings.TrimSpace(author),
		Fields:  fields,
	}
}

// ComposeDigest renders every queued event as one aggregated message grouped
// by project. Each comment becomes a single line with author, content, and a
// view link.
func ComposeDigest(tenantID string, events []*policy.Event, linkBase string) Message {
	byProject := make(map[string][]*policy.Event)
	var order []string
	for _, event := range events {
		project := event.ProjectID
		if project == "" {
			project = "general"
		}
		if _, seen := byProject[project]; !seen {
			order = append(order, project)
		}
		byProject[project] = append(byProject[project], event)
	}
	sort.Strings(order)

	var body strings.Builder
	fields := make([]Field, 0, len(order))
	for i, project := range order {
		if i > 0 {
			body.WriteString("\n")
		}
		body.WriteString(fmt.Sprintf("Project %s:\n", project))
		for _, event := range byProject[project] {
			body.WriteString(digestLine(event, linkBase))
			body.WriteString("\n")
		}
		fields = append(fields, Field{Name: project, Value: fmt.Sprintf("%d update(s)", len(byProject[project]))})
	}

	return Message{
		Subject: fmt.Sprintf("Activity digest — %d update(s)", len(events)),
		Body:    strings.TrimRight(body.String(), "\n"),
		Fields:  fields,
	}
}

func digestLine(event *policy.Event, linkBase string) string {
	link := ViewLink(linkBase, event.ProjectID, event.AssetID)
	switch event.Type {
	case policy.EventCommentCreate, policy.EventMention:
		comment := event.Comment()
		return "- " + eventLine(comment.AuthorName, comment.Content, link)
	case policy.EventStatusChange:
		change := event.StatusChange()
		return "- " + eventLine(change.AuthorName, fmt.Sprintf("%s: %s → %s", change.AssetName, change.OldStatus, change.NewStatus), link)
	case policy.EventVersionUpload:
		upload := event.VersionUpload()
		return "- " + eventLine(upload.AuthorName, fmt.Sprintf("%s uploaded as %s", upload.AssetName, upload.VersionName), link)
	case policy.EventProjectCreate:
		created := event.ProjectCreate()
		return "- " + eventLine(created.AuthorName, fmt.Sprintf("created project %s", created.ProjectName), link)
	default:
		return "- " + eventLine("", EventTitle(event.Type), link)
	}
}

func eventLine(author, content, link string) string {
	var parts []string
	if strings.TrimSpace(author) != "" {
		parts = append(parts, strings.TrimSpace(author)+":")
	}
	if strings.TrimSpace(content) != "" {
		parts = append(parts, strings.TrimSpace(content))
	}
	if link != "" {
		parts = append(parts, fmt.Sprintf("(view: %s)", link))
	}
	if len(parts) == 0 {
		return "(empty update)"
	}
	return strings.Join(parts, " ")
}
