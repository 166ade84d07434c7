package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const userAgent = "Vignette-Go/0.1.0"

const embedColor = 0x5865F2

// WebhookSender posts Discord-compatible webhook messages. The binding target
// is the full webhook URL.
type WebhookSender struct {
	client *http.Client
}

// NewWebhookSender builds a webhook sender with the given request timeout.
func NewWebhookSender(timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookSender{client: &http.Client{Timeout: timeout}}
}

type webhookEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Author      *webhookEmbedAuthor `json:"author,omitempty"`
	Fields      []webhookEmbedField `json:"fields,omitempty"`
	Image       *webhookEmbedImage  `json:"image,omitempty"`
}

type webhookEmbedAuthor struct {
	Name string `json:"name"`
}

type webhookEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type webhookEmbedImage struct {
	URL string `json:"url"`
}

type webhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []webhookEmbed `json:"embeds,omitempty"`
}

// Send posts the message as multipart form data: a payload_json field with
// the embed, plus one file part per attachment. The first attachment is
// referenced as the embed image.
func (s *WebhookSender) Send(ctx context.Context, target string, msg Message) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return fmt.Errorf("webhook target is empty")
	}

	attachments := msg.Attachments()
	embed := webhookEmbed{
		Title:       msg.Subject,
		Description: msg.Body,
		Color:       embedColor,
	}
	if msg.Author != "" {
		embed.Author = &webhookEmbedAuthor{Name: msg.Author}
	}
	for _, field := range msg.Fields {
		embed.Fields = append(embed.Fields, webhookEmbedField{Name: field.Name, Value: field.Value, Inline: true})
	}
	if len(attachments) > 0 {
		embed.Image = &webhookEmbedImage{URL: "attachment://" + filepath.Base(attachments[0])}
	}
	payload := webhookPayload{Embeds: []webhookEmbed{embed}}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	field, err := writer.CreateFormField("payload_json")
	if err != nil {
		return fmt.Errorf("create payload field: %w", err)
	}
	if _, err := field.Write(payloadJSON); err != nil {
		return fmt.Errorf("write payload field: %w", err)
	}

	for i, path := range attachments {
		if err := attachFile(writer, i, path); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func attachFile(writer *multipart.Writer, index int, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open attachment %s: %w", path, err)
	}
	defer file.Close()

	part, err := writer.CreateFormFile(fmt.Sprintf("files[%d]", index), filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy attachment %s: %w", path, err)
	}
	return nil
}
