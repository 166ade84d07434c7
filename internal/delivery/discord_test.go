package delivery_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vignette/internal/delivery"
)

func TestWebhookSenderMultipart(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "digest.gif")
	if err := os.WriteFile(artifact, []byte("GIF89a-fake"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	var payloadJSON string
	var fileNames []string
	var fileBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		payloadJSON = r.FormValue("payload_json")
		for name, headers := range r.MultipartForm.File {
			for _, header := range headers {
				fileNames = append(fileNames, name+":"+header.Filename)
				file, err := header.Open()
				if err != nil {
					t.Errorf("open part: %v", err)
					continue
				}
				data, _ := io.ReadAll(file)
				file.Close()
				fileBody = string(data)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sender := delivery.NewWebhookSender(5 * time.Second)
	msg := delivery.Message{
		Subject:      "Activity digest",
		Body:         "- mira: looks good",
		Author:       "mira",
		Fields:       []delivery.Field{{Name: "alpha", Value: "1 update(s)"}},
		ArtifactPath: artifact,
	}
	if err := sender.Send(context.Background(), server.URL, msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var payload struct {
		Embeds []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Author      *struct {
				Name string `json:"name"`
			} `json:"author"`
			Fields []struct {
				Name   string `json:"name"`
				Value  string `json:"value"`
				Inline bool   `json:"inline"`
			} `json:"fields"`
			Image *struct {
				URL string `json:"url"`
			} `json:"image"`
		} `json:"embeds"`
	}
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		t.Fatalf("decode payload_json: %v", err)
	}
	if len(payload.Embeds) != 1 || payload.Embeds[0].Title != "Activity digest" {
		t.Fatalf("unexpected embeds: %+v", payload.Embeds)
	}
	if payload.Embeds[0].Author == nil || payload.Embeds[0].Author.Name != "mira" {
		t.Fatalf("expected embed author, got %+v", payload.Embeds[0].Author)
	}
	if len(payload.Embeds[0].Fields) != 1 || payload.Embeds[0].Fields[0].Name != "alpha" || !payload.Embeds[0].Fields[0].Inline {
		t.Fatalf("expected inline embed field, got %+v", payload.Embeds[0].Fields)
	}
	if payload.Embeds[0].Image == nil || payload.Embeds[0].Image.URL != "attachment://digest.gif" {
		t.Fatalf("expected embed image reference, got %+v", payload.Embeds[0].Image)
	}
	if len(fileNames) != 1 || fileNames[0] != "files[0]:digest.gif" {
		t.Fatalf("unexpected file parts: %v", fileNames)
	}
	if fileBody != "GIF89a-fake" {
		t.Fatalf("unexpected file body: %q", fileBody)
	}
}

func TestWebhookSenderErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	sender := delivery.NewWebhookSender(5 * time.Second)
	err := sender.Send(context.Background(), server.URL, delivery.Message{Subject: "x"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestWebhookSenderEmptyTarget(t *testing.T) {
	sender := delivery.NewWebhookSender(time.Second)
	if err := sender.Send(context.Background(), "  ", delivery.Message{}); err == nil {
		t.Fatal("expected error for empty target")
	}
}
