package delivery

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

type fakeSES struct {
	inputs []*sesv2.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, input *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, input)
	return &sesv2.SendEmailOutput{}, nil
}

func TestSESSenderSimpleEmail(t *testing.T) {
	ses := &fakeSES{}
	sender := &SESSender{client: ses, from: "digest@example.test"}

	msg := Message{Subject: "Activity digest", Body: "- mira: looks good"}
	if err := sender.Send(context.Background(), "crew@example.test", msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(ses.inputs) != 1 {
		t.Fatalf("expected 1 send, got %d", len(ses.inputs))
	}
	input := ses.inputs[0]
	if input.Content.Simple == nil {
		t.Fatal("expected simple content without attachments")
	}
	if got := *input.Content.Simple.Subject.Data; got != "Activity digest" {
		t.Fatalf("unexpected subject: %q", got)
	}
	if got := input.Destination.ToAddresses; len(got) != 1 || got[0] != "crew@example.test" {
		t.Fatalf("unexpected destination: %v", got)
	}
}

func TestSESSenderRawEmailWithAttachment(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "digest.gif")
	if err := os.WriteFile(artifact, []byte("GIF89a-fake"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	ses := &fakeSES{}
	sender := &SESSender{client: ses, from: "digest@example.test"}

	msg := Message{Subject: "Activity digest", Body: "- mira: looks good", ArtifactPath: artifact}
	if err := sender.Send(context.Background(), "crew@example.test", msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(ses.inputs) != 1 || ses.inputs[0].Content.Raw == nil {
		t.Fatal("expected raw mime content")
	}

	raw := string(ses.inputs[0].Content.Raw.Data)
	for _, want := range []string{
		"From: digest@example.test",
		"To: crew@example.test",
		"Content-Type: multipart/mixed",
		`filename="digest.gif"`,
		"Content-Transfer-Encoding: base64",
		"text/html",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("raw mime missing %q", want)
		}
	}
}

func TestSESSenderEmptyTarget(t *testing.T) {
	sender := &SESSender{client: &fakeSES{}, from: "digest@example.test"}
	if err := sender.Send(context.Background(), " ", Message{}); err == nil {
		t.Fatal("expected error for empty target")
	}
}
