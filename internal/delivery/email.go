package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// sesAPI is the slice of the SES client the sender uses.
type sesAPI interface {
	SendEmail(ctx context.Context, input *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender delivers digest email through Amazon SES. The binding target is
// the recipient address.
type SESSender struct {
	client sesAPI
	from   string
}

// NewSESSender resolves AWS credentials from the environment and builds an
// email sender for the configured region and sender address.
func NewSESSender(ctx context.Context, region, from string) (*SESSender, error) {
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, fmt.Errorf("email sender address is empty")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if region = strings.TrimSpace(region); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SESSender{client: sesv2.NewFromConfig(awsCfg), from: from}, nil
}

// Send delivers the message. With no attachments a simple HTML email is used;
// otherwise the first attachment is inlined into a raw MIME message.
func (s *SESSender) Send(ctx context.Context, target string, msg Message) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return fmt.Errorf("email target is empty")
	}

	attachments := msg.Attachments()
	if len(attachments) == 0 {
		_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
			FromEmailAddress: aws.String(s.from),
			Destination:      &types.Destination{ToAddresses: []string{target}},
			Content: &types.EmailContent{
				Simple: &types.Message{
					Subject: &types.Content{Data: aws.String(msg.Subject)},
					Body: &types.Body{
						Html: &types.Content{Data: aws.String(msg.HTML())},
						Text: &types.Content{Data: aws.String(msg.Body)},
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("send email: %w", err)
		}
		return nil
	}

	raw, err := buildRawEmail(s.from, target, msg, attachments[0])
	if err != nil {
		return err
	}
	if _, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		Content: &types.EmailContent{Raw: &types.RawMessage{Data: raw}},
	}); err != nil {
		return fmt.Errorf("send raw email: %w", err)
	}
	return nil
}

// buildRawEmail assembles a multipart/mixed MIME message with an HTML body
// and one binary attachment.
func buildRawEmail(from, to string, msg Message, attachment string) ([]byte, error) {
	data, err := os.ReadFile(attachment)
	if err != nil {
		return nil, fmt.Errorf("read attachment %s: %w", attachment, err)
	}
	name := filepath.Base(attachment)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fmt.Fprintf(body, "From: %s\r\n", from)
	fmt.Fprintf(body, "To: %s\r\n", to)
	fmt.Fprintf(body, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(body, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(body, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	htmlHeader := textproto.MIMEHeader{}
	htmlHeader.Set("Content-Type", "text/html; charset=utf-8")
	htmlPart, err := writer.CreatePart(htmlHeader)
	if err != nil {
		return nil, fmt.Errorf("create html part: %w", err)
	}
	if _, err := htmlPart.Write([]byte(msg.HTML())); err != nil {
		return nil, fmt.Errorf("write html part: %w", err)
	}

	fileHeader := textproto.MIMEHeader{}
	fileHeader.Set("Content-Type", contentType)
	fileHeader.Set("Content-Transfer-Encoding", "base64")
	fileHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	filePart, err := writer.CreatePart(fileHeader)
	if err != nil {
		return nil, fmt.Errorf("create attachment part: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	// RFC 2045 line-length limit for encoded content.
	for len(encoded) > 76 {
		if _, err := fmt.Fprintf(filePart, "%s\r\n", encoded[:76]); err != nil {
			return nil, fmt.Errorf("write attachment part: %w", err)
		}
		encoded = encoded[76:]
	}
	if _, err := fmt.Fprintf(filePart, "%s\r\n", encoded); err != nil {
		return nil, fmt.Errorf("write attachment part: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize mime body: %w", err)
	}
	return body.Bytes(), nil
}
