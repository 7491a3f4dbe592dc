package message

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	data  map[string][]byte
	calls []string
}

func (f *fakeFetcher) GetAttachment(_ context.Context, messageID, attachmentID string) ([]byte, error) {
	f.calls = append(f.calls, messageID+"/"+attachmentID)
	if d, ok := f.data[attachmentID]; ok {
		return d, nil
	}
	return nil, errors.New("attachment not found")
}

type parsedPart struct {
	attachment bool
	filename   string
	mimeType   string
	body       string
}

func readEnvelope(t *testing.T, raw []byte) (*mail.Header, []parsedPart) {
	t.Helper()

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)

	var parts []parsedPart
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		b, err := io.ReadAll(p.Body)
		require.NoError(t, err)
		text := strings.ReplaceAll(string(b), "\r\n", "\n")

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			parts = append(parts, parsedPart{mimeType: ct, body: text})
		case *mail.AttachmentHeader:
			name, _ := h.Filename()
			ct, _, _ := h.ContentType()
			parts = append(parts, parsedPart{attachment: true, filename: name, mimeType: ct, body: text})
		}
	}
	return &mr.Header, parts
}

func newTestComposer(f AttachmentFetcher) *Composer {
	c := NewComposer("", "", f, nil)
	c.now = func() time.Time { return time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC) }
	return c
}

func TestComposer_EmptyBodyUsesPlaceholder(t *testing.T) {
	c := newTestComposer(&fakeFetcher{})

	p, err := c.Compose(context.Background(), &Extracted{
		ID:      "m1",
		To:      "jane@example.com",
		Subject: "Application",
		Body:    "  \n ",
	})
	require.NoError(t, err)

	assert.Equal(t, "Resending: Application", p.Subject)
	assert.Equal(t, DefaultPreamble+BodyPlaceholder, p.Body)
	assert.Contains(t, p.Body, BodyPlaceholder)

	h, parts := readEnvelope(t, p.Raw)
	subject, err := h.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Resending: Application", subject)

	to, err := h.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "jane@example.com", to[0].Address)

	require.Len(t, parts, 1)
	assert.Equal(t, "text/plain", parts[0].mimeType)
	assert.Equal(t, p.Body, parts[0].body)
}

func TestComposer_BodyIsTrimmedAfterPreamble(t *testing.T) {
	c := newTestComposer(nil)
	assert.Equal(t, DefaultPreamble+"Hello", c.Body("\n  Hello \n"))
}

func TestComposer_FailedAttachmentIsOmitted(t *testing.T) {
	f := &fakeFetcher{data: map[string][]byte{"good": []byte("%PDF-1.4 data")}}
	c := newTestComposer(f)

	p, err := c.Compose(context.Background(), &Extracted{
		ID:      "m1",
		To:      "jane@example.com",
		Subject: "Application",
		Body:    "Dear hiring manager",
		Attachments: []AttachmentRef{
			{Filename: "missing.docx", MimeType: "application/msword", AttachmentID: "bad", MessageID: "m1"},
			{Filename: "resume.pdf", MimeType: "application/pdf", AttachmentID: "good", MessageID: "m1"},
			{Filename: "noid.txt", MimeType: "text/plain", MessageID: "m1"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"m1/bad", "m1/good"}, f.calls)
	require.Len(t, p.Attachments, 1)
	assert.Equal(t, "resume.pdf", p.Attachments[0].Filename)

	_, parts := readEnvelope(t, p.Raw)
	require.Len(t, parts, 2)
	assert.False(t, parts[0].attachment)
	assert.Equal(t, DefaultPreamble+"Dear hiring manager", parts[0].body)
	assert.True(t, parts[1].attachment)
	assert.Equal(t, "resume.pdf", parts[1].filename)
	assert.Equal(t, "application/pdf", parts[1].mimeType)
	assert.Equal(t, "%PDF-1.4 data", parts[1].body)
}

func TestComposer_UnknownMimeTypeIsGeneric(t *testing.T) {
	f := &fakeFetcher{data: map[string][]byte{"a": []byte("bin")}}
	c := newTestComposer(f)

	p, err := c.Compose(context.Background(), &Extracted{
		ID:          "m1",
		To:          "jane@example.com",
		Subject:     "Job",
		Attachments: []AttachmentRef{{Filename: "blob", AttachmentID: "a", MessageID: "m1"}},
	})
	require.NoError(t, err)
	require.Len(t, p.Attachments, 1)
	assert.Equal(t, DefaultAttachmentType, p.Attachments[0].MimeType)
}

func TestComposer_CustomPrefix(t *testing.T) {
	c := NewComposer("Follow-up:", "Hi again\n", nil, nil)
	assert.Equal(t, "Follow-up: Role", c.Subject("Role"))
	assert.Equal(t, "Hi again\nbody", c.Body("body"))
}

func TestComposer_NilMessage(t *testing.T) {
	_, err := newTestComposer(nil).Compose(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrComposition))
}
