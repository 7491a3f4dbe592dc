package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
)

func headers(kv ...string) []*gmail.MessagePartHeader {
	var out []*gmail.MessagePartHeader
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, &gmail.MessagePartHeader{Name: kv[i], Value: kv[i+1]})
	}
	return out
}

func TestHeaderValue(t *testing.T) {
	h := headers("Subject", "Hi", "TO", "a@b.com")

	v, ok := HeaderValue(h, "to")
	assert.True(t, ok)
	assert.Equal(t, "a@b.com", v)

	_, ok = HeaderValue(h, "Date")
	assert.False(t, ok)
}

func TestExtract(t *testing.T) {
	payload := multipart("mixed",
		leaf("text/plain", "I am writing to apply."),
		&gmail.MessagePart{
			MimeType: "application/pdf",
			Filename: "resume.pdf",
			Body:     &gmail.MessagePartBody{AttachmentId: "att-1"},
		},
		multipart("mixed", &gmail.MessagePart{
			MimeType: "image/png",
			Filename: "photo.png",
			Body:     &gmail.MessagePartBody{AttachmentId: "att-2"},
		}),
	)
	payload.Headers = headers(
		"To", "Jane Doe <jane@example.com>",
		"Subject", "Application for Engineer",
		"Date", "Mon, 2 Jun 2025 10:00:00 +0000",
	)

	ex, err := Extract(&gmail.Message{Id: "m1", Payload: payload})
	require.NoError(t, err)

	assert.Equal(t, "m1", ex.ID)
	assert.Equal(t, "jane@example.com", ex.To)
	assert.Equal(t, "Application for Engineer", ex.Subject)
	assert.Equal(t, "Mon, 2 Jun 2025 10:00:00 +0000", ex.Date)
	assert.Equal(t, "I am writing to apply.", ex.Body)
	assert.Equal(t, []AttachmentRef{
		{Filename: "resume.pdf", MimeType: "application/pdf", AttachmentID: "att-1", MessageID: "m1"},
		{Filename: "photo.png", MimeType: "image/png", AttachmentID: "att-2", MessageID: "m1"},
	}, ex.Attachments)
}

func TestExtract_Defaults(t *testing.T) {
	ex, err := Extract(&gmail.Message{
		Id:      "m2",
		Payload: &gmail.MessagePart{MimeType: "text/plain", Headers: headers("To", "[J](mailto:a@b.com)")},
	})
	require.NoError(t, err)

	assert.Equal(t, NoSubject, ex.Subject)
	assert.Equal(t, "a@b.com", ex.To)
	assert.Empty(t, ex.Date)
	assert.Empty(t, ex.Body)
	assert.Empty(t, ex.Attachments)
}

func TestExtract_MissingTo(t *testing.T) {
	ex, err := Extract(&gmail.Message{Id: "m3", Payload: &gmail.MessagePart{}})
	require.NoError(t, err)
	assert.Empty(t, ex.To)
}

func TestExtract_Malformed(t *testing.T) {
	_, err := Extract(nil)
	assert.True(t, errors.Is(err, ErrExtraction))

	_, err = Extract(&gmail.Message{Id: "m4"})
	assert.True(t, errors.Is(err, ErrExtraction))
}

func TestRecipientAddress(t *testing.T) {
	assert.Equal(t, "jane@example.com", RecipientAddress("Jane Recruiter <jane@example.com>"))
	assert.Equal(t, "a@b.com,c@d.com", RecipientAddress("a@b.com, c@d.com"))
	assert.False(t, ValidAddress(RecipientAddress("Jane <jane@example.com>, Joe <joe@example.com>")))
	assert.Equal(t, "not-an-email", RecipientAddress("not-an-email"))
	assert.Equal(t, "", RecipientAddress(""))
}
