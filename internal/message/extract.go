package message

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emersion/go-message/mail"
	gmail "google.golang.org/api/gmail/v1"
)

// NoSubject is used when the original message has no Subject header.
const NoSubject = "(No Subject)"

// ErrExtraction is returned when a message is too malformed to extract.
var ErrExtraction = errors.New("message extraction failed")

// AttachmentRef points at an attachment of a sent message.
type AttachmentRef struct {
	Filename     string
	MimeType     string
	AttachmentID string
	MessageID    string
}

// Extracted is the immutable view of a sent message used by the pipeline.
type Extracted struct {
	ID          string
	To          string
	Subject     string
	Date        string
	Body        string
	Attachments []AttachmentRef
}

// HeaderValue returns the first header with the given name, compared
// case-insensitively.
func HeaderValue(headers []*gmail.MessagePartHeader, name string) (string, bool) {
	for _, h := range headers {
		if h != nil && strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Extract builds the Extracted view of a full-format Gmail message.
func Extract(msg *gmail.Message) (*Extracted, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrExtraction)
	}
	if msg.Payload == nil {
		return nil, fmt.Errorf("%w: message %s has no payload", ErrExtraction, msg.Id)
	}

	headers := msg.Payload.Headers

	subject, ok := HeaderValue(headers, "Subject")
	if !ok {
		subject = NoSubject
	}
	date, _ := HeaderValue(headers, "Date")
	to, _ := HeaderValue(headers, "To")

	return &Extracted{
		ID:          msg.Id,
		To:          RecipientAddress(to),
		Subject:     subject,
		Date:        date,
		Body:        ExtractBody(msg.Payload),
		Attachments: attachmentRefs(msg.Payload, msg.Id),
	}, nil
}

// RecipientAddress reduces a To header to its single address. Display
// names ("Jane <jane@example.com>") are parsed off. A header naming several
// recipients, or one that does not parse, goes through CleanAddress whole,
// so multi-recipient messages fail validation and are not resent.
func RecipientAddress(raw string) string {
	if raw == "" {
		return ""
	}
	if list, err := mail.ParseAddressList(raw); err == nil && len(list) == 1 {
		return CleanAddress(list[0].Address)
	}
	return CleanAddress(raw)
}

// attachmentRefs collects every part carrying a filename, depth-first.
func attachmentRefs(payload *gmail.MessagePart, messageID string) []AttachmentRef {
	var refs []AttachmentRef
	walkParts(payload, func(part *gmail.MessagePart) {
		if part.Filename == "" {
			return
		}
		ref := AttachmentRef{
			Filename:  part.Filename,
			MimeType:  part.MimeType,
			MessageID: messageID,
		}
		if part.Body != nil {
			ref.AttachmentID = part.Body.AttachmentId
		}
		refs = append(refs, ref)
	})
	return refs
}

func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}
	fn(part)
	for _, sub := range part.Parts {
		walkParts(sub, fn)
	}
}
