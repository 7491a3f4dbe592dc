package message

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/teemow/resender/internal/logging"
)

const (
	// DefaultPrefix is prepended to the original subject.
	DefaultPrefix = "Resending:"

	// DefaultPreamble is placed above the original body.
	DefaultPreamble = "Resending this application in case it was missed. Kindly confirm receipt. Thank you!\n\n---Original Message---\n"

	// BodyPlaceholder replaces a body that could not be extracted.
	BodyPlaceholder = "[Original message content could not be extracted]"

	// DefaultAttachmentType is used when an attachment declares no MIME type.
	DefaultAttachmentType = "application/octet-stream"
)

// ErrComposition is returned when the resend envelope cannot be written.
var ErrComposition = errors.New("resend composition failed")

// AttachmentFetcher resolves attachment bytes of a stored message.
type AttachmentFetcher interface {
	GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}

// Attachment is a resolved attachment carried into a resend.
type Attachment struct {
	Filename string
	MimeType string
	Data     []byte
}

// ResendPayload is the outgoing message. Raw holds the RFC 5322 envelope.
type ResendPayload struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
	Raw         []byte
}

// Composer builds resend payloads from extracted messages.
type Composer struct {
	prefix   string
	preamble string
	fetcher  AttachmentFetcher
	logger   logging.Logger
	now      func() time.Time
}

// NewComposer creates a Composer. Empty prefix or preamble use the defaults.
func NewComposer(prefix, preamble string, fetcher AttachmentFetcher, logger logging.Logger) *Composer {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if preamble == "" {
		preamble = DefaultPreamble
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Composer{
		prefix:   prefix,
		preamble: preamble,
		fetcher:  fetcher,
		logger:   logger,
		now:      time.Now,
	}
}

// Subject returns the resend subject for an original subject.
func (c *Composer) Subject(original string) string {
	return c.prefix + " " + original
}

// Body returns the resend body for an original body.
func (c *Composer) Body(original string) string {
	original = strings.TrimSpace(original)
	if original == "" {
		original = BodyPlaceholder
	}
	return c.preamble + original
}

// Compose builds the resend payload for ex. A failing attachment is logged
// and left out; only a failure to write the envelope aborts.
func (c *Composer) Compose(ctx context.Context, ex *Extracted) (*ResendPayload, error) {
	if ex == nil {
		return nil, fmt.Errorf("%w: nil message", ErrComposition)
	}

	if strings.TrimSpace(ex.Body) == "" {
		c.logger.Warn("empty body, using placeholder",
			"message_id", ex.ID,
			"recipient", logging.AnonymizeEmail(ex.To))
	}

	payload := &ResendPayload{
		To:          ex.To,
		Subject:     c.Subject(ex.Subject),
		Body:        c.Body(ex.Body),
		Attachments: c.resolveAttachments(ctx, ex.Attachments),
	}

	raw, err := c.writeEnvelope(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrComposition, err)
	}
	payload.Raw = raw

	c.logger.Info("composed resend",
		"message_id", ex.ID,
		"attachments", len(payload.Attachments),
		"attachments_dropped", len(ex.Attachments)-len(payload.Attachments))

	return payload, nil
}

func (c *Composer) resolveAttachments(ctx context.Context, refs []AttachmentRef) []Attachment {
	var out []Attachment
	for _, ref := range refs {
		if ref.AttachmentID == "" {
			continue
		}
		if c.fetcher == nil {
			c.logger.Warn("no attachment fetcher, dropping attachment", "filename", ref.Filename)
			continue
		}

		data, err := c.fetcher.GetAttachment(ctx, ref.MessageID, ref.AttachmentID)
		if err != nil {
			c.logger.Warn("failed to fetch attachment, dropping it",
				"message_id", ref.MessageID,
				"filename", ref.Filename,
				logging.KeyError, err)
			continue
		}

		mimeType := ref.MimeType
		if mimeType == "" {
			mimeType = DefaultAttachmentType
		}
		out = append(out, Attachment{
			Filename: ref.Filename,
			MimeType: mimeType,
			Data:     data,
		})
	}
	return out
}

func (c *Composer) writeEnvelope(p *ResendPayload) ([]byte, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(c.now())
	h.SetSubject(p.Subject)
	h.SetAddressList("To", []*mail.Address{{Address: p.To}})

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}
	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := writePart(func() (io.WriteCloser, error) { return iw.CreatePart(th) }, []byte(p.Body)); err != nil {
		return nil, err
	}
	if err := iw.Close(); err != nil {
		return nil, err
	}

	for _, att := range p.Attachments {
		var ah mail.AttachmentHeader
		ah.SetContentType(att.MimeType, nil)
		ah.SetFilename(att.Filename)
		if err := writePart(func() (io.WriteCloser, error) { return mw.CreateAttachment(ah) }, att.Data); err != nil {
			return nil, fmt.Errorf("attachment %s: %w", att.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePart(create func() (io.WriteCloser, error), data []byte) error {
	w, err := create()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
