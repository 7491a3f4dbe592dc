package resend

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/resender/internal/exclusion"
	"github.com/teemow/resender/internal/logging"
	"github.com/teemow/resender/internal/message"
)

type fakeMailer struct {
	messages map[string]*gmail.Message
	sendErr  error
	draftErr error
	// onSend runs inside Send with the context Send was called with.
	onSend func(ctx context.Context) error

	sent       [][]byte
	drafts     [][]byte
	sentDrafts []string
	gets       []string
}

func newFakeMailer(msgs ...*gmail.Message) *fakeMailer {
	m := &fakeMailer{messages: map[string]*gmail.Message{}}
	for _, msg := range msgs {
		m.messages[msg.Id] = msg
	}
	return m
}

func (m *fakeMailer) GetMessage(_ context.Context, id string) (*gmail.Message, error) {
	m.gets = append(m.gets, id)
	msg, ok := m.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s not found", id)
	}
	return msg, nil
}

func (m *fakeMailer) Send(ctx context.Context, raw []byte) (string, error) {
	if m.onSend != nil {
		if err := m.onSend(ctx); err != nil {
			return "", err
		}
	}
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sent = append(m.sent, raw)
	return fmt.Sprintf("sent-%d", len(m.sent)), nil
}

func (m *fakeMailer) CreateDraft(_ context.Context, raw []byte) (string, error) {
	if m.draftErr != nil {
		return "", m.draftErr
	}
	m.drafts = append(m.drafts, raw)
	return fmt.Sprintf("draft-%d", len(m.drafts)), nil
}

func (m *fakeMailer) SendDraft(_ context.Context, draftID string) (string, error) {
	m.sentDrafts = append(m.sentDrafts, draftID)
	return "sent-" + draftID, nil
}

func (m *fakeMailer) GetAttachment(_ context.Context, _, attachmentID string) ([]byte, error) {
	if attachmentID == "broken" {
		return nil, errors.New("gone")
	}
	return []byte("data-" + attachmentID), nil
}

type fakeRecorder struct {
	outcomes   []string
	dispatches []string
	exclusions []string
}

func (r *fakeRecorder) RecordMessageOutcome(_ context.Context, status, decision string) {
	r.outcomes = append(r.outcomes, status+":"+decision)
}

func (r *fakeRecorder) RecordDispatch(_ context.Context, mode, status string, _ time.Duration) {
	r.dispatches = append(r.dispatches, mode+":"+status)
}

func (r *fakeRecorder) RecordExclusion(_ context.Context, source, recipient string) {
	r.exclusions = append(r.exclusions, source+":"+recipient)
}

func sentMessage(id, to, subject, body string) *gmail.Message {
	return &gmail.Message{
		Id: id,
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Headers: []*gmail.MessagePartHeader{
				{Name: "To", Value: to},
				{Name: "Subject", Value: subject},
				{Name: "Date", Value: "Mon, 2 Jun 2025 10:00:00 +0000"},
			},
			Parts: []*gmail.MessagePart{
				{
					MimeType: "text/plain",
					Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(body))},
				},
				{
					MimeType: "application/pdf",
					Filename: "resume.pdf",
					Body:     &gmail.MessagePartBody{AttachmentId: "att-" + id},
				},
			},
		},
	}
}

type harness struct {
	mailer     *fakeMailer
	exclusions *exclusion.Store
	recorder   *fakeRecorder
	counts     map[string]int
	countCalls []string
}

func newHarness(t *testing.T, msgs ...*gmail.Message) *harness {
	t.Helper()
	store, err := exclusion.Load(filepath.Join(t.TempDir(), "excluded_emails.txt"))
	require.NoError(t, err)
	return &harness{
		mailer:     newFakeMailer(msgs...),
		exclusions: store,
		recorder:   &fakeRecorder{},
		counts:     map[string]int{},
	}
}

func (h *harness) countSent(_ context.Context, addr string) int {
	h.countCalls = append(h.countCalls, addr)
	return h.counts[addr]
}

func (h *harness) orchestrator(t *testing.T, decider Decider, opts Options) *Orchestrator {
	t.Helper()
	gate := NewGate(message.NewClassifier(nil, nil), 2, h.countSent)
	composer := message.NewComposer("", "", h.mailer, logging.Discard())

	o, err := NewOrchestrator(Dependencies{
		Mailer:     h.mailer,
		Gate:       gate,
		Composer:   composer,
		Exclusions: h.exclusions,
		Decider:    decider,
		Logger:     logging.Discard(),
		Recorder:   h.recorder,
	}, opts)
	require.NoError(t, err)

	o.sleep = func(context.Context, time.Duration) error { return nil }
	o.wait = func(context.Context, time.Time) error { return nil }
	return o
}

type scriptedDecider struct {
	choices []Choice
	seen    []Candidate
}

func (d *scriptedDecider) Decide(_ context.Context, c Candidate) (Choice, error) {
	d.seen = append(d.seen, c)
	if len(d.choices) == 0 {
		return ChoiceAccept, nil
	}
	choice := d.choices[0]
	d.choices = d.choices[1:]
	return choice, nil
}
