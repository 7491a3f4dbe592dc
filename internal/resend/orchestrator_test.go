package resend

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/teemow/resender/internal/exclusion"
	"github.com/teemow/resender/internal/instrumentation"
)

func TestOrchestrator_EndToEndBatch(t *testing.T) {
	h := newHarness(t,
		sentMessage("m1", "friend@example.com", "Hello", "just checking in"),
		sentMessage("m2", "Jane Recruiter <jane@example.com>", "Application for Engineer", "Dear hiring manager"),
		sentMessage("m3", "not-an-email", "Application for Designer", "Dear hiring manager"),
	)
	o := h.orchestrator(t, nil, Options{AutoExclude: true, SendDelay: time.Second})

	summary := o.Run(context.Background(), []string{"m1", "m2", "m3"})

	assert.Equal(t, 3, summary.Found)
	assert.Equal(t, 1, summary.Resent)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 0, summary.Errored)
	assert.False(t, summary.Quit)

	require.Len(t, h.mailer.sent, 1)
	assert.Contains(t, string(h.mailer.sent[0]), "Resending: Application for Engineer")
	assert.Equal(t, []string{"jane@example.com"}, h.exclusions.List())

	data, err := os.ReadFile(h.exclusions.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "jane@example.com\n")

	require.Len(t, summary.Outcomes, 3)
	assert.Equal(t, RejectNotJobApplication, summary.Outcomes[0].Decision)
	assert.Equal(t, StatusResent, summary.Outcomes[1].Status)
	assert.Equal(t, "sent-1", summary.Outcomes[1].DeliveryID)
	assert.Equal(t, RejectInvalidAddress, summary.Outcomes[2].Decision)

	assert.Equal(t, []string{"skipped:reject_not_job_application", "resent:accept", "skipped:reject_invalid_address"}, h.recorder.outcomes)
	assert.Equal(t, []string{"immediate:success"}, h.recorder.dispatches)
	assert.Equal(t, []string{"auto:jane@example.com"}, h.recorder.exclusions)
}

func TestOrchestrator_DryRunNeverDispatches(t *testing.T) {
	msgs := []string{"m1", "m2", "m3"}
	build := func(t *testing.T) *harness {
		return newHarness(t,
			sentMessage("m1", "friend@example.com", "Hello", "just checking in"),
			sentMessage("m2", "jane@example.com", "Application for Engineer", "Dear hiring manager"),
			sentMessage("m3", "not-an-email", "Application for Designer", "Dear hiring manager"),
		)
	}

	for _, mode := range []Mode{ModeImmediate, ModeDrafts, ModeScheduled} {
		t.Run(string(mode), func(t *testing.T) {
			live := build(t)
			liveSummary := live.orchestrator(t, nil, Options{Mode: mode, SendAt: time.Now()}).Run(context.Background(), msgs)

			dry := build(t)
			drySummary := dry.orchestrator(t, nil, Options{Mode: mode, DryRun: true, AutoExclude: true, SendAt: time.Now()}).Run(context.Background(), msgs)

			assert.Equal(t, liveSummary.Resent, drySummary.Resent)
			assert.Equal(t, liveSummary.Skipped, drySummary.Skipped)
			assert.Equal(t, liveSummary.Errored, drySummary.Errored)
			assert.True(t, drySummary.DryRun)

			assert.Empty(t, dry.mailer.sent)
			assert.Empty(t, dry.mailer.drafts)
			assert.Empty(t, dry.mailer.sentDrafts)
			assert.Empty(t, dry.recorder.dispatches)
			assert.Equal(t, 0, dry.exclusions.Len(), "dry run leaves the exclusion list alone")
		})
	}
}

func TestOrchestrator_DryRunAutoExcludeMatchesLive(t *testing.T) {
	msgs := []string{"m1", "m2"}
	build := func(t *testing.T) *harness {
		return newHarness(t,
			sentMessage("m1", "a@b.com", "Application one", "body"),
			sentMessage("m2", "A@B.com", "Application two", "body"),
		)
	}

	live := build(t)
	liveSummary := live.orchestrator(t, nil, Options{AutoExclude: true}).Run(context.Background(), msgs)

	dry := build(t)
	drySummary := dry.orchestrator(t, nil, Options{AutoExclude: true, DryRun: true}).Run(context.Background(), msgs)

	assert.Equal(t, 1, liveSummary.Resent)
	assert.Equal(t, 1, liveSummary.Skipped)
	assert.Equal(t, liveSummary.Resent, drySummary.Resent)
	assert.Equal(t, liveSummary.Skipped, drySummary.Skipped)
	require.Len(t, drySummary.Outcomes, 2)
	assert.Equal(t, RejectExcluded, drySummary.Outcomes[1].Decision)

	assert.Equal(t, 1, live.exclusions.Len())
	assert.Equal(t, 0, dry.exclusions.Len())
	assert.Empty(t, dry.recorder.exclusions)

	reloaded, err := exclusion.Load(dry.exclusions.Path())
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Len())
}

func TestOrchestrator_DryRunUserExcludeIsNotPersisted(t *testing.T) {
	h := newHarness(t,
		sentMessage("m1", "a@b.com", "Application one", "body"),
		sentMessage("m2", "a@b.com", "Application two", "body"),
	)
	decider := &scriptedDecider{choices: []Choice{ChoiceExclude}}

	summary := h.orchestrator(t, decider, Options{DryRun: true}).Run(context.Background(), []string{"m1", "m2"})

	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, RejectExcluded, summary.Outcomes[1].Decision)
	assert.Equal(t, 0, h.exclusions.Len())
}

func TestOrchestrator_MultipleRecipientsAreSkipped(t *testing.T) {
	h := newHarness(t, sentMessage("m1", "HR <hr@example.com>, Team <team@example.com>", "Application", "body"))

	summary := h.orchestrator(t, nil, Options{}).Run(context.Background(), []string{"m1"})

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, RejectInvalidAddress, summary.Outcomes[0].Decision)
	assert.Empty(t, h.mailer.sent)
}

func TestOrchestrator_MessageSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	h := newHarness(t,
		sentMessage("m1", "friend@example.com", "Hello", "just checking in"),
		sentMessage("m2", "jane@example.com", "Application for Engineer", "Dear hiring manager"),
	)
	h.orchestrator(t, nil, Options{Mode: ModeDrafts, AutoExclude: true}).Run(context.Background(), []string{"m1", "m2"})

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	decisions := make(map[string]string)
	for _, span := range ended {
		assert.Equal(t, instrumentation.SpanMessage, span.Name())
		attrs := make(map[string]string)
		for _, kv := range span.Attributes() {
			attrs[string(kv.Key)] = kv.Value.Emit()
		}
		assert.Equal(t, "drafts", attrs[instrumentation.SpanAttrMode])
		assert.Equal(t, "false", attrs[instrumentation.SpanAttrDryRun])
		decisions[attrs[instrumentation.SpanAttrResourceID]] = attrs[instrumentation.SpanAttrDecision]
	}
	assert.Equal(t, map[string]string{
		"m1": RejectNotJobApplication.String(),
		"m2": Accept.String(),
	}, decisions)

	require.Len(t, ended[1].Events(), 1)
	assert.Equal(t, instrumentation.EventExclusionAdded, ended[1].Events()[0].Name)
}

func TestOrchestrator_DuplicateInRun(t *testing.T) {
	h := newHarness(t,
		sentMessage("m1", "a@b.com", "Application", "first copy"),
		sentMessage("m2", "a@b.com", "Application", "second copy"),
	)
	o := h.orchestrator(t, nil, Options{})

	summary := o.Run(context.Background(), []string{"m1", "m2"})

	assert.Equal(t, 1, summary.Resent)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, RejectDuplicateInRun, summary.Outcomes[1].Decision)
	assert.Len(t, h.mailer.sent, 1)
}

func TestOrchestrator_AutoExcludeStopsSecondSubject(t *testing.T) {
	h := newHarness(t,
		sentMessage("m1", "a@b.com", "Application one", "body"),
		sentMessage("m2", "a@b.com", "Application two", "body"),
	)
	o := h.orchestrator(t, nil, Options{AutoExclude: true})

	summary := o.Run(context.Background(), []string{"m1", "m2"})

	assert.Equal(t, 1, summary.Resent)
	assert.Equal(t, RejectExcluded, summary.Outcomes[1].Decision)
}

func TestOrchestrator_OverCap(t *testing.T) {
	h := newHarness(t, sentMessage("m1", "a@b.com", "Application", "body"))
	h.counts["a@b.com"] = 2

	summary := h.orchestrator(t, nil, Options{}).Run(context.Background(), []string{"m1"})

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, RejectOverCap, summary.Outcomes[0].Decision)
	assert.Equal(t, []string{"a@b.com"}, h.countCalls)
}

func TestOrchestrator_PerMessageFailuresAreCounted(t *testing.T) {
	h := newHarness(t,
		sentMessage("m2", "a@b.com", "Application", "body"),
		sentMessage("m3", "c@d.com", "Application", "body"),
	)
	h.mailer.messages["m4"] = nil

	summary := h.orchestrator(t, nil, Options{}).Run(context.Background(), []string{"missing", "m2", "m4", "m3"})

	assert.Equal(t, 2, summary.Resent)
	assert.Equal(t, 2, summary.Errored)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, StatusErrored, summary.Outcomes[0].Status)
	assert.Error(t, summary.Outcomes[0].Err)
	assert.Equal(t, []string{"errored:none", "resent:accept", "errored:none", "resent:accept"}, h.recorder.outcomes)
}

func TestOrchestrator_SendFailureIsErrored(t *testing.T) {
	h := newHarness(t, sentMessage("m1", "a@b.com", "Application", "body"))
	h.mailer.sendErr = errors.New("503 backend error")

	summary := h.orchestrator(t, nil, Options{AutoExclude: true}).Run(context.Background(), []string{"m1"})

	assert.Equal(t, 1, summary.Errored)
	assert.Equal(t, 0, summary.Resent)
	assert.Equal(t, 0, h.exclusions.Len(), "failed sends are not excluded")
	assert.Equal(t, []string{"immediate:error"}, h.recorder.dispatches)
}

func TestOrchestrator_DeciderChoices(t *testing.T) {
	h := newHarness(t,
		sentMessage("m1", "skip@example.com", "Application", "body"),
		sentMessage("m2", "exclude@example.com", "Application", "body"),
		sentMessage("m3", "send@example.com", "Application", "body"),
		sentMessage("m4", "never@example.com", "Application", "body"),
	)
	decider := &scriptedDecider{choices: []Choice{ChoiceSkip, ChoiceExclude, ChoiceAccept, ChoiceQuit}}

	summary := h.orchestrator(t, decider, Options{}).Run(context.Background(), []string{"m1", "m2", "m3", "m4"})

	assert.True(t, summary.Quit)
	assert.Equal(t, 1, summary.Resent)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 3, summary.Processed())
	assert.Equal(t, []string{"exclude@example.com"}, h.exclusions.List())
	assert.Equal(t, []string{"user:exclude@example.com"}, h.recorder.exclusions)
	require.Len(t, h.mailer.sent, 1)

	require.Len(t, decider.seen, 4)
	assert.Equal(t, 1, decider.seen[0].Index)
	assert.Equal(t, 4, decider.seen[0].Total)
	assert.Equal(t, "body", decider.seen[0].Preview)
}

func TestOrchestrator_DeciderErrorStops(t *testing.T) {
	h := newHarness(t, sentMessage("m1", "a@b.com", "Application", "body"))
	decider := DeciderFunc(func(context.Context, Candidate) (Choice, error) {
		return ChoiceAccept, errors.New("stdin closed")
	})

	summary := h.orchestrator(t, decider, Options{}).Run(context.Background(), []string{"m1"})

	assert.True(t, summary.Quit)
	assert.Equal(t, 0, summary.Processed())
	assert.Empty(t, h.mailer.sent)
}

func TestOrchestrator_CanceledContext(t *testing.T) {
	h := newHarness(t, sentMessage("m1", "a@b.com", "Application", "body"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := h.orchestrator(t, nil, Options{}).Run(ctx, []string{"m1"})

	assert.True(t, summary.Quit)
	assert.Empty(t, h.mailer.gets)
}

func TestOrchestrator_CancelDuringSendCompletesMessage(t *testing.T) {
	h := newHarness(t,
		sentMessage("m1", "a@b.com", "Application", "body"),
		sentMessage("m2", "c@d.com", "Application", "body"),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.mailer.onSend = func(sendCtx context.Context) error {
		cancel()
		return sendCtx.Err()
	}

	summary := h.orchestrator(t, nil, Options{AutoExclude: true}).Run(ctx, []string{"m1", "m2"})

	assert.Equal(t, 1, summary.Resent)
	assert.Equal(t, 0, summary.Errored)
	assert.True(t, summary.Quit)
	assert.Len(t, h.mailer.sent, 1)
	assert.True(t, h.exclusions.Contains("a@b.com"))
	assert.Equal(t, []string{"m1"}, h.mailer.gets)
}

func TestOrchestrator_CancelDuringLastMessageSetsQuit(t *testing.T) {
	h := newHarness(t, sentMessage("m1", "a@b.com", "Application", "body"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.mailer.onSend = func(context.Context) error {
		cancel()
		return nil
	}

	summary := h.orchestrator(t, nil, Options{}).Run(ctx, []string{"m1"})

	assert.Equal(t, 1, summary.Resent)
	assert.True(t, summary.Quit)
}

func TestOrchestrator_MaxPerRun(t *testing.T) {
	h := newHarness(t,
		sentMessage("m1", "a@example.com", "Application", "body"),
		sentMessage("m2", "b@example.com", "Application", "body"),
		sentMessage("m3", "c@example.com", "Application", "body"),
	)

	summary := h.orchestrator(t, nil, Options{MaxPerRun: 2}).Run(context.Background(), []string{"m1", "m2", "m3"})

	assert.Equal(t, 3, summary.Found)
	assert.Equal(t, 2, summary.Processed())
	assert.Equal(t, []string{"m1", "m2"}, h.mailer.gets)
}

func TestOrchestrator_SendDelayBetweenDispatches(t *testing.T) {
	h := newHarness(t,
		sentMessage("m1", "a@example.com", "Application", "body"),
		sentMessage("m2", "b@example.com", "Hello", "nothing here"),
		sentMessage("m3", "c@example.com", "Application", "body"),
	)
	o := h.orchestrator(t, nil, Options{SendDelay: 2 * time.Second})

	var delays []time.Duration
	o.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	o.Run(context.Background(), []string{"m1", "m2", "m3"})

	assert.Equal(t, []time.Duration{2 * time.Second}, delays, "delay only after a successful dispatch that is not the last message")
}

func TestOrchestrator_DraftsMode(t *testing.T) {
	h := newHarness(t, sentMessage("m1", "a@b.com", "Application", "body"))

	summary := h.orchestrator(t, nil, Options{Mode: ModeDrafts}).Run(context.Background(), []string{"m1"})

	assert.Equal(t, 1, summary.Resent)
	assert.Len(t, h.mailer.drafts, 1)
	assert.Empty(t, h.mailer.sent)
	assert.Empty(t, h.mailer.sentDrafts)
	assert.Equal(t, "draft-1", summary.Outcomes[0].DeliveryID)
}

func TestOrchestrator_ScheduledMode(t *testing.T) {
	h := newHarness(t,
		sentMessage("m1", "a@example.com", "Application", "body"),
		sentMessage("m2", "b@example.com", "Application", "body"),
	)
	sendAt := time.Now().Add(time.Hour)
	o := h.orchestrator(t, nil, Options{Mode: ModeScheduled, SendAt: sendAt})

	var waitedFor time.Time
	o.wait = func(_ context.Context, at time.Time) error {
		waitedFor = at
		assert.Empty(t, h.mailer.sentDrafts, "drafts are sent only after the wait")
		return nil
	}

	summary := o.Run(context.Background(), []string{"m1", "m2"})

	assert.Equal(t, sendAt, waitedFor)
	assert.Equal(t, 2, summary.Resent)
	assert.Equal(t, 2, summary.Delivered)
	assert.Equal(t, []string{"draft-1", "draft-2"}, h.mailer.sentDrafts)
	assert.Empty(t, h.mailer.sent)
}

func TestOrchestrator_ScheduledWaitCanceled(t *testing.T) {
	h := newHarness(t, sentMessage("m1", "a@example.com", "Application", "body"))
	o := h.orchestrator(t, nil, Options{Mode: ModeScheduled, SendAt: time.Now().Add(time.Hour)})
	o.wait = func(context.Context, time.Time) error { return context.Canceled }

	summary := o.Run(context.Background(), []string{"m1"})

	assert.True(t, summary.Quit)
	assert.Equal(t, 0, summary.Delivered)
	assert.Empty(t, h.mailer.sentDrafts)
}

func TestOrchestrator_AttachmentFailureDoesNotAbort(t *testing.T) {
	msg := sentMessage("m1", "a@b.com", "Application", "body")
	msg.Payload.Parts[1].Body.AttachmentId = "broken"
	h := newHarness(t, msg)

	summary := h.orchestrator(t, nil, Options{}).Run(context.Background(), []string{"m1"})

	assert.Equal(t, 1, summary.Resent)
	require.Len(t, h.mailer.sent, 1)
	assert.NotContains(t, string(h.mailer.sent[0]), "resume.pdf")
}

func TestNewOrchestrator_Validation(t *testing.T) {
	h := newHarness(t)
	gate := NewGate(nil, 2, nil)

	_, err := NewOrchestrator(Dependencies{}, Options{})
	assert.Error(t, err)

	_, err = NewOrchestrator(Dependencies{Mailer: h.mailer, Gate: gate, Composer: nil, Exclusions: h.exclusions}, Options{})
	assert.Error(t, err)

	o := h.orchestrator(t, nil, Options{})
	_, err = NewOrchestrator(Dependencies{Mailer: h.mailer, Gate: gate, Composer: o.composer, Exclusions: h.exclusions}, Options{Mode: ModeScheduled})
	assert.Error(t, err, "scheduled mode needs a send time")
}

func TestSummary_Print(t *testing.T) {
	var buf bytes.Buffer
	Summary{Mode: ModeImmediate, Found: 3, Resent: 1, Skipped: 2, DryRun: true}.Print(&buf)

	out := buf.String()
	assert.Contains(t, out, "RESEND SUMMARY")
	assert.Contains(t, out, "Total messages found: 3")
	assert.Contains(t, out, "Messages resent: 1")
	assert.Contains(t, out, "Messages skipped: 2")
	assert.Contains(t, out, "Errors encountered: 0")
	assert.Contains(t, out, "This was a DRY RUN - no emails were actually sent")

	buf.Reset()
	Summary{Mode: ModeDrafts, Found: 2, Resent: 2}.Print(&buf)
	assert.Contains(t, buf.String(), "DRAFT CREATION SUMMARY")
	assert.Contains(t, buf.String(), "Drafts created: 2")
	assert.NotContains(t, buf.String(), "DRY RUN")

	buf.Reset()
	Summary{Mode: ModeImmediate, Found: 5, Resent: 1, Quit: true}.Print(&buf)
	assert.Contains(t, buf.String(), "Stopped early after 1 of 5 messages.")
}
