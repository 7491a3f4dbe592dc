package resend

import (
	"context"
	"errors"
	"fmt"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/resender/internal/instrumentation"
	"github.com/teemow/resender/internal/logging"
	"github.com/teemow/resender/internal/message"
	"github.com/teemow/resender/internal/schedule"
)

// Mailer is the part of the Gmail client the orchestrator dispatches through.
type Mailer interface {
	GetMessage(ctx context.Context, id string) (*gmail.Message, error)
	Send(ctx context.Context, raw []byte) (string, error)
	CreateDraft(ctx context.Context, raw []byte) (string, error)
	SendDraft(ctx context.Context, draftID string) (string, error)
}

// Composer builds the outgoing resend for an extracted message.
type Composer interface {
	Compose(ctx context.Context, ex *message.Extracted) (*message.ResendPayload, error)
}

// ExclusionStore is the persistent exclusion list.
type ExclusionStore interface {
	Membership
	Add(addr string) (bool, error)
}

// Recorder receives run metrics. *instrumentation.Metrics implements it.
type Recorder interface {
	RecordMessageOutcome(ctx context.Context, status, decision string)
	RecordDispatch(ctx context.Context, mode, status string, duration time.Duration)
	RecordExclusion(ctx context.Context, source, recipient string)
}

// Options are the run-level policies.
type Options struct {
	Mode        Mode
	DryRun      bool
	AutoExclude bool
	// MaxPerRun caps the number of candidates processed. <= 0 means no cap.
	MaxPerRun int
	// SendDelay is waited after each successful dispatch.
	SendDelay time.Duration
	// SendAt is when ModeScheduled delivers its drafts.
	SendAt time.Time
}

// Dependencies are the collaborators of an Orchestrator.
type Dependencies struct {
	Mailer     Mailer
	Gate       *Gate
	Composer   Composer
	Exclusions ExclusionStore
	Decider    Decider
	Logger     logging.Logger
	Recorder   Recorder
}

// Orchestrator runs the resend pipeline over a batch of message ids.
type Orchestrator struct {
	mailer     Mailer
	gate       *Gate
	composer   Composer
	exclusions ExclusionStore
	decider    Decider
	logger     logging.Logger
	recorder   Recorder
	opts       Options

	sleep func(ctx context.Context, d time.Duration) error
	wait  func(ctx context.Context, at time.Time) error
}

// NewOrchestrator validates deps and opts.
func NewOrchestrator(deps Dependencies, opts Options) (*Orchestrator, error) {
	if deps.Mailer == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	if deps.Gate == nil {
		return nil, fmt.Errorf("gate is required")
	}
	if deps.Composer == nil {
		return nil, fmt.Errorf("composer is required")
	}
	if deps.Exclusions == nil {
		return nil, fmt.Errorf("exclusion store is required")
	}
	if opts.Mode == "" {
		opts.Mode = ModeImmediate
	}
	if opts.Mode == ModeScheduled && opts.SendAt.IsZero() {
		return nil, fmt.Errorf("scheduled mode requires a send time")
	}
	if opts.SendDelay < 0 {
		return nil, fmt.Errorf("send delay must not be negative")
	}

	o := &Orchestrator{
		mailer:     deps.Mailer,
		gate:       deps.Gate,
		composer:   deps.Composer,
		exclusions: deps.Exclusions,
		decider:    deps.Decider,
		logger:     deps.Logger,
		recorder:   deps.Recorder,
		opts:       opts,
		sleep:      schedule.Sleep,
		wait:       schedule.WaitUntil,
	}
	if o.decider == nil {
		o.decider = AlwaysAccept
	}
	if o.logger == nil {
		o.logger = logging.DefaultLogger()
	}
	if opts.DryRun {
		o.exclusions = newDryRunExclusions(o.exclusions)
	}
	return o, nil
}

// Run processes ids sequentially and returns the run summary. A Decider
// quit or a canceled context stops the run between messages; the partial
// summary then has Quit set. Gmail calls of the message in progress are not
// interrupted by ctx.
func (o *Orchestrator) Run(ctx context.Context, ids []string) Summary {
	summary := Summary{
		Mode:   o.opts.Mode,
		DryRun: o.opts.DryRun,
		Found:  len(ids),
	}
	if o.opts.MaxPerRun > 0 && len(ids) > o.opts.MaxPerRun {
		ids = ids[:o.opts.MaxPerRun]
	}

	dedup := NewDedupSet()
	var drafts []string

	o.logger.Info("starting resend run",
		logging.KeyMode, string(o.opts.Mode),
		"candidates", len(ids),
		"dry_run", o.opts.DryRun)

	for i, id := range ids {
		if ctx.Err() != nil {
			summary.Quit = true
			o.logger.Warn("run canceled", "processed", summary.Processed())
			return summary
		}

		outcome, quit := o.processOne(ctx, i+1, len(ids), id, dedup)
		if quit {
			summary.Quit = true
			o.logger.Info("run stopped by user", "processed", summary.Processed())
			break
		}
		summary.record(outcome)
		o.recordOutcome(ctx, outcome)

		if outcome.Status == StatusResent && o.opts.Mode == ModeScheduled && outcome.DeliveryID != "" {
			drafts = append(drafts, outcome.DeliveryID)
		}
		if outcome.Status == StatusResent && !o.opts.DryRun && o.opts.SendDelay > 0 && i < len(ids)-1 {
			if err := o.sleep(ctx, o.opts.SendDelay); err != nil {
				summary.Quit = true
				return summary
			}
		}
	}

	if len(drafts) > 0 {
		if err := o.deliverScheduled(ctx, drafts, &summary); err != nil {
			summary.Quit = true
		}
	}
	if ctx.Err() != nil {
		summary.Quit = true
	}

	return summary
}

// processOne handles one candidate. The bool result is true when the
// Decider asked to stop; the message is then not counted. Only the Decider
// sees cancellation of ctx; the Gmail calls finish on a detached context.
func (o *Orchestrator) processOne(ctx context.Context, index, total int, id string, dedup *DedupSet) (Outcome, bool) {
	callCtx, span := instrumentation.StartMessageSpan(context.WithoutCancel(ctx), id, string(o.opts.Mode), o.opts.DryRun)
	defer span.End()

	outcome := Outcome{MessageID: id}

	raw, err := o.mailer.GetMessage(callCtx, id)
	if err != nil {
		o.logger.Warn("could not retrieve message", logging.KeyMessageID, id, logging.KeyError, err)
		instrumentation.SetSpanError(span, err)
		return errored(outcome, err), false
	}

	ex, err := message.Extract(raw)
	if err != nil {
		o.logger.Warn("could not extract message", logging.KeyMessageID, id, logging.KeyError, err)
		instrumentation.SetSpanError(span, err)
		return errored(outcome, err), false
	}
	outcome.To = ex.To
	outcome.Subject = ex.Subject

	decision := o.gate.Evaluate(callCtx, ex, o.exclusions, dedup)
	outcome.Decision = decision
	instrumentation.SetSpanDecision(span, decision.String())
	if !decision.Accepted() {
		o.logger.Info("skipping message",
			logging.KeyMessageID, id,
			logging.KeyRecipient, logging.AnonymizeEmail(message.NormalizeAddress(ex.To)),
			logging.KeyDecision, decision.String(),
			"reason", decision.Reason())
		outcome.Status = StatusSkipped
		return outcome, false
	}
	dedup.Add(ex.To, ex.Subject)

	choice, err := o.decider.Decide(ctx, Candidate{
		Index:   index,
		Total:   total,
		Message: ex,
		Preview: Preview(ex.Body),
	})
	if err != nil {
		o.logger.Warn("decider failed, stopping run", logging.KeyError, err)
		return outcome, true
	}
	outcome.Choice = choice

	switch choice {
	case ChoiceQuit:
		return outcome, true
	case ChoiceSkip:
		o.logger.Info("user skipped message", logging.KeyMessageID, id)
		outcome.Status = StatusSkipped
		return outcome, false
	case ChoiceExclude:
		o.exclude(callCtx, ex.To, instrumentation.ExclusionSourceUser)
		outcome.Status = StatusSkipped
		return outcome, false
	}

	if o.opts.DryRun {
		o.logger.Info("DRY RUN: would resend message",
			logging.KeyMessageID, id,
			logging.KeyMode, string(o.opts.Mode))
		if o.opts.AutoExclude {
			o.exclude(callCtx, ex.To, instrumentation.ExclusionSourceAuto)
		}
		outcome.Status = StatusResent
		return outcome, false
	}

	payload, err := o.composer.Compose(callCtx, ex)
	if err != nil {
		o.logger.Error("could not compose resend", logging.KeyMessageID, id, logging.KeyError, err)
		instrumentation.SetSpanError(span, err)
		return errored(outcome, err), false
	}

	deliveryID, err := o.dispatch(callCtx, payload.Raw)
	if err != nil {
		o.logger.Error("dispatch failed",
			logging.KeyMessageID, id,
			logging.KeyMode, string(o.opts.Mode),
			logging.KeyError, err)
		instrumentation.SetSpanError(span, err)
		return errored(outcome, err), false
	}
	outcome.DeliveryID = deliveryID
	outcome.Status = StatusResent

	o.logger.Info("resent application",
		logging.KeyMessageID, id,
		logging.KeyMode, string(o.opts.Mode),
		"delivery_id", deliveryID,
		"attachments", len(payload.Attachments))

	if o.opts.AutoExclude {
		o.exclude(callCtx, ex.To, instrumentation.ExclusionSourceAuto)
	}

	instrumentation.SetSpanSuccess(span)
	return outcome, false
}

func (o *Orchestrator) dispatch(ctx context.Context, raw []byte) (string, error) {
	start := time.Now()

	var (
		id  string
		err error
	)
	switch o.opts.Mode {
	case ModeDrafts, ModeScheduled:
		id, err = o.mailer.CreateDraft(ctx, raw)
	default:
		id, err = o.mailer.Send(ctx, raw)
	}

	if o.recorder != nil {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		o.recorder.RecordDispatch(ctx, string(o.opts.Mode), status, time.Since(start))
	}
	return id, err
}

func (o *Orchestrator) exclude(ctx context.Context, addr, source string) {
	added, err := o.exclusions.Add(addr)
	recipient := logging.AnonymizeEmail(message.NormalizeAddress(addr))
	if err != nil {
		o.logger.Error("failed to persist exclusion", logging.KeyRecipient, recipient, logging.KeyError, err)
		return
	}
	if !added {
		return
	}
	instrumentation.AddExclusionEvent(ctx, source, o.opts.DryRun)
	if o.opts.DryRun {
		o.logger.Info("DRY RUN: would add recipient to exclusion list", logging.KeyRecipient, recipient, "source", source)
		return
	}
	o.logger.Info("added recipient to exclusion list", logging.KeyRecipient, recipient, "source", source)
	if o.recorder != nil {
		o.recorder.RecordExclusion(ctx, source, message.NormalizeAddress(addr))
	}
}

// deliverScheduled waits until SendAt and sends the drafts created during
// the run. Drafts that cannot be sent stay in the Gmail drafts folder.
func (o *Orchestrator) deliverScheduled(ctx context.Context, drafts []string, summary *Summary) error {
	o.logger.Info("waiting for scheduled delivery",
		"send_at", o.opts.SendAt.Format(time.RFC3339),
		"drafts", len(drafts))

	if err := o.wait(ctx, o.opts.SendAt); err != nil {
		o.logger.Warn("scheduled delivery canceled, drafts left in Gmail", "drafts", len(drafts))
		return err
	}

	for i, draftID := range drafts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := o.mailer.SendDraft(context.WithoutCancel(ctx), draftID); err != nil {
			summary.DeliveryErrors++
			o.logger.Error("failed to send scheduled draft", "draft_id", draftID, logging.KeyError, err)
			continue
		}
		summary.Delivered++
		if o.opts.SendDelay > 0 && i < len(drafts)-1 {
			if err := o.sleep(ctx, o.opts.SendDelay); err != nil {
				return err
			}
		}
	}

	o.logger.Info("scheduled delivery finished",
		"delivered", summary.Delivered,
		"failed", summary.DeliveryErrors)
	return nil
}

func (o *Orchestrator) recordOutcome(ctx context.Context, outcome Outcome) {
	if o.recorder == nil {
		return
	}
	decision := "none"
	if outcome.Status != StatusErrored || outcome.To != "" {
		decision = outcome.Decision.String()
	}
	o.recorder.RecordMessageOutcome(ctx, string(outcome.Status), decision)
}

func errored(o Outcome, err error) Outcome {
	o.Status = StatusErrored
	o.Err = err
	return o
}

// IsFatal reports whether err should abort the process with a failure.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
