package resend

import (
	"context"
	"fmt"

	"github.com/teemow/resender/internal/logging"
	"github.com/teemow/resender/internal/message"
)

// DefaultSearchLimit bounds the candidate search when no per-run cap is set.
const DefaultSearchLimit = 500

// Client is what a complete run needs from Gmail. *gmail.Client
// implements it.
type Client interface {
	Mailer
	Searcher
	message.AttachmentFetcher
	CountSentTo(ctx context.Context, addr string) int
}

// Settings configure RunBatch.
type Settings struct {
	Options

	// Keywords and Phrases override the classifier defaults when non-empty.
	Keywords []string
	Phrases  []string

	// PerRecipientCap is the prior sent count at which a recipient is
	// rejected. <= 0 disables the check.
	PerRecipientCap int

	// Prefix and Preamble override the composer defaults when non-empty.
	Prefix   string
	Preamble string
}

// RunBatch searches the sent folder and runs every candidate through the
// pipeline. Only a failed search is returned as an error, wrapped in
// ErrFatal.
func RunBatch(ctx context.Context, client Client, exclusions ExclusionStore, decider Decider, settings Settings, logger logging.Logger, recorder Recorder) (Summary, error) {
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	classifier := message.NewClassifier(settings.Keywords, settings.Phrases)

	limit := settings.MaxPerRun
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	ids, err := FindCandidates(ctx, client, classifier.Keywords(), limit)
	if err != nil {
		return Summary{Mode: settings.Mode, DryRun: settings.DryRun}, err
	}
	logger.Info("found candidate messages", "count", len(ids))

	o, err := NewOrchestrator(Dependencies{
		Mailer:     client,
		Gate:       NewGate(classifier, settings.PerRecipientCap, client.CountSentTo),
		Composer:   message.NewComposer(settings.Prefix, settings.Preamble, client, logger),
		Exclusions: exclusions,
		Decider:    decider,
		Logger:     logger,
		Recorder:   recorder,
	}, settings.Options)
	if err != nil {
		return Summary{}, fmt.Errorf("invalid run settings: %w", err)
	}

	return o.Run(ctx, ids), nil
}
