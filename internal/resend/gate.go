package resend

import (
	"context"

	"github.com/teemow/resender/internal/message"
)

// Membership answers exclusion-list lookups.
type Membership interface {
	Contains(addr string) bool
}

// SentCounter returns how many messages already sit in Sent for addr.
// Implementations log their own failures and return 0.
type SentCounter func(ctx context.Context, addr string) int

// Gate decides whether an extracted message may be resent. It never
// mutates the exclusion or dedup sets; callers do that after acting on
// an Accept.
type Gate struct {
	classifier      *message.Classifier
	perRecipientCap int
	countSent       SentCounter
}

// NewGate creates a Gate. A perRecipientCap <= 0 disables the cap check
// and the count query behind it.
func NewGate(classifier *message.Classifier, perRecipientCap int, countSent SentCounter) *Gate {
	if classifier == nil {
		classifier = message.NewClassifier(nil, nil)
	}
	return &Gate{
		classifier:      classifier,
		perRecipientCap: perRecipientCap,
		countSent:       countSent,
	}
}

// Evaluate runs the checks in order; the first failing check is the
// reported decision:
//
//  1. not a job application
//  2. invalid recipient address
//  3. recipient excluded
//  4. recipient already at the per-recipient cap
//  5. recipient and subject already accepted in this run
func (g *Gate) Evaluate(ctx context.Context, ex *message.Extracted, excluded Membership, dedup *DedupSet) Decision {
	if !g.classifier.IsJobApplication(ex.Subject, ex.Body) {
		return RejectNotJobApplication
	}

	if !message.ValidAddress(ex.To) {
		return RejectInvalidAddress
	}

	if excluded != nil && excluded.Contains(ex.To) {
		return RejectExcluded
	}

	if g.perRecipientCap > 0 && g.countSent != nil {
		if g.countSent(ctx, message.CleanAddress(ex.To)) >= g.perRecipientCap {
			return RejectOverCap
		}
	}

	if dedup != nil && dedup.Contains(ex.To, ex.Subject) {
		return RejectDuplicateInRun
	}

	return Accept
}
