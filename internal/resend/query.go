package resend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// ErrFatal marks failures that abort the whole run.
var ErrFatal = errors.New("fatal")

// Searcher runs a Gmail search and returns message ids.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int64) ([]string, error)
}

// BuildSearchQuery returns the sent-folder candidate query:
// in:sent ("kw1" OR "kw2" ...).
func BuildSearchQuery(keywords []string) string {
	quoted := lo.Map(keywords, func(kw string, _ int) string {
		return `"` + kw + `"`
	})
	return "in:sent (" + strings.Join(quoted, " OR ") + ")"
}

// FindCandidates runs the candidate search. A failed search is fatal.
func FindCandidates(ctx context.Context, s Searcher, keywords []string, maxResults int) ([]string, error) {
	query := BuildSearchQuery(keywords)
	ids, err := s.Search(ctx, query, int64(maxResults))
	if err != nil {
		return nil, fmt.Errorf("%w: candidate search failed: %v", ErrFatal, err)
	}
	return ids, nil
}
