package message

import (
	"strings"

	"github.com/samber/lo"
)

// DefaultKeywords are matched against both subject and body.
var DefaultKeywords = []string{
	"application",
	"job",
	"resume",
	"cover letter",
	"position",
	"career",
	"opportunity",
	"applied",
	"applying",
	"hire",
	"employment",
	"vacancy",
	"role",
	"interview",
}

// DefaultPhrases are matched against the body only.
var DefaultPhrases = []string{
	"dear hiring manager",
	"dear recruiter",
	"i am writing to apply",
	"application for",
	"interested in the position",
	"attached resume",
	"cover letter",
}

// Classifier decides whether a message looks like a job application using
// case-insensitive substring heuristics.
type Classifier struct {
	keywords []string
	phrases  []string
}

// NewClassifier creates a Classifier. Empty slices fall back to the defaults.
func NewClassifier(keywords, phrases []string) *Classifier {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	if len(phrases) == 0 {
		phrases = DefaultPhrases
	}
	return &Classifier{
		keywords: lowerAll(keywords),
		phrases:  lowerAll(phrases),
	}
}

// Keywords returns the lowercased keyword list.
func (c *Classifier) Keywords() []string {
	return c.keywords
}

// IsJobApplication reports whether any keyword occurs in subject or body,
// or any phrase occurs in body.
func (c *Classifier) IsJobApplication(subject, body string) bool {
	subject = strings.ToLower(subject)
	body = strings.ToLower(body)

	if lo.ContainsBy(c.keywords, func(kw string) bool {
		return strings.Contains(subject, kw) || strings.Contains(body, kw)
	}) {
		return true
	}

	return lo.ContainsBy(c.phrases, func(phrase string) bool {
		return strings.Contains(body, phrase)
	})
}

func lowerAll(words []string) []string {
	return lo.FilterMap(words, func(w string, _ int) (string, bool) {
		w = strings.ToLower(strings.TrimSpace(w))
		return w, w != ""
	})
}
