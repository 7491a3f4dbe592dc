package resend

import "github.com/teemow/resender/internal/message"

type dedupKey struct {
	to      string
	subject string
}

// DedupSet holds the (recipient, subject) pairs accepted during one run.
type DedupSet struct {
	seen map[dedupKey]struct{}
}

// NewDedupSet returns an empty set.
func NewDedupSet() *DedupSet {
	return &DedupSet{seen: make(map[dedupKey]struct{})}
}

func newDedupKey(to, subject string) dedupKey {
	return dedupKey{to: message.NormalizeAddress(to), subject: subject}
}

// Contains reports whether the pair was already accepted.
func (d *DedupSet) Contains(to, subject string) bool {
	_, ok := d.seen[newDedupKey(to, subject)]
	return ok
}

// Add records the pair.
func (d *DedupSet) Add(to, subject string) {
	d.seen[newDedupKey(to, subject)] = struct{}{}
}

// Len returns the number of recorded pairs.
func (d *DedupSet) Len() int {
	return len(d.seen)
}
