package resend

import (
	"fmt"

	"github.com/teemow/resender/internal/message"
)

// dryRunExclusions answers membership from the persistent store plus the
// exclusions a dry run would have made. Nothing is written to the store.
type dryRunExclusions struct {
	store   ExclusionStore
	pending map[string]struct{}
}

func newDryRunExclusions(store ExclusionStore) *dryRunExclusions {
	return &dryRunExclusions{store: store, pending: map[string]struct{}{}}
}

func (d *dryRunExclusions) Contains(addr string) bool {
	if d.store.Contains(addr) {
		return true
	}
	_, ok := d.pending[message.NormalizeAddress(addr)]
	return ok
}

func (d *dryRunExclusions) Add(addr string) (bool, error) {
	key := message.NormalizeAddress(addr)
	if key == "" {
		return false, fmt.Errorf("empty address")
	}
	if d.Contains(key) {
		return false, nil
	}
	d.pending[key] = struct{}{}
	return true, nil
}
