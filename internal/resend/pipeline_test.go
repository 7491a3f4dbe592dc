package resend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/resender/internal/exclusion"
	"github.com/teemow/resender/internal/logging"
)

type fakeClient struct {
	*fakeMailer
	ids       []string
	searchErr error
	queries   []string
	limits    []int64
	counts    map[string]int
}

func (c *fakeClient) Search(_ context.Context, query string, maxResults int64) ([]string, error) {
	c.queries = append(c.queries, query)
	c.limits = append(c.limits, maxResults)
	if c.searchErr != nil {
		return nil, c.searchErr
	}
	return c.ids, nil
}

func (c *fakeClient) CountSentTo(_ context.Context, addr string) int {
	return c.counts[addr]
}

func TestRunBatch(t *testing.T) {
	client := &fakeClient{
		fakeMailer: newFakeMailer(
			sentMessage("m1", "jane@example.com", "Application for Engineer", "Dear hiring manager"),
			sentMessage("m2", "bob@example.com", "Job application", "hello"),
		),
		ids:    []string{"m1", "m2"},
		counts: map[string]int{"bob@example.com": 3},
	}
	store, err := exclusion.Load(filepath.Join(t.TempDir(), "excluded.txt"))
	require.NoError(t, err)

	summary, err := RunBatch(context.Background(), client, store, nil, Settings{
		Options:         Options{Mode: ModeImmediate, AutoExclude: true, MaxPerRun: 50},
		Keywords:        []string{"application"},
		PerRecipientCap: 2,
		Prefix:          "Following up:",
	}, logging.Discard(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{`in:sent ("application")`}, client.queries)
	assert.Equal(t, []int64{50}, client.limits)
	assert.Equal(t, 2, summary.Found)
	assert.Equal(t, 1, summary.Resent)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, client.sent, 1)
	assert.Contains(t, string(client.sent[0]), "Following up: Application for Engineer")
	assert.True(t, store.Contains("jane@example.com"))
}

func TestRunBatch_DefaultSearchLimit(t *testing.T) {
	client := &fakeClient{fakeMailer: newFakeMailer()}
	store, err := exclusion.Load(filepath.Join(t.TempDir(), "excluded.txt"))
	require.NoError(t, err)

	summary, err := RunBatch(context.Background(), client, store, nil, Settings{}, logging.Discard(), nil)
	require.NoError(t, err)

	assert.Equal(t, []int64{DefaultSearchLimit}, client.limits)
	assert.Equal(t, 0, summary.Found)
}

func TestRunBatch_SearchFailureIsFatal(t *testing.T) {
	client := &fakeClient{fakeMailer: newFakeMailer(), searchErr: errors.New("unauthorized")}
	store, err := exclusion.Load(filepath.Join(t.TempDir(), "excluded.txt"))
	require.NoError(t, err)

	_, err = RunBatch(context.Background(), client, store, nil, Settings{}, logging.Discard(), nil)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Empty(t, client.gets)
}

func TestRunBatch_InvalidSettings(t *testing.T) {
	client := &fakeClient{fakeMailer: newFakeMailer()}
	store, err := exclusion.Load(filepath.Join(t.TempDir(), "excluded.txt"))
	require.NoError(t, err)

	_, err = RunBatch(context.Background(), client, store, nil, Settings{
		Options: Options{Mode: ModeScheduled},
	}, logging.Discard(), nil)
	require.Error(t, err)
	assert.False(t, IsFatal(err))
}
