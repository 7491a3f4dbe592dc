package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr string
	}{
		{name: "later today", input: "16:05", want: time.Date(2025, 6, 2, 16, 5, 0, 0, time.UTC)},
		{name: "passed rolls to tomorrow", input: "09:00", want: time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)},
		{name: "now rolls to tomorrow", input: "14:30", want: time.Date(2025, 6, 3, 14, 30, 0, 0, time.UTC)},
		{name: "single digit hour", input: "9:15", want: time.Date(2025, 6, 3, 9, 15, 0, 0, time.UTC)},
		{name: "date and time", input: "2025-06-10 08:00", want: time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)},
		{name: "extra spaces", input: "  2025-06-10   08:00 ", want: time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)},
		{name: "date in the past", input: "2025-06-01 08:00", wantErr: "must be in the future"},
		{name: "out of range", input: "25:00", wantErr: "invalid time"},
		{name: "garbage", input: "tomorrow", wantErr: "invalid time"},
		{name: "empty", input: "", wantErr: "empty time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.input, now)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseTime_UsesNowLocation(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	now := time.Date(2025, 6, 2, 8, 0, 0, 0, loc)

	got, err := ParseTime("10:00", now)
	require.NoError(t, err)
	assert.Equal(t, loc, got.Location())
	assert.Equal(t, 10, got.Hour())
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))
	require.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestWaitUntil(t *testing.T) {
	require.NoError(t, WaitUntil(context.Background(), time.Now().Add(-time.Minute)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, WaitUntil(ctx, time.Now().Add(time.Hour)), context.DeadlineExceeded)
}
