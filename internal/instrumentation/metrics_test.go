package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordMessageOutcome(t *testing.T) {
	provider, reg := newRegistryProvider(t, nil)
	ctx := context.Background()

	provider.Metrics().RecordMessageOutcome(ctx, "resent", "accept")
	provider.Metrics().RecordMessageOutcome(ctx, "skipped", "reject_over_cap")
	provider.Metrics().RecordMessageOutcome(ctx, "errored", "none")

	assert.Equal(t, 3.0, counterValue(t, reg, "resender_messages_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "resender_messages_total",
		map[string]string{"status": "skipped", "decision": "reject_over_cap"}))
}

func TestMetrics_RecordDispatch(t *testing.T) {
	provider, reg := newRegistryProvider(t, nil)
	ctx := context.Background()

	provider.Metrics().RecordDispatch(ctx, "immediate", StatusSuccess, 300*time.Millisecond)
	provider.Metrics().RecordDispatch(ctx, "drafts", StatusError, 2*time.Second)

	assert.Equal(t, 1.0, counterValue(t, reg, "resender_dispatch_total",
		map[string]string{"mode": "drafts", "status": StatusError}))
	assert.NotEmpty(t, labelsOf(t, reg, "resender_dispatch_duration_seconds"))
}

func TestMetrics_RecordExclusion(t *testing.T) {
	tests := []struct {
		name       string
		detailed   bool
		wantDomain string
	}{
		{name: "domain hidden by default", detailed: false, wantDomain: ""},
		{name: "domain with detailed labels", detailed: true, wantDomain: "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, reg := newRegistryProvider(t, func(c *Config) { c.DetailedLabels = tt.detailed })

			provider.Metrics().RecordExclusion(context.Background(), ExclusionSourceAuto, "jane@example.com")

			samples := labelsOf(t, reg, "resender_exclusions_added_total")
			require.Len(t, samples, 1)
			assert.Equal(t, ExclusionSourceAuto, samples[0]["source"])
			assert.Equal(t, tt.wantDomain, samples[0]["recipient_domain"])
		})
	}
}

func TestMetrics_RecordGoogleAPIOperation(t *testing.T) {
	provider, reg := newRegistryProvider(t, nil)
	ctx := context.Background()

	provider.Metrics().RecordGoogleAPIOperation(ctx, ServiceGmail, OperationList, StatusSuccess, 200*time.Millisecond)
	provider.Metrics().RecordGoogleAPIOperation(ctx, ServiceGmail, OperationSend, StatusError, 500*time.Millisecond)
	provider.Metrics().RecordBreakerTransition(ctx, "closed", "open")

	assert.Equal(t, 1.0, counterValue(t, reg, "google_api_operations_total",
		map[string]string{"service": ServiceGmail, "operation": OperationSend, "status": StatusError}))
	assert.Equal(t, 1.0, counterValue(t, reg, "gmail_circuit_breaker_transitions_total",
		map[string]string{"from": "closed", "to": "open"}))
}

func TestMetrics_RecordOAuthAndTools(t *testing.T) {
	provider, reg := newRegistryProvider(t, nil)
	ctx := context.Background()

	provider.Metrics().RecordOAuthAuth(ctx, OAuthResultSuccess)
	provider.Metrics().RecordOAuthAuth(ctx, OAuthResultFailure)
	provider.Metrics().RecordToolInvocation(ctx, "resender_preview", StatusSuccess, 100*time.Millisecond)

	assert.Equal(t, 2.0, counterValue(t, reg, "oauth_auth_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "mcp_tool_invocations_total",
		map[string]string{"tool": "resender_preview"}))
}

func TestMetrics_ZeroValueIsNoOp(t *testing.T) {
	var m Metrics
	ctx := context.Background()

	m.RecordMessageOutcome(ctx, "skipped", "reject_over_cap")
	m.RecordDispatch(ctx, "scheduled", StatusSuccess, time.Millisecond)
	m.RecordExclusion(ctx, ExclusionSourceUser, "a@b.com")
	m.RecordBreakerTransition(ctx, "closed", "open")
	m.RecordGoogleAPIOperation(ctx, ServiceGmail, OperationGet, StatusSuccess, time.Millisecond)
	m.RecordOAuthAuth(ctx, OAuthResultSuccess)
	m.RecordToolInvocation(ctx, "resender_exclude", StatusSuccess, time.Millisecond)
}
