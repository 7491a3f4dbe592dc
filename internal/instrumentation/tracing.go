package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of every resender span and metric.
const TracerName = "github.com/teemow/resender"

// Span attribute keys.
const (
	SpanAttrTool       = "mcp.tool"
	SpanAttrService    = "google.service"
	SpanAttrOperation  = "google.operation"
	SpanAttrResourceID = "resource.id"
	SpanAttrMode       = "resend.mode"
	SpanAttrDryRun     = "resend.dry_run"
	SpanAttrDecision   = "resend.decision"
	SpanAttrSource     = "exclusion.source"
)

// SpanMessage is the name of the span covering one candidate message.
const SpanMessage = "resend.message"

// EventExclusionAdded is recorded on the message span when its recipient
// joins the exclusion list.
const EventExclusionAdded = "exclusion.added"

func tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(TracerName)
}

// StartMessageSpan starts the span for one candidate message of a resend run.
// The Gmail calls made for the message become its children.
func StartMessageSpan(ctx context.Context, messageID, mode string, dryRun bool) (context.Context, trace.Span) {
	return tracer().Start(ctx, SpanMessage, trace.WithAttributes(
		attribute.String(SpanAttrResourceID, messageID),
		attribute.String(SpanAttrMode, mode),
		attribute.Bool(SpanAttrDryRun, dryRun),
	))
}

// SetSpanDecision records the eligibility gate decision on a message span.
func SetSpanDecision(span trace.Span, decision string) {
	span.SetAttributes(attribute.String(SpanAttrDecision, decision))
}

// AddExclusionEvent marks the span in ctx with an exclusion of its recipient.
// The address itself is left out of the trace.
func AddExclusionEvent(ctx context.Context, source string, dryRun bool) {
	trace.SpanFromContext(ctx).AddEvent(EventExclusionAdded, trace.WithAttributes(
		attribute.String(SpanAttrSource, source),
		attribute.Bool(SpanAttrDryRun, dryRun),
	))
}

// StartToolSpan starts a server span for an MCP tool invocation.
func StartToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "tool."+toolName,
		trace.WithAttributes(attribute.String(SpanAttrTool, toolName)),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartGoogleAPISpan starts a client span for a Google API call.
func StartGoogleAPISpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs,
		attribute.String(SpanAttrService, service),
		attribute.String(SpanAttrOperation, operation),
	)
	allAttrs = append(allAttrs, attrs...)

	return tracer().Start(ctx, "google."+service+"."+operation,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// SetSpanError records err on the span and marks it failed. A nil err is ignored.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks the span OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// SpanIDs returns the hex trace and span ids of the span in ctx, or two
// empty strings when ctx carries no valid span.
func SpanIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
