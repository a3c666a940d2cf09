package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "helper-engine"
)

// GetTracer returns the tracer for the orchestration engine.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// ConversationAttributes returns common attributes for orchestration spans.
func ConversationAttributes(slug string, messageID uint) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("conversation.slug", slug),
		attribute.Int("conversation.message_id", int(messageID)),
	}
}

// ToolAttributes returns common attributes for tool spans.
func ToolAttributes(toolSlug, method string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("tool.slug", toolSlug),
		attribute.String("tool.method", method),
	}
}

// StartTurnSpan starts a new span for an orchestration turn.
func StartTurnSpan(ctx context.Context, slug string, messageID uint) (context.Context, trace.Span) {
	ctx, span := GetTracer().Start(ctx, "turn.respond",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(ConversationAttributes(slug, messageID)...),
	)
	return ctx, span
}

// StartToolSpan starts a new span for a tool invocation.
func StartToolSpan(ctx context.Context, toolSlug, method string) (context.Context, trace.Span) {
	ctx, span := GetTracer().Start(ctx, "tool.execute."+toolSlug,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(ToolAttributes(toolSlug, method)...),
	)
	return ctx, span
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddEscalationEvent marks a handoff to human support on a span.
func AddEscalationEvent(span trace.Span, trigger string) {
	span.AddEvent("conversation.escalated",
		trace.WithAttributes(
			attribute.String("escalation.trigger", trigger),
		),
	)
}
