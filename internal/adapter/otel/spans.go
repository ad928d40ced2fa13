package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "guildkit"

// StartDispatchSpan starts a span for a command invocation.
func StartDispatchSpan(ctx context.Context, invocationID, commandName, guildID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.String("invocation.id", invocationID),
			attribute.String("command.name", commandName),
			attribute.String("guild.id", guildID),
		),
	)
}

// StartEventSpan starts a span for a platform event fan-out.
func StartEventSpan(ctx context.Context, kind, guildID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "event",
		trace.WithAttributes(
			attribute.String("event.kind", kind),
			attribute.String("guild.id", guildID),
		),
	)
}
