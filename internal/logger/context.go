package logger

import "context"

type requestIDKey struct{}
type guildIDKey struct{}

// WithRequestID returns a new context with the given request ID stored.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID extracts the request ID from the context.
// Returns an empty string if no request ID is set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithGuildID returns a new context carrying the guild a unit of work
// belongs to.
func WithGuildID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, guildIDKey{}, id)
}

// GuildID extracts the guild ID from the context.
// Returns an empty string if no guild ID is set.
func GuildID(ctx context.Context) string {
	id, _ := ctx.Value(guildIDKey{}).(string)
	return id
}
