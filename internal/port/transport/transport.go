// Package transport defines the transport layer port (interface). The core
// never holds a platform connection itself; it replies through this port.
package transport

import (
	"context"

	"github.com/guildkit/guildkit/internal/domain/command"
)

// Message is an outbound reply. Code carries the machine-readable error code
// on failure replies; Ephemeral messages are visible only to the invoker.
type Message struct {
	Content   string `json:"content"`
	Code      string `json:"code,omitempty"`
	Ephemeral bool   `json:"ephemeral,omitempty"`
}

// Replier is the outbound side of the transport port.
type Replier interface {
	// Reply sends the initial response to an invocation.
	Reply(ctx context.Context, inv *command.Invocation, msg Message) error

	// EditReply replaces a previously sent response.
	EditReply(ctx context.Context, inv *command.Invocation, msg Message) error

	// SendAutocomplete delivers suggestion candidates for a partial input.
	// The transport protocol caps candidates at 25; callers must not exceed it.
	SendAutocomplete(ctx context.Context, inv *command.Invocation, choices []command.Choice) error
}
