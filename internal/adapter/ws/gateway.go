// Package ws implements the transport port over a WebSocket connection to
// the chat-platform gateway.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/guildkit/guildkit/internal/domain/capability"
	"github.com/guildkit/guildkit/internal/domain/command"
	"github.com/guildkit/guildkit/internal/domain/guild"
	"github.com/guildkit/guildkit/internal/port/transport"
	"github.com/guildkit/guildkit/internal/service"
)

// Frame is the envelope for all gateway messages, both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound frame types.
const (
	frameInvocation   = "invocation"
	frameAutocomplete = "autocomplete"
	frameEvent        = "event"
	frameGuildCreate  = "guild_create"
	frameGuildDelete  = "guild_delete"
	frameMemberState  = "member_state"
)

// Outbound frame types.
const (
	frameReply               = "reply"
	frameReplyEdit           = "reply_edit"
	frameAutocompleteResults = "autocomplete_results"
)

// autocompletePayload is an inbound autocomplete interaction.
type autocompletePayload struct {
	Invocation command.Invocation `json:"invocation"`
	Argument   string             `json:"argument"`
	Partial    string             `json:"partial"`
}

// memberState is the gateway's snapshot of one member's permissions and
// roles in a guild. It backs the Directory lookups.
type memberState struct {
	GuildID     string   `json:"guild_id"`
	UserID      string   `json:"user_id"`
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles"`
}

// replyPayload is an outbound reply frame.
type replyPayload struct {
	InvocationID string `json:"invocation_id"`
	Content      string `json:"content"`
	Code         string `json:"code,omitempty"`
	Ephemeral    bool   `json:"ephemeral,omitempty"`
}

// Gateway is the WebSocket transport: it feeds inbound invocations and
// events into the dispatcher and runtime, and writes replies back. It
// implements transport.Replier and transport.Directory.
type Gateway struct {
	url   string
	token string

	dispatcher *service.DispatcherService
	runtime    *service.RuntimeService

	mu   sync.Mutex
	conn *websocket.Conn

	memberMu sync.RWMutex
	members  map[string]memberState // guildID + "\x00" + userID
}

// NewGateway creates a gateway client. SetDispatcher must be called before
// Run; the dispatcher is constructed after the gateway because it needs the
// gateway as its Replier.
func NewGateway(url, token string, runtime *service.RuntimeService) *Gateway {
	return &Gateway{
		url:     url,
		token:   token,
		runtime: runtime,
		members: make(map[string]memberState),
	}
}

// SetDispatcher wires the command dispatcher.
func (g *Gateway) SetDispatcher(d *service.DispatcherService) {
	g.dispatcher = d
}

// Run connects to the gateway and processes frames until ctx is canceled.
// Connection loss reconnects with linear backoff.
func (g *Gateway) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := g.connectAndRead(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("gateway connection lost, reconnecting", "error", err, "backoff", backoff)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff += time.Second
		}
	}
}

func (g *Gateway) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, g.url, &websocket.DialOptions{
		HTTPHeader: map[string][]string{"Authorization": {"Bot " + g.token}},
	})
	if err != nil {
		return fmt.Errorf("gateway dial: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.conn = nil
		g.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	slog.Info("gateway connected", "url", g.url)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("gateway read: %w", err)
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Warn("gateway frame decode failed, dropping", "error", err)
			continue
		}
		g.handleFrame(ctx, frame)
	}
}

// handleFrame routes one inbound frame. Invocations and events run in their
// own goroutine so a slow handler never stalls the read loop.
func (g *Gateway) handleFrame(ctx context.Context, frame Frame) {
	switch frame.Type {
	case frameInvocation:
		var inv command.Invocation
		if err := json.Unmarshal(frame.Payload, &inv); err != nil {
			slog.Warn("invocation decode failed, dropping", "error", err)
			return
		}
		go g.dispatcher.Dispatch(ctx, &inv)

	case frameAutocomplete:
		var p autocompletePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			slog.Warn("autocomplete decode failed, dropping", "error", err)
			return
		}
		go g.dispatcher.Suggest(ctx, &p.Invocation, p.Argument, p.Partial, nil)

	case frameEvent:
		var ev capability.Event
		if err := json.Unmarshal(frame.Payload, &ev); err != nil {
			slog.Warn("event decode failed, dropping", "error", err)
			return
		}
		go g.runtime.DispatchEvent(ctx, ev)

	case frameGuildCreate:
		var gd guild.Guild
		if err := json.Unmarshal(frame.Payload, &gd); err != nil {
			slog.Warn("guild create decode failed, dropping", "error", err)
			return
		}
		go func() {
			if err := g.runtime.InitializeForTenant(ctx, gd); err != nil {
				slog.Error("guild initialize failed", "guild_id", gd.ID, "error", err)
			}
		}()

	case frameGuildDelete:
		var payload struct {
			GuildID string `json:"guild_id"`
		}
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			slog.Warn("guild delete decode failed, dropping", "error", err)
			return
		}
		go func() {
			if err := g.runtime.RemoveTenant(ctx, payload.GuildID); err != nil {
				slog.Warn("guild removal failed", "guild_id", payload.GuildID, "error", err)
			}
		}()

	case frameMemberState:
		var ms memberState
		if err := json.Unmarshal(frame.Payload, &ms); err != nil {
			slog.Warn("member state decode failed, dropping", "error", err)
			return
		}
		g.memberMu.Lock()
		g.members[ms.GuildID+"\x00"+ms.UserID] = ms
		g.memberMu.Unlock()

	default:
		slog.Debug("unhandled gateway frame", "type", frame.Type)
	}
}

// write sends one frame on the current connection.
func (g *Gateway) write(ctx context.Context, frameType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", frameType, err)
	}
	out, err := json.Marshal(Frame{Type: frameType, Payload: data})
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", frameType, err)
	}

	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("gateway not connected")
	}
	return conn.Write(ctx, websocket.MessageText, out)
}

// Reply sends the initial response to an invocation.
func (g *Gateway) Reply(ctx context.Context, inv *command.Invocation, msg transport.Message) error {
	return g.write(ctx, frameReply, replyPayload{
		InvocationID: inv.ID,
		Content:      msg.Content,
		Code:         msg.Code,
		Ephemeral:    msg.Ephemeral,
	})
}

// EditReply replaces a previously sent response.
func (g *Gateway) EditReply(ctx context.Context, inv *command.Invocation, msg transport.Message) error {
	return g.write(ctx, frameReplyEdit, replyPayload{
		InvocationID: inv.ID,
		Content:      msg.Content,
		Code:         msg.Code,
		Ephemeral:    msg.Ephemeral,
	})
}

// SendAutocomplete delivers suggestion candidates for a partial input.
func (g *Gateway) SendAutocomplete(ctx context.Context, inv *command.Invocation, choices []command.Choice) error {
	return g.write(ctx, frameAutocompleteResults, struct {
		InvocationID string           `json:"invocation_id"`
		Choices      []command.Choice `json:"choices"`
	}{InvocationID: inv.ID, Choices: choices})
}

// HasPermission answers from the gateway's member state cache. Unknown
// members have no permissions.
func (g *Gateway) HasPermission(_ context.Context, guildID, userID, perm string) bool {
	g.memberMu.RLock()
	ms, ok := g.members[guildID+"\x00"+userID]
	g.memberMu.RUnlock()
	if !ok {
		return false
	}
	for _, p := range ms.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// HasRole answers from the gateway's member state cache.
func (g *Gateway) HasRole(_ context.Context, guildID, userID, roleID string) bool {
	g.memberMu.RLock()
	ms, ok := g.members[guildID+"\x00"+userID]
	g.memberMu.RUnlock()
	if !ok {
		return false
	}
	for _, r := range ms.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}
