// Package nats delivers platform events and guild lifecycle notifications
// from the gateway fleet to the runtime over NATS JetStream.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/guildkit/guildkit/internal/domain/capability"
	"github.com/guildkit/guildkit/internal/domain/guild"
)

const streamName = "GUILDKIT"

// Subjects published by the gateway fleet.
const (
	SubjectEvents      = "guild.events.>" // guild.events.{kind}
	SubjectGuildJoined = "guild.lifecycle.joined"
	SubjectGuildLeft   = "guild.lifecycle.left"
)

// EventSink receives decoded platform events. The runtime service satisfies
// it.
type EventSink interface {
	DispatchEvent(ctx context.Context, ev capability.Event)
}

// LifecycleSink receives guild join/leave notifications.
type LifecycleSink interface {
	InitializeForTenant(ctx context.Context, g guild.Guild) error
	RemoveTenant(ctx context.Context, guildID string) error
}

// Queue is the JetStream connection and consumers.
type Queue struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the JetStream stream
// exists.
func Connect(ctx context.Context, url string) (*Queue, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"guild.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{nc: nc, js: js}, nil
}

// SubscribeEvents consumes guild.events.* and feeds decoded events into the
// sink. Undecodable or unknown-kind messages are logged and acked so they
// never wedge the consumer.
func (q *Queue) SubscribeEvents(ctx context.Context, sink EventSink) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       "guildkit-events",
		FilterSubject: SubjectEvents,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats events consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		defer func() {
			if ackErr := msg.Ack(); ackErr != nil {
				slog.Error("nats ack failed", "error", ackErr)
			}
		}()

		var ev capability.Event
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			slog.Warn("event decode failed, dropping", "subject", msg.Subject(), "error", err)
			return
		}
		if _, err := capability.ParseEventKind(string(ev.Kind)); err != nil {
			slog.Warn("unknown event kind, dropping", "subject", msg.Subject(), "kind", ev.Kind)
			return
		}

		// Fan-out isolates handler failures; nothing to NAK here.
		sink.DispatchEvent(ctx, ev)
	})
	if err != nil {
		return nil, fmt.Errorf("nats events consume: %w", err)
	}

	return cons.Stop, nil
}

// SubscribeLifecycle consumes guild join/leave notifications.
func (q *Queue) SubscribeLifecycle(ctx context.Context, sink LifecycleSink) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:        "guildkit-lifecycle",
		FilterSubjects: []string{SubjectGuildJoined, SubjectGuildLeft},
		AckPolicy:      jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats lifecycle consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		defer func() {
			if ackErr := msg.Ack(); ackErr != nil {
				slog.Error("nats ack failed", "error", ackErr)
			}
		}()

		switch msg.Subject() {
		case SubjectGuildJoined:
			var g guild.Guild
			if err := json.Unmarshal(msg.Data(), &g); err != nil {
				slog.Warn("guild join decode failed, dropping", "error", err)
				return
			}
			if err := sink.InitializeForTenant(ctx, g); err != nil {
				slog.Error("guild initialize failed", "guild_id", g.ID, "error", err)
			}
		case SubjectGuildLeft:
			var payload struct {
				GuildID string `json:"guild_id"`
			}
			if err := json.Unmarshal(msg.Data(), &payload); err != nil {
				slog.Warn("guild leave decode failed, dropping", "error", err)
				return
			}
			if err := sink.RemoveTenant(ctx, payload.GuildID); err != nil {
				slog.Warn("guild removal failed", "guild_id", payload.GuildID, "error", err)
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats lifecycle consume: %w", err)
	}

	return cons.Stop, nil
}

// Drain gracefully drains subscriptions before closing.
func (q *Queue) Drain() error {
	return q.nc.Drain()
}

// Close shuts down the NATS connection immediately.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the connection is currently up.
func (q *Queue) IsConnected() bool {
	return q.nc != nil && q.nc.IsConnected()
}
