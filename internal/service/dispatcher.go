package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	gkotel "github.com/guildkit/guildkit/internal/adapter/otel"
	"github.com/guildkit/guildkit/internal/domain"
	"github.com/guildkit/guildkit/internal/domain/command"
	"github.com/guildkit/guildkit/internal/port/transport"
)

// DispatcherService resolves invocations to command definitions, runs the
// gate pipeline, and executes the handler. Every invocation receives exactly
// one outcome report, even when the pipeline itself fails unexpectedly.
type DispatcherService struct {
	commands     *CommandService
	resolver     *ArgumentResolver
	cooldowns    *CooldownTable
	entitlements *EntitlementService
	replier      transport.Replier
	directory    transport.Directory
	metrics      *gkotel.Metrics // optional
	owners       map[string]bool
}

// NewDispatcherService creates a dispatcher. owners lists bot-owner user
// ids; metrics may be nil.
func NewDispatcherService(
	commands *CommandService,
	resolver *ArgumentResolver,
	cooldowns *CooldownTable,
	entitlements *EntitlementService,
	replier transport.Replier,
	directory transport.Directory,
	metrics *gkotel.Metrics,
	owners []string,
) *DispatcherService {
	ownerSet := make(map[string]bool, len(owners))
	for _, id := range owners {
		ownerSet[id] = true
	}
	return &DispatcherService{
		commands:     commands,
		resolver:     resolver,
		cooldowns:    cooldowns,
		entitlements: entitlements,
		replier:      replier,
		directory:    directory,
		metrics:      metrics,
		owners:       ownerSet,
	}
}

// Dispatch runs the full decision pipeline for one invocation. Checks run in
// a fixed order; the first failure wins. All errors are converted to a
// user-facing ephemeral reply and never propagate to the transport
// connection.
func (s *DispatcherService) Dispatch(ctx context.Context, inv *command.Invocation) {
	ctx, span := gkotel.StartDispatchSpan(ctx, inv.ID, inv.Command, inv.GuildID)
	defer span.End()

	start := time.Now()
	err := s.run(ctx, inv)
	elapsed := time.Since(start)

	s.report(ctx, inv, elapsed, err)
}

// run executes the pipeline. A catch-all recover converts panics from any
// stage, handler included, into an internal error so the invoker still gets
// a reply.
func (s *DispatcherService) run(ctx context.Context, inv *command.Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panic: %v", r)
		}
	}()

	// 1. Resolve by name or alias.
	def, err := s.commands.Get(inv.Command)
	if err != nil {
		return err
	}

	// 2. Registration visibility.
	if !def.Enabled {
		return fmt.Errorf("command %q: %w", def.Name, domain.ErrCommandDisabled)
	}

	// 3. Live cooldown.
	if remaining := s.cooldowns.Remaining(def.Name, inv.InvokerID); remaining > 0 {
		return &domain.CooldownError{Command: def.Name, Remaining: remaining}
	}

	// 4. Invocation context.
	ic := s.buildContext(ctx, inv)

	// 5. Permission gates.
	if def.OwnerOnly && !ic.Owner {
		return &domain.PermissionError{Reason: "owner_only"}
	}
	if def.GuildOnly && inv.GuildID == "" {
		return &domain.PermissionError{Reason: "guild_only"}
	}
	var missingPerms []string
	for _, perm := range def.Permissions {
		if !ic.HasPermission(perm) {
			missingPerms = append(missingPerms, perm)
		}
	}
	if len(missingPerms) > 0 {
		return &domain.PermissionError{Reason: "missing_permission", Missing: missingPerms}
	}
	var missingRoles []string
	for _, role := range def.Roles {
		if !ic.HasRole(role) {
			missingRoles = append(missingRoles, role)
		}
	}
	if len(missingRoles) > 0 {
		return &domain.PermissionError{Reason: "missing_role", Missing: missingRoles}
	}

	// 6. Premium gate (tier-level).
	if def.Premium && !ic.Premium() {
		return &domain.EntitlementError{GuildID: inv.GuildID, Key: def.Name, Reason: ReasonNoEntitlement}
	}

	// 7. Arguments.
	args, err := s.resolver.Parse(inv.Args, def.Args)
	if err != nil {
		return err
	}

	// 8. Execute.
	if def.Run == nil {
		return fmt.Errorf("command %q has no handler", def.Name)
	}
	if err := def.Run(ctx, ic, args); err != nil {
		return fmt.Errorf("command %q: %w", def.Name, err)
	}

	// 9. Arm the cooldown only after a successful run.
	if def.Cooldown > 0 {
		s.cooldowns.Put(def.Name, inv.InvokerID, def.Cooldown)
	}
	return nil
}

// buildContext assembles the per-invocation context with lookup closures
// over the transport directory and the entitlement gate.
func (s *DispatcherService) buildContext(ctx context.Context, inv *command.Invocation) *command.InvocationContext {
	return &command.InvocationContext{
		Invocation: inv,
		Owner:      s.owners[inv.InvokerID],
		HasPermission: func(perm string) bool {
			if inv.GuildID == "" {
				return false
			}
			return s.directory.HasPermission(ctx, inv.GuildID, inv.InvokerID, perm)
		},
		HasRole: func(roleID string) bool {
			if inv.GuildID == "" {
				return false
			}
			return s.directory.HasRole(ctx, inv.GuildID, inv.InvokerID, roleID)
		},
		Premium: func() bool {
			if inv.GuildID == "" {
				return false
			}
			return s.entitlements.CheckPremium(inv.GuildID)
		},
	}
}

// Suggest serves an autocomplete interaction for one argument of a command.
// All failures yield an empty candidate set; autocomplete never errors out
// to the invoker.
func (s *DispatcherService) Suggest(ctx context.Context, inv *command.Invocation, argName, partial string, supplier Supplier) {
	def, err := s.commands.Get(inv.Command)
	if err != nil {
		slog.Debug("autocomplete for unknown command", "command", inv.Command)
		return
	}
	var arg *command.Argument
	for i := range def.Args {
		if def.Args[i].Name == argName {
			arg = &def.Args[i]
			break
		}
	}
	if arg == nil || !arg.Autocomplete {
		return
	}

	choices := s.resolver.Suggest(ctx, partial, arg, supplier)
	if err := s.replier.SendAutocomplete(ctx, inv, choices); err != nil {
		slog.Warn("autocomplete send failed", "command", def.Name, "error", err)
	}
}

// report logs and measures the outcome and, on failure, sends the invoker a
// short ephemeral message with a machine-readable code. Reply failures are
// logged, never raised.
func (s *DispatcherService) report(ctx context.Context, inv *command.Invocation, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("command", inv.Command))
	if s.metrics != nil {
		s.metrics.Dispatches.Add(ctx, 1, attrs)
		s.metrics.DispatchDuration.Record(ctx, elapsed.Seconds(), attrs)
	}

	if err == nil {
		slog.Info("command dispatched",
			"command", inv.Command,
			"invoker_id", inv.InvokerID,
			"guild_id", inv.GuildID,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		return
	}

	if s.metrics != nil {
		s.metrics.DispatchFailures.Add(ctx, 1, attrs)
	}
	slog.Warn("command dispatch failed",
		"command", inv.Command,
		"invoker_id", inv.InvokerID,
		"guild_id", inv.GuildID,
		"elapsed_ms", elapsed.Milliseconds(),
		"code", domain.Code(err),
		"error", err,
	)

	msg := transport.Message{
		Content:   userMessage(err),
		Code:      domain.Code(err),
		Ephemeral: true,
	}
	if replyErr := s.replier.Reply(ctx, inv, msg); replyErr != nil {
		slog.Error("failure reply could not be delivered",
			"command", inv.Command, "invoker_id", inv.InvokerID, "error", replyErr)
	}
}

// userMessage converts a pipeline error into a short, non-stacktrace message
// for the invoker.
func userMessage(err error) string {
	var cooldown *domain.CooldownError
	var perm *domain.PermissionError
	var ent *domain.EntitlementError
	var arg *domain.ArgumentError

	switch {
	case errors.As(err, &cooldown):
		return fmt.Sprintf("You're on cooldown. Try again in %dms.", cooldown.Remaining.Milliseconds())
	case errors.As(err, &perm):
		return "You don't have permission to use this command."
	case errors.As(err, &ent):
		return "This command requires a premium plan."
	case errors.As(err, &arg):
		return fmt.Sprintf("Invalid argument %q.", arg.Name)
	case errors.Is(err, domain.ErrUnknownCommand):
		return "Unknown command."
	case errors.Is(err, domain.ErrCommandDisabled):
		return "This command is currently disabled."
	}
	return "Something went wrong while running this command."
}
