// Package domain provides shared domain-level sentinel errors and the
// machine-readable codes attached to user-facing failures.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared across catalogs and services.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey indicates a registration collided with an existing key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidDefinition indicates a definition failed shape validation.
	ErrInvalidDefinition = errors.New("invalid definition")

	// ErrUnknownCommand indicates an invocation named a command that is not registered.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrCommandDisabled indicates the resolved command is registered but disabled.
	ErrCommandDisabled = errors.New("command disabled")

	// ErrInvalidEntitlement indicates an entitlement record was rejected at registration.
	ErrInvalidEntitlement = errors.New("invalid entitlement")
)

// Argument parsing sentinels. ArgumentError wraps one of these so callers can
// match with errors.Is while still seeing the offending argument name.
var (
	ErrMissingRequiredArgument = errors.New("missing required argument")
	ErrArgumentType            = errors.New("argument type mismatch")
	ErrArgumentRange           = errors.New("argument out of range")
	ErrArgumentChoice          = errors.New("argument not in choice list")
)

// CooldownError reports a live cooldown on (command, invoker).
type CooldownError struct {
	Command   string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("command %q on cooldown for %dms", e.Command, e.Remaining.Milliseconds())
}

// PermissionError reports a failed permission, role, owner-only, or
// guild-only check.
type PermissionError struct {
	Reason  string   // "owner_only", "guild_only", "missing_permission", "missing_role"
	Missing []string // permission or role identifiers, when applicable
}

func (e *PermissionError) Error() string {
	if len(e.Missing) == 0 {
		return "permission denied: " + e.Reason
	}
	return fmt.Sprintf("permission denied: %s %v", e.Reason, e.Missing)
}

// EntitlementError reports a denied premium gate.
type EntitlementError struct {
	GuildID string
	Key     string // feature or command key that required entitlement
	Reason  string // machine-readable denial reason from the entitlement gate
}

func (e *EntitlementError) Error() string {
	return fmt.Sprintf("entitlement denied for guild %s key %q: %s", e.GuildID, e.Key, e.Reason)
}

// ArgumentError reports a single argument that failed parsing. Err is one of
// the argument sentinels above.
type ArgumentError struct {
	Name   string
	Err    error
	Detail string
}

func (e *ArgumentError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("argument %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("argument %q: %v (%s)", e.Name, e.Err, e.Detail)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// Code returns the machine-readable code for err, used in user-facing replies.
// Unrecognized errors map to "internal".
func Code(err error) string {
	var cooldown *CooldownError
	var perm *PermissionError
	var ent *EntitlementError
	var arg *ArgumentError

	switch {
	case errors.As(err, &cooldown):
		return "cooldown"
	case errors.As(err, &perm):
		return "permission_denied"
	case errors.As(err, &ent):
		return "entitlement_denied"
	case errors.As(err, &arg):
		switch {
		case errors.Is(err, ErrMissingRequiredArgument):
			return "argument_missing"
		case errors.Is(err, ErrArgumentType):
			return "argument_type"
		case errors.Is(err, ErrArgumentRange):
			return "argument_range"
		case errors.Is(err, ErrArgumentChoice):
			return "argument_choice"
		}
		return "argument_invalid"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown_command"
	case errors.Is(err, ErrCommandDisabled):
		return "command_disabled"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, ErrInvalidDefinition):
		return "invalid_definition"
	case errors.Is(err, ErrInvalidEntitlement):
		return "invalid_entitlement"
	}
	return "internal"
}
