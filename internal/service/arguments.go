package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/guildkit/guildkit/internal/domain"
	"github.com/guildkit/guildkit/internal/domain/command"
)

// maxSuggestions is the hard cap on autocomplete candidates. The transport
// protocol rejects larger batches, so this is never exceeded.
const maxSuggestions = 25

// ArgumentResolver validates and coerces raw invocation arguments against a
// command's declared argument schema, and produces autocomplete candidates.
type ArgumentResolver struct{}

// NewArgumentResolver creates an ArgumentResolver.
func NewArgumentResolver() *ArgumentResolver {
	return &ArgumentResolver{}
}

// Parse resolves raw values against defs. Missing required arguments,
// type mismatches, bound violations, and out-of-choice values fail with the
// corresponding domain.ArgumentError. Optional arguments with no value are
// simply absent from the result.
func (r *ArgumentResolver) Parse(raw map[string]any, defs []command.Argument) (map[string]any, error) {
	resolved := make(map[string]any, len(defs))

	for i := range defs {
		def := &defs[i]
		value, present := raw[def.Name]
		if !present || value == nil {
			if def.Required {
				return nil, &domain.ArgumentError{Name: def.Name, Err: domain.ErrMissingRequiredArgument}
			}
			continue
		}

		coerced, err := coerce(def, value)
		if err != nil {
			return nil, err
		}
		resolved[def.Name] = coerced
	}
	return resolved, nil
}

// coerce applies the type, bound, and choice rules for a single argument.
func coerce(def *command.Argument, value any) (any, error) {
	switch def.Type {
	case command.ArgString:
		s, ok := value.(string)
		if !ok {
			return nil, typeErr(def, "expected string")
		}
		if def.MinLength != nil && len(s) < *def.MinLength {
			return nil, rangeErr(def, fmt.Sprintf("length %d below minimum %d", len(s), *def.MinLength))
		}
		if def.MaxLength != nil && len(s) > *def.MaxLength {
			return nil, rangeErr(def, fmt.Sprintf("length %d above maximum %d", len(s), *def.MaxLength))
		}
		if err := checkChoices(def, s); err != nil {
			return nil, err
		}
		return s, nil

	case command.ArgInteger:
		f, ok := toFloat(value)
		if !ok || f != math.Trunc(f) {
			return nil, typeErr(def, "expected integer")
		}
		if err := checkBounds(def, f); err != nil {
			return nil, err
		}
		n := int64(f)
		if err := checkChoices(def, n); err != nil {
			return nil, err
		}
		return n, nil

	case command.ArgNumber:
		f, ok := toFloat(value)
		if !ok {
			return nil, typeErr(def, "expected number")
		}
		if err := checkBounds(def, f); err != nil {
			return nil, err
		}
		if err := checkChoices(def, f); err != nil {
			return nil, err
		}
		return f, nil

	case command.ArgBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, typeErr(def, "expected boolean")
		}
		return b, nil

	case command.ArgUser, command.ArgChannel, command.ArgRole, command.ArgMentionable, command.ArgAttachment:
		// Reference arguments are opaque here; deep validation belongs to
		// the transport layer.
		return value, nil
	}

	return nil, typeErr(def, fmt.Sprintf("unknown argument type %q", def.Type))
}

// toFloat normalizes the numeric representations a JSON transport may
// deliver.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func checkBounds(def *command.Argument, f float64) error {
	if def.MinValue != nil && f < *def.MinValue {
		return rangeErr(def, fmt.Sprintf("%v below minimum %v", f, *def.MinValue))
	}
	if def.MaxValue != nil && f > *def.MaxValue {
		return rangeErr(def, fmt.Sprintf("%v above maximum %v", f, *def.MaxValue))
	}
	return nil
}

func checkChoices(def *command.Argument, value any) error {
	if len(def.Choices) == 0 {
		return nil
	}
	for _, c := range def.Choices {
		if choiceEqual(c.Value, value) {
			return nil
		}
	}
	return &domain.ArgumentError{Name: def.Name, Err: domain.ErrArgumentChoice, Detail: fmt.Sprintf("%v", value)}
}

// choiceEqual compares a declared choice value with a coerced argument,
// tolerating integer/float representation differences.
func choiceEqual(declared, got any) bool {
	if declared == got {
		return true
	}
	df, dok := toFloat(declared)
	gf, gok := toFloat(got)
	return dok && gok && df == gf
}

func typeErr(def *command.Argument, detail string) error {
	return &domain.ArgumentError{Name: def.Name, Err: domain.ErrArgumentType, Detail: detail}
}

func rangeErr(def *command.Argument, detail string) error {
	return &domain.ArgumentError{Name: def.Name, Err: domain.ErrArgumentRange, Detail: detail}
}

// Supplier is an asynchronous suggestion source for autocomplete arguments.
type Supplier func(ctx context.Context, partial string) ([]command.Choice, error)

// Suggest returns up to maxSuggestions case-insensitive substring matches
// for partial, drawn from supplier when given, otherwise from the argument's
// static choice list. A failing supplier is logged and yields no candidates:
// a broken suggestion path must not break the interaction.
func (r *ArgumentResolver) Suggest(ctx context.Context, partial string, def *command.Argument, supplier Supplier) []command.Choice {
	var candidates []command.Choice

	if supplier != nil {
		var err error
		candidates, err = supplier(ctx, partial)
		if err != nil {
			slog.Warn("suggestion supplier failed", "argument", def.Name, "error", err)
			return nil
		}
	} else {
		candidates = def.Choices
	}

	needle := strings.ToLower(partial)
	matches := make([]command.Choice, 0, maxSuggestions)
	for _, c := range candidates {
		if needle != "" && !strings.Contains(strings.ToLower(c.Name), needle) {
			continue
		}
		matches = append(matches, c)
		if len(matches) == maxSuggestions {
			break
		}
	}
	return matches
}
