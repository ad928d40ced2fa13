package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/guildkit/guildkit/internal/domain/command"
	capport "github.com/guildkit/guildkit/internal/port/capability"
	"github.com/guildkit/guildkit/internal/port/transport"
	"github.com/guildkit/guildkit/internal/service"
)

// registerCommands installs the built-in commands. Handlers reply through
// the gateway; the dispatcher only replies on failure.
func registerCommands(commands *service.CommandService, runtime *service.RuntimeService, replier transport.Replier) error {
	ping := &command.Definition{
		Name:        "ping",
		Description: "Check that the bot is alive",
		Category:    "core",
		Aliases:     []string{"p"},
		Cooldown:    3 * time.Second,
		Enabled:     true,
		Run: func(ctx context.Context, ic *command.InvocationContext, _ map[string]any) error {
			return replier.Reply(ctx, ic.Invocation, transport.Message{Content: "Pong!"})
		},
	}
	if err := commands.Register(ping); err != nil {
		return err
	}

	capabilityChoices := make([]command.Choice, 0, len(capport.Available()))
	for _, key := range capport.Available() {
		capabilityChoices = append(capabilityChoices, command.Choice{Name: key, Value: key})
	}

	features := &command.Definition{
		Name:        "features",
		Description: "List, enable, or disable server features",
		Category:    "core",
		GuildOnly:   true,
		Permissions: []string{"manage_guild"},
		Enabled:     true,
		Args: []command.Argument{
			{
				Name:        "action",
				Description: "What to do",
				Type:        command.ArgString,
				Required:    true,
				Choices: []command.Choice{
					{Name: "list", Value: "list"},
					{Name: "enable", Value: "enable"},
					{Name: "disable", Value: "disable"},
				},
			},
			{
				Name:         "capability",
				Description:  "Feature to change",
				Type:         command.ArgString,
				Autocomplete: true,
				Choices:      capabilityChoices,
			},
		},
		Run: func(ctx context.Context, ic *command.InvocationContext, args map[string]any) error {
			return runFeatures(ctx, runtime, replier, ic, args)
		},
	}
	return commands.Register(features)
}

func runFeatures(ctx context.Context, runtime *service.RuntimeService, replier transport.Replier, ic *command.InvocationContext, args map[string]any) error {
	guildID := ic.Invocation.GuildID
	action, _ := args["action"].(string)
	key, _ := args["capability"].(string)

	switch action {
	case "list":
		states := runtime.States(guildID)
		if len(states) == 0 {
			return replier.Reply(ctx, ic.Invocation, transport.Message{
				Content:   "No features are set up for this server yet.",
				Ephemeral: true,
			})
		}
		lines := make([]string, 0, len(states))
		for k, rec := range states {
			lines = append(lines, fmt.Sprintf("%s: %s", k, rec.State))
		}
		return replier.Reply(ctx, ic.Invocation, transport.Message{
			Content:   strings.Join(lines, "\n"),
			Ephemeral: true,
		})

	case "enable":
		if key == "" {
			return replier.Reply(ctx, ic.Invocation, transport.Message{
				Content:   "Pick a feature to enable.",
				Ephemeral: true,
			})
		}
		if err := runtime.Enable(ctx, guildID, key); err != nil {
			return err
		}
		return replier.Reply(ctx, ic.Invocation, transport.Message{Content: key + " enabled."})

	case "disable":
		if key == "" {
			return replier.Reply(ctx, ic.Invocation, transport.Message{
				Content:   "Pick a feature to disable.",
				Ephemeral: true,
			})
		}
		if err := runtime.Disable(ctx, guildID, key); err != nil {
			return err
		}
		return replier.Reply(ctx, ic.Invocation, transport.Message{Content: key + " disabled."})

	default:
		return replier.Reply(ctx, ic.Invocation, transport.Message{
			Content:   "Unknown action.",
			Ephemeral: true,
		})
	}
}
