package main

// Capability blank imports — each import activates a self-registering
// plugin. Add new capabilities here as they are implemented.

import (
	_ "github.com/guildkit/guildkit/internal/capabilities/moderation"
	_ "github.com/guildkit/guildkit/internal/capabilities/welcome"
	_ "github.com/guildkit/guildkit/internal/capabilities/xp"
)
