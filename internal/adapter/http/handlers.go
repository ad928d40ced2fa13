// Package http provides the operator API: catalog inspection, per-guild
// capability control, cooldown resets and entitlement lookups.
package http

import (
	"context"
	"net/http"

	"github.com/guildkit/guildkit/internal/service"
)

// Handlers carries the service dependencies for the operator API.
type Handlers struct {
	catalog      *service.CatalogService
	commands     *service.CommandService
	runtime      *service.RuntimeService
	entitlements *service.EntitlementService
	cooldowns    *service.CooldownTable

	// ready reports whether downstream dependencies (database, broker)
	// are reachable. Nil means always ready.
	ready func(ctx context.Context) error
}

// NewHandlers creates the operator API handlers.
func NewHandlers(
	catalog *service.CatalogService,
	commands *service.CommandService,
	runtime *service.RuntimeService,
	entitlements *service.EntitlementService,
	cooldowns *service.CooldownTable,
	ready func(ctx context.Context) error,
) *Handlers {
	return &Handlers{
		catalog:      catalog,
		commands:     commands,
		runtime:      runtime,
		entitlements: entitlements,
		cooldowns:    cooldowns,
		ready:        ready,
	}
}

// Health reports process liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether downstream dependencies are reachable.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ListCapabilities returns every capability definition in the catalog.
func (h *Handlers) ListCapabilities(w http.ResponseWriter, r *http.Request) {
	if category := r.URL.Query().Get("category"); category != "" {
		writeJSON(w, http.StatusOK, h.catalog.ByCategory(category))
		return
	}
	writeJSON(w, http.StatusOK, h.catalog.All())
}

// GetCapability returns one capability definition by key.
func (h *Handlers) GetCapability(w http.ResponseWriter, r *http.Request) {
	def, err := h.catalog.Get(urlParam(r, "key"))
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// ListCommands returns every registered command definition.
func (h *Handlers) ListCommands(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.commands.All())
}

// GetCommand returns one command definition by name or alias.
func (h *Handlers) GetCommand(w http.ResponseWriter, r *http.Request) {
	def, err := h.commands.Get(urlParam(r, "name"))
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// SetCommandEnabled flips a command's global kill switch.
func (h *Handlers) SetCommandEnabled(w http.ResponseWriter, r *http.Request) {
	body, ok := readJSON[struct {
		Enabled bool `json:"enabled"`
	}](w, r)
	if !ok {
		return
	}
	if err := h.commands.SetEnabled(urlParam(r, "name"), body.Enabled); err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": body.Enabled})
}

// ClearCommandCooldowns drops every active cooldown for one command.
func (h *Handlers) ClearCommandCooldowns(w http.ResponseWriter, r *http.Request) {
	cleared := h.cooldowns.ClearCommand(urlParam(r, "name"))
	writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

// ClearCooldown drops one invoker's cooldown for one command.
func (h *Handlers) ClearCooldown(w http.ResponseWriter, r *http.Request) {
	cleared := h.cooldowns.Clear(urlParam(r, "name"), urlParam(r, "invokerId"))
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": cleared})
}

// ListGuilds returns the IDs of every initialized guild.
func (h *Handlers) ListGuilds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.runtime.Guilds())
}

// ListGuildCapabilities returns the capability records for one guild.
func (h *Handlers) ListGuildCapabilities(w http.ResponseWriter, r *http.Request) {
	states := h.runtime.States(urlParam(r, "id"))
	if len(states) == 0 {
		writeError(w, http.StatusNotFound, "guild not initialized")
		return
	}
	writeJSON(w, http.StatusOK, states)
}

// EnableCapability transitions a guild capability to enabled.
func (h *Handlers) EnableCapability(w http.ResponseWriter, r *http.Request) {
	if err := h.runtime.Enable(r.Context(), urlParam(r, "id"), urlParam(r, "key")); err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": "enabled"})
}

// DisableCapability transitions a guild capability to disabled.
func (h *Handlers) DisableCapability(w http.ResponseWriter, r *http.Request) {
	if err := h.runtime.Disable(r.Context(), urlParam(r, "id"), urlParam(r, "key")); err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": "disabled"})
}

// UpdateCapabilityConfig replaces a guild capability's configuration.
func (h *Handlers) UpdateCapabilityConfig(w http.ResponseWriter, r *http.Request) {
	cfg, ok := readJSON[map[string]any](w, r)
	if !ok {
		return
	}
	if err := h.runtime.SetConfig(r.Context(), urlParam(r, "id"), urlParam(r, "key"), cfg); err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// GetEntitlement returns the cached entitlement record for a guild.
func (h *Handlers) GetEntitlement(w http.ResponseWriter, r *http.Request) {
	rec := h.entitlements.Lookup(urlParam(r, "id"))
	if rec == nil {
		writeError(w, http.StatusNotFound, "no entitlement on record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// RefreshEntitlement re-fetches a guild's entitlement from the license service.
func (h *Handlers) RefreshEntitlement(w http.ResponseWriter, r *http.Request) {
	guildID := urlParam(r, "id")
	if err := h.entitlements.Refresh(r.Context(), guildID); err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	rec := h.entitlements.Lookup(guildID)
	if rec == nil {
		writeError(w, http.StatusNotFound, "no entitlement on record")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
