package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/guildkit/guildkit/internal/middleware"
)

// MountRoutes registers the operator API on the given chi router. Everything
// under /api/v1 requires the admin token; health probes do not.
func MountRoutes(r chi.Router, h *Handlers, adminTokenHash string) {
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AdminAuth(adminTokenHash))

		// Capability catalog
		r.Get("/capabilities", h.ListCapabilities)
		r.Get("/capabilities/{key}", h.GetCapability)

		// Command catalog
		r.Get("/commands", h.ListCommands)
		r.Get("/commands/{name}", h.GetCommand)
		r.Put("/commands/{name}/enabled", h.SetCommandEnabled)
		r.Delete("/commands/{name}/cooldowns", h.ClearCommandCooldowns)
		r.Delete("/commands/{name}/cooldowns/{invokerId}", h.ClearCooldown)

		// Guild runtimes and entitlements
		r.Get("/guilds", h.ListGuilds)
		r.Route("/guilds/{id}", func(r chi.Router) {
			r.Use(guildScope)

			r.Get("/capabilities", h.ListGuildCapabilities)
			r.Post("/capabilities/{key}/enable", h.EnableCapability)
			r.Post("/capabilities/{key}/disable", h.DisableCapability)
			r.Put("/capabilities/{key}/config", h.UpdateCapabilityConfig)

			r.Get("/entitlement", h.GetEntitlement)
			r.Post("/entitlement/refresh", h.RefreshEntitlement)
		})
	})
}
