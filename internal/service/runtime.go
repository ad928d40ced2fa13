package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	gkotel "github.com/guildkit/guildkit/internal/adapter/otel"
	"github.com/guildkit/guildkit/internal/domain"
	domaincap "github.com/guildkit/guildkit/internal/domain/capability"
	"github.com/guildkit/guildkit/internal/domain/guild"
	capport "github.com/guildkit/guildkit/internal/port/capability"
	"github.com/guildkit/guildkit/internal/port/persistence"
)

// defaultFanout bounds concurrent handler tasks per dispatched event.
const defaultFanout = 8

// capRuntime is the live state for one (guild, capability): the runtime
// record, the plugin instance, its interaction context, and its event
// dispatch table (fixed at registration).
type capRuntime struct {
	record   *domaincap.Record
	plugin   capport.Capability
	cc       *capport.Context
	handlers map[domaincap.EventKind]capport.Handler
}

// guildRuntime holds every capability runtime for one guild.
type guildRuntime struct {
	guild guild.Guild
	caps  map[string]*capRuntime
}

// RuntimeService manages the per-guild capability lifecycle
// (Unregistered -> Registered -> Enabled <-> Disabled -> Removed) and fans
// platform events out to enabled capabilities.
type RuntimeService struct {
	mu     sync.RWMutex
	guilds map[string]*guildRuntime

	catalog      *CatalogService
	entitlements *EntitlementService
	store        persistence.Store
	fanout       int
	metrics      *gkotel.Metrics // optional
	resolve      func(key string) (capport.Capability, error)
}

// NewRuntimeService creates a runtime over the given catalog, entitlement
// gate, and persistence store. fanout bounds concurrent event handlers per
// dispatch; zero or negative selects the default. Plugins are resolved
// through the package registry unless SetPluginResolver overrides it.
func NewRuntimeService(catalog *CatalogService, entitlements *EntitlementService, store persistence.Store, fanout int) *RuntimeService {
	if fanout <= 0 {
		fanout = defaultFanout
	}
	return &RuntimeService{
		guilds:       make(map[string]*guildRuntime),
		catalog:      catalog,
		entitlements: entitlements,
		store:        store,
		fanout:       fanout,
		resolve:      capport.New,
	}
}

// SetMetrics attaches fan-out metric instruments. Nil disables recording.
func (s *RuntimeService) SetMetrics(m *gkotel.Metrics) {
	s.metrics = m
}

// SetPluginResolver overrides how capability keys resolve to plugin
// instances.
func (s *RuntimeService) SetPluginResolver(resolve func(key string) (capport.Capability, error)) {
	s.resolve = resolve
}

// InitializeForTenant creates runtime records for every catalog capability
// whose required permissions the bot holds in g. Capabilities with missing
// permissions or a failing register hook stay unregistered for the guild;
// both cases are logged and skipped, never fatal.
func (s *RuntimeService) InitializeForTenant(ctx context.Context, g guild.Guild) error {
	s.mu.Lock()
	if _, known := s.guilds[g.ID]; known {
		s.mu.Unlock()
		slog.Debug("guild already initialized", "guild_id", g.ID)
		return nil
	}
	gr := &guildRuntime{guild: g, caps: make(map[string]*capRuntime)}
	s.guilds[g.ID] = gr
	s.mu.Unlock()

	for _, def := range s.catalog.All() {
		held, missing := g.HasPermissions(def.Permissions)
		if !held {
			slog.Warn("capability skipped, missing bot permissions",
				"guild_id", g.ID, "capability", def.Key, "missing", missing)
			continue
		}

		plugin, err := s.resolve(def.Key)
		if err != nil {
			slog.Warn("capability skipped, no registered plugin",
				"guild_id", g.ID, "capability", def.Key, "error", err)
			continue
		}

		cc := capport.NewContext(g.ID, s.loadConfig(ctx, g.ID, def), s.store,
			slog.With("guild_id", g.ID, "capability", def.Key))

		if err := plugin.Register(ctx, cc); err != nil {
			slog.Warn("capability register hook failed, skipping",
				"guild_id", g.ID, "capability", def.Key, "error", err)
			continue
		}

		handlers := plugin.Handlers()
		for kind, h := range handlers {
			if h == nil {
				slog.Warn("capability declares nil handler, dropping",
					"capability", def.Key, "event", kind)
				delete(handlers, kind)
			}
		}

		s.mu.Lock()
		gr.caps[def.Key] = &capRuntime{
			record: &domaincap.Record{
				GuildID:   g.ID,
				Key:       def.Key,
				State:     domaincap.StateRegistered,
				Config:    cc.Config(),
				CreatedAt: time.Now(),
			},
			plugin:   plugin,
			cc:       cc,
			handlers: handlers,
		}
		s.mu.Unlock()
	}

	s.audit(ctx, g.ID, "guild.initialized", map[string]any{"capabilities": len(gr.caps)})
	slog.Info("guild initialized", "guild_id", g.ID, "capabilities", len(gr.caps))
	return nil
}

// loadConfig returns stored configuration for (guild, capability), falling
// back to a copy of the definition defaults.
func (s *RuntimeService) loadConfig(ctx context.Context, guildID string, def domaincap.Definition) map[string]any {
	cfg, err := s.store.LoadCapabilityConfig(ctx, guildID, def.Key)
	if err == nil && cfg != nil {
		return cfg
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Warn("capability config load failed, using defaults",
			"guild_id", guildID, "capability", def.Key, "error", err)
	}
	defaults := make(map[string]any, len(def.Defaults))
	maps.Copy(defaults, def.Defaults)
	return defaults
}

// lookup returns the capability runtime for (guildID, key).
func (s *RuntimeService) lookup(guildID, key string) (*capRuntime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gr, ok := s.guilds[guildID]
	if !ok {
		return nil, fmt.Errorf("guild %q: %w", guildID, domain.ErrNotFound)
	}
	cr, ok := gr.caps[key]
	if !ok {
		return nil, fmt.Errorf("capability %q in guild %q: %w", key, guildID, domain.ErrNotFound)
	}
	return cr, nil
}

// Enable transitions (guildID, key) to Enabled. Already-enabled is a no-op
// success and the enable hook runs at most once. Premium capabilities
// re-check the entitlement gate at call time.
func (s *RuntimeService) Enable(ctx context.Context, guildID, key string) error {
	cr, err := s.lookup(guildID, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if cr.record.State == domaincap.StateEnabled {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	def, err := s.catalog.Get(key)
	if err != nil {
		return err
	}
	if def.Premium {
		if err := s.entitlements.Refresh(ctx, guildID); err != nil {
			slog.Warn("entitlement refresh failed", "guild_id", guildID, "error", err)
		}
		if d := s.entitlements.Check(guildID, key); !d.Granted {
			return &domain.EntitlementError{GuildID: guildID, Key: key, Reason: d.Reason}
		}
	}

	if err := cr.plugin.Enable(ctx, cr.cc); err != nil {
		return fmt.Errorf("enable hook for %q: %w", key, err)
	}

	s.mu.Lock()
	cr.record.State = domaincap.StateEnabled
	s.mu.Unlock()

	s.audit(ctx, guildID, "capability.enabled", map[string]any{"capability": key})
	return nil
}

// Disable transitions (guildID, key) to Disabled. Disabled or absent is a
// no-op success. A failing disable hook is logged but does not block the
// transition, so drain paths always converge.
func (s *RuntimeService) Disable(ctx context.Context, guildID, key string) error {
	cr, err := s.lookup(guildID, key)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	if cr.record.State != domaincap.StateEnabled {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := cr.plugin.Disable(ctx, cr.cc); err != nil {
		slog.Warn("disable hook failed", "guild_id", guildID, "capability", key, "error", err)
	}

	s.mu.Lock()
	cr.record.State = domaincap.StateDisabled
	s.mu.Unlock()

	s.audit(ctx, guildID, "capability.disabled", map[string]any{"capability": key})
	return nil
}

// DispatchEvent fans ev out to every enabled capability of the guild that
// declares a handler for its kind. Handlers run as independent tasks; each
// failure is caught, logged with its originating capability, and never
// cancels siblings. The call returns only after every handler settled.
func (s *RuntimeService) DispatchEvent(ctx context.Context, ev domaincap.Event) {
	type target struct {
		key     string
		handler capport.Handler
		cc      *capport.Context
	}

	s.mu.RLock()
	gr, ok := s.guilds[ev.GuildID]
	if !ok {
		s.mu.RUnlock()
		slog.Debug("event for unknown guild dropped", "guild_id", ev.GuildID, "event", ev.Kind)
		return
	}
	var targets []target
	for key, cr := range gr.caps {
		if cr.record.State != domaincap.StateEnabled {
			continue
		}
		if h, declared := cr.handlers[ev.Kind]; declared {
			targets = append(targets, target{key: key, handler: h, cc: cr.cc})
		}
	}
	s.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	ctx, span := gkotel.StartEventSpan(ctx, string(ev.Kind), ev.GuildID)
	defer span.End()

	if s.metrics != nil {
		s.metrics.EventsFanned.Add(ctx, int64(len(targets)),
			metric.WithAttributes(attribute.String("event", string(ev.Kind))))
	}

	g := &errgroup.Group{}
	g.SetLimit(s.fanout)
	for _, t := range targets {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					s.countHandlerFailure(ctx, t.key)
					slog.Error("event handler panicked",
						"capability", t.key, "guild_id", ev.GuildID, "event", ev.Kind, "panic", r)
				}
			}()
			if err := t.handler(ctx, t.cc, ev); err != nil {
				s.countHandlerFailure(ctx, t.key)
				slog.Error("event handler failed",
					"capability", t.key, "guild_id", ev.GuildID, "event", ev.Kind, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := s.store.IncrementUsageCounter(ctx, ev.GuildID, "events", 1); err != nil {
		slog.Warn("usage counter failed", "guild_id", ev.GuildID, "error", err)
	}
}

func (s *RuntimeService) countHandlerFailure(ctx context.Context, key string) {
	if s.metrics != nil {
		s.metrics.HandlerFailures.Add(ctx, 1,
			metric.WithAttributes(attribute.String("capability", key)))
	}
}

// RemoveTenant disables every enabled capability for the guild best-effort,
// then deletes all runtime records. The guild id is unknown to the runtime
// afterwards.
func (s *RuntimeService) RemoveTenant(ctx context.Context, guildID string) error {
	s.mu.RLock()
	gr, ok := s.guilds[guildID]
	if !ok {
		s.mu.RUnlock()
		return fmt.Errorf("guild %q: %w", guildID, domain.ErrNotFound)
	}
	keys := make([]string, 0, len(gr.caps))
	for key := range gr.caps {
		keys = append(keys, key)
	}
	s.mu.RUnlock()

	for _, key := range keys {
		_ = s.Disable(ctx, guildID, key)
	}

	s.audit(ctx, guildID, "guild.removed", nil)

	s.mu.Lock()
	for _, cr := range gr.caps {
		cr.record.State = domaincap.StateRemoved
	}
	delete(s.guilds, guildID)
	s.mu.Unlock()

	slog.Info("guild removed", "guild_id", guildID)
	return nil
}

// Shutdown drains the runtime: every enabled capability of every known guild
// is disabled best-effort. Records are kept; the process is expected to exit
// afterwards.
func (s *RuntimeService) Shutdown(ctx context.Context) {
	type pair struct{ guildID, key string }

	s.mu.RLock()
	var enabled []pair
	for guildID, gr := range s.guilds {
		for key, cr := range gr.caps {
			if cr.record.State == domaincap.StateEnabled {
				enabled = append(enabled, pair{guildID, key})
			}
		}
	}
	s.mu.RUnlock()

	for _, p := range enabled {
		_ = s.Disable(ctx, p.guildID, p.key)
	}
	slog.Info("runtime drained", "disabled", len(enabled))
}

// State returns the lifecycle state of (guildID, key). Unknown pairs are
// Unregistered.
func (s *RuntimeService) State(guildID, key string) domaincap.State {
	cr, err := s.lookup(guildID, key)
	if err != nil {
		return domaincap.StateUnregistered
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cr.record.State
}

// States returns every runtime record for a guild, keyed by capability.
func (s *RuntimeService) States(guildID string) map[string]domaincap.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gr, ok := s.guilds[guildID]
	if !ok {
		return nil
	}
	out := make(map[string]domaincap.Record, len(gr.caps))
	for key, cr := range gr.caps {
		out[key] = *cr.record
	}
	return out
}

// Guilds returns the ids of every guild known to the runtime.
func (s *RuntimeService) Guilds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.guilds))
	for id := range s.guilds {
		ids = append(ids, id)
	}
	return ids
}

// SetConfig merges config into the live configuration for (guildID, key)
// and persists the result. The merge builds a fresh map and swaps it in
// whole, so handlers reading config during event fan-out never observe a
// partial update.
func (s *RuntimeService) SetConfig(ctx context.Context, guildID, key string, config map[string]any) error {
	cr, err := s.lookup(guildID, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	merged := cr.cc.Config()
	maps.Copy(merged, config)
	cr.cc.ReplaceConfig(merged)
	cr.record.Config = merged
	s.mu.Unlock()

	if err := s.store.SaveCapabilityConfig(ctx, guildID, key, merged); err != nil {
		return fmt.Errorf("save capability config: %w", err)
	}
	return nil
}

func (s *RuntimeService) audit(ctx context.Context, guildID, action string, metadata map[string]any) {
	if err := s.store.AppendAuditEntry(ctx, guildID, action, metadata); err != nil {
		slog.Warn("audit append failed", "guild_id", guildID, "action", action, "error", err)
	}
}
