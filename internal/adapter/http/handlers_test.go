package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/guildkit/guildkit/internal/domain/capability"
	"github.com/guildkit/guildkit/internal/domain/command"
	"github.com/guildkit/guildkit/internal/logger"
	"github.com/guildkit/guildkit/internal/service"
)

func testRouter(t *testing.T, adminTokenHash string) (*chi.Mux, *service.CooldownTable) {
	t.Helper()

	catalog := service.NewCatalogService()
	if err := catalog.Register(capability.Definition{Key: "welcome", Name: "Welcome", Category: "community"}); err != nil {
		t.Fatalf("register capability: %v", err)
	}

	cooldowns := service.NewCooldownTable()
	commands := service.NewCommandService(cooldowns)
	if err := commands.Register(&command.Definition{
		Name:        "ping",
		Description: "Measure latency",
		Enabled:     true,
		Cooldown:    5 * time.Second,
		Run: func(_ context.Context, _ *command.InvocationContext, _ map[string]any) error {
			return nil
		},
	}); err != nil {
		t.Fatalf("register command: %v", err)
	}

	entitlements := service.NewEntitlementService(nil)
	runtime := service.NewRuntimeService(catalog, entitlements, nil, 0)

	h := NewHandlers(catalog, commands, runtime, entitlements, cooldowns, nil)
	r := chi.NewRouter()
	MountRoutes(r, h, adminTokenHash)
	return r, cooldowns
}

func TestHealth(t *testing.T) {
	r, _ := testRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestListCapabilities(t *testing.T) {
	r, _ := testRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/capabilities", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var defs []capability.Definition
	if err := json.NewDecoder(rec.Body).Decode(&defs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(defs) != 1 || defs[0].Key != "welcome" {
		t.Fatalf("unexpected capabilities: %+v", defs)
	}
}

func TestGetCapabilityNotFound(t *testing.T) {
	r, _ := testRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/capabilities/nope", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSetCommandEnabled(t *testing.T) {
	r, _ := testRouter(t, "")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/commands/ping/enabled", strings.NewReader(`{"enabled":false}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/commands/ping", http.NoBody)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var def command.Definition
	if err := json.NewDecoder(rec.Body).Decode(&def); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if def.Enabled {
		t.Fatal("expected command to be disabled")
	}
}

func TestClearCommandCooldowns(t *testing.T) {
	r, cooldowns := testRouter(t, "")
	cooldowns.Put("ping", "u1", 5*time.Second)
	cooldowns.Put("ping", "u2", 5*time.Second)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/commands/ping/cooldowns", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]int
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["cleared"] != 2 {
		t.Fatalf("expected 2 cleared cooldowns, got %d", body["cleared"])
	}
}

func TestGuildNotInitialized(t *testing.T) {
	r, _ := testRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/guilds/g1/capabilities", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for uninitialized guild, got %d", rec.Code)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	r, _ := testRouter(t, string(hash))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/commands", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/commands", http.NoBody)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}

	// Health stays public.
	req = httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected public health endpoint, got %d", rec.Code)
	}
}

func TestGuildScopeTagsContext(t *testing.T) {
	r := chi.NewRouter()
	var got string
	r.Route("/guilds/{id}", func(r chi.Router) {
		r.Use(guildScope)
		r.Get("/capabilities", func(w http.ResponseWriter, r *http.Request) {
			got = logger.GuildID(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/guilds/g42/capabilities", http.NoBody)
	r.ServeHTTP(httptest.NewRecorder(), req)

	if got != "g42" {
		t.Fatalf("expected guild id tagged on context, got %q", got)
	}
}
