package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/guildkit/guildkit/internal/domain/command"
	"github.com/guildkit/guildkit/internal/domain/entitlement"
	"github.com/guildkit/guildkit/internal/port/transport"
)

// fakeReplier records outbound messages.
type fakeReplier struct {
	mu      sync.Mutex
	replies []transport.Message
	acs     [][]command.Choice
}

func (f *fakeReplier) Reply(_ context.Context, _ *command.Invocation, msg transport.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, msg)
	return nil
}

func (f *fakeReplier) EditReply(_ context.Context, _ *command.Invocation, msg transport.Message) error {
	return f.Reply(context.Background(), nil, msg)
}

func (f *fakeReplier) SendAutocomplete(_ context.Context, _ *command.Invocation, choices []command.Choice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acs = append(f.acs, choices)
	return nil
}

func (f *fakeReplier) replyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replies)
}

func (f *fakeReplier) lastReply(t *testing.T) transport.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		t.Fatal("expected a reply")
	}
	return f.replies[len(f.replies)-1]
}

// fakeDirectory answers permission/role lookups from static sets.
type fakeDirectory struct {
	perms map[string]bool
	roles map[string]bool
}

func (f *fakeDirectory) HasPermission(_ context.Context, _, _, perm string) bool {
	return f.perms[perm]
}

func (f *fakeDirectory) HasRole(_ context.Context, _, _, roleID string) bool {
	return f.roles[roleID]
}

type dispatcherFixture struct {
	commands  *CommandService
	cooldowns *CooldownTable
	ents      *EntitlementService
	replier   *fakeReplier
	directory *fakeDirectory
	d         *DispatcherService
}

func newDispatcherFixture(owners ...string) *dispatcherFixture {
	cooldowns := NewCooldownTable()
	commands := NewCommandService(cooldowns)
	ents := NewEntitlementService(nil)
	replier := &fakeReplier{}
	directory := &fakeDirectory{perms: map[string]bool{}, roles: map[string]bool{}}

	return &dispatcherFixture{
		commands:  commands,
		cooldowns: cooldowns,
		ents:      ents,
		replier:   replier,
		directory: directory,
		d: NewDispatcherService(
			commands, NewArgumentResolver(), cooldowns, ents, replier, directory, nil, owners),
	}
}

func invocation(cmd, invoker, guildID string, args map[string]any) *command.Invocation {
	return &command.Invocation{ID: "inv-1", Command: cmd, InvokerID: invoker, GuildID: guildID, Args: args}
}

func TestDispatcher_UnknownCommand_ExactlyOneReply(t *testing.T) {
	f := newDispatcherFixture()

	f.d.Dispatch(context.Background(), invocation("doesnotexist", "u1", "g1", nil))

	if f.replier.replyCount() != 1 {
		t.Fatalf("invoker must receive exactly one reply, got %d", f.replier.replyCount())
	}
	if msg := f.replier.lastReply(t); msg.Code != "unknown_command" || !msg.Ephemeral {
		t.Fatalf("expected ephemeral unknown_command reply, got %+v", msg)
	}
}

func TestDispatcher_DisabledCommand(t *testing.T) {
	f := newDispatcherFixture()
	def := testCommand("ping")
	def.Run = func(context.Context, *command.InvocationContext, map[string]any) error { return nil }
	if err := f.commands.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.commands.SetEnabled("ping", false); err != nil {
		t.Fatalf("disable: %v", err)
	}

	f.d.Dispatch(context.Background(), invocation("ping", "u1", "g1", nil))

	if msg := f.replier.lastReply(t); msg.Code != "command_disabled" {
		t.Fatalf("expected command_disabled, got %+v", msg)
	}
}

func TestDispatcher_CooldownScenario(t *testing.T) {
	f := newDispatcherFixture()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.cooldowns.now = func() time.Time { return clock }

	var runs int
	def := testCommand("ping")
	def.Cooldown = 5 * time.Second
	def.Run = func(context.Context, *command.InvocationContext, map[string]any) error {
		runs++
		return nil
	}
	if err := f.commands.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx := context.Background()

	// First invocation succeeds and arms the cooldown.
	f.d.Dispatch(ctx, invocation("ping", "u1", "g1", nil))
	if runs != 1 {
		t.Fatalf("first invocation should run, runs=%d", runs)
	}
	if f.replier.replyCount() != 0 {
		t.Fatalf("success should not produce a dispatcher reply, got %d", f.replier.replyCount())
	}

	// Second invocation within the window fails with positive remaining time.
	clock = clock.Add(2 * time.Second)
	f.d.Dispatch(ctx, invocation("ping", "u1", "g1", nil))
	if runs != 1 {
		t.Fatalf("cooldown must block the handler, runs=%d", runs)
	}
	msg := f.replier.lastReply(t)
	if msg.Code != "cooldown" {
		t.Fatalf("expected cooldown reply, got %+v", msg)
	}

	// A different invoker is not affected.
	f.d.Dispatch(ctx, invocation("ping", "u2", "g1", nil))
	if runs != 2 {
		t.Fatalf("cooldowns are per invoker, runs=%d", runs)
	}

	// After the window the original invoker succeeds again.
	clock = clock.Add(4 * time.Second)
	f.d.Dispatch(ctx, invocation("ping", "u1", "g1", nil))
	if runs != 3 {
		t.Fatalf("expired cooldown should allow invocation, runs=%d", runs)
	}
}

func TestDispatcher_CooldownNotArmedOnFailure(t *testing.T) {
	f := newDispatcherFixture()

	def := testCommand("flaky")
	def.Cooldown = 5 * time.Second
	fail := true
	def.Run = func(context.Context, *command.InvocationContext, map[string]any) error {
		if fail {
			return context.DeadlineExceeded
		}
		return nil
	}
	if err := f.commands.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx := context.Background()
	f.d.Dispatch(ctx, invocation("flaky", "u1", "g1", nil))

	// Handler failed, so no cooldown was written; retry runs immediately.
	fail = false
	f.d.Dispatch(ctx, invocation("flaky", "u1", "g1", nil))
	if f.cooldowns.Remaining("flaky", "u1") == 0 {
		t.Fatal("cooldown should be armed after the successful retry")
	}
	if f.replier.replyCount() != 1 {
		t.Fatalf("only the failed invocation replies, got %d", f.replier.replyCount())
	}
}

func TestDispatcher_PermissionGates(t *testing.T) {
	f := newDispatcherFixture("owner-9")

	ownerOnly := testCommand("shutdown")
	ownerOnly.OwnerOnly = true
	ownerOnly.Run = func(context.Context, *command.InvocationContext, map[string]any) error { return nil }
	if err := f.commands.Register(ownerOnly); err != nil {
		t.Fatalf("register: %v", err)
	}

	f.d.Dispatch(context.Background(), invocation("shutdown", "u1", "g1", nil))
	if msg := f.replier.lastReply(t); msg.Code != "permission_denied" {
		t.Fatalf("expected permission_denied for non-owner, got %+v", msg)
	}

	before := f.replier.replyCount()
	f.d.Dispatch(context.Background(), invocation("shutdown", "owner-9", "g1", nil))
	if f.replier.replyCount() != before {
		t.Fatalf("owner invocation should succeed silently, got %+v", f.replier.lastReply(t))
	}
}

func TestDispatcher_GuildOnlyAndMissingPermission(t *testing.T) {
	f := newDispatcherFixture()

	def := testCommand("ban")
	def.GuildOnly = true
	def.Permissions = []string{"ban_members"}
	def.Run = func(context.Context, *command.InvocationContext, map[string]any) error { return nil }
	if err := f.commands.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	// No guild context.
	f.d.Dispatch(context.Background(), invocation("ban", "u1", "", nil))
	if msg := f.replier.lastReply(t); msg.Code != "permission_denied" {
		t.Fatalf("expected permission_denied for DM invocation, got %+v", msg)
	}

	// Guild context but invoker lacks ban_members.
	f.d.Dispatch(context.Background(), invocation("ban", "u1", "g1", nil))
	if msg := f.replier.lastReply(t); msg.Code != "permission_denied" {
		t.Fatalf("expected permission_denied for missing permission, got %+v", msg)
	}

	// Grant the permission; dispatch succeeds.
	f.directory.perms["ban_members"] = true
	before := f.replier.replyCount()
	f.d.Dispatch(context.Background(), invocation("ban", "u1", "g1", nil))
	if f.replier.replyCount() != before {
		t.Fatalf("granted invocation should not reply with an error: %+v", f.replier.lastReply(t))
	}
}

func TestDispatcher_PremiumGate(t *testing.T) {
	f := newDispatcherFixture()

	def := testCommand("insights")
	def.Premium = true
	def.Run = func(context.Context, *command.InvocationContext, map[string]any) error { return nil }
	if err := f.commands.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	f.d.Dispatch(context.Background(), invocation("insights", "u1", "g1", nil))
	if msg := f.replier.lastReply(t); msg.Code != "entitlement_denied" {
		t.Fatalf("expected entitlement_denied, got %+v", msg)
	}

	// Any paid tier unlocks premium commands; feature keys are not consulted.
	if err := f.ents.Record(&entitlement.Record{GuildID: "g1", Plan: entitlement.PlanPro}); err != nil {
		t.Fatalf("record entitlement: %v", err)
	}
	before := f.replier.replyCount()
	f.d.Dispatch(context.Background(), invocation("insights", "u1", "g1", nil))
	if f.replier.replyCount() != before {
		t.Fatalf("premium guild should pass the gate: %+v", f.replier.lastReply(t))
	}
}

func TestDispatcher_ArgumentErrorsPropagate(t *testing.T) {
	f := newDispatcherFixture()

	def := testCommand("warn")
	def.Args = []command.Argument{{Name: "reason", Type: command.ArgString, Required: true}}
	def.Run = func(context.Context, *command.InvocationContext, map[string]any) error { return nil }
	if err := f.commands.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	f.d.Dispatch(context.Background(), invocation("warn", "u1", "g1", nil))
	if msg := f.replier.lastReply(t); msg.Code != "argument_missing" {
		t.Fatalf("expected argument_missing, got %+v", msg)
	}
}

func TestDispatcher_HandlerReceivesParsedArgs(t *testing.T) {
	f := newDispatcherFixture()

	var got map[string]any
	def := testCommand("slow")
	def.Args = []command.Argument{{Name: "minutes", Type: command.ArgInteger}}
	def.Run = func(_ context.Context, _ *command.InvocationContext, args map[string]any) error {
		got = args
		return nil
	}
	if err := f.commands.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	f.d.Dispatch(context.Background(), invocation("slow", "u1", "g1", map[string]any{"minutes": float64(10)}))

	if got["minutes"] != int64(10) {
		t.Fatalf("handler should see coerced args, got %T %v", got["minutes"], got["minutes"])
	}
}

func TestDispatcher_PanicStillReplies(t *testing.T) {
	f := newDispatcherFixture()

	def := testCommand("crash")
	def.Run = func(context.Context, *command.InvocationContext, map[string]any) error {
		panic("handler bug")
	}
	if err := f.commands.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	f.d.Dispatch(context.Background(), invocation("crash", "u1", "g1", nil))

	if f.replier.replyCount() != 1 {
		t.Fatalf("panicking pipeline must still reply, got %d", f.replier.replyCount())
	}
	if msg := f.replier.lastReply(t); msg.Code != "internal" {
		t.Fatalf("expected internal code, got %+v", msg)
	}
}

func TestDispatcher_AliasResolution(t *testing.T) {
	f := newDispatcherFixture()

	var runs int
	def := testCommand("ping", "p")
	def.Run = func(context.Context, *command.InvocationContext, map[string]any) error {
		runs++
		return nil
	}
	if err := f.commands.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	f.d.Dispatch(context.Background(), invocation("p", "u1", "g1", nil))
	if runs != 1 {
		t.Fatalf("alias should resolve and run, runs=%d", runs)
	}
}

func TestDispatcher_Suggest(t *testing.T) {
	f := newDispatcherFixture()

	def := testCommand("play")
	def.Args = []command.Argument{{
		Name: "song", Type: command.ArgString, Autocomplete: true,
		Choices: []command.Choice{{Name: "Alpha", Value: "a"}, {Name: "Beta", Value: "b"}},
	}}
	def.Run = func(context.Context, *command.InvocationContext, map[string]any) error { return nil }
	if err := f.commands.Register(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	f.d.Suggest(context.Background(), invocation("play", "u1", "g1", nil), "song", "al", nil)

	f.replier.mu.Lock()
	defer f.replier.mu.Unlock()
	if len(f.replier.acs) != 1 || len(f.replier.acs[0]) != 1 || f.replier.acs[0][0].Name != "Alpha" {
		t.Fatalf("expected one Alpha candidate, got %v", f.replier.acs)
	}
}
