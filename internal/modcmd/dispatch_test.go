package modcmd

import (
	"testing"
)

func newTestRegistry(t *testing.T) (*Registry, *Module, *Service) {
	t.Helper()
	reg := New()
	mod, err := reg.RegisterModule("chanserv", "CHANSERV", "chanserv.help", nil)
	if err != nil {
		t.Fatalf("RegisterModule: %v", err)
	}
	svc, err := reg.RegisterService("ChanServ", 0, false)
	if err != nil {
		t.Fatalf("RegisterService: %v", err)
	}
	return reg, mod, svc
}

func TestAliasDispatchScenario(t *testing.T) {
	reg, mod, svc := newTestRegistry(t)

	var addedWho string
	var addedLevel string
	adduser, err := reg.RegisterCommand(mod, "adduser", func(ctx *Context, argv []string) Result {
		addedWho = argv[0]
		addedLevel = argv[1]
		return ResultSuccess
	}, 2, Rules{})
	if err != nil {
		t.Fatalf("RegisterCommand: %v", err)
	}
	reg.BindCommand(svc, adduser, "adduser", "")
	reg.BindAlias(svc, adduser, "addowner", "", []string{"adduser", "$1", "owner"})

	d := NewDispatcher(reg, nil)
	d.Audit = func(Severity, *Context, *SvcCmd, []string) {} // silence in test

	ctx := &Context{Actor: &Actor{Nick: "Alice"}, Service: svc, Reply: func(string, ...interface{}) {}}
	result := d.Dispatch(ctx, []string{"addowner", "Bob"})
	if result != ResultSuccess {
		t.Fatalf("Dispatch result = %v, want ResultSuccess", result)
	}
	if addedWho != "Bob" || addedLevel != "owner" {
		t.Fatalf("adduser invoked with (%q, %q), want (Bob, owner)", addedWho, addedLevel)
	}
}

func TestJoinerListsChildren(t *testing.T) {
	reg, mod, svc := newTestRegistry(t)
	noop, _ := reg.RegisterCommand(mod, "noop", func(ctx *Context, argv []string) Result { return ResultSuccess }, 0, Rules{})
	reg.BindCommand(svc, noop, "set defaults", "")
	reg.BindCommand(svc, noop, "set topic", "")

	d := NewDispatcher(reg, nil)
	var repliedKey string
	var repliedArgs []interface{}
	ctx := &Context{
		Actor:   &Actor{Nick: "Alice"},
		Service: svc,
		Reply: func(key string, args ...interface{}) {
			repliedKey = key
			repliedArgs = args
		},
	}
	result := d.Dispatch(ctx, []string{"set"})
	if result != ResultSilent {
		t.Fatalf("joiner with no args should not invoke a handler, got %v", result)
	}
	if repliedKey != "MSG_JOINER_CHILDREN" {
		t.Fatalf("expected joiner children reply, got key %q args %v", repliedKey, repliedArgs)
	}
}

func TestJoinerRedispatch(t *testing.T) {
	reg, mod, svc := newTestRegistry(t)
	var invoked string
	topic, _ := reg.RegisterCommand(mod, "set topic", func(ctx *Context, argv []string) Result {
		invoked = "topic"
		return ResultSuccess
	}, 0, Rules{})
	reg.BindCommand(svc, topic, "set topic", "")
	defaults, _ := reg.RegisterCommand(mod, "set defaults", func(ctx *Context, argv []string) Result {
		invoked = "defaults"
		return ResultSuccess
	}, 0, Rules{})
	reg.BindCommand(svc, defaults, "set defaults", "")

	d := NewDispatcher(reg, nil)
	d.Audit = func(Severity, *Context, *SvcCmd, []string) {}
	ctx := &Context{Actor: &Actor{Nick: "Alice"}, Service: svc, Reply: func(string, ...interface{}) {}}
	if res := d.Dispatch(ctx, []string{"set", "topic"}); res != ResultSuccess {
		t.Fatalf("Dispatch = %v, want ResultSuccess", res)
	}
	if invoked != "topic" {
		t.Fatalf("invoked = %q, want topic", invoked)
	}
}

func TestTemplateInheritance(t *testing.T) {
	reg, mod, svc := newTestRegistry(t)
	base, _ := reg.RegisterCommand(mod, "base", func(ctx *Context, argv []string) Result { return ResultSuccess }, 0, Rules{})
	reg.BindCommand(svc, base, "base", "")

	derivedTarget, _ := reg.RegisterCommand(mod, "derived", func(ctx *Context, argv []string) Result { return ResultSuccess }, 0, Rules{})
	reg.BindCommand(svc, derivedTarget, "derived", "ChanServ.base")

	// Give the base binding a flag only after registering the template
	// reference, to prove resolution happens at ResolveTemplates time, not
	// at BindCommand time.
	baseBinding, _ := svc.Lookup("base")
	baseBinding.Rules.Flags |= RequireAuthed

	reg.ResolveTemplates()

	derivedBinding, _ := svc.Lookup("derived")
	if !derivedBinding.Rules.Flags.Has(RequireAuthed) {
		t.Fatal("expected derived binding to inherit RequireAuthed from its template")
	}
}

func TestDisabledCommandSilentlyRejected(t *testing.T) {
	reg, mod, svc := newTestRegistry(t)
	invoked := false
	cmd, _ := reg.RegisterCommand(mod, "locked", func(ctx *Context, argv []string) Result {
		invoked = true
		return ResultSuccess
	}, 0, Rules{Flags: Disabled, Noisy: true})
	reg.BindCommand(svc, cmd, "locked", "")

	d := NewDispatcher(reg, nil)
	var key string
	ctx := &Context{
		Actor:   &Actor{Nick: "Alice"},
		Service: svc,
		Reply:   func(k string, args ...interface{}) { key = k },
	}
	d.Dispatch(ctx, []string{"locked"})
	if invoked {
		t.Fatal("DISABLED command must not be invoked")
	}
	if key != "MSG_COMMAND_DISABLED" {
		t.Fatalf("key = %q, want MSG_COMMAND_DISABLED", key)
	}
}

func TestPolicerBlocksExcessCalls(t *testing.T) {
	reg, mod, svc := newTestRegistry(t)
	calls := 0
	cmd, _ := reg.RegisterCommand(mod, "spammy", func(ctx *Context, argv []string) Result {
		calls++
		return ResultSuccess
	}, 0, Rules{PolicerCategory: "commands-luser"})
	reg.BindCommand(svc, cmd, "spammy", "")

	policers := NewPolicerSet()
	policers.Register("commands-luser", 0, 1) // burst of exactly 1, no refill

	d := NewDispatcher(reg, policers)
	d.Audit = func(Severity, *Context, *SvcCmd, []string) {}
	ctx := &Context{Actor: &Actor{Nick: "Eve", Hostmask: "eve!e@example.com"}, Service: svc, Reply: func(string, ...interface{}) {}}

	if res := d.Dispatch(ctx, []string{"spammy"}); res != ResultSuccess {
		t.Fatalf("first call result = %v, want ResultSuccess", res)
	}
	if res := d.Dispatch(ctx, []string{"spammy"}); res != ResultSilent {
		t.Fatalf("second call result = %v, want ResultSilent (rate limited)", res)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestHelpFallsBackToModuleIndex(t *testing.T) {
	reg, mod, svc := newTestRegistry(t)
	_ = reg
	svc.UseModule(mod)
	mod.HelpExpander = func(topic string) (string, bool) {
		if topic == "<index>" {
			return "index text", true
		}
		return "", false
	}
	text, ok := Help(svc, "nonexistent")
	if !ok || text != "index text" {
		t.Fatalf("Help = %q, %v, want index text", text, ok)
	}
}
