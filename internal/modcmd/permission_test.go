package modcmd

import (
	"testing"

	"ircservd/internal/account"
)

func TestEffectiveFlagsSupersetOfFlags(t *testing.T) {
	r := Rules{Flags: RequireChanuser}
	eff := r.EffectiveFlags()
	if eff&r.Flags != r.Flags {
		t.Fatalf("effective flags %b do not superset raw flags %b", eff, r.Flags)
	}
}

func TestMinOperLevelImpliesRequireOper(t *testing.T) {
	r := Rules{MinOperLevel: 100}
	if !r.EffectiveFlags().Has(RequireOper) {
		t.Fatal("expected RequireOper implied by MinOperLevel > 0")
	}
}

func TestChanuserImpliesRegchanImpliesChannel(t *testing.T) {
	r := Rules{Flags: RequireChanuser}
	eff := r.EffectiveFlags()
	if !eff.Has(RequireRegchan) || !eff.Has(RequireChannel) {
		t.Fatalf("REQUIRE_CHANUSER should imply REQUIRE_REGCHAN and REQUIRE_CHANNEL, got %b", eff)
	}
}

func TestStaffAndHelpingImplyAuthed(t *testing.T) {
	for _, f := range []Flag{RequireOper, RequireNetworkHelper, RequireSupportHelper, RequireHelping} {
		r := Rules{Flags: f}
		if !r.EffectiveFlags().Has(RequireAuthed) {
			t.Fatalf("flag %b should imply RequireAuthed", f)
		}
	}
}

type fakeChannel struct {
	registered bool
	suspended  bool
	joinable   bool
	toys       bool
	access     map[string]int
}

func (f *fakeChannel) Name() string        { return "#test" }
func (f *fakeChannel) Registered() bool    { return f.registered }
func (f *fakeChannel) Suspended() bool     { return f.suspended }
func (f *fakeChannel) Joinable() bool      { return f.joinable }
func (f *fakeChannel) ToysEnabled() bool   { return f.toys }
func (f *fakeChannel) AccessLevel(h string) int {
	return f.access[h]
}

func actorWithAccess(name string, operLevel int, flags account.Flag) *Actor {
	return &Actor{
		Nick: name,
		Handle: &account.Handle{
			Name:      name,
			OperLevel: operLevel,
			Flags:     flags,
		},
	}
}

func TestPermissionMonotonicity(t *testing.T) {
	svc := &Service{Name: "ChanServ"}
	target := &ModCmd{Name: "adduser", Defaults: Rules{Flags: RequireChanuser, MinChannelAccess: 400}}
	binding := &SvcCmd{Service: svc, Name: "adduser", Target: target, Rules: target.Defaults}

	ch := &fakeChannel{registered: true, access: map[string]int{"low": 100, "high": 450}}

	lowCtx := &Context{Actor: actorWithAccess("low", 0, 0), Channel: ch}
	_, _, lowOK := canInvoke(lowCtx, binding)
	if lowOK {
		t.Fatal("actor with access below threshold should not pass")
	}

	highCtx := &Context{Actor: actorWithAccess("high", 0, 0), Channel: ch}
	_, _, highOK := canInvoke(highCtx, binding)
	if !highOK {
		t.Fatal("actor with dominating access should pass since low actor failed")
	}
}

func TestOverrideBitSetForHighAccessBelowThreshold(t *testing.T) {
	svc := &Service{Name: "ChanServ"}
	target := &ModCmd{Name: "setlevel", Defaults: Rules{Flags: RequireChanuser, MinChannelAccess: 600}}
	binding := &SvcCmd{Service: svc, Name: "setlevel", Target: target, Rules: target.Defaults}
	ch := &fakeChannel{registered: true, access: map[string]int{"owner": 500}}
	ctx := &Context{Actor: actorWithAccess("owner", 0, 0), Channel: ch}

	bits, _, ok := canInvoke(ctx, binding)
	if !ok {
		t.Fatal("owner-level actor should override a binding requiring more than owner access")
	}
	if !bits.Has(PermOverride) {
		t.Fatal("expected PermOverride bit set")
	}
}

func TestRequireAuthedRejectsAnonymous(t *testing.T) {
	svc := &Service{Name: "ChanServ"}
	target := &ModCmd{Name: "register", Defaults: Rules{Flags: RequireAuthed}}
	binding := &SvcCmd{Service: svc, Name: "register", Target: target, Rules: target.Defaults}
	ctx := &Context{Actor: &Actor{Nick: "anon"}}

	if _, _, ok := canInvoke(ctx, binding); ok {
		t.Fatal("unauthenticated actor should fail a REQUIRE_AUTHED binding")
	}
}

func TestDisabledAlwaysFails(t *testing.T) {
	svc := &Service{Name: "ChanServ"}
	target := &ModCmd{Name: "foo", Defaults: Rules{Flags: Disabled}}
	binding := &SvcCmd{Service: svc, Name: "foo", Target: target, Rules: target.Defaults}
	ctx := &Context{Actor: actorWithAccess("anyone", 1000, ^account.Flag(0))}

	if _, _, ok := canInvoke(ctx, binding); ok {
		t.Fatal("DISABLED binding must never allow invocation")
	}
}
