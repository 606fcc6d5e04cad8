// Package modcmd is the command-dispatch framework: an indirection layer
// between bot personas ("services"), the modules that implement commands,
// per-binding permission rules, alias expansion and template inheritance
// (§4.5). It knows nothing about ChanServ's data model directly; channel
// and account context are supplied through the ChannelState and
// account.Store abstractions so the same framework could host any service.
//
// Grounded in structure on the teacher's internal/commands/commands_registry.go
// (a global name->Command registry plus a single HandleCommand pipeline);
// generalized here into a multi-service, multi-module registry with the
// richer permission/template/alias machinery §4.5 requires.
package modcmd

import (
	"fmt"
	"sync"

	"ircservd/internal/account"
	"ircservd/internal/casefold"
	"ircservd/internal/container"
)

// Flag is the bit vocabulary over SvcCmd.Flags / SvcCmd.EffectiveFlags (§4.5.1).
type Flag uint32

const (
	Disabled Flag = 1 << iota
	NoLog
	KeepBound
	AcceptChannel
	AcceptPChannel
	NoDefaultBind
	LogHostmask
	IgnoreCSuspend
	NeverCSuspend
	RequireAuthed
	RequireChannel
	RequireRegchan
	RequireChanuser
	RequireJoinable
	RequireQualified
	RequireOper
	RequireNetworkHelper
	RequireSupportHelper
	RequireHelping
	Toy
)

// Has reports whether all bits of other are set in f.
func (f Flag) Has(other Flag) bool { return f&other == other }

// Module is a named container of ModCmds and an optional help-text store
// (§3.8, §4.5.1). The help store itself is an external collaborator per §1;
// Module only keeps the expander function it was given.
type Module struct {
	Name         string
	LogType      string
	HelpfileName string
	HelpExpander func(topic string) (string, bool)

	mu    sync.RWMutex
	cmds  map[string]*ModCmd
}

func newModule(name, logType, helpfileName string, expander func(string) (string, bool)) *Module {
	return &Module{
		Name:         name,
		LogType:      logType,
		HelpfileName: helpfileName,
		HelpExpander: expander,
		cmds:         make(map[string]*ModCmd),
	}
}

// Command returns a ModCmd previously registered in this module.
func (m *Module) Command(name string) (*ModCmd, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cmds[casefold.Fold(name, casefold.RFC1459)]
	return c, ok
}

// Help looks up topic in this module's help store.
func (m *Module) Help(topic string) (string, bool) {
	if m.HelpExpander == nil {
		return "", false
	}
	return m.HelpExpander(topic)
}

// Func is a command implementation. It returns a non-zero result (anything
// other than ResultSilent) when it did something worth audit-logging (§4.5.3
// step 7, §7 "handlers return 0 for do-not-log"); errors never propagate out
// of a handler — a handler that fails reports it to the caller itself and
// returns ResultSilent.
type Func func(ctx *Context, argv []string) Result

// Result is a command handler's return value.
type Result int

const (
	ResultSilent Result = iota
	ResultSuccess
)

// Rules is the set of permission rules a binding carries: default rules set
// at modcmd_register time, overridden per-binding, and inherited/merged
// through templates (§4.5.1, §4.5.2).
type Rules struct {
	Flags              Flag
	MinOperLevel       int
	MinChannelAccess   int
	RequiredAcctFlags  account.Flag
	DeniedAcctFlags    account.Flag
	Noisy              bool   // failed checks send an error message to the caller
	PolicerCategory    string // e.g. "commands-god"; empty means unpoliced
}

// merge folds other into r by template-inheritance rules: bitwise-union of
// flags, max of numeric thresholds, union of required/denied account flags.
func (r Rules) merge(other Rules) Rules {
	out := r
	out.Flags |= other.Flags
	if other.MinOperLevel > out.MinOperLevel {
		out.MinOperLevel = other.MinOperLevel
	}
	if other.MinChannelAccess > out.MinChannelAccess {
		out.MinChannelAccess = other.MinChannelAccess
	}
	out.RequiredAcctFlags |= other.RequiredAcctFlags
	out.DeniedAcctFlags |= other.DeniedAcctFlags
	out.Noisy = out.Noisy || other.Noisy
	if out.PolicerCategory == "" {
		out.PolicerCategory = other.PolicerCategory
	}
	return out
}

// EffectiveFlags derives the effective flag set from r per §4.5.1's rules:
// a non-zero minimum-oper-level implies REQUIRE_OPER; a non-zero
// minimum-channel-access implies REQUIRE_CHANUSER; CHANUSER implies
// REQUIRE_REGCHAN implies REQUIRE_CHANNEL; any staff/HELPING requires AUTHED.
func (r Rules) EffectiveFlags() Flag {
	f := r.Flags
	if r.MinOperLevel > 0 {
		f |= RequireOper
	}
	if r.MinChannelAccess > 0 {
		f |= RequireChanuser
	}
	if f.Has(RequireChanuser) {
		f |= RequireRegchan
	}
	if f.Has(RequireRegchan) {
		f |= RequireChannel
	}
	if f.Has(RequireOper) || f.Has(RequireNetworkHelper) || f.Has(RequireSupportHelper) || f.Has(RequireHelping) {
		f |= RequireAuthed
	}
	return f
}

// ModCmd is a command implementation (§3.8): a function, a minimum argument
// count, and default permission rules new bindings copy from.
type ModCmd struct {
	Module      *Module
	Name        string
	Func        Func
	MinArgc     int
	Defaults    Rules
	bindCount   int
}

// FullName is the module-qualified name used by template references
// ("module.command", §4.5.2).
func (m *ModCmd) FullName() string {
	return m.Module.Name + "." + m.Name
}

// Service is a bot persona: one user-visible IRC client, a map of
// name->SvcCmd, an optional trigger character, a privileged flag, and an
// ordered list of modules contributing help text (§3.8).
type Service struct {
	Name       string
	Trigger    byte // 0 means no trigger prefix required
	Privileged bool
	Modules    []*Module

	mu       sync.RWMutex
	bindings *container.OrderedMap[*SvcCmd]
}

// SvcCmd is a binding: a name in a service pointing at a ModCmd, with
// per-binding overrides of permission rules and an optional alias token
// list (§3.8).
type SvcCmd struct {
	Service     *Service
	Name        string
	Target      *ModCmd
	Rules       Rules
	Template    string // fully-qualified binding name or "*.NAME"; empty if none
	AliasTokens []string
	UseCount    int
}

// EffectiveFlags derives this binding's effective flag set.
func (s *SvcCmd) EffectiveFlags() Flag { return s.Rules.EffectiveFlags() }

var errNoSuchCommand = fmt.Errorf("modcmd: no such command")
