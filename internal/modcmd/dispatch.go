package modcmd

import (
	"strings"

	"ircservd/internal/logger"
)

// Severity classifies an audit log entry written after a successful
// dispatch (§4.5.3 step 7).
type Severity int

const (
	SeverityCommand Severity = iota
	SeverityOverride
	SeverityStaff
)

// Dispatcher ties a Registry to an audit sink and an optional PolicerSet.
// It is the thing connection/chanserv code calls per inbound command line.
type Dispatcher struct {
	Registry *Registry
	Policers *PolicerSet
	Audit    func(sev Severity, ctx *Context, binding *SvcCmd, argv []string)
}

// NewDispatcher builds a Dispatcher around reg, logging audit entries via
// logger.Auditf by default (overridable through Audit for tests).
func NewDispatcher(reg *Registry, policers *PolicerSet) *Dispatcher {
	d := &Dispatcher{Registry: reg, Policers: policers}
	d.Audit = d.defaultAudit
	return d
}

func (d *Dispatcher) defaultAudit(sev Severity, ctx *Context, binding *SvcCmd, argv []string) {
	sevName := map[Severity]logger.AuditSeverity{
		SeverityCommand:  logger.AuditCommand,
		SeverityOverride: logger.AuditOverride,
		SeverityStaff:    logger.AuditStaff,
	}[sev]
	who := ctx.Actor.Nick
	if binding.EffectiveFlags().Has(LogHostmask) {
		who = ctx.Actor.Hostmask
	}
	logger.Auditf(sevName, "%s %s: %s %s", who, ctx.Service.Name, binding.Name, strings.Join(argv, " "))
}

// Dispatch runs the 7-step pipeline from §4.5.3. argv[0] is the raw command
// word as typed (already stripped of any trigger character by the caller).
func (d *Dispatcher) Dispatch(ctx *Context, argv []string) Result {
	if len(argv) == 0 {
		return ResultSilent
	}

	// Step 1: privileged services reject non-opers outright.
	if ctx.Service.Privileged && ctx.Actor.OperLevel() <= 0 {
		ctx.reply("MSG_OPER_SERVICE_ONLY")
		return ResultSilent
	}

	// Step 2: identify the command word, swapping in a leading channel arg.
	cmdWord, argv := extractCommandWord(argv)

	// Step 3: look up the SvcCmd, allowing joiner re-dispatch.
	binding, found := ctx.Service.Lookup(cmdWord)
	if !found {
		if joined, rest, ok := resolveJoiner(ctx.Service, cmdWord, argv); ok {
			cmdWord = joined
			argv = rest
			binding, found = ctx.Service.Lookup(cmdWord)
		}
	}
	if !found {
		if children := joinerChildren(ctx.Service, cmdWord); len(children) > 0 {
			ctx.reply("MSG_JOINER_CHILDREN", children)
			return ResultSilent
		}
		ctx.reply("MSG_UNKNOWN_COMMAND", cmdWord)
		return ResultSilent
	}

	// A resolved joiner with no further args lists its children.
	if children := joinerChildren(ctx.Service, cmdWord); len(children) > 0 && len(argv) == 0 {
		ctx.reply("MSG_JOINER_CHILDREN", children)
		return ResultSilent
	}

	// Step 4: alias expansion, re-attempting channel extraction afterward.
	if len(binding.AliasTokens) > 0 {
		aliasName := cmdWord
		full := append([]string{cmdWord}, argv...)
		expanded, err := ExpandAlias(binding.AliasTokens, full)
		if err != nil {
			logger.Errorf("modcmd: alias expansion for %q failed: %v", aliasName, err)
			ctx.reply("MSG_BAD_ALIAS")
			return ResultSilent
		}
		if len(expanded) == 0 {
			return ResultSilent
		}
		cmdWord, argv = extractCommandWord(expanded)
		binding, found = ctx.Service.Lookup(cmdWord)
		if !found {
			logger.Errorf("modcmd: alias %q expanded to unknown command %q", aliasName, cmdWord)
			ctx.reply("MSG_UNKNOWN_COMMAND", cmdWord)
			return ResultSilent
		}
	}

	if binding.Target.MinArgc > len(argv) {
		ctx.reply("MSG_NEED_MORE_ARGS", binding.Target.MinArgc)
		return ResultSilent
	}

	// Step 5: permission predicate.
	bits, failKey, ok := canInvoke(ctx, binding)
	if !ok {
		if binding.Rules.Noisy {
			ctx.reply(failKey)
		}
		return ResultSilent
	}

	if category := binding.Rules.PolicerCategory; category != "" && d.Policers != nil {
		if p, ok := d.Policers.Get(category); ok && !p.Allow(ctx.Actor.Hostmask) {
			ctx.reply("MSG_RATE_LIMITED")
			return ResultSilent
		}
	}

	binding.UseCount++

	// Step 6: invoke.
	result := binding.Target.Func(ctx, argv)

	// Step 7: audit log on success, unless NO_LOG.
	if result != ResultSilent && !binding.EffectiveFlags().Has(NoLog) {
		switch {
		case bits.Has(PermOverride):
			d.Audit(SeverityOverride, ctx, binding, argv)
		case bits.Has(PermStaff):
			d.Audit(SeverityStaff, ctx, binding, argv)
		default:
			d.Audit(SeverityCommand, ctx, binding, argv)
		}
	}

	return result
}

// extractCommandWord implements §4.5.3 step 2: argv[0] is the command word
// unless it is a channel name and argv[1] is alphanumeric, in which case
// argv[0] and argv[1] are swapped so the command word leads.
func extractCommandWord(argv []string) (string, []string) {
	if len(argv) >= 2 && isChannelName(argv[0]) && isAlnum(argv[1]) {
		cmd := argv[1]
		rest := make([]string, 0, len(argv)-1)
		rest = append(rest, argv[0])
		rest = append(rest, argv[2:]...)
		return cmd, rest
	}
	return argv[0], argv[1:]
}

func isChannelName(s string) bool {
	return len(s) > 0 && (s[0] == '#' || s[0] == '&' || s[0] == '+' || s[0] == '!')
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
