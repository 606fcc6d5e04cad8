package modcmd

import "ircservd/internal/account"

// PermBits is the result of the permission predicate (§4.5.3 step 5): a
// bare allow plus the audit-relevant qualifiers the dispatcher logs.
type PermBits uint8

const (
	PermAllow PermBits = 1 << iota
	PermOverride
	PermNoChannel
	PermStaff
)

func (p PermBits) Has(b PermBits) bool { return p&b == b }

// OwnerAccessLevel is the channel-access threshold ("level ≥500", §3.3/§4.6)
// at which the override rule in step 5 applies: a caller below a binding's
// required channel access may still be let through, flagged OVERRIDE, if
// their access is at least this.
const OwnerAccessLevel = 500

// canInvoke evaluates every applicable gate against ctx and binding
// (§4.5.3 step 5). It returns the permission bits on success, or ok=false
// with a message key identifying the first failing gate; when
// rules.Noisy is set the caller is expected to have that key relayed to
// them (ctx.reply is invoked by Dispatch, not here, so tests can inspect
// the key without a Context wired to a real transport).
func canInvoke(ctx *Context, binding *SvcCmd) (PermBits, string, bool) {
	rules := binding.Rules
	eff := rules.EffectiveFlags()

	if eff.Has(Disabled) {
		return 0, "MSG_COMMAND_DISABLED", false
	}

	if eff.Has(RequireQualified) && !ctx.ServerQualified {
		return 0, "MSG_MUST_QUALIFY", false
	}

	if eff.Has(RequireAuthed) && !ctx.Actor.Authed() {
		return 0, "MSG_AUTHENTICATE_FIRST", false
	}

	var bits PermBits

	if eff.Has(RequireChannel) {
		if ctx.Channel == nil {
			return 0, "MSG_NEED_CHANNEL", false
		}
	}
	if eff.Has(RequireRegchan) {
		if ctx.Channel == nil || !ctx.Channel.Registered() {
			return 0, "MSG_CHANNEL_NOT_REGISTERED", false
		}
	}
	if eff.Has(RequireJoinable) {
		if ctx.Channel == nil || !ctx.Channel.Joinable() {
			return 0, "MSG_CHANNEL_NOT_JOINABLE", false
		}
	}

	if ctx.Channel != nil && ctx.Channel.Suspended() {
		if eff.Has(NeverCSuspend) {
			return 0, "MSG_CHANNEL_SUSPENDED", false
		}
		if !eff.Has(IgnoreCSuspend) {
			return 0, "MSG_CHANNEL_SUSPENDED", false
		}
	}

	if eff.Has(RequireChanuser) {
		if ctx.Channel == nil {
			return 0, "MSG_NEED_CHANNEL", false
		}
		callerAccess := 0
		if ctx.Actor.Authed() {
			callerAccess = ctx.Channel.AccessLevel(ctx.Actor.Handle.Name)
		}
		threshold := rules.MinChannelAccess
		if threshold == 0 {
			threshold = 1
		}
		if callerAccess < threshold {
			if callerAccess >= OwnerAccessLevel {
				bits |= PermOverride
			} else {
				return 0, "MSG_ACCESS_TOO_LOW", false
			}
		}
	}

	if eff.Has(Toy) && ctx.Channel != nil && !ctx.Channel.ToysEnabled() {
		bits |= PermNoChannel
	}

	staffOK, isStaff := evaluateStaff(ctx, eff, rules)
	if !staffOK {
		return 0, "MSG_ACCESS_DENIED", false
	}
	if isStaff {
		bits |= PermStaff
	}

	if eff.Has(RequireHelping) && !ctx.Actor.HasAcctFlags(account.FlagHelping) {
		return 0, "MSG_MUST_BE_HELPING", false
	}

	if rules.RequiredAcctFlags != 0 && !ctx.Actor.HasAcctFlags(rules.RequiredAcctFlags) {
		return 0, "MSG_MISSING_ACCOUNT_FLAG", false
	}
	if rules.DeniedAcctFlags != 0 && ctx.Actor.HasAcctFlags(rules.DeniedAcctFlags) {
		return 0, "MSG_FORBIDDEN_ACCOUNT_FLAG", false
	}

	return bits | PermAllow, "", true
}

// evaluateStaff implements the "staff any-of" gate: if any staff
// requirement is present, the actor must satisfy at least one of them (or
// the plain oper-level threshold). Returns (ok, wasStaffGate).
func evaluateStaff(ctx *Context, eff Flag, rules Rules) (bool, bool) {
	needsStaff := eff.Has(RequireOper) || eff.Has(RequireNetworkHelper) || eff.Has(RequireSupportHelper) || rules.MinOperLevel > 0
	if !needsStaff {
		return true, false
	}
	level := ctx.Actor.OperLevel()
	if rules.MinOperLevel > 0 && level >= rules.MinOperLevel {
		return true, true
	}
	if eff.Has(RequireOper) && level > 0 {
		return true, true
	}
	if eff.Has(RequireNetworkHelper) && ctx.Actor.HasAcctFlags(account.FlagNetworkHelper) {
		return true, true
	}
	if eff.Has(RequireSupportHelper) && ctx.Actor.HasAcctFlags(account.FlagSupportHelper) {
		return true, true
	}
	return false, true
}
