package chanserv

// JoinOptions describes one user's join of a registered channel, as far as
// the policy in §4.6.6 needs to know. Actual IRC-level mode/kick/ban
// enforcement is out of scope (§1); EvaluateJoin only decides what should
// happen, leaving the protocol layer to carry it out.
type JoinOptions struct {
	Hostmask       string
	HandleName     string // empty if the joiner is not authenticated
	IsBurst        bool   // netburst ride
	JoinFlood      bool   // channel currently in join-flood mode
	RoomUntilLimit int    // current limit minus current member count
	HelperAccount  bool   // joiner's account carries HELPER
}

// JoinDecision is what EvaluateJoin concluded should happen.
type JoinDecision struct {
	Kick               bool
	KickReason         string
	MatchedBan         *BanReg
	ScheduleLimitAdjust bool
	GrantOp            bool
	GrantVoice         bool
	MarkHelping        bool
	SendGreeting       bool
	SendInfoLine       bool
}

// EvaluateJoin implements §4.6.6's six-step join policy.
func (cs *ChanServ) EvaluateJoin(reg *ChannelReg, opts JoinOptions) JoinDecision {
	var d JoinDecision

	// Step 1: netsplit ride — any matching ban kicks immediately, skipping
	// the LRU re-match bookkeeping of step 2. The joiner's channel modes are
	// not part of JoinOptions and are not checked.
	if opts.IsBurst {
		if b := MatchingBan(reg, opts.Hostmask); b != nil {
			d.Kick = true
			d.KickReason = "far side of netsplit"
			d.MatchedBan = b
			return d
		}
	}

	// Step 2: ordinary ban re-match, only while not flooded and under cap.
	if !opts.JoinFlood && len(reg.Bans) < cs.tunables.MaxBans {
		if b := MatchingBan(reg, opts.Hostmask); b != nil {
			cs.TriggerBan(reg, b)
			d.Kick = true
			d.KickReason = b.Reason
			d.MatchedBan = b
			return d
		}
	}

	// Step 3: dynamic limit adjust, debounced by the caller's timer check.
	if reg.Flags&ChanDynamicLimit != 0 && opts.RoomUntilLimit < cs.tunables.AdjustThreshold {
		d.ScheduleLimitAdjust = true
	}

	// Step 4: op/voice from AUTO_OP and the channel's level thresholds,
	// suppressed during join-flood.
	if !opts.JoinFlood && opts.HandleName != "" {
		if u, ok := reg.Users.Get(opts.HandleName); ok && u.Flags&UserAutoOp != 0 {
			if u.Access >= reg.Levels[LevelGiveOps] {
				d.GrantOp = true
			} else if u.Access >= reg.Levels[LevelGiveVoice] {
				d.GrantVoice = true
			}
		}
	}

	// Step 5: mark HELPING for helper accounts in a support channel.
	if opts.HelperAccount && cs.isSupportChannel(reg.Name) {
		d.MarkHelping = true
	}

	// Step 6: greeting and info line, suppressed on burst. SendInfoLine is
	// set on every non-burst join; no info_delay rate limit is applied here.
	if !opts.IsBurst {
		if reg.Greeting != "" {
			d.SendGreeting = true
		}
		d.SendInfoLine = true
	}

	if opts.HandleName != "" {
		cs.SetPresent(reg, opts.HandleName, true, EventJoin)
	}
	return d
}

func (cs *ChanServ) isSupportChannel(name string) bool {
	for _, s := range cs.tunables.SupportChannels {
		if MatchGlob(s, name) || s == name {
			return true
		}
	}
	return false
}

// ModeChangeRequest abstracts one observed mode change on a registered
// channel, enough for §4.6.7's policy to evaluate without depending on a
// concrete protocol mode-string representation.
type ModeChangeRequest struct {
	ActorAccess  int // EnfModes-relevant access of whoever issued the change; -1 if the actor is the service itself
	ActorIsUser  bool
	Added        map[byte]string // mode char -> parameter (empty string if none)
	Removed      map[byte]string
	OpGrants     []string // handle names granted +o
	DeopTargets  []string // handle names hit with -o
	IsQualified  func(handle string) bool // GiveOps-qualified and not a service
	AccessOf     func(handle string) int
	HostmaskOf   func(handle string) string // present user's current hostmask, for ban-removal matching
}

// ModeLock is the stored mode-lock configuration a registered channel
// enforces (§3.2's topic/mode-lock fields, generalized to arbitrary modes).
type ModeLock struct {
	Set   map[byte]string // modes that must always be on, with fixed params
	Clear map[byte]bool   // modes that must always be off
}

// ModeDecision is what EvaluateModeChange concluded should be reverted.
type ModeDecision struct {
	BounceSet   []byte // modes in Added that must be bounced back off
	BounceClear []byte // modes in Removed that must be bounced back on
	RevertOps     []string
	RevertDeops   []string
	RevertActorOp bool // the deopper itself should be deopped too, per §4.6.7
	RemoveBans    []*BanReg // bans matching a now-protected user
}

// EvaluateModeChange implements §4.6.7.
func (cs *ChanServ) EvaluateModeChange(reg *ChannelReg, req ModeChangeRequest, lock ModeLock, protect Protect) ModeDecision {
	var d ModeDecision

	if req.ActorIsUser && req.AccessOf != nil {
		hasEnfModes := req.ActorAccess >= reg.Levels[LevelEnfModes]
		if !hasEnfModes {
			for mode, param := range req.Added {
				switch lockedParam, locked := lock.Set[mode]; {
				case lock.Clear[mode]:
					d.BounceSet = append(d.BounceSet, mode)
				case locked && param != lockedParam:
					// A locked key/limit being overridden with a different
					// value (§4.6.7): the mode itself stays set, but the
					// attempted new parameter must be bounced back to the
					// locked one.
					d.BounceSet = append(d.BounceSet, mode)
				}
			}
			for mode := range req.Removed {
				if _, locked := lock.Set[mode]; locked {
					d.BounceClear = append(d.BounceClear, mode)
				}
			}
		}
	}

	if req.IsQualified != nil {
		for _, h := range req.OpGrants {
			if !req.IsQualified(h) {
				d.RevertOps = append(d.RevertOps, h)
			}
		}
	}

	if req.AccessOf != nil {
		actorAccess := req.ActorAccess
		for _, h := range req.DeopTargets {
			if protectionApplies(protect, actorAccess, req.AccessOf(h)) {
				d.RevertDeops = append(d.RevertDeops, h)
			}
		}
		if len(d.RevertDeops) > 0 && actorAccess >= 0 {
			d.RevertActorOp = true
		}
	}

	for _, b := range reg.Bans {
		if banProtectsSomeone(reg, b, protect, req.AccessOf, req.HostmaskOf) {
			d.RemoveBans = append(d.RemoveBans, b)
		}
	}

	return d
}

// protectionApplies implements the four Protect policies (§4.6.7): 'n' never
// protects, 'a' always protects, 'e' protects users at access >= actor's,
// 'l' protects users at access > actor's.
func protectionApplies(p Protect, actorAccess, targetAccess int) bool {
	switch p {
	case ProtectAll:
		return true
	case ProtectEqual:
		return targetAccess >= actorAccess
	case ProtectGreater:
		return targetAccess > actorAccess
	default:
		return false
	}
}

func banProtectsSomeone(reg *ChannelReg, b *BanReg, protect Protect, accessOf func(string) int, hostmaskOf func(string) string) bool {
	if accessOf == nil || hostmaskOf == nil || protect == ProtectNone {
		return false
	}
	protected := false
	reg.Users.Iterate(func(name string, u *UserReg) bool {
		if u.Present && MatchGlob(b.Mask, hostmaskOf(name)) && protectionApplies(protect, 0, u.Access) {
			protected = true
			return false
		}
		return true
	})
	return protected
}
