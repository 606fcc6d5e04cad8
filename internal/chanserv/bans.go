package chanserv

import (
	"time"

	"ircservd/internal/timerqueue"
)

// AddBanOptions carries addban's caller-supplied parameters (§4.6.5).
type AddBanOptions struct {
	Mask    string
	Owner   string
	Reason  string
	Expires time.Time // zero means permanent
}

// AddBan implements §4.6.5: any existing ban narrower than the new mask is
// removed (it is now redundant); if an existing ban's mask is identical, the
// two are coalesced in place (the reason is replaced, the expiry is only
// extended, never shortened); if the new mask is instead narrower than and
// already covered by a surviving broader ban, that broader ban's
// reason/expiry is updated in place and no new record is added; otherwise a
// new BanReg is appended, subject to max_banlist_length.
func (cs *ChanServ) AddBan(reg *ChannelReg, opts AddBanOptions) error {
	now := cs.Now()

	kept := reg.Bans[:0]
	var coalesced *BanReg
	for _, b := range reg.Bans {
		if b.Mask == opts.Mask {
			coalesced = b
			kept = append(kept, b)
			continue
		}
		if MaskSubsumes(opts.Mask, b.Mask) {
			cs.cancelBanTimer(b)
			continue
		}
		if coalesced == nil && MaskSubsumes(b.Mask, opts.Mask) {
			coalesced = b
		}
		kept = append(kept, b)
	}
	reg.Bans = kept

	if coalesced != nil {
		cs.cancelBanTimer(coalesced)
		coalesced.Owner = opts.Owner
		coalesced.Reason = opts.Reason
		if opts.Expires.IsZero() {
			coalesced.Expires = time.Time{}
		} else if opts.Expires.After(coalesced.Expires) && !(coalesced.Mask == opts.Mask && coalesced.Expires.IsZero()) {
			// An identical permanent ban stays permanent.
			coalesced.Expires = opts.Expires
		}
		cs.scheduleBanExpiry(reg, coalesced)
		return nil
	}

	if len(reg.Bans) >= cs.tunables.MaxBans {
		return ErrTooManyBans
	}

	b := &BanReg{
		Mask:    opts.Mask,
		Owner:   opts.Owner,
		Reason:  opts.Reason,
		Set:     now,
		Expires: opts.Expires,
		channel: reg,
	}
	reg.Bans = append(reg.Bans, b)
	cs.scheduleBanExpiry(reg, b)
	return nil
}

// scheduleBanExpiry arms a timer to remove b from reg.Bans at its expiry, if
// it has one. Permanent bans (zero Expires) are never scheduled.
func (cs *ChanServ) scheduleBanExpiry(reg *ChannelReg, b *BanReg) {
	if b.channel == nil {
		b.channel = reg
	}
	if b.Expires.IsZero() {
		return
	}
	cs.Timers.Add(b.Expires, cs.expireBan, b)
}

// expireBan is the timer callback removing a ban once its Expires deadline
// passes. Protocol-level unban is out of scope (§1) — this only updates the
// record.
func (cs *ChanServ) expireBan(data any) {
	b := data.(*BanReg)
	if b.channel == nil {
		return
	}
	for i, cur := range b.channel.Bans {
		if cur == b {
			b.channel.Bans = append(b.channel.Bans[:i], b.channel.Bans[i+1:]...)
			return
		}
	}
}

// cancelBanTimer removes any pending expiry timer for b, matched by the
// opaque data pointer (the *BanReg itself) so it is found regardless of the
// deadline it was armed with.
func (cs *ChanServ) cancelBanTimer(b *BanReg) {
	cs.Timers.Del(time.Time{}, nil, b, timerqueue.IgnoreWhen|timerqueue.IgnoreFunc)
}

// TriggerBan records a hit against mask, bumping it to the front of the
// conceptual LRU (reg.Bans is reordered so callers scanning in order see the
// most recently triggered ban first, matching srvx's move-to-head policy)
// and stamping Triggered (§4.6.5/§4.6.6).
func (cs *ChanServ) TriggerBan(reg *ChannelReg, b *BanReg) {
	b.Triggered = cs.Now()
	for i, cur := range reg.Bans {
		if cur == b {
			copy(reg.Bans[1:i+1], reg.Bans[:i])
			reg.Bans[0] = b
			return
		}
	}
}

// MatchingBan returns the first ban whose mask matches hostmask, or nil.
func MatchingBan(reg *ChannelReg, hostmask string) *BanReg {
	for _, b := range reg.Bans {
		if MatchGlob(b.Mask, hostmask) {
			return b
		}
	}
	return nil
}
