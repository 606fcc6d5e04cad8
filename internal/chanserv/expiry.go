package chanserv

import "ircservd/internal/account"

// SweepExpiredChannels implements §4.6.10: every channel_expire_frequency,
// remove each non-NODELETE channel whose Visited predates
// channel_expire_delay and has no present, non-bot user at access >=
// AccessPresent. Expiry goes through destroyChannel, the same path manual
// unregistration uses. Returns the names removed.
func (cs *ChanServ) SweepExpiredChannels() []string {
	now := cs.Now()
	cutoff := now.Add(-cs.tunables.ChannelExpireDelay)

	var expired []*ChannelReg
	cs.channels.Iterate(func(_ string, reg *ChannelReg) bool {
		if reg.Flags&ChanNoDelete != 0 {
			return true
		}
		if reg.Visited.After(cutoff) {
			return true
		}
		if AnyPresentAtOrAbove(reg, AccessPresent, cs.isBotHandle) {
			return true
		}
		expired = append(expired, reg)
		return true
	})

	names := make([]string, 0, len(expired))
	for _, reg := range expired {
		names = append(names, reg.Name)
		cs.destroyChannel(reg)
	}
	return names
}

func (cs *ChanServ) isBotHandle(name string) bool {
	if cs.Store == nil {
		return false
	}
	h, ok := cs.Store.Lookup(name)
	if !ok {
		return false
	}
	return h.Has(account.FlagBot)
}
