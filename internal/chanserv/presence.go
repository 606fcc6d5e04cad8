package chanserv

// PresenceEvent names the observing transitions that update Present/LastSeen
// (§4.6.4).
type PresenceEvent int

const (
	EventJoin PresenceEvent = iota
	EventPart
	EventKick
	EventNickChange
	EventAuth
	EventUnregister
	EventDelete
)

// SetPresent records that handleName is now (present=true) or no longer
// (present=false) represented by a connected, authenticated user in reg's
// channel, stamping LastSeen for observing transitions (§4.6.4). present
// should be true for Join/Auth/NickChange-into-channel and false for
// Part/Kick/Unregister/Delete/NickChange-out-of-channel.
func (cs *ChanServ) SetPresent(reg *ChannelReg, handleName string, present bool, event PresenceEvent) {
	u, ok := reg.Users.Get(handleName)
	if !ok {
		return
	}
	u.Present = present
	u.LastSeen = cs.Now()
	_ = event // retained on the signature for call-site readability and future per-event logging
}

// RescanPresent clears every UserReg's Present bit and re-marks the ones
// named in online (handle names of currently-joined, authenticated users),
// used after move (§4.6.2) and suspension expiry (§4.6.8) where membership
// must be recomputed from scratch rather than incrementally.
func (cs *ChanServ) RescanPresent(reg *ChannelReg, online map[string]bool) {
	now := cs.Now()
	reg.Users.Iterate(func(name string, u *UserReg) bool {
		wasPresent := u.Present
		u.Present = online[name]
		if u.Present && !wasPresent {
			u.LastSeen = now
		}
		return true
	})
}

// AnyPresentAtOrAbove reports whether reg has a present, non-bot user at
// access >= level — the channel-expiry survival check (§4.6.10).
func AnyPresentAtOrAbove(reg *ChannelReg, level int, isBot func(handle string) bool) bool {
	found := false
	reg.Users.Iterate(func(name string, u *UserReg) bool {
		if u.Present && u.Access >= level && (isBot == nil || !isBot(name)) {
			found = true
			return false
		}
		return true
	})
	return found
}
