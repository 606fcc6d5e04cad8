package chanserv

import (
	"errors"

	"ircservd/internal/account"
)

var (
	ErrAlreadyRegistered = errors.New("chanserv: channel is already registered")
	ErrNotRegistered     = errors.New("chanserv: channel is not registered")
	ErrBlockedByDNR      = errors.New("chanserv: registration blocked by a do-not-register entry")
	ErrTooManyOwned      = errors.New("chanserv: handle already owns the maximum number of channels")
	ErrNotOwner          = errors.New("chanserv: caller is not the channel owner")
	ErrNoDelete          = errors.New("chanserv: channel has the NODELETE flag set")
	ErrConfirmRequired   = errors.New("chanserv: operation requires a confirmation token")
	ErrBadConfirm        = errors.New("chanserv: confirmation token does not match")
	ErrTargetExists       = errors.New("chanserv: target channel is already registered")
	ErrTooManyBans        = errors.New("chanserv: channel already holds the maximum number of bans")
)

// RegisterOptions carries register's caller-supplied parameters (§4.6.1).
type RegisterOptions struct {
	Channel string
	Handle  *account.Handle
	Force   bool // staff override: bypass DNR and max_owned
}

// Register implements §4.6.1: the caller must not already be blocked by a
// DNR (unless Force), the channel must not already be registered, and the
// handle's owned-channel count must be below max_owned (unless Force).
// Creates a ChannelReg with a single OWNER UserReg for the registrant.
func (cs *ChanServ) Register(opts RegisterOptions) (*ChannelReg, error) {
	if _, exists := cs.channels.Get(opts.Channel); exists {
		return nil, ErrAlreadyRegistered
	}
	if !opts.Force {
		if cs.DNRBlocks(opts.Channel, opts.Handle.Name) {
			return nil, ErrBlockedByDNR
		}
		if cs.OwnedChannelCount(opts.Handle.Name) >= cs.tunables.MaxOwned {
			return nil, ErrTooManyOwned
		}
	}

	now := cs.Now()
	reg := NewChannelReg(opts.Channel, cs.Config.GetString("services/chanserv/default_modes", "+nt"))
	reg.Registered = now
	reg.Visited = now
	reg.OwnerTransfer = now
	reg.Registrar = opts.Handle.Name

	owner := &UserReg{
		Channel:  reg,
		Handle:   opts.Handle,
		Access:   AccessOwner,
		LastSeen: now,
	}
	reg.Users.Set(opts.Handle.Name, owner)
	cs.addHandleLink(owner)

	cs.channels.Set(opts.Channel, reg)
	return reg, nil
}

// Unregister implements §4.6.2: requires OWNER access, not NODELETE, and
// two-step confirmation via ConfirmationToken. Pass confirm="" to receive
// ErrConfirmRequired (the caller is expected to present the token back to
// the user and re-invoke with it).
func (cs *ChanServ) Unregister(channel string, actorHandle string, confirm string) error {
	reg, ok := cs.channels.Get(channel)
	if !ok {
		return ErrNotRegistered
	}
	u, ok := reg.Users.Get(actorHandle)
	if !ok || u.Access < AccessOwner {
		return ErrNotOwner
	}
	if reg.Flags&ChanNoDelete != 0 {
		return ErrNoDelete
	}
	want := ConfirmationToken(actorHandle, channel)
	if confirm == "" {
		return ErrConfirmRequired
	}
	if confirm != want {
		return ErrBadConfirm
	}
	cs.destroyChannel(reg)
	return nil
}

// destroyChannel removes reg and every record it owns: its timers, its
// user-list back-links, and the channel entry itself.
func (cs *ChanServ) destroyChannel(reg *ChannelReg) {
	reg.Users.Iterate(func(_ string, u *UserReg) bool {
		cs.removeHandleLink(u)
		return true
	})
	for _, b := range reg.Bans {
		cs.cancelBanTimer(b)
	}
	cs.channels.Delete(reg.Name)
}

// Move implements §4.6.2: requires OWNER access at the source, the target
// must not already be registered. The ChannelReg is transferred in-place
// under the new name — no user or ban record is rewritten.
func (cs *ChanServ) Move(source, target string, actorHandle string) error {
	reg, ok := cs.channels.Get(source)
	if !ok {
		return ErrNotRegistered
	}
	u, ok := reg.Users.Get(actorHandle)
	if !ok || u.Access < AccessOwner {
		return ErrNotOwner
	}
	if _, exists := cs.channels.Get(target); exists {
		return ErrTargetExists
	}
	cs.channels.Delete(source)
	reg.Name = target
	cs.channels.Set(target, reg)
	cs.rescanOnline(reg)
	return nil
}

// Merge implements §4.6.2: source is deregistered, target is augmented.
// Colliding accounts keep the higher access (ties: later-seen wins).
// Colliding bans keep the broader mask, carrying the later
// expiry/triggered timestamp.
func (cs *ChanServ) Merge(source, target string, actorHandle string) error {
	src, ok := cs.channels.Get(source)
	if !ok {
		return ErrNotRegistered
	}
	dst, ok := cs.channels.Get(target)
	if !ok {
		return ErrNotRegistered
	}
	u, ok := src.Users.Get(actorHandle)
	if !ok || u.Access < AccessOwner {
		return ErrNotOwner
	}

	src.Users.Iterate(func(name string, su *UserReg) bool {
		if existing, ok := dst.Users.Get(name); ok {
			if su.Access > existing.Access ||
				(su.Access == existing.Access && su.LastSeen.After(existing.LastSeen)) {
				existing.Access = su.Access
				existing.LastSeen = su.LastSeen
				existing.Info = su.Info
				existing.Flags = su.Flags
			}
		} else {
			moved := &UserReg{Channel: dst, Handle: su.Handle, Access: su.Access, LastSeen: su.LastSeen, Info: su.Info, Flags: su.Flags}
			dst.Users.Set(name, moved)
			cs.removeHandleLink(su)
			cs.addHandleLink(moved)
		}
		return true
	})

	for _, sb := range src.Bans {
		mergeBanInto(cs, dst, sb)
	}

	cs.destroyChannel(src)
	return nil
}

// mergeBanInto adds/coalesces sb into dst per the same rule add_channel_ban
// uses (§4.6.5), so a merge produces exactly the bans a fresh add sequence
// would.
func mergeBanInto(cs *ChanServ, dst *ChannelReg, sb *BanReg) {
	triggered := sb.Triggered
	for _, b := range dst.Bans {
		if (b.Mask == sb.Mask || MaskSubsumes(sb.Mask, b.Mask)) && b.Triggered.After(triggered) {
			triggered = b.Triggered
		}
	}
	cs.AddBan(dst, AddBanOptions{
		Mask:    sb.Mask,
		Owner:   sb.Owner,
		Reason:  sb.Reason,
		Expires: sb.Expires,
	})
	for _, b := range dst.Bans {
		if b.Mask == sb.Mask || MaskSubsumes(b.Mask, sb.Mask) {
			if triggered.After(b.Triggered) {
				b.Triggered = triggered
			}
			break
		}
	}
}

