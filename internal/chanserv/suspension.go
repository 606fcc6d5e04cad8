package chanserv

import (
	"errors"
	"time"

	"ircservd/internal/timerqueue"
)

var ErrNotSuspended = errors.New("chanserv: channel is not suspended")

// Csuspend implements csuspend (§4.6.8): links a new Suspension onto reg,
// optionally with an expiry (timer-scheduled), marks every user Present
// false, and returns the Suspension so the caller can part the bot and log
// the broadcast.
func (cs *ChanServ) Csuspend(reg *ChannelReg, suspender, reason string, duration time.Duration) *Suspension {
	now := cs.Now()
	s := &Suspension{
		Channel:   reg,
		Suspender: suspender,
		Reason:    reason,
		Issued:    now,
		Previous:  reg.Suspended,
	}
	if duration > 0 {
		s.Expires = now.Add(duration)
		cs.Timers.Add(s.Expires, cs.expireSuspension, s)
	}
	reg.Suspended = s
	reg.Flags |= ChanSuspended

	reg.Users.Iterate(func(_ string, u *UserReg) bool {
		u.Present = false
		return true
	})
	return s
}

// Cunsuspend implements cunsuspend (§4.6.8): immediately expires the active
// suspension.
func (cs *ChanServ) Cunsuspend(reg *ChannelReg) error {
	if !reg.IsSuspendedNow(cs.Now()) {
		return ErrNotSuspended
	}
	s := reg.Suspended
	s.Revoked = cs.Now()
	cs.Timers.Del(time.Time{}, nil, s, timerqueue.IgnoreWhen|timerqueue.IgnoreFunc)
	reg.Flags &^= ChanSuspended
	cs.rescanOnline(reg)
	return nil
}

// expireSuspension is the timer callback for a duration-limited suspension
// (§4.6.8's "on expiry, the service rejoins and re-scans member list").
func (cs *ChanServ) expireSuspension(data any) {
	s := data.(*Suspension)
	if s.Channel == nil || s.Channel.Suspended != s {
		return
	}
	s.Channel.Flags &^= ChanSuspended
	cs.rescanOnline(s.Channel)
}
