package chanserv

import (
	"errors"
	"time"

	"ircservd/internal/account"
	"ircservd/internal/logger"
)

var (
	ErrRankTooLow    = errors.New("chanserv: actor's access does not exceed affectee's")
	ErrAccessTooHigh = errors.New("chanserv: target access must be below actor's own")
	ErrNoSuchUser    = errors.New("chanserv: handle has no access record on this channel")
	ErrAlreadyAdded  = errors.New("chanserv: handle already has an access record on this channel")
)

// UserOp carries the actor/target pair every user-list mutation needs to
// check the two rank orderings from §4.6.3.
type UserOp struct {
	Reg          *ChannelReg
	ActorHandle  string
	ActorAccess  int
	TargetHandle string
	Staff        bool // bypasses both rank checks; logged at OVERRIDE severity
}

// checkRank enforces §4.6.3's two orderings: the actor's access must
// strictly exceed the affectee's current access, and newAccess must be
// strictly below the actor's own. Staff callers bypass both, but the caller
// is responsible for auditing at OVERRIDE severity (AddUser/ClVl/DelUser do
// this themselves).
func checkRank(op UserOp, existing *UserReg, newAccess int) error {
	if op.Staff {
		return nil
	}
	if existing != nil && op.ActorAccess <= existing.Access {
		return ErrRankTooLow
	}
	if newAccess >= op.ActorAccess {
		return ErrAccessTooHigh
	}
	return nil
}

// AddUser implements adduser (§4.6.3): creates a UserReg for op.TargetHandle
// at the given access, subject to the rank check (no existing record, so
// only the "below actor" half applies).
func (cs *ChanServ) AddUser(op UserOp, handle *account.Handle, access int) (*UserReg, error) {
	if _, exists := op.Reg.Users.Get(op.TargetHandle); exists {
		return nil, ErrAlreadyAdded
	}
	if err := checkRank(op, nil, access); err != nil {
		return nil, err
	}
	u := &UserReg{
		Channel:  op.Reg,
		Handle:   handle,
		Access:   access,
		LastSeen: cs.Now(),
	}
	op.Reg.Users.Set(op.TargetHandle, u)
	cs.addHandleLink(u)
	if op.Staff {
		logger.Auditf(logger.AuditOverride, "adduser %s %s %d by %s (staff override)", op.Reg.Name, op.TargetHandle, access, op.ActorHandle)
	}
	return u, nil
}

// ClVl implements clvl (§4.6.3): changes an existing UserReg's access,
// subject to both rank checks.
func (cs *ChanServ) ClVl(op UserOp, newAccess int) error {
	u, ok := op.Reg.Users.Get(op.TargetHandle)
	if !ok {
		return ErrNoSuchUser
	}
	if err := checkRank(op, u, newAccess); err != nil {
		return err
	}
	u.Access = newAccess
	if op.Staff {
		logger.Auditf(logger.AuditOverride, "clvl %s %s %d by %s (staff override)", op.Reg.Name, op.TargetHandle, newAccess, op.ActorHandle)
	}
	return nil
}

// DelUser implements deluser (§4.6.3).
func (cs *ChanServ) DelUser(op UserOp) error {
	u, ok := op.Reg.Users.Get(op.TargetHandle)
	if !ok {
		return ErrNoSuchUser
	}
	if err := checkRank(op, u, 0); err != nil {
		return err
	}
	op.Reg.Users.Delete(op.TargetHandle)
	cs.removeHandleLink(u)
	if op.Staff {
		logger.Auditf(logger.AuditOverride, "deluser %s %s by %s (staff override)", op.Reg.Name, op.TargetHandle, op.ActorHandle)
	}
	return nil
}

// MDelLevel implements mdel<level> (§4.6.3): bulk-removes every UserReg at
// exactly level whose handle matches the IRC-glob pattern. Returns the
// handles removed.
func (cs *ChanServ) MDelLevel(reg *ChannelReg, level int, pattern string) []string {
	var removed []string
	reg.Users.Iterate(func(name string, u *UserReg) bool {
		if u.Access == level && MatchGlob(pattern, name) {
			removed = append(removed, name)
		}
		return true
	})
	for _, name := range removed {
		if u, ok := reg.Users.Get(name); ok {
			reg.Users.Delete(name)
			cs.removeHandleLink(u)
		}
	}
	return removed
}

// Trim implements trim (§4.6.3): removes every UserReg whose LastSeen is
// older than olderThan, skipping FROZEN accounts unless includeFrozen is
// set. Returns the handles removed.
func (cs *ChanServ) Trim(reg *ChannelReg, olderThan time.Duration, isFrozen func(handle string) bool, includeFrozen bool) []string {
	cutoff := cs.Now().Add(-olderThan)
	var removed []string
	reg.Users.Iterate(func(name string, u *UserReg) bool {
		if u.LastSeen.After(cutoff) {
			return true
		}
		if !includeFrozen && isFrozen != nil && isFrozen(name) {
			return true
		}
		removed = append(removed, name)
		return true
	})
	for _, name := range removed {
		if u, ok := reg.Users.Get(name); ok {
			reg.Users.Delete(name)
			cs.removeHandleLink(u)
		}
	}
	return removed
}
