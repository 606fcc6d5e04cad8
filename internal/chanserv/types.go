// Package chanserv implements the channel services state manager (§3.2-3.8,
// §4.6): registered channels, per-user channel access records, timed and
// permanent bans, do-not-register rules, note metadata, and channel
// suspensions, plus the policies governing operations over them.
//
// Per §9 "Global mutables", every process-wide collection the original
// source kept as file-scope globals (channelList, note_types, the three DNR
// maps, ban/user counts) is owned by a single *ChanServ value passed
// explicitly to every operation; the core stays single-threaded cooperative
// so no locking is added, only testability.
package chanserv

import (
	"time"

	"ircservd/internal/account"
	"ircservd/internal/casefold"
	"ircservd/internal/container"
)

// ChannelFlag is the bitfield on ChannelReg.Flags (§3.2).
type ChannelFlag uint32

const (
	ChanNoDelete ChannelFlag = 1 << iota
	ChanSuspended
	ChanDynamicLimit
	ChanOffChannel
	ChanUnreviewed
)

// UserFlag is the bitfield on UserReg.Flags (§3.3).
type UserFlag uint32

const (
	UserAutoOp UserFlag = 1 << iota
	UserSuspended
	UserAutoInvite
)

// Access levels (§3.3, §4.6).
const (
	AccessMin     = 1
	AccessOwner   = 500
	AccessHelper  = 600 // transient helper record, not persisted
	AccessPresent = 300 // §4.6.10 channel-expiry presence threshold
)

// Protect is the channel's deop-protection policy (§4.6.7).
type Protect byte

const (
	ProtectNone   Protect = 'n'
	ProtectGreater Protect = 'l'
	ProtectEqual  Protect = 'e'
	ProtectAll    Protect = 'a'
)

// LevelOption names the 11 numeric level options (§3.2) gating specific
// actions; each holds the minimum channel access required to perform it.
type LevelOption int

const (
	LevelSetTopic LevelOption = iota
	LevelEnfModes
	LevelEnfTopic
	LevelPubCmd
	LevelSetters // setter itself, e.g. minimum to use "set"
	LevelCTCP
	LevelBan
	LevelUnban
	LevelInvite
	LevelGiveVoice
	LevelGiveOps
	numLevelOptions
)

// CharOption names the 4 multiple-choice character options (§3.2), e.g.
// Protect above.
type CharOption int

const (
	CharProtect CharOption = iota
	CharToys
	CharTopicRefresh
	CharCtcpReaction
	numCharOptions
)

// ChannelReg is the persistent registration record for one channel (§3.2).
type ChannelReg struct {
	Name           string
	Registered     time.Time
	Visited        time.Time
	OwnerTransfer  time.Time
	Flags          ChannelFlag
	Topic          string
	TopicMask      string
	Greeting       string
	UserGreeting   string
	DefaultModes   string
	Registrar      string
	MaxUsers       int
	MaxBans        int
	Levels         [numLevelOptions]int
	Chars          [numCharOptions]byte
	PeakUserCount  int
	LastRefresh    int

	Users     *container.OrderedMap[*UserReg] // keyed by account handle name
	Bans      []*BanReg                        // head = most recently triggered (LRU)
	Notes     map[string]*Note                 // keyed by note type name
	Suspended *Suspension                      // most recent; nil if never suspended
}

// NewChannelReg creates an empty registration for name with the given
// default modes, OFFCHANNEL+UNREVIEWED flags set per §4.6.1.
func NewChannelReg(name string, defaultModes string) *ChannelReg {
	return &ChannelReg{
		Name:         name,
		DefaultModes: defaultModes,
		Flags:        ChanOffChannel | ChanUnreviewed,
		Users:        container.NewOrderedMap[*UserReg](casefold.RFC1459),
		Notes:        make(map[string]*Note),
	}
}

// IsSuspendedNow reports the logical OR described in §3.5: the most recent
// suspension exists and is neither expired nor revoked.
func (c *ChannelReg) IsSuspendedNow(now time.Time) bool {
	return c.Suspended != nil && c.Suspended.ActiveAt(now)
}

// UserReg binds an account handle to a ChannelReg with a numeric access
// level (§3.3).
type UserReg struct {
	Channel  *ChannelReg
	Handle   *account.Handle
	Access   int
	LastSeen time.Time
	Info     string
	Flags    UserFlag
	Present  bool
}

// BanReg is one hostmask ban attached to a channel (§3.4).
type BanReg struct {
	Mask      string
	Owner     string
	Reason    string
	Set       time.Time
	Triggered time.Time
	Expires   time.Time // zero means permanent

	channel *ChannelReg // back-reference so an expiry timer can find its owning Bans slice
}

// Suspension is one node of a channel's suspension history (§3.5).
type Suspension struct {
	Channel   *ChannelReg
	Suspender string
	Reason    string
	Issued    time.Time
	Expires   time.Time // zero means indefinite
	Revoked   time.Time // zero means not revoked
	Previous  *Suspension
}

// ActiveAt reports whether this suspension is in force at t: issued, not
// revoked, and (if it has an expiry) not yet expired.
func (s *Suspension) ActiveAt(t time.Time) bool {
	if s == nil {
		return false
	}
	if !s.Revoked.IsZero() && !t.Before(s.Revoked) {
		return false
	}
	if !s.Expires.IsZero() && !t.Before(s.Expires) {
		return false
	}
	return true
}

// NoteType is a process-wide registration governing notes of one name
// (§3.7).
type NoteType struct {
	Name         string
	SetAccess    NoteAccess
	Visibility   NoteVisibility
	MaxLength    int
	RefCount     int
}

// NoteAccess classifies who may set a note of a given type.
type NoteAccess int

const (
	NoteAccessChannelAccess NoteAccess = iota
	NoteAccessChannelSetter
	NoteAccessPrivileged
)

// NoteVisibility classifies who may read a note of a given type.
type NoteVisibility int

const (
	NoteVisibilityAll NoteVisibility = iota
	NoteVisibilityChannelUsers
	NoteVisibilityPrivileged
)

// Note is one channel's note of a given type (§3.7).
type Note struct {
	Type   string
	Setter string
	Text   string
}

// DNR is a do-not-register rule (§3.6): blocks registering the named
// channel, a wildcard channel pattern, or (leading "*") a handle.
type DNR struct {
	Target  string
	Setter  string
	Set     time.Time
	Expires time.Time // zero means permanent
	Reason  string
}

func (d *DNR) expiredAt(t time.Time) bool {
	return !d.Expires.IsZero() && !t.Before(d.Expires)
}
