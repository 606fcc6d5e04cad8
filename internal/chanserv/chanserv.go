package chanserv

import (
	"time"

	"ircservd/internal/account"
	"ircservd/internal/casefold"
	"ircservd/internal/config"
	"ircservd/internal/container"
	"ircservd/internal/timerqueue"
)

// ChanServ owns every process-wide collection the original source kept as
// file-scope globals: the channel list, the note-type registry, the three
// DNR maps, and the per-handle reverse index of channel access records
// (§9 "Global mutables"). A single value is constructed at startup and
// threaded explicitly through every operation and hook handler.
type ChanServ struct {
	Config  *config.Config
	Store   account.Store
	Timers  *timerqueue.Queue
	Now     func() time.Time

	channels       *container.OrderedMap[*ChannelReg]
	noteTypes      map[string]*NoteType
	dnrExact       *container.OrderedMap[*DNR]
	dnrWildcard    *container.OrderedMap[*DNR]
	dnrHandle      *container.OrderedMap[*DNR]
	handleChannels map[string][]*UserReg // account name -> access records, the account-side half of §3.3's two lists

	// OnlineLookup, if set, returns the set of handle names currently
	// authenticated and joined to the named channel. It is the abstract
	// membership source Move (§4.6.2) and suspension expiry (§4.6.8) use to
	// rescan Present; the protocol layer that actually tracks live
	// connections (out of scope per §1) is expected to set this at startup.
	// A nil lookup (e.g. in tests) rescans against an empty online set.
	OnlineLookup func(channel string) map[string]bool

	banCount int
	tunables Tunables
}

// Tunables mirrors the services/chanserv/* config surface (§6.4): backup
// frequency, expiry intervals, and the numeric limits operations enforce.
// Values are read once at startup via LoadTunables; a config reload
// re-populates the same struct in place.
type Tunables struct {
	ChannelExpireDelay   time.Duration
	ChannelExpireFreq    time.Duration
	DNRExpireFreq        time.Duration
	GreetingLengthCap    int
	InfoDelay            time.Duration
	AdjustThreshold      int
	AdjustDelay          time.Duration
	NoDeleteLevel        int
	MaxUsers             int
	MaxBans              int
	MaxUserInfoLength    int
	RefreshPeriod        time.Duration
	GiveOwnershipPeriod  time.Duration
	MaxOwned             int
	SupportChannels      []string
	OldBanNameSuffixes   []string
}

// LoadTunables populates t from cfg's services/chanserv section, applying
// the same defaults srvx ships (§6.4 names the keys; defaults are this
// implementation's choice since the spec does not fix numeric defaults).
func LoadTunables(cfg *config.Config) Tunables {
	sec := cfg.Section("services/chanserv")
	get := func(key string, def time.Duration) time.Duration {
		if sec == nil {
			return def
		}
		return sec.GetDuration(key, def)
	}
	geti := func(key string, def int) int {
		if sec == nil {
			return def
		}
		return sec.GetInt(key, def)
	}
	getl := func(key string) []string {
		if sec == nil {
			return nil
		}
		return sec.GetStringList(key)
	}
	return Tunables{
		ChannelExpireDelay:  get("channel_expire_delay", 90*24*time.Hour),
		ChannelExpireFreq:   get("channel_expire_frequency", 24*time.Hour),
		DNRExpireFreq:       get("dnr_expire_frequency", time.Hour),
		GreetingLengthCap:   geti("greeting_length", 200),
		InfoDelay:           get("info_delay", 3*time.Second),
		AdjustThreshold:     geti("adjust_threshold", 3),
		AdjustDelay:         get("adjust_delay", 30*time.Second),
		NoDeleteLevel:       geti("nodelete_level", 999),
		MaxUsers:            geti("max_userlist_length", 512),
		MaxBans:             geti("max_banlist_length", 256),
		MaxUserInfoLength:   geti("max_userinfo_length", 400),
		RefreshPeriod:       get("refresh_period", time.Hour),
		GiveOwnershipPeriod: get("giveownership_period", 30*24*time.Hour),
		MaxOwned:            geti("max_owned", 32),
		SupportChannels:     getl("support_channels"),
		OldBanNameSuffixes:  getl("old_ban_names"),
	}
}

// New creates an empty ChanServ. now defaults to time.Now if nil.
func New(cfg *config.Config, store account.Store, timers *timerqueue.Queue, now func() time.Time) *ChanServ {
	if now == nil {
		now = time.Now
	}
	return &ChanServ{
		Config:         cfg,
		Store:          store,
		Timers:         timers,
		Now:            now,
		channels:       container.NewOrderedMap[*ChannelReg](casefold.RFC1459),
		noteTypes:      make(map[string]*NoteType),
		dnrExact:       container.NewOrderedMap[*DNR](casefold.RFC1459),
		dnrWildcard:    container.NewOrderedMap[*DNR](casefold.RFC1459),
		dnrHandle:      container.NewOrderedMap[*DNR](casefold.RFC1459),
		handleChannels: make(map[string][]*UserReg),
		tunables:       LoadTunables(cfg),
	}
}

// ReloadTunables re-reads services/chanserv/* from cfg and replaces cs's
// tunables in place, the ChanServ half of a HUP-triggered config reload
// (§6.1: "reload config... next loop iteration").
func (cs *ChanServ) ReloadTunables(cfg *config.Config) {
	cs.Config = cfg
	cs.tunables = LoadTunables(cfg)
}

// rescanOnline calls RescanPresent against whatever OnlineLookup reports for
// reg, or an empty membership set if no lookup is wired.
func (cs *ChanServ) rescanOnline(reg *ChannelReg) {
	var online map[string]bool
	if cs.OnlineLookup != nil {
		online = cs.OnlineLookup(reg.Name)
	}
	cs.RescanPresent(reg, online)
}

// Channel looks up a registration by name.
func (cs *ChanServ) Channel(name string) (*ChannelReg, bool) {
	return cs.channels.Get(name)
}

// Channels returns every registered channel, insertion order.
func (cs *ChanServ) Channels() []*ChannelReg {
	out := make([]*ChannelReg, 0, cs.channels.Len())
	cs.channels.Iterate(func(_ string, c *ChannelReg) bool {
		out = append(out, c)
		return true
	})
	return out
}

// OwnedChannelCount counts channels where handle holds an OWNER-level
// access record, used by register's max_owned check (§4.6.1).
func (cs *ChanServ) OwnedChannelCount(handleName string) int {
	n := 0
	for _, u := range cs.handleChannels[casefold.Fold(handleName, casefold.RFC1459)] {
		if u.Access >= AccessOwner {
			n++
		}
	}
	return n
}

func (cs *ChanServ) addHandleLink(u *UserReg) {
	key := casefold.Fold(u.Handle.Name, casefold.RFC1459)
	cs.handleChannels[key] = append(cs.handleChannels[key], u)
}

func (cs *ChanServ) removeHandleLink(u *UserReg) {
	key := casefold.Fold(u.Handle.Name, casefold.RFC1459)
	list := cs.handleChannels[key]
	for i, v := range list {
		if v == u {
			list[i] = list[len(list)-1]
			cs.handleChannels[key] = list[:len(list)-1]
			break
		}
	}
	if len(cs.handleChannels[key]) == 0 {
		delete(cs.handleChannels, key)
	}
}
