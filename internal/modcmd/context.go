package modcmd

import "ircservd/internal/account"

// Actor is the caller of a command: the connected client plus, if they have
// authenticated, their account handle (§3.1).
type Actor struct {
	Nick     string
	Hostmask string
	Handle   *account.Handle
}

// Authed reports whether the actor is associated with an account.
func (a *Actor) Authed() bool { return a != nil && a.Handle != nil }

// OperLevel returns the actor's oper access level, 0 if unauthenticated.
func (a *Actor) OperLevel() int {
	if !a.Authed() {
		return 0
	}
	return a.Handle.OperLevel
}

// HasAcctFlags reports whether the actor's account has every bit of want set.
func (a *Actor) HasAcctFlags(want account.Flag) bool {
	if !a.Authed() {
		return want == 0
	}
	return a.Handle.Flags&want == want
}

// ChannelState is the abstraction modcmd consults for channel-context gates
// (§4.5.1's REQUIRE_CHANNEL/REQUIRE_REGCHAN/REQUIRE_CHANUSER/
// REQUIRE_JOINABLE and TOY). chanserv's ChannelView implements this; modcmd
// itself never touches chanserv's types, keeping the dispatch framework
// reusable for non-ChanServ services (§1 frames modcmd as a generic layer).
type ChannelState interface {
	Name() string
	Registered() bool
	Suspended() bool
	Joinable() bool
	ToysEnabled() bool
	// AccessLevel returns the channel access level for the handle (0 if the
	// handle has no access record in this channel).
	AccessLevel(handleName string) int
}

// Context carries everything a single dispatch needs: who's asking, through
// which service, in what (optional) channel, and how to reply.
type Context struct {
	Actor           *Actor
	Service         *Service
	Channel         ChannelState // nil outside channel context
	ServerQualified bool
	Reply           func(key string, args ...interface{})
}

func (c *Context) reply(key string, args ...interface{}) {
	if c.Reply != nil {
		c.Reply(key, args...)
	}
}
