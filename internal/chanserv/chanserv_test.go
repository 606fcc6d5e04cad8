package chanserv

import (
	"testing"
	"time"

	"ircservd/internal/account"
	"ircservd/internal/config"
	"ircservd/internal/timerqueue"
)

func newTestChanServ(t *testing.T, now time.Time) (*ChanServ, *account.MemoryStore) {
	t.Helper()
	store := account.NewMemoryStore()
	cfg := config.New()
	clock := now
	cs := New(cfg, store, timerqueue.New(), func() time.Time { return clock })
	return cs, store
}

func mustHandle(t *testing.T, store *account.MemoryStore, name string) *account.Handle {
	t.Helper()
	h, err := store.Register(name, "hunter2")
	if err != nil {
		t.Fatalf("Register(%s): %v", name, err)
	}
	return h
}

// Scenario 1: register+op.
func TestRegisterScenario(t *testing.T) {
	cs, store := newTestChanServ(t, time.Unix(1_700_000_000, 0))
	alice := mustHandle(t, store, "Alice")

	reg, err := cs.Register(RegisterOptions{Channel: "#chan", Handle: alice})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	u, ok := reg.Users.Get("Alice")
	if !ok || u.Access != AccessOwner {
		t.Fatalf("expected Alice at AccessOwner, got %+v ok=%v", u, ok)
	}
	if reg.Flags&ChanOffChannel == 0 || reg.Flags&ChanUnreviewed == 0 {
		t.Fatalf("expected OFFCHANNEL|UNREVIEWED flags, got %v", reg.Flags)
	}
	if cs.OwnedChannelCount("Alice") != 1 {
		t.Fatalf("expected owned count 1, got %d", cs.OwnedChannelCount("Alice"))
	}

	if _, err := cs.Register(RegisterOptions{Channel: "#chan", Handle: alice}); err != ErrAlreadyRegistered {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

// Property: U ∈ U.channel.users ∧ U ∈ U.handle.channels; removing U removes
// both in one step.
func TestUserRegDualListInvariant(t *testing.T) {
	cs, store := newTestChanServ(t, time.Unix(1_700_000_000, 0))
	alice := mustHandle(t, store, "Alice")
	reg, err := cs.Register(RegisterOptions{Channel: "#chan", Handle: alice})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	u, _ := reg.Users.Get("Alice")
	found := false
	for _, v := range cs.handleChannels["alice"] {
		if v == u {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected Alice's UserReg in handleChannels")
	}

	if err := cs.Unregister("#chan", "Alice", ConfirmationToken("Alice", "#chan")); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if _, ok := cs.Channel("#chan"); ok {
		t.Fatalf("expected channel removed")
	}
	if len(cs.handleChannels["alice"]) != 0 {
		t.Fatalf("expected handleChannels entry cleared, got %v", cs.handleChannels["alice"])
	}
}

// Scenario 6: confirmation token round trip.
func TestUnregisterConfirmationScenario(t *testing.T) {
	cs, store := newTestChanServ(t, time.Unix(1_700_000_000, 0))
	alice := mustHandle(t, store, "Alice")
	if _, err := cs.Register(RegisterOptions{Channel: "#foo", Handle: alice}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := cs.Unregister("#foo", "Alice", ""); err != ErrConfirmRequired {
		t.Fatalf("expected ErrConfirmRequired, got %v", err)
	}
	if err := cs.Unregister("#foo", "Alice", "deadbeef"); err != ErrBadConfirm {
		t.Fatalf("expected ErrBadConfirm, got %v", err)
	}

	token := ConfirmationToken("Alice", "#foo")
	if len(token) != 8 {
		t.Fatalf("expected 8 hex digit token, got %q", token)
	}
	if err := cs.Unregister("#foo", "Alice", token); err != nil {
		t.Fatalf("Unregister with correct token: %v", err)
	}
	if _, ok := cs.Channel("#foo"); ok {
		t.Fatalf("expected #foo removed")
	}
}

// Scenario 2/3: ban add, auto-trigger, redundant-ban coalescing.
func TestBanEngineScenarios(t *testing.T) {
	cs, store := newTestChanServ(t, time.Unix(1_700_000_000, 0))
	alice := mustHandle(t, store, "Alice")
	reg, err := cs.Register(RegisterOptions{Channel: "#foo", Handle: alice})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	expires := cs.Now().Add(time.Hour)
	if err := cs.AddBan(reg, AddBanOptions{Mask: "*!*@evil.example", Owner: "Alice", Reason: "they spam", Expires: expires}); err != nil {
		t.Fatalf("AddBan: %v", err)
	}
	if cs.Timers.Next() != expires {
		t.Fatalf("expected timer scheduled at %v, got %v", expires, cs.Timers.Next())
	}

	d := cs.EvaluateJoin(reg, JoinOptions{Hostmask: "bad!~x@evil.example"})
	if !d.Kick || d.MatchedBan == nil || d.MatchedBan.Mask != "*!*@evil.example" {
		t.Fatalf("expected join kicked by matching ban, got %+v", d)
	}
	if d.MatchedBan.Triggered.IsZero() {
		t.Fatalf("expected Triggered stamped by TriggerBan")
	}

	// Scenario 3: redundant-ban coalescing.
	reg2, _ := cs.Register(RegisterOptions{Channel: "#bar", Handle: alice})
	narrow := cs.Now().Add(30 * time.Minute)
	if err := cs.AddBan(reg2, AddBanOptions{Mask: "*!*@a.b", Owner: "Alice", Expires: narrow}); err != nil {
		t.Fatalf("AddBan narrow: %v", err)
	}
	if err := cs.AddBan(reg2, AddBanOptions{Mask: "*!*@*.b", Owner: "Alice"}); err != nil {
		t.Fatalf("AddBan broad: %v", err)
	}
	if len(reg2.Bans) != 1 {
		t.Fatalf("expected narrower ban removed, got %d bans: %+v", len(reg2.Bans), reg2.Bans)
	}
	if reg2.Bans[0].Mask != "*!*@*.b" || !reg2.Bans[0].Expires.IsZero() {
		t.Fatalf("expected broad permanent ban to remain, got %+v", reg2.Bans[0])
	}

	// Reverse order: a broader ban already present, then a narrower one
	// that it subsumes is added. The existing broader ban's reason/expiry
	// is updated in place rather than appending a second, redundant record
	// (§3.4: "on add of a mask subsumed by an existing one, the existing
	// one's reason/expiry is updated in place").
	reg3, _ := cs.Register(RegisterOptions{Channel: "#baz", Handle: alice})
	if err := cs.AddBan(reg3, AddBanOptions{Mask: "*!*@*.c", Owner: "Alice", Reason: "first"}); err != nil {
		t.Fatalf("AddBan broad: %v", err)
	}
	laterExpiry := cs.Now().Add(time.Hour)
	if err := cs.AddBan(reg3, AddBanOptions{Mask: "*!*@x.c", Owner: "Alice", Reason: "second", Expires: laterExpiry}); err != nil {
		t.Fatalf("AddBan narrow: %v", err)
	}
	if len(reg3.Bans) != 1 {
		t.Fatalf("expected narrower add to coalesce into the existing broader ban, got %d bans: %+v", len(reg3.Bans), reg3.Bans)
	}
	if reg3.Bans[0].Mask != "*!*@*.c" {
		t.Fatalf("expected surviving ban to keep the broader mask, got %+v", reg3.Bans[0])
	}
	if reg3.Bans[0].Reason != "second" {
		t.Fatalf("expected reason updated in place, got %+v", reg3.Bans[0])
	}
	if reg3.Bans[0].Expires != laterExpiry {
		t.Fatalf("expected expiry extended to %v, got %+v", laterExpiry, reg3.Bans[0])
	}
}

// Property: for every BanReg with Expires set, a timer entry exists at that
// deadline calling the ban-expire handler with that BanReg.
func TestBanExpiryTimerInvariant(t *testing.T) {
	cs, store := newTestChanServ(t, time.Unix(1_700_000_000, 0))
	alice := mustHandle(t, store, "Alice")
	reg, _ := cs.Register(RegisterOptions{Channel: "#foo", Handle: alice})

	expires := cs.Now().Add(2 * time.Hour)
	if err := cs.AddBan(reg, AddBanOptions{Mask: "*!*@bad.example", Expires: expires}); err != nil {
		t.Fatalf("AddBan: %v", err)
	}
	if got := cs.Timers.Size(); got != 1 {
		t.Fatalf("expected exactly one scheduled timer, got %d", got)
	}

	future := expires.Add(time.Second)
	cs.Timers.Run(future)
	if len(reg.Bans) != 0 {
		t.Fatalf("expected ban expired and removed, got %+v", reg.Bans)
	}
}

// Scenario 5: protected deop bounce.
func TestProtectedDeopBounce(t *testing.T) {
	cs, store := newTestChanServ(t, time.Unix(1_700_000_000, 0))
	alice := mustHandle(t, store, "Alice")
	reg, _ := cs.Register(RegisterOptions{Channel: "#foo", Handle: alice})
	bob := mustHandle(t, store, "Bob")
	if _, err := cs.AddUser(UserOp{Reg: reg, ActorHandle: "Alice", ActorAccess: AccessOwner, TargetHandle: "Bob", Staff: true}, bob, AccessOwner); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	accessOf := func(h string) int {
		u, ok := reg.Users.Get(h)
		if !ok {
			return 0
		}
		return u.Access
	}
	req := ModeChangeRequest{
		ActorAccess: AccessOwner,
		ActorIsUser: true,
		Added:       map[byte]string{},
		Removed:     map[byte]string{},
		DeopTargets: []string{"Bob"},
		AccessOf:    accessOf,
	}
	d := cs.EvaluateModeChange(reg, req, ModeLock{}, ProtectEqual)
	if len(d.RevertDeops) != 1 || d.RevertDeops[0] != "Bob" {
		t.Fatalf("expected Bob's deop reverted, got %+v", d)
	}
	if !d.RevertActorOp {
		t.Fatalf("expected the deopper (Alice) to also lose ops in the bounce")
	}
}

// §4.6.7's "locked key/limit being overridden" bounce case: a mode that is
// already locked on with a fixed parameter (e.g. +k with a stored key) must
// bounce when a non-EnfModes actor changes it to a different parameter,
// even though the mode's membership (on/off) doesn't change.
func TestModeLockParameterOverrideBounced(t *testing.T) {
	cs, store := newTestChanServ(t, time.Unix(1_700_000_000, 0))
	alice := mustHandle(t, store, "Alice")
	reg, _ := cs.Register(RegisterOptions{Channel: "#foo", Handle: alice})
	reg.Levels[LevelEnfModes] = 200

	req := ModeChangeRequest{
		ActorAccess: 1,
		ActorIsUser: true,
		Added:       map[byte]string{'k': "newkey"},
		Removed:     map[byte]string{},
		AccessOf:    func(string) int { return 0 },
	}
	lock := ModeLock{Set: map[byte]string{'k': "lockedkey"}}
	d := cs.EvaluateModeChange(reg, req, lock, ProtectNone)
	if len(d.BounceSet) != 1 || d.BounceSet[0] != 'k' {
		t.Fatalf("expected locked key override bounced, got %+v", d)
	}

	// The same parameter as the lock is not an override and is not bounced.
	req.Added = map[byte]string{'k': "lockedkey"}
	d = cs.EvaluateModeChange(reg, req, lock, ProtectNone)
	if len(d.BounceSet) != 0 {
		t.Fatalf("expected no bounce when the parameter matches the lock, got %+v", d)
	}

	// An actor with EnfModes access is exempt.
	req.Added = map[byte]string{'k': "newkey"}
	req.ActorAccess = reg.Levels[LevelEnfModes]
	d = cs.EvaluateModeChange(reg, req, lock, ProtectNone)
	if len(d.BounceSet) != 0 {
		t.Fatalf("expected EnfModes actor exempt from the bounce, got %+v", d)
	}
}

// Scenario 4 is covered in internal/modcmd's alias dispatch test; ChanServ's
// adduser is exercised directly here as the command the alias resolves to.
func TestAddUserRankOrdering(t *testing.T) {
	cs, store := newTestChanServ(t, time.Unix(1_700_000_000, 0))
	alice := mustHandle(t, store, "Alice")
	reg, _ := cs.Register(RegisterOptions{Channel: "#foo", Handle: alice})
	bob := mustHandle(t, store, "Bob")

	if _, err := cs.AddUser(UserOp{Reg: reg, ActorHandle: "Alice", ActorAccess: AccessOwner, TargetHandle: "Bob"}, bob, AccessOwner); err != ErrAccessTooHigh {
		t.Fatalf("expected ErrAccessTooHigh adding a peer at the actor's own level, got %v", err)
	}

	u, err := cs.AddUser(UserOp{Reg: reg, ActorHandle: "Alice", ActorAccess: AccessOwner, TargetHandle: "Bob"}, bob, AccessOwner-1)
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if u.Access != AccessOwner-1 {
		t.Fatalf("expected Bob at %d, got %d", AccessOwner-1, u.Access)
	}
}

// Property: channel expiry sweep keeps a channel present unless it is both
// stale and unattended.
func TestChannelExpirySweep(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	cs, store := newTestChanServ(t, start)
	alice := mustHandle(t, store, "Alice")
	reg, _ := cs.Register(RegisterOptions{Channel: "#stale", Handle: alice})
	reg.Visited = start

	// Still within the delay window: survives.
	expired := cs.SweepExpiredChannels()
	if len(expired) != 0 {
		t.Fatalf("expected no expiry yet, got %v", expired)
	}

	// Jump past channel_expire_delay with no present owner.
	future := start.Add(cs.tunables.ChannelExpireDelay + time.Hour)
	cs2, _ := newTestChanServ(t, future)
	cs2.tunables = cs.tunables
	cs2.channels.Set(reg.Name, reg)
	expired = cs2.SweepExpiredChannels()
	if len(expired) != 1 || expired[0] != "#stale" {
		t.Fatalf("expected #stale expired, got %v", expired)
	}

	// A present owner at or above AccessPresent keeps it alive.
	reg2, _ := cs.Register(RegisterOptions{Channel: "#active", Handle: alice})
	reg2.Visited = start
	u, _ := reg2.Users.Get("Alice")
	u.Present = true
	cs3, _ := newTestChanServ(t, future)
	cs3.tunables = cs.tunables
	cs3.channels.Set(reg2.Name, reg2)
	expired = cs3.SweepExpiredChannels()
	if len(expired) != 0 {
		t.Fatalf("expected #active to survive expiry with a present owner, got %v", expired)
	}
}

func TestDNRBlocksExactWildcardAndHandle(t *testing.T) {
	cs, store := newTestChanServ(t, time.Unix(1_700_000_000, 0))
	alice := mustHandle(t, store, "Alice")

	cs.NoRegister("#bad", "Staff", "spam magnet", 0)
	if !cs.DNRBlocks("#bad", "Alice") {
		t.Fatalf("expected exact DNR to block")
	}
	if cs.DNRBlocks("#good", "Alice") {
		t.Fatalf("unexpected block for unrelated channel")
	}

	cs.NoRegister("#evil-*", "Staff", "pattern", 0)
	if !cs.DNRBlocks("#evil-test", "Alice") {
		t.Fatalf("expected wildcard DNR to block")
	}

	cs.NoRegister("*Alice", "Staff", "handle ban", 0)
	if !cs.DNRBlocks("#whatever", "Alice") {
		t.Fatalf("expected handle DNR to block")
	}

	_, err := cs.Register(RegisterOptions{Channel: "#bad", Handle: alice})
	if err != ErrBlockedByDNR {
		t.Fatalf("expected ErrBlockedByDNR, got %v", err)
	}
	_, err = cs.Register(RegisterOptions{Channel: "#bad", Handle: alice, Force: true})
	if err != nil {
		t.Fatalf("expected Force to bypass DNR, got %v", err)
	}
}

// Scenario: csuspend/cunsuspend lifecycle (§4.6.8) — suspending clears every
// user's Present bit, a duration arms an expiry timer, and both manual
// cunsuspend and timer-driven expiry rescan membership from OnlineLookup.
func TestSuspensionLifecycle(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	cs, store := newTestChanServ(t, start)
	alice := mustHandle(t, store, "Alice")
	reg, _ := cs.Register(RegisterOptions{Channel: "#foo", Handle: alice})
	u, _ := reg.Users.Get("Alice")
	u.Present = true

	cs.OnlineLookup = func(channel string) map[string]bool {
		if channel == "#foo" {
			return map[string]bool{"Alice": true}
		}
		return nil
	}

	duration := 30 * time.Minute
	s := cs.Csuspend(reg, "Staff", "policy violation", duration)
	if reg.Flags&ChanSuspended == 0 {
		t.Fatalf("expected SUSPENDED flag set")
	}
	if u.Present {
		t.Fatalf("expected Csuspend to mark every user not present")
	}
	if s.Expires.IsZero() || cs.Timers.Size() != 1 {
		t.Fatalf("expected a timer armed for the duration-limited suspension, got expires=%v timers=%d", s.Expires, cs.Timers.Size())
	}

	if err := cs.Cunsuspend(reg); err != nil {
		t.Fatalf("Cunsuspend: %v", err)
	}
	if reg.Flags&ChanSuspended != 0 {
		t.Fatalf("expected SUSPENDED flag cleared by Cunsuspend")
	}
	if !u.Present {
		t.Fatalf("expected Cunsuspend to rescan membership and restore Alice's Present bit")
	}
	if cs.Timers.Size() != 0 {
		t.Fatalf("expected Cunsuspend to cancel the pending expiry timer, got %d", cs.Timers.Size())
	}
	if err := cs.Cunsuspend(reg); err != ErrNotSuspended {
		t.Fatalf("expected ErrNotSuspended on a second call, got %v", err)
	}

	// Timer-driven expiry also rescans.
	u.Present = true
	s2 := cs.Csuspend(reg, "Staff", "again", duration)
	if u.Present {
		t.Fatalf("expected second Csuspend to clear Present again")
	}
	cs.expireSuspension(s2)
	if reg.Flags&ChanSuspended != 0 {
		t.Fatalf("expected expireSuspension to clear SUSPENDED")
	}
	if !u.Present {
		t.Fatalf("expected expireSuspension to rescan membership and restore Present")
	}
}

func TestDNRLazyExpiry(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	cs, _ := newTestChanServ(t, start)
	cs.NoRegister("#temp", "Staff", "short", time.Minute)
	if !cs.DNRBlocks("#temp", "Alice") {
		t.Fatalf("expected live DNR to block")
	}

	future := start.Add(2 * time.Minute)
	cs2, _ := newTestChanServ(t, future)
	cs2.dnrExact = cs.dnrExact
	if cs2.DNRBlocks("#temp", "Alice") {
		t.Fatalf("expected expired DNR to no longer block")
	}
	if _, ok := cs2.dnrExact.Get("#temp"); ok {
		t.Fatalf("expected lazy expiry to remove the expired entry")
	}
}
