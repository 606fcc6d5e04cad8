package chanserv

import (
	"strings"
	"time"

	"ircservd/internal/container"
)

// dnrMap is the shape shared by the three DNR maps, each keyed differently
// (exact channel name, wildcard pattern, or "*handle").
type dnrMap = *container.OrderedMap[*DNR]

// NoRegister creates a DNR (§3.6, §4.6.9). A target beginning with "*" is a
// handle DNR (stored and looked up with its leading "*" kept, matching
// srvx's convention of distinguishing handle DNRs by prefix); a target
// containing glob characters is a wildcard channel-name
// pattern; otherwise it is an exact channel name.
func (cs *ChanServ) NoRegister(target, setter, reason string, duration time.Duration) {
	now := cs.Now()
	d := &DNR{Target: target, Setter: setter, Set: now, Reason: reason}
	if duration > 0 {
		d.Expires = now.Add(duration)
	}
	switch {
	case strings.HasPrefix(target, "*"):
		cs.dnrHandle.Set(target, d)
	case strings.ContainsAny(target, "*?"):
		cs.dnrWildcard.Set(target, d)
	default:
		cs.dnrExact.Set(target, d)
	}
}

// AllowRegister removes a DNR matching target exactly, from whichever map
// it was filed under (§4.6.9 "allowregister TARGET removes").
func (cs *ChanServ) AllowRegister(target string) bool {
	if strings.HasPrefix(target, "*") {
		return cs.dnrHandle.Delete(target)
	}
	if strings.ContainsAny(target, "*?") {
		return cs.dnrWildcard.Delete(target)
	}
	return cs.dnrExact.Delete(target)
}

// DNRBlocks reports whether registering channel for handle is blocked by
// any of the three DNR maps (§3.6). Expired entries encountered along the
// way are removed (lazy expiry, §4.6.9).
func (cs *ChanServ) DNRBlocks(channel, handle string) bool {
	now := cs.Now()

	if d, ok := cs.dnrExact.Get(channel); ok {
		if cs.expireOrKeep(cs.dnrExact, channel, d, now) {
			return true
		}
	}

	blocked := false
	cs.dnrWildcard.Iterate(func(pattern string, d *DNR) bool {
		if cs.expireDNR(cs.dnrWildcard, pattern, d, now) {
			return true // expired and removed, keep scanning
		}
		if MatchGlob(pattern, channel) {
			blocked = true
			return false
		}
		return true
	})
	if blocked {
		return true
	}

	handleKey := "*" + handle
	if d, ok := cs.dnrHandle.Get(handleKey); ok {
		if cs.expireOrKeep(cs.dnrHandle, handleKey, d, now) {
			return true
		}
	}
	return false
}

// expireOrKeep removes d from m if expired, returning false; otherwise
// returns true (the entry is live and therefore blocks).
func (cs *ChanServ) expireOrKeep(m dnrMap, key string, d *DNR, now time.Time) bool {
	if d.expiredAt(now) {
		m.Delete(key)
		return false
	}
	return true
}

// expireDNR removes d from m if expired, reporting whether it did so (used
// while iterating, where the caller still needs to continue the scan).
func (cs *ChanServ) expireDNR(m dnrMap, key string, d *DNR, now time.Time) bool {
	if d.expiredAt(now) {
		m.Delete(key)
		return true
	}
	return false
}

// SweepExpiredDNR removes every expired DNR across all three maps
// (§4.6.9's periodic dnr_expire_frequency sweep).
func (cs *ChanServ) SweepExpiredDNR() {
	now := cs.Now()
	for _, m := range []dnrMap{cs.dnrExact, cs.dnrWildcard, cs.dnrHandle} {
		var expired []string
		m.Iterate(func(key string, d *DNR) bool {
			if d.expiredAt(now) {
				expired = append(expired, key)
			}
			return true
		})
		for _, key := range expired {
			m.Delete(key)
		}
	}
}
