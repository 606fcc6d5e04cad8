package chanserv

import "ircservd/internal/casefold"

// MatchGlob reports whether s matches pattern under IRC glob rules: '*'
// matches any run of characters (including none), '?' matches exactly one.
// Comparison is case-folded (§3's "All string comparison uses case-folded
// IRC casemapping"), used for hostmask bans (§4.6.5/4.6.6) and handle-glob
// bulk operations like mdel<level> (§4.6.3).
func MatchGlob(pattern, s string) bool {
	p := []rune(casefold.Fold(pattern, casefold.RFC1459))
	t := []rune(casefold.Fold(s, casefold.RFC1459))
	return matchGlob(p, t)
}

func matchGlob(p, t []rune) bool {
	if len(p) == 0 {
		return len(t) == 0
	}
	if p[0] == '*' {
		// Collapse consecutive '*' to keep the recursion shallow.
		for len(p) > 0 && p[0] == '*' {
			p = p[1:]
		}
		if len(p) == 0 {
			return true
		}
		for i := 0; i <= len(t); i++ {
			if matchGlob(p, t[i:]) {
				return true
			}
		}
		return false
	}
	if len(t) == 0 {
		return false
	}
	if p[0] == '?' || p[0] == t[0] {
		return matchGlob(p[1:], t[1:])
	}
	return false
}

// MaskSubsumes reports whether broader is a superset mask of narrower: every
// string narrower matches is also matched by broader, and the converse does
// not hold for at least trivially distinguishable masks. A conservative
// syntactic check suffices for §3.4's "broader mask" rule: broader subsumes
// narrower if replacing every run of concrete characters in narrower that
// corresponds to a '*' in broader still matches, which in practice for ban
// masks reduces to: broader's wildcarding is a superset, segment by
// segment. Implemented here as "narrower matches broader" — a mask that is
// matched by a more general pattern is the narrower one.
func MaskSubsumes(broader, narrower string) bool {
	if broader == narrower {
		return false
	}
	return MatchGlob(broader, narrower)
}
