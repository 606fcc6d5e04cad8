package modcmd

import "strings"

// joinerChildren returns, for a binding name that is a strict prefix of
// other bound names in svc (e.g. "set" -> "set defaults", "set topic"),
// the list of child subcommand suffixes (§4.5.5). A binding with no
// children is not a joiner.
func joinerChildren(svc *Service, name string) []string {
	prefix := name + " "
	var children []string
	for _, bound := range svc.Bindings() {
		if strings.HasPrefix(bound, prefix) && bound != name {
			children = append(children, strings.TrimPrefix(bound, prefix))
		}
	}
	return children
}

// resolveJoiner implements §4.5.5's dispatch rule for a name that resolves
// to a joiner binding: with argv continuing the command line, it
// re-dispatches to the concatenated name ("set X ..." -> "set X"); with no
// further argv it returns ok=false and the caller lists the children.
//
// cmdWord is the already-identified command word (argv[0] after channel
// extraction); rest is argv[1:]. If rest's first element, appended to
// cmdWord with a space, names a bound command, resolveJoiner returns that
// fully-joined name and the remaining argv; otherwise ok is false and the
// caller should list children.
func resolveJoiner(svc *Service, cmdWord string, rest []string) (joined string, remaining []string, ok bool) {
	if len(rest) == 0 {
		return "", nil, false
	}
	candidate := cmdWord + " " + rest[0]
	if _, found := svc.Lookup(candidate); found {
		return candidate, rest[1:], true
	}
	return "", nil, false
}
