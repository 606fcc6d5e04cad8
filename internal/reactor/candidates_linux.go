//go:build linux

package reactor

// DefaultEngines returns the preference-ordered engine list for this
// platform: epoll first, falling back to the portable select emulation
// (§4.1: "Exactly one engine is selected at startup in preference order").
func DefaultEngines() []Engine {
	return []Engine{NewEpollEngine(), NewSelectEngine()}
}
