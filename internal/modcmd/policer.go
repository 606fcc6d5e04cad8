package modcmd

import (
	"sync"

	"golang.org/x/time/rate"
)

// Policer rate-limits command invocations per the `policers/commands-*`
// config groups (§6.4): one token bucket per category (e.g. "god", "oper",
// "luser"), keyed further by caller so one abusive user cannot exhaust
// another's budget. Grounded on the teacher's security.GlobalMessageTracker
// pattern of a global rate tracker consulted from the dispatch path, rebuilt
// here on golang.org/x/time/rate instead of a hand-rolled sliding window.
type Policer struct {
	mu        sync.Mutex
	rateLimit rate.Limit
	burst     int
	callers   map[string]*rate.Limiter
}

// NewPolicer creates a policer allowing burst immediate invocations and
// refilling at eventsPerSecond thereafter.
func NewPolicer(eventsPerSecond float64, burst int) *Policer {
	return &Policer{
		rateLimit: rate.Limit(eventsPerSecond),
		burst:     burst,
		callers:   make(map[string]*rate.Limiter),
	}
}

// Allow reports whether caller may invoke a command policed by p right now.
func (p *Policer) Allow(caller string) bool {
	p.mu.Lock()
	limiter, ok := p.callers[caller]
	if !ok {
		limiter = rate.NewLimiter(p.rateLimit, p.burst)
		p.callers[caller] = limiter
	}
	p.mu.Unlock()
	return limiter.Allow()
}

// PolicerSet holds the named policer categories referenced by
// `policers/commands-{god,oper,luser}` (§6.4); ModCmds opt into one by name
// via Rules (a policer category name, resolved at dispatch time).
type PolicerSet struct {
	mu       sync.RWMutex
	policers map[string]*Policer
}

func NewPolicerSet() *PolicerSet {
	return &PolicerSet{policers: make(map[string]*Policer)}
}

func (s *PolicerSet) Register(category string, eventsPerSecond float64, burst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policers[category] = NewPolicer(eventsPerSecond, burst)
}

func (s *PolicerSet) Get(category string) (*Policer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policers[category]
	return p, ok
}
