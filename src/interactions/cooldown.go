package interactions

import (
	"sync"
	"time"

	"github.com/Pincer-org/Pincer-sub000/src/structs"
)

// cooldownLimiter enforces per-command sliding windows. Keys combine
// the command identity with the scope-derived value, so a User-scoped
// cooldown on /ping throttles each user independently.
type cooldownLimiter struct {
	mu     sync.Mutex
	events map[string][]time.Time
	now    func() time.Time
}

func newCooldownLimiter() *cooldownLimiter {
	return &cooldownLimiter{
		events: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// scopeKey derives the throttle key from the invocation context.
func scopeKey(scope CooldownScope, i *structs.Interaction) string {
	switch scope {
	case ScopeGuild:
		return "guild:" + i.GuildID
	case ScopeChannel:
		return "channel:" + i.ChannelID
	case ScopeUser:
		return "user:" + i.Invoker().ID
	default:
		return ""
	}
}

// Allow records an invocation attempt. It returns false, along with
// the wait until the window frees up, when the limit is exhausted.
// Denied attempts are not recorded.
func (cl *cooldownLimiter) Allow(command string, cd *Cooldown, i *structs.Interaction) (bool, time.Duration) {
	if cd == nil || cd.Limit <= 0 {
		return true, 0
	}
	key := command + "|" + scopeKey(cd.Scope, i)
	now := cl.now()
	cutoff := now.Add(-cd.Window)

	cl.mu.Lock()
	defer cl.mu.Unlock()
	kept := cl.events[key][:0]
	for _, t := range cl.events[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= cd.Limit {
		cl.events[key] = kept
		retry := kept[0].Add(cd.Window).Sub(now)
		return false, retry
	}
	cl.events[key] = append(kept, now)
	return true, 0
}
