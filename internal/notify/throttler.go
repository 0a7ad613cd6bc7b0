package notify

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/your-org/presence/internal/config"
)

// stateTTL evicts a person's ledger after long silence so the map never
// grows with identities that stopped appearing.
const stateTTL = 30 * time.Minute

type notifyState struct {
	detections    []time.Time
	notifications []time.Time
}

// Throttler decides, per person, whether a detection should become a
// live notification right now. Two rules stack: a stability gate that
// absorbs single-frame flicker, and an escalating interval between
// repeat notifications. Both histories are bounded.
type Throttler struct {
	cfg config.NotificationsConfig

	mu    sync.Mutex
	state *cache.Cache
}

func NewThrottler(cfg config.NotificationsConfig) *Throttler {
	return &Throttler{
		cfg:   cfg,
		state: cache.New(stateTTL, 10*time.Minute),
	}
}

// Allow records a detection for personID and reports whether a
// notification should fire now.
func (t *Throttler) Allow(personID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	var st *notifyState
	if v, ok := t.state.Get(personID); ok {
		st = v.(*notifyState)
	} else {
		st = &notifyState{}
	}

	st.detections = appendBounded(st.detections, now, t.cfg.MaxDetectionHistory)
	t.state.Set(personID, st, stateTTL)

	if !t.stable(st.detections, now) {
		return false
	}

	switch prior := len(st.notifications); {
	case prior == 0:
		// First notification fires as soon as stability is met.
	case prior == 1:
		if now.Sub(st.notifications[prior-1]) < t.cfg.FirstInterval {
			return false
		}
	default:
		if now.Sub(st.notifications[prior-1]) < t.cfg.RegularInterval {
			return false
		}
	}

	st.notifications = appendBounded(st.notifications, now, t.cfg.MaxNotifyHistory)
	t.state.Set(personID, st, stateTTL)
	return true
}

// stable reports whether enough detections landed inside the stability
// window ending at now.
func (t *Throttler) stable(detections []time.Time, now time.Time) bool {
	cutoff := now.Add(-t.cfg.StabilityWindow)
	var recent int
	for _, ts := range detections {
		if !ts.Before(cutoff) {
			recent++
		}
	}
	return recent >= t.cfg.StableDetectionCount
}

// Forget drops a person's ledger (e.g. after a temp visitor departs).
func (t *Throttler) Forget(personID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Delete(personID)
}

func appendBounded(ts []time.Time, t time.Time, max int) []time.Time {
	ts = append(ts, t)
	if max > 0 && len(ts) > max {
		ts = ts[len(ts)-max:]
	}
	return ts
}
