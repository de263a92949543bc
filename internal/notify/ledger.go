package notify

import (
	"strconv"
	"time"
)

// ledgerRetention is how long a fired entry protects against
// re-firing. Entries older than this are purged every tick so the map
// stays bounded in a long-running process.
const ledgerRetention = 24 * time.Hour

// Ledger records which (event, action) pairs have already fired, keyed
// by event id plus interval (or the url-opened marker), mapped to the
// wall-clock time the action was taken.
//
// The ledger is owned and mutated only by its Scheduler's tick; it is
// never persisted across restarts.
type Ledger struct {
	fired map[string]time.Time
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{fired: make(map[string]time.Time)}
}

func intervalKey(eventID string, interval int) string {
	return eventID + "|" + strconv.Itoa(interval)
}

func urlOpenedKey(eventID string) string {
	return eventID + "|urlOpened"
}

// Has reports whether the key already fired within the retention window.
func (l *Ledger) Has(key string) bool {
	_, ok := l.fired[key]
	return ok
}

// Record marks the key as fired at the given time.
func (l *Ledger) Record(key string, at time.Time) {
	l.fired[key] = at
}

// Purge drops entries older than the retention window.
func (l *Ledger) Purge(now time.Time) {
	for key, at := range l.fired {
		if now.Sub(at) > ledgerRetention {
			delete(l.fired, key)
		}
	}
}

// Len returns the number of live entries.
func (l *Ledger) Len() int {
	return len(l.fired)
}
