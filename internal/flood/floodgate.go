// Package flood limits how often one caller may hit an endpoint.
package flood

import (
	"sync"
	"time"
)

const (
	// DefaultWindow is the sliding window length.
	DefaultWindow = time.Minute
	// cleanupInterval is how often idle entries are dropped.
	cleanupInterval = 10 * time.Minute
)

// Floodgate is a per-key sliding window rate limiter.
type Floodgate struct {
	limit       int
	window      time.Duration
	entries     map[string]*callerEntry
	mutex       sync.Mutex
	now         func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

type callerEntry struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// New creates a Floodgate allowing limit calls per window. A limit below one
// disables limiting.
func New(limit int, window time.Duration) *Floodgate {
	if window <= 0 {
		window = DefaultWindow
	}
	fg := &Floodgate{
		limit:       limit,
		window:      window,
		entries:     make(map[string]*callerEntry),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	go fg.cleanup()

	return fg
}

// Stop ends the background cleanup. It is safe to call more than once.
func (fg *Floodgate) Stop() {
	fg.stopOnce.Do(func() {
		close(fg.stopCleanup)
	})
}

// Allow records a call for key and reports whether it is within the limit.
// Rejected calls do not count against the window.
func (fg *Floodgate) Allow(key string) bool {
	if fg.limit < 1 {
		return true
	}

	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	now := fg.now()
	entry, exists := fg.entries[key]
	if !exists {
		entry = &callerEntry{
			timestamps: make([]time.Time, 0, fg.limit+1),
		}
		fg.entries[key] = entry
	}
	entry.lastSeen = now

	windowStart := now.Add(-fg.window)
	valid := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}
	entry.timestamps = valid

	if len(entry.timestamps) >= fg.limit {
		return false
	}

	entry.timestamps = append(entry.timestamps, now)
	return true
}

func (fg *Floodgate) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fg.performCleanup()
		case <-fg.stopCleanup:
			return
		}
	}
}

// performCleanup removes entries idle for longer than the window.
func (fg *Floodgate) performCleanup() {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	cutoff := fg.now().Add(-fg.window)
	for key, entry := range fg.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(fg.entries, key)
		}
	}
}

// GetStats returns statistics about the floodgate.
func (fg *Floodgate) GetStats() Stats {
	fg.mutex.Lock()
	defer fg.mutex.Unlock()

	return Stats{
		ActiveCallers: len(fg.entries),
		Limit:         fg.limit,
		WindowSeconds: int(fg.window.Seconds()),
	}
}

type Stats struct {
	ActiveCallers int `json:"active_callers"`
	Limit         int `json:"limit"`
	WindowSeconds int `json:"window_seconds"`
}
