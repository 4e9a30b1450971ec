package cache

import (
	"time"

	"github.com/rs/zerolog"
)

// Cleaner is any cache that can drop its expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager owns the cache lifecycle: it runs the periodic expired-entry
// sweep for every registered cache and stops it on shutdown.
type Manager struct {
	caches      []Cleaner
	log         zerolog.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		log:         log,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the sweep. Not safe to call after Start.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// Start begins the periodic sweep.
func (m *Manager) Start(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleaned := 0
			for _, c := range m.caches {
				cleaned += c.CleanExpired()
			}
			if cleaned > 0 {
				m.log.Debug().Int("entries", cleaned).Msg("cache sweep removed expired entries")
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop halts the sweep and waits for it to exit.
func (m *Manager) Stop() {
	close(m.stopCleanup)
	<-m.cleanupDone
}
