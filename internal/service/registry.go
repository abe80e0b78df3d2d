package service

import (
	"sync"
	"time"

	"github.com/rahmanfadhil/deadline-radar/internal/models"
)

// scheduleRegistry holds finished schedules in process memory. Fetched
// LMS data is deliberately never persisted, so a schedule lives exactly
// as long as its retention window and does not survive a restart.
type scheduleRegistry struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]registryEntry
}

type registryEntry struct {
	schedule  *models.WeekSchedule
	expiresAt time.Time
}

func newScheduleRegistry(ttl time.Duration) *scheduleRegistry {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &scheduleRegistry{ttl: ttl, entries: make(map[string]registryEntry)}
}

func (r *scheduleRegistry) Put(runID string, schedule *models.WeekSchedule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictExpiredLocked()
	r.entries[runID] = registryEntry{schedule: schedule, expiresAt: time.Now().Add(r.ttl)}
}

func (r *scheduleRegistry) Get(runID string) (*models.WeekSchedule, bool) {
	r.mu.RLock()
	entry, ok := r.entries[runID]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		r.mu.Lock()
		delete(r.entries, runID)
		r.mu.Unlock()
		return nil, false
	}
	return entry.schedule, true
}

func (r *scheduleRegistry) evictExpiredLocked() {
	now := time.Now()
	for id, entry := range r.entries {
		if now.After(entry.expiresAt) {
			delete(r.entries, id)
		}
	}
}
