package status

import "time"

// SetClock replaces the clock of the cache.
func (s *StatsCache) SetClock(now func() time.Time) {
	s.now = now
}
