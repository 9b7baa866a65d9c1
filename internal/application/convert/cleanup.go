package convert

import "time"

// scheduleCleanup arms the one-shot retention timer for a terminal job.
// Failed jobs get the same window as finished ones so their inputs do not
// pile up on disk.
func (s *Service) scheduleCleanup(id string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if _, ok := s.timers[id]; ok {
		return
	}
	s.timers[id] = time.AfterFunc(s.retentionDelay, func() {
		if err := s.Cleanup(id); err != nil {
			s.logger.Printf("cleanup failed: %s: %v", id, err)
		}
	})
}

// Cleanup deletes the job record and every artifact the job owns. Calling
// it for an already-deleted job is a no-op, so the retention timer and a
// manual invocation cannot conflict.
func (s *Service) Cleanup(id string) error {
	s.timersMu.Lock()
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	s.timersMu.Unlock()

	record, ok := s.registry.Delete(id)
	if !ok {
		return nil
	}

	s.logger.Printf("artifacts removed: %s", id)
	return s.store.RemoveArtifacts(record.Artifacts)
}
