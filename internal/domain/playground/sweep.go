package playground

import (
	"context"

	"github.com/google/uuid"
)

// SweepExpired releases the runs and blobs of sessions whose TTL lapsed in the
// session store. It returns how many sessions were cleaned up.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	s.trackMu.Lock()
	ids := make([]uuid.UUID, 0, len(s.tracked))
	for id := range s.tracked {
		ids = append(ids, id)
	}
	s.trackMu.Unlock()

	swept := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		expired, err := s.sweepOne(ctx, id)
		if err != nil {
			s.logger.Warn("sweep session failed", "session_id", id, "error", err)
			continue
		}
		if expired {
			swept++
		}
	}
	if swept > 0 {
		s.logger.Info("expired sessions swept", "count", swept)
	}
	return swept, nil
}

func (s *Service) sweepOne(ctx context.Context, id uuid.UUID) (bool, error) {
	lock := s.lock(id)
	lock.Lock()
	defer lock.Unlock()
	_, found, err := s.sessions.Get(ctx, id)
	if err != nil || found {
		return false, err
	}
	if err := s.cleanup(ctx, id); err != nil {
		return false, err
	}
	s.locks.Delete(id)
	return true, nil
}
