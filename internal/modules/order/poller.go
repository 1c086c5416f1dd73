// README: Expiry poller; promotes stale preparing orders to ready.
package order

import (
	"context"
	"time"

	"chomp/internal/logging"
	"chomp/internal/metrics"
)

// AdvanceExpired promotes every preparing order whose estimated delivery
// time has elapsed. One bulk statement; already-promoted orders no longer
// match the filter, so a second run over the same set is a no-op.
func (s *Service) AdvanceExpired(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.store.PromoteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		_ = s.store.AppendEvent(ctx, &Event{
			OrderID:    id,
			FromStatus: StatusPreparing,
			ToStatus:   StatusReady,
			ActorType:  "system",
			CreatedAt:  now,
		})
		s.publish(ctx, id, StatusReady)
	}
	if len(ids) > 0 {
		metrics.ExpiredPromoted.Add(float64(len(ids)))
		logging.Log(logging.Fields{
			Component: "expiry_poller",
			Status:    "promoted",
			Count:     len(ids),
		})
	}
	return len(ids), nil
}

// RunExpiryPoller sweeps on a fixed interval until the context is cancelled.
// A failed sweep is logged and the next tick proceeds.
func (s *Service) RunExpiryPoller(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.AdvanceExpired(ctx, time.Now()); err != nil {
				logging.Log(logging.Fields{
					Component: "expiry_poller",
					Status:    "sweep_failed",
					Error:     err.Error(),
				})
			}
		}
	}
}
