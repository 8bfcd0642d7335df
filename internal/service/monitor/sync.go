package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/oshokin/equipment-monitor/internal/api/client"
	domain "github.com/oshokin/equipment-monitor/internal/domain/equipment"
	"github.com/oshokin/equipment-monitor/internal/logger"
)

// RunSync drains the queue to the API on the configured interval until the
// context is canceled. Tick failures are recorded in the integration status
// and retried on the next tick; they never stop the loop.
func (s *Service) RunSync(ctx context.Context) {
	ctx = logger.WithName(ctx, "sync")

	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()

	logger.InfoKV(ctx, "Sync loop started", "interval", s.cfg.SyncInterval.String())

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Sync loop stopped")

			return
		case <-ticker.C:
			if err := s.SyncTick(ctx); err != nil {
				logger.ErrorKV(ctx, "Sync tick failed", "error", err)
			}
		}
	}
}

// SyncTick performs one queue flush: snapshot, submit, commit the prefix.
// A paused loop or an empty queue makes it a no-op. On failure the queue is
// left intact for the next tick.
func (s *Service) SyncTick(ctx context.Context) error {
	if s.isPaused() {
		return nil
	}

	snapshot := s.queue.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}

	if err := s.submit(ctx, snapshot); err != nil {
		s.recordSyncFailure(err)

		return err
	}

	if err := s.queue.CommitCleared(ctx, len(snapshot)); err != nil {
		return err
	}

	s.recordSyncSuccess()

	logger.InfoKV(ctx, "Queue flushed", "sent", len(snapshot), "pending", s.queue.Len())

	return nil
}

// submit authenticates lazily and sends the snapshot.
func (s *Service) submit(ctx context.Context, snapshot []domain.Event) error {
	if err := s.api.EnsureToken(ctx); err != nil {
		return err
	}

	return s.api.SubmitEvents(ctx, snapshot)
}

// Pause suspends sending. State collection continues and the queue keeps growing.
func (s *Service) Pause(ctx context.Context) {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()

	logger.Info(ctx, "Sync paused")
}

// Resume re-enables sending from the next tick on.
func (s *Service) Resume(ctx context.Context) {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()

	logger.Info(ctx, "Sync resumed")
}

// isPaused reads the pause flag under the lock.
func (s *Service) isPaused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.paused
}

// recordSyncFailure degrades the integration status according to the error kind.
func (s *Service) recordSyncFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var authErr *client.AuthError
	if errors.As(err, &authErr) {
		s.syncStatus = IntegrationAuthError

		return
	}

	s.syncStatus = IntegrationAPIError
}

// recordSyncSuccess restores the healthy status and stamps the sync time.
func (s *Service) recordSyncSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSync = time.Now().UTC()

	if s.api != nil && s.api.Offline() {
		s.syncStatus = IntegrationOffline
	} else {
		s.syncStatus = IntegrationOnline
	}
}
