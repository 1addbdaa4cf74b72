// Package scheduler runs the periodic background tasks of the game server:
// daily retention cleanup of hands and audit transcripts, and status
// snapshots.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scc-project/scc/internal/config"
	"github.com/scc-project/scc/internal/events"
)

// StatusSource produces server status snapshots.
type StatusSource interface {
	Status() events.ServerStatusPayload
}

// Pruner removes hands older than a number of days.
type Pruner interface {
	PruneOlderThan(ctx context.Context, days int) (int64, error)
}

// Scheduler manages periodic background tasks.
type Scheduler struct {
	cfg      *config.Config
	eventBus *events.EventBus
	status   StatusSource
	history  Pruner
	logger   zerolog.Logger
}

// NewScheduler creates a new task scheduler. history may be nil when the
// hand history is disabled.
func NewScheduler(cfg *config.Config, eventBus *events.EventBus, status StatusSource, history Pruner) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		eventBus: eventBus,
		status:   status,
		history:  history,
		logger:   log.With().Str("component", "scheduler").Logger(),
	}
}

// Start runs all scheduled tasks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Msg("scheduler started")

	go s.runCleanupLoop(ctx)
	go s.runStatusLoop(ctx)

	<-ctx.Done()
	s.logger.Info().Msg("scheduler stopped")
}

// runCleanupLoop runs the retention cleanup at the configured time daily.
func (s *Scheduler) runCleanupLoop(ctx context.Context) {
	for {
		nextRun := NextRun(s.cfg.Scheduler.CleanupTime, time.Now())
		sleepDuration := time.Until(nextRun)

		s.logger.Info().
			Time("next_run", nextRun).
			Dur("sleep", sleepDuration).
			Msg("retention cleanup scheduled")

		timer := time.NewTimer(sleepDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.RunCleanup(ctx)
		}
	}
}

// RunCleanup removes hands and audit transcripts older than the retention
// period.
func (s *Scheduler) RunCleanup(ctx context.Context) {
	days := s.cfg.Database.RetentionDays
	if days <= 0 {
		return
	}

	if s.history != nil {
		if n, err := s.history.PruneOlderThan(ctx, days); err != nil {
			s.logger.Warn().Err(err).Msg("hand history cleanup failed")
		} else {
			s.logger.Info().Int64("hands", n).Int("retention_days", days).Msg("hand history cleanup completed")
		}
	}

	dir := s.cfg.GetServer().AuditDirectory
	if dir == "" {
		return
	}
	count, size := cleanAuditDir(dir, time.Duration(days)*24*time.Hour)
	s.logger.Info().
		Str("directory", dir).
		Int("deleted_files", count).
		Str("freed_space", formatBytes(size)).
		Msg("audit cleanup completed")
}

// cleanAuditDir deletes audit logs whose last write is older than maxAge.
func cleanAuditDir(dir string, maxAge time.Duration) (int, int64) {
	var (
		deletedCount int
		deletedSize  int64
	)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("directory", dir).Msg("failed to read audit directory")
		}
		return 0, 0
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || time.Since(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			deletedCount++
			deletedSize += info.Size()
			log.Debug().Str("file", entry.Name()).Msg("deleted old audit log")
		}
	}

	return deletedCount, deletedSize
}

// runStatusLoop emits server.status at the configured interval.
func (s *Scheduler) runStatusLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.Scheduler.StatusIntervalSec) * time.Second
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EmitStatus(ctx)
		}
	}
}

// EmitStatus publishes one server.status snapshot.
func (s *Scheduler) EmitStatus(ctx context.Context) {
	status := s.status.Status()

	s.logger.Debug().
		Int("sessions", status.ActiveSessions).
		Int("players_connected", status.PlayersConnected).
		Float64("cpu_percent", status.CPUPercent).
		Msg("status snapshot")

	s.eventBus.Emit(ctx, events.Event{
		Type:    events.EventServerStatus,
		Source:  "scheduler",
		Payload: status,
	})
}

// NextRun returns the first occurrence of the HH:MM clock time after now.
// An unparseable time falls back to 04:00.
func NextRun(clock string, now time.Time) time.Time {
	hour, minute := 4, 0
	if t, err := time.Parse("15:04", clock); err == nil {
		hour, minute = t.Hour(), t.Minute()
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// formatBytes formats bytes into human-readable format.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
