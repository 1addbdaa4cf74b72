// Package health runs periodic checks of the host the game server depends
// on: free disk for the audit transcripts and hand history, and memory
// pressure.
package health

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scc-project/scc/internal/config"
	"github.com/scc-project/scc/internal/util"
)

// Levels of a check result.
const (
	LevelOK       = "ok"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// CheckResult is the outcome of the latest run of one check.
type CheckResult struct {
	Name      string    `json:"name"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CheckedAt time.Time `json:"checked_at"`
}

// Probes reads host metrics. Tests replace it.
type Probes struct {
	DiskUsedPercent   func(path string) (float64, error)
	MemoryUsedPercent func() (float64, error)
}

// HostProbes reads the real host through gopsutil.
func HostProbes() Probes {
	return Probes{
		DiskUsedPercent: func(path string) (float64, error) {
			usage, err := util.GetDiskUsage(path)
			if err != nil {
				return 0, err
			}
			return usage.UsedPercent, nil
		},
		MemoryUsedPercent: util.GetMemoryUsage,
	}
}

// Manager runs periodic health checks.
type Manager struct {
	cfg    *config.Config
	probes Probes
	logger zerolog.Logger

	mu      sync.RWMutex
	results map[string]CheckResult
}

// NewManager creates a new health check manager.
func NewManager(cfg *config.Config, probes Probes) *Manager {
	return &Manager{
		cfg:     cfg,
		probes:  probes,
		logger:  log.With().Str("component", "health").Logger(),
		results: make(map[string]CheckResult),
	}
}

// Start runs every check immediately and then at the configured interval
// until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	interval := time.Duration(m.cfg.Scheduler.HealthCheckIntervalSec) * time.Second
	if interval <= 0 {
		m.logger.Info().Msg("health checks disabled")
		return
	}

	m.logger.Info().Dur("interval", interval).Msg("health check manager started")
	m.RunChecks()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("health check manager stopped")
			return
		case <-ticker.C:
			m.RunChecks()
		}
	}
}

// RunChecks runs every check once.
func (m *Manager) RunChecks() {
	m.checkDiskUtilization()
	m.checkMemory()
}

// Report returns the latest result of every check, ordered by name.
func (m *Manager) Report() []CheckResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]CheckResult, 0, len(m.results))
	for _, r := range m.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Healthy reports whether no check is critical.
func (m *Manager) Healthy() bool {
	for _, r := range m.Report() {
		if r.Level == LevelCritical {
			return false
		}
	}
	return true
}

func (m *Manager) record(name, level, message string) {
	m.mu.Lock()
	m.results[name] = CheckResult{Name: name, Level: level, Message: message, CheckedAt: time.Now()}
	m.mu.Unlock()

	if level != LevelOK {
		m.logger.Warn().Str("check", name).Str("level", level).Msg(message)
	}
}

// dataPaths lists the directories the server writes to.
func (m *Manager) dataPaths() []string {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if p == "" {
			return
		}
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			return
		}
		seen[abs] = true
		paths = append(paths, abs)
	}

	add(m.cfg.GetServer().AuditDirectory)
	if m.cfg.Database.Enabled {
		add(filepath.Dir(m.cfg.Database.Path))
	}
	add(m.cfg.Logging.Directory)
	return paths
}

// checkDiskUtilization warns when a data directory's filesystem passes the
// configured threshold and turns critical when it is full.
func (m *Manager) checkDiskUtilization() {
	warnAt := m.cfg.Scheduler.DiskWarnPercent

	for _, path := range m.dataPaths() {
		name := "disk:" + path

		// The directory may not exist yet; its parent is on the same
		// filesystem in every layout we create.
		used, err := m.probes.DiskUsedPercent(path)
		if err != nil {
			used, err = m.probes.DiskUsedPercent(filepath.Dir(path))
		}
		if err != nil {
			m.record(name, LevelWarning, fmt.Sprintf("disk usage unavailable: %v", err))
			continue
		}

		level := LevelOK
		switch {
		case used >= 99:
			level = LevelCritical
		case used >= warnAt:
			level = LevelWarning
		}
		m.record(name, level, fmt.Sprintf("disk usage at %.1f%%", used))
	}
}

func (m *Manager) checkMemory() {
	used, err := m.probes.MemoryUsedPercent()
	if err != nil {
		m.record("memory", LevelWarning, fmt.Sprintf("memory usage unavailable: %v", err))
		return
	}

	level := LevelOK
	if used >= 95 {
		level = LevelWarning
	}
	m.record("memory", level, fmt.Sprintf("memory usage at %.1f%%", used))
}
