// internal/game/janitor.go
package game

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartJanitor schedules SweepIdle every interval.
func (m *Manager) StartJanitor(interval time.Duration) error {
	m.schedMu.Lock()
	defer m.schedMu.Unlock()
	if m.scheduler != nil {
		return nil
	}

	sched, err := gocron.NewScheduler(gocron.WithClock(m.deps.Clock))
	if err != nil {
		return fmt.Errorf("failed to create janitor scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(m.SweepIdle),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule janitor: %w", err)
	}
	sched.Start()
	m.scheduler = sched
	m.deps.Logger.Infof("janitor sweeping every %s", interval)
	return nil
}

// StopJanitor shuts the janitor scheduler down, if running.
func (m *Manager) StopJanitor() {
	m.schedMu.Lock()
	defer m.schedMu.Unlock()
	if m.scheduler == nil {
		return
	}
	if err := m.scheduler.Shutdown(); err != nil {
		m.deps.Logger.Warnf("janitor shutdown: %v", err)
	}
	m.scheduler = nil
}

// SweepIdle asks every live session to check itself for idleness. Lobbies idle past
// the configured timeout are abandoned, and playing sessions retry a pending end.
// A session with a full inbox is skipped until the next sweep.
func (m *Manager) SweepIdle() {
	swept := 0
	for _, s := range m.store.Sessions() {
		if s.tryPost(sweepIdle{IdleAfter: m.deps.LobbyIdleTimeout}) {
			swept++
		}
	}
	m.deps.Logger.Debugf("janitor swept %d sessions", swept)
}
