package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/securebank/securebank/internal/interfaces"
)

const jobTimeout = time.Minute

// Maintenance runs the periodic housekeeping: purging dead session rows and
// pruning login attempts past the retention horizon. Neither job changes
// behavior, both keep the hot tables small. Lockout decisions never look
// further back than the failure window, so pruning old attempts is safe.
type Maintenance struct {
	sessions interfaces.SessionRepository
	attempts interfaces.LoginAttemptRepository

	sessionIdle      time.Duration
	attemptRetention time.Duration

	cron *cron.Cron
}

func NewMaintenance(sessions interfaces.SessionRepository, attempts interfaces.LoginAttemptRepository, sessionIdle, attemptRetention time.Duration) *Maintenance {
	return &Maintenance{
		sessions:         sessions,
		attempts:         attempts,
		sessionIdle:      sessionIdle,
		attemptRetention: attemptRetention,
		cron:             cron.New(),
	}
}

// Start registers the jobs and launches the scheduler in the background.
func (m *Maintenance) Start() error {
	if _, err := m.cron.AddFunc("@every 15m", m.purgeSessions); err != nil {
		return err
	}
	if _, err := m.cron.AddFunc("@daily", m.pruneAttempts); err != nil {
		return err
	}
	m.cron.Start()
	log.Info().Msg("maintenance jobs scheduled")
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (m *Maintenance) Stop() {
	<-m.cron.Stop().Done()
}

func (m *Maintenance) purgeSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	purged, err := m.sessions.DeleteExpired(ctx, time.Now(), m.sessionIdle)
	if err != nil {
		log.Error().Err(err).Msg("session purge failed")
		return
	}
	if purged > 0 {
		log.Info().Int64("purged", purged).Msg("expired sessions removed")
	}
}

func (m *Maintenance) pruneAttempts() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	cutoff := time.Now().Add(-m.attemptRetention)
	pruned, err := m.attempts.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("login attempt pruning failed")
		return
	}
	if pruned > 0 {
		log.Info().Int64("pruned", pruned).Time("cutoff", cutoff).Msg("old login attempts removed")
	}
}
