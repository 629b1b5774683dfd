package memory

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/harun/mnemo/internal/observability"
)

// Maintenance runs periodic store upkeep on a cron schedule: keyword
// index optimization, WAL checkpointing and gauge refresh.
type Maintenance struct {
	store    *Store
	schedule string
	logger   zerolog.Logger
	cron     *cron.Cron
}

// NewMaintenance creates a maintenance runner with a cron schedule
// expression such as "@hourly" or "0 3 * * *".
func NewMaintenance(store *Store, schedule string, logger zerolog.Logger) *Maintenance {
	return &Maintenance{
		store:    store,
		schedule: schedule,
		logger:   logger,
	}
}

// Start schedules the maintenance job. Returns an error for an invalid
// schedule expression.
func (m *Maintenance) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(m.schedule, m.runOnce); err != nil {
		return err
	}
	c.Start()
	m.cron = c

	m.logger.Info().Str("schedule", m.schedule).Msg("Store maintenance scheduled")
	return nil
}

// Stop cancels the schedule and waits for a running job to finish
func (m *Maintenance) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
}

func (m *Maintenance) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	if err := m.store.Optimize(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Store maintenance failed")
		return
	}

	if count, err := m.store.Count(ctx); err == nil {
		observability.SetMemoriesTotal(count)
	}

	m.logger.Debug().Dur("elapsed", time.Since(start)).Msg("Store maintenance completed")
}
