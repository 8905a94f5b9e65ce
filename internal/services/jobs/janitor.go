package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
)

// Janitor garbage-collects terminal jobs on a cron schedule so the store
// does not grow without bound.
type Janitor struct {
	config    *common.JobsConfig
	registry  *Registry
	logger    arbor.ILogger
	scheduler *cron.Cron
}

// NewJanitor creates the terminal-job janitor
func NewJanitor(config *common.JobsConfig, registry *Registry, logger arbor.ILogger) *Janitor {
	return &Janitor{
		config:    config,
		registry:  registry,
		logger:    logger,
		scheduler: cron.New(),
	}
}

// Start schedules the sweep. An invalid schedule is reported and the janitor
// stays off; job execution is unaffected.
func (j *Janitor) Start() error {
	schedule := j.config.JanitorSchedule
	if schedule == "" {
		schedule = "@hourly"
	}

	if _, err := j.scheduler.AddFunc(schedule, j.sweep); err != nil {
		return err
	}
	j.scheduler.Start()
	j.logger.Info().Str("schedule", schedule).Msg("Job janitor started")
	return nil
}

// Stop halts the scheduler and waits for a running sweep
func (j *Janitor) Stop() {
	ctx := j.scheduler.Stop()
	<-ctx.Done()
}

func (j *Janitor) sweep() {
	retention := common.Duration(j.config.Retention, 168*time.Hour)
	cutoff := time.Now().Add(-retention)

	removed, err := j.registry.DeleteTerminalBefore(context.Background(), cutoff)
	if err != nil {
		j.logger.Warn().Err(err).Msg("Job janitor sweep failed")
		return
	}
	if removed > 0 {
		j.logger.Info().Int("removed", removed).Msg("Pruned terminal jobs")
	}
}
