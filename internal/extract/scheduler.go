package extract

import (
	"context"

	"github.com/robfig/cron/v3"

	"cryptodata/internal/config"
	"cryptodata/internal/logging"
	"cryptodata/internal/request"
)

// Scheduler runs configured extraction requests on cron schedules
type Scheduler struct {
	cron     *cron.Cron
	pipeline *Pipeline
	defaults request.Defaults
	jobs     []config.SchedulerJob
	log      *logging.Logger
}

// NewScheduler builds a scheduler from configuration; jobs are validated
// when Start is called
func NewScheduler(pipeline *Pipeline, cfg config.SchedulerConfig, defaults request.Defaults, log *logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Nop()
	}
	return &Scheduler{
		cron:     cron.New(),
		pipeline: pipeline,
		defaults: defaults,
		jobs:     cfg.Jobs,
		log:      log,
	}
}

// Start registers every job and starts the cron loop. A job with an
// invalid request or schedule is skipped with an error log, it does not
// block the others.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, job := range s.jobs {
		job := job
		req, err := request.New(job.Request, s.defaults)
		if err != nil {
			s.log.WithError(err).WithField("job", job.Name).Error("invalid scheduled request")
			continue
		}
		_, err = s.cron.AddFunc(job.Cron, func() {
			result, err := s.pipeline.Run(ctx, req)
			if err != nil {
				s.log.WithError(err).WithField("job", job.Name).Error("scheduled extraction failed")
				return
			}
			s.log.WithFields(map[string]interface{}{
				"job":    job.Name,
				"run_id": result.RunID,
				"rows":   result.Table.Len(),
			}).Info("scheduled extraction complete")
		})
		if err != nil {
			s.log.WithError(err).WithField("job", job.Name).Error("invalid cron expression")
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
