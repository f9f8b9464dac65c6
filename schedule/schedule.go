// Package schedule runs configured heartbeat prompts on cron expressions.
// Each job invokes the engine directly on a synthetic session keyed
// "heartbeat:<name>", so scheduled work never mixes into user conversations.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hupe1980/meshbot/config"
	"github.com/hupe1980/meshbot/logging"
)

// Invoker runs one prompt through the agent loop. Implemented by
// engine.AgentLoop.ProcessDirect.
type Invoker interface {
	ProcessDirect(ctx context.Context, channel, chatID, content string) (string, error)
}

// Scheduler owns the cron runner for heartbeat jobs.
type Scheduler struct {
	cron    *cron.Cron
	invoker Invoker
	logger  logging.Logger
	timeout time.Duration
}

// Options configures a Scheduler.
type Options struct {
	// JobTimeout bounds a single heartbeat run.
	JobTimeout time.Duration
	// Logger receives scheduler telemetry.
	Logger logging.Logger
}

// New builds a Scheduler using standard 5-field cron expressions.
func New(invoker Invoker, optFns ...func(o *Options)) *Scheduler {
	opts := Options{
		JobTimeout: 5 * time.Minute,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Scheduler{
		cron:    cron.New(),
		invoker: invoker,
		logger:  opts.Logger,
		timeout: opts.JobTimeout,
	}
}

// Add registers one heartbeat job. The cron expression is validated here so a
// bad config fails at startup, not at first fire.
func (s *Scheduler) Add(job config.HeartbeatJob) error {
	_, err := s.cron.AddFunc(job.Cron, func() { s.fire(job) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name, job.Cron, err)
	}
	return nil
}

// fire runs one heartbeat. A failed run logs and waits for the next tick.
func (s *Scheduler) fire(job config.HeartbeatJob) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.invoker.ProcessDirect(ctx, "heartbeat", job.Name, job.Prompt)
	if err != nil {
		s.logger.Error("heartbeat.failed", "job", job.Name, "error", err.Error())
		return
	}
	s.logger.Info("heartbeat.done", "job", job.Name, "duration", time.Since(start).String(), "reply_len", len(reply))
}

// Start begins firing jobs. Non-blocking.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
