package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/tickerflow/pkg/logger"
)

// Pinger is anything with a cheap liveness check (database pool, redis)
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheckJob pings backing services
type HealthCheckJob struct {
	targets map[string]Pinger
	logger  *logger.Logger
}

// NewHealthCheckJob creates a new health check job
func NewHealthCheckJob(targets map[string]Pinger, log *logger.Logger) *HealthCheckJob {
	return &HealthCheckJob{
		targets: targets,
		logger:  log.WithField("job", "health_check"),
	}
}

// Name returns the job name
func (j *HealthCheckJob) Name() string {
	return "health_check"
}

// Schedule returns the cron schedule (every 5 minutes)
func (j *HealthCheckJob) Schedule() string {
	return "0 */5 * * * *"
}

// Run pings every target and fails if any is down
func (j *HealthCheckJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled health check")

	var failed []string
	for name, t := range j.targets {
		if err := t.Ping(ctx); err != nil {
			j.logger.WithError(err).WithField("target", name).Warn("Health check failed")
			failed = append(failed, name)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("unhealthy: %v", failed)
	}
	return nil
}
