package worker

import (
	"context"
	"log"

	"github.com/mikoczy/crm-scenarios-module/internal/domain"
)

// LoggingExecutor is the default executor. It records that a job ran
// and succeeds; real element executors (email, push, segment checks)
// replace it per deployment.
type LoggingExecutor struct{}

func (LoggingExecutor) Capabilities() []string {
	return []string{"log"}
}

func (LoggingExecutor) Execute(ctx context.Context, job domain.Job) error {
	log.Printf("executor: job=%s owner=%s params=%v", job.ID, job.Owner, job.Parameters)
	return nil
}

var _ Executor = LoggingExecutor{}
