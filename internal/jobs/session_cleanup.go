package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ExpiredSessionDeleter removes sessions past their expiry.
type ExpiredSessionDeleter interface {
	DeleteExpired() (int64, error)
}

// SessionCleanupJob periodically purges expired sessions from persistent storage.
type SessionCleanupJob struct {
	storage       ExpiredSessionDeleter
	schedule      string
	logger        *zap.Logger
	cronScheduler *cron.Cron
}

// NewSessionCleanupJob creates a new SessionCleanupJob. schedule is a cron spec
// such as "@every 15m".
func NewSessionCleanupJob(storage ExpiredSessionDeleter, schedule string, logger *zap.Logger) *SessionCleanupJob {
	return &SessionCleanupJob{
		storage:       storage,
		schedule:      schedule,
		logger:        logger.Named("SessionCleanupJob"),
		cronScheduler: cron.New(cron.WithLogger(NewCronLogger(logger.Named("cron")))),
	}
}

// SetupAndStart schedules the job and starts the scheduler. An empty schedule disables it.
func (j *SessionCleanupJob) SetupAndStart() error {
	if j.schedule == "" {
		j.logger.Warn("Session cleanup schedule not defined (SESSION_CLEANUP_SCHEDULE). Expired sessions will not be purged.")
		return nil
	}

	jobID, err := j.cronScheduler.AddFunc(j.schedule, j.Run)
	if err != nil {
		return fmt.Errorf("failed to schedule session cleanup %q: %w", j.schedule, err)
	}

	j.logger.Info("Session cleanup scheduled", zap.String("spec", j.schedule), zap.Int("jobID", int(jobID)))
	j.cronScheduler.Start()
	return nil
}

// Run deletes expired sessions once.
func (j *SessionCleanupJob) Run() {
	n, err := j.storage.DeleteExpired()
	if err != nil {
		j.logger.Error("Session cleanup run failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Info("Session cleanup run completed", zap.Int64("sessions_deleted", n))
	}
}

// Stop waits for a running cleanup to finish, at most ten seconds.
func (j *SessionCleanupJob) Stop() {
	stopCtx := j.cronScheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(10 * time.Second):
		j.logger.Warn("Session cleanup scheduler stop timed out")
	}
}

// cronLogger adapts zap.Logger to cron.Logger.
type cronLogger struct {
	zl *zap.Logger
}

// NewCronLogger creates a cron.Logger writing to zl.
func NewCronLogger(zl *zap.Logger) cron.Logger {
	return &cronLogger{zl: zl}
}

func (cl *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	cl.zl.Debug(msg, fields(keysAndValues)...)
}

func (cl *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	cl.zl.Error(msg, append(fields(keysAndValues), zap.Error(err))...)
}

func fields(keysAndValues []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		if i+1 < len(keysAndValues) {
			out = append(out, zap.Any(key, keysAndValues[i+1]))
		} else {
			out = append(out, zap.Any(key, "MISSING_VALUE"))
		}
	}
	return out
}
