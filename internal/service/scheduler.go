package service

import (
	"context"
	"errors"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/opentracker-es/opentracker-api/internal/backup"
	"github.com/opentracker-es/opentracker-api/internal/database"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/opentracker-es/opentracker-api/logger"
	"go.uber.org/zap"
	"sync"
	"time"
)

const (
	scheduledBackupJobName = "scheduled_backup"

	// stopTimeout bounds how long Stop lingers for a running job before returning
	stopTimeout = 100 * time.Millisecond
)

// scheduledBackupJobID is stable so that reloads always replace the same job
var scheduledBackupJobID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(scheduledBackupJobName))

type (
	SchedulerService interface {
		// ReloadSchedule replaces the scheduled job with one built from the stored config
		ReloadSchedule(ctx context.Context) error
		Start(ctx context.Context) error
		// Stop halts future firings. A run already in progress is not waited for.
		Stop() error
		IsBackupScheduled() bool
		GetNextRunTime() *time.Time
	}

	// BackupRunner is what a scheduled firing invokes
	BackupRunner interface {
		CreateBackup(ctx context.Context, trigger types.BackupTrigger) (*types.BackupRecord, error)
		CleanupOldBackups(ctx context.Context) (int, error)
	}

	schedulerService struct {
		scheduler gocron.Scheduler
		settings  database.SettingsRepository
		runner    BackupRunner
		now       func() time.Time

		mu         sync.Mutex
		started    bool
		stopped    bool
		expression string
	}
)

func NewSchedulerService(settings database.SettingsRepository, runner BackupRunner) (SchedulerService, error) {
	return newSchedulerService(settings, runner)
}

func newSchedulerService(settings database.SettingsRepository, runner BackupRunner) (*schedulerService, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithStopTimeout(stopTimeout))
	if err != nil {
		return nil, err
	}
	return &schedulerService{
		scheduler: scheduler,
		settings:  settings,
		runner:    runner,
		now:       time.Now,
	}, nil
}

func (s *schedulerService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.scheduler.Start()
	s.started = true
	s.stopped = false
	s.mu.Unlock()

	logger.Info("backup scheduler started")
	return s.ReloadSchedule(ctx)
}

func (s *schedulerService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}

	s.started = false
	s.stopped = true
	err := s.scheduler.StopJobs()
	if errors.Is(err, gocron.ErrStopJobsTimedOut) {
		logger.Info("backup scheduler stopped, a running backup continues in the background")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("backup scheduler stopped")
	return nil
}

func (s *schedulerService) ReloadSchedule(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.removeJob(); err != nil {
		return err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	if settings == nil || settings.Backup == nil || !settings.Backup.Enabled || settings.Backup.Schedule == nil {
		logger.Info("scheduled backups disabled")
		return nil
	}

	expression, err := backup.CronExpression(settings.Backup.Schedule)
	if err != nil {
		logger.Error("invalid backup schedule, backups will not run automatically",
			zap.Any("schedule", settings.Backup.Schedule),
			zap.Error(err))
		return nil
	}

	_, err = s.scheduler.NewJob(
		gocron.CronJob(expression, false),
		gocron.NewTask(s.runScheduledBackup),
		gocron.WithIdentifier(scheduledBackupJobID),
		gocron.WithName(scheduledBackupJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule))
	if err != nil {
		return err
	}

	s.expression = expression
	logger.Info("backup job scheduled",
		zap.String("expression", expression),
		zap.String("frequency", settings.Backup.Schedule.Frequency),
		zap.String("time", settings.Backup.Schedule.Time))
	return nil
}

// removeJob drops the scheduled job, if any. Callers hold s.mu.
func (s *schedulerService) removeJob() error {
	s.expression = ""
	err := s.scheduler.RemoveJob(scheduledBackupJobID)
	if err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		return err
	}
	return nil
}

func (s *schedulerService) IsBackupScheduled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped && s.expression != ""
}

func (s *schedulerService) GetNextRunTime() *time.Time {
	s.mu.Lock()
	expression, stopped := s.expression, s.stopped
	s.mu.Unlock()
	if stopped || expression == "" {
		return nil
	}

	next, err := backup.NextRun(expression, s.now())
	if err != nil {
		return nil
	}
	return &next
}

// runScheduledBackup is the job body. Nothing escapes it so later firings keep running.
func (s *schedulerService) runScheduledBackup() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scheduled backup panicked", zap.Any("panic", r))
		}
	}()

	ctx := context.Background()
	logger.Info("starting scheduled backup")
	record, err := s.runner.CreateBackup(ctx, types.TriggerScheduled)
	if err != nil {
		logger.Error("scheduled backup failed, skipping cleanup", zap.Error(err))
		return
	}
	logger.Info("scheduled backup completed", zap.String("id", record.ID.String()))

	removed, err := s.runner.CleanupOldBackups(ctx)
	if err != nil {
		logger.Error("cleanup of old backups failed", zap.Error(err))
		return
	}
	logger.Info("scheduled cleanup completed", zap.Int("removed", removed))
}
