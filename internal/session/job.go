package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/emirg23/multi-BotChat/internal/mirror"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// SyncJob tracks one asynchronous push of an account.
type SyncJob struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	Account string    `gorm:"type:varchar(255);index;not null"`
	Status  JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when succeeded
	Writes  int
	Deletes int

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SyncJob) TableName() string { return "sync_jobs" }

type JobRepo struct {
	db *gorm.DB
}

func NewJobRepo(db *gorm.DB) *JobRepo {
	return &JobRepo{db: db}
}

func (r *JobRepo) Migrate() error {
	return r.db.AutoMigrate(&SyncJob{})
}

// Create stores a queued job for account and returns it.
func (r *JobRepo) Create(ctx context.Context, account string) (*SyncJob, error) {
	j := &SyncJob{
		ID:      ulid.Make().String(),
		Account: normalizeAccount(account),
		Status:  JobQueued,
	}
	if err := r.db.WithContext(ctx).Create(j).Error; err != nil {
		return nil, err
	}
	return j, nil
}

func (r *JobRepo) Get(ctx context.Context, id string) (*SyncJob, error) {
	var j SyncJob
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *JobRepo) MarkRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&SyncJob{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *JobRepo) MarkSucceeded(ctx context.Context, id string, report *mirror.PushReport) error {
	return r.db.WithContext(ctx).Model(&SyncJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":  JobSucceeded,
			"writes":  report.Writes,
			"deletes": report.Deletes,
			"error":   nil,
		}).Error
}

func (r *JobRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&SyncJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": JobFailed,
			"error":  errMsg,
		}).Error
}

// RunSyncJob executes a queued job: it pushes the job's account and records the
// outcome on the job row.
func (m *Manager) RunSyncJob(ctx context.Context, jobs *JobRepo, id string) error {
	start := time.Now()
	_ = jobs.MarkRunning(ctx, id)

	j, err := jobs.Get(ctx, id)
	if err != nil {
		return err
	}

	// a push after the job was queued carried newer state already
	if pushed, err := m.repo.PushedAt(ctx, j.Account); err == nil && pushed.After(j.CreatedAt) {
		m.logger.Info("sync job superseded",
			slog.String("job", id),
			slog.String("account", j.Account),
			slog.Time("pushed_at", pushed))
		return jobs.MarkSucceeded(ctx, id, &mirror.PushReport{Account: j.Account})
	}

	report, err := m.PushAccount(ctx, j.Account)
	if err != nil {
		_ = jobs.MarkFailed(ctx, id, err.Error())
		m.logger.Error("sync job failed",
			slog.String("job", id),
			slog.String("account", j.Account),
			slog.Duration("cost", time.Since(start)),
			slog.Any("error", err))
		return err
	}
	if err := jobs.MarkSucceeded(ctx, id, report); err != nil {
		return err
	}
	m.logger.Info("sync job done",
		slog.String("job", id),
		slog.String("account", j.Account),
		slog.Int("writes", report.Writes),
		slog.Int("deletes", report.Deletes),
		slog.Duration("cost", time.Since(start)))
	return nil
}
