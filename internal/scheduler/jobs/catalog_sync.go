package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/rfqnorm/backend/internal/catalog"
	"github.com/wonny/rfqnorm/backend/pkg/logger"
)

const (
	// CatalogSyncJobName names the job in scheduler reports
	CatalogSyncJobName = "catalog_sync"

	// DefaultCatalogSchedule runs the sync every 6 hours (with seconds)
	DefaultCatalogSchedule = "0 0 */6 * * *"
)

// Syncer is the part of catalog.Syncer the job needs
type Syncer interface {
	Sync(ctx context.Context) (catalog.Result, error)
}

// CatalogSyncJob refreshes the product alias table from the HZ platform
// ⭐ SSOT: 카탈로그 동기화 스케줄은 이 Job에서만
type CatalogSyncJob struct {
	syncer   Syncer
	schedule string
	logger   *logger.Logger
}

// NewCatalogSyncJob creates a new catalog sync job. An empty schedule
// falls back to DefaultCatalogSchedule.
func NewCatalogSyncJob(syncer Syncer, schedule string, log *logger.Logger) *CatalogSyncJob {
	if schedule == "" {
		schedule = DefaultCatalogSchedule
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CatalogSyncJob{
		syncer:   syncer,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *CatalogSyncJob) Name() string {
	return CatalogSyncJobName
}

// Schedule returns the cron schedule
func (j *CatalogSyncJob) Schedule() string {
	return j.schedule
}

// Run executes one catalog sync
func (j *CatalogSyncJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled catalog sync")

	result, err := j.syncer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("catalog sync: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"varieties": result.Varieties,
		"aliases":   result.Aliases,
	}).Debug("Scheduled catalog sync done")
	return nil
}
