package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appanalytics "github.com/minicrm/backend/internal/application/analytics"
	"github.com/minicrm/backend/internal/domain/analytics"
	"github.com/minicrm/backend/internal/domain/crm"
	"github.com/minicrm/backend/internal/domain/shared"
)

const warmPageSize = 100

// CampaignLister pages through campaigns
type CampaignLister interface {
	FindAll(ctx context.Context, filter crm.CampaignFilter) ([]crm.Campaign, int64, error)
}

// SubjectQuerier computes or fetches every metric of one subject
type SubjectQuerier interface {
	QueryAll(ctx context.Context, subject analytics.SubjectType, id uuid.UUID) (*appanalytics.SubjectMetrics, error)
}

// MetricWarmer fills the metric cache for every active campaign so that
// dashboards hit warm entries after a restart or a burst of invalidations.
type MetricWarmer struct {
	campaigns CampaignLister
	metrics   SubjectQuerier
	logger    *zap.Logger
}

// NewMetricWarmer creates a warmer
func NewMetricWarmer(campaigns CampaignLister, metrics SubjectQuerier, logger *zap.Logger) *MetricWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricWarmer{
		campaigns: campaigns,
		metrics:   metrics,
		logger:    logger.Named("metric_warmer"),
	}
}

// Execute implements JobExecutor. Campaigns deleted while the job runs are
// skipped; any other failure is reported after the remaining campaigns have
// been tried.
func (w *MetricWarmer) Execute(ctx context.Context, job *Job) error {
	filter := crm.CampaignFilter{
		Filter: shared.Filter{Page: 1, PageSize: warmPageSize, OrderBy: "created_at", OrderDir: "asc"},
		Status: crm.CampaignStatusActive,
	}

	var (
		warmed int
		errs   []error
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, total, err := w.campaigns.FindAll(ctx, filter)
		if err != nil {
			return fmt.Errorf("list active campaigns: %w", err)
		}
		for i := range page {
			id := page[i].ID
			if _, err := w.metrics.QueryAll(ctx, analytics.SubjectCampaign, id); err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					continue
				}
				errs = append(errs, fmt.Errorf("campaign %s: %w", id, err))
				continue
			}
			warmed++
		}
		if len(page) < filter.PageSize || int64(filter.Page*filter.PageSize) >= total {
			break
		}
		filter.Page++
	}

	w.logger.Debug("Warmed campaign metrics",
		zap.String("job_id", job.ID.String()),
		zap.Int("campaigns", warmed),
		zap.Int("failures", len(errs)),
	)
	return errors.Join(errs...)
}
