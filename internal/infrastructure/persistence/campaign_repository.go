package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minicrm/backend/internal/domain/crm"
	"github.com/minicrm/backend/internal/domain/shared"
	"github.com/minicrm/backend/internal/infrastructure/persistence/models"
)

// GormCampaignRepository implements crm.CampaignRepository using GORM
type GormCampaignRepository struct {
	db *gorm.DB
}

// NewGormCampaignRepository creates a new GormCampaignRepository
func NewGormCampaignRepository(db *gorm.DB) *GormCampaignRepository {
	return &GormCampaignRepository{db: db}
}

// FindByID finds a campaign by its ID
func (r *GormCampaignRepository) FindByID(ctx context.Context, id uuid.UUID) (*crm.Campaign, error) {
	var model models.CampaignModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns one page of campaigns and the total matching the filter
func (r *GormCampaignRepository) FindAll(ctx context.Context, filter crm.CampaignFilter) ([]crm.Campaign, int64, error) {
	page := filter.Normalize()

	var total int64
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.CampaignModel{}), filter).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var campaignModels []models.CampaignModel
	if err := r.applyFilter(r.db.WithContext(ctx), filter).
		Order(orderClause(page.OrderBy, page.OrderDir, CampaignSortFields, "created_at")).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&campaignModels).Error; err != nil {
		return nil, 0, err
	}

	campaigns := make([]crm.Campaign, len(campaignModels))
	for i, model := range campaignModels {
		campaigns[i] = *model.ToDomain()
	}
	return campaigns, total, nil
}

// Count counts all campaigns
func (r *GormCampaignRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CampaignModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a campaign
func (r *GormCampaignRepository) Save(ctx context.Context, campaign *crm.Campaign) error {
	model := models.CampaignModelFromDomain(campaign)
	return r.db.WithContext(ctx).Save(model).Error
}

// DeleteDetachingOrders deletes the campaign after clearing the attribution
// of every order that referenced it
func (r *GormCampaignRepository) DeleteDetachingOrders(ctx context.Context, id uuid.UUID) ([]crm.Order, error) {
	var detached []crm.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var campaign models.CampaignModel
		if err := tx.Clauses(lockingClause(tx)...).First(&campaign, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}

		var orderModels []models.OrderModel
		if err := tx.Where("campaign_id = ?", id).Find(&orderModels).Error; err != nil {
			return err
		}

		if len(orderModels) > 0 {
			if err := tx.Model(&models.OrderModel{}).
				Where("campaign_id = ?", id).
				Update("campaign_id", nil).Error; err != nil {
				return err
			}
		}

		if err := tx.Delete(&models.CampaignModel{}, "id = ?", id).Error; err != nil {
			return err
		}

		detached = make([]crm.Order, len(orderModels))
		for i, model := range orderModels {
			detached[i] = *model.ToDomain()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detached, nil
}

func (r *GormCampaignRepository) applyFilter(query *gorm.DB, filter crm.CampaignFilter) *gorm.DB {
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	return query
}

// lockingClause returns FOR UPDATE on dialects that support row locks
func lockingClause(tx *gorm.DB) []clause.Expression {
	if tx.Dialector.Name() == "sqlite" {
		return nil
	}
	return []clause.Expression{clause.Locking{Strength: "UPDATE"}}
}
