package persistence

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/minicrm/backend/internal/domain/crm"
	"github.com/minicrm/backend/internal/domain/shared"
	"github.com/minicrm/backend/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements crm.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*crm.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOrders streams matching orders row by row. The query runs when the
// sequence is ranged over, not when FindOrders is called.
func (r *GormOrderRepository) FindOrders(ctx context.Context, filter crm.OrderFilter) iter.Seq2[*crm.Order, error] {
	return func(yield func(*crm.Order, error) bool) {
		rows, err := r.applyFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter).
			Order("order_date ASC, id ASC").
			Rows()
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var model models.OrderModel
			if err := r.db.ScanRows(rows, &model); err != nil {
				yield(nil, err)
				return
			}
			if !yield(model.ToDomain(), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// FindAll returns one page of orders and the total matching the filter
func (r *GormOrderRepository) FindAll(ctx context.Context, filter crm.OrderFilter, page shared.Filter) ([]crm.Order, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.OrderModel{}), filter).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orderModels []models.OrderModel
	if err := r.applyFilter(r.db.WithContext(ctx), filter).
		Order(orderClause(page.OrderBy, page.OrderDir, OrderSortFields, "order_date")).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&orderModels).Error; err != nil {
		return nil, 0, err
	}

	orders := make([]crm.Order, len(orderModels))
	for i, model := range orderModels {
		orders[i] = *model.ToDomain()
	}
	return orders, total, nil
}

// Count counts all orders
func (r *GormOrderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountByCustomer counts the orders placed by a customer
func (r *GormOrderRepository) CountByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("customer_id = ?", customerID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CompletedRevenue sums the amounts of completed orders
func (r *GormOrderRepository) CompletedRevenue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Select("SUM(amount)").
		Where("status = ?", string(crm.OrderStatusCompleted)).
		Row().Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

type customerSummaryRow struct {
	CustomerID     uuid.UUID
	OrderCount     int64
	CompletedSpend decimal.Decimal
	LastOrderDate  scannedTime
}

// SummarizeActiveCustomers aggregates the order history of every active
// customer, including those without orders
func (r *GormOrderRepository) SummarizeActiveCustomers(ctx context.Context) ([]crm.CustomerOrderSummary, error) {
	var rows []customerSummaryRow
	if err := r.db.WithContext(ctx).
		Table("customers AS c").
		Select(`c.id AS customer_id,
			COUNT(o.id) AS order_count,
			COALESCE(SUM(CASE WHEN o.status = ? THEN o.amount ELSE 0 END), 0) AS completed_spend,
			MAX(o.order_date) AS last_order_date`, string(crm.OrderStatusCompleted)).
		Joins("LEFT JOIN orders AS o ON o.customer_id = c.id").
		Where("c.is_active = ?", true).
		Group("c.id").
		Order("c.id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	summaries := make([]crm.CustomerOrderSummary, len(rows))
	for i, row := range rows {
		summaries[i] = crm.CustomerOrderSummary{
			CustomerID:     row.CustomerID,
			OrderCount:     row.OrderCount,
			CompletedSpend: row.CompletedSpend,
			LastOrderDate:  row.LastOrderDate.ptr(),
		}
	}
	return summaries, nil
}

// Save creates or updates an order
func (r *GormOrderRepository) Save(ctx context.Context, order *crm.Order) error {
	model := models.OrderModelFromDomain(order)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete deletes an order
func (r *GormOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.OrderModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *GormOrderRepository) applyFilter(query *gorm.DB, filter crm.OrderFilter) *gorm.DB {
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	return query
}

// scannedTime accepts the textual timestamps sqlite returns for aggregate
// columns as well as native time values
type scannedTime struct {
	time.Time
	Valid bool
}

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Scan implements sql.Scanner
func (t *scannedTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v, true
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("cannot scan %T into timestamp", src)
}

// Value implements driver.Valuer
func (t scannedTime) Value() (driver.Value, error) {
	if !t.Valid {
		return nil, nil
	}
	return t.Time, nil
}

func (t *scannedTime) parse(s string) error {
	for _, layout := range sqliteTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed, true
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", s)
}

func (t scannedTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
