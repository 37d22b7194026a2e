package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/minicrm/backend/internal/domain/crm"
)

// newSQLiteDB opens a migrated in-memory database. A single connection keeps
// every query on the same in-memory schema.
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

type fixture struct {
	customers *GormCustomerRepository
	campaigns *GormCampaignRepository
	orders    *GormOrderRepository
}

func newFixture(t *testing.T) fixture {
	db := newSQLiteDB(t)
	return fixture{
		customers: NewGormCustomerRepository(db),
		campaigns: NewGormCampaignRepository(db),
		orders:    NewGormOrderRepository(db),
	}
}

func (f fixture) customer(t *testing.T, name, email string) *crm.Customer {
	t.Helper()
	c, err := crm.NewCustomer(name, email, "")
	require.NoError(t, err)
	require.NoError(t, f.customers.Save(t.Context(), c))
	return c
}

func (f fixture) campaign(t *testing.T, name string) *crm.Campaign {
	t.Helper()
	c, err := crm.NewCampaign(crm.CampaignInput{
		Name:      name,
		CreatedBy: "tester",
		Budget:    decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	require.NoError(t, f.campaigns.Save(t.Context(), c))
	return c
}

func (f fixture) order(t *testing.T, customerID uuid.UUID, campaignID *uuid.UUID, amount string, status crm.OrderStatus, at time.Time) *crm.Order {
	t.Helper()
	o, err := crm.NewOrder(customerID, campaignID, decimal.RequireFromString(amount), status, "books", at)
	require.NoError(t, err)
	require.NoError(t, f.orders.Save(t.Context(), o))
	return o
}
