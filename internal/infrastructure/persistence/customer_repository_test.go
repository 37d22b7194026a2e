package persistence

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minicrm/backend/internal/domain/crm"
	"github.com/minicrm/backend/internal/domain/shared"
)

func TestGormCustomerRepository_FindByID(t *testing.T) {
	f := newFixture(t)
	saved := f.customer(t, "Ada Lovelace", "Ada@Example.com")

	t.Run("finds existing customer", func(t *testing.T) {
		found, err := f.customers.FindByID(t.Context(), saved.ID)
		require.NoError(t, err)
		assert.Equal(t, saved.ID, found.ID)
		assert.Equal(t, "Ada Lovelace", found.Name)
		assert.Equal(t, "ada@example.com", found.Email)
		assert.True(t, found.IsActive)
		assert.Empty(t, found.GetDomainEvents())
	})

	t.Run("returns not found for unknown id", func(t *testing.T) {
		_, err := f.customers.FindByID(t.Context(), uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormCustomerRepository_Email(t *testing.T) {
	f := newFixture(t)
	saved := f.customer(t, "Grace Hopper", "grace@example.com")

	found, err := f.customers.FindByEmail(t.Context(), "  GRACE@example.com ")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, found.ID)

	exists, err := f.customers.ExistsByEmail(t.Context(), "grace@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = f.customers.ExistsByEmail(t.Context(), "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = f.customers.FindByEmail(t.Context(), "nobody@example.com")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormCustomerRepository_SaveDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "First", "same@example.com")

	dup, err := crm.NewCustomer("Second", "same@example.com", "")
	require.NoError(t, err)

	err = f.customers.Save(t.Context(), dup)
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestGormCustomerRepository_SavePersistsInactive(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "Paused", "paused@example.com")

	c.SetActive(false)
	require.NoError(t, f.customers.Save(t.Context(), c))

	found, err := f.customers.FindByID(t.Context(), c.ID)
	require.NoError(t, err)
	assert.False(t, found.IsActive)

	active, err := f.customers.CountActive(t.Context())
	require.NoError(t, err)
	assert.Zero(t, active)

	total, err := f.customers.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestGormCustomerRepository_FindAll(t *testing.T) {
	f := newFixture(t)
	f.customer(t, "Alice Smith", "alice@example.com")
	f.customer(t, "Bob Jones", "bob@example.com")
	inactive := f.customer(t, "Carol Smith", "carol@example.com")
	inactive.SetActive(false)
	require.NoError(t, f.customers.Save(t.Context(), inactive))

	t.Run("searches name case-insensitively", func(t *testing.T) {
		filter := crm.CustomerFilter{Filter: shared.Filter{Search: "SMITH", OrderBy: "name", OrderDir: "asc"}}
		customers, total, err := f.customers.FindAll(t.Context(), filter)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, customers, 2)
		assert.Equal(t, "Alice Smith", customers[0].Name)
		assert.Equal(t, "Carol Smith", customers[1].Name)
	})

	t.Run("active only", func(t *testing.T) {
		filter := crm.CustomerFilter{Filter: shared.Filter{Search: "smith"}, ActiveOnly: true}
		customers, total, err := f.customers.FindAll(t.Context(), filter)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, customers, 1)
		assert.Equal(t, "Alice Smith", customers[0].Name)
	})

	t.Run("paginates with total", func(t *testing.T) {
		filter := crm.CustomerFilter{Filter: shared.Filter{Page: 2, PageSize: 2, OrderBy: "email", OrderDir: "asc"}}
		customers, total, err := f.customers.FindAll(t.Context(), filter)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, customers, 1)
		assert.Equal(t, "carol@example.com", customers[0].Email)
	})

	t.Run("unknown sort field falls back", func(t *testing.T) {
		filter := crm.CustomerFilter{Filter: shared.Filter{OrderBy: "email; DROP TABLE customers"}}
		_, total, err := f.customers.FindAll(t.Context(), filter)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})
}

func TestGormCustomerRepository_Delete(t *testing.T) {
	f := newFixture(t)

	t.Run("deletes customer without orders", func(t *testing.T) {
		c := f.customer(t, "Solo", "solo@example.com")
		require.NoError(t, f.customers.Delete(t.Context(), c.ID))

		_, err := f.customers.FindByID(t.Context(), c.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("refuses customer with orders", func(t *testing.T) {
		c := f.customer(t, "Buyer", "buyer@example.com")
		f.order(t, c.ID, nil, "10.00", crm.OrderStatusCompleted, time.Now())

		err := f.customers.Delete(t.Context(), c.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidState)

		_, err = f.customers.FindByID(t.Context(), c.ID)
		assert.NoError(t, err)
	})

	t.Run("returns not found for unknown id", func(t *testing.T) {
		err := f.customers.Delete(t.Context(), uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormCustomerRepository_DeleteQueries(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t, false)
	defer mockDB.Close()
	repo := NewGormCustomerRepository(db.DB)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "orders" WHERE customer_id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM "customers" WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(t.Context(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}
