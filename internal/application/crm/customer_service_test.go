package crm

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/minicrm/backend/internal/domain/crm"
	"github.com/minicrm/backend/internal/domain/shared"
)

func newTestCustomer(t *testing.T, email string) *crm.Customer {
	t.Helper()
	c, err := crm.NewCustomer("Test Customer", email, "")
	require.NoError(t, err)
	c.ClearDomainEvents()
	return c
}

func TestCustomerService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and publishes", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		pub := &recordingPublisher{}
		svc := NewCustomerService(repo, WithEventPublisher(pub))

		repo.On("ExistsByEmail", ctx, "ada@example.com").Return(false, nil)
		repo.On("Save", ctx, mock.AnythingOfType("*crm.Customer")).Return(nil)

		resp, err := svc.Create(ctx, CreateCustomerRequest{Name: "Ada", Email: "ada@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "Ada", resp.Name)
		assert.True(t, resp.IsActive)
		assert.Equal(t, []string{crm.EventTypeCustomerCreated}, pub.types())
		repo.AssertExpectations(t)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := NewCustomerService(repo)

		repo.On("ExistsByEmail", ctx, "ada@example.com").Return(true, nil)

		_, err := svc.Create(ctx, CreateCustomerRequest{Name: "Ada", Email: "ada@example.com"})
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("does not publish when save fails", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		pub := &recordingPublisher{}
		svc := NewCustomerService(repo, WithEventPublisher(pub))

		repo.On("ExistsByEmail", ctx, "ada@example.com").Return(false, nil)
		repo.On("Save", ctx, mock.Anything).Return(assert.AnError)

		_, err := svc.Create(ctx, CreateCustomerRequest{Name: "Ada", Email: "ada@example.com"})
		assert.ErrorIs(t, err, assert.AnError)
		assert.Empty(t, pub.types())
	})

	t.Run("flushes derived results when publish fails", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		pub := &recordingPublisher{err: assert.AnError}
		flusher := &countingFlusher{}
		svc := NewCustomerService(repo, WithEventPublisher(pub), WithPublishFailureFlush(flusher))

		repo.On("ExistsByEmail", ctx, "ada@example.com").Return(false, nil)
		repo.On("Save", ctx, mock.Anything).Return(nil)

		_, err := svc.Create(ctx, CreateCustomerRequest{Name: "Ada", Email: "ada@example.com"})
		require.NoError(t, err)
		assert.Equal(t, 1, flusher.flushes)
	})

	t.Run("delivered events do not flush", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		flusher := &countingFlusher{}
		svc := NewCustomerService(repo, WithEventPublisher(&recordingPublisher{}), WithPublishFailureFlush(flusher))

		repo.On("ExistsByEmail", ctx, "ada@example.com").Return(false, nil)
		repo.On("Save", ctx, mock.Anything).Return(nil)

		_, err := svc.Create(ctx, CreateCustomerRequest{Name: "Ada", Email: "ada@example.com"})
		require.NoError(t, err)
		assert.Zero(t, flusher.flushes)
	})
}

func TestCustomerService_List(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCustomerRepository)
	svc := NewCustomerService(repo)
	c := newTestCustomer(t, "ada@example.com")

	expected := crm.CustomerFilter{
		Filter:     shared.Filter{Page: 1, PageSize: 20, OrderDir: "desc", Search: "ada"},
		ActiveOnly: true,
	}
	repo.On("FindAll", ctx, expected).Return([]crm.Customer{*c}, int64(1), nil)

	items, total, err := svc.List(ctx, CustomerListFilter{Search: "ada", ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, c.ID, items[0].ID)
}

func TestCustomerService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("changes profile and email", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		pub := &recordingPublisher{}
		svc := NewCustomerService(repo, WithEventPublisher(pub))
		c := newTestCustomer(t, "old@example.com")

		repo.On("FindByID", ctx, c.ID).Return(c, nil)
		repo.On("FindByEmail", ctx, "new@example.com").Return(nil, shared.ErrNotFound)
		repo.On("Save", ctx, c).Return(nil)

		name, email := "Renamed", "new@example.com"
		resp, err := svc.Update(ctx, c.ID, UpdateCustomerRequest{Name: &name, Email: &email})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", resp.Name)
		assert.Equal(t, "new@example.com", resp.Email)
		assert.NotEmpty(t, pub.types())
		assert.Empty(t, c.GetDomainEvents())
	})

	t.Run("rejects email owned by another customer", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := NewCustomerService(repo)
		c := newTestCustomer(t, "old@example.com")
		other := newTestCustomer(t, "taken@example.com")

		repo.On("FindByID", ctx, c.ID).Return(c, nil)
		repo.On("FindByEmail", ctx, "taken@example.com").Return(other, nil)

		email := "taken@example.com"
		_, err := svc.Update(ctx, c.ID, UpdateCustomerRequest{Email: &email})
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("no-op update skips save", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := NewCustomerService(repo)
		c := newTestCustomer(t, "same@example.com")

		repo.On("FindByID", ctx, c.ID).Return(c, nil)

		active := true
		_, err := svc.SetActive(ctx, c.ID, active)
		require.NoError(t, err)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestCustomerService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes deletion", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		pub := &recordingPublisher{}
		svc := NewCustomerService(repo, WithEventPublisher(pub))
		c := newTestCustomer(t, "gone@example.com")

		repo.On("FindByID", ctx, c.ID).Return(c, nil)
		repo.On("Delete", ctx, c.ID).Return(nil)

		require.NoError(t, svc.Delete(ctx, c.ID))
		assert.Equal(t, []string{crm.EventTypeCustomerDeleted}, pub.types())
	})

	t.Run("customer with orders", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		pub := &recordingPublisher{}
		svc := NewCustomerService(repo, WithEventPublisher(pub))
		c := newTestCustomer(t, "busy@example.com")

		repo.On("FindByID", ctx, c.ID).Return(c, nil)
		repo.On("Delete", ctx, c.ID).Return(shared.ErrInvalidState)

		assert.ErrorIs(t, svc.Delete(ctx, c.ID), shared.ErrInvalidState)
		assert.Empty(t, pub.types())
	})

	t.Run("unknown customer", func(t *testing.T) {
		repo := new(MockCustomerRepository)
		svc := NewCustomerService(repo)
		id := uuid.New()

		repo.On("FindByID", ctx, id).Return(nil, shared.ErrNotFound)
		assert.ErrorIs(t, svc.Delete(ctx, id), shared.ErrNotFound)
	})
}
