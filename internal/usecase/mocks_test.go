package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/domain/model"
	infraRepo "storefront/internal/infra/repository"
	repo "storefront/internal/repository"
	"storefront/internal/store"
	"storefront/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// Mocks
// =====================

type ProductRepoMock struct{ mock.Mock }

func (m *ProductRepoMock) List(ctx context.Context, q repo.ProductListQuery) ([]model.Product, error) {
	args := m.Called(ctx, q)
	items, _ := args.Get(0).([]model.Product)
	return items, args.Error(1)
}

func (m *ProductRepoMock) FindByID(ctx context.Context, id model.ProductID) (model.Product, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(model.Product)
	return p, args.Error(1)
}

type fixedIDGen struct{ id string }

func (g fixedIDGen) NewID() string { return g.id }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// =====================
// helpers
// =====================

func tee() model.Product {
	return model.Product{
		ID:     "1",
		Name:   "Tee",
		Price:  decimal.RequireFromString("39.90"),
		Sizes:  []string{"s", "m", "l"},
		Colors: []string{"gray", "green"},
		Images: map[string]string{"gray": "/1g.png", "green": "/1gr.png"},
	}
}

func newHydratedStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(context.Background(), infraRepo.NewMemoryKVStore())
	select {
	case <-s.Hydrated():
	case <-time.After(2 * time.Second):
		t.Fatal("store did not hydrate")
	}
	return s
}

func assertHTTPError(t *testing.T, err error, status int, msg string) {
	t.Helper()
	he, ok := usecase.AsHTTPError(err)
	if !assert.True(t, ok, "expected HTTPError, got %v", err) {
		return
	}
	assert.Equal(t, status, he.Status)
	assert.Equal(t, msg, he.Message)
}

var errDB = errors.New("db down")
