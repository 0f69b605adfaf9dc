package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"listquote/internal"
)

type memoryStore struct {
	products []internal.CatalogProduct
	meta     map[string]string
}

func (m *memoryStore) UpsertProducts(_ context.Context, products []internal.CatalogProduct) error {
	m.products = append(m.products, products...)
	return nil
}

func (m *memoryStore) SetMetadata(_ context.Context, key, value string) error {
	if m.meta == nil {
		m.meta = map[string]string{}
	}
	m.meta[key] = value
	return nil
}

type fetcherFunc func(context.Context) ([]internal.CatalogProduct, error)

func (f fetcherFunc) FetchAll(ctx context.Context) ([]internal.CatalogProduct, error) {
	return f(ctx)
}

func TestSyncStoresProductsAndTimestamp(t *testing.T) {
	store := &memoryStore{}
	svc := NewSyncService(store, nil, nil)
	svc.fetcher = fetcherFunc(func(context.Context) ([]internal.CatalogProduct, error) {
		return []internal.CatalogProduct{{ID: "p1", Name: "Regla 30 cm"}}, nil
	})
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	n, err := svc.Sync(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, store.products, 1)
	require.Equal(t, "2026-03-01T12:00:00Z", store.meta[lastSyncKey])
}

func TestSyncPropagatesFetchError(t *testing.T) {
	store := &memoryStore{}
	svc := NewSyncService(store, nil, nil)
	svc.fetcher = fetcherFunc(func(context.Context) ([]internal.CatalogProduct, error) {
		return nil, errors.New("boom")
	})

	_, err := svc.Sync(context.Background())
	require.EqualError(t, err, "boom")
	require.Empty(t, store.meta)
}

func TestSyncWithoutClient(t *testing.T) {
	_, err := NewSyncService(&memoryStore{}, nil, nil).Sync(context.Background())
	require.Error(t, err)
}
