package catalog

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"listquote/internal"
	"listquote/internal/logging"
)

const lastSyncKey = "catalog.last_sync"

// ProductStore is the persistence side of a catalog sync.
type ProductStore interface {
	UpsertProducts(ctx context.Context, products []internal.CatalogProduct) error
	SetMetadata(ctx context.Context, key, value string) error
}

type productFetcher interface {
	FetchAll(ctx context.Context) ([]internal.CatalogProduct, error)
}

type SyncService struct {
	store   ProductStore
	fetcher productFetcher
	logger  *zap.Logger
	now     func() time.Time
}

func NewSyncService(store ProductStore, client *Client, logger *zap.Logger) *SyncService {
	s := &SyncService{store: store, logger: logging.OrNop(logger), now: time.Now}
	if client != nil {
		s.fetcher = client
	}
	return s
}

// Sync pulls the whole storefront catalog and upserts it locally.
func (s *SyncService) Sync(ctx context.Context) (int, error) {
	if s.fetcher == nil {
		return 0, errors.New("catalog api client is not configured")
	}
	started := s.now()
	products, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		return 0, err
	}
	return s.persist(ctx, products, started, "api")
}

// Import upserts products read from a price list file.
func (s *SyncService) Import(ctx context.Context, path string) (int, error) {
	started := s.now()
	products, err := ImportXLSX(path)
	if err != nil {
		return 0, err
	}
	return s.persist(ctx, products, started, "xlsx")
}

func (s *SyncService) persist(ctx context.Context, products []internal.CatalogProduct, started time.Time, source string) (int, error) {
	if len(products) > 0 {
		if err := s.store.UpsertProducts(ctx, products); err != nil {
			return 0, err
		}
	}
	if err := s.store.SetMetadata(ctx, lastSyncKey, s.now().UTC().Format(time.RFC3339)); err != nil {
		return 0, err
	}
	s.logger.Info("catalog synced",
		zap.String("source", source),
		zap.Int("products", len(products)),
		zap.Duration("elapsed", s.now().Sub(started)),
	)
	return len(products), nil
}
