package connectors

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"listquote/internal/logging"
	"listquote/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
	logger    *zap.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, logger *zap.Logger) *FetchService {
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		logger:    logging.OrNop(logger),
	}
}

// FetchAndStore pulls up to max messages from label. Messages already stored
// keep their status, so re-fetching never re-opens a processed message.
func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch %s: %w", label, err)
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		row, err := s.store.Store(ctx, msg)
		if err != nil {
			return res, fmt.Errorf("store message %s: %w", msg.MessageID, err)
		}
		res.Stored++
		s.logger.Debug("message stored",
			zap.Int64("id", row.ID),
			zap.String("provider", row.Provider),
			zap.String("status", string(row.Status)),
		)
	}
	s.logger.Info("mailbox fetched", zap.String("label", label), zap.Int("fetched", res.Fetched), zap.Int("stored", res.Stored))
	return res, nil
}
