package listener

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"listquote/internal/config"
	"listquote/internal/connectors"
	"listquote/internal/logging"
	"listquote/internal/pipeline"
	"listquote/internal/storage"
)

const minInterval = time.Second

type connectorFactory func(ctx context.Context, provider string, cfg config.Config) (connectors.MailConnector, error)

// Service polls a mailbox and turns every new list into a draft quote.
type Service struct {
	db           *storage.DB
	cfg          config.Config
	logger       *zap.Logger
	newConnector connectorFactory
}

type CycleResult struct {
	Provider string
	Fetched  int
	Stored   int
	Intake   pipeline.IntakeSummary
}

func NewService(db *storage.DB, cfg config.Config, logger *zap.Logger) *Service {
	return &Service{db: db, cfg: cfg, logger: logging.OrNop(logger), newConnector: connectors.New}
}

// Run executes a cycle right away and then every configured interval until
// ctx is done. Cycle errors are logged and do not stop the loop.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval < minInterval {
		interval = minInterval
	}
	s.logger.Info("mail listener started",
		zap.String("provider", s.provider()),
		zap.String("label", s.cfg.MailListenerLabel),
		zap.Duration("interval", interval),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("mail listener stopped")
			return nil
		case <-timer.C:
		}
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("listener cycle failed", zap.Error(err))
		}
		timer.Reset(interval)
	}
}

// RunOnce fetches new messages and processes the pending ones of the
// configured provider.
func (s *Service) RunOnce(ctx context.Context) (CycleResult, error) {
	provider := s.provider()
	res := CycleResult{Provider: provider}

	conn, err := s.newConnector(ctx, provider, s.cfg)
	if err != nil {
		return res, err
	}
	fetched, err := connectors.NewFetchService(s.db, s.cfg.RawMailDir, conn, s.logger).
		FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return res, err
	}
	res.Fetched, res.Stored = fetched.Fetched, fetched.Stored

	summary, err := pipeline.NewIntakeService(s.db, s.cfg, s.logger).
		ProcessPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return res, err
	}
	res.Intake = summary

	s.logger.Info("listener cycle done",
		zap.String("provider", provider),
		zap.Int("fetched", res.Fetched),
		zap.Int("stored", res.Stored),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return res, nil
}

func (s *Service) provider() string {
	return strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
}
