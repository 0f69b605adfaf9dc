package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"listquote/internal"
	"listquote/internal/config"
	"listquote/internal/docquote"
	"listquote/internal/logging"
	"listquote/internal/reconcile"
	"listquote/internal/storage"
)

// IntakeService turns stored e-mails into draft quotes. Each list runs through
// a reconcile session that keeps only the auto-selected candidates.
type IntakeService struct {
	db     *storage.DB
	cfg    config.Config
	logger *zap.Logger
}

func NewIntakeService(db *storage.DB, cfg config.Config, logger *zap.Logger) *IntakeService {
	return &IntakeService{db: db, cfg: cfg, logger: logging.OrNop(logger)}
}

type IntakeResult struct {
	MessageID  int64
	Status     internal.MessageStatus
	Lines      int
	DraftID    string
	ExportPath string
}

type IntakeSummary struct {
	Processed int
	Skipped   int
	Failed    int
	Lines     int
}

func (s *IntakeService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (IntakeResult, error) {
	row, err := s.db.MustMessage(ctx, provider, messageID)
	if err != nil {
		return IntakeResult{}, err
	}
	processor, err := s.processor(ctx)
	if err != nil {
		return IntakeResult{}, err
	}
	return s.ProcessMessage(ctx, processor, row)
}

// ProcessPending handles fetched messages oldest first. A failing message is
// marked failed and the batch goes on.
func (s *IntakeService) ProcessPending(ctx context.Context, limit int, provider string) (IntakeSummary, error) {
	pending, err := s.db.ListMessagesByStatus(ctx, internal.MessageFetched, limit)
	if err != nil {
		return IntakeSummary{}, err
	}
	if len(pending) == 0 {
		return IntakeSummary{}, nil
	}
	processor, err := s.processor(ctx)
	if err != nil {
		return IntakeSummary{}, err
	}

	summary := IntakeSummary{}
	for _, row := range pending {
		if provider != "" && row.Provider != provider {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res, err := s.ProcessMessage(ctx, processor, row)
		if err != nil {
			summary.Failed++
			s.logger.Warn("message intake failed", zap.Int64("message", row.ID), zap.Error(err))
			continue
		}
		switch res.Status {
		case internal.MessageProcessed:
			summary.Processed++
			summary.Lines += res.Lines
		case internal.MessageSkipped:
			summary.Skipped++
		}
	}
	return summary, nil
}

func (s *IntakeService) processor(ctx context.Context) (*LocalProcessor, error) {
	matcher, err := LoadMatcher(ctx, s.db, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return NewLocalProcessor(matcher, s.logger), nil
}

func (s *IntakeService) ProcessMessage(ctx context.Context, processor *LocalProcessor, row internal.MessageRow) (IntakeResult, error) {
	res, err := s.processMessage(ctx, processor, row)
	if err != nil {
		if statusErr := s.db.UpdateMessageStatus(ctx, row.ID, internal.MessageFailed, err.Error()); statusErr != nil {
			s.logger.Error("could not mark message failed", zap.Int64("message", row.ID), zap.Error(statusErr))
		}
		return IntakeResult{MessageID: row.ID, Status: internal.MessageFailed}, err
	}
	return res, nil
}

func (s *IntakeService) processMessage(ctx context.Context, processor *LocalProcessor, row internal.MessageRow) (IntakeResult, error) {
	start := time.Now()
	raw, err := os.ReadFile(row.RawRef)
	if err != nil {
		return IntakeResult{}, err
	}

	content, err := ExtractEmail(raw)
	if err != nil {
		return IntakeResult{}, fmt.Errorf("parse message: %w", err)
	}
	extractedAt := time.Now()

	detect := DetectShoppingList(firstNonEmpty(content.Subject, row.Subject), content.Text, content.HTML, content.Attachments)
	if !detect.IsList || len(content.Lines) == 0 {
		if err := s.db.UpdateMessageStatus(ctx, row.ID, internal.MessageSkipped, ""); err != nil {
			return IntakeResult{}, err
		}
		s.recordRun(ctx, row.ID, start, extractedAt, map[string]int{"extracted": len(content.Lines)})
		s.logger.Info("message skipped", zap.Int64("message", row.ID), zap.Float64("score", detect.Score), zap.Int("lines", len(content.Lines)))
		return IntakeResult{MessageID: row.ID, Status: internal.MessageSkipped}, nil
	}

	engine := reconcile.New(
		reconcile.ProcessorFunc(func(ctx context.Context, _ internal.Document) (internal.ProcessResponse, error) {
			return processor.MatchLines(ctx, content.Lines)
		}),
		reconcile.WithValidator(docquote.ValidateIntake),
		reconcile.WithLogger(s.logger),
	)
	doc := internal.Document{Name: fmt.Sprintf("message-%d.eml", row.ID), ContentType: "message/rfc822", Data: raw}
	if err := engine.ProcessDocument(ctx, doc); err != nil {
		return IntakeResult{}, err
	}

	view := engine.Review()
	preview, err := engine.Preview()
	if err != nil {
		return IntakeResult{}, err
	}
	additions, err := engine.Commit()
	if err != nil {
		return IntakeResult{}, err
	}

	draft := internal.DraftQuote{
		ID:        uuid.NewString(),
		MessageID: row.ID,
		SessionID: view.SessionID,
		Items:     additions,
		Total:     preview.Total.StringFixed(2),
	}
	exportPath := ""
	if s.cfg.MailListenerAutoExport {
		exportPath = filepath.Join(s.cfg.OutputDir, "drafts", fmt.Sprintf("message-%d-%s.xlsx", row.ID, draft.ID[:8]))
		if err := ExportReviewXLSX(view, preview, exportPath); err != nil {
			return IntakeResult{}, fmt.Errorf("export draft: %w", err)
		}
	}
	if err := s.db.SaveDraftQuote(ctx, draft, exportPath); err != nil {
		return IntakeResult{}, err
	}
	if err := s.db.UpdateMessageStatus(ctx, row.ID, internal.MessageProcessed, ""); err != nil {
		return IntakeResult{}, err
	}

	s.recordRun(ctx, row.ID, start, extractedAt, map[string]int{
		"extracted":    view.Stats.Total,
		"found":        view.Stats.Found,
		"notFound":     view.Stats.NotFound,
		"autoSelected": view.SelectedCount,
		"products":     len(additions),
	})
	s.logger.Info("draft quote created",
		zap.Int64("message", row.ID),
		zap.String("draft", draft.ID),
		zap.Int("lines", view.Stats.Total),
		zap.Int("products", len(additions)),
		zap.String("total", draft.Total),
	)

	return IntakeResult{
		MessageID:  row.ID,
		Status:     internal.MessageProcessed,
		Lines:      view.Stats.Total,
		DraftID:    draft.ID,
		ExportPath: exportPath,
	}, nil
}

func (s *IntakeService) recordRun(ctx context.Context, messageID int64, start, extractedAt time.Time, counts map[string]int) {
	timings := map[string]float64{
		"extractMs": float64(extractedAt.Sub(start).Milliseconds()),
		"totalMs":   float64(time.Since(start).Milliseconds()),
	}
	if err := s.db.InsertRun(ctx, uuid.NewString(), messageID, timings, counts); err != nil {
		s.logger.Warn("could not record run", zap.Int64("message", messageID), zap.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
