package pipeline

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"listquote/internal"
	"listquote/internal/catalog"
	"listquote/internal/config"
	"listquote/internal/docquote"
	"listquote/internal/logging"
)

// LocalProcessor serves the document processing contract in-process: text
// extraction followed by catalog matching.
type LocalProcessor struct {
	matcher *Matcher
	logger  *zap.Logger
}

func NewLocalProcessor(matcher *Matcher, logger *zap.Logger) *LocalProcessor {
	return &LocalProcessor{matcher: matcher, logger: logging.OrNop(logger)}
}

// ProductLister is the catalog source a matcher is built from.
type ProductLister interface {
	ListProducts(ctx context.Context) ([]internal.CatalogProduct, error)
}

// LoadMatcher builds a matcher over the stored catalog.
func LoadMatcher(ctx context.Context, products ProductLister, cfg config.Config) (*Matcher, error) {
	list, err := products.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return NewMatcher(ThresholdsFromConfig(cfg), catalog.BuildIndex(list)), nil
}

func (p *LocalProcessor) CatalogSize() int {
	return p.matcher.CatalogSize()
}

func (p *LocalProcessor) Process(ctx context.Context, doc internal.Document) (internal.ProcessResponse, error) {
	if docquote.IsImage(doc) {
		return internal.ProcessResponse{}, &docquote.DocumentProcessingError{
			Status:  http.StatusUnprocessableEntity,
			Message: "image OCR is only available from the remote processing service",
		}
	}

	started := time.Now()
	lines, err := ExtractDocument(doc)
	if err != nil {
		return internal.ProcessResponse{}, &docquote.DocumentProcessingError{
			Status:  http.StatusUnprocessableEntity,
			Message: "could not read the document",
			Err:     err,
		}
	}
	if docquote.IsPDF(doc) && len(lines) == 0 {
		return internal.ProcessResponse{}, &docquote.DocumentProcessingError{
			Status:  http.StatusUnprocessableEntity,
			Message: "no list lines found in the PDF text layer; scanned documents need the remote processing service",
		}
	}

	resp, err := p.MatchLines(ctx, lines)
	if err != nil {
		return internal.ProcessResponse{}, err
	}
	p.logger.Info("document processed locally",
		zap.String("document", doc.Name),
		zap.Int("lines", resp.Stats.Total),
		zap.Int("found", resp.Stats.Found),
		zap.Duration("elapsed", time.Since(started)),
	)
	return resp, nil
}

// MatchLines matches already extracted lines.
func (p *LocalProcessor) MatchLines(ctx context.Context, lines []ExtractedLine) (internal.ProcessResponse, error) {
	results := make([]internal.LineItem, 0, len(lines))
	for _, line := range NormalizeLines(lines) {
		if err := ctx.Err(); err != nil {
			return internal.ProcessResponse{}, err
		}
		results = append(results, p.matcher.Match(line))
	}
	return internal.ProcessResponse{Results: results, Stats: docquote.ComputeStats(results)}, nil
}
