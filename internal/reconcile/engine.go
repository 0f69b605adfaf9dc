package reconcile

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"listquote/internal"
	"listquote/internal/docquote"
	"listquote/internal/logging"
)

// autoSelectMediumSimilarity is the similarity a medium confidence best
// candidate needs to be selected without user confirmation.
const autoSelectMediumSimilarity = 70

// selectionKey identifies a candidate within one line. The same product can
// be the answer for several lines, each selected independently.
type selectionKey struct {
	searchTerm  string
	candidateID string
}

// Engine holds one review session: the extracted lines of an upload and the
// candidates selected for the cart. It is safe for concurrent use; the
// processor runs without the lock held so Cancel can race with an upload.
type Engine struct {
	processor Processor
	validate  func(internal.Document) error
	logger    *zap.Logger
	newID     func() string

	mu        sync.Mutex
	state     State
	token     uint64
	sessionID string
	filter    Filter
	lines     []internal.LineItem
	known     map[selectionKey]struct{}
	// selected maps a key to the sequence number of the selection, which
	// orders commits first-selected-first.
	selected map[selectionKey]uint64
	seq      uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger; nil means no logging.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrNop(logger) }
}

// WithValidator replaces the upload check run before the processor is called.
func WithValidator(validate func(internal.Document) error) Option {
	return func(e *Engine) {
		if validate != nil {
			e.validate = validate
		}
	}
}

// New returns an idle engine that hands uploads to processor.
func New(processor Processor, opts ...Option) *Engine {
	e := &Engine{
		processor: processor,
		validate:  docquote.ValidateUpload,
		logger:    zap.NewNop(),
		newID:     uuid.NewString,
		filter:    FilterAll,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// ProcessDocument validates doc, hands it to the processor and opens a review
// session with auto-selection applied. A result that comes back after Cancel,
// or after a newer upload started, is dropped with ErrDiscarded.
func (e *Engine) ProcessDocument(ctx context.Context, doc internal.Document) error {
	e.mu.Lock()
	switch e.state {
	case StateProcessing:
		e.mu.Unlock()
		return ErrBusy
	case StateReviewing:
		e.mu.Unlock()
		return ErrReviewActive
	}
	if err := e.validate(doc); err != nil {
		e.mu.Unlock()
		return err
	}
	e.token++
	token := e.token
	e.state = StateProcessing
	e.mu.Unlock()

	e.logger.Debug("processing document", zap.String("document", doc.Name), zap.Int("bytes", len(doc.Data)))
	resp, err := e.process(ctx, doc)

	e.mu.Lock()
	defer e.mu.Unlock()

	if token != e.token || e.state != StateProcessing {
		e.logger.Info("discarding stale processing result", zap.String("document", doc.Name), zap.Uint64("token", token))
		return ErrDiscarded
	}
	if err != nil {
		e.reset()
		perr := docquote.AsProcessingError(err)
		e.logger.Warn("document processing failed", zap.String("document", doc.Name), zap.Error(perr))
		return perr
	}

	e.open(resp.Results)
	e.logger.Info("review session opened",
		zap.String("session", e.sessionID),
		zap.String("document", doc.Name),
		zap.Int("lines", len(e.lines)),
		zap.Int("autoSelected", len(e.selected)),
	)
	return nil
}

// process calls the processor and turns a panic into a processing error so
// the session can return to Idle.
func (e *Engine) process(ctx context.Context, doc internal.Document) (resp internal.ProcessResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("document processor panicked", zap.String("document", doc.Name), zap.Any("panic", r))
			resp = internal.ProcessResponse{}
			err = &docquote.DocumentProcessingError{Message: "unexpected processing failure", Err: fmt.Errorf("processor panic: %v", r)}
		}
	}()
	return e.processor.Process(ctx, doc)
}

// open installs normalized lines and runs auto-selection. Caller holds mu.
func (e *Engine) open(results []internal.LineItem) {
	e.lines = normalizeLines(results)
	e.known = map[selectionKey]struct{}{}
	e.selected = map[selectionKey]uint64{}
	e.seq = 0
	e.filter = FilterAll
	e.sessionID = e.newID()
	e.state = StateReviewing

	for _, line := range e.lines {
		for _, c := range line.Candidates {
			e.known[selectionKey{line.SearchTerm, c.ID}] = struct{}{}
		}
	}
	for _, line := range e.lines {
		if !shouldAutoSelect(line) {
			continue
		}
		key := selectionKey{line.SearchTerm, line.Candidates[0].ID}
		if _, already := e.selected[key]; already {
			continue
		}
		e.seq++
		e.selected[key] = e.seq
	}
}

func shouldAutoSelect(line internal.LineItem) bool {
	if !line.Matched || len(line.Candidates) == 0 {
		return false
	}
	switch line.Confidence {
	case internal.ConfidenceHigh:
		return true
	case internal.ConfidenceMedium:
		return line.Candidates[0].Similarity >= autoSelectMediumSimilarity
	default:
		return false
	}
}

// normalizeLines copies results so the session never aliases the processor's
// slices. Quantities are clamped to [1, internal.MaxQuantity], a line
// without candidates is unmatched, and repeated candidate ids within a line
// are dropped.
func normalizeLines(results []internal.LineItem) []internal.LineItem {
	lines := make([]internal.LineItem, 0, len(results))
	for _, r := range results {
		line := internal.LineItem{
			SearchTerm:        r.SearchTerm,
			RequestedQuantity: r.RequestedQuantity,
			Confidence:        r.Confidence,
			Candidates:        make([]internal.Candidate, 0, len(r.Candidates)),
		}
		if line.RequestedQuantity < 1 {
			line.RequestedQuantity = 1
		}
		if line.RequestedQuantity > internal.MaxQuantity {
			line.RequestedQuantity = internal.MaxQuantity
		}
		if !line.Confidence.Valid() {
			line.Confidence = internal.ConfidenceNone
		}
		seen := map[string]struct{}{}
		for _, c := range r.Candidates {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			line.Candidates = append(line.Candidates, c)
		}
		line.Matched = r.Matched && len(line.Candidates) > 0
		lines = append(lines, line)
	}
	return lines
}

// Toggle flips the selection of candidateID for searchTerm and reports
// whether it is now selected. A line may have several candidates selected.
func (e *Engine) Toggle(searchTerm, candidateID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReviewing {
		return false, ErrNotReviewing
	}
	key := selectionKey{searchTerm, candidateID}
	if _, ok := e.known[key]; !ok {
		return false, fmt.Errorf("%w: %q / %q", ErrUnknownCandidate, searchTerm, candidateID)
	}
	if _, ok := e.selected[key]; ok {
		delete(e.selected, key)
		return false, nil
	}
	e.seq++
	e.selected[key] = e.seq
	return true, nil
}

func (e *Engine) IsSelected(searchTerm, candidateID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.selected[selectionKey{searchTerm, candidateID}]
	return ok
}

// SetFilter changes which lines Review shows. Selections are untouched.
func (e *Engine) SetFilter(filter Filter) error {
	if !filter.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFilter, string(filter))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filter = filter
	return nil
}

func (e *Engine) Review() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	view := View{
		SessionID:     e.sessionID,
		State:         e.state.String(),
		Filter:        e.filter,
		Stats:         docquote.ComputeStats(e.lines),
		Lines:         []LineView{},
		SelectedCount: len(e.selected),
	}
	for _, line := range e.lines {
		if !e.filter.includes(line) {
			continue
		}
		lv := LineView{
			SearchTerm:        line.SearchTerm,
			RequestedQuantity: line.RequestedQuantity,
			Matched:           line.Matched,
			Confidence:        line.Confidence,
			Candidates:        make([]CandidateView, 0, len(line.Candidates)),
		}
		for _, c := range line.Candidates {
			_, selected := e.selected[selectionKey{line.SearchTerm, c.ID}]
			lv.Candidates = append(lv.Candidates, CandidateView{Candidate: c, Selected: selected})
		}
		view.Lines = append(view.Lines, lv)
	}
	return view
}

func (e *Engine) Preview() (Preview, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReviewing {
		return Preview{}, ErrNotReviewing
	}
	return e.consolidate(), nil
}

// Commit consolidates the selection into one addition per product, quantities
// summed across lines, and closes the session.
func (e *Engine) Commit() ([]internal.CartAddition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateReviewing {
		return nil, ErrNotReviewing
	}
	additions := e.consolidate().Additions()
	e.logger.Info("review session committed", zap.String("session", e.sessionID), zap.Int("products", len(additions)))
	e.reset()
	return additions, nil
}

// CommitTo commits and hands the additions to cart. The session is closed
// even when the cart fails; the additions are returned so the caller can
// retry the insert.
func (e *Engine) CommitTo(ctx context.Context, cart CartInserter) ([]internal.CartAddition, error) {
	additions, err := e.Commit()
	if err != nil {
		return nil, err
	}
	if len(additions) == 0 {
		return additions, nil
	}
	if err := cart.Add(ctx, additions); err != nil {
		return additions, fmt.Errorf("add to cart: %w", err)
	}
	return additions, nil
}

// Cancel drops the session and invalidates any upload still in flight.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateIdle {
		e.logger.Info("review session cancelled", zap.String("state", e.state.String()), zap.String("session", e.sessionID))
	}
	e.token++
	e.reset()
}

// reset returns to Idle. Caller holds mu.
func (e *Engine) reset() {
	e.state = StateIdle
	e.sessionID = ""
	e.filter = FilterAll
	e.lines = nil
	e.known = nil
	e.selected = nil
	e.seq = 0
}

// addQuantity sums quantities, saturating at internal.MaxQuantity.
func addQuantity(a, b int) int {
	if a > internal.MaxQuantity-b {
		return internal.MaxQuantity
	}
	return a + b
}

type consolidated struct {
	item     PreviewItem
	firstSeq uint64
}

// consolidate walks every line and candidate and sums requested quantities
// per selected product. Caller holds mu.
func (e *Engine) consolidate() Preview {
	byID := map[string]*consolidated{}
	order := make([]*consolidated, 0)
	for _, line := range e.lines {
		for _, c := range line.Candidates {
			seq, ok := e.selected[selectionKey{line.SearchTerm, c.ID}]
			if !ok {
				continue
			}
			entry, exists := byID[c.ID]
			if !exists {
				entry = &consolidated{
					item: PreviewItem{
						ProductID: c.ID,
						Name:      c.Name,
						UnitPrice: decimal.NewFromFloat(c.Price).Round(2),
						Stock:     c.Stock,
					},
					firstSeq: seq,
				}
				byID[c.ID] = entry
				order = append(order, entry)
			}
			entry.item.Quantity = addQuantity(entry.item.Quantity, line.RequestedQuantity)
			if seq < entry.firstSeq {
				entry.firstSeq = seq
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool { return order[i].firstSeq < order[j].firstSeq })

	preview := Preview{Items: make([]PreviewItem, 0, len(order)), Total: decimal.Zero}
	for _, entry := range order {
		item := entry.item
		item.Subtotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		item.Backorder = item.Quantity > item.Stock
		preview.Total = preview.Total.Add(item.Subtotal)
		preview.Items = append(preview.Items, item)
	}
	return preview
}
