package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"listquote/internal"
)

// Processor turns an uploaded document into extracted line items with
// ranked catalog candidates.
type Processor interface {
	Process(ctx context.Context, doc internal.Document) (internal.ProcessResponse, error)
}

type ProcessorFunc func(ctx context.Context, doc internal.Document) (internal.ProcessResponse, error)

func (f ProcessorFunc) Process(ctx context.Context, doc internal.Document) (internal.ProcessResponse, error) {
	return f(ctx, doc)
}

// CartInserter receives committed additions. Merging with an existing cart is
// its business.
type CartInserter interface {
	Add(ctx context.Context, items []internal.CartAddition) error
}

type State int

const (
	StateIdle State = iota
	StateProcessing
	StateReviewing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateReviewing:
		return "reviewing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Filter string

const (
	FilterAll       Filter = "all"
	FilterMatched   Filter = "matched"
	FilterUnmatched Filter = "unmatched"
)

func (f Filter) Valid() bool {
	switch f {
	case FilterAll, FilterMatched, FilterUnmatched:
		return true
	default:
		return false
	}
}

func ParseFilter(s string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FilterAll, nil
	}
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilter, s)
	}
	return f, nil
}

func (f Filter) includes(line internal.LineItem) bool {
	switch f {
	case FilterMatched:
		return line.Matched
	case FilterUnmatched:
		return !line.Matched
	default:
		return true
	}
}

// View is a snapshot of the review session under the current filter.
type View struct {
	SessionID     string                `json:"sessionId"`
	State         string                `json:"state"`
	Filter        Filter                `json:"filter"`
	Stats         internal.ProcessStats `json:"stats"`
	Lines         []LineView            `json:"lines"`
	SelectedCount int                   `json:"selectedCount"`
}

type LineView struct {
	SearchTerm        string              `json:"searchTerm"`
	RequestedQuantity int                 `json:"requestedQuantity"`
	Matched           bool                `json:"matched"`
	Confidence        internal.Confidence `json:"confidence"`
	Candidates        []CandidateView     `json:"candidates"`
}

type CandidateView struct {
	internal.Candidate
	Selected bool `json:"selected"`
}

// Preview is what a commit would add to the cart right now.
type Preview struct {
	Items []PreviewItem   `json:"items"`
	Total decimal.Decimal `json:"total"`
}

type PreviewItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Stock     int             `json:"stock"`
	// Backorder is set when more units are requested than are in stock.
	Backorder bool `json:"backorder"`
}

func (p Preview) Additions() []internal.CartAddition {
	out := make([]internal.CartAddition, 0, len(p.Items))
	for _, item := range p.Items {
		out = append(out, internal.CartAddition{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}
