package internal

import "math"

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceNone:
		return true
	default:
		return false
	}
}

// Candidate is a catalog product proposed for one extracted line.
// Similarity is in [0,100].
type Candidate struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Brand      *string `json:"brand,omitempty"`
	Price      float64 `json:"price"`
	Stock      int     `json:"stock"`
	Image      *string `json:"image,omitempty"`
	Similarity float64 `json:"similarity"`
}

// LineItem is one line extracted from an uploaded document. Candidates are
// ranked best-first.
// MaxQuantity caps requested and consolidated quantities.
const MaxQuantity = math.MaxInt32

type LineItem struct {
	SearchTerm        string      `json:"searchTerm"`
	RequestedQuantity int         `json:"requestedQuantity"`
	Matched           bool        `json:"matched"`
	Confidence        Confidence  `json:"confidence"`
	Candidates        []Candidate `json:"candidates"`
}

type ProcessStats struct {
	Total            int     `json:"total"`
	Found            int     `json:"found"`
	NotFound         int     `json:"notFound"`
	HighConfidence   int     `json:"highConfidence"`
	MediumConfidence int     `json:"mediumConfidence"`
	SuccessRate      float64 `json:"successRate"`
}

type ProcessResponse struct {
	Results []LineItem   `json:"results"`
	Stats   ProcessStats `json:"stats"`
}

type CartAddition struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

type CatalogProduct struct {
	ID        string
	SKU       *string
	Name      string
	Brand     *string
	Category  *string
	Price     float64
	Stock     int
	Image     *string
	UpdatedAt *string
	RawJSON   string
}

func (p CatalogProduct) Candidate(similarity float64) Candidate {
	return Candidate{
		ID:         p.ID,
		Name:       p.Name,
		Brand:      p.Brand,
		Price:      p.Price,
		Stock:      p.Stock,
		Image:      p.Image,
		Similarity: similarity,
	}
}

type InboundMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type MessageStatus string

const (
	MessageFetched   MessageStatus = "fetched"
	MessageProcessed MessageStatus = "processed"
	MessageSkipped   MessageStatus = "skipped"
	MessageFailed    MessageStatus = "failed"
)

type MessageRow struct {
	ID         int64
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     MessageStatus
	RawRef     string
}

type DraftQuote struct {
	ID        string
	MessageID int64
	SessionID string
	Items     []CartAddition
	Total     string
	CreatedAt string
}
