package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"listquote/internal"
	"listquote/internal/config"
	"listquote/internal/logging"
	"listquote/internal/util"
)

const maxAttempts = 5

// Client pulls the product catalog from the storefront REST API.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
	logger     *zap.Logger
}

type pagePayload struct {
	Products   []map[string]any `json:"products"`
	Data       []map[string]any `json:"data"`
	TotalPages *int             `json:"totalPages"`
}

func NewClient(cfg config.Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.CatalogTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.CatalogRateLimitRPS),
		logger:     logging.OrNop(logger),
	}
}

// FetchAll walks every page of /products. Paging stops at totalPages when the
// API reports it, otherwise at the first short page.
func (c *Client) FetchAll(ctx context.Context) ([]internal.CatalogProduct, error) {
	limit := c.cfg.CatalogPageSize
	if limit <= 0 {
		limit = 200
	}

	all := make([]internal.CatalogProduct, 0)
	seen := map[string]struct{}{}
	for page := 1; ; page++ {
		body, err := c.fetchJSON(ctx, "products", map[string]string{
			"page":  strconv.Itoa(page),
			"limit": strconv.Itoa(limit),
		})
		if err != nil {
			return nil, err
		}

		var payload pagePayload
		if err := json.Unmarshal(body, &payload); err != nil {
			var bare []map[string]any
			if errBare := json.Unmarshal(body, &bare); errBare != nil {
				return nil, fmt.Errorf("decode catalog page %d: %w", page, err)
			}
			payload.Products = bare
		}
		rows := payload.Products
		if len(rows) == 0 {
			rows = payload.Data
		}

		fresh := 0
		for _, raw := range rows {
			product, err := ToCatalogProduct(raw)
			if err != nil {
				c.logger.Debug("skipping catalog row", zap.Int("page", page), zap.Error(err))
				continue
			}
			if _, dup := seen[product.ID]; dup {
				continue
			}
			seen[product.ID] = struct{}{}
			all = append(all, product)
			fresh++
		}

		if payload.TotalPages != nil && page >= *payload.TotalPages {
			break
		}
		// A page of repeats means the API ignores paging.
		if len(rows) < limit || fresh == 0 {
			break
		}
	}

	return all, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	base := strings.TrimSpace(c.cfg.CatalogAPIBaseURL)
	if base == "" {
		return nil, errors.New("missing CATALOG_API_BASE_URL")
	}

	u, err := url.Parse(strings.TrimRight(base, "/") + "/" + endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		if token := strings.TrimSpace(c.cfg.CatalogAPIToken); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				lastErr = fmt.Errorf("catalog status %d", resp.StatusCode)
				c.logger.Warn("catalog request retry", zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt))
				if err := sleepBackoff(ctx, attempt); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("catalog api error: status=%d body=%s", resp.StatusCode, truncate(string(body), 512))
		}
		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("catalog request failed")
	}
	return nil, lastErr
}

func sleepBackoff(ctx context.Context, attempt int) error {
	backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// ToCatalogProduct maps a storefront product document. Both English and
// Spanish field names are accepted.
func ToCatalogProduct(raw map[string]any) (internal.CatalogProduct, error) {
	name := firstString(raw, "name", "nombre", "title")
	if name == "" {
		return internal.CatalogProduct{}, errors.New("empty name")
	}
	id := firstID(raw, "id", "_id", "productId")
	if id == "" {
		return internal.CatalogProduct{}, errors.New("missing id")
	}

	rawJSON, _ := json.Marshal(raw)
	product := internal.CatalogProduct{
		ID:      id,
		Name:    name,
		RawJSON: string(rawJSON),
	}
	product.SKU = optional(firstString(raw, "sku", "codigo", "code"))
	product.Brand = optional(firstString(raw, "brand", "marca"))
	product.Category = optional(firstString(raw, "category", "categoria"))
	product.Image = optional(firstString(raw, "image", "imagen", "imageUrl"))
	product.UpdatedAt = optional(firstString(raw, "updatedAt"))
	if price, ok := toFloat(firstValue(raw, "price", "precio")); ok && price >= 0 {
		product.Price = price
	}
	if stock, ok := toFloat(firstValue(raw, "stock", "existencias")); ok && stock >= 0 {
		product.Stock = int(stock)
	}
	return product, nil
}

func firstValue(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstID(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		switch t := raw[k].(type) {
		case string:
			if strings.TrimSpace(t) != "" {
				return strings.TrimSpace(t)
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case json.Number:
			return t.String()
		}
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t), ",", "."), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return util.StringPtr(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
