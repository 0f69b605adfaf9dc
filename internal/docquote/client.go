package docquote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"listquote/internal"
	"listquote/internal/config"
	"listquote/internal/logging"
)

const processPath = "/document-quote/process"

// Client calls a remote processing service. Failed calls are not retried;
// the user resubmits.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg config.Config, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.DocQuoteBaseURL), "/"),
		token:      strings.TrimSpace(cfg.DocQuoteToken),
		httpClient: &http.Client{Timeout: time.Duration(cfg.DocQuoteTimeoutMs) * time.Millisecond},
		logger:     logging.OrNop(logger),
	}
}

func (c *Client) Process(ctx context.Context, doc internal.Document) (internal.ProcessResponse, error) {
	if c.baseURL == "" {
		return internal.ProcessResponse{}, &DocumentProcessingError{Message: "processing service is not configured"}
	}

	body, contentType, err := encodeMultipart(doc)
	if err != nil {
		return internal.ProcessResponse{}, &DocumentProcessingError{Message: "could not encode document", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+processPath, body)
	if err != nil {
		return internal.ProcessResponse{}, &DocumentProcessingError{Message: "could not build request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("document processing request failed", zap.String("document", doc.Name), zap.Error(err))
		return internal.ProcessResponse{}, &DocumentProcessingError{Message: "could not reach the processing service", Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("document processed",
		zap.String("document", doc.Name),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return internal.ProcessResponse{}, &DocumentProcessingError{
			Status:  resp.StatusCode,
			Message: errorMessage(resp.StatusCode, raw),
		}
	}

	out, err := DecodeResponse(resp.Body)
	if err != nil {
		return internal.ProcessResponse{}, &DocumentProcessingError{
			Status:  resp.StatusCode,
			Message: "invalid response from the processing service",
			Err:     err,
		}
	}
	return out, nil
}

func encodeMultipart(doc internal.Document) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	contentType := doc.ContentType
	if contentType == "" {
		contentType = ContentType(doc.Name)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldName(doc), doc.Name))
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// errorMessage prefers the service's own message, then its error code.
func errorMessage(status int, raw []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(payload.Error); msg != "" {
			return msg
		}
	}
	if text := strings.TrimSpace(http.StatusText(status)); text != "" {
		return strings.ToLower(text)
	}
	return fmt.Sprintf("unexpected status %d", status)
}

// AsProcessingError wraps any error as a DocumentProcessingError, keeping an
// existing one intact.
func AsProcessingError(err error) *DocumentProcessingError {
	if err == nil {
		return nil
	}
	var procErr *DocumentProcessingError
	if errors.As(err, &procErr) {
		return procErr
	}
	return &DocumentProcessingError{Message: err.Error(), Err: err}
}
