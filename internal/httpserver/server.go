package httpserver

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"listquote/internal"
	"listquote/internal/docquote"
	"listquote/internal/logging"
	"listquote/internal/reconcile"
)

const (
	// multipartOverhead leaves room for boundaries and part headers on top
	// of the document limit.
	multipartOverhead = 1 << 20
	maxRequestBytes   = docquote.MaxDocumentBytes + multipartOverhead

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

var documentFields = []string{"pdf", "image"}

// catalogSizer is implemented by processors that match against a local
// catalog.
type catalogSizer interface {
	CatalogSize() int
}

// Server exposes a Processor over the document processing contract.
type Server struct {
	processor reconcile.Processor
	logger    *zap.Logger
}

func New(processor reconcile.Processor, logger *zap.Logger) *Server {
	return &Server{processor: processor, logger: logging.OrNop(logger)}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/document-quote/process", s.handleProcess)
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if sizer, ok := s.processor.(catalogSizer); ok {
		body["products"] = sizer.CatalogSize()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	doc, err := readDocument(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "document_too_large", "file exceeds the 15 MB limit")
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "missing_document", err.Error())
		return
	}

	if err := docquote.ValidateUpload(doc); err != nil {
		status := http.StatusBadRequest
		var verr *docquote.ValidationError
		if errors.As(err, &verr) && verr.Field == docquote.FieldSize && len(doc.Data) > 0 {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(r.Context(), w, status, "invalid_document", err.Error())
		return
	}

	resp, err := s.processor.Process(r.Context(), doc)
	if err != nil {
		perr := docquote.AsProcessingError(err)
		s.logger.Warn("document processing failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("document", doc.Name),
			zap.Error(perr),
		)
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "processing_failed", perr.Message)
		return
	}
	if resp.Results == nil {
		resp.Results = []internal.LineItem{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// readDocument takes the first of the pdf or image form fields.
func readDocument(r *http.Request) (internal.Document, error) {
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		return internal.Document{}, err
	}
	for _, field := range documentFields {
		file, header, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return internal.Document{}, err
		}
		return documentFromPart(file, header)
	}
	return internal.Document{}, errors.New("multipart field pdf or image is required")
}

func documentFromPart(file multipart.File, header *multipart.FileHeader) (internal.Document, error) {
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return internal.Document{}, err
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = docquote.ContentType(header.Filename)
	}
	return internal.Document{Name: header.Filename, ContentType: contentType, Data: data}, nil
}
