package docquote

import "fmt"

const (
	FieldExtension = "extension"
	FieldSize      = "size"
)

// ValidationError rejects a document before it is sent anywhere.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid document %s: %s", e.Field, e.Reason)
}

// DocumentProcessingError is the single failure surfaced for a processing
// attempt: transport errors, non-2xx answers and unreadable responses.
// Status is 0 when no HTTP response was received.
type DocumentProcessingError struct {
	Status  int
	Message string
	Err     error
}

func (e *DocumentProcessingError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("document processing failed (status %d): %s", e.Status, e.Message)
	}
	return "document processing failed: " + e.Message
}

func (e *DocumentProcessingError) Unwrap() error {
	return e.Err
}
