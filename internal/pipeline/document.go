package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"listquote/internal"
	"listquote/internal/docquote"
)

// DocumentFromPath loads a file as an upload.
func DocumentFromPath(path string) (internal.Document, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return internal.Document{}, err
	}
	name := filepath.Base(path)
	return internal.Document{Name: name, ContentType: docquote.ContentType(name), Data: blob}, nil
}

// ExtractDocument dispatches on the file extension. Images are not handled
// here.
func ExtractDocument(doc internal.Document) ([]ExtractedLine, error) {
	switch docquote.Extension(doc.Name) {
	case ".pdf":
		return ExtractPDF(doc.Data)
	case ".xlsx":
		return ExtractXLSX(doc.Data)
	case ".txt":
		return ExtractText(string(doc.Data)), nil
	case ".eml":
		content, err := ExtractEmail(doc.Data)
		if err != nil {
			return nil, err
		}
		return content.Lines, nil
	default:
		return nil, fmt.Errorf("unsupported document type %q", docquote.Extension(doc.Name))
	}
}
