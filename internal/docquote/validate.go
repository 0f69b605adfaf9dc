package docquote

import (
	"fmt"
	"path/filepath"
	"strings"

	"listquote/internal"
)

// MaxDocumentBytes is the upload limit enforced before any network call.
const MaxDocumentBytes = 15 << 20

var uploadTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

var intakeOnlyTypes = map[string]string{
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".txt":  "text/plain; charset=utf-8",
	".eml":  "message/rfc822",
}

// ValidateUpload accepts PDF, JPEG, PNG and WEBP documents up to 15 MiB.
func ValidateUpload(doc internal.Document) error {
	return validate(doc, false)
}

// ValidateIntake also accepts spreadsheets, plain text and raw e-mail, which
// only the local pipeline understands.
func ValidateIntake(doc internal.Document) error {
	return validate(doc, true)
}

func validate(doc internal.Document, intake bool) error {
	ext := Extension(doc.Name)
	_, ok := uploadTypes[ext]
	if !ok && intake {
		_, ok = intakeOnlyTypes[ext]
	}
	if !ok {
		if ext == "" {
			return &ValidationError{Field: FieldExtension, Reason: "file has no extension"}
		}
		return &ValidationError{Field: FieldExtension, Reason: fmt.Sprintf("unsupported format %q", ext)}
	}
	if len(doc.Data) == 0 {
		return &ValidationError{Field: FieldSize, Reason: "file is empty"}
	}
	if len(doc.Data) > MaxDocumentBytes {
		return &ValidationError{Field: FieldSize, Reason: fmt.Sprintf("file is %d bytes, limit is 15 MB", len(doc.Data))}
	}
	return nil
}

func Extension(name string) string {
	return strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
}

// ContentType infers the MIME type from the file name; unknown extensions
// map to application/octet-stream.
func ContentType(name string) string {
	ext := Extension(name)
	if ct, ok := uploadTypes[ext]; ok {
		return ct
	}
	if ct, ok := intakeOnlyTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// FieldName is the multipart field the processing service expects.
func FieldName(doc internal.Document) string {
	if IsPDF(doc) {
		return "pdf"
	}
	return "image"
}

func IsPDF(doc internal.Document) bool {
	return Extension(doc.Name) == ".pdf" || strings.HasPrefix(doc.ContentType, "application/pdf")
}

func IsImage(doc internal.Document) bool {
	switch Extension(doc.Name) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	}
	return strings.HasPrefix(doc.ContentType, "image/")
}
