// Package extract turns uploaded file bytes into text the model can read.
package extract

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/harunnryd/bluservice/internal/config"
	bluErrors "github.com/harunnryd/bluservice/internal/errors"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MimePDF         = "application/pdf"
	mimeOctetStream = "application/octet-stream"
)

var textTypes = map[string]bool{
	"application/json":   true,
	"application/xml":    true,
	"application/x-yaml": true,
	"application/yaml":   true,
}

var imageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
	"image/tiff": true,
	"image/bmp":  true,
}

// Document is the result of extracting one file. Images carry no text.
type Document struct {
	Text     string
	MimeType string
	Pages    int
}

func (d Document) IsImage() bool {
	return imageTypes[d.MimeType]
}

type Extractor struct {
	maxBytes int64
	maxPages int
}

func New(cfg config.ExtractConfig) *Extractor {
	e := &Extractor{maxBytes: cfg.MaxBytes, maxPages: cfg.MaxPages}
	if e.maxBytes <= 0 {
		e.maxBytes = config.DefaultExtractMaxBytes
	}
	if e.maxPages <= 0 {
		e.maxPages = config.DefaultExtractMaxPages
	}
	return e
}

// Text extracts the text of content. The declared MIME type wins unless it is empty
// or generic, in which case the type is sniffed from the bytes.
// Unsupported or unreadable input fails with ErrInvalidInput.
func (e *Extractor) Text(ctx context.Context, content []byte, mimeType string) (Document, error) {
	if len(content) == 0 {
		return Document{}, bluErrors.InvalidInput("file content is empty")
	}
	if int64(len(content)) > e.maxBytes {
		return Document{}, bluErrors.InvalidInput(fmt.Sprintf("file exceeds %d bytes", e.maxBytes))
	}
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	resolved := ResolveMimeType(content, mimeType)

	switch {
	case resolved == MimePDF:
		text, pages, err := pdfText(content, e.maxPages)
		if err != nil {
			return Document{}, bluErrors.InvalidInput(fmt.Sprintf("could not read PDF: %v", err))
		}
		return Document{Text: text, MimeType: resolved, Pages: pages}, nil

	case strings.HasPrefix(resolved, "text/") || textTypes[resolved]:
		if !utf8.Valid(content) {
			return Document{}, bluErrors.InvalidInput("text file is not valid UTF-8")
		}
		return Document{Text: string(content), MimeType: resolved}, nil

	case imageTypes[resolved]:
		return Document{MimeType: resolved}, nil

	default:
		return Document{}, bluErrors.InvalidInput(fmt.Sprintf("unsupported file type: %s", resolved))
	}
}

// ResolveMimeType normalizes the declared type and falls back to content sniffing.
func ResolveMimeType(content []byte, declared string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" {
		if parsed, _, err := mime.ParseMediaType(declared); err == nil {
			declared = parsed
		}
		declared = strings.ToLower(declared)
	}
	if declared != "" && declared != mimeOctetStream {
		return declared
	}

	detected := mimetype.Detect(content)
	for m := detected; m != nil; m = m.Parent() {
		base, _, err := mime.ParseMediaType(m.String())
		if err != nil {
			continue
		}
		if base == MimePDF || imageTypes[base] || strings.HasPrefix(base, "text/") || textTypes[base] {
			return base
		}
	}
	base, _, err := mime.ParseMediaType(detected.String())
	if err != nil {
		return mimeOctetStream
	}
	return base
}
