package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/harunnryd/bluservice/internal/agent"
	bluErrors "github.com/harunnryd/bluservice/internal/errors"
	"github.com/harunnryd/bluservice/internal/extract"
	"github.com/harunnryd/bluservice/internal/logger"
	"github.com/harunnryd/bluservice/internal/storage"
)

// Extractor turns uploaded bytes into text.
type Extractor interface {
	Text(ctx context.Context, content []byte, mimeType string) (extract.Document, error)
}

type documentPreparer struct {
	extractor Extractor
	blobs     storage.Blob
}

// prepare extracts the attached file once and, when blob storage is configured,
// uploads it so tools can refer to it by document id. A nil file yields a nil context.
func (p *documentPreparer) prepare(ctx context.Context, file *FilePayload) (*agent.DocumentContext, error) {
	if file == nil {
		return nil, nil
	}
	if len(file.Content) == 0 {
		return nil, bluErrors.InvalidInput("file content is missing")
	}

	doc, err := p.extractor.Text(ctx, file.Content, file.Type)
	if err != nil {
		return nil, err
	}
	if doc.IsImage() && p.blobs == nil {
		return nil, bluErrors.InvalidInput("image files require document storage to be configured")
	}

	dc := &agent.DocumentContext{
		Text:     doc.Text,
		MimeType: doc.MimeType,
		Filename: strings.TrimSpace(file.Name),
	}

	if p.blobs != nil {
		key, err := p.blobs.Put(ctx, file.Content, storage.PutOptions{Filename: dc.Filename, MimeType: doc.MimeType})
		if err != nil {
			return nil, bluErrors.Wrap(err, "store uploaded document")
		}
		dc.DocumentID = key
		slog.Info("Document stored", append([]any{"document_id", key, "mime_type", doc.MimeType, "bytes", len(file.Content)}, logger.Attrs(ctx)...)...)
	}

	return dc, nil
}
