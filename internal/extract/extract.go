// Package extract turns uploaded documents into plain text.
package extract

import (
	"context"
	"errors"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	TypeText = "text/plain"
	TypePDF  = "application/pdf"
)

var errInvalidUTF8 = errors.New("invalid UTF-8 byte sequence")

// Upload is a file received from a form or an API payload.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Extractor dispatches uploads to a text or PDF reader by media type.
type Extractor struct {
	openPDF func(data []byte) (pageSource, error)
}

func New() *Extractor {
	return &Extractor{openPDF: openPDF}
}

// MediaType resolves the declared content type of an upload, ignoring
// parameters. Missing or generic types fall back to the file extension.
func MediaType(up Upload) string {
	mediaType, _, err := mime.ParseMediaType(up.ContentType)
	if err == nil && mediaType != "" && mediaType != "application/octet-stream" {
		return mediaType
	}
	switch strings.ToLower(filepath.Ext(up.Filename)) {
	case ".txt":
		return TypeText
	case ".pdf":
		return TypePDF
	}
	if err != nil {
		return strings.TrimSpace(up.ContentType)
	}
	return mediaType
}

// Extract returns the text of up. Failures are reported as *DecodeError or
// *ExtractionError and always come with an empty string.
func (e *Extractor) Extract(ctx context.Context, up Upload) (string, error) {
	mediaType := MediaType(up)
	switch mediaType {
	case TypeText:
		return decodeText(up)
	case TypePDF:
		return e.extractPDF(ctx, up.Data)
	default:
		return "", &ExtractionError{Kind: KindUnsupported, MediaType: mediaType}
	}
}

func decodeText(up Upload) (string, error) {
	if !utf8.Valid(up.Data) {
		return "", &DecodeError{Filename: up.Filename, Err: errInvalidUTF8}
	}
	return strings.TrimPrefix(string(up.Data), "\ufeff"), nil
}
