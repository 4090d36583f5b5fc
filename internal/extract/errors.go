package extract

import "fmt"

// DecodeError reports a text upload that is not valid UTF-8.
type DecodeError struct {
	Filename string
	Err      error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extract: decode %q", e.Filename)
	}
	return fmt.Sprintf("extract: decode %q: %v", e.Filename, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Kind classifies an ExtractionError.
type Kind string

const (
	// KindUnreadable is a document the parser refused to open, typically a
	// corrupt or encrypted PDF.
	KindUnreadable Kind = "unreadable"
	// KindUnexpected is any other fault raised while reading pages.
	KindUnexpected Kind = "unexpected"
	// KindUnsupported is an upload whose media type has no extractor.
	KindUnsupported Kind = "unsupported"
)

// ExtractionError reports a document whose text could not be extracted.
type ExtractionError struct {
	Kind      Kind
	MediaType string
	Err       error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extract: %s %s", e.Kind, e.MediaType)
	}
	return fmt.Sprintf("extract: %s %s: %v", e.Kind, e.MediaType, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
