package usecase

import (
	"errors"
	"fmt"
	"strings"

	"chatsum/internal/extract"
)

const (
	summarizePrefix = "summarize: "

	msgProvideInput    = "Please provide some text or upload a file."
	msgNoTextFound     = "No text found in the provided input. Please check your file or input."
	msgDecodeError     = "Error decoding text file. Please ensure it's UTF-8 encoded."
	msgPDFUnreadable   = "Error reading PDF file. It might be corrupted or encrypted."
	msgPDFUnexpected   = "Unexpected error processing PDF: %v"
	msgUnsupportedFile = "Unsupported file type %q. Please upload a .txt or .pdf file."
	msgFileUnexpected  = "Unexpected error processing file: %v"
	msgGenerationError = "Error generating summary: %v"
)

func buildPrompt(truncated string) string {
	return summarizePrefix + truncated
}

// truncateTokens keeps the first limit whitespace-separated tokens of text,
// joined by single spaces. Text with at most limit tokens is returned as is,
// which makes the operation idempotent. The second result is the token count
// of the original text.
func truncateTokens(text string, limit int) (string, int) {
	tokens := strings.Fields(text)
	if len(tokens) <= limit {
		return text, len(tokens)
	}
	return strings.Join(tokens[:limit], " "), len(tokens)
}

func extractionNotice(err error) Notice {
	var decErr *extract.DecodeError
	if errors.As(err, &decErr) {
		return failure(ErrorDecode, "text_decode_error", msgDecodeError, err)
	}

	var extErr *extract.ExtractionError
	if errors.As(err, &extErr) {
		switch extErr.Kind {
		case extract.KindUnreadable:
			return failure(ErrorExtraction, "pdf_read_error", msgPDFUnreadable, err)
		case extract.KindUnsupported:
			return failure(ErrorExtraction, "unsupported_file_type", fmt.Sprintf(msgUnsupportedFile, extErr.MediaType), err)
		default:
			return failure(ErrorExtraction, "pdf_unexpected_error", fmt.Sprintf(msgPDFUnexpected, causeOf(extErr)), err)
		}
	}
	return failure(ErrorExtraction, "extraction_error", fmt.Sprintf(msgFileUnexpected, err), err)
}

func causeOf(err *extract.ExtractionError) error {
	if err.Err != nil {
		return err.Err
	}
	return err
}
