package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakePages struct {
	pages []string
	errAt int
	err   error
	panic any
}

func (f *fakePages) NumPage() int { return len(f.pages) }

func (f *fakePages) PageText(n int) (string, error) {
	if f.panic != nil {
		panic(f.panic)
	}
	if f.errAt == n {
		return "", f.err
	}
	return f.pages[n-1], nil
}

func withPages(src pageSource, err error) *Extractor {
	return &Extractor{openPDF: func([]byte) (pageSource, error) { return src, err }}
}

func requireExtractionKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
	require.Equal(t, kind, extErr.Kind)
}

func TestMediaType(t *testing.T) {
	cases := []struct {
		name string
		up   Upload
		want string
	}{
		{"declared text", Upload{Filename: "a.bin", ContentType: "text/plain"}, TypeText},
		{"charset parameter", Upload{Filename: "a.txt", ContentType: "text/plain; charset=utf-8"}, TypeText},
		{"declared pdf", Upload{Filename: "a", ContentType: "application/pdf"}, TypePDF},
		{"octet stream by extension", Upload{Filename: "Report.PDF", ContentType: "application/octet-stream"}, TypePDF},
		{"missing type by extension", Upload{Filename: "chat.txt"}, TypeText},
		{"other declared type", Upload{Filename: "a.txt", ContentType: "image/png"}, "image/png"},
		{"unknown", Upload{Filename: "a.doc"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, MediaType(tc.up))
		})
	}
}

func TestExtract_PlainText(t *testing.T) {
	text, err := New().Extract(context.Background(), Upload{
		Filename:    "chat.txt",
		ContentType: "text/plain",
		Data:        []byte("\ufeffAlice: hi\nBob: hello"),
	})
	require.NoError(t, err)
	require.Equal(t, "Alice: hi\nBob: hello", text)
}

func TestExtract_PlainTextInvalidUTF8(t *testing.T) {
	text, err := New().Extract(context.Background(), Upload{
		Filename:    "latin1.txt",
		ContentType: "text/plain",
		Data:        []byte{'c', 'a', 'f', 0xe9},
	})
	require.Empty(t, text)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, "latin1.txt", decErr.Filename)
}

func TestExtract_UnsupportedType(t *testing.T) {
	text, err := New().Extract(context.Background(), Upload{Filename: "a.png", ContentType: "image/png", Data: []byte{1}})
	require.Empty(t, text)
	requireExtractionKind(t, err, KindUnsupported)
}

func TestExtract_PDFJoinsPagesAndSkipsEmptyOnes(t *testing.T) {
	ex := withPages(&fakePages{pages: []string{"first page", "", "third page"}}, nil)

	text, err := ex.Extract(context.Background(), Upload{Filename: "a.pdf", ContentType: TypePDF})
	require.NoError(t, err)
	require.Equal(t, "first page\nthird page", text)
}

func TestExtract_PDFTrimsPageText(t *testing.T) {
	ex := withPages(&fakePages{pages: []string{"\nfirst page", "\n", "\nthird page\n"}}, nil)

	text, err := ex.Extract(context.Background(), Upload{Filename: "a.pdf", ContentType: TypePDF})
	require.NoError(t, err)
	require.Equal(t, "first page\nthird page", text)
}

// buildPDF writes a minimal uncompressed PDF with one Helvetica text line per
// page. An empty string yields a page whose text object shows nothing.
func buildPDF(pages ...string) []byte {
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	for i, text := range pages {
		objs = append(objs, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			5+2*i,
		))
		content := "BT ET"
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

func TestExtract_PDFRealReaderSkipsBlankPages(t *testing.T) {
	data := buildPDF("Hello World", "", "Third page")

	text, err := New().Extract(context.Background(), Upload{Filename: "chat.pdf", ContentType: TypePDF, Data: data})
	require.NoError(t, err)
	require.Equal(t, "Hello World\nThird page", text)
}

func TestExtract_PDFWithoutText(t *testing.T) {
	ex := withPages(&fakePages{pages: []string{"", ""}}, nil)

	text, err := ex.Extract(context.Background(), Upload{Filename: "scan.pdf", ContentType: TypePDF})
	require.NoError(t, err)
	require.Empty(t, text)
}

func TestExtract_PDFEncrypted(t *testing.T) {
	ex := withPages(nil, errors.New("encrypted PDF: invalid password"))

	text, err := ex.Extract(context.Background(), Upload{Filename: "locked.pdf", ContentType: TypePDF})
	require.Empty(t, text)
	requireExtractionKind(t, err, KindUnreadable)
	require.ErrorContains(t, err, "invalid password")
}

func TestExtract_PDFPageError(t *testing.T) {
	ex := withPages(&fakePages{pages: []string{"ok", "bad"}, errAt: 2, err: errors.New("bad stream")}, nil)

	text, err := ex.Extract(context.Background(), Upload{Filename: "a.pdf", ContentType: TypePDF})
	require.Empty(t, text)
	requireExtractionKind(t, err, KindUnexpected)
	require.ErrorContains(t, err, "page 2")
}

func TestExtract_PDFParserPanic(t *testing.T) {
	ex := withPages(&fakePages{pages: []string{"x"}, panic: "malformed xref"}, nil)

	text, err := ex.Extract(context.Background(), Upload{Filename: "a.pdf", ContentType: TypePDF})
	require.Empty(t, text)
	requireExtractionKind(t, err, KindUnexpected)
	require.ErrorContains(t, err, "malformed xref")
}

func TestExtract_PDFCanceledContext(t *testing.T) {
	ex := withPages(&fakePages{pages: []string{"x"}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ex.Extract(ctx, Upload{Filename: "a.pdf", ContentType: TypePDF})
	requireExtractionKind(t, err, KindUnexpected)
	require.ErrorIs(t, err, context.Canceled)
}

func TestExtract_PDFRealParserRejectsGarbage(t *testing.T) {
	text, err := New().Extract(context.Background(), Upload{
		Filename:    "broken.pdf",
		ContentType: TypePDF,
		Data:        []byte("this is not a pdf"),
	})
	require.Empty(t, text)
	requireExtractionKind(t, err, KindUnreadable)
}
