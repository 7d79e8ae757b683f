package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrExtraction matches every *ExtractionError via errors.Is.
var ErrExtraction = errors.New("text extraction failed")

// ExtractionError reports a PDF that could not be parsed or holds no text.
// It is never retried: the same bytes always fail the same way.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract pdf text: %s: %v", e.Reason, e.Err)
	}
	return "extract pdf text: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// PDFText returns the plain text of a PDF. Library: github.com/ledongthuc/pdf.
func PDFText(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", &ExtractionError{Reason: "empty file"}
	}
	// The parser panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = &ExtractionError{Reason: "unparseable pdf", Err: fmt.Errorf("%v", rec)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ExtractionError{Reason: "unparseable pdf", Err: err}
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", &ExtractionError{Reason: "unparseable pdf", Err: err}
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", &ExtractionError{Reason: "read text", Err: err}
	}

	text = cleanText(buf.String())
	if text == "" {
		return "", &ExtractionError{Reason: "no extractable text"}
	}
	return text, nil
}

// cleanText drops NUL bytes, which some font encodings emit and Postgres TEXT
// rejects, along with invalid UTF-8.
func cleanText(raw string) string {
	raw = strings.ToValidUTF8(raw, "")
	return strings.TrimSpace(strings.ReplaceAll(raw, "\x00", ""))
}

// IsPDF reports whether data starts with the PDF magic bytes.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}
