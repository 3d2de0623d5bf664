// Package ocr extracts text and quality signals from uploaded documents.
// Extraction is deliberately forgiving: an unreadable file yields empty
// text, and the fraud engine treats the resulting signals as absent.
package ocr

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// PlainTextExtractor implements domain.TextExtractor for text-based
// uploads (.txt and extensionless plain text). Binary formats yield "".
type PlainTextExtractor struct {
	// MaxBytes caps how much of a file is read. Zero means the default.
	MaxBytes int64
}

const defaultMaxBytes = 1 << 20 // 1 MiB

// ExtractText reads and normalizes the file's text content. Failures and
// unsupported formats return "" with a nil error.
func (e *PlainTextExtractor) ExtractText(ctx context.Context, filePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".txt", ".text", "":
	default:
		return "", nil
	}

	maxBytes := e.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	f, err := os.Open(filePath)
	if err != nil {
		return "", nil
	}
	defer f.Close()

	buf := make([]byte, maxBytes)
	n, _ := f.Read(buf)
	content := buf[:n]

	if !utf8.Valid(content) {
		return "", nil
	}

	return normalizeWhitespace(string(content)), nil
}

// normalizeWhitespace collapses runs of whitespace into single spaces so
// keyword matching is stable across line breaks and formatting.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
