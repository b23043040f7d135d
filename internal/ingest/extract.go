// Package ingest turns uploaded resume documents into plain text suitable for
// prompts and storage.
package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// Supported upload content types.
const (
	MIMEPlainText = "text/plain"
	MIMEPDF       = "application/pdf"
	MIMEDocx      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// ExtractText extracts plain text from an uploaded document based on its
// content type. The result is whitespace-normalized so prompts stay compact.
func ExtractText(contentType string, data []byte) (string, error) {
	switch contentType {
	case MIMEPlainText:
		return normalize(string(data)), nil
	case MIMEPDF:
		text, err := extractPDFText(data)
		if err != nil {
			return "", err
		}
		return normalize(text), nil
	case MIMEDocx:
		text, err := extractDocxText(data)
		if err != nil {
			return "", err
		}
		return normalize(text), nil
	default:
		return "", fmt.Errorf("unsupported file type: %s", contentType)
	}
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		builder.WriteString(text)
	}

	return builder.String(), nil
}

func extractDocxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}
	defer doc.Close()

	return doc.Editable().GetContent(), nil
}

// normalize collapses runs of whitespace into single spaces.
func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
