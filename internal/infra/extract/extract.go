package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/yanqian/evaluator-ai/internal/domain/evaluator"
	"github.com/yanqian/evaluator-ai/internal/domain/prompt"
)

var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".json":     true,
}

// Extractor turns uploads into plain text. PDF text has in-text citations
// removed; text formats must be valid UTF-8. JSON objects are flattened in
// key order.
type Extractor struct{}

// New constructs an extractor.
func New() *Extractor {
	return &Extractor{}
}

// Supports reports whether Extract can handle the file.
func (e *Extractor) Supports(filename, mimeType string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".pdf" || textExtensions[ext] {
		return true
	}
	mimeType = strings.ToLower(mimeType)
	return mimeType == "application/pdf" || strings.HasPrefix(mimeType, "text/") || mimeType == "application/json"
}

// Extract returns the document text.
func (e *Extractor) Extract(ctx context.Context, doc evaluator.Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if isPDF(doc) {
		return extractPDF(doc.Data)
	}
	if !e.Supports(doc.Name, doc.MimeType) {
		return "", fmt.Errorf("%s: unsupported file type", doc.Name)
	}
	if !utf8.Valid(doc.Data) {
		return "", fmt.Errorf("%s: text is not valid UTF-8", doc.Name)
	}
	text := string(bytes.TrimPrefix(doc.Data, []byte("\xef\xbb\xbf")))
	if strings.EqualFold(filepath.Ext(doc.Name), ".json") {
		return flattenJSON(text), nil
	}
	return text, nil
}

var _ evaluator.TextExtractor = (*Extractor)(nil)

func isPDF(doc evaluator.Document) bool {
	return strings.EqualFold(filepath.Ext(doc.Name), ".pdf") ||
		strings.EqualFold(doc.MimeType, "application/pdf") ||
		bytes.HasPrefix(doc.Data, []byte("%PDF-"))
}

func extractPDF(data []byte) (text string, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return prompt.CleanPDFText(buf.String()), nil
}

// flattenJSON renders JSON as "key: value" lines, object keys sorted, so the
// same document always yields the same text. Invalid JSON is returned as-is.
func flattenJSON(raw string) string {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return raw
	}
	var b strings.Builder
	walkJSON(&b, "", value)
	return strings.TrimSpace(b.String())
}

func walkJSON(b *strings.Builder, path string, value any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			walkJSON(b, joinPath(path, key), v[key])
		}
	case []any:
		for i, child := range v {
			walkJSON(b, joinPath(path, fmt.Sprint(i)), child)
		}
	default:
		if path != "" {
			b.WriteString(path)
			b.WriteString(": ")
		}
		fmt.Fprint(b, v)
		b.WriteString("\n")
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
