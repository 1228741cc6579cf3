// Package parser extracts text from downloaded report files. PDFs are
// read page by page so chunks keep page provenance; other content
// types fall back to a whole-document extraction treated as one page.
package parser

import (
	"context"
	"fmt"
	"os"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"

	"github.com/finsight-ai/finsight/internal/core"
)

type DocumentParser struct{}

var _ core.DocumentParser = (*DocumentParser)(nil)

func New() *DocumentParser {
	return &DocumentParser{}
}

// ParsePages extracts text from the file at path. For PDFs the result
// has one entry per page (empty string for pages without extractable
// text, keeping page numbers stable); for anything else docconv
// flattens the document into a single page.
func (p *DocumentParser) ParsePages(ctx context.Context, path string, contentType string) ([]string, error) {
	if contentType == "application/pdf" {
		return parsePDF(ctx, path)
	}
	return parseWithDocconv(path, contentType)
}

func parsePDF(ctx context.Context, path string) ([]string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func parseWithDocconv(path string, contentType string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	res, err := docconv.Convert(f, contentType, false)
	if err != nil {
		return nil, fmt.Errorf("docconv %s: %w", contentType, err)
	}
	if res.Body == "" {
		return nil, nil
	}
	return []string{res.Body}, nil
}
