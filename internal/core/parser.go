package core

import "context"

// DocumentParser extracts text from a downloaded document, one string
// per page (1-based page numbers are the slice index + 1). The
// contentType hint selects the parsing strategy.
type DocumentParser interface {
	ParsePages(ctx context.Context, path string, contentType string) ([]string, error)
}
