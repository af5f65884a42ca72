package repository

import "context"

// PageHandle is a rendered page the pipeline can query by CSS selector.
// Implementations are snapshots: they never touch the browser again.
type PageHandle interface {
	// URL is the final location after redirects.
	URL() string
	// Title is the document title.
	Title() string
	// Text returns the whitespace-collapsed text of the first match.
	Text(selector string) (string, bool)
	// TextAll returns the whitespace-collapsed text of every match.
	TextAll(selector string) []string
	// BlockText returns the first match's text with one line per block element.
	BlockText(selector string) (string, bool)
	// Attr returns the attribute value of every match that carries it.
	Attr(selector, name string) []string
}

// Browser loads pages in a single, exclusively owned browser session.
type Browser interface {
	// Load navigates to url and returns the rendered page.
	Load(ctx context.Context, url string) (PageHandle, error)
	// Close releases the session.
	Close() error
}

// BrowserFactory opens a fresh browser session for a run.
type BrowserFactory interface {
	Open(ctx context.Context) (Browser, error)
}
