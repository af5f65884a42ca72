package repository

import "errors"

var (
	// ErrNavigationFailed means a page could not be loaded, possibly after retries.
	ErrNavigationFailed = errors.New("navigation failed")
	// ErrCrawlTimeout means a page load exceeded its deadline.
	ErrCrawlTimeout = errors.New("page load timed out")
	// ErrVerificationRequired means a login or verification wall needs a human.
	ErrVerificationRequired = errors.New("verification required")
	// ErrSessionLost means the browser session is gone and the run cannot continue.
	ErrSessionLost = errors.New("browser session lost")
	// ErrExtractionFailed means required fields were missing from a detail page.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrCollectionAborted means too many consecutive search pages failed.
	ErrCollectionAborted = errors.New("collection aborted")
	// ErrNotFound is returned by repositories for unknown keys.
	ErrNotFound = errors.New("not found")
)
