package siteclone

// ExtractResult holds the extracted content from an HTML page.
type ExtractResult struct {
	// Title is the page title extracted from metadata.
	Title string

	// ContentHTML is the main content as clean HTML.
	// Boilerplate (header, nav, footer) has been removed.
	ContentHTML string

	// Text is the visible text of ContentHTML with whitespace collapsed.
	// Its length is the page's content length for the quality gate.
	Text string
}

// Extractor extracts main content from HTML pages, removing boilerplate.
type Extractor interface {
	// Extract processes raw HTML and returns the main content.
	Extract(html string) (*ExtractResult, error)
}

// ContentNormalizer reduces a page to the content that identifies it for
// duplicate detection.
type ContentNormalizer interface {
	// Normalize reduces markup to the visible text of its main content,
	// so template chrome and cosmetic differences do not change the result.
	Normalize(html string) (string, error)
}

// Sanitizer prepares captured HTML for offline viewing.
type Sanitizer interface {
	// Sanitize removes scripts, iframes and resource hints.
	Sanitize(html string) (string, error)
}
