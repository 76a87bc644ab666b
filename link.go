package siteclone

// DiscoveredLink is an absolute, fragment-free link found on a page.
type DiscoveredLink struct {
	URL  string
	Text string
}

// LinkExtractor extracts links from HTML.
type LinkExtractor interface {
	// ExtractLinks parses HTML and returns the unique http(s) links it
	// contains, resolved against baseURL, in document order. Links pointing
	// back at baseURL are omitted.
	ExtractLinks(html string, baseURL string) ([]DiscoveredLink, error)
}

// Framework identifies a client-side rendering framework.
type Framework string

// Recognised frameworks.
const (
	FrameworkUnknown Framework = ""
	FrameworkReact   Framework = "react"
	FrameworkNext    Framework = "next"
	FrameworkVue     Framework = "vue"
	FrameworkAngular Framework = "angular"
	FrameworkSvelte  Framework = "svelte"
)

// FrameworkDetector identifies client-side frameworks from HTML.
type FrameworkDetector interface {
	// Detect returns FrameworkUnknown for server-rendered pages.
	Detect(html string) Framework
}
