package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/siteclone"
)

// Compile-time interface verification.
var _ siteclone.FrameworkDetector = (*Detector)(nil)

// Detector identifies client-side rendering frameworks from HTML content.
// It checks meta generator tags, mount points, hydration payloads and the
// attributes each framework leaves in rendered markup.
type Detector struct{}

// NewDetector creates a new Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect analyzes HTML and returns the identified framework.
// Returns FrameworkUnknown for server-rendered pages.
func (d *Detector) Detect(html string) siteclone.Framework {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return siteclone.FrameworkUnknown
	}

	// Check meta generator tags first - most reliable when present
	if framework := d.detectFromMetaGenerator(doc); framework != siteclone.FrameworkUnknown {
		return framework
	}

	// Next.js before React since every Next page is also a React page
	if d.hasSelector(doc, "#__next") ||
		d.hasSelector(doc, "script#__NEXT_DATA__") ||
		d.hasScriptSource(doc, "/_next/") {
		return siteclone.FrameworkNext
	}

	if d.hasSelector(doc, "[data-reactroot]") ||
		d.hasSelector(doc, "[data-reactid]") ||
		d.hasEmptyMount(doc, "#root") {
		return siteclone.FrameworkReact
	}

	// Nuxt is reported as Vue
	if d.hasSelector(doc, "[data-v-app]") ||
		d.hasSelector(doc, "#__nuxt") ||
		d.hasSelector(doc, "[data-server-rendered]") ||
		d.hasEmptyMount(doc, "#app") {
		return siteclone.FrameworkVue
	}

	if d.hasSelector(doc, "[ng-version]") ||
		d.hasSelector(doc, "[ng-app]") ||
		d.hasSelector(doc, "app-root") {
		return siteclone.FrameworkAngular
	}

	if d.hasSelector(doc, `[class*="svelte-"]`) ||
		d.hasSelector(doc, "[data-sveltekit-preload-data]") ||
		d.hasSelector(doc, "#svelte") {
		return siteclone.FrameworkSvelte
	}

	return siteclone.FrameworkUnknown
}

// detectFromMetaGenerator checks the meta generator tag for framework identification.
func (d *Detector) detectFromMetaGenerator(doc *goquery.Document) siteclone.Framework {
	generator := strings.ToLower(doc.Find("meta[name='generator']").AttrOr("content", ""))
	if generator == "" {
		return siteclone.FrameworkUnknown
	}

	switch {
	case strings.Contains(generator, "next.js"):
		return siteclone.FrameworkNext
	case strings.Contains(generator, "nuxt"), strings.Contains(generator, "vue"):
		return siteclone.FrameworkVue
	case strings.Contains(generator, "angular"):
		return siteclone.FrameworkAngular
	case strings.Contains(generator, "svelte"):
		return siteclone.FrameworkSvelte
	case strings.Contains(generator, "react"), strings.Contains(generator, "gatsby"):
		return siteclone.FrameworkReact
	}

	return siteclone.FrameworkUnknown
}

// hasSelector checks if the document contains at least one element matching the selector.
func (d *Detector) hasSelector(doc *goquery.Document, selector string) bool {
	return doc.Find(selector).Length() > 0
}

// hasScriptSource checks for a script loaded from a path containing fragment.
func (d *Detector) hasScriptSource(doc *goquery.Document, fragment string) bool {
	found := false
	doc.Find("script[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = strings.Contains(s.AttrOr("src", ""), fragment)
		return !found
	})
	return found
}

// hasEmptyMount reports whether the mount point exists without server
// rendered children, the shape of a client-rendered shell.
func (d *Detector) hasEmptyMount(doc *goquery.Document, selector string) bool {
	mount := doc.Find(selector).First()
	if mount.Length() == 0 {
		return false
	}
	return mount.Children().Length() == 0 && strings.TrimSpace(mount.Text()) == ""
}
