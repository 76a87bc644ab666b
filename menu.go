package siteclone

import "context"

// MenuItem is a navigation entry revealed under a trigger.
type MenuItem struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`
}

// MenuGroup is a top-level navigation trigger and the children it reveals.
// Items are only populated when a hover (or click) interaction confirmed
// them. A group with no items but a URL is a direct navigation link.
type MenuGroup struct {
	Trigger string     `json:"trigger" yaml:"trigger"`
	URL     string     `json:"url,omitempty" yaml:"url,omitempty"`
	Items   []MenuItem `json:"items" yaml:"items"`
}

// MenuDetector proposes the navigation tree of a rendered page.
type MenuDetector interface {
	// Detect analyzes the page currently loaded in r, whose address is
	// pageURL, and returns its menu groups. An empty result means no
	// navigation was found and is not an error. Errors are reserved for
	// renderer failures.
	Detect(ctx context.Context, r Renderer, pageURL string) ([]MenuGroup, error)
}
