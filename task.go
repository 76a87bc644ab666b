package siteclone

// Priority orders crawl tasks (higher = dequeued first).
type Priority int

// Crawl priority tiers.
const (
	PriorityDeep     Priority = 1
	PriorityExternal Priority = 10
	PriorityInternal Priority = 50
	PriorityMenu     Priority = 100
)

// String returns the tier name.
func (p Priority) String() string {
	switch p {
	case PriorityMenu:
		return "menu"
	case PriorityInternal:
		return "internal"
	case PriorityExternal:
		return "external"
	case PriorityDeep:
		return "deep"
	}
	return "unknown"
}

// CrawlTask is a unit of capture work. URL is canonical and unique within
// a session.
type CrawlTask struct {
	URL        string
	Priority   Priority
	Depth      int
	SourceMenu string // trigger text for menu-derived tasks
	Label      string // link or menu item text, used for naming
}
