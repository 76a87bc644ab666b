package crawl

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/fwojciec/siteclone"
)

// Selectors queried by the menu detector.
const (
	// MenuCandidateSelector matches likely primary navigation triggers.
	MenuCandidateSelector = `nav a, nav button, header a, header button, ` +
		`[role="navigation"] a, [role="menubar"] a, [role="menuitem"], ` +
		`[class*="gnb"] a, [class*="lnb"] a, [class*="menu"] a, [class*="nav"] a`

	// LinkSelector is the fallback candidate set for pages without
	// semantic navigation markup.
	LinkSelector = `a[href]`

	// InteractiveSelector matches elements that can be submenu items.
	InteractiveSelector = `a[href], button, [role="menuitem"]`
)

// minSemanticCandidates is the number of semantic candidates below which
// every link in the header area is considered.
const minSemanticCandidates = 3

// triggerTolerance is how far above its trigger a submenu item may start.
const triggerTolerance = 10

// StaticSubmenuSelector matches links nested in a submenu list next to
// the trigger addressed by selector.
func StaticSubmenuSelector(selector string) string {
	return selector + ` ~ ul a[href], ` + selector + ` ~ div a[href], ` + selector + ` > ul a[href]`
}

// Compile-time interface verification.
var _ siteclone.MenuDetector = (*MenuDetector)(nil)

// MenuDetector finds hover and click driven navigation menus on a rendered
// page. Candidates are restricted to the header area and filtered by class,
// role, size and text heuristics from the policy; each surviving candidate
// is hovered and the interactive elements it reveals become its items.
type MenuDetector struct {
	policy      *siteclone.CrawlPolicy
	logger      *slog.Logger
	excludeText []*regexp.Regexp
	excludeCls  []string
	excludeRole map[string]struct{}
}

// NewMenuDetector creates a MenuDetector. logger may be nil.
func NewMenuDetector(policy *siteclone.CrawlPolicy, logger *slog.Logger) *MenuDetector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := &MenuDetector{
		policy:      policy,
		logger:      logger,
		excludeCls:  lowerList(policy.ExcludeClasses),
		excludeRole: lowerSet(policy.ExcludeRoles),
	}
	for _, word := range policy.ExcludeText {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		d.excludeText = append(d.excludeText,
			regexp.MustCompile(`(^|[^\p{L}\p{N}])`+regexp.QuoteMeta(word)+`($|[^\p{L}\p{N}])`))
	}
	return d
}

// Detect implements siteclone.MenuDetector.
func (d *MenuDetector) Detect(ctx context.Context, r siteclone.Renderer, pageURL string) ([]siteclone.MenuGroup, error) {
	candidates, err := d.candidates(ctx, r)
	if err != nil {
		return nil, err
	}

	groups := []siteclone.MenuGroup{}
	seenTrigger := make(map[string]struct{})
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := cleanMenuText(cand.Text)
		if _, dup := seenTrigger[strings.ToLower(text)]; dup {
			continue
		}

		group, ok, err := d.tryHover(ctx, r, pageURL, cand)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		seenTrigger[strings.ToLower(text)] = struct{}{}
		groups = append(groups, group)
	}

	d.logger.Debug("menus detected", "url", pageURL, "candidates", len(candidates), "groups", len(groups))
	return groups, nil
}

// candidates returns the ordered, filtered trigger candidates.
func (d *MenuDetector) candidates(ctx context.Context, r siteclone.Renderer) ([]siteclone.Element, error) {
	elems, err := r.Elements(ctx, MenuCandidateSelector)
	if err != nil {
		return nil, err
	}
	if len(d.filterCandidates(elems)) < minSemanticCandidates {
		links, err := r.Elements(ctx, LinkSelector)
		if err != nil {
			return nil, err
		}
		elems = append(elems, links...)
	}
	filtered := d.filterCandidates(elems)

	var inBand, below []siteclone.Element
	for _, e := range filtered {
		if e.Rect.Y <= d.policy.MenuAreaHeight {
			inBand = append(inBand, e)
		} else {
			below = append(below, e)
		}
	}
	result := inBand
	if len(result) == 0 {
		result = below
	}
	sortByPosition(result)
	if limit := d.policy.MaxCandidates; limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (d *MenuDetector) filterCandidates(elems []siteclone.Element) []siteclone.Element {
	var out []siteclone.Element
	seen := make(map[string]struct{})
	for _, e := range elems {
		if _, dup := seen[e.Selector]; dup {
			continue
		}
		seen[e.Selector] = struct{}{}

		if !e.Visible || e.Rect.Empty() {
			continue
		}
		if e.Rect.Y < 0 || e.Rect.Y > d.policy.HeaderHeightLimit {
			continue
		}
		if e.InFooter || e.InTabList || d.excludedClass(e.Class) || d.excludedRole(e.Role) {
			continue
		}
		if !d.sizeOK(e.Rect) || !d.validText(e.Text) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// tryHover hovers cand and decides whether it is a menu trigger.
func (d *MenuDetector) tryHover(ctx context.Context, r siteclone.Renderer, pageURL string, cand siteclone.Element) (siteclone.MenuGroup, bool, error) {
	trigger := cleanMenuText(cand.Text)
	group := siteclone.MenuGroup{Trigger: trigger, URL: cand.Href}

	before, err := visibleSet(ctx, r)
	if err != nil {
		return group, false, err
	}

	var items []siteclone.MenuItem
	if err := r.Hover(ctx, cand.Selector); err != nil {
		d.logger.Debug("hover failed", "trigger", trigger, "err", err)
	} else {
		if err := sleep(ctx, d.policy.HoverWait); err != nil {
			return group, false, err
		}
		items, err = d.revealed(ctx, r, cand, before)
		if err != nil {
			return group, false, err
		}
	}

	if !d.policy.StrictHoverValidation {
		static, err := r.Elements(ctx, StaticSubmenuSelector(cand.Selector))
		if err != nil {
			return group, false, err
		}
		items = mergeItems(items, d.itemsFrom(cand, static, nil, false))
		if len(items) > 0 {
			group.Items = items
			return group, true, nil
		}
	} else if len(items) >= d.policy.MinSubmenuCount {
		group.Items = items
		return group, true, nil
	}

	if cand.Href != "" {
		return group, true, nil
	}
	if !d.policy.ClickFallback {
		return group, false, nil
	}
	return d.tryClick(ctx, r, pageURL, cand, group)
}

// tryClick clicks a trigger that revealed nothing on hover and has no
// href. A navigation makes it a direct link; otherwise the newly visible
// elements are validated like hover items.
func (d *MenuDetector) tryClick(ctx context.Context, r siteclone.Renderer, pageURL string, cand siteclone.Element, group siteclone.MenuGroup) (siteclone.MenuGroup, bool, error) {
	before, err := visibleSet(ctx, r)
	if err != nil {
		return group, false, err
	}
	if err := r.Click(ctx, cand.Selector); err != nil {
		d.logger.Debug("click failed", "trigger", group.Trigger, "err", err)
		return group, false, nil
	}
	if err := sleep(ctx, d.policy.MenuOpenWait); err != nil {
		return group, false, err
	}

	current, err := r.URL(ctx)
	if err != nil {
		return group, false, err
	}
	if sameDocument(current, pageURL) {
		items, err := d.revealed(ctx, r, cand, before)
		if err != nil {
			return group, false, err
		}
		if len(items) >= d.policy.MinSubmenuCount {
			group.Items = items
			return group, true, nil
		}
		return group, false, nil
	}

	group.URL = current
	if err := r.Navigate(ctx, pageURL, d.policy.WaitStrategy, d.policy.PageLoadTimeout); err != nil {
		return group, false, siteclone.Errorf(siteclone.EROOTLOAD, "return to %s after click: %v", pageURL, err)
	}
	if err := sleep(ctx, d.policy.ActionDelay); err != nil {
		return group, false, err
	}
	// Reloading drops element addresses; snapshot again so the remaining
	// candidates resolve.
	if _, err := d.candidates(ctx, r); err != nil {
		return group, false, err
	}
	return group, true, nil
}

// revealed returns items that became visible since before.
func (d *MenuDetector) revealed(ctx context.Context, r siteclone.Renderer, cand siteclone.Element, before map[string]struct{}) ([]siteclone.MenuItem, error) {
	after, err := r.Elements(ctx, InteractiveSelector)
	if err != nil {
		return nil, err
	}
	return d.itemsFrom(cand, after, before, true), nil
}

// itemsFrom filters elements into menu items for cand. When requireVisible
// is set, elements must be visible now and absent from before, and within
// the distance bounds of the trigger.
func (d *MenuDetector) itemsFrom(cand siteclone.Element, elems []siteclone.Element, before map[string]struct{}, requireVisible bool) []siteclone.MenuItem {
	var kept []siteclone.Element
	for _, e := range elems {
		if e.Selector == cand.Selector || e.InFooter {
			continue
		}
		if requireVisible {
			if !e.Visible || e.Rect.Empty() {
				continue
			}
			if _, wasVisible := before[e.Selector]; wasVisible {
				continue
			}
			if abs(e.Rect.X-cand.Rect.X) > d.policy.MaxDistanceX ||
				abs(e.Rect.Y-cand.Rect.Y) > d.policy.MaxDistanceY ||
				e.Rect.Y < cand.Rect.Y-triggerTolerance {
				continue
			}
			if !d.sizeOK(e.Rect) {
				continue
			}
		}
		text := cleanMenuText(e.Text)
		if !d.validText(text) {
			continue
		}
		if d.policy.MaxItemWords > 0 && strings.Count(text, " ") >= d.policy.MaxItemWords {
			continue
		}
		kept = append(kept, e)
	}
	sortByPosition(kept)

	var items []siteclone.MenuItem
	for _, e := range kept {
		items = mergeItems(items, []siteclone.MenuItem{{Name: cleanMenuText(e.Text), URL: e.Href}})
	}
	return items
}

func (d *MenuDetector) sizeOK(r siteclone.Rect) bool {
	p := d.policy
	if r.Width > p.MaxItemWidth || r.Height > p.MaxItemHeight {
		return false
	}
	if r.Width > p.MaxMenuItemSize && r.Height > p.MaxMenuItemSize {
		return false
	}
	return true
}

// validText reports whether text can name a menu entry: length within the
// policy bounds, not purely numeric, and not boilerplate.
func (d *MenuDetector) validText(text string) bool {
	text = cleanMenuText(text)
	n := len([]rune(text))
	if n < d.policy.MinTextLength || n > d.policy.MaxTextLength || n == 0 {
		return false
	}
	if numericOnly(text) {
		return false
	}
	lower := strings.ToLower(text)
	for _, re := range d.excludeText {
		if re.MatchString(lower) {
			return false
		}
	}
	return true
}

// excludedClass reports whether any exclude pattern occurs anywhere in the
// class attribute, so "mainBanner" and "heroSlider" match as well as
// "swiper-slide".
func (d *MenuDetector) excludedClass(class string) bool {
	class = strings.ToLower(class)
	for _, pattern := range d.excludeCls {
		if strings.Contains(class, pattern) {
			return true
		}
	}
	return false
}

func (d *MenuDetector) excludedRole(role string) bool {
	_, ok := d.excludeRole[strings.ToLower(strings.TrimSpace(role))]
	return ok
}

// visibleSet snapshots the selectors of visible interactive elements.
func visibleSet(ctx context.Context, r siteclone.Renderer) (map[string]struct{}, error) {
	elems, err := r.Elements(ctx, InteractiveSelector)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(elems))
	for _, e := range elems {
		if e.Visible {
			set[e.Selector] = struct{}{}
		}
	}
	return set, nil
}

// mergeItems appends items not already present by name and URL.
func mergeItems(items []siteclone.MenuItem, more []siteclone.MenuItem) []siteclone.MenuItem {
	for _, m := range more {
		dup := false
		for _, it := range items {
			if strings.EqualFold(it.Name, m.Name) && it.URL == m.URL {
				dup = true
				break
			}
		}
		if !dup {
			items = append(items, m)
		}
	}
	return items
}

// cleanMenuText collapses whitespace and strips trailing arrow glyphs.
func cleanMenuText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(strings.TrimRight(s, "▼▽▾›»>+∨⌄ "))
}

func numericOnly(s string) bool {
	hasDigit := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsSpace(r) || unicode.IsPunct(r):
		default:
			return false
		}
	}
	return hasDigit
}

func sortByPosition(elems []siteclone.Element) {
	sort.SliceStable(elems, func(i, j int) bool {
		if elems[i].Rect.Y != elems[j].Rect.Y {
			return elems[i].Rect.Y < elems[j].Rect.Y
		}
		return elems[i].Rect.X < elems[j].Rect.X
	})
}

// sameDocument compares two URLs ignoring fragments and trailing slashes.
func sameDocument(a, b string) bool {
	ca, okA := Canonicalize("", a)
	cb, okB := Canonicalize("", b)
	if !okA || !okB {
		return a == b
	}
	return strings.TrimSuffix(ca, "/") == strings.TrimSuffix(cb, "/")
}

func lowerList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
