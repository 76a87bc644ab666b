// Package rod drives headless Chrome through go-rod for the crawl engine.
package rod

import (
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultRecycleAfter is the default number of tabs opened on one browser
// before it is replaced by a fresh process.
const DefaultRecycleAfter = 75

// BrowserManager owns the Chrome processes behind a Pool. Chrome's memory
// baseline grows over a long crawl even when every tab is closed, so the
// manager swaps in a new browser after a number of tabs. A replaced browser
// is retired and shut down once its last open tab is released.
//
// BrowserManager is safe for concurrent use.
type BrowserManager struct {
	mu           sync.Mutex
	current      *generation
	retired      map[*generation]struct{}
	opened       int
	recycleAfter int
	headless     bool
	closed       bool
}

// generation is one launched browser and the tabs still open on it.
type generation struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	tabs     int
}

// ManagerOption configures a BrowserManager.
type ManagerOption func(*BrowserManager)

// WithRecycleAfter sets how many tabs a browser serves before recycling.
// Values below one disable recycling.
func WithRecycleAfter(n int) ManagerOption {
	return func(bm *BrowserManager) {
		bm.recycleAfter = n
	}
}

// WithHeadless controls whether Chrome runs without a window.
func WithHeadless(headless bool) ManagerOption {
	return func(bm *BrowserManager) {
		bm.headless = headless
	}
}

// NewBrowserManager launches Chrome and returns a manager for it.
// Close must be called when the manager is no longer needed.
func NewBrowserManager(opts ...ManagerOption) (*BrowserManager, error) {
	bm := &BrowserManager{
		retired:      make(map[*generation]struct{}),
		recycleAfter: DefaultRecycleAfter,
		headless:     true,
	}
	for _, opt := range opts {
		opt(bm)
	}

	gen, err := bm.launch()
	if err != nil {
		return nil, err
	}
	bm.current = gen
	return bm, nil
}

// NewPage opens a tab on the current browser, recycling the browser first
// when it has served its quota. The returned func closes the tab and must
// be called exactly once.
func (bm *BrowserManager) NewPage() (*rod.Page, func(), error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.closed {
		return nil, nil, fmt.Errorf("browser manager closed")
	}
	if bm.recycleAfter > 0 && bm.opened >= bm.recycleAfter {
		bm.recycle()
	}

	gen := bm.current
	page, err := gen.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, nil, fmt.Errorf("opening tab: %w", err)
	}
	gen.tabs++
	bm.opened++

	var once sync.Once
	release := func() {
		once.Do(func() {
			_ = page.Close()
			bm.mu.Lock()
			defer bm.mu.Unlock()
			gen.tabs--
			if _, ok := bm.retired[gen]; ok && gen.tabs == 0 {
				delete(bm.retired, gen)
				_ = gen.close()
			}
		})
	}
	return page, release, nil
}

// Close shuts down every browser. Close is safe to call multiple times.
func (bm *BrowserManager) Close() error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.closed {
		return nil
	}
	bm.closed = true

	var err error
	if bm.current != nil {
		err = bm.current.close()
		bm.current = nil
	}
	for gen := range bm.retired {
		_ = gen.close()
		delete(bm.retired, gen)
	}
	return err
}

// LauncherPID returns the process ID of the current browser launcher.
// It exists so tests can verify process cleanup.
func (bm *BrowserManager) LauncherPID() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.current == nil || bm.current.launcher == nil {
		return 0
	}
	return bm.current.launcher.PID()
}

// launch starts a browser with flags that keep background tabs running
// at full speed.
func (bm *BrowserManager) launch() (*generation, error) {
	l := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Set("disable-hang-monitor").
		Leakless(true).
		Headless(bm.headless)

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	return &generation{browser: browser, launcher: l}, nil
}

// recycle replaces the current browser. The old one keeps serving its open
// tabs until they are released. A failed launch keeps the old browser.
// Must be called with mu held.
func (bm *BrowserManager) recycle() {
	fresh, err := bm.launch()
	if err != nil {
		return
	}
	old := bm.current
	bm.current = fresh
	bm.opened = 0
	if old.tabs == 0 {
		_ = old.close()
		return
	}
	bm.retired[old] = struct{}{}
}

func (g *generation) close() error {
	err := g.browser.Close()
	g.launcher.Kill()
	return err
}
