// Package pagetest provides a scripted Page and a manual Clock for driving
// a collector without a browser
package pagetest

import (
	"fmt"
	"sync"

	"github.com/wrale/wrale-lexdesk/internal/lexd/telemetry/collector"
)

// Page is a collector.Page whose events are fired by the caller
type Page struct {
	mu          sync.Mutex
	url         string
	title       string
	referrer    string
	userAgent   string
	nextID      int
	listeners   map[int]collector.Listener
	observers   map[string]map[int]func([]collector.PerformanceEntry)
	unsupported map[string]bool
	navigation  *collector.NavigationTiming
	paints      []collector.PerformanceEntry
	scroll      collector.ScrollState
}

// New creates a page at url with the given title
func New(url, title string) *Page {
	return &Page{
		url:         url,
		title:       title,
		userAgent:   "lexdesk-pagetest/1.0",
		listeners:   make(map[int]collector.Listener),
		observers:   make(map[string]map[int]func([]collector.PerformanceEntry)),
		unsupported: make(map[string]bool),
	}
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title
}

func (p *Page) Referrer() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.referrer
}

func (p *Page) UserAgent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userAgent
}

// SetReferrer sets the document referrer
func (p *Page) SetReferrer(r string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.referrer = r
}

// SetUserAgent sets the reported user agent
func (p *Page) SetUserAgent(ua string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userAgent = ua
}

// Navigate changes the current URL and title
func (p *Page) Navigate(url, title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url, p.title = url, title
}

// Unsupported makes Observe fail for entryType
func (p *Page) Unsupported(entryType string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unsupported[entryType] = true
}

// SetNavigationTiming sets the navigation entry returned after load
func (p *Page) SetNavigationTiming(nav collector.NavigationTiming) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigation = &nav
}

// AddPaint adds a paint timing entry
func (p *Page) AddPaint(name string, startTime float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paints = append(p.paints, collector.PerformanceEntry{Name: name, EntryType: "paint", StartTime: startTime})
}

// SetScroll sets the state returned by ScrollState
func (p *Page) SetScroll(s collector.ScrollState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scroll = s
}

// Observe implements collector.Page
func (p *Page) Observe(entryType string, fn func([]collector.PerformanceEntry)) (collector.Observer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unsupported[entryType] {
		return nil, fmt.Errorf("entry type %q is not supported", entryType)
	}
	if p.observers[entryType] == nil {
		p.observers[entryType] = make(map[int]func([]collector.PerformanceEntry))
	}
	p.nextID++
	id := p.nextID
	p.observers[entryType][id] = fn
	return observer(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.observers[entryType], id)
	}), nil
}

type observer func()

func (o observer) Disconnect() { o() }

// Subscribe implements collector.Page
func (p *Page) Subscribe(l collector.Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	p.listeners[id] = l
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *Page) NavigationTiming() (collector.NavigationTiming, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.navigation == nil {
		return collector.NavigationTiming{}, false
	}
	return *p.navigation, true
}

func (p *Page) PaintEntries() []collector.PerformanceEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]collector.PerformanceEntry(nil), p.paints...)
}

func (p *Page) ScrollState() collector.ScrollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scroll
}

// Listeners returns the number of subscribed listeners
func (p *Page) Listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// Observers returns the number of observers attached to entryType
func (p *Page) Observers(entryType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.observers[entryType])
}

// Emit delivers entries to every observer of entryType
func (p *Page) Emit(entryType string, entries ...collector.PerformanceEntry) {
	p.mu.Lock()
	fns := make([]func([]collector.PerformanceEntry), 0, len(p.observers[entryType]))
	for _, fn := range p.observers[entryType] {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(entries)
	}
}

func (p *Page) each(fn func(collector.Listener)) {
	p.mu.Lock()
	ls := make([]collector.Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		ls = append(ls, l)
	}
	p.mu.Unlock()

	for _, l := range ls {
		fn(l)
	}
}

// Load fires the window load event
func (p *Page) Load() { p.each(func(l collector.Listener) { l.OnLoad() }) }

// ScriptError fires an uncaught script error
func (p *Page) ScriptError(e collector.ScriptError) {
	p.each(func(l collector.Listener) { l.OnScriptError(e) })
}

// Reject fires an unhandled rejection with reason
func (p *Page) Reject(reason interface{}) {
	p.each(func(l collector.Listener) { l.OnUnhandledRejection(reason) })
}

// ResourceError fires a resource load failure
func (p *Page) ResourceError(e collector.ResourceError) {
	p.each(func(l collector.Listener) { l.OnResourceError(e) })
}

// Click fires a click on el
func (p *Page) Click(el *collector.Element) { p.each(func(l collector.Listener) { l.OnClick(el) }) }

// Scroll moves the viewport and fires a scroll event
func (p *Page) Scroll(s collector.ScrollState) {
	p.SetScroll(s)
	p.each(func(l collector.Listener) { l.OnScroll() })
}

// Submit fires a form submission
func (p *Page) Submit(f collector.Form) { p.each(func(l collector.Listener) { l.OnSubmit(f) }) }

// Hide changes visibility to hidden
func (p *Page) Hide() { p.each(func(l collector.Listener) { l.OnVisibilityChange(true) }) }

// Show changes visibility to visible
func (p *Page) Show() { p.each(func(l collector.Listener) { l.OnVisibilityChange(false) }) }

// Unload fires beforeunload
func (p *Page) Unload() { p.each(func(l collector.Listener) { l.OnBeforeUnload() }) }
