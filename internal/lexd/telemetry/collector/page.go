package collector

// Entry types observed by the collector
const (
	EntryLargestContentfulPaint = "largest-contentful-paint"
	EntryFirstInput             = "first-input"
	EntryLayoutShift            = "layout-shift"
)

// PaintFirstContentfulPaint names the paint entry used for FCP
const PaintFirstContentfulPaint = "first-contentful-paint"

// PerformanceEntry is one timing entry delivered by the host page. Times
// are milliseconds relative to navigation start.
type PerformanceEntry struct {
	Name            string
	EntryType       string
	StartTime       float64
	Duration        float64
	ProcessingStart float64
	// Value and HadRecentInput are set on layout-shift entries
	Value          float64
	HadRecentInput bool
}

// NavigationTiming holds the navigation entry milestones in milliseconds
type NavigationTiming struct {
	NavigationStart            float64
	DOMInteractive             float64
	DOMContentLoadedEventStart float64
	DOMContentLoadedEventEnd   float64
	LoadEventStart             float64
	LoadEventEnd               float64
}

// ScrollState describes the viewport position
type ScrollState struct {
	ScrollX        float64
	ScrollY        float64
	DocumentHeight float64
	ViewportHeight float64
}

// Element is a node of the page's element tree
type Element struct {
	TagName string
	ID      string
	Classes []string
	Text    string
	Parent  *Element
}

// Form describes a submitted form
type Form struct {
	ID     string
	Name   string
	Action string
	Method string
}

// ScriptError is an uncaught script error
type ScriptError struct {
	Message  string
	Stack    string
	Filename string
	Lineno   int
	Colno    int
}

// ResourceError is a failed sub-resource load on an element
type ResourceError struct {
	TagName string
	Src     string
	Href    string
}

// Observer is an attached performance entry stream
type Observer interface {
	Disconnect()
}

// Listener receives page events. Implementations must not block.
type Listener interface {
	OnLoad()
	OnScriptError(ScriptError)
	// OnUnhandledRejection receives the rejection reason, which may be an
	// error, a string or any other value
	OnUnhandledRejection(reason interface{})
	OnResourceError(ResourceError)
	OnClick(*Element)
	OnScroll()
	OnSubmit(Form)
	OnVisibilityChange(hidden bool)
	OnBeforeUnload()
}

// Page is the host environment a collector observes
type Page interface {
	URL() string
	Title() string
	Referrer() string
	UserAgent() string

	// Observe attaches fn to an entry stream. An error means the entry
	// type is not supported by the host.
	Observe(entryType string, fn func([]PerformanceEntry)) (Observer, error)
	Subscribe(l Listener) (unsubscribe func())

	NavigationTiming() (NavigationTiming, bool)
	PaintEntries() []PerformanceEntry
	ScrollState() ScrollState
}

// NopListener ignores every event. Embed it to handle a subset.
type NopListener struct{}

func (NopListener) OnLoad()                          {}
func (NopListener) OnScriptError(ScriptError)        {}
func (NopListener) OnUnhandledRejection(interface{}) {}
func (NopListener) OnResourceError(ResourceError)    {}
func (NopListener) OnClick(*Element)                 {}
func (NopListener) OnScroll()                        {}
func (NopListener) OnSubmit(Form)                    {}
func (NopListener) OnVisibilityChange(bool)          {}
func (NopListener) OnBeforeUnload()                  {}
