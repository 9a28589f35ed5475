package v1alpha1

import "time"

// ErrorType classifies an error event by where it was intercepted
type ErrorType string

const (
	// ErrorTypeError is an uncaught script error
	ErrorTypeError ErrorType = "error"
	// ErrorTypeUnhandledRejection is a promise rejection nobody handled
	ErrorTypeUnhandledRejection ErrorType = "unhandledrejection"
	// ErrorTypeResource is a failed sub-resource load (script, image, stylesheet)
	ErrorTypeResource ErrorType = "resource"
	// ErrorTypeNetwork is a failed network call reported by application code
	ErrorTypeNetwork ErrorType = "network"
)

// Valid reports whether t is one of the known error types
func (t ErrorType) Valid() bool {
	switch t {
	case ErrorTypeError, ErrorTypeUnhandledRejection, ErrorTypeResource, ErrorTypeNetwork:
		return true
	}
	return false
}

// InteractionType classifies a user interaction
type InteractionType string

const (
	InteractionClick      InteractionType = "click"
	InteractionScroll     InteractionType = "scroll"
	InteractionInput      InteractionType = "input"
	InteractionNavigation InteractionType = "navigation"
	InteractionFormSubmit InteractionType = "form_submit"
)

// Valid reports whether t is one of the known interaction types
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionClick, InteractionScroll, InteractionInput, InteractionNavigation, InteractionFormSubmit:
		return true
	}
	return false
}

// EventIdentity holds the fields every queued telemetry record carries
type EventIdentity struct {
	// Timestamp records when the event was queued
	Timestamp time.Time `json:"timestamp"`
	// SessionID identifies the page session that produced the event
	SessionID string `json:"sessionId"`
	// UserID identifies the signed-in user, if bound
	UserID string `json:"userId,omitempty"`
	// OrgID identifies the tenant organization, if bound
	OrgID string `json:"orgId,omitempty"`
}

// AnalyticsEvent is a free-form application event such as a page view
type AnalyticsEvent struct {
	EventIdentity `json:",inline"`
	// EventType groups related events (e.g. "navigation", "crm")
	EventType string `json:"eventType"`
	// EventName names the specific event (e.g. "page_view")
	EventName string `json:"eventName"`
	// EventData contains event-specific details
	EventData map[string]interface{} `json:"eventData,omitempty"`
	// PageURL is the page the event happened on
	PageURL string `json:"pageUrl"`
	// PageTitle is the document title at the time of the event
	PageTitle string `json:"pageTitle,omitempty"`
}

// PerformanceMetric is a partial set of page performance measurements.
// Each observer reports independently, so most records carry a single field.
type PerformanceMetric struct {
	EventIdentity          `json:",inline"`
	PageURL                string   `json:"pageUrl"`
	LoadTime               *float64 `json:"loadTime,omitempty"`
	DOMContentLoaded       *float64 `json:"domContentLoaded,omitempty"`
	FirstContentfulPaint   *float64 `json:"firstContentfulPaint,omitempty"`
	LargestContentfulPaint *float64 `json:"largestContentfulPaint,omitempty"`
	FirstInputDelay        *float64 `json:"firstInputDelay,omitempty"`
	CumulativeLayoutShift  *float64 `json:"cumulativeLayoutShift,omitempty"`
	TimeToInteractive      *float64 `json:"timeToInteractive,omitempty"`
}

// ErrorEvent describes an intercepted failure
type ErrorEvent struct {
	EventIdentity `json:",inline"`
	ErrorMessage  string                 `json:"errorMessage"`
	ErrorStack    string                 `json:"errorStack,omitempty"`
	ErrorType     ErrorType              `json:"errorType"`
	PageURL       string                 `json:"pageUrl"`
	ContextData   map[string]interface{} `json:"contextData,omitempty"`
}

// UserInteraction describes a click, scroll or form submission
type UserInteraction struct {
	EventIdentity   `json:",inline"`
	InteractionType InteractionType        `json:"interactionType"`
	ElementPath     string                 `json:"elementPath,omitempty"`
	PageURL         string                 `json:"pageUrl"`
	InteractionData map[string]interface{} `json:"interactionData,omitempty"`
}

// SessionSnapshot is the session state attached to a batch
type SessionSnapshot struct {
	SessionID   string `json:"sessionId"`
	UserID      string `json:"userId,omitempty"`
	OrgID       string `json:"orgId,omitempty"`
	StartTime   int64  `json:"startTime"`
	EndTime     int64  `json:"endTime,omitempty"`
	PageViews   int    `json:"pageViews"`
	EventsCount int    `json:"eventsCount"`
	ErrorsCount int    `json:"errorsCount"`
	UserAgent   string `json:"userAgent,omitempty"`
}

// AnalyticsBatch is the body of one flush sent to the collector endpoint
type AnalyticsBatch struct {
	Events       []AnalyticsEvent    `json:"events"`
	Performance  []PerformanceMetric `json:"performance"`
	Errors       []ErrorEvent        `json:"errors"`
	Interactions []UserInteraction   `json:"interactions"`
	Session      *SessionSnapshot    `json:"session,omitempty"`
}

// Len returns the number of queued records across all categories
func (b *AnalyticsBatch) Len() int {
	return len(b.Events) + len(b.Performance) + len(b.Errors) + len(b.Interactions)
}

// Empty reports whether the batch carries nothing worth sending
func (b *AnalyticsBatch) Empty() bool {
	return b.Len() == 0 && b.Session == nil
}

// IngestResult acknowledges an accepted batch
type IngestResult struct {
	SessionID    string `json:"sessionId,omitempty"`
	Events       int    `json:"events"`
	Performance  int    `json:"performance"`
	Errors       int    `json:"errors"`
	Interactions int    `json:"interactions"`
}

// SessionSummary is the server-side aggregate of a session
type SessionSummary struct {
	SessionSnapshot `json:",inline"`
	// LastSeen is when the last batch for the session arrived
	LastSeen time.Time `json:"lastSeen"`
}

// PageMetrics aggregates performance metrics for a page URL
type PageMetrics struct {
	URL                       string    `json:"url"`
	Since                     time.Time `json:"since"`
	Samples                   int64     `json:"samples"`
	AvgLoadTime               float64   `json:"avgLoadTime"`
	AvgFirstContentfulPaint   float64   `json:"avgFirstContentfulPaint"`
	AvgLargestContentfulPaint float64   `json:"avgLargestContentfulPaint"`
	AvgFirstInputDelay        float64   `json:"avgFirstInputDelay"`
	MaxCumulativeLayoutShift  float64   `json:"maxCumulativeLayoutShift"`
	ErrorCount                int64     `json:"errorCount"`
}
