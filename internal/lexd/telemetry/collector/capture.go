package collector

import (
	"fmt"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
)

const defaultRejectionMessage = "Unhandled Promise Rejection"

// stackTracer is implemented by errors that carry a stack
type stackTracer interface {
	Stack() string
}

func stackOf(err error) string {
	if st, ok := err.(stackTracer); ok {
		return st.Stack()
	}
	return ""
}

type errorHooks struct {
	NopListener
	c *Collector
}

func (h errorHooks) OnScriptError(e ScriptError) {
	h.c.recordError(v1alpha1.ErrorEvent{
		ErrorMessage: e.Message,
		ErrorStack:   e.Stack,
		ErrorType:    v1alpha1.ErrorTypeError,
		ContextData: map[string]interface{}{
			"filename": e.Filename,
			"lineno":   e.Lineno,
			"colno":    e.Colno,
		},
	})
}

func (h errorHooks) OnUnhandledRejection(reason interface{}) {
	ev := v1alpha1.ErrorEvent{ErrorType: v1alpha1.ErrorTypeUnhandledRejection}

	switch r := reason.(type) {
	case nil:
	case error:
		ev.ErrorMessage = r.Error()
		ev.ErrorStack = stackOf(r)
	case string:
		ev.ErrorMessage = r
	default:
		ev.ErrorMessage = fmt.Sprint(r)
	}
	if ev.ErrorMessage == "" {
		ev.ErrorMessage = defaultRejectionMessage
	}

	h.c.recordError(ev)
}

func (h errorHooks) OnResourceError(e ResourceError) {
	target := e.Src
	if target == "" {
		target = e.Href
	}
	h.c.recordError(v1alpha1.ErrorEvent{
		ErrorMessage: "Failed to load resource: " + target,
		ErrorType:    v1alpha1.ErrorTypeResource,
		ContextData: map[string]interface{}{
			"tagName": e.TagName,
			"src":     e.Src,
			"href":    e.Href,
		},
	})
}
