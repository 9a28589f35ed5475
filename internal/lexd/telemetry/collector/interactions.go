package collector

import (
	"strings"
	"time"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
)

const (
	scrollDebounce = 150 * time.Millisecond
	maxClickText   = 100
)

// ElementPath renders the ancestor chain of el, outermost first, stopping
// below body. Each token is tag#id, or tag.class1.class2 when the element
// has no id.
func ElementPath(el *Element) string {
	var tokens []string
	for e := el; e != nil && !strings.EqualFold(e.TagName, "body"); e = e.Parent {
		token := strings.ToLower(e.TagName)
		switch {
		case e.ID != "":
			token += "#" + e.ID
		case len(e.Classes) > 0:
			token += "." + strings.Join(e.Classes, ".")
		}
		tokens = append(tokens, token)
	}

	for i, j := 0, len(tokens)-1; i < j; i, j = i+1, j-1 {
		tokens[i], tokens[j] = tokens[j], tokens[i]
	}
	return strings.Join(tokens, " > ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type interactionHooks struct {
	NopListener
	c *Collector
}

func (h interactionHooks) OnClick(el *Element) {
	if el == nil {
		return
	}
	h.c.trackInteraction(v1alpha1.UserInteraction{
		InteractionType: v1alpha1.InteractionClick,
		ElementPath:     ElementPath(el),
		InteractionData: map[string]interface{}{
			"tagName":   el.TagName,
			"className": strings.Join(el.Classes, " "),
			"id":        el.ID,
			"text":      truncate(strings.TrimSpace(el.Text), maxClickText),
		},
	})
}

// OnScroll records the position once scrolling has been quiet for the
// debounce window
func (h interactionHooks) OnScroll() {
	c := h.c
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return
	}
	if c.scrollTimer != nil {
		c.scrollTimer.Stop()
	}
	c.scrollTimer = c.clock.AfterFunc(scrollDebounce, c.recordScroll)
}

func (c *Collector) recordScroll() {
	c.mu.Lock()
	c.scrollTimer = nil
	c.mu.Unlock()

	s := c.page.ScrollState()
	c.trackInteraction(v1alpha1.UserInteraction{
		InteractionType: v1alpha1.InteractionScroll,
		InteractionData: map[string]interface{}{
			"scrollX":        s.ScrollX,
			"scrollY":        s.ScrollY,
			"documentHeight": s.DocumentHeight,
			"viewportHeight": s.ViewportHeight,
		},
	})
}

func (h interactionHooks) OnSubmit(f Form) {
	h.c.trackInteraction(v1alpha1.UserInteraction{
		InteractionType: v1alpha1.InteractionFormSubmit,
		InteractionData: map[string]interface{}{
			"formId":     f.ID,
			"formName":   f.Name,
			"formAction": f.Action,
			"formMethod": f.Method,
		},
	})
}

// lifecycleHooks flush when the page goes away
type lifecycleHooks struct {
	NopListener
	c *Collector
}

func (h lifecycleHooks) OnVisibilityChange(hidden bool) {
	if !hidden {
		return
	}
	h.c.endSession()
	h.c.flushAsync()
}

func (h lifecycleHooks) OnBeforeUnload() {
	h.c.endSession()
	h.c.flushAsync()
}
