package collector

import (
	"time"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
)

// loadSettleDelay lets the load event finish before navigation timing is read
const loadSettleDelay = 100 * time.Millisecond

func (c *Collector) observePerformance() {
	streams := []struct {
		entryType string
		fn        func([]PerformanceEntry)
	}{
		{EntryLargestContentfulPaint, c.onLargestContentfulPaint},
		{EntryFirstInput, c.onFirstInput},
		{EntryLayoutShift, c.onLayoutShift},
	}

	for _, s := range streams {
		obs, err := c.page.Observe(s.entryType, s.fn)
		if err != nil {
			c.logger.Warn("performance observer unavailable",
				"entryType", s.entryType,
				"error", err,
			)
			continue
		}
		c.mu.Lock()
		c.observers = append(c.observers, obs)
		c.mu.Unlock()
	}

	c.subscribe(performanceHooks{c: c})
}

func (c *Collector) onLargestContentfulPaint(entries []PerformanceEntry) {
	if len(entries) == 0 {
		return
	}
	lcp := entries[len(entries)-1].StartTime
	c.trackPerformance(v1alpha1.PerformanceMetric{LargestContentfulPaint: &lcp})
}

func (c *Collector) onFirstInput(entries []PerformanceEntry) {
	if len(entries) == 0 {
		return
	}
	fid := entries[0].ProcessingStart - entries[0].StartTime
	c.trackPerformance(v1alpha1.PerformanceMetric{FirstInputDelay: &fid})
}

func (c *Collector) onLayoutShift(entries []PerformanceEntry) {
	c.mu.Lock()
	for _, e := range entries {
		if !e.HadRecentInput {
			c.clsValue += e.Value
		}
	}
	cls := c.clsValue
	c.mu.Unlock()

	if cls > 0 {
		c.trackPerformance(v1alpha1.PerformanceMetric{CumulativeLayoutShift: &cls})
	}
}

// onLoad reads navigation and paint timing once the load event settles
func (c *Collector) onLoad() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return
	}
	if c.loadTimer != nil {
		c.loadTimer.Stop()
	}
	c.loadTimer = c.clock.AfterFunc(loadSettleDelay, c.recordNavigationTiming)
}

func (c *Collector) recordNavigationTiming() {
	c.mu.Lock()
	c.loadTimer = nil
	c.mu.Unlock()

	nav, ok := c.page.NavigationTiming()
	if !ok {
		return
	}

	load := nav.LoadEventEnd - nav.LoadEventStart
	dcl := nav.DOMContentLoadedEventEnd - nav.DOMContentLoadedEventStart
	tti := nav.DOMInteractive - nav.NavigationStart
	m := v1alpha1.PerformanceMetric{
		LoadTime:          &load,
		DOMContentLoaded:  &dcl,
		TimeToInteractive: &tti,
	}
	for _, p := range c.page.PaintEntries() {
		if p.Name == PaintFirstContentfulPaint {
			fcp := p.StartTime
			m.FirstContentfulPaint = &fcp
			break
		}
	}

	c.trackPerformance(m)
}

type performanceHooks struct {
	NopListener
	c *Collector
}

func (h performanceHooks) OnLoad() { h.c.onLoad() }
