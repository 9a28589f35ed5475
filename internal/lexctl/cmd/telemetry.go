package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
	"github.com/wrale/wrale-lexdesk/internal/lexctl/util"
	"github.com/wrale/wrale-lexdesk/internal/lexd/telemetry/collector"
	"github.com/wrale/wrale-lexdesk/internal/lexd/telemetry/collector/pagetest"
)

func newTelemetryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "telemetry",
		Aliases: []string{"analytics"},
		Short:   "Query and exercise page telemetry",
	}

	cmd.AddCommand(
		newTelemetrySessionCmd(opts),
		newTelemetryPageMetricsCmd(opts),
		newTelemetrySimulateCmd(opts),
	)
	return cmd
}

func printSession(opts *rootOptions, out io.Writer, s *v1alpha1.SessionSummary) error {
	return opts.printResult(out, s, func(w io.Writer) error {
		fmt.Fprintf(w, "Session:\t%s\n", s.SessionID)
		fmt.Fprintf(w, "User:\t%s\n", s.UserID)
		fmt.Fprintf(w, "Organization:\t%s\n", s.OrgID)
		fmt.Fprintf(w, "Started:\t%s\n", util.FormatEpochMillis(s.StartTime))
		fmt.Fprintf(w, "Ended:\t%s\n", util.FormatEpochMillis(s.EndTime))
		fmt.Fprintf(w, "Page views:\t%d\n", s.PageViews)
		fmt.Fprintf(w, "Events:\t%d\n", s.EventsCount)
		fmt.Fprintf(w, "Errors:\t%d\n", s.ErrorsCount)
		fmt.Fprintf(w, "Last seen:\t%s\n", util.FormatDuration(time.Since(s.LastSeen)))
		return nil
	})
}

func newTelemetrySessionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "session ID",
		Short: "Show a stored session summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			s, err := c.Session(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get session: %w", err)
			}
			return printSession(opts, cmd.OutOrStdout(), s)
		},
	}
}

func newTelemetryPageMetricsCmd(opts *rootOptions) *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "page-metrics URL",
		Short: "Show aggregated performance metrics for a page",
		Example: `  # Metrics for the dashboard over the last day
  lexctl telemetry page-metrics https://crm.example.com/dashboard --since 24h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			m, err := c.PageMetrics(cmd.Context(), args[0], since)
			if err != nil {
				return fmt.Errorf("failed to get page metrics: %w", err)
			}
			return opts.printResult(cmd.OutOrStdout(), m, func(w io.Writer) error {
				fmt.Fprintf(w, "URL:\t%s\n", m.URL)
				fmt.Fprintf(w, "Samples:\t%d\n", m.Samples)
				fmt.Fprintf(w, "Load time:\t%s\n", util.FormatMillis(m.AvgLoadTime))
				fmt.Fprintf(w, "FCP:\t%s\n", util.FormatMillis(m.AvgFirstContentfulPaint))
				fmt.Fprintf(w, "LCP:\t%s\n", util.FormatMillis(m.AvgLargestContentfulPaint))
				fmt.Fprintf(w, "FID:\t%s\n", util.FormatMillis(m.AvgFirstInputDelay))
				fmt.Fprintf(w, "CLS (max):\t%.3f\n", m.MaxCumulativeLayoutShift)
				fmt.Fprintf(w, "Errors:\t%d\n", m.ErrorCount)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "only include samples newer than a duration (1h) or RFC3339 time")
	return cmd
}

type simulateOptions struct {
	path      string
	userID    string
	orgID     string
	withError bool
}

func newTelemetrySimulateCmd(opts *rootOptions) *cobra.Command {
	sim := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive a scripted page session through the collector",
		Long: `Run a collector against a scripted page on the lexd server. The page loads,
reports paint timings, receives a click and a scroll, and is then closed. The
resulting batches go to the analytics endpoint and the stored session summary
is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			base := strings.TrimSuffix(c.BaseURL(), "/")
			page := pagetest.New(base+sim.path, "Dashboard")
			page.SetUserAgent("lexctl/" + version)
			clock := pagetest.NewClock(time.Now())

			transport, err := collector.NewHTTPTransport(base, collector.DefaultEndpoint, &http.Client{Timeout: 10 * time.Second})
			if err != nil {
				return err
			}

			cfg := collector.DefaultConfig()
			cfg.Debug = opts.debug
			col := collector.Start(cfg,
				collector.WithPage(page),
				collector.WithClock(clock),
				collector.WithTransport(transport),
				collector.WithLogger(opts.logger(cmd.ErrOrStderr())),
			)
			if sim.userID != "" || sim.orgID != "" {
				col.SetUser(sim.userID, sim.orgID)
			}

			runScript(page, clock, col, sim)

			if err := col.Destroy(cmd.Context()); err != nil {
				return fmt.Errorf("failed to deliver telemetry: %w", err)
			}

			s, err := c.Session(cmd.Context(), col.Session().SessionID)
			if err != nil {
				return fmt.Errorf("failed to get session: %w", err)
			}
			return printSession(opts, cmd.OutOrStdout(), s)
		},
	}

	cmd.Flags().StringVar(&sim.path, "path", "/dashboard", "page path on the server")
	cmd.Flags().StringVar(&sim.userID, "user", "", "user id to bind to the session")
	cmd.Flags().StringVar(&sim.orgID, "org", "", "organization id to bind to the session")
	cmd.Flags().BoolVar(&sim.withError, "with-error", false, "report a network error during the session")
	return cmd
}

// runScript plays a short page session on the fake clock
func runScript(page *pagetest.Page, clock *pagetest.Clock, col *collector.Collector, sim *simulateOptions) {
	page.SetNavigationTiming(collector.NavigationTiming{
		DOMInteractive:             420,
		DOMContentLoadedEventStart: 480,
		DOMContentLoadedEventEnd:   510,
		LoadEventStart:             900,
		LoadEventEnd:               940,
	})
	page.AddPaint(collector.PaintFirstContentfulPaint, 310)
	page.Load()
	clock.Advance(200 * time.Millisecond)

	page.Emit(collector.EntryLargestContentfulPaint, collector.PerformanceEntry{
		EntryType: collector.EntryLargestContentfulPaint,
		StartTime: 860,
	})

	content := &collector.Element{TagName: "main", ID: "content"}
	page.Click(&collector.Element{TagName: "button", Classes: []string{"btn", "btn-primary"}, Text: "Nuevo expediente", Parent: content})
	page.Emit(collector.EntryFirstInput, collector.PerformanceEntry{
		EntryType:       collector.EntryFirstInput,
		StartTime:       1200,
		ProcessingStart: 1212,
	})
	col.TrackEvent(collector.EventInput{EventType: "crm", EventName: "case_opened"})

	page.Scroll(collector.ScrollState{ScrollY: 600, DocumentHeight: 2400, ViewportHeight: 800})
	clock.Advance(time.Second)

	if sim.withError {
		col.TrackError(errors.New("simulated network failure"), v1alpha1.ErrorTypeNetwork, map[string]interface{}{
			"source": "lexctl",
		})
	}

	page.Hide()
}
