package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wrale/wrale-lexdesk/api/types/v1alpha1"
	"github.com/wrale/wrale-lexdesk/internal/lexctl/util"
)

func newGatewayCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Inspect and control the offline gateway",
	}

	cmd.AddCommand(
		newGatewayStatusCmd(opts),
		newGatewaySkipWaitingCmd(opts),
		newGatewayCacheURLsCmd(opts),
		newGatewayPushCmd(opts),
		newGatewayWatchCmd(opts),
	)
	return cmd
}

func printGatewayStatus(opts *rootOptions, out io.Writer, s *v1alpha1.GatewayStatus) error {
	return opts.printResult(out, s, func(w io.Writer) error {
		fmt.Fprintf(w, "Version:\t%s\n", s.Version)
		fmt.Fprintf(w, "State:\t%s\n", s.State)
		fmt.Fprintf(w, "Static bucket:\t%s\n", s.StaticBucket)
		fmt.Fprintf(w, "Dynamic bucket:\t%s\n", s.DynamicBucket)
		fmt.Fprintf(w, "Buckets:\t%s\n", strings.Join(s.Buckets, ", "))
		fmt.Fprintf(w, "Clients:\t%d\n", s.Clients)
		return nil
	})
}

func newGatewayStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the gateway worker state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			status, err := c.GatewayStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get gateway status: %w", err)
			}
			return printGatewayStatus(opts, cmd.OutOrStdout(), status)
		},
	}
}

func newGatewaySkipWaitingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "skip-waiting",
		Short: "Activate a waiting gateway version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			status, err := c.SendGatewayMessage(cmd.Context(), v1alpha1.GatewayMessage{
				Type: v1alpha1.GatewayMessageSkipWaiting,
			})
			if err != nil {
				return fmt.Errorf("failed to send skip-waiting: %w", err)
			}
			return printGatewayStatus(opts, cmd.OutOrStdout(), status)
		},
	}
}

func newGatewayCacheURLsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cache-urls URL...",
		Short: "Add URLs to the static bucket",
		Example: `  # Precache the calendar and its script
  lexctl gateway cache-urls /calendar /js/calendar.js`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			status, err := c.SendGatewayMessage(cmd.Context(), v1alpha1.GatewayMessage{
				Type: v1alpha1.GatewayMessageCacheURLs,
				URLs: args,
			})
			if err != nil {
				return fmt.Errorf("failed to cache urls: %w", err)
			}
			return printGatewayStatus(opts, cmd.OutOrStdout(), status)
		},
	}
}

func newGatewayPushCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push [BODY]",
		Short: "Deliver a push message to connected pages",
		Long: `Deliver a push message through the gateway. The gateway turns it into a
notification and sends it to every connected page. Without a body the default
notification text is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			payload := ""
			if len(args) == 1 {
				payload = args[0]
			}
			n, err := c.Push(cmd.Context(), payload)
			if err != nil {
				return fmt.Errorf("failed to push: %w", err)
			}
			return opts.printResult(cmd.OutOrStdout(), n, func(w io.Writer) error {
				fmt.Fprintf(w, "Title:\t%s\n", n.Title)
				fmt.Fprintf(w, "Body:\t%s\n", n.Body)
				actions := make([]string, 0, len(n.Actions))
				for _, a := range n.Actions {
					actions = append(actions, a.Title)
				}
				fmt.Fprintf(w, "Actions:\t%s\n", strings.Join(actions, ", "))
				return nil
			})
		},
	}
}

func newGatewayWatchCmd(opts *rootOptions) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream gateway broadcasts to connected pages",
		Long: `Connect to the gateway websocket as a page would and print every broadcast:
controller changes, notifications and window requests. Stops after --count
messages, or on interrupt when --count is zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			w, err := c.Watch(cmd.Context())
			if err != nil {
				return err
			}
			defer w.Close()

			out := cmd.OutOrStdout()
			seen := 0
			for msg := range w.Messages() {
				if err := printClientMessage(opts, out, msg); err != nil {
					return err
				}
				seen++
				if count > 0 && seen >= count {
					return nil
				}
			}

			select {
			case err := <-w.Errors():
				return fmt.Errorf("gateway connection lost: %w", err)
			default:
				return nil
			}
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "exit after this many messages")
	return cmd
}

func printClientMessage(opts *rootOptions, out io.Writer, msg v1alpha1.ClientMessage) error {
	if opts.output == "json" {
		return util.PrintJSON(out, msg)
	}

	detail := msg.Version
	switch msg.Type {
	case v1alpha1.ClientMessageNotification, v1alpha1.ClientMessageCloseNotification:
		if msg.Notification != nil {
			detail = msg.Notification.Title + ": " + msg.Notification.Body
		}
	case v1alpha1.ClientMessageOpenWindow:
		detail = msg.URL
	}
	_, err := fmt.Fprintf(out, "%s\t%s\t%s\n", msg.Timestamp.Format(time.RFC3339), msg.Type, detail)
	return err
}
