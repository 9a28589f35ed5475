// Package cmd implements the LexDesk CLI commands
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wrale/wrale-lexdesk/internal/lexctl/client"
	"github.com/wrale/wrale-lexdesk/internal/lexctl/config"
	"github.com/wrale/wrale-lexdesk/internal/lexctl/util"
)

// rootOptions carries the global flags and the loaded configuration
type rootOptions struct {
	configPath string
	server     string
	output     string
	debug      bool

	cfg *config.Config
}

func (o *rootOptions) client() (*client.Client, error) {
	return util.GetClient(o.cfg, o.server)
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// printResult writes v as JSON when -o json is set, otherwise calls table
func (o *rootOptions) printResult(w io.Writer, v interface{}, table func(io.Writer) error) error {
	switch o.output {
	case "json":
		return util.PrintJSON(w, v)
	case "", "table":
		tw := util.NewTabWriter(w)
		if err := table(tw); err != nil {
			return err
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", o.output)
	}
}

// NewRootCmd builds the lexctl command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "lexctl",
		Short: "LexDesk CRM control tool",
		Long: `lexctl is a command line tool for operating a lexd server. It inspects and
controls the offline gateway, queries stored telemetry and can drive a scripted
page session against the analytics collector.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is $HOME/.lexctl/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.server, "server", "", "lexd server address")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "output format (table|json)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug output")

	cmd.AddCommand(
		newVersionCmd(opts),
		newConfigCmd(opts),
		newGatewayCmd(opts),
		newTelemetryCmd(opts),
	)
	return cmd
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
