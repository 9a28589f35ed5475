package cmd

import (
	"fmt"
	"io"
	"net/url"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wrale/wrale-lexdesk/internal/lexctl/config"
)

// newConfigCmd creates the config command that manages CLI contexts
func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long: `The config command manages lexctl contexts. Each context names a lexd
server, so switching between development and production is a single command.`,
	}

	cmd.AddCommand(
		newConfigGetContextCmd(opts),
		newConfigSetContextCmd(opts),
		newConfigUseContextCmd(opts),
		newConfigDeleteContextCmd(opts),
	)
	return cmd
}

func newConfigGetContextCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get-context [name]",
		Short: "Display one or many contexts",
		Example: `  # List all contexts
  lexctl config get-context

  # Show details for a specific context
  lexctl config get-context production`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if len(args) == 1 {
				ctx, ok := cfg.Contexts[args[0]]
				if !ok {
					return fmt.Errorf("context %q not found", args[0])
				}
				return opts.printResult(cmd.OutOrStdout(), ctx, func(w io.Writer) error {
					fmt.Fprintf(w, "Name:\t%s\n", ctx.Name)
					fmt.Fprintf(w, "Server:\t%s\n", ctx.Server)
					fmt.Fprintf(w, "Insecure:\t%t\n", ctx.InsecureSkipVerify)
					fmt.Fprintf(w, "Current:\t%t\n", ctx.Name == cfg.CurrentContext)
					return nil
				})
			}

			names := make([]string, 0, len(cfg.Contexts))
			for name := range cfg.Contexts {
				names = append(names, name)
			}
			sort.Strings(names)

			return opts.printResult(cmd.OutOrStdout(), cfg.Contexts, func(w io.Writer) error {
				fmt.Fprintln(w, "CURRENT\tNAME\tSERVER")
				for _, name := range names {
					current := ""
					if name == cfg.CurrentContext {
						current = "*"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", current, name, cfg.Contexts[name].Server)
				}
				return nil
			})
		},
	}
}

func newConfigSetContextCmd(opts *rootOptions) *cobra.Command {
	var (
		server   string
		insecure bool
		use      bool
	)

	cmd := &cobra.Command{
		Use:   "set-context NAME",
		Short: "Create or update a context",
		Example: `  # Add a local development server and switch to it
  lexctl config set-context dev --server http://localhost:8080 --use`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			ctx := &config.Context{}
			if existing, ok := opts.cfg.Contexts[name]; ok {
				*ctx = *existing
			}
			if cmd.Flags().Changed("server") {
				u, err := url.Parse(server)
				if err != nil || !u.IsAbs() {
					return fmt.Errorf("invalid server %q: must be an absolute URL", server)
				}
				ctx.Server = server
			}
			if cmd.Flags().Changed("insecure-skip-verify") {
				ctx.InsecureSkipVerify = insecure
			}
			if ctx.Server == "" {
				return fmt.Errorf("--server is required for a new context")
			}

			opts.cfg.AddContext(name, ctx)
			if use || opts.cfg.CurrentContext == "" {
				if err := opts.cfg.SetCurrentContext(name); err != nil {
					return err
				}
			}
			if err := opts.cfg.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Context %q set\n", name)
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "lexd server URL")
	cmd.Flags().BoolVar(&insecure, "insecure-skip-verify", false, "skip TLS certificate verification")
	cmd.Flags().BoolVar(&use, "use", false, "make this the current context")
	return cmd
}

func newConfigUseContextCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "use-context NAME",
		Short: "Set the current context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.cfg.SetCurrentContext(args[0]); err != nil {
				return err
			}
			if err := opts.cfg.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to context %q\n", args[0])
			return nil
		},
	}
}

func newConfigDeleteContextCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-context NAME",
		Short: "Delete a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.cfg.RemoveContext(args[0]); err != nil {
				return err
			}
			if err := opts.cfg.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted context %q\n", args[0])
			return nil
		},
	}
}
