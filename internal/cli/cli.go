// Package cli implements the shapeboard command-line interface.
//
// Running shapeboard with no subcommand opens the desktop app. The
// subcommands cover the headless side of the same workflows:
//   - serve: run the drawing API server
//   - login, logout: manage the CLI session
//   - push, pull: move a drawing document to or from the server
//   - export-pdf: render a drawing document as a PDF page
//   - discover: list drawing servers on the local network
//
// All commands accept --config to pick the TOML file and --verbose (-v) for
// debug logging. Loggers are passed through context.Context.
package cli

import (
	"context"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"ShapeBoard/internal/config"
	"ShapeBoard/internal/ui"
)

var (
	version string
	commit  string
	date    string
)

// SetVersion sets the version information displayed by --version.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// rootOptions holds the persistent flags and the configuration they load.
type rootOptions struct {
	configPath string
	verbose    bool
	apiURL     string

	cfg config.Config
}

// Execute runs the shapeboard CLI.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "shapeboard",
		Short:        "ShapeBoard is a small shape drawing board",
		Long:         `ShapeBoard places circles, squares and triangles on a canvas and saves the drawing to a JSON file or a drawing server.`,
		Version:      version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := charmlog.InfoLevel
			if opts.verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(cmd.ErrOrStderr(), level)))

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.apiURL != "" {
				cfg.Client.APIURL = opts.apiURL
			}
			opts.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.cfg.Validate(); err != nil {
				return err
			}
			return ui.Run(cmd.Context(), opts.cfg, loggerFromContext(cmd.Context()))
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("shapeboard %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("SHAPEBOARD_CONFIG"), "config file (default ~/.config/shapeboard/config.toml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&opts.apiURL, "api", "", "drawing server URL (overrides client.api_url)")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newLoginCmd(opts))
	root.AddCommand(newLogoutCmd(opts))
	root.AddCommand(newPushCmd(opts))
	root.AddCommand(newPullCmd(opts))
	root.AddCommand(newExportPDFCmd(opts))
	root.AddCommand(newDiscoverCmd(opts))

	return root
}
