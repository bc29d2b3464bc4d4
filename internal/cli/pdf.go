package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ShapeBoard/internal/export"
	"ShapeBoard/internal/gateway"
	"ShapeBoard/internal/state"
)

func newExportPDFCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export-pdf <file> [output]",
		Short: "Render a drawing document as a PDF",
		Long: `Render a drawing document as an A4 landscape PDF.

Without an output path the PDF is written to client.export_dir and named
after the drawing title.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			files := gateway.NewFileGateway(filepath.Dir(args[0]), logger)
			files.SetSource(args[0])
			store := state.NewStore(logger)
			if _, err := gateway.Import(ctx, files, store); err != nil {
				return err
			}
			d := store.Snapshot()

			out := filepath.Join(opts.cfg.Client.ExportDir, export.FileName(d.Title))
			if len(args) == 2 {
				out = args[1]
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			if err := export.ExportPDF(out, d); err != nil {
				return err
			}
			logger.Debug("pdf written", "path", out, "objects", len(d.Objects))

			printSuccess(cmd.OutOrStdout(), "Rendered %s", styleValue.Render(d.Title))
			printCounts(cmd.OutOrStdout(), countsOf(d))
			printFile(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
