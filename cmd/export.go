package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Rana718/fireseed/internal/exporter"
	"github.com/Rana718/fireseed/internal/logging"
	"github.com/Rana718/fireseed/internal/seeder"
	"github.com/Rana718/fireseed/internal/store"
)

func newExportCmd(v *viper.Viper) *cobra.Command {
	var (
		out      string
		format   string
		pageSize int
	)

	exportCmd := &cobra.Command{
		Use:   "export [collections...]",
		Short: "Dump Firestore collections into fixture format",
		Long: `
Export top-level collections, subcollections included, into a fixture that
fireseed can seed again. Document ids are written under "id" and timestamps
as dates or RFC 3339 strings.

Examples:
  fireseed export --useEmulator
  fireseed export users rewards --out backup.json
  fireseed export --format yaml --out seed.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, logger, err := loadSettings(cmd, v)
			if err != nil {
				return err
			}
			if format != exporter.FormatJSON && format != exporter.FormatYAML {
				return seeder.Validation("parse flags", fmt.Errorf("unsupported format %q (use json or yaml)", format))
			}
			for _, name := range args {
				if err := store.ValidateSegment(name); err != nil {
					return seeder.Validation("check collection name", err)
				}
			}

			st, err := connect(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			data, err := exporter.Export(ctx, st, exporter.Options{
				Collections: args,
				PageSize:    pageSize,
				MaxDepth:    cfg.MaxDepth,
			})
			if err != nil {
				logging.LogError(logger, "exporter", "Export", "export failed", args, err)
				if errors.Is(err, exporter.ErrKeyCollision) {
					return seeder.Validation("export", err)
				}
				return seeder.Classify("export", "", err)
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return seeder.Validation("create output", err)
				}
				defer f.Close()
				w = f
			}

			if err := exporter.Write(w, data, format); err != nil {
				return seeder.Validation("write export", err)
			}

			if out != "" && out != "-" {
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✅ Export completed: %s (%d collections)\n", out, len(data))
			}
			return nil
		},
	}

	exportCmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	exportCmd.Flags().StringVar(&format, "format", exporter.FormatJSON, "output format (json or yaml)")
	exportCmd.Flags().IntVar(&pageSize, "pageSize", exporter.DefaultPageSize, "documents read per page")
	return exportCmd
}
