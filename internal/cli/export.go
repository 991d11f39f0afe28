package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mmynk/tithe/internal/archive"
	"github.com/mmynk/tithe/internal/report"
)

var errMixedSelection = errors.New("years and months cannot be combined")

// ─── export ─────────────────────────────────────────────────────────────────

func (a *App) exportCmd() *cobra.Command {
	var years, months []string
	var allYears, allMonths bool
	var dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Zip the receipts of the picked years or months",
		Example: `  tithe export --years 2024,2025 -o ~/Downloads
  tithe export --months 2025-09,8/2025
  tithe export --all-months`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(years) > 0 || allYears) && (len(months) > 0 || allMonths) {
				return errMixedSelection
			}
			ctx, err := a.principal(cmd.Context())
			if err != nil {
				return err
			}
			sessions, err := a.store.List(ctx)
			if err != nil {
				return err
			}

			var p archive.Picker
			switch {
			case allYears:
				p.ToggleAllYears(archive.Bucket(sessions))
			case allMonths:
				p.ToggleAllMonths(archive.Bucket(sessions))
			case len(years) > 0:
				p.PickYears(years...)
			case len(months) > 0:
				p.PickMonths(months...)
			}

			plan, notice := archive.Export(sessions, p)
			return a.writePlan(plan, notice, dir)
		},
	}
	cmd.Flags().StringSliceVar(&years, "years", nil, "Years to export (YYYY)")
	cmd.Flags().StringSliceVar(&months, "months", nil, "Months to export (YYYY-MM or M/YYYY)")
	cmd.Flags().BoolVar(&allYears, "all-years", false, "Export every year")
	cmd.Flags().BoolVar(&allMonths, "all-months", false, "Export every month")
	cmd.Flags().StringVarP(&dir, "output", "o", ".", "Directory to write the archive to")
	return cmd
}

// ─── export-session ─────────────────────────────────────────────────────────

func (a *App) exportSessionCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export-session SESSION_ID",
		Short: "Zip the receipts of one calculation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.principal(cmd.Context())
			if err != nil {
				return err
			}
			s, err := a.store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			plan, notice := archive.ExportSession(s)
			return a.writePlan(plan, notice, dir)
		},
	}
	cmd.Flags().StringVarP(&dir, "output", "o", ".", "Directory to write the archive to")
	return cmd
}

// writePlan writes the archive into dir, or prints the notice when there
// is nothing to write.
func (a *App) writePlan(plan *archive.Plan, notice archive.Notice, dir string) error {
	if notice != archive.NoticeNone {
		fmt.Fprintf(a.out, "Nothing written: %s.\n", notice)
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, plan.Filename())
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	n, err := plan.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return err
	}

	fmt.Fprintf(a.out, "Wrote %s (%d receipts, %d bytes)\n", path, len(plan.Entries), n)
	return nil
}

// ─── report ─────────────────────────────────────────────────────────────────

func (a *App) reportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write an Excel summary of every calculation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.principal(cmd.Context())
			if err != nil {
				return err
			}
			sessions, err := a.store.List(ctx)
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create report: %w", err)
			}
			err = report.Write(f, sessions)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(output)
				return err
			}
			fmt.Fprintf(a.out, "Wrote %s (%d calculations)\n", output, len(sessions))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "tithe-report.xlsx", "Workbook path")
	return cmd
}
