package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmynk/tithe/internal/auth"
	"github.com/mmynk/tithe/internal/calculator"
	"github.com/mmynk/tithe/internal/editor"
	"github.com/mmynk/tithe/internal/events"
	"github.com/mmynk/tithe/internal/models"
	"github.com/mmynk/tithe/internal/timekey"
)

// ─── calc ───────────────────────────────────────────────────────────────────

func (a *App) calcCmd() *cobra.Command {
	var items, deductions []string
	var percent string

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Compute totals without saving",
		Example: `  tithe calc --items 100,200 --deductions 5,10 --percent 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			its := make([]models.CalcItem, len(items))
			for i, raw := range items {
				its[i] = models.CalcItem{Value: calculator.ParseAmount(raw)}
			}
			deds := make([]models.Deduction, len(deductions))
			for i, raw := range deductions {
				deds[i] = models.Deduction{Amount: calculator.ParseAmount(raw)}
			}
			a.printTotals(calculator.Calculate(its, deds, calculator.ParsePercent(percent)))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&items, "items", nil, "Item values")
	cmd.Flags().StringSliceVar(&deductions, "deductions", nil, "Deduction amounts")
	cmd.Flags().StringVar(&percent, "percent", "10", "Percentage rate")
	return cmd
}

func (a *App) printTotals(t calculator.Totals) {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Sum\t%.2f\n", t.Sum)
	fmt.Fprintf(w, "Percent amount\t%.2f\n", t.PercentAmount)
	fmt.Fprintf(w, "Deductions\t%.2f\n", t.DeductionsSum)
	if t.IsOverDeducted() {
		fmt.Fprintf(w, "Over-deducted\t%.2f\n", t.OverDeducted)
	} else {
		fmt.Fprintf(w, "Remaining to deduct\t%.2f\n", t.RemainingToDeduct)
	}
	fmt.Fprintf(w, "Total\t%.2f\n", t.Total)
	w.Flush()
}

// ─── new ────────────────────────────────────────────────────────────────────

func (a *App) newCmd() *cobra.Command {
	var title, tag, percent string
	var items, deductions []string

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create and save a calculation",
		Long: `Create a calculation. Deductions are AMOUNT or AMOUNT:NOTE.
The period defaults to the current month and is appended to the title.`,
		Example: `  tithe new --title Salary --items 100,200 --deductions "5:books,10" --tag 2025-09`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.principal(cmd.Context())
			if err != nil {
				return err
			}

			ed := editor.New(a.store, a.compressor(), a.editorOptions())
			if title != "" {
				ed.SetTitle(title)
			}
			if percent != "" {
				ed.SetPercent(calculator.ParsePercent(percent))
			}
			draft := ed.Draft()
			for i, raw := range items {
				if i < len(draft.Items) {
					if err := ed.SetItemInput(draft.Items[i].ID, raw); err != nil {
						return err
					}
					continue
				}
				ed.AddItem(calculator.ParseAmount(raw))
			}
			for _, raw := range deductions {
				amount, note, _ := strings.Cut(raw, ":")
				ed.AddDeduction(calculator.ParseAmount(amount), strings.TrimSpace(note))
			}
			// SetTimeTag rewrites the title suffix, so it runs after SetTitle.
			if tag != "" {
				if err := ed.SetTimeTag(tag); err != nil {
					return err
				}
			} else if title != "" {
				ed.SetTitle(timekey.WithTitleSuffix(title, timekey.OfSession(ed.Draft())))
			}

			saved, err := ed.Save(ctx)
			if err != nil {
				return err
			}
			events.PublishBestEffort(ctx, a.events(), events.Saved(auth.PrincipalFrom(ctx), saved))

			fmt.Fprintf(a.out, "Saved %s %q (%s)\n", saved.ID, saved.Title, saved.TimeTag)
			for _, d := range saved.Deductions {
				fmt.Fprintf(a.out, "  deduction %s  %.2f  %s\n", d.ID, d.Amount, d.Note)
			}
			a.printTotals(ed.Totals())
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Title")
	cmd.Flags().StringVar(&tag, "tag", "", "Period, e.g. 2025-09 or 9/2025")
	cmd.Flags().StringVar(&percent, "percent", "", "Percentage rate (default from config)")
	cmd.Flags().StringSliceVar(&items, "items", nil, "Item values")
	cmd.Flags().StringSliceVar(&deductions, "deductions", nil, "Deductions as AMOUNT[:NOTE]")
	return cmd
}

// ─── list ───────────────────────────────────────────────────────────────────

func (a *App) listCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved calculations, newest first",
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

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPERIOD\tTITLE\tTOTAL\tRECEIPTS")
			n := 0
			for _, s := range sessions {
				if search != "" && !strings.Contains(s.Title, search) {
					continue
				}
				t := calculator.CalculateSession(s)
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\n",
					s.ID, timekey.OfSession(s).Display(), s.Title, t.Total, s.AttachmentCount())
				n++
			}
			w.Flush()
			if n == 0 {
				fmt.Fprintln(a.out, "No calculations found.")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only titles containing this text")
	return cmd
}

// ─── delete ─────────────────────────────────────────────────────────────────

func (a *App) deleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete SESSION_ID",
		Short: "Delete a calculation permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.principal(cmd.Context())
			if err != nil {
				return err
			}
			ed, err := editor.Open(ctx, a.store, a.compressor(), args[0], a.editorOptions())
			if err != nil {
				return err
			}

			var confirm editor.Confirmer = editor.ConfirmFunc(a.prompt)
			if yes {
				confirm = editor.ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })
			}
			if err := ed.Delete(ctx, confirm); err != nil {
				return err
			}
			events.PublishBestEffort(ctx, a.events(), events.Deleted(auth.PrincipalFrom(ctx), args[0]))
			fmt.Fprintf(a.out, "Deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// prompt asks a yes/no question on the command's input.
func (a *App) prompt(_ context.Context, question string) (bool, error) {
	fmt.Fprintf(a.out, "%s [y/N] ", question)
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// ─── attach ─────────────────────────────────────────────────────────────────

func (a *App) attachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach SESSION_ID DEDUCTION_ID IMAGE_FILE",
		Short: "Compress an image and attach it as a deduction's receipt",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := a.principal(cmd.Context())
			if err != nil {
				return err
			}
			src, err := os.ReadFile(args[2])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			ed, err := editor.Open(ctx, a.store, a.compressor(), args[0], a.editorOptions())
			if err != nil {
				return err
			}
			if err := ed.AttachReceipt(ctx, args[1], src); err != nil {
				return err
			}
			saved, err := ed.Save(ctx)
			if err != nil {
				return err
			}
			events.PublishBestEffort(ctx, a.events(), events.Saved(auth.PrincipalFrom(ctx), saved))

			for _, d := range saved.Deductions {
				if d.ID == args[1] && d.Attachment != nil {
					fmt.Fprintf(a.out, "Attached %q (%d KiB) to %s\n",
						d.Attachment.Filename, len(d.Attachment.DataURI)/1024, d.ID)
				}
			}
			return nil
		},
	}
}
