package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"truckplan/internal/calendar"
	"truckplan/internal/export"
	"truckplan/internal/planner"
)

type boardFlags struct {
	view    string
	anchor  string
	start   string
	end     string
	profile string
}

func (f *boardFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.view, "view", "", "week, 2week, month or custom (default from config)")
	cmd.Flags().StringVar(&f.anchor, "anchor", "", "anchor date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&f.start, "start", "", "custom range start YYYY-MM-DD")
	cmd.Flags().StringVar(&f.end, "end", "", "custom range end YYYY-MM-DD")
	cmd.Flags().StringVar(&f.profile, "profile", "", "profile whose driver order is applied")
}

func (f *boardFlags) viewState(a *app) (planner.ViewState, error) {
	name := f.view
	if name == "" {
		name = a.cfg.Planner.DefaultView
	}
	mode, err := calendar.ParseViewMode(name)
	if err != nil {
		return planner.ViewState{}, err
	}

	view := planner.NewViewState(mode, a.svc.Today())
	if f.anchor != "" {
		view.Anchor = f.anchor
	}
	if mode == calendar.ViewCustom && (f.start != "" || f.end != "") {
		view.CustomStart, view.CustomEnd = f.start, f.end
	}
	return view, view.Validate()
}

func (a *app) loadBoard(cmd *cobra.Command, f *boardFlags) (*planner.Board, error) {
	view, err := f.viewState(a)
	if err != nil {
		return nil, err
	}
	if !a.cfg.ERP.Enabled {
		a.syncFleet(cmd.Context())
	}
	return a.svc.Board(cmd.Context(), f.profile, view)
}

func newExportCmd(configPath *string, logger *zerolog.Logger) *cobra.Command {
	var flags boardFlags
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the planner board to an xlsx workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(*configPath, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			board, err := a.loadBoard(cmd, &flags)
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("planner_%s.xlsx", board.Start)
			}

			fh, err := os.Create(out)
			if err != nil {
				return err
			}
			defer fh.Close()
			if err := export.WriteBoard(fh, board); err != nil {
				return err
			}
			logger.Info().Str("path", out).Int("drivers", len(board.Rows)).Msg("board exported")
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default planner_<start>.xlsx)")
	return cmd
}

func newLayoutCmd(configPath *string, logger *zerolog.Logger) *cobra.Command {
	var flags boardFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the laid out board",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(*configPath, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			board, err := a.loadBoard(cmd, &flags)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(board)
			}
			return printBoard(cmd.OutOrStdout(), board)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the board as JSON")
	return cmd
}

func printBoard(w io.Writer, b *planner.Board) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s .. %s (%s)\n", b.Start, b.End, b.View.Mode)
	fmt.Fprintln(tw, "DRIVER\tKIND\tID\tLABEL\tDATES\tLANE\tLEFT%\tWIDTH%")
	for _, r := range b.Rows {
		fmt.Fprintf(tw, "%s\t\t\t\t\t%d+%d\t\t\n", r.Driver.FullName, r.EventLanes, r.TruckloadLanes)
		for _, blocks := range [][]planner.Block{r.Events, r.Truckloads} {
			for _, blk := range blocks {
				fmt.Fprintf(tw, "\t%s\t%d\t%s\t%s..%s\t%d\t%.2f\t%.2f\n",
					blk.Kind, blk.ID, blk.Label, blk.StartDate, blk.EndDate, blk.Lane, blk.Left, blk.Width)
			}
		}
	}
	return tw.Flush()
}
