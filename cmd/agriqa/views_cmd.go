package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nnnkkk7/agriqa/pkg/dataset"
)

type viewsOutput struct {
	Report *dataset.Report   `json:"report,omitempty"`
	Views  []dataset.Summary `json:"views"`
}

func newViewsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "Create the dataset views and report their year coverage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			summaries, err := a.loader.Summaries(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			format, err := resolveFormat(opts.output, w)
			if err != nil {
				return err
			}
			if format == formatJSON {
				return printJSON(w, viewsOutput{Report: a.report, Views: summaries})
			}

			if a.report != nil {
				skipped := make([]string, 0, len(a.report.Skipped))
				for view := range a.report.Skipped {
					skipped = append(skipped, view)
				}
				sort.Strings(skipped)
				for _, view := range skipped {
					fmt.Fprintf(w, "skipped %s: %s\n", view, a.report.Skipped[view])
				}
			}

			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				row := []string{s.View, "", "", strconv.FormatInt(s.Rows, 10), s.Err}
				if s.Err == "" && s.Rows > 0 {
					row[1] = strconv.FormatInt(s.MinYear, 10)
					row[2] = strconv.FormatInt(s.MaxYear, 10)
				}
				rows = append(rows, row)
			}
			printTable(w, []string{"view", "min_year", "max_year", "rows", "error"}, rows)
			return nil
		},
	}
}

func newTemplatesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the template catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			entries := a.engine.Catalog().List()

			w := cmd.OutOrStdout()
			format, err := resolveFormat(opts.output, w)
			if err != nil {
				return err
			}
			if format == formatJSON {
				return printJSON(w, entries)
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.ID, e.File, e.Description})
			}
			printTable(w, []string{"id", "file", "description"}, rows)
			return nil
		},
	}
}
