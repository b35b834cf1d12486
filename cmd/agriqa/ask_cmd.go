package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nnnkkk7/agriqa/pkg/narrative"
	"github.com/nnnkkk7/agriqa/pkg/nlmap"
)

type askOutput struct {
	Question  string               `json:"question"`
	Mapping   nlmap.Mapping        `json:"mapping"`
	Answer    string               `json:"answer"`
	Model     string               `json:"model,omitempty"`
	Fallback  bool                 `json:"fallback"`
	Offline   bool                 `json:"offline"`
	Sources   []string             `json:"sources"`
	Citations []narrative.Citation `json:"citations"`
	SQL       string               `json:"sql"`
	Results   []unitOutput         `json:"results"`
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		offline     bool
		showResults bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the dataset views",
		Example: `  agriqa ask "Compare rainfall in Punjab and Kerala over the last 5 years" --offline
  agriqa --sample ask "Analyze the production trend of Wheat in Punjab over the last 4 years"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ans, err := a.askService(offline).Ask(cmd.Context(), strings.Join(args, " "), offline)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			format, err := resolveFormat(opts.output, w)
			if err != nil {
				return err
			}
			if format == formatJSON {
				sources := ans.Sources
				if sources == nil {
					sources = []string{}
				}
				return printJSON(w, askOutput{
					Question:  ans.Question,
					Mapping:   ans.Mapping,
					Answer:    ans.Reply.Text,
					Model:     ans.Reply.Model,
					Fallback:  ans.Reply.Fallback,
					Offline:   ans.Offline,
					Sources:   sources,
					Citations: ans.Citations,
					SQL:       ans.Invocation.RenderedSQL,
					Results:   toUnitOutputs(ans.Invocation.Results),
				})
			}

			fmt.Fprintln(w, ans.Reply.Text)
			fmt.Fprintf(w, "\ntemplate %s (mapped by %s)\n", ans.Mapping.TemplateID, ans.Mapping.Source)
			fmt.Fprintln(w, "sources:")
			for _, c := range ans.Citations {
				fmt.Fprintf(w, "  %s (%s)\n", c.Source, c.File)
			}
			if showResults {
				printResults(w, ans.Invocation.Results)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "answer without calling the LLM provider")
	cmd.Flags().BoolVar(&showResults, "results", false, "print the result tables after the answer")
	return cmd
}
