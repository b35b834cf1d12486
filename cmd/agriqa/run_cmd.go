package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nnnkkk7/agriqa/pkg/engine"
)

// runOutput is the JSON form of an invocation.
type runOutput struct {
	InvocationID string         `json:"invocationId"`
	Template     string         `json:"template"`
	Params       map[string]any `json:"params"`
	SQL          string         `json:"sql"`
	Results      []unitOutput   `json:"results"`
	Failed       int            `json:"failed"`
	Missing      []string       `json:"missing,omitempty"`
	DurationMs   int64          `json:"durationMs"`
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var rawParams []string

	cmd := &cobra.Command{
		Use:   "run <template-id | file.sql>",
		Short: "Run a catalogue template or a SQL template file",
		Example: `  agriqa run trend_corr --param STATE=Punjab --param CROP_NAME=Wheat --param N_YEARS=5
  agriqa run ./queries/custom.sql --param STATE=Kerala`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseParams(rawParams)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var inv *engine.Invocation
			if target := args[0]; strings.HasSuffix(strings.ToLower(target), ".sql") {
				text, err := os.ReadFile(target)
				if err != nil {
					return fmt.Errorf("read template file: %w", err)
				}
				inv, err = a.engine.RunText(cmd.Context(), filepath.Base(target), string(text), values)
				if err != nil {
					return err
				}
			} else {
				inv, err = a.engine.Run(cmd.Context(), target, values)
				if err != nil {
					return err
				}
			}

			return printInvocation(cmd, opts, inv)
		},
	}

	cmd.Flags().StringArrayVarP(&rawParams, "param", "p", nil, "template parameter as NAME=VALUE (repeatable)")
	return cmd
}

// parseParams turns NAME=VALUE pairs into raw parameter values. Values stay
// strings; the parameter validator coerces counts.
func parseParams(pairs []string) (map[string]any, error) {
	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q: want NAME=VALUE", pair)
		}
		if _, dup := values[name]; dup {
			return nil, fmt.Errorf("parameter %s given more than once", name)
		}
		values[name] = value
	}
	return values, nil
}

func printInvocation(cmd *cobra.Command, opts *rootOptions, inv *engine.Invocation) error {
	w := cmd.OutOrStdout()
	format, err := resolveFormat(opts.output, w)
	if err != nil {
		return err
	}

	if format == formatJSON {
		return printJSON(w, runOutput{
			InvocationID: inv.ID.String(),
			Template:     inv.TemplateID,
			Params:       inv.Params,
			SQL:          inv.RenderedSQL,
			Results:      toUnitOutputs(inv.Results),
			Failed:       inv.Failed(),
			Missing:      inv.Missing,
			DurationMs:   inv.Duration.Milliseconds(),
		})
	}

	fmt.Fprintf(w, "template %s, invocation %s, %d unit(s), %d failed, %s\n",
		inv.TemplateID, inv.ID, len(inv.Results), inv.Failed(), inv.Duration.Round(time.Millisecond))
	if len(inv.Missing) > 0 {
		fmt.Fprintf(w, "unset placeholders: %s\n", strings.Join(inv.Missing, ", "))
	}
	printResults(w, inv.Results)
	return nil
}
