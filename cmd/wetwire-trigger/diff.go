package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	s3trigger "github.com/lex00/wetwire-s3trigger-go"
	"github.com/lex00/wetwire-s3trigger-go/internal/differ"
)

var errTemplatesDiffer = errors.New("templates differ")

func newDiffCmd(root *rootOptions) *cobra.Command {
	var (
		outputFormat string
		ignoreOrder  bool
		exitCode     bool
	)

	cmd := &cobra.Command{
		Use:   "diff <template1> [template2]",
		Short: "Compare two templates, or a template with the configured stack",
		Long: `Diff compares CloudFormation templates resource by resource.

With one argument the file is compared with the template the current config
synthesizes, so the output shows what the next deploy changes.

Examples:
    wetwire-trigger diff deployed.json
    wetwire-trigger diff old.json new.yaml --ignore-order
    wetwire-trigger diff deployed.json --exit-code`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := differ.Options{IgnoreOrder: ignoreOrder}

			var (
				result *differ.Result
				err    error
			)
			if len(args) == 2 {
				result, err = differ.CompareFiles(args[0], args[1], opts)
			} else {
				result, err = diffWithConfig(root, args[0], opts)
			}
			if err != nil {
				return err
			}

			if err := outputDiff(cmd.OutOrStdout(), result, outputFormat); err != nil {
				return err
			}
			if exitCode && !result.Empty() {
				return errTemplatesDiffer
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&ignoreOrder, "ignore-order", false, "Ignore array element order")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Fail when the templates differ")

	return cmd
}

func diffWithConfig(root *rootOptions, path string, opts differ.Options) (*differ.Result, error) {
	old, err := differ.LoadTemplate(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	_, app, err := root.loadApp("")
	if err != nil {
		return nil, err
	}
	stacks := app.Stacks()
	if len(stacks) != 1 {
		return nil, fmt.Errorf("expected one stack, config builds %d", len(stacks))
	}
	current, err := stacks[0].Template()
	if err != nil {
		return nil, err
	}
	return differ.Compare(old, current, opts)
}

func outputDiff(w io.Writer, result *differ.Result, format string) error {
	switch format {
	case "json":
		return writeJSON(w, struct {
			Diff    s3trigger.TemplateDiff `json:"diff"`
			Summary s3trigger.DiffSummary  `json:"summary"`
		}{result.Diff, result.Summary})

	case "text":
		if result.Empty() {
			fmt.Fprintln(w, "No differences.")
			return nil
		}
		for _, e := range result.Diff.Added {
			fmt.Fprintf(w, "+ %s (%s)\n", e.Resource, e.Type)
		}
		for _, e := range result.Diff.Removed {
			fmt.Fprintf(w, "- %s (%s)\n", e.Resource, e.Type)
		}
		for _, e := range result.Diff.Modified {
			fmt.Fprintf(w, "~ %s (%s)\n", e.Resource, e.Type)
			for _, c := range e.Changes {
				fmt.Fprintf(w, "    %s\n", c)
			}
		}
		fmt.Fprintf(w, "\n%d added, %d removed, %d modified\n", result.Summary.Added, result.Summary.Removed, result.Summary.Modified)
		return nil

	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}
