package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-s3trigger-go/internal/validation"
)

var errValidationFailed = errors.New("validation failed")

// newValidateCmd creates the "validate" subcommand for checking synthesized templates.
func newValidateCmd(root *rootOptions) *cobra.Command {
	var (
		outputFormat string
		outdir       string
		skipLint     bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the synthesized templates",
		Long: `Validate synthesizes the configured stack and checks every template.

Checks performed:
  - Structure: references, DependsOn targets and notification wiring resolve
  - cfn-lint: CloudFormation schema rules (skip with --skip-lint)

Examples:
    wetwire-trigger validate
    wetwire-trigger validate --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := runValidate(root, outdir, skipLint)
			if err != nil {
				return err
			}
			return outputValidateResults(cmd.OutOrStdout(), results, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().StringVarP(&outdir, "outdir", "o", "", "Output directory (default: app.outdir)")
	cmd.Flags().BoolVar(&skipLint, "skip-lint", false, "Only run the structural checks")

	return cmd
}

func runValidate(root *rootOptions, outdir string, skipLint bool) ([]*validation.ValidationResult, error) {
	assembly, err := root.synth(outdir)
	if err != nil {
		return nil, fmt.Errorf("synth failed: %w", err)
	}

	var results []*validation.ValidationResult
	for _, s := range assembly.Stacks {
		path := s.TemplateFile
		if skipLint {
			path = ""
		}
		r, err := validation.ValidateTemplate(s.Template, path)
		if err != nil {
			return nil, err
		}
		if r.Template == "" {
			r.Template = s.TemplateFile
		}
		results = append(results, r)
	}
	return results, nil
}

func outputValidateResults(w io.Writer, results []*validation.ValidationResult, format string) error {
	passed := true
	for _, r := range results {
		passed = passed && r.Passed()
	}

	switch format {
	case "json":
		if err := writeJSON(w, results); err != nil {
			return err
		}

	case "text":
		for _, r := range results {
			if r.Passed() {
				fmt.Fprintf(w, "%s: validation passed, %d resources OK\n", r.Template, r.Resources)
			} else {
				fmt.Fprintf(w, "%s: validation FAILED\n", r.Template)
			}
			for _, e := range r.Structure.Errors {
				fmt.Fprintf(w, "  ERROR: %s\n", e)
			}
			for _, warn := range r.Structure.Warnings {
				fmt.Fprintf(w, "  WARNING: %s\n", warn)
			}
			if r.CfnLintResult == nil {
				continue
			}
			for _, e := range r.CfnLintResult.Errors {
				fmt.Fprintf(w, "  ERROR: %s\n", e)
			}
			for _, warn := range r.CfnLintResult.Warnings {
				fmt.Fprintf(w, "  WARNING: %s\n", warn)
			}
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	if !passed {
		return errValidationFailed
	}
	return nil
}
