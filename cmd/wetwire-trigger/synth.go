package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	s3trigger "github.com/lex00/wetwire-s3trigger-go"
	"github.com/lex00/wetwire-s3trigger-go/internal/template"
	"github.com/lex00/wetwire-s3trigger-go/stack"
)

func newSynthCmd(root *rootOptions) *cobra.Command {
	var (
		outputFormat string
		outdir       string
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize CloudFormation templates and assets",
		Long: `Synth builds the configured stack and writes, for every stack, a template,
an asset manifest and the staged handler archives into the output directory.

Formats:
  text         summary of the written files (default)
  json, yaml   the template, printed to stdout
  json-result  machine-readable build result

Examples:
    wetwire-trigger synth
    wetwire-trigger synth -o cdk.out
    wetwire-trigger synth --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			assembly, err := root.synth(outdir)
			if err != nil {
				if outputFormat == "json-result" {
					_ = writeJSON(cmd.OutOrStdout(), s3trigger.BuildResult{Errors: []string{err.Error()}})
				}
				return fmt.Errorf("synth failed: %w", err)
			}
			return outputAssembly(cmd.OutOrStdout(), assembly, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text, json, yaml or json-result")
	cmd.Flags().StringVarP(&outdir, "outdir", "o", "", "Output directory (default: app.outdir)")

	return cmd
}

func outputAssembly(w io.Writer, assembly *stack.CloudAssembly, format string) error {
	switch format {
	case "text":
		for _, s := range assembly.Stacks {
			fmt.Fprintf(w, "%s: %d resources\n", s.StackName, len(s.Template.Resources))
			fmt.Fprintf(w, "  template  %s\n", s.TemplateFile)
			fmt.Fprintf(w, "  assets    %s\n", s.AssetsFile)
			for _, a := range s.Assets {
				fmt.Fprintf(w, "    %s (%s)\n", a.FileName, humanize.Bytes(uint64(a.Size)))
			}
		}
		return nil

	case "json", "yaml":
		for _, s := range assembly.Stacks {
			var (
				data []byte
				err  error
			)
			if format == "json" {
				data, err = template.ToJSON(s.Template)
			} else {
				data, err = template.ToYAML(s.Template)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(w, string(data))
		}
		return nil

	case "json-result":
		if len(assembly.Stacks) == 0 {
			return writeJSON(w, s3trigger.BuildResult{Success: true})
		}
		s := assembly.Stacks[0]
		result := s3trigger.BuildResult{Success: true, Template: *s.Template}
		for name := range s.Template.Resources {
			result.Resources = append(result.Resources, name)
		}
		sort.Strings(result.Resources)
		for _, a := range s.Assets {
			result.Assets = append(result.Assets, a.FileName)
		}
		return writeJSON(w, result)

	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
