package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	s3trigger "github.com/lex00/wetwire-s3trigger-go"
	"github.com/lex00/wetwire-s3trigger-go/internal/template"
)

func newListCmd(root *rootOptions) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the resources of the configured stack",
		Long: `List builds the configured stack and displays every resource with its
logical id, type and construct path.

Examples:
    wetwire-trigger list
    wetwire-trigger list --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, app, err := root.loadApp("")
			if err != nil {
				return err
			}
			result := s3trigger.ListResult{Resources: []s3trigger.ListResource{}}
			for _, st := range app.Stacks() {
				t, err := st.Template()
				if err != nil {
					return err
				}
				result.Resources = append(result.Resources, listResources(t)...)
			}
			return outputListResult(cmd.OutOrStdout(), result, outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

func listResources(t *s3trigger.Template) []s3trigger.ListResource {
	out := make([]s3trigger.ListResource, 0, len(t.Resources))
	for name, def := range t.Resources {
		path, _ := def.Metadata[template.PathMetadataKey].(string)
		out = append(out, s3trigger.ListResource{Name: name, Type: def.Type, Path: path})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func outputListResult(w io.Writer, result s3trigger.ListResult, format string) error {
	switch format {
	case "json":
		return writeJSON(w, result)

	case "text":
		if len(result.Resources) == 0 {
			fmt.Fprintln(w, "No resources found.")
			return nil
		}
		fmt.Fprintf(w, "Resources (%d):\n\n", len(result.Resources))
		for _, res := range result.Resources {
			fmt.Fprintf(w, "  %s: %s\n", res.Name, res.Type)
			if res.Path != "" {
				fmt.Fprintf(w, "      %s\n", res.Path)
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}
