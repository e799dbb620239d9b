package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-s3trigger-go/internal/graph"
)

type graphOptions struct {
	format            string
	includeParameters bool
	cluster           bool
	showPaths         bool
}

func newGraphCmd(root *rootOptions) *cobra.Command {
	var opts graphOptions

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Generate DOT graph of resource dependencies",
		Long: `Generate a DOT or Mermaid format graph showing resource dependencies of the
configured stack.

The output can be rendered with Graphviz:
    wetwire-trigger graph | dot -Tpng -o deps.png

Or used in GitHub markdown (Mermaid format):
    wetwire-trigger graph -f mermaid

Examples:
    wetwire-trigger graph
    wetwire-trigger graph -p              # include parameters
    wetwire-trigger graph -C              # cluster by service
    wetwire-trigger graph --paths         # label nodes with construct paths`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(root, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().BoolVarP(&opts.includeParameters, "include-parameters", "p", false, "Include parameter nodes in the graph")
	cmd.Flags().BoolVarP(&opts.cluster, "cluster", "C", false, "Cluster resources by AWS service")
	cmd.Flags().BoolVar(&opts.showPaths, "paths", false, "Show construct paths in node labels")

	return cmd
}

func newGenerator(opts graphOptions) (*graph.Generator, error) {
	var format graph.Format
	switch opts.format {
	case "dot", "":
		format = graph.FormatDOT
	case "mermaid":
		format = graph.FormatMermaid
	default:
		return nil, fmt.Errorf("unknown format: %s (use 'dot' or 'mermaid')", opts.format)
	}
	return &graph.Generator{
		Format:            format,
		IncludeParameters: opts.includeParameters,
		ClusterByType:     opts.cluster,
		ShowPaths:         opts.showPaths,
	}, nil
}

func runGraph(root *rootOptions, opts graphOptions, w io.Writer) error {
	gen, err := newGenerator(opts)
	if err != nil {
		return err
	}
	_, app, err := root.loadApp("")
	if err != nil {
		return err
	}
	for _, st := range app.Stacks() {
		t, err := st.Template()
		if err != nil {
			return err
		}
		if len(t.Resources) == 0 {
			return fmt.Errorf("stack %s has no resources", st.StackName())
		}
		if err := gen.Generate(t, w); err != nil {
			return err
		}
	}
	return nil
}
