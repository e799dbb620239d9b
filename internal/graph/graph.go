// Package graph generates DOT and Mermaid format dependency graphs from
// synthesized templates.
package graph

import (
	"io"
	"sort"
	"strings"

	"github.com/emicklei/dot"

	s3trigger "github.com/lex00/wetwire-s3trigger-go"
	"github.com/lex00/wetwire-s3trigger-go/internal/template"
)

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// Generator creates dependency graphs from templates.
type Generator struct {
	// IncludeParameters includes parameter references in the graph.
	IncludeParameters bool

	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format

	// ClusterByType groups resources by AWS service.
	ClusterByType bool

	// ShowPaths labels nodes with their construct path when the template
	// records one.
	ShowPaths bool
}

// Generate creates a dependency graph of t and writes it to w.
func (g *Generator) Generate(t *s3trigger.Template, w io.Writer) error {
	graph := g.buildGraph(t)

	var output string
	if g.Format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	} else {
		output = graph.String()
	}

	_, err := io.WriteString(w, output)
	return err
}

// GenerateString is a convenience method that returns the graph as a string.
func (g *Generator) GenerateString(t *s3trigger.Template) (string, error) {
	var sb strings.Builder
	if err := g.Generate(t, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (g *Generator) buildGraph(t *s3trigger.Template) *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")

	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})
	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("fontname", "Arial")
		e.Attr("fontsize", "10")
	})

	names := sortedNames(t.Resources)
	if g.ClusterByType {
		g.addClusteredNodes(graph, t, names)
	} else {
		for _, name := range names {
			g.addNode(graph, t, name)
		}
	}

	if g.IncludeParameters {
		for _, name := range sortedNames(t.Parameters) {
			n := graph.Node(name)
			n.Attr("shape", "ellipse")
			n.Attr("style", "dashed")
			n.Label(name)
		}
	}

	deps := template.Dependencies(t)
	for _, name := range names {
		def := t.Resources[name]
		getAtts := getAttTargets(def.Properties)
		explicit := make(map[string]bool, len(def.DependsOn))
		for _, d := range def.DependsOn {
			explicit[d] = true
		}

		for _, dep := range deps[name] {
			e := graph.Edge(graph.Node(name), graph.Node(dep))
			switch {
			case getAtts[dep]:
				e.Attr("color", "blue")
			case explicit[dep]:
				e.Attr("style", "dashed")
			}
		}

		if !g.IncludeParameters {
			continue
		}
		for _, ref := range template.References(def.Properties) {
			if _, isParam := t.Parameters[ref]; isParam {
				graph.Edge(graph.Node(name), graph.Node(ref))
			}
		}
	}

	return graph
}

func (g *Generator) addNode(graph *dot.Graph, t *s3trigger.Template, name string) {
	g.label(graph.Node(name), t, name)
}

func (g *Generator) label(n dot.Node, t *s3trigger.Template, name string) {
	def := t.Resources[name]
	label := name + "\\n[" + def.Type + "]"
	if g.ShowPaths {
		if path, ok := def.Metadata[template.PathMetadataKey].(string); ok {
			label += "\\n" + path
		}
	}
	n.Label(label)
}

// addClusteredNodes groups resource nodes by service when a service has more
// than one resource.
func (g *Generator) addClusteredNodes(graph *dot.Graph, t *s3trigger.Template, names []string) {
	byService := make(map[string][]string)
	for _, name := range names {
		service := extractService(t.Resources[name].Type)
		byService[service] = append(byService[service], name)
	}

	for _, service := range sortedNames(byService) {
		members := byService[service]
		if len(members) == 1 {
			g.addNode(graph, t, members[0])
			continue
		}
		cluster := graph.Subgraph("cluster_"+service, dot.ClusterOption{})
		cluster.Attr("label", service)
		cluster.Attr("style", "rounded")
		cluster.Attr("bgcolor", "lightyellow")
		for _, name := range members {
			g.label(cluster.Node(name), t, name)
		}
	}
}

// extractService returns the service of a CloudFormation type.
// e.g., "AWS::S3::Bucket" -> "S3", "Custom::S3BucketNotifications" -> "Custom"
func extractService(cfType string) string {
	parts := strings.Split(cfType, "::")
	switch {
	case len(parts) >= 3:
		return parts[1]
	case len(parts) == 2:
		return parts[0]
	}
	return "Other"
}

// getAttTargets returns the resources referenced through Fn::GetAtt.
func getAttTargets(value any) map[string]bool {
	found := make(map[string]bool)
	var walk func(any)
	walk = func(v any) {
		switch val := v.(type) {
		case map[string]any:
			if ga, ok := val["Fn::GetAtt"]; ok && len(val) == 1 {
				switch g := ga.(type) {
				case []any:
					if len(g) > 0 {
						if name, ok := g[0].(string); ok {
							found[name] = true
						}
					}
				case string:
					found[strings.SplitN(g, ".", 2)[0]] = true
				}
				return
			}
			for _, child := range val {
				walk(child)
			}
		case []any:
			for _, child := range val {
				walk(child)
			}
		}
	}
	walk(value)
	return found
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
