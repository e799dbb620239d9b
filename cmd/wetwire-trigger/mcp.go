// MCP server exposing the trigger tools over stdio.
//
// Tools:
//   - wetwire_init: write a starter config
//   - wetwire_synth: synthesize templates and assets
//   - wetwire_validate: structural checks and cfn-lint
//   - wetwire_list: list resources
//   - wetwire_graph: visualize resource dependencies (DOT/Mermaid)
//   - wetwire_diff: compare a template file with the configured stack
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/lex00/wetwire-core-go/mcp"
	"github.com/spf13/cobra"

	s3trigger "github.com/lex00/wetwire-s3trigger-go"
	"github.com/lex00/wetwire-s3trigger-go/internal/differ"
	"github.com/lex00/wetwire-s3trigger-go/internal/template"
)

func newMCPCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run an MCP server on stdio",
		Long: `MCP runs a Model Context Protocol server on stdio exposing the init,
synth, validate, list, graph and diff commands as tools. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			server := mcp.NewServer(mcp.Config{
				Name:    "wetwire-trigger",
				Version: getVersion(),
			})
			h := &mcpHandlers{root: root}

			server.RegisterToolWithSchema("wetwire_init", "Write a starter wetwire-trigger.yaml", h.initConfig, initSchema)
			server.RegisterToolWithSchema("wetwire_synth", "Synthesize CloudFormation templates and staged assets", h.synth, synthSchema)
			server.RegisterToolWithSchema("wetwire_validate", "Validate the synthesized templates (structure and cfn-lint)", h.validate, configSchema)
			server.RegisterToolWithSchema("wetwire_list", "List the resources of the configured stack", h.list, configSchema)
			server.RegisterToolWithSchema("wetwire_graph", "Visualize resource dependencies (DOT/Mermaid)", h.graph, graphSchema)
			server.RegisterToolWithSchema("wetwire_diff", "Compare a template file with the configured stack", h.diff, diffSchema)

			return server.Start(cmd.Context())
		},
	}
}

var configProperty = map[string]any{
	"type":        "string",
	"description": "Config file (default: ./wetwire-trigger.yaml)",
}

var configSchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{"config": configProperty},
}

var initSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"path": map[string]any{
			"type":        "string",
			"description": "Directory to write the config into (default: current directory)",
		},
		"variant": map[string]any{
			"type":        "string",
			"enum":        []string{"publisher", "trigger"},
			"description": "Construct variant (default: publisher)",
		},
		"stack_name": map[string]any{
			"type":        "string",
			"description": "CloudFormation stack name",
		},
		"event_name": map[string]any{
			"type":        "string",
			"description": "Event name for the publisher variant",
		},
		"force": map[string]any{
			"type":        "boolean",
			"description": "Overwrite an existing config",
		},
	},
}

var synthSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"config": configProperty,
		"output": map[string]any{
			"type":        "string",
			"description": "Output directory (default: app.outdir)",
		},
		"format": map[string]any{
			"type":        "string",
			"enum":        []string{"yaml", "json"},
			"description": "Template format in the response (default: json)",
		},
	},
}

var graphSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"config": configProperty,
		"format": map[string]any{
			"type":        "string",
			"enum":        []string{"dot", "mermaid"},
			"description": "Output format (default: mermaid)",
		},
		"include_parameters": map[string]any{
			"type":        "boolean",
			"description": "Include parameter nodes",
		},
	},
}

var diffSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"config": configProperty,
		"template": map[string]any{
			"type":        "string",
			"description": "Template file to compare against",
		},
		"ignore_order": map[string]any{
			"type":        "boolean",
			"description": "Ignore array element order",
		},
	},
	"required": []string{"template"},
}

type mcpHandlers struct {
	root *rootOptions
}

// withConfig returns root options using the config named in args.
func (h *mcpHandlers) withConfig(args map[string]any) *rootOptions {
	opts := *h.root
	if path, _ := args["config"].(string); path != "" {
		opts.configPath = path
	}
	return &opts
}

// SynthResult is the result of the wetwire_synth tool.
type SynthResult struct {
	Success   bool     `json:"success"`
	Template  string   `json:"template,omitempty"`
	Files     []string `json:"files,omitempty"`
	Resources int      `json:"resources,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

func (h *mcpHandlers) synth(_ context.Context, args map[string]any) (string, error) {
	output, _ := args["output"].(string)
	format, _ := args["format"].(string)
	if format == "" {
		format = "json"
	}
	result := SynthResult{}
	if format != "json" && format != "yaml" {
		result.Errors = append(result.Errors, fmt.Sprintf("invalid format: %s (use json or yaml)", format))
		return toJSON(result)
	}

	assembly, err := h.withConfig(args).synth(output)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return toJSON(result)
	}
	for _, s := range assembly.Stacks {
		result.Files = append(result.Files, s.TemplateFile, s.AssetsFile)
		result.Resources += len(s.Template.Resources)
		var data []byte
		if format == "json" {
			data, err = template.ToJSON(s.Template)
		} else {
			data, err = template.ToYAML(s.Template)
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("serializing template: %v", err))
			return toJSON(result)
		}
		result.Template += string(data)
	}
	result.Success = true
	return toJSON(result)
}

func (h *mcpHandlers) validate(_ context.Context, args map[string]any) (string, error) {
	results, err := runValidate(h.withConfig(args), "", false)
	if err != nil {
		return toJSON(s3trigger.ValidateResult{Errors: []string{err.Error()}})
	}
	return toJSON(results)
}

func (h *mcpHandlers) list(_ context.Context, args map[string]any) (string, error) {
	_, app, err := h.withConfig(args).loadApp("")
	if err != nil {
		return toJSON(map[string]string{"error": err.Error()})
	}
	result := s3trigger.ListResult{Resources: []s3trigger.ListResource{}}
	for _, st := range app.Stacks() {
		t, err := st.Template()
		if err != nil {
			return toJSON(map[string]string{"error": err.Error()})
		}
		result.Resources = append(result.Resources, listResources(t)...)
	}
	return toJSON(result)
}

// GraphResult is the result of the wetwire_graph tool.
type GraphResult struct {
	Success bool   `json:"success"`
	Format  string `json:"format"`
	Graph   string `json:"graph,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *mcpHandlers) graph(_ context.Context, args map[string]any) (string, error) {
	opts := graphOptions{format: "mermaid"}
	if f, _ := args["format"].(string); f != "" {
		opts.format = f
	}
	opts.includeParameters, _ = args["include_parameters"].(bool)

	result := GraphResult{Format: opts.format}
	var buf bytes.Buffer
	if err := runGraph(h.withConfig(args), opts, &buf); err != nil {
		result.Error = err.Error()
		return toJSON(result)
	}
	result.Success = true
	result.Graph = buf.String()
	return toJSON(result)
}

func (h *mcpHandlers) diff(_ context.Context, args map[string]any) (string, error) {
	path, _ := args["template"].(string)
	if path == "" {
		return toJSON(map[string]string{"error": "template is required"})
	}
	ignoreOrder, _ := args["ignore_order"].(bool)

	result, err := diffWithConfig(h.withConfig(args), path, differ.Options{IgnoreOrder: ignoreOrder})
	if err != nil {
		return toJSON(map[string]string{"error": err.Error()})
	}
	return toJSON(struct {
		Diff    s3trigger.TemplateDiff `json:"diff"`
		Summary s3trigger.DiffSummary  `json:"summary"`
	}{result.Diff, result.Summary})
}

// InitResult is the result of the wetwire_init tool.
type InitResult struct {
	Success bool   `json:"success"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *mcpHandlers) initConfig(_ context.Context, args map[string]any) (string, error) {
	opts := initOptions{
		dir:       ".",
		variant:   "publisher",
		stackName: "integration-stack",
		eventName: "s3-object-created",
	}
	if v, _ := args["path"].(string); v != "" {
		opts.dir = v
	}
	if v, _ := args["variant"].(string); v != "" {
		opts.variant = v
	}
	if v, _ := args["stack_name"].(string); v != "" {
		opts.stackName = v
	}
	if v, _ := args["event_name"].(string); v != "" {
		opts.eventName = v
	}
	opts.force, _ = args["force"].(bool)

	path, err := runInit(opts)
	if err != nil {
		return toJSON(InitResult{Error: err.Error()})
	}
	return toJSON(InitResult{Success: true, Path: path})
}

// toJSON converts a value to a JSON string.
func toJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling result: %w", err)
	}
	return string(data), nil
}
