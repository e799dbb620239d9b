package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-s3trigger-go/internal/config"
)

// validStackName matches CloudFormation stack names.
var validStackName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9-]{0,127}$`)

type initOptions struct {
	dir       string
	variant   string
	stackName string
	eventName string
	region    string
	force     bool
}

var configTemplate = template.Must(template.New("config").Funcs(sprig.TxtFuncMap()).Parse(`# wetwire-trigger configuration.
# Values can be overridden with WETWIRE_TRIGGER_<SECTION>_<KEY> variables.

app:
  outdir: wetwire.out

stack:
  name: {{ .StackName | quote }}
{{- if .Region }}
  region: {{ .Region | quote }}
{{- end }}

construct:
  variant: {{ .Variant }}
  id: {{ .ConstructID }}
{{- if eq .Variant "publisher" }}
  event_name: {{ .EventName | trim | quote }}
  # Metaflow configuration as JSON. Set config_as_parameter: true to pass it
  # as a NoEcho stack parameter instead.
  config_string: '{"METAFLOW_ARGO_EVENTS_WEBHOOK_URL": "https://argo-events.example.com"}'
  code_path: dist/event-publisher
{{- else }}
  handler:
    runtime: provided.al2023
    handler: bootstrap
    code_path: dist/handler
    memory: 256
    timeout: 30s
{{- end }}
  # prefix: incoming/
  # suffix: .parquet
  # cross_account_role_arn: arn:aws:iam::123456789012:role/reader
  bucket:
    versioned: true
    enforce_ssl: true
`))

func newInitCmd() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a wetwire-trigger.yaml",
		Long: `Init writes a starter wetwire-trigger.yaml for the publisher or trigger
variant into the target directory.

Examples:
    wetwire-trigger init
    wetwire-trigger init --variant trigger --stack-name ingest
    wetwire-trigger init --event-name data-landed --region us-west-2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := runInit(opts)
			if err != nil {
				return err
			}
			printNextSteps(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", ".", "Directory to write the config into")
	cmd.Flags().StringVar(&opts.variant, "variant", config.VariantPublisher, "Construct variant: publisher or trigger")
	cmd.Flags().StringVar(&opts.stackName, "stack-name", config.DefaultStackName, "CloudFormation stack name")
	cmd.Flags().StringVar(&opts.eventName, "event-name", "s3-object-created", "Event name for the publisher variant")
	cmd.Flags().StringVar(&opts.region, "region", "", "Target region")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite an existing config")

	return cmd
}

// runInit renders the config into {dir}/wetwire-trigger.yaml and returns
// its path.
func runInit(opts initOptions) (string, error) {
	if !validStackName.MatchString(opts.stackName) {
		return "", fmt.Errorf("invalid stack name %q: must start with a letter and contain only letters, numbers or hyphens", opts.stackName)
	}
	if opts.variant != config.VariantPublisher && opts.variant != config.VariantTrigger {
		return "", fmt.Errorf("%w: got %q", config.ErrUnknownVariant, opts.variant)
	}

	path := filepath.Join(opts.dir, config.DefaultFileName)
	if _, err := os.Stat(path); err == nil && !opts.force {
		return "", fmt.Errorf("config already exists: %s (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(opts.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	var buf bytes.Buffer
	err := configTemplate.Execute(&buf, map[string]string{
		"StackName":   opts.stackName,
		"Region":      opts.region,
		"Variant":     opts.variant,
		"ConstructID": config.DefaultConstructID,
		"EventName":   opts.eventName,
	})
	if err != nil {
		return "", fmt.Errorf("rendering config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing config: %w", err)
	}
	return path, nil
}

func printNextSteps(w io.Writer, path string) {
	fmt.Fprintf(w, "Created %s\n\n", path)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintln(w, "  wetwire-trigger validate")
	fmt.Fprintln(w, "  wetwire-trigger synth")
	fmt.Fprintln(w)
}
