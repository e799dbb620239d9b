package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3trigger "github.com/lex00/wetwire-s3trigger-go"
	"github.com/lex00/wetwire-s3trigger-go/assets"
	"github.com/lex00/wetwire-s3trigger-go/internal/config"
	"github.com/lex00/wetwire-s3trigger-go/internal/differ"
	"github.com/lex00/wetwire-s3trigger-go/internal/validation"
)

// triggerConfig writes a trigger config wiring an existing bucket to an
// existing handler. It synthesizes without staging any code.
func triggerConfig(t *testing.T) *rootOptions {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, config.DefaultFileName)
	content := `app:
  outdir: ` + filepath.Join(dir, "out") + `
construct:
  variant: trigger
  existing_bucket_name: landing-zone
  existing_handler_arn: arn:aws:lambda:us-east-1:123456789012:function:ingest
  existing_handler_role_arn: arn:aws:iam::123456789012:role/ingest
  suffix: .parquet
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return &rootOptions{configPath: path}
}

func TestRootCmd(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"synth", "validate", "diff", "graph", "list", "publish", "watch", "init", "mcp", "version"} {
		assert.Contains(t, names, want)
	}
	for _, flag := range []string{"config", "verbose", "log-encoding"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "wetwire-trigger ")
}

func TestRunInit(t *testing.T) {
	dir := t.TempDir()
	opts := initOptions{
		dir:       dir,
		variant:   config.VariantPublisher,
		stackName: "data-landing",
		eventName: "data-landed",
		region:    "us-west-2",
	}

	path, err := runInit(opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, config.DefaultFileName), path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "data-landing", cfg.Stack.Name)
	assert.Equal(t, "us-west-2", cfg.Stack.Region)
	assert.Equal(t, config.VariantPublisher, cfg.Construct.Variant)
	assert.Equal(t, "data-landed", cfg.Construct.EventName)
	assert.Equal(t, "dist/event-publisher", cfg.Construct.CodePath)
	assert.Equal(t, true, cfg.Construct.Bucket["versioned"])

	_, err = runInit(opts)
	assert.ErrorContains(t, err, "already exists")

	opts.force = true
	_, err = runInit(opts)
	assert.NoError(t, err)
}

func TestRunInit_Trigger(t *testing.T) {
	path, err := runInit(initOptions{
		dir:       t.TempDir(),
		variant:   config.VariantTrigger,
		stackName: config.DefaultStackName,
	})
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.VariantTrigger, cfg.Construct.Variant)
	require.NotNil(t, cfg.Construct.Handler)
	assert.Equal(t, "dist/handler", cfg.Construct.Handler.CodePath)
	assert.Equal(t, "bootstrap", cfg.Construct.Handler.Handler)
}

func TestRunInit_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts initOptions
	}{
		{"bad stack name", initOptions{variant: config.VariantPublisher, stackName: "1-stack"}},
		{"underscore", initOptions{variant: config.VariantPublisher, stackName: "my_stack"}},
		{"unknown variant", initOptions{variant: "fanout", stackName: "ok"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.dir = t.TempDir()
			_, err := runInit(tt.opts)
			assert.Error(t, err)
		})
	}

	_, err := runInit(initOptions{dir: t.TempDir(), variant: "fanout", stackName: "ok"})
	assert.ErrorIs(t, err, config.ErrUnknownVariant)
}

func TestListResources(t *testing.T) {
	root := triggerConfig(t)
	_, app, err := root.loadApp("")
	require.NoError(t, err)
	require.Len(t, app.Stacks(), 1)

	tpl, err := app.Stacks()[0].Template()
	require.NoError(t, err)
	resources := listResources(tpl)
	require.NotEmpty(t, resources)

	var types []string
	for i, r := range resources {
		if i > 0 {
			assert.Less(t, resources[i-1].Name, r.Name)
		}
		types = append(types, r.Type)
	}
	assert.Contains(t, types, "Custom::S3BucketNotifications")
	assert.Contains(t, types, "AWS::Lambda::Permission")

	var buf bytes.Buffer
	require.NoError(t, outputListResult(&buf, s3trigger.ListResult{Resources: resources}, "json"))
	var decoded s3trigger.ListResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, resources, decoded.Resources)
}

func TestRunGraph(t *testing.T) {
	root := triggerConfig(t)

	var buf bytes.Buffer
	require.NoError(t, runGraph(root, graphOptions{format: "dot"}, &buf))
	assert.Contains(t, buf.String(), "digraph")

	err := runGraph(root, graphOptions{format: "svg"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown format")
}

func TestOutputAssembly(t *testing.T) {
	root := triggerConfig(t)
	assembly, err := root.synth(t.TempDir())
	require.NoError(t, err)
	require.Len(t, assembly.Stacks, 1)
	assert.FileExists(t, assembly.Stacks[0].TemplateFile)

	var text bytes.Buffer
	require.NoError(t, outputAssembly(&text, assembly, "text"))
	assert.Contains(t, text.String(), config.DefaultStackName+": ")
	assert.Contains(t, text.String(), assembly.Stacks[0].TemplateFile)

	var result bytes.Buffer
	require.NoError(t, outputAssembly(&result, assembly, "json-result"))
	var decoded s3trigger.BuildResult
	require.NoError(t, json.Unmarshal(result.Bytes(), &decoded))
	assert.True(t, decoded.Success)
	assert.Len(t, decoded.Resources, len(assembly.Stacks[0].Template.Resources))

	assert.Error(t, outputAssembly(&bytes.Buffer{}, assembly, "toml"))
}

func TestDiffWithConfig(t *testing.T) {
	root := triggerConfig(t)
	assembly, err := root.synth(t.TempDir())
	require.NoError(t, err)

	result, err := diffWithConfig(root, assembly.Stacks[0].TemplateFile, differ.Options{})
	require.NoError(t, err)
	assert.True(t, result.Empty(), "diff: %+v", result.Diff)

	_, err = diffWithConfig(root, filepath.Join(t.TempDir(), "missing.json"), differ.Options{})
	assert.Error(t, err)
}

func TestOutputValidateResults(t *testing.T) {
	ok := &validation.ValidationResult{
		Template:  "a.template.json",
		Resources: 4,
		Structure: &validation.StructureResult{Passed: true, Warnings: []string{"parameter X is never referenced"}},
	}
	var buf bytes.Buffer
	require.NoError(t, outputValidateResults(&buf, []*validation.ValidationResult{ok}, "text"))
	assert.Contains(t, buf.String(), "a.template.json: validation passed, 4 resources OK")
	assert.Contains(t, buf.String(), "WARNING: parameter X is never referenced")

	failed := &validation.ValidationResult{
		Template:  "b.template.json",
		Structure: &validation.StructureResult{Errors: []string{"Bucket: missing Type"}},
	}
	buf.Reset()
	err := outputValidateResults(&buf, []*validation.ValidationResult{ok, failed}, "text")
	assert.ErrorIs(t, err, errValidationFailed)
	assert.Contains(t, buf.String(), "b.template.json: validation FAILED")
	assert.Contains(t, buf.String(), "ERROR: Bucket: missing Type")
}

type fakePublisher struct {
	reports []assets.Report
	err     error
	calls   int
}

func (f *fakePublisher) Publish(_ context.Context, _ *assets.Manifest, _ string) ([]assets.Report, error) {
	f.calls++
	return f.reports, f.err
}

func writeManifest(t *testing.T, dir string) string {
	t.Helper()
	m := assets.NewManifest()
	m.Add(assets.FileAsset{Hash: "abc", FileName: assets.FileNameFor("abc")}, assets.Destination{
		BucketName: "team-assets",
		ObjectKey:  "abc.zip",
	})
	path := filepath.Join(dir, "integration-stack.assets.json")
	require.NoError(t, m.Write(path))
	return path
}

func TestRunPublish(t *testing.T) {
	dir := t.TempDir()
	manifest := writeManifest(t, dir)
	pub := &fakePublisher{reports: []assets.Report{
		{Hash: "abc", Bucket: "team-assets", Key: "abc.zip", Size: 2048},
		{Hash: "def", Bucket: "team-assets", Key: "def.zip", Skipped: true},
	}}

	var buf bytes.Buffer
	require.NoError(t, runPublish(context.Background(), &buf, pub, []string{manifest}, dir))
	assert.Equal(t, 1, pub.calls)
	assert.Contains(t, buf.String(), "uploaded  s3://team-assets/abc.zip (2.0 kB)")
	assert.Contains(t, buf.String(), "exists    s3://team-assets/def.zip")
	assert.Contains(t, buf.String(), "1 uploaded (2.0 kB), 1 already published")
}

func TestRunPublish_Errors(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("access denied")
	pub := &fakePublisher{err: boom}

	err := runPublish(context.Background(), &bytes.Buffer{}, pub, []string{writeManifest(t, dir)}, dir)
	assert.ErrorIs(t, err, boom)

	err = runPublish(context.Background(), &bytes.Buffer{}, pub, []string{filepath.Join(dir, "missing.json")}, dir)
	assert.Error(t, err)
}

func TestManifestsToPublish_NoSynth(t *testing.T) {
	dir := t.TempDir()
	manifest := writeManifest(t, dir)

	files, base, err := manifestsToPublish(&rootOptions{}, publishOptions{outdir: dir, noSynth: true})
	require.NoError(t, err)
	assert.Equal(t, []string{manifest}, files)
	assert.Equal(t, dir, base)

	_, _, err = manifestsToPublish(&rootOptions{}, publishOptions{outdir: t.TempDir(), noSynth: true})
	assert.ErrorContains(t, err, "no asset manifests")
}
