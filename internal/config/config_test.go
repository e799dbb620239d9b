package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lex00/wetwire-s3trigger-go/constructs"
	"github.com/lex00/wetwire-s3trigger-go/resources/lambda"
	"github.com/lex00/wetwire-s3trigger-go/stack"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func codeDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Chmod(writeFile(t, dir, "bootstrap", "#!/bin/sh\n"), 0o755))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "wetwire.out", cfg.App.Outdir)
	assert.Equal(t, DefaultStackName, cfg.Stack.Name)
	assert.Equal(t, VariantPublisher, cfg.Construct.Variant)
	assert.Equal(t, DefaultConstructID, cfg.Construct.ID)
	assert.Nil(t, cfg.Construct.Handler)
	assert.Nil(t, cfg.Construct.Bucket)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "wetwire-trigger.yaml", `
stack:
  name: data-landing
  region: us-west-2
construct:
  variant: trigger
  id: Landing
  prefix: raw/
  cross_account_role_arn: arn:aws:iam::590183801547:role/obp-iquod5-task
  handler:
    runtime: python3.12
    handler: index.handler
    code_path: ./handler
    memory: 512
    timeout: 45s
    env:
      STAGE: dev
  bucket:
    versioned: true
    ObjectLockEnabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "data-landing", cfg.Stack.Name)
	assert.Equal(t, "us-west-2", cfg.Stack.Region)
	assert.Equal(t, VariantTrigger, cfg.Construct.Variant)
	assert.Equal(t, "Landing", cfg.Construct.ID)
	require.NotNil(t, cfg.Construct.Handler)
	assert.Equal(t, 512, cfg.Construct.Handler.Memory)
	assert.Equal(t, 45*time.Second, cfg.Construct.Handler.Timeout)
	assert.Equal(t, map[string]string{"STAGE": "dev"}, cfg.Construct.Handler.Environment)
	assert.Equal(t, true, cfg.Construct.Bucket["ObjectLockEnabled"])
}

func TestLoad_TimeoutSeconds(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		timeout string
		want    time.Duration
	}{
		{"integer", "30", 30 * time.Second},
		{"quoted integer", `"90"`, 90 * time.Second},
		{"duration", "2m", 2 * time.Minute},
		{"fraction", "1.5", 1500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "timeout.yaml", `
construct:
  variant: trigger
  handler:
    runtime: python3.12
    handler: index.handler
    code_path: ./handler
    timeout: `+tt.timeout+`
`)
			cfg, err := Load(path)
			require.NoError(t, err)
			require.NotNil(t, cfg.Construct.Handler)
			assert.Equal(t, tt.want, cfg.Construct.Handler.Timeout)
		})
	}
}

func TestLoad_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WETWIRE_TRIGGER_CONSTRUCT_EVENT_NAME", "from-env")
	t.Setenv("WETWIRE_TRIGGER_STACK_ACCOUNT", "123456789012")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Construct.EventName)
	assert.Equal(t, "123456789012", cfg.Stack.Account)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "trigger.json", `{
  "construct": {"event_name": "landed", "config_string": "{}", "bucket": {"enforce_ssl": true, "AccelerateConfiguration": {"AccelerationStatus": "Enabled"}}}
}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "landed", cfg.Construct.EventName)
	assert.Equal(t, map[string]any{"AccelerationStatus": "Enabled"}, cfg.Construct.Bucket["AccelerateConfiguration"])
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"missing explicit file", filepath.Join(dir, "missing.yaml")},
		{"bad variant", writeFile(t, dir, "variant.yaml", "construct:\n  variant: cron\n")},
		{"trigger without handler", writeFile(t, dir, "trigger.yaml", "construct:\n  variant: trigger\n")},
		{"bucket conflict", writeFile(t, dir, "bucket.yaml", "construct:\n  existing_bucket_name: landing\n  bucket:\n    versioned: true\n")},
		{"bad yaml", writeFile(t, dir, "bad.yaml", "construct: [\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			assert.Error(t, err)
		})
	}
}

func TestDecodeBucket(t *testing.T) {
	props, err := DecodeBucket(map[string]any{
		"bucket_name":         "landing-zone",
		"encryption":          "KMS_MANAGED",
		"block_public_access": false,
		"removal_policy":      "destroy",
		"tags":                map[string]any{"team": "data"},
		"lifecycle_rules": []any{
			map[string]any{
				"id":              "expire-tmp",
				"prefix":          "tmp/",
				"expiration_days": "7",
				"transitions":     []any{map[string]any{"storage_class": "GLACIER", "days": 3}},
			},
		},
		"ObjectLockEnabled": true,
	})
	require.NoError(t, err)

	assert.Equal(t, "landing-zone", props.BucketName)
	assert.Equal(t, constructs.EncryptionKMSManaged, props.Encryption)
	require.NotNil(t, props.BlockPublicAccess)
	assert.False(t, *props.BlockPublicAccess)
	assert.Equal(t, stack.RemovalPolicyDestroy, props.RemovalPolicy)
	assert.Equal(t, map[string]string{"team": "data"}, props.Tags)
	require.Len(t, props.LifecycleRules, 1)
	assert.Equal(t, 7, props.LifecycleRules[0].ExpirationDays)
	assert.Equal(t, []constructs.Transition{{StorageClass: "GLACIER", Days: 3}}, props.LifecycleRules[0].Transitions)
	assert.Equal(t, map[string]any{"ObjectLockEnabled": true}, props.Overrides)

	none, err := DecodeBucket(nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = DecodeBucket(map[string]any{"versioned": map[string]any{"status": "on"}})
	assert.Error(t, err)
}

func TestBuild_Publisher(t *testing.T) {
	cfg := &Config{
		App:   AppConfig{Outdir: t.TempDir()},
		Stack: StackConfig{Name: "data-landing"},
		Construct: ConstructConfig{
			Variant:             VariantPublisher,
			ID:                  DefaultConstructID,
			EventName:           "landed",
			ConfigString:        `{"METAFLOW_ARGO_EVENTS_WEBHOOK_URL": "https://argo.example.com"}`,
			CrossAccountRoleArn: "590183801547",
			CodePath:            codeDir(t),
			Bucket:              map[string]any{"versioned": true, "ObjectLockEnabled": true},
		},
		Assets: AssetsConfig{BucketName: "team-assets"},
	}

	app, err := Build(cfg)
	require.NoError(t, err)
	require.Len(t, app.Stacks(), 1)
	st := app.Stacks()[0]
	assert.Equal(t, "data-landing", st.StackName())

	tpl, err := st.Template()
	require.NoError(t, err)
	buckets := tpl.ResourcesOfType("AWS::S3::Bucket")
	require.Len(t, buckets, 1)
	assert.Equal(t, true, tpl.Resources[buckets[0]].Properties["ObjectLockEnabled"])

	var code map[string]any
	for _, id := range tpl.ResourcesOfType("AWS::Lambda::Function") {
		if tpl.Resources[id].Properties["Runtime"] == "provided.al2023" {
			code = tpl.Resources[id].Properties["Code"].(map[string]any)
		}
	}
	require.NotNil(t, code)
	assert.Equal(t, "team-assets", code["S3Bucket"])
}

func TestBuild_Trigger(t *testing.T) {
	cfg := &Config{
		App:   AppConfig{Outdir: t.TempDir()},
		Stack: StackConfig{Name: DefaultStackName},
		Construct: ConstructConfig{
			Variant:                VariantTrigger,
			ID:                     DefaultConstructID,
			ExistingBucketName:     "landing-zone",
			ExistingHandlerArn:     "arn:aws:lambda:us-east-1:123456789012:function:ingest",
			ExistingHandlerRoleArn: "arn:aws:iam::123456789012:role/ingest",
			Suffix:                 ".parquet",
		},
	}

	app, err := Build(cfg)
	require.NoError(t, err)
	tpl, err := app.Stacks()[0].Template()
	require.NoError(t, err)
	assert.Empty(t, tpl.ResourcesOfType("AWS::S3::Bucket"))
	assert.Len(t, tpl.ResourcesOfType("Custom::S3BucketNotifications"), 1)
}

func TestBuild_TriggerCreatedHandler(t *testing.T) {
	cfg := &Config{
		App:   AppConfig{Outdir: t.TempDir()},
		Stack: StackConfig{Name: DefaultStackName},
		Construct: ConstructConfig{
			Variant: VariantTrigger,
			ID:      DefaultConstructID,
			Handler: &HandlerConfig{
				Runtime:  "provided.al2023",
				Handler:  "bootstrap",
				CodePath: codeDir(t),
				Memory:   512,
				Timeout:  time.Minute,
			},
		},
	}

	app, err := Build(cfg)
	require.NoError(t, err)
	st := app.Stacks()[0]
	var found *lambda.Function
	for _, e := range st.Elements() {
		if fn, ok := e.Resource().(*lambda.Function); ok && fn.Runtime == "provided.al2023" {
			found = fn
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, 512, found.MemorySize)
	assert.Equal(t, 60, found.Timeout)
}

func TestBuild_Invalid(t *testing.T) {
	_, err := Build(&Config{Construct: ConstructConfig{Variant: "cron"}})
	assert.ErrorIs(t, err, ErrUnknownVariant)

	_, err = Build(&Config{
		App:       AppConfig{Outdir: t.TempDir()},
		Stack:     StackConfig{Name: DefaultStackName},
		Construct: ConstructConfig{Variant: VariantPublisher, ID: DefaultConstructID},
	})
	assert.Error(t, err)
}
