package template

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3trigger "github.com/lex00/wetwire-s3trigger-go"
	"github.com/lex00/wetwire-s3trigger-go/intrinsics"
	"github.com/lex00/wetwire-s3trigger-go/resources/iam"
	"github.com/lex00/wetwire-s3trigger-go/resources/lambda"
	"github.com/lex00/wetwire-s3trigger-go/resources/s3"
)

func TestBuilder_Build_SimpleResource(t *testing.T) {
	builder := NewBuilder("simple")
	require.NoError(t, builder.AddResource(Entry{
		LogicalID: "DataBucket",
		Path:      "stack/DataBucket",
		Value:     &s3.Bucket{BucketName: "data-bucket"},
	}))

	template, err := builder.Build()
	require.NoError(t, err)

	assert.Equal(t, "2010-09-09", template.AWSTemplateFormatVersion)
	assert.Equal(t, "simple", template.Description)
	assert.Len(t, template.Resources, 1)

	bucket := template.Resources["DataBucket"]
	assert.Equal(t, "AWS::S3::Bucket", bucket.Type)
	assert.Equal(t, "data-bucket", bucket.Properties["BucketName"])
	assert.Equal(t, "stack/DataBucket", bucket.Metadata[PathMetadataKey])
}

func TestBuilder_Build_WithDependencies(t *testing.T) {
	builder := NewBuilder("")
	require.NoError(t, builder.AddResource(Entry{
		LogicalID: "ProcessorRole",
		Value:     &iam.Role{RoleName: "processor-role"},
	}))
	require.NoError(t, builder.AddResource(Entry{
		LogicalID: "DataBucket",
		Value:     &s3.Bucket{},
	}))
	require.NoError(t, builder.AddResource(Entry{
		LogicalID: "ProcessorFunction",
		Value: &lambda.Function{
			Runtime: "provided.al2023",
			Handler: "bootstrap",
			Role:    intrinsics.GetAtt{LogicalName: "ProcessorRole", Attribute: "Arn"},
			Environment: &lambda.Function_Environment{Variables: map[string]any{
				"BUCKET_NAME": intrinsics.Ref{LogicalName: "DataBucket"},
			}},
		},
	}))

	template, err := builder.Build()
	require.NoError(t, err)
	assert.Len(t, template.Resources, 3)

	fn := template.Resources["ProcessorFunction"]
	role := fn.Properties["Role"].(map[string]any)
	assert.Contains(t, role, "Fn::GetAtt")
	assert.Empty(t, fn.DependsOn, "implicit references are not emitted as DependsOn")

	order, err := builder.Order()
	require.NoError(t, err)
	assert.Less(t, indexOf(order, "ProcessorRole"), indexOf(order, "ProcessorFunction"))
	assert.Less(t, indexOf(order, "DataBucket"), indexOf(order, "ProcessorFunction"))
}

func TestBuilder_Build_ExplicitDependsOn(t *testing.T) {
	builder := NewBuilder("")
	require.NoError(t, builder.AddResource(Entry{LogicalID: "A", Value: &s3.Bucket{}}))
	require.NoError(t, builder.AddResource(Entry{LogicalID: "B", Value: &s3.Bucket{}, DependsOn: []string{"A", "A"}}))

	template, err := builder.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, template.Resources["B"].DependsOn)
}

func TestBuilder_Build_UnknownReference(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
	}{
		{
			name: "ref",
			entry: Entry{LogicalID: "Policy", Value: &s3.BucketPolicy{
				Bucket: intrinsics.Ref{LogicalName: "Missing"},
			}},
		},
		{
			name: "sub",
			entry: Entry{LogicalID: "Policy", Value: &s3.BucketPolicy{
				Bucket: intrinsics.Sub{String: "${Missing.Arn}/*"},
			}},
		},
		{
			name:  "depends on",
			entry: Entry{LogicalID: "Policy", Value: &s3.BucketPolicy{}, DependsOn: []string{"Missing"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder := NewBuilder("")
			require.NoError(t, builder.AddResource(tt.entry))
			_, err := builder.Build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "Missing")
		})
	}
}

func TestBuilder_Build_PseudoAndParameterRefs(t *testing.T) {
	builder := NewBuilder("")
	require.NoError(t, builder.AddParameter("ConfigString", s3trigger.Parameter{NoEcho: true}))
	require.NoError(t, builder.AddResource(Entry{
		LogicalID: "Handler",
		Value: &lambda.Function{
			Code: lambda.Function_Code{
				S3Bucket: intrinsics.Sub{String: "wetwire-assets-${AWS::AccountId}-${AWS::Region}"},
				S3Key:    "abc.zip",
			},
			Environment: &lambda.Function_Environment{Variables: map[string]any{
				"CONFIG": intrinsics.Ref{LogicalName: "ConfigString"},
				"REGION": intrinsics.AWS_REGION,
			}},
		},
	}))

	template, err := builder.Build()
	require.NoError(t, err)
	assert.Equal(t, "String", template.Parameters["ConfigString"].Type)
	assert.True(t, template.Parameters["ConfigString"].NoEcho)
}

func TestBuilder_DuplicateLogicalID(t *testing.T) {
	builder := NewBuilder("")
	require.NoError(t, builder.AddResource(Entry{LogicalID: "A", Path: "stack/x/A", Value: &s3.Bucket{}}))
	err := builder.AddResource(Entry{LogicalID: "A", Path: "stack/y/A", Value: &s3.Bucket{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stack/x/A")
}

func TestBuilder_DetectCycle(t *testing.T) {
	builder := NewBuilder("")
	require.NoError(t, builder.AddResource(Entry{LogicalID: "A", Value: &s3.Bucket{}, DependsOn: []string{"B"}}))
	require.NoError(t, builder.AddResource(Entry{LogicalID: "B", Value: &s3.Bucket{}, DependsOn: []string{"C"}}))
	require.NoError(t, builder.AddResource(Entry{LogicalID: "C", Value: &s3.BucketPolicy{
		Bucket: intrinsics.Ref{LogicalName: "A"},
	}}))

	_, err := builder.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular dependency")

	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, []string{"A", "B", "C", "A"}, cycleErr.Cycle)
}

func TestBuilder_Overrides(t *testing.T) {
	builder := NewBuilder("")
	require.NoError(t, builder.AddResource(Entry{
		LogicalID: "Bucket",
		Value: &s3.Bucket{
			BucketName:              "data",
			VersioningConfiguration: &s3.Bucket_VersioningConfiguration{Status: "Enabled"},
		},
		Overrides: map[string]any{
			"AccelerateConfiguration.AccelerationStatus": "Enabled",
			"VersioningConfiguration":                    nil,
			"ObjectLockEnabled":                          true,
		},
	}))

	template, err := builder.Build()
	require.NoError(t, err)

	props := template.Resources["Bucket"].Properties
	assert.Equal(t, map[string]any{"AccelerationStatus": "Enabled"}, props["AccelerateConfiguration"])
	assert.NotContains(t, props, "VersioningConfiguration")
	assert.Equal(t, true, props["ObjectLockEnabled"])
}

func TestBuilder_OverrideThroughScalar(t *testing.T) {
	builder := NewBuilder("")
	require.NoError(t, builder.AddResource(Entry{
		LogicalID: "Bucket",
		Value:     &s3.Bucket{BucketName: "data"},
		Overrides: map[string]any{"BucketName.Nested": "x"},
	}))
	_, err := builder.Build()
	require.Error(t, err)
}

func TestBuilder_Outputs(t *testing.T) {
	builder := NewBuilder("")
	require.NoError(t, builder.AddResource(Entry{LogicalID: "Bucket", Value: &s3.Bucket{}}))
	require.NoError(t, builder.AddOutput("BucketName", s3trigger.Output{
		Value: intrinsics.Ref{LogicalName: "Bucket"},
	}))
	require.Error(t, builder.AddOutput("BucketName", s3trigger.Output{}))

	template, err := builder.Build()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Ref": "Bucket"}, template.Outputs["BucketName"].Value)

	bad := NewBuilder("")
	require.NoError(t, bad.AddOutput("Arn", s3trigger.Output{
		Value: intrinsics.GetAtt{LogicalName: "Nope", Attribute: "Arn"},
	}))
	_, err = bad.Build()
	require.Error(t, err)
}

func TestReferences(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected []string
	}{
		{"ref", `{"Ref": "A"}`, []string{"A"}},
		{"getatt list", `{"Fn::GetAtt": ["A", "Arn"]}`, []string{"A"}},
		{"getatt string", `{"Fn::GetAtt": "A.Arn"}`, []string{"A"}},
		{"sub", `{"Fn::Sub": "${A.Arn}/${B}-${AWS::Region}-${!Literal}"}`, []string{"A", "AWS::Region", "B"}},
		{"sub with map", `{"Fn::Sub": ["${Local}-${C}", {"Local": {"Ref": "D"}}]}`, []string{"C", "D"}},
		{"nested", `{"X": [{"Ref": "B"}, {"Y": {"Ref": "A"}}, {"Ref": "A"}]}`, []string{"A", "B"}},
		{"none", `{"X": "Ref"}`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var value any
			require.NoError(t, json.Unmarshal([]byte(tt.value), &value))
			assert.Equal(t, tt.expected, References(value))
		})
	}
}

func TestDependencies(t *testing.T) {
	template := &s3trigger.Template{
		Resources: map[string]s3trigger.ResourceDef{
			"Bucket": {Type: "AWS::S3::Bucket"},
			"Role":   {Type: "AWS::IAM::Role"},
			"Fn": {
				Type: "AWS::Lambda::Function",
				Properties: map[string]any{
					"Role":   map[string]any{"Fn::GetAtt": []any{"Role", "Arn"}},
					"Region": map[string]any{"Ref": "AWS::Region"},
				},
				DependsOn: []string{"Bucket"},
			},
		},
	}

	deps := Dependencies(template)
	assert.Equal(t, []string{"Bucket", "Role"}, deps["Fn"])
	assert.Empty(t, deps["Bucket"])
}

func TestToJSON(t *testing.T) {
	template := &s3trigger.Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Resources: map[string]s3trigger.ResourceDef{
			"MyBucket": {
				Type: "AWS::S3::Bucket",
				Properties: map[string]any{
					"BucketName": "test-bucket",
				},
			},
		},
	}

	data, err := ToJSON(template)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, "2010-09-09", parsed["AWSTemplateFormatVersion"])
	resources := parsed["Resources"].(map[string]any)
	bucket := resources["MyBucket"].(map[string]any)
	assert.Equal(t, "AWS::S3::Bucket", bucket["Type"])
}

func TestToYAML(t *testing.T) {
	template := &s3trigger.Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Resources: map[string]s3trigger.ResourceDef{
			"MyBucket": {
				Type: "AWS::S3::Bucket",
				Properties: map[string]any{
					"BucketName": "test-bucket",
				},
			},
		},
	}

	data, err := ToYAML(template)
	require.NoError(t, err)

	assert.Contains(t, string(data), "AWSTemplateFormatVersion")
	assert.Contains(t, string(data), "AWS::S3::Bucket")
}

func indexOf(slice []string, item string) int {
	for i, v := range slice {
		if v == item {
			return i
		}
	}
	return -1
}
