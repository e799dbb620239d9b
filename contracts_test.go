package s3trigger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttrRef_MarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		ref      AttrRef
		expected string
	}{
		{
			name:     "bucket arn",
			ref:      AttrRef{Resource: "Bucket83908E77", Attribute: "Arn"},
			expected: `{"Fn::GetAtt":["Bucket83908E77","Arn"]}`,
		},
		{
			name:     "function arn",
			ref:      AttrRef{Resource: "Handler886CB40B", Attribute: "Arn"},
			expected: `{"Fn::GetAtt":["Handler886CB40B","Arn"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.ref)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
		})
	}
}

func TestAttrRef_IsZero(t *testing.T) {
	assert.True(t, AttrRef{}.IsZero())
	assert.False(t, AttrRef{Resource: "MyRole"}.IsZero())
	assert.False(t, AttrRef{Attribute: "Arn"}.IsZero())
}

func TestTemplate_JSON(t *testing.T) {
	template := Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Description:              "Test template",
		Resources: map[string]ResourceDef{
			"MyBucket": {
				Type:           "AWS::S3::Bucket",
				DeletionPolicy: "Retain",
			},
		},
		Parameters: map[string]Parameter{
			"HandlerConfigString": {
				Type:   "String",
				NoEcho: true,
			},
		},
		Outputs: map[string]Output{
			"BucketArn": {
				Description: "The bucket ARN",
				Value:       AttrRef{Resource: "MyBucket", Attribute: "Arn"},
				Export:      &Export{Name: "MyStack-BucketArn"},
			},
		},
	}

	data, err := json.Marshal(template)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, "2010-09-09", parsed["AWSTemplateFormatVersion"])
	assert.Equal(t, "Test template", parsed["Description"])

	resources := parsed["Resources"].(map[string]any)
	bucket := resources["MyBucket"].(map[string]any)
	assert.Equal(t, "AWS::S3::Bucket", bucket["Type"])
	assert.Equal(t, "Retain", bucket["DeletionPolicy"])
	assert.NotContains(t, bucket, "Properties")

	params := parsed["Parameters"].(map[string]any)
	assert.Equal(t, true, params["HandlerConfigString"].(map[string]any)["NoEcho"])

	outputs := parsed["Outputs"].(map[string]any)
	bucketArn := outputs["BucketArn"].(map[string]any)
	assert.Equal(t, "The bucket ARN", bucketArn["Description"])
	assert.Equal(t, "MyStack-BucketArn", bucketArn["Export"].(map[string]any)["Name"])
}

func TestTemplate_ResourcesOfType(t *testing.T) {
	template := Template{
		Resources: map[string]ResourceDef{
			"B": {Type: "AWS::S3::Bucket"},
			"A": {Type: "AWS::S3::Bucket"},
			"F": {Type: "AWS::Lambda::Function"},
		},
	}

	assert.Equal(t, []string{"A", "B"}, template.ResourcesOfType("AWS::S3::Bucket"))
	assert.Equal(t, []string{"F"}, template.ResourcesOfType("AWS::Lambda::Function"))
	assert.Empty(t, template.ResourcesOfType("AWS::IAM::Role"))
}

func TestResourceDef_DependsOn(t *testing.T) {
	resource := ResourceDef{
		Type:      "Custom::S3BucketNotifications",
		DependsOn: []string{"PermissionA", "PermissionB"},
	}

	data, err := json.Marshal(resource)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))

	dependsOn := parsed["DependsOn"].([]any)
	assert.Equal(t, []any{"PermissionA", "PermissionB"}, dependsOn)
}

func TestBuildResult_Error(t *testing.T) {
	result := BuildResult{
		Success: false,
		Errors:  []string{"circular dependency detected"},
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.False(t, parsed["success"].(bool))
	assert.Len(t, parsed["errors"].([]any), 1)
}
