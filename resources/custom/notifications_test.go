package custom

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketNotifications_Serialization(t *testing.T) {
	assert.Equal(t, "Custom::S3BucketNotifications", BucketNotifications{}.ResourceType())

	res := &BucketNotifications{
		ServiceToken: "arn:aws:lambda:us-east-1:123456789012:function:notifications",
		BucketName:   "data",
		NotificationConfiguration: NotificationConfiguration{
			LambdaFunctionConfigurations: []LambdaFunctionConfiguration{
				{
					Events:            []string{"s3:ObjectCreated:*"},
					LambdaFunctionArn: "arn:aws:lambda:us-east-1:123456789012:function:handler",
					Filter: &Filter{Key: KeyFilter{FilterRules: []FilterRule{
						{Name: "prefix", Value: "incoming/"},
					}}},
				},
				{
					Events:            []string{"s3:ObjectCreated:*"},
					LambdaFunctionArn: "arn:aws:lambda:us-east-1:123456789012:function:other",
				},
			},
		},
		Managed: true,
	}

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, true, parsed["Managed"])
	configs := parsed["NotificationConfiguration"].(map[string]any)["LambdaFunctionConfigurations"].([]any)
	require.Len(t, configs, 2)

	first := configs[0].(map[string]any)
	rules := first["Filter"].(map[string]any)["Key"].(map[string]any)["FilterRules"].([]any)
	assert.Equal(t, map[string]any{"Name": "prefix", "Value": "incoming/"}, rules[0])
	assert.NotContains(t, configs[1].(map[string]any), "Filter")
}
