package s3

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceTypes(t *testing.T) {
	assert.Equal(t, "AWS::S3::Bucket", Bucket{}.ResourceType())
	assert.Equal(t, "AWS::S3::BucketPolicy", BucketPolicy{}.ResourceType())
}

func TestBucket_OmitsUnsetProperties(t *testing.T) {
	data, err := json.Marshal(&Bucket{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestBucket_Serialization(t *testing.T) {
	bucket := &Bucket{
		BucketEncryption: &Bucket_BucketEncryption{
			ServerSideEncryptionConfiguration: []Bucket_ServerSideEncryptionRule{{
				ServerSideEncryptionByDefault: &Bucket_ServerSideEncryptionByDefault{SSEAlgorithm: "AES256"},
			}},
		},
		VersioningConfiguration: &Bucket_VersioningConfiguration{Status: "Enabled"},
		PublicAccessBlockConfiguration: &Bucket_PublicAccessBlockConfiguration{
			BlockPublicAcls:       true,
			BlockPublicPolicy:     true,
			IgnorePublicAcls:      true,
			RestrictPublicBuckets: true,
		},
		Tags: []Tag{{Key: "team", Value: "data"}},
	}

	data, err := json.Marshal(bucket)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))

	enc := parsed["BucketEncryption"].(map[string]any)
	rules := enc["ServerSideEncryptionConfiguration"].([]any)
	require.Len(t, rules, 1)
	byDefault := rules[0].(map[string]any)["ServerSideEncryptionByDefault"].(map[string]any)
	assert.Equal(t, "AES256", byDefault["SSEAlgorithm"])
	assert.NotContains(t, byDefault, "KMSMasterKeyID")

	assert.Equal(t, "Enabled", parsed["VersioningConfiguration"].(map[string]any)["Status"])
	assert.Equal(t, true, parsed["PublicAccessBlockConfiguration"].(map[string]any)["BlockPublicPolicy"])
	assert.Len(t, parsed["Tags"], 1)
}
