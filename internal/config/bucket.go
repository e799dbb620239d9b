package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/lex00/wetwire-s3trigger-go/constructs"
	"github.com/lex00/wetwire-s3trigger-go/stack"
)

// BucketConfig is the typed view of construct.bucket.
type BucketConfig struct {
	BucketName        string                `mapstructure:"bucket_name"`
	Encryption        string                `mapstructure:"encryption"`
	Versioned         bool                  `mapstructure:"versioned"`
	BlockPublicAccess *bool                 `mapstructure:"block_public_access"`
	EnforceSSL        bool                  `mapstructure:"enforce_ssl"`
	RemovalPolicy     string                `mapstructure:"removal_policy"`
	Tags              map[string]string     `mapstructure:"tags"`
	LifecycleRules    []LifecycleRuleConfig `mapstructure:"lifecycle_rules"`
}

type LifecycleRuleConfig struct {
	ID                       string             `mapstructure:"id"`
	Prefix                   string             `mapstructure:"prefix"`
	Disabled                 bool               `mapstructure:"disabled"`
	ExpirationDays           int                `mapstructure:"expiration_days"`
	NoncurrentExpirationDays int                `mapstructure:"noncurrent_expiration_days"`
	AbortMultipartDays       int                `mapstructure:"abort_multipart_days"`
	Transitions              []TransitionConfig `mapstructure:"transitions"`
}

type TransitionConfig struct {
	StorageClass string `mapstructure:"storage_class"`
	Days         int    `mapstructure:"days"`
}

// DecodeBucket converts the raw bucket section into bucket props. Keys that
// are not BucketConfig fields become property overrides of the
// AWS::S3::Bucket, so any CloudFormation property can be set.
func DecodeBucket(raw map[string]any) (*constructs.BucketProps, error) {
	if raw == nil {
		return nil, nil
	}
	var bc BucketConfig
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         &md,
		Result:           &bc,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding construct.bucket: %w", err)
	}

	props := &constructs.BucketProps{
		BucketName:        bc.BucketName,
		Encryption:        constructs.BucketEncryption(bc.Encryption),
		Versioned:         bc.Versioned,
		BlockPublicAccess: bc.BlockPublicAccess,
		EnforceSSL:        bc.EnforceSSL,
		RemovalPolicy:     stack.RemovalPolicy(bc.RemovalPolicy),
		Tags:              bc.Tags,
	}
	for _, r := range bc.LifecycleRules {
		rule := constructs.LifecycleRule{
			ID:                                 r.ID,
			Prefix:                             r.Prefix,
			Disabled:                           r.Disabled,
			ExpirationDays:                     r.ExpirationDays,
			NoncurrentVersionExpirationDays:    r.NoncurrentExpirationDays,
			AbortIncompleteMultipartUploadDays: r.AbortMultipartDays,
		}
		for _, t := range r.Transitions {
			rule.Transitions = append(rule.Transitions, constructs.Transition{StorageClass: t.StorageClass, Days: t.Days})
		}
		props.LifecycleRules = append(props.LifecycleRules, rule)
	}

	for _, key := range md.Unused {
		value, ok := raw[key]
		if !ok {
			return nil, fmt.Errorf("construct.bucket: unknown key %s", key)
		}
		if props.Overrides == nil {
			props.Overrides = make(map[string]any)
		}
		props.Overrides[key] = value
	}
	return props, nil
}
