// Package s3 contains the AWS::S3 resource types used by the bucket constructs.
package s3

// Bucket is AWS::S3::Bucket.
type Bucket struct {
	BucketName                     any                                    `json:"BucketName,omitempty"`
	BucketEncryption               *Bucket_BucketEncryption               `json:"BucketEncryption,omitempty"`
	VersioningConfiguration        *Bucket_VersioningConfiguration        `json:"VersioningConfiguration,omitempty"`
	PublicAccessBlockConfiguration *Bucket_PublicAccessBlockConfiguration `json:"PublicAccessBlockConfiguration,omitempty"`
	LifecycleConfiguration         *Bucket_LifecycleConfiguration         `json:"LifecycleConfiguration,omitempty"`
	ObjectLockEnabled              bool                                   `json:"ObjectLockEnabled,omitempty"`
	Tags                           []Tag                                  `json:"Tags,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (Bucket) ResourceType() string { return "AWS::S3::Bucket" }

// Bucket_BucketEncryption configures default server-side encryption.
type Bucket_BucketEncryption struct {
	ServerSideEncryptionConfiguration []Bucket_ServerSideEncryptionRule `json:"ServerSideEncryptionConfiguration"`
}

// Bucket_ServerSideEncryptionRule wraps the default encryption settings.
type Bucket_ServerSideEncryptionRule struct {
	BucketKeyEnabled              bool                                  `json:"BucketKeyEnabled,omitempty"`
	ServerSideEncryptionByDefault *Bucket_ServerSideEncryptionByDefault `json:"ServerSideEncryptionByDefault,omitempty"`
}

// Bucket_ServerSideEncryptionByDefault selects the algorithm and key.
type Bucket_ServerSideEncryptionByDefault struct {
	SSEAlgorithm   string `json:"SSEAlgorithm"`
	KMSMasterKeyID any    `json:"KMSMasterKeyID,omitempty"`
}

// Bucket_VersioningConfiguration enables or suspends versioning.
type Bucket_VersioningConfiguration struct {
	Status string `json:"Status"`
}

// Bucket_PublicAccessBlockConfiguration blocks public access.
type Bucket_PublicAccessBlockConfiguration struct {
	BlockPublicAcls       bool `json:"BlockPublicAcls"`
	BlockPublicPolicy     bool `json:"BlockPublicPolicy"`
	IgnorePublicAcls      bool `json:"IgnorePublicAcls"`
	RestrictPublicBuckets bool `json:"RestrictPublicBuckets"`
}

// Bucket_LifecycleConfiguration holds lifecycle rules.
type Bucket_LifecycleConfiguration struct {
	Rules []Bucket_Rule `json:"Rules"`
}

// Bucket_Rule is a single lifecycle rule.
type Bucket_Rule struct {
	Id                                string              `json:"Id,omitempty"`
	Status                            string              `json:"Status"`
	Prefix                            string              `json:"Prefix,omitempty"`
	ExpirationInDays                  int                 `json:"ExpirationInDays,omitempty"`
	NoncurrentVersionExpirationInDays int                 `json:"NoncurrentVersionExpirationInDays,omitempty"`
	AbortIncompleteMultipartUpload    *Bucket_AbortUpload `json:"AbortIncompleteMultipartUpload,omitempty"`
	Transitions                       []Bucket_Transition `json:"Transitions,omitempty"`
}

// Bucket_AbortUpload aborts incomplete multipart uploads after a number of days.
type Bucket_AbortUpload struct {
	DaysAfterInitiation int `json:"DaysAfterInitiation"`
}

// Bucket_Transition moves objects to another storage class.
type Bucket_Transition struct {
	StorageClass     string `json:"StorageClass"`
	TransitionInDays int    `json:"TransitionInDays,omitempty"`
}

// Tag is a resource tag.
type Tag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// BucketPolicy is AWS::S3::BucketPolicy.
type BucketPolicy struct {
	Bucket         any `json:"Bucket"`
	PolicyDocument any `json:"PolicyDocument"`
}

// ResourceType returns the CloudFormation type.
func (BucketPolicy) ResourceType() string { return "AWS::S3::BucketPolicy" }
