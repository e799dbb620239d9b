package constructs

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/lex00/wetwire-s3trigger-go/intrinsics"
	"github.com/lex00/wetwire-s3trigger-go/resources/s3"
	"github.com/lex00/wetwire-s3trigger-go/stack"
)

// BucketEncryption selects default server-side encryption.
type BucketEncryption string

const (
	EncryptionS3Managed   BucketEncryption = "S3_MANAGED"
	EncryptionKMSManaged  BucketEncryption = "KMS_MANAGED"
	EncryptionUnencrypted BucketEncryption = "UNENCRYPTED"
)

// ReadActions are granted by IBucket.GrantRead.
var ReadActions = []string{"s3:GetObject*", "s3:GetBucket*", "s3:List*"}

var (
	bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
	bucketArnPattern  = regexp.MustCompile(`^arn:[a-z-]+:s3:::([a-z0-9][a-z0-9.-]{1,61}[a-z0-9])$`)
)

// LifecycleRule expires or transitions objects.
type LifecycleRule struct {
	ID                                 string
	Prefix                             string
	Disabled                           bool
	ExpirationDays                     int
	NoncurrentVersionExpirationDays    int
	AbortIncompleteMultipartUploadDays int
	Transitions                        []Transition
}

// Transition moves objects to StorageClass after Days.
type Transition struct {
	StorageClass string
	Days         int
}

// BucketProps configures NewBucket.
type BucketProps struct {
	BucketName string
	// Encryption defaults to EncryptionS3Managed.
	Encryption BucketEncryption
	Versioned  bool
	// BlockPublicAccess defaults to true.
	BlockPublicAccess *bool
	// EnforceSSL denies requests not made over TLS.
	EnforceSSL     bool
	LifecycleRules []LifecycleRule
	// RemovalPolicy defaults to stack.RemovalPolicyRetain.
	RemovalPolicy stack.RemovalPolicy
	Tags          map[string]string
	// Overrides are raw AWS::S3::Bucket properties keyed by dotted path,
	// applied after everything else.
	Overrides map[string]any
}

// Grant is the outcome of a grant call.
type Grant struct {
	Statement intrinsics.PolicyStatement
	Added     bool
}

// PolicyResult is the outcome of AddToResourcePolicy.
type PolicyResult struct {
	Added bool
	// Policy is the AWS::S3::BucketPolicy the statement went to, nil when
	// the statement was not added.
	Policy *stack.CfnElement
}

// IBucket is an S3 bucket, created in the stack or imported by name.
type IBucket interface {
	stack.Scope
	BucketName() any
	BucketArn() any
	// ArnForObjects returns the ARN of objects matching keyPattern ("*" for
	// every object).
	ArnForObjects(keyPattern string) any
	GrantRead(grantee Grantable, objectsKeyPattern ...string) (Grant, error)
	AddToResourcePolicy(statement intrinsics.PolicyStatement) (PolicyResult, error)
	AddEventNotification(event EventType, dest IFunction, filters ...NotificationKeyFilter) error
	IsOwned() bool
}

// bucketBase holds what owned and imported buckets share.
type bucketBase struct {
	*stack.Construct
	name          any
	arn           any
	owned         bool
	notifications *bucketNotifications
	policy        *bucketPolicy
}

type bucketPolicy struct {
	element *stack.CfnElement
	doc     *intrinsics.PolicyDocument
}

func (b *bucketBase) BucketName() any { return b.name }
func (b *bucketBase) BucketArn() any  { return b.arn }
func (b *bucketBase) IsOwned() bool   { return b.owned }

func (b *bucketBase) ArnForObjects(keyPattern string) any {
	if arn, ok := b.arn.(string); ok {
		return arn + "/" + keyPattern
	}
	return intrinsics.Join{Delimiter: "", Values: []any{b.arn, "/" + keyPattern}}
}

// GrantRead allows grantee to read objects matching the pattern (every
// object by default) and to list the bucket.
func (b *bucketBase) GrantRead(grantee Grantable, objectsKeyPattern ...string) (Grant, error) {
	pattern := "*"
	if len(objectsKeyPattern) > 0 && objectsKeyPattern[0] != "" {
		pattern = objectsKeyPattern[0]
	}
	statement := intrinsics.Allow(ReadActions, b.arn, b.ArnForObjects(pattern))

	added, err := grantee.AddToPrincipalPolicy(statement)
	if err != nil {
		return Grant{}, fmt.Errorf("granting read on %s: %w", b.Node().Path(), err)
	}
	if !added {
		zap.S().Warnw("read grant skipped: grantee has no known role", "bucket", b.Node().Path())
	}
	return Grant{Statement: statement, Added: added}, nil
}

// AddToResourcePolicy appends statement to the bucket policy. Imported
// buckets cannot be given a policy from this stack; the statement is
// dropped with a warning.
func (b *bucketBase) AddToResourcePolicy(statement intrinsics.PolicyStatement) (PolicyResult, error) {
	if !b.owned {
		zap.S().Warnw("bucket policy statement skipped: bucket is not owned by this stack",
			"bucket", b.Node().Path(), "actions", statement.Action)
		return PolicyResult{}, nil
	}
	if b.policy == nil {
		st, err := stack.Of(b)
		if err != nil {
			return PolicyResult{}, err
		}
		c, err := stack.NewConstruct(b, "Policy")
		if err != nil {
			return PolicyResult{}, err
		}
		doc := intrinsics.NewPolicyDocument()
		element, err := st.AddResource(c, "Resource", &s3.BucketPolicy{
			Bucket:         b.name,
			PolicyDocument: &doc,
		})
		if err != nil {
			return PolicyResult{}, err
		}
		b.policy = &bucketPolicy{element: element, doc: &doc}
		if b.notifications != nil {
			b.notifications.element.AddDependsOn(element)
		}
	}
	b.policy.doc.AddStatements(statement)
	return PolicyResult{Added: true, Policy: b.policy.element}, nil
}

// Bucket is an S3 bucket owned by the stack.
type Bucket struct {
	bucketBase
	element  *stack.CfnElement
	resource *s3.Bucket
}

// NewBucket creates an S3 bucket.
func NewBucket(scope stack.Scope, id string, props BucketProps) (*Bucket, error) {
	if props.BucketName != "" && !bucketNamePattern.MatchString(props.BucketName) {
		return nil, fmt.Errorf("bucket %s: invalid bucket name %q", id, props.BucketName)
	}
	st, err := stack.Of(scope)
	if err != nil {
		return nil, err
	}
	c, err := stack.NewConstruct(scope, id)
	if err != nil {
		return nil, err
	}

	res := &s3.Bucket{}
	if props.BucketName != "" {
		res.BucketName = props.BucketName
	}

	switch props.Encryption {
	case "", EncryptionS3Managed:
		res.BucketEncryption = encryption("AES256")
	case EncryptionKMSManaged:
		res.BucketEncryption = encryption("aws:kms")
	case EncryptionUnencrypted:
	default:
		return nil, fmt.Errorf("bucket %s: unknown encryption %q", id, props.Encryption)
	}

	if props.Versioned {
		res.VersioningConfiguration = &s3.Bucket_VersioningConfiguration{Status: "Enabled"}
	}
	if props.BlockPublicAccess == nil || *props.BlockPublicAccess {
		res.PublicAccessBlockConfiguration = &s3.Bucket_PublicAccessBlockConfiguration{
			BlockPublicAcls:       true,
			BlockPublicPolicy:     true,
			IgnorePublicAcls:      true,
			RestrictPublicBuckets: true,
		}
	}
	if len(props.LifecycleRules) > 0 {
		rules, err := lifecycleRules(props.LifecycleRules)
		if err != nil {
			return nil, fmt.Errorf("bucket %s: %w", id, err)
		}
		res.LifecycleConfiguration = &s3.Bucket_LifecycleConfiguration{Rules: rules}
	}
	for _, k := range sortedKeys(props.Tags) {
		res.Tags = append(res.Tags, s3.Tag{Key: k, Value: props.Tags[k]})
	}

	element, err := st.AddResource(c, "Resource", res)
	if err != nil {
		return nil, err
	}
	switch props.RemovalPolicy {
	case "", stack.RemovalPolicyRetain, stack.RemovalPolicyDestroy:
		element.ApplyRemovalPolicy(props.RemovalPolicy)
	default:
		return nil, fmt.Errorf("bucket %s: unknown removal policy %q", id, props.RemovalPolicy)
	}
	for path, value := range props.Overrides {
		element.AddPropertyOverride(path, value)
	}

	b := &Bucket{
		bucketBase: bucketBase{
			Construct: c,
			name:      element.Ref(),
			arn:       element.GetAtt("Arn"),
			owned:     true,
		},
		element:  element,
		resource: res,
	}

	if props.EnforceSSL {
		if _, err := b.AddToResourcePolicy(intrinsics.PolicyStatement{
			Effect:    "Deny",
			Principal: intrinsics.AWSPrincipal{intrinsics.AllPrincipal},
			Action:    "s3:*",
			Resource:  []any{b.arn, b.ArnForObjects("*")},
			Condition: intrinsics.Json{intrinsics.Bool: intrinsics.Json{"aws:SecureTransport": "false"}},
		}); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Element returns the underlying AWS::S3::Bucket.
func (b *Bucket) Element() *stack.CfnElement { return b.element }

func encryption(algorithm string) *s3.Bucket_BucketEncryption {
	return &s3.Bucket_BucketEncryption{
		ServerSideEncryptionConfiguration: []s3.Bucket_ServerSideEncryptionRule{{
			ServerSideEncryptionByDefault: &s3.Bucket_ServerSideEncryptionByDefault{SSEAlgorithm: algorithm},
		}},
	}
}

func lifecycleRules(in []LifecycleRule) ([]s3.Bucket_Rule, error) {
	rules := make([]s3.Bucket_Rule, 0, len(in))
	for i, r := range in {
		if r.ExpirationDays == 0 && r.NoncurrentVersionExpirationDays == 0 &&
			r.AbortIncompleteMultipartUploadDays == 0 && len(r.Transitions) == 0 {
			return nil, fmt.Errorf("lifecycle rule %d has no action", i)
		}
		rule := s3.Bucket_Rule{
			Id:                                r.ID,
			Status:                            "Enabled",
			Prefix:                            r.Prefix,
			ExpirationInDays:                  r.ExpirationDays,
			NoncurrentVersionExpirationInDays: r.NoncurrentVersionExpirationDays,
		}
		if r.Disabled {
			rule.Status = "Disabled"
		}
		if r.AbortIncompleteMultipartUploadDays > 0 {
			rule.AbortIncompleteMultipartUpload = &s3.Bucket_AbortUpload{DaysAfterInitiation: r.AbortIncompleteMultipartUploadDays}
		}
		for _, t := range r.Transitions {
			if t.StorageClass == "" {
				return nil, fmt.Errorf("lifecycle rule %d: transition needs a storage class", i)
			}
			rule.Transitions = append(rule.Transitions, s3.Bucket_Transition{StorageClass: t.StorageClass, TransitionInDays: t.Days})
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// importedBucket is a bucket defined outside the stack.
type importedBucket struct {
	bucketBase
}

// BucketFromName references an existing bucket by name.
func BucketFromName(scope stack.Scope, id, name string) (IBucket, error) {
	if !bucketNamePattern.MatchString(name) {
		return nil, fmt.Errorf("bucket %s: invalid bucket name %q", id, name)
	}
	c, err := stack.NewConstruct(scope, id)
	if err != nil {
		return nil, err
	}
	return &importedBucket{bucketBase{
		Construct: c,
		name:      name,
		arn:       intrinsics.Sub{String: "arn:${AWS::Partition}:s3:::" + name},
	}}, nil
}

// BucketFromArn references an existing bucket by ARN.
func BucketFromArn(scope stack.Scope, id, arn string) (IBucket, error) {
	m := bucketArnPattern.FindStringSubmatch(arn)
	if m == nil {
		return nil, fmt.Errorf("bucket %s: %q is not an S3 bucket ARN", id, arn)
	}
	c, err := stack.NewConstruct(scope, id)
	if err != nil {
		return nil, err
	}
	return &importedBucket{bucketBase{Construct: c, name: m[1], arn: arn}}, nil
}
