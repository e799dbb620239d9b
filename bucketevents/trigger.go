package bucketevents

import (
	"fmt"

	"github.com/lex00/wetwire-s3trigger-go/constructs"
	"github.com/lex00/wetwire-s3trigger-go/stack"
)

// TriggerProps configures NewTrigger.
type TriggerProps struct {
	// ExistingBucket is used instead of creating a bucket.
	ExistingBucket constructs.IBucket
	// BucketProps configure the created bucket.
	BucketProps *constructs.BucketProps

	// Exactly one of ExistingHandler and HandlerProps must be set.
	ExistingHandler constructs.IFunction
	HandlerProps    *constructs.FunctionProps

	// Prefix and Suffix filter the notification by object key.
	Prefix string
	Suffix string

	// CrossAccountRoleArn is an IAM ARN or account id given put, get and
	// list access to the bucket.
	CrossAccountRoleArn string

	// Events defaults to constructs.EventObjectCreated.
	Events []constructs.EventType

	ExportOutputs bool
}

// Trigger invokes a handler when objects are created in a bucket.
type Trigger struct {
	*stack.Construct
	bucket  constructs.IBucket
	handler constructs.IFunction
	wiring  wiring
}

// NewTrigger creates the bucket and handler as needed and wires them.
func NewTrigger(scope stack.Scope, id string, props TriggerProps) (*Trigger, error) {
	switch {
	case props.ExistingHandler == nil && props.HandlerProps == nil:
		return nil, fmt.Errorf("trigger %s: %w", id, ErrMissingHandler)
	case props.ExistingHandler != nil && props.HandlerProps != nil:
		return nil, fmt.Errorf("trigger %s: %w", id, ErrConflictingHandler)
	case props.ExistingBucket != nil && props.BucketProps != nil:
		return nil, fmt.Errorf("trigger %s: %w", id, ErrConflictingBucket)
	}
	principal, err := crossAccountPrincipal(props.CrossAccountRoleArn)
	if err != nil {
		return nil, fmt.Errorf("trigger %s: %w", id, err)
	}
	events := props.Events
	if len(events) == 0 {
		events = []constructs.EventType{constructs.EventObjectCreated}
	}

	c, err := stack.NewConstruct(scope, id)
	if err != nil {
		return nil, err
	}

	bucket, err := resolveBucket(c, props.ExistingBucket, props.BucketProps)
	if err != nil {
		return nil, fmt.Errorf("trigger %s: %w", id, err)
	}

	handler := props.ExistingHandler
	if handler == nil {
		fn, err := constructs.NewFunction(c, HandlerID, *props.HandlerProps)
		if err != nil {
			return nil, fmt.Errorf("trigger %s: %w", id, err)
		}
		if err := fn.AddEnvironment(BucketNameEnv, bucket.BucketName()); err != nil {
			return nil, err
		}
		handler = fn
	}

	t := &Trigger{Construct: c, bucket: bucket, handler: handler}
	if t.wiring, err = wire(bucket, handler, principal, events, props.Prefix, props.Suffix); err != nil {
		return nil, fmt.Errorf("trigger %s: %w", id, err)
	}
	if props.ExportOutputs {
		if err := exportOutputs(c, bucket, handler); err != nil {
			return nil, fmt.Errorf("trigger %s: %w", id, err)
		}
	}
	logWiring(c, t.wiring, bucket, handler)
	return t, nil
}

// Bucket returns the bucket whose events are delivered.
func (t *Trigger) Bucket() constructs.IBucket { return t.bucket }

// Handler returns the function invoked on object creation.
func (t *Trigger) Handler() constructs.IFunction { return t.handler }

// ReadGrant returns the grant giving the handler read access.
func (t *Trigger) ReadGrant() constructs.Grant { return t.wiring.readGrant }

// CrossAccountPolicy returns the outcome of the cross-account statement.
// Added is false when no principal was given or the bucket is imported.
func (t *Trigger) CrossAccountPolicy() constructs.PolicyResult { return t.wiring.crossAccount }
