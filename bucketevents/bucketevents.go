// Package bucketevents wires an S3 bucket to a Lambda handler so that
// object-created events invoke the handler.
//
// Two constructs are provided. Trigger accepts an existing handler or the
// properties of a new one. Publisher always creates the event-publisher
// handler, configured with an event name and a Metaflow config string.
//
//	app := stack.NewApp(stack.AppProps{})
//	st, _ := stack.NewStack(app, "integration-stack", stack.StackProps{})
//	pub, err := bucketevents.NewPublisher(st, "S3LambdaObjectCreated", bucketevents.PublisherProps{
//	    EventName:           "data-landed",
//	    ConfigString:        `{"METAFLOW_ARGO_EVENTS_WEBHOOK_URL": "https://argo.example.com"}`,
//	    CrossAccountRoleArn: "arn:aws:iam::590183801547:role/obp-iquod5-task",
//	})
package bucketevents

import (
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	s3trigger "github.com/lex00/wetwire-s3trigger-go"
	"github.com/lex00/wetwire-s3trigger-go/constructs"
	"github.com/lex00/wetwire-s3trigger-go/intrinsics"
	"github.com/lex00/wetwire-s3trigger-go/stack"
)

// Construct ids of the children created under a trigger.
const (
	BucketID  = "s3-lambda-bucket"
	HandlerID = "Handler"
)

// BucketNameEnv is set on created handlers to the bucket's name.
const BucketNameEnv = "BUCKET_NAME"

// CrossAccountActions are granted to the cross-account principal.
var CrossAccountActions = []string{"s3:PutObject", "s3:GetObject", "s3:ListBucket"}

var (
	ErrMissingHandler     = errors.New("either ExistingHandler or HandlerProps is required")
	ErrConflictingHandler = errors.New("ExistingHandler and HandlerProps are mutually exclusive")
	ErrConflictingBucket  = errors.New("ExistingBucket and BucketProps are mutually exclusive")
	ErrInvalidPrincipal   = errors.New("cross-account principal must be an IAM ARN or a 12-digit account id")
	ErrMissingEventName   = errors.New("event name is required")
	ErrMissingConfig      = errors.New("config string is required")
	ErrInvalidConfig      = errors.New("config string is not valid JSON")
	ErrMissingBootstrap   = errors.New("event-publisher bundle has no executable bootstrap (run go generate ./cmd/event-publisher)")
)

var (
	iamArnPattern    = regexp.MustCompile(`^arn:[a-z-]+:iam::\d{12}:\S+$`)
	accountIDPattern = regexp.MustCompile(`^\d{12}$`)
	nonAlphanumeric  = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// crossAccountPrincipal validates a cross-account identifier and returns
// the IAM principal for it, or nil when identifier is empty.
func crossAccountPrincipal(identifier string) (intrinsics.AWSPrincipal, error) {
	switch {
	case identifier == "":
		return nil, nil
	case iamArnPattern.MatchString(identifier):
		return intrinsics.AWSPrincipal{identifier}, nil
	case accountIDPattern.MatchString(identifier):
		return intrinsics.AWSPrincipal{intrinsics.Sub{String: "arn:${AWS::Partition}:iam::" + identifier + ":root"}}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidPrincipal, identifier)
}

// wiring is the outcome of connecting a bucket to a handler.
type wiring struct {
	readGrant    constructs.Grant
	crossAccount constructs.PolicyResult
}

// wire grants handler read access to bucket, applies the cross-account
// statement and registers the notification.
func wire(bucket constructs.IBucket, handler constructs.IFunction, principal intrinsics.AWSPrincipal, events []constructs.EventType, prefix, suffix string) (wiring, error) {
	var w wiring
	var err error

	if w.readGrant, err = bucket.GrantRead(handler); err != nil {
		return w, err
	}

	if principal != nil {
		statement := intrinsics.Allow(CrossAccountActions, bucket.ArnForObjects("*"), bucket.BucketArn()).WithPrincipal(principal)
		if w.crossAccount, err = bucket.AddToResourcePolicy(statement); err != nil {
			return w, err
		}
	}

	filter := constructs.NotificationKeyFilter{Prefix: prefix, Suffix: suffix}
	for _, event := range events {
		if err := bucket.AddEventNotification(event, handler, filter); err != nil {
			return w, err
		}
	}
	return w, nil
}

// resolveBucket returns existing, or a new bucket under scope.
func resolveBucket(scope stack.Scope, existing constructs.IBucket, props *constructs.BucketProps) (constructs.IBucket, error) {
	if existing != nil {
		return existing, nil
	}
	var p constructs.BucketProps
	if props != nil {
		p = *props
	}
	return constructs.NewBucket(scope, BucketID, p)
}

// exportOutputs adds <id>BucketName and <id>HandlerArn outputs, exported
// under the stack name.
func exportOutputs(scope stack.Scope, bucket constructs.IBucket, handler constructs.IFunction) error {
	st, err := stack.Of(scope)
	if err != nil {
		return err
	}
	prefix := nonAlphanumeric.ReplaceAllString(scope.Node().ID(), "")
	outputs := []struct {
		name  string
		desc  string
		value any
	}{
		{prefix + "BucketName", "Name of the bucket whose object-created events are published", bucket.BucketName()},
		{prefix + "HandlerArn", "ARN of the function invoked on object creation", handler.FunctionArn()},
	}
	for _, o := range outputs {
		if err := st.AddOutput(o.name, s3trigger.Output{
			Description: o.desc,
			Value:       o.value,
			Export:      &s3trigger.Export{Name: st.StackName() + "-" + o.name},
		}); err != nil {
			return err
		}
	}
	return nil
}

func logWiring(scope stack.Scope, w wiring, bucket constructs.IBucket, handler constructs.IFunction) {
	zap.S().Debugw("bucket events wired",
		"path", scope.Node().Path(),
		"ownedBucket", bucket.IsOwned(),
		"ownedHandler", handler.IsOwned(),
		"readGrant", w.readGrant.Added,
		"crossAccountPolicy", w.crossAccount.Added,
	)
}
