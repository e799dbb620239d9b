// Package integ builds the integration app deployed by the end-to-end
// tests: one stack holding one event publisher with cross-account access.
package integ

import (
	"github.com/lex00/wetwire-s3trigger-go/bucketevents"
	"github.com/lex00/wetwire-s3trigger-go/stack"
)

const (
	StackName           = "integration-stack"
	ConstructID         = "S3LambdaObjectCreated"
	CrossAccountRoleArn = "arn:aws:iam::590183801547:role/obp-iquod5-task"
	DefaultEventName    = "s3-object-created"
)

// Options configures NewDefault.
type Options struct {
	Outdir string
	// CodePath is the event-publisher bundle, bucketevents.DefaultCodePath
	// when empty.
	CodePath string
	// EventName defaults to DefaultEventName.
	EventName string
	// ConfigString is embedded in the handler. When empty the stack takes
	// it as a NoEcho parameter at deploy time.
	ConfigString string
}

// Integration is the app with its single stack and publisher.
type Integration struct {
	App       *stack.App
	Stack     *stack.Stack
	Publisher *bucketevents.Publisher
}

// NewDefault builds the integration app.
func NewDefault(opts Options) (*Integration, error) {
	app := stack.NewApp(stack.AppProps{Outdir: opts.Outdir})
	st, err := stack.NewStack(app, StackName, stack.StackProps{
		Description: "Integration stack for the S3 object-created event publisher",
	})
	if err != nil {
		return nil, err
	}

	eventName := opts.EventName
	if eventName == "" {
		eventName = DefaultEventName
	}
	pub, err := bucketevents.NewPublisher(st, ConstructID, bucketevents.PublisherProps{
		EventName:           eventName,
		ConfigString:        opts.ConfigString,
		ConfigAsParameter:   opts.ConfigString == "",
		CrossAccountRoleArn: CrossAccountRoleArn,
		CodePath:            opts.CodePath,
		ExportOutputs:       true,
	})
	if err != nil {
		return nil, err
	}
	return &Integration{App: app, Stack: st, Publisher: pub}, nil
}
