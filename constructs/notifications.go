package constructs

import (
	_ "embed"
	"fmt"

	"github.com/lex00/wetwire-s3trigger-go/intrinsics"
	"github.com/lex00/wetwire-s3trigger-go/resources/custom"
	"github.com/lex00/wetwire-s3trigger-go/resources/lambda"
	"github.com/lex00/wetwire-s3trigger-go/stack"
)

// EventType is an S3 event notification type.
type EventType string

const (
	EventObjectCreated          EventType = "s3:ObjectCreated:*"
	EventObjectCreatedPut       EventType = "s3:ObjectCreated:Put"
	EventObjectCreatedPost      EventType = "s3:ObjectCreated:Post"
	EventObjectCreatedCopy      EventType = "s3:ObjectCreated:Copy"
	EventObjectCreatedMultipart EventType = "s3:ObjectCreated:CompleteMultipartUpload"
	EventObjectRemoved          EventType = "s3:ObjectRemoved:*"
	EventObjectRestorePost      EventType = "s3:ObjectRestore:Post"
	EventObjectTagging          EventType = "s3:ObjectTagging:*"
)

// NotificationsHandlerID is the construct id of the stack-wide function that
// applies bucket notification configurations.
const NotificationsHandlerID = "BucketNotificationsHandler050a0587b7544547bf325f094a3db834"

//go:embed notifications_handler.py
var notificationsHandlerSource string

// NotificationKeyFilter restricts notifications to keys with the given
// prefix and/or suffix.
type NotificationKeyFilter struct {
	Prefix string
	Suffix string
}

// bucketNotifications is the Custom::S3BucketNotifications resource of one
// bucket together with the permissions it depends on.
type bucketNotifications struct {
	element     *stack.CfnElement
	resource    *custom.BucketNotifications
	permissions map[stack.Scope]*stack.CfnElement
}

// AddEventNotification invokes dest when event happens to an object that
// matches filters.
func (b *bucketBase) AddEventNotification(event EventType, dest IFunction, filters ...NotificationKeyFilter) error {
	if event == "" {
		return fmt.Errorf("bucket %s: event type is required", b.Node().Path())
	}
	if dest == nil {
		return fmt.Errorf("bucket %s: notification destination is required", b.Node().Path())
	}
	filter, err := renderFilters(filters)
	if err != nil {
		return fmt.Errorf("bucket %s: %w", b.Node().Path(), err)
	}
	if err := b.ensureNotifications(); err != nil {
		return err
	}

	permission, err := b.notifications.permissionFor(b, dest)
	if err != nil {
		return err
	}
	b.notifications.element.AddDependsOn(permission)

	cfg := &b.notifications.resource.NotificationConfiguration
	cfg.LambdaFunctionConfigurations = append(cfg.LambdaFunctionConfigurations, custom.LambdaFunctionConfiguration{
		Events:            []string{string(event)},
		LambdaFunctionArn: dest.FunctionArn(),
		Filter:            filter,
	})
	return nil
}

func (b *bucketBase) ensureNotifications() error {
	if b.notifications != nil {
		return nil
	}
	st, err := stack.Of(b)
	if err != nil {
		return err
	}
	handler, err := notificationsHandler(st)
	if err != nil {
		return err
	}
	c, err := stack.NewConstruct(b, "Notifications")
	if err != nil {
		return err
	}
	res := &custom.BucketNotifications{
		ServiceToken: handler.GetAtt("Arn"),
		BucketName:   b.name,
		Managed:      b.owned,
	}
	element, err := st.AddResource(c, "Resource", res)
	if err != nil {
		return err
	}
	if b.policy != nil {
		element.AddDependsOn(b.policy.element)
	}
	b.notifications = &bucketNotifications{
		element:     element,
		resource:    res,
		permissions: make(map[stack.Scope]*stack.CfnElement),
	}
	return nil
}

// permissionFor returns the permission letting S3 invoke dest, creating it
// the first time dest is seen for this bucket.
func (n *bucketNotifications) permissionFor(b *bucketBase, dest IFunction) (*stack.CfnElement, error) {
	if p, ok := n.permissions[dest]; ok {
		return p, nil
	}
	st, err := stack.Of(b)
	if err != nil {
		return nil, err
	}
	uid, err := stack.UniqueID(dest.Node())
	if err != nil {
		return nil, err
	}
	p, err := dest.AddPermission("AllowBucketNotificationsTo"+uid, Permission{
		Principal:     "s3.amazonaws.com",
		SourceAccount: st.Account(),
		SourceArn:     b.arn,
		Scope:         b,
	})
	if err != nil {
		return nil, err
	}
	n.permissions[dest] = p
	return p, nil
}

// notificationsHandler returns the stack's notifications handler function,
// creating it with its role on first use.
func notificationsHandler(st *stack.Stack) (*stack.CfnElement, error) {
	v, err := st.Singleton(NotificationsHandlerID, func() (any, error) {
		c, err := stack.NewConstruct(st, NotificationsHandlerID)
		if err != nil {
			return nil, err
		}
		role, err := NewRole(c, "Role", RoleProps{
			AssumedBy:         "lambda.amazonaws.com",
			ManagedPolicyArns: []any{LambdaBasicExecutionPolicy},
		})
		if err != nil {
			return nil, err
		}
		if _, err := role.AddToPrincipalPolicy(intrinsics.Allow([]string{"s3:PutBucketNotification"}, "*")); err != nil {
			return nil, err
		}
		element, err := st.AddResource(c, "Resource", &lambda.Function{
			Description: `AWS CloudFormation handler for "Custom::S3BucketNotifications" resources (@aws-cdk/aws-s3)`,
			Runtime:     string(RuntimePython312),
			Handler:     "index.handler",
			Code:        lambda.Function_Code{ZipFile: notificationsHandlerSource},
			Role:        role.RoleArn(),
			Timeout:     300,
		})
		if err != nil {
			return nil, err
		}
		role.AddDependent(element)
		return element, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*stack.CfnElement), nil
}

// renderFilters converts key filters to S3 filter rules, suffix before
// prefix within each filter. Zero filters give no Filter at all.
func renderFilters(filters []NotificationKeyFilter) (*custom.Filter, error) {
	var rules []custom.FilterRule
	var hasPrefix, hasSuffix bool
	for _, f := range filters {
		if f.Suffix != "" {
			if hasSuffix {
				return nil, fmt.Errorf("cannot specify more than one suffix rule in a filter")
			}
			rules = append(rules, custom.FilterRule{Name: "suffix", Value: f.Suffix})
			hasSuffix = true
		}
		if f.Prefix != "" {
			if hasPrefix {
				return nil, fmt.Errorf("cannot specify more than one prefix rule in a filter")
			}
			rules = append(rules, custom.FilterRule{Name: "prefix", Value: f.Prefix})
			hasPrefix = true
		}
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return &custom.Filter{Key: custom.KeyFilter{FilterRules: rules}}, nil
}
