// Package custom contains custom resource types backed by Lambda providers.
package custom

// BucketNotifications is Custom::S3BucketNotifications. Its provider calls
// PutBucketNotificationConfiguration on the named bucket.
type BucketNotifications struct {
	ServiceToken              any                       `json:"ServiceToken"`
	BucketName                any                       `json:"BucketName"`
	NotificationConfiguration NotificationConfiguration `json:"NotificationConfiguration"`
	Managed                   bool                      `json:"Managed"`
	SkipDestinationValidation bool                      `json:"SkipDestinationValidation"`
}

// ResourceType returns the CloudFormation type.
func (BucketNotifications) ResourceType() string { return "Custom::S3BucketNotifications" }

// NotificationConfiguration mirrors the S3 API shape expected by the provider.
type NotificationConfiguration struct {
	LambdaFunctionConfigurations []LambdaFunctionConfiguration `json:"LambdaFunctionConfigurations,omitempty"`
}

// LambdaFunctionConfiguration is one function target.
type LambdaFunctionConfiguration struct {
	Events            []string `json:"Events"`
	LambdaFunctionArn any      `json:"LambdaFunctionArn"`
	Filter            *Filter  `json:"Filter,omitempty"`
}

// Filter restricts notifications by object key.
type Filter struct {
	Key KeyFilter `json:"Key"`
}

// KeyFilter holds the key filter rules.
type KeyFilter struct {
	FilterRules []FilterRule `json:"FilterRules"`
}

// FilterRule is a prefix or suffix rule, as the S3 API names them.
type FilterRule struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}
