// Package lambda contains the AWS::Lambda resource types used by the function constructs.
package lambda

// Function is AWS::Lambda::Function.
type Function struct {
	FunctionName                 any                     `json:"FunctionName,omitempty"`
	Description                  string                  `json:"Description,omitempty"`
	Runtime                      string                  `json:"Runtime,omitempty"`
	Handler                      string                  `json:"Handler,omitempty"`
	Code                         Function_Code           `json:"Code"`
	Role                         any                     `json:"Role"`
	MemorySize                   int                     `json:"MemorySize,omitempty"`
	Timeout                      int                     `json:"Timeout,omitempty"`
	Architectures                []string                `json:"Architectures,omitempty"`
	Environment                  *Function_Environment   `json:"Environment,omitempty"`
	Layers                       []any                   `json:"Layers,omitempty"`
	TracingConfig                *Function_TracingConfig `json:"TracingConfig,omitempty"`
	ReservedConcurrentExecutions *int                    `json:"ReservedConcurrentExecutions,omitempty"`
	Tags                         []Tag                   `json:"Tags,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (Function) ResourceType() string { return "AWS::Lambda::Function" }

// Function_Code points at deployment code: an S3 object or inline source.
type Function_Code struct {
	S3Bucket any    `json:"S3Bucket,omitempty"`
	S3Key    any    `json:"S3Key,omitempty"`
	ZipFile  string `json:"ZipFile,omitempty"`
}

// Function_Environment holds environment variables.
type Function_Environment struct {
	Variables map[string]any `json:"Variables"`
}

// Function_TracingConfig selects X-Ray tracing mode.
type Function_TracingConfig struct {
	Mode string `json:"Mode"`
}

// Tag is a resource tag.
type Tag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// Permission is AWS::Lambda::Permission.
type Permission struct {
	Action        string `json:"Action"`
	FunctionName  any    `json:"FunctionName"`
	Principal     string `json:"Principal"`
	SourceAccount any    `json:"SourceAccount,omitempty"`
	SourceArn     any    `json:"SourceArn,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (Permission) ResourceType() string { return "AWS::Lambda::Permission" }
