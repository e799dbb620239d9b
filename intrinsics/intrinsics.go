// Package intrinsics provides CloudFormation intrinsic functions.
//
// The core intrinsic types come from cloudformation-schema-go; this package
// re-exports the ones the constructs use and adds IAM policy types.
//
//	Ref{LogicalName: "MyBucket"}              → {"Ref": "MyBucket"}
//	GetAtt{LogicalName: "MyBucket", Attribute: "Arn"}
//	Sub{String: "${AWS::Region}-bucket"}       → {"Fn::Sub": "${AWS::Region}-bucket"}
//	Join{Delimiter: "", Values: []any{arn, "/*"}}
package intrinsics

import (
	"encoding/json"

	"github.com/lex00/cloudformation-schema-go/intrinsics"

	s3trigger "github.com/lex00/wetwire-s3trigger-go"
)

type (
	// Ref represents a CloudFormation Ref intrinsic function.
	Ref = intrinsics.Ref

	// GetAtt represents a CloudFormation Fn::GetAtt intrinsic function.
	GetAtt = intrinsics.GetAtt

	// Sub represents a CloudFormation Fn::Sub intrinsic function.
	Sub = intrinsics.Sub

	// SubWithMap is Fn::Sub with a variable map.
	SubWithMap = intrinsics.SubWithMap

	// Join represents a CloudFormation Fn::Join intrinsic function.
	Join = intrinsics.Join

	// Select represents a CloudFormation Fn::Select intrinsic function.
	Select = intrinsics.Select

	// Split represents a CloudFormation Fn::Split intrinsic function.
	Split = intrinsics.Split

	// Equals represents a CloudFormation Fn::Equals condition function.
	Equals = intrinsics.Equals

	// Not represents a CloudFormation Fn::Not condition function.
	Not = intrinsics.Not

	// Tag represents a CloudFormation resource tag.
	Tag = intrinsics.Tag
)

// Parameter defines a CloudFormation template parameter.
// When used as a value in resource properties it serializes to {"Ref": name}.
//
//	configString := Parameter{
//	    Type:   "String",
//	    NoEcho: true,
//	}.Named("HandlerConfigString")
type Parameter struct {
	// Type is the CloudFormation parameter type (String, Number, ...)
	Type string
	// Description is optional documentation for the parameter
	Description string
	// Default is the default value if none is provided
	Default any
	// AllowedValues restricts the parameter to specific values
	AllowedValues []any
	// NoEcho masks the value in console and API output
	NoEcho bool

	name string
}

// Named returns a copy of the parameter bound to the given logical name.
func (p Parameter) Named(name string) Parameter {
	p.name = name
	return p
}

// Name returns the parameter name.
func (p Parameter) Name() string {
	return p.name
}

// MarshalJSON serializes Parameter as a CloudFormation Ref when used as a value.
func (p Parameter) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"Ref": p.name})
}

// ToDefinition returns the entry for the template's Parameters section.
func (p Parameter) ToDefinition() s3trigger.Parameter {
	return s3trigger.Parameter{
		Type:          p.Type,
		Description:   p.Description,
		Default:       p.Default,
		AllowedValues: p.AllowedValues,
		NoEcho:        p.NoEcho,
	}
}
