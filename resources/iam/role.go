// Package iam contains the AWS::IAM resource types used for grants.
package iam

// Role is AWS::IAM::Role.
type Role struct {
	RoleName                 any           `json:"RoleName,omitempty"`
	Description              string        `json:"Description,omitempty"`
	AssumeRolePolicyDocument any           `json:"AssumeRolePolicyDocument"`
	ManagedPolicyArns        []any         `json:"ManagedPolicyArns,omitempty"`
	PermissionsBoundary      any           `json:"PermissionsBoundary,omitempty"`
	Policies                 []Role_Policy `json:"Policies,omitempty"`
	Path                     string        `json:"Path,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (Role) ResourceType() string { return "AWS::IAM::Role" }

// Role_Policy is an inline role policy.
type Role_Policy struct {
	PolicyName     string `json:"PolicyName"`
	PolicyDocument any    `json:"PolicyDocument"`
}

// Policy is AWS::IAM::Policy, attached to one or more roles.
type Policy struct {
	PolicyName     any   `json:"PolicyName"`
	PolicyDocument any   `json:"PolicyDocument"`
	Roles          []any `json:"Roles,omitempty"`
}

// ResourceType returns the CloudFormation type.
func (Policy) ResourceType() string { return "AWS::IAM::Policy" }
