// Package intrinsics provides CloudFormation intrinsic functions.
// This file contains IAM policy document types and helpers.
package intrinsics

import (
	"encoding/json"
)

// Json is a shorthand for map[string]any.
// Used for inline JSON objects like Condition blocks.
//
//	Condition: Json{
//	    Bool: Json{"aws:SecureTransport": "false"},
//	}
type Json = map[string]any

// List creates a typed slice from the given items.
func List[T any](items ...T) []T {
	return items
}

// Any creates a []any slice from the given items.
// Use for fields typed as []any that accept mixed types or intrinsics.
func Any(items ...any) []any {
	return items
}

// PolicyVersion is the IAM policy language version used by every document.
const PolicyVersion = "2012-10-17"

// PolicyDocument represents an IAM policy document.
type PolicyDocument struct {
	Version   string            `json:"Version,omitempty"`
	Statement []PolicyStatement `json:"Statement"`
}

// NewPolicyDocument creates a PolicyDocument with the default version.
func NewPolicyDocument(statements ...PolicyStatement) PolicyDocument {
	return PolicyDocument{Version: PolicyVersion, Statement: statements}
}

// AddStatements appends statements to the document.
func (d *PolicyDocument) AddStatements(statements ...PolicyStatement) {
	if d.Version == "" {
		d.Version = PolicyVersion
	}
	d.Statement = append(d.Statement, statements...)
}

// IsEmpty reports whether the document has no statements.
func (d PolicyDocument) IsEmpty() bool {
	return len(d.Statement) == 0
}

// PolicyStatement represents an IAM policy statement.
//
//	var AssumeRole = PolicyStatement{
//	    Effect:    "Allow",
//	    Principal: ServicePrincipal{"lambda.amazonaws.com"},
//	    Action:    "sts:AssumeRole",
//	}
type PolicyStatement struct {
	Sid       string `json:"Sid,omitempty"`
	Effect    string `json:"Effect"`
	Principal any    `json:"Principal,omitempty"`
	Action    any    `json:"Action,omitempty"`
	Resource  any    `json:"Resource,omitempty"`
	Condition Json   `json:"Condition,omitempty"`
}

// Allow builds an Allow statement for the given actions and resources.
// A single action or resource is emitted as a scalar, matching the way
// hand-written policies look.
func Allow(actions []string, resources ...any) PolicyStatement {
	return PolicyStatement{
		Effect:   "Allow",
		Action:   scalarOrList(actions),
		Resource: scalarOrAnyList(resources),
	}
}

// WithPrincipal returns a copy of the statement with the given principal.
func (s PolicyStatement) WithPrincipal(p any) PolicyStatement {
	s.Principal = p
	return s
}

func scalarOrList(items []string) any {
	if len(items) == 1 {
		return items[0]
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

func scalarOrAnyList(items []any) any {
	switch len(items) {
	case 0:
		return nil
	case 1:
		return items[0]
	}
	return items
}

// --- Principal Helpers ---

// ServicePrincipal represents a service principal (e.g., lambda.amazonaws.com).
// Serializes to {"Service": ...} format.
type ServicePrincipal []any

// MarshalJSON serializes to {"Service": ...} format.
func (p ServicePrincipal) MarshalJSON() ([]byte, error) {
	if len(p) == 1 {
		return json.Marshal(map[string]any{"Service": p[0]})
	}
	return json.Marshal(map[string]any{"Service": []any(p)})
}

// AWSPrincipal represents an AWS account/role/user principal.
// Serializes to {"AWS": ...} format.
//
//	AWSPrincipal{"arn:aws:iam::123456789012:role/reader"}
type AWSPrincipal []any

// MarshalJSON serializes to {"AWS": ...} format.
func (p AWSPrincipal) MarshalJSON() ([]byte, error) {
	if len(p) == 1 {
		return json.Marshal(map[string]any{"AWS": p[0]})
	}
	return json.Marshal(map[string]any{"AWS": []any(p)})
}

// AllPrincipal represents the wildcard principal "*".
const AllPrincipal = "*"

// IAM condition operators used by the constructs.
const (
	StringEquals = "StringEquals"
	ArnLike      = "ArnLike"
	Bool         = "Bool"
)
