package stack

import (
	s3trigger "github.com/lex00/wetwire-s3trigger-go"
	"github.com/lex00/wetwire-s3trigger-go/intrinsics"
)

// RemovalPolicy controls what happens to a resource when it leaves the stack.
type RemovalPolicy string

const (
	// RemovalPolicyRetain keeps the physical resource.
	RemovalPolicyRetain RemovalPolicy = "retain"
	// RemovalPolicyDestroy deletes the physical resource.
	RemovalPolicyDestroy RemovalPolicy = "destroy"
)

// CfnElement is a resource placed in a stack under a logical id.
//
// The resource value is kept by pointer and serialized only when the stack
// is synthesized, so constructs may keep mutating it (appending policy
// statements, notification targets) after it has been added.
type CfnElement struct {
	node      *Node
	logicalID string
	resource  s3trigger.Resource
	dependsOn []*CfnElement
	overrides map[string]any

	// DeletionPolicy is emitted verbatim ("Retain", "Delete", ...).
	DeletionPolicy string
	// UpdateReplacePolicy is emitted verbatim.
	UpdateReplacePolicy string
}

// Node returns the element's tree node.
func (e *CfnElement) Node() *Node { return e.node }

// LogicalID returns the id the resource has in the template.
func (e *CfnElement) LogicalID() string { return e.logicalID }

// Resource returns the resource value.
func (e *CfnElement) Resource() s3trigger.Resource { return e.resource }

// Ref returns a Ref to the resource.
func (e *CfnElement) Ref() intrinsics.Ref {
	return intrinsics.Ref{LogicalName: e.logicalID}
}

// GetAtt returns an Fn::GetAtt for the given attribute.
func (e *CfnElement) GetAtt(attr string) intrinsics.GetAtt {
	return intrinsics.GetAtt{LogicalName: e.logicalID, Attribute: attr}
}

// AddDependsOn records an explicit dependency on other.
func (e *CfnElement) AddDependsOn(other *CfnElement) {
	if other == nil || other == e {
		return
	}
	for _, d := range e.dependsOn {
		if d == other {
			return
		}
	}
	e.dependsOn = append(e.dependsOn, other)
}

// DependsOn returns the explicit dependencies.
func (e *CfnElement) DependsOn() []*CfnElement { return e.dependsOn }

// AddPropertyOverride sets a dotted property path on the serialized
// resource. A nil value removes the property.
func (e *CfnElement) AddPropertyOverride(path string, value any) {
	if e.overrides == nil {
		e.overrides = make(map[string]any)
	}
	e.overrides[path] = value
}

// ApplyRemovalPolicy sets DeletionPolicy and UpdateReplacePolicy.
func (e *CfnElement) ApplyRemovalPolicy(p RemovalPolicy) {
	switch p {
	case RemovalPolicyDestroy:
		e.DeletionPolicy = "Delete"
		e.UpdateReplacePolicy = "Delete"
	default:
		e.DeletionPolicy = "Retain"
		e.UpdateReplacePolicy = "Retain"
	}
}
