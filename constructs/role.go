package constructs

import (
	"fmt"
	"regexp"

	"github.com/lex00/wetwire-s3trigger-go/intrinsics"
	"github.com/lex00/wetwire-s3trigger-go/resources/iam"
	"github.com/lex00/wetwire-s3trigger-go/stack"
)

// LambdaBasicExecutionPolicy is the managed policy attached to function roles
// created by NewFunction.
var LambdaBasicExecutionPolicy = intrinsics.Sub{
	String: "arn:${AWS::Partition}:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole",
}

var roleArnPattern = regexp.MustCompile(`^arn:[a-z-]+:iam::\d{12}:role/(?:[\w+=,.@-]+/)*([\w+=,.@-]+)$`)

// Grantable is an identity that can be given permissions.
type Grantable interface {
	// AddToPrincipalPolicy attaches statement to the identity's policy and
	// reports whether it was added. Identities with no known role report
	// false.
	AddToPrincipalPolicy(statement intrinsics.PolicyStatement) (bool, error)
}

// IRole is an IAM role, created in the stack or imported by ARN.
type IRole interface {
	Grantable
	stack.Scope
	RoleArn() any
	RoleName() any
	// AddDependent makes e depend on the role and its attached policy, so a
	// function is not created before its permissions exist.
	AddDependent(e *stack.CfnElement)
}

// RoleProps configures NewRole.
type RoleProps struct {
	// AssumedBy is the service principal allowed to assume the role.
	AssumedBy         string
	Description       string
	RoleName          string
	ManagedPolicyArns []any
	Path              string
}

// Role is an IAM role owned by the stack.
type Role struct {
	*stack.Construct
	element  *stack.CfnElement
	resource *iam.Role
	policy   *principalPolicy
}

// NewRole creates an IAM role.
func NewRole(scope stack.Scope, id string, props RoleProps) (*Role, error) {
	if props.AssumedBy == "" {
		return nil, fmt.Errorf("role %s: AssumedBy is required", id)
	}
	st, err := stack.Of(scope)
	if err != nil {
		return nil, err
	}
	c, err := stack.NewConstruct(scope, id)
	if err != nil {
		return nil, err
	}

	res := &iam.Role{
		Description: props.Description,
		AssumeRolePolicyDocument: intrinsics.NewPolicyDocument(intrinsics.PolicyStatement{
			Effect:    "Allow",
			Principal: intrinsics.ServicePrincipal{props.AssumedBy},
			Action:    "sts:AssumeRole",
		}),
		ManagedPolicyArns: props.ManagedPolicyArns,
		Path:              props.Path,
	}
	if props.RoleName != "" {
		res.RoleName = props.RoleName
	}

	element, err := st.AddResource(c, "Resource", res)
	if err != nil {
		return nil, err
	}

	r := &Role{Construct: c, element: element, resource: res}
	r.policy = &principalPolicy{scope: c, id: "DefaultPolicy", roles: []any{element.Ref()}}
	return r, nil
}

// RoleArn returns the role's ARN.
func (r *Role) RoleArn() any { return r.element.GetAtt("Arn") }

// RoleName returns the role's name.
func (r *Role) RoleName() any { return r.element.Ref() }

// Element returns the underlying AWS::IAM::Role.
func (r *Role) Element() *stack.CfnElement { return r.element }

// AddManagedPolicy attaches a managed policy ARN.
func (r *Role) AddManagedPolicy(arn any) {
	r.resource.ManagedPolicyArns = append(r.resource.ManagedPolicyArns, arn)
}

// AddToPrincipalPolicy appends statement to the role's default policy,
// creating the policy on first use.
func (r *Role) AddToPrincipalPolicy(statement intrinsics.PolicyStatement) (bool, error) {
	if err := r.policy.add(statement); err != nil {
		return false, err
	}
	return true, nil
}

// AddDependent makes e depend on the role and its default policy.
func (r *Role) AddDependent(e *stack.CfnElement) {
	e.AddDependsOn(r.element)
	r.policy.addDependent(e)
}

// importedRole is a role defined outside the stack.
type importedRole struct {
	*stack.Construct
	arn    string
	name   string
	policy *principalPolicy
}

// RoleFromArn references an existing role. Statements granted to it are
// attached through a separate AWS::IAM::Policy created in this stack.
func RoleFromArn(scope stack.Scope, id, arn string) (IRole, error) {
	m := roleArnPattern.FindStringSubmatch(arn)
	if m == nil {
		return nil, fmt.Errorf("role %s: %q is not an IAM role ARN", id, arn)
	}
	c, err := stack.NewConstruct(scope, id)
	if err != nil {
		return nil, err
	}
	return &importedRole{
		Construct: c,
		arn:       arn,
		name:      m[1],
		policy:    &principalPolicy{scope: c, id: "Policy", roles: []any{m[1]}},
	}, nil
}

func (r *importedRole) RoleArn() any  { return r.arn }
func (r *importedRole) RoleName() any { return r.name }

func (r *importedRole) AddToPrincipalPolicy(statement intrinsics.PolicyStatement) (bool, error) {
	if err := r.policy.add(statement); err != nil {
		return false, err
	}
	return true, nil
}

func (r *importedRole) AddDependent(e *stack.CfnElement) {
	r.policy.addDependent(e)
}

// principalPolicy is an AWS::IAM::Policy created lazily on the first
// statement and attached to roles.
type principalPolicy struct {
	scope      stack.Scope
	id         string
	roles      []any
	doc        *intrinsics.PolicyDocument
	element    *stack.CfnElement
	dependents []*stack.CfnElement
}

func (p *principalPolicy) add(statement intrinsics.PolicyStatement) error {
	if p.element == nil {
		st, err := stack.Of(p.scope)
		if err != nil {
			return err
		}
		c, err := stack.NewConstruct(p.scope, p.id)
		if err != nil {
			return err
		}
		doc := intrinsics.NewPolicyDocument()
		res := &iam.Policy{PolicyDocument: &doc, Roles: p.roles}
		element, err := st.AddResource(c, "Resource", res)
		if err != nil {
			return err
		}
		res.PolicyName = element.LogicalID()
		p.doc = &doc
		p.element = element
		for _, e := range p.dependents {
			e.AddDependsOn(element)
		}
	}
	p.doc.AddStatements(statement)
	return nil
}

func (p *principalPolicy) addDependent(e *stack.CfnElement) {
	p.dependents = append(p.dependents, e)
	if p.element != nil {
		e.AddDependsOn(p.element)
	}
}
