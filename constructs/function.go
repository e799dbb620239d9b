package constructs

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/lex00/wetwire-s3trigger-go/intrinsics"
	"github.com/lex00/wetwire-s3trigger-go/resources/lambda"
	"github.com/lex00/wetwire-s3trigger-go/stack"
)

// Runtime is a Lambda runtime identifier.
type Runtime string

const (
	RuntimeProvidedAL2023 Runtime = "provided.al2023"
	RuntimeProvidedAL2    Runtime = "provided.al2"
	RuntimePython312      Runtime = "python3.12"
	RuntimePython313      Runtime = "python3.13"
	RuntimeNodejs20       Runtime = "nodejs20.x"
	RuntimeNodejs22       Runtime = "nodejs22.x"
	RuntimeJava21         Runtime = "java21"
)

// SupportsInlineCode reports whether the runtime accepts Code.ZipFile.
func (r Runtime) SupportsInlineCode() bool {
	return strings.HasPrefix(string(r), "python") || strings.HasPrefix(string(r), "nodejs")
}

// Architecture is the instruction set a function runs on.
type Architecture string

const (
	ArchitectureX86_64 Architecture = "x86_64"
	ArchitectureARM64  Architecture = "arm64"
)

// Tracing is the X-Ray tracing mode.
type Tracing string

const (
	TracingActive      Tracing = "Active"
	TracingPassThrough Tracing = "PassThrough"
)

// Function limits and defaults.
const (
	DefaultMemorySize = 128
	MinMemorySize     = 128
	MaxMemorySize     = 10240
	DefaultTimeout    = 3 * time.Second
	MaxTimeout        = 15 * time.Minute
)

var (
	envKeyPattern      = regexp.MustCompile(`^[a-zA-Z]\w+$`)
	functionArnPattern = regexp.MustCompile(`^arn:[a-z-]+:lambda:[a-z0-9-]+:\d{12}:function:([a-zA-Z0-9_-]+)(?::[a-zA-Z0-9$_-]+)?$`)
)

// FunctionProps configures NewFunction.
type FunctionProps struct {
	FunctionName string
	Description  string
	Runtime      Runtime
	Handler      string
	Code         Code
	// MemorySize in MB, DefaultMemorySize when zero.
	MemorySize int
	// Timeout is rounded to whole seconds, DefaultTimeout when zero.
	Timeout      time.Duration
	Architecture Architecture
	Environment  map[string]string
	// Layers holds layer version ARNs.
	Layers []string
	// Role is used as the execution role. A role with
	// LambdaBasicExecutionPolicy is created when nil.
	Role                IRole
	Tracing             Tracing
	ReservedConcurrency *int
	Tags                map[string]string
}

// Permission allows a principal to invoke a function.
type Permission struct {
	Principal     string
	Action        string
	SourceAccount any
	SourceArn     any
	// Scope is where the AWS::Lambda::Permission is created; the function
	// when nil.
	Scope stack.Scope
}

// IFunction is a Lambda function, created in the stack or imported by ARN.
type IFunction interface {
	Grantable
	stack.Scope
	FunctionArn() any
	FunctionName() any
	// Role returns the execution role, or nil when it is unknown.
	Role() IRole
	AddPermission(id string, p Permission) (*stack.CfnElement, error)
	IsOwned() bool
}

// Function is a Lambda function owned by the stack.
type Function struct {
	*stack.Construct
	element  *stack.CfnElement
	resource *lambda.Function
	role     IRole
}

// NewFunction creates a Lambda function and, unless props.Role is set, its
// execution role.
func NewFunction(scope stack.Scope, id string, props FunctionProps) (*Function, error) {
	if err := props.validate(); err != nil {
		return nil, fmt.Errorf("function %s: %w", id, err)
	}
	st, err := stack.Of(scope)
	if err != nil {
		return nil, err
	}
	c, err := stack.NewConstruct(scope, id)
	if err != nil {
		return nil, err
	}

	role := props.Role
	if role == nil {
		role, err = NewRole(c, "ServiceRole", RoleProps{
			AssumedBy:         "lambda.amazonaws.com",
			ManagedPolicyArns: []any{LambdaBasicExecutionPolicy},
		})
		if err != nil {
			return nil, err
		}
	}

	code, err := props.Code.bind(c)
	if err != nil {
		return nil, fmt.Errorf("function %s: %w", id, err)
	}

	res := &lambda.Function{
		Description:   props.Description,
		Runtime:       string(props.Runtime),
		Handler:       props.Handler,
		Code:          code,
		Role:          role.RoleArn(),
		MemorySize:    props.MemorySize,
		Timeout:       int(props.Timeout / time.Second),
		Architectures: []string{string(props.Architecture)},
	}
	if res.MemorySize == 0 {
		res.MemorySize = DefaultMemorySize
	}
	if props.Timeout == 0 {
		res.Timeout = int(DefaultTimeout / time.Second)
	}
	if props.Architecture == "" {
		res.Architectures = []string{string(ArchitectureX86_64)}
	}
	if props.FunctionName != "" {
		res.FunctionName = props.FunctionName
	}
	for _, layer := range props.Layers {
		res.Layers = append(res.Layers, layer)
	}
	if props.Tracing != "" {
		res.TracingConfig = &lambda.Function_TracingConfig{Mode: string(props.Tracing)}
	}
	res.ReservedConcurrentExecutions = props.ReservedConcurrency
	for _, k := range sortedKeys(props.Tags) {
		res.Tags = append(res.Tags, lambda.Tag{Key: k, Value: props.Tags[k]})
	}

	element, err := st.AddResource(c, "Resource", res)
	if err != nil {
		return nil, err
	}
	role.AddDependent(element)

	f := &Function{Construct: c, element: element, resource: res, role: role}
	for k, v := range props.Environment {
		if err := f.AddEnvironment(k, v); err != nil {
			return nil, fmt.Errorf("function %s: %w", id, err)
		}
	}
	return f, nil
}

func (p FunctionProps) validate() error {
	if p.Runtime == "" {
		return fmt.Errorf("runtime is required")
	}
	if p.Handler == "" {
		return fmt.Errorf("handler is required")
	}
	if p.Code == nil {
		return fmt.Errorf("code is required")
	}
	if _, inline := p.Code.(inlineCode); inline && !p.Runtime.SupportsInlineCode() {
		return fmt.Errorf("runtime %s does not support inline code", p.Runtime)
	}
	if p.MemorySize != 0 && (p.MemorySize < MinMemorySize || p.MemorySize > MaxMemorySize) {
		return fmt.Errorf("memory size %d MB is outside %d-%d", p.MemorySize, MinMemorySize, MaxMemorySize)
	}
	if p.Timeout < 0 || p.Timeout > MaxTimeout {
		return fmt.Errorf("timeout %s exceeds %s", p.Timeout, MaxTimeout)
	}
	if p.Timeout != 0 && p.Timeout%time.Second != 0 {
		return fmt.Errorf("timeout %s is not a whole number of seconds", p.Timeout)
	}
	switch p.Architecture {
	case "", ArchitectureX86_64, ArchitectureARM64:
	default:
		return fmt.Errorf("unknown architecture %q", p.Architecture)
	}
	switch p.Tracing {
	case "", TracingActive, TracingPassThrough:
	default:
		return fmt.Errorf("unknown tracing mode %q", p.Tracing)
	}
	return nil
}

// FunctionArn returns the function's ARN.
func (f *Function) FunctionArn() any { return f.element.GetAtt("Arn") }

// FunctionName returns the function's name.
func (f *Function) FunctionName() any { return f.element.Ref() }

// Role returns the execution role.
func (f *Function) Role() IRole { return f.role }

// Element returns the underlying AWS::Lambda::Function.
func (f *Function) Element() *stack.CfnElement { return f.element }

// IsOwned reports true: the function is defined in this stack.
func (f *Function) IsOwned() bool { return true }

// AddToPrincipalPolicy grants statement to the execution role.
func (f *Function) AddToPrincipalPolicy(statement intrinsics.PolicyStatement) (bool, error) {
	return f.role.AddToPrincipalPolicy(statement)
}

// AddEnvironment sets an environment variable. Values may be intrinsics.
func (f *Function) AddEnvironment(key string, value any) error {
	if !envKeyPattern.MatchString(key) {
		return fmt.Errorf("invalid environment variable name %q", key)
	}
	if f.resource.Environment == nil {
		f.resource.Environment = &lambda.Function_Environment{Variables: make(map[string]any)}
	}
	f.resource.Environment.Variables[key] = value
	return nil
}

// AddPermission creates an AWS::Lambda::Permission for the function.
func (f *Function) AddPermission(id string, p Permission) (*stack.CfnElement, error) {
	return addPermission(f, f.FunctionArn(), id, p)
}

func addPermission(f IFunction, functionName any, id string, p Permission) (*stack.CfnElement, error) {
	if p.Principal == "" {
		return nil, fmt.Errorf("permission %s: principal is required", id)
	}
	scope := p.Scope
	if scope == nil {
		scope = f
	}
	st, err := stack.Of(scope)
	if err != nil {
		return nil, err
	}
	action := p.Action
	if action == "" {
		action = "lambda:InvokeFunction"
	}
	return st.AddResource(scope, id, &lambda.Permission{
		Action:        action,
		FunctionName:  functionName,
		Principal:     p.Principal,
		SourceAccount: p.SourceAccount,
		SourceArn:     p.SourceArn,
	})
}

// importedFunction is a function defined outside the stack.
type importedFunction struct {
	*stack.Construct
	arn  string
	name string
	role IRole
}

// FunctionFromArn references an existing function. roleArn, when set, is its
// execution role and receives grants; otherwise grants are skipped.
func FunctionFromArn(scope stack.Scope, id, arn, roleArn string) (IFunction, error) {
	m := functionArnPattern.FindStringSubmatch(arn)
	if m == nil {
		return nil, fmt.Errorf("function %s: %q is not a Lambda function ARN", id, arn)
	}
	c, err := stack.NewConstruct(scope, id)
	if err != nil {
		return nil, err
	}
	f := &importedFunction{Construct: c, arn: arn, name: m[1]}
	if roleArn != "" {
		if f.role, err = RoleFromArn(c, "Role", roleArn); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (f *importedFunction) FunctionArn() any  { return f.arn }
func (f *importedFunction) FunctionName() any { return f.name }
func (f *importedFunction) Role() IRole       { return f.role }
func (f *importedFunction) IsOwned() bool     { return false }

func (f *importedFunction) AddToPrincipalPolicy(statement intrinsics.PolicyStatement) (bool, error) {
	if f.role == nil {
		return false, nil
	}
	return f.role.AddToPrincipalPolicy(statement)
}

func (f *importedFunction) AddPermission(id string, p Permission) (*stack.CfnElement, error) {
	return addPermission(f, f.arn, id, p)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
