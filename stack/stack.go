package stack

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	s3trigger "github.com/lex00/wetwire-s3trigger-go"
	"github.com/lex00/wetwire-s3trigger-go/assets"
	"github.com/lex00/wetwire-s3trigger-go/internal/template"
	"github.com/lex00/wetwire-s3trigger-go/intrinsics"
)

// DefaultAssetBucket is the staging bucket name used when a stack does not
// configure one. Placeholders are resolved at publish time.
const DefaultAssetBucket = "wetwire-assets-${AWS::AccountId}-${AWS::Region}"

// ErrNoStack is returned when a scope is not inside any stack.
var ErrNoStack = errors.New("scope is not inside a stack")

// StackProps configures a stack.
type StackProps struct {
	// StackName defaults to the construct id.
	StackName   string
	Description string
	// Account and Region are literal values; when empty the template uses
	// the AWS::AccountId and AWS::Region pseudo parameters.
	Account string
	Region  string
	// AssetBucketName overrides DefaultAssetBucket.
	AssetBucketName string
}

// Stack is a unit of deployment that synthesizes to one template.
type Stack struct {
	node       *Node
	props      StackProps
	elements   []*CfnElement
	byID       map[string]*CfnElement
	parameters map[string]intrinsics.Parameter
	outputs    map[string]s3trigger.Output
	assets     map[string]fileAsset
	singletons map[string]any
}

type fileAsset struct {
	source string
	opts   assets.Options
}

// AssetLocation is where a file asset will live once published.
type AssetLocation struct {
	Hash       string
	BucketName any
	ObjectKey  string
}

// NewStack adds a stack to the app.
func NewStack(app *App, id string, props StackProps) (*Stack, error) {
	node, err := app.node.addChild(id)
	if err != nil {
		return nil, err
	}
	if props.StackName == "" {
		props.StackName = id
	}
	s := &Stack{
		node:       node,
		props:      props,
		byID:       make(map[string]*CfnElement),
		parameters: make(map[string]intrinsics.Parameter),
		outputs:    make(map[string]s3trigger.Output),
		assets:     make(map[string]fileAsset),
		singletons: make(map[string]any),
	}
	node.stack = s
	app.stacks = append(app.stacks, s)
	return s, nil
}

// Of returns the stack enclosing scope.
func Of(scope Scope) (*Stack, error) {
	if s := scope.Node().Stack(); s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoStack, scope.Node().Path())
}

// Node returns the stack's tree node.
func (s *Stack) Node() *Node { return s.node }

// StackName returns the deployed stack name.
func (s *Stack) StackName() string { return s.props.StackName }

// Description returns the template description.
func (s *Stack) Description() string { return s.props.Description }

// Account returns the literal account id or the AWS::AccountId pseudo parameter.
func (s *Stack) Account() any {
	if s.props.Account != "" {
		return s.props.Account
	}
	return intrinsics.AWS_ACCOUNT_ID
}

// Region returns the literal region or the AWS::Region pseudo parameter.
func (s *Stack) Region() any {
	if s.props.Region != "" {
		return s.props.Region
	}
	return intrinsics.AWS_REGION
}

// AddResource places res in the stack under a new child of scope.
func (s *Stack) AddResource(scope Scope, id string, res s3trigger.Resource) (*CfnElement, error) {
	if res == nil {
		return nil, fmt.Errorf("adding %q: resource is nil", id)
	}
	if scope.Node().Stack() != s {
		return nil, fmt.Errorf("adding %q: scope %q belongs to another stack", id, scope.Node().Path())
	}
	node, err := scope.Node().addChild(id)
	if err != nil {
		return nil, err
	}
	logicalID, err := UniqueID(node)
	if err != nil {
		return nil, err
	}
	if existing, ok := s.byID[logicalID]; ok {
		return nil, fmt.Errorf("%w: logical id %s of %q collides with %q",
			ErrDuplicateID, logicalID, node.Path(), existing.node.Path())
	}

	e := &CfnElement{node: node, logicalID: logicalID, resource: res}
	s.elements = append(s.elements, e)
	s.byID[logicalID] = e

	zap.S().Debugw("allocated logical id", "path", node.Path(), "logicalId", logicalID, "type", res.ResourceType())
	return e, nil
}

// Elements returns the stack's resources in creation order.
func (s *Stack) Elements() []*CfnElement { return s.elements }

// FindElement returns the element with the given logical id, or nil.
func (s *Stack) FindElement(logicalID string) *CfnElement { return s.byID[logicalID] }

// AddParameter declares a template parameter and returns it bound to id, so
// it can be used directly as a property value.
func (s *Stack) AddParameter(id string, p intrinsics.Parameter) (intrinsics.Parameter, error) {
	if _, ok := s.parameters[id]; ok {
		return intrinsics.Parameter{}, fmt.Errorf("%w: parameter %s", ErrDuplicateID, id)
	}
	p = p.Named(id)
	s.parameters[id] = p
	return p, nil
}

// AddOutput declares a template output.
func (s *Stack) AddOutput(id string, o s3trigger.Output) error {
	if _, ok := s.outputs[id]; ok {
		return fmt.Errorf("%w: output %s", ErrDuplicateID, id)
	}
	s.outputs[id] = o
	return nil
}

// AddFileAsset fingerprints source and returns the location its bundle will
// have in the staging bucket. Nothing is written until the app synthesizes.
func (s *Stack) AddFileAsset(source string, opts assets.Options) (AssetLocation, error) {
	hash, err := assets.Fingerprint(source, opts)
	if err != nil {
		return AssetLocation{}, fmt.Errorf("fingerprinting asset %s: %w", source, err)
	}
	s.assets[hash] = fileAsset{source: source, opts: opts}

	var bucket any = intrinsics.Sub{String: DefaultAssetBucket}
	if s.props.AssetBucketName != "" {
		bucket = s.props.AssetBucketName
	}
	return AssetLocation{Hash: hash, BucketName: bucket, ObjectKey: hash + ".zip"}, nil
}

// Singleton returns the value registered under key, calling create the first
// time the key is seen in this stack.
func (s *Stack) Singleton(key string, create func() (any, error)) (any, error) {
	if v, ok := s.singletons[key]; ok {
		return v, nil
	}
	v, err := create()
	if err != nil {
		return nil, err
	}
	s.singletons[key] = v
	return v, nil
}

// Template synthesizes the stack's CloudFormation template.
func (s *Stack) Template() (*s3trigger.Template, error) {
	builder := template.NewBuilder(s.props.Description)

	for _, id := range sortedKeys(s.parameters) {
		if err := builder.AddParameter(id, s.parameters[id].ToDefinition()); err != nil {
			return nil, err
		}
	}

	for _, e := range s.elements {
		entry := template.Entry{
			LogicalID:           e.logicalID,
			Path:                e.node.Path(),
			Value:               e.resource,
			DeletionPolicy:      e.DeletionPolicy,
			UpdateReplacePolicy: e.UpdateReplacePolicy,
			Overrides:           e.overrides,
		}
		for _, dep := range e.dependsOn {
			entry.DependsOn = append(entry.DependsOn, dep.logicalID)
		}
		if err := builder.AddResource(entry); err != nil {
			return nil, err
		}
	}

	for _, id := range sortedKeys(s.outputs) {
		if err := builder.AddOutput(id, s.outputs[id]); err != nil {
			return nil, err
		}
	}

	t, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("synthesizing stack %s: %w", s.StackName(), err)
	}
	return t, nil
}

// assetDestination returns where the stack's assets are published.
func (s *Stack) assetDestination(hash string) assets.Destination {
	bucket := DefaultAssetBucket
	if s.props.AssetBucketName != "" {
		bucket = s.props.AssetBucketName
	}
	region := "${AWS::Region}"
	if s.props.Region != "" {
		region = s.props.Region
	}
	return assets.Destination{BucketName: bucket, ObjectKey: hash + ".zip", Region: region}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
