// Package template provides CloudFormation template building from synthesized
// resource entries.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	s3trigger "github.com/lex00/wetwire-s3trigger-go"
	"github.com/lex00/wetwire-s3trigger-go/intrinsics"
)

// PathMetadataKey is the resource metadata key holding the construct path.
const PathMetadataKey = "wetwire:path"

// Entry is one resource to place in the template.
type Entry struct {
	LogicalID           string
	Path                string
	Value               s3trigger.Resource
	DependsOn           []string
	DeletionPolicy      string
	UpdateReplacePolicy string
	// Overrides maps dotted property paths to raw values applied after
	// serialization. A nil value removes the property.
	Overrides map[string]any
}

// CycleError reports a dependency cycle between resources.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	if len(e.Cycle) == 0 {
		return "circular dependency detected"
	}
	return "circular dependency detected: " + strings.Join(e.Cycle, " → ")
}

// Builder constructs CloudFormation templates from resource entries.
type Builder struct {
	description string
	entries     map[string]Entry
	parameters  map[string]s3trigger.Parameter
	outputs     map[string]s3trigger.Output
	deps        map[string][]string
}

// NewBuilder creates an empty template builder.
func NewBuilder(description string) *Builder {
	return &Builder{
		description: description,
		entries:     make(map[string]Entry),
		parameters:  make(map[string]s3trigger.Parameter),
		outputs:     make(map[string]s3trigger.Output),
	}
}

// AddResource registers a resource entry.
func (b *Builder) AddResource(e Entry) error {
	if e.LogicalID == "" {
		return fmt.Errorf("resource at %q has no logical id", e.Path)
	}
	if e.Value == nil {
		return fmt.Errorf("resource %s has no value", e.LogicalID)
	}
	if existing, ok := b.entries[e.LogicalID]; ok {
		return fmt.Errorf("logical id %s is used by both %q and %q", e.LogicalID, existing.Path, e.Path)
	}
	b.entries[e.LogicalID] = e
	return nil
}

// AddParameter registers a template parameter.
func (b *Builder) AddParameter(name string, p s3trigger.Parameter) error {
	if _, ok := b.parameters[name]; ok {
		return fmt.Errorf("parameter %s is already defined", name)
	}
	if p.Type == "" {
		p.Type = "String"
	}
	b.parameters[name] = p
	return nil
}

// AddOutput registers a template output.
func (b *Builder) AddOutput(name string, o s3trigger.Output) error {
	if _, ok := b.outputs[name]; ok {
		return fmt.Errorf("output %s is already defined", name)
	}
	b.outputs[name] = o
	return nil
}

// Build constructs the CloudFormation template.
func (b *Builder) Build() (*s3trigger.Template, error) {
	props := make(map[string]map[string]any, len(b.entries))
	for name, e := range b.entries {
		p, err := serializeResource(e.Value)
		if err != nil {
			return nil, fmt.Errorf("serializing %s: %w", name, err)
		}
		for path, value := range e.Overrides {
			if err := applyOverride(p, path, value); err != nil {
				return nil, fmt.Errorf("overriding %s: %w", name, err)
			}
		}
		props[name] = p
	}

	b.deps = make(map[string][]string, len(b.entries))
	for name, e := range b.entries {
		seen := make(map[string]bool)
		for _, ref := range References(props[name]) {
			if err := b.checkRef(name, ref); err != nil {
				return nil, err
			}
			if _, ok := b.entries[ref]; ok && !seen[ref] {
				seen[ref] = true
				b.deps[name] = append(b.deps[name], ref)
			}
		}
		for _, dep := range e.DependsOn {
			if _, ok := b.entries[dep]; !ok {
				return nil, fmt.Errorf("%s depends on unknown resource %s", name, dep)
			}
			if !seen[dep] {
				seen[dep] = true
				b.deps[name] = append(b.deps[name], dep)
			}
		}
		sort.Strings(b.deps[name])
	}

	order, err := b.topologicalSort()
	if err != nil {
		return nil, err
	}

	template := &s3trigger.Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Description:              b.description,
		Resources:                make(map[string]s3trigger.ResourceDef, len(order)),
	}

	if len(b.parameters) > 0 {
		template.Parameters = make(map[string]s3trigger.Parameter, len(b.parameters))
		for name, p := range b.parameters {
			template.Parameters[name] = p
		}
	}

	for _, name := range order {
		e := b.entries[name]
		def := s3trigger.ResourceDef{
			Type:                e.Value.ResourceType(),
			Properties:          props[name],
			DeletionPolicy:      e.DeletionPolicy,
			UpdateReplacePolicy: e.UpdateReplacePolicy,
		}
		if len(e.DependsOn) > 0 {
			def.DependsOn = uniqueSorted(e.DependsOn)
		}
		if e.Path != "" {
			def.Metadata = map[string]any{PathMetadataKey: e.Path}
		}
		template.Resources[name] = def
	}

	if len(b.outputs) > 0 {
		template.Outputs = make(map[string]s3trigger.Output, len(b.outputs))
		for name, o := range b.outputs {
			value, err := normalize(o.Value)
			if err != nil {
				return nil, fmt.Errorf("serializing output %s: %w", name, err)
			}
			for _, ref := range References(value) {
				if err := b.checkRef("output "+name, ref); err != nil {
					return nil, err
				}
			}
			o.Value = value
			template.Outputs[name] = o
		}
	}

	return template, nil
}

// Order returns the logical ids in dependency order. Build must have run.
func (b *Builder) Order() ([]string, error) {
	if b.deps == nil {
		return nil, fmt.Errorf("template has not been built")
	}
	return b.topologicalSort()
}

func (b *Builder) checkRef(from, ref string) error {
	if intrinsics.IsPseudoParameter(ref) {
		return nil
	}
	if _, ok := b.parameters[ref]; ok {
		return nil
	}
	if _, ok := b.entries[ref]; ok {
		return nil
	}
	return fmt.Errorf("%s references unknown logical id %q", from, ref)
}

// serializeResource converts a resource struct to CloudFormation properties.
func serializeResource(value any) (map[string]any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	var props map[string]any
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, err
	}
	if props == nil {
		props = make(map[string]any)
	}
	return props, nil
}

func normalize(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func applyOverride(props map[string]any, path string, value any) error {
	parts := strings.Split(path, ".")
	cur := props
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part]
		if !ok || next == nil {
			m := make(map[string]any)
			cur[part] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("property %q is not an object", part)
		}
		cur = m
	}
	last := parts[len(parts)-1]
	if value == nil {
		delete(cur, last)
		return nil
	}
	normalized, err := normalize(value)
	if err != nil {
		return err
	}
	cur[last] = normalized
	return nil
}

var subVarPattern = regexp.MustCompile(`\$\{([^!}][^}]*)\}`)

// References returns the logical names referenced by Ref, Fn::GetAtt and
// Fn::Sub inside a serialized value, sorted and without duplicates.
func References(value any) []string {
	found := make(map[string]bool)
	collectRefs(value, found)
	out := make([]string, 0, len(found))
	for name := range found {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func collectRefs(value any, found map[string]bool) {
	switch v := value.(type) {
	case map[string]any:
		if len(v) == 1 {
			if ref, ok := v["Ref"].(string); ok {
				found[ref] = true
				return
			}
			if getAtt, ok := v["Fn::GetAtt"]; ok {
				switch g := getAtt.(type) {
				case []any:
					if len(g) > 0 {
						if name, ok := g[0].(string); ok {
							found[name] = true
						}
					}
				case string:
					found[strings.SplitN(g, ".", 2)[0]] = true
				}
				return
			}
			if sub, ok := v["Fn::Sub"]; ok {
				collectSub(sub, found)
				return
			}
		}
		for _, val := range v {
			collectRefs(val, found)
		}
	case []any:
		for _, elem := range v {
			collectRefs(elem, found)
		}
	}
}

func collectSub(sub any, found map[string]bool) {
	var (
		str  string
		vars map[string]any
	)
	switch s := sub.(type) {
	case string:
		str = s
	case []any:
		if len(s) > 0 {
			str, _ = s[0].(string)
		}
		if len(s) > 1 {
			vars, _ = s[1].(map[string]any)
			for _, val := range vars {
				collectRefs(val, found)
			}
		}
	}
	for _, m := range subVarPattern.FindAllStringSubmatch(str, -1) {
		name := m[1]
		if !strings.HasPrefix(name, "AWS::") {
			name = strings.SplitN(name, ".", 2)[0]
		}
		if _, local := vars[name]; local {
			continue
		}
		found[name] = true
	}
}

// Dependencies returns, for each resource in t, the other resources it
// depends on through references or DependsOn.
func Dependencies(t *s3trigger.Template) map[string][]string {
	deps := make(map[string][]string, len(t.Resources))
	for name, def := range t.Resources {
		seen := make(map[string]bool)
		var list []string
		add := func(dep string) {
			if _, ok := t.Resources[dep]; ok && dep != name && !seen[dep] {
				seen[dep] = true
				list = append(list, dep)
			}
		}
		for _, ref := range References(def.Properties) {
			add(ref)
		}
		for _, dep := range def.DependsOn {
			add(dep)
		}
		sort.Strings(list)
		deps[name] = list
	}
	return deps
}

// topologicalSort returns resources in dependency order.
func (b *Builder) topologicalSort() ([]string, error) {
	// Build adjacency list
	graph := make(map[string][]string)
	inDegree := make(map[string]int)

	for name := range b.entries {
		graph[name] = nil
		inDegree[name] = 0
	}

	for name := range b.entries {
		for _, dep := range b.deps[name] {
			graph[dep] = append(graph[dep], name)
			inDegree[name]++
		}
	}

	// Kahn's algorithm
	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue) // Deterministic order

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range graph[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
				sort.Strings(queue)
			}
		}
	}

	if len(result) != len(b.entries) {
		return nil, b.detectCycle()
	}

	return result, nil
}

// detectCycle finds and reports a cycle in the dependency graph.
func (b *Builder) detectCycle() error {
	visited := make(map[string]bool)
	onPath := make(map[string]bool)
	var stack []string
	var cycle []string

	var visit func(node string) bool
	visit = func(node string) bool {
		visited[node] = true
		onPath[node] = true
		stack = append(stack, node)

		for _, dep := range b.deps[node] {
			if !visited[dep] {
				if visit(dep) {
					return true
				}
			} else if onPath[dep] {
				for i, n := range stack {
					if n == dep {
						cycle = append(append([]string{}, stack[i:]...), dep)
						break
					}
				}
				return true
			}
		}

		stack = stack[:len(stack)-1]
		onPath[node] = false
		return false
	}

	names := make([]string, 0, len(b.entries))
	for name := range b.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !visited[name] && visit(name) {
			break
		}
	}

	return &CycleError{Cycle: cycle}
}

func uniqueSorted(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	sort.Strings(out)
	return out
}

// ToJSON serializes the template to JSON.
func ToJSON(t *s3trigger.Template) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ToYAML serializes the template to YAML.
func ToYAML(t *s3trigger.Template) ([]byte, error) {
	return yaml.Marshal(t)
}
