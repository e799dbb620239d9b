// Package differ provides semantic comparison of CloudFormation templates.
package differ

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gopkg.in/yaml.v3"

	s3trigger "github.com/lex00/wetwire-s3trigger-go"
)

// Options configures the differ.
type Options struct {
	// IgnoreOrder ignores array element order in comparisons
	IgnoreOrder bool
}

// Result contains the difference between two templates.
type Result struct {
	Diff    s3trigger.TemplateDiff
	Summary s3trigger.DiffSummary
}

// Empty reports whether the templates had no resource differences.
func (r *Result) Empty() bool { return r.Summary.Total == 0 }

// Compare compares two CloudFormation templates and returns differences.
func Compare(template1, template2 *s3trigger.Template, opts Options) (*Result, error) {
	if template1 == nil || template2 == nil {
		return nil, fmt.Errorf("compare: nil template")
	}
	result := &Result{}
	res1 := template1.Resources
	res2 := template2.Resources

	for name, def := range res2 {
		if _, exists := res1[name]; !exists {
			result.Diff.Added = append(result.Diff.Added, s3trigger.DiffEntry{Resource: name, Type: def.Type})
		}
	}
	for name, def := range res1 {
		if _, exists := res2[name]; !exists {
			result.Diff.Removed = append(result.Diff.Removed, s3trigger.DiffEntry{Resource: name, Type: def.Type})
		}
	}
	for name, def1 := range res1 {
		if def2, exists := res2[name]; exists {
			if changes := compareResources(def1, def2, opts); len(changes) > 0 {
				result.Diff.Modified = append(result.Diff.Modified, s3trigger.DiffEntry{
					Resource: name,
					Type:     def1.Type,
					Changes:  changes,
				})
			}
		}
	}

	sortEntries(result.Diff.Added)
	sortEntries(result.Diff.Removed)
	sortEntries(result.Diff.Modified)

	result.Summary = s3trigger.DiffSummary{
		Added:    len(result.Diff.Added),
		Removed:  len(result.Diff.Removed),
		Modified: len(result.Diff.Modified),
	}
	result.Summary.Total = result.Summary.Added + result.Summary.Removed + result.Summary.Modified
	return result, nil
}

// CompareFiles compares two template files.
func CompareFiles(file1, file2 string, opts Options) (*Result, error) {
	t1, err := LoadTemplate(file1)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file1, err)
	}
	t2, err := LoadTemplate(file2)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file2, err)
	}
	return Compare(t1, t2, opts)
}

// LoadTemplate loads a CloudFormation template from a JSON or YAML file.
func LoadTemplate(path string) (*s3trigger.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var t s3trigger.Template
	if err := json.Unmarshal(data, &t); err != nil {
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("failed to parse as JSON or YAML: %w", err)
		}
	}
	return &t, nil
}

func compareResources(def1, def2 s3trigger.ResourceDef, opts Options) []string {
	var changes []string

	if def1.Type != def2.Type {
		changes = append(changes, fmt.Sprintf("Type changed: %s → %s", def1.Type, def2.Type))
	}
	changes = append(changes, compareProperties("", def1.Properties, def2.Properties, opts)...)

	// DependsOn is a set.
	if !cmp.Equal(def1.DependsOn, def2.DependsOn, cmpopts.SortSlices(lessString), cmpopts.EquateEmpty()) {
		changes = append(changes, "DependsOn changed")
	}
	if def1.DeletionPolicy != def2.DeletionPolicy {
		changes = append(changes, fmt.Sprintf("DeletionPolicy changed: %q → %q", def1.DeletionPolicy, def2.DeletionPolicy))
	}
	return changes
}

// compareProperties reports changed keys, descending into nested maps so
// that paths name the innermost change.
func compareProperties(prefix string, props1, props2 map[string]any, opts Options) []string {
	var changes []string
	path := func(key string) string {
		if prefix == "" {
			return key
		}
		return prefix + "." + key
	}

	for key, val2 := range props2 {
		val1, exists := props1[key]
		if !exists {
			changes = append(changes, path(key)+" added")
			continue
		}
		m1, ok1 := val1.(map[string]any)
		m2, ok2 := val2.(map[string]any)
		if ok1 && ok2 {
			changes = append(changes, compareProperties(path(key), m1, m2, opts)...)
			continue
		}
		if !equal(val1, val2, opts) {
			changes = append(changes, path(key)+" modified")
		}
	}
	for key := range props1 {
		if _, exists := props2[key]; !exists {
			changes = append(changes, path(key)+" removed")
		}
	}

	sort.Strings(changes)
	return changes
}

func equal(a, b any, opts Options) bool {
	cmpOpts := []cmp.Option{cmpopts.EquateEmpty()}
	if opts.IgnoreOrder {
		cmpOpts = append(cmpOpts, cmpopts.SortSlices(lessAny))
	}
	return cmp.Equal(a, b, cmpOpts...)
}

func lessString(a, b string) bool { return a < b }

// lessAny orders arbitrary JSON values by their encoding.
func lessAny(a, b any) bool {
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	return string(ja) < string(jb)
}

func sortEntries(entries []s3trigger.DiffEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Resource < entries[j].Resource
	})
}
