// Package validation checks synthesized templates.
//
// Two passes run over each template:
//   - structure: references, DependsOn targets and trigger wiring resolve
//     within the template
//   - cfn-lint-go: CloudFormation schema and best-practice rules (library
//     dependency)
package validation

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/lex00/cfn-lint-go/pkg/lint"

	s3trigger "github.com/lex00/wetwire-s3trigger-go"
	"github.com/lex00/wetwire-s3trigger-go/internal/template"
)

// StructureResult contains the result of the structural checks.
type StructureResult struct {
	Passed   bool     `json:"passed"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// CfnLintResult contains the result of running cfn-lint.
type CfnLintResult struct {
	Passed        bool     `json:"passed"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	Informational []string `json:"informational"`
}

// TotalIssues returns the total number of issues found.
func (r CfnLintResult) TotalIssues() int {
	return len(r.Errors) + len(r.Warnings) + len(r.Informational)
}

// ValidationResult contains all validation results for one template.
type ValidationResult struct {
	Template      string           `json:"template"`
	Resources     int              `json:"resources"`
	Structure     *StructureResult `json:"structure"`
	CfnLintResult *CfnLintResult   `json:"cfn_lint_result,omitempty"`
}

// Passed reports whether every pass that ran found no errors.
func (r *ValidationResult) Passed() bool {
	if r.Structure != nil && !r.Structure.Passed {
		return false
	}
	return r.CfnLintResult == nil || r.CfnLintResult.Passed
}

// CheckStructure verifies that every reference in t resolves.
func CheckStructure(t *s3trigger.Template) *StructureResult {
	result := &StructureResult{Errors: []string{}, Warnings: []string{}}
	known := func(name string) bool {
		if strings.HasPrefix(name, "AWS::") {
			return true
		}
		if _, ok := t.Resources[name]; ok {
			return true
		}
		_, ok := t.Parameters[name]
		return ok
	}
	usedParams := make(map[string]bool)

	for _, name := range sortedKeys(t.Resources) {
		def := t.Resources[name]
		if def.Type == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: missing Type", name))
		}
		for _, ref := range template.References(def.Properties) {
			if !known(ref) {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: reference to undefined %s", name, ref))
			}
			usedParams[ref] = true
		}
		for _, dep := range def.DependsOn {
			if _, ok := t.Resources[dep]; !ok {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: DependsOn undefined resource %s", name, dep))
			}
		}
		result.Errors = append(result.Errors, checkTriggerWiring(name, def)...)
		result.Warnings = append(result.Warnings, checkTriggerWarnings(name, def)...)
	}

	for _, name := range sortedKeys(t.Outputs) {
		for _, ref := range template.References(t.Outputs[name].Value) {
			if !known(ref) {
				result.Errors = append(result.Errors, fmt.Sprintf("output %s: reference to undefined %s", name, ref))
			}
			usedParams[ref] = true
		}
	}

	for _, name := range sortedKeys(t.Parameters) {
		if !usedParams[name] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("parameter %s is never referenced", name))
		}
	}

	result.Passed = len(result.Errors) == 0
	return result
}

func checkTriggerWiring(name string, def s3trigger.ResourceDef) []string {
	var errs []string
	switch def.Type {
	case "Custom::S3BucketNotifications":
		if def.Properties["ServiceToken"] == nil {
			errs = append(errs, fmt.Sprintf("%s: notifications resource has no ServiceToken", name))
		}
		if def.Properties["BucketName"] == nil {
			errs = append(errs, fmt.Sprintf("%s: notifications resource has no BucketName", name))
		}
	case "AWS::Lambda::Permission":
		if def.Properties["FunctionName"] == nil || def.Properties["Principal"] == nil {
			errs = append(errs, fmt.Sprintf("%s: permission needs FunctionName and Principal", name))
		}
	}
	return errs
}

func checkTriggerWarnings(name string, def s3trigger.ResourceDef) []string {
	if def.Type != "AWS::Lambda::Permission" || def.Properties["Principal"] != "s3.amazonaws.com" {
		return nil
	}
	if def.Properties["SourceAccount"] == nil {
		return []string{fmt.Sprintf("%s: S3 permission without SourceAccount lets any account's bucket invoke the function", name)}
	}
	return nil
}

// RunCfnLint runs cfn-lint-go on the given template file.
func RunCfnLint(templatePath string) (*CfnLintResult, error) {
	if _, err := os.Stat(templatePath); err != nil {
		return &CfnLintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Template file not found: %s", templatePath)},
		}, nil
	}

	linter := lint.New(lint.Options{})
	matches, err := linter.LintFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("linting %s: %w", templatePath, err)
	}

	result := &CfnLintResult{
		Errors:        []string{},
		Warnings:      []string{},
		Informational: []string{},
	}
	for _, match := range matches {
		formatted := formatMatch(match)
		switch match.Level {
		case "Error":
			result.Errors = append(result.Errors, formatted)
		case "Warning":
			result.Warnings = append(result.Warnings, formatted)
		default:
			result.Informational = append(result.Informational, formatted)
		}
	}

	// Warnings are acceptable.
	result.Passed = len(result.Errors) == 0
	return result, nil
}

func formatMatch(match lint.Match) string {
	if len(match.Location.Path) > 0 {
		parts := make([]string, len(match.Location.Path))
		for i, p := range match.Location.Path {
			parts[i] = fmt.Sprintf("%v", p)
		}
		return fmt.Sprintf("%s: %s (at %s)", match.Rule.ID, match.Message, strings.Join(parts, "/"))
	}
	return fmt.Sprintf("%s: %s", match.Rule.ID, match.Message)
}

// ValidateTemplate runs the structural checks on t and, when templatePath
// is not empty, cfn-lint on the file it was written to.
func ValidateTemplate(t *s3trigger.Template, templatePath string) (*ValidationResult, error) {
	result := &ValidationResult{
		Template:  templatePath,
		Resources: len(t.Resources),
		Structure: CheckStructure(t),
	}
	if templatePath == "" {
		return result, nil
	}
	cfn, err := RunCfnLint(templatePath)
	if err != nil {
		return nil, err
	}
	result.CfnLintResult = cfn
	return result, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
