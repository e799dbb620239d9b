package main

import (
	"bytes"
	"strings"
	"testing"

	s3trigger "github.com/lex00/wetwire-s3trigger-go"
	"github.com/lex00/wetwire-s3trigger-go/internal/differ"
)

func TestNewDiffCmd(t *testing.T) {
	cmd := newDiffCmd(&rootOptions{})

	if cmd.Use != "diff <template1> [template2]" {
		t.Errorf("Use = %q, want 'diff <template1> [template2]'", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("Short description should not be empty")
	}

	for _, name := range []string{"format", "ignore-order", "exit-code"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing --%s flag", name)
		}
	}

	if err := cmd.Args(cmd, nil); err == nil {
		t.Error("expected an error without arguments")
	}
	if err := cmd.Args(cmd, []string{"a", "b", "c"}); err == nil {
		t.Error("expected an error with three arguments")
	}
}

func TestOutputDiff_Text(t *testing.T) {
	result := &differ.Result{
		Diff: s3trigger.TemplateDiff{
			Added:   []s3trigger.DiffEntry{{Resource: "Queue", Type: "AWS::SQS::Queue"}},
			Removed: []s3trigger.DiffEntry{{Resource: "OldRole", Type: "AWS::IAM::Role"}},
			Modified: []s3trigger.DiffEntry{{
				Resource: "Bucket",
				Type:     "AWS::S3::Bucket",
				Changes:  []string{"BucketName: a → b"},
			}},
		},
		Summary: s3trigger.DiffSummary{Added: 1, Removed: 1, Modified: 1, Total: 3},
	}

	var buf bytes.Buffer
	if err := outputDiff(&buf, result, "text"); err != nil {
		t.Fatalf("outputDiff() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"+ Queue (AWS::SQS::Queue)",
		"- OldRole (AWS::IAM::Role)",
		"~ Bucket (AWS::S3::Bucket)",
		"    BucketName: a → b",
		"1 added, 1 removed, 1 modified",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestOutputDiff_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := outputDiff(&buf, &differ.Result{}, "text"); err != nil {
		t.Fatalf("outputDiff() error = %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "No differences." {
		t.Errorf("output = %q, want 'No differences.'", got)
	}
}

func TestOutputDiff_UnknownFormat(t *testing.T) {
	if err := outputDiff(&bytes.Buffer{}, &differ.Result{}, "xml"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}
