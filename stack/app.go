// Package stack provides the construct tree, logical id allocation and
// synthesis of stacks into CloudFormation templates and asset manifests.
//
//	app := stack.NewApp(stack.AppProps{Outdir: "wetwire.out"})
//	st, err := stack.NewStack(app, "integration-stack", stack.StackProps{})
//	...
//	assembly, err := app.Synth()
package stack

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	s3trigger "github.com/lex00/wetwire-s3trigger-go"
	"github.com/lex00/wetwire-s3trigger-go/assets"
	"github.com/lex00/wetwire-s3trigger-go/internal/template"
)

// DefaultOutdir is where App.Synth writes when AppProps.Outdir is empty.
const DefaultOutdir = "wetwire.out"

// AppProps configures an app.
type AppProps struct {
	Outdir string
}

// App is the root of the construct tree.
type App struct {
	node   *Node
	outdir string
	stacks []*Stack
}

// NewApp creates an empty app.
func NewApp(props AppProps) *App {
	if props.Outdir == "" {
		props.Outdir = DefaultOutdir
	}
	a := &App{outdir: props.Outdir}
	a.node = newRoot(a)
	return a
}

// Node returns the root node.
func (a *App) Node() *Node { return a.node }

// Outdir returns the synthesis output directory.
func (a *App) Outdir() string { return a.outdir }

// Stacks returns the app's stacks in creation order.
func (a *App) Stacks() []*Stack { return a.stacks }

// CloudAssembly describes the files written by App.Synth.
type CloudAssembly struct {
	Directory string
	Stacks    []StackArtifact
}

// StackArtifact describes one synthesized stack.
type StackArtifact struct {
	StackName    string
	TemplateFile string
	AssetsFile   string
	Template     *s3trigger.Template
	Assets       []assets.FileAsset
}

// Synth writes every stack's template, asset manifest and staged assets into
// the output directory.
func (a *App) Synth() (*CloudAssembly, error) {
	if err := os.MkdirAll(a.outdir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	assembly := &CloudAssembly{Directory: a.outdir}
	for _, s := range a.stacks {
		artifact, err := a.synthStack(s)
		if err != nil {
			return nil, err
		}
		assembly.Stacks = append(assembly.Stacks, *artifact)
	}
	return assembly, nil
}

func (a *App) synthStack(s *Stack) (*StackArtifact, error) {
	t, err := s.Template()
	if err != nil {
		return nil, err
	}

	artifact := &StackArtifact{
		StackName:    s.StackName(),
		TemplateFile: filepath.Join(a.outdir, s.StackName()+".template.json"),
		AssetsFile:   filepath.Join(a.outdir, s.StackName()+".assets.json"),
		Template:     t,
	}

	manifest := assets.NewManifest()
	for _, hash := range sortedKeys(s.assets) {
		src := s.assets[hash]
		staged, err := assets.Stage(src.source, a.outdir, src.opts)
		if err != nil {
			return nil, fmt.Errorf("staging asset %s: %w", src.source, err)
		}
		if staged.Hash != hash {
			return nil, fmt.Errorf("asset %s changed after it was added (fingerprint %s, staged %s)",
				src.source, hash, staged.Hash)
		}
		manifest.Add(staged, s.assetDestination(hash))
		artifact.Assets = append(artifact.Assets, staged)
		zap.S().Debugw("staged asset", "source", src.source, "file", staged.FileName, "bytes", staged.Size)
	}

	data, err := template.ToJSON(t)
	if err != nil {
		return nil, fmt.Errorf("serializing %s: %w", s.StackName(), err)
	}
	if err := os.WriteFile(artifact.TemplateFile, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing template: %w", err)
	}
	if err := manifest.Write(artifact.AssetsFile); err != nil {
		return nil, fmt.Errorf("writing asset manifest: %w", err)
	}

	zap.S().Infow("synthesized stack", "stack", s.StackName(), "resources", len(t.Resources), "template", artifact.TemplateFile)
	return artifact, nil
}
