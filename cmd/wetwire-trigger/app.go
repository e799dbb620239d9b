package main

import (
	"fmt"

	"github.com/lex00/wetwire-s3trigger-go/internal/config"
	"github.com/lex00/wetwire-s3trigger-go/internal/logging"
	"github.com/lex00/wetwire-s3trigger-go/stack"
)

func (o *rootOptions) setupLogging() error {
	restore, err := logging.Setup(logging.LogOpts{Verbose: o.verbose, Encoding: o.logEncoding})
	if err != nil {
		return err
	}
	o.restoreLogs = restore
	return nil
}

// loadApp reads the config and builds the app. A non-empty outdir replaces
// app.outdir.
func (o *rootOptions) loadApp(outdir string) (*config.Config, *stack.App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if outdir != "" {
		cfg.App.Outdir = outdir
	}
	app, err := config.Build(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("building app: %w", err)
	}
	return cfg, app, nil
}

// synth builds and synthesizes the configured app.
func (o *rootOptions) synth(outdir string) (*stack.CloudAssembly, error) {
	_, app, err := o.loadApp(outdir)
	if err != nil {
		return nil, err
	}
	return app.Synth()
}
