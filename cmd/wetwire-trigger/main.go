// Command wetwire-trigger synthesizes CloudFormation templates that wire an
// S3 bucket's object-created events to a Lambda handler.
//
// Usage:
//
//	wetwire-trigger init                Scaffold wetwire-trigger.yaml
//	wetwire-trigger synth               Write templates and assets
//	wetwire-trigger validate            Check the synthesized templates
//	wetwire-trigger publish             Upload assets to S3
//	wetwire-trigger version             Show version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath  string
	verbose     bool
	logEncoding string
	restoreLogs func()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "wetwire-trigger",
		Short: "Synthesize S3-to-Lambda trigger stacks",
		Long: `wetwire-trigger turns a small config file into a CloudFormation stack
holding an S3 bucket, a Lambda handler and the notification wiring between
them.

Describe the trigger in wetwire-trigger.yaml:

    construct:
      variant: publisher
      event_name: data-landed
      config_string: '{"METAFLOW_ARGO_EVENTS_WEBHOOK_URL": "https://argo.example.com"}'

Then synthesize it:

    wetwire-trigger synth`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setupLogging()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.restoreLogs != nil {
				opts.restoreLogs()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: ./wetwire-trigger.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.logEncoding, "log-encoding", "", "Log encoding: console or json")

	rootCmd.AddCommand(
		newSynthCmd(opts),
		newValidateCmd(opts),
		newDiffCmd(opts),
		newGraphCmd(opts),
		newListCmd(opts),
		newPublishCmd(opts),
		newWatchCmd(opts),
		newInitCmd(),
		newMCPCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wetwire-trigger %s\n", getVersion())
		},
	}
}
