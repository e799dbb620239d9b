package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-s3trigger-go/assets"
)

type assetPublisher interface {
	Publish(ctx context.Context, m *assets.Manifest, baseDir string) ([]assets.Report, error)
}

type publishOptions struct {
	outdir   string
	noSynth  bool
	region   string
	profile  string
	endpoint string
}

func newPublishCmd(root *rootOptions) *cobra.Command {
	var opts publishOptions

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload staged handler assets to S3",
		Long: `Publish synthesizes the configured stack and uploads every staged asset
listed in the asset manifests to its S3 destination. Objects that already
exist are skipped.

Examples:
    wetwire-trigger publish
    wetwire-trigger publish --profile deploy --region us-west-2
    wetwire-trigger publish --no-synth -o cdk.out
    wetwire-trigger publish --endpoint http://localhost:4566`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manifests, baseDir, err := manifestsToPublish(root, opts)
			if err != nil {
				return err
			}
			pub, err := assets.NewPublisher(cmd.Context(), assets.PublisherOptions{
				Region:   opts.region,
				Profile:  opts.profile,
				Endpoint: opts.endpoint,
			})
			if err != nil {
				return err
			}
			return runPublish(cmd.Context(), cmd.OutOrStdout(), pub, manifests, baseDir)
		},
	}

	cmd.Flags().StringVarP(&opts.outdir, "outdir", "o", "", "Output directory (default: app.outdir)")
	cmd.Flags().BoolVar(&opts.noSynth, "no-synth", false, "Publish an existing output directory without synthesizing")
	cmd.Flags().StringVar(&opts.region, "region", "", "AWS region (default: from the AWS config)")
	cmd.Flags().StringVar(&opts.profile, "profile", "", "AWS shared config profile")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "Custom S3 endpoint (path-style)")

	return cmd
}

// manifestsToPublish returns the asset manifests of the output directory.
func manifestsToPublish(root *rootOptions, opts publishOptions) ([]string, string, error) {
	if !opts.noSynth {
		assembly, err := root.synth(opts.outdir)
		if err != nil {
			return nil, "", fmt.Errorf("synth failed: %w", err)
		}
		var files []string
		for _, s := range assembly.Stacks {
			files = append(files, s.AssetsFile)
		}
		return files, assembly.Directory, nil
	}

	dir := opts.outdir
	if dir == "" {
		cfg, _, err := root.loadApp("")
		if err != nil {
			return nil, "", err
		}
		dir = cfg.App.Outdir
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.assets.json"))
	if err != nil {
		return nil, "", err
	}
	if len(files) == 0 {
		return nil, "", fmt.Errorf("no asset manifests in %s", dir)
	}
	return files, dir, nil
}

func runPublish(ctx context.Context, w io.Writer, pub assetPublisher, manifests []string, baseDir string) error {
	var uploaded, skipped int
	var total int64
	for _, path := range manifests {
		m, err := assets.LoadManifest(path)
		if err != nil {
			return err
		}
		reports, err := pub.Publish(ctx, m, baseDir)
		for _, r := range reports {
			if r.Skipped {
				skipped++
				fmt.Fprintf(w, "  exists    s3://%s/%s\n", r.Bucket, r.Key)
				continue
			}
			uploaded++
			total += r.Size
			fmt.Fprintf(w, "  uploaded  s3://%s/%s (%s)\n", r.Bucket, r.Key, humanize.Bytes(uint64(r.Size)))
		}
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "%d uploaded (%s), %d already published\n", uploaded, humanize.Bytes(uint64(total)), skipped)
	return nil
}
