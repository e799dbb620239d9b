package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"
)

// S3API is the subset of the S3 client used for publishing.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// IdentityAPI resolves the caller's account.
type IdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// PublisherOptions configures NewPublisher.
type PublisherOptions struct {
	Region  string
	Profile string
	// Endpoint points S3 at a custom endpoint (LocalStack, MinIO) with
	// path-style addressing.
	Endpoint string
}

// Publisher uploads staged assets to their destinations.
type Publisher struct {
	clientFor func(region, roleArn string) S3API
	identity  IdentityAPI
	region    string
	account   string
}

// Report is the outcome of publishing one asset destination.
type Report struct {
	Hash    string `json:"hash"`
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
	Region  string `json:"region"`
	Size    int64  `json:"size"`
	Skipped bool   `json:"skipped"`
}

// NewPublisher loads the default AWS configuration and builds S3 and STS
// clients from it.
func NewPublisher(ctx context.Context, opts PublisherOptions) (*Publisher, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	stsClient := sts.NewFromConfig(cfg)
	clientFor := func(region, roleArn string) S3API {
		c := cfg.Copy()
		if roleArn != "" {
			c.Credentials = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(stsClient, roleArn))
		}
		return s3.NewFromConfig(c, func(o *s3.Options) {
			if region != "" {
				o.Region = region
			}
			if opts.Endpoint != "" {
				o.BaseEndpoint = aws.String(opts.Endpoint)
				o.UsePathStyle = true
			}
		})
	}

	return &Publisher{clientFor: clientFor, identity: stsClient, region: cfg.Region}, nil
}

// NewPublisherWithClients builds a publisher around existing clients. Every
// destination uses client regardless of region or role.
func NewPublisherWithClients(client S3API, identity IdentityAPI, region string) *Publisher {
	return &Publisher{
		clientFor: func(string, string) S3API { return client },
		identity:  identity,
		region:    region,
	}
}

// Publish uploads every file in m. Paths are resolved against baseDir, the
// directory holding the manifest. Objects already present are skipped.
func (p *Publisher) Publish(ctx context.Context, m *Manifest, baseDir string) ([]Report, error) {
	hashes := make([]string, 0, len(m.Files))
	for hash := range m.Files {
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)

	var reports []Report
	for _, hash := range hashes {
		entry := m.Files[hash]
		path := entry.Source.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}

		destIDs := make([]string, 0, len(entry.Destinations))
		for id := range entry.Destinations {
			destIDs = append(destIDs, id)
		}
		sort.Strings(destIDs)

		for _, id := range destIDs {
			dest, err := p.resolve(ctx, entry.Destinations[id])
			if err != nil {
				return reports, err
			}
			report, err := p.publishOne(ctx, hash, path, dest)
			if err != nil {
				return reports, fmt.Errorf("publishing %s to s3://%s/%s: %w", hash, dest.BucketName, dest.ObjectKey, err)
			}
			reports = append(reports, report)
		}
	}
	return reports, nil
}

func (p *Publisher) publishOne(ctx context.Context, hash, path string, dest Destination) (Report, error) {
	report := Report{Hash: hash, Bucket: dest.BucketName, Key: dest.ObjectKey, Region: dest.Region}
	client := p.clientFor(dest.Region, dest.AssumeRoleArn)

	_, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(dest.BucketName),
		Key:    aws.String(dest.ObjectKey),
	})
	if err == nil {
		report.Skipped = true
		zap.S().Debugw("asset already published", "bucket", dest.BucketName, "key", dest.ObjectKey)
		return report, nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return report, fmt.Errorf("head object: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return report, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return report, err
	}
	report.Size = info.Size()

	if _, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(dest.BucketName),
		Key:           aws.String(dest.ObjectKey),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/zip"),
	}); err != nil {
		return report, fmt.Errorf("put object: %w", err)
	}

	zap.S().Infow("published asset", "bucket", dest.BucketName, "key", dest.ObjectKey, "bytes", report.Size)
	return report, nil
}

// resolve replaces ${AWS::AccountId} and ${AWS::Region} placeholders.
func (p *Publisher) resolve(ctx context.Context, d Destination) (Destination, error) {
	needsAccount := strings.Contains(d.BucketName+d.ObjectKey+d.AssumeRoleArn, "${AWS::AccountId}")
	if needsAccount && p.account == "" {
		out, err := p.identity.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		if err != nil {
			return d, fmt.Errorf("resolving account id: %w", err)
		}
		p.account = aws.ToString(out.Account)
	}

	region := d.Region
	if region == "" || region == "${AWS::Region}" {
		region = p.region
	}
	if region == "" {
		return d, errors.New("no region configured for asset publishing")
	}

	r := strings.NewReplacer("${AWS::AccountId}", p.account, "${AWS::Region}", region)
	return Destination{
		BucketName:    r.Replace(d.BucketName),
		ObjectKey:     r.Replace(d.ObjectKey),
		Region:        region,
		AssumeRoleArn: r.Replace(d.AssumeRoleArn),
	}, nil
}
