package config

import (
	"fmt"

	"github.com/lex00/wetwire-s3trigger-go/bucketevents"
	"github.com/lex00/wetwire-s3trigger-go/constructs"
	"github.com/lex00/wetwire-s3trigger-go/stack"
)

// Construct ids of resources referenced by ARN or name.
const (
	existingBucketID  = "ExistingBucket"
	existingHandlerID = "ExistingHandler"
)

// Build constructs the app described by cfg.
func Build(cfg *Config) (*stack.App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	app := stack.NewApp(stack.AppProps{Outdir: cfg.App.Outdir})
	st, err := stack.NewStack(app, cfg.Stack.Name, stack.StackProps{
		Description:     cfg.Stack.Description,
		Account:         cfg.Stack.Account,
		Region:          cfg.Stack.Region,
		AssetBucketName: cfg.Assets.BucketName,
	})
	if err != nil {
		return nil, err
	}

	c := cfg.Construct
	var existingBucket constructs.IBucket
	if c.ExistingBucketName != "" {
		if existingBucket, err = constructs.BucketFromName(st, existingBucketID, c.ExistingBucketName); err != nil {
			return nil, err
		}
	}
	bucketProps, err := DecodeBucket(c.Bucket)
	if err != nil {
		return nil, err
	}

	switch c.Variant {
	case VariantPublisher:
		_, err = bucketevents.NewPublisher(st, c.ID, bucketevents.PublisherProps{
			ExistingBucket:      existingBucket,
			BucketProps:         bucketProps,
			Prefix:              c.Prefix,
			Suffix:              c.Suffix,
			EventName:           c.EventName,
			ConfigString:        c.ConfigString,
			ConfigAsParameter:   c.ConfigAsParameter,
			CrossAccountRoleArn: c.CrossAccountRoleArn,
			CodePath:            c.CodePath,
			Layers:              c.Layers,
			ExportOutputs:       c.ExportOutputs,
		})
	case VariantTrigger:
		props := bucketevents.TriggerProps{
			ExistingBucket:      existingBucket,
			BucketProps:         bucketProps,
			Prefix:              c.Prefix,
			Suffix:              c.Suffix,
			CrossAccountRoleArn: c.CrossAccountRoleArn,
			ExportOutputs:       c.ExportOutputs,
		}
		if c.ExistingHandlerArn != "" {
			if props.ExistingHandler, err = constructs.FunctionFromArn(st, existingHandlerID, c.ExistingHandlerArn, c.ExistingHandlerRoleArn); err != nil {
				return nil, err
			}
		}
		if c.Handler != nil {
			props.HandlerProps = c.Handler.functionProps()
		}
		_, err = bucketevents.NewTrigger(st, c.ID, props)
	default:
		err = fmt.Errorf("%w: got %q", ErrUnknownVariant, c.Variant)
	}
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (h *HandlerConfig) functionProps() *constructs.FunctionProps {
	return &constructs.FunctionProps{
		Runtime:      constructs.Runtime(h.Runtime),
		Handler:      h.Handler,
		Code:         constructs.AssetCode(h.CodePath),
		MemorySize:   h.Memory,
		Timeout:      h.Timeout,
		Architecture: constructs.Architecture(h.Architecture),
		Environment:  h.Environment,
	}
}
