package constructs

import (
	"fmt"

	"github.com/lex00/wetwire-s3trigger-go/assets"
	"github.com/lex00/wetwire-s3trigger-go/resources/lambda"
	"github.com/lex00/wetwire-s3trigger-go/stack"
)

// maxInlineCode is the CloudFormation limit for Code.ZipFile.
const maxInlineCode = 4096

// Code is the deployment package of a function.
type Code interface {
	bind(scope stack.Scope) (lambda.Function_Code, error)
}

// AssetCode bundles a local directory, or uses a prebuilt .zip, as the
// function code. Paths matching exclude are left out of the bundle.
func AssetCode(path string, exclude ...string) Code {
	return assetCode{path: path, exclude: exclude}
}

// InlineCode embeds source in the template. Only interpreted runtimes
// support it.
func InlineCode(source string) Code {
	return inlineCode(source)
}

// S3Code points at an object that already exists.
func S3Code(bucket, key string) Code {
	return s3Code{bucket: bucket, key: key}
}

type assetCode struct {
	path    string
	exclude []string
}

func (c assetCode) bind(scope stack.Scope) (lambda.Function_Code, error) {
	st, err := stack.Of(scope)
	if err != nil {
		return lambda.Function_Code{}, err
	}
	loc, err := st.AddFileAsset(c.path, assets.Options{Exclude: c.exclude})
	if err != nil {
		return lambda.Function_Code{}, err
	}
	return lambda.Function_Code{S3Bucket: loc.BucketName, S3Key: loc.ObjectKey}, nil
}

type inlineCode string

func (c inlineCode) bind(stack.Scope) (lambda.Function_Code, error) {
	if len(c) == 0 {
		return lambda.Function_Code{}, fmt.Errorf("inline code is empty")
	}
	if len(c) > maxInlineCode {
		return lambda.Function_Code{}, fmt.Errorf("inline code is %d bytes, the limit is %d", len(c), maxInlineCode)
	}
	return lambda.Function_Code{ZipFile: string(c)}, nil
}

type s3Code struct {
	bucket string
	key    string
}

func (c s3Code) bind(stack.Scope) (lambda.Function_Code, error) {
	if c.bucket == "" || c.key == "" {
		return lambda.Function_Code{}, fmt.Errorf("s3 code needs both bucket and key")
	}
	return lambda.Function_Code{S3Bucket: c.bucket, S3Key: c.key}, nil
}
