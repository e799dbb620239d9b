// Command event-publisher is the Lambda handler deployed by
// bucketevents.NewPublisher on provided.al2023 (x86_64).
//
// From the repository root, go generate ./cmd/event-publisher writes the
// bundle to dist/event-publisher/bootstrap, the default code path.
package main

//go:generate env CGO_ENABLED=0 GOOS=linux GOARCH=amd64 go build -tags lambda.norpc -trimpath -o ../../dist/event-publisher/bootstrap .

import (
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/lex00/wetwire-s3trigger-go/bucketevents"
	"github.com/lex00/wetwire-s3trigger-go/internal/eventpub"
	"github.com/lex00/wetwire-s3trigger-go/internal/logging"
)

func main() {
	if _, err := logging.Setup(logging.LogOpts{Encoding: "json", Color: "never"}); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	p, err := eventpub.New(eventpub.Env{
		EventName:    os.Getenv(bucketevents.EventNameEnv),
		ConfigString: os.Getenv(bucketevents.ConfigStringEnv),
		BucketName:   os.Getenv(bucketevents.BucketNameEnv),
	})
	if err != nil {
		zap.S().Fatalw("invalid handler environment", "error", err)
	}
	lambda.Start(p.Handle)
}
