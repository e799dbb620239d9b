package bucketevents

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/lex00/wetwire-s3trigger-go/constructs"
	"github.com/lex00/wetwire-s3trigger-go/intrinsics"
	"github.com/lex00/wetwire-s3trigger-go/stack"
)

// Event-publisher handler settings.
const (
	PublisherDescription = "Trigger Metaflow runs with ArgoEvent()"
	PublisherHandler     = "bootstrap"
	PublisherMemorySize  = 256
	PublisherTimeout     = 30 * time.Second
	DefaultCodePath      = "dist/event-publisher"
)

// Environment variables read by the event-publisher handler.
const (
	EventNameEnv    = "METAFLOW_EVENT_NAME"
	ConfigStringEnv = "METAFLOW_CONFIG_STR"
)

// PublisherProps configures NewPublisher.
type PublisherProps struct {
	ExistingBucket constructs.IBucket
	BucketProps    *constructs.BucketProps

	Prefix string
	Suffix string

	// EventName is the Argo event emitted for each new object.
	EventName string
	// ConfigString is the Metaflow configuration as JSON.
	ConfigString string
	// ConfigAsParameter declares a NoEcho stack parameter <id>ConfigString
	// and passes it to the handler instead of ConfigString.
	ConfigAsParameter bool

	CrossAccountRoleArn string

	// CodePath is the directory or .zip holding the handler's executable
	// bootstrap binary, DefaultCodePath when empty. Build it with
	// go generate ./cmd/event-publisher.
	CodePath string
	Layers   []string

	ExportOutputs bool
}

// Publisher is a Trigger whose handler publishes each new object as a
// Metaflow Argo event.
type Publisher struct {
	*stack.Construct
	bucket       constructs.IBucket
	handler      *constructs.Function
	configString intrinsics.Parameter
	wiring       wiring
}

func (p PublisherProps) validate() error {
	if p.EventName == "" {
		return ErrMissingEventName
	}
	if p.ExistingBucket != nil && p.BucketProps != nil {
		return ErrConflictingBucket
	}
	if p.ConfigAsParameter {
		return nil
	}
	if p.ConfigString == "" {
		return ErrMissingConfig
	}
	if !json.Valid([]byte(p.ConfigString)) {
		return ErrInvalidConfig
	}
	return nil
}

// NewPublisher creates the event-publisher handler and wires it to the
// bucket.
func NewPublisher(scope stack.Scope, id string, props PublisherProps) (*Publisher, error) {
	if err := props.validate(); err != nil {
		return nil, fmt.Errorf("publisher %s: %w", id, err)
	}
	principal, err := crossAccountPrincipal(props.CrossAccountRoleArn)
	if err != nil {
		return nil, fmt.Errorf("publisher %s: %w", id, err)
	}
	codePath := props.CodePath
	if codePath == "" {
		codePath = DefaultCodePath
	}
	if err := checkBundle(codePath); err != nil {
		return nil, fmt.Errorf("publisher %s: %w", id, err)
	}
	st, err := stack.Of(scope)
	if err != nil {
		return nil, err
	}
	c, err := stack.NewConstruct(scope, id)
	if err != nil {
		return nil, err
	}

	bucket, err := resolveBucket(c, props.ExistingBucket, props.BucketProps)
	if err != nil {
		return nil, fmt.Errorf("publisher %s: %w", id, err)
	}

	handler, err := constructs.NewFunction(c, HandlerID, constructs.FunctionProps{
		Description:  PublisherDescription,
		Runtime:      constructs.RuntimeProvidedAL2023,
		Handler:      PublisherHandler,
		Code:         constructs.AssetCode(codePath),
		MemorySize:   PublisherMemorySize,
		Timeout:      PublisherTimeout,
		Architecture: constructs.ArchitectureX86_64,
		Layers:       props.Layers,
	})
	if err != nil {
		return nil, fmt.Errorf("publisher %s: %w", id, err)
	}

	pub := &Publisher{Construct: c, bucket: bucket, handler: handler}

	var config any = props.ConfigString
	if props.ConfigAsParameter {
		pub.configString, err = st.AddParameter(nonAlphanumeric.ReplaceAllString(id, "")+"ConfigString", intrinsics.Parameter{
			Type:        "String",
			Description: "Metaflow configuration JSON passed to " + c.Node().Path(),
			NoEcho:      true,
		})
		if err != nil {
			return nil, fmt.Errorf("publisher %s: %w", id, err)
		}
		config = pub.configString
	}
	env := []struct {
		key   string
		value any
	}{
		{EventNameEnv, props.EventName},
		{ConfigStringEnv, config},
		{BucketNameEnv, bucket.BucketName()},
	}
	for _, e := range env {
		if err := handler.AddEnvironment(e.key, e.value); err != nil {
			return nil, err
		}
	}

	if pub.wiring, err = wire(bucket, handler, principal, []constructs.EventType{constructs.EventObjectCreated}, props.Prefix, props.Suffix); err != nil {
		return nil, fmt.Errorf("publisher %s: %w", id, err)
	}
	if props.ExportOutputs {
		if err := exportOutputs(c, bucket, handler); err != nil {
			return nil, fmt.Errorf("publisher %s: %w", id, err)
		}
	}
	logWiring(c, pub.wiring, bucket, handler)
	return pub, nil
}

// checkBundle verifies that path, a directory or a .zip, holds an
// executable bootstrap at its root.
func checkBundle(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("event-publisher bundle: %w", err)
	}

	var mode fs.FileMode
	if info.IsDir() {
		bin, err := os.Stat(filepath.Join(path, PublisherHandler))
		if err != nil || !bin.Mode().IsRegular() {
			return fmt.Errorf("%w: %s", ErrMissingBootstrap, path)
		}
		mode = bin.Mode()
	} else {
		zr, err := zip.OpenReader(path)
		if err != nil {
			return fmt.Errorf("event-publisher bundle %s: %w", path, err)
		}
		defer zr.Close()
		var found *zip.File
		for _, f := range zr.File {
			if f.Name == PublisherHandler {
				found = f
				break
			}
		}
		if found == nil {
			return fmt.Errorf("%w: %s", ErrMissingBootstrap, path)
		}
		mode = found.Mode()
	}
	if mode.Perm()&0o111 == 0 {
		return fmt.Errorf("%w: %s is not executable in %s", ErrMissingBootstrap, PublisherHandler, path)
	}
	return nil
}

// Bucket returns the bucket whose events are published.
func (p *Publisher) Bucket() constructs.IBucket { return p.bucket }

// Handler returns the event-publisher function.
func (p *Publisher) Handler() *constructs.Function { return p.handler }

// ConfigParameter returns the NoEcho config parameter and true when the
// config string is passed as a parameter.
func (p *Publisher) ConfigParameter() (intrinsics.Parameter, bool) {
	return p.configString, p.configString.Name() != ""
}

// ReadGrant returns the grant giving the handler read access.
func (p *Publisher) ReadGrant() constructs.Grant { return p.wiring.readGrant }

// CrossAccountPolicy returns the outcome of the cross-account statement.
func (p *Publisher) CrossAccountPolicy() constructs.PolicyResult { return p.wiring.crossAccount }
