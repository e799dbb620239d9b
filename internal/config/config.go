// Package config loads the wetwire-trigger configuration file and builds the
// app it describes.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Configuration file lookup.
const (
	DefaultFileName = "wetwire-trigger.yaml"
	fileBaseName    = "wetwire-trigger"
	EnvPrefix       = "WETWIRE_TRIGGER"
)

// Construct variants.
const (
	VariantPublisher = "publisher"
	VariantTrigger   = "trigger"
)

// Defaults applied when a key is absent everywhere.
const (
	DefaultStackName   = "integration-stack"
	DefaultConstructID = "S3LambdaObjectCreated"
)

var ErrUnknownVariant = errors.New("construct.variant must be publisher or trigger")

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Stack     StackConfig     `mapstructure:"stack"`
	Construct ConstructConfig `mapstructure:"construct"`
	Assets    AssetsConfig    `mapstructure:"assets"`
}

type AppConfig struct {
	Outdir string `mapstructure:"outdir"`
}

type StackConfig struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Account     string `mapstructure:"account"`
	Region      string `mapstructure:"region"`
}

type AssetsConfig struct {
	BucketName string `mapstructure:"bucket_name"`
}

type ConstructConfig struct {
	Variant             string   `mapstructure:"variant"`
	ID                  string   `mapstructure:"id"`
	EventName           string   `mapstructure:"event_name"`
	ConfigString        string   `mapstructure:"config_string"`
	ConfigAsParameter   bool     `mapstructure:"config_as_parameter"`
	Prefix              string   `mapstructure:"prefix"`
	Suffix              string   `mapstructure:"suffix"`
	CrossAccountRoleArn string   `mapstructure:"cross_account_role_arn"`
	CodePath            string   `mapstructure:"code_path"`
	Layers              []string `mapstructure:"layers"`
	ExportOutputs       bool     `mapstructure:"export_outputs"`

	ExistingBucketName     string `mapstructure:"existing_bucket_name"`
	ExistingHandlerArn     string `mapstructure:"existing_handler_arn"`
	ExistingHandlerRoleArn string `mapstructure:"existing_handler_role_arn"`

	Handler *HandlerConfig `mapstructure:"handler"`
	// Bucket is decoded by DecodeBucket. It is kept raw so that keys which
	// are not BucketConfig fields reach the template as property overrides.
	Bucket map[string]any `mapstructure:"bucket"`
}

// HandlerConfig describes the handler the trigger variant creates.
type HandlerConfig struct {
	Runtime      string            `mapstructure:"runtime"`
	Handler      string            `mapstructure:"handler"`
	CodePath     string            `mapstructure:"code_path"`
	Memory       int               `mapstructure:"memory"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	Architecture string            `mapstructure:"architecture"`
	Environment  map[string]string `mapstructure:"env"`
}

// Load reads path, or wetwire-trigger.{yaml,yml,json} from the working
// directory when path is empty, and applies WETWIRE_TRIGGER_* environment
// overrides. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(fileBaseName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	// viper lowercases keys. Sections whose keys are case-sensitive are
	// re-read verbatim: bucket override paths and handler environment names.
	if used := v.ConfigFileUsed(); used != "" {
		raw, err := rawSection(used, "construct", "bucket")
		if err != nil {
			return nil, err
		}
		if raw != nil {
			cfg.Construct.Bucket = raw
		}
		env, err := rawSection(used, "construct", "handler", "env")
		if err != nil {
			return nil, err
		}
		if env != nil && cfg.Construct.Handler != nil {
			cfg.Construct.Handler.Environment = make(map[string]string, len(env))
			for k, v := range env {
				cfg.Construct.Handler.Environment[k] = fmt.Sprint(v)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeHook replaces viper's default hooks. Bare numbers decode to
// durations in seconds, matching the CloudFormation Timeout property.
var decodeHook = mapstructure.ComposeDecodeHookFunc(
	secondsToDurationHook,
	mapstructure.StringToTimeDurationHookFunc(),
	mapstructure.StringToSliceHookFunc(","),
)

var durationType = reflect.TypeOf(time.Duration(0))

func secondsToDurationHook(from, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	v := reflect.ValueOf(data)
	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return time.Duration(v.Int()) * time.Second, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return time.Duration(v.Uint()) * time.Second, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(v.Float() * float64(time.Second)), nil
	case reflect.String:
		if n, err := strconv.Atoi(strings.TrimSpace(v.String())); err == nil {
			return time.Duration(n) * time.Second, nil
		}
	}
	return data, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.outdir", "wetwire.out")
	v.SetDefault("stack.name", DefaultStackName)
	v.SetDefault("stack.description", "")
	v.SetDefault("stack.account", "")
	v.SetDefault("stack.region", "")
	v.SetDefault("construct.variant", VariantPublisher)
	v.SetDefault("construct.id", DefaultConstructID)
	v.SetDefault("construct.event_name", "")
	v.SetDefault("construct.config_string", "")
	v.SetDefault("construct.config_as_parameter", false)
	v.SetDefault("construct.prefix", "")
	v.SetDefault("construct.suffix", "")
	v.SetDefault("construct.cross_account_role_arn", "")
	v.SetDefault("construct.code_path", "")
	v.SetDefault("construct.export_outputs", false)
	v.SetDefault("construct.existing_bucket_name", "")
	v.SetDefault("construct.existing_handler_arn", "")
	v.SetDefault("construct.existing_handler_role_arn", "")
	v.SetDefault("assets.bucket_name", "")
}

// Validate checks the fields Build cannot default.
func (c *Config) Validate() error {
	switch c.Construct.Variant {
	case VariantPublisher:
	case VariantTrigger:
		if c.Construct.ExistingHandlerArn == "" && c.Construct.Handler == nil {
			return fmt.Errorf("trigger variant needs construct.existing_handler_arn or construct.handler")
		}
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownVariant, c.Construct.Variant)
	}
	if c.Construct.ExistingBucketName != "" && len(c.Construct.Bucket) > 0 {
		return fmt.Errorf("construct.existing_bucket_name and construct.bucket are mutually exclusive")
	}
	return nil
}

// rawSection returns the map at keys in the config file without viper's
// key normalization, or nil when it is absent.
func rawSection(path string, keys ...string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var doc map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &doc)
	default:
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for _, k := range keys {
		next, ok := doc[k].(map[string]any)
		if !ok {
			return nil, nil
		}
		doc = next
	}
	return doc, nil
}
