// Package eventpub is the runtime of the event-publisher handler. It turns
// S3 object-created notifications into Metaflow Argo events and posts them
// to the Argo Events webhook.
package eventpub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Keys of the Metaflow configuration JSON.
const (
	WebhookURLKey  = "METAFLOW_ARGO_EVENTS_WEBHOOK_URL"
	WebhookAuthKey = "METAFLOW_ARGO_EVENTS_WEBHOOK_AUTH"
	ServiceAuthKey = "METAFLOW_SERVICE_AUTH_KEY"
	HeadersKey     = "METAFLOW_SERVICE_HEADERS"
)

// Webhook auth modes.
const (
	AuthNone    = "none"
	AuthService = "service"
)

// Client defaults.
const (
	DefaultTimeout       = 10 * time.Second
	DefaultRetryCount    = 3
	DefaultRetryInterval = 500 * time.Millisecond
	retryJitter          = 100 * time.Millisecond
)

var (
	ErrMissingWebhookURL = errors.New(WebhookURLKey + " is required")
	ErrMissingEventName  = errors.New("event name is required")
)

// Config is the decoded Metaflow configuration string.
type Config struct {
	WebhookURL  string
	WebhookAuth string
	AuthKey     string
	Headers     map[string]string
}

// ParseConfig decodes the JSON configuration string. The headers value may
// be a JSON object or a string holding one.
func ParseConfig(s string) (*Config, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("parsing config string: %w", err)
	}

	cfg := &Config{WebhookAuth: AuthNone}
	fields := []struct {
		key string
		dst *string
	}{
		{WebhookURLKey, &cfg.WebhookURL},
		{WebhookAuthKey, &cfg.WebhookAuth},
		{ServiceAuthKey, &cfg.AuthKey},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok || string(v) == "null" {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", f.key, err)
		}
	}

	if v, ok := raw[HeadersKey]; ok && string(v) != "null" {
		var encoded string
		if err := json.Unmarshal(v, &encoded); err == nil {
			v = json.RawMessage(encoded)
		}
		if err := json.Unmarshal(v, &cfg.Headers); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", HeadersKey, err)
		}
	}

	if cfg.WebhookURL == "" {
		return nil, ErrMissingWebhookURL
	}
	switch cfg.WebhookAuth {
	case "", AuthNone:
		cfg.WebhookAuth = AuthNone
	case AuthService:
	default:
		return nil, fmt.Errorf("%s must be %s or %s, got %q", WebhookAuthKey, AuthNone, AuthService, cfg.WebhookAuth)
	}
	return cfg, nil
}

// Event is the body posted to the webhook.
type Event struct {
	Name    string  `json:"name"`
	Payload Payload `json:"payload"`
}

type Payload struct {
	Name                string `json:"name"`
	ID                  string `json:"id"`
	Timestamp           int64  `json:"timestamp"`
	UTCDate             string `json:"utc_date"`
	GeneratedByMetaflow bool   `json:"generated-by-metaflow"`
	Bucket              string `json:"bucket"`
	Key                 string `json:"key"`
	Size                int64  `json:"size"`
	ETag                string `json:"etag"`
	S3URL               string `json:"s3_url"`
	EventName           string `json:"event_name"`
}

// Publisher posts one event per S3 record.
type Publisher struct {
	EventName string
	// Bucket is used for records that carry no bucket name.
	Bucket string
	Config *Config
	Client heimdall.Client

	Now   func() time.Time
	NewID func() string
}

// Env holds the handler's environment.
type Env struct {
	EventName    string
	ConfigString string
	BucketName   string
}

// NewClient returns a heimdall client retrying failed and 5xx requests.
func NewClient(timeout time.Duration, retries int, interval time.Duration) *httpclient.Client {
	return httpclient.NewClient(
		httpclient.WithHTTPTimeout(timeout),
		httpclient.WithRetryCount(retries),
		httpclient.WithRetrier(heimdall.NewRetrier(heimdall.NewConstantBackoff(interval, retryJitter))),
	)
}

// New builds a Publisher from the handler environment with the default
// client.
func New(env Env) (*Publisher, error) {
	if env.EventName == "" {
		return nil, ErrMissingEventName
	}
	cfg, err := ParseConfig(env.ConfigString)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		EventName: env.EventName,
		Bucket:    env.BucketName,
		Config:    cfg,
		Client:    NewClient(DefaultTimeout, DefaultRetryCount, DefaultRetryInterval),
	}, nil
}

// Handle publishes every record of ev and returns the event ids in record
// order. It stops at the first failure.
func (p *Publisher) Handle(ctx context.Context, ev events.S3Event) ([]string, error) {
	log := zap.S().With("event", p.EventName)
	ids := make([]string, 0, len(ev.Records))
	for i, rec := range ev.Records {
		event, err := p.eventFor(rec)
		if err != nil {
			return ids, fmt.Errorf("record %d: %w", i, err)
		}
		if err := p.post(ctx, event); err != nil {
			return ids, fmt.Errorf("record %d: %w", i, err)
		}
		log.Infow("published", "id", event.Payload.ID, "url", event.Payload.S3URL)
		ids = append(ids, event.Payload.ID)
	}
	return ids, nil
}

func (p *Publisher) eventFor(rec events.S3EventRecord) (Event, error) {
	key, err := url.QueryUnescape(rec.S3.Object.Key)
	if err != nil {
		return Event{}, fmt.Errorf("decoding key %q: %w", rec.S3.Object.Key, err)
	}
	bucket := rec.S3.Bucket.Name
	if bucket == "" {
		bucket = p.Bucket
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	newID := uuid.NewString
	if p.NewID != nil {
		newID = p.NewID
	}
	ts := now().UTC()

	return Event{
		Name: p.EventName,
		Payload: Payload{
			Name:                p.EventName,
			ID:                  newID(),
			Timestamp:           ts.Unix(),
			UTCDate:             ts.Format("20060102"),
			GeneratedByMetaflow: true,
			Bucket:              bucket,
			Key:                 key,
			Size:                rec.S3.Object.Size,
			ETag:                rec.S3.Object.ETag,
			S3URL:               fmt.Sprintf("s3://%s/%s", bucket, key),
			EventName:           rec.EventName,
		},
	}, nil
}

func (p *Publisher) headers() http.Header {
	h := http.Header{}
	for k, v := range p.Config.Headers {
		h.Set(k, v)
	}
	h.Set("Content-Type", "application/json")
	if p.Config.WebhookAuth == AuthService && p.Config.AuthKey != "" {
		h.Set("x-api-key", p.Config.AuthKey)
	}
	return h
}

func (p *Publisher) post(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header = p.headers()

	res, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("posting event %s: %w", event.Payload.ID, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("posting event %s: webhook returned %d: %s", event.Payload.ID, res.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
