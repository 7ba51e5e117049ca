package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chart-revisor/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/go-resty/resty/v2"
	"github.com/qri-io/jsonschema"
	"go.uber.org/zap"
)

var (
	// ErrSchemaUnavailable means the registry schema could not be fetched
	// within the retry budget. Fatal to the whole run.
	ErrSchemaUnavailable = errors.New("chart config schema unavailable")

	// ErrInvalidChartConfig means a stored config failed structural
	// validation against the schema. Fatal to that one chart only.
	ErrInvalidChartConfig = errors.New("invalid chart config")
)

// Document is a parsed chart-config JSON-Schema: the validator plus the
// top-level property defaults used for normalization.
type Document struct {
	raw       []byte
	validator *jsonschema.Schema
	defaults  map[string]any
}

// ParseDocument parses the schema twice: once into the validator and once
// into a plain map to collect properties.*.default, which the validation
// library does not expose.
func ParseDocument(raw []byte) (*Document, error) {
	validator := &jsonschema.Schema{}
	if err := json.Unmarshal(raw, validator); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	var doc struct {
		Properties map[string]struct {
			Default json.RawMessage `json:"default"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse schema properties: %w", err)
	}
	defaults := map[string]any{}
	for name, prop := range doc.Properties {
		if prop.Default == nil {
			continue
		}
		var v any
		if err := json.Unmarshal(prop.Default, &v); err != nil {
			return nil, fmt.Errorf("parse default for %s: %w", name, err)
		}
		defaults[name] = v
	}

	return &Document{raw: raw, validator: validator, defaults: defaults}, nil
}

// Defaults returns the schema-declared default value per top-level property.
func (d *Document) Defaults() map[string]any {
	return d.defaults
}

// Validate checks a config structurally against the schema.
func (d *Document) Validate(ctx context.Context, cfg *models.ChartConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChartConfig, err)
	}
	keyErrs, err := d.validator.ValidateBytes(ctx, data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChartConfig, err)
	}
	if len(keyErrs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidChartConfig, keyErrs[0].Error())
	}
	return nil
}

// RegistryClient fetches the versioned chart-config schema from the schema
// registry, with a bounded timeout and retry budget. When a redis client is
// provided the raw document is cached by URL so repeated runs skip the fetch.
type RegistryClient struct {
	httpClient *resty.Client
	redis      *redis.Client
	url        string
	cacheTTL   time.Duration
	logger     *zap.Logger
}

func NewRegistryClient(url string, timeout time.Duration, retryCount int, redisClient *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *RegistryClient {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json")

	return &RegistryClient{
		httpClient: client,
		redis:      redisClient,
		url:        url,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

func (c *RegistryClient) cacheKey() string {
	return "chart-revisor:schema:" + c.url
}

// Fetch returns the parsed schema document, from cache when possible.
func (c *RegistryClient) Fetch(ctx context.Context) (*Document, error) {
	if c.redis != nil {
		if raw, err := c.redis.Get(ctx, c.cacheKey()).Bytes(); err == nil {
			if doc, err := ParseDocument(raw); err == nil {
				return doc, nil
			}
			// cached garbage falls through to a refetch
			c.logger.Warn("Discarding unparseable cached schema", zap.String("url", c.url))
		}
	}

	resp, err := c.httpClient.R().SetContext(ctx).Get(c.url)
	if err != nil {
		c.logger.Error("Schema fetch failed",
			zap.String("url", c.url),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrSchemaUnavailable, err)
	}
	if resp.StatusCode() != 200 {
		c.logger.Error("Schema fetch returned non-200",
			zap.String("url", c.url),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, fmt.Errorf("%w: status %d", ErrSchemaUnavailable, resp.StatusCode())
	}

	doc, err := ParseDocument(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaUnavailable, err)
	}

	if c.redis != nil {
		if err := c.redis.Set(ctx, c.cacheKey(), resp.Body(), c.cacheTTL).Err(); err != nil {
			c.logger.Warn("Failed to cache schema", zap.Error(err))
		}
	}

	c.logger.Info("Fetched chart config schema",
		zap.String("url", c.url),
		zap.Int("defaults", len(doc.defaults)),
	)
	return doc, nil
}
