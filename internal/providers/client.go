// Package providers implements schema.Generator over HTTP for OpenAI-compatible
// chat completion endpoints and the Anthropic Messages API.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crystaldolphin/researchflow/internal/schema"
)

const (
	defaultMaxTokens = 4096
	defaultAPIBase   = "https://api.openai.com/v1"
)

// Params are the raw values needed to construct a Client.
// Extracted from config.Config by the caller to avoid an import cycle.
type Params struct {
	APIKey       string
	APIBase      string
	ExtraHeaders map[string]string
	DefaultModel string
	ProviderName string // registry name, e.g. "openrouter", "anthropic"
	HTTPClient   *http.Client
}

// Client is a schema.Generator. It holds no per-request state and is safe
// for concurrent use.
type Client struct {
	apiKey       string
	apiBase      string
	defaultModel string
	extraHeaders map[string]string
	gateway      *Spec // set for gateway/local backends
	spec         *Spec // set for direct backends
	anthropic    bool
	httpClient   *http.Client
}

var _ schema.Generator = (*Client)(nil)

// New resolves the backend for p and returns a ready Client.
func New(p Params) *Client {
	gateway := FindGateway(p.ProviderName, p.APIKey, p.APIBase)

	var spec *Spec
	if gateway == nil {
		spec = FindByName(p.ProviderName)
		if spec == nil {
			spec = FindByModel(p.DefaultModel)
		}
	}

	base := p.APIBase
	switch {
	case base != "":
	case gateway != nil && gateway.DefaultAPIBase != "":
		base = gateway.DefaultAPIBase
	case spec != nil && spec.DefaultAPIBase != "":
		base = spec.DefaultAPIBase
	default:
		base = defaultAPIBase
	}
	base = strings.TrimRight(base, "/")

	hc := p.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 120 * time.Second}
	}

	return &Client{
		apiKey:       p.APIKey,
		apiBase:      base,
		defaultModel: p.DefaultModel,
		extraHeaders: p.ExtraHeaders,
		gateway:      gateway,
		spec:         spec,
		anthropic:    (spec != nil && spec.Anthropic) || strings.Contains(strings.ToLower(base), "anthropic.com"),
		httpClient:   hc,
	}
}

func (c *Client) DefaultModel() string { return c.defaultModel }

// Chat sends one completion request. Transport failures and non-2xx replies
// come back as GenerationUnavailable; deadline failures as GenerationTimeout.
func (c *Client) Chat(
	ctx context.Context,
	messages schema.Messages,
	tools []map[string]any,
	opts schema.ChatOptions,
) (schema.LLMResponse, error) {
	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	if c.anthropic {
		return c.chatAnthropic(ctx, messages, tools, c.resolveModel(model), maxTokens, opts.Temperature)
	}
	return c.chatOpenAI(ctx, messages, tools, c.resolveModel(model), maxTokens, opts.Temperature)
}

// post marshals body, sends it to path and returns the raw 200 reply.
func (c *Client) post(ctx context.Context, op, path string, body map[string]any, headers map[string]string) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, schema.NewError(schema.KindGenerationUnavailable, op, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(data))
	if err != nil {
		return nil, schema.NewError(schema.KindGenerationUnavailable, op, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for k, v := range c.extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, schema.GenerationError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, schema.GenerationError(op, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, schema.NewError(schema.KindGenerationUnavailable, op,
			fmt.Errorf("http %d: %s", resp.StatusCode, friendlyHTTPError(resp.StatusCode, raw)))
	}
	return raw, nil
}

// resolveModel strips routing prefixes so the backend receives the model
// name it expects. Gateways keep the "vendor/model" form unless they want
// the bare name; only their own route prefix is removed.
func (c *Client) resolveModel(model string) string {
	if c.gateway != nil {
		if c.gateway.StripModelPrefix {
			if i := strings.LastIndex(model, "/"); i >= 0 {
				return model[i+1:]
			}
			return model
		}
		return trimPrefixFold(model, c.gateway.RoutePrefix)
	}

	if c.spec != nil {
		for _, pfx := range []string{c.spec.RoutePrefix, c.spec.Name} {
			if trimmed := trimPrefixFold(model, pfx); trimmed != model {
				return trimmed
			}
		}
	}
	if head, tail, ok := strings.Cut(model, "/"); ok && FindByName(normalize(head)) != nil {
		return tail
	}
	return model
}

func trimPrefixFold(model, prefix string) string {
	if prefix == "" {
		return model
	}
	full := prefix + "/"
	if strings.HasPrefix(strings.ToLower(model), full) {
		return model[len(full):]
	}
	return model
}

func (c *Client) applyModelOverrides(model string, body map[string]any) {
	spec := c.spec
	if spec == nil {
		spec = FindByModel(model)
	}
	if spec == nil {
		return
	}
	lower := strings.ToLower(model)
	for _, ov := range spec.ModelOverrides {
		if strings.Contains(lower, strings.ToLower(ov.Pattern)) {
			for k, v := range ov.Overrides {
				body[k] = v
			}
			return
		}
	}
}

var errEmptyChoices = errors.New("empty choices in response")

func friendlyHTTPError(code int, body []byte) string {
	if code == http.StatusTooManyRequests {
		return "rate limit exceeded"
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		s = s[:300]
	}
	return s
}
