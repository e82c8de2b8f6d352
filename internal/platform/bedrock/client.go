// Package bedrock wraps the Amazon Bedrock runtime with rate limiting and
// throttle-aware retries for Anthropic messages-API invocations.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/rs/zerolog"
)

// invokeAPI is the subset of the Bedrock runtime used by the client.
type invokeAPI interface {
	InvokeModel(
		ctx context.Context,
		params *bedrockruntime.InvokeModelInput,
		optFns ...func(*bedrockruntime.Options),
	) (*bedrockruntime.InvokeModelOutput, error)
}

// Message is a single turn in an Anthropic messages request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type requestBody struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	System           string    `json:"system,omitempty"`
	Messages         []Message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseBody struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

// Options configures a Client. Zero values get sensible defaults from
// NewWithAPI.
type Options struct {
	Region            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	BaseRetryDelay    time.Duration
	MaxRetryDelay     time.Duration
}

// Client invokes Anthropic models on Bedrock. Calls are paced so bursts
// of classification traffic do not trip the account-level throttle, and
// throttled calls retry with exponential backoff.
type Client struct {
	api    invokeAPI
	opts   Options
	pacer  *invokePacer
	logger zerolog.Logger
}

// New loads AWS credentials from the default chain and returns a Client
// for the given region.
func New(ctx context.Context, opts Options, logger zerolog.Logger) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config for region %q: %w", opts.Region, err)
	}
	return NewWithAPI(bedrockruntime.NewFromConfig(awsCfg), opts, logger), nil
}

// NewWithAPI is the testable constructor: it accepts any invokeAPI.
func NewWithAPI(api invokeAPI, opts Options, logger zerolog.Logger) *Client {
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 10
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseRetryDelay <= 0 {
		opts.BaseRetryDelay = 500 * time.Millisecond
	}
	if opts.MaxRetryDelay <= 0 {
		opts.MaxRetryDelay = 8 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	return &Client{
		api:    api,
		opts:   opts,
		pacer:  newInvokePacer(opts.RequestsPerSecond, opts.Burst),
		logger: logger,
	}
}

// Invoke sends a single-turn or multi-turn messages request to modelID and
// returns the concatenated text blocks of the response.
func (c *Client) Invoke(ctx context.Context, modelID, system string, messages []Message, maxTokens int) (string, error) {
	payload, err := json.Marshal(requestBody{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		System:           system,
		Messages:         messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request body: %w", err)
	}

	input := &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Body:        payload,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	}

	delay := c.opts.BaseRetryDelay
	for attempt := 1; ; attempt++ {
		if err := c.pacer.wait(ctx); err != nil {
			return "", fmt.Errorf("wait for invoke slot: %w", err)
		}

		callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		out, err := c.api.InvokeModel(callCtx, input)
		cancel()

		if err == nil {
			return extractText(out.Body)
		}
		if !throttled(err) || attempt >= c.opts.MaxRetries {
			return "", fmt.Errorf("invoke model %s: %w", modelID, err)
		}

		c.logger.Warn().
			Str("model", modelID).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("bedrock throttled, retrying")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.opts.MaxRetryDelay {
			delay = c.opts.MaxRetryDelay
		}
	}
}

// throttled reports whether err is a transient capacity error worth
// retrying.
func throttled(err error) bool {
	var throttle *types.ThrottlingException
	if errors.As(err, &throttle) {
		return true
	}
	var notReady *types.ModelNotReadyException
	return errors.As(err, &notReady)
}

// extractText concatenates the text blocks of an Anthropic messages
// response.
func extractText(body []byte) (string, error) {
	var resp responseBody
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response body: %w", err)
	}
	text := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("empty response (stop_reason=%s)", resp.StopReason)
	}
	return text, nil
}
