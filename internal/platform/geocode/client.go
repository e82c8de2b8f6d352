// Package geocode resolves Indian postal codes to coordinates through the
// Amazon Location Service. Lookups are best effort: callers fall back to
// local centroid data whenever a lookup fails, so every failure mode here
// surfaces as an error rather than a panic or a retry loop.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/location"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/stellaephile/whats-up-doc/pkg/geo"
)

// placesAPI is the subset of Amazon Location Service operations used by the
// client. A narrow interface keeps unit tests free of the real SDK client.
type placesAPI interface {
	SearchPlaceIndexForText(
		ctx context.Context,
		params *location.SearchPlaceIndexForTextInput,
		optFns ...func(*location.Options),
	) (*location.SearchPlaceIndexForTextOutput, error)
}

var (
	// ErrNoMatch means the index answered but nothing cleared the
	// relevance threshold inside India.
	ErrNoMatch = errors.New("geocode: no confident match")

	// ErrUnavailable means the index could not be reached, timed out, or
	// the circuit breaker is open.
	ErrUnavailable = errors.New("geocode: service unavailable")
)

// Result is a resolved place. Region and SubRegion carry the state and
// district names when the index returns them.
type Result struct {
	Latitude  float64
	Longitude float64
	Label     string
	Region    string
	SubRegion string
	Relevance float64
}

// Options configures a Client.
type Options struct {
	Region    string
	IndexName string
	APIKey    string
	Timeout   time.Duration
	MinScore  float64
}

// Client wraps the place index behind a per-call timeout and a circuit
// breaker so a degraded index cannot stall pincode resolution.
type Client struct {
	api     placesAPI
	opts    Options
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// New loads AWS credentials from the default chain and returns a Client
// bound to the configured place index.
func New(ctx context.Context, opts Options, logger zerolog.Logger) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config for region %q: %w", opts.Region, err)
	}
	return NewWithAPI(location.NewFromConfig(awsCfg), opts, logger), nil
}

// NewWithAPI is the testable constructor: it accepts any placesAPI.
func NewWithAPI(api placesAPI, opts Options, logger zerolog.Logger) *Client {
	c := &Client{api: api, opts: opts, logger: logger}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "geocode",
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("geocode breaker state change")
		},
	})
	return c
}

// Lookup geocodes a six digit postal code. It returns ErrNoMatch when the
// index has no confident in-country answer and ErrUnavailable when the
// index cannot be queried at all.
func (c *Client) Lookup(ctx context.Context, pincode string) (*Result, error) {
	input := &location.SearchPlaceIndexForTextInput{
		IndexName:       aws.String(c.opts.IndexName),
		Text:            aws.String(pincode + ", India"),
		FilterCountries: []string{"IND"},
		MaxResults:      aws.Int32(3),
	}
	if c.opts.APIKey != "" {
		input.Key = aws.String(c.opts.APIKey)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
		return c.api.SearchPlaceIndexForText(callCtx, input)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp := out.(*location.SearchPlaceIndexForTextOutput)
	result := c.pickResult(resp)
	if result == nil {
		return nil, ErrNoMatch
	}
	return result, nil
}

// pickResult returns the first candidate that clears the relevance
// threshold and lands inside India. The index returns candidates in
// descending relevance order.
func (c *Client) pickResult(resp *location.SearchPlaceIndexForTextOutput) *Result {
	for _, cand := range resp.Results {
		if cand.Place == nil || cand.Place.Geometry == nil {
			continue
		}
		point := cand.Place.Geometry.Point
		if len(point) != 2 {
			continue
		}
		relevance := 0.0
		if cand.Relevance != nil {
			relevance = *cand.Relevance
		}
		if relevance < c.opts.MinScore {
			continue
		}

		// Point is [longitude, latitude].
		lng, lat := point[0], point[1]
		if !geo.IndiaBoundingBox.Contains(lat, lng) {
			continue
		}

		return &Result{
			Latitude:  lat,
			Longitude: lng,
			Label:     aws.ToString(cand.Place.Label),
			Region:    aws.ToString(cand.Place.Region),
			SubRegion: aws.ToString(cand.Place.SubRegion),
			Relevance: relevance,
		}
	}
	return nil
}
