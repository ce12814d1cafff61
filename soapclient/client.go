// Package soapclient implements the XML envelope transport used by the
// SOAP-backed extractors (data extension, triggered send, and the folder
// caches that back breadcrumb resolution).
package soapclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rudderlabs/rudder-go-kit/config"
	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/ratelimiter"
	"github.com/rudderlabs/sfmc-inventory/sfmcerr"
)

var retryableStatus = map[int]bool{
	429: true, 500: true, 502: true, 503: true, 504: true,
}

// TokenSource is the subset of the Token Manager this transport depends on.
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context, reason string) (string, error)
}

// RetrieveResult is the parsed outcome of a single Retrieve/ContinueRequest
// round trip.
type RetrieveResult struct {
	OK            bool
	OverallStatus string
	RequestID     string
	Objects       []Node
	Error         string
}

// Client is the SOAP transport. One instance is shared by every SOAP-backed
// extractor and cache loader in a run. Each extractor is scoped to its own
// kind via WithKind so the rate limiter's per-kind state machine gates the
// right calls; cache loaders use the unscoped client, which is not gated.
type Client struct {
	endpoint string
	tokens   TokenSource
	http     *http.Client
	log      logger.Logger

	limiter *ratelimiter.Limiter
	kind    string

	maxAttempts    int
	retryBaseDelay time.Duration
	retryBackoff   float64
	maxPages       int
}

func New(endpoint string, tokens TokenSource, requestTimeout time.Duration, log logger.Logger) *Client {
	return &Client{
		endpoint:       endpoint,
		tokens:         tokens,
		http:           &http.Client{Timeout: requestTimeout},
		log:            log.Child("soap-client"),
		maxAttempts:    config.GetIntVar(3, 1, "SfmcInventory.SoapClient.maxAttempts"),
		retryBaseDelay: config.GetDurationVar(1, time.Second, "SfmcInventory.SoapClient.retryBaseDelay"),
		retryBackoff:   config.GetFloat64Var(2.0, "SfmcInventory.SoapClient.retryBackoff"),
		maxPages:       config.GetIntVar(100, 1, "SfmcInventory.SoapClient.maxPages"),
	}
}

// WithKind returns a shallow copy of c that gates every Retrieve and
// ContinueRequest call through limiter under the given kind.
func (c *Client) WithKind(limiter *ratelimiter.Limiter, kind string) *Client {
	clone := *c
	clone.limiter = limiter
	clone.kind = kind
	return &clone
}

func (c *Client) acquire(ctx context.Context) (func(ratelimiter.Outcome), error) {
	if c.limiter == nil {
		return func(ratelimiter.Outcome) {}, nil
	}
	return c.limiter.Acquire(ctx, c.kind)
}

// Retrieve performs a single Retrieve request (no pagination). On a 401 it
// forces a token refresh and retries once with a freshly built envelope,
// outside the retryable-status attempt budget.
func (c *Client) Retrieve(ctx context.Context, objectType string, properties []string, filter *SimpleFilter) (*RetrieveResult, error) {
	usedForcedRefresh := false

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		token, err := c.tokens.GetToken(ctx)
		if err != nil {
			return nil, err
		}
		envelope, err := buildRetrieveEnvelope(token, objectType, properties, filter)
		if err != nil {
			return nil, sfmcerr.New(sfmcerr.ParseError, "building retrieve envelope", err)
		}

		release, err := c.acquire(ctx)
		if err != nil {
			return nil, sfmcerr.New(sfmcerr.Canceled, "rate limiter wait canceled", err)
		}
		status, body, err := c.post(ctx, envelope)
		if err != nil {
			release(ratelimiter.Failure)
			if ctx.Err() != nil {
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return nil, sfmcerr.New(sfmcerr.ExtractorTimeout, "soap request exceeded extractor timeout", ctx.Err())
				}
				return nil, sfmcerr.New(sfmcerr.Canceled, "soap request canceled", ctx.Err())
			}
			lastErr = err
			c.sleepBackoff(ctx, attempt)
			continue
		}

		if status == http.StatusUnauthorized && !usedForcedRefresh {
			release(ratelimiter.Failure)
			usedForcedRefresh = true
			if _, err := c.tokens.ForceRefresh(ctx, "401 from SOAP retrieve"); err != nil {
				return nil, err
			}
			attempt--
			continue
		}

		if retryableStatus[status] {
			release(ratelimiter.Failure)
			lastErr = fmt.Errorf("soap endpoint returned status %d", status)
			c.sleepBackoff(ctx, attempt)
			continue
		}

		release(ratelimiter.Success)
		return parseRetrieveResponse(body)
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("soap retrieve exhausted retries")
	}
	return nil, sfmcerr.New(sfmcerr.HTTPRetryableExhausted, "soap retrieve", lastErr)
}

// RetrieveAllPages drives the Retrieve/ContinueRequest pagination loop to
// completion, bounded by the hard page ceiling, returning the concatenated
// object list across every page.
func (c *Client) RetrieveAllPages(ctx context.Context, objectType string, properties []string, filter *SimpleFilter) ([]Node, error) {
	result, err := c.Retrieve(ctx, objectType, properties, filter)
	if err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, sfmcerr.New(sfmcerr.HTTPNonRetryable, "soap retrieve: "+result.Error, nil)
	}

	all := result.Objects
	page := 1
	for result.OverallStatus == "MoreDataAvailable" && page < c.maxPages {
		if result.RequestID == "" {
			break
		}
		page++

		next, err := c.continueRequest(ctx, result.RequestID)
		if err != nil {
			c.log.Warnw("soap pagination stopped on error", "page", page, "error", err)
			break
		}
		if !next.OK {
			break
		}
		all = append(all, next.Objects...)
		result = next
	}
	return all, nil
}

func (c *Client) continueRequest(ctx context.Context, requestID string) (*RetrieveResult, error) {
	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, err
	}
	envelope, err := buildContinueEnvelope(token, requestID)
	if err != nil {
		return nil, sfmcerr.New(sfmcerr.ParseError, "building continue envelope", err)
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return nil, sfmcerr.New(sfmcerr.Canceled, "rate limiter wait canceled", err)
	}
	status, body, err := c.post(ctx, envelope)
	if err != nil {
		release(ratelimiter.Failure)
		return nil, err
	}
	if status != http.StatusOK {
		release(ratelimiter.Failure)
		return nil, fmt.Errorf("continue request returned status %d", status)
	}
	release(ratelimiter.Success)
	return parseRetrieveResponse(body)
}

func (c *Client) post(ctx context.Context, envelope []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(envelope))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "Retrieve")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) {
	delay := time.Duration(float64(c.retryBaseDelay) * pow(c.retryBackoff, attempt))
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// parseRetrieveResponse parses a RetrieveResponseMsg body, detecting SOAP
// faults and extracting OverallStatus, RequestID, and the Results list.
func parseRetrieveResponse(body []byte) (*RetrieveResult, error) {
	root, err := ParseDocument(body)
	if err != nil {
		return nil, sfmcerr.New(sfmcerr.ParseError, "parsing soap response", err)
	}

	result := &RetrieveResult{}

	soapBody, ok := root.Find("Body")
	if !ok {
		result.Error = "no SOAP Body found"
		return result, nil
	}
	bodyNode, ok := soapBody.(Node)
	if !ok {
		result.Error = "malformed SOAP Body"
		return result, nil
	}

	if fault, ok := bodyNode.Find("Fault"); ok {
		if faultNode, ok := fault.(Node); ok {
			result.Error = faultNode.String("faultstring")
			if result.Error == "" {
				result.Error = "SOAP Fault"
			}
			return result, nil
		}
	}

	msg, ok := bodyNode.Find("RetrieveResponseMsg")
	if !ok {
		result.Error = "no RetrieveResponseMsg found"
		return result, nil
	}
	msgNode, ok := msg.(Node)
	if !ok {
		result.Error = "malformed RetrieveResponseMsg"
		return result, nil
	}

	result.OverallStatus = msgNode.String("OverallStatus")
	result.RequestID = msgNode.String("RequestID")
	result.OK = result.OverallStatus == "OK" || result.OverallStatus == "MoreDataAvailable"

	for _, raw := range msgNode.List("Results") {
		if n, ok := raw.(Node); ok {
			result.Objects = append(result.Objects, n)
		}
	}
	return result, nil
}
