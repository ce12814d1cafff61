// Package restclient implements the paginated JSON transport every REST-backed
// extractor goes through. It layers the core spec's retry and 401-recovery
// policy on top of a hashicorp/go-retryablehttp client.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rudderlabs/rudder-go-kit/config"
	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/ratelimiter"
	"github.com/rudderlabs/sfmc-inventory/sfmcerr"
)

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// TokenSource is the subset of the Token Manager this transport depends on.
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context, reason string) (string, error)
}

// Response is the normalized shape every request call returns, mirroring the
// core spec's {ok, status, data|error} contract.
type Response struct {
	OK     bool
	Status int
	Data   json.RawMessage
	Error  string
}

// Client is the REST transport. One instance is shared by every REST-backed
// extractor in a run, each scoped to its own kind via WithKind so the rate
// limiter's per-kind state machine gates the right calls.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *retryablehttp.Client
	log     logger.Logger

	limiter *ratelimiter.Limiter
	kind    string
}

func New(baseURL string, tokens TokenSource, requestTimeout time.Duration, log logger.Logger) *Client {
	maxAttempts := config.GetIntVar(3, 1, "SfmcInventory.RestClient.maxAttempts")
	retryBaseDelay := config.GetDurationVar(1, time.Second, "SfmcInventory.RestClient.retryBaseDelay")
	defaultRateDelay := config.GetDurationVar(60, time.Second, "SfmcInventory.RestClient.defaultRateDelay")

	rc := retryablehttp.NewClient()
	rc.RetryMax = maxAttempts - 1
	rc.RetryWaitMin = retryBaseDelay
	rc.RetryWaitMax = 30 * time.Second
	rc.HTTPClient.Timeout = requestTimeout
	rc.Logger = nil // structured logging is handled by us, not the library's own logger
	rc.CheckRetry = checkRetry
	rc.Backoff = backoffWithJitterAndRetryAfter(retryBaseDelay, defaultRateDelay)

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    rc,
		log:     log.Child("rest-client"),
	}
}

// WithKind returns a shallow copy of c that gates every request through
// limiter under the given kind before it goes out on the wire. The
// underlying retryablehttp.Client, and therefore its connection pool, is
// shared with the original.
func (c *Client) WithKind(limiter *ratelimiter.Limiter, kind string) *Client {
	clone := *c
	clone.limiter = limiter
	clone.kind = kind
	return &clone
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp == nil {
		return true, nil
	}
	return retryableStatus[resp.StatusCode], nil
}

// backoffWithJitterAndRetryAfter returns a retryablehttp.Backoff closed over
// this client's retryBaseDelay/defaultRateDelay, both read once from
// rudder-go-kit/config at construction time rather than hardcoded.
func backoffWithJitterAndRetryAfter(retryBaseDelay, defaultRateDelay time.Duration) retryablehttp.Backoff {
	return func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			if d, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
				return d
			}
			return defaultRateDelay
		}

		base := retryBaseDelay * (1 << attemptNum)
		jitter := time.Duration((rand.Float64()*0.4 - 0.2) * float64(base)) // +/-20%
		d := base + jitter
		if d < min {
			d = min
		}
		if d > max {
			d = max
		}
		return d
	}
}

func parseRetryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// Request performs a single REST call with the full retry and 401-recovery
// policy. body, if non-nil, is JSON-marshaled as the request payload.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body interface{}) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, sfmcerr.New(sfmcerr.ParseError, "marshaling request body", err)
		}
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	usedForcedRefresh := false
	for attempt := 1; attempt <= 2; attempt++ {
		token, err := c.tokens.GetToken(ctx)
		if err != nil {
			return nil, err
		}

		req, err := retryablehttp.NewRequestWithContext(ctx, method, fullURL, bytesReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		var release func(ratelimiter.Outcome)
		if c.limiter != nil {
			rel, err := c.limiter.Acquire(ctx, c.kind)
			if err != nil {
				return nil, sfmcerr.New(sfmcerr.Canceled, "rate limiter wait canceled", err)
			}
			release = rel
		}

		resp, doErr := c.http.Do(req)
		if doErr != nil {
			if release != nil {
				release(ratelimiter.Failure)
			}
			if ctx.Err() != nil {
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return nil, sfmcerr.New(sfmcerr.ExtractorTimeout, fmt.Sprintf("%s %s exceeded extractor timeout", method, path), ctx.Err())
				}
				return nil, sfmcerr.New(sfmcerr.Canceled, "request canceled", ctx.Err())
			}
			return nil, sfmcerr.New(sfmcerr.HTTPRetryableExhausted, fmt.Sprintf("%s %s", method, path), doErr)
		}
		defer resp.Body.Close()

		if release != nil {
			outcome := ratelimiter.Success
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
				outcome = ratelimiter.Failure
			}
			release(outcome)
		}

		if resp.StatusCode == http.StatusUnauthorized && !usedForcedRefresh {
			usedForcedRefresh = true
			if _, err := c.tokens.ForceRefresh(ctx, "401 from "+path); err != nil {
				return nil, err
			}
			continue
		}

		return c.toResponse(resp)
	}

	return nil, sfmcerr.New(sfmcerr.AuthFailed, fmt.Sprintf("%s %s returned 401 after forced token refresh", method, path), nil)
}

func bytesReader(b []byte) io.ReadSeeker {
	if b == nil {
		return nil
	}
	return bytes.NewReader(b)
}

func (c *Client) toResponse(resp *http.Response) (*Response, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, sfmcerr.New(sfmcerr.ParseError, "reading response body", err)
	}

	out := &Response{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
	}
	if out.OK {
		out.Data = json.RawMessage(data)
	} else {
		out.Error = string(data)
		if !retryableStatus[resp.StatusCode] {
			return out, sfmcerr.New(sfmcerr.HTTPNonRetryable, fmt.Sprintf("status %d", resp.StatusCode), nil)
		}
		return out, sfmcerr.New(sfmcerr.HTTPRetryableExhausted, fmt.Sprintf("status %d after retries", resp.StatusCode), nil)
	}
	return out, nil
}

// Page is one page of a paginated REST collection response.
type Page struct {
	Items []json.RawMessage
	Page  int
}

// PageFetcher fetches a single page at the given 1-based page number.
type PageFetcher func(ctx context.Context, page, pageSize int) ([]json.RawMessage, error)

// Paginate drives a REST collection endpoint to completion, calling fetch for
// each page and yielding items to onPage. It stops when a page returns fewer
// items than pageSize, or an empty page, or the hard page ceiling is hit.
func Paginate(ctx context.Context, pageSize int, fetch PageFetcher, onPage func(Page) error) error {
	if pageSize <= 0 {
		pageSize = config.GetIntVar(50, 1, "SfmcInventory.RestClient.defaultPageSize")
	}
	maxPageCeiling := config.GetIntVar(10000, 1, "SfmcInventory.RestClient.maxPageCeiling")

	for page := 1; page <= maxPageCeiling; page++ {
		items, err := fetch(ctx, page, pageSize)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		if err := onPage(Page{Items: items, Page: page}); err != nil {
			return err
		}
		if len(items) < pageSize {
			return nil
		}
	}
	return nil
}
