// Package auth implements the single-flight OAuth2 client-credentials token
// cache every transport in this module authenticates through.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rudderlabs/rudder-go-kit/config"
	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/sfmcerr"
)

// Doer is satisfied by *http.Client and by test doubles.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type tokenCache struct {
	accessToken string
	expiresAt   time.Time
}

// validAt reports whether the cached token is still usable at now, given
// skew subtracted from the token's reported expiry so that a token about to
// expire mid-request is refreshed proactively rather than used.
func (t tokenCache) validAt(now time.Time, skew time.Duration) bool {
	return t.accessToken != "" && now.Before(t.expiresAt.Add(-skew))
}

// TokenManager holds at most one valid access token at a time and collapses
// concurrent refreshes into a single network exchange.
type TokenManager struct {
	authBase     string
	clientID     string
	clientSecret string
	accountID    string
	httpClient   Doer
	log          logger.Logger

	mu              sync.Mutex
	cond            *sync.Cond
	cache           tokenCache
	refreshing      bool
	lastRefreshErr  error

	// expirySkew is subtracted from the token's reported expiry so that a
	// token about to expire mid-request is refreshed proactively rather than
	// used.
	expirySkew time.Duration
	// refreshAttempts is the bounded attempt count for the OAuth2 exchange
	// itself, independent of the REST transport's own retry policy.
	refreshAttempts int
}

func NewTokenManager(authBase, clientID, clientSecret, accountID string, httpClient Doer, log logger.Logger) *TokenManager {
	tm := &TokenManager{
		authBase:        strings.TrimRight(authBase, "/"),
		clientID:        clientID,
		clientSecret:    clientSecret,
		accountID:       accountID,
		httpClient:      httpClient,
		log:             log.Child("token-manager"),
		expirySkew:      config.GetDurationVar(60, time.Second, "SfmcInventory.TokenManager.expirySkew"),
		refreshAttempts: config.GetIntVar(3, 1, "SfmcInventory.TokenManager.refreshAttempts"),
	}
	tm.cond = sync.NewCond(&tm.mu)
	return tm
}

// GetToken returns the current access token, refreshing it first if it is
// stale. Concurrent callers that all observe a stale token collapse into a
// single outstanding network exchange; every caller receives the same
// resulting token (or the same error).
func (tm *TokenManager) GetToken(ctx context.Context) (string, error) {
	tm.mu.Lock()
	now := time.Now()
	if tm.cache.validAt(now, tm.expirySkew) {
		tok := tm.cache.accessToken
		tm.mu.Unlock()
		return tok, nil
	}

	if tm.refreshing {
		for tm.refreshing {
			tm.cond.Wait()
		}
		// Re-check: the winning refresher may have succeeded, failed, or
		// another waiter may have raced us to start a new refresh.
		if tm.cache.validAt(time.Now(), tm.expirySkew) {
			tok := tm.cache.accessToken
			tm.mu.Unlock()
			return tok, nil
		}
		if tm.lastRefreshErr != nil {
			err := tm.lastRefreshErr
			tm.mu.Unlock()
			return "", err
		}
	}

	tm.refreshing = true
	tm.mu.Unlock()

	tok, err := tm.doRefreshWithRetry(ctx)

	tm.mu.Lock()
	tm.refreshing = false
	tm.lastRefreshErr = err
	if err == nil {
		tm.cache = tokenCache{accessToken: tok.AccessToken, expiresAt: time.Now().Add(tok.ExpiresIn)}
	}
	tm.cond.Broadcast()
	tm.mu.Unlock()

	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// ForceRefresh invalidates the current token and obtains a new one under the
// same single-flight discipline as GetToken. reason is carried only for
// logging.
func (tm *TokenManager) ForceRefresh(ctx context.Context, reason string) (string, error) {
	tm.mu.Lock()
	if tm.refreshing {
		for tm.refreshing {
			tm.cond.Wait()
		}
		if tm.lastRefreshErr == nil && tm.cache.accessToken != "" {
			tok := tm.cache.accessToken
			tm.mu.Unlock()
			return tok, nil
		}
		if tm.lastRefreshErr != nil {
			err := tm.lastRefreshErr
			tm.mu.Unlock()
			return "", err
		}
	}
	tm.cache = tokenCache{}
	tm.refreshing = true
	tm.mu.Unlock()

	tm.log.Infow("forcing token refresh", "reason", reason)

	tok, err := tm.doRefreshWithRetry(ctx)

	tm.mu.Lock()
	tm.refreshing = false
	tm.lastRefreshErr = err
	if err == nil {
		tm.cache = tokenCache{accessToken: tok.AccessToken, expiresAt: time.Now().Add(tok.ExpiresIn)}
	}
	tm.cond.Broadcast()
	tm.mu.Unlock()

	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

type tokenExchangeResult struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// doRefreshWithRetry performs the OAuth2 client-credentials exchange with a
// bounded exponential backoff distinct from the REST transport's own policy.
func (tm *TokenManager) doRefreshWithRetry(ctx context.Context) (tokenExchangeResult, error) {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(tm.refreshAttempts-1))
	b = backoff.WithContext(b, ctx)

	var result tokenExchangeResult
	op := func() error {
		r, err := tm.doRefresh(ctx)
		if err != nil {
			tm.log.Warnw("token refresh attempt failed", "error", err)
			return err
		}
		result = r
		return nil
	}

	if err := backoff.Retry(op, b); err != nil {
		return tokenExchangeResult{}, sfmcerr.New(sfmcerr.AuthFailed, "oauth2 client-credentials exchange exhausted retries", err)
	}
	return result, nil
}

type oauthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (tm *TokenManager) doRefresh(ctx context.Context) (tokenExchangeResult, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {tm.clientID},
		"client_secret": {tm.clientSecret},
		"account_id":    {tm.accountID},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tm.authBase+"/v2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return tokenExchangeResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return tokenExchangeResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tokenExchangeResult{}, fmt.Errorf("oauth2 exchange returned status %d", resp.StatusCode)
	}

	var parsed oauthResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return tokenExchangeResult{}, sfmcerr.New(sfmcerr.ParseError, "decoding oauth2 response", err)
	}
	if parsed.AccessToken == "" {
		return tokenExchangeResult{}, fmt.Errorf("oauth2 exchange returned empty access_token")
	}

	expiresIn := 1200 * time.Second
	if parsed.ExpiresIn > 0 {
		expiresIn = time.Duration(parsed.ExpiresIn) * time.Second
	}
	return tokenExchangeResult{AccessToken: parsed.AccessToken, ExpiresIn: expiresIn}, nil
}
