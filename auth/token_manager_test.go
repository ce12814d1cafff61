package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/stretchr/testify/require"
)

func TestGetToken_ConcurrentCallersShareOneExchange(t *testing.T) {
	var exchanges atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":1200}`))
	}))
	defer srv.Close()

	tm := NewTokenManager(srv.URL, "id", "secret", "mid", srv.Client(), logger.NOP)

	const n = 20
	var wg sync.WaitGroup
	tokens := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := tm.GetToken(context.Background())
			tokens[i] = tok
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "tok-1", tokens[i])
	}
	require.Equal(t, int32(1), exchanges.Load())
}

func TestGetToken_CachedTokenReused(t *testing.T) {
	var exchanges atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":1200}`))
	}))
	defer srv.Close()

	tm := NewTokenManager(srv.URL, "id", "secret", "mid", srv.Client(), logger.NOP)

	tok1, err := tm.GetToken(context.Background())
	require.NoError(t, err)
	tok2, err := tm.GetToken(context.Background())
	require.NoError(t, err)

	require.Equal(t, tok1, tok2)
	require.Equal(t, int32(1), exchanges.Load())
}

func TestForceRefresh_ObtainsNewToken(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":1200}`))
		} else {
			_, _ = w.Write([]byte(`{"access_token":"tok-2","expires_in":1200}`))
		}
	}))
	defer srv.Close()

	tm := NewTokenManager(srv.URL, "id", "secret", "mid", srv.Client(), logger.NOP)

	tok1, err := tm.GetToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", tok1)

	tok2, err := tm.ForceRefresh(context.Background(), "got a 401")
	require.NoError(t, err)
	require.Equal(t, "tok-2", tok2)
}

func TestGetToken_RefreshFailureSurfacesToAllWaiters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tm := NewTokenManager(srv.URL, "id", "secret", "mid", srv.Client(), logger.NOP)

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := tm.GetToken(context.Background())
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.Error(t, errs[i])
	}
}
