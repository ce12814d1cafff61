package restclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	refreshes atomic.Int32
	token     string
}

func (f *fakeTokens) GetToken(ctx context.Context) (string, error) { return f.token, nil }
func (f *fakeTokens) ForceRefresh(ctx context.Context, reason string) (string, error) {
	f.refreshes.Add(1)
	f.token = "refreshed"
	return f.token, nil
}

func TestRequest_401TriggersExactlyOneForcedRefresh(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.Equal(t, "Bearer refreshed", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: "initial"}
	c := New(srv.URL, tokens, 5*time.Second, logger.NOP)

	resp, err := c.Request(context.Background(), http.MethodGet, "/thing", nil, nil)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, int32(1), tokens.refreshes.Load())
	require.Equal(t, int32(2), calls.Load())
}

func TestRequest_SecondConsecutive401IsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: "initial"}
	c := New(srv.URL, tokens, 5*time.Second, logger.NOP)

	_, err := c.Request(context.Background(), http.MethodGet, "/thing", nil, nil)
	require.Error(t, err)
	require.Equal(t, int32(1), tokens.refreshes.Load())
}

func TestRequest_RetryAfterOn429IsHonored(t *testing.T) {
	var calls atomic.Int32
	var firstAt, secondAt time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 1 {
			firstAt = time.Now()
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		secondAt = time.Now()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: "initial"}
	c := New(srv.URL, tokens, 5*time.Second, logger.NOP)

	resp, err := c.Request(context.Background(), http.MethodGet, "/thing", nil, nil)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.GreaterOrEqual(t, secondAt.Sub(firstAt), 900*time.Millisecond)
}

func TestPaginate_StopsOnShortPage(t *testing.T) {
	pages := [][]json.RawMessage{
		{[]byte(`1`), []byte(`2`)},
		{[]byte(`3`)},
	}
	var fetched []Page
	err := Paginate(context.Background(), 2, func(ctx context.Context, page, pageSize int) ([]json.RawMessage, error) {
		if page > len(pages) {
			return nil, nil
		}
		return pages[page-1], nil
	}, func(p Page) error {
		fetched = append(fetched, p)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, fetched, 2)
}

func TestPaginate_EmptyPageEndsImmediately(t *testing.T) {
	var fetched int
	err := Paginate(context.Background(), 50, func(ctx context.Context, page, pageSize int) ([]json.RawMessage, error) {
		return nil, nil
	}, func(p Page) error {
		fetched++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, fetched)
}
