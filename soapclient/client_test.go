package soapclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	token     string
	refreshes atomic.Int32
}

func (f *fakeTokens) GetToken(ctx context.Context) (string, error) { return f.token, nil }
func (f *fakeTokens) ForceRefresh(ctx context.Context, reason string) (string, error) {
	f.refreshes.Add(1)
	f.token = "refreshed"
	return f.token, nil
}

const okPageTemplate = `<?xml version="1.0"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <RetrieveResponseMsg xmlns="http://exacttarget.com/wsdl/partnerAPI">
      <OverallStatus>%s</OverallStatus>
      <RequestID>%s</RequestID>
      <Results>
        <CustomerKey>de-1</CustomerKey>
        <Name>First DE</Name>
      </Results>
    </RetrieveResponseMsg>
  </soap:Body>
</soap:Envelope>`

func TestRetrieve_ParsesResultsAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, okPageTemplate, "OK", "")
	}))
	defer srv.Close()

	c := New(srv.URL, &fakeTokens{token: "tok"}, 5*time.Second, logger.NOP)
	result, err := c.Retrieve(context.Background(), "DataExtension", []string{"CustomerKey", "Name"}, nil)
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Len(t, result.Objects, 1)
	require.Equal(t, "de-1", result.Objects[0].String("CustomerKey"))
}

func TestRetrieveAllPages_FollowsContinueRequestUntilDone(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n < 3 {
			_, _ = fmt.Fprintf(w, okPageTemplate, "MoreDataAvailable", "req-1")
			return
		}
		_, _ = fmt.Fprintf(w, okPageTemplate, "OK", "")
	}))
	defer srv.Close()

	c := New(srv.URL, &fakeTokens{token: "tok"}, 5*time.Second, logger.NOP)
	objects, err := c.RetrieveAllPages(context.Background(), "DataExtension", []string{"CustomerKey"}, nil)
	require.NoError(t, err)
	require.Len(t, objects, 3)
	require.Equal(t, int32(3), calls.Load())
}

func TestRetrieve_401TriggersForcedRefresh(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = fmt.Fprintf(w, okPageTemplate, "OK", "")
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: "tok"}
	c := New(srv.URL, tokens, 5*time.Second, logger.NOP)
	result, err := c.Retrieve(context.Background(), "DataExtension", []string{"CustomerKey"}, nil)
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Equal(t, int32(1), tokens.refreshes.Load())
}

func TestParseRetrieveResponse_Fault(t *testing.T) {
	body := []byte(`<?xml version="1.0"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <soap:Fault><faultstring>boom</faultstring></soap:Fault>
  </soap:Body>
</soap:Envelope>`)
	result, err := parseRetrieveResponse(body)
	require.NoError(t, err)
	require.False(t, result.OK)
	require.Equal(t, "boom", result.Error)
}
