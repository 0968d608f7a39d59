package quote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/types"
)

func TestClientQuote(t *testing.T) {
	var got QuoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"requestId":"r1","routing":"CLASSIC","quote":{"route":[[]]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", WithRateLimit(0))
	resp, err := c.Quote(context.Background(), QuoteRequest{Type: types.ExactInput, Amount: "100", TokenInChainID: 1})
	require.NoError(t, err)
	assert.Equal(t, "r1", resp.RequestID)
	assert.Equal(t, types.RoutingClassic, resp.Routing)
	assert.True(t, resp.HasQuote())
	assert.Equal(t, "100", got.Amount)
}

func TestClientErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errorCode":"ResourceNotFound","detail":"No quotes available"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", WithRateLimit(0)).Quote(context.Background(), QuoteRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "ResourceNotFound", apiErr.Code)
	assert.True(t, isNotFound(err))
}

func TestClientServerErrorTripsBreaker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", WithRateLimit(0))
	for i := 0; i < 7; i++ {
		_, err := c.Quote(context.Background(), QuoteRequest{})
		assert.Error(t, err)
	}
	assert.Equal(t, 5, calls)
}

func TestClientCheckApproval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/check_approval", r.URL.Path)
		w.Write([]byte(`{"requestId":"r","approval":{"to":"0xtoken","data":"0x095ea7b3","value":"0x00","chainId":1}}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "", WithRateLimit(0)).CheckApproval(context.Background(), ApprovalRequest{Token: "0xtoken"})
	require.NoError(t, err)
	require.NotNil(t, resp.Approval)
	assert.Equal(t, "0xtoken", resp.Approval.To)
	assert.Equal(t, types.ChainMainnet, resp.Approval.ChainID)
}
