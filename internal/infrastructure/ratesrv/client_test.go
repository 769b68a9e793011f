package ratesrv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchRate_KeepsEveryDigit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"crypto":[{"asset":{"pluginId":"bitcoin"},"rate":0.12345678901234567890123}]}`))
	}))
	defer srv.Close()

	rate, err := NewClient(srv.URL, time.Second).FetchRate(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "0.12345678901234567890123", rate.String())
}

func TestFetchRate_SendsQueryAndParsesRate(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/rates", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"targetFiat":"USD","crypto":[{"asset":{"pluginId":"bitcoin","tokenId":null},"rate":50000.5}],"fiat":[]}`))
	}))
	defer srv.Close()

	rate, err := NewClient(srv.URL, time.Second).FetchRate(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "50000.5", rate.String())

	assert.Equal(t, "USD", got["targetFiat"])
	crypto := got["crypto"].([]interface{})
	require.Len(t, crypto, 1)
	asset := crypto[0].(map[string]interface{})["asset"].(map[string]interface{})
	assert.Equal(t, "bitcoin", asset["pluginId"])
	assert.Contains(t, asset, "tokenId")
	assert.Nil(t, asset["tokenId"])
	assert.Equal(t, []interface{}{}, got["fiat"])
}

func TestFetchRate_Failures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, `{}`},
		{"malformed json", http.StatusOK, `{"crypto":`},
		{"wrong shape", http.StatusOK, `{"crypto":{"rate":1}}`},
		{"empty crypto", http.StatusOK, `{"crypto":[]}`},
		{"missing rate", http.StatusOK, `{"crypto":[{"asset":{"pluginId":"bitcoin"}}]}`},
		{"null rate", http.StatusOK, `{"crypto":[{"rate":null}]}`},
		{"zero rate", http.StatusOK, `{"crypto":[{"rate":0}]}`},
		{"string rate", http.StatusOK, `{"crypto":[{"rate":"50000"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).FetchRate(context.Background(), "bitcoin")
			assert.Error(t, err)
		})
	}
}

func TestFetchRate_HonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewClient(srv.URL, 5*time.Second).FetchRate(ctx, "bitcoin")
	assert.Error(t, err)
}
