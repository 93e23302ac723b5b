package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mapping "datamap-cloud/internal/mapping/domain"

	"github.com/stretchr/testify/require"
)

func TestClient_RequestSuggestions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/suggestions", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req map[string]int64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, int64(5), req["dataset_id"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"suggestions":{
			"customer":[{"source_column":"cust","target_field":"customer_name","confidence":0.9}],
			"Order":[{"source_column":"amount","target_field":"order_total","confidence":0.5}],
			"product":[]
		}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL+"/", WithToken("secret"))
	require.NoError(t, err)

	batch, err := client.RequestSuggestions(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, []mapping.Suggestion{{SourceColumn: "cust", TargetField: "customer_name", Confidence: 0.9}}, batch.Customer)
	require.Equal(t, []mapping.Suggestion{{SourceColumn: "amount", TargetField: "order_total", Confidence: 0.5}}, batch.Order)
	require.Empty(t, batch.Product)
}

func TestClient_StatusMapping(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		kind    error
		message string
	}{
		{name: "bad request json", status: http.StatusBadRequest, body: `{"error":"dataset 5 has no rows"}`, kind: mapping.ErrBadRequest, message: "dataset 5 has no rows"},
		{name: "bad request text", status: http.StatusBadRequest, body: "column limit exceeded\n", kind: mapping.ErrBadRequest, message: "column limit exceeded"},
		{name: "not found", status: http.StatusNotFound, kind: mapping.ErrNotFound, message: "please upload a dataset first"},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, kind: mapping.ErrInvalidIdentifier},
		{name: "server error", status: http.StatusInternalServerError, kind: mapping.ErrTransient},
		{name: "gateway", status: http.StatusBadGateway, kind: mapping.ErrTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client, err := NewClient(server.URL)
			require.NoError(t, err)
			_, err = client.RequestSuggestions(context.Background(), 5)
			require.ErrorIs(t, err, tc.kind)
			if tc.message != "" {
				require.Equal(t, tc.message, err.Error())
			}
		})
	}
}

func TestClient_InvalidPayloads(t *testing.T) {
	bodies := []string{
		`not json`,
		`{}`,
		`{"suggestions":{"invoice":[]}}`,
		`{"suggestions":{"order":[{"source_column":"a","target_field":"order_id","confidence":1.2}]}}`,
		`{"suggestions":{"order":[{"source_column":"","target_field":"order_id","confidence":0.4}]}}`,
		`{"suggestions":{"order":[{"source_column":"a","target_field":"order_id"}]}}`,
	}
	for _, body := range bodies {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		client, err := NewClient(server.URL)
		require.NoError(t, err)
		_, err = client.RequestSuggestions(context.Background(), 1)
		require.ErrorIs(t, err, mapping.ErrBadRequest, body)
		server.Close()
	}
}

func TestClient_TransportAndValidation(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)
	_, err = client.RequestSuggestions(context.Background(), 1)
	require.ErrorIs(t, err, mapping.ErrTransient)

	_, err = client.RequestSuggestions(context.Background(), 0)
	require.ErrorIs(t, err, mapping.ErrInvalidIdentifier)
}
