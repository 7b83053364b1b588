package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"playground.evalgo.org/operations"
)

func TestHTTPFetcher_DecodesSnapshot(t *testing.T) {
	total := 3
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/operation-status/op-1", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		json.NewEncoder(w).Encode(operations.Snapshot{
			ID:     "op-1",
			Kind:   operations.KindStartGroup,
			Label:  "LAMP",
			Status: operations.StatusRunning,
			Total:  &total,
		})
	}))
	defer server.Close()

	fetcher := newHTTPFetcher(server.URL, "secret")
	snapshot, err := fetcher.FetchStatus(context.Background(), "op-1")

	require.NoError(t, err)
	assert.Equal(t, "op-1", snapshot.ID)
	assert.Equal(t, operations.KindStartGroup, snapshot.Kind)
	require.NotNil(t, snapshot.Total)
	assert.Equal(t, 3, *snapshot.Total)
}

func TestHTTPFetcher_UnknownOperationIsNilWithoutError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	snapshot, err := newHTTPFetcher(server.URL, "").FetchStatus(context.Background(), "nope")

	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestHTTPFetcher_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newHTTPFetcher(server.URL, "").FetchStatus(context.Background(), "op-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
