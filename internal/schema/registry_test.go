package schema

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistryClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testSchemaJSON))
	}))
	defer srv.Close()

	client := NewRegistryClient(srv.URL, 5*time.Second, 1, nil, time.Hour, zap.NewNop())
	doc, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "chart", doc.Defaults()["tab"])
}

func TestRegistryClientFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewRegistryClient(srv.URL, 2*time.Second, 1, nil, time.Hour, zap.NewNop())
	_, err := client.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaUnavailable)
}

func TestRegistryClientUnparseableSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := NewRegistryClient(srv.URL, 2*time.Second, 1, nil, time.Hour, zap.NewNop())
	_, err := client.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaUnavailable)
}
