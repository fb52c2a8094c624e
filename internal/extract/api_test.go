package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sur-analytics/opiniones-etl/internal/config"
)

func TestAPIExtractor_Opinions(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/api/comments", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"idOpinion":"A1","idCliente":"C001","idProducto":"P001","fecha":"2025-03-01T00:00:00Z","comentario":"Bien","puntuacion":4.5},
			{"id":"A2","idCliente":"C002","comentario":"Regular"}
		]`))
	}))
	defer srv.Close()

	e := NewAPIExtractor(config.APIConfig{
		BaseURL:  srv.URL,
		Endpoint: "/api/comments",
		Key:      "secreto",
	})

	got, err := e.Opinions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Bearer secreto", gotAuth)
	assert.Equal(t, "A1", got[0].ID)
	assert.Equal(t, "C001", got[0].ClientID)
	require.NotNil(t, got[0].Score)
	assert.Equal(t, 4.5, *got[0].Score)

	// "id" field also works as the identifier.
	assert.Equal(t, "A2", got[1].ID)
	assert.Nil(t, got[1].Score)
	assert.True(t, got[1].Date.IsZero())
}

func TestAPIExtractor_NotConfigured(t *testing.T) {
	e := NewAPIExtractor(config.APIConfig{})
	got, err := e.Opinions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAPIExtractor_ServerErrorDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewAPIExtractor(config.APIConfig{BaseURL: srv.URL, Endpoint: "/api/comments"})
	got, err := e.Opinions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAPIExtractor_UnreachableDegradesToEmpty(t *testing.T) {
	e := NewAPIExtractor(config.APIConfig{BaseURL: "http://127.0.0.1:1", Endpoint: "/api/comments"})
	got, err := e.Opinions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAPIExtractor_MalformedPayloadDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"no": "es una lista"}`))
	}))
	defer srv.Close()

	e := NewAPIExtractor(config.APIConfig{BaseURL: srv.URL, Endpoint: "/api/comments"})
	got, err := e.Opinions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
