package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	// Replace global logger with a no-op to avoid nil pointer panics in tests.
	zap.ReplaceGlobals(zap.NewNop())
}

func TestHealth(t *testing.T) {
	srv := New(0)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListComments_Seeded(t *testing.T) {
	srv := New(0)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/comments", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var comments []Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &comments))
	require.Len(t, comments, 1)
	assert.NotEmpty(t, comments[0].ID)
	assert.Equal(t, "C001", comments[0].ClientID)
	require.NotNil(t, comments[0].Score)
	assert.Equal(t, 4.5, *comments[0].Score)
}

func TestCreateComment(t *testing.T) {
	srv := New(0)
	router := srv.Router()

	body := `{"idCliente":"C009","idProducto":"P003","comentario":"Nuevo"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/comments", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)

	var created Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID, "missing id gets generated")
	assert.NotEmpty(t, created.Date, "missing date gets stamped")

	// The new comment shows up in the list.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/comments", nil))
	var comments []Comment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &comments))
	assert.Len(t, comments, 2)
}

func TestCreateComment_InvalidBody(t *testing.T) {
	srv := New(0)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/comments", strings.NewReader("no es json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
