package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/monlai-dev/tip-pipeline/internal/worker/reference"
)

func newTestServer(t *testing.T) *Server {
	svc, err := reference.New("eng_Latn")
	require.NoError(t, err)
	return New(svc, zap.NewNop())
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body["ready"])
}

func TestHandleDetectLanguage(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/detect-language", detectLanguageRequest{Text: "bonjour"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp detectLanguageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "fr", resp.Language)
}

func TestHandleTranslate(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/translate", translateRequest{Text: "hola"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp translateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "hello", resp.TranslatedText)
	require.Equal(t, "es", resp.SourceLanguage)
}

func TestHandleEmbed_FixedDimension(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/embed", embedRequest{Text: "avoid the tourist restaurants"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp embedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Vector, 384)
}

func TestHandleProcessBatch_OrderAndPerItemError(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/process-batch", batchRequest{Items: []batchItem{
		{ID: 1, Text: "bonjour"},
		{ID: 2, Text: ""},
	}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)

	require.Equal(t, int64(1), resp.Results[0].ID)
	require.Equal(t, "hello", resp.Results[0].TranslatedText)
	require.Empty(t, resp.Results[0].Error)
	require.Len(t, resp.Results[0].Vector, 384)

	require.Equal(t, int64(2), resp.Results[1].ID)
	require.NotEmpty(t, resp.Results[1].Error)
	require.Empty(t, resp.Results[1].Vector)
}

func TestHandleProcessBatch_MalformedBody(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/process-batch", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
