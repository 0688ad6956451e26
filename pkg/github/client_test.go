package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) ContentsClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "wizzzzard333-ctrl", "m3u-playlist", "main", "videos.json", zap.NewNop())
}

func TestFetchDecodesContentAndSHA(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/repos/wizzzzard333-ctrl/m3u-playlist/contents/videos.json", r.URL.Path)
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		assert.Equal(t, "token ghp_secret", r.Header.Get("Authorization"))
		assert.Equal(t, "M3U-Bot", r.Header.Get("User-Agent"))

		// base64 with a line break in the middle, the way the API wraps it
		encoded := base64.StdEncoding.EncodeToString([]byte(`[{"title":"a","url":"u","duration":-1}]`))
		wrapped := encoded[:20] + "\n" + encoded[20:]

		_ = json.NewEncoder(w).Encode(map[string]string{
			"content": wrapped,
			"sha":     "abc123",
		})
	})

	file, err := client.Fetch(context.Background(), "ghp_secret")
	require.NoError(t, err)
	assert.Equal(t, "abc123", file.SHA)
	assert.JSONEq(t, `[{"title":"a","url":"u","duration":-1}]`, string(file.Content))
}

func TestFetchPropagatesAPIErrorMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
	})

	_, err := client.Fetch(context.Background(), "ghp_secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Not Found")
}

func TestWriteSendsConditionalUpdate(t *testing.T) {
	var got updateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/repos/wizzzzard333-ctrl/m3u-playlist/contents/videos.json", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{}"))
	})

	err := client.Write(context.Background(), "ghp_secret", []byte("[]"), "abc123", "Clear all videos")
	require.NoError(t, err)

	assert.Equal(t, "Clear all videos", got.Message)
	assert.Equal(t, "abc123", got.SHA)
	assert.Equal(t, "main", got.Branch)

	decoded, err := base64.StdEncoding.DecodeString(got.Content)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(decoded))
}

func TestWriteReturnsErrConflictOnStaleSHA(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "videos.json does not match abc123"})
	})

	err := client.Write(context.Background(), "ghp_secret", []byte("[]"), "abc123", "Add video: x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestWritePropagatesAPIErrorMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Resource not accessible by personal access token"})
	})

	err := client.Write(context.Background(), "ghp_secret", []byte("[]"), "abc123", "Add video: x")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Contains(t, err.Error(), "Resource not accessible")
}
