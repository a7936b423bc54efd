package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAudioFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio_000.ogg")
	require.NoError(t, os.WriteFile(path, []byte("fake-ogg-bytes"), 0600))
	return path
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient("")
	assert.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestOpenAIClient_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "json", r.FormValue("response_format"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "audio_000.ogg", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "  hello there  "})
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("test-key", WithBaseURL(srv.URL), WithModels("whisper-1", ""))
	require.NoError(t, err)

	text, err := c.Transcribe(context.Background(), writeAudioFixture(t))
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
}

func TestOpenAIClient_TranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Transcribe(context.Background(), writeAudioFixture(t))
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAIClient_Title(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, "the transcript below")
		assert.Contains(t, req.Messages[1].Content, "we talked about birds")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": " Birds of a Feather \n"}},
			},
		})
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("test-key", WithBaseURL(srv.URL), WithModels("", "gpt-4o-mini"))
	require.NoError(t, err)

	title, err := c.Title(context.Background(), "we talked about birds")
	require.NoError(t, err)
	assert.Equal(t, "Birds of a Feather", title)
}

func TestOpenAIClient_TitleEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Title(context.Background(), "something")
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestOpenAIClient_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := NewOpenAIClient("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Title(ctx, "something")
	assert.True(t, errors.Is(err, context.Canceled))
}
