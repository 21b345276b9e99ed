package groq

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:      server.URL,
		APIKey:       "test-key",
		WhisperModel: "whisper-large-v3",
		ExtractModel: "extract-model",
		AnswerModel:  "answer-model",
	})
	require.NoError(t, err)
	return client
}

func TestNewClientMissingKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestTranscribe(t *testing.T) {
	audioPath := filepath.Join(t.TempDir(), "session.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("RIFF-fake-audio"), 0o644))

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-large-v3", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "session.wav", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "hello from the meeting", "duration": 1.5}`))
	})

	text, err := client.Transcribe(context.Background(), audioPath)
	require.NoError(t, err)
	assert.Equal(t, "hello from the meeting", text)
}

func TestTranscribeMissingFile(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.Transcribe(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	assert.Error(t, err)
}

func TestTranscribeServerError(t *testing.T) {
	audioPath := filepath.Join(t.TempDir(), "session.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("x"), 0o644))

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "model overloaded"}`, http.StatusServiceUnavailable)
	})

	_, err := client.Transcribe(context.Background(), audioPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestChatComplete(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "answer-model", req["model"])

		messages := req["messages"].([]any)
		require.Len(t, messages, 2)
		first := messages[0].(map[string]any)
		assert.Equal(t, "system", first["role"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [{"message": {"content": "the answer"}}]}`))
	})

	got, err := client.ChatComplete(context.Background(), "answer-model", "be strict", "question?", 0)
	require.NoError(t, err)
	assert.Equal(t, "the answer", got)
}

func TestChatCompleteOmitsEmptySystem(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req["messages"].([]any), 1)

		w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	})

	_, err := client.ChatComplete(context.Background(), "m", "", "prompt", 0.25)
	assert.NoError(t, err)
}

func TestChatCompleteNoChoices(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	})

	_, err := client.ChatComplete(context.Background(), "m", "", "prompt", 0)
	assert.Error(t, err)
}

func TestBoundGenerators(t *testing.T) {
	var models []string
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		models = append(models, req["model"].(string))
		w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	})

	_, err := client.Extractor().Complete(context.Background(), "", "p")
	require.NoError(t, err)
	_, err = client.Answerer().Complete(context.Background(), "", "p")
	require.NoError(t, err)

	assert.Equal(t, []string{"extract-model", "answer-model"}, models)
}
