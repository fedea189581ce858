package transcribe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SquizAI/recipies01/internal/config"
	"github.com/SquizAI/recipies01/internal/resilience"
	"github.com/SquizAI/recipies01/internal/runner"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "audio.mp3")
	require.NoError(t, os.WriteFile(p, []byte("ID3 fake audio"), 0644))
	return p
}

func TestNewTranscriber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.TranscribeConfig
		want    any
		wantNil bool
		wantErr string
	}{
		{name: "none", cfg: config.TranscribeConfig{Provider: "none"}, wantNil: true},
		{name: "empty", cfg: config.TranscribeConfig{}, wantNil: true},
		{name: "openai", cfg: config.TranscribeConfig{Provider: "openai", Key: "k"}, want: &WhisperAPI{}},
		{name: "openai missing key", cfg: config.TranscribeConfig{Provider: "openai"}, wantErr: "openai provider requires transcribe.key"},
		{name: "groq", cfg: config.TranscribeConfig{Provider: "groq", Key: "k"}, want: &WhisperAPI{}},
		{name: "groq missing key", cfg: config.TranscribeConfig{Provider: "groq"}, wantErr: "groq provider requires transcribe.key"},
		{name: "local", cfg: config.TranscribeConfig{Provider: "local", ModelPath: "/m.bin"}, want: &WhisperCPP{}},
		{name: "local missing model", cfg: config.TranscribeConfig{Provider: "local"}, wantErr: "requires transcribe.model_path"},
		{name: "unknown", cfg: config.TranscribeConfig{Provider: "carrier-pigeon"}, wantErr: `unknown provider "carrier-pigeon"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr, err := NewTranscriber(tt.cfg, nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, tr)
				return
			}
			assert.IsType(t, tt.want, tr)
		})
	}
}

func TestNewTranscriber_ProviderDefaults(t *testing.T) {
	t.Parallel()

	tr, err := NewTranscriber(config.TranscribeConfig{Provider: "groq", Key: "k", Model: "whisper-1"}, nil)
	require.NoError(t, err)
	w := tr.(*WhisperAPI)
	assert.Equal(t, groqBaseURL, w.baseURL)
	assert.Equal(t, groqModel, w.model)

	tr, err = NewTranscriber(config.TranscribeConfig{Provider: "openai", Key: "k"}, nil)
	require.NoError(t, err)
	w = tr.(*WhisperAPI)
	assert.Equal(t, openAIBaseURL, w.baseURL)
	assert.Equal(t, "whisper-1", w.model)
}

func TestWhisperAPI_Transcribe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "text", r.FormValue("response_format"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close() //nolint:errcheck
		assert.Equal(t, "audio.mp3", hdr.Filename)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "ID3 fake audio", string(data))

		_, _ = w.Write([]byte("  Whisk two eggs with a cup of flour.\n")) //nolint:errcheck
	}))
	defer srv.Close()

	w := NewWhisperAPI(srv.URL+"/v1/", "test-key", "whisper-1", time.Second)
	text, err := w.Transcribe(context.Background(), writeAudio(t))
	require.NoError(t, err)
	assert.Equal(t, "Whisk two eggs with a cup of flour.", text)
}

func TestWhisperAPI_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, transient: false},
		{name: "rate limited", status: http.StatusTooManyRequests, transient: true},
		{name: "bad gateway", status: http.StatusBadGateway, transient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`)) //nolint:errcheck
			}))
			defer srv.Close()

			w := NewWhisperAPI(srv.URL, "k", "whisper-1", time.Second)
			_, err := w.Transcribe(context.Background(), writeAudio(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "api returned")
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
		})
	}
}

func TestWhisperAPI_MissingFile(t *testing.T) {
	t.Parallel()
	w := NewWhisperAPI("http://127.0.0.1:1", "k", "whisper-1", time.Second)
	_, err := w.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcribe: open")
}

func TestWhisperCPP_Transcribe(t *testing.T) {
	t.Parallel()

	var gotName string
	var gotArgs []string
	run := runner.Func(func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte("[00:00:00.000 --> 00:00:02.000]  Preheat the oven\n[00:00:02.000 --> 00:00:04.000]  to 350 degrees.\n"), nil
	})

	w := NewWhisperCPP("", "/models/ggml-base.en.bin", run)
	text, err := w.Transcribe(context.Background(), "/tmp/audio.mp3")
	require.NoError(t, err)
	assert.Equal(t, "Preheat the oven to 350 degrees.", text)
	assert.Equal(t, "whisper-cli", gotName)
	assert.Equal(t, []string{"-m", "/models/ggml-base.en.bin", "-f", "/tmp/audio.mp3", "-nt", "-np"}, gotArgs)
}

func TestWhisperCPP_Error(t *testing.T) {
	t.Parallel()
	run := runner.Func(func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	})
	_, err := NewWhisperCPP("/opt/whisper", "/m.bin", run).Transcribe(context.Background(), "a.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whisper.cpp")
}
