package transcribe

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/SquizAI/recipies01/internal/resilience"
)

// WhisperAPI calls an OpenAI-compatible /audio/transcriptions endpoint.
// OpenAI and Groq both speak this protocol.
type WhisperAPI struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewWhisperAPI returns a client for baseURL (e.g. https://api.openai.com/v1).
func NewWhisperAPI(baseURL, apiKey, model string, timeout time.Duration) *WhisperAPI {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &WhisperAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Transcribe uploads the audio file and returns the plain-text transcript.
func (w *WhisperAPI) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", eris.Wrapf(err, "transcribe: open %s", audioPath)
	}
	defer f.Close() //nolint:errcheck

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("model", w.model)
	_ = mw.WriteField("response_format", "text")
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", eris.Wrap(err, "transcribe: create form file")
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", eris.Wrap(err, "transcribe: copy audio")
	}
	if err := mw.Close(); err != nil {
		return "", eris.Wrap(err, "transcribe: close form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", eris.Wrap(err, "transcribe: create request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "transcribe: api call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", eris.Wrap(err, "transcribe: read response")
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("transcribe: api returned %d: %s", resp.StatusCode, truncate(string(respBody), 300))
		if resilience.TransientStatus(resp.StatusCode) {
			return "", resilience.Transient(err, resp.StatusCode)
		}
		return "", err
	}

	return strings.TrimSpace(string(respBody)), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
