// Package transcribe turns extracted audio into text, either through an
// OpenAI-compatible Whisper API or a local whisper.cpp binary.
package transcribe

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/SquizAI/recipies01/internal/config"
	"github.com/SquizAI/recipies01/internal/runner"
)

// Transcriber converts an audio file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

const (
	openAIBaseURL = "https://api.openai.com/v1"
	groqBaseURL   = "https://api.groq.com/openai/v1"
	groqModel     = "whisper-large-v3"
)

// NewTranscriber builds the configured provider. A provider of "none" (or
// empty) returns nil, which disables transcription.
func NewTranscriber(cfg config.TranscribeConfig, run runner.Runner) (Transcriber, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second

	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		if cfg.Key == "" {
			return nil, eris.New("transcribe: openai provider requires transcribe.key")
		}
		return NewWhisperAPI(pick(cfg.BaseURL, openAIBaseURL), cfg.Key, pick(cfg.Model, "whisper-1"), timeout), nil
	case "groq":
		if cfg.Key == "" {
			return nil, eris.New("transcribe: groq provider requires transcribe.key")
		}
		model := cfg.Model
		if model == "" || model == "whisper-1" {
			model = groqModel
		}
		return NewWhisperAPI(pick(cfg.BaseURL, groqBaseURL), cfg.Key, model, timeout), nil
	case "local":
		if cfg.ModelPath == "" {
			return nil, eris.New("transcribe: local provider requires transcribe.model_path")
		}
		if run == nil {
			run = runner.Exec{}
		}
		return NewWhisperCPP(cfg.WhisperPath, cfg.ModelPath, run), nil
	default:
		return nil, eris.Errorf("transcribe: unknown provider %q", cfg.Provider)
	}
}

func pick(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
