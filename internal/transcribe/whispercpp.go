package transcribe

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/SquizAI/recipies01/internal/runner"
)

// WhisperCPP transcribes with a local whisper.cpp CLI.
type WhisperCPP struct {
	bin   string
	model string
	run   runner.Runner
}

// NewWhisperCPP returns a local transcriber. If bin is empty, "whisper-cli" is used.
func NewWhisperCPP(bin, modelPath string, run runner.Runner) *WhisperCPP {
	if bin == "" {
		bin = "whisper-cli"
	}
	return &WhisperCPP{bin: bin, model: modelPath, run: run}
}

// timestampRe matches "[00:00:00.000 --> 00:00:02.000]" prefixes some builds
// print even with -nt.
var timestampRe = regexp.MustCompile(`(?m)^\[[0-9:.]+ --> [0-9:.]+\]\s*`)

// Transcribe runs whisper.cpp without timestamps and returns stdout.
func (w *WhisperCPP) Transcribe(ctx context.Context, audioPath string) (string, error) {
	out, err := w.run.Run(ctx, w.bin, "-m", w.model, "-f", audioPath, "-nt", "-np")
	if err != nil {
		return "", eris.Wrap(err, "transcribe: whisper.cpp")
	}
	text := timestampRe.ReplaceAllString(string(out), "")
	lines := strings.Fields(text)
	return strings.Join(lines, " "), nil
}
