// Package runner runs external command-line tools (yt-dlp, ffprobe, ffmpeg,
// whisper.cpp) behind an interface so callers can be tested without them.
package runner

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"
)

// Runner runs a command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Exec runs commands with os/exec.
type Exec struct{}

// maxStderr bounds how much stderr is carried in an error.
const maxStderr = 2048

// Run executes name with args. On failure the error carries the tail of stderr.
func (Exec) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrapf(ctx.Err(), "runner: %s", name)
		}
		return nil, eris.Wrapf(err, "runner: %s failed: %s", name, tail(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = "..." + s[len(s)-maxStderr:]
	}
	return s
}

// Func adapts a function to Runner.
type Func func(ctx context.Context, name string, args ...string) ([]byte, error)

func (f Func) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}
