// Package video augments extracted post content with a transcription of the
// post's video. Every failure is absorbed: the caller always gets content back,
// with Transcription left nil when any step could not complete.
package video

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/SquizAI/recipies01/internal/config"
	"github.com/SquizAI/recipies01/internal/model"
	"github.com/SquizAI/recipies01/internal/runner"
	"github.com/SquizAI/recipies01/internal/transcribe"
)

// ErrNoAudio is returned by the ffprobe step when the video has no audio stream.
var ErrNoAudio = eris.New("video: no audio stream")

// Augmenter downloads a post's video, extracts its audio and transcribes it.
type Augmenter struct {
	cfg               config.VideoConfig
	tr                transcribe.Transcriber
	run               runner.Runner
	downloaders       []downloader
	transcribeTimeout time.Duration
}

// Option customizes an Augmenter.
type Option func(*Augmenter)

// WithRunner sets the command runner used for yt-dlp, ffprobe and ffmpeg.
func WithRunner(r runner.Runner) Option {
	return func(a *Augmenter) { a.run = r }
}

// WithTranscribeTimeout bounds the transcription step. Non-positive values
// keep the default.
func WithTranscribeTimeout(d time.Duration) Option {
	return func(a *Augmenter) {
		if d > 0 {
			a.transcribeTimeout = d
		}
	}
}

// NewAugmenter returns an Augmenter. A nil transcriber or a disabled config
// yields an augmenter that passes content through unchanged.
func NewAugmenter(cfg config.VideoConfig, tr transcribe.Transcriber, opts ...Option) *Augmenter {
	if cfg.YtDlpPath == "" {
		cfg.YtDlpPath = "yt-dlp"
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	a := &Augmenter{
		cfg:               cfg,
		tr:                tr,
		run:               runner.Exec{},
		transcribeTimeout: 120 * time.Second,
	}
	for _, o := range opts {
		o(a)
	}
	a.downloaders = []downloader{
		newDirectDownloader(int64(cfg.MaxDownloadMB) << 20),
		&ytdlpDownloader{bin: cfg.YtDlpPath, run: a.run},
	}
	return a
}

// Enabled reports whether Augment will attempt transcription.
func (a *Augmenter) Enabled() bool {
	return a.cfg.Enabled && a.tr != nil
}

// Augment returns raw with a transcription attached when one could be produced.
func (a *Augmenter) Augment(ctx context.Context, raw model.RawContent) model.AugmentedContent {
	out := model.AugmentedContent{RawContent: raw}
	if !a.Enabled() {
		return out
	}

	log := zap.L().With(zap.String("url", raw.SourceURL))
	text, err := a.transcribe(ctx, raw, log)
	if err != nil {
		if eris.Is(err, ErrNoAudio) {
			log.Info("video: no audio stream, skipping transcription")
		} else {
			log.Warn("video: augmentation failed", zap.Error(err))
		}
		return out
	}
	if text != "" {
		out.Transcription = &text
	}
	return out
}

func (a *Augmenter) transcribe(ctx context.Context, raw model.RawContent, log *zap.Logger) (string, error) {
	dir, err := os.MkdirTemp(a.cfg.TempDir, "recipe-video-*")
	if err != nil {
		return "", eris.Wrap(err, "video: create temp dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	start := time.Now()
	videoPath, err := a.download(ctx, dir, raw, log)
	if err != nil {
		return "", err
	}
	log.Debug("video: downloaded", zap.String("path", videoPath), zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	start = time.Now()
	if err := a.checkAudio(ctx, videoPath); err != nil {
		return "", err
	}

	audioPath := filepath.Join(dir, "audio.mp3")
	if err := a.extractAudio(ctx, videoPath, audioPath); err != nil {
		return "", err
	}
	log.Debug("video: audio extracted", zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	start = time.Now()
	tctx, cancel := context.WithTimeout(ctx, a.transcribeTimeout)
	defer cancel()
	text, err := a.tr.Transcribe(tctx, audioPath)
	if err != nil {
		return "", eris.Wrap(err, "video: transcribe")
	}
	text = strings.TrimSpace(text)
	log.Info("video: transcribed",
		zap.Int("chars", len(text)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return text, nil
}

func (a *Augmenter) download(ctx context.Context, dir string, raw model.RawContent, log *zap.Logger) (string, error) {
	timeout := secs(a.cfg.DownloadTimeoutSecs, 120)

	var errs []string
	for _, d := range a.downloaders {
		if !d.Accepts(raw) {
			continue
		}
		dctx, cancel := context.WithTimeout(ctx, timeout)
		p, err := d.Download(dctx, dir, raw)
		cancel()
		if err == nil {
			return p, nil
		}
		log.Debug("video: downloader failed", zap.String("downloader", d.Name()), zap.Error(err))
		errs = append(errs, d.Name()+": "+err.Error())
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", eris.New("video: no downloader accepted the content")
	}
	return "", eris.Errorf("video: download failed: %s", strings.Join(errs, "; "))
}

type streamList struct {
	Streams []struct {
		Index     int    `json:"index"`
		CodecType string `json:"codec_type"`
	} `json:"streams"`
}

// checkAudio fails with ErrNoAudio when ffprobe reports no audio stream.
func (a *Augmenter) checkAudio(ctx context.Context, videoPath string) error {
	pctx, cancel := context.WithTimeout(ctx, secs(a.cfg.AudioTimeoutSecs, 60))
	defer cancel()

	out, err := a.run.Run(pctx, a.cfg.FFprobePath,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index,codec_type",
		"-of", "json",
		videoPath,
	)
	if err != nil {
		return eris.Wrap(err, "video: ffprobe")
	}

	var res streamList
	if err := json.Unmarshal(out, &res); err != nil {
		return eris.Wrap(err, "video: parse ffprobe output")
	}
	if len(res.Streams) == 0 {
		return ErrNoAudio
	}
	return nil
}

func (a *Augmenter) extractAudio(ctx context.Context, videoPath, audioPath string) error {
	actx, cancel := context.WithTimeout(ctx, secs(a.cfg.AudioTimeoutSecs, 60))
	defer cancel()

	_, err := a.run.Run(actx, a.cfg.FFmpegPath,
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-vn", "-ac", "1", "-ar", "16000",
		"-c:a", "libmp3lame", "-b:a", "64k",
		audioPath,
	)
	if err != nil {
		return eris.Wrap(err, "video: ffmpeg")
	}
	if _, err := os.Stat(audioPath); err != nil {
		return eris.Wrap(err, "video: audio output missing")
	}
	return nil
}

func secs(n, def int) time.Duration {
	if n <= 0 {
		n = def
	}
	return time.Duration(n) * time.Second
}
