package video

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/SquizAI/recipies01/internal/model"
	"github.com/SquizAI/recipies01/internal/resilience"
	"github.com/SquizAI/recipies01/internal/runner"
)

// downloader fetches a post's video into dir and returns the file path.
type downloader interface {
	Name() string
	Accepts(raw model.RawContent) bool
	Download(ctx context.Context, dir string, raw model.RawContent) (string, error)
}

// directDownloader GETs the video URL found during extraction.
type directDownloader struct {
	client   *http.Client
	maxBytes int64
}

func newDirectDownloader(maxBytes int64) *directDownloader {
	if maxBytes <= 0 {
		maxBytes = 200 << 20
	}
	return &directDownloader{client: &http.Client{}, maxBytes: maxBytes}
}

func (d *directDownloader) Name() string { return "direct" }

func (d *directDownloader) Accepts(raw model.RawContent) bool {
	return raw.VideoURL != nil && *raw.VideoURL != ""
}

func (d *directDownloader) Download(ctx context.Context, dir string, raw model.RawContent) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *raw.VideoURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "video: create request")
	}
	req.Header.Set("Referer", raw.SourceURL)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "video: get")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("video: get returned %d", resp.StatusCode)
		if resilience.TransientStatus(resp.StatusCode) {
			return "", resilience.Transient(err, resp.StatusCode)
		}
		return "", err
	}
	if resp.ContentLength > d.maxBytes {
		return "", eris.Errorf("video: content length %d exceeds limit %d", resp.ContentLength, d.maxBytes)
	}

	p := filepath.Join(dir, "direct.mp4")
	f, err := os.Create(p)
	if err != nil {
		return "", eris.Wrap(err, "video: create file")
	}
	defer f.Close() //nolint:errcheck

	n, err := io.Copy(f, io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return "", eris.Wrap(err, "video: write file")
	}
	if n > d.maxBytes {
		return "", eris.Errorf("video: download exceeds limit %d", d.maxBytes)
	}
	if n == 0 {
		return "", eris.New("video: empty download")
	}
	return p, nil
}

// ytdlpDownloader resolves the video from the post URL with yt-dlp.
type ytdlpDownloader struct {
	bin string
	run runner.Runner
}

func (d *ytdlpDownloader) Name() string { return "yt-dlp" }

func (d *ytdlpDownloader) Accepts(raw model.RawContent) bool {
	return raw.SourceURL != ""
}

func (d *ytdlpDownloader) Download(ctx context.Context, dir string, raw model.RawContent) (string, error) {
	p := filepath.Join(dir, "ytdlp.mp4")
	_, err := d.run.Run(ctx, d.bin,
		"-f", "best[ext=mp4]",
		"--retries", "5",
		"--fragment-retries", "5",
		"--no-playlist",
		"--quiet", "--no-warnings",
		"-o", p,
		raw.SourceURL,
	)
	if err != nil {
		return "", eris.Wrap(err, "video: yt-dlp")
	}
	if st, err := os.Stat(p); err != nil || st.Size() == 0 {
		return "", eris.New("video: yt-dlp produced no file")
	}
	return p, nil
}
