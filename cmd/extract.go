package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SquizAI/recipies01/internal/model"
	"github.com/SquizAI/recipies01/internal/pdf"
	"github.com/SquizAI/recipies01/internal/pipeline"
)

// recipeExtractor is the pipeline surface used by the CLI and the API.
type recipeExtractor interface {
	Extract(ctx context.Context, sourceURL string) (*pipeline.Result, error)
}

var (
	extractFile        string
	extractFormat      string
	extractPDF         string
	extractConcurrency int
)

var extractCmd = &cobra.Command{
	Use:   "extract [url...]",
	Short: "Extract recipes from post URLs",
	Long:  "Runs the extraction pipeline for each URL given as an argument or listed in --file, and prints the recipes as JSON or text.",
	RunE: func(cmd *cobra.Command, args []string) error {
		urls, err := collectURLs(args, extractFile)
		if err != nil {
			return err
		}
		if len(urls) == 0 {
			return eris.New("extract: at least one url is required")
		}
		if extractFormat != "json" && extractFormat != "text" {
			return eris.Errorf("extract: unknown format %q (json or text)", extractFormat)
		}
		if extractPDF != "" && len(urls) != 1 {
			return eris.New("extract: --pdf needs exactly one url")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "extract")
		if err != nil {
			return err
		}
		defer env.Close()

		limit := extractConcurrency
		if limit <= 0 {
			limit = cfg.Pipeline.MaxConcurrent
		}
		outcomes := extractAll(ctx, env.Pipeline, urls, limit)

		if extractPDF != "" && outcomes[0].Err == nil {
			if err := writePDFFile(extractPDF, outcomes[0].Result.Recipe); err != nil {
				return err
			}
			zap.L().Info("pdf written", zap.String("path", extractPDF))
		}

		if err := writeOutcomes(os.Stdout, os.Stderr, outcomes, extractFormat); err != nil {
			return err
		}
		if n := failedCount(outcomes); n > 0 {
			return eris.Errorf("extract: %d of %d urls failed", n, len(outcomes))
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractFile, "file", "", "file with one url per line (# starts a comment)")
	extractCmd.Flags().StringVar(&extractFormat, "format", "json", "output format: json or text")
	extractCmd.Flags().StringVar(&extractPDF, "pdf", "", "also write the recipe as a PDF to this path (single url)")
	extractCmd.Flags().IntVar(&extractConcurrency, "concurrency", 0, "max concurrent extractions (default from config)")
	rootCmd.AddCommand(extractCmd)
}

// extractOutcome is the result for one requested URL.
type extractOutcome struct {
	URL    string
	Result *pipeline.Result
	Err    error
}

// extractAll runs the pipeline for every URL with at most limit in flight.
// Outcomes keep the input order.
func extractAll(ctx context.Context, ex recipeExtractor, urls []string, limit int) []extractOutcome {
	outcomes := make([]extractOutcome, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, u := range urls {
		g.Go(func() error {
			res, err := ex.Extract(gctx, u)
			outcomes[i] = extractOutcome{URL: u, Result: res, Err: err}
			if err != nil {
				zap.L().Warn("extract failed", zap.String("url", u), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// collectURLs merges positional args with the lines of file, dropping blanks,
// comments and duplicates.
func collectURLs(args []string, file string) ([]string, error) {
	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || strings.HasPrefix(u, "#") || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	for _, a := range args {
		add(a)
	}
	if file == "" {
		return urls, nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, eris.Wrap(err, "extract: open url file")
	}
	defer f.Close() //nolint:errcheck

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		add(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "extract: read url file")
	}
	return urls, nil
}

// batchItem is the JSON shape for one URL in batch output.
type batchItem struct {
	URL    string        `json:"url"`
	Cached bool          `json:"cached"`
	Recipe *model.Recipe `json:"recipe,omitempty"`
	Error  *errorBody    `json:"error,omitempty"`
}

// writeOutcomes prints successes to out and failures to errOut. A single JSON
// success is printed as the bare recipe.
func writeOutcomes(out, errOut io.Writer, outcomes []extractOutcome, format string) error {
	if format == "text" {
		for i, o := range outcomes {
			if o.Err != nil {
				fmt.Fprintf(errOut, "%s: %s\n", o.URL, publicError(o.Err).Error)
				continue
			}
			if i > 0 {
				fmt.Fprintln(out)
			}
			writeRecipeText(out, o.Result.Recipe)
			if o.Result.StoreErr != nil {
				fmt.Fprintf(errOut, "%s: warning: %s\n", o.URL, o.Result.StoreErr.Message)
			}
		}
		return nil
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if len(outcomes) == 1 {
		o := outcomes[0]
		if o.Err != nil {
			body := publicError(o.Err)
			fmt.Fprintf(errOut, "%s: %s\n", body.Code, body.Error)
			return nil
		}
		return enc.Encode(o.Result.Recipe)
	}

	items := make([]batchItem, 0, len(outcomes))
	for _, o := range outcomes {
		item := batchItem{URL: o.URL}
		if o.Err != nil {
			body := publicError(o.Err)
			item.Error = &body
		} else {
			item.Recipe = o.Result.Recipe
			item.Cached = o.Result.Cached
		}
		items = append(items, item)
	}
	return enc.Encode(items)
}

func failedCount(outcomes []extractOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

func writePDFFile(path string, r *model.Recipe) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "create pdf file")
	}
	if err := pdf.Render(f, r); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrap(f.Close(), "close pdf file")
}
