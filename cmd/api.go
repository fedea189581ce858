package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/SquizAI/recipies01/internal/model"
	"github.com/SquizAI/recipies01/internal/pdf"
	"github.com/SquizAI/recipies01/internal/pipeline"
	"github.com/SquizAI/recipies01/internal/store"
	"github.com/SquizAI/recipies01/pkg/objectstore"
)

const (
	maxExtractBody = 64 << 10
	maxRecipeBody  = 2 << 20

	codePDF            = "PDF_ERROR"
	codeInvalidRequest = "INVALID_REQUEST"
	codeInternal       = "INTERNAL_ERROR"
	codeTimeout        = "TIMEOUT"
)

// runLister reads the run ledger. store.Store satisfies it.
type runLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// api holds the HTTP handlers' dependencies. Objects may be nil.
type api struct {
	extractor    recipeExtractor
	runs         runLister
	objects      objectstore.Client
	signedURLTTL time.Duration
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// newRouter builds the API router with CORS for the given origins.
func newRouter(a *api, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "X-Recipe-Cache", "X-Recipe-Warning", "X-Recipe-Run-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/extract", a.handleExtract)
		r.Post("/pdf", a.handlePDF)
		r.Get("/runs", a.handleRuns)
	})

	return r
}

func (a *api) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxExtractBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body", Code: codeInvalidRequest})
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "url is required", Code: codeInvalidRequest})
		return
	}

	res, err := a.extractor.Extract(r.Context(), req.URL)
	if err != nil {
		zap.L().Warn("api: extract failed",
			zap.String("url", req.URL),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, statusFor(err), publicError(err))
		return
	}

	if res.Cached {
		w.Header().Set("X-Recipe-Cache", "hit")
	} else {
		w.Header().Set("X-Recipe-Cache", "miss")
	}
	if res.RunID != "" {
		w.Header().Set("X-Recipe-Run-ID", res.RunID)
	}
	if res.StoreErr != nil {
		w.Header().Set("X-Recipe-Warning", string(res.StoreErr.Code))
	}
	writeJSON(w, http.StatusOK, res.Recipe)
}

func (a *api) handlePDF(w http.ResponseWriter, r *http.Request) {
	var rec model.Recipe
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecipeBody)).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid recipe payload", Code: codeInvalidRequest})
		return
	}
	if err := rec.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "invalid recipe payload",
			Code:    codeInvalidRequest,
			Details: err.Error(),
		})
		return
	}

	upload, _ := strconv.ParseBool(r.URL.Query().Get("upload"))
	if upload && a.objects == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "object storage is not configured", Code: codePDF})
		return
	}

	var buf bytes.Buffer
	if err := pdf.Render(&buf, &rec); err != nil {
		zap.L().Error("api: render pdf", zap.String("title", rec.Title), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Could not render PDF", Code: codePDF})
		return
	}
	name := pdf.Filename(&rec)

	if upload {
		url, err := a.archive(r.Context(), name, buf.Bytes())
		if err != nil {
			zap.L().Error("api: upload pdf", zap.String("file", name), zap.Error(err))
			writeJSON(w, http.StatusBadGateway, errorBody{Error: "Could not upload PDF", Code: codePDF})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// archive uploads a rendered PDF and returns a signed download URL.
func (a *api) archive(ctx context.Context, name string, data []byte) (string, error) {
	key := objectstore.NewKey("pdfs", name)
	if err := a.objects.Upload(ctx, key, data, "application/pdf"); err != nil {
		return "", err
	}
	ttl := a.signedURLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return a.objects.SignedURL(ctx, key, ttl)
}

func (a *api) handleRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status:    model.RunStatus(q.Get("status")),
		SourceURL: q.Get("source_url"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer", Code: codeInvalidRequest})
			return
		}
		filter.Limit = n
	}

	runs, err := a.runs.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Could not list runs", Code: codeInternal})
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// statusFor maps a pipeline failure to an HTTP status.
func statusFor(err error) int {
	if pe, ok := pipeline.AsError(err); ok {
		switch pe.Code {
		case pipeline.CodeExtraction:
			switch pe.Message {
			case pipeline.MsgInvalidURL:
				return http.StatusBadRequest
			case pipeline.MsgFetchFailed:
				return http.StatusBadGateway
			}
			return http.StatusUnprocessableEntity
		case pipeline.CodeParse:
			return http.StatusUnprocessableEntity
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// publicError exposes only the stable code and message of err.
func publicError(err error) errorBody {
	if pe, ok := pipeline.AsError(err); ok {
		return errorBody{Error: pe.Message, Code: string(pe.Code)}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errorBody{Error: "Extraction timed out", Code: codeTimeout}
	}
	return errorBody{Error: "Internal error", Code: codeInternal}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

// requestLogger logs one line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
