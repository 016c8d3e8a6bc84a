// CLAUDE:SUMMARY HTTP API for the OCR pipeline: healthz and batch OCR over chi.
// Package server exposes the OCR pipeline over HTTP.
package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hazyhaar/ocrpipe"
	"github.com/hazyhaar/ocrpipe/imaging"
	"github.com/hazyhaar/ocrpipe/inference"
)

// Config configures the HTTP server.
type Config struct {
	// Addr to listen on. Default: :8080.
	Addr string `yaml:"addr"`
	// MaxBodyBytes bounds request bodies. Default: 256 MB (batches of
	// base64 page images are large).
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
	// Logger for request events.
	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 256 * 1024 * 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server serves the OCR API.
type Server struct {
	pipeline *ocrpipe.Pipeline
	config   Config
}

// New creates a Server around a pipeline.
func New(pipeline *ocrpipe.Pipeline, cfg Config) *Server {
	cfg.defaults()
	return &Server{pipeline: pipeline, config: cfg}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)
	r.Get("/healthz", s.handleHealthz)
	r.Post("/v1/ocr", s.handleOCR)
	return r
}

// ListenAndServe runs the server until the listener fails.
func (s *Server) ListenAndServe() error {
	s.config.Logger.Info("server: listening", "addr", s.config.Addr)
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// requestLog tags every request with an id and logs its outcome.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.config.Logger.Info("server: request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// handleHealthz reports readiness. The pipeline holds no warm state, so
// construction succeeding means ready.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// handleOCR runs a batch of pages through the pipeline.
func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	var req OCRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Pages) == 0 {
		writeError(w, http.StatusBadRequest, "pages is required")
		return
	}

	requests := make([]inference.GenerationRequest, len(req.Pages))
	for i, page := range req.Pages {
		img, err := decodePage(page.ImageB64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("pages[%d]: %v", i, err))
			return
		}
		requests[i] = inference.GenerationRequest{
			Image:      img,
			Prompt:     page.Prompt,
			PromptType: promptType(page.PromptType),
		}
	}

	records := s.pipeline.Process(r.Context(), requests)

	resp := OCRResponse{Pages: make([]PageResponse, len(records))}
	for i, rec := range records {
		page := PageResponse{
			Markdown:   rec.Markdown,
			HTML:       rec.HTML,
			Chunks:     rec.Chunks,
			Raw:        rec.Raw,
			PageBox:    rec.PageBox,
			TokenCount: rec.TokenCount,
			Failed:     rec.Failed,
		}
		if len(rec.Images) > 0 {
			page.Images = make(map[string]string, len(rec.Images))
			for name, img := range rec.Images {
				uri, err := imaging.EncodePNGDataURI(img)
				if err != nil {
					s.config.Logger.Warn("server: crop encode failed", "name", name, "error", err)
					continue
				}
				page.Images[name] = uri
			}
		}
		resp.Pages[i] = page
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.config.Logger.Warn("server: response write failed", "error", err)
	}
}

func promptType(s string) inference.PromptType {
	if s == "" {
		return inference.PromptOCRLayout
	}
	return inference.PromptType(s)
}

func decodePage(b64 string) (image.Image, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, ocrpipe.ErrInvalidImage
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ocrpipe.ErrInvalidImage
	}
	return img, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
