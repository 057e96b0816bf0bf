// Package analysis serves trace analysis and simulation over HTTP.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/flashbots/ppcalc/generator"
	"github.com/flashbots/ppcalc/metric"
	"github.com/flashbots/ppcalc/metrics"
	"github.com/flashbots/ppcalc/report"
	"github.com/flashbots/ppcalc/store"
	"github.com/flashbots/ppcalc/trace"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// DefaultMaxBodyBytes bounds uploaded traces.
const DefaultMaxBodyBytes = 256 << 20

// DefaultMaxGeneratedMessages bounds traces produced by /generate.
const DefaultMaxGeneratedMessages = 1_000_000

var errBadRequest = errors.New("bad request")

// Handler implements the analysis API.
type Handler struct {
	store   store.Store
	metrics *metrics.MetricsServer
	log     *slog.Logger

	// MaxBodyBytes limits the size of an uploaded trace after decompression.
	MaxBodyBytes int64
	// MaxGeneratedMessages limits sources times expected messages per source.
	MaxGeneratedMessages float64
	// Workers is passed on to metric.Options.
	Workers int
}

// NewHandler creates a handler persisting runs in st. m may be nil.
func NewHandler(st store.Store, m *metrics.MetricsServer, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		store:                st,
		metrics:              m,
		log:                  log,
		MaxBodyBytes:         DefaultMaxBodyBytes,
		MaxGeneratedMessages: DefaultMaxGeneratedMessages,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", h.handleAnalyze)
		r.Post("/generate", h.handleGenerate)
		r.Get("/runs", h.handleListRuns)
		r.Get("/runs/{id}", h.handleGetRun)
		r.Delete("/runs/{id}", h.handleDeleteRun)
	})
}

// AnalyzeResponse is returned by POST /api/v1/analyze.
type AnalyzeResponse struct {
	RunID           uuid.UUID                             `json:"run_id"`
	TraceDigest     string                                `json:"trace_digest"`
	Summary         report.Summary                        `json:"summary"`
	Deanonymization []report.DeanonymizationEntry         `json:"deanonymization"`
	Sets            map[trace.SourceID][]metric.SetEntry  `json:"sets,omitempty"`
	Sizes           map[trace.SourceID][]report.SizeEntry `json:"sizes,omitempty"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	window, sizesOnly, err := parseAnalyzeQuery(r)
	if err != nil {
		h.countAnalysis(metrics.ResultInvalidInput)
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tr, err := h.readTrace(r)
	if err != nil {
		h.countAnalysis(metrics.ResultInvalidInput)
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	res, err := metric.RelationshipAnonymity(r.Context(), tr, window, &metric.Options{Workers: h.Workers, Log: h.log})
	if err != nil {
		h.countAnalysis(metrics.ResultError)
		h.log.Error("analysis failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	took := time.Since(start)

	entries := report.Deanonymization(res, tr)
	summary := report.Summarize(res, tr, entries)
	run := store.NewRun(tr, res, summary.Deanonymized)
	if err := h.store.SaveRun(r.Context(), run); err != nil {
		h.countAnalysis(metrics.ResultError)
		h.log.Error("saving run failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveAnalysis(took, tr.Len(), summary.Sources, summary.Deanonymized)
	}

	h.log.Info("trace analyzed",
		"run", run.ID,
		"messages", tr.Len(),
		"window", window.String(),
		"deanonymized", summary.Deanonymized,
		"took", took,
	)

	resp := AnalyzeResponse{
		RunID:           run.ID,
		TraceDigest:     run.TraceDigest,
		Summary:         summary,
		Deanonymization: entries,
	}
	if sizesOnly {
		resp.Sizes = report.Sizes(res)
	} else {
		resp.Sets = res.Sources
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseAnalyzeQuery(r *http.Request) (metric.Window, bool, error) {
	q := r.URL.Query()
	minMs, err := strconv.ParseInt(q.Get("min_window"), 10, 64)
	if err != nil {
		return metric.Window{}, false, fmt.Errorf("%w: min_window: %v", errBadRequest, err)
	}
	maxMs, err := strconv.ParseInt(q.Get("max_window"), 10, 64)
	if err != nil {
		return metric.Window{}, false, fmt.Errorf("%w: max_window: %v", errBadRequest, err)
	}
	window, err := metric.NewWindow(minMs, maxMs)
	if err != nil {
		return metric.Window{}, false, err
	}

	sizesOnly := false
	if v := q.Get("sizes_only"); v != "" {
		sizesOnly, err = strconv.ParseBool(v)
		if err != nil {
			return metric.Window{}, false, fmt.Errorf("%w: sizes_only: %v", errBadRequest, err)
		}
	}
	return window, sizesOnly, nil
}

func (h *Handler) readTrace(r *http.Request) (*trace.Trace, error) {
	var body io.Reader = r.Body
	if strings.EqualFold(r.Header.Get("Content-Encoding"), "zstd") {
		dec, err := zstd.NewReader(r.Body)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		body = dec
	}
	body = io.LimitReader(body, h.MaxBodyBytes+1)

	counter := &countingReader{r: body}
	b, err := trace.ReadCSV(counter)
	// a truncated body fails to parse, so the limit is checked first
	if counter.n > h.MaxBodyBytes {
		return nil, fmt.Errorf("%w: trace exceeds %d bytes", errBadRequest, h.MaxBodyBytes)
	}
	if err != nil {
		return nil, err
	}
	return b.Build()
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var cfg generator.Config
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if expected := float64(cfg.Sources) * expectedCount(cfg.NumMessages); !(expected <= h.MaxGeneratedMessages) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: about %.0f messages requested, limit is %.0f", errBadRequest, expected, h.MaxGeneratedMessages))
		return
	}

	tr, err := generator.Generate(r.Context(), &cfg, h.log)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if h.metrics != nil {
		h.metrics.Generated.Inc()
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("X-Trace-Digest", tr.Digest())
	w.WriteHeader(http.StatusOK)
	if err := tr.WriteCSV(w); err != nil {
		h.log.Error("writing generated trace", "err", err)
	}
}

// expectedCount is an upper estimate of the mean of d, used for the
// generation limit.
func expectedCount(d generator.Distribution) float64 {
	switch d.Kind {
	case generator.Uniform:
		return max(1, d.B)
	case generator.Normal:
		return max(1, d.A+3*d.B)
	default:
		return max(1, d.A)
	}
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	if h.metrics != nil {
		h.metrics.Runs.Set(float64(len(runs)))
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: invalid run id", errBadRequest))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}
	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *Handler) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteRun(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) countAnalysis(result string) {
	if h.metrics != nil {
		h.metrics.Analyses.WithLabelValues(result).Inc()
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}
