package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/batch"
	"github.com/aristath/lookout/internal/portfolio"
)

// BatchRunner runs one batch and blocks until it resolves.
type BatchRunner interface {
	Run(ctx context.Context, req batch.Request) (*batch.Result, error)
}

// TickerSource supplies the default ticker set when a trigger request names
// none, normally the portfolio file.
type TickerSource func() ([]string, error)

// BatchHandlers serves the batch trigger and result endpoints. Runs execute
// in the background; at most one run is active at a time.
type BatchHandlers struct {
	runner  BatchRunner
	tickers TickerSource
	log     zerolog.Logger

	mu      sync.Mutex
	running bool
	latest  *batch.Result
}

// NewBatchHandlers creates batch handlers.
func NewBatchHandlers(runner BatchRunner, tickers TickerSource, log zerolog.Logger) *BatchHandlers {
	return &BatchHandlers{
		runner:  runner,
		tickers: tickers,
		log:     log.With().Str("component", "batch_api").Logger(),
	}
}

type triggerBatchRequest struct {
	Tickers []string `json:"tickers,omitempty"`
	AsOf    string   `json:"as_of,omitempty"` // YYYY-MM-DD
}

// HandleTriggerBatch starts a batch run in the background.
// POST /api/batch
func (h *BatchHandlers) HandleTriggerBatch(w http.ResponseWriter, r *http.Request) {
	var req triggerBatchRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	var asOf time.Time
	if req.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "as_of must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}

	tickers := req.Tickers
	if len(tickers) == 0 {
		loaded, err := h.tickers()
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to load portfolio tickers")
			h.writeError(w, http.StatusInternalServerError, "failed to load portfolio tickers")
			return
		}
		tickers = loaded
	}
	if err := batch.ValidateTickers(tickers); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		h.writeError(w, http.StatusConflict, "a batch run is already active")
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.runBatch(tickers, asOf)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "started",
		"tickers": len(tickers),
	})
}

func (h *BatchHandlers) runBatch(tickers []string, asOf time.Time) {
	result, err := h.runner.Run(context.Background(), batch.Request{Tickers: tickers, AsOf: asOf})

	h.mu.Lock()
	h.running = false
	if result != nil {
		h.latest = result
	}
	h.mu.Unlock()

	if err != nil {
		h.log.Error().Err(err).Msg("Batch run failed")
	}
}

type latestResultResponse struct {
	Result  *batch.Result     `json:"result"`
	State   string            `json:"state"`
	Summary portfolio.Summary `json:"summary"`
}

// HandleLatestResult returns the most recent completed batch result.
// GET /api/batch/latest
func (h *BatchHandlers) HandleLatestResult(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	latest := h.latest
	running := h.running
	h.mu.Unlock()

	if latest == nil {
		msg := "no batch has completed yet"
		if running {
			msg = "a batch run is in progress"
		}
		h.writeError(w, http.StatusNotFound, msg)
		return
	}

	h.writeJSON(w, latestResultResponse{
		Result:  latest,
		State:   latest.State.String(),
		Summary: portfolio.Summarize(latest),
	})
}

func (h *BatchHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *BatchHandlers) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": message})
}
