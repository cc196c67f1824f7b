package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/CTAG07/chainwalk/pkg/markov"
)

// GenerateAPI holds the dependencies for the generation API handlers. Every
// request builds its own chain and discards it once the response is written.
type GenerateAPI struct {
	config  *ConfigManager
	history *HistoryStore // nil when history is disabled
	logger  *slog.Logger
}

// NewGenerateAPI creates a new instance of the GenerateAPI.
func NewGenerateAPI(config *ConfigManager, history *HistoryStore, logger *slog.Logger) *GenerateAPI {
	return &GenerateAPI{
		config:  config,
		history: history,
		logger:  logger,
	}
}

// RegisterRoutes sets up the routing for the generation endpoints.
func (a *GenerateAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/generate", a.handleGenerate)
	mux.HandleFunc("/api/inspect", a.handleInspect)
}

type GenerateRequest struct {
	Text      string   `json:"text"`
	N         int      `json:"n"`
	MaxLength *int     `json:"max_length"`
	Seed      uint64   `json:"seed"`
	Start     []string `json:"start"`
}

type GenerateResponse struct {
	Text   string `json:"text"`
	Tokens int    `json:"tokens"`
	Reason string `json:"reason"`
}

type InspectRequest struct {
	Text string `json:"text"`
	N    int    `json:"n"`
	Top  int    `json:"top"`
}

type InspectResponse struct {
	Stats markov.ChainStats     `json:"stats"`
	Top   []markov.KeyBranching `json:"top"`
}

// statusForError maps core errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, markov.ErrInvalidNGram),
		errors.Is(err, markov.ErrEmptyChain),
		errors.Is(err, markov.ErrUnknownStart),
		errors.Is(err, markov.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (a *GenerateAPI) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	cfg := a.config.Get()

	var req GenerateRequest
	if status, err := decodeJSONBody(w, r, cfg.Server.MaxBodyBytes, &req); err != nil {
		respondWithError(w, status, err.Error())
		return
	}
	if req.N == 0 {
		req.N = cfg.Generate.NGram
	}
	maxLength := cfg.Generate.MaxLength
	if req.MaxLength != nil {
		maxLength = *req.MaxLength
	}
	if req.N < 1 || maxLength < 0 {
		respondWithError(w, http.StatusBadRequest, "n must be positive and max_length must not be negative")
		return
	}

	ctx := r.Context()
	if cfg.Server.GenerateTimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Server.GenerateTimeoutSec)*time.Second)
		defer cancel()
	}

	var source markov.Source
	if req.Seed != 0 {
		source = markov.NewSource(req.Seed)
	}
	gen := markov.NewGenerator(markov.NewDefaultTokenizer(), source)
	gen.SetLogger(a.logger)

	chain, err := gen.BuildChain(ctx, strings.NewReader(req.Text), req.N)
	if err != nil {
		respondWithError(w, statusForError(err), fmt.Sprintf("Failed to build chain: %v", err))
		return
	}

	opts := []markov.WalkOption{markov.WithMaxLength(maxLength)}
	if len(req.Start) > 0 {
		opts = append(opts, markov.WithStart(req.Start...))
	}
	res, err := gen.GenerateFromChain(ctx, chain, opts...)
	if err != nil {
		respondWithError(w, statusForError(err), fmt.Sprintf("Generation failed: %v", err))
		return
	}

	if a.history != nil {
		run := &Run{
			Source:       "api",
			NGram:        req.N,
			CorpusTokens: chain.CorpusLen(),
			ChainKeys:    chain.Len(),
			OutputTokens: len(res.Tokens),
			Reason:       res.Reason.String(),
			Seed:         req.Seed,
		}
		if err = a.history.Record(r.Context(), run); err != nil {
			a.logger.Warn("Failed to record generation run", "error", err)
		}
	}

	respondWithJSON(w, http.StatusOK, GenerateResponse{
		Text:   res.Text,
		Tokens: len(res.Tokens),
		Reason: res.Reason.String(),
	})
}

func (a *GenerateAPI) handleInspect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	cfg := a.config.Get()

	var req InspectRequest
	if status, err := decodeJSONBody(w, r, cfg.Server.MaxBodyBytes, &req); err != nil {
		respondWithError(w, status, err.Error())
		return
	}
	if req.N == 0 {
		req.N = cfg.Generate.NGram
	}
	if req.Top <= 0 {
		req.Top = 10
	}

	tokens, err := markov.Tokenize(markov.NewDefaultTokenizer(), strings.NewReader(req.Text))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Failed to tokenize text: %v", err))
		return
	}
	chain, err := markov.Build(tokens, req.N)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, InspectResponse{
		Stats: chain.Stats(),
		Top:   chain.TopBranching(req.Top),
	})
}
