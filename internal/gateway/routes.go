package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/soyeahso/geminichat/internal/completion"
	"github.com/soyeahso/geminichat/internal/domain"
)

// llmCallTimeout is the maximum duration for one chat completion.
const llmCallTimeout = 5 * time.Minute

// maxChatBodyBytes bounds the size of a POST /chat transcript.
const maxChatBodyBytes = 4 << 20

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /api/chat", s.handleChat)

	// Catch-all for unknown routes
	mux.HandleFunc("/", handleNotFound)
}

// handleChat answers a transcript with one JSON object written in
// ChunkSize pieces, flushing after each.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := s.log.With("requestId", w.Header().Get("X-Request-ID"))

	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("invalid chat request body")
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	log.Debug().Int("messages", len(req.Messages)).Msg("chat request received")

	ctx, cancel := context.WithTimeout(r.Context(), llmCallTimeout)
	defer cancel()

	resp, err := s.gen.Generate(ctx, req.Messages)
	if err != nil {
		status := statusFor(err)
		log.Error().Err(err).Int("status", status).Msg("chat request failed")
		writeError(w, status, "Failed to process chat request", err.Error())
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		log.Error().Err(err).Msg("encoding chat response")
		writeError(w, http.StatusInternalServerError, "Failed to process chat request", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	chunks, err := writeChunked(w, data, s.cfg.ChunkSize)
	if err != nil {
		log.Warn().Err(err).Int("chunksWritten", chunks).Msg("client went away mid-stream")
		return
	}
	log.Debug().Int("bytes", len(data)).Int("chunks", chunks).Msg("chat response streamed")
}

// statusFor maps a generation error to an HTTP status.
func statusFor(err error) int {
	var (
		cfgErr *completion.ConfigError
		reqErr *completion.RequestError
		upErr  *completion.UpstreamError
	)
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &upErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeChunked writes data in pieces of size bytes, flushing each one.
// It returns the number of chunks written.
func writeChunked(w http.ResponseWriter, data []byte, size int) (int, error) {
	rc := http.NewResponseController(w)
	n := 0
	for len(data) > 0 {
		end := min(size, len(data))
		if _, err := w.Write(data[:end]); err != nil {
			return n, err
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return n, err
		}
		data = data[end:]
		n++
	}
	return n, nil
}
