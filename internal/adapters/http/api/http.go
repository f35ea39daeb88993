// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// Dependencies bundles what the handlers read from. ReadModel and Comments
// may be nil; the affected routes then answer 503 and 502.
type Dependencies struct {
	Log       LogReader
	Stats     StatsProvider
	ReadModel ReadModel
	Comments  CommentSource
	Stream    StreamConfig
	Sources   []string
}

// Server wires HTTP routes for the relay API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	streamHandler    *StreamHandler
	readModelHandler *ReadModelHandler
	commentsHandler  *CommentsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	streams := NewStreamHandler(deps.Log, deps.Stream)
	return &Server{
		healthHandler:    NewHealthHandler(deps.Sources),
		statsHandler:     NewStatsHandler(deps.Stats).withStreams(streams),
		streamHandler:    streams,
		readModelHandler: NewReadModelHandler(deps.ReadModel),
		commentsHandler:  NewCommentsHandler(deps.Comments),
	}
}

// Health returns the handler that also serves the relay health port.
func (s *Server) Health() *HealthHandler { return s.healthHandler }

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleMetrics, "healthz"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	stream := CORS(MetricsMiddleware(s.streamHandler.HandleStream, "stream"))
	mux.HandleFunc("/api/stream", stream)
	mux.HandleFunc("/stream", stream)

	mux.HandleFunc("/api/posts", CORS(MetricsMiddleware(getOnly(s.readModelHandler.HandlePosts), "posts")))
	mux.HandleFunc("/api/agent", CORS(MetricsMiddleware(getOnly(s.readModelHandler.HandleAgent), "agent")))
	mux.HandleFunc("/api/graph", CORS(MetricsMiddleware(getOnly(s.readModelHandler.HandleGraph), "graph")))
	mux.HandleFunc("/api/comments", CORS(MetricsMiddleware(getOnly(s.commentsHandler.HandleComments), "comments")))
}

func getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, nil)
			return
		}
		next(w, r)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
