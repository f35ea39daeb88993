package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/lobstream/internal/adapters/postgres"
	"github.com/okian/lobstream/internal/domain/graph"
	"github.com/okian/lobstream/internal/domain/types"
	"github.com/okian/lobstream/pkg/logger"
)

// ReadModel is the persisted agent-network view.
type ReadModel interface {
	ListPosts(ctx context.Context, q types.PostQuery) (types.PostPage, error)
	GetAgent(ctx context.Context, name string) (*types.Agent, error)
	GraphInputs(ctx context.Context) ([]types.Membership, []types.AgentSummary, error)
}

// Cache policies per read model.
const (
	cachePosts = "public, s-maxage=30, stale-while-revalidate=60"
	cacheAgent = "s-maxage=60, stale-while-revalidate=120"
	cacheGraph = "s-maxage=300, stale-while-revalidate=600"
)

// ReadModelHandler serves posts, agent and graph queries. A nil model
// answers 503 on every route.
type ReadModelHandler struct {
	model  ReadModel
	logger logger.Logger
}

// NewReadModelHandler creates a handler over model, which may be nil.
func NewReadModelHandler(model ReadModel) *ReadModelHandler {
	return &ReadModelHandler{model: model, logger: logger.Get().Named("readmodel")}
}

func (h *ReadModelHandler) available(w http.ResponseWriter) bool {
	if h.model == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Database not configured"})
		return false
	}
	return true
}

// ParsePostQuery reads agent, submolt, before, q and limit.
func ParsePostQuery(r *http.Request) (types.PostQuery, error) {
	v := r.URL.Query()
	q := types.PostQuery{
		Agent:   strings.TrimSpace(v.Get("agent")),
		Submolt: strings.TrimSpace(v.Get("submolt")),
		Q:       strings.TrimSpace(v.Get("q")),
	}
	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("%w: limit must be an integer", ErrBadRequest)
		}
		q.Limit = n
	}
	q.Limit = postgres.ClampLimit(q.Limit)
	if raw := v.Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return q, fmt.Errorf("%w: before must be an RFC3339 timestamp", ErrBadRequest)
		}
		q.Before = &t
	}
	return q, nil
}

// HandlePosts handles GET /api/posts.
func (h *ReadModelHandler) HandlePosts(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	q, err := ParsePostQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	page, err := h.model.ListPosts(r.Context(), q)
	if err != nil {
		h.logger.Error(r.Context(), "list posts failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, nil)
		return
	}
	w.Header().Set("Cache-Control", cachePosts)
	writeJSON(w, http.StatusOK, page)
}

type agentResponse struct {
	Agent *types.Agent `json:"agent"`
}

// HandleAgent handles GET /api/agent?name=.
func (h *ReadModelHandler) HandleAgent(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing ?name= parameter"})
		return
	}
	agent, err := h.model.GetAgent(r.Context(), name)
	switch {
	case errors.Is(err, postgres.ErrNotFound):
		writeJSON(w, http.StatusNotFound, agentResponse{})
		return
	case err != nil:
		h.logger.Error(r.Context(), "get agent failed", logger.String("agent", name), logger.Error(err))
		writeError(w, http.StatusInternalServerError, nil)
		return
	}
	w.Header().Set("Cache-Control", cacheAgent)
	writeJSON(w, http.StatusOK, agentResponse{Agent: agent})
}

// HandleGraph handles GET /api/graph.
func (h *ReadModelHandler) HandleGraph(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	memberships, agents, err := h.model.GraphInputs(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "graph inputs failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, nil)
		return
	}
	w.Header().Set("Cache-Control", cacheGraph)
	writeJSON(w, http.StatusOK, graph.Build(memberships, agents))
}
