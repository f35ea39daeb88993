package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/lobstream/internal/domain/types"
	"github.com/okian/lobstream/pkg/logger"
)

const cacheComments = "public, s-maxage=300"

// CommentSource fetches comments for one agent-network post.
type CommentSource interface {
	Comments(ctx context.Context, postID string) ([]types.Comment, error)
}

// statusCoder is implemented by upstream errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// CommentsHandler proxies comment reads to the agent network.
type CommentsHandler struct {
	source CommentSource
	logger logger.Logger
}

// NewCommentsHandler creates a comments proxy.
func NewCommentsHandler(source CommentSource) *CommentsHandler {
	return &CommentsHandler{source: source, logger: logger.Get().Named("comments")}
}

// HandleComments handles GET /api/comments?postId=.
func (h *CommentsHandler) HandleComments(w http.ResponseWriter, r *http.Request) {
	postID := strings.TrimSpace(r.URL.Query().Get("postId"))
	if postID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing postId parameter"})
		return
	}
	if h.source == nil {
		writeError(w, http.StatusBadGateway, ErrUpstream)
		return
	}

	comments, err := h.source.Comments(r.Context(), postID)
	if err != nil {
		h.logger.Warn(r.Context(), "comments fetch failed", logger.String("post", postID), logger.Error(err))
		var sc statusCoder
		if errors.As(err, &sc) {
			status := http.StatusBadGateway
			if sc.StatusCode() == http.StatusNotFound {
				status = http.StatusNotFound
			}
			writeJSON(w, status, errorResponse{Error: fmt.Sprintf("Moltbook API returned %d", sc.StatusCode())})
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if comments == nil {
		comments = []types.Comment{}
	}
	w.Header().Set("Cache-Control", cacheComments)
	writeJSON(w, http.StatusOK, types.CommentList{Comments: comments, Count: len(comments)})
}
