package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/internal/domain/types"
)

// Read model bounds.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
	graphPostLimit   = 5000
	graphAgentLimit  = 1000
	unknownAgent     = "unknown-agent"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar) //nolint:gochecknoglobals // stateless builder

var postColumns = []string{ //nolint:gochecknoglobals // fixed column list
	"id", "moltbook_id", "title", "display_text", "author_name",
	"submolt_name", "submolt_display", "image_url",
	"upvotes", "downvotes", "comment_count", "moltbook_created_at",
	"topics", "sentiment", "source", "created_at",
}

var agentColumns = []string{ //nolint:gochecknoglobals // fixed column list
	"name", "description", "karma", "follower_count", "following_count",
	"owner_x_handle", "owner_x_name", "owner_x_verified", "post_count",
	"first_seen_at", "last_seen_at",
}

// Store implements post persistence and the read models.
type Store struct {
	q   Querier
	now func() time.Time
}

// New wraps a querier, usually a *pgxpool.Pool.
func New(q Querier) *Store {
	return &Store{q: q, now: time.Now}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// PersistPost upserts the post with its agent and submolt. Posts without an
// external id are ignored.
func (s *Store) PersistPost(ctx context.Context, p model.Post) error { //nolint:gocritic // hugeParam: posts travel by value
	if p.ExternalID == "" {
		return nil
	}
	c := model.Community{}
	if p.Community != nil {
		c = *p.Community
	}
	author := c.AgentName
	if author == "" {
		author = unknownAgent
	}
	source := p.Source
	if source == "" {
		source = "moltbook"
	}
	topics := p.Topics
	if topics == nil {
		topics = []string{}
	}
	var createdAt any
	if p.CreatedAt != nil {
		createdAt = *p.CreatedAt
	}

	sqlStr, args, err := psql.Insert("posts").
		Columns("moltbook_id", "title", "content", "display_text", "author_name", "author_id",
			"submolt_name", "submolt_id", "submolt_display", "image_url",
			"upvotes", "downvotes", "comment_count", "moltbook_created_at",
			"topics", "confidence", "sentiment", "source").
		Values(p.ExternalID, nullable(c.Title), nullable(c.Content), p.Text, author, nullable(c.AgentID),
			nullable(c.SubmoltName), nullable(c.SubmoltID), nullable(c.SubmoltDisplay), nullable(p.ImageURL),
			p.Upvotes, p.Downvotes, p.CommentCount, createdAt,
			topics, p.Confidence, nullable(string(p.Sentiment)), source).
		Suffix(`ON CONFLICT (moltbook_id) DO UPDATE SET
			upvotes = EXCLUDED.upvotes,
			downvotes = EXCLUDED.downvotes,
			comment_count = EXCLUDED.comment_count,
			image_url = COALESCE(EXCLUDED.image_url, posts.image_url)
			RETURNING (xmax = 0)`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build post upsert: %w", err)
	}

	var inserted bool
	if err := s.q.QueryRow(ctx, sqlStr, args...).Scan(&inserted); err != nil {
		return fmt.Errorf("%w: upsert post %s: %w", ErrQuery, p.ExternalID, err)
	}

	if c.AgentName != "" {
		if err := s.upsertAgent(ctx, c, inserted); err != nil {
			return err
		}
	}
	if c.SubmoltName != "" {
		if err := s.upsertSubmolt(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) upsertAgent(ctx context.Context, c model.Community, newPost bool) error { //nolint:gocritic // hugeParam: value copy is fine here
	increment := 0
	if newPost {
		increment = 1
	}
	sqlStr, args, err := psql.Insert("agents").
		Columns("moltbook_id", "name", "last_seen_at", "post_count").
		Values(nullable(c.AgentID), c.AgentName, s.now().UTC(), increment).
		Suffix(`ON CONFLICT (name) DO UPDATE SET
			last_seen_at = EXCLUDED.last_seen_at,
			moltbook_id = COALESCE(EXCLUDED.moltbook_id, agents.moltbook_id),
			post_count = agents.post_count + EXCLUDED.post_count`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build agent upsert: %w", err)
	}
	if _, err := s.q.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("%w: upsert agent %s: %w", ErrQuery, c.AgentName, err)
	}
	return nil
}

func (s *Store) upsertSubmolt(ctx context.Context, c model.Community) error { //nolint:gocritic // hugeParam: value copy is fine here
	sqlStr, args, err := psql.Insert("submolts").
		Columns("moltbook_id", "name", "display_name", "last_seen_at").
		Values(nullable(c.SubmoltID), c.SubmoltName, nullable(c.SubmoltDisplay), s.now().UTC()).
		Suffix(`ON CONFLICT (name) DO UPDATE SET
			last_seen_at = EXCLUDED.last_seen_at,
			display_name = COALESCE(EXCLUDED.display_name, submolts.display_name)`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build submolt upsert: %w", err)
	}
	if _, err := s.q.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("%w: upsert submolt %s: %w", ErrQuery, c.SubmoltName, err)
	}
	return nil
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageLimit
	case limit > MaxPageLimit:
		return MaxPageLimit
	}
	return limit
}

// ListPosts returns newest posts first, by origin time then ingestion time.
func (s *Store) ListPosts(ctx context.Context, f types.PostQuery) (types.PostPage, error) {
	limit := ClampLimit(f.Limit)
	q := psql.Select(postColumns...).From("posts").
		OrderBy("moltbook_created_at DESC NULLS LAST", "created_at DESC").
		Limit(uint64(limit + 1))
	if f.Agent != "" {
		q = q.Where(squirrel.Eq{"author_name": f.Agent})
	}
	if f.Submolt != "" {
		q = q.Where(squirrel.Eq{"submolt_name": f.Submolt})
	}
	if f.Before != nil {
		q = q.Where(squirrel.Lt{"moltbook_created_at": *f.Before})
	}
	if term := strings.TrimSpace(f.Q); term != "" {
		q = q.Where(squirrel.ILike{"display_text": "%" + term + "%"})
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return types.PostPage{}, fmt.Errorf("build posts query: %w", err)
	}
	rows, err := s.q.Query(ctx, sqlStr, args...)
	if err != nil {
		return types.PostPage{}, fmt.Errorf("%w: list posts: %w", ErrQuery, err)
	}
	defer rows.Close()

	posts := make([]types.PostRow, 0, limit+1)
	for rows.Next() {
		var r types.PostRow
		if err := rows.Scan(&r.ID, &r.MoltbookID, &r.Title, &r.DisplayText, &r.AuthorName,
			&r.SubmoltName, &r.SubmoltDisplay, &r.ImageURL,
			&r.Upvotes, &r.Downvotes, &r.CommentCount, &r.MoltbookCreatedAt,
			&r.Topics, &r.Sentiment, &r.Source, &r.CreatedAt); err != nil {
			return types.PostPage{}, fmt.Errorf("%w: scan post: %w", ErrQuery, err)
		}
		if r.Topics == nil {
			r.Topics = []string{}
		}
		posts = append(posts, r)
	}
	if err := rows.Err(); err != nil {
		return types.PostPage{}, fmt.Errorf("%w: list posts: %w", ErrQuery, err)
	}

	hasMore := len(posts) > limit
	if hasMore {
		posts = posts[:limit]
	}
	return types.PostPage{Posts: posts, Count: len(posts), HasMore: hasMore}, nil
}

// GetAgent returns one agent profile or ErrNotFound.
func (s *Store) GetAgent(ctx context.Context, name string) (*types.Agent, error) {
	sqlStr, args, err := psql.Select(agentColumns...).From("agents").
		Where(squirrel.Eq{"name": name}).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build agent query: %w", err)
	}

	var a types.Agent
	err = s.q.QueryRow(ctx, sqlStr, args...).Scan(&a.Name, &a.Description, &a.Karma,
		&a.FollowerCount, &a.FollowingCount, &a.OwnerXHandle, &a.OwnerXName,
		&a.OwnerXVerified, &a.PostCount, &a.FirstSeenAt, &a.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: agent %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get agent: %w", ErrQuery, err)
	}
	return &a, nil
}

// GraphInputs loads agent-submolt memberships and agent summaries in parallel.
func (s *Store) GraphInputs(ctx context.Context) ([]types.Membership, []types.AgentSummary, error) {
	var (
		memberships []types.Membership
		agents      []types.AgentSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		memberships, err = s.memberships(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		agents, err = s.agentSummaries(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return memberships, agents, nil
}

func (s *Store) memberships(ctx context.Context) ([]types.Membership, error) {
	sqlStr, args, err := psql.Select("author_name", "submolt_name").From("posts").
		Where(squirrel.NotEq{"submolt_name": nil}).
		Limit(graphPostLimit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build membership query: %w", err)
	}
	rows, err := s.q.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: memberships: %w", ErrQuery, err)
	}
	defer rows.Close()

	var out []types.Membership
	for rows.Next() {
		var m types.Membership
		if err := rows.Scan(&m.Author, &m.Submolt); err != nil {
			return nil, fmt.Errorf("%w: scan membership: %w", ErrQuery, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: memberships: %w", ErrQuery, err)
	}
	return out, nil
}

func (s *Store) agentSummaries(ctx context.Context) ([]types.AgentSummary, error) {
	sqlStr, args, err := psql.Select("name", "karma", "follower_count", "COALESCE(description, '')", "post_count").
		From("agents").Limit(graphAgentLimit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build agents query: %w", err)
	}
	rows, err := s.q.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: agents: %w", ErrQuery, err)
	}
	defer rows.Close()

	var out []types.AgentSummary
	for rows.Next() {
		var a types.AgentSummary
		if err := rows.Scan(&a.Name, &a.Karma, &a.FollowerCount, &a.Description, &a.PostCount); err != nil {
			return nil, fmt.Errorf("%w: scan agent: %w", ErrQuery, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: agents: %w", ErrQuery, err)
	}
	return out, nil
}
