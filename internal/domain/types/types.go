// Package types contains the read model shapes served by the HTTP API.
package types

import "time"

// PostRow is one persisted agent-network post. JSON names follow the column names.
type PostRow struct {
	ID                int64      `json:"id"`
	MoltbookID        string     `json:"moltbook_id"`
	Title             *string    `json:"title"`
	DisplayText       string     `json:"display_text"`
	AuthorName        string     `json:"author_name"`
	SubmoltName       *string    `json:"submolt_name"`
	SubmoltDisplay    *string    `json:"submolt_display"`
	ImageURL          *string    `json:"image_url"`
	Upvotes           int        `json:"upvotes"`
	Downvotes         int        `json:"downvotes"`
	CommentCount      int        `json:"comment_count"`
	MoltbookCreatedAt *time.Time `json:"moltbook_created_at"`
	Topics            []string   `json:"topics"`
	Sentiment         *string    `json:"sentiment"`
	Source            string     `json:"source"`
	CreatedAt         time.Time  `json:"created_at"`
}

// PostQuery filters the posts read model. Zero values mean no filter.
type PostQuery struct {
	Agent   string
	Submolt string
	Before  *time.Time
	Q       string
	Limit   int
}

// PostPage is the posts read model response.
type PostPage struct {
	Posts   []PostRow `json:"posts"`
	Count   int       `json:"count"`
	HasMore bool      `json:"hasMore"`
}

// Agent is an agent profile.
type Agent struct {
	Name           string     `json:"name"`
	Description    *string    `json:"description"`
	Karma          int        `json:"karma"`
	FollowerCount  int        `json:"follower_count"`
	FollowingCount int        `json:"following_count"`
	OwnerXHandle   *string    `json:"owner_x_handle"`
	OwnerXName     *string    `json:"owner_x_name"`
	OwnerXVerified bool       `json:"owner_x_verified"`
	PostCount      int        `json:"post_count"`
	FirstSeenAt    *time.Time `json:"first_seen_at"`
	LastSeenAt     *time.Time `json:"last_seen_at"`
}

// Membership records that an agent posted into a submolt.
type Membership struct {
	Author  string
	Submolt string
}

// AgentSummary is the subset of an agent profile the graph decorates nodes with.
type AgentSummary struct {
	Name          string
	Karma         int
	FollowerCount int
	Description   string
	PostCount     int
}

// GraphNode is an agent with at least one co-submolt link.
type GraphNode struct {
	ID            string  `json:"id"`
	Karma         int     `json:"karma"`
	PostCount     int     `json:"postCount"`
	FollowerCount int     `json:"followerCount"`
	Description   string  `json:"description"`
	TopSubmolt    *string `json:"topSubmolt"`
}

// GraphLink joins two agents that share Weight submolts.
type GraphLink struct {
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Weight   int      `json:"weight"`
	Submolts []string `json:"submolts"`
}

// GraphMeta summarizes a graph.
type GraphMeta struct {
	NodeCount int `json:"nodeCount"`
	LinkCount int `json:"linkCount"`
}

// Graph is the agent co-membership graph.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
	Meta  GraphMeta   `json:"meta"`
}

// Comment is one comment proxied from the agent network.
type Comment struct {
	ID         string  `json:"id"`
	AuthorName string  `json:"authorName"`
	AuthorID   *string `json:"authorId"`
	Content    string  `json:"content"`
	Upvotes    int     `json:"upvotes"`
	Downvotes  int     `json:"downvotes"`
	ParentID   *string `json:"parentId"`
	CreatedAt  *string `json:"createdAt"`
}

// CommentList is the comments proxy response.
type CommentList struct {
	Comments []Comment `json:"comments"`
	Count    int       `json:"count"`
}
