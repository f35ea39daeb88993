package connectors

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// flexString decodes a JSON string or number into a string.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexInt decodes a number or numeric string, defaulting to zero.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		*f = 0
		return nil //nolint:nilerr // non-numeric engagement counts read as zero
	}
	n, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		*f = 0
		return nil //nolint:nilerr // non-numeric engagement counts read as zero
	}
	*f = flexInt(n)
	return nil
}

type moltbookRef struct {
	ID          flexString `json:"id"`
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
}

// moltbookSubmolt accepts either an object or a bare name.
type moltbookSubmolt struct {
	moltbookRef
}

func (m *moltbookSubmolt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &m.Name)
	}
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	return json.Unmarshal(b, &m.moltbookRef)
}

type moltbookMedia struct {
	URL string `json:"url"`
}

type moltbookPost struct {
	ID           flexString       `json:"id"`
	AltID        flexString       `json:"_id"`
	Title        string           `json:"title"`
	Content      string           `json:"content"`
	URL          string           `json:"url"`
	ImageURL     string           `json:"image_url"`
	Thumbnail    string           `json:"thumbnail"`
	Media        *moltbookMedia   `json:"media"`
	Agent        *moltbookRef     `json:"agent"`
	Author       *moltbookRef     `json:"author"`
	AgentName    string           `json:"agent_name"`
	Submolt      *moltbookSubmolt `json:"submolt"`
	SubmoltName  string           `json:"submolt_name"`
	Upvotes      flexInt          `json:"upvotes"`
	Downvotes    flexInt          `json:"downvotes"`
	CommentCount flexInt          `json:"comment_count"`
	CreatedAt    string           `json:"created_at"`
}

type moltbookComment struct {
	ID         flexString   `json:"id"`
	AltID      flexString   `json:"_id"`
	Agent      *moltbookRef `json:"agent"`
	Author     *moltbookRef `json:"author"`
	AgentName  string       `json:"agent_name"`
	Content    string       `json:"content"`
	Text       string       `json:"text"`
	Body       string       `json:"body"`
	Upvotes    flexInt      `json:"upvotes"`
	Downvotes  flexInt      `json:"downvotes"`
	ParentID   flexString   `json:"parent_id"`
	ParentAlt  flexString   `json:"parentId"`
	Created    string       `json:"created_at"`
	CreatedAlt string       `json:"createdAt"`
}

// unwrapList decodes a bare array or an object holding it under one of keys.
func unwrapList[T any](raw json.RawMessage, keys ...string) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	var out []T
	if len(raw) > 0 && raw[0] == '[' {
		err := json.Unmarshal(raw, &out)
		return out, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if v, ok := obj[k]; ok && len(bytes.TrimSpace(v)) > 0 && bytes.TrimSpace(v)[0] == '[' {
			err := json.Unmarshal(v, &out)
			return out, err
		}
	}
	return nil, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func refName(r *moltbookRef) string {
	if r == nil {
		return ""
	}
	return r.Name
}

func refID(r *moltbookRef) string {
	if r == nil {
		return ""
	}
	return string(r.ID)
}
