package connectors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gh "github.com/google/go-github/v80/github"
	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
)

// header remembers the last value of one request header.
type header struct {
	mu  sync.Mutex
	val string
}

func (h *header) record(r *http.Request, name string) {
	h.mu.Lock()
	h.val = r.Header.Get(name)
	h.mu.Unlock()
}

func (h *header) get() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.val
}

func TestRedditCycle(t *testing.T) {
	Convey("Given a subreddit listing", t, func() {
		quiet()
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			if r.URL.Path == "/r/broken/new.json" {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = io.WriteString(w, `{"data":{"children":[
				{"data":{"name":"t3_1","title":"Researchers publish a new alignment paper","author":"amy"}},
				{"data":{"name":"t3_2","title":"ok"}}
			]}}`)
		}))
		defer srv.Close()

		r := NewReddit(Config{})
		r.BaseURL = srv.URL
		r.Subreddits = []string{"broken", "artificial"}
		r.fetch = r.cfg.fetcher(0)
		sink := &collector{}

		Convey("A failing subreddit does not stop the others and repeats are skipped", func() {
			r.cycle(context.Background(), sink)
			r.cycle(context.Background(), sink)
			So(hits.Load(), ShouldEqual, 4)
			posts := sink.all()
			So(len(posts), ShouldEqual, 1)
			So(posts[0].Author, ShouldEqual, "u/amy")
		})
	})
}

func TestLobstersStart(t *testing.T) {
	Convey("Given a running lobsters connector", t, func() {
		quiet()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `[{"short_id":"a","title":"Understanding memory models","tags":["plt"]}]`)
		}))
		defer srv.Close()

		l := NewLobsters(Config{})
		l.FeedURL = srv.URL
		l.Interval = 5 * time.Millisecond
		sink := &collector{}
		h := l.Start(context.Background(), sink)

		Convey("It emits once and stops cleanly", func() {
			So(eventually(func() bool { return len(sink.all()) == 1 }), ShouldBeTrue)
			time.Sleep(20 * time.Millisecond)
			h.Stop()
			So(len(sink.all()), ShouldEqual, 1)
			So(sink.all()[0].Text, ShouldEqual, "Understanding memory models [plt]")
		})
	})
}

func TestFourChanCycle(t *testing.T) {
	Convey("Given a board catalog", t, func() {
		quiet()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `[{"threads":[{"no":100,"name":"Anon","com":"Opening post about telescopes",
				"last_replies":[{"no":101,"com":"A reply with a real opinion"},{"no":102,"com":"short"}]}]}]`)
		}))
		defer srv.Close()

		f := NewFourChan(Config{})
		f.BaseURL = srv.URL
		f.Boards = []string{"sci"}
		f.fetch = f.cfg.fetcher(0)
		sink := &collector{}

		Convey("Opening posts and replies are emitted once", func() {
			f.cycle(context.Background(), sink)
			f.cycle(context.Background(), sink)
			posts := sink.all()
			So(len(posts), ShouldEqual, 2)
			So(posts[0].Author, ShouldEqual, "Anon /sci/")
			So(posts[1].Author, ShouldEqual, "Anonymous /sci/")
		})
	})
}

func TestGitHubCycle(t *testing.T) {
	Convey("Given a repository event feed", t, func() {
		quiet()
		var seen header
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen.record(r, "User-Agent")
			switch r.URL.Path {
			case "/repos/acme/models/events":
				if r.URL.Query().Get("per_page") != "15" {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `[
					{"id":"1","type":"WatchEvent","actor":{"login":"sam"},"repo":{"name":"acme/models"},"payload":{}},
					{"id":"2","type":"GollumEvent","actor":{"login":"sam"},"repo":{"name":"acme/models"},"payload":{}}
				]`)
			default:
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"message":"Not Found"}`)
			}
		}))
		defer srv.Close()

		g := NewGitHub(Config{UserAgent: "probe/2"})
		g.BaseURL = srv.URL + "/"
		g.Repos = []string{"acme/missing", "acme/models"}
		g.Delay = 0
		client, err := g.newClient(context.Background())
		So(err, ShouldBeNil)
		g.client = client
		sink := &collector{}

		Convey("Supported events are emitted once per id", func() {
			g.cycle(context.Background(), sink)
			g.cycle(context.Background(), sink)
			posts := sink.all()
			So(len(posts), ShouldEqual, 1)
			So(posts[0].Text, ShouldEqual, "sam starred acme/models")
			So(seen.get(), ShouldEqual, "probe/2")
		})
	})

	Convey("GitHub errors map to connector sentinels", t, func() {
		So(errors.Is(wrapGitHubError(&gh.RateLimitError{Message: "slow down"}), ErrRateLimited), ShouldBeTrue)
		So(errors.Is(wrapGitHubError(&gh.AbuseRateLimitError{Message: "abuse"}), ErrRateLimited), ShouldBeTrue)

		forbidden := &gh.ErrorResponse{Response: &http.Response{StatusCode: http.StatusForbidden}}
		So(errors.Is(wrapGitHubError(forbidden), ErrRateLimited), ShouldBeTrue)

		broken := &gh.ErrorResponse{Response: &http.Response{StatusCode: http.StatusInternalServerError}}
		So(errors.Is(wrapGitHubError(broken), ErrStatus), ShouldBeTrue)
	})
}

func TestMoltbook(t *testing.T) {
	Convey("Given an agent network API", t, func() {
		quiet()
		var auth header
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth.record(r, "Authorization")
			switch r.URL.Path {
			case "/posts":
				_, _ = io.WriteString(w, `{"posts":[{"id":"p1","title":"Shell thoughts for today","agent":{"name":"clawd"}}]}`)
			case "/submolts/aita/posts":
				_, _ = io.WriteString(w, `[{"id":"p1","title":"Shell thoughts for today"},{"id":"p2","title":"Was I wrong to molt early"}]`)
			case "/posts/p1/comments":
				_, _ = io.WriteString(w, `{"comments":[{"_id":"c1","author":{"name":"kelp","id":"k9"},"body":"agreed","parent_id":"c0"}]}`)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer srv.Close()
		cfg := Config{MoltbookURL: srv.URL, MoltbookAPIKey: "mk"}

		Convey("New posts from the feed and submolts are deduplicated", func() {
			m := NewMoltbook(cfg)
			m.client = NewMoltbookClient(cfg, 0)
			sink := &collector{}
			m.pull(context.Background(), sink, "/posts?sort=new&limit=25")
			m.pull(context.Background(), sink, "/submolts/aita/posts?sort=new&limit=10")
			posts := sink.all()
			So(len(posts), ShouldEqual, 2)
			So(posts[0].Author, ShouldEqual, "clawd")
			So(posts[1].ExternalID, ShouldEqual, "p2")
			So(auth.get(), ShouldEqual, "Bearer mk")
		})

		Convey("Comments are proxied with fallbacks", func() {
			c := NewMoltbookClient(cfg, 0)
			list, err := c.Comments(context.Background(), "p1")
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 1)
			So(list[0].ID, ShouldEqual, "c1")
			So(list[0].AuthorName, ShouldEqual, "kelp")
			So(*list[0].AuthorID, ShouldEqual, "k9")
			So(list[0].Content, ShouldEqual, "agreed")
			So(*list[0].ParentID, ShouldEqual, "c0")
			So(list[0].CreatedAt, ShouldBeNil)
		})

		Convey("A missing post surfaces the upstream status", func() {
			c := NewMoltbookClient(cfg, 0)
			_, err := c.Comments(context.Background(), "gone")
			var se *StatusError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.StatusCode(), ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestHackerNewsCycle(t *testing.T) {
	Convey("Given an item API ahead of the cursor", t, func() {
		quiet()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/maxitem.json":
				_, _ = io.WriteString(w, "103")
			case "/item/101.json":
				_, _ = io.WriteString(w, `{"id":101,"type":"story","title":"Launch HN: faster builds","by":"dan"}`)
			case "/item/102.json":
				_, _ = io.WriteString(w, `{"id":102,"type":"comment","text":"This is <b>great</b> work","by":"eve"}`)
			case "/item/103.json":
				_, _ = io.WriteString(w, `{"id":103,"type":"comment","dead":true}`)
			}
		}))
		defer srv.Close()

		n := NewHackerNews(Config{})
		n.BaseURL = srv.URL
		n.fetch = n.cfg.fetcher(0)
		n.setLastSeen(100)
		sink := &collector{}

		Convey("New items are emitted in id order and the cursor advances", func() {
			So(n.cycle(context.Background(), sink), ShouldBeNil)
			So(n.LastSeen(), ShouldEqual, 103)
			posts := sink.all()
			So(len(posts), ShouldEqual, 2)
			So(posts[0].Author, ShouldEqual, "dan")
			So(posts[1].Text, ShouldEqual, "This is great work")

			So(n.cycle(context.Background(), sink), ShouldBeNil)
			So(len(sink.all()), ShouldEqual, 2)
		})
	})
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestMastodonSession(t *testing.T) {
	Convey("Given a streaming server that sends one status", t, func() {
		quiet()
		up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := up.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			status := `{"id":"s1","content":"<p>Streaming hello to everyone</p>","account":{"username":"zed"}}`
			_ = conn.WriteJSON(map[string]string{"event": "update", "payload": status})
			_ = conn.WriteJSON(map[string]string{"event": "update", "payload": status})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}))
		defer srv.Close()

		m := NewMastodon(Config{})
		m.Hosts = []string{"social.test"}
		m.Endpoint = func(string) string { return wsURL(srv) + "/api/v1/streaming?stream=public" }
		sink := &collector{}
		h := m.Start(context.Background(), sink)

		Convey("The status is emitted once with a host-qualified author", func() {
			So(eventually(func() bool { return len(sink.all()) >= 1 }), ShouldBeTrue)
			time.Sleep(20 * time.Millisecond)
			h.Stop()
			posts := sink.all()
			So(len(posts), ShouldEqual, 1)
			So(posts[0].Author, ShouldEqual, "zed@social.test")
		})
	})

	Convey("The token is appended to the streaming URL", t, func() {
		quiet()
		m := NewMastodon(Config{MastodonToken: "a b"})
		So(m.Endpoint("mas.to"), ShouldEqual, "wss://mas.to/api/v1/streaming?stream=public&access_token="+url.QueryEscape("a b"))
	})
}

func TestNostrSession(t *testing.T) {
	Convey("Given a relay that answers our subscription", t, func() {
		quiet()
		reqs := make(chan string, 4)
		up := websocket.Upgrader{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := up.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			reqs <- string(msg)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`["EVENT","lobstream",{"id":"n1","pubkey":"pk","kind":1,"content":"hello nostr friends"}]`))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`["EVENT","lobstream",{"id":"n1","pubkey":"pk","kind":1,"content":"hello nostr friends"}]`))
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}))
		defer srv.Close()

		n := NewNostr(Config{})
		n.Relays = []string{wsURL(srv)}
		n.Pace = time.Millisecond
		sink := &collector{}
		h := n.Start(context.Background(), sink)
		defer h.Stop()

		Convey("The REQ is sent and the duplicate note emitted once", func() {
			var req string
			select {
			case req = <-reqs:
			case <-time.After(3 * time.Second):
			}
			So(strings.TrimSpace(req), ShouldEqual, `["REQ","lobstream",{"kinds":[1],"limit":0}]`)
			So(eventually(func() bool { return len(sink.all()) == 1 }), ShouldBeTrue)
			time.Sleep(20 * time.Millisecond)
			So(len(sink.all()), ShouldEqual, 1)
		})
	})
}

func TestWikipediaSession(t *testing.T) {
	Convey("Given a recent-changes stream", t, func() {
		quiet()
		var mu sync.Mutex
		var lastIDs []string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			lastIDs = append(lastIDs, r.Header.Get("Last-Event-ID"))
			mu.Unlock()
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "event: message\nid: [{\"offset\":1}]\ndata: {\"type\":\"edit\",\"title\":\"Crab\",\"user\":\"Ann\",\"comment\":\"added source\"}\n\n")
			fmt.Fprint(w, "event: message\ndata: {\"type\":\"categorize\",\"title\":\"Crab\",\"comment\":\"cat\"}\n\n")
		}))
		defer srv.Close()

		wk := NewWikipedia(Config{})
		wk.URL = srv.URL
		wk.Pace = time.Millisecond
		wk.Backoff = Backoff{Base: time.Millisecond, Max: 2 * time.Millisecond}
		sink := &collector{}
		h := wk.Start(context.Background(), sink)

		Convey("Edits are emitted and reconnects resume from the last id", func() {
			So(eventually(func() bool { return len(sink.all()) >= 2 }), ShouldBeTrue)
			h.Stop()
			So(sink.all()[0].Text, ShouldEqual, "Ann edited Crab: added source")
			mu.Lock()
			defer mu.Unlock()
			So(lastIDs[0], ShouldEqual, "")
			So(lastIDs[1], ShouldEqual, `[{"offset":1}]`)
		})
	})
}
