package tail_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/lobstream/internal/client"
	"github.com/okian/lobstream/internal/tail"
	"github.com/okian/lobstream/pkg/logger"
	"github.com/okian/lobstream/pkg/sse"
)

func TestSplitList(t *testing.T) {
	convey.Convey("Comma lists drop blanks and whitespace", t, func() {
		convey.So(tail.SplitList(" reddit, ,nostr,"), convey.ShouldResemble, []string{"reddit", "nostr"})
		convey.So(tail.SplitList(""), convey.ShouldBeNil)
	})
}

func TestFormatItem(t *testing.T) {
	convey.Convey("Given an item", t, func() {
		it := client.Item{Source: "reddit", Author: "u/x", Text: "line one\n\nline   two", Topics: []string{"ai", "art"}, Sentiment: "hopeful"}

		convey.Convey("Then it renders on one line with topics and sentiment", func() {
			convey.So(tail.FormatItem(it), convey.ShouldEqual, "[reddit] u/x: line one line two #ai #art (hopeful)")
		})

		convey.Convey("Then long text is clipped", func() {
			it.Text = strings.Repeat("é", 300)
			it.Topics, it.Sentiment = nil, ""
			line := tail.FormatItem(it)
			convey.So(strings.HasSuffix(line, "…"), convey.ShouldBeTrue)
			convey.So(len([]rune(line)), convey.ShouldEqual, len([]rune("[reddit] u/x: "))+280+1)
		})

		convey.Convey("Then images are appended", func() {
			it.ImageURL = "https://i.example/x.png"
			convey.So(tail.FormatItem(it), convey.ShouldEndWith, "<https://i.example/x.png>")
		})
	})
}

func TestPrinter(t *testing.T) {
	convey.Convey("Backfill batches get a header", t, func() {
		var buf bytes.Buffer
		p := tail.NewPrinter(&buf)
		p.Render([]client.Item{{Source: "nostr", Author: "abc", Text: "gm"}}, true)
		p.Render([]client.Item{{Source: "nostr", Author: "abc", Text: "gn"}}, false)
		convey.So(buf.String(), convey.ShouldEqual, "--- 1 recent posts ---\n[nostr] abc: gm\n[nostr] abc: gn\n")
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a stream with two posts", t, func() {
		_ = logger.Init(logger.WithOutput(io.Discard))
		queries := make(chan string, 8)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case queries <- r.URL.RawQuery:
			default:
			}
			sw := sse.NewWriter(w)
			defer sw.Close()
			_ = sw.Send(sse.Event{Event: "connected", Data: `{"status":"ok"}`})
			for _, id := range []string{"1-0", "2-0"} {
				data, _ := json.Marshal(map[string]string{"source": "reddit", "author": "u/" + id, "text": "post " + id, "topics": "ai"})
				_ = sw.Send(sse.Event{ID: id, Event: "post", Data: string(data)})
			}
			<-r.Context().Done()
		}))
		defer srv.Close()

		convey.Convey("When the tool runs for a bounded time", func() {
			var out bytes.Buffer
			cfg := &tail.Config{
				URL:      srv.URL + "/api/stream",
				Topics:   []string{"ai"},
				Rate:     time.Second,
				Settle:   50 * time.Millisecond,
				Duration: 300 * time.Millisecond,
				Verbose:  true,
			}
			err := tail.Run(context.Background(), cfg, &out)

			convey.Convey("Then the backfill is printed and the run ends cleanly", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(<-queries, convey.ShouldEqual, "topics=ai")
				convey.So(out.String(), convey.ShouldContainSubstring, "--- 2 recent posts ---")
				convey.So(out.String(), convey.ShouldContainSubstring, "[reddit] u/1-0: post 1-0 #ai")
				convey.So(out.String(), convey.ShouldContainSubstring, "rendered=2")
			})
		})
	})

	convey.Convey("Given a malformed URL", t, func() {
		_ = logger.Init(logger.WithOutput(io.Discard))
		err := tail.Run(context.Background(), &tail.Config{URL: "not a url"}, io.Discard)
		convey.So(errors.Is(err, client.ErrInvalidURL), convey.ShouldBeTrue)
	})
}

func TestShowHelp(t *testing.T) {
	convey.Convey("Help lists every flag", t, func() {
		var buf bytes.Buffer
		tail.ShowHelp(&buf)
		for _, flag := range []string{"-url", "-sources", "-topics", "-rate", "-settle", "-for", "-verbose"} {
			convey.So(buf.String(), convey.ShouldContainSubstring, flag)
		}
	})
}
