package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestEventMarshal(t *testing.T) {
	Convey("Given events with different fields", t, func() {
		Convey("A full event renders id, event and data lines", func() {
			b, _ := Event{ID: "1-0", Event: "post", Data: `{"a":"b"}`}.MarshalText()
			So(string(b), ShouldEqual, "id: 1-0\nevent: post\ndata: {\"a\":\"b\"}\n\n")
		})

		Convey("Multi-line data is split across data lines", func() {
			b, _ := Event{Data: "one\ntwo"}.MarshalText()
			So(string(b), ShouldEqual, "data: one\ndata: two\n\n")
		})

		Convey("Newlines cannot escape the id or event fields", func() {
			b, _ := Event{ID: "1\n2", Event: "x\ry", Data: "d"}.MarshalText()
			So(string(b), ShouldEqual, "id: 12\nevent: xy\ndata: d\n\n")
		})

		Convey("Retry is written in milliseconds", func() {
			b, _ := Event{Retry: 1500 * time.Millisecond, Data: "d"}.MarshalText()
			So(string(b), ShouldContainSubstring, "retry: 1500\n")
		})

		Convey("Name defaults to message", func() {
			So(Event{}.Name(), ShouldEqual, "message")
			So(Event{Event: "post"}.Name(), ShouldEqual, "post")
		})
	})
}

func TestDecoder(t *testing.T) {
	Convey("Given an event-stream body", t, func() {
		body := ": comment\n" +
			"event: connected\ndata: {\"status\":\"ok\"}\n\n" +
			"id: 5-0\r\nevent: post\r\ndata: line1\r\ndata: line2\r\n\r\n" +
			"\n\n" +
			"retry: 250\ndata:nospace\n\n" +
			"data: trailing"
		dec := NewDecoder(strings.NewReader(body))

		Convey("Events decode in order", func() {
			ev, err := dec.Decode()
			So(err, ShouldBeNil)
			So(ev.Event, ShouldEqual, "connected")
			So(ev.Data, ShouldEqual, `{"status":"ok"}`)

			ev, err = dec.Decode()
			So(err, ShouldBeNil)
			So(ev.ID, ShouldEqual, "5-0")
			So(ev.Event, ShouldEqual, "post")
			So(ev.Data, ShouldEqual, "line1\nline2")

			ev, err = dec.Decode()
			So(err, ShouldBeNil)
			So(ev.Retry, ShouldEqual, 250*time.Millisecond)
			So(ev.Data, ShouldEqual, "nospace")

			ev, err = dec.Decode()
			So(err, ShouldBeNil)
			So(ev.Data, ShouldEqual, "trailing")

			_, err = dec.Decode()
			So(errors.Is(err, io.EOF), ShouldBeTrue)
		})
	})

	Convey("Given an empty body", t, func() {
		_, err := NewDecoder(strings.NewReader("")).Decode()
		So(errors.Is(err, io.EOF), ShouldBeTrue)
	})

	Convey("Given a line above the limit", t, func() {
		long := "data: " + strings.Repeat("x", maxLineBytes+10) + "\n\n"
		_, err := NewDecoder(strings.NewReader(long)).Decode()
		So(errors.Is(err, ErrLineTooLong), ShouldBeTrue)
	})
}

func TestWriter(t *testing.T) {
	Convey("Given a writer on a recorder", t, func() {
		rec := httptest.NewRecorder()
		w := NewWriter(rec)

		Convey("Headers mark the response as an event stream", func() {
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Content-Type"), ShouldEqual, "text/event-stream")
			So(rec.Header().Get("Cache-Control"), ShouldEqual, "no-cache")
			So(rec.Header().Get("X-Accel-Buffering"), ShouldEqual, "no")
			So(rec.Flushed, ShouldBeTrue)
		})

		Convey("Sent events round trip through the decoder", func() {
			So(w.Send(Event{ID: "1-0", Event: "post", Data: "hi"}), ShouldBeNil)
			ev, err := NewDecoder(strings.NewReader(rec.Body.String())).Decode()
			So(err, ShouldBeNil)
			So(ev, ShouldResemble, Event{ID: "1-0", Event: "post", Data: "hi"})
		})

		Convey("Sends after Close are silently dropped", func() {
			w.Close()
			w.Close()
			So(w.Closed(), ShouldBeTrue)
			So(w.Send(Event{Data: "late"}), ShouldBeNil)
			So(rec.Body.Len(), ShouldEqual, 0)
		})
	})

	Convey("Given a response whose writes fail", t, func() {
		w := NewWriter(&failingWriter{ResponseRecorder: httptest.NewRecorder()})

		Convey("The first failure is reported and later sends are no-ops", func() {
			So(errors.Is(w.Send(Event{Data: "x"}), ErrWrite), ShouldBeTrue)
			So(w.Closed(), ShouldBeTrue)
			So(w.Send(Event{Data: "y"}), ShouldBeNil)
		})
	})
}

type failingWriter struct {
	*httptest.ResponseRecorder
}

func (f *failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestClientReconnect(t *testing.T) {
	Convey("Given a server that closes after each event", t, func() {
		var (
			mu      sync.Mutex
			lastIDs []string
			n       int
		)
		srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			mu.Lock()
			lastIDs = append(lastIDs, r.Header.Get("Last-Event-ID"))
			n++
			id := n
			mu.Unlock()
			w := NewWriter(rw)
			_ = w.Send(Event{ID: fmt.Sprintf("%d-0", id), Event: "post", Data: "x"})
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var got []string
		c := NewClient(srv.URL, WithRetry(5*time.Millisecond), WithLastEventID("0-7"))
		err := c.Subscribe(ctx, func(ev Event) error {
			got = append(got, ev.ID)
			if len(got) == 3 {
				return io.ErrShortBuffer
			}
			return nil
		})

		Convey("Then each reconnect resumes from the last id", func() {
			So(errors.Is(err, io.ErrShortBuffer), ShouldBeTrue)
			So(got, ShouldResemble, []string{"1-0", "2-0", "3-0"})
			mu.Lock()
			defer mu.Unlock()
			So(lastIDs, ShouldResemble, []string{"0-7", "1-0", "2-0"})
			So(c.LastEventID(), ShouldEqual, "3-0")
		})
	})

	Convey("Given a server that answers with a plain error", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			http.Error(rw, "nope", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		var errs []error
		c := NewClient(srv.URL, WithRetry(time.Millisecond), WithOnDisconnect(func(err error) {
			errs = append(errs, err)
			if len(errs) == 2 {
				cancel()
			}
		}))

		Convey("Then the status error is surfaced and the context ends the loop", func() {
			err := c.Subscribe(ctx, func(Event) error { return nil })
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(errors.Is(errs[0], ErrStatus), ShouldBeTrue)
		})
	})
}
