package connectors

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func quiet() { _ = logger.Init(logger.WithOutput(io.Discard)) }

type collector struct {
	mu    sync.Mutex
	posts []model.Post
}

func (c *collector) Emit(_ context.Context, p model.Post) { //nolint:gocritic // hugeParam: test sink
	c.mu.Lock()
	c.posts = append(c.posts, p)
	c.mu.Unlock()
}

func (c *collector) all() []model.Post {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Post(nil), c.posts...)
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestBackoff(t *testing.T) {
	Convey("Given the default backoff", t, func() {
		b := DefaultBackoff

		Convey("Delays double from the base up to the ceiling", func() {
			So(b.NextDelay(0), ShouldEqual, time.Second)
			So(b.NextDelay(time.Second), ShouldEqual, 2*time.Second)
			So(b.NextDelay(16*time.Second), ShouldEqual, 30*time.Second)
			So(b.NextDelay(30*time.Second), ShouldEqual, 30*time.Second)
		})

		Convey("Jitter scales by 0.5 to 1.5 and never exceeds the ceiling", func() {
			So(b.Jitter(2*time.Second, func() float64 { return 0 }), ShouldEqual, time.Second)
			So(b.Jitter(2*time.Second, func() float64 { return 0.5 }), ShouldEqual, 2*time.Second)
			So(b.Jitter(30*time.Second, func() float64 { return 0.99 }), ShouldEqual, 30*time.Second)
		})
	})
}

func TestRunSession(t *testing.T) {
	Convey("Given a session that fails immediately", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		b := Backoff{Base: time.Millisecond, Max: 4 * time.Millisecond}
		var calls atomic.Int32
		var mu sync.Mutex
		var waits []time.Duration

		done := make(chan struct{})
		go func() {
			defer close(done)
			runSession(ctx, b, func(context.Context, func()) error {
				if calls.Add(1) >= 5 {
					cancel()
				}
				return errors.New("refused")
			}, func(_ context.Context, err error, wait time.Duration) {
				mu.Lock()
				waits = append(waits, wait)
				mu.Unlock()
			})
		}()

		Convey("It reconnects with bounded waits until cancelled", func() {
			<-done
			So(calls.Load(), ShouldEqual, 5)
			mu.Lock()
			defer mu.Unlock()
			So(len(waits), ShouldEqual, 4)
			for _, w := range waits {
				So(w, ShouldBeLessThanOrEqualTo, b.Max)
			}
		})
	})
}

func TestMailbox(t *testing.T) {
	Convey("Given a mailbox of three", t, func() {
		mb := NewMailbox[int](3)

		Convey("Overflow evicts the oldest item", func() {
			So(mb.Push(1), ShouldBeFalse)
			So(mb.Push(2), ShouldBeFalse)
			So(mb.Push(3), ShouldBeFalse)
			So(mb.Push(4), ShouldBeTrue)
			So(mb.Len(), ShouldEqual, 3)

			var got []int
			for {
				v, ok := mb.Pop()
				if !ok {
					break
				}
				got = append(got, v)
			}
			So(got, ShouldResemble, []int{2, 3, 4})
		})

		Convey("Push signals readiness", func() {
			mb.Push(7)
			ready := false
			select {
			case <-mb.Ready():
				ready = true
			default:
			}
			So(ready, ShouldBeTrue)
		})
	})
}

func TestHandle(t *testing.T) {
	Convey("Given a handle running two loops", t, func() {
		h := NewHandle(context.Background(), "test")
		var exited atomic.Int32
		for range 2 {
			h.Go(func(ctx context.Context) {
				<-ctx.Done()
				exited.Add(1)
			})
		}
		So(h.State(), ShouldEqual, StateRunning)

		Convey("Stop waits for them and can be called again", func() {
			h.Stop()
			So(exited.Load(), ShouldEqual, 2)
			So(h.State(), ShouldEqual, StateStopped)
			So(func() { h.Stop() }, ShouldNotPanic)
			So(h.State().String(), ShouldEqual, "stopped")
			_, open := <-h.Done()
			So(open, ShouldBeFalse)
		})
	})
}

func TestRunPoll(t *testing.T) {
	Convey("Given a poll task that fails every other cycle", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		var runs, errs, inflight, overlap atomic.Int32

		done := make(chan struct{})
		go func() {
			defer close(done)
			runPoll(ctx, PollTask{Interval: time.Millisecond, Run: func(context.Context) error {
				if inflight.Add(1) > 1 {
					overlap.Add(1)
				}
				defer inflight.Add(-1)
				time.Sleep(2 * time.Millisecond)
				if runs.Add(1)%2 == 0 {
					return errors.New("upstream down")
				}
				return nil
			}}, func(context.Context, error) { errs.Add(1) })
		}()

		Convey("Errors are reported and the loop keeps going", func() {
			So(eventually(func() bool { return runs.Load() >= 6 }), ShouldBeTrue)
			cancel()
			<-done
			So(errs.Load(), ShouldBeGreaterThanOrEqualTo, 3)
			So(overlap.Load(), ShouldEqual, 0)
		})
	})
}

func TestFetcher(t *testing.T) {
	Convey("Given an upstream with several behaviours", t, func() {
		var ua, auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ua, auth = r.Header.Get("User-Agent"), r.Header.Get("Authorization")
			switch r.URL.Path {
			case "/ok":
				_, _ = io.WriteString(w, `{"n":3}`)
			case "/limited":
				w.WriteHeader(http.StatusTooManyRequests)
			case "/broken":
				_, _ = io.WriteString(w, `{"n":`)
			default:
				w.WriteHeader(http.StatusInternalServerError)
			}
		}))
		defer srv.Close()
		f := NewFetcher(WithUserAgent("probe/1"), WithBearer("tok"))
		ctx := context.Background()

		Convey("A good body decodes and carries the headers", func() {
			var v struct{ N int }
			So(f.GetJSON(ctx, srv.URL+"/ok", &v), ShouldBeNil)
			So(v.N, ShouldEqual, 3)
			So(ua, ShouldEqual, "probe/1")
			So(auth, ShouldEqual, "Bearer tok")
		})

		Convey("429 maps to rate limited", func() {
			err := f.GetJSON(ctx, srv.URL+"/limited", &struct{}{})
			So(errors.Is(err, ErrRateLimited), ShouldBeTrue)
			So(errorKind(err), ShouldEqual, "rate_limited")
		})

		Convey("Other statuses keep their code", func() {
			err := f.GetJSON(ctx, srv.URL+"/down", &struct{}{})
			var se *StatusError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.StatusCode(), ShouldEqual, 500)
			So(errorKind(err), ShouldEqual, "status")
		})

		Convey("A truncated body is malformed", func() {
			err := f.GetJSON(ctx, srv.URL+"/broken", &struct{}{})
			So(errors.Is(err, ErrMalformed), ShouldBeTrue)
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given the connector registry", t, func() {
		quiet()

		Convey("Every name builds a connector with that name", func() {
			names := Names()
			So(len(names), ShouldEqual, 10)
			all, err := Build(names, Config{})
			So(err, ShouldBeNil)
			for i, c := range all {
				So(c.Name(), ShouldEqual, names[i])
			}
		})

		Convey("Unknown names are rejected", func() {
			_, err := New("myspace", Config{})
			So(errors.Is(err, ErrUnknownSource), ShouldBeTrue)
		})
	})
}

func TestSeenSetBounds(t *testing.T) {
	Convey("Given connectors built without an explicit seen cap", t, func() {
		quiet()
		ctx := context.Background()
		w := NewWikipedia(Config{})
		b := newBase("custom", 0, Config{})

		Convey("Their seen-sets stay within the default cap", func() {
			for _, seen := range []*base{&w.base, &b} {
				for i := range defaultSeenCap + 10 {
					seen.fresh(ctx, strconv.Itoa(i))
				}
				So(seen.seen.Size(), ShouldBeLessThanOrEqualTo, defaultSeenCap)
				So(seen.fresh(ctx, strconv.Itoa(defaultSeenCap+9)), ShouldBeFalse)
			}
		})
	})
}
