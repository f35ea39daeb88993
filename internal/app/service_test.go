package service_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/okian/lobstream/internal/adapters/repository"
	service "github.com/okian/lobstream/internal/app"
	"github.com/okian/lobstream/internal/connectors"
	"github.com/okian/lobstream/internal/domain/model"
	"github.com/okian/lobstream/internal/domain/scoring"
	"github.com/okian/lobstream/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// feed is a connector that emits a fixed list of posts and then idles.
type feed struct {
	name  string
	posts []model.Post
}

func (f *feed) Name() string { return f.name }

func (f *feed) Start(ctx context.Context, sink connectors.Sink) *connectors.Handle {
	h := connectors.NewHandle(ctx, f.name)
	h.Go(func(ctx context.Context) {
		for _, p := range f.posts {
			sink.Emit(ctx, p)
		}
		<-ctx.Done()
	})
	return h
}

type hopeful struct{}

func (hopeful) Score(_ context.Context, texts []string) ([]scoring.Result, error) {
	out := make([]scoring.Result, len(texts))
	for i := range out {
		v := 0.9
		out[i] = scoring.Result{Relevance: &v, Sentiment: "hopeful"}
	}
	return out, nil
}

func samplePosts() []model.Post {
	return []model.Post{
		{Source: "feed", Text: "a quiet afternoon walking the dog near the river", Author: "walker"},
		{Source: "feed", Text: "OpenAI released a new model today for everyone", Author: "newsbot"},
	}
}

func logEntries(store repository.Store) []model.LogEntry {
	got, _ := store.ReadRange(context.Background(), repository.Earliest, 100)
	return got
}

func waitForLen(store repository.Store, n int) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if l, _ := store.Len(context.Background()); l >= int64(n) {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func byAuthor(entries []model.LogEntry) map[string]map[string]string {
	out := make(map[string]map[string]string, len(entries))
	for _, e := range entries {
		out[e.Fields["author"]] = e.Fields
	}
	return out
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		_ = logger.Init(logger.WithOutput(io.Discard))
		svc := service.New()

		Convey("Then it is stopped, classifies, and has no Tier 2", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["classification"], ShouldEqual, true)
			So(stats["tier2"], ShouldEqual, false)
			So(svc.Store(), ShouldNotBeNil)
			So(svc.Router(), ShouldBeNil)
		})

		Convey("Then stopping before starting is a no-op", func() {
			So(func() { svc.Stop(context.Background()) }, ShouldNotPanic)
		})
	})

	Convey("Given a service with classification disabled", t, func() {
		svc := service.New(service.WithClassification(false), service.WithConnectors(&feed{name: "a"}, &feed{name: "b"}))

		Convey("Then stats and sources reflect it", func() {
			So(svc.GetStats()["classification"], ShouldEqual, false)
			So(svc.Sources(), ShouldResemble, []string{"a", "b"})
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service over a ring store and one connector", t, func() {
		_ = logger.Init(logger.WithOutput(io.Discard))
		ctx := context.Background()
		store := repository.NewRingStore()
		svc := service.New(
			service.WithStore(store),
			service.WithBatchSize(1),
			service.WithConnectors(&feed{name: "feed", posts: samplePosts()}),
		)
		defer svc.Stop(ctx)

		So(svc.Start(ctx), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("Tagged posts pass the scorer queue as Tier 1 and untagged posts are appended directly", func() {
			So(waitForLen(store, 2), ShouldBeTrue)
			got := byAuthor(logEntries(store))
			So(got["walker"]["topics"], ShouldEqual, "")
			So(got["walker"], ShouldNotContainKey, "ai_tier")
			So(got["newsbot"]["topics"], ShouldEqual, "ai")
			So(got["newsbot"]["ai_tier"], ShouldEqual, "1")
		})

		Convey("Stats report connector state and routing", func() {
			So(waitForLen(store, 2), ShouldBeTrue)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["sources"], ShouldResemble, map[string]string{"feed": "running"})
			So(stats["log_length"], ShouldEqual, int64(2))
			So(stats["router"].(service.RouterStats).Appended, ShouldEqual, 1)
			So(stats["router"].(service.RouterStats).Enqueued, ShouldEqual, 1)
			So(stats["tier2"], ShouldEqual, false)
			So(stats, ShouldContainKey, "scorer")
		})

		Convey("Stop stops the connectors", func() {
			svc.Stop(ctx)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})
}

func TestService_WithoutAPIKey(t *testing.T) {
	Convey("Given a service with no scorer configured", t, func() {
		_ = logger.Init(logger.WithOutput(io.Discard))
		ctx := context.Background()
		store := repository.NewRingStore()
		svc := service.New(service.WithStore(store))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When fifteen ai posts are emitted and the service stops", func() {
			for range 15 {
				svc.Router().Emit(ctx, model.Post{Source: "reddit", Text: "New Claude Opus model released today"})
			}
			svc.Stop(ctx)

			Convey("Then every post lands tagged as Tier 1", func() {
				entries := logEntries(store)
				So(entries, ShouldHaveLength, 15)
				for _, e := range entries {
					So(e.Fields["topics"], ShouldEqual, "ai")
					So(e.Fields["ai_tier"], ShouldEqual, "1")
					So(e.Fields, ShouldNotContainKey, "sentiment")
				}
			})
		})
	})
}

func TestService_TierTwo(t *testing.T) {
	Convey("Given a service with a scorer", t, func() {
		_ = logger.Init(logger.WithOutput(io.Discard))
		ctx := context.Background()
		store := repository.NewRingStore()

		Convey("When batches fill immediately", func() {
			svc := service.New(
				service.WithStore(store),
				service.WithScorer(hopeful{}),
				service.WithBatchSize(1),
				service.WithConnectors(&feed{name: "feed", posts: samplePosts()}),
			)
			defer svc.Stop(ctx)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then classified posts are scored and the rest pass through untouched", func() {
				So(waitForLen(store, 2), ShouldBeTrue)
				got := byAuthor(logEntries(store))
				So(got["newsbot"]["ai_tier"], ShouldEqual, "2")
				So(got["newsbot"]["sentiment"], ShouldEqual, "hopeful")
				So(got["walker"], ShouldNotContainKey, "ai_tier")
				So(svc.GetStats()["tier2"], ShouldEqual, true)
			})
		})

		Convey("When the service stops before a batch fills", func() {
			svc := service.New(
				service.WithStore(store),
				service.WithScorer(hopeful{}),
				service.WithBatchSize(50),
				service.WithFlushInterval(time.Hour),
				service.WithConnectors(&feed{name: "feed", posts: samplePosts()}),
			)
			So(svc.Start(ctx), ShouldBeNil)
			So(waitForLen(store, 1), ShouldBeTrue)
			svc.Stop(ctx)

			Convey("Then queued posts are flushed as Tier 1", func() {
				got := byAuthor(logEntries(store))
				So(got, ShouldHaveLength, 2)
				So(got["newsbot"]["ai_tier"], ShouldEqual, "1")
				So(got["newsbot"], ShouldNotContainKey, "sentiment")
			})
		})
	})
}
